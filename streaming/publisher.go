// Package streaming converts committed run events into ordered,
// consumer-facing event feeds. Durability is someone else's concern: by the
// time an event reaches the publisher its step is already persisted, so a
// slow or vanished consumer can never corrupt a run.
package streaming

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
)

// DefaultSubscriberBuffer is the per-subscription channel capacity. A
// subscriber that falls this far behind is dropped rather than ever blocking
// the loop.
const DefaultSubscriberBuffer = 64

// Publisher fans committed events out to live subscribers. A run's feed is
// bound to a subscription by the leading start event; every later event is
// routed by trace id in publish order, which matches sequence_order.
type Publisher struct {
	mu       sync.Mutex
	buffer   int
	logger   *slog.Logger
	sessions map[uuid.UUID]map[*Subscription]struct{}
	routes   map[string][]*Subscription
}

var _ agent.EventSink = (*Publisher)(nil)

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		buffer:   buffer,
		logger:   logger,
		sessions: make(map[uuid.UUID]map[*Subscription]struct{}),
		routes:   make(map[string][]*Subscription),
	}
}

// Subscription is one consumer's live feed for a session's runs.
type Subscription struct {
	publisher *Publisher
	sessionID uuid.UUID
	ch        chan agent.Event
	closed    bool
}

// Events is the ordered feed. It is closed when the subscription is
// cancelled or dropped.
func (s *Subscription) Events() <-chan agent.Event {
	return s.ch
}

// Cancel detaches the consumer. The underlying run continues unaffected.
func (s *Subscription) Cancel() {
	s.publisher.mu.Lock()
	defer s.publisher.mu.Unlock()
	s.publisher.removeLocked(s)
}

// Subscribe attaches a consumer to all runs subsequently started in the
// session. Events of runs already in flight are not replayed; history comes
// from the trace store.
func (p *Publisher) Subscribe(sessionID uuid.UUID) *Subscription {
	sub := &Subscription{
		publisher: p,
		sessionID: sessionID,
		ch:        make(chan agent.Event, p.buffer),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	subs, ok := p.sessions[sessionID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		p.sessions[sessionID] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Publish routes one committed event. It never blocks: a subscriber whose
// buffer is full is dropped on the spot.
func (p *Publisher) Publish(ctx context.Context, event agent.Event) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err := agent.ValidateEvent(event); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Type == agent.EventTypeStart {
		sessionID, err := uuid.Parse(event.SessionID)
		if err != nil {
			return err
		}
		subs := make([]*Subscription, 0, len(p.sessions[sessionID]))
		for sub := range p.sessions[sessionID] {
			subs = append(subs, sub)
		}
		p.routes[event.TraceID] = subs
	}

	subs := p.routes[event.TraceID]
	for _, sub := range subs {
		p.deliverLocked(sub, event)
	}

	if agent.IsTerminalEvent(event) {
		delete(p.routes, event.TraceID)
	}
	return nil
}

func (p *Publisher) deliverLocked(sub *Subscription, event agent.Event) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- agent.CloneEvent(event):
	default:
		p.logger.Debug("dropping slow subscriber",
			slog.String("session_id", sub.sessionID.String()),
			slog.String("trace_id", event.TraceID),
		)
		p.removeLocked(sub)
	}
}

func (p *Publisher) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)

	if subs, ok := p.sessions[sub.sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(p.sessions, sub.sessionID)
		}
	}
	for traceID, routed := range p.routes {
		kept := routed[:0]
		for _, candidate := range routed {
			if candidate != sub {
				kept = append(kept, candidate)
			}
		}
		p.routes[traceID] = kept
	}
}
