package streaming_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
	"github.com/glassboxlabs/glasstrace/streaming"
)

func publish(t *testing.T, p *streaming.Publisher, event agent.Event) {
	t.Helper()

	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish %s: %v", event.Type, err)
	}
}

func runEvents(sessionID, traceID uuid.UUID) []agent.Event {
	return []agent.Event{
		agent.StartEvent(sessionID, traceID),
		agent.ThoughtEvent(traceID, 1, "thinking"),
		agent.ResponseEvent(traceID, 2, "done"),
		agent.CompleteEvent(traceID, true),
	}
}

func TestPublisher_DeliversRunInOrder(t *testing.T) {
	t.Parallel()

	publisher := streaming.NewPublisher(0, nil)
	sessionID := uuid.New()
	traceID := uuid.New()

	subscription := publisher.Subscribe(sessionID)
	defer subscription.Cancel()

	for _, event := range runEvents(sessionID, traceID) {
		publish(t, publisher, event)
	}

	want := []agent.EventType{
		agent.EventTypeStart,
		agent.EventTypeThought,
		agent.EventTypeResponse,
		agent.EventTypeComplete,
	}
	for i, wantType := range want {
		event := <-subscription.Events()
		if event.Type != wantType {
			t.Fatalf("event %d type = %s, want %s", i, event.Type, wantType)
		}
		if event.TraceID != traceID.String() {
			t.Fatalf("event %d trace = %s, want %s", i, event.TraceID, traceID)
		}
	}
}

func TestPublisher_RunBindsAtStartEvent(t *testing.T) {
	t.Parallel()

	publisher := streaming.NewPublisher(0, nil)
	sessionID := uuid.New()
	earlyTrace := uuid.New()

	// A run started before this consumer subscribed is not replayed.
	publish(t, publisher, agent.StartEvent(sessionID, earlyTrace))

	subscription := publisher.Subscribe(sessionID)
	defer subscription.Cancel()

	// Mid-run events of the early trace bypass the late subscriber.
	publish(t, publisher, agent.ThoughtEvent(earlyTrace, 1, "unseen"))
	publish(t, publisher, agent.ErrorEvent(earlyTrace, "boom"))

	lateTrace := uuid.New()
	for _, event := range runEvents(sessionID, lateTrace) {
		publish(t, publisher, event)
	}

	first := <-subscription.Events()
	if first.Type != agent.EventTypeStart || first.TraceID != lateTrace.String() {
		t.Fatalf("unexpected first event: %+v", first)
	}
}

func TestPublisher_SessionsAreIsolated(t *testing.T) {
	t.Parallel()

	publisher := streaming.NewPublisher(0, nil)
	sessionA := uuid.New()
	sessionB := uuid.New()

	subA := publisher.Subscribe(sessionA)
	defer subA.Cancel()
	subB := publisher.Subscribe(sessionB)
	defer subB.Cancel()

	traceA := uuid.New()
	for _, event := range runEvents(sessionA, traceA) {
		publish(t, publisher, event)
	}

	for range 4 {
		event := <-subA.Events()
		if event.TraceID != traceA.String() {
			t.Fatalf("unexpected event in session A: %+v", event)
		}
	}
	select {
	case event := <-subB.Events():
		t.Fatalf("session B received foreign event: %+v", event)
	default:
	}
}

func TestPublisher_SlowSubscriberIsDroppedNotBlocked(t *testing.T) {
	t.Parallel()

	publisher := streaming.NewPublisher(1, nil)
	sessionID := uuid.New()
	traceID := uuid.New()

	subscription := publisher.Subscribe(sessionID)

	// Buffer of one: the start event fills it, the next delivery drops the
	// subscriber instead of blocking the publisher.
	publish(t, publisher, agent.StartEvent(sessionID, traceID))
	publish(t, publisher, agent.ThoughtEvent(traceID, 1, "thinking"))
	publish(t, publisher, agent.ResponseEvent(traceID, 2, "done"))

	first, open := <-subscription.Events()
	if !open || first.Type != agent.EventTypeStart {
		t.Fatalf("unexpected first receive: %+v open=%v", first, open)
	}
	if _, open := <-subscription.Events(); open {
		t.Fatal("expected channel closed after drop")
	}
}

func TestPublisher_CancelIsIdempotentAndStopsDelivery(t *testing.T) {
	t.Parallel()

	publisher := streaming.NewPublisher(0, nil)
	sessionID := uuid.New()
	traceID := uuid.New()

	subscription := publisher.Subscribe(sessionID)
	subscription.Cancel()
	subscription.Cancel()

	for _, event := range runEvents(sessionID, traceID) {
		publish(t, publisher, event)
	}

	if _, open := <-subscription.Events(); open {
		t.Fatal("expected closed channel after cancel")
	}
}

func TestPublisher_RejectsInvalidEvents(t *testing.T) {
	t.Parallel()

	publisher := streaming.NewPublisher(0, nil)
	if err := publisher.Publish(context.Background(), agent.Event{Type: "bogus"}); err == nil {
		t.Fatal("expected validation error")
	}
}
