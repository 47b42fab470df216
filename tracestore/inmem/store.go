// Package inmem is the reference TraceRecorder. The production storage
// backend is an external collaborator behind the same interface; this store
// keeps its guarantees honest: append-only steps with a per-trace sequence
// counter, at-most-one finalize, and aggregates computed from committed
// steps.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
)

// Store persists traces and their ordered steps in memory.
type Store struct {
	mu     sync.RWMutex
	traces map[uuid.UUID]*traceRecord
	// session index, in creation order
	bySession map[uuid.UUID][]uuid.UUID
	created   []uuid.UUID
	now       func() time.Time
}

type traceRecord struct {
	trace   agent.Trace
	steps   []agent.Step
	nextSeq int
}

var _ agent.TraceRecorder = (*Store)(nil)

func New() *Store {
	return &Store{
		traces:    make(map[uuid.UUID]*traceRecord),
		bySession: make(map[uuid.UUID][]uuid.UUID),
		now:       time.Now,
	}
}

// Begin opens a trace with its one-time snapshots and a running status.
func (s *Store) Begin(ctx context.Context, input agent.BeginTraceInput) (agent.Trace, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.Trace{}, ctxErr
	}
	if input.SessionID == uuid.Nil {
		return agent.Trace{}, agent.ErrSessionRequired
	}
	if input.UserInput == "" {
		return agent.Trace{}, agent.ErrUserInputRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	traceID := input.TraceID
	if traceID == uuid.Nil {
		traceID = uuid.New()
	}
	if _, exists := s.traces[traceID]; exists {
		return agent.Trace{}, fmt.Errorf("begin trace: id %s already exists", traceID)
	}

	trace := agent.Trace{
		ID:                   traceID,
		SessionID:            input.SessionID,
		UserInput:            input.UserInput,
		Status:               agent.TraceStatusRunning,
		SystemPromptSnapshot: input.SystemPromptSnapshot,
		ModelConfigSnapshot:  input.ModelConfigSnapshot,
		CreatedAt:            s.now(),
	}
	s.traces[trace.ID] = &traceRecord{
		trace:   agent.CloneTrace(trace),
		nextSeq: 1,
	}
	s.bySession[input.SessionID] = append(s.bySession[input.SessionID], trace.ID)
	s.created = append(s.created, trace.ID)
	return trace, nil
}

// AppendStep commits one step, assigning the next sequence_order for the
// trace. The counter is owned here, never by the caller, and never reused.
func (s *Store) AppendStep(ctx context.Context, traceID uuid.UUID, input agent.StepInput) (agent.Step, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.Step{}, ctxErr
	}
	if !agent.ValidStepKind(input.Kind) {
		return agent.Step{}, fmt.Errorf("append step: unknown step kind %q", input.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.traces[traceID]
	if !ok {
		return agent.Step{}, fmt.Errorf("%w: %s", agent.ErrTraceNotFound, traceID)
	}
	if agent.IsTerminalTraceStatus(record.trace.Status) {
		return agent.Step{}, fmt.Errorf("%w: %s", agent.ErrTraceFinalized, traceID)
	}

	step := agent.Step{
		ID:            uuid.New(),
		TraceID:       traceID,
		SequenceOrder: record.nextSeq,
		Kind:          input.Kind,
		Name:          input.Name,
		InputPayload:  input.InputPayload,
		OutputPayload: input.OutputPayload,
		LatencyMS:     input.LatencyMS,
		Tokens:        input.Tokens,
		CostUSD:       input.CostUSD,
		IsError:       input.IsError,
		ErrorMessage:  input.ErrorMessage,
		StartedAt:     input.StartedAt,
		CompletedAt:   input.CompletedAt,
	}
	if step.StartedAt.IsZero() {
		step.StartedAt = s.now()
	}
	if step.CompletedAt.IsZero() {
		step.CompletedAt = step.StartedAt
	}
	record.nextSeq++
	record.steps = append(record.steps, agent.CloneStep(step))
	return step, nil
}

// Finalize closes a trace exactly once. Token and cost aggregates are sums
// over the committed steps, computed here to avoid incremental drift;
// latency is the run's wall clock.
func (s *Store) Finalize(ctx context.Context, traceID uuid.UUID, input agent.FinalizeInput) (agent.Trace, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.Trace{}, ctxErr
	}
	if !agent.IsTerminalTraceStatus(input.Status) {
		return agent.Trace{}, fmt.Errorf("finalize: %q is not a terminal status", input.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.traces[traceID]
	if !ok {
		return agent.Trace{}, fmt.Errorf("%w: %s", agent.ErrTraceNotFound, traceID)
	}
	if agent.IsTerminalTraceStatus(record.trace.Status) {
		return agent.Trace{}, fmt.Errorf("%w: %s", agent.ErrTraceFinalized, traceID)
	}

	totalTokens := 0
	totalCost := 0.0
	for i := range record.steps {
		totalTokens += record.steps[i].Tokens
		totalCost += record.steps[i].CostUSD
	}

	completedAt := s.now()
	record.trace.FinalOutput = input.FinalOutput
	record.trace.Status = input.Status
	record.trace.IsSuccessful = input.Status == agent.TraceStatusCompleted
	record.trace.ErrorMessage = input.ErrorMessage
	record.trace.TotalTokens = totalTokens
	record.trace.TotalCostUSD = totalCost
	record.trace.LatencyMS = completedAt.Sub(record.trace.CreatedAt).Milliseconds()
	record.trace.CompletedAt = completedAt
	return agent.CloneTrace(record.trace), nil
}

// RecentTraces returns up to limit most recent traces of a session, in
// chronological order, for seeding multi-turn context.
func (s *Store) RecentTraces(ctx context.Context, sessionID uuid.UUID, limit int) ([]agent.Trace, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySession[sessionID]
	start := 0
	if len(ids) > limit {
		start = len(ids) - limit
	}
	out := make([]agent.Trace, 0, len(ids)-start)
	for _, id := range ids[start:] {
		out = append(out, agent.CloneTrace(s.traces[id].trace))
	}
	return out, nil
}

// Trace returns one trace without its steps.
func (s *Store) Trace(ctx context.Context, traceID uuid.UUID) (agent.Trace, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.Trace{}, ctxErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.traces[traceID]
	if !ok {
		return agent.Trace{}, fmt.Errorf("%w: %s", agent.ErrTraceNotFound, traceID)
	}
	return agent.CloneTrace(record.trace), nil
}

// Steps returns a trace's committed steps ordered by sequence_order.
func (s *Store) Steps(ctx context.Context, traceID uuid.UUID) ([]agent.Step, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.traces[traceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", agent.ErrTraceNotFound, traceID)
	}
	return agent.CloneSteps(record.steps), nil
}

// ListFilter narrows and pages a trace listing.
type ListFilter struct {
	SessionID uuid.UUID
	Limit     int
	Offset    int
}

// List returns traces newest-first with the total count before paging.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]agent.Trace, int, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, 0, ctxErr
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.created
	if filter.SessionID != uuid.Nil {
		ids = s.bySession[filter.SessionID]
	}

	matched := make([]agent.Trace, 0, len(ids))
	for _, id := range ids {
		matched = append(matched, agent.CloneTrace(s.traces[id].trace))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}
