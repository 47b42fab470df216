package inmem_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
	"github.com/glassboxlabs/glasstrace/tracestore/inmem"
)

func beginTrace(t *testing.T, store *inmem.Store, sessionID uuid.UUID, input string) agent.Trace {
	t.Helper()

	trace, err := store.Begin(context.Background(), agent.BeginTraceInput{
		SessionID:            sessionID,
		UserInput:            input,
		SystemPromptSnapshot: "You are a helpful assistant.",
		ModelConfigSnapshot:  map[string]any{"model": "gemini-2.0-flash"},
	})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return trace
}

func appendStep(t *testing.T, store *inmem.Store, traceID uuid.UUID, input agent.StepInput) agent.Step {
	t.Helper()

	step, err := store.AppendStep(context.Background(), traceID, input)
	if err != nil {
		t.Fatalf("append step: %v", err)
	}
	return step
}

func TestStore_BeginValidates(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	ctx := context.Background()

	if _, err := store.Begin(ctx, agent.BeginTraceInput{UserInput: "hi"}); !errors.Is(err, agent.ErrSessionRequired) {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
	if _, err := store.Begin(ctx, agent.BeginTraceInput{SessionID: uuid.New()}); !errors.Is(err, agent.ErrUserInputRequired) {
		t.Fatalf("expected ErrUserInputRequired, got %v", err)
	}
}

func TestStore_BeginHonorsPreassignedTraceID(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	ctx := context.Background()
	traceID := uuid.New()

	trace, err := store.Begin(ctx, agent.BeginTraceInput{
		TraceID:   traceID,
		SessionID: uuid.New(),
		UserInput: "question",
	})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if trace.ID != traceID {
		t.Fatalf("expected trace id %s, got %s", traceID, trace.ID)
	}

	if _, err := store.Begin(ctx, agent.BeginTraceInput{
		TraceID:   traceID,
		SessionID: uuid.New(),
		UserInput: "another question",
	}); err == nil {
		t.Fatal("expected error for duplicate trace id")
	}
}

func TestStore_SequenceOrderIsOwnedByStore(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	trace := beginTrace(t, store, uuid.New(), "question")

	for i := 1; i <= 3; i++ {
		step := appendStep(t, store, trace.ID, agent.StepInput{
			Kind: agent.StepKindThought,
			Name: "reasoning",
		})
		if step.SequenceOrder != i {
			t.Fatalf("expected sequence %d, got %d", i, step.SequenceOrder)
		}
	}

	steps, err := store.Steps(context.Background(), trace.ID)
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
}

func TestStore_AppendStepRejectsUnknownKindAndMissingTrace(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	ctx := context.Background()

	if _, err := store.AppendStep(ctx, uuid.New(), agent.StepInput{Kind: "bogus"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := store.AppendStep(ctx, uuid.New(), agent.StepInput{Kind: agent.StepKindThought}); !errors.Is(err, agent.ErrTraceNotFound) {
		t.Fatalf("expected ErrTraceNotFound, got %v", err)
	}
}

func TestStore_FinalizeComputesAggregates(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	trace := beginTrace(t, store, uuid.New(), "question")

	appendStep(t, store, trace.ID, agent.StepInput{
		Kind: agent.StepKindThought, Name: "reasoning", Tokens: 100, CostUSD: 0.002,
	})
	appendStep(t, store, trace.ID, agent.StepInput{
		Kind: agent.StepKindToolCall, Name: "calculator",
	})
	appendStep(t, store, trace.ID, agent.StepInput{
		Kind: agent.StepKindToolResult, Name: "calculator",
	})
	appendStep(t, store, trace.ID, agent.StepInput{
		Kind: agent.StepKindThought, Name: "reasoning", Tokens: 50, CostUSD: 0.001,
	})

	final, err := store.Finalize(context.Background(), trace.ID, agent.FinalizeInput{
		FinalOutput: "4",
		Status:      agent.TraceStatusCompleted,
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.TotalTokens != 150 {
		t.Fatalf("expected 150 tokens, got %d", final.TotalTokens)
	}
	if final.TotalCostUSD != 0.003 {
		t.Fatalf("expected cost 0.003, got %v", final.TotalCostUSD)
	}
	if !final.IsSuccessful || final.Status != agent.TraceStatusCompleted {
		t.Fatalf("unexpected disposition: %+v", final)
	}
	if final.FinalOutput != "4" || final.CompletedAt.IsZero() {
		t.Fatalf("final output and completed_at must be set together: %+v", final)
	}
	if final.LatencyMS < 0 {
		t.Fatalf("unexpected latency: %d", final.LatencyMS)
	}
}

func TestStore_FinalizeIsAtMostOnce(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	trace := beginTrace(t, store, uuid.New(), "question")
	ctx := context.Background()

	if _, err := store.Finalize(ctx, trace.ID, agent.FinalizeInput{Status: agent.TraceStatusCompleted, FinalOutput: "x"}); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if _, err := store.Finalize(ctx, trace.ID, agent.FinalizeInput{Status: agent.TraceStatusFailed}); !errors.Is(err, agent.ErrTraceFinalized) {
		t.Fatalf("expected ErrTraceFinalized, got %v", err)
	}
	if _, err := store.AppendStep(ctx, trace.ID, agent.StepInput{Kind: agent.StepKindThought}); !errors.Is(err, agent.ErrTraceFinalized) {
		t.Fatalf("expected ErrTraceFinalized on append, got %v", err)
	}
}

func TestStore_FinalizeRejectsNonTerminalStatus(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	trace := beginTrace(t, store, uuid.New(), "question")

	if _, err := store.Finalize(context.Background(), trace.ID, agent.FinalizeInput{Status: agent.TraceStatusRunning}); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestStore_RecentTracesWindow(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	sessionID := uuid.New()
	ctx := context.Background()

	var ids []uuid.UUID
	for _, input := range []string{"one", "two", "three"} {
		trace := beginTrace(t, store, sessionID, input)
		ids = append(ids, trace.ID)
		if _, err := store.Finalize(ctx, trace.ID, agent.FinalizeInput{
			Status:      agent.TraceStatusCompleted,
			FinalOutput: input + " answer",
		}); err != nil {
			t.Fatalf("finalize: %v", err)
		}
	}

	recent, err := store.RecentTraces(ctx, sessionID, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(recent))
	}
	// Chronological order, oldest of the window first.
	if recent[0].ID != ids[1] || recent[1].ID != ids[2] {
		t.Fatalf("unexpected window: %v", recent)
	}

	other, err := store.RecentTraces(ctx, uuid.New(), 5)
	if err != nil {
		t.Fatalf("recent other session: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty window, got %d", len(other))
	}
}

func TestStore_ListPagesNewestFirst(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	sessionA := uuid.New()
	sessionB := uuid.New()

	beginTrace(t, store, sessionA, "a1")
	beginTrace(t, store, sessionB, "b1")
	beginTrace(t, store, sessionA, "a2")

	all, total, err := store.List(context.Background(), inmem.ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(all))
	}

	bySession, total, err := store.List(context.Background(), inmem.ListFilter{SessionID: sessionA})
	if err != nil {
		t.Fatalf("list session: %v", err)
	}
	if total != 2 || len(bySession) != 2 {
		t.Fatalf("expected 2 session traces, got %d/%d", len(bySession), total)
	}
	for _, trace := range bySession {
		if trace.SessionID != sessionA {
			t.Fatalf("foreign trace in session listing: %+v", trace)
		}
	}

	offsetPast, total, err := store.List(context.Background(), inmem.ListFilter{Offset: 10})
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if total != 3 || len(offsetPast) != 0 {
		t.Fatalf("expected empty page with total 3, got %d/%d", len(offsetPast), total)
	}
}

func TestStore_SnapshotsAreImmutable(t *testing.T) {
	t.Parallel()

	store := inmem.New()
	trace := beginTrace(t, store, uuid.New(), "question")

	trace.ModelConfigSnapshot["model"] = "mutated"

	reloaded, err := store.Trace(context.Background(), trace.ID)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if reloaded.ModelConfigSnapshot["model"] != "gemini-2.0-flash" {
		t.Fatalf("snapshot mutated through caller copy: %v", reloaded.ModelConfigSnapshot)
	}
}
