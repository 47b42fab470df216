// Package replay re-executes a historical input as a fresh, independent run.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
)

// TraceLoader reads one trace's identifying fields. Steps are never loaded:
// a replay re-runs the input, it does not re-enact the recorded decisions.
type TraceLoader interface {
	Trace(ctx context.Context, traceID uuid.UUID) (agent.Trace, error)
}

// Runner launches one fresh agent run.
type Runner interface {
	Run(ctx context.Context, input agent.RunInput) (agent.RunResult, error)
}

// Result links the historical trace to the run it spawned.
type Result struct {
	OriginalTraceID uuid.UUID `json:"original_trace_id"`
	NewTraceID      uuid.UUID `json:"new_trace_id"`
}

// Coordinator starts a new run from a prior trace's input. The original
// trace and its steps are never mutated; the new run sees current session
// history, which now includes the original trace itself.
type Coordinator struct {
	loader TraceLoader
	runner Runner
	logger *slog.Logger
}

func NewCoordinator(loader TraceLoader, runner Runner, logger *slog.Logger) (*Coordinator, error) {
	if loader == nil {
		return nil, errors.New("new replay coordinator: trace loader is required")
	}
	if runner == nil {
		return nil, errors.New("new replay coordinator: runner is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		loader: loader,
		runner: runner,
		logger: logger,
	}, nil
}

// Replay loads the original input and owning session, runs a fresh loop,
// and returns the linked trace ids. A failed new run still yields its trace
// id: the replay itself succeeded in producing a terminal trace.
func (c *Coordinator) Replay(ctx context.Context, traceID uuid.UUID) (Result, error) {
	original, err := c.loader.Trace(ctx, traceID)
	if err != nil {
		return Result{}, fmt.Errorf("load original trace: %w", err)
	}

	c.logger.Info("replaying trace",
		slog.String("trace_id", traceID.String()),
		slog.String("session_id", original.SessionID.String()),
	)

	result, runErr := c.runner.Run(ctx, agent.RunInput{
		SessionID: original.SessionID,
		UserInput: original.UserInput,
	})
	if result.Trace.ID == uuid.Nil {
		return Result{}, fmt.Errorf("replay run: %w", runErr)
	}

	return Result{
		OriginalTraceID: traceID,
		NewTraceID:      result.Trace.ID,
	}, nil
}
