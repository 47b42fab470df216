package agent_test

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
)

// scriptedReasoner replays a fixed sequence of outcomes and records every
// request it sees.
type scriptedReasoner struct {
	mu       sync.Mutex
	script   []scriptedDecision
	calls    int
	requests []agent.DecisionRequest
}

type scriptedDecision struct {
	outcome agent.DecisionOutcome
	err     error
}

func decide(thought, action string, args map[string]any) scriptedDecision {
	if args == nil {
		args = map[string]any{}
	}
	return scriptedDecision{
		outcome: agent.DecisionOutcome{
			Decision: agent.Decision{Thought: thought, Action: action, Args: args},
			Usage:    agent.TokenUsage{InputTokens: 10, OutputTokens: 5},
			CostUSD:  0.001,
		},
	}
}

func finalAnswer(thought, answer string) scriptedDecision {
	return decide(thought, agent.ActionFinalAnswer, map[string]any{"answer": answer})
}

func (r *scriptedReasoner) Decide(ctx context.Context, req agent.DecisionRequest) (agent.DecisionOutcome, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.DecisionOutcome{}, ctxErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = append(r.requests, req)
	if r.calls >= len(r.script) {
		return agent.DecisionOutcome{}, errors.New("scripted reasoner exhausted")
	}
	step := r.script[r.calls]
	r.calls++
	return step.outcome, step.err
}

func (r *scriptedReasoner) recordedRequests() []agent.DecisionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]agent.DecisionRequest(nil), r.requests...)
}

// blockingReasoner waits for run-context cancellation and surfaces it, for
// timeout and cancellation scenarios.
type blockingReasoner struct{}

func (blockingReasoner) Decide(ctx context.Context, _ agent.DecisionRequest) (agent.DecisionOutcome, error) {
	<-ctx.Done()
	return agent.DecisionOutcome{}, ctx.Err()
}

// stubTools executes handlers from a fixed map.
type stubTools struct {
	definitions []agent.ToolDefinition
	handlers    map[string]func(ctx context.Context, args map[string]any) (agent.ToolResult, error)
}

func newStubTools() *stubTools {
	tools := &stubTools{
		handlers: map[string]func(ctx context.Context, args map[string]any) (agent.ToolResult, error){},
	}
	tools.register("calculator", func(_ context.Context, args map[string]any) (agent.ToolResult, error) {
		if args["expression"] == "10 / 0" {
			return agent.ToolResult{Content: "Error: Cannot divide by zero", IsError: true}, nil
		}
		return agent.ToolResult{Content: "4"}, nil
	})
	return tools
}

func (s *stubTools) register(name string, handler func(ctx context.Context, args map[string]any) (agent.ToolResult, error)) {
	s.definitions = append(s.definitions, agent.ToolDefinition{Name: name})
	s.handlers[name] = handler
}

func (s *stubTools) Definitions() []agent.ToolDefinition {
	return append([]agent.ToolDefinition(nil), s.definitions...)
}

func (s *stubTools) Invoke(ctx context.Context, name string, args map[string]any) (agent.ToolResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.ToolResult{}, ctxErr
	}
	handler, ok := s.handlers[name]
	if !ok {
		return agent.ToolResult{}, agent.ErrUnknownTool
	}
	return handler(ctx, args)
}

// flakyRecorder delegates to a real recorder and fails AppendStep after a
// fixed number of successful writes.
type flakyRecorder struct {
	agent.TraceRecorder
	mu          sync.Mutex
	allowWrites int
}

func (f *flakyRecorder) AppendStep(ctx context.Context, traceID uuid.UUID, step agent.StepInput) (agent.Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowWrites <= 0 {
		return agent.Step{}, errors.New("store write rejected")
	}
	f.allowWrites--
	return f.TraceRecorder.AppendStep(ctx, traceID, step)
}
