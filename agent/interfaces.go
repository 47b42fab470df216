package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Exchange is one completed prior run in the bounded history window: the
// literal user input and final output text, so references like "the previous
// result" resolve inside the context the Reasoner sees.
type Exchange struct {
	UserInput   string
	FinalOutput string
}

// Observation is one transcript entry of the current run fed back into the
// next reasoning call: the model's own decisions and the tool results they
// produced.
type Observation struct {
	Kind    StepKind
	Name    string
	Content string
}

// DecisionRequest carries the accumulated context for one reasoning
// round-trip: a fixed system prompt, the bounded window of prior runs, and
// the current run's transcript so far.
type DecisionRequest struct {
	SystemPrompt string
	Tools        []ToolDefinition
	History      []Exchange
	UserInput    string
	Observations []Observation
}

// DecisionOutcome pairs the parsed decision with the usage and cost of the
// provider call(s) that produced it, attached to whichever step results.
type DecisionOutcome struct {
	Decision Decision
	Usage    TokenUsage
	CostUSD  float64
	Retries  int
}

// Reasoner abstracts one round-trip to the language-model provider.
type Reasoner interface {
	Decide(ctx context.Context, req DecisionRequest) (DecisionOutcome, error)
}

// ToolDefinition declares a callable capability exposed to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolResult is the normalized output of a tool invocation. Recoverable
// domain failures (bad arguments, division by zero) arrive here as textual
// error results with IsError set, never as Go errors, so the loop can feed
// them back for self-correction.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// ToolExecutor resolves and executes tool invocations. Invoke returns a Go
// error only for infrastructure failures such as context cancellation or an
// unregistered tool name.
type ToolExecutor interface {
	Definitions() []ToolDefinition
	Invoke(ctx context.Context, name string, args map[string]any) (ToolResult, error)
}

// BeginTraceInput opens a trace. The prompt and model-config snapshots are
// captured exactly once here, at run start. TraceID, when set, pre-assigns
// the trace identifier; uuid.Nil leaves assignment to the recorder.
type BeginTraceInput struct {
	TraceID              uuid.UUID
	SessionID            uuid.UUID
	UserInput            string
	SystemPromptSnapshot string
	ModelConfigSnapshot  map[string]any
}

// StepInput is one append into a trace. SequenceOrder is assigned by the
// recorder, monotonically per trace, never reused.
type StepInput struct {
	Kind          StepKind
	Name          string
	InputPayload  map[string]any
	OutputPayload map[string]any
	LatencyMS     int64
	Tokens        int
	CostUSD       float64
	IsError       bool
	ErrorMessage  string
	StartedAt     time.Time
	CompletedAt   time.Time
}

// FinalizeInput closes a trace with its terminal disposition.
type FinalizeInput struct {
	FinalOutput  string
	Status       TraceStatus
	ErrorMessage string
}

// TraceRecorder persists one trace and its ordered steps as the loop runs.
// Step writes are committed before being surfaced externally: durability
// precedes visibility. Finalize succeeds at most once per trace and computes
// token/cost aggregates by summing committed steps.
type TraceRecorder interface {
	Begin(ctx context.Context, input BeginTraceInput) (Trace, error)
	AppendStep(ctx context.Context, traceID uuid.UUID, step StepInput) (Step, error)
	Finalize(ctx context.Context, traceID uuid.UUID, input FinalizeInput) (Trace, error)
	RecentTraces(ctx context.Context, sessionID uuid.UUID, limit int) ([]Trace, error)
}

// EventSink receives committed run events in sequence order.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}
