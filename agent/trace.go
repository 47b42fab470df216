package agent

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// TraceStatus captures the terminal disposition of a run for persistence.
// A trace is "running" from Begin until Finalize and never stays there:
// every run ends in exactly one of the terminal statuses.
type TraceStatus string

const (
	TraceStatusRunning   TraceStatus = "running"
	TraceStatusCompleted TraceStatus = "completed"
	TraceStatusFailed    TraceStatus = "failed"
	TraceStatusCancelled TraceStatus = "cancelled"
	TraceStatusTimeout   TraceStatus = "timeout"
)

// IsTerminalTraceStatus reports whether a status ends a trace.
func IsTerminalTraceStatus(status TraceStatus) bool {
	switch status {
	case TraceStatusCompleted, TraceStatusFailed, TraceStatusCancelled, TraceStatusTimeout:
		return true
	default:
		return false
	}
}

// Trace is one full execution run of the agent for a single user input.
// FinalOutput and CompletedAt are set together, exactly once, on the
// transition to a terminal status. Aggregates are computed from the
// committed steps at finalize time, never tracked incrementally.
type Trace struct {
	ID                   uuid.UUID      `json:"id"`
	SessionID            uuid.UUID      `json:"session_id"`
	UserInput            string         `json:"user_input"`
	FinalOutput          string         `json:"final_output,omitempty"`
	TotalTokens          int            `json:"total_tokens"`
	TotalCostUSD         float64        `json:"total_cost"`
	LatencyMS            int64          `json:"latency_ms"`
	IsSuccessful         bool           `json:"is_successful"`
	ErrorMessage         string         `json:"error_message,omitempty"`
	Status               TraceStatus    `json:"status"`
	SystemPromptSnapshot string         `json:"system_prompt_snapshot,omitempty"`
	ModelConfigSnapshot  map[string]any `json:"model_config_snapshot,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	CompletedAt          time.Time      `json:"completed_at,omitzero"`
}

// CloneTrace returns a deep copy safe for in-memory stores.
func CloneTrace(in Trace) Trace {
	out := in
	if in.ModelConfigSnapshot != nil {
		out.ModelConfigSnapshot = make(map[string]any, len(in.ModelConfigSnapshot))
		maps.Copy(out.ModelConfigSnapshot, in.ModelConfigSnapshot)
	}
	return out
}

// StepKind classifies one atomic event inside a trace.
type StepKind string

const (
	StepKindThought    StepKind = "thought"
	StepKindToolCall   StepKind = "tool_call"
	StepKindToolResult StepKind = "tool_result"
	StepKindResponse   StepKind = "response"
)

// ValidStepKind reports whether kind is one of the persisted step kinds.
func ValidStepKind(kind StepKind) bool {
	switch kind {
	case StepKindThought, StepKindToolCall, StepKindToolResult, StepKindResponse:
		return true
	default:
		return false
	}
}

// Step is one atomic recorded event within a trace. Steps are append-only:
// once written, SequenceOrder, Kind, and payloads never change.
type Step struct {
	ID            uuid.UUID      `json:"id"`
	TraceID       uuid.UUID      `json:"trace_id"`
	SequenceOrder int            `json:"sequence_order"`
	Kind          StepKind       `json:"step_type"`
	Name          string         `json:"step_name,omitempty"`
	InputPayload  map[string]any `json:"input_payload,omitempty"`
	OutputPayload map[string]any `json:"output_payload,omitempty"`
	LatencyMS     int64          `json:"latency_ms"`
	Tokens        int            `json:"tokens"`
	CostUSD       float64        `json:"cost_usd"`
	IsError       bool           `json:"is_error"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   time.Time      `json:"completed_at,omitzero"`
}

// CloneStep returns a deep copy suitable for isolation across component boundaries.
func CloneStep(in Step) Step {
	out := in
	if in.InputPayload != nil {
		out.InputPayload = make(map[string]any, len(in.InputPayload))
		maps.Copy(out.InputPayload, in.InputPayload)
	}
	if in.OutputPayload != nil {
		out.OutputPayload = make(map[string]any, len(in.OutputPayload))
		maps.Copy(out.OutputPayload, in.OutputPayload)
	}
	return out
}

// CloneSteps returns deep copies of all steps.
func CloneSteps(in []Step) []Step {
	out := make([]Step, len(in))
	for i := range in {
		out[i] = CloneStep(in[i])
	}
	return out
}
