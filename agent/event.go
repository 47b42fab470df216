package agent

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// EventType identifies one entry of the consumer-facing event feed. Step
// events mirror the persisted step kinds; start/complete/error frame the run.
type EventType string

const (
	EventTypeStart      EventType = "start"
	EventTypeThought    EventType = "thought"
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeResponse   EventType = "response"
	EventTypeComplete   EventType = "complete"
	EventTypeError      EventType = "error"
)

// ThoughtContent is the content payload of a thought event.
type ThoughtContent struct {
	Thought string `json:"thought"`
}

// Event is one entry of the ordered external event feed. The JSON shape
// matches the live stream wire format: only fields relevant to the event
// type are populated.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Sequence  int            `json:"sequence,omitempty"`
	Content   any            `json:"content,omitempty"`
	Name      string         `json:"name,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Result    string         `json:"result,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	Success   *bool          `json:"success,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// StartEvent opens a run's event feed.
func StartEvent(sessionID, traceID uuid.UUID) Event {
	return Event{
		Type:      EventTypeStart,
		SessionID: sessionID.String(),
		TraceID:   traceID.String(),
	}
}

// ThoughtEvent carries the reasoning text of one committed thought step.
func ThoughtEvent(traceID uuid.UUID, sequence int, thought string) Event {
	return Event{
		Type:     EventTypeThought,
		TraceID:  traceID.String(),
		Sequence: sequence,
		Content:  ThoughtContent{Thought: thought},
	}
}

// ToolCallEvent announces a committed tool_call step.
func ToolCallEvent(traceID uuid.UUID, sequence int, name string, args map[string]any) Event {
	cloned := make(map[string]any, len(args))
	maps.Copy(cloned, args)
	return Event{
		Type:     EventTypeToolCall,
		TraceID:  traceID.String(),
		Sequence: sequence,
		Name:     name,
		Args:     cloned,
	}
}

// ToolResultEvent carries the outcome of a committed tool_result step.
func ToolResultEvent(traceID uuid.UUID, sequence int, name, result string, isError bool) Event {
	return Event{
		Type:     EventTypeToolResult,
		TraceID:  traceID.String(),
		Sequence: sequence,
		Name:     name,
		Result:   result,
		IsError:  isError,
	}
}

// ResponseEvent carries the final answer text.
func ResponseEvent(traceID uuid.UUID, sequence int, content string) Event {
	return Event{
		Type:     EventTypeResponse,
		TraceID:  traceID.String(),
		Sequence: sequence,
		Content:  content,
	}
}

// CompleteEvent closes a successful run's event feed.
func CompleteEvent(traceID uuid.UUID, success bool) Event {
	return Event{
		Type:    EventTypeComplete,
		TraceID: traceID.String(),
		Success: &success,
	}
}

// ErrorEvent closes the event feed of a run that did not reach done.
func ErrorEvent(traceID uuid.UUID, message string) Event {
	return Event{
		Type:    EventTypeError,
		TraceID: traceID.String(),
		Error:   message,
	}
}

// IsTerminalEvent reports whether the event ends a run's feed.
func IsTerminalEvent(event Event) bool {
	return event.Type == EventTypeComplete || event.Type == EventTypeError
}

// ValidateEvent rejects events that cannot be routed or rendered.
func ValidateEvent(event Event) error {
	switch event.Type {
	case EventTypeStart:
		if event.SessionID == "" {
			return fmt.Errorf("%w: start event requires session_id", ErrEventInvalid)
		}
	case EventTypeThought, EventTypeToolCall, EventTypeToolResult, EventTypeResponse:
		if event.Sequence < 1 {
			return fmt.Errorf("%w: %s event requires sequence >= 1", ErrEventInvalid, event.Type)
		}
	case EventTypeComplete:
		if event.Success == nil {
			return fmt.Errorf("%w: complete event requires success", ErrEventInvalid)
		}
	case EventTypeError:
		if event.Error == "" {
			return fmt.Errorf("%w: error event requires a message", ErrEventInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrEventInvalid, event.Type)
	}
	if event.TraceID == "" {
		return fmt.Errorf("%w: trace_id is required", ErrEventInvalid)
	}
	return nil
}

// CloneEvent returns a deep copy of an event.
func CloneEvent(in Event) Event {
	out := in
	if in.Args != nil {
		out.Args = make(map[string]any, len(in.Args))
		maps.Copy(out.Args, in.Args)
	}
	if in.Success != nil {
		success := *in.Success
		out.Success = &success
	}
	return out
}
