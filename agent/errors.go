package agent

import "errors"

var (
	// ErrDecisionMalformed is returned when a provider reply does not parse
	// into the {thought, action, args} contract after the retry budget.
	ErrDecisionMalformed = errors.New("decision output is malformed")
	// ErrUnknownTool is returned when the model requests an unregistered tool
	// twice in a row. The first occurrence is fed back for self-correction.
	ErrUnknownTool = errors.New("unknown tool requested")
	// ErrLoopBudgetExceeded is returned when the run reaches its iteration
	// bound without producing a final answer.
	ErrLoopBudgetExceeded = errors.New("loop exceeded max iterations")
	// ErrRunTimeout marks a run that exceeded its whole-run deadline.
	ErrRunTimeout = errors.New("run exceeded timeout")
	// ErrTraceNotFound is returned by trace stores when a trace ID is unknown.
	ErrTraceNotFound = errors.New("trace not found")
	// ErrTraceFinalized is returned on any write to an already finalized trace.
	ErrTraceFinalized = errors.New("trace is already finalized")
	// ErrInvalidLoopTransition rejects a loop state change not in the table.
	ErrInvalidLoopTransition = errors.New("invalid loop state transition")
	// ErrSessionRequired rejects a run input without an owning session.
	ErrSessionRequired = errors.New("session id is required")
	// ErrUserInputRequired rejects a run input with no user text.
	ErrUserInputRequired = errors.New("user input is required")
	// ErrEventInvalid rejects a stream event that fails validation.
	ErrEventInvalid = errors.New("event is invalid")
)
