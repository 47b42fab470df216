package agent

import "fmt"

// LoopState names one phase of the reasoning/acting state machine. The
// iteration bound and the terminal states make termination explicit rather
// than implicit control flow.
type LoopState string

const (
	LoopStateInit       LoopState = "init"
	LoopStateReasoning  LoopState = "reasoning"
	LoopStateToolExec   LoopState = "tool_exec"
	LoopStateResponding LoopState = "responding"
	LoopStateDone       LoopState = "done"
	LoopStateError      LoopState = "error"
	LoopStateCancelled  LoopState = "cancelled"
)

func isTerminalLoopState(state LoopState) bool {
	switch state {
	case LoopStateDone, LoopStateError, LoopStateCancelled:
		return true
	default:
		return false
	}
}

func validateLoopTransition(from, to LoopState) error {
	if from == to {
		return nil
	}
	// ERROR and CANCELLED are reachable from every non-terminal state.
	if (to == LoopStateError || to == LoopStateCancelled) && !isTerminalLoopState(from) {
		return nil
	}
	allowed, ok := allowedLoopTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source state %q", ErrInvalidLoopTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidLoopTransition, from, to)
	}
	return nil
}

func transitionLoopState(state *LoopState, to LoopState) error {
	if err := validateLoopTransition(*state, to); err != nil {
		return err
	}
	*state = to
	return nil
}

var allowedLoopTransitions = map[LoopState]map[LoopState]struct{}{
	"": {
		LoopStateInit: {},
	},
	LoopStateInit: {
		LoopStateReasoning: {},
	},
	LoopStateReasoning: {
		LoopStateToolExec:   {},
		LoopStateResponding: {},
	},
	LoopStateToolExec: {
		LoopStateReasoning: {},
	},
	LoopStateResponding: {
		LoopStateDone: {},
	},
	LoopStateDone:      {},
	LoopStateError:     {},
	LoopStateCancelled: {},
}
