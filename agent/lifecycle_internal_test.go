package agent

import (
	"errors"
	"testing"
)

func TestValidateLoopTransition_AllowedPath(t *testing.T) {
	t.Parallel()

	path := []LoopState{
		LoopStateInit,
		LoopStateReasoning,
		LoopStateToolExec,
		LoopStateReasoning,
		LoopStateResponding,
		LoopStateDone,
	}

	state := LoopState("")
	for _, next := range path {
		if err := transitionLoopState(&state, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if state != LoopStateDone {
		t.Fatalf("unexpected final state: %s", state)
	}
}

func TestValidateLoopTransition_ErrorReachableFromAnyNonTerminal(t *testing.T) {
	t.Parallel()

	for _, from := range []LoopState{LoopStateInit, LoopStateReasoning, LoopStateToolExec, LoopStateResponding} {
		if err := validateLoopTransition(from, LoopStateError); err != nil {
			t.Fatalf("%s -> error: %v", from, err)
		}
		if err := validateLoopTransition(from, LoopStateCancelled); err != nil {
			t.Fatalf("%s -> cancelled: %v", from, err)
		}
	}
}

func TestValidateLoopTransition_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from LoopState
		to   LoopState
	}{
		{from: LoopStateInit, to: LoopStateToolExec},
		{from: LoopStateInit, to: LoopStateDone},
		{from: LoopStateToolExec, to: LoopStateResponding},
		{from: LoopStateDone, to: LoopStateReasoning},
		{from: LoopStateError, to: LoopStateReasoning},
		{from: LoopStateCancelled, to: LoopStateError},
	}

	for _, tc := range cases {
		if err := validateLoopTransition(tc.from, tc.to); !errors.Is(err, ErrInvalidLoopTransition) {
			t.Fatalf("%s -> %s: expected ErrInvalidLoopTransition, got %v", tc.from, tc.to, err)
		}
	}
}

func TestValidateLoopTransition_SelfTransitionIsNoop(t *testing.T) {
	t.Parallel()

	if err := validateLoopTransition(LoopStateReasoning, LoopStateReasoning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
