package agent_test

import (
	"errors"
	"testing"

	"github.com/glassboxlabs/glasstrace/agent"
)

func TestParseDecision_Valid(t *testing.T) {
	t.Parallel()

	decision, err := agent.ParseDecision(`{"thought":"use the tool","action":"calculator","args":{"expression":"2 + 2"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Thought != "use the tool" {
		t.Fatalf("unexpected thought: %q", decision.Thought)
	}
	if decision.Action != "calculator" {
		t.Fatalf("unexpected action: %q", decision.Action)
	}
	if decision.Args["expression"] != "2 + 2" {
		t.Fatalf("unexpected args: %v", decision.Args)
	}
}

func TestParseDecision_StripsCodeFence(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"thought\":\"done\",\"action\":\"final_answer\",\"args\":{\"answer\":\"4\"}}\n```"
	decision, err := agent.ParseDecision(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.IsFinalAnswer() {
		t.Fatalf("expected final answer, got action %q", decision.Action)
	}
	if decision.FinalAnswerText() != "4" {
		t.Fatalf("unexpected answer: %q", decision.FinalAnswerText())
	}
}

func TestParseDecision_MissingArgsDefaultsEmpty(t *testing.T) {
	t.Parallel()

	decision, err := agent.ParseDecision(`{"thought":"no args","action":"final_answer"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Args == nil {
		t.Fatal("expected non-nil args")
	}
}

func TestParseDecision_Malformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace", raw: "   \n\t"},
		{name: "prose", raw: "I think the answer is 4."},
		{name: "missing thought", raw: `{"action":"calculator","args":{}}`},
		{name: "missing action", raw: `{"thought":"hmm","args":{}}`},
		{name: "blank action", raw: `{"thought":"hmm","action":"  "}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := agent.ParseDecision(tc.raw)
			if !errors.Is(err, agent.ErrDecisionMalformed) {
				t.Fatalf("expected ErrDecisionMalformed, got %v", err)
			}
		})
	}
}

func TestDecision_FinalAnswerTextFallsBackToThought(t *testing.T) {
	t.Parallel()

	decision := agent.Decision{
		Thought: "the answer is 4",
		Action:  agent.ActionFinalAnswer,
		Args:    map[string]any{},
	}
	if got := decision.FinalAnswerText(); got != "the answer is 4" {
		t.Fatalf("unexpected fallback answer: %q", got)
	}
}

func TestTokenUsage_AddAndTotal(t *testing.T) {
	t.Parallel()

	usage := agent.TokenUsage{InputTokens: 10, OutputTokens: 5}
	usage = usage.Add(agent.TokenUsage{InputTokens: 3, OutputTokens: 2})
	if usage.InputTokens != 13 || usage.OutputTokens != 7 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage.Total() != 20 {
		t.Fatalf("unexpected total: %d", usage.Total())
	}
}

func TestCloneDecision_DeepCopiesArgs(t *testing.T) {
	t.Parallel()

	original := agent.Decision{
		Thought: "t",
		Action:  "calculator",
		Args:    map[string]any{"expression": "1 + 1"},
	}
	cloned := agent.CloneDecision(original)
	cloned.Args["expression"] = "mutated"
	if original.Args["expression"] != "1 + 1" {
		t.Fatalf("clone mutated original: %v", original.Args)
	}
}
