package agent

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// ActionFinalAnswer is the reserved action name that ends a run. A decision
// naming it as a tool is routed to the responding branch, never treated as
// an unknown tool.
const ActionFinalAnswer = "final_answer"

// Decision is the structured output of one reasoning call. It is transient:
// produced by the Reasoner, consumed immediately by the loop, and converted
// into one or more persisted steps.
type Decision struct {
	Thought string         `json:"thought"`
	Action  string         `json:"action"`
	Args    map[string]any `json:"args"`
}

// IsFinalAnswer reports whether the decision ends the run.
func (d Decision) IsFinalAnswer() bool {
	return d.Action == ActionFinalAnswer
}

// FinalAnswerText extracts the answer text from a final_answer decision.
// Providers are instructed to put it in args.answer; the thought text is
// the fallback when they do not.
func (d Decision) FinalAnswerText() string {
	if answer, ok := d.Args["answer"].(string); ok && strings.TrimSpace(answer) != "" {
		return answer
	}
	return d.Thought
}

// CloneDecision returns a deep copy of a decision.
func CloneDecision(in Decision) Decision {
	out := in
	if in.Args != nil {
		out.Args = make(map[string]any, len(in.Args))
		maps.Copy(out.Args, in.Args)
	}
	return out
}

// ParseDecision parses a provider reply into a Decision at the boundary.
// Malformed output is rejected here so branching logic downstream only ever
// sees the three required fields.
func ParseDecision(raw string) (Decision, error) {
	trimmed := stripCodeFence(strings.TrimSpace(raw))
	if trimmed == "" {
		return Decision{}, fmt.Errorf("%w: empty reply", ErrDecisionMalformed)
	}

	var decision Decision
	if err := json.Unmarshal([]byte(trimmed), &decision); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrDecisionMalformed, err)
	}
	if strings.TrimSpace(decision.Thought) == "" {
		return Decision{}, fmt.Errorf("%w: missing required field %q", ErrDecisionMalformed, "thought")
	}
	if strings.TrimSpace(decision.Action) == "" {
		return Decision{}, fmt.Errorf("%w: missing required field %q", ErrDecisionMalformed, "action")
	}
	if decision.Args == nil {
		decision.Args = map[string]any{}
	}
	return decision, nil
}

// stripCodeFence removes a surrounding markdown fence. Providers wrap JSON
// in ```json blocks often enough that rejecting them would waste a retry.
func stripCodeFence(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	body := strings.TrimPrefix(raw, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// TokenUsage is the per-call token accounting reported by the provider.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total is the combined token count attached to the step the call produced.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add merges usage from an additional provider round-trip, e.g. a parse retry.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}
