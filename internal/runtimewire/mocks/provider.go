// Package mocks provides a deterministic reasoning provider for running the
// server without a model API key.
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/glassboxlabs/glasstrace/agent"
	"github.com/glassboxlabs/glasstrace/reasoning"
)

// Provider scripts decisions from the latest turn. Arithmetic-looking input
// is routed to the calculator; a calculator observation becomes the final
// answer; anything else is answered directly.
type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

var _ reasoning.Provider = (*Provider)(nil)

func (p *Provider) Generate(ctx context.Context, req reasoning.ProviderRequest) (reasoning.ProviderResponse, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return reasoning.ProviderResponse{}, ctxErr
	}

	decision := scriptDecision(req.Contents)
	encoded, err := json.Marshal(decision)
	if err != nil {
		return reasoning.ProviderResponse{}, err
	}

	return reasoning.ProviderResponse{
		Text: string(encoded),
		Usage: agent.TokenUsage{
			InputTokens:  promptTokenEstimate(req.Contents),
			OutputTokens: len(encoded) / 4,
		},
	}, nil
}

func scriptDecision(contents []reasoning.Turn) agent.Decision {
	latestUser := latestUserTurn(contents)

	if observation, ok := strings.CutPrefix(latestUser, "Observation (calculator): "); ok {
		return agent.Decision{
			Thought: "The calculator returned a result, so I can answer now.",
			Action:  agent.ActionFinalAnswer,
			Args:    map[string]any{"answer": fmt.Sprintf("The result is %s.", observation)},
		}
	}

	if looksArithmetic(latestUser) {
		return agent.Decision{
			Thought: "This looks like arithmetic, so I should use the calculator.",
			Action:  "calculator",
			Args:    map[string]any{"expression": latestUser},
		}
	}

	return agent.Decision{
		Thought: "No tool is needed for this input.",
		Action:  agent.ActionFinalAnswer,
		Args:    map[string]any{"answer": fmt.Sprintf("mock answer to %q", latestUser)},
	}
}

func latestUserTurn(contents []reasoning.Turn) string {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == reasoning.RoleUser {
			return contents[i].Text
		}
	}
	return ""
}

func looksArithmetic(input string) bool {
	hasDigit := strings.ContainsAny(input, "0123456789")
	hasOperator := strings.ContainsAny(input, "+-*/")
	return hasDigit && hasOperator
}

func promptTokenEstimate(contents []reasoning.Turn) int {
	total := 0
	for _, turn := range contents {
		total += len(turn.Text) / 4
	}
	return total
}
