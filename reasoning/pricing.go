package reasoning

import "github.com/glassboxlabs/glasstrace/agent"

// ModelRate prices one model in USD per million tokens.
type ModelRate struct {
	InputPerMTok  float64 `yaml:"input_per_mtok" json:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok" json:"output_per_mtok"`
}

// PricingTable maps model names to their token rates. Unknown models cost
// zero rather than guessing.
type PricingTable map[string]ModelRate

// DefaultPricing is the bundled Gemini rate card.
func DefaultPricing() PricingTable {
	return PricingTable{
		"gemini-2.0-flash-exp": {InputPerMTok: 0, OutputPerMTok: 0},
		"gemini-2.0-flash":     {InputPerMTok: 0.075, OutputPerMTok: 0.30},
		"gemini-1.5-flash":     {InputPerMTok: 0.075, OutputPerMTok: 0.30},
		"gemini-1.5-pro":       {InputPerMTok: 1.25, OutputPerMTok: 5.00},
		"gemini-2.5-flash":     {InputPerMTok: 0.075, OutputPerMTok: 0.30},
	}
}

// Cost computes the monetary cost of one call's usage for a model.
func (t PricingTable) Cost(model string, usage agent.TokenUsage) float64 {
	rate, ok := t[model]
	if !ok {
		return 0
	}
	return float64(usage.InputTokens)*rate.InputPerMTok/1_000_000 +
		float64(usage.OutputTokens)*rate.OutputPerMTok/1_000_000
}
