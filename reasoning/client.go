// Package reasoning implements the Reasoning Client: one round-trip to the
// language-model provider, decision parsing at the boundary, bounded retries
// for malformed output, and token/cost accounting per call.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/glassboxlabs/glasstrace/agent"
)

// DefaultMaxParseRetries is the corrective-retry budget for provider replies
// that do not parse into the decision contract.
const DefaultMaxParseRetries = 2

// Turn is one entry of the provider conversation.
type Turn struct {
	Role string
	Text string
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ProviderRequest is the minimal provider input contract.
type ProviderRequest struct {
	Model        string
	SystemPrompt string
	Contents     []Turn
	Temperature  float64
}

// ProviderResponse is the raw provider reply plus its token accounting.
type ProviderResponse struct {
	Text  string
	Usage agent.TokenUsage
}

// Provider is the remote language-model service. It stays an external
// collaborator: adapters live in subpackages, mocks in the wiring layer.
type Provider interface {
	Generate(ctx context.Context, req ProviderRequest) (ProviderResponse, error)
}

// Config tunes one reasoning client.
type Config struct {
	Model           string
	Temperature     float64
	MaxParseRetries int
	Pricing         PricingTable
}

func (c Config) withDefaults() Config {
	if c.MaxParseRetries <= 0 {
		c.MaxParseRetries = DefaultMaxParseRetries
	}
	if c.Pricing == nil {
		c.Pricing = DefaultPricing()
	}
	return c
}

// Client turns accumulated run context into one validated Decision.
type Client struct {
	provider Provider
	logger   *slog.Logger
	cfg      Config
}

var _ agent.Reasoner = (*Client)(nil)

func NewClient(provider Provider, cfg Config, logger *slog.Logger) (*Client, error) {
	if provider == nil {
		return nil, errors.New("new reasoning client: provider is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("new reasoning client: model is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		provider: provider,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}, nil
}

// Decide runs one reasoning round-trip. Malformed provider output is retried
// with a corrective instruction appended; usage and cost accumulate across
// attempts and attach to whichever step this call produces.
func (c *Client) Decide(ctx context.Context, req agent.DecisionRequest) (agent.DecisionOutcome, error) {
	contents := buildContents(req)
	usage := agent.TokenUsage{}

	attempts := 1 + c.cfg.MaxParseRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := c.provider.Generate(ctx, ProviderRequest{
			Model:        c.cfg.Model,
			SystemPrompt: req.SystemPrompt,
			Contents:     contents,
			Temperature:  c.cfg.Temperature,
		})
		if err != nil {
			return agent.DecisionOutcome{}, fmt.Errorf("provider call: %w", err)
		}
		usage = usage.Add(response.Usage)

		decision, parseErr := agent.ParseDecision(response.Text)
		if parseErr == nil {
			return agent.DecisionOutcome{
				Decision: decision,
				Usage:    usage,
				CostUSD:  c.cfg.Pricing.Cost(c.cfg.Model, usage),
				Retries:  attempt - 1,
			}, nil
		}
		lastErr = parseErr
		c.logger.Debug("malformed decision output",
			slog.Int("attempt", attempt),
			slog.Any("error", parseErr),
		)
		if attempt == attempts {
			break
		}
		contents = append(contents,
			Turn{Role: RoleModel, Text: response.Text},
			Turn{Role: RoleUser, Text: correctiveInstruction(parseErr)},
		)
	}

	return agent.DecisionOutcome{Usage: usage}, fmt.Errorf(
		"decision parse failed after %d attempts: %w", attempts, lastErr)
}

func correctiveInstruction(parseErr error) string {
	return fmt.Sprintf(
		"Your previous reply was rejected: %v. Respond again with exactly one JSON object "+
			"containing the fields \"thought\", \"action\", and \"args\" and nothing else.",
		parseErr,
	)
}

// buildContents renders the decision request as a provider conversation:
// prior runs as user/model exchanges, then the current input, then the
// current run's transcript.
func buildContents(req agent.DecisionRequest) []Turn {
	contents := make([]Turn, 0, 2*len(req.History)+1+len(req.Observations))
	for _, exchange := range req.History {
		contents = append(contents,
			Turn{Role: RoleUser, Text: exchange.UserInput},
			Turn{Role: RoleModel, Text: exchange.FinalOutput},
		)
	}
	contents = append(contents, Turn{Role: RoleUser, Text: req.UserInput})

	for _, observation := range req.Observations {
		switch observation.Kind {
		case agent.StepKindToolResult:
			contents = append(contents, Turn{
				Role: RoleUser,
				Text: fmt.Sprintf("Observation (%s): %s", observation.Name, observation.Content),
			})
		case agent.StepKindToolCall:
			contents = append(contents, Turn{
				Role: RoleModel,
				Text: fmt.Sprintf("Calling %s with %s", observation.Name, observation.Content),
			})
		default:
			contents = append(contents, Turn{Role: RoleModel, Text: observation.Content})
		}
	}
	return contents
}
