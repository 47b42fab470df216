// Package runtimewire composes the agent runtime for the server: tools,
// reasoning, trace store, event fanout, and the replay coordinator.
package runtimewire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/glassboxlabs/glasstrace/agent"
	"github.com/glassboxlabs/glasstrace/internal/config"
	"github.com/glassboxlabs/glasstrace/internal/runtimewire/mocks"
	"github.com/glassboxlabs/glasstrace/reasoning"
	"github.com/glassboxlabs/glasstrace/reasoning/geminihttp"
	"github.com/glassboxlabs/glasstrace/replay"
	"github.com/glassboxlabs/glasstrace/streaming"
	"github.com/glassboxlabs/glasstrace/tooling/calculator"
	"github.com/glassboxlabs/glasstrace/tooling/registry"
	"github.com/glassboxlabs/glasstrace/tracestore/inmem"
)

// Runtime contains the composed runtime dependencies for the server.
type Runtime struct {
	Loop       *agent.Loop
	TraceStore *inmem.Store
	Publisher  *streaming.Publisher
	Replay     *replay.Coordinator
	Profile    config.Profile
}

// New composes a runtime with a discarding logger, for tests.
func New(cfg config.Config) (*Runtime, error) {
	return NewWithLogger(cfg, slog.New(slog.DiscardHandler))
}

// NewWithLogger composes the runtime. With GEMINI_API_KEY set the reasoning
// provider is the live Gemini API; without it the scripted mock provider
// keeps the server fully runnable offline.
func NewWithLogger(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		return nil, errors.New("new runtime: nil logger")
	}

	tools := registry.New()
	if err := tools.Register(calculator.Name, calculator.Handler, calculator.Definition()); err != nil {
		return nil, fmt.Errorf("new runtime tools: %w", err)
	}

	provider, err := selectProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("new runtime provider: %w", err)
	}

	reasoner, err := reasoning.NewClient(provider, reasoning.Config{
		Model:       cfg.Profile.Model,
		Temperature: cfg.Profile.Temperature,
		Pricing:     cfg.Profile.Pricing,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("new runtime reasoner: %w", err)
	}

	store := inmem.New()
	publisher := streaming.NewPublisher(streaming.DefaultSubscriberBuffer, logger)
	fanout := newFanoutSink(publisher, newRuntimeEventLogSink(logger))

	systemPrompt := cfg.Profile.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = reasoning.BuildSystemPrompt(tools.Definitions())
	}

	loop, err := agent.NewLoop(agent.LoopDependencies{
		Reasoner: reasoner,
		Tools:    tools,
		Recorder: store,
		Events:   fanout,
		Logger:   logger,
	}, agent.LoopConfig{
		MaxIterations: cfg.Profile.MaxIterations,
		RunTimeout:    cfg.Profile.RunTimeout(),
		HistoryWindow: cfg.Profile.HistoryWindow,
		SystemPrompt:  systemPrompt,
		ModelConfig: map[string]any{
			"model":       cfg.Profile.Model,
			"temperature": cfg.Profile.Temperature,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new runtime loop: %w", err)
	}

	replayCoordinator, err := replay.NewCoordinator(store, loop, logger)
	if err != nil {
		return nil, fmt.Errorf("new runtime replay: %w", err)
	}

	return &Runtime{
		Loop:       loop,
		TraceStore: store,
		Publisher:  publisher,
		Replay:     replayCoordinator,
		Profile:    cfg.Profile,
	}, nil
}

func selectProvider(cfg config.Config) (reasoning.Provider, error) {
	if cfg.GeminiAPIKey == "" {
		return mocks.NewProvider(), nil
	}
	adapter, err := geminihttp.New(geminihttp.Config{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		return nil, err
	}
	// Transient transport failures retry here; decision parse failures are
	// the client's corrective-turn concern.
	return reasoning.WrapProvider(adapter, reasoning.RetryConfig{MaxAttempts: 3}), nil
}

type fanoutSink struct {
	sinks []agent.EventSink
}

func newFanoutSink(sinks ...agent.EventSink) fanoutSink {
	filtered := make([]agent.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return fanoutSink{sinks: filtered}
}

func (s fanoutSink) Publish(ctx context.Context, event agent.Event) error {
	var result error
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			result = errors.Join(result, err)
		}
	}
	return result
}
