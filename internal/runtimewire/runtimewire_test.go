package runtimewire_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/glassboxlabs/glasstrace/agent"
	"github.com/glassboxlabs/glasstrace/internal/config"
	"github.com/glassboxlabs/glasstrace/internal/runtimewire"
)

func defaultConfig(t *testing.T) config.Config {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.GeminiAPIKey = ""
	return cfg
}

func TestNew_ComposesRuntime(t *testing.T) {
	t.Parallel()

	runtime, err := runtimewire.New(defaultConfig(t))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if runtime.Loop == nil || runtime.TraceStore == nil || runtime.Publisher == nil || runtime.Replay == nil {
		t.Fatalf("incomplete runtime: %+v", runtime)
	}
}

func TestRuntime_EndToEndRunWithMockProvider(t *testing.T) {
	t.Parallel()

	runtime, err := runtimewire.New(defaultConfig(t))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}

	sessionID := uuid.New()
	result, err := runtime.Loop.Run(context.Background(), agent.RunInput{
		SessionID: sessionID,
		UserInput: "2 + 2",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	trace := result.Trace
	if trace.Status != agent.TraceStatusCompleted {
		t.Fatalf("unexpected status: %s", trace.Status)
	}
	if trace.FinalOutput != "The result is 4." {
		t.Fatalf("unexpected output: %q", trace.FinalOutput)
	}
	if trace.SystemPromptSnapshot == "" {
		t.Fatal("expected system prompt snapshot")
	}
	if trace.ModelConfigSnapshot["model"] != "gemini-2.0-flash" {
		t.Fatalf("unexpected model snapshot: %v", trace.ModelConfigSnapshot)
	}

	steps, err := runtime.TraceStore.Steps(context.Background(), trace.ID)
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	// thought, tool_call, tool_result, thought, response
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
}

func TestNewWithLogger_RequiresLogger(t *testing.T) {
	t.Parallel()

	if _, err := runtimewire.NewWithLogger(defaultConfig(t), nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
