package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxIterations bounds the REASONING/TOOL_EXEC cycles of one run.
	DefaultMaxIterations = 10
	// DefaultRunTimeout bounds the wall clock of one run.
	DefaultRunTimeout = 300 * time.Second
	// DefaultHistoryWindow is the number of prior traces seeding multi-turn context.
	DefaultHistoryWindow = 5
)

// LoopConfig tunes one loop instance. The system prompt and model config are
// snapshotted onto every trace the loop starts.
type LoopConfig struct {
	MaxIterations int
	RunTimeout    time.Duration
	HistoryWindow int
	SystemPrompt  string
	ModelConfig   map[string]any
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	return c
}

// LoopDependencies wires the collaborating services into the loop.
type LoopDependencies struct {
	Reasoner Reasoner
	Tools    ToolExecutor
	Recorder TraceRecorder
	Events   EventSink
	Logger   *slog.Logger
}

// Loop drives the bounded Observe -> Decide -> Act cycle. The loop itself
// owns no persisted state: all durable state lives in trace and step
// records, so each invocation is independent and restartable.
type Loop struct {
	reasoner Reasoner
	tools    ToolExecutor
	recorder TraceRecorder
	events   EventSink
	logger   *slog.Logger
	cfg      LoopConfig
}

func NewLoop(deps LoopDependencies, cfg LoopConfig) (*Loop, error) {
	if deps.Reasoner == nil {
		return nil, errors.New("new loop: reasoner is required")
	}
	if deps.Tools == nil {
		return nil, errors.New("new loop: tool executor is required")
	}
	if deps.Recorder == nil {
		return nil, errors.New("new loop: trace recorder is required")
	}
	if deps.Events == nil {
		deps.Events = noopEventSink{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		reasoner: deps.Reasoner,
		tools:    deps.Tools,
		recorder: deps.Recorder,
		events:   deps.Events,
		logger:   deps.Logger,
		cfg:      cfg.withDefaults(),
	}, nil
}

// RunInput identifies one run: the owning session and the user text.
// TraceID optionally pre-assigns the trace identifier so a caller can follow
// exactly its own run on a shared event feed; uuid.Nil lets the recorder
// assign one.
type RunInput struct {
	TraceID   uuid.UUID
	SessionID uuid.UUID
	UserInput string
}

// RunResult carries the finalized trace back to the caller.
type RunResult struct {
	Trace Trace
}

// Run executes one full reasoning/acting run. Every transition is committed
// through the recorder before it is published to the event sink, and the
// trace always reaches a terminal status: completed, failed, cancelled, or
// timeout.
func (l *Loop) Run(ctx context.Context, input RunInput) (RunResult, error) {
	if input.SessionID == uuid.Nil {
		return RunResult{}, ErrSessionRequired
	}
	if strings.TrimSpace(input.UserInput) == "" {
		return RunResult{}, ErrUserInputRequired
	}

	runCtx, cancel := context.WithTimeoutCause(ctx, l.cfg.RunTimeout, ErrRunTimeout)
	defer cancel()

	state := LoopState("")
	if err := transitionLoopState(&state, LoopStateInit); err != nil {
		return RunResult{}, err
	}

	// The history window is read exactly once, here: the run's context is a
	// consistent snapshot, not re-read mid-run.
	history, err := l.loadHistory(runCtx, input.SessionID)
	if err != nil {
		return RunResult{}, fmt.Errorf("load history: %w", err)
	}

	trace, err := l.recorder.Begin(runCtx, BeginTraceInput{
		TraceID:              input.TraceID,
		SessionID:            input.SessionID,
		UserInput:            input.UserInput,
		SystemPromptSnapshot: l.cfg.SystemPrompt,
		ModelConfigSnapshot:  l.cfg.ModelConfig,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("begin trace: %w", err)
	}
	l.publish(runCtx, StartEvent(input.SessionID, trace.ID))
	l.logger.Debug("run started",
		slog.String("trace_id", trace.ID.String()),
		slog.String("session_id", input.SessionID.String()),
	)

	definitions := l.tools.Definitions()
	toolIndex := indexToolDefinitions(definitions)
	req := DecisionRequest{
		SystemPrompt: l.cfg.SystemPrompt,
		Tools:        definitions,
		History:      history,
		UserInput:    input.UserInput,
	}

	if err := transitionLoopState(&state, LoopStateReasoning); err != nil {
		return l.failRun(runCtx, &state, trace, err)
	}

	unknownStreak := 0
	for iteration := 1; iteration <= l.cfg.MaxIterations; iteration++ {
		// Cooperative cancellation and the whole-run timeout are checked
		// between cycles.
		if runCtx.Err() != nil {
			return l.abortRun(runCtx, &state, trace, context.Cause(runCtx))
		}

		decideStart := time.Now()
		outcome, decideErr := l.reasoner.Decide(runCtx, req)
		decideEnd := time.Now()
		if decideErr != nil {
			if cause := cancellationCause(runCtx, decideErr); cause != nil {
				return l.abortRun(runCtx, &state, trace, cause)
			}
			return l.failRun(runCtx, &state, trace, fmt.Errorf("reasoning: %w", decideErr))
		}
		decision := outcome.Decision

		thoughtStep, err := l.recorder.AppendStep(sideEffectContext(runCtx), trace.ID, StepInput{
			Kind:          StepKindThought,
			Name:          "reasoning",
			OutputPayload: map[string]any{"thought": decision.Thought},
			LatencyMS:     decideEnd.Sub(decideStart).Milliseconds(),
			Tokens:        outcome.Usage.Total(),
			CostUSD:       outcome.CostUSD,
			StartedAt:     decideStart,
			CompletedAt:   decideEnd,
		})
		if err != nil {
			return l.abandonRun(runCtx, &state, trace, fmt.Errorf("append thought step: %w", err))
		}
		l.publish(runCtx, ThoughtEvent(trace.ID, thoughtStep.SequenceOrder, decision.Thought))
		req.Observations = append(req.Observations, Observation{
			Kind:    StepKindThought,
			Content: decision.Thought,
		})

		if decision.IsFinalAnswer() {
			return l.respond(runCtx, &state, trace, decision)
		}

		if _, known := toolIndex[decision.Action]; !known {
			unknownStreak++
			if unknownStreak >= 2 {
				return l.failRun(runCtx, &state, trace,
					fmt.Errorf("%w: %q requested twice in a row", ErrUnknownTool, decision.Action))
			}
			// One free self-correction attempt: the explicit error
			// observation goes back into context and costs one iteration.
			req.Observations = append(req.Observations, Observation{
				Kind:    StepKindToolResult,
				Name:    decision.Action,
				Content: unknownToolObservation(decision.Action, definitions),
			})
			continue
		}
		unknownStreak = 0

		if err := transitionLoopState(&state, LoopStateToolExec); err != nil {
			return l.failRun(runCtx, &state, trace, err)
		}

		callStart := time.Now()
		callStep, err := l.recorder.AppendStep(sideEffectContext(runCtx), trace.ID, StepInput{
			Kind:         StepKindToolCall,
			Name:         decision.Action,
			InputPayload: decision.Args,
			StartedAt:    callStart,
			CompletedAt:  callStart,
		})
		if err != nil {
			return l.abandonRun(runCtx, &state, trace, fmt.Errorf("append tool_call step: %w", err))
		}
		l.publish(runCtx, ToolCallEvent(trace.ID, callStep.SequenceOrder, decision.Action, decision.Args))
		req.Observations = append(req.Observations, Observation{
			Kind:    StepKindToolCall,
			Name:    decision.Action,
			Content: compactJSON(decision.Args),
		})

		result, invokeErr := l.tools.Invoke(runCtx, decision.Action, decision.Args)
		invokeEnd := time.Now()
		if invokeErr != nil {
			if cause := cancellationCause(runCtx, invokeErr); cause != nil {
				return l.abortRun(runCtx, &state, trace, cause)
			}
			return l.failRun(runCtx, &state, trace, fmt.Errorf("invoke %q: %w", decision.Action, invokeErr))
		}

		resultInput := StepInput{
			Kind:          StepKindToolResult,
			Name:          decision.Action,
			OutputPayload: map[string]any{"result": result.Content},
			LatencyMS:     invokeEnd.Sub(callStart).Milliseconds(),
			IsError:       result.IsError,
			StartedAt:     callStart,
			CompletedAt:   invokeEnd,
		}
		if result.IsError {
			resultInput.ErrorMessage = result.Content
		}
		resultStep, err := l.recorder.AppendStep(sideEffectContext(runCtx), trace.ID, resultInput)
		if err != nil {
			return l.abandonRun(runCtx, &state, trace, fmt.Errorf("append tool_result step: %w", err))
		}
		l.publish(runCtx, ToolResultEvent(trace.ID, resultStep.SequenceOrder, decision.Action, result.Content, result.IsError))
		req.Observations = append(req.Observations, Observation{
			Kind:    StepKindToolResult,
			Name:    decision.Action,
			Content: result.Content,
		})

		if err := transitionLoopState(&state, LoopStateReasoning); err != nil {
			return l.failRun(runCtx, &state, trace, err)
		}
	}

	return l.failRun(runCtx, &state, trace,
		fmt.Errorf("%w: no final answer within %d iterations", ErrLoopBudgetExceeded, l.cfg.MaxIterations))
}

func (l *Loop) respond(ctx context.Context, state *LoopState, trace Trace, decision Decision) (RunResult, error) {
	if err := transitionLoopState(state, LoopStateResponding); err != nil {
		return l.failRun(ctx, state, trace, err)
	}

	answer := decision.FinalAnswerText()
	now := time.Now()
	step, err := l.recorder.AppendStep(sideEffectContext(ctx), trace.ID, StepInput{
		Kind:          StepKindResponse,
		Name:          ActionFinalAnswer,
		OutputPayload: map[string]any{"response": answer},
		StartedAt:     now,
		CompletedAt:   now,
	})
	if err != nil {
		return l.abandonRun(ctx, state, trace, fmt.Errorf("append response step: %w", err))
	}
	l.publish(ctx, ResponseEvent(trace.ID, step.SequenceOrder, answer))

	final, err := l.recorder.Finalize(sideEffectContext(ctx), trace.ID, FinalizeInput{
		FinalOutput: answer,
		Status:      TraceStatusCompleted,
	})
	if err != nil {
		return l.abandonRun(ctx, state, trace, fmt.Errorf("finalize trace: %w", err))
	}
	l.publish(ctx, CompleteEvent(trace.ID, true))

	if err := transitionLoopState(state, LoopStateDone); err != nil {
		return RunResult{Trace: final}, err
	}
	l.logger.Debug("run completed", slog.String("trace_id", trace.ID.String()))
	return RunResult{Trace: final}, nil
}

// failRun finalizes a defective run: is_successful=false with a descriptive
// error message, never silently dropped.
func (l *Loop) failRun(ctx context.Context, state *LoopState, trace Trace, runErr error) (RunResult, error) {
	_ = transitionLoopState(state, LoopStateError)

	final, finErr := l.recorder.Finalize(sideEffectContext(ctx), trace.ID, FinalizeInput{
		Status:       TraceStatusFailed,
		ErrorMessage: runErr.Error(),
	})
	l.publish(ctx, ErrorEvent(trace.ID, runErr.Error()))
	l.logger.Warn("run failed",
		slog.String("trace_id", trace.ID.String()),
		slog.Any("error", runErr),
	)
	if finErr != nil {
		return RunResult{Trace: trace}, errors.Join(runErr, finErr)
	}
	return RunResult{Trace: final}, runErr
}

// abortRun finalizes a cancelled or timed-out run: terminal but distinct
// from failure, with no error message implying a defect.
func (l *Loop) abortRun(ctx context.Context, state *LoopState, trace Trace, cause error) (RunResult, error) {
	if cause == nil {
		cause = context.Canceled
	}
	status := TraceStatusCancelled
	message := "run cancelled"
	if errors.Is(cause, ErrRunTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		status = TraceStatusTimeout
		message = "run timed out"
	}
	_ = transitionLoopState(state, LoopStateCancelled)

	final, finErr := l.recorder.Finalize(sideEffectContext(ctx), trace.ID, FinalizeInput{
		Status: status,
	})
	l.publish(ctx, ErrorEvent(trace.ID, message))
	l.logger.Info("run aborted",
		slog.String("trace_id", trace.ID.String()),
		slog.String("status", string(status)),
	)
	if finErr != nil {
		return RunResult{Trace: trace}, errors.Join(cause, finErr)
	}
	return RunResult{Trace: final}, cause
}

// abandonRun handles a recorder write failure: the durability guarantee
// cannot be upheld, so the run aborts immediately. Finalizing is attempted
// on the off chance the store recovered, but the write error wins.
func (l *Loop) abandonRun(ctx context.Context, state *LoopState, trace Trace, runErr error) (RunResult, error) {
	_ = transitionLoopState(state, LoopStateError)
	l.publish(ctx, ErrorEvent(trace.ID, runErr.Error()))
	l.logger.Error("run abandoned on persistence failure",
		slog.String("trace_id", trace.ID.String()),
		slog.Any("error", runErr),
	)
	if final, err := l.recorder.Finalize(sideEffectContext(ctx), trace.ID, FinalizeInput{
		Status:       TraceStatusFailed,
		ErrorMessage: runErr.Error(),
	}); err == nil {
		return RunResult{Trace: final}, runErr
	}
	return RunResult{Trace: trace}, runErr
}

func (l *Loop) loadHistory(ctx context.Context, sessionID uuid.UUID) ([]Exchange, error) {
	traces, err := l.recorder.RecentTraces(ctx, sessionID, l.cfg.HistoryWindow)
	if err != nil {
		return nil, err
	}
	exchanges := make([]Exchange, 0, len(traces))
	for _, trace := range traces {
		if trace.FinalOutput == "" {
			continue
		}
		exchanges = append(exchanges, Exchange{
			UserInput:   trace.UserInput,
			FinalOutput: trace.FinalOutput,
		})
	}
	return exchanges, nil
}

// publish is best-effort: a failing or disconnected consumer never corrupts
// the run. Durable state is already committed when events go out.
func (l *Loop) publish(ctx context.Context, event Event) {
	if err := l.events.Publish(sideEffectContext(ctx), event); err != nil {
		l.logger.Debug("event publish failed",
			slog.String("type", string(event.Type)),
			slog.Any("error", err),
		)
	}
}

type noopEventSink struct{}

func (noopEventSink) Publish(context.Context, Event) error { return nil }

func indexToolDefinitions(definitions []ToolDefinition) map[string]ToolDefinition {
	out := make(map[string]ToolDefinition, len(definitions))
	for i := range definitions {
		out[definitions[i].Name] = definitions[i]
	}
	return out
}

func unknownToolObservation(name string, definitions []ToolDefinition) string {
	names := make([]string, 0, len(definitions))
	for i := range definitions {
		names = append(names, definitions[i].Name)
	}
	sort.Strings(names)
	return fmt.Sprintf(
		"Error: unknown tool %q. Available tools: %s. Pick one of them or use %q.",
		name,
		strings.Join(names, ", "),
		ActionFinalAnswer,
	)
}

func compactJSON(payload map[string]any) string {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(encoded)
}

func cancellationCause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return ctx.Err()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return nil
	}
}

// sideEffectContext keeps commits and event publishes flowing after the run
// context is cancelled, so aborted runs still reach a terminal persisted
// state.
func sideEffectContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if ctx.Err() != nil {
		return context.WithoutCancel(ctx)
	}
	return ctx
}
