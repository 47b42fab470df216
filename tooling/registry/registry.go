// Package registry maps tool names to deterministic executors with declared
// argument schemas. Recoverable domain failures never surface as Go errors:
// they become textual error results the loop can feed back to the model.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/glassboxlabs/glasstrace/agent"
)

var (
	ErrToolNameEmpty = errors.New("tool name is empty")
	ErrNilHandler    = errors.New("tool handler is nil")
)

// Handler executes one tool invocation using parsed arguments. A returned
// error is a recoverable domain failure and is surfaced to the caller as an
// error result, not propagated.
type Handler func(ctx context.Context, args map[string]any) (string, error)

type registeredTool struct {
	handler    Handler
	definition agent.ToolDefinition
}

// Registry stores executors by tool name and serves invocations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

var _ agent.ToolExecutor = (*Registry)(nil)

func New() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds or replaces a tool. The definition's schema is validated
// against arguments on every invocation.
func (r *Registry) Register(name string, handler Handler, definition agent.ToolDefinition) error {
	if name == "" {
		return ErrToolNameEmpty
	}
	if handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, name)
	}
	definition.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = registeredTool{handler: handler, definition: definition}
	return nil
}

// Definitions lists the registered tools sorted by name.
func (r *Registry) Definitions() []agent.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]agent.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool.definition)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke executes a tool. A Go error is returned only for infrastructure
// failures: cancelled context, empty name, or an unregistered tool. Argument
// validation failures and handler errors come back as error results.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (agent.ToolResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return agent.ToolResult{}, ctxErr
	}
	if name == "" {
		return agent.ToolResult{}, ErrToolNameEmpty
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return agent.ToolResult{}, fmt.Errorf("%w: %q", agent.ErrUnknownTool, name)
	}

	if err := validateArguments(tool.definition.InputSchema, args); err != nil {
		return agent.ToolResult{
			Content: fmt.Sprintf("Error: invalid arguments: %v", err),
			IsError: true,
		}, nil
	}

	content, err := tool.handler(ctx, args)
	if err != nil {
		if cancelErr := ctx.Err(); cancelErr != nil {
			return agent.ToolResult{}, cancelErr
		}
		return agent.ToolResult{
			Content: fmt.Sprintf("Error: %v", err),
			IsError: true,
		}, nil
	}

	return agent.ToolResult{Content: content}, nil
}
