package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultToolTimeout bounds a single tool execution.
const DefaultToolTimeout = 30 * time.Second

// Executor dispatches tool calls: it validates arguments against the tool's
// schema, applies a per-call deadline, and normalizes every failure into a
// classified *ToolError. The raw result string is what gets fed back to the
// model.
type Executor struct {
	Registry ToolRegistry
	Timeout  time.Duration
}

func NewExecutor(reg ToolRegistry) *Executor {
	return &Executor{Registry: reg, Timeout: DefaultToolTimeout}
}

// Execute runs one tool call. The returned error, when non-nil, is always a
// *ToolError.
func (e *Executor) Execute(ctx context.Context, call ToolCall) (string, error) {
	t, ok := e.Registry[call.Name]
	if !ok {
		return "", ToolErrorf(call.Name, ToolErrorInvalidArgs,
			"unknown tool %q (available: %v)", call.Name, e.Registry.Names())
	}

	if err := t.ValidateArgs(call.Args); err != nil {
		return "", AsToolError(call.Name, err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runGuarded(toolCtx, t, call.Args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && toolCtx.Err() != nil {
			return "", ToolErrorf(call.Name, ToolErrorTimeout,
				"tool %s exceeded %s deadline", call.Name, timeout)
		}
		return "", AsToolError(call.Name, err)
	}
	return result, nil
}

// runGuarded invokes the tool function with panic recovery. A panicking tool
// is reported as an upstream failure rather than taking down the run.
func runGuarded(ctx context.Context, t Tool, args map[string]any) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewToolError(t.Name, ToolErrorUpstreamFailure,
				fmt.Errorf("tool panicked: %v", r))
		}
	}()
	return t.Fn(ctx, args)
}
