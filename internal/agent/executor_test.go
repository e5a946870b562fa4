package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testRegistry() ToolRegistry {
	reg := make(ToolRegistry)
	reg.Register(Tool{
		Name:       "echo",
		SchemaJSON: `{"type": "object", "properties": {"text": {"type": "string"}}, "required": ["text"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	})
	reg.Register(Tool{
		Name:       "slow",
		SchemaJSON: `{"type": "object"}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(10 * time.Second):
				return "done", nil
			}
		},
	})
	reg.Register(Tool{
		Name:       "panicky",
		SchemaJSON: `{"type": "object"}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			panic("boom")
		},
	})
	reg.Register(Tool{
		Name:       "flaky",
		SchemaJSON: `{"type": "object"}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("backend unavailable")
		},
	})
	return reg
}

func toolErrKind(t *testing.T, err error) ToolErrorKind {
	t.Helper()
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not a *ToolError", err)
	}
	return te.Kind
}

func TestExecutorSuccess(t *testing.T) {
	exec := NewExecutor(testRegistry())
	got, err := exec.Execute(context.Background(), ToolCall{Name: "echo", Args: map[string]any{"text": "hello"}})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("result = %q, want %q", got, "hello")
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	exec := NewExecutor(testRegistry())
	_, err := exec.Execute(context.Background(), ToolCall{Name: "nope", Args: map[string]any{}})
	if kind := toolErrKind(t, err); kind != ToolErrorInvalidArgs {
		t.Errorf("kind = %s, want %s", kind, ToolErrorInvalidArgs)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("error %q should name the unknown tool", err.Error())
	}
}

func TestExecutorSchemaValidation(t *testing.T) {
	exec := NewExecutor(testRegistry())

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing required field", map[string]any{}},
		{"wrong type", map[string]any{"text": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := exec.Execute(context.Background(), ToolCall{Name: "echo", Args: tt.args})
			if kind := toolErrKind(t, err); kind != ToolErrorInvalidArgs {
				t.Errorf("kind = %s, want %s", kind, ToolErrorInvalidArgs)
			}
		})
	}
}

func TestExecutorTimeout(t *testing.T) {
	exec := NewExecutor(testRegistry())
	exec.Timeout = 20 * time.Millisecond

	_, err := exec.Execute(context.Background(), ToolCall{Name: "slow", Args: map[string]any{}})
	if kind := toolErrKind(t, err); kind != ToolErrorTimeout {
		t.Errorf("kind = %s, want %s", kind, ToolErrorTimeout)
	}
}

func TestExecutorPanicBecomesUpstreamFailure(t *testing.T) {
	exec := NewExecutor(testRegistry())
	_, err := exec.Execute(context.Background(), ToolCall{Name: "panicky", Args: map[string]any{}})
	if kind := toolErrKind(t, err); kind != ToolErrorUpstreamFailure {
		t.Errorf("kind = %s, want %s", kind, ToolErrorUpstreamFailure)
	}
}

func TestExecutorUnclassifiedErrorIsUpstreamFailure(t *testing.T) {
	exec := NewExecutor(testRegistry())
	_, err := exec.Execute(context.Background(), ToolCall{Name: "flaky", Args: map[string]any{}})
	if kind := toolErrKind(t, err); kind != ToolErrorUpstreamFailure {
		t.Errorf("kind = %s, want %s", kind, ToolErrorUpstreamFailure)
	}
}
