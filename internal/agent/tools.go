package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ToolFunc executes a tool and returns the textual result fed back to the
// model. Failures must be (or will be wrapped as) *ToolError.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool couples a callable with the schema the model sees.
type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
}

// ValidateArgs validates the provided arguments against the tool's JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return ToolErrorf(t.Name, ToolErrorInvalidArgs, "invalid arguments: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// ToolRegistry maps tool names to their implementations. A registry is built
// per run so tool closures can carry run-scoped collaborators.
type ToolRegistry map[string]Tool

// Register adds a tool, replacing any existing tool with the same name.
func (r ToolRegistry) Register(t Tool) {
	r[t.Name] = t
}

// Schemas returns the schemas for every registered tool, for forwarding to
// the provider.
func (r ToolRegistry) Schemas() []ToolSchema {
	s := make([]ToolSchema, 0, len(r))
	for _, t := range r {
		s = append(s, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	return s
}

// Names returns the registered tool names.
func (r ToolRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
