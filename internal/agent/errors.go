// Package agent provides the documentation agent orchestration loop.
// This file contains error classification for tool and LLM failures.

package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ToolErrorKind is the closed set of failure categories a tool execution can
// report. Every tool failure is normalized into exactly one kind so the
// orchestrator never has to branch on raw error strings.
type ToolErrorKind string

const (
	ToolErrorInvalidArgs     ToolErrorKind = "invalid_args"     // arguments failed schema or semantic validation
	ToolErrorNotFound        ToolErrorKind = "not_found"        // referenced entity does not exist
	ToolErrorUpstreamFailure ToolErrorKind = "upstream_failure" // store, index, or other collaborator failed
	ToolErrorTimeout         ToolErrorKind = "timeout"          // per-tool deadline exceeded
)

// ToolError wraps a tool execution failure with its kind. The message is what
// gets surfaced back to the model as a tool result, so it should be
// self-contained and actionable.
type ToolError struct {
	Tool string
	Kind ToolErrorKind
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Tool, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Kind)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewToolError creates a classified tool error.
func NewToolError(tool string, kind ToolErrorKind, err error) *ToolError {
	return &ToolError{Tool: tool, Kind: kind, Err: err}
}

// ToolErrorf creates a classified tool error from a format string.
func ToolErrorf(tool string, kind ToolErrorKind, format string, args ...any) *ToolError {
	return &ToolError{Tool: tool, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// AsToolError extracts a *ToolError from an error chain, or wraps the error
// as an upstream failure if it is not already classified.
func AsToolError(tool string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return NewToolError(tool, ToolErrorUpstreamFailure, err)
}

// RetryClass indicates whether an LLM call error should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"
	RetryClassMaybe        RetryClass = "maybe"
	RetryClassNonRetryable RetryClass = "non_retryable"
)

// ClassifyLLMError classifies an error from an LLM provider call.
// Transient transport and rate-limit failures are retryable; auth,
// bad-request, and quota failures are not.
func ClassifyLLMError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}

	errStr := strings.ToLower(err.Error())

	// Rate limits (429) - retryable
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return RetryClassRetryable
	}

	// Server errors (5xx) - retryable
	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return RetryClassRetryable
	}

	// Network errors - retryable
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "temporary failure") {
		return RetryClassRetryable
	}

	// Context deadline exceeded - maybe (limited retries)
	if strings.Contains(errStr, "deadline exceeded") {
		return RetryClassMaybe
	}

	// Auth (401, 403) - non-retryable
	if strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid api key") {
		return RetryClassNonRetryable
	}

	return RetryClassNonRetryable
}

// RetryExhaustedError indicates all retry attempts were used.
type RetryExhaustedError struct {
	LastError error
	Attempts  int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastError
}
