package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"docpilot/internal/store"
)

// DefaultMaxTurns bounds the number of model round-trips per run. Hitting the
// bound is a graceful cutoff, not a failure.
const DefaultMaxTurns = 15

// Persister commits run status transitions to storage. Finalize is called
// exactly once per run and must be idempotent under retry.
type Persister interface {
	MarkProcessing(ctx context.Context, queryID string) error
	Finalize(ctx context.Context, queryID string, status store.QueryStatus, statusMessage, errorMessage string) error
}

// StorePersister implements Persister on top of the sqlite store.
type StorePersister struct {
	Store *store.Store
}

func (p StorePersister) MarkProcessing(ctx context.Context, queryID string) error {
	return p.Store.UpdateQueryStatus(ctx, queryID, store.QueryProcessing, "processing", "")
}

func (p StorePersister) Finalize(ctx context.Context, queryID string, status store.QueryStatus, statusMessage, errorMessage string) error {
	return p.Store.UpdateQueryStatus(ctx, queryID, status, statusMessage, errorMessage)
}

// runPhase is the orchestrator's explicit state machine position.
type runPhase string

const (
	phaseStarting  runPhase = "starting"
	phaseRunning   runPhase = "running"
	phaseFinishing runPhase = "finishing"
	phaseFailing   runPhase = "failing"
	phaseDone      runPhase = "done"
)

// Orchestrator drives one query run: repeated (LLM turn, tool dispatch,
// result injection) cycles until the model answers in plain text or the turn
// bound is hit. Tool-local failures are absorbed inside the loop and fed back
// to the model; only LLM or persistence faults fail the run.
type Orchestrator struct {
	LLM          LLMClient
	Storage      Storage
	Search       Searcher
	Persister    Persister
	Sink         EventSink
	Logger       *slog.Logger
	Model        string
	SystemPrompt string
	MaxTurns     int
	ToolTimeout  time.Duration
	RetryPolicy  RetryPolicy
	ChatOptions  ChatOptions
}

// Run executes the state machine for one query. The returned State carries
// the transcript, usage totals, and produced suggestion IDs. The returned
// error reports an orchestration-level fault; the query row always reaches a
// terminal status either way.
func (o *Orchestrator) Run(ctx context.Context, queryID, queryText string) (*State, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := o.Sink
	if sink == nil {
		sink = NopSink{}
	}
	maxTurns := o.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	policy := o.RetryPolicy
	if policy.MaxRetries == 0 && policy.InitialDelay == 0 {
		policy = DefaultLLMRetryPolicy()
	}

	st := &State{Model: o.Model, MaxTurns: maxTurns}

	toolset := &Toolset{
		Storage: o.Storage,
		Search:  o.Search,
		QueryID: queryID,
		State:   st,
		Sink:    sink,
	}
	reg := toolset.Registry()
	exec := NewExecutor(reg)
	if o.ToolTimeout > 0 {
		exec.Timeout = o.ToolTimeout
	}
	schemas := reg.Schemas()

	phase := phaseStarting
	var runErr error

	for phase != phaseDone {
		switch phase {
		case phaseStarting:
			st.Append(ChatMessage{Role: RoleSystem, Content: o.SystemPrompt})
			st.Append(ChatMessage{Role: RoleUser, Content: queryText})
			if err := o.Persister.MarkProcessing(ctx, queryID); err != nil {
				runErr = fmt.Errorf("failed to mark query processing: %w", err)
				phase = phaseFailing
				continue
			}
			sink.Emit(newEvent(EventTaskStarted, queryID, map[string]any{"task_id": queryID}))
			phase = phaseRunning

		case phaseRunning:
			select {
			case <-ctx.Done():
				runErr = fmt.Errorf("run cancelled: %w", ctx.Err())
				phase = phaseFailing
				continue
			default:
			}

			if st.Turn >= st.MaxTurns {
				logger.Info("turn bound reached, finishing with partial results",
					"query_id", queryID, "turns", st.Turn, "suggestions", len(st.SuggestionIDs))
				phase = phaseFinishing
				continue
			}

			sink.Emit(newEvent(EventStatus, queryID, map[string]any{"message": "thinking..."}))

			resp, err := RetryWithPolicy(ctx, policy,
				func(ctx context.Context) (LLMResponse, error) {
					return o.LLM.Chat(ctx, o.Model, st.History, schemas, o.ChatOptions)
				},
				ClassifyLLMError,
				func(attempt int, delay time.Duration, retryErr error) {
					logger.Warn("retrying LLM call",
						"query_id", queryID, "attempt", attempt, "delay", delay, "error", retryErr)
				},
			)
			if err != nil {
				runErr = fmt.Errorf("LLM call failed: %w", err)
				phase = phaseFailing
				continue
			}

			st.Totals.Prompt += resp.Usage.Prompt
			st.Totals.Completion += resp.Usage.Completion
			st.Totals.Total += resp.Usage.Total

			assistant := resp.Assistant
			assistant.ToolCalls = resp.ToolCalls
			st.Append(assistant)

			if len(resp.ToolCalls) == 0 {
				st.Done = true
				phase = phaseFinishing
				continue
			}

			o.dispatchTools(ctx, exec, sink, st, queryID, resp.ToolCalls, logger)
			st.Turn++

		case phaseFinishing:
			message := "completed"
			if !st.Done {
				message = "completed (turn bound reached)"
			}
			if err := o.Persister.Finalize(ctx, queryID, store.QueryCompleted, message, ""); err != nil {
				runErr = fmt.Errorf("failed to finalize query: %w", err)
				phase = phaseFailing
				continue
			}
			sink.Emit(newEvent(EventCompleted, queryID, map[string]any{
				"query_id":          queryID,
				"total_suggestions": len(st.SuggestionIDs),
			}))
			phase = phaseDone

		case phaseFailing:
			errMsg := "run failed"
			if runErr != nil {
				errMsg = runErr.Error()
			}
			// Best effort: never leave the query stuck in PROCESSING, even
			// when the run was cancelled.
			finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := o.Persister.Finalize(finalizeCtx, queryID, store.QueryFailed, "", errMsg); err != nil {
				logger.Error("failed to persist failed query status",
					"query_id", queryID, "error", err)
			}
			cancel()
			sink.Emit(newEvent(EventError, queryID, map[string]any{"error": errMsg}))
			phase = phaseDone
		}
	}

	return st, runErr
}

type toolOutcome struct {
	call    ToolCall
	content string
	err     error
}

// dispatchTools executes the turn's tool calls concurrently and appends their
// results to the transcript in the order the model requested them. Failures
// become "ERROR: ..." tool messages so the model can self-correct.
func (o *Orchestrator) dispatchTools(ctx context.Context, exec *Executor, sink EventSink, st *State, queryID string, calls []ToolCall, logger *slog.Logger) {
	results := make([]toolOutcome, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		sink.Emit(newEvent(EventToolCall, queryID, map[string]any{
			"tool_name":    call.Name,
			"args_summary": summarizeArgs(call.Args),
		}))

		wg.Add(1)
		go func(i int, c ToolCall) {
			defer wg.Done()
			content, err := exec.Execute(ctx, c)
			results[i] = toolOutcome{call: c, content: content, err: err}
		}(i, call)
	}
	wg.Wait()

	for _, r := range results {
		st.ToolCallCount++
		content := r.content
		if r.err != nil {
			content = "ERROR: " + r.err.Error()
			logger.Warn("tool call failed",
				"query_id", queryID, "tool", r.call.Name, "error", r.err)
		}
		st.Append(ChatMessage{Role: RoleTool, Name: r.call.ID, Content: content})
	}
}

// summarizeArgs renders a compact, stable one-line view of tool arguments for
// event payloads. Long values are truncated.
func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+previewText(fmt.Sprintf("%v", args[k]), 80))
	}
	return strings.Join(parts, " ")
}
