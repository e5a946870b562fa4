package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"docpilot/internal/agent"
)

// defaultReapDelay is how long a finished run's buffered events stay
// available for a late SSE subscriber before the run is forgotten.
const defaultReapDelay = 2 * time.Minute

// run tracks one in-flight or recently finished agent run.
type run struct {
	queryID string
	sink    *agent.ChannelSink
	done    chan struct{}
}

// RunManager launches orchestrator runs and hands their event streams to SSE
// subscribers. Runs for different queries are independent; each gets its own
// bounded channel sink.
type RunManager struct {
	orchestrator func(sink agent.EventSink) *agent.Orchestrator
	logger       *slog.Logger

	// ReapDelay overrides how long a finished run without a subscriber is
	// kept around; zero means the default.
	ReapDelay time.Duration

	mu   sync.Mutex
	runs map[string]*run
}

func NewRunManager(build func(sink agent.EventSink) *agent.Orchestrator, logger *slog.Logger) *RunManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunManager{
		orchestrator: build,
		logger:       logger,
		runs:         make(map[string]*run),
	}
}

// Start launches a run for the query in the background. The run's events are
// buffered on a channel sink until a subscriber attaches; overflow is dropped.
func (m *RunManager) Start(ctx context.Context, queryID, queryText string) {
	sink := agent.NewChannelSink(256)
	r := &run{queryID: queryID, sink: sink, done: make(chan struct{})}

	m.mu.Lock()
	m.runs[queryID] = r
	m.mu.Unlock()

	orch := m.orchestrator(agent.MultiSink{sink, agent.LogSink{Logger: m.logger}})

	go func() {
		defer func() {
			sink.Close()
			close(r.done)
			// A run that never gets a subscriber must not leak its
			// bookkeeping; Reap is idempotent with the subscriber path.
			delay := m.ReapDelay
			if delay <= 0 {
				delay = defaultReapDelay
			}
			time.AfterFunc(delay, func() { m.Reap(queryID) })
		}()

		st, err := orch.Run(ctx, queryID, queryText)
		if err != nil {
			m.logger.Error("agent run failed",
				"query_id", queryID, "error", err)
			return
		}
		m.logger.Info("agent run finished",
			"query_id", queryID,
			"turns", st.Turn,
			"suggestions", len(st.SuggestionIDs),
			"tokens", st.Totals.Total,
			"dropped_events", sink.Dropped())
	}()
}

// Subscribe returns the event channel for an active run, or nil when no run
// is tracked for the query (already finished and reaped, or never started).
func (m *RunManager) Subscribe(queryID string) <-chan agent.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[queryID]
	if !ok {
		return nil
	}
	return r.sink.Events()
}

// Reap drops the bookkeeping for a finished run. Safe to call for unknown
// ids.
func (m *RunManager) Reap(queryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, queryID)
}
