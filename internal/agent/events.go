package agent

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies the kind of progress event emitted during a run.
type EventType string

const (
	EventTaskStarted    EventType = "task_started"
	EventStatus         EventType = "status"
	EventToolCall       EventType = "tool_call"
	EventSearchComplete EventType = "search_complete"
	EventSuggestion     EventType = "suggestion"
	EventCompleted      EventType = "completed"
	EventError          EventType = "error"
)

// Event is a single progress notification. Exactly one of EventCompleted or
// EventError terminates a run; no events follow the terminal one.
type Event struct {
	Type      EventType      `json:"type"`
	QueryID   string         `json:"query_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventSink receives run events. Emit must not block the orchestrator; slow
// consumers are the sink's problem.
type EventSink interface {
	Emit(ev Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans out each event to every sink in order.
type MultiSink []EventSink

func (ms MultiSink) Emit(ev Event) {
	for _, s := range ms {
		s.Emit(ev)
	}
}

// ChannelSink bridges events onto a bounded channel. When the buffer is full
// the event is dropped rather than blocking the run.
type ChannelSink struct {
	ch      chan Event
	dropped int
	mu      sync.Mutex
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ev Event) {
	select {
	case s.ch <- ev:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Events returns the receive side of the channel.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// Close closes the channel. Only the run owner may call this, after the
// terminal event has been emitted.
func (s *ChannelSink) Close() { close(s.ch) }

// Dropped reports how many events were discarded due to a full buffer.
func (s *ChannelSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// CollectorSink records every event, for tests.
type CollectorSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *CollectorSink) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of the recorded events.
func (s *CollectorSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Types returns just the event types, in emission order.
func (s *CollectorSink) Types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

// LogSink writes each event to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(ev Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("agent event", "type", ev.Type, "query_id", ev.QueryID, "data", ev.Data)
}

func newEvent(typ EventType, queryID string, data map[string]any) Event {
	return Event{Type: typ, QueryID: queryID, Timestamp: time.Now().UTC(), Data: data}
}
