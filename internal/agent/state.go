package agent

import "sync"

// State tracks the conversation and progress of a single agent run.
type State struct {
	History       []ChatMessage // Conversation transcript
	Turn          int           // Completed turns (one LLM call each)
	Done          bool          // True when the model gave a final answer (no tool calls)
	Model         string        // LLM model name
	MaxTurns      int           // Turn bound before graceful cutoff
	Totals        Usage         // Accumulated token usage across all calls
	SuggestionIDs []string      // IDs of suggestions persisted during this run
	ToolCallCount int           // Total tool calls this run

	// Tool calls within one turn run concurrently, so RecordSuggestion must
	// be safe to call from multiple goroutines.
	mu sync.Mutex
}

func (s *State) Append(msg ChatMessage) { s.History = append(s.History, msg) }

// RecordSuggestion tracks a suggestion persisted by the propose_edit tool.
func (s *State) RecordSuggestion(id string) {
	s.mu.Lock()
	s.SuggestionIDs = append(s.SuggestionIDs, id)
	s.mu.Unlock()
}
