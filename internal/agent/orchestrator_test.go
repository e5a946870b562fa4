package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"docpilot/internal/search"
	"docpilot/internal/store"
)

// scriptedLLM returns one canned response per call, in order. If the script
// runs out it keeps returning the last response.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []LLMResponse
	errs      []error
	calls     int
}

func (m *scriptedLLM) Chat(ctx context.Context, model string, messages []ChatMessage, toolSchemas []ToolSchema, opts ChatOptions) (LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return LLMResponse{}, m.errs[i]
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

// memStorage is an in-memory Storage for orchestrator tests.
type memStorage struct {
	mu          sync.Mutex
	sections    map[string]*store.Section
	documents   map[string]*store.Document
	suggestions map[string]*store.Suggestion
	createErr   error
}

func newMemStorage() *memStorage {
	return &memStorage{
		sections:    make(map[string]*store.Section),
		documents:   make(map[string]*store.Document),
		suggestions: make(map[string]*store.Suggestion),
	}
}

func (m *memStorage) addSection(doc *store.Document, sec *store.Section) {
	m.documents[doc.ID] = doc
	m.sections[sec.ID] = sec
}

func (m *memStorage) GetSection(ctx context.Context, id string) (*store.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sec, ok := m.sections[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sec
	return &cp, nil
}

func (m *memStorage) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memStorage) ListSections(ctx context.Context, documentID string) ([]store.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Section
	for _, sec := range m.sections {
		if sec.DocumentID == documentID {
			out = append(out, *sec)
		}
	}
	return out, nil
}

func (m *memStorage) FindSectionsByPath(ctx context.Context, pattern string, limit int) ([]store.Section, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var secs []store.Section
	var paths []string
	for _, sec := range m.sections {
		doc := m.documents[sec.DocumentID]
		if doc != nil && strings.Contains(strings.ToLower(doc.FilePath), strings.ToLower(pattern)) {
			secs = append(secs, *sec)
			paths = append(paths, doc.FilePath)
		}
	}
	return secs, paths, nil
}

func (m *memStorage) OutgoingDependencies(ctx context.Context, sectionID string) ([]store.Dependency, error) {
	return nil, nil
}

func (m *memStorage) IncomingDependencies(ctx context.Context, sectionID string) ([]store.Dependency, error) {
	return nil, nil
}

func (m *memStorage) CreateSuggestion(ctx context.Context, sug *store.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if sug.ID == "" {
		sug.ID = fmt.Sprintf("sug-%d", len(m.suggestions)+1)
	}
	cp := *sug
	m.suggestions[sug.ID] = &cp
	return nil
}

// memSearcher returns canned search results.
type memSearcher struct {
	results []search.Result
	err     error
}

func (m *memSearcher) Search(query string, k int) ([]search.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > k {
		return m.results[:k], nil
	}
	return m.results, nil
}

// memPersister records every status transition.
type memPersister struct {
	mu          sync.Mutex
	statuses    []store.QueryStatus
	errorMsgs   []string
	finalizeErr error
}

func (m *memPersister) MarkProcessing(ctx context.Context, queryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, store.QueryProcessing)
	return nil
}

func (m *memPersister) Finalize(ctx context.Context, queryID string, status store.QueryStatus, statusMessage, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalizeErr != nil && status == store.QueryCompleted {
		return m.finalizeErr
	}
	m.statuses = append(m.statuses, status)
	m.errorMsgs = append(m.errorMsgs, errorMessage)
	return nil
}

func (m *memPersister) lastStatus() store.QueryStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return ""
	}
	return m.statuses[len(m.statuses)-1]
}

func assistantTurn(text string, calls ...ToolCall) LLMResponse {
	finish := "stop"
	if len(calls) > 0 {
		finish = "tool_calls"
	}
	return LLMResponse{
		Assistant:    ChatMessage{Role: RoleAssistant, Content: text},
		ToolCalls:    calls,
		FinishReason: finish,
	}
}

func newTestOrchestrator(llm LLMClient, storage Storage, searcher Searcher, persister Persister, sink EventSink) *Orchestrator {
	return &Orchestrator{
		LLM:          llm,
		Storage:      storage,
		Search:       searcher,
		Persister:    persister,
		Sink:         sink,
		Model:        "test-model",
		SystemPrompt: "You analyze documentation.",
		MaxTurns:     10,
		RetryPolicy:  RetryPolicy{MaxRetries: 0, InitialDelay: 1, MaxDelay: 1, Multiplier: 1},
	}
}

func seedRenameScenario(storage *memStorage) *memSearcher {
	doc := &store.Document{ID: "doc-1", FilePath: "guide/install.md", Title: "Install Guide"}
	sec := &store.Section{ID: "sec-1", DocumentID: "doc-1", Title: "Setup", Content: "Run the setup script."}
	storage.addSection(doc, sec)
	return &memSearcher{results: []search.Result{{
		SectionID: "sec-1", DocumentID: "doc-1", Title: "Setup",
		FilePath: "guide/install.md", Preview: "Run the setup script.", Score: 1.2,
	}}}
}

func TestRunEventOrder(t *testing.T) {
	storage := newMemStorage()
	searcher := seedRenameScenario(storage)
	persister := &memPersister{}
	sink := &CollectorSink{}

	llm := &scriptedLLM{responses: []LLMResponse{
		assistantTurn("", ToolCall{ID: "c1", Name: "semantic_search", Args: map[string]any{"query": "setup"}}),
		assistantTurn("", ToolCall{ID: "c2", Name: "get_section_content", Args: map[string]any{"section_id": "sec-1"}}),
		assistantTurn("", ToolCall{ID: "c3", Name: "propose_edit", Args: map[string]any{
			"section_id":     "sec-1",
			"suggested_text": "Run the install script.",
			"reasoning":      "script was renamed",
			"confidence":     0.92,
		}}),
		assistantTurn("Updated the setup section."),
	}}

	orch := newTestOrchestrator(llm, storage, searcher, persister, sink)
	st, err := orch.Run(context.Background(), "q-1", "Rename the setup script")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := persister.lastStatus(); got != store.QueryCompleted {
		t.Errorf("final status = %s, want %s", got, store.QueryCompleted)
	}
	if len(st.SuggestionIDs) != 1 {
		t.Errorf("suggestions produced = %d, want 1", len(st.SuggestionIDs))
	}
	if len(storage.suggestions) != 1 {
		t.Errorf("suggestion rows = %d, want 1", len(storage.suggestions))
	}

	// Status events are informational and may repeat; assert the order of
	// everything else.
	var got []EventType
	for _, typ := range sink.Types() {
		if typ != EventStatus {
			got = append(got, typ)
		}
	}
	want := []EventType{
		EventTaskStarted,
		EventToolCall, EventSearchComplete,
		EventToolCall,
		EventToolCall, EventSuggestion,
		EventCompleted,
	}
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}

	// search_complete carries the result count.
	for _, ev := range sink.Events() {
		if ev.Type == EventSearchComplete {
			if count, _ := ev.Data["result_count"].(int); count != 1 {
				t.Errorf("search_complete result_count = %v, want 1", ev.Data["result_count"])
			}
		}
		if ev.Type == EventCompleted {
			if total, _ := ev.Data["total_suggestions"].(int); total != 1 {
				t.Errorf("completed total_suggestions = %v, want 1", ev.Data["total_suggestions"])
			}
		}
	}
}

// Tool calls within one turn run concurrently, so two propose_edit calls in
// the same model response must both land in the run state without losing IDs.
func TestRunConcurrentProposalsAllRecorded(t *testing.T) {
	storage := newMemStorage()
	searcher := seedRenameScenario(storage)
	doc2 := &store.Document{ID: "doc-2", FilePath: "guide/usage.md", Title: "Usage Guide"}
	sec2 := &store.Section{ID: "sec-2", DocumentID: "doc-2", Title: "Usage", Content: "Call the setup script first."}
	storage.addSection(doc2, sec2)
	persister := &memPersister{}
	sink := &CollectorSink{}

	llm := &scriptedLLM{responses: []LLMResponse{
		assistantTurn("",
			ToolCall{ID: "c1", Name: "propose_edit", Args: map[string]any{
				"section_id":     "sec-1",
				"suggested_text": "Run the install script.",
				"reasoning":      "script was renamed",
				"confidence":     0.9,
			}},
			ToolCall{ID: "c2", Name: "propose_edit", Args: map[string]any{
				"section_id":     "sec-2",
				"suggested_text": "Call the install script first.",
				"reasoning":      "script was renamed",
				"confidence":     0.85,
			}},
		),
		assistantTurn("Updated both sections."),
	}}

	orch := newTestOrchestrator(llm, storage, searcher, persister, sink)
	st, err := orch.Run(context.Background(), "q-6", "rename the setup script everywhere")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(st.SuggestionIDs) != 2 {
		t.Errorf("recorded suggestion IDs = %d, want 2", len(st.SuggestionIDs))
	}
	if len(storage.suggestions) != 2 {
		t.Errorf("suggestion rows = %d, want 2", len(storage.suggestions))
	}

	var suggestionEvents int
	for _, ev := range sink.Events() {
		switch ev.Type {
		case EventSuggestion:
			suggestionEvents++
		case EventCompleted:
			if total, _ := ev.Data["total_suggestions"].(int); total != 2 {
				t.Errorf("completed total_suggestions = %v, want 2", ev.Data["total_suggestions"])
			}
		}
	}
	if suggestionEvents != 2 {
		t.Errorf("suggestion events = %d, want 2", suggestionEvents)
	}
}

func TestRunTurnBoundIsGracefulCutoff(t *testing.T) {
	storage := newMemStorage()
	searcher := seedRenameScenario(storage)
	persister := &memPersister{}
	sink := &CollectorSink{}

	// Model never stops asking for tools.
	llm := &scriptedLLM{responses: []LLMResponse{
		assistantTurn("", ToolCall{ID: "c1", Name: "semantic_search", Args: map[string]any{"query": "setup"}}),
	}}

	orch := newTestOrchestrator(llm, storage, searcher, persister, sink)
	orch.MaxTurns = 3

	st, err := orch.Run(context.Background(), "q-2", "loop forever")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if st.Turn != 3 {
		t.Errorf("turns = %d, want 3", st.Turn)
	}
	if llm.calls != 3 {
		t.Errorf("LLM calls = %d, want 3", llm.calls)
	}
	if got := persister.lastStatus(); got != store.QueryCompleted {
		t.Errorf("final status = %s, want %s (bound hit is success, not failure)", got, store.QueryCompleted)
	}
	assertTerminalEvents(t, sink, EventCompleted)
}

func TestRunInvalidConfidenceContinues(t *testing.T) {
	storage := newMemStorage()
	searcher := seedRenameScenario(storage)
	persister := &memPersister{}
	sink := &CollectorSink{}

	llm := &scriptedLLM{responses: []LLMResponse{
		assistantTurn("", ToolCall{ID: "c1", Name: "propose_edit", Args: map[string]any{
			"section_id":     "sec-1",
			"suggested_text": "new text",
			"reasoning":      "because",
			"confidence":     1.5,
		}}),
		assistantTurn("Could not propose a valid edit."),
	}}

	orch := newTestOrchestrator(llm, storage, searcher, persister, sink)
	st, err := orch.Run(context.Background(), "q-3", "bad confidence")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got := persister.lastStatus(); got != store.QueryCompleted {
		t.Errorf("final status = %s, want %s", got, store.QueryCompleted)
	}
	if len(storage.suggestions) != 0 {
		t.Errorf("suggestion rows = %d, want 0", len(storage.suggestions))
	}

	// The validation failure must be surfaced to the model as a tool result,
	// not kill the run.
	var toolMsg string
	for _, msg := range st.History {
		if msg.Role == RoleTool {
			toolMsg = msg.Content
		}
	}
	if !strings.HasPrefix(toolMsg, "ERROR:") || !strings.Contains(toolMsg, "confidence") {
		t.Errorf("tool result = %q, want an ERROR mentioning confidence", toolMsg)
	}
}

func TestRunLLMFailureEndsFailed(t *testing.T) {
	storage := newMemStorage()
	searcher := seedRenameScenario(storage)
	persister := &memPersister{}
	sink := &CollectorSink{}

	llm := &scriptedLLM{
		responses: []LLMResponse{
			assistantTurn("", ToolCall{ID: "c1", Name: "semantic_search", Args: map[string]any{"query": "setup"}}),
			{},
		},
		errs: []error{nil, errors.New("401 unauthorized")},
	}

	orch := newTestOrchestrator(llm, storage, searcher, persister, sink)
	_, err := orch.Run(context.Background(), "q-4", "will fail")
	if err == nil {
		t.Fatal("Run should return the LLM error")
	}

	if got := persister.lastStatus(); got != store.QueryFailed {
		t.Errorf("final status = %s, want %s", got, store.QueryFailed)
	}
	if len(persister.errorMsgs) == 0 || persister.errorMsgs[len(persister.errorMsgs)-1] == "" {
		t.Error("failed query must carry a non-empty error message")
	}
	assertTerminalEvents(t, sink, EventError)
}

func TestRunFinalizeFailureEscalates(t *testing.T) {
	storage := newMemStorage()
	searcher := seedRenameScenario(storage)
	persister := &memPersister{finalizeErr: errors.New("disk full")}
	sink := &CollectorSink{}

	llm := &scriptedLLM{responses: []LLMResponse{assistantTurn("done")}}

	orch := newTestOrchestrator(llm, storage, searcher, persister, sink)
	_, err := orch.Run(context.Background(), "q-5", "persist will fail")
	if err == nil {
		t.Fatal("Run should surface the persistence failure")
	}
	assertTerminalEvents(t, sink, EventError)
}

func TestSummarizeArgsTruncatesOnRunes(t *testing.T) {
	got := summarizeArgs(map[string]any{"query": strings.Repeat("é", 100)})
	want := "query=" + strings.Repeat("é", 80) + "..."
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
	if !utf8.ValidString(got) {
		t.Error("summary contains a split UTF-8 sequence")
	}
}

// assertTerminalEvents checks that exactly one terminal event was emitted,
// that it has the wanted type, and that nothing follows it.
func assertTerminalEvents(t *testing.T, sink *CollectorSink, want EventType) {
	t.Helper()
	types := sink.Types()
	var terminals []EventType
	lastIdx := -1
	for i, typ := range types {
		if typ == EventCompleted || typ == EventError {
			terminals = append(terminals, typ)
			lastIdx = i
		}
	}
	if len(terminals) != 1 {
		t.Fatalf("terminal events = %v, want exactly one", terminals)
	}
	if terminals[0] != want {
		t.Fatalf("terminal event = %s, want %s", terminals[0], want)
	}
	if lastIdx != len(types)-1 {
		t.Fatalf("events emitted after terminal event: %v", types[lastIdx+1:])
	}
}
