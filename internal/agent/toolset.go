package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docpilot/internal/search"
	"docpilot/internal/store"
)

const (
	defaultTopK = 10
	maxTopK     = 20
	maxPathHits = 50
)

// Storage is the slice of the persistence layer the tools need. *store.Store
// satisfies it.
type Storage interface {
	GetSection(ctx context.Context, id string) (*store.Section, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	ListSections(ctx context.Context, documentID string) ([]store.Section, error)
	FindSectionsByPath(ctx context.Context, pattern string, limit int) ([]store.Section, []string, error)
	OutgoingDependencies(ctx context.Context, sectionID string) ([]store.Dependency, error)
	IncomingDependencies(ctx context.Context, sectionID string) ([]store.Dependency, error)
	CreateSuggestion(ctx context.Context, sug *store.Suggestion) error
}

// Searcher is the semantic search collaborator. *search.Index satisfies it.
type Searcher interface {
	Search(query string, k int) ([]search.Result, error)
}

// Toolset builds the per-run tool registry. Tools close over the run's query
// ID, state, and sink so propose_edit and semantic_search can emit their own
// events and record produced suggestions.
type Toolset struct {
	Storage Storage
	Search  Searcher
	QueryID string
	State   *State
	Sink    EventSink
}

// Registry returns the six documentation tools wired to this run.
func (ts *Toolset) Registry() ToolRegistry {
	reg := make(ToolRegistry, 6)
	reg.Register(Tool{
		Name:        "semantic_search",
		Description: "Search documentation sections by meaning. Returns ranked candidates with previews.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Natural language search query"},
				"top_k": {"type": "integer", "description": "Maximum results to return (default 10, max 20)"}
			},
			"required": ["query"],
			"additionalProperties": false
		}`,
		Fn: ts.semanticSearch,
	})
	reg.Register(Tool{
		Name:        "get_section_content",
		Description: "Fetch the full current text of a section by its ID.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"section_id": {"type": "string", "description": "Section ID from a prior search result"}
			},
			"required": ["section_id"],
			"additionalProperties": false
		}`,
		Fn: ts.getSectionContent,
	})
	reg.Register(Tool{
		Name:        "get_document_structure",
		Description: "List the ordered sections of a document.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"document_id": {"type": "string", "description": "Document ID"}
			},
			"required": ["document_id"],
			"additionalProperties": false
		}`,
		Fn: ts.getDocumentStructure,
	})
	reg.Register(Tool{
		Name:        "search_by_file_path",
		Description: "Find sections whose document path contains the given substring (case-insensitive).",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"pattern": {"type": "string", "description": "Path substring, e.g. 'api/auth.md'"}
			},
			"required": ["pattern"],
			"additionalProperties": false
		}`,
		Fn: ts.searchByFilePath,
	})
	reg.Register(Tool{
		Name:        "find_dependencies",
		Description: "List sections that reference, or are referenced by, the given section.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"section_id": {"type": "string", "description": "Section ID"}
			},
			"required": ["section_id"],
			"additionalProperties": false
		}`,
		Fn: ts.findDependencies,
	})
	reg.Register(Tool{
		Name:        "propose_edit",
		Description: "Propose replacement text for a section. Creates a pending suggestion for human review. Use only after reading the section's current content.",
		SchemaJSON: `{
			"type": "object",
			"properties": {
				"section_id": {"type": "string", "description": "Section to edit"},
				"suggested_text": {"type": "string", "description": "Full replacement text for the section"},
				"reasoning": {"type": "string", "description": "Why this edit is needed"},
				"confidence": {"type": "number", "description": "Confidence in the edit, between 0 and 1"}
			},
			"required": ["section_id", "suggested_text", "reasoning", "confidence"],
			"additionalProperties": false
		}`,
		Fn: ts.proposeEdit,
	})
	return reg
}

type searchHit struct {
	SectionID string  `json:"section_id"`
	Title     string  `json:"title"`
	FilePath  string  `json:"file_path"`
	Preview   string  `json:"preview"`
	Score     float64 `json:"score"`
}

func (ts *Toolset) semanticSearch(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query")
	if strings.TrimSpace(query) == "" {
		return "", ToolErrorf("semantic_search", ToolErrorInvalidArgs, "query must not be empty")
	}
	topK := intArg(args, "top_k", defaultTopK)
	if topK < 1 {
		topK = 1
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	results, err := ts.Search.Search(query, topK)
	if err != nil {
		return "", NewToolError("semantic_search", ToolErrorUpstreamFailure, err)
	}

	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit{
			SectionID: r.SectionID,
			Title:     r.Title,
			FilePath:  r.FilePath,
			Preview:   r.Preview,
			Score:     r.Score,
		})
	}

	ts.Sink.Emit(newEvent(EventSearchComplete, ts.QueryID, map[string]any{
		"result_count": len(hits),
	}))

	return marshalResult("semantic_search", map[string]any{"results": hits})
}

func (ts *Toolset) getSectionContent(ctx context.Context, args map[string]any) (string, error) {
	sectionID := stringArg(args, "section_id")
	sec, err := ts.Storage.GetSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ToolErrorf("get_section_content", ToolErrorNotFound, "section %s not found", sectionID)
		}
		return "", NewToolError("get_section_content", ToolErrorUpstreamFailure, err)
	}
	return marshalResult("get_section_content", map[string]any{
		"section_id":  sec.ID,
		"document_id": sec.DocumentID,
		"title":       sec.Title,
		"content":     sec.Content,
	})
}

func (ts *Toolset) getDocumentStructure(ctx context.Context, args map[string]any) (string, error) {
	documentID := stringArg(args, "document_id")
	doc, err := ts.Storage.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ToolErrorf("get_document_structure", ToolErrorNotFound, "document %s not found", documentID)
		}
		return "", NewToolError("get_document_structure", ToolErrorUpstreamFailure, err)
	}
	sections, err := ts.Storage.ListSections(ctx, documentID)
	if err != nil {
		return "", NewToolError("get_document_structure", ToolErrorUpstreamFailure, err)
	}

	outline := make([]map[string]any, 0, len(sections))
	for _, sec := range sections {
		outline = append(outline, map[string]any{
			"section_id": sec.ID,
			"title":      sec.Title,
			"order":      sec.Order,
		})
	}
	return marshalResult("get_document_structure", map[string]any{
		"document_id": doc.ID,
		"file_path":   doc.FilePath,
		"title":       doc.Title,
		"sections":    outline,
	})
}

func (ts *Toolset) searchByFilePath(ctx context.Context, args map[string]any) (string, error) {
	pattern := stringArg(args, "pattern")
	if strings.TrimSpace(pattern) == "" {
		return "", ToolErrorf("search_by_file_path", ToolErrorInvalidArgs, "pattern must not be empty")
	}
	sections, paths, err := ts.Storage.FindSectionsByPath(ctx, pattern, maxPathHits)
	if err != nil {
		return "", NewToolError("search_by_file_path", ToolErrorUpstreamFailure, err)
	}

	hits := make([]map[string]any, 0, len(sections))
	for i, sec := range sections {
		hits = append(hits, map[string]any{
			"section_id": sec.ID,
			"title":      sec.Title,
			"file_path":  paths[i],
			"order":      sec.Order,
		})
	}
	return marshalResult("search_by_file_path", map[string]any{"sections": hits})
}

func (ts *Toolset) findDependencies(ctx context.Context, args map[string]any) (string, error) {
	sectionID := stringArg(args, "section_id")
	if _, err := ts.Storage.GetSection(ctx, sectionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ToolErrorf("find_dependencies", ToolErrorNotFound, "section %s not found", sectionID)
		}
		return "", NewToolError("find_dependencies", ToolErrorUpstreamFailure, err)
	}

	outgoing, err := ts.Storage.OutgoingDependencies(ctx, sectionID)
	if err != nil {
		return "", NewToolError("find_dependencies", ToolErrorUpstreamFailure, err)
	}
	incoming, err := ts.Storage.IncomingDependencies(ctx, sectionID)
	if err != nil {
		return "", NewToolError("find_dependencies", ToolErrorUpstreamFailure, err)
	}

	out := make([]string, 0, len(outgoing))
	for _, d := range outgoing {
		out = append(out, d.TargetSectionID)
	}
	in := make([]string, 0, len(incoming))
	for _, d := range incoming {
		in = append(in, d.SourceSectionID)
	}
	return marshalResult("find_dependencies", map[string]any{
		"outgoing": out,
		"incoming": in,
	})
}

func (ts *Toolset) proposeEdit(ctx context.Context, args map[string]any) (string, error) {
	sectionID := stringArg(args, "section_id")
	suggestedText := stringArg(args, "suggested_text")
	reasoning := stringArg(args, "reasoning")
	confidence, ok := floatArg(args, "confidence")
	if !ok || confidence < 0 || confidence > 1 {
		return "", ToolErrorf("propose_edit", ToolErrorInvalidArgs,
			"confidence must be a number between 0 and 1, got %v", args["confidence"])
	}
	if strings.TrimSpace(suggestedText) == "" {
		return "", ToolErrorf("propose_edit", ToolErrorInvalidArgs, "suggested_text must not be empty")
	}

	sec, err := ts.Storage.GetSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ToolErrorf("propose_edit", ToolErrorNotFound, "section %s not found", sectionID)
		}
		return "", NewToolError("propose_edit", ToolErrorUpstreamFailure, err)
	}
	doc, err := ts.Storage.GetDocument(ctx, sec.DocumentID)
	if err != nil {
		return "", NewToolError("propose_edit", ToolErrorUpstreamFailure, err)
	}

	sug := &store.Suggestion{
		QueryID:       ts.QueryID,
		SectionID:     sec.ID,
		DocumentID:    sec.DocumentID,
		OriginalText:  sec.Content,
		SuggestedText: suggestedText,
		Reasoning:     reasoning,
		Confidence:    confidence,
		Status:        store.SuggestionPending,
	}
	// The suggestion row must exist before the model is told the call
	// succeeded, so a crash after this point still leaves a reviewable
	// partial result.
	if err := ts.Storage.CreateSuggestion(ctx, sug); err != nil {
		return "", NewToolError("propose_edit", ToolErrorUpstreamFailure, err)
	}

	ts.State.RecordSuggestion(sug.ID)
	ts.Sink.Emit(newEvent(EventSuggestion, ts.QueryID, map[string]any{
		"suggestion_id": sug.ID,
		"section_title": sec.Title,
		"file_path":     doc.FilePath,
		"confidence":    confidence,
		"preview":       previewText(suggestedText, 200),
	}))

	return marshalResult("propose_edit", map[string]any{"suggestion_id": sug.ID})
}

func marshalResult(tool string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", NewToolError(tool, ToolErrorUpstreamFailure,
			fmt.Errorf("failed to encode result: %w", err))
	}
	return string(b), nil
}

func previewText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
