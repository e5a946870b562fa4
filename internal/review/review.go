// Package review implements the human disposition of agent suggestions:
// accept, reject, edit, and revert. Accept and edit write the new content
// through to the section and document under an optimistic concurrency check,
// and every terminal action appends exactly one history entry.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"docpilot/internal/ingest"
	"docpilot/internal/store"
)

// ErrAlreadyReviewed is returned when acting on a suggestion that is no
// longer pending.
var ErrAlreadyReviewed = errors.New("suggestion already reviewed")

// ErrNotRevertible is returned when reverting a history entry whose action
// did not change content.
var ErrNotRevertible = errors.New("history entry is not revertible")

// Indexer is the slice of the search index the review service needs to keep
// search results consistent with applied edits. *search.Index satisfies it.
type Indexer interface {
	IndexSection(sectionID, documentID, title, filePath, content string) error
}

// Service applies review decisions to suggestions.
type Service struct {
	Store  *store.Store
	Index  Indexer // optional; nil skips reindexing
	Logger *slog.Logger
}

func NewService(st *store.Store, idx Indexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: st, Index: idx, Logger: logger}
}

// Accept applies a pending suggestion's text to its section. Fails with
// store.ErrStaleContent when the section content has drifted from the
// suggestion's original_text snapshot.
func (s *Service) Accept(ctx context.Context, suggestionID string) (*store.Suggestion, error) {
	return s.apply(ctx, suggestionID, "", store.SuggestionAccepted, store.ActionAccepted)
}

// Edit applies user-modified text instead of the suggested text. The override
// is recorded on the suggestion and the history entry.
func (s *Service) Edit(ctx context.Context, suggestionID, editedText string) (*store.Suggestion, error) {
	if strings.TrimSpace(editedText) == "" {
		return nil, fmt.Errorf("edited text must not be empty")
	}
	return s.apply(ctx, suggestionID, editedText, store.SuggestionEdited, store.ActionEdited)
}

// Reject marks a pending suggestion rejected without touching the section.
func (s *Service) Reject(ctx context.Context, suggestionID string) (*store.Suggestion, error) {
	sug, err := s.pendingSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}

	if err := s.Store.UpdateSuggestionStatus(ctx, sug.ID, store.SuggestionRejected, nil); err != nil {
		return nil, fmt.Errorf("failed to update suggestion status: %w", err)
	}
	sug.Status = store.SuggestionRejected

	if err := s.writeHistory(ctx, sug, sug.OriginalText, sug.SuggestedText, store.ActionRejected); err != nil {
		return nil, err
	}
	return sug, nil
}

// Revert undoes a previously applied history entry, restoring the content the
// entry replaced. The revert itself is recorded as a new REVERTED entry; the
// original entry is never mutated.
func (s *Service) Revert(ctx context.Context, historyID string) (*store.HistoryEntry, error) {
	entry, err := s.Store.GetHistoryEntry(ctx, historyID)
	if err != nil {
		return nil, err
	}
	switch entry.Action {
	case store.ActionAccepted, store.ActionEdited:
	default:
		return nil, fmt.Errorf("%w: action %s", ErrNotRevertible, entry.Action)
	}
	if entry.SectionID == "" {
		return nil, fmt.Errorf("%w: no section recorded", ErrNotRevertible)
	}

	sec, err := s.Store.GetSection(ctx, entry.SectionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.Store.GetDocument(ctx, sec.DocumentID)
	if err != nil {
		return nil, err
	}

	revert := &store.HistoryEntry{
		DocumentID:   entry.DocumentID,
		SectionID:    entry.SectionID,
		SuggestionID: entry.SuggestionID,
		OldContent:   entry.NewContent,
		NewContent:   entry.OldContent,
		Action:       store.ActionReverted,
		QueryText:    entry.QueryText,
		FilePath:     entry.FilePath,
		SectionTitle: entry.SectionTitle,
	}

	// The revert expects the section to still hold the content the entry
	// wrote; anything else means a later edit landed on top.
	newDocContent := replaceInDocument(doc.Content, entry.NewContent, entry.OldContent)
	if err := s.Store.ApplyReview(ctx, store.ReviewWrite{
		SectionID:       sec.ID,
		ExpectedContent: entry.NewContent,
		NewContent:      entry.OldContent,
		DocContent:      newDocContent,
		Checksum:        ingest.Checksum(newDocContent),
		Entry:           revert,
	}); err != nil {
		return nil, err
	}
	s.reindex(sec, doc.FilePath, entry.OldContent)

	s.Logger.Info("reverted history entry",
		"history_id", entry.ID, "section_id", entry.SectionID)
	return revert, nil
}

// apply is the shared accept/edit path.
func (s *Service) apply(ctx context.Context, suggestionID, editedText string, status store.SuggestionStatus, action store.HistoryAction) (*store.Suggestion, error) {
	sug, err := s.pendingSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}

	sec, err := s.Store.GetSection(ctx, sug.SectionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.Store.GetDocument(ctx, sec.DocumentID)
	if err != nil {
		return nil, err
	}

	// Stale check up front for a clean error before any write. The store
	// re-checks inside the transaction, so a concurrent accept between here
	// and the write still cannot corrupt content.
	if sec.Content != sug.OriginalText {
		return nil, store.ErrStaleContent
	}

	newText := sug.SuggestedText
	if editedText != "" {
		newText = editedText
	}
	var editedPtr *string
	if editedText != "" {
		editedPtr = &editedText
	}

	queryText := ""
	if q, err := s.Store.GetQuery(ctx, sug.QueryID); err == nil {
		queryText = q.QueryText
	}
	entry := &store.HistoryEntry{
		DocumentID:   sug.DocumentID,
		SectionID:    sug.SectionID,
		SuggestionID: sug.ID,
		OldContent:   sug.OriginalText,
		NewContent:   newText,
		Action:       action,
		QueryText:    queryText,
		FilePath:     doc.FilePath,
		SectionTitle: sec.Title,
	}

	// Section content, suggestion status, and the history row commit
	// together, so a crash cannot leave an applied edit without its audit
	// trail or status transition.
	newDocContent := replaceInDocument(doc.Content, sug.OriginalText, newText)
	if err := s.Store.ApplyReview(ctx, store.ReviewWrite{
		SectionID:       sec.ID,
		ExpectedContent: sug.OriginalText,
		NewContent:      newText,
		DocContent:      newDocContent,
		Checksum:        ingest.Checksum(newDocContent),
		SuggestionID:    sug.ID,
		Status:          status,
		EditedText:      editedPtr,
		Entry:           entry,
	}); err != nil {
		return nil, err
	}
	sug.Status = status
	sug.EditedText = editedText
	s.reindex(sec, doc.FilePath, newText)

	s.Logger.Info("applied suggestion",
		"suggestion_id", sug.ID, "section_id", sug.SectionID, "action", string(action))
	return sug, nil
}

// replaceInDocument swaps the first occurrence of oldText in the document
// body for newText, leaving the body untouched when the snapshot is absent.
func replaceInDocument(docContent, oldText, newText string) string {
	if oldText != "" && strings.Contains(docContent, oldText) {
		return strings.Replace(docContent, oldText, newText, 1)
	}
	return docContent
}

func (s *Service) reindex(sec *store.Section, filePath, content string) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexSection(sec.ID, sec.DocumentID, sec.Title, filePath, content); err != nil {
		s.Logger.Warn("failed to reindex section after edit",
			"section_id", sec.ID, "error", err)
	}
}

func (s *Service) pendingSuggestion(ctx context.Context, suggestionID string) (*store.Suggestion, error) {
	sug, err := s.Store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	if sug.Status != store.SuggestionPending {
		return nil, fmt.Errorf("%w: status %s", ErrAlreadyReviewed, sug.Status)
	}
	return sug, nil
}

func (s *Service) writeHistory(ctx context.Context, sug *store.Suggestion, oldContent, newContent string, action store.HistoryAction) error {
	queryText := ""
	if q, err := s.Store.GetQuery(ctx, sug.QueryID); err == nil {
		queryText = q.QueryText
	}

	filePath := ""
	sectionTitle := ""
	if sec, err := s.Store.GetSection(ctx, sug.SectionID); err == nil {
		sectionTitle = sec.Title
		if doc, err := s.Store.GetDocument(ctx, sec.DocumentID); err == nil {
			filePath = doc.FilePath
		}
	}

	entry := &store.HistoryEntry{
		DocumentID:   sug.DocumentID,
		SectionID:    sug.SectionID,
		SuggestionID: sug.ID,
		OldContent:   oldContent,
		NewContent:   newContent,
		Action:       action,
		QueryText:    queryText,
		FilePath:     filePath,
		SectionTitle: sectionTitle,
	}
	if err := s.Store.CreateHistoryEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}
