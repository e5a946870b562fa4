package store

import (
	"context"
	"fmt"
)

// ReviewWrite bundles everything a review decision changes on disk: the
// section edit, the suggestion's status transition, and the audit row.
type ReviewWrite struct {
	SectionID       string
	ExpectedContent string
	NewContent      string
	DocContent      string
	Checksum        string

	// SuggestionID is empty for reverts, which have no suggestion to
	// transition.
	SuggestionID string
	Status       SuggestionStatus
	EditedText   *string

	Entry *HistoryEntry
}

// ApplyReview applies a review decision in a single transaction, so a crash
// can never leave the section content changed without the matching
// suggestion status and history row. Returns ErrNotFound if the section or
// suggestion does not exist and ErrStaleContent if the section's live
// content no longer matches ExpectedContent.
func (s *Store) ApplyReview(ctx context.Context, w ReviewWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := applySectionEditTx(ctx, tx, w.SectionID, w.ExpectedContent, w.NewContent, w.DocContent, w.Checksum); err != nil {
		return err
	}
	if w.SuggestionID != "" {
		if err := updateSuggestionStatus(ctx, tx, w.SuggestionID, w.Status, w.EditedText); err != nil {
			return err
		}
	}
	if w.Entry != nil {
		if err := insertHistory(ctx, tx, w.Entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}
