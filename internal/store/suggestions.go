package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSuggestion persists a new pending suggestion. The row must exist
// before the proposing tool call is acknowledged, so the durable write
// happens here, synchronously.
func (s *Store) CreateSuggestion(ctx context.Context, sug *Suggestion) error {
	if sug.ID == "" {
		sug.ID = uuid.NewString()
	}
	if sug.Status == "" {
		sug.Status = SuggestionPending
	}
	sug.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suggestions
		 (suggestion_id, query_id, section_id, document_id, original_text, suggested_text,
		  edited_text, reasoning, confidence, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sug.ID, sug.QueryID, sug.SectionID, sug.DocumentID, sug.OriginalText,
		sug.SuggestedText, sug.EditedText, sug.Reasoning, sug.Confidence,
		string(sug.Status), sug.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert suggestion: %w", err)
	}
	return nil
}

// GetSuggestion returns a suggestion by id.
func (s *Store) GetSuggestion(ctx context.Context, id string) (*Suggestion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT suggestion_id, query_id, section_id, document_id, original_text, suggested_text,
		        edited_text, reasoning, confidence, status, created_at
		 FROM suggestions WHERE suggestion_id = ?`, id)
	return scanSuggestion(row)
}

// ListSuggestionsByQuery returns a query's suggestions ordered by descending
// confidence.
func (s *Store) ListSuggestionsByQuery(ctx context.Context, queryID string) ([]Suggestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT suggestion_id, query_id, section_id, document_id, original_text, suggested_text,
		        edited_text, reasoning, confidence, status, created_at
		 FROM suggestions WHERE query_id = ? ORDER BY confidence DESC`, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sug Suggestion
		var created int64
		if err := rows.Scan(&sug.ID, &sug.QueryID, &sug.SectionID, &sug.DocumentID,
			&sug.OriginalText, &sug.SuggestedText, &sug.EditedText, &sug.Reasoning,
			&sug.Confidence, &sug.Status, &created); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		sug.CreatedAt = time.Unix(created, 0)
		out = append(out, sug)
	}
	return out, rows.Err()
}

// CountSuggestionsByQuery returns the number of suggestions a query produced.
func (s *Store) CountSuggestionsByQuery(ctx context.Context, queryID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suggestions WHERE query_id = ?`, queryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count suggestions: %w", err)
	}
	return n, nil
}

// UpdateSuggestionStatus transitions a suggestion's review status and,
// optionally, records the user's edited text. Suggestions are never deleted.
func (s *Store) UpdateSuggestionStatus(ctx context.Context, id string, status SuggestionStatus, editedText *string) error {
	return updateSuggestionStatus(ctx, s.db, id, status, editedText)
}

func updateSuggestionStatus(ctx context.Context, ex execer, id string, status SuggestionStatus, editedText *string) error {
	var res sql.Result
	var err error
	if editedText != nil {
		res, err = ex.ExecContext(ctx,
			`UPDATE suggestions SET status = ?, edited_text = ? WHERE suggestion_id = ?`,
			string(status), *editedText, id)
	} else {
		res, err = ex.ExecContext(ctx,
			`UPDATE suggestions SET status = ? WHERE suggestion_id = ?`,
			string(status), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update suggestion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSuggestion(row *sql.Row) (*Suggestion, error) {
	var sug Suggestion
	var created int64
	err := row.Scan(&sug.ID, &sug.QueryID, &sug.SectionID, &sug.DocumentID,
		&sug.OriginalText, &sug.SuggestedText, &sug.EditedText, &sug.Reasoning,
		&sug.Confidence, &sug.Status, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan suggestion: %w", err)
	}
	sug.CreatedAt = time.Unix(created, 0)
	return &sug, nil
}
