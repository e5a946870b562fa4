package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateHistoryEntry appends an audit row. History is append-only.
func (s *Store) CreateHistoryEntry(ctx context.Context, e *HistoryEntry) error {
	return insertHistory(ctx, s.db, e)
}

func insertHistory(ctx context.Context, ex execer, e *HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()

	_, err := ex.ExecContext(ctx,
		`INSERT INTO history
		 (history_id, document_id, section_id, suggestion_id, old_content, new_content,
		  action, query_text, file_path, section_title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DocumentID, nullIfEmpty(e.SectionID), nullIfEmpty(e.SuggestionID),
		e.OldContent, e.NewContent, string(e.Action), e.QueryText, e.FilePath,
		e.SectionTitle, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// GetHistoryEntry returns a single history entry.
func (s *Store) GetHistoryEntry(ctx context.Context, id string) (*HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, historySelect+` WHERE history_id = ?`, id)
	return scanHistory(row.Scan)
}

// ListHistory returns history entries newest first, optionally filtered by
// action, with paging.
func (s *Store) ListHistory(ctx context.Context, action HistoryAction, limit, offset int) ([]HistoryEntry, error) {
	query := historySelect
	args := []any{}
	if action != "" {
		query += ` WHERE action = ?`
		args = append(args, string(action))
	}
	query += ` ORDER BY created_at DESC, history_id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return s.queryHistory(ctx, query, args...)
}

// ListDocumentHistory returns a document's history newest first.
func (s *Store) ListDocumentHistory(ctx context.Context, documentID string, limit int) ([]HistoryEntry, error) {
	return s.queryHistory(ctx,
		historySelect+` WHERE document_id = ? ORDER BY created_at DESC, history_id LIMIT ?`,
		documentID, limit)
}

// ListSectionHistory returns a section's history newest first.
func (s *Store) ListSectionHistory(ctx context.Context, sectionID string) ([]HistoryEntry, error) {
	return s.queryHistory(ctx,
		historySelect+` WHERE section_id = ? ORDER BY created_at DESC, history_id`,
		sectionID)
}

// HistoryStats returns per-action counts and activity over the last seven days.
func (s *Store) HistoryStats(ctx context.Context) (map[HistoryAction]int, int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM history GROUP BY action`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query history stats: %w", err)
	}
	defer rows.Close()

	byAction := make(map[HistoryAction]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, 0, fmt.Errorf("failed to scan history stats: %w", err)
		}
		byAction[HistoryAction(action)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	weekAgo := time.Now().AddDate(0, 0, -7).Unix()
	var recent int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM history WHERE created_at >= ?`, weekAgo).Scan(&recent); err != nil {
		return nil, 0, fmt.Errorf("failed to count recent history: %w", err)
	}
	return byAction, recent, nil
}

const historySelect = `SELECT history_id, document_id, section_id, suggestion_id, old_content,
	new_content, action, query_text, file_path, section_title, created_at FROM history`

func (s *Store) queryHistory(ctx context.Context, query string, args ...any) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanHistory(scan func(...any) error) (*HistoryEntry, error) {
	var e HistoryEntry
	var sectionID, suggestionID sql.NullString
	var created int64
	err := scan(&e.ID, &e.DocumentID, &sectionID, &suggestionID, &e.OldContent,
		&e.NewContent, &e.Action, &e.QueryText, &e.FilePath, &e.SectionTitle, &created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}
	e.SectionID = sectionID.String
	e.SuggestionID = suggestionID.String
	e.CreatedAt = time.Unix(created, 0)
	return &e, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
