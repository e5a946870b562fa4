package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// GetSection returns a section by id.
func (s *Store) GetSection(ctx context.Context, id string) (*Section, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT section_id, document_id, title, content, position, start_line, end_line
		 FROM sections WHERE section_id = ?`, id)
	return scanSection(row)
}

// ListSections returns all sections of a document in order.
func (s *Store) ListSections(ctx context.Context, documentID string) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT section_id, document_id, title, content, position, start_line, end_line
		 FROM sections WHERE document_id = ? ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Title, &sec.Content,
			&sec.Order, &sec.StartLine, &sec.EndLine); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// FindSectionsByPath returns sections whose document file path contains the
// pattern (case-insensitive substring match), up to limit.
func (s *Store) FindSectionsByPath(ctx context.Context, pattern string, limit int) ([]Section, []string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sec.section_id, sec.document_id, sec.title, sec.content, sec.position,
		        sec.start_line, sec.end_line, d.file_path
		 FROM sections sec
		 JOIN documents d ON d.document_id = sec.document_id
		 WHERE lower(d.file_path) LIKE ?
		 ORDER BY d.file_path, sec.position
		 LIMIT ?`,
		"%"+strings.ToLower(pattern)+"%", limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query sections by path: %w", err)
	}
	defer rows.Close()

	var sections []Section
	var paths []string
	for rows.Next() {
		var sec Section
		var path string
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Title, &sec.Content,
			&sec.Order, &sec.StartLine, &sec.EndLine, &path); err != nil {
			return nil, nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, sec)
		paths = append(paths, path)
	}
	return sections, paths, rows.Err()
}

// applySectionEditTx replaces a section's content with an optimistic
// concurrency check: the write succeeds only if the live content still equals
// expectedContent. The parent document's content and checksum are updated in
// the same transaction so the two can never diverge.
func applySectionEditTx(ctx context.Context, tx *sql.Tx, sectionID, expectedContent, newContent, newDocContent, newChecksum string) error {
	var current, documentID string
	err := tx.QueryRowContext(ctx,
		`SELECT content, document_id FROM sections WHERE section_id = ?`, sectionID).
		Scan(&current, &documentID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read section: %w", err)
	}
	if current != expectedContent {
		return ErrStaleContent
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sections SET content = ? WHERE section_id = ?`, newContent, sectionID); err != nil {
		return fmt.Errorf("failed to update section: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET content = ?, checksum = ?, updated_at = ? WHERE document_id = ?`,
		newDocContent, newChecksum, time.Now().Unix(), documentID); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func scanSection(row *sql.Row) (*Section, error) {
	var sec Section
	err := row.Scan(&sec.ID, &sec.DocumentID, &sec.Title, &sec.Content,
		&sec.Order, &sec.StartLine, &sec.EndLine)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan section: %w", err)
	}
	return &sec, nil
}
