package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateDocument inserts a document together with its parsed sections.
func (s *Store) CreateDocument(ctx context.Context, doc *Document, sections []Section) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (document_id, file_path, title, content, checksum, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.FilePath, doc.Title, doc.Content, doc.Checksum, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	if err := insertSections(ctx, tx, doc.ID, sections); err != nil {
		return err
	}

	return tx.Commit()
}

// ReplaceDocument updates a document's content and checksum and replaces all
// of its sections. Used on re-ingest when the source file changed.
func (s *Store) ReplaceDocument(ctx context.Context, doc *Document, sections []Section) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET title = ?, content = ?, checksum = ?, updated_at = ? WHERE document_id = ?`,
		doc.Title, doc.Content, doc.Checksum, now.Unix(), doc.ID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to delete old sections: %w", err)
	}

	if err := insertSections(ctx, tx, doc.ID, sections); err != nil {
		return err
	}

	return tx.Commit()
}

func insertSections(ctx context.Context, tx *sql.Tx, documentID string, sections []Section) error {
	for i := range sections {
		sec := &sections[i]
		if sec.ID == "" {
			sec.ID = uuid.NewString()
		}
		sec.DocumentID = documentID
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sections (section_id, document_id, title, content, position, start_line, end_line)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sec.ID, documentID, sec.Title, sec.Content, sec.Order, sec.StartLine, sec.EndLine)
		if err != nil {
			return fmt.Errorf("failed to insert section %d: %w", i, err)
		}
	}
	return nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document_id, file_path, title, content, checksum, created_at, updated_at
		 FROM documents WHERE document_id = ?`, id)
	return scanDocument(row)
}

// GetDocumentByPath returns a document by its unique file path.
func (s *Store) GetDocumentByPath(ctx context.Context, filePath string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document_id, file_path, title, content, checksum, created_at, updated_at
		 FROM documents WHERE file_path = ?`, filePath)
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	var created, updated int64
	err := row.Scan(&d.ID, &d.FilePath, &d.Title, &d.Content, &d.Checksum, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	d.CreatedAt = time.Unix(created, 0)
	d.UpdatedAt = time.Unix(updated, 0)
	return &d, nil
}

// ListDocuments returns all documents ordered by file path, without content.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, file_path, title, checksum, created_at, updated_at
		 FROM documents ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var created, updated int64
		if err := rows.Scan(&d.ID, &d.FilePath, &d.Title, &d.Checksum, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.CreatedAt = time.Unix(created, 0)
		d.UpdatedAt = time.Unix(updated, 0)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its sections. History rows are kept.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE source_section_id IN
		(SELECT section_id FROM sections WHERE document_id = ?)
		OR target_section_id IN (SELECT section_id FROM sections WHERE document_id = ?)`, id, id); err != nil {
		return fmt.Errorf("failed to delete dependencies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sections: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
