package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleContent is returned by content-modifying operations when the
// section's live content no longer matches the snapshot the caller holds.
var ErrStaleContent = errors.New("section content changed since snapshot")

// Store provides sqlite-backed persistence for documents, sections,
// suggestions, queries and edit history.
type Store struct {
	db *sql.DB
}

// execer is satisfied by both *sql.DB and *sql.Tx so write helpers can run
// standalone or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open creates a new database connection and initializes the schema.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	// WAL mode allows concurrent readers alongside the single writer
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT PRIMARY KEY,
		file_path   TEXT NOT NULL UNIQUE,
		title       TEXT NOT NULL,
		content     TEXT NOT NULL,
		checksum    TEXT NOT NULL,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sections (
		section_id  TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		title       TEXT NOT NULL,
		content     TEXT NOT NULL,
		position    INTEGER NOT NULL,
		start_line  INTEGER NOT NULL,
		end_line    INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(document_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS queries (
		query_id       TEXT PRIMARY KEY,
		query_text     TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		status_message TEXT NOT NULL DEFAULT '',
		error_message  TEXT NOT NULL DEFAULT '',
		created_at     INTEGER NOT NULL,
		completed_at   INTEGER
	);

	CREATE TABLE IF NOT EXISTS suggestions (
		suggestion_id  TEXT PRIMARY KEY,
		query_id       TEXT NOT NULL,
		section_id     TEXT NOT NULL,
		document_id    TEXT NOT NULL,
		original_text  TEXT NOT NULL,
		suggested_text TEXT NOT NULL,
		edited_text    TEXT NOT NULL DEFAULT '',
		reasoning      TEXT NOT NULL,
		confidence     REAL NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		created_at     INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES queries(query_id)
	);

	CREATE TABLE IF NOT EXISTS history (
		history_id    TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL,
		section_id    TEXT,
		suggestion_id TEXT,
		old_content   TEXT NOT NULL,
		new_content   TEXT NOT NULL,
		action        TEXT NOT NULL,
		query_text    TEXT NOT NULL DEFAULT '',
		file_path     TEXT NOT NULL DEFAULT '',
		section_title TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dependencies (
		dependency_id     TEXT PRIMARY KEY,
		source_section_id TEXT NOT NULL,
		target_section_id TEXT NOT NULL,
		kind              TEXT NOT NULL,
		UNIQUE (source_section_id, target_section_id, kind),
		FOREIGN KEY (source_section_id) REFERENCES sections(section_id) ON DELETE CASCADE,
		FOREIGN KEY (target_section_id) REFERENCES sections(section_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id, position);
	CREATE INDEX IF NOT EXISTS idx_suggestions_query ON suggestions(query_id);
	CREATE INDEX IF NOT EXISTS idx_suggestions_section ON suggestions(section_id);
	CREATE INDEX IF NOT EXISTS idx_history_document ON history(document_id);
	CREATE INDEX IF NOT EXISTS idx_history_section ON history(section_id);
	CREATE INDEX IF NOT EXISTS idx_history_action ON history(action);
	CREATE INDEX IF NOT EXISTS idx_deps_source ON dependencies(source_section_id);
	CREATE INDEX IF NOT EXISTS idx_deps_target ON dependencies(target_section_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
