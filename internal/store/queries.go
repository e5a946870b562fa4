package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateQuery inserts a new query in PENDING state.
func (s *Store) CreateQuery(ctx context.Context, queryText string) (*Query, error) {
	q := &Query{
		ID:            uuid.NewString(),
		QueryText:     queryText,
		Status:        QueryPending,
		StatusMessage: "Query created, waiting to process",
		CreatedAt:     time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (query_id, query_text, status, status_message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.QueryText, string(q.Status), q.StatusMessage, q.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to insert query: %w", err)
	}
	return q, nil
}

// GetQuery returns a query by id.
func (s *Store) GetQuery(ctx context.Context, id string) (*Query, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT query_id, query_text, status, status_message, error_message, created_at, completed_at
		 FROM queries WHERE query_id = ?`, id)
	return scanQuery(row)
}

// ListQueries returns queries newest first, optionally filtered by status.
func (s *Store) ListQueries(ctx context.Context, status QueryStatus, limit, offset int) ([]Query, error) {
	query := `SELECT query_id, query_text, status, status_message, error_message, created_at, completed_at
	          FROM queries`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queries: %w", err)
	}
	defer rows.Close()

	var queries []Query
	for rows.Next() {
		var q Query
		var created int64
		var completed sql.NullInt64
		if err := rows.Scan(&q.ID, &q.QueryText, &q.Status, &q.StatusMessage,
			&q.ErrorMessage, &created, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		q.CreatedAt = time.Unix(created, 0)
		if completed.Valid {
			q.CompletedAt = time.Unix(completed.Int64, 0)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// UpdateQueryStatus transitions a query's status. A completion timestamp is
// recorded when the status is terminal.
func (s *Store) UpdateQueryStatus(ctx context.Context, id string, status QueryStatus, statusMessage, errorMessage string) error {
	var completedAt sql.NullInt64
	if status.IsTerminal() {
		completedAt = sql.NullInt64{Int64: time.Now().Unix(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE queries SET status = ?, status_message = ?, error_message = ?,
		 completed_at = COALESCE(?, completed_at)
		 WHERE query_id = ?`,
		string(status), statusMessage, errorMessage, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update query status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanQuery(row *sql.Row) (*Query, error) {
	var q Query
	var created int64
	var completed sql.NullInt64
	err := row.Scan(&q.ID, &q.QueryText, &q.Status, &q.StatusMessage,
		&q.ErrorMessage, &created, &completed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan query: %w", err)
	}
	q.CreatedAt = time.Unix(created, 0)
	if completed.Valid {
		q.CompletedAt = time.Unix(completed.Int64, 0)
	}
	return &q, nil
}
