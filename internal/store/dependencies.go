package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ReplaceDependencies swaps out all outgoing edges for a source section.
// Called after re-parsing a section's cross-references.
func (s *Store) ReplaceDependencies(ctx context.Context, sourceSectionID string, deps []Dependency) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dependencies WHERE source_section_id = ?`, sourceSectionID); err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}

	for i := range deps {
		d := &deps[i]
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.SourceSectionID = sourceSectionID
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO dependencies (dependency_id, source_section_id, target_section_id, kind)
			 VALUES (?, ?, ?, ?)`,
			d.ID, d.SourceSectionID, d.TargetSectionID, d.Kind)
		if err != nil {
			return fmt.Errorf("failed to insert dependency: %w", err)
		}
	}

	return tx.Commit()
}

// OutgoingDependencies returns edges where the section is the source.
func (s *Store) OutgoingDependencies(ctx context.Context, sectionID string) ([]Dependency, error) {
	return s.queryDependencies(ctx,
		`SELECT dependency_id, source_section_id, target_section_id, kind
		 FROM dependencies WHERE source_section_id = ?`, sectionID)
}

// IncomingDependencies returns edges where the section is the target.
func (s *Store) IncomingDependencies(ctx context.Context, sectionID string) ([]Dependency, error) {
	return s.queryDependencies(ctx,
		`SELECT dependency_id, source_section_id, target_section_id, kind
		 FROM dependencies WHERE target_section_id = ?`, sectionID)
}

func (s *Store) queryDependencies(ctx context.Context, query string, args ...any) ([]Dependency, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []Dependency
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.ID, &d.SourceSectionID, &d.TargetSectionID, &d.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}
