package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mhartman/phaseflow/internal/db"
)

// SQLiteGraphVersionRepo maintains the per-project dependency-graph version
// counter in the project_graph_versions table.
type SQLiteGraphVersionRepo struct {
	db db.DBTX
}

// NewSQLiteGraphVersionRepo creates a new SQLiteGraphVersionRepo.
func NewSQLiteGraphVersionRepo(conn db.DBTX) *SQLiteGraphVersionRepo {
	return &SQLiteGraphVersionRepo{db: conn}
}

// Get returns the current graph version for a project. Strictly read-only so
// previews never write; a project with no row yet is at version 0.
func (r *SQLiteGraphVersionRepo) Get(ctx context.Context, projectID string) (int64, error) {
	var version int64
	query := `SELECT version FROM project_graph_versions WHERE project_id = ?`
	err := r.db.QueryRowContext(ctx, query, projectID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading graph version for %s: %w", projectID, err)
	}
	return version, nil
}

// Bump atomically increments and returns the project's graph version.
func (r *SQLiteGraphVersionRepo) Bump(ctx context.Context, projectID string) (int64, error) {
	seed := `INSERT INTO project_graph_versions (project_id, version) VALUES (?, 0)
		ON CONFLICT(project_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, seed, projectID); err != nil {
		return 0, fmt.Errorf("seeding graph version for %s: %w", projectID, err)
	}

	var version int64
	bump := `UPDATE project_graph_versions
		SET version = version + 1
		WHERE project_id = ?
		RETURNING version`
	if err := r.db.QueryRowContext(ctx, bump, projectID).Scan(&version); err != nil {
		return 0, fmt.Errorf("bumping graph version for %s: %w", projectID, err)
	}
	return version, nil
}
