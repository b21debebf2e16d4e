package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mhartman/phaseflow/internal/db"
	"github.com/mhartman/phaseflow/internal/domain"
)

const dependencyColumns = `id, project_id, predecessor_phase_id, successor_phase_id,
		dep_type, lag_days, created_at`

// SQLiteDependencyRepo implements DependencyRepo using a SQLite database.
type SQLiteDependencyRepo struct {
	db db.DBTX
}

// NewSQLiteDependencyRepo creates a new SQLiteDependencyRepo.
func NewSQLiteDependencyRepo(conn db.DBTX) *SQLiteDependencyRepo {
	return &SQLiteDependencyRepo{db: conn}
}

func (r *SQLiteDependencyRepo) Create(ctx context.Context, d *domain.Dependency) error {
	query := `INSERT INTO phase_dependencies (id, project_id, predecessor_phase_id,
		successor_phase_id, dep_type, lag_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.ProjectID,
		d.PredecessorPhaseID,
		d.SuccessorPhaseID,
		string(d.Type),
		d.LagDays,
		d.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting dependency: %w", err)
	}
	return nil
}

func (r *SQLiteDependencyRepo) GetByID(ctx context.Context, id string) (*domain.Dependency, error) {
	query := `SELECT ` + dependencyColumns + ` FROM phase_dependencies WHERE id = ?`
	d, err := r.scanDependency(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dependency: %w", ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

func (r *SQLiteDependencyRepo) ListByProject(ctx context.Context, projectID string) ([]domain.Dependency, error) {
	query := `SELECT ` + dependencyColumns + ` FROM phase_dependencies
		WHERE project_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing dependencies: %w", err)
	}
	defer rows.Close()
	return r.scanDependencies(rows)
}

func (r *SQLiteDependencyRepo) ListBySuccessor(ctx context.Context, phaseID string) ([]domain.Dependency, error) {
	query := `SELECT ` + dependencyColumns + ` FROM phase_dependencies
		WHERE successor_phase_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, phaseID)
	if err != nil {
		return nil, fmt.Errorf("listing predecessors: %w", err)
	}
	defer rows.Close()
	return r.scanDependencies(rows)
}

func (r *SQLiteDependencyRepo) Exists(ctx context.Context, predecessorID, successorID string, t domain.DependencyType) (bool, error) {
	query := `SELECT COUNT(*) FROM phase_dependencies
		WHERE predecessor_phase_id = ? AND successor_phase_id = ? AND dep_type = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, predecessorID, successorID, string(t)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking dependency existence: %w", err)
	}
	return count > 0, nil
}

func (r *SQLiteDependencyRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM phase_dependencies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dependency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("dependency %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteDependencyRepo) scanDependency(row rowScanner) (*domain.Dependency, error) {
	var d domain.Dependency
	var depType, createdAt string
	if err := row.Scan(&d.ID, &d.ProjectID, &d.PredecessorPhaseID, &d.SuccessorPhaseID,
		&depType, &d.LagDays, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning dependency: %w", err)
	}
	d.Type = domain.DependencyType(depType)
	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing dependency created_at: %w", err)
	}
	return &d, nil
}

// scanDependencies scans multiple dependency rows from *sql.Rows.
func (r *SQLiteDependencyRepo) scanDependencies(rows *sql.Rows) ([]domain.Dependency, error) {
	var deps []domain.Dependency
	for rows.Next() {
		d, err := r.scanDependency(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dependencies: %w", err)
	}
	return deps, nil
}
