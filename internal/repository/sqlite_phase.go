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

// phaseColumns is the canonical SELECT column list for phases.
const phaseColumns = `id, project_id, name, start_date, end_date, sequence_order,
		locked, created_at, updated_at`

// SQLitePhaseRepo implements PhaseRepo using a SQLite database.
type SQLitePhaseRepo struct {
	db db.DBTX
}

// NewSQLitePhaseRepo creates a new SQLitePhaseRepo.
func NewSQLitePhaseRepo(conn db.DBTX) *SQLitePhaseRepo {
	return &SQLitePhaseRepo{db: conn}
}

func (r *SQLitePhaseRepo) Create(ctx context.Context, p *domain.Phase) error {
	query := `INSERT INTO phases (id, project_id, name, start_date, end_date, sequence_order,
		locked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.ProjectID,
		p.Name,
		p.StartDate.Format(dateLayout),
		p.EndDate.Format(dateLayout),
		p.SequenceOrder,
		boolToInt(p.Locked),
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting phase: %w", err)
	}
	return nil
}

func (r *SQLitePhaseRepo) GetByID(ctx context.Context, id string) (*domain.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases WHERE id = ?`
	p, err := r.scanPhase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("phase: %w", ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (r *SQLitePhaseRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases WHERE project_id = ?
		ORDER BY sequence_order, id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing phases: %w", err)
	}
	defer rows.Close()

	var phases []*domain.Phase
	for rows.Next() {
		p, err := r.scanPhase(rows)
		if err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating phases: %w", err)
	}
	return phases, nil
}

func (r *SQLitePhaseRepo) Update(ctx context.Context, p *domain.Phase) error {
	query := `UPDATE phases SET name = ?, start_date = ?, end_date = ?, sequence_order = ?,
		locked = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.StartDate.Format(dateLayout),
		p.EndDate.Format(dateLayout),
		p.SequenceOrder,
		boolToInt(p.Locked),
		p.UpdatedAt.Format(time.RFC3339),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("phase %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// UpdateDates writes only the date pair, scoped to the owning project. The
// WHERE clause skips rows whose dates already match, so the returned flag
// reports a real change.
func (r *SQLitePhaseRepo) UpdateDates(ctx context.Context, projectID, id string, start, end time.Time, updatedAt time.Time) (bool, error) {
	query := `UPDATE phases SET start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ? AND project_id = ? AND (start_date != ? OR end_date != ?)`
	startStr := start.Format(dateLayout)
	endStr := end.Format(dateLayout)
	res, err := r.db.ExecContext(ctx, query,
		startStr, endStr, updatedAt.Format(time.RFC3339),
		id, projectID, startStr, endStr,
	)
	if err != nil {
		return false, fmt.Errorf("updating phase dates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking date update result: %w", err)
	}
	return n > 0, nil
}

func (r *SQLitePhaseRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM phases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("phase %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLitePhaseRepo) scanPhase(row rowScanner) (*domain.Phase, error) {
	var p domain.Phase
	var startDate, endDate, createdAt, updatedAt string
	var locked int
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Name, &startDate, &endDate,
		&p.SequenceOrder, &locked, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning phase: %w", err)
	}

	var err error
	if p.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return nil, fmt.Errorf("parsing phase start date: %w", err)
	}
	if p.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
		return nil, fmt.Errorf("parsing phase end date: %w", err)
	}
	p.Locked = intToBool(locked)
	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing phase created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing phase updated_at: %w", err)
	}
	return &p, nil
}
