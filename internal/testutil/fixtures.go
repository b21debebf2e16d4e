package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mhartman/phaseflow/internal/db"
	"github.com/mhartman/phaseflow/internal/domain"
)

// NewTestDB opens an in-memory SQLite database with the full phase engine
// schema migrated, closed when the test completes. Each call gets its own
// database, so per-project graph state never leaks between tests.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// NewTestUoW wraps the test database in the transaction boundary cascade
// applies and dependency mutations run under.
func NewTestUoW(database *sql.DB) db.UnitOfWork {
	return db.NewSQLiteUnitOfWork(database)
}

// Project options
type ProjectOption func(*domain.Project)

func WithProjectStart(d time.Time) ProjectOption {
	return func(p *domain.Project) {
		p.StartDate = domain.Date(d)
	}
}

func WithTargetDate(d time.Time) ProjectOption {
	return func(p *domain.Project) {
		t := domain.Date(d)
		p.TargetDate = &t
	}
}

func NewTestProject(name string, opts ...ProjectOption) *domain.Project {
	now := time.Now().UTC()
	p := &domain.Project{
		ID:        uuid.New().String(),
		Name:      name,
		StartDate: domain.Date(now.AddDate(0, -1, 0)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Phase options
type PhaseOption func(*domain.Phase)

func WithDates(start, end time.Time) PhaseOption {
	return func(p *domain.Phase) {
		p.StartDate = domain.Date(start)
		p.EndDate = domain.Date(end)
	}
}

func WithSequenceOrder(i int) PhaseOption {
	return func(p *domain.Phase) {
		p.SequenceOrder = i
	}
}

func WithLocked() PhaseOption {
	return func(p *domain.Phase) {
		p.Locked = true
	}
}

func NewTestPhase(projectID, name string, opts ...PhaseOption) *domain.Phase {
	now := time.Now().UTC()
	start := domain.Date(now)
	p := &domain.Phase{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		StartDate: start,
		EndDate:   domain.AddDays(start, 4),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dependency options
type DependencyOption func(*domain.Dependency)

func WithDependencyType(t domain.DependencyType) DependencyOption {
	return func(d *domain.Dependency) {
		d.Type = t
	}
}

func WithLagDays(n int) DependencyOption {
	return func(d *domain.Dependency) {
		d.LagDays = n
	}
}

func NewTestDependency(projectID, predecessorID, successorID string, opts ...DependencyOption) *domain.Dependency {
	d := &domain.Dependency{
		ID:                 uuid.New().String(),
		ProjectID:          projectID,
		PredecessorPhaseID: predecessorID,
		SuccessorPhaseID:   successorID,
		Type:               domain.FinishToStart,
		CreatedAt:          time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MustDate parses a YYYY-MM-DD literal; it panics on malformed input so
// fixtures can inline dates.
func MustDate(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
