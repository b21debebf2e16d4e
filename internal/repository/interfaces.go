package repository

import (
	"context"
	"time"

	"github.com/mhartman/phaseflow/internal/domain"
)

type ProjectRepo interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string) error
}

type PhaseRepo interface {
	Create(ctx context.Context, p *domain.Phase) error
	GetByID(ctx context.Context, id string) (*domain.Phase, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Phase, error)
	Update(ctx context.Context, p *domain.Phase) error
	// UpdateDates writes a phase's date pair and reports whether the row
	// actually changed, so no-op cascade applies count zero. The write is
	// scoped to the project so a result carrying foreign phase IDs cannot
	// move rows outside the project it was accepted for.
	UpdateDates(ctx context.Context, projectID, id string, start, end time.Time, updatedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type DependencyRepo interface {
	Create(ctx context.Context, d *domain.Dependency) error
	GetByID(ctx context.Context, id string) (*domain.Dependency, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Dependency, error)
	ListBySuccessor(ctx context.Context, phaseID string) ([]domain.Dependency, error)
	Exists(ctx context.Context, predecessorID, successorID string, t domain.DependencyType) (bool, error)
	Delete(ctx context.Context, id string) error
}

// GraphVersionRepo tracks a monotonic per-project dependency-graph version.
// Every dependency mutation bumps it inside the same transaction; cascade
// results carry the version they were calculated against.
type GraphVersionRepo interface {
	Get(ctx context.Context, projectID string) (int64, error)
	Bump(ctx context.Context, projectID string) (int64, error)
}
