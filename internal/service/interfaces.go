package service

import (
	"context"
	"time"

	"github.com/mhartman/phaseflow/internal/domain"
)

// CreateDependencyRequest carries a candidate edge through the validator gate.
type CreateDependencyRequest struct {
	ProjectID          string
	PredecessorPhaseID string
	SuccessorPhaseID   string
	Type               domain.DependencyType
	LagDays            int
}

// PreviewRequest asks what a hypothetical date change to one phase would do.
type PreviewRequest struct {
	ProjectID      string
	TriggerPhaseID string
	NewStart       time.Time
	NewEnd         time.Time
}

// ApplyRequest commits a previously calculated result. Override lets a caller
// deliberately apply an infeasible result; locked phases stay pinned even then.
type ApplyRequest struct {
	ProjectID string
	Result    *domain.CascadeResult
	Override  bool
}

type DependencyService interface {
	Create(ctx context.Context, req CreateDependencyRequest) (*domain.Dependency, error)
	Delete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID string) ([]domain.Dependency, error)
	// ListBySuccessor returns the edges feeding into one phase.
	ListBySuccessor(ctx context.Context, phaseID string) ([]domain.Dependency, error)
}

type CascadeService interface {
	// Preview calculates a cascade without mutating anything.
	Preview(ctx context.Context, req PreviewRequest) (*domain.CascadeResult, error)
	// Apply persists an accepted result atomically and returns the number of
	// phases whose dates actually changed.
	Apply(ctx context.Context, req ApplyRequest) (int, error)
}

type ProjectService interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context) ([]*domain.Project, error)
}

type PhaseService interface {
	Create(ctx context.Context, p *domain.Phase) error
	GetByID(ctx context.Context, id string) (*domain.Phase, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Phase, error)
}
