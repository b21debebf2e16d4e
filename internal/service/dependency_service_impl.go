package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhartman/phaseflow/internal/cascade"
	"github.com/mhartman/phaseflow/internal/db"
	"github.com/mhartman/phaseflow/internal/domain"
	"github.com/mhartman/phaseflow/internal/metrics"
	"github.com/mhartman/phaseflow/internal/repository"
)

type dependencyService struct {
	deps     repository.DependencyRepo
	uow      db.UnitOfWork
	locks    *ProjectLocks
	metrics  *metrics.EngineMetrics
	observer UseCaseObserver
}

// NewDependencyService creates the validator-gated dependency service. All
// graph mutations pass through it: edges are validated against the persisted
// graph inside the commit transaction, while holding the project's advisory
// lock, so two concurrent inserts cannot jointly form a cycle.
func NewDependencyService(deps repository.DependencyRepo, uow db.UnitOfWork, locks *ProjectLocks, m *metrics.EngineMetrics, observers ...UseCaseObserver) DependencyService {
	return &dependencyService{
		deps:     deps,
		uow:      uow,
		locks:    locks,
		metrics:  m,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *dependencyService) Create(ctx context.Context, req CreateDependencyRequest) (*domain.Dependency, error) {
	started := time.Now()

	candidate := &domain.Dependency{
		ID:                 uuid.New().String(),
		ProjectID:          req.ProjectID,
		PredecessorPhaseID: req.PredecessorPhaseID,
		SuccessorPhaseID:   req.SuccessorPhaseID,
		Type:               req.Type,
		LagDays:            req.LagDays,
		CreatedAt:          time.Now().UTC(),
	}

	// Fast duplicate check before taking the project lock. The authoritative
	// validation still runs against the transactional snapshot below.
	dup, err := s.deps.Exists(ctx, req.PredecessorPhaseID, req.SuccessorPhaseID, req.Type)
	if err == nil && dup {
		err = fmt.Errorf("dependency %s -> %s (%s): %w",
			req.PredecessorPhaseID, req.SuccessorPhaseID, req.Type, domain.ErrDuplicateDependency)
	}
	if err != nil {
		if kind := validationKind(err); kind != "" && s.metrics != nil {
			s.metrics.ValidationFailures.WithLabelValues(kind).Inc()
		}
		observe(ctx, s.observer, "dependency_create", started, err, map[string]any{
			"project_id": req.ProjectID,
		})
		return nil, err
	}

	lock := s.locks.get(req.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txPhases := repository.NewSQLitePhaseRepo(tx)
		txDeps := repository.NewSQLiteDependencyRepo(tx)
		txVersions := repository.NewSQLiteGraphVersionRepo(tx)

		phases, err := txPhases.ListByProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		existing, err := txDeps.ListByProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}

		if err := cascade.ValidateNewEdge(phases, existing, *candidate); err != nil {
			return err
		}
		if err := txDeps.Create(ctx, candidate); err != nil {
			return err
		}
		_, err = txVersions.Bump(ctx, req.ProjectID)
		return err
	})

	if err != nil {
		if kind := validationKind(err); kind != "" && s.metrics != nil {
			s.metrics.ValidationFailures.WithLabelValues(kind).Inc()
		}
		observe(ctx, s.observer, "dependency_create", started, err, map[string]any{
			"project_id": req.ProjectID,
		})
		return nil, err
	}

	observe(ctx, s.observer, "dependency_create", started, nil, map[string]any{
		"project_id":    req.ProjectID,
		"dependency_id": candidate.ID,
		"dep_type":      string(candidate.Type),
	})
	return candidate, nil
}

func (s *dependencyService) Delete(ctx context.Context, id string) error {
	started := time.Now()

	// Look up the owning project first so the advisory lock covers the delete.
	dep, err := s.deps.GetByID(ctx, id)
	if err != nil {
		observe(ctx, s.observer, "dependency_delete", started, err, map[string]any{"dependency_id": id})
		return err
	}

	lock := s.locks.get(dep.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txDeps := repository.NewSQLiteDependencyRepo(tx)
		txVersions := repository.NewSQLiteGraphVersionRepo(tx)

		if err := txDeps.Delete(ctx, id); err != nil {
			return err
		}
		_, err := txVersions.Bump(ctx, dep.ProjectID)
		return err
	})

	observe(ctx, s.observer, "dependency_delete", started, err, map[string]any{
		"project_id":    dep.ProjectID,
		"dependency_id": id,
	})
	return err
}

func (s *dependencyService) ListByProject(ctx context.Context, projectID string) ([]domain.Dependency, error) {
	return s.deps.ListByProject(ctx, projectID)
}

func (s *dependencyService) ListBySuccessor(ctx context.Context, phaseID string) ([]domain.Dependency, error) {
	return s.deps.ListBySuccessor(ctx, phaseID)
}

// validationKind maps graph validation errors to a metric label, or "" for
// non-validation failures.
func validationKind(err error) string {
	var cycleErr *domain.CircularDependencyError
	switch {
	case errors.Is(err, domain.ErrSelfDependency):
		return "self_dependency"
	case errors.Is(err, domain.ErrDuplicateDependency):
		return "duplicate_dependency"
	case errors.Is(err, domain.ErrUnknownPhase):
		return "unknown_phase"
	case errors.As(err, &cycleErr):
		return "circular_dependency"
	default:
		return ""
	}
}
