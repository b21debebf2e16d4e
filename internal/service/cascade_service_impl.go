package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mhartman/phaseflow/internal/cascade"
	"github.com/mhartman/phaseflow/internal/db"
	"github.com/mhartman/phaseflow/internal/domain"
	"github.com/mhartman/phaseflow/internal/metrics"
	"github.com/mhartman/phaseflow/internal/repository"
)

type cascadeService struct {
	uow      db.UnitOfWork
	locks    *ProjectLocks
	metrics  *metrics.EngineMetrics
	observer UseCaseObserver
}

// NewCascadeService creates the preview/apply service. Preview is read-only
// and lock-free; Apply serializes on the project's advisory lock and
// re-checks the graph version inside its transaction (optimistic concurrency
// instead of holding a lock across the calculate-then-apply gap).
func NewCascadeService(uow db.UnitOfWork, locks *ProjectLocks, m *metrics.EngineMetrics, observers ...UseCaseObserver) CascadeService {
	return &cascadeService{
		uow:      uow,
		locks:    locks,
		metrics:  m,
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *cascadeService) Preview(ctx context.Context, req PreviewRequest) (*domain.CascadeResult, error) {
	started := time.Now()

	var result *domain.CascadeResult
	// The snapshot loads run inside one transaction so phases, edges and the
	// graph version are mutually consistent; nothing is written.
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		in, err := loadCalculationInput(ctx, tx, req)
		if err != nil {
			return err
		}
		result, err = cascade.Calculate(ctx, *in)
		return err
	})

	if err != nil {
		observe(ctx, s.observer, "cascade_preview", started, err, map[string]any{
			"project_id": req.ProjectID,
			"trigger":    req.TriggerPhaseID,
		})
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CascadesPreviewed.Inc()
		for _, c := range result.Conflicts {
			s.metrics.CascadeConflicts.WithLabelValues(string(c.Kind)).Inc()
		}
	}
	observe(ctx, s.observer, "cascade_preview", started, nil, map[string]any{
		"project_id": req.ProjectID,
		"trigger":    req.TriggerPhaseID,
		"changes":    len(result.Changes),
		"conflicts":  len(result.Conflicts),
		"feasible":   result.Feasible,
	})
	return result, nil
}

func (s *cascadeService) Apply(ctx context.Context, req ApplyRequest) (int, error) {
	started := time.Now()

	applied, err := s.apply(ctx, req)

	if s.metrics != nil {
		s.metrics.CascadesApplied.WithLabelValues(applyOutcome(err)).Inc()
		if err == nil {
			s.metrics.PhasesMoved.Add(float64(applied))
		}
	}
	observe(ctx, s.observer, "cascade_apply", started, err, map[string]any{
		"project_id": req.ProjectID,
		"applied":    applied,
		"override":   req.Override,
	})
	return applied, err
}

func (s *cascadeService) apply(ctx context.Context, req ApplyRequest) (int, error) {
	result := req.Result
	if result == nil {
		return 0, fmt.Errorf("apply: result is required")
	}
	if result.ProjectID != "" && result.ProjectID != req.ProjectID {
		return 0, fmt.Errorf("apply: result belongs to project %s, not %s", result.ProjectID, req.ProjectID)
	}
	if !result.Feasible && !req.Override {
		return 0, ErrInfeasibleResult
	}

	lock := s.locks.get(req.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	blocked := result.BlockedPhaseIDs()
	applied := 0

	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		applied = 0
		txPhases := repository.NewSQLitePhaseRepo(tx)
		txVersions := repository.NewSQLiteGraphVersionRepo(tx)

		version, err := txVersions.Get(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		if version != result.GraphVersion {
			return ErrStaleCascade
		}

		now := time.Now().UTC()
		for _, change := range result.Changes {
			if blocked[change.PhaseID] {
				// Locked phases are never moved, override or not.
				continue
			}
			start, end := change.NewStart, change.NewEnd
			if end.Before(start) {
				// Storage enforces end_date >= start_date, so an overridden
				// negative-duration change persists the clamped pair. The
				// result itself still reports the contradictory end.
				end = start
			}
			changed, err := txPhases.UpdateDates(ctx, req.ProjectID, change.PhaseID, start, end, now)
			if err != nil {
				return err
			}
			if changed {
				applied++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// loadCalculationInput reads a consistent project snapshot for the calculator.
func loadCalculationInput(ctx context.Context, tx db.DBTX, req PreviewRequest) (*cascade.Input, error) {
	txProjects := repository.NewSQLiteProjectRepo(tx)
	txPhases := repository.NewSQLitePhaseRepo(tx)
	txDeps := repository.NewSQLiteDependencyRepo(tx)
	txVersions := repository.NewSQLiteGraphVersionRepo(tx)

	project, err := txProjects.GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	phases, err := txPhases.ListByProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	deps, err := txDeps.ListByProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	version, err := txVersions.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	return &cascade.Input{
		Project:        project,
		Phases:         phases,
		Deps:           deps,
		TriggerPhaseID: req.TriggerPhaseID,
		NewStart:       req.NewStart,
		NewEnd:         req.NewEnd,
		GraphVersion:   version,
	}, nil
}

func applyOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeApplied
	case errors.Is(err, ErrStaleCascade):
		return metrics.OutcomeStale
	case errors.Is(err, ErrInfeasibleResult):
		return metrics.OutcomeInfeasible
	default:
		return metrics.OutcomeError
	}
}
