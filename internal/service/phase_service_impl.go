package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhartman/phaseflow/internal/domain"
	"github.com/mhartman/phaseflow/internal/repository"
)

type phaseService struct {
	phases   repository.PhaseRepo
	projects repository.ProjectRepo
}

func NewPhaseService(phases repository.PhaseRepo, projects repository.ProjectRepo) PhaseService {
	return &phaseService{phases: phases, projects: projects}
}

func (s *phaseService) Create(ctx context.Context, p *domain.Phase) error {
	if p.Name == "" {
		return fmt.Errorf("phase name is required")
	}
	p.StartDate = domain.Date(p.StartDate)
	p.EndDate = domain.Date(p.EndDate)
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("phase end date %s precedes start date %s",
			p.EndDate.Format(domain.DateLayout), p.StartDate.Format(domain.DateLayout))
	}
	if _, err := s.projects.GetByID(ctx, p.ProjectID); err != nil {
		return fmt.Errorf("looking up project %s: %w", p.ProjectID, err)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return s.phases.Create(ctx, p)
}

func (s *phaseService) GetByID(ctx context.Context, id string) (*domain.Phase, error) {
	return s.phases.GetByID(ctx, id)
}

func (s *phaseService) ListByProject(ctx context.Context, projectID string) ([]*domain.Phase, error) {
	return s.phases.ListByProject(ctx, projectID)
}
