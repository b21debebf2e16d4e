package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhartman/phaseflow/internal/domain"
	"github.com/mhartman/phaseflow/internal/repository"
)

type projectService struct {
	projects repository.ProjectRepo
}

func NewProjectService(projects repository.ProjectRepo) ProjectService {
	return &projectService{projects: projects}
}

func (s *projectService) Create(ctx context.Context, p *domain.Project) error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.StartDate = domain.Date(p.StartDate)
	if p.TargetDate != nil {
		t := domain.Date(*p.TargetDate)
		p.TargetDate = &t
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return s.projects.Create(ctx, p)
}

func (s *projectService) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	return s.projects.GetByID(ctx, id)
}

func (s *projectService) List(ctx context.Context) ([]*domain.Project, error) {
	return s.projects.List(ctx)
}
