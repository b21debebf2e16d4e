package httpapi

import (
	"fmt"
	"time"

	"github.com/mhartman/phaseflow/internal/domain"
)

// ErrorResponse is the error envelope returned by every handler.
type ErrorResponse struct {
	Error string   `json:"error"`
	Code  string   `json:"code"`
	Cycle []string `json:"cycle,omitempty"`
}

type createProjectRequest struct {
	Name       string  `json:"name" binding:"required"`
	StartDate  string  `json:"start_date" binding:"required,datetime=2006-01-02"`
	TargetDate *string `json:"target_date" binding:"omitempty,datetime=2006-01-02"`
}

type projectResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	StartDate  string  `json:"start_date"`
	TargetDate *string `json:"target_date,omitempty"`
}

type createPhaseRequest struct {
	ProjectID     string `json:"project_id" binding:"required"`
	Name          string `json:"name" binding:"required"`
	StartDate     string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate       string `json:"end_date" binding:"required,datetime=2006-01-02"`
	SequenceOrder int    `json:"sequence_order"`
	Locked        bool   `json:"locked"`
}

type phaseResponse struct {
	ID            string `json:"id"`
	ProjectID     string `json:"project_id"`
	Name          string `json:"name"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	SequenceOrder int    `json:"sequence_order"`
	Locked        bool   `json:"locked"`
}

type createDependencyRequest struct {
	ProjectID          string `json:"project_id" binding:"required"`
	PredecessorPhaseID string `json:"predecessor_phase_id" binding:"required"`
	SuccessorPhaseID   string `json:"successor_phase_id" binding:"required"`
	DependencyType     string `json:"dependency_type" binding:"required,deptype"`
	LagDays            int    `json:"lag_days"`
}

type dependencyResponse struct {
	ID                 string `json:"id"`
	ProjectID          string `json:"project_id"`
	PredecessorPhaseID string `json:"predecessor_phase_id"`
	SuccessorPhaseID   string `json:"successor_phase_id"`
	DependencyType     string `json:"dependency_type"`
	LagDays            int    `json:"lag_days"`
}

type previewRequest struct {
	ProjectID      string `json:"project_id" binding:"required"`
	TriggerPhaseID string `json:"trigger_phase_id" binding:"required"`
	NewStart       string `json:"new_start" binding:"required,datetime=2006-01-02"`
	NewEnd         string `json:"new_end" binding:"required,datetime=2006-01-02"`
}

type cascadeChangeDTO struct {
	PhaseID  string `json:"phase_id"`
	OldStart string `json:"old_start"`
	OldEnd   string `json:"old_end"`
	NewStart string `json:"new_start"`
	NewEnd   string `json:"new_end"`
}

type conflictDTO struct {
	PhaseID string `json:"phase_id"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
}

type cascadeResultDTO struct {
	ProjectID    string             `json:"project_id"`
	Changes      []cascadeChangeDTO `json:"changes"`
	Conflicts    []conflictDTO      `json:"conflicts"`
	Feasible     bool               `json:"feasible"`
	GraphVersion int64              `json:"graph_version"`
}

type applyRequest struct {
	ProjectID string            `json:"project_id" binding:"required"`
	Result    *cascadeResultDTO `json:"result" binding:"required"`
	Override  bool              `json:"override"`
}

type applyResponse struct {
	AppliedCount int `json:"applied_count"`
}

func toProjectResponse(p *domain.Project) projectResponse {
	resp := projectResponse{
		ID:        p.ID,
		Name:      p.Name,
		StartDate: p.StartDate.Format(domain.DateLayout),
	}
	if p.TargetDate != nil {
		s := p.TargetDate.Format(domain.DateLayout)
		resp.TargetDate = &s
	}
	return resp
}

func toPhaseResponse(p *domain.Phase) phaseResponse {
	return phaseResponse{
		ID:            p.ID,
		ProjectID:     p.ProjectID,
		Name:          p.Name,
		StartDate:     p.StartDate.Format(domain.DateLayout),
		EndDate:       p.EndDate.Format(domain.DateLayout),
		SequenceOrder: p.SequenceOrder,
		Locked:        p.Locked,
	}
}

func toDependencyResponse(d *domain.Dependency) dependencyResponse {
	return dependencyResponse{
		ID:                 d.ID,
		ProjectID:          d.ProjectID,
		PredecessorPhaseID: d.PredecessorPhaseID,
		SuccessorPhaseID:   d.SuccessorPhaseID,
		DependencyType:     string(d.Type),
		LagDays:            d.LagDays,
	}
}

func toResultDTO(r *domain.CascadeResult) cascadeResultDTO {
	dto := cascadeResultDTO{
		ProjectID:    r.ProjectID,
		Changes:      make([]cascadeChangeDTO, 0, len(r.Changes)),
		Conflicts:    make([]conflictDTO, 0, len(r.Conflicts)),
		Feasible:     r.Feasible,
		GraphVersion: r.GraphVersion,
	}
	for _, c := range r.Changes {
		dto.Changes = append(dto.Changes, cascadeChangeDTO{
			PhaseID:  c.PhaseID,
			OldStart: c.OldStart.Format(domain.DateLayout),
			OldEnd:   c.OldEnd.Format(domain.DateLayout),
			NewStart: c.NewStart.Format(domain.DateLayout),
			NewEnd:   c.NewEnd.Format(domain.DateLayout),
		})
	}
	for _, c := range r.Conflicts {
		dto.Conflicts = append(dto.Conflicts, conflictDTO{
			PhaseID: c.PhaseID,
			Kind:    string(c.Kind),
			Detail:  c.Detail,
		})
	}
	return dto
}

func fromResultDTO(dto *cascadeResultDTO) (*domain.CascadeResult, error) {
	result := &domain.CascadeResult{
		ProjectID:    dto.ProjectID,
		Feasible:     dto.Feasible,
		GraphVersion: dto.GraphVersion,
	}
	for _, c := range dto.Changes {
		change := domain.CascadeChange{PhaseID: c.PhaseID}
		var err error
		if change.OldStart, err = parseDate(c.OldStart); err != nil {
			return nil, err
		}
		if change.OldEnd, err = parseDate(c.OldEnd); err != nil {
			return nil, err
		}
		if change.NewStart, err = parseDate(c.NewStart); err != nil {
			return nil, err
		}
		if change.NewEnd, err = parseDate(c.NewEnd); err != nil {
			return nil, err
		}
		result.Changes = append(result.Changes, change)
	}
	for _, c := range dto.Conflicts {
		result.Conflicts = append(result.Conflicts, domain.Conflict{
			PhaseID: c.PhaseID,
			Kind:    domain.ConflictKind(c.Kind),
			Detail:  c.Detail,
		})
	}
	return result, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}
