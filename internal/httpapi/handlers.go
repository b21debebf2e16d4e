package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mhartman/phaseflow/internal/domain"
	"github.com/mhartman/phaseflow/internal/repository"
	"github.com/mhartman/phaseflow/internal/service"
)

// Handlers binds the engine services to HTTP endpoints.
type Handlers struct {
	projects     service.ProjectService
	phases       service.PhaseService
	dependencies service.DependencyService
	cascades     service.CascadeService
	logger       *slog.Logger
}

func NewHandlers(
	projects service.ProjectService,
	phases service.PhaseService,
	dependencies service.DependencyService,
	cascades service.CascadeService,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		projects:     projects,
		phases:       phases,
		dependencies: dependencies,
		cascades:     cascades,
		logger:       logger,
	}
}

func (h *Handlers) CreateProject(c *gin.Context) {
	logger := h.requestLogger(c, "create_project")

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	project := &domain.Project{Name: req.Name}
	project.StartDate, _ = parseDate(req.StartDate)
	if req.TargetDate != nil {
		t, _ := parseDate(*req.TargetDate)
		project.TargetDate = &t
	}

	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, toProjectResponse(project))
}

func (h *Handlers) ListProjects(c *gin.Context) {
	logger := h.requestLogger(c, "list_projects")

	projects, err := h.projects.List(c.Request.Context())
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) CreatePhase(c *gin.Context) {
	logger := h.requestLogger(c, "create_phase")

	var req createPhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	phase := &domain.Phase{
		ProjectID:     req.ProjectID,
		Name:          req.Name,
		SequenceOrder: req.SequenceOrder,
		Locked:        req.Locked,
	}
	phase.StartDate, _ = parseDate(req.StartDate)
	phase.EndDate, _ = parseDate(req.EndDate)

	if err := h.phases.Create(c.Request.Context(), phase); err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, toPhaseResponse(phase))
}

func (h *Handlers) ListProjectPhases(c *gin.Context) {
	logger := h.requestLogger(c, "list_project_phases")

	phases, err := h.phases.ListByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	out := make([]phaseResponse, 0, len(phases))
	for _, p := range phases {
		out = append(out, toPhaseResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) ListProjectDependencies(c *gin.Context) {
	logger := h.requestLogger(c, "list_project_dependencies")

	deps, err := h.dependencies.ListByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	out := make([]dependencyResponse, 0, len(deps))
	for i := range deps {
		out = append(out, toDependencyResponse(&deps[i]))
	}
	c.JSON(http.StatusOK, out)
}

// ListPhaseDependencies returns the edges whose successor is the given phase,
// i.e. the constraints that would move it during a cascade.
func (h *Handlers) ListPhaseDependencies(c *gin.Context) {
	logger := h.requestLogger(c, "list_phase_dependencies")

	deps, err := h.dependencies.ListBySuccessor(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	out := make([]dependencyResponse, 0, len(deps))
	for i := range deps {
		out = append(out, toDependencyResponse(&deps[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) CreateDependency(c *gin.Context) {
	logger := h.requestLogger(c, "create_dependency")

	var req createDependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	dep, err := h.dependencies.Create(c.Request.Context(), service.CreateDependencyRequest{
		ProjectID:          req.ProjectID,
		PredecessorPhaseID: req.PredecessorPhaseID,
		SuccessorPhaseID:   req.SuccessorPhaseID,
		Type:               domain.DependencyType(req.DependencyType),
		LagDays:            req.LagDays,
	})
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, toDependencyResponse(dep))
}

func (h *Handlers) DeleteDependency(c *gin.Context) {
	logger := h.requestLogger(c, "delete_dependency")

	if err := h.dependencies.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) PreviewCascade(c *gin.Context) {
	logger := h.requestLogger(c, "preview_cascade")

	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	// An inverted range is not rejected here: the calculator reports it as a
	// NEGATIVE_DURATION conflict inside the result, like any other
	// infeasibility.
	newStart, _ := parseDate(req.NewStart)
	newEnd, _ := parseDate(req.NewEnd)

	result, err := h.cascades.Preview(c.Request.Context(), service.PreviewRequest{
		ProjectID:      req.ProjectID,
		TriggerPhaseID: req.TriggerPhaseID,
		NewStart:       newStart,
		NewEnd:         newEnd,
	})
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, toResultDTO(result))
}

func (h *Handlers) ApplyCascade(c *gin.Context) {
	logger := h.requestLogger(c, "apply_cascade")

	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	result, err := fromResultDTO(req.Result)
	if err != nil {
		logger.Warn("malformed cascade result", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	applied, err := h.cascades.Apply(c.Request.Context(), service.ApplyRequest{
		ProjectID: req.ProjectID,
		Result:    result,
		Override:  req.Override,
	})
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, applyResponse{AppliedCount: applied})
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// writeError maps service and domain errors onto HTTP statuses.
func (h *Handlers) writeError(c *gin.Context, logger *slog.Logger, err error) {
	var cycleErr *domain.CircularDependencyError

	switch {
	case errors.As(err, &cycleErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: cycleErr.Error(),
			Code:  "CIRCULAR_DEPENDENCY",
			Cycle: cycleErr.Cycle,
		})
	case errors.Is(err, domain.ErrSelfDependency):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "SELF_DEPENDENCY"})
	case errors.Is(err, domain.ErrDuplicateDependency):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "DUPLICATE_DEPENDENCY"})
	case errors.Is(err, domain.ErrUnknownPhase):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_PHASE"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, service.ErrStaleCascade):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "STALE_CASCADE"})
	case errors.Is(err, service.ErrInfeasibleResult):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "INFEASIBLE_RESULT"})
	default:
		logger.Error("internal error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL"})
	}
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With("request_id", requestID(c), "handler", handler)
}

// requestID propagates the caller's X-Request-ID, minting one if absent.
func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}
