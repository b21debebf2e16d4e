package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartman/phaseflow/internal/metrics"
	"github.com/mhartman/phaseflow/internal/repository"
	"github.com/mhartman/phaseflow/internal/service"
	"github.com/mhartman/phaseflow/internal/testutil"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database := testutil.NewTestDB(t)
	projects := repository.NewSQLiteProjectRepo(database)
	phases := repository.NewSQLitePhaseRepo(database)
	deps := repository.NewSQLiteDependencyRepo(database)
	uow := testutil.NewTestUoW(database)
	locks := service.NewProjectLocks()
	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)

	handlers := NewHandlers(
		service.NewProjectService(projects),
		service.NewPhaseService(phases, projects),
		service.NewDependencyService(deps, uow, locks, engineMetrics),
		service.NewCascadeService(uow, locks, engineMetrics),
		slog.Default(),
	)
	return NewRouter(handlers, nil, registry)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// seedAPI creates a project and phases through the API, returning the project
// ID and phase IDs keyed by name.
func seedAPI(t *testing.T, router *gin.Engine, phases [][3]string) (string, map[string]string) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/projects", gin.H{
		"name":       "APITest",
		"start_date": "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	projectID := decode[projectResponse](t, rec).ID

	ids := make(map[string]string, len(phases))
	for i, row := range phases {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/phases", gin.H{
			"project_id":     projectID,
			"name":           row[0],
			"start_date":     row[1],
			"end_date":       row[2],
			"sequence_order": i,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids[row[0]] = decode[phaseResponse](t, rec).ID
	}
	return projectID, ids
}

func createDep(t *testing.T, router *gin.Engine, projectID, pred, succ, depType string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, "/api/v1/dependencies", gin.H{
		"project_id":           projectID,
		"predecessor_phase_id": pred,
		"successor_phase_id":   succ,
		"dependency_type":      depType,
	})
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_CreateDependency(t *testing.T) {
	router := newTestRouter(t)
	projectID, ids := seedAPI(t, router, [][3]string{
		{"Analysis", "2025-01-01", "2025-01-31"},
		{"Dev", "2025-02-01", "2025-02-28"},
	})

	rec := createDep(t, router, projectID, ids["Analysis"], ids["Dev"], "FS")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	dep := decode[dependencyResponse](t, rec)
	assert.NotEmpty(t, dep.ID)
	assert.Equal(t, "FS", dep.DependencyType)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/projects/"+projectID+"/dependencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]dependencyResponse](t, rec), 1)

	// The successor's incoming-edge view sees it; the predecessor's does not.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/phases/"+ids["Dev"]+"/dependencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	incoming := decode[[]dependencyResponse](t, rec)
	require.Len(t, incoming, 1)
	assert.Equal(t, dep.ID, incoming[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/phases/"+ids["Analysis"]+"/dependencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]dependencyResponse](t, rec))
}

func TestAPI_CreateDependencyValidationErrors(t *testing.T) {
	router := newTestRouter(t)
	projectID, ids := seedAPI(t, router, [][3]string{
		{"Analysis", "2025-01-01", "2025-01-31"},
		{"Dev", "2025-02-01", "2025-02-28"},
	})

	// Unknown link type never reaches the service.
	rec := createDep(t, router, projectID, ids["Analysis"], ids["Dev"], "XX")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, rec).Code)

	rec = createDep(t, router, projectID, ids["Analysis"], ids["Analysis"], "FS")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SELF_DEPENDENCY", decode[ErrorResponse](t, rec).Code)

	rec = createDep(t, router, projectID, ids["Analysis"], "ghost", "FS")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_PHASE", decode[ErrorResponse](t, rec).Code)

	require.Equal(t, http.StatusCreated,
		createDep(t, router, projectID, ids["Analysis"], ids["Dev"], "FS").Code)

	rec = createDep(t, router, projectID, ids["Analysis"], ids["Dev"], "FS")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DUPLICATE_DEPENDENCY", decode[ErrorResponse](t, rec).Code)

	rec = createDep(t, router, projectID, ids["Dev"], ids["Analysis"], "FS")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "CIRCULAR_DEPENDENCY", body.Code)
	assert.ElementsMatch(t, []string{ids["Analysis"], ids["Dev"]}, body.Cycle)
}

func TestAPI_DeleteDependency(t *testing.T) {
	router := newTestRouter(t)
	projectID, ids := seedAPI(t, router, [][3]string{
		{"Analysis", "2025-01-01", "2025-01-31"},
		{"Dev", "2025-02-01", "2025-02-28"},
	})

	rec := createDep(t, router, projectID, ids["Analysis"], ids["Dev"], "FS")
	require.Equal(t, http.StatusCreated, rec.Code)
	depID := decode[dependencyResponse](t, rec).ID

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/dependencies/"+depID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/dependencies/"+depID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, rec).Code)
}

func TestAPI_PreviewAndApply(t *testing.T) {
	router := newTestRouter(t)
	projectID, ids := seedAPI(t, router, [][3]string{
		{"Analysis", "2025-01-01", "2025-01-31"},
		{"Dev", "2025-02-01", "2025-02-28"},
	})
	require.Equal(t, http.StatusCreated,
		createDep(t, router, projectID, ids["Analysis"], ids["Dev"], "FS").Code)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cascade/preview", gin.H{
		"project_id":       projectID,
		"trigger_phase_id": ids["Analysis"],
		"new_start":        "2025-01-01",
		"new_end":          "2025-02-05",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[cascadeResultDTO](t, rec)
	assert.True(t, result.Feasible)
	require.Len(t, result.Changes, 2)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cascade/apply", gin.H{
		"project_id": projectID,
		"result":     result,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[applyResponse](t, rec).AppliedCount)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/projects/%s/phases", projectID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, p := range decode[[]phaseResponse](t, rec) {
		if p.ID == ids["Dev"] {
			assert.Equal(t, "2025-02-06", p.StartDate)
			assert.Equal(t, "2025-03-05", p.EndDate)
		}
	}
}

func TestAPI_PreviewReportsNegativeDuration(t *testing.T) {
	router := newTestRouter(t)
	projectID, ids := seedAPI(t, router, [][3]string{
		{"Analysis", "2025-01-01", "2025-01-31"},
	})

	// An inverted trigger range comes back as an infeasible result, not a
	// request error.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/cascade/preview", gin.H{
		"project_id":       projectID,
		"trigger_phase_id": ids["Analysis"],
		"new_start":        "2025-02-10",
		"new_end":          "2025-02-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[cascadeResultDTO](t, rec)
	assert.False(t, result.Feasible)
	kinds := make([]string, 0, len(result.Conflicts))
	for _, c := range result.Conflicts {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, "NEGATIVE_DURATION")

	// Overriding persists the clamped pair; storage never holds end < start.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/cascade/apply", gin.H{
		"project_id": projectID,
		"result":     result,
		"override":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[applyResponse](t, rec).AppliedCount)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/projects/"+projectID+"/phases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	phases := decode[[]phaseResponse](t, rec)
	require.Len(t, phases, 1)
	assert.Equal(t, "2025-02-10", phases[0].StartDate)
	assert.Equal(t, "2025-02-10", phases[0].EndDate)
}

func TestAPI_ApplyStaleResultConflicts(t *testing.T) {
	router := newTestRouter(t)
	projectID, ids := seedAPI(t, router, [][3]string{
		{"Analysis", "2025-01-01", "2025-01-31"},
		{"Dev", "2025-02-01", "2025-02-28"},
		{"Testing", "2025-03-01", "2025-03-10"},
	})
	require.Equal(t, http.StatusCreated,
		createDep(t, router, projectID, ids["Analysis"], ids["Dev"], "FS").Code)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/cascade/preview", gin.H{
		"project_id":       projectID,
		"trigger_phase_id": ids["Analysis"],
		"new_start":        "2025-01-01",
		"new_end":          "2025-02-05",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[cascadeResultDTO](t, rec)

	require.Equal(t, http.StatusCreated,
		createDep(t, router, projectID, ids["Dev"], ids["Testing"], "FS").Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cascade/apply", gin.H{
		"project_id": projectID,
		"result":     result,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "STALE_CASCADE", decode[ErrorResponse](t, rec).Code)
}

func TestAPI_ApplyInfeasibleWithoutOverride(t *testing.T) {
	router := newTestRouter(t)
	projectID, ids := seedAPI(t, router, [][3]string{
		{"Dev", "2025-03-01", "2025-03-31"},
		{"Deployment", "2025-04-01", "2025-04-10"},
	})

	// Lock Deployment directly; the substrate API creates phases unlocked.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/phases", gin.H{
		"project_id": projectID,
		"name":       "Frozen",
		"start_date": "2025-04-11",
		"end_date":   "2025-04-20",
		"locked":     true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	frozenID := decode[phaseResponse](t, rec).ID

	require.Equal(t, http.StatusCreated,
		createDep(t, router, projectID, ids["Dev"], frozenID, "FS").Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cascade/preview", gin.H{
		"project_id":       projectID,
		"trigger_phase_id": ids["Dev"],
		"new_start":        "2025-03-01",
		"new_end":          "2025-04-15",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[cascadeResultDTO](t, rec)
	require.False(t, result.Feasible)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cascade/apply", gin.H{
		"project_id": projectID,
		"result":     result,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INFEASIBLE_RESULT", decode[ErrorResponse](t, rec).Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/cascade/apply", gin.H{
		"project_id": projectID,
		"result":     result,
		"override":   true,
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
