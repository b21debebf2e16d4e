package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/mhartman/phaseflow/internal/db"
	"github.com/mhartman/phaseflow/internal/domain"
	"github.com/mhartman/phaseflow/internal/metrics"
	"github.com/mhartman/phaseflow/internal/repository"
	"github.com/mhartman/phaseflow/internal/testutil"
)

// engineFixture wires the full service stack against one test database.
type engineFixture struct {
	db       *sql.DB
	projects *repository.SQLiteProjectRepo
	phases   *repository.SQLitePhaseRepo
	deps     *repository.SQLiteDependencyRepo
	versions *repository.SQLiteGraphVersionRepo
	uow      db.UnitOfWork
	locks    *ProjectLocks
	metrics  *metrics.EngineMetrics

	depSvc     DependencyService
	cascadeSvc CascadeService
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	database := testutil.NewTestDB(t)

	fx := &engineFixture{
		db:       database,
		projects: repository.NewSQLiteProjectRepo(database),
		phases:   repository.NewSQLitePhaseRepo(database),
		deps:     repository.NewSQLiteDependencyRepo(database),
		versions: repository.NewSQLiteGraphVersionRepo(database),
		uow:      testutil.NewTestUoW(database),
		locks:    NewProjectLocks(),
		metrics:  metrics.NewEngineMetrics(prometheus.NewRegistry()),
	}
	fx.depSvc = NewDependencyService(fx.deps, fx.uow, fx.locks, fx.metrics)
	fx.cascadeSvc = NewCascadeService(fx.uow, fx.locks, fx.metrics)
	return fx
}

// seedProject persists a project and one phase per (name, start, end, locked)
// row, returning phase IDs keyed by name.
func (fx *engineFixture) seedProject(t *testing.T, rows [][4]string) (string, map[string]string) {
	t.Helper()
	ctx := context.Background()

	proj := testutil.NewTestProject("Fixture", testutil.WithProjectStart(testutil.MustDate("2025-01-01")))
	require.NoError(t, fx.projects.Create(ctx, proj))

	ids := make(map[string]string, len(rows))
	for i, row := range rows {
		opts := []testutil.PhaseOption{
			testutil.WithDates(testutil.MustDate(row[1]), testutil.MustDate(row[2])),
			testutil.WithSequenceOrder(i),
		}
		if row[3] == "locked" {
			opts = append(opts, testutil.WithLocked())
		}
		p := testutil.NewTestPhase(proj.ID, row[0], opts...)
		require.NoError(t, fx.phases.Create(ctx, p))
		ids[row[0]] = p.ID
	}
	return proj.ID, ids
}

func (fx *engineFixture) mustCreateDep(t *testing.T, projectID, pred, succ string, depType domain.DependencyType, lag int) *domain.Dependency {
	t.Helper()
	dep, err := fx.depSvc.Create(context.Background(), CreateDependencyRequest{
		ProjectID:          projectID,
		PredecessorPhaseID: pred,
		SuccessorPhaseID:   succ,
		Type:               depType,
		LagDays:            lag,
	})
	require.NoError(t, err)
	return dep
}

func (fx *engineFixture) graphVersion(t *testing.T, projectID string) int64 {
	t.Helper()
	v, err := fx.versions.Get(context.Background(), projectID)
	require.NoError(t, err)
	return v
}

func (fx *engineFixture) phaseDates(t *testing.T, phaseID string) (string, string) {
	t.Helper()
	p, err := fx.phases.GetByID(context.Background(), phaseID)
	require.NoError(t, err)
	return p.StartDate.Format(domain.DateLayout), p.EndDate.Format(domain.DateLayout)
}
