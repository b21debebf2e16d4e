package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := migrateBackfillGraphVersions(db); err != nil {
		return fmt.Errorf("backfilling graph version rows: %w", err)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		start_date  TEXT NOT NULL,
		target_date TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS phases (
		id             TEXT PRIMARY KEY,
		project_id     TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name           TEXT NOT NULL,
		start_date     TEXT NOT NULL,
		end_date       TEXT NOT NULL,
		sequence_order INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		CHECK(end_date >= start_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_phases_project ON phases(project_id)`,

	`CREATE TABLE IF NOT EXISTS phase_dependencies (
		id                   TEXT PRIMARY KEY,
		project_id           TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		predecessor_phase_id TEXT NOT NULL REFERENCES phases(id) ON DELETE CASCADE,
		successor_phase_id   TEXT NOT NULL REFERENCES phases(id) ON DELETE CASCADE,
		dep_type             TEXT NOT NULL
		                     CHECK(dep_type IN ('FS','SS','FF','SF')),
		lag_days             INTEGER NOT NULL DEFAULT 0,
		created_at           TEXT NOT NULL,
		CHECK(predecessor_phase_id != successor_phase_id)
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_phase_deps_edge
		ON phase_dependencies(predecessor_phase_id, successor_phase_id, dep_type)`,
	`CREATE INDEX IF NOT EXISTS idx_phase_deps_project ON phase_dependencies(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_phase_deps_successor ON phase_dependencies(successor_phase_id)`,

	`CREATE TABLE IF NOT EXISTS project_graph_versions (
		project_id TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
		version    INTEGER NOT NULL DEFAULT 0 CHECK(version >= 0)
	)`,

	// Add locked to phases (cascade-protected dates)
	`ALTER TABLE phases ADD COLUMN locked INTEGER NOT NULL DEFAULT 0`,
}

// migrateBackfillGraphVersions seeds a version row for every project that
// predates the graph version table. Idempotent.
func migrateBackfillGraphVersions(db *sql.DB) error {
	// The WHERE clause is required: SQLite refuses ON CONFLICT directly
	// after INSERT ... SELECT because of its upsert/join parsing ambiguity.
	query := `INSERT INTO project_graph_versions (project_id, version)
		SELECT id, 0 FROM projects WHERE true
		ON CONFLICT(project_id) DO NOTHING`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("seeding project_graph_versions: %w", err)
	}
	return nil
}
