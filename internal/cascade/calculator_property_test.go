package cascade

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartman/phaseflow/internal/domain"
	"github.com/mhartman/phaseflow/internal/testutil"
)

// TestCalculate_Invariants_RandomDAGs property-tests the forward pass over
// randomized acyclic graphs: determinism, at most one change per phase,
// locked non-trigger phases never moving, feasibility matching the recorded
// conflicts, and single-predecessor duration preservation.
func TestCalculate_Invariants_RandomDAGs(t *testing.T) {
	rng := rand.New(rand.NewSource(1138))
	depTypes := []domain.DependencyType{
		domain.FinishToStart, domain.StartToStart, domain.FinishToFinish, domain.StartToFinish,
	}

	for trial := 0; trial < 150; trial++ {
		project := testutil.NewTestProject(fmt.Sprintf("Trial%d", trial),
			testutil.WithProjectStart(d("2025-01-01")))

		numPhases := rng.Intn(10) + 3
		phases := make([]*domain.Phase, numPhases)
		for i := range phases {
			start := domain.AddDays(d("2025-01-01"), rng.Intn(60))
			end := domain.AddDays(start, rng.Intn(14))
			opts := []testutil.PhaseOption{
				testutil.WithDates(start, end),
				testutil.WithSequenceOrder(i),
			}
			if rng.Intn(10) == 0 {
				opts = append(opts, testutil.WithLocked())
			}
			phases[i] = testutil.NewTestPhase(project.ID, fmt.Sprintf("P%d", i), opts...)
		}

		// Edges only point from lower to higher index, so the graph is acyclic
		// by construction.
		var deps []domain.Dependency
		for i := 0; i < numPhases; i++ {
			for j := i + 1; j < numPhases; j++ {
				if rng.Intn(4) != 0 {
					continue
				}
				deps = append(deps, *testutil.NewTestDependency(project.ID, phases[i].ID, phases[j].ID,
					testutil.WithDependencyType(depTypes[rng.Intn(len(depTypes))]),
					testutil.WithLagDays(rng.Intn(14)-3)))
			}
		}

		trigger := phases[rng.Intn(numPhases)]
		newStart := domain.AddDays(d("2025-01-01"), rng.Intn(60))
		in := Input{
			Project:        project,
			Phases:         phases,
			Deps:           deps,
			TriggerPhaseID: trigger.ID,
			NewStart:       newStart,
			NewEnd:         domain.AddDays(newStart, rng.Intn(14)),
		}

		result, err := Calculate(context.Background(), in)
		require.NoError(t, err, "trial %d", trial)

		again, err := Calculate(context.Background(), in)
		require.NoError(t, err, "trial %d", trial)
		assert.Equal(t, result, again, "trial %d: identical input must give identical output", trial)

		lockedByID := make(map[string]bool, numPhases)
		incomingCount := make(map[string]int)
		byID := make(map[string]*domain.Phase, numPhases)
		for _, p := range phases {
			lockedByID[p.ID] = p.Locked
			byID[p.ID] = p
		}
		for _, dep := range deps {
			incomingCount[dep.SuccessorPhaseID]++
		}

		seen := make(map[string]bool, len(result.Changes))
		blockingConflict := false
		for _, c := range result.Conflicts {
			if c.Kind.Blocking() {
				blockingConflict = true
			}
		}
		assert.Equal(t, !blockingConflict, result.Feasible,
			"trial %d: feasibility must mirror blocking conflicts", trial)

		for _, change := range result.Changes {
			assert.False(t, seen[change.PhaseID],
				"trial %d: phase %s changed twice", trial, change.PhaseID)
			seen[change.PhaseID] = true

			if change.PhaseID != trigger.ID {
				assert.False(t, lockedByID[change.PhaseID],
					"trial %d: locked phase %s was moved", trial, change.PhaseID)

				// A phase constrained by exactly one edge inherits exactly one
				// candidate, which preserves its stored duration.
				if incomingCount[change.PhaseID] == 1 {
					assert.Equal(t, byID[change.PhaseID].DurationDays(),
						domain.DaysBetween(change.NewStart, change.NewEnd),
						"trial %d: phase %s duration drifted", trial, change.PhaseID)
				}
			}
		}
	}
}
