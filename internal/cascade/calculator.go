package cascade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mhartman/phaseflow/internal/domain"
)

// Input is the full state a calculation runs against: a snapshot of the
// project's phases and dependency edges plus the hypothetical trigger change.
// GraphVersion is echoed into the result for apply-time staleness checks.
type Input struct {
	Project        *domain.Project
	Phases         []*domain.Phase
	Deps           []domain.Dependency
	TriggerPhaseID string
	NewStart       time.Time
	NewEnd         time.Time
	GraphVersion   int64
}

type datePair struct {
	start time.Time
	end   time.Time
}

// Calculate walks the dependency graph forward from the trigger phase and
// computes new dates for every transitively dependent phase, applying
// per-type date arithmetic with latest-wins merging across predecessors.
// It never mutates anything: the same input always yields an identical
// result. Cancellation is honored between phase-processing steps.
func Calculate(ctx context.Context, in Input) (*domain.CascadeResult, error) {
	byID := make(map[string]*domain.Phase, len(in.Phases))
	for _, p := range in.Phases {
		byID[p.ID] = p
	}
	trigger, ok := byID[in.TriggerPhaseID]
	if !ok {
		return nil, fmt.Errorf("trigger phase %s: %w", in.TriggerPhaseID, domain.ErrUnknownPhase)
	}

	result := &domain.CascadeResult{
		ProjectID:    trigger.ProjectID,
		Feasible:     true,
		GraphVersion: in.GraphVersion,
	}

	affected := reachableFrom(in.TriggerPhaseID, in.Deps)
	order := topoOrder(affected, byID, in.Deps)

	// Incoming edges per successor, in the stable order of the input slice.
	incoming := make(map[string][]domain.Dependency)
	for _, d := range in.Deps {
		incoming[d.SuccessorPhaseID] = append(incoming[d.SuccessorPhaseID], d)
	}

	computed := make(map[string]datePair, len(affected))

	// Seed the trigger with the caller's dates. The trigger was moved by the
	// caller, not by propagation, so its lock is not consulted here.
	seed := datePair{start: domain.Date(in.NewStart), end: domain.Date(in.NewEnd)}
	recordPhase(result, trigger, seed, in.Project, &computed)

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if id == in.TriggerPhaseID {
			continue
		}
		phase := byID[id]

		candidates := make([]datePair, 0, len(incoming[id]))
		for _, edge := range incoming[id] {
			predDates, ok := computed[edge.PredecessorPhaseID]
			if !ok {
				pred, exists := byID[edge.PredecessorPhaseID]
				if !exists {
					continue
				}
				// Predecessor outside the affected subgraph: its stored
				// dates still constrain the successor.
				predDates = datePair{start: domain.Date(pred.StartDate), end: domain.Date(pred.EndDate)}
			}
			start, end := edge.Type.Candidate(predDates.start, predDates.end, edge.LagDays, phase.DurationDays())
			candidates = append(candidates, datePair{start: start, end: end})
		}
		if len(candidates) == 0 {
			continue
		}

		merged := latestWins(candidates)

		if disagrees(candidates) {
			result.Conflicts = append(result.Conflicts, domain.Conflict{
				PhaseID: id,
				Kind:    domain.ConflictConstraintDisagreement,
				Detail:  disagreementDetail(candidates),
			})
		}

		if phase.Locked && !samePair(merged, storedPair(phase)) {
			result.Conflicts = append(result.Conflicts, domain.Conflict{
				PhaseID: id,
				Kind:    domain.ConflictLockedPhaseBlocked,
				Detail: fmt.Sprintf("locked phase %q cannot move from %s..%s to %s..%s",
					phase.Name, fmtDate(phase.StartDate), fmtDate(phase.EndDate),
					fmtDate(merged.start), fmtDate(merged.end)),
			})
			result.Feasible = false
			// Successors keep seeing the locked phase's original dates.
			computed[id] = storedPair(phase)
			continue
		}

		recordPhase(result, phase, merged, in.Project, &computed)
	}

	return result, nil
}

// recordPhase classifies the computed pair for one phase, appends any
// conflicts and the CascadeChange, and stores the propagation value.
func recordPhase(result *domain.CascadeResult, phase *domain.Phase, pair datePair, project *domain.Project, computed *map[string]datePair) {
	propagate := pair
	if pair.end.Before(pair.start) {
		result.Conflicts = append(result.Conflicts, domain.Conflict{
			PhaseID: phase.ID,
			Kind:    domain.ConflictNegativeDuration,
			Detail: fmt.Sprintf("computed end %s precedes start %s",
				fmtDate(pair.end), fmtDate(pair.start)),
		})
		result.Feasible = false
		// Clamp for propagation only; the recorded change keeps the
		// contradictory end so callers see the real result.
		propagate.end = propagate.start
	}

	if project != nil {
		if pair.start.Before(domain.Date(project.StartDate)) {
			result.Conflicts = append(result.Conflicts, domain.Conflict{
				PhaseID: phase.ID,
				Kind:    domain.ConflictOutOfProjectBounds,
				Detail: fmt.Sprintf("start %s precedes project start %s",
					fmtDate(pair.start), fmtDate(project.StartDate)),
			})
		}
		if project.TargetDate != nil && pair.end.After(domain.Date(*project.TargetDate)) {
			result.Conflicts = append(result.Conflicts, domain.Conflict{
				PhaseID: phase.ID,
				Kind:    domain.ConflictOutOfProjectBounds,
				Detail: fmt.Sprintf("end %s exceeds project target %s",
					fmtDate(pair.end), fmtDate(*project.TargetDate)),
			})
		}
	}

	if !samePair(pair, storedPair(phase)) {
		result.Changes = append(result.Changes, domain.CascadeChange{
			PhaseID:  phase.ID,
			OldStart: domain.Date(phase.StartDate),
			OldEnd:   domain.Date(phase.EndDate),
			NewStart: pair.start,
			NewEnd:   pair.end,
		})
	}

	(*computed)[phase.ID] = propagate
}

// reachableFrom returns the trigger plus every phase reachable from it via
// successor edges. Phases outside this set are untouched by a cascade.
func reachableFrom(triggerID string, deps []domain.Dependency) map[string]bool {
	adj := adjacency(deps)
	reached := map[string]bool{triggerID: true}
	stack := []string{triggerID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, succ := range adj[id] {
			if !reached[succ] {
				reached[succ] = true
				stack = append(stack, succ)
			}
		}
	}
	return reached
}

// topoOrder orders the affected subgraph topologically. Ties are broken by
// sequence order, then phase ID, so calculation output is deterministic.
func topoOrder(affected map[string]bool, byID map[string]*domain.Phase, deps []domain.Dependency) []string {
	inDegree := make(map[string]int, len(affected))
	adj := make(map[string][]string, len(affected))
	for id := range affected {
		inDegree[id] = 0
	}
	for _, d := range deps {
		if affected[d.PredecessorPhaseID] && affected[d.SuccessorPhaseID] {
			adj[d.PredecessorPhaseID] = append(adj[d.PredecessorPhaseID], d.SuccessorPhaseID)
			inDegree[d.SuccessorPhaseID]++
		}
	}

	less := func(a, b string) bool {
		pa, pb := byID[a], byID[b]
		if pa != nil && pb != nil && pa.SequenceOrder != pb.SequenceOrder {
			return pa.SequenceOrder < pb.SequenceOrder
		}
		return a < b
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })

	order := make([]string, 0, len(affected))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, succ := range adj[id] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
	}
	return order
}

// latestWins merges candidates by taking the maximum proposed start and,
// independently, the maximum proposed end: a successor cannot start or finish
// earlier than any constraint demands.
func latestWins(candidates []datePair) datePair {
	merged := candidates[0]
	for _, c := range candidates[1:] {
		if c.start.After(merged.start) {
			merged.start = c.start
		}
		if c.end.After(merged.end) {
			merged.end = c.end
		}
	}
	return merged
}

func disagrees(candidates []datePair) bool {
	for _, c := range candidates[1:] {
		if !c.start.Equal(candidates[0].start) || !c.end.Equal(candidates[0].end) {
			return true
		}
	}
	return false
}

func disagreementDetail(candidates []datePair) string {
	merged := latestWins(candidates)
	earliest := candidates[0]
	for _, c := range candidates[1:] {
		if c.start.Before(earliest.start) {
			earliest.start = c.start
		}
		if c.end.Before(earliest.end) {
			earliest.end = c.end
		}
	}
	return fmt.Sprintf("%d predecessors propose starts %s..%s and ends %s..%s; latest wins",
		len(candidates),
		fmtDate(earliest.start), fmtDate(merged.start),
		fmtDate(earliest.end), fmtDate(merged.end))
}

func storedPair(p *domain.Phase) datePair {
	return datePair{start: domain.Date(p.StartDate), end: domain.Date(p.EndDate)}
}

func samePair(a, b datePair) bool {
	return a.start.Equal(b.start) && a.end.Equal(b.end)
}

func fmtDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
