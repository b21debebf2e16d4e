// Package cascade implements the phase dependency engine: graph validation
// and forward-pass date recalculation. Everything here is a pure function of
// its inputs; persistence stays in the repository layer so validation always
// runs against a fresh snapshot of stored state.
package cascade

import (
	"fmt"
	"sort"

	"github.com/mhartman/phaseflow/internal/domain"
)

// ValidateNewEdge checks whether the candidate dependency may be added to the
// project graph described by phases and deps. It rejects self-loops, edges
// touching phases outside the project, exact duplicates, and edges that would
// close a directed cycle.
func ValidateNewEdge(phases []*domain.Phase, deps []domain.Dependency, candidate domain.Dependency) error {
	if candidate.PredecessorPhaseID == candidate.SuccessorPhaseID {
		return fmt.Errorf("dependency %s -> %s: %w",
			candidate.PredecessorPhaseID, candidate.SuccessorPhaseID, domain.ErrSelfDependency)
	}

	known := make(map[string]bool, len(phases))
	for _, p := range phases {
		known[p.ID] = true
	}
	if !known[candidate.PredecessorPhaseID] {
		return fmt.Errorf("predecessor %s: %w", candidate.PredecessorPhaseID, domain.ErrUnknownPhase)
	}
	if !known[candidate.SuccessorPhaseID] {
		return fmt.Errorf("successor %s: %w", candidate.SuccessorPhaseID, domain.ErrUnknownPhase)
	}

	for _, d := range deps {
		if d.PredecessorPhaseID == candidate.PredecessorPhaseID &&
			d.SuccessorPhaseID == candidate.SuccessorPhaseID &&
			d.Type == candidate.Type {
			return fmt.Errorf("dependency %s -> %s (%s): %w",
				candidate.PredecessorPhaseID, candidate.SuccessorPhaseID, candidate.Type,
				domain.ErrDuplicateDependency)
		}
	}

	adj := adjacency(deps)
	adj[candidate.PredecessorPhaseID] = append(adj[candidate.PredecessorPhaseID], candidate.SuccessorPhaseID)

	if leftover := kahnLeftover(known, adj); len(leftover) > 0 {
		return &domain.CircularDependencyError{Cycle: extractCycle(leftover, adj)}
	}
	return nil
}

// adjacency builds predecessor -> successors lists from the edge set.
func adjacency(deps []domain.Dependency) map[string][]string {
	adj := make(map[string][]string, len(deps))
	for _, d := range deps {
		adj[d.PredecessorPhaseID] = append(adj[d.PredecessorPhaseID], d.SuccessorPhaseID)
	}
	return adj
}

// kahnLeftover runs Kahn's algorithm over the node set and returns the nodes
// still holding non-zero in-degree once the queue drains. A non-empty result
// means the graph contains at least one directed cycle.
func kahnLeftover(nodes map[string]bool, adj map[string][]string) map[string]bool {
	inDegree := make(map[string]int, len(nodes))
	for id := range nodes {
		inDegree[id] = 0
	}
	for pred, succs := range adj {
		if !nodes[pred] {
			continue
		}
		for _, succ := range succs {
			if nodes[succ] {
				inDegree[succ]++
			}
		}
	}

	var queue []string
	for id := range nodes {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, succ := range adj[id] {
			if !nodes[succ] {
				continue
			}
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if visited == len(nodes) {
		return nil
	}
	leftover := make(map[string]bool)
	for id, deg := range inDegree {
		if deg > 0 {
			leftover[id] = true
		}
	}
	return leftover
}

// extractCycle returns one cycle's phase sequence for diagnostics. The
// leftover set holds cycle members plus their downstream descendants, so the
// walk follows predecessor edges: every leftover node has an in-edge from
// another leftover node, which forces the walk back into a cycle no matter
// where it starts. Predecessors are taken in sorted order so the reported
// cycle is deterministic.
func extractCycle(leftover map[string]bool, adj map[string][]string) []string {
	rev := make(map[string][]string, len(leftover))
	for pred, succs := range adj {
		if !leftover[pred] {
			continue
		}
		for _, succ := range succs {
			if leftover[succ] {
				rev[succ] = append(rev[succ], pred)
			}
		}
	}

	ids := make([]string, 0, len(leftover))
	for id := range leftover {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var path []string
	seen := make(map[string]int)
	current := ids[0]
	for {
		if at, ok := seen[current]; ok {
			cycle := append([]string(nil), path[at:]...)
			// The path was collected successor-to-predecessor; reverse it so
			// the cycle reads in edge direction.
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			return cycle
		}
		seen[current] = len(path)
		path = append(path, current)

		preds := append([]string(nil), rev[current]...)
		if len(preds) == 0 {
			// Should not happen: leftover nodes always keep an in-edge.
			return path
		}
		sort.Strings(preds)
		current = preds[0]
	}
}
