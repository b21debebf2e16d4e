package domain

import "time"

// CascadeChange records one phase whose computed dates differ from its stored
// dates. Ephemeral: produced by the calculator, persisted only via apply.
type CascadeChange struct {
	PhaseID  string    `json:"phase_id"`
	OldStart time.Time `json:"old_start"`
	OldEnd   time.Time `json:"old_end"`
	NewStart time.Time `json:"new_start"`
	NewEnd   time.Time `json:"new_end"`
}

// Conflict classifies an impossible or contradictory calculator outcome.
type Conflict struct {
	PhaseID string       `json:"phase_id"`
	Kind    ConflictKind `json:"kind"`
	Detail  string       `json:"detail"`
}

// CascadeResult is the calculator's full output and the unit exchanged with
// callers. GraphVersion snapshots the project's dependency-graph version at
// calculation time so apply can detect staleness.
type CascadeResult struct {
	ProjectID    string          `json:"project_id"`
	Changes      []CascadeChange `json:"changes"`
	Conflicts    []Conflict      `json:"conflicts"`
	Feasible     bool            `json:"feasible"`
	GraphVersion int64           `json:"graph_version"`
}

// BlockedPhaseIDs returns the phases pinned by LOCKED_PHASE_BLOCKED conflicts.
// These are never written, even on an override apply.
func (r *CascadeResult) BlockedPhaseIDs() map[string]bool {
	blocked := make(map[string]bool)
	for _, c := range r.Conflicts {
		if c.Kind == ConflictLockedPhaseBlocked {
			blocked[c.PhaseID] = true
		}
	}
	return blocked
}
