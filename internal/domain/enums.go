package domain

// DependencyType is the precedence relationship between two phases.
// The four values are the standard scheduling link types.
type DependencyType string

const (
	FinishToStart  DependencyType = "FS"
	StartToStart   DependencyType = "SS"
	FinishToFinish DependencyType = "FF"
	StartToFinish  DependencyType = "SF"
)

// ValidDependencyTypes is the canonical set of accepted dependency type strings.
var ValidDependencyTypes = map[string]bool{
	"FS": true, "SS": true, "FF": true, "SF": true,
}

// Valid reports whether t is one of the four link types.
func (t DependencyType) Valid() bool {
	return ValidDependencyTypes[string(t)]
}

type ConflictKind string

const (
	ConflictNegativeDuration       ConflictKind = "NEGATIVE_DURATION"
	ConflictLockedPhaseBlocked     ConflictKind = "LOCKED_PHASE_BLOCKED"
	ConflictConstraintDisagreement ConflictKind = "CONSTRAINT_DISAGREEMENT"
	ConflictOutOfProjectBounds     ConflictKind = "OUT_OF_PROJECT_BOUNDS"
)

// Blocking reports whether a conflict of this kind makes a cascade infeasible.
// Disagreement and bounds conflicts are advisory: the result is still applicable.
func (k ConflictKind) Blocking() bool {
	return k == ConflictNegativeDuration || k == ConflictLockedPhaseBlocked
}
