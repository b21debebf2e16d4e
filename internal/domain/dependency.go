package domain

import "time"

// Dependency is a directed, typed edge between two phases of the same project.
// LagDays is a signed day offset; negative lag means overlap (lead time).
type Dependency struct {
	ID                 string
	ProjectID          string
	PredecessorPhaseID string
	SuccessorPhaseID   string
	Type               DependencyType
	LagDays            int
	CreatedAt          time.Time
}

// Candidate computes the date pair a dependency of type t proposes for its
// successor, given the predecessor's dates and the successor's current
// duration (as a day delta). Dates are inclusive, so a finish boundary driving
// a start boundary shifts by one extra day: an FS successor begins the day
// after its predecessor ends.
func (t DependencyType) Candidate(predStart, predEnd time.Time, lagDays, durationDays int) (start, end time.Time) {
	switch t {
	case FinishToStart:
		start = AddDays(predEnd, lagDays+1)
		end = AddDays(start, durationDays)
	case StartToStart:
		start = AddDays(predStart, lagDays)
		end = AddDays(start, durationDays)
	case FinishToFinish:
		end = AddDays(predEnd, lagDays)
		start = AddDays(end, -durationDays)
	case StartToFinish:
		end = AddDays(predStart, lagDays)
		start = AddDays(end, -durationDays)
	}
	return start, end
}
