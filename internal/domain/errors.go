package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Graph validation errors. These reject an edge before anything is written
// and are safe to retry after correcting input.
var (
	ErrSelfDependency      = errors.New("phase cannot depend on itself")
	ErrDuplicateDependency = errors.New("identical dependency already exists")
	ErrUnknownPhase        = errors.New("phase does not belong to project")
)

// CircularDependencyError reports a rejected edge that would close a cycle.
// Cycle lists the phase IDs participating in the cycle, for diagnostics.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("dependency would create a cycle: %s", strings.Join(e.Cycle, " -> "))
}
