package service

import "errors"

var (
	// ErrStaleCascade means the dependency graph changed after the result was
	// calculated. Always retryable: recalculate and apply again.
	ErrStaleCascade = errors.New("cascade result is stale: dependency graph changed since calculation")

	// ErrInfeasibleResult rejects applying a result with blocking conflicts
	// when the caller did not set the override flag.
	ErrInfeasibleResult = errors.New("cascade result is infeasible; set override to apply anyway")
)
