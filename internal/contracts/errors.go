package contracts

import "errors"

// Error kinds surfaced to the caller of a rebalance
var (
	// ErrInfeasible means no portfolio satisfies the constraints
	ErrInfeasible = errors.New("portfolio constraints are infeasible")

	// ErrDataUnavailable wraps any data-provider failure; the core does not retry
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInsufficientUniverse means the universe is too small to rebalance
	ErrInsufficientUniverse = errors.New("insufficient universe")

	// ErrSolver means the optimizer failed for reasons other than infeasibility
	ErrSolver = errors.New("optimizer failure")
)
