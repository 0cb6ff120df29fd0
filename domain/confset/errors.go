package confset

import (
	"fmt"
)

// OptimizationFailureError reports a bounded extremum search that failed to
// converge, naming the offending interval. A missed extremum could corrupt
// the confidence set, so the whole computation is failed rather than the
// point skipped.
type OptimizationFailureError struct {
	Lo, Hi float64
	Err    error
}

func (e *OptimizationFailureError) Error() string {
	return fmt.Sprintf("confset: extremum search failed on (%g, %g): %v", e.Lo, e.Hi, e.Err)
}

func (e *OptimizationFailureError) Unwrap() error { return e.Err }

// BoundaryNotFoundError reports an outward boundary search that exhausted
// its step cap without the function turning non-positive. The p-value
// functions of this family are eventually decreasing, so hitting the cap
// signals a modeling problem, not a tight limit.
type BoundaryNotFoundError struct {
	Direction string // "lower" or "upper"
	Steps     int
	Step      float64
}

func (e *BoundaryNotFoundError) Error() string {
	return fmt.Sprintf("confset: %s boundary not found after %d steps of %g", e.Direction, e.Steps, e.Step)
}

// UndefinedStatisticError reports a derived quantity whose value is not a
// finite number, in a context where the caller expects one.
type UndefinedStatisticError struct {
	Quantity string
}

func (e *UndefinedStatisticError) Error() string {
	return fmt.Sprintf("confset: %s is undefined", e.Quantity)
}
