package confset

import (
	"confmeta/internal/numeric"
)

// DefaultMaxBoundarySteps caps the outward boundary search. The p-value
// functions this package inverts are bounded and eventually decreasing, so
// the cap is a termination guarantee, not an expected path.
const DefaultMaxBoundarySteps = 10000

// findBoundary walks outward from start in direction dir (-1 for the lower
// boundary, +1 for the upper) in increments of step while f stays positive,
// then root-finds the sign change in the last bracketing interval. start
// must satisfy f(start) > 0.
func (b *Builder) findBoundary(f func(float64) float64, start, step float64, dir float64) (float64, error) {
	direction := "lower"
	if dir > 0 {
		direction = "upper"
	}
	inner := start
	for i := 1; i <= b.MaxSteps; i++ {
		outer := start + dir*float64(i)*step
		if f(outer) <= 0 {
			lo, hi := outer, inner
			if dir > 0 {
				lo, hi = inner, outer
			}
			x, err := numeric.Root(f, lo, hi, b.Tol, b.MaxIter)
			if err != nil {
				return 0, &OptimizationFailureError{Lo: lo, Hi: hi, Err: err}
			}
			return x, nil
		}
		inner = outer
	}
	return 0, &BoundaryNotFoundError{Direction: direction, Steps: b.MaxSteps, Step: step}
}
