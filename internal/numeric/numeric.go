// Package numeric provides the scalar optimization and root-finding kernel
// shared by the confidence-set machinery: a bounded Brent minimizer and a
// Brent zero finder. Both are iterative with hard iteration caps so a
// pathological objective fails loudly instead of spinning.
package numeric

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultTol is the x-axis convergence tolerance for both routines.
	DefaultTol = 1e-8

	// DefaultMaxIter bounds the iteration count of a single invocation.
	DefaultMaxIter = 200
)

// ErrNoBracket is returned by Root when the endpoints do not straddle a
// sign change.
var ErrNoBracket = errors.New("numeric: endpoints do not bracket a root")

// ConvergenceError reports an iteration-cap exhaustion, naming the interval
// on which the routine was running.
type ConvergenceError struct {
	Op         string
	Lo, Hi     float64
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("numeric: %s did not converge on [%g, %g] after %d iterations",
		e.Op, e.Lo, e.Hi, e.Iterations)
}

// Minimize locates a local minimum of f strictly inside (lo, hi) using
// Brent's method (golden-section search with successive parabolic
// interpolation). It returns the abscissa and the function value there.
func Minimize(f func(float64) float64, lo, hi, tol float64, maxIter int) (float64, float64, error) {
	if tol <= 0 {
		tol = DefaultTol
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	if !(lo < hi) {
		return 0, 0, fmt.Errorf("numeric: invalid interval [%g, %g]", lo, hi)
	}

	const golden = 0.3819660112501051 // (3 - sqrt(5)) / 2
	eps := math.Sqrt(2.220446049250313e-16)

	a, b := lo, hi
	x := a + golden*(b-a)
	w, v := x, x
	fx := f(x)
	fw, fv := fx, fx
	var d, e float64

	for iter := 0; iter < maxIter; iter++ {
		m := 0.5 * (a + b)
		tol1 := eps*math.Abs(x) + tol/3
		tol2 := 2 * tol1

		if math.Abs(x-m) <= tol2-0.5*(b-a) {
			return x, fx, nil
		}

		useGolden := true
		if math.Abs(e) > tol1 {
			// Fit a parabola through (v, fv), (w, fw), (x, fx).
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			etmp := e
			e = d
			if math.Abs(p) < math.Abs(0.5*q*etmp) && p > q*(a-x) && p < q*(b-x) {
				d = p / q
				u := x + d
				// Keep the probe clear of the endpoints.
				if u-a < tol2 || b-u < tol2 {
					d = tol1
					if x >= m {
						d = -tol1
					}
				}
				useGolden = false
			}
		}
		if useGolden {
			if x < m {
				e = b - x
			} else {
				e = a - x
			}
			d = golden * e
		}

		var u float64
		if math.Abs(d) >= tol1 {
			u = x + d
		} else if d > 0 {
			u = x + tol1
		} else {
			u = x - tol1
		}
		fu := f(u)

		if fu <= fx {
			if u < x {
				b = x
			} else {
				a = x
			}
			v, fv = w, fw
			w, fw = x, fx
			x, fx = u, fu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if fu <= fw || w == x {
				v, fv = w, fw
				w, fw = u, fu
			} else if fu <= fv || v == x || v == w {
				v, fv = u, fu
			}
		}
	}

	return 0, 0, &ConvergenceError{Op: "minimize", Lo: lo, Hi: hi, Iterations: maxIter}
}

// Maximize locates a local maximum of f strictly inside (lo, hi) by
// minimizing the negated objective.
func Maximize(f func(float64) float64, lo, hi, tol float64, maxIter int) (float64, float64, error) {
	x, fx, err := Minimize(func(t float64) float64 { return -f(t) }, lo, hi, tol, maxIter)
	if err != nil {
		return 0, 0, err
	}
	return x, -fx, nil
}

// Root locates a zero of f inside [lo, hi] using Brent's zeroin: inverse
// quadratic interpolation and secant steps guarded by bisection. The
// endpoints must bracket a sign change.
func Root(f func(float64) float64, lo, hi, tol float64, maxIter int) (float64, error) {
	if tol <= 0 {
		tol = DefaultTol
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}

	a, b := lo, hi
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, fmt.Errorf("%w: f(%g)=%g, f(%g)=%g", ErrNoBracket, a, fa, b, fb)
	}

	c, fc := a, fa
	d := b - a
	e := d
	eps := 2.220446049250313e-16

	for iter := 0; iter < maxIter; iter++ {
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*eps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			s := fb / fa
			var p, q float64
			if a == c {
				// Secant step.
				p = 2 * xm * s
				q = 1 - s
			} else {
				// Inverse quadratic interpolation.
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else if xm > 0 {
			b += tol1
		} else {
			b -= tol1
		}
		fb = f(b)
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
	}

	return 0, &ConvergenceError{Op: "root", Lo: lo, Hi: hi, Iterations: maxIter}
}
