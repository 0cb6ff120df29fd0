package confset

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"confmeta/domain/hmean"
	"confmeta/domain/study"
	"confmeta/internal/numeric"
)

// anchorTol is the relative tolerance under which two anchors are treated
// as duplicates (keep first).
const anchorTol = 1e-9

// Builder runs the confidence-set state machine. The zero value is not
// usable; construct with NewBuilder. A Builder carries no per-invocation
// state and may be reused across study sets.
type Builder struct {
	// Tol is the x-axis tolerance of the extremum and root searches.
	Tol float64
	// MaxIter bounds each individual optimizer/root-finder run.
	MaxIter int
	// MaxSteps bounds the outward boundary search.
	MaxSteps int
}

// NewBuilder returns a Builder with the default tolerances.
func NewBuilder() *Builder {
	return &Builder{
		Tol:      numeric.DefaultTol,
		MaxIter:  numeric.DefaultMaxIter,
		MaxSteps: DefaultMaxBoundarySteps,
	}
}

// Build computes the confidence set for the harmonic-mean chi-squared
// p-value function with the given options.
func Build(set study.StudySet, level float64, opts hmean.Options) (*Result, error) {
	return NewBuilder().Build(set, level, opts)
}

// Build computes the confidence set for the harmonic-mean chi-squared
// p-value function with the given options. Directional alternatives leave
// the p-value undefined wherever a residual opposes the admissible sign,
// so they run through a dedicated tail search instead of the general
// anchor machine.
func (b *Builder) Build(set study.StudySet, level float64, opts hmean.Options) (*Result, error) {
	pfn, err := hmean.Func(set, opts)
	if err != nil {
		return nil, err
	}
	switch opts.Alternative {
	case hmean.AlternativeLess, hmean.AlternativeGreater, hmean.AlternativeTwoSided:
		return b.buildDirectional(set, level, pfn, opts.Alternative)
	}
	return b.BuildWith(set, level, pfn)
}

// BuildWith computes the confidence set for an arbitrary p-value function.
// The study set still supplies the anchor estimates and the boundary step
// scale. The function must be finite on the search range; sign-restricted
// functions with undefined regions go through Build, which routes them to
// the tail search. The state machine:
//
//  1. evaluate f(mu) = p(mu) - alpha at the deduplicated, sorted estimates;
//  2. admit the relevant local maxima between consecutive estimates;
//  3. if f <= 0 everywhere, the set is empty and only the global maximum is
//     reported;
//  4. otherwise search the outer boundaries past the extreme positive
//     anchors, collect the relevant local minima between the surviving
//     anchors (the gamma diagnostics), and root-find two extra crossings
//     around every dip below zero;
//  5. assemble the sorted interval union and the diagnostics.
func (b *Builder) BuildWith(set study.StudySet, level float64, pfn PValueFunc) (*Result, error) {
	if err := validateInputs(set, level); err != nil {
		return nil, err
	}
	alpha := 1 - level
	f := func(mu float64) float64 { return pfn(mu) - alpha }

	anchors := dedupSorted(set.Estimates)
	points := make([]EvaluatedPoint, 0, 2*len(anchors))
	for _, x := range anchors {
		points = append(points, EvaluatedPoint{X: x, Y: f(x), Kind: PointEstimate})
	}

	if len(anchors) > 1 {
		maxima, err := FindExtrema(f, anchors, true, b.Tol, b.MaxIter)
		if err != nil {
			return nil, err
		}
		keep := Relevant(yValues(points), maxima, true)
		for i := range maxima {
			if keep[i] {
				points = append(points, maxima[i])
			}
		}
		sortPoints(points)
	}

	res := &Result{Level: level}

	iMin, iMax := -1, -1
	for i, p := range points {
		if p.Y > 0 {
			if iMin < 0 {
				iMin = i
			}
			iMax = i
		}
	}

	if iMin < 0 {
		// Nothing reaches the threshold: empty set, report the global
		// maximum on the p-value scale for forest-plot annotation.
		g := globalMax(points)
		res.ForestPlotPoint = CurvePoint{X: g.X, PValue: g.Y + alpha}
		res.GammaMean = math.NaN()
		res.GammaHMean = math.NaN()
		res.Points = points
		return res, nil
	}

	step := set.MaxStandardError()
	lower, err := b.findBoundary(f, points[iMin].X, step, -1)
	if err != nil {
		return nil, err
	}
	upper, err := b.findBoundary(f, points[iMax].X, step, +1)
	if err != nil {
		return nil, err
	}

	surviving := points[iMin : iMax+1]
	var gammaPts []EvaluatedPoint
	if len(surviving) > 1 {
		minima, err := FindExtrema(f, xValues(surviving), false, b.Tol, b.MaxIter)
		if err != nil {
			return nil, err
		}
		keep := Relevant(yValues(surviving), minima, false)
		for i := range minima {
			if keep[i] {
				gammaPts = append(gammaPts, minima[i])
			}
		}
	}

	// Every dip below zero splits the positive region in two. Anchors that
	// are themselves non-positive (possible with a supplied p-value
	// function) split it the same way.
	var splits []EvaluatedPoint
	for _, g := range gammaPts {
		if g.Y < 0 {
			splits = append(splits, g)
		}
	}
	for _, p := range surviving {
		if p.Y < 0 {
			splits = append(splits, p)
		}
	}
	sortPoints(splits)

	bounds := []float64{lower, upper}
	if len(splits) > 0 {
		roots, err := b.innerRoots(f, surviving, splits)
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, roots...)
		sort.Float64s(bounds)
	}
	if len(bounds)%2 != 0 {
		return nil, fmt.Errorf("confset: inconsistent crossing count %d", len(bounds))
	}
	intervals := make([]Interval, 0, len(bounds)/2)
	for i := 0; i+1 < len(bounds); i += 2 {
		intervals = append(intervals, Interval{Lower: bounds[i], Upper: bounds[i+1]})
	}
	res.Intervals = intervals

	all := append(points, gammaPts...)
	for _, x := range bounds {
		all = append(all, EvaluatedPoint{X: x, Y: 0, Kind: PointBoundary})
	}
	sortPoints(all)
	res.Points = all

	res.Gamma = make([]CurvePoint, 0, len(gammaPts))
	gvals := make([]float64, 0, len(gammaPts))
	for _, g := range gammaPts {
		p := g.Y + alpha
		res.Gamma = append(res.Gamma, CurvePoint{X: g.X, PValue: p})
		gvals = append(gvals, p)
	}
	if mean, err := stats.Mean(gvals); err == nil {
		res.GammaMean = mean
	} else {
		res.GammaMean = math.NaN()
	}
	if hm, err := HarmonicMean(gvals); err == nil {
		res.GammaHMean = hm
	} else {
		res.GammaHMean = math.NaN()
		res.GammaHMeanUndefined = len(gvals) > 0
	}

	g := globalMax(res.Points)
	res.ForestPlotPoint = CurvePoint{X: g.X, PValue: g.Y + alpha}
	return res, nil
}

// buildDirectional handles the sign-restricted alternatives. The p-value
// is defined only where every residual lies on the admissible side, which
// confines the search to the tails outside the extreme estimates: mu below
// the smallest estimate ("greater"), above the largest ("less"), or either
// tail ("two-sided"). Within a defined tail the statistic grows
// monotonically away from the estimates, so each tail contributes at most
// one interval, pinned at its extreme estimate. Interior anchors are kept
// in Points with their undefined (NaN) values for the curve contract.
func (b *Builder) buildDirectional(set study.StudySet, level float64, pfn PValueFunc, alt hmean.Alternative) (*Result, error) {
	if err := validateInputs(set, level); err != nil {
		return nil, err
	}
	alpha := 1 - level
	f := func(mu float64) float64 { return pfn(mu) - alpha }

	anchors := dedupSorted(set.Estimates)
	points := make([]EvaluatedPoint, 0, len(anchors)+2)
	for _, x := range anchors {
		points = append(points, EvaluatedPoint{X: x, Y: f(x), Kind: PointEstimate})
	}
	edgeLo := points[0]
	edgeHi := points[len(points)-1]
	step := set.MaxStandardError()

	res := &Result{Level: level, GammaMean: math.NaN(), GammaHMean: math.NaN()}

	if (alt == hmean.AlternativeGreater || alt == hmean.AlternativeTwoSided) && edgeLo.Y > 0 {
		lower, err := b.findBoundary(f, edgeLo.X, step, -1)
		if err != nil {
			return nil, err
		}
		res.Intervals = append(res.Intervals, Interval{Lower: lower, Upper: edgeLo.X})
		points = append(points, EvaluatedPoint{X: lower, Y: 0, Kind: PointBoundary})
	}
	if (alt == hmean.AlternativeLess || alt == hmean.AlternativeTwoSided) && edgeHi.Y > 0 {
		upper, err := b.findBoundary(f, edgeHi.X, step, +1)
		if err != nil {
			return nil, err
		}
		res.Intervals = append(res.Intervals, Interval{Lower: edgeHi.X, Upper: upper})
		points = append(points, EvaluatedPoint{X: upper, Y: 0, Kind: PointBoundary})
	}

	// A single anchor under two-sided is defined on both tails and at the
	// anchor itself; the two tail intervals meet there and form one.
	if len(res.Intervals) == 2 && res.Intervals[0].Upper == res.Intervals[1].Lower {
		res.Intervals = []Interval{{Lower: res.Intervals[0].Lower, Upper: res.Intervals[1].Upper}}
	}

	sortPoints(points)
	res.Points = points
	g := globalMax(points)
	res.ForestPlotPoint = CurvePoint{X: g.X, PValue: g.Y + alpha}
	return res, nil
}

// validateInputs checks the shared Build preconditions.
func validateInputs(set study.StudySet, level float64) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if !(level > 0 && level < 1) {
		return &study.InvalidInputError{
			Field:  "level",
			Reason: fmt.Sprintf("confidence level must be in (0, 1), got %g", level),
		}
	}
	return nil
}

// innerRoots finds, for every split point, the descending and ascending
// zero crossings inside its bracketing hills (the nearest surviving anchors
// with f > 0 on each side), preferring the innermost valid bracket.
// Duplicate brackets that resolve to the same crossing are collapsed.
func (b *Builder) innerRoots(f func(float64) float64, surviving, splits []EvaluatedPoint) ([]float64, error) {
	var roots []float64
	for _, s := range splits {
		left, right, ok := hills(surviving, s.X)
		if !ok {
			return nil, fmt.Errorf("confset: split at %g has no bracketing positive anchors", s.X)
		}
		r1, err := numeric.Root(f, left, s.X, b.Tol, b.MaxIter)
		if err != nil {
			return nil, &OptimizationFailureError{Lo: left, Hi: s.X, Err: err}
		}
		r2, err := numeric.Root(f, s.X, right, b.Tol, b.MaxIter)
		if err != nil {
			return nil, &OptimizationFailureError{Lo: s.X, Hi: right, Err: err}
		}
		roots = append(roots, r1, r2)
	}
	sort.Float64s(roots)
	return dedupRoots(roots, b.Tol), nil
}

// hills returns the x of the nearest surviving anchors with f > 0 strictly
// left and right of x.
func hills(surviving []EvaluatedPoint, x float64) (left, right float64, ok bool) {
	foundL, foundR := false, false
	for _, p := range surviving {
		if p.Y <= 0 {
			continue
		}
		if p.X < x {
			left = p.X
			foundL = true
		}
		if p.X > x && !foundR {
			right = p.X
			foundR = true
		}
	}
	return left, right, foundL && foundR
}

// HarmonicMean returns n / sum(1/v). A zero term makes the quantity
// undefined; it is reported as an explicit error, never as a silent Inf.
func HarmonicMean(values []float64) (float64, error) {
	if len(values) == 0 {
		return math.NaN(), &UndefinedStatisticError{Quantity: "harmonic mean of empty set"}
	}
	s := 0.0
	for _, v := range values {
		if v == 0 {
			return math.NaN(), &UndefinedStatisticError{Quantity: "harmonic mean with zero gamma"}
		}
		s += 1 / v
	}
	return float64(len(values)) / s, nil
}

// dedupSorted returns the sorted estimates with tolerance-equal duplicates
// removed, keeping the first occurrence.
func dedupSorted(estimates []float64) []float64 {
	xs := append([]float64(nil), estimates...)
	sort.Float64s(xs)
	out := xs[:1]
	for _, x := range xs[1:] {
		last := out[len(out)-1]
		if x-last > anchorTol*math.Max(1, math.Max(math.Abs(x), math.Abs(last))) {
			out = append(out, x)
		}
	}
	return out
}

func dedupRoots(roots []float64, tol float64) []float64 {
	if len(roots) == 0 {
		return roots
	}
	out := roots[:1]
	for _, r := range roots[1:] {
		last := out[len(out)-1]
		if r-last > 10*tol*(1+math.Abs(r)) {
			out = append(out, r)
		}
	}
	return out
}

func sortPoints(pts []EvaluatedPoint) {
	sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
}

func xValues(pts []EvaluatedPoint) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.X
	}
	return out
}

func yValues(pts []EvaluatedPoint) []float64 {
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Y
	}
	return out
}

// globalMax returns the point with the largest Y, skipping undefined
// values unless nothing else is available.
func globalMax(pts []EvaluatedPoint) EvaluatedPoint {
	best := pts[0]
	for _, p := range pts[1:] {
		if (math.IsNaN(best.Y) && !math.IsNaN(p.Y)) || p.Y > best.Y {
			best = p
		}
	}
	return best
}
