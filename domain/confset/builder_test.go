package confset

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"

	"confmeta/domain/hmean"
	"confmeta/domain/study"
)

func mustSet(t *testing.T, estimates, ses []float64) study.StudySet {
	t.Helper()
	set, err := study.NewStudySet(estimates, ses)
	if err != nil {
		t.Fatalf("NewStudySet failed: %v", err)
	}
	return set
}

func mustBuild(t *testing.T, set study.StudySet, level float64) *Result {
	t.Helper()
	res, err := Build(set, level, hmean.Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return res
}

func TestBuild_SingleStudy(t *testing.T) {
	res := mustBuild(t, mustSet(t, []float64{0}, []float64{1}), 0.95)

	if len(res.Intervals) != 1 {
		t.Fatalf("Expected a single interval, got %d", len(res.Intervals))
	}
	// One study reduces the statistic to the squared z-score: the interval
	// is the Wald interval +-1.96.
	iv := res.Intervals[0]
	if math.Abs(iv.Lower+1.959964) > 1e-3 || math.Abs(iv.Upper-1.959964) > 1e-3 {
		t.Errorf("Expected [-1.96, 1.96], got [%g, %g]", iv.Lower, iv.Upper)
	}
	if len(res.Gamma) != 0 {
		t.Errorf("Expected no gamma diagnostics for a single study, got %d", len(res.Gamma))
	}
	if math.Abs(res.ForestPlotPoint.PValue-1) > 1e-12 {
		t.Errorf("Expected forest-plot p-value 1 at the estimate, got %g", res.ForestPlotPoint.PValue)
	}
}

// Two agreeing unit-variance studies: duplicate estimates collapse to one
// anchor and the statistic is T(mu) = 2*mu^2, so the 95% bounds sit at
// +-sqrt(qchisq(0.95)/2).
func TestBuild_AgreeingStudies(t *testing.T) {
	res := mustBuild(t, mustSet(t, []float64{0, 0}, []float64{1, 1}), 0.95)

	if len(res.Intervals) != 1 {
		t.Fatalf("Expected a single interval, got %d", len(res.Intervals))
	}
	iv := res.Intervals[0]
	want := math.Sqrt(distuv.ChiSquared{K: 1}.Quantile(0.95) / 2)
	if math.Abs(iv.Lower+want) > 2e-3 || math.Abs(iv.Upper-want) > 2e-3 {
		t.Errorf("Expected [%g, %g], got [%g, %g]", -want, want, iv.Lower, iv.Upper)
	}
	if !res.Contains(0) {
		t.Error("Expected the interval to contain the common estimate")
	}

	// The duplicate estimate must not produce a duplicate anchor.
	estimates := 0
	for _, p := range res.Points {
		if p.Kind == PointEstimate {
			estimates++
		}
	}
	if estimates != 1 {
		t.Errorf("Expected one estimate anchor after dedup, got %d", estimates)
	}
}

// Three spread-out studies make the harmonic-mean p-value function
// multimodal: the confidence set splits into one component per estimate,
// with gamma dips below the threshold in between.
func TestBuild_DisjointConfidenceSet(t *testing.T) {
	res := mustBuild(t, mustSet(t, []float64{-3, 0, 3}, []float64{1, 1, 1}), 0.95)

	if len(res.Intervals) != 3 {
		t.Fatalf("Expected 3 disjoint intervals, got %d: %+v", len(res.Intervals), res.Intervals)
	}
	for i, est := range []float64{-3, 0, 3} {
		if !res.Intervals[i].Contains(est) {
			t.Errorf("Expected interval %d to contain estimate %g, got [%g, %g]",
				i, est, res.Intervals[i].Lower, res.Intervals[i].Upper)
		}
	}
	for i := 1; i < len(res.Intervals); i++ {
		if res.Intervals[i].Lower <= res.Intervals[i-1].Upper {
			t.Errorf("Intervals %d and %d overlap", i-1, i)
		}
	}

	if len(res.Gamma) != 2 {
		t.Fatalf("Expected 2 gamma dips, got %d", len(res.Gamma))
	}
	alpha := res.Alpha()
	for _, g := range res.Gamma {
		if g.PValue >= alpha {
			t.Errorf("Expected gamma dip below alpha, got p=%g at %g", g.PValue, g.X)
		}
		if g.PValue <= 0 {
			t.Errorf("Expected strictly positive gamma p-value, got %g", g.PValue)
		}
	}
	if math.IsNaN(res.GammaMean) || res.GammaMean <= 0 {
		t.Errorf("Expected positive gamma mean, got %g", res.GammaMean)
	}
	if res.GammaHMeanUndefined {
		t.Error("Gamma harmonic mean should be defined")
	}
	if math.IsNaN(res.GammaHMean) || res.GammaHMean > res.GammaMean+1e-12 {
		t.Errorf("Expected harmonic mean <= arithmetic mean, got %g > %g", res.GammaHMean, res.GammaMean)
	}
}

// Coverage: p >= alpha strictly inside every interval, p < alpha strictly
// outside all of them.
func TestBuild_Coverage(t *testing.T) {
	set := mustSet(t, []float64{-3, 0, 3}, []float64{1, 1, 1})
	res := mustBuild(t, set, 0.95)
	pfn, err := hmean.Func(set, hmean.Options{})
	if err != nil {
		t.Fatalf("Func failed: %v", err)
	}

	alpha := res.Alpha()
	const margin = 1e-3 // keep clear of the root-finder tolerance band
	for mu := -7.0; mu <= 7.0; mu += 0.01 {
		inside := false
		nearBoundary := false
		for _, iv := range res.Intervals {
			if mu >= iv.Lower+margin && mu <= iv.Upper-margin {
				inside = true
			}
			if math.Abs(mu-iv.Lower) < margin || math.Abs(mu-iv.Upper) < margin {
				nearBoundary = true
			}
		}
		if nearBoundary {
			continue
		}
		p := pfn(mu)
		if inside && p < alpha-1e-6 {
			t.Fatalf("Expected p >= alpha inside the set at mu=%g, got %g", mu, p)
		}
		if !inside && p >= alpha+1e-6 {
			t.Fatalf("Expected p < alpha outside the set at mu=%g, got %g", mu, p)
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	set := mustSet(t, []float64{-3, 0, 3}, []float64{1, 1, 1})
	a := mustBuild(t, set, 0.95)
	b := mustBuild(t, set, 0.95)

	if len(a.Intervals) != len(b.Intervals) {
		t.Fatalf("Interval counts differ: %d vs %d", len(a.Intervals), len(b.Intervals))
	}
	for i := range a.Intervals {
		if a.Intervals[i] != b.Intervals[i] {
			t.Errorf("Interval %d differs: %+v vs %+v", i, a.Intervals[i], b.Intervals[i])
		}
	}
	if a.GammaMean != b.GammaMean || a.GammaHMean != b.GammaHMean {
		t.Error("Gamma summaries differ between identical runs")
	}
}

// fisherFunc builds Fisher's combination p-value function; unlike the
// harmonic-mean statistic it can reject everywhere, exercising the empty
// confidence-set branch.
func fisherFunc(set study.StudySet) PValueFunc {
	chi := distuv.ChiSquared{K: float64(2 * set.Size())}
	return func(mu float64) float64 {
		sum := 0.0
		for i := range set.Estimates {
			z := math.Abs((set.Estimates[i] - mu) / set.StandardErrors[i])
			sum += math.Log(2 * distuv.UnitNormal.Survival(z))
		}
		return chi.Survival(-2 * sum)
	}
}

func TestBuildWith_EmptySet(t *testing.T) {
	// Two tight, far-apart studies: no mu reconciles both.
	set := mustSet(t, []float64{-2, 2}, []float64{0.2, 0.2})
	res, err := NewBuilder().BuildWith(set, 0.95, fisherFunc(set))
	if err != nil {
		t.Fatalf("BuildWith failed: %v", err)
	}

	if !res.Empty() {
		t.Fatalf("Expected an empty confidence set, got %+v", res.Intervals)
	}
	// The global maximum sits between the conflicting estimates and stays
	// far below the threshold.
	if math.Abs(res.ForestPlotPoint.X) > 0.3 {
		t.Errorf("Expected the global maximum near 0, got %g", res.ForestPlotPoint.X)
	}
	if res.ForestPlotPoint.PValue >= 1e-6 {
		t.Errorf("Expected a vanishing maximum p-value, got %g", res.ForestPlotPoint.PValue)
	}
	if !math.IsNaN(res.GammaMean) || !math.IsNaN(res.GammaHMean) {
		t.Error("Expected NaN gamma summaries for an empty set")
	}

	// Consistency: the p-value stays below the level on a dense grid.
	pfn := fisherFunc(set)
	for mu := -4.0; mu <= 4.0; mu += 0.01 {
		if p := pfn(mu); p >= 0.05 {
			t.Fatalf("Expected p < alpha everywhere, got %g at mu=%g", p, mu)
		}
	}
}

func TestBuildWith_BoundaryNotFound(t *testing.T) {
	set := mustSet(t, []float64{0}, []float64{1})
	b := NewBuilder()
	b.MaxSteps = 25

	// A flat p-value function of 1 never drops below the threshold.
	_, err := b.BuildWith(set, 0.95, func(mu float64) float64 { return 1 })
	var bnf *BoundaryNotFoundError
	if !errors.As(err, &bnf) {
		t.Fatalf("Expected BoundaryNotFoundError, got %v", err)
	}
	if bnf.Steps != 25 {
		t.Errorf("Expected 25 steps reported, got %d", bnf.Steps)
	}
}

// Directional alternatives restrict the defined region to the tail outside
// the extreme estimates, so the set is one interval pinned at that estimate.
func TestBuild_DirectionalGreater(t *testing.T) {
	set := mustSet(t, []float64{1, 2}, []float64{1, 1})
	res, err := Build(set, 0.95, hmean.Options{Alternative: hmean.AlternativeGreater})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if res.Empty() {
		t.Fatal("Expected a non-empty confidence set under greater")
	}
	if len(res.Intervals) != 1 {
		t.Fatalf("Expected one tail interval, got %d: %+v", len(res.Intervals), res.Intervals)
	}
	iv := res.Intervals[0]
	if math.Abs(iv.Upper-1) > 1e-9 {
		t.Errorf("Expected the interval pinned at the smallest estimate, got upper %g", iv.Upper)
	}
	// p(0.5) ~ 0.0857 >= alpha, so 0.5 must be inside.
	if !iv.Contains(0.5) {
		t.Errorf("Expected the interval to contain 0.5, got [%g, %g]", iv.Lower, iv.Upper)
	}
	if math.IsNaN(res.ForestPlotPoint.PValue) {
		t.Error("Expected a finite forest-plot p-value")
	}

	// The lower bound crosses the threshold.
	pfn, err := hmean.Func(set, hmean.Options{Alternative: hmean.AlternativeGreater})
	if err != nil {
		t.Fatalf("Func failed: %v", err)
	}
	if p := pfn(iv.Lower); math.Abs(p-res.Alpha()) > 1e-6 {
		t.Errorf("Expected p = alpha at the lower bound, got %g", p)
	}
}

func TestBuild_DirectionalTwoSided(t *testing.T) {
	set := mustSet(t, []float64{0, 1}, []float64{1, 1})
	res, err := Build(set, 0.95, hmean.Options{Alternative: hmean.AlternativeTwoSided})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Both tails are defined: one interval ending at the smallest estimate,
	// one starting at the largest.
	if len(res.Intervals) != 2 {
		t.Fatalf("Expected two tail intervals, got %d: %+v", len(res.Intervals), res.Intervals)
	}
	if math.Abs(res.Intervals[0].Upper-0) > 1e-9 {
		t.Errorf("Expected the left interval to end at 0, got %g", res.Intervals[0].Upper)
	}
	if math.Abs(res.Intervals[1].Lower-1) > 1e-9 {
		t.Errorf("Expected the right interval to start at 1, got %g", res.Intervals[1].Lower)
	}
	if res.Intervals[0].Lower >= res.Intervals[0].Upper || res.Intervals[1].Lower >= res.Intervals[1].Upper {
		t.Errorf("Expected positive-width intervals, got %+v", res.Intervals)
	}
}

// Agreeing studies collapse to one anchor: under two-sided the two tails
// meet at the anchor and form a single interval at the known bounds.
func TestBuild_DirectionalAgreeing(t *testing.T) {
	set := mustSet(t, []float64{0, 0}, []float64{1, 1})
	res, err := Build(set, 0.9, hmean.Options{Alternative: hmean.AlternativeTwoSided})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(res.Intervals) != 1 {
		t.Fatalf("Expected a single merged interval, got %d: %+v", len(res.Intervals), res.Intervals)
	}
	iv := res.Intervals[0]
	// T(mu) = 2*mu^2 and the two-sided p is halved, so the 90% bound solves
	// P(chisq1 >= 2*mu^2)/2 = 0.10, i.e. mu = sqrt(qchisq(0.8)/2).
	want := math.Sqrt(distuv.ChiSquared{K: 1}.Quantile(0.8) / 2)
	if math.Abs(iv.Lower+want) > 2e-3 || math.Abs(iv.Upper-want) > 2e-3 {
		t.Errorf("Expected [%g, %g], got [%g, %g]", -want, want, iv.Lower, iv.Upper)
	}
	if !res.Contains(0) {
		t.Error("Expected the interval to contain the common estimate")
	}
}

// When the edge p-value already falls below alpha the directional set is
// empty; the report still carries the best (finite) p-value.
func TestBuild_DirectionalEmpty(t *testing.T) {
	set := mustSet(t, []float64{1, 2}, []float64{1, 1})
	res, err := Build(set, 0.7, hmean.Options{Alternative: hmean.AlternativeGreater})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// p peaks at the smallest estimate with p(1) = 1/2^2 = 0.25, below
	// alpha = 0.30, so nothing reaches the threshold.
	if !res.Empty() {
		t.Fatalf("Expected an empty confidence set, got %+v", res.Intervals)
	}
	if math.Abs(res.ForestPlotPoint.PValue-0.25) > 1e-9 {
		t.Errorf("Expected the maximum p-value 0.25 at the edge, got %g", res.ForestPlotPoint.PValue)
	}
	if math.Abs(res.ForestPlotPoint.X-1) > 1e-9 {
		t.Errorf("Expected the maximum at the smallest estimate, got %g", res.ForestPlotPoint.X)
	}
	if !math.IsNaN(res.GammaMean) || !math.IsNaN(res.GammaHMean) {
		t.Error("Expected NaN gamma summaries for a directional set")
	}
}

func TestBuild_InvalidLevel(t *testing.T) {
	set := mustSet(t, []float64{0}, []float64{1})
	for _, level := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err := Build(set, level, hmean.Options{})
		var invalid *study.InvalidInputError
		if !errors.As(err, &invalid) {
			t.Fatalf("Expected InvalidInputError for level=%g, got %v", level, err)
		}
	}
}

func TestBuild_PointsAreOrderedAndTagged(t *testing.T) {
	res := mustBuild(t, mustSet(t, []float64{-3, 0, 3}, []float64{1, 1, 1}), 0.95)

	if len(res.Points) == 0 {
		t.Fatal("Expected evaluated points")
	}
	kinds := map[PointKind]int{}
	for i, p := range res.Points {
		kinds[p.Kind]++
		if i > 0 && res.Points[i-1].X > p.X {
			t.Fatalf("Points out of order at index %d", i)
		}
	}
	if kinds[PointEstimate] != 3 {
		t.Errorf("Expected 3 estimate points, got %d", kinds[PointEstimate])
	}
	if kinds[PointBoundary] != 6 {
		t.Errorf("Expected 6 boundary points for 3 intervals, got %d", kinds[PointBoundary])
	}
	if kinds[PointLocalMin] != 2 {
		t.Errorf("Expected 2 local minima, got %d", kinds[PointLocalMin])
	}
}
