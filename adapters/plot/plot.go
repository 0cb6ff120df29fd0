// Package plot produces plot-ready data structures for the analysis
// results: the p-value curve across a mu grid and the rows of a forest
// plot. Rendering is left to the caller; these are the numbers a chart
// library or a frontend needs.
package plot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"confmeta/domain/classic"
	"confmeta/domain/confset"
	"confmeta/domain/hmean"
	"confmeta/domain/study"
)

// CurveSeries is the p-value function sampled on a mu grid, with the
// significance threshold for drawing the alpha line and the confidence-set
// components for shading.
type CurveSeries struct {
	Mu      []float64          `json:"mu"`
	PValue  []float64          `json:"p_value"`
	Alpha   float64            `json:"alpha"`
	Shading []confset.Interval `json:"shading,omitempty"`
}

// ForestRow is one horizontal bar of a forest plot.
type ForestRow struct {
	Label    string  `json:"label"`
	Estimate float64 `json:"estimate"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Weight   float64 `json:"weight,omitempty"`
	Summary  bool    `json:"summary,omitempty"`
}

// ForestPlot is the full forest-plot data set: per-study rows followed by
// the summary rows.
type ForestPlot struct {
	Level     float64     `json:"level"`
	Rows      []ForestRow `json:"rows"`
	Summaries []ForestRow `json:"summaries"`

	// Disjoint is set when the harmonic-mean confidence set has more than
	// one component and the summary row shows only its outer hull.
	Disjoint bool `json:"disjoint,omitempty"`
}

// DefaultGridPoints is the sample count of a p-value curve.
const DefaultGridPoints = 401

// gridPadFactor widens the grid past the extreme estimates in units of
// the largest standard error.
const gridPadFactor = 4.0

// Grid returns an evenly spaced mu grid spanning the estimates padded by
// a few standard errors on each side.
func Grid(set study.StudySet, points int) []float64 {
	if points < 2 {
		points = DefaultGridPoints
	}
	lo, hi := set.Estimates[0], set.Estimates[0]
	for _, e := range set.Estimates {
		lo = math.Min(lo, e)
		hi = math.Max(hi, e)
	}
	pad := gridPadFactor * set.MaxStandardError()
	lo -= pad
	hi += pad

	grid := make([]float64, points)
	step := (hi - lo) / float64(points-1)
	for i := range grid {
		grid[i] = lo + float64(i)*step
	}
	return grid
}

// Curve samples the harmonic-mean p-value function on a mu grid.
func Curve(set study.StudySet, opts hmean.Options, level float64, points int) (CurveSeries, error) {
	f, err := hmean.Func(set, opts)
	if err != nil {
		return CurveSeries{}, fmt.Errorf("failed to build p-value function: %w", err)
	}
	grid := Grid(set, points)
	pv := make([]float64, len(grid))
	for i, mu := range grid {
		pv[i] = f(mu)
	}
	return CurveSeries{Mu: grid, PValue: pv, Alpha: 1 - level}, nil
}

// WithShading attaches the confidence-set components to the series.
func (c CurveSeries) WithShading(res *confset.Result) CurveSeries {
	if res != nil {
		c.Shading = res.Intervals
	}
	return c
}

// Forest assembles a forest plot: one Wald interval per study, the
// harmonic-mean confidence set summary and, when given, the classical
// fixed- and random-effects summaries.
func Forest(set study.StudySet, res *confset.Result, cs *classic.Summary) ForestPlot {
	level := res.Level
	z := distuv.UnitNormal.Quantile(1 - (1-level)/2)

	fp := ForestPlot{Level: level}
	weights := set.EffectiveWeights()
	for i, est := range set.Estimates {
		se := set.StandardErrors[i]
		fp.Rows = append(fp.Rows, ForestRow{
			Label:    set.Label(i),
			Estimate: est,
			Lower:    est - z*se,
			Upper:    est + z*se,
			Weight:   weights[i],
		})
	}

	if !res.Empty() {
		hull := confset.Interval{
			Lower: res.Intervals[0].Lower,
			Upper: res.Intervals[len(res.Intervals)-1].Upper,
		}
		fp.Disjoint = len(res.Intervals) > 1
		fp.Summaries = append(fp.Summaries, ForestRow{
			Label:    "Harmonic mean",
			Estimate: res.ForestPlotPoint.X,
			Lower:    hull.Lower,
			Upper:    hull.Upper,
			Summary:  true,
		})
	} else {
		// Empty set: the global p-value maximum is the only location to
		// annotate, shown as a zero-width bar.
		fp.Summaries = append(fp.Summaries, ForestRow{
			Label:    "Harmonic mean",
			Estimate: res.ForestPlotPoint.X,
			Lower:    res.ForestPlotPoint.X,
			Upper:    res.ForestPlotPoint.X,
			Summary:  true,
		})
	}

	if cs != nil {
		fp.Summaries = append(fp.Summaries,
			ForestRow{
				Label:    "Fixed effect",
				Estimate: cs.Fixed.Estimate,
				Lower:    cs.Fixed.Lower,
				Upper:    cs.Fixed.Upper,
				Summary:  true,
			},
			ForestRow{
				Label:    "Random effects",
				Estimate: cs.Random.Estimate,
				Lower:    cs.Random.Lower,
				Upper:    cs.Random.Upper,
				Summary:  true,
			},
		)
	}
	return fp
}
