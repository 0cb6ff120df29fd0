// Package classic implements the standard meta-analytic combinations used
// as comparison rows next to the harmonic-mean confidence set: the
// inverse-variance fixed-effect model and the DerSimonian-Laird
// random-effects model, with the usual heterogeneity statistics. These are
// display-only collaborators; nothing here feeds back into the
// confidence-set computation.
package classic

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"confmeta/domain/study"
)

// Method names the combination model of a row.
type Method string

const (
	MethodFixed  Method = "fixed-effect"
	MethodRandom Method = "random-effects"
)

// Combination is one combined estimate with its normal-theory interval.
type Combination struct {
	Method   Method  `json:"method"`
	Estimate float64 `json:"estimate"`
	SE       float64 `json:"se"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Z        float64 `json:"z"`
	PValue   float64 `json:"p_value"`
}

// Summary bundles both combinations with the heterogeneity statistics.
type Summary struct {
	Fixed   Combination `json:"fixed"`
	Random  Combination `json:"random"`
	Q       float64     `json:"q"`
	QPValue float64     `json:"q_p_value"`
	DF      int         `json:"df"`
	I2      float64     `json:"i2"`
	Tau2    float64     `json:"tau2"`
}

// Summarize computes the fixed-effect and DerSimonian-Laird random-effects
// combinations of the study set at the given confidence level.
func Summarize(set study.StudySet, level float64) (*Summary, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if !(level > 0 && level < 1) {
		return nil, &study.InvalidInputError{Field: "level", Reason: "confidence level must be in (0, 1)"}
	}

	n := set.Size()
	w := make([]float64, n)
	for i, se := range set.StandardErrors {
		w[i] = 1 / (se * se)
	}
	sumW, _ := stats.Sum(w)

	fixedEst := 0.0
	for i, wi := range w {
		fixedEst += wi * set.Estimates[i]
	}
	fixedEst /= sumW
	fixedSE := 1 / math.Sqrt(sumW)

	// Cochran's Q and derived heterogeneity measures.
	q := 0.0
	for i, wi := range w {
		d := set.Estimates[i] - fixedEst
		q += wi * d * d
	}
	df := n - 1
	qp := 1.0
	if df > 0 {
		qp = distuv.ChiSquared{K: float64(df)}.Survival(q)
	}
	i2 := 0.0
	if q > 0 {
		i2 = math.Max(0, (q-float64(df))/q)
	}
	tau2 := 0.0
	if df > 0 {
		sumW2, _ := stats.Sum(squared(w))
		c := sumW - sumW2/sumW
		if c > 0 {
			tau2 = math.Max(0, (q-float64(df))/c)
		}
	}

	// Random-effects weights fold tau2 into each variance.
	sumWStar := 0.0
	randEst := 0.0
	for i, se := range set.StandardErrors {
		wi := 1 / (se*se + tau2)
		sumWStar += wi
		randEst += wi * set.Estimates[i]
	}
	randEst /= sumWStar
	randSE := 1 / math.Sqrt(sumWStar)

	zCrit := distuv.UnitNormal.Quantile(1 - (1-level)/2)

	return &Summary{
		Fixed:   combine(MethodFixed, fixedEst, fixedSE, zCrit),
		Random:  combine(MethodRandom, randEst, randSE, zCrit),
		Q:       q,
		QPValue: qp,
		DF:      df,
		I2:      i2,
		Tau2:    tau2,
	}, nil
}

func combine(m Method, est, se, zCrit float64) Combination {
	z := est / se
	return Combination{
		Method:   m,
		Estimate: est,
		SE:       se,
		Lower:    est - zCrit*se,
		Upper:    est + zCrit*se,
		Z:        z,
		PValue:   2 * distuv.UnitNormal.Survival(math.Abs(z)),
	}
}

func squared(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * x
	}
	return out
}
