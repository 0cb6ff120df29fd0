// Package hmean implements the harmonic-mean chi-squared combination test:
// for a hypothesized common effect mu it standardizes every study residual
// and maps the weighted harmonic mean of the squared residuals to an upper
// tail probability. The resulting p-value function of mu is the input to the
// confidence-set machinery.
package hmean

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"confmeta/domain/study"
)

// Heterogeneity selects the between-study adjustment applied to the
// standard errors before the residuals are formed.
type Heterogeneity string

const (
	HeterogeneityNone Heterogeneity = "none"
	// HeterogeneityPhi inflates each standard error by sqrt(phi).
	HeterogeneityPhi Heterogeneity = "additive-phi"
	// HeterogeneityTau2 adds tau2 to each sampling variance.
	HeterogeneityTau2 Heterogeneity = "additive-tau2"
)

// Alternative restricts the null to residuals of a common sign. Where the
// restriction fails the p-value is undefined (NaN).
type Alternative string

const (
	AlternativeNone     Alternative = "none"
	AlternativeLess     Alternative = "less"
	AlternativeGreater  Alternative = "greater"
	AlternativeTwoSided Alternative = "two-sided"
)

// Distribution selects the reference distribution of the statistic.
type Distribution string

const (
	DistributionChiSq Distribution = "chisq"
	// DistributionF uses an F(1, n-1) reference as a small-sample correction.
	DistributionF Distribution = "f"
)

// Options carries the tuning knobs of the p-value function. The zero value
// is valid and means: no heterogeneity adjustment, no sign restriction,
// chi-squared reference.
type Options struct {
	Heterogeneity Heterogeneity `json:"heterogeneity,omitempty"`
	Phi           float64       `json:"phi,omitempty"`
	Tau2          float64       `json:"tau2,omitempty"`
	Alternative   Alternative   `json:"alternative,omitempty"`
	Distribution  Distribution  `json:"distribution,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.Heterogeneity == "" {
		o.Heterogeneity = HeterogeneityNone
	}
	if o.Alternative == "" {
		o.Alternative = AlternativeNone
	}
	if o.Distribution == "" {
		o.Distribution = DistributionChiSq
	}
	return o
}

// Validate checks the option invariants against a study set.
func (o Options) Validate(set study.StudySet) error {
	o = o.withDefaults()
	switch o.Heterogeneity {
	case HeterogeneityNone:
	case HeterogeneityPhi:
		if !(o.Phi > 0) {
			return &study.InvalidInputError{Field: "phi", Reason: "must be strictly positive for additive-phi heterogeneity"}
		}
	case HeterogeneityTau2:
		if !(o.Tau2 > 0) {
			return &study.InvalidInputError{Field: "tau2", Reason: "must be strictly positive for additive-tau2 heterogeneity"}
		}
	default:
		return &study.InvalidInputError{Field: "heterogeneity", Reason: "unknown value " + string(o.Heterogeneity)}
	}
	switch o.Alternative {
	case AlternativeNone, AlternativeLess, AlternativeGreater, AlternativeTwoSided:
	default:
		return &study.InvalidInputError{Field: "alternative", Reason: "unknown value " + string(o.Alternative)}
	}
	switch o.Distribution {
	case DistributionChiSq:
	case DistributionF:
		if set.Size() < 2 {
			return &study.InvalidInputError{Field: "distribution", Reason: "F reference requires at least two studies"}
		}
	default:
		return &study.InvalidInputError{Field: "distribution", Reason: "unknown value " + string(o.Distribution)}
	}
	return nil
}

// adjustedSEs applies the heterogeneity adjustment. Returns a fresh slice;
// the study set is never mutated.
func adjustedSEs(set study.StudySet, o Options) []float64 {
	se := make([]float64, len(set.StandardErrors))
	switch o.Heterogeneity {
	case HeterogeneityPhi:
		scale := math.Sqrt(o.Phi)
		for i, s := range set.StandardErrors {
			se[i] = s * scale
		}
	case HeterogeneityTau2:
		for i, s := range set.StandardErrors {
			se[i] = math.Sqrt(s*s + o.Tau2)
		}
	default:
		copy(se, set.StandardErrors)
	}
	return se
}

// PValue evaluates the harmonic-mean chi-squared p-value at every null
// value in mu. The statistic is
//
//	T(mu) = (sum sqrt(w_i))^2 / sum(w_i / z_i(mu)^2),  z_i = (est_i - mu)/se_i
//
// mapped through the upper tail of chi-squared(1) or F(1, n-1). A residual
// of exactly zero drives T to zero and the p-value to one by IEEE-754
// semantics. With a directional alternative, entries where a residual
// strictly opposes the admissible sign are NaN (a zero residual is
// compatible with either side) and valid entries are divided by 2^n
// (one-sided) or 2^(n-1) (two-sided).
func PValue(set study.StudySet, mu []float64, opts Options) ([]float64, error) {
	f, err := Func(set, opts)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(mu))
	for k, m := range mu {
		out[k] = f(m)
	}
	return out, nil
}

// PValueAt is the scalar form of PValue.
func PValueAt(set study.StudySet, mu float64, opts Options) (float64, error) {
	p, err := PValue(set, []float64{mu}, opts)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// Func returns the p-value function of mu as a plain closure over a
// validated study set and options, for callers that evaluate it many times
// (curve sampling, root search). Validation happens once, up front.
func Func(set study.StudySet, opts Options) (func(mu float64) float64, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := opts.Validate(set); err != nil {
		return nil, err
	}

	n := set.Size()
	w := set.EffectiveWeights()
	se := adjustedSEs(set, opts)

	sumSqrtW := 0.0
	for _, wi := range w {
		sumSqrtW += math.Sqrt(wi)
	}
	numerator := sumSqrtW * sumSqrtW
	upperTail := upperTailFn(opts.Distribution, n)
	estimates := append([]float64(nil), set.Estimates...)

	return func(m float64) float64 {
		denom := 0.0
		allPos, allNeg := true, true
		for i := range estimates {
			z := (estimates[i] - m) / se[i]
			denom += w[i] / (z * z)
			// A zero residual is sign-compatible with either direction.
			if z < 0 {
				allPos = false
			}
			if z > 0 {
				allNeg = false
			}
		}
		p := upperTail(numerator / denom)
		switch opts.Alternative {
		case AlternativeGreater:
			if allPos {
				return p / math.Exp2(float64(n))
			}
			return math.NaN()
		case AlternativeLess:
			if allNeg {
				return p / math.Exp2(float64(n))
			}
			return math.NaN()
		case AlternativeTwoSided:
			if allPos || allNeg {
				return p / math.Exp2(float64(n-1))
			}
			return math.NaN()
		}
		return p
	}, nil
}

// upperTailFn selects the reference distribution's survival function.
func upperTailFn(d Distribution, n int) func(float64) float64 {
	if d == DistributionF {
		fDist := distuv.F{D1: 1, D2: float64(n - 1)}
		return func(t float64) float64 {
			if t == 0 {
				return 1
			}
			return fDist.Survival(t)
		}
	}
	chi := distuv.ChiSquared{K: 1}
	return func(t float64) float64 {
		if t == 0 {
			return 1
		}
		return chi.Survival(t)
	}
}
