// Package confset inverts a p-value function of the null effect mu into a
// confidence set: the region where the p-value stays at or above the
// significance threshold. The region has no closed form and may be empty, a
// single interval, or a union of disjoint intervals; the package locates
// every sign change of the shifted p-value function with a bounded extremum
// search between study estimates and an outward boundary search past the
// extreme ones.
package confset

// PValueFunc is a p-value function of the hypothesized effect mu. It must
// be continuous on the range the search visits; the package never calls it
// concurrently within one invocation.
type PValueFunc func(mu float64) float64

// PointKind tags the role of an evaluated abscissa in the search.
type PointKind string

const (
	PointEstimate PointKind = "estimate"
	PointLocalMax PointKind = "local-max"
	PointLocalMin PointKind = "local-min"
	PointBoundary PointKind = "boundary"
)

// EvaluatedPoint is one evaluation of the shifted function
// f(mu) = p(mu) - alpha, tagged with its role. Y is on the shifted scale;
// zero crossings of Y are confidence-set boundaries.
type EvaluatedPoint struct {
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Kind PointKind `json:"kind"`
}

// Interval is one closed component of the confidence set.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether x lies inside the interval.
func (iv Interval) Contains(x float64) bool {
	return x >= iv.Lower && x <= iv.Upper
}

// Width returns the interval length.
func (iv Interval) Width() float64 {
	return iv.Upper - iv.Lower
}

// CurvePoint is a location on the p-value function, on the p-value scale.
type CurvePoint struct {
	X      float64 `json:"x"`
	PValue float64 `json:"p_value"`
}

// Result is the full output of one confidence-set computation: the interval
// union, the gamma diagnostics (local p-value minima between adjacent
// positive regions), their summary means, the forest-plot annotation point,
// and every evaluated point of the search in x order.
type Result struct {
	Level     float64    `json:"level"`
	Intervals []Interval `json:"intervals"`

	// Gamma diagnostics. GammaHMean is NaN with GammaHMeanUndefined set
	// when any gamma p-value is exactly zero; both means are NaN when no
	// gamma exists. NaN crosses JSON as null; see json.go.
	Gamma               []CurvePoint `json:"gamma,omitempty"`
	GammaMean           float64      `json:"gamma_mean"`
	GammaHMean          float64      `json:"gamma_hmean"`
	GammaHMeanUndefined bool         `json:"gamma_hmean_undefined,omitempty"`

	// ForestPlotPoint is the global p-value maximum over the anchor set.
	// When the confidence set is empty it is the only summary available
	// for display.
	ForestPlotPoint CurvePoint `json:"forest_plot_point"`

	Points []EvaluatedPoint `json:"points,omitempty"`
}

// Empty reports whether no mu reached the confidence level.
func (r *Result) Empty() bool {
	return len(r.Intervals) == 0
}

// Contains reports whether mu lies inside any interval of the set.
func (r *Result) Contains(mu float64) bool {
	for _, iv := range r.Intervals {
		if iv.Contains(mu) {
			return true
		}
	}
	return false
}

// Alpha returns the significance threshold 1 - level.
func (r *Result) Alpha() float64 {
	return 1 - r.Level
}
