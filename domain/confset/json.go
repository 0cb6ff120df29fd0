package confset

import (
	"encoding/json"
	"math"
)

// The result contract produces NaN on purpose: undefined directional
// p-values in Points, undefined gamma summaries. encoding/json rejects NaN
// outright, so the types that can carry one marshal it as null and read
// null back as NaN.

func nanToNull(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func nullToNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type curvePointJSON struct {
	X      float64  `json:"x"`
	PValue *float64 `json:"p_value"`
}

func (c CurvePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(curvePointJSON{X: c.X, PValue: nanToNull(c.PValue)})
}

func (c *CurvePoint) UnmarshalJSON(data []byte) error {
	var raw curvePointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.X = raw.X
	c.PValue = nullToNaN(raw.PValue)
	return nil
}

type evaluatedPointJSON struct {
	X    float64   `json:"x"`
	Y    *float64  `json:"y"`
	Kind PointKind `json:"kind"`
}

func (p EvaluatedPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(evaluatedPointJSON{X: p.X, Y: nanToNull(p.Y), Kind: p.Kind})
}

func (p *EvaluatedPoint) UnmarshalJSON(data []byte) error {
	var raw evaluatedPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.X = raw.X
	p.Y = nullToNaN(raw.Y)
	p.Kind = raw.Kind
	return nil
}

// resultJSON shadows Result's own fields so the nested types keep their
// marshalers while the NaN-capable means go through the null mapping.
type resultJSON struct {
	Level               float64          `json:"level"`
	Intervals           []Interval       `json:"intervals"`
	Gamma               []CurvePoint     `json:"gamma,omitempty"`
	GammaMean           *float64         `json:"gamma_mean"`
	GammaHMean          *float64         `json:"gamma_hmean"`
	GammaHMeanUndefined bool             `json:"gamma_hmean_undefined,omitempty"`
	ForestPlotPoint     CurvePoint       `json:"forest_plot_point"`
	Points              []EvaluatedPoint `json:"points,omitempty"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Level:               r.Level,
		Intervals:           r.Intervals,
		Gamma:               r.Gamma,
		GammaMean:           nanToNull(r.GammaMean),
		GammaHMean:          nanToNull(r.GammaHMean),
		GammaHMeanUndefined: r.GammaHMeanUndefined,
		ForestPlotPoint:     r.ForestPlotPoint,
		Points:              r.Points,
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result{
		Level:               raw.Level,
		Intervals:           raw.Intervals,
		Gamma:               raw.Gamma,
		GammaMean:           nullToNaN(raw.GammaMean),
		GammaHMean:          nullToNaN(raw.GammaHMean),
		GammaHMeanUndefined: raw.GammaHMeanUndefined,
		ForestPlotPoint:     raw.ForestPlotPoint,
		Points:              raw.Points,
	}
	return nil
}
