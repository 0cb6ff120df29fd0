package confset

import (
	"confmeta/internal/numeric"
)

// FindExtrema locates one local maximum (or minimum, when seekMaximum is
// false) of f strictly inside each open interval between consecutive
// anchors. Anchors must be sorted and distinct. The result has exactly
// len(anchors)-1 entries, in anchor order.
func FindExtrema(f func(float64) float64, anchors []float64, seekMaximum bool, tol float64, maxIter int) ([]EvaluatedPoint, error) {
	if len(anchors) < 2 {
		return nil, nil
	}
	kind := PointLocalMin
	if seekMaximum {
		kind = PointLocalMax
	}
	out := make([]EvaluatedPoint, 0, len(anchors)-1)
	for i := 0; i+1 < len(anchors); i++ {
		lo, hi := anchors[i], anchors[i+1]
		var x, y float64
		var err error
		if seekMaximum {
			x, y, err = numeric.Maximize(f, lo, hi, tol, maxIter)
		} else {
			x, y, err = numeric.Minimize(f, lo, hi, tol, maxIter)
		}
		if err != nil {
			return nil, &OptimizationFailureError{Lo: lo, Hi: hi, Err: err}
		}
		out = append(out, EvaluatedPoint{X: x, Y: y, Kind: kind})
	}
	return out, nil
}

// Relevant classifies the interior extrema: a maximum is relevant iff it is
// strictly greater than f at both neighboring anchors, a minimum iff it is
// strictly less. fAtAnchors[i] and fAtAnchors[i+1] are the neighbors of
// extrema[i]. Irrelevant extrema are numerical artifacts of monotone
// stretches and must not enter the root-search anchor set.
func Relevant(fAtAnchors []float64, extrema []EvaluatedPoint, seekMaximum bool) []bool {
	out := make([]bool, len(extrema))
	for i, ext := range extrema {
		left, right := fAtAnchors[i], fAtAnchors[i+1]
		if seekMaximum {
			out[i] = ext.Y > left && ext.Y > right
		} else {
			out[i] = ext.Y < left && ext.Y < right
		}
	}
	return out
}
