package ui

import (
	"math"

	"confmeta/domain/classic"
	"confmeta/domain/confset"
	"confmeta/domain/core"
	"confmeta/domain/hmean"
	"confmeta/domain/study"
	"confmeta/models"
)

// The JSON encoder rejects NaN, and several result fields are NaN by
// contract (gamma means without gammas, directional p-values outside the
// one-sided region). The DTOs map every such field to a nullable pointer.

// floatOrNull maps NaN to a JSON null.
func floatOrNull(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type curvePointDTO struct {
	X      float64  `json:"x"`
	PValue *float64 `json:"p_value"`
}

type evaluatedPointDTO struct {
	X    float64           `json:"x"`
	Y    *float64          `json:"y"`
	Kind confset.PointKind `json:"kind"`
}

type resultDTO struct {
	Level               float64             `json:"level"`
	Empty               bool                `json:"empty"`
	Intervals           []confset.Interval  `json:"intervals"`
	Gamma               []curvePointDTO     `json:"gamma,omitempty"`
	GammaMean           *float64            `json:"gamma_mean"`
	GammaHMean          *float64            `json:"gamma_hmean"`
	GammaHMeanUndefined bool                `json:"gamma_hmean_undefined,omitempty"`
	ForestPlotPoint     curvePointDTO       `json:"forest_plot_point"`
	Points              []evaluatedPointDTO `json:"points,omitempty"`
}

func toResultDTO(res *confset.Result) *resultDTO {
	if res == nil {
		return nil
	}
	dto := &resultDTO{
		Level:               res.Level,
		Empty:               res.Empty(),
		Intervals:           res.Intervals,
		GammaMean:           floatOrNull(res.GammaMean),
		GammaHMean:          floatOrNull(res.GammaHMean),
		GammaHMeanUndefined: res.GammaHMeanUndefined,
		ForestPlotPoint:     toCurvePointDTO(res.ForestPlotPoint),
	}
	if dto.Intervals == nil {
		dto.Intervals = []confset.Interval{}
	}
	for _, g := range res.Gamma {
		dto.Gamma = append(dto.Gamma, toCurvePointDTO(g))
	}
	for _, p := range res.Points {
		dto.Points = append(dto.Points, evaluatedPointDTO{X: p.X, Y: floatOrNull(p.Y), Kind: p.Kind})
	}
	return dto
}

func toCurvePointDTO(p confset.CurvePoint) curvePointDTO {
	return curvePointDTO{X: p.X, PValue: floatOrNull(p.PValue)}
}

type analysisDTO struct {
	ID        string           `json:"id"`
	Label     string           `json:"label,omitempty"`
	Studies   study.StudySet   `json:"studies"`
	Level     float64          `json:"level"`
	Options   hmean.Options    `json:"options"`
	Result    *resultDTO       `json:"result"`
	Classic   *classic.Summary `json:"classic,omitempty"`
	CreatedAt core.Timestamp   `json:"created_at"`
}

func toAnalysisDTO(rec *models.AnalysisRecord) *analysisDTO {
	return &analysisDTO{
		ID:        rec.ID.String(),
		Label:     rec.Label,
		Studies:   rec.Studies,
		Level:     rec.Level,
		Options:   rec.Options,
		Result:    toResultDTO(rec.Result),
		Classic:   rec.Classic,
		CreatedAt: rec.CreatedAt,
	}
}
