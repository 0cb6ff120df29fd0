package ui

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"confmeta/adapters/plot"
	"confmeta/adapters/report"
	"confmeta/app"
	"confmeta/domain/confset"
	"confmeta/domain/core"
	"confmeta/domain/hmean"
	"confmeta/domain/study"
	apperrors "confmeta/internal/errors"
	"confmeta/models"
)

type pvalueRequest struct {
	Studies study.StudySet `json:"studies"`
	Mu      []float64      `json:"mu" binding:"required"`
	Options hmean.Options  `json:"options"`
}

// handlePValue evaluates the harmonic-mean p-value function at the
// requested mu values.
func (s *Server) handlePValue(c *gin.Context) {
	var req pvalueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pvals, err := hmean.PValue(req.Studies, req.Mu, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}

	// Directional alternatives return NaN outside the one-sided region;
	// those become JSON nulls.
	out := make([]*float64, len(pvals))
	for i, p := range pvals {
		out[i] = floatOrNull(p)
	}
	c.JSON(http.StatusOK, gin.H{"mu": req.Mu, "p_value": out})
}

type confidenceSetRequest struct {
	Studies study.StudySet `json:"studies"`
	Level   float64        `json:"level"`
	Options hmean.Options  `json:"options"`
}

// handleConfidenceSet computes a confidence set without persisting it.
func (s *Server) handleConfidenceSet(c *gin.Context) {
	var req confidenceSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Level == 0 {
		req.Level = s.cfg.Analysis.DefaultLevel
	}

	res, err := confset.Build(req.Studies, req.Level, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResultDTO(res))
}

// handleCreateAnalysis runs a full analysis and stores the record.
func (s *Server) handleCreateAnalysis(c *gin.Context) {
	var req app.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := s.analyses.Run(c.Request.Context(), req)
	if err != nil {
		log.Printf("[handleCreateAnalysis] Analysis failed: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAnalysisDTO(rec))
}

// handleListAnalyses returns stored analyses, newest first.
func (s *Server) handleListAnalyses(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	recs, err := s.analyses.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]*analysisDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toAnalysisDTO(rec))
	}
	c.JSON(http.StatusOK, gin.H{"analyses": out})
}

// handleGetAnalysis returns one stored analysis by ID.
func (s *Server) handleGetAnalysis(c *gin.Context) {
	rec, ok := s.lookupAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toAnalysisDTO(rec))
}

// handleAnalysisReport renders the stored analysis as Markdown or HTML.
func (s *Server) handleAnalysisReport(c *gin.Context) {
	rec, ok := s.lookupAnalysis(c)
	if !ok {
		return
	}
	switch c.DefaultQuery("format", "markdown") {
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(report.HTML(rec)))
	default:
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(rec)))
	}
}

// handleAnalysisPlot returns the p-value curve and forest-plot data for a
// stored analysis.
func (s *Server) handleAnalysisPlot(c *gin.Context) {
	rec, ok := s.lookupAnalysis(c)
	if !ok {
		return
	}
	points := queryInt(c, "points", plot.DefaultGridPoints)

	curve, err := plot.Curve(rec.Studies, rec.Options, rec.Level, points)
	if err != nil {
		respondError(c, err)
		return
	}
	curve = curve.WithShading(rec.Result)
	pv := make([]*float64, len(curve.PValue))
	for i, p := range curve.PValue {
		pv[i] = floatOrNull(p)
	}

	c.JSON(http.StatusOK, gin.H{
		"curve": gin.H{
			"mu":      curve.Mu,
			"p_value": pv,
			"alpha":   curve.Alpha,
			"shading": curve.Shading,
		},
		"forest": plot.Forest(rec.Studies, rec.Result, rec.Classic),
	})
}

func (s *Server) lookupAnalysis(c *gin.Context) (rec *models.AnalysisRecord, ok bool) {
	id, err := core.ParseAnalysisID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	rec, err = s.analyses.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return rec, true
}

// respondError maps domain errors onto HTTP statuses. Typed domain errors
// are checked first (a coded wrapper preserves them through Unwrap), then
// the AppError code decides.
func respondError(c *gin.Context, err error) {
	var invalid *study.InvalidInputError
	var boundary *confset.BoundaryNotFoundError
	var optim *confset.OptimizationFailureError
	var appErr *apperrors.AppError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &boundary), errors.As(err, &optim):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &appErr):
		switch appErr.Code {
		case apperrors.CodeNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case apperrors.CodeUnavailable:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case apperrors.CodeComputation:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
