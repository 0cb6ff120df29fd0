// Package ui serves the JSON API over gin: p-value evaluation,
// confidence-set computation, stored analyses and their reports and
// plot data.
package ui

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"confmeta/app"
	"confmeta/internal/config"
)

// Server represents the analysis API server
type Server struct {
	router   *gin.Engine
	analyses *app.AnalysisService
	cfg      *config.Config
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, analyses *app.AnalysisService) *Server {
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	s := &Server{
		router:   gin.Default(),
		analyses: analyses,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/pvalue", s.handlePValue)
		v1.POST("/confidence-set", s.handleConfidenceSet)
		v1.POST("/analyses", s.handleCreateAnalysis)
		v1.GET("/analyses", s.handleListAnalyses)
		v1.GET("/analyses/:id", s.handleGetAnalysis)
		v1.GET("/analyses/:id/report", s.handleAnalysisReport)
		v1.GET("/analyses/:id/plot", s.handleAnalysisPlot)
	}
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.cfg.Server.Port)
	log.Printf("[Server] Listening on %s", addr)
	return s.router.Run(addr)
}
