package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"confmeta/domain/classic"
	"confmeta/domain/confset"
	"confmeta/domain/core"
	"confmeta/domain/hmean"
	"confmeta/domain/study"
	apperrors "confmeta/internal/errors"
	"confmeta/models"
	"confmeta/ports"
)

// DefaultLevel is the confidence level used when a request leaves it unset.
const DefaultLevel = 0.95

// AnalysisService orchestrates a full analysis run: the harmonic-mean
// confidence set, the classical comparison and persistence.
type AnalysisService struct {
	repo    ports.AnalysisRepository
	builder *confset.Builder
}

// AnalysisRequest defines the inputs of one analysis run
type AnalysisRequest struct {
	Label   string         `json:"label,omitempty"`
	Studies study.StudySet `json:"studies"`
	Level   float64        `json:"level,omitempty"`
	Options hmean.Options  `json:"options,omitempty"`
}

// NewAnalysisService creates an analysis service. The repository may be nil
// when persistence is not configured; runs are then computed but not stored.
func NewAnalysisService(repo ports.AnalysisRepository) *AnalysisService {
	return &AnalysisService{
		repo:    repo,
		builder: confset.NewBuilder(),
	}
}

// Run executes one analysis and persists the record when a repository is
// configured.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*models.AnalysisRecord, error) {
	startTime := time.Now()

	level := req.Level
	if level == 0 {
		level = DefaultLevel
	}
	if err := req.Studies.Validate(); err != nil {
		return nil, err
	}

	result, err := s.builder.Build(req.Studies, level, req.Options)
	if err != nil {
		var invalid *study.InvalidInputError
		if errors.As(err, &invalid) {
			return nil, err
		}
		return nil, apperrors.ComputationError("confidence set computation failed", err)
	}

	// The classical summary needs at least the fixed-effect pooling; it is
	// a comparison aid, so a failure there does not sink the run.
	summary, err := classic.Summarize(req.Studies, level)
	if err != nil {
		log.Printf("[AnalysisService] Classical summary unavailable: %v", err)
		summary = nil
	}

	rec := &models.AnalysisRecord{
		ID:        core.AnalysisID(core.NewID()),
		Label:     req.Label,
		Studies:   req.Studies,
		Level:     level,
		Options:   req.Options,
		Result:    result,
		Classic:   summary,
		CreatedAt: core.Now(),
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, rec); err != nil {
			return nil, apperrors.Wrap(err, "failed to store analysis")
		}
	}

	log.Printf("[AnalysisService] Analysis %s completed in %dms (%d studies, %d intervals)",
		rec.ID, time.Since(startTime).Milliseconds(), req.Studies.Size(), len(result.Intervals))
	return rec, nil
}

// Get retrieves a stored analysis by ID.
func (s *AnalysisService) Get(ctx context.Context, id core.AnalysisID) (*models.AnalysisRecord, error) {
	if s.repo == nil {
		return nil, apperrors.Unavailable("analysis storage is not configured")
	}
	return s.repo.GetByID(ctx, id)
}

// List retrieves stored analyses, newest first.
func (s *AnalysisService) List(ctx context.Context, limit, offset int) ([]*models.AnalysisRecord, error) {
	if s.repo == nil {
		return nil, apperrors.Unavailable("analysis storage is not configured")
	}
	return s.repo.List(ctx, limit, offset)
}

// RunBatch executes several analyses concurrently, up to maxParallel at a
// time. Results keep the order of the requests; the first failure cancels
// the remaining runs.
func (s *AnalysisService) RunBatch(ctx context.Context, reqs []AnalysisRequest, maxParallel int) ([]*models.AnalysisRecord, error) {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	records := make([]*models.AnalysisRecord, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, req := range reqs {
		g.Go(func() error {
			rec, err := s.Run(ctx, req)
			if err != nil {
				return fmt.Errorf("analysis %d (%s): %w", i+1, req.Label, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
