package ports

import (
	"context"

	"confmeta/domain/core"
	"confmeta/models"
)

// AnalysisRepository persists completed analysis runs.
type AnalysisRepository interface {
	Create(ctx context.Context, rec *models.AnalysisRecord) error
	GetByID(ctx context.Context, id core.AnalysisID) (*models.AnalysisRecord, error)
	List(ctx context.Context, limit, offset int) ([]*models.AnalysisRecord, error)
}
