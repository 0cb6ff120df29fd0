// Package postgres persists analysis runs. Records are stored as a JSON
// payload next to a few indexed columns; the domain structs are the schema.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"confmeta/domain/core"
	apperrors "confmeta/internal/errors"
	"confmeta/models"
	"confmeta/ports"
)

// Schema is the DDL for the analyses table.
const Schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	level      DOUBLE PRECISION NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// analysisRepository implements ports.AnalysisRepository
type analysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *sqlx.DB) ports.AnalysisRepository {
	return &analysisRepository{db: db}
}

// Migrate creates the analyses table if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate analyses table: %w", err)
	}
	return nil
}

// Create inserts a new analysis record
func (r *analysisRepository) Create(ctx context.Context, rec *models.AnalysisRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis payload: %w", err)
	}

	query := `INSERT INTO analyses (id, label, level, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.Label, rec.Level, payload, rec.CreatedAt.Time(),
	)
	if err != nil {
		return apperrors.DatabaseError("failed to create analysis", err)
	}
	return nil
}

// GetByID retrieves an analysis record by its ID
func (r *analysisRepository) GetByID(ctx context.Context, id core.AnalysisID) (*models.AnalysisRecord, error) {
	query := `SELECT payload FROM analyses WHERE id = $1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound(fmt.Sprintf("analysis %s", id))
		}
		return nil, apperrors.DatabaseError("failed to get analysis", err)
	}

	var rec models.AnalysisRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis payload: %w", err)
	}
	return &rec, nil
}

// List retrieves analysis records ordered by creation time, newest first
func (r *analysisRepository) List(ctx context.Context, limit, offset int) ([]*models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT payload FROM analyses ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list analyses", err)
	}
	defer rows.Close()

	var out []*models.AnalysisRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		var rec models.AnalysisRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis payload: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
