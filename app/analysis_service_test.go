package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confmeta/domain/core"
	"confmeta/domain/hmean"
	"confmeta/domain/study"
	apperrors "confmeta/internal/errors"
	"confmeta/models"
)

// memoryRepository is an in-memory ports.AnalysisRepository for tests.
type memoryRepository struct {
	mu   sync.Mutex
	recs []*models.AnalysisRecord
}

func (r *memoryRepository) Create(_ context.Context, rec *models.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id core.AnalysisID) (*models.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, apperrors.NotFound(fmt.Sprintf("analysis %s", id))
}

func (r *memoryRepository) List(_ context.Context, limit, offset int) ([]*models.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset >= len(r.recs) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(r.recs) {
		end = len(r.recs)
	}
	return r.recs[offset:end], nil
}

func newRequest(t *testing.T) AnalysisRequest {
	t.Helper()
	set, err := study.NewStudySet([]float64{0.1, 0.3}, []float64{0.15, 0.15})
	require.NoError(t, err)
	return AnalysisRequest{Label: "trial pool", Studies: set}
}

func TestRun_DefaultsAndPersists(t *testing.T) {
	repo := &memoryRepository{}
	svc := NewAnalysisService(repo)

	rec, err := svc.Run(context.Background(), newRequest(t))
	require.NoError(t, err)

	assert.Equal(t, 0.95, rec.Level)
	assert.False(t, rec.ID.String() == "")
	require.NotNil(t, rec.Result)
	assert.False(t, rec.Result.Empty())
	require.NotNil(t, rec.Classic)
	assert.False(t, rec.CreatedAt.IsZero())

	stored, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)
}

func TestRun_NoRepository(t *testing.T) {
	svc := NewAnalysisService(nil)

	rec, err := svc.Run(context.Background(), newRequest(t))
	require.NoError(t, err)
	assert.NotNil(t, rec.Result)

	_, err = svc.Get(context.Background(), rec.ID)
	assert.ErrorContains(t, err, "not configured")
}

func TestRun_InvalidStudies(t *testing.T) {
	svc := NewAnalysisService(nil)

	req := newRequest(t)
	req.Studies.StandardErrors[0] = -1

	_, err := svc.Run(context.Background(), req)
	var invalid *study.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestRun_ClassicFailureDoesNotSinkRun(t *testing.T) {
	svc := NewAnalysisService(nil)

	req := newRequest(t)
	req.Level = 0.9

	rec, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.9, rec.Level)
}

// A directional run leaves NaN in the record (undefined interior points,
// undefined gamma summaries); the record must still encode to JSON, since
// the postgres adapter and the CLI both serialize it whole.
func TestRun_DirectionalRecordMarshals(t *testing.T) {
	repo := &memoryRepository{}
	svc := NewAnalysisService(repo)

	req := newRequest(t)
	req.Options.Alternative = hmean.AlternativeGreater

	rec, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, rec.Result)
	assert.False(t, rec.Result.Empty())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "NaN")
}

func TestRunBatch(t *testing.T) {
	repo := &memoryRepository{}
	svc := NewAnalysisService(repo)

	reqs := make([]AnalysisRequest, 6)
	for i := range reqs {
		reqs[i] = newRequest(t)
		reqs[i].Label = fmt.Sprintf("batch %d", i)
	}

	recs, err := svc.RunBatch(context.Background(), reqs, 3)
	require.NoError(t, err)
	require.Len(t, recs, 6)
	for i, rec := range recs {
		assert.Equal(t, fmt.Sprintf("batch %d", i), rec.Label)
		assert.NotNil(t, rec.Result)
	}

	stored, err := svc.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 6)
}

func TestRunBatch_FirstFailureWins(t *testing.T) {
	svc := NewAnalysisService(nil)

	reqs := []AnalysisRequest{newRequest(t), {}}
	_, err := svc.RunBatch(context.Background(), reqs, 2)
	assert.Error(t, err)
}
