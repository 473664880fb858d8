package templates

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/repository"
)

func strPtr(s string) *string { return &s }

func testManager(t *testing.T, store *repository.MemoryCorrections) (*Manager, *repository.MemoryTemplates, *repository.MemoryJobs) {
	t.Helper()
	templates := repository.NewMemoryTemplates()
	jobs := repository.NewMemoryJobs()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := common.RetrainingConfig{WindowDays: 30, ValidationDays: 7}
	m, err := NewManager(templates, jobs, store, cfg, logger)
	require.NoError(t, err)
	return m, templates, jobs
}

func seedMerchantCorrections(t *testing.T, store *repository.MemoryCorrections, n int, original, corrected string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(ctx, &entity.Correction{
			ID:            uuid.New(),
			UserID:        uuid.New(),
			OCRConfidence: 0.5,
			OriginalInference: entity.Inference{
				Merchant: entity.FieldInference{Value: strPtr(original), Confidence: 0.5},
			},
			CorrectedMerchant: strPtr(corrected),
			FieldsCorrected:   []string{constants.FieldMerchant},
			CreatedAt:         time.Now().Add(-time.Hour),
		}))
	}
}

func TestNewManagerDefaultsNilLogger(t *testing.T) {
	store := repository.NewMemoryCorrections()
	seedMerchantCorrections(t, store, 2, "WAL*MART", "Walmart")
	cfg := common.RetrainingConfig{WindowDays: 30, ValidationDays: 7}
	m, err := NewManager(repository.NewMemoryTemplates(), repository.NewMemoryJobs(), store, cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()

	job, err := m.StartJob(ctx, 30)
	require.NoError(t, err)
	m.Wait()

	done, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, done.Status)
}

func TestStartJobRunsToCompletion(t *testing.T) {
	store := repository.NewMemoryCorrections()
	seedMerchantCorrections(t, store, 2, "WAL*MART", "Walmart")
	m, templates, _ := testManager(t, store)
	ctx := context.Background()

	job, err := m.StartJob(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, job.Status)
	m.Wait()

	done, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, done.Status)
	require.NotNil(t, done.NewTemplateVersion)
	assert.Equal(t, "1.0.0", *done.NewTemplateVersion)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.Metrics)

	stored, err := templates.Get(ctx, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.BasedOnCorrectionCount)
	assert.False(t, stored.Deployed, "new versions are never auto-deployed")
	assert.Equal(t, "Walmart", stored.Document.MerchantFixes["WAL*MART"])
}

func TestJobVersionsPatchBump(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, _, _ := testManager(t, store)
	ctx := context.Background()

	for _, want := range []string{"1.0.0", "1.0.1", "1.0.2"} {
		job, err := m.StartJob(ctx, 30)
		require.NoError(t, err)
		m.Wait()
		done, err := m.Job(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, done.NewTemplateVersion)
		assert.Equal(t, want, *done.NewTemplateVersion)
	}
}

func TestJobFailureIsRecorded(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, _, _ := testManager(t, store)
	m.corrections = failingSource{}
	ctx := context.Background()

	job, err := m.StartJob(ctx, 30)
	require.NoError(t, err)
	m.Wait()

	done, err := m.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, done.Status)
	require.NotNil(t, done.Error)
	assert.Contains(t, *done.Error, "load corrections")
	assert.NotNil(t, done.CompletedAt)
}

type failingSource struct{}

func (failingSource) ListSince(context.Context, time.Time) ([]*entity.Correction, error) {
	return nil, assert.AnError
}

func TestValidationMetricsWithoutRecentCorrections(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, _, _ := testManager(t, store)

	metrics, err := m.validationMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(100), metrics.OverallAccuracy)
	assert.Equal(t, 0, metrics.ValidationSamples)
	assert.NotEmpty(t, metrics.Note)
}

func TestValidationMetricsInverseCorrectionRate(t *testing.T) {
	store := repository.NewMemoryCorrections()
	seedMerchantCorrections(t, store, 4, "A", "B")
	m, _, _ := testManager(t, store)

	metrics, err := m.validationMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, metrics.ValidationSamples)
	assert.InDelta(t, 0.0, metrics.MerchantAccuracy, 1e-9, "every sample corrected the merchant")
	assert.InDelta(t, 100.0, metrics.AmountAccuracy, 1e-9)
	assert.InDelta(t, (0.0+100+100)/3, metrics.OverallAccuracy, 1e-9)
}

func seedVersion(t *testing.T, templates *repository.MemoryTemplates, version string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, templates.Insert(context.Background(), &entity.TemplateVersion{
		Version:   version,
		CreatedAt: createdAt,
	}))
}

func TestDeployExclusiveAndIdempotent(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, templates, _ := testManager(t, store)
	ctx := context.Background()
	now := time.Now()
	seedVersion(t, templates, "1.0.0", now.Add(-3*time.Hour))
	seedVersion(t, templates, "1.0.1", now.Add(-2*time.Hour))
	seedVersion(t, templates, "1.0.2", now.Add(-1*time.Hour))

	require.NoError(t, m.Deploy(ctx, "1.0.1"))
	require.NoError(t, m.Deploy(ctx, "1.0.2"))
	require.NoError(t, m.Deploy(ctx, "1.0.2"), "redeploying the same version is a no-op")

	versions, err := m.Versions(ctx)
	require.NoError(t, err)
	deployed := 0
	for _, v := range versions {
		if v.Deployed {
			deployed++
			assert.Equal(t, "1.0.2", v.Version)
		}
	}
	assert.Equal(t, 1, deployed)
}

func TestDeployUnknownVersion(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, _, _ := testManager(t, store)

	err := m.Deploy(context.Background(), "9.9.9")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRollbackNeedsTwoVersions(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, templates, _ := testManager(t, store)
	ctx := context.Background()

	_, err := m.Rollback(ctx)
	assert.ErrorIs(t, err, ErrNoPreviousVersion)

	seedVersion(t, templates, "1.0.0", time.Now())
	_, err = m.Rollback(ctx)
	assert.ErrorIs(t, err, ErrNoPreviousVersion)
}

func TestRollbackDeploysSecondMostRecent(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, templates, _ := testManager(t, store)
	ctx := context.Background()
	now := time.Now()
	seedVersion(t, templates, "1.0.0", now.Add(-2*time.Hour))
	seedVersion(t, templates, "1.0.1", now.Add(-1*time.Hour))
	seedVersion(t, templates, "1.0.2", now)
	require.NoError(t, m.Deploy(ctx, "1.0.2"))

	prev, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", prev.Version)

	current, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "1.0.1", current.Version)
}

func TestActiveDocumentEmptyWhenNothingDeployed(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, templates, _ := testManager(t, store)
	ctx := context.Background()

	doc, err := m.ActiveDocument(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.MerchantFixes)

	require.NoError(t, templates.Insert(ctx, &entity.TemplateVersion{
		Version:   "1.0.0",
		CreatedAt: time.Now(),
		Document: entity.TemplateDocument{
			MerchantFixes: map[string]string{"WAL*MART": "Walmart"},
		},
	}))
	require.NoError(t, m.Deploy(ctx, "1.0.0"))

	doc, err = m.ActiveDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Walmart", doc.MerchantFixes["WAL*MART"])
}

func TestBuildDocumentCategoryKeywords(t *testing.T) {
	store := repository.NewMemoryCorrections()
	m, _, _ := testManager(t, store)

	var corrs []*entity.Correction
	for i := 0; i < 3; i++ {
		corrs = append(corrs, &entity.Correction{
			ID:                uuid.New(),
			UserID:            uuid.New(),
			OCRText:           "Izakaya Sushi Dinner Party",
			CorrectedCategory: strPtr("Meals"),
			FieldsCorrected:   []string{constants.FieldCategory},
			CreatedAt:         time.Now(),
		})
	}

	doc := m.buildDocument(corrs)
	assert.Contains(t, doc.CategoryKeywords["Meals"], "izakaya")
	assert.Contains(t, doc.CategoryKeywords["Meals"], "sushi")
}

func TestDocumentValidatorRejectsBadThreshold(t *testing.T) {
	v, err := NewDocumentValidator()
	require.NoError(t, err)

	require.NoError(t, v.Validate(entity.TemplateDocument{
		ConfidenceThresholds: map[string]float64{"merchant": 0.8},
	}))
	assert.Error(t, v.Validate(entity.TemplateDocument{
		ConfidenceThresholds: map[string]float64{"merchant": 1.5},
	}))
}
