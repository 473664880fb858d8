package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/corrections"
	"github.com/expenseflow/expense-ocr/internal/duplicate"
	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/extract"
	"github.com/expenseflow/expense-ocr/internal/ocr"
	"github.com/expenseflow/expense-ocr/internal/pipeline"
	"github.com/expenseflow/expense-ocr/internal/preprocess"
	"github.com/expenseflow/expense-ocr/internal/repository"
	"github.com/expenseflow/expense-ocr/internal/templates"
)

type fixedEngine struct{ text string }

func (fixedEngine) Name() string { return "fixed" }

func (e fixedEngine) Recognize(context.Context, []byte) (entity.OCRResult, error) {
	return entity.OCRResult{Text: e.text, Confidence: 0.9}, nil
}

type testEnv struct {
	server    *Server
	templates *repository.MemoryTemplates
	expenses  *repository.MemoryExpenses
	manager   *templates.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	correctionStore := repository.NewMemoryCorrections()
	templateStore := repository.NewMemoryTemplates()
	jobStore := repository.NewMemoryJobs()
	expenseStore := repository.NewMemoryExpenses()

	retrainCfg := common.RetrainingConfig{WindowDays: 30, ValidationDays: 7}
	manager, err := templates.NewManager(templateStore, jobStore, correctionStore, retrainCfg, logger)
	require.NoError(t, err)

	engine := fixedEngine{text: "Walmart Supercenter\nTOTAL: $42.50\n03/15/2024"}
	processor := pipeline.NewProcessor(
		preprocess.New(logger),
		ocr.NewBoundary(engine, logger),
		extract.New(manager, logger),
		logger,
	)
	detector := duplicate.New(expenseStore, common.DuplicateConfig{
		WindowDays: 30, MerchantThreshold: 75, AmountThreshold: 75, MaxDateDiffDays: 1,
	}, logger)
	correctionSvc := corrections.NewService(correctionStore, logger)

	return &testEnv{
		server:    New(processor, detector, correctionSvc, manager, retrainCfg, logger),
		templates: templateStore,
		expenses:  expenseStore,
		manager:   manager,
	}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.server.echo.ServeHTTP(rec, req)
	return rec
}

func TestScanEndpoint(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts/scan",
		strings.NewReader("raw-image-bytes"))
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got pipeline.ScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Fields.Merchant.Value)
	assert.Equal(t, "Walmart Supercenter", *got.Fields.Merchant.Value)
	require.NotNil(t, got.Fields.Amount.Value)
	assert.InDelta(t, 42.50, *got.Fields.Amount.Value, 1e-9)
}

func TestDuplicateCheckEndpoint(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.expenses.Add(&entity.Expense{
		ID:       uuid.New(),
		UserID:   userID,
		Merchant: "Starbucks Coffee",
		Amount:   4.50,
		Date:     time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
	})

	body := `{"user_id":"` + userID.String() + `","merchant":"Starbucks","amount":4.5,"date":"2024-03-15"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/expenses/duplicate-check",
		strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSON)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Duplicates []entity.DuplicateCandidate `json:"duplicates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Duplicates, 1)
	assert.Equal(t, "Starbucks Coffee", got.Duplicates[0].Merchant)
}

func TestDuplicateCheckRejectsIncompleteRequest(t *testing.T) {
	env := newTestEnv(t)

	body := `{"amount":4.5,"date":"2024-03-15"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/expenses/duplicate-check",
		strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSON)
	rec := env.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id is required")
	assert.Contains(t, rec.Body.String(), "merchant is required")
}

const (
	echoContentType = "Content-Type"
	echoJSON        = "application/json"
)

func TestCorrectionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	body := `{
		"user_id": "` + uuid.NewString() + `",
		"corrected_merchant": "Walmart",
		"fields_corrected": ["merchant"]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections", strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSON)
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)

	statsReq := httptest.NewRequest(http.MethodGet, "/api/v1/corrections/stats", nil)
	statsRec := env.do(statsReq)
	require.Equal(t, http.StatusOK, statsRec.Code)
	var stats entity.CorrectionStats
	require.NoError(t, json.Unmarshal(statsRec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalCorrections)
	assert.Equal(t, 1, stats.ByField[constants.FieldMerchant])
}

func TestCorrectionValidationError(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections",
		strings.NewReader(`{"fields_corrected":[]}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeployUnknownVersionReturns404(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates/9.9.9/deploy", nil)
	rec := env.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRollbackWithoutHistoryConflicts(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates/rollback", nil)
	rec := env.do(req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no previous version available")
}

func TestRetrainingJobLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/retraining/jobs",
		strings.NewReader(`{"since_days":30}`))
	req.Header.Set(echoContentType, echoJSON)
	rec := env.do(req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job entity.RetrainingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	env.manager.Wait()

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/retraining/jobs/"+job.ID.String(), nil)
	getRec := env.do(getReq)
	require.Equal(t, http.StatusOK, getRec.Code)
	var done entity.RetrainingJob
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &done))
	assert.Equal(t, constants.JobStatusCompleted, done.Status)
	require.NotNil(t, done.NewTemplateVersion)
	assert.Equal(t, "1.0.0", *done.NewTemplateVersion)
}
