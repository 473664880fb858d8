package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/corrections"
	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/repository"
)

// ErrNoPreviousVersion is returned by Rollback when fewer than two
// versions exist.
var ErrNoPreviousVersion = errors.New("no previous version available")

const (
	firstVersion       = "1.0.0"
	maxMerchantFixes   = 100
	maxExamples        = 10
	maxKeywordsPerCat  = 10
	minKeywordRecurs   = 2
	minKeywordLength   = 4
)

// CorrectionSource is the slice of the correction store the manager reads.
type CorrectionSource interface {
	ListSince(ctx context.Context, since time.Time) ([]*entity.Correction, error)
}

// Manager owns the template version lifecycle: it turns mined correction
// patterns into new versioned templates, validates them, and handles
// deploy and rollback. Retraining runs asynchronously; StartJob returns
// before the job's pipeline completes.
type Manager struct {
	templates   repository.TemplateStore
	jobs        repository.JobStore
	corrections CorrectionSource
	miner       *corrections.Miner
	validator   *DocumentValidator
	cfg         common.RetrainingConfig
	logger      *slog.Logger
	now         func() time.Time

	wg sync.WaitGroup
}

type Option func(*Manager)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(
	templates repository.TemplateStore,
	jobs repository.JobStore,
	source CorrectionSource,
	cfg common.RetrainingConfig,
	logger *slog.Logger,
	opts ...Option,
) (*Manager, error) {
	validator, err := NewDocumentValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		templates:   templates,
		jobs:        jobs,
		corrections: source,
		miner:       corrections.NewMiner(),
		validator:   validator,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// StartJob creates a retraining job over the trailing sinceDays of
// corrections and starts it in the background. The returned job is in
// the pending state; poll Job for progress.
func (m *Manager) StartJob(ctx context.Context, sinceDays int) (*entity.RetrainingJob, error) {
	if sinceDays <= 0 {
		sinceDays = m.cfg.WindowDays
	}
	now := m.now().UTC()
	job := &entity.RetrainingJob{
		ID:               uuid.New(),
		Status:           constants.JobStatusPending,
		CorrectionsSince: now.AddDate(0, 0, -sinceDays),
		CreatedAt:        now,
	}
	if err := m.jobs.Insert(ctx, job); err != nil {
		return nil, common.WrapError(err, "create retraining job")
	}
	m.logger.Info("retraining job created", "job_id", job.ID, "since_days", sinceDays)

	m.wg.Add(1)
	go func(ctx context.Context, job entity.RetrainingJob) {
		defer m.wg.Done()
		m.run(ctx, &job)
	}(context.WithoutCancel(ctx), *job)

	out := *job
	return &out, nil
}

// Wait blocks until every in-flight retraining job has finished. For
// shutdown and tests.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, job *entity.RetrainingJob) {
	started := m.now().UTC()
	job.Status = constants.JobStatusRunning
	job.StartedAt = &started
	if err := m.jobs.Update(ctx, job); err != nil {
		m.logger.Error("retraining job update failed", "job_id", job.ID, "error", err)
	}

	corrs, err := m.corrections.ListSince(ctx, job.CorrectionsSince)
	if err != nil {
		m.fail(ctx, job, common.WrapError(err, "load corrections"))
		return
	}

	doc := m.buildDocument(corrs)
	if err := m.validator.Validate(doc); err != nil {
		m.fail(ctx, job, common.WrapError(err, "validate template document"))
		return
	}

	version, err := m.nextVersion(ctx)
	if err != nil {
		m.fail(ctx, job, err)
		return
	}

	metrics, err := m.validationMetrics(ctx)
	if err != nil {
		m.fail(ctx, job, err)
		return
	}

	tv := &entity.TemplateVersion{
		Version:                version,
		CreatedAt:              m.now().UTC(),
		BasedOnCorrectionCount: len(corrs),
		Metrics:                metrics,
		Deployed:               false,
		Notes:                  fmt.Sprintf("mined from %d corrections since %s", len(corrs), job.CorrectionsSince.Format("2006-01-02")),
		Document:               doc,
	}
	if err := m.templates.Insert(ctx, tv); err != nil {
		m.fail(ctx, job, common.WrapError(err, "store template version"))
		return
	}

	completed := m.now().UTC()
	job.Status = constants.JobStatusCompleted
	job.CompletedAt = &completed
	job.NewTemplateVersion = &version
	job.Metrics = metrics
	if err := m.jobs.Update(ctx, job); err != nil {
		m.logger.Error("retraining job update failed", "job_id", job.ID, "error", err)
		return
	}
	m.logger.Info("retraining job completed",
		"job_id", job.ID,
		"new_version", version,
		"corrections", len(corrs))
}

func (m *Manager) fail(ctx context.Context, job *entity.RetrainingJob, cause error) {
	completed := m.now().UTC()
	msg := cause.Error()
	job.Status = constants.JobStatusFailed
	job.CompletedAt = &completed
	job.Error = &msg
	if err := m.jobs.Update(ctx, job); err != nil {
		m.logger.Error("retraining job update failed", "job_id", job.ID, "error", err)
	}
	m.logger.Error("retraining job failed", "job_id", job.ID, "error", cause)
}

// nextVersion patch-bumps the highest stored semver, or starts the line.
func (m *Manager) nextVersion(ctx context.Context) (string, error) {
	versions, err := m.templates.List(ctx)
	if err != nil {
		return "", common.WrapError(err, "list template versions")
	}
	var highest *semver.Version
	for _, v := range versions {
		parsed, err := semver.NewVersion(v.Version)
		if err != nil {
			m.logger.Warn("skipping unparseable template version", "version", v.Version)
			continue
		}
		if highest == nil || parsed.GreaterThan(highest) {
			highest = parsed
		}
	}
	if highest == nil {
		return firstVersion, nil
	}
	next := highest.IncPatch()
	return next.String(), nil
}

// buildDocument turns the correction history into the keyword and fix
// tables the extractor reads.
func (m *Manager) buildDocument(corrs []*entity.Correction) entity.TemplateDocument {
	patterns := m.miner.Patterns(corrs)

	doc := entity.TemplateDocument{
		MerchantFixes:        map[string]string{},
		CategoryKeywords:     map[string][]string{},
		ConfidenceThresholds: m.miner.ConfidenceThresholds(corrs),
	}
	for _, p := range patterns {
		if p.Field != constants.FieldMerchant || p.OriginalValue == "" {
			continue
		}
		if len(doc.MerchantFixes) >= maxMerchantFixes {
			break
		}
		doc.MerchantFixes[p.OriginalValue] = p.CorrectedValue
		if len(doc.MerchantExamples) < maxExamples {
			doc.MerchantExamples = append(doc.MerchantExamples,
				fmt.Sprintf("%q should be recognized as %q", p.OriginalValue, p.CorrectedValue))
		}
	}

	// Category keywords come from the OCR text of category corrections:
	// words that recur across corrections into the same bucket.
	counts := map[string]map[string]int{}
	for _, c := range corrs {
		corrected, ok := c.CorrectedValue(constants.FieldCategory)
		if !ok {
			continue
		}
		cat, ok := constants.Canonicalize(corrected)
		if !ok {
			continue
		}
		category := string(cat)
		if counts[category] == nil {
			counts[category] = map[string]int{}
		}
		for _, kw := range extractKeywords(c.OCRText) {
			counts[category][kw]++
		}
	}
	for category, words := range counts {
		type kwCount struct {
			word string
			n    int
		}
		var recurring []kwCount
		for w, n := range words {
			if n >= minKeywordRecurs {
				recurring = append(recurring, kwCount{w, n})
			}
		}
		sort.Slice(recurring, func(i, j int) bool {
			if recurring[i].n != recurring[j].n {
				return recurring[i].n > recurring[j].n
			}
			return recurring[i].word < recurring[j].word
		})
		if len(recurring) > maxKeywordsPerCat {
			recurring = recurring[:maxKeywordsPerCat]
		}
		for _, kc := range recurring {
			doc.CategoryKeywords[category] = append(doc.CategoryKeywords[category], kc.word)
		}
	}
	return doc
}

var reNonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

func extractKeywords(text string) []string {
	if text == "" {
		return nil
	}
	cleaned := reNonAlnum.ReplaceAllString(strings.ToLower(text), " ")
	seen := map[string]struct{}{}
	var out []string
	for _, w := range strings.Fields(cleaned) {
		if len(w) < minKeywordLength {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// validationMetrics scores the template line as the inverse of the recent
// correction rate. A rough health signal, not a held-out evaluation.
func (m *Manager) validationMetrics(ctx context.Context) (*entity.ValidationMetrics, error) {
	since := m.now().UTC().AddDate(0, 0, -m.cfg.ValidationDays)
	recent, err := m.corrections.ListSince(ctx, since)
	if err != nil {
		return nil, common.WrapError(err, "load validation corrections")
	}
	total := len(recent)
	if total == 0 {
		return &entity.ValidationMetrics{
			MerchantAccuracy: 100,
			AmountAccuracy:   100,
			CategoryAccuracy: 100,
			OverallAccuracy:  100,
			Note:             "no corrections in validation period",
		}, nil
	}

	counts := map[string]int{}
	for _, c := range recent {
		for _, f := range c.FieldsCorrected {
			counts[f]++
		}
	}
	rate := func(field string) float64 {
		return 100 - float64(counts[field])/float64(total)*100
	}
	metrics := &entity.ValidationMetrics{
		MerchantAccuracy:  rate(constants.FieldMerchant),
		AmountAccuracy:    rate(constants.FieldAmount),
		CategoryAccuracy:  rate(constants.FieldCategory),
		ValidationSamples: total,
	}
	metrics.OverallAccuracy = (metrics.MerchantAccuracy + metrics.AmountAccuracy + metrics.CategoryAccuracy) / 3
	return metrics, nil
}

// Deploy marks a version as the single deployed one. Unknown versions are
// an explicit error; redeploying the current version is a no-op.
func (m *Manager) Deploy(ctx context.Context, version string) error {
	if err := m.templates.SetDeployed(ctx, version); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NewAppError("TEMPLATE_NOT_FOUND",
				fmt.Sprintf("template version %s not found", version), common.ErrNotFound)
		}
		return common.WrapError(err, "deploy template version")
	}
	m.logger.Info("template version deployed", "version", version)
	return nil
}

// Rollback deploys the second-most-recently-created version.
func (m *Manager) Rollback(ctx context.Context) (*entity.TemplateVersion, error) {
	versions, err := m.templates.List(ctx)
	if err != nil {
		return nil, common.WrapError(err, "list template versions")
	}
	if len(versions) < 2 {
		return nil, ErrNoPreviousVersion
	}
	previous := versions[1]
	if err := m.Deploy(ctx, previous.Version); err != nil {
		return nil, err
	}
	m.logger.Info("rolled back template version", "version", previous.Version)
	return previous, nil
}

// Versions lists all stored versions, newest first, deployed one marked.
func (m *Manager) Versions(ctx context.Context) ([]*entity.TemplateVersion, error) {
	return m.templates.List(ctx)
}

// CurrentVersion returns the deployed version, or nil when none is.
func (m *Manager) CurrentVersion(ctx context.Context) (*entity.TemplateVersion, error) {
	return m.templates.Deployed(ctx)
}

// Job returns one job's current state.
func (m *Manager) Job(ctx context.Context, id uuid.UUID) (*entity.RetrainingJob, error) {
	return m.jobs.Get(ctx, id)
}

// Jobs lists all jobs, newest first.
func (m *Manager) Jobs(ctx context.Context) ([]*entity.RetrainingJob, error) {
	return m.jobs.List(ctx)
}

// ActiveDocument serves the extractor: the deployed version's document,
// or an empty document when nothing is deployed yet.
func (m *Manager) ActiveDocument(ctx context.Context) (entity.TemplateDocument, error) {
	v, err := m.templates.Deployed(ctx)
	if err != nil {
		return entity.TemplateDocument{}, err
	}
	if v == nil {
		return entity.TemplateDocument{}, nil
	}
	return v.Document, nil
}
