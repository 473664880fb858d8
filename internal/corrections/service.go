package corrections

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/repository"
)

const (
	maxValueLength = 256
	maxNotesLength = 2000
)

// Service records human corrections and serves the reporting queries over
// them. Records are append-only; nothing here ever mutates a stored row.
type Service struct {
	store  repository.CorrectionStore
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store repository.CorrectionStore, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record validates and appends one correction. ID and CreatedAt are filled
// in when the caller left them zero.
func (s *Service) Record(ctx context.Context, c *entity.Correction) error {
	v := common.NewValidator().
		Field("user_id", c.UserID, common.NonNilUUID).
		Field("fields_corrected", c.FieldsCorrected, common.NonEmptySlice).
		Field("corrected_merchant", c.CorrectedMerchant, common.MaxLength(maxValueLength)).
		Field("corrected_location", c.CorrectedLocation, common.MaxLength(maxValueLength)).
		Field("notes", c.Notes, common.MaxLength(maxNotesLength))
	if err := v.Err(); err != nil {
		return err
	}
	for _, f := range c.FieldsCorrected {
		if !constants.IsField(f) {
			return common.InvalidArgumentError(fmt.Sprintf("unknown field %q", f))
		}
		if _, ok := c.CorrectedValue(f); !ok {
			return common.InvalidArgumentError(fmt.Sprintf("field %q listed as corrected but carries no value", f))
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	if c.Environment == "" {
		c.Environment = constants.EnvProduction
	}

	if err := s.store.Append(ctx, c); err != nil {
		return common.WrapError(err, "record correction")
	}
	s.logger.Info("correction recorded",
		"correction_id", c.ID,
		"user_id", c.UserID,
		"fields", c.FieldsCorrected,
		"ocr_confidence", c.OCRConfidence,
		"request_id", common.RequestIDFromContext(ctx))
	return nil
}

// Stats returns aggregate correction statistics for the reporting surface.
func (s *Service) Stats(ctx context.Context) (*entity.CorrectionStats, error) {
	return s.store.Stats(ctx)
}

// ListWindow returns corrections from the trailing window of the given
// number of days, oldest first.
func (s *Service) ListWindow(ctx context.Context, days int) ([]*entity.Correction, error) {
	since := s.now().UTC().AddDate(0, 0, -days)
	return s.store.ListSince(ctx, since)
}
