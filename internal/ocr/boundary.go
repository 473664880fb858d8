package ocr

import (
	"context"
	"log/slog"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// Boundary wraps an Engine and absorbs its failures: recognition errors
// become an empty zero-confidence result, never an error. OCR failure is
// an expected, non-fatal outcome for the pipeline.
type Boundary struct {
	engine Engine
	logger *slog.Logger
}

func NewBoundary(engine Engine, logger *slog.Logger) *Boundary {
	if logger == nil {
		logger = slog.Default()
	}
	return &Boundary{engine: engine, logger: logger}
}

func (b *Boundary) Name() string { return b.engine.Name() }

func (b *Boundary) Recognize(ctx context.Context, img []byte) (entity.OCRResult, error) {
	res, err := b.engine.Recognize(ctx, img)
	if err != nil {
		b.logger.Warn("ocr engine failed, returning empty result",
			"engine", b.engine.Name(),
			"error", err,
		)
		return entity.OCRResult{Text: "", Confidence: 0}, nil
	}
	return res, nil
}
