package ocr

import (
	"context"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// Engine converts preprocessed image bytes to text plus a confidence in
// [0,1]. Any implementation satisfying this contract is valid; the rest of
// the pipeline treats recognition as a swappable capability.
type Engine interface {
	// Name identifies the engine for provenance on correction rows.
	Name() string
	Recognize(ctx context.Context, img []byte) (entity.OCRResult, error)
}
