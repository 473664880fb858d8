package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/extract"
	"github.com/expenseflow/expense-ocr/internal/ocr"
	"github.com/expenseflow/expense-ocr/internal/preprocess"
)

// ScanResult is one extraction call's output: the recognized text, the
// engine's confidence, and the structured fields, ready to prefill an
// expense form or be merged into a stored record.
type ScanResult struct {
	Text       string                 `json:"text"`
	Confidence float32                `json:"confidence"`
	Fields     entity.ExtractedFields `json:"fields"`
}

// Processor chains preprocessing, recognition, and field extraction.
// Stateless across calls; concurrent scans share nothing but the deployed
// template, which is read fresh on each call.
type Processor struct {
	preprocessor *preprocess.Preprocessor
	boundary     *ocr.Boundary
	extractor    *extract.Extractor
	logger       *slog.Logger
}

func NewProcessor(pre *preprocess.Preprocessor, boundary *ocr.Boundary, ext *extract.Extractor, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{preprocessor: pre, boundary: boundary, extractor: ext, logger: logger}
}

// Scan runs one receipt image through the full pipeline. Recognition
// failures degrade to an empty text result with zeroed fields rather
// than an error; only context cancellation aborts the call.
func (p *Processor) Scan(ctx context.Context, image []byte) (*ScanResult, error) {
	start := time.Now()

	normalized := p.preprocessor.Normalize(image)
	result, err := p.boundary.Recognize(ctx, normalized)
	if err != nil {
		return nil, err
	}

	text := ocr.Normalize(result.Text)
	fields := p.extractor.Extract(ctx, text)

	p.logger.Info("receipt scanned",
		"bytes_in", len(image),
		"text_len", len(text),
		"confidence", result.Confidence,
		"merchant", fields.MerchantValue(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &ScanResult{Text: text, Confidence: result.Confidence, Fields: fields}, nil
}
