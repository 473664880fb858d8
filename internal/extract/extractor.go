package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// DefaultMerchant is the merchant value when no line survives the skip
// rules.
const DefaultMerchant = "Unknown Merchant"

// TemplateSource supplies the currently deployed extraction template
// document. A source that has nothing deployed returns the zero document.
type TemplateSource interface {
	ActiveDocument(ctx context.Context) (entity.TemplateDocument, error)
}

// StaticTemplate is a TemplateSource over a fixed document. The zero
// value serves the built-in defaults.
type StaticTemplate struct {
	Doc entity.TemplateDocument
}

func (s StaticTemplate) ActiveDocument(context.Context) (entity.TemplateDocument, error) {
	return s.Doc, nil
}

// Extractor turns raw OCR text into typed structured fields by trying,
// per field, a fixed ordered list of rules; the first rule yielding a
// plausible value wins. Extraction is a pure function of the text and the
// active template document: no randomness, no other external state.
type Extractor struct {
	templates TemplateSource
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Extractor)

// WithClock overrides the clock behind the current-date fallback for the
// date field.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

func New(templates TemplateSource, logger *slog.Logger, opts ...Option) *Extractor {
	if templates == nil {
		templates = StaticTemplate{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{templates: templates, logger: logger, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract runs every field's rule list over the text. Fields that no rule
// can fill stay null (merchant and category fall back to their defaults,
// date to the extraction-time current date).
func (e *Extractor) Extract(ctx context.Context, text string) entity.ExtractedFields {
	doc, err := e.templates.ActiveDocument(ctx)
	if err != nil {
		// missing template is "use defaults", never an error
		e.logger.Warn("active template unavailable, using defaults", "error", err)
		doc = entity.TemplateDocument{}
	}

	lines := splitLines(text)

	fields := entity.ExtractedFields{
		Merchant: extractMerchant(lines, doc),
		Amount:   extractAmount(text),
		Date:     extractDate(text, e.now),
		Location: extractLocation(text),
	}
	fields.Category = classifyCategory(fields.MerchantValue(), text, doc)

	e.logger.Debug("extracted fields",
		"merchant", fields.MerchantValue(),
		"merchant_rule", fields.Merchant.Rule,
		"amount_rule", fields.Amount.Rule,
		"date_rule", fields.Date.Rule,
		"category", fields.CategoryValue(),
	)
	return fields
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}
