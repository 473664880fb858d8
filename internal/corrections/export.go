package corrections

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// TrainingRecord is the structured per-correction export shape: one record
// per correction event, every corrected field inline.
type TrainingRecord struct {
	CorrectionID  string            `json:"correction_id"`
	UserID        string            `json:"user_id"`
	OCRProvider   string            `json:"ocr_provider"`
	OCRText       string            `json:"ocr_text"`
	OCRConfidence float32           `json:"ocr_confidence"`
	Environment   string            `json:"environment"`
	CreatedAt     time.Time         `json:"created_at"`
	Original      map[string]string `json:"original"`
	Corrected     map[string]string `json:"corrected"`
}

// TrainingRecords flattens corrections into one structured record each,
// for JSON consumers.
func (s *Service) TrainingRecords(ctx context.Context, days int) ([]TrainingRecord, error) {
	corrs, err := s.ListWindow(ctx, days)
	if err != nil {
		return nil, err
	}
	out := make([]TrainingRecord, 0, len(corrs))
	for _, c := range corrs {
		rec := TrainingRecord{
			CorrectionID:  c.ID.String(),
			UserID:        c.UserID.String(),
			OCRProvider:   c.OCRProvider,
			OCRText:       c.OCRText,
			OCRConfidence: c.OCRConfidence,
			Environment:   c.Environment,
			CreatedAt:     c.CreatedAt,
			Original:      map[string]string{},
			Corrected:     map[string]string{},
		}
		for _, field := range c.FieldsCorrected {
			if v, ok := c.CorrectedValue(field); ok {
				rec.Corrected[field] = v
			}
			if v := c.OriginalInference.Field(field).Value; v != nil {
				rec.Original[field] = *v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// ExportXLSX returns an XLSX workbook of the correction history: one row
// per corrected field, ready for external training tooling.
func (s *Service) ExportXLSX(ctx context.Context, days int) ([]byte, error) {
	start := time.Now()
	corrs, err := s.ListWindow(ctx, days)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Corrections"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	defaultSheet := f.GetSheetName(0)
	if defaultSheet != sheet {
		_ = f.DeleteSheet(defaultSheet)
	}

	headers := []string{
		"Correction ID",
		"User ID",
		"Field",
		"Original Value",
		"Original Confidence",
		"Corrected Value",
		"OCR Confidence",
		"OCR Provider",
		"Environment",
		"Created At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, c := range corrs {
		for _, field := range c.FieldsCorrected {
			corrected, ok := c.CorrectedValue(field)
			if !ok {
				continue
			}
			inference := c.OriginalInference.Field(field)
			original := ""
			if inference.Value != nil {
				original = *inference.Value
			}

			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			write(1, c.ID.String())
			write(2, c.UserID.String())
			write(3, field)
			write(4, original)
			write(5, inference.Confidence)
			write(6, corrected)
			write(7, c.OCRConfidence)
			write(8, c.OCRProvider)
			write(9, c.Environment)
			write(10, c.CreatedAt.UTC().Format(time.RFC3339))
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 38)
	_ = f.SetColWidth(sheet, "C", "C", 12)
	_ = f.SetColWidth(sheet, "D", "F", 28)
	_ = f.SetColWidth(sheet, "G", "G", 14)
	_ = f.SetColWidth(sheet, "H", "J", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("corrections.export.ok",
		"rows", row-2,
		"corrections", len(corrs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// PatternReport mines the trailing window and returns the recurring
// patterns for the reporting surface.
func (s *Service) PatternReport(ctx context.Context, days int, miner *Miner) ([]entity.PatternInsight, error) {
	corrs, err := s.ListWindow(ctx, days)
	if err != nil {
		return nil, err
	}
	return miner.Patterns(corrs), nil
}
