package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/constants"
)

// FieldInference is the auto-filled value and confidence a field carried
// before a human touched it. Amounts are carried in their 2-decimal string
// form so every field shares one shape.
type FieldInference struct {
	Value      *string `json:"value,omitempty"`
	Confidence float32 `json:"confidence"`
}

// Inference is the per-field original inference snapshot stored alongside
// a correction.
type Inference struct {
	Merchant FieldInference `json:"merchant"`
	Amount   FieldInference `json:"amount"`
	Date     FieldInference `json:"date"`
	Location FieldInference `json:"location"`
	Category FieldInference `json:"category"`
}

// Field returns the inference for a named field.
func (i Inference) Field(name string) FieldInference {
	switch name {
	case constants.FieldMerchant:
		return i.Merchant
	case constants.FieldAmount:
		return i.Amount
	case constants.FieldDate:
		return i.Date
	case constants.FieldLocation:
		return i.Location
	case constants.FieldCategory:
		return i.Category
	}
	return FieldInference{}
}

// Correction records one human override of auto-filled fields on a
// submission. Append-only; immutable once written.
type Correction struct {
	ID                uuid.UUID  `json:"id"`
	ExpenseID         *uuid.UUID `json:"expense_id,omitempty"`
	UserID            uuid.UUID  `json:"user_id"`
	OCRProvider       string     `json:"ocr_provider"`
	OCRText           string     `json:"ocr_text"`
	OCRConfidence     float32    `json:"ocr_confidence"`
	OriginalInference Inference  `json:"original_inference"`

	CorrectedMerchant *string `json:"corrected_merchant,omitempty"`
	CorrectedAmount   *string `json:"corrected_amount,omitempty"` // 2-decimal string
	CorrectedDate     *string `json:"corrected_date,omitempty"`   // YYYY-MM-DD
	CorrectedLocation *string `json:"corrected_location,omitempty"`
	CorrectedCategory *string `json:"corrected_category,omitempty"`

	FieldsCorrected []string  `json:"fields_corrected"`
	Environment     string    `json:"environment"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CorrectedValue returns the corrected value for a named field, if that
// field was part of this correction.
func (c *Correction) CorrectedValue(field string) (string, bool) {
	var p *string
	switch field {
	case constants.FieldMerchant:
		p = c.CorrectedMerchant
	case constants.FieldAmount:
		p = c.CorrectedAmount
	case constants.FieldDate:
		p = c.CorrectedDate
	case constants.FieldLocation:
		p = c.CorrectedLocation
	case constants.FieldCategory:
		p = c.CorrectedCategory
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// PatternInsight is a recurring (original -> corrected) mapping mined from
// the correction history. Derived on demand, never persisted on its own.
type PatternInsight struct {
	Field               string    `json:"field"`
	OriginalValue       string    `json:"original_value"`
	CorrectedValue      string    `json:"corrected_value"`
	Frequency           int       `json:"frequency"`
	LastSeen            time.Time `json:"last_seen"`
	CorrectingUserCount int       `json:"correcting_user_count"`
}

// CorrectionStats summarizes the correction history for the reporting
// surface.
type CorrectionStats struct {
	TotalCorrections           int            `json:"total_corrections"`
	ByField                    map[string]int `json:"by_field"`
	AvgConfidenceWhenCorrected float32        `json:"avg_confidence_when_corrected"`
}
