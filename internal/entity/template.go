package entity

import (
	"time"
)

// TemplateDocument is the body of an extraction template version: the
// keyword/example tables the field extractor consults on top of its
// built-in rules.
type TemplateDocument struct {
	// MerchantFixes maps a recurring misread merchant string to its
	// corrected form, applied after the merchant rule fires.
	MerchantFixes map[string]string `json:"merchant_fixes,omitempty"`
	// CategoryKeywords holds extra keywords per category bucket, mined
	// from category corrections. Checked before the built-in buckets.
	CategoryKeywords map[string][]string `json:"category_keywords,omitempty"`
	// ConfidenceThresholds holds the per-field review threshold:
	// extractions whose OCR confidence falls below it should be flagged
	// for mandatory human review.
	ConfidenceThresholds map[string]float64 `json:"confidence_thresholds,omitempty"`
	// MerchantExamples keeps human-readable mined examples for the
	// reporting surface.
	MerchantExamples []string `json:"merchant_examples,omitempty"`
}

// ValidationMetrics is the lightweight self-validation result attached to
// a template version: the inverse of the correction rate observed over the
// most recent 7 days. A rough health signal, not a held-out evaluation.
type ValidationMetrics struct {
	MerchantAccuracy  float64 `json:"merchant_accuracy"`
	AmountAccuracy    float64 `json:"amount_accuracy"`
	CategoryAccuracy  float64 `json:"category_accuracy"`
	OverallAccuracy   float64 `json:"overall_accuracy"`
	ValidationSamples int     `json:"validation_samples"`
	Note              string  `json:"note,omitempty"`
}

// TemplateVersion is one versioned snapshot of the extraction template.
// Exactly one version is deployed at a time, system-wide. Versions are
// never deleted, only superseded.
type TemplateVersion struct {
	Version                string             `json:"version"` // semver
	CreatedAt              time.Time          `json:"created_at"`
	BasedOnCorrectionCount int                `json:"based_on_correction_count"`
	Metrics                *ValidationMetrics `json:"metrics,omitempty"`
	Deployed               bool               `json:"deployed"`
	Notes                  string             `json:"notes,omitempty"`
	Document               TemplateDocument   `json:"document"`
}
