package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/constants"
)

// RetrainingJob tracks one asynchronous retraining run. Created in
// pending, mutated in place as the pipeline progresses; completed and
// failed are terminal.
type RetrainingJob struct {
	ID                 uuid.UUID           `json:"id"`
	Status             constants.JobStatus `json:"status"`
	CorrectionsSince   time.Time           `json:"corrections_since"`
	StartedAt          *time.Time          `json:"started_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	NewTemplateVersion *string             `json:"new_template_version,omitempty"`
	Metrics            *ValidationMetrics  `json:"metrics,omitempty"`
	Error              *string             `json:"error,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}
