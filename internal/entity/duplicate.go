package entity

import (
	"time"

	"github.com/google/uuid"
)

// Expense is the slice of a persisted expense record the duplicate
// detector needs: who spent what, where, when.
type Expense struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Merchant string    `json:"merchant"`
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"date"`
}

// Similarity is the per-match breakdown attached to a duplicate candidate.
// Merchant and Amount are 0-100 percentages; DateDiffDays is the absolute
// day difference.
type Similarity struct {
	Merchant     int `json:"merchant"`
	Amount       int `json:"amount"`
	DateDiffDays int `json:"date_diff_days"`
}

// DuplicateCandidate is one stored expense that looks like a duplicate of
// a candidate submission. Computed on demand; advisory, never blocking.
type DuplicateCandidate struct {
	ExpenseID  uuid.UUID  `json:"expense_id"`
	Merchant   string     `json:"merchant"`
	Amount     float64    `json:"amount"`
	Date       time.Time  `json:"date"`
	Similarity Similarity `json:"similarity"`
}
