package duplicate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/repository"
)

// Candidate is the submission being screened against stored history.
type Candidate struct {
	UserID   uuid.UUID
	Merchant string
	Amount   float64
	Date     time.Time
	// ExcludeID drops one stored expense from screening, for re-checks of
	// an already-saved record.
	ExcludeID *uuid.UUID
}

// Detector screens candidate expenses against a user's recent history.
// Advisory only: it reports likely duplicates, it never blocks a save.
type Detector struct {
	history repository.ExpenseHistory
	cfg     common.DuplicateConfig
	logger  *slog.Logger
}

func New(history repository.ExpenseHistory, cfg common.DuplicateConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{history: history, cfg: cfg, logger: logger}
}

// Check returns the stored expenses that look like duplicates of the
// candidate, ordered as the history returns them. A history read failure
// is logged and reported as no duplicates.
func (d *Detector) Check(ctx context.Context, c Candidate) []entity.DuplicateCandidate {
	window := time.Duration(d.cfg.WindowDays) * 24 * time.Hour
	from := c.Date.Add(-window)
	to := c.Date.Add(window)

	history, err := d.history.ListWindow(ctx, c.UserID, from, to, c.ExcludeID)
	if err != nil {
		d.logger.Warn("duplicate screening skipped, history read failed",
			"user_id", c.UserID, "error", err)
		return nil
	}

	candAmount := formatAmount(c.Amount)
	var out []entity.DuplicateCandidate
	for _, e := range history {
		sim := entity.Similarity{
			Merchant:     similarity(c.Merchant, e.Merchant),
			Amount:       similarity(candAmount, formatAmount(e.Amount)),
			DateDiffDays: dateDiffDays(c.Date, e.Date),
		}
		if sim.Merchant >= d.cfg.MerchantThreshold &&
			sim.Amount >= d.cfg.AmountThreshold &&
			sim.DateDiffDays <= d.cfg.MaxDateDiffDays {
			out = append(out, entity.DuplicateCandidate{
				ExpenseID:  e.ID,
				Merchant:   e.Merchant,
				Amount:     e.Amount,
				Date:       e.Date,
				Similarity: sim,
			})
		}
	}
	return out
}

// similarity scores two strings 0-100: case-insensitive, trimmed edit
// distance normalized by the longer string. A reading that only adds or
// drops a chunk around the other ("Starbucks" vs "Starbucks Coffee")
// counts as a full match. Amounts are compared in their formatted text
// form on purpose: a one-digit OCR slip in a long amount still scores
// high.
func similarity(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 100
	}
	return int(math.Round(levenshtein.Similarity(a, b, nil) * 100))
}

func dateDiffDays(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
