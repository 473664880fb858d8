package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

// CorrectionStore persists user corrections and serves the queries the
// pattern miner and retraining jobs run over them.
type CorrectionStore interface {
	Append(ctx context.Context, c *entity.Correction) error
	// ListSince returns corrections created at or after the given time,
	// oldest first.
	ListSince(ctx context.Context, since time.Time) ([]*entity.Correction, error)
	Stats(ctx context.Context) (*entity.CorrectionStats, error)
}

// TemplateStore persists extraction template versions. At most one version
// is deployed at a time.
type TemplateStore interface {
	Insert(ctx context.Context, v *entity.TemplateVersion) error
	// List returns all versions, newest first by creation time.
	List(ctx context.Context) ([]*entity.TemplateVersion, error)
	// Get returns common.ErrNotFound when the version does not exist.
	Get(ctx context.Context, version string) (*entity.TemplateVersion, error)
	// SetDeployed marks the given version deployed and clears the flag on
	// every other version. Returns common.ErrNotFound for unknown versions.
	SetDeployed(ctx context.Context, version string) error
	// Deployed returns the currently deployed version, or nil when none is.
	Deployed(ctx context.Context) (*entity.TemplateVersion, error)
}

// JobStore persists retraining job records.
type JobStore interface {
	Insert(ctx context.Context, j *entity.RetrainingJob) error
	Update(ctx context.Context, j *entity.RetrainingJob) error
	Get(ctx context.Context, id uuid.UUID) (*entity.RetrainingJob, error)
	// List returns all jobs, newest first.
	List(ctx context.Context) ([]*entity.RetrainingJob, error)
}

// ExpenseHistory reads a user's stored expenses for duplicate screening.
type ExpenseHistory interface {
	// ListWindow returns the user's expenses with dates in [from, to],
	// excluding excludeID when non-nil.
	ListWindow(ctx context.Context, userID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*entity.Expense, error)
}
