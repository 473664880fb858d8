package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

// PostgresJobs stores retraining jobs in the retraining_jobs table.
type PostgresJobs struct {
	pool *pgxpool.Pool
}

func NewPostgresJobs(pool *pgxpool.Pool) *PostgresJobs {
	return &PostgresJobs{pool: pool}
}

const jobColumns = `id, status, corrections_since, started_at, completed_at,
	new_template_version, metrics, error, created_at`

func (s *PostgresJobs) Insert(ctx context.Context, j *entity.RetrainingJob) error {
	metrics, err := marshalMetrics(j.Metrics)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO retraining_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.Status, j.CorrectionsSince, j.StartedAt, j.CompletedAt,
		j.NewTemplateVersion, metrics, j.Error, j.CreatedAt)
	if err != nil {
		return common.WrapError(err, "insert retraining job")
	}
	return nil
}

func (s *PostgresJobs) Update(ctx context.Context, j *entity.RetrainingJob) error {
	metrics, err := marshalMetrics(j.Metrics)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE retraining_jobs
		SET status = $2, started_at = $3, completed_at = $4,
			new_template_version = $5, metrics = $6, error = $7
		WHERE id = $1`,
		j.ID, j.Status, j.StartedAt, j.CompletedAt, j.NewTemplateVersion, metrics, j.Error)
	if err != nil {
		return common.WrapError(err, "update retraining job")
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *PostgresJobs) Get(ctx context.Context, id uuid.UUID) (*entity.RetrainingJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM retraining_jobs
		WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return j, err
}

func (s *PostgresJobs) List(ctx context.Context) ([]*entity.RetrainingJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM retraining_jobs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, common.WrapError(err, "query retraining jobs")
	}
	defer rows.Close()

	var out []*entity.RetrainingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*entity.RetrainingJob, error) {
	var (
		j       entity.RetrainingJob
		metrics []byte
	)
	if err := row.Scan(&j.ID, &j.Status, &j.CorrectionsSince, &j.StartedAt, &j.CompletedAt,
		&j.NewTemplateVersion, &metrics, &j.Error, &j.CreatedAt); err != nil {
		return nil, err
	}
	if len(metrics) > 0 {
		j.Metrics = &entity.ValidationMetrics{}
		if err := json.Unmarshal(metrics, j.Metrics); err != nil {
			return nil, common.WrapError(err, "unmarshal job metrics")
		}
	}
	return &j, nil
}

func marshalMetrics(m *entity.ValidationMetrics) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, common.WrapError(err, "marshal job metrics")
	}
	return b, nil
}
