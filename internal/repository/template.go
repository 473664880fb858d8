package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

// PostgresTemplates stores template versions in the extraction_templates
// table. Version strings are the primary key.
type PostgresTemplates struct {
	pool *pgxpool.Pool
}

func NewPostgresTemplates(pool *pgxpool.Pool) *PostgresTemplates {
	return &PostgresTemplates{pool: pool}
}

const templateColumns = `version, created_at, based_on_correction_count, metrics, deployed, notes, document`

func (s *PostgresTemplates) Insert(ctx context.Context, v *entity.TemplateVersion) error {
	doc, err := json.Marshal(v.Document)
	if err != nil {
		return common.WrapError(err, "marshal template document")
	}
	var metrics []byte
	if v.Metrics != nil {
		if metrics, err = json.Marshal(v.Metrics); err != nil {
			return common.WrapError(err, "marshal validation metrics")
		}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO extraction_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.Version, v.CreatedAt, v.BasedOnCorrectionCount, metrics, v.Deployed, v.Notes, doc)
	if err != nil {
		return common.WrapError(err, "insert template version")
	}
	return nil
}

func (s *PostgresTemplates) List(ctx context.Context) ([]*entity.TemplateVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM extraction_templates
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, common.WrapError(err, "query template versions")
	}
	defer rows.Close()

	var out []*entity.TemplateVersion
	for rows.Next() {
		v, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresTemplates) Get(ctx context.Context, version string) (*entity.TemplateVersion, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM extraction_templates
		WHERE version = $1`, version)
	v, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return v, err
}

func (s *PostgresTemplates) SetDeployed(ctx context.Context, version string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return common.WrapError(err, "begin deploy transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE extraction_templates SET deployed = false WHERE deployed`); err != nil {
		return common.WrapError(err, "clear deployed flag")
	}
	tag, err := tx.Exec(ctx, `UPDATE extraction_templates SET deployed = true WHERE version = $1`, version)
	if err != nil {
		return common.WrapError(err, "set deployed flag")
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *PostgresTemplates) Deployed(ctx context.Context) (*entity.TemplateVersion, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM extraction_templates
		WHERE deployed
		LIMIT 1`)
	v, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func scanTemplate(row pgx.Row) (*entity.TemplateVersion, error) {
	var (
		v       entity.TemplateVersion
		metrics []byte
		doc     []byte
	)
	if err := row.Scan(&v.Version, &v.CreatedAt, &v.BasedOnCorrectionCount, &metrics,
		&v.Deployed, &v.Notes, &doc); err != nil {
		return nil, err
	}
	if len(metrics) > 0 {
		v.Metrics = &entity.ValidationMetrics{}
		if err := json.Unmarshal(metrics, v.Metrics); err != nil {
			return nil, common.WrapError(err, "unmarshal validation metrics")
		}
	}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &v.Document); err != nil {
			return nil, common.WrapError(err, "unmarshal template document")
		}
	}
	return &v, nil
}
