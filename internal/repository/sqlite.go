package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

// SqliteStore is a single-file embedded store for standalone runs without
// a Postgres behind them. It backs corrections, template versions and
// retraining jobs; expense history stays with the main database.
type SqliteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS user_corrections (
	id TEXT PRIMARY KEY,
	expense_id TEXT,
	user_id TEXT NOT NULL,
	ocr_provider TEXT NOT NULL,
	ocr_text TEXT NOT NULL,
	ocr_confidence REAL NOT NULL,
	original_inference TEXT NOT NULL,
	corrected_merchant TEXT,
	corrected_amount TEXT,
	corrected_date TEXT,
	corrected_location TEXT,
	corrected_category TEXT,
	fields_corrected TEXT NOT NULL,
	environment TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS extraction_templates (
	version TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	based_on_correction_count INTEGER NOT NULL,
	metrics TEXT,
	deployed INTEGER NOT NULL DEFAULT 0,
	notes TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS retraining_jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	corrections_since TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT,
	new_template_version TEXT,
	metrics TEXT,
	error TEXT,
	created_at TEXT NOT NULL
);
`

// OpenSqlite opens (and if needed bootstraps) the store at path. Use
// ":memory:" for a throwaway store.
func OpenSqlite(ctx context.Context, path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(err, "open sqlite store")
	}
	// modernc's driver is not safe for concurrent writes over multiple
	// connections on one file.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, common.WrapError(err, "bootstrap sqlite schema")
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error { return s.db.Close() }

func (s *SqliteStore) Append(ctx context.Context, c *entity.Correction) error {
	inference, err := json.Marshal(c.OriginalInference)
	if err != nil {
		return common.WrapError(err, "marshal original inference")
	}
	fields, err := json.Marshal(c.FieldsCorrected)
	if err != nil {
		return common.WrapError(err, "marshal corrected field list")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_corrections (
			id, expense_id, user_id, ocr_provider, ocr_text, ocr_confidence,
			original_inference, corrected_merchant, corrected_amount, corrected_date,
			corrected_location, corrected_category, fields_corrected, environment,
			notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), uuidPtrString(c.ExpenseID), c.UserID.String(), c.OCRProvider,
		c.OCRText, c.OCRConfidence, string(inference), c.CorrectedMerchant,
		c.CorrectedAmount, c.CorrectedDate, c.CorrectedLocation, c.CorrectedCategory,
		string(fields), c.Environment, c.Notes, c.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return common.WrapError(err, "insert correction")
	}
	return nil
}

func (s *SqliteStore) ListSince(ctx context.Context, since time.Time) ([]*entity.Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, expense_id, user_id, ocr_provider, ocr_text, ocr_confidence,
			original_inference, corrected_merchant, corrected_amount, corrected_date,
			corrected_location, corrected_category, fields_corrected, environment,
			notes, created_at
		FROM user_corrections
		WHERE created_at >= ?
		ORDER BY created_at ASC`, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, common.WrapError(err, "query corrections")
	}
	defer rows.Close()

	var out []*entity.Correction
	for rows.Next() {
		var (
			c                       entity.Correction
			id, userID, createdAt   string
			expenseID               *string
			inference, fieldsJoined string
		)
		if err := rows.Scan(&id, &expenseID, &userID, &c.OCRProvider, &c.OCRText,
			&c.OCRConfidence, &inference, &c.CorrectedMerchant, &c.CorrectedAmount,
			&c.CorrectedDate, &c.CorrectedLocation, &c.CorrectedCategory,
			&fieldsJoined, &c.Environment, &c.Notes, &createdAt); err != nil {
			return nil, common.WrapError(err, "scan correction")
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, common.WrapError(err, "parse correction id")
		}
		if c.UserID, err = uuid.Parse(userID); err != nil {
			return nil, common.WrapError(err, "parse user id")
		}
		if expenseID != nil {
			eid, err := uuid.Parse(*expenseID)
			if err != nil {
				return nil, common.WrapError(err, "parse expense id")
			}
			c.ExpenseID = &eid
		}
		if err := json.Unmarshal([]byte(inference), &c.OriginalInference); err != nil {
			return nil, common.WrapError(err, "unmarshal original inference")
		}
		if err := json.Unmarshal([]byte(fieldsJoined), &c.FieldsCorrected); err != nil {
			return nil, common.WrapError(err, "unmarshal corrected field list")
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, common.WrapError(err, "parse created_at")
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SqliteStore) Stats(ctx context.Context) (*entity.CorrectionStats, error) {
	stats := &entity.CorrectionStats{ByField: map[string]int{}}
	row := s.db.QueryRowContext(ctx, `
		SELECT count(*), coalesce(avg(ocr_confidence), 0) FROM user_corrections`)
	var avg float64
	if err := row.Scan(&stats.TotalCorrections, &avg); err != nil {
		return nil, common.WrapError(err, "query correction totals")
	}
	stats.AvgConfidenceWhenCorrected = float32(avg)

	// sqlite has no unnest; the field list is small enough to count in Go.
	all, err := s.ListSince(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		for _, f := range c.FieldsCorrected {
			stats.ByField[f]++
		}
	}
	return stats, nil
}

func (s *SqliteStore) Insert(ctx context.Context, v *entity.TemplateVersion) error {
	doc, err := json.Marshal(v.Document)
	if err != nil {
		return common.WrapError(err, "marshal template document")
	}
	metrics, err := marshalMetrics(v.Metrics)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extraction_templates (
			version, created_at, based_on_correction_count, metrics, deployed, notes, document
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.Version, v.CreatedAt.UTC().Format(time.RFC3339Nano), v.BasedOnCorrectionCount,
		nullableText(metrics), v.Deployed, v.Notes, string(doc))
	if err != nil {
		return common.WrapError(err, "insert template version")
	}
	return nil
}

func (s *SqliteStore) List(ctx context.Context) ([]*entity.TemplateVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, created_at, based_on_correction_count, metrics, deployed, notes, document
		FROM extraction_templates
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, common.WrapError(err, "query template versions")
	}
	defer rows.Close()

	var out []*entity.TemplateVersion
	for rows.Next() {
		v, err := scanSqliteTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SqliteStore) Get(ctx context.Context, version string) (*entity.TemplateVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version, created_at, based_on_correction_count, metrics, deployed, notes, document
		FROM extraction_templates
		WHERE version = ?`, version)
	v, err := scanSqliteTemplate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return v, err
}

func (s *SqliteStore) SetDeployed(ctx context.Context, version string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin deploy transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE extraction_templates SET deployed = 0 WHERE deployed = 1`); err != nil {
		return common.WrapError(err, "clear deployed flag")
	}
	res, err := tx.ExecContext(ctx, `UPDATE extraction_templates SET deployed = 1 WHERE version = ?`, version)
	if err != nil {
		return common.WrapError(err, "set deployed flag")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return tx.Commit()
}

func (s *SqliteStore) Deployed(ctx context.Context) (*entity.TemplateVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version, created_at, based_on_correction_count, metrics, deployed, notes, document
		FROM extraction_templates
		WHERE deployed = 1
		LIMIT 1`)
	v, err := scanSqliteTemplate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (s *SqliteStore) InsertJob(ctx context.Context, j *entity.RetrainingJob) error {
	metrics, err := marshalMetrics(j.Metrics)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO retraining_jobs (
			id, status, corrections_since, started_at, completed_at,
			new_template_version, metrics, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), string(j.Status), j.CorrectionsSince.UTC().Format(time.RFC3339Nano),
		timePtrString(j.StartedAt), timePtrString(j.CompletedAt), j.NewTemplateVersion,
		nullableText(metrics), j.Error, j.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return common.WrapError(err, "insert retraining job")
	}
	return nil
}

func (s *SqliteStore) UpdateJob(ctx context.Context, j *entity.RetrainingJob) error {
	metrics, err := marshalMetrics(j.Metrics)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE retraining_jobs
		SET status = ?, started_at = ?, completed_at = ?,
			new_template_version = ?, metrics = ?, error = ?
		WHERE id = ?`,
		string(j.Status), timePtrString(j.StartedAt), timePtrString(j.CompletedAt),
		j.NewTemplateVersion, nullableText(metrics), j.Error, j.ID.String())
	if err != nil {
		return common.WrapError(err, "update retraining job")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *SqliteStore) GetJob(ctx context.Context, id uuid.UUID) (*entity.RetrainingJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, corrections_since, started_at, completed_at,
			new_template_version, metrics, error, created_at
		FROM retraining_jobs
		WHERE id = ?`, id.String())
	j, err := scanSqliteJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return j, err
}

func (s *SqliteStore) ListJobs(ctx context.Context) ([]*entity.RetrainingJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, corrections_since, started_at, completed_at,
			new_template_version, metrics, error, created_at
		FROM retraining_jobs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, common.WrapError(err, "query retraining jobs")
	}
	defer rows.Close()

	var out []*entity.RetrainingJob
	for rows.Next() {
		j, err := scanSqliteJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Jobs returns the store's JobStore view. The template methods already
// claim the plain Insert/Update/Get/List names on SqliteStore itself.
func (s *SqliteStore) Jobs() JobStore { return sqliteJobs{s} }

type sqliteJobs struct{ s *SqliteStore }

func (v sqliteJobs) Insert(ctx context.Context, j *entity.RetrainingJob) error {
	return v.s.InsertJob(ctx, j)
}

func (v sqliteJobs) Update(ctx context.Context, j *entity.RetrainingJob) error {
	return v.s.UpdateJob(ctx, j)
}

func (v sqliteJobs) Get(ctx context.Context, id uuid.UUID) (*entity.RetrainingJob, error) {
	return v.s.GetJob(ctx, id)
}

func (v sqliteJobs) List(ctx context.Context) ([]*entity.RetrainingJob, error) {
	return v.s.ListJobs(ctx)
}

func scanSqliteTemplate(scan func(...any) error) (*entity.TemplateVersion, error) {
	var (
		v         entity.TemplateVersion
		createdAt string
		metrics   *string
		doc       string
	)
	if err := scan(&v.Version, &createdAt, &v.BasedOnCorrectionCount, &metrics,
		&v.Deployed, &v.Notes, &doc); err != nil {
		return nil, err
	}
	var err error
	if v.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, common.WrapError(err, "parse created_at")
	}
	if metrics != nil {
		v.Metrics = &entity.ValidationMetrics{}
		if err := json.Unmarshal([]byte(*metrics), v.Metrics); err != nil {
			return nil, common.WrapError(err, "unmarshal validation metrics")
		}
	}
	if err := json.Unmarshal([]byte(doc), &v.Document); err != nil {
		return nil, common.WrapError(err, "unmarshal template document")
	}
	return &v, nil
}

func scanSqliteJob(scan func(...any) error) (*entity.RetrainingJob, error) {
	var (
		j                                entity.RetrainingJob
		id, since, createdAt             string
		startedAt, completedAt, metrics  *string
	)
	if err := scan(&id, &j.Status, &since, &startedAt, &completedAt,
		&j.NewTemplateVersion, &metrics, &j.Error, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if j.ID, err = uuid.Parse(id); err != nil {
		return nil, common.WrapError(err, "parse job id")
	}
	if j.CorrectionsSince, err = time.Parse(time.RFC3339Nano, since); err != nil {
		return nil, common.WrapError(err, "parse corrections_since")
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, common.WrapError(err, "parse created_at")
	}
	if j.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, err
	}
	if j.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	if metrics != nil {
		j.Metrics = &entity.ValidationMetrics{}
		if err := json.Unmarshal([]byte(*metrics), j.Metrics); err != nil {
			return nil, common.WrapError(err, "unmarshal job metrics")
		}
	}
	return &j, nil
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, common.WrapError(err, "parse timestamp")
	}
	return &t, nil
}

func nullableText(b []byte) *string {
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}
