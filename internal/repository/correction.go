package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

// PostgresCorrections stores corrections in the user_corrections table.
type PostgresCorrections struct {
	pool *pgxpool.Pool
}

func NewPostgresCorrections(pool *pgxpool.Pool) *PostgresCorrections {
	return &PostgresCorrections{pool: pool}
}

const correctionColumns = `id, expense_id, user_id, ocr_provider, ocr_text, ocr_confidence,
	original_inference, corrected_merchant, corrected_amount, corrected_date,
	corrected_location, corrected_category, fields_corrected, environment, notes, created_at`

func (s *PostgresCorrections) Append(ctx context.Context, c *entity.Correction) error {
	inference, err := json.Marshal(c.OriginalInference)
	if err != nil {
		return common.WrapError(err, "marshal original inference")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_corrections (`+correctionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.ExpenseID, c.UserID, c.OCRProvider, c.OCRText, c.OCRConfidence,
		inference, c.CorrectedMerchant, c.CorrectedAmount, c.CorrectedDate,
		c.CorrectedLocation, c.CorrectedCategory, c.FieldsCorrected, c.Environment,
		c.Notes, c.CreatedAt)
	if err != nil {
		return common.WrapError(err, "insert correction")
	}
	return nil
}

func (s *PostgresCorrections) ListSince(ctx context.Context, since time.Time) ([]*entity.Correction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+correctionColumns+`
		FROM user_corrections
		WHERE created_at >= $1
		ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, common.WrapError(err, "query corrections")
	}
	defer rows.Close()

	var out []*entity.Correction
	for rows.Next() {
		var (
			c         entity.Correction
			inference []byte
		)
		if err := rows.Scan(
			&c.ID, &c.ExpenseID, &c.UserID, &c.OCRProvider, &c.OCRText, &c.OCRConfidence,
			&inference, &c.CorrectedMerchant, &c.CorrectedAmount, &c.CorrectedDate,
			&c.CorrectedLocation, &c.CorrectedCategory, &c.FieldsCorrected, &c.Environment,
			&c.Notes, &c.CreatedAt,
		); err != nil {
			return nil, common.WrapError(err, "scan correction")
		}
		if len(inference) > 0 {
			if err := json.Unmarshal(inference, &c.OriginalInference); err != nil {
				return nil, common.WrapError(err, "unmarshal original inference")
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PostgresCorrections) Stats(ctx context.Context) (*entity.CorrectionStats, error) {
	stats := &entity.CorrectionStats{ByField: map[string]int{}}

	row := s.pool.QueryRow(ctx, `
		SELECT count(*), coalesce(avg(ocr_confidence), 0)
		FROM user_corrections`)
	var avg float64
	if err := row.Scan(&stats.TotalCorrections, &avg); err != nil {
		return nil, common.WrapError(err, "query correction totals")
	}
	stats.AvgConfidenceWhenCorrected = float32(avg)

	rows, err := s.pool.Query(ctx, `
		SELECT f, count(*)
		FROM user_corrections, unnest(fields_corrected) AS f
		GROUP BY f`)
	if err != nil {
		return nil, common.WrapError(err, "query per-field counts")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			field string
			n     int
		)
		if err := rows.Scan(&field, &n); err != nil {
			return nil, common.WrapError(err, "scan per-field count")
		}
		stats.ByField[field] = n
	}
	return stats, rows.Err()
}
