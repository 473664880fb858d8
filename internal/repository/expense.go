package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

// PostgresExpenses reads stored expenses for duplicate screening.
type PostgresExpenses struct {
	pool *pgxpool.Pool
}

func NewPostgresExpenses(pool *pgxpool.Pool) *PostgresExpenses {
	return &PostgresExpenses{pool: pool}
}

func (s *PostgresExpenses) ListWindow(ctx context.Context, userID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*entity.Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, merchant, amount, expense_date
		FROM expenses
		WHERE user_id = $1
		  AND expense_date BETWEEN $2 AND $3
		  AND ($4::uuid IS NULL OR id <> $4)
		ORDER BY expense_date DESC`,
		userID, from, to, excludeID)
	if err != nil {
		return nil, common.WrapError(err, "query expense window")
	}
	defer rows.Close()

	var out []*entity.Expense
	for rows.Next() {
		var e entity.Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.Merchant, &e.Amount, &e.Date); err != nil {
			return nil, common.WrapError(err, "scan expense")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
