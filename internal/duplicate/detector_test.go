package duplicate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/repository"
)

func testConfig() common.DuplicateConfig {
	return common.DuplicateConfig{
		WindowDays:        30,
		MerchantThreshold: 75,
		AmountThreshold:   75,
		MaxDateDiffDays:   1,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCheckFlagsNearIdenticalExpense(t *testing.T) {
	userID := uuid.New()
	stored := &entity.Expense{
		ID:       uuid.New(),
		UserID:   userID,
		Merchant: "Starbucks Coffee",
		Amount:   4.50,
		Date:     day("2024-03-14"),
	}
	d := New(repository.NewMemoryExpenses(stored), testConfig(), testLogger())

	got := d.Check(context.Background(), Candidate{
		UserID:   userID,
		Merchant: "Starbucks",
		Amount:   4.50,
		Date:     day("2024-03-15"),
	})
	require.Len(t, got, 1)
	assert.Equal(t, stored.ID, got[0].ExpenseID)
	assert.GreaterOrEqual(t, got[0].Similarity.Merchant, 75)
	assert.Equal(t, 100, got[0].Similarity.Amount)
	assert.Equal(t, 1, got[0].Similarity.DateDiffDays)
}

func TestCheckIgnoresDifferentMerchant(t *testing.T) {
	userID := uuid.New()
	stored := &entity.Expense{
		ID:       uuid.New(),
		UserID:   userID,
		Merchant: "Walmart",
		Amount:   25.00,
		Date:     day("2024-03-15"),
	}
	d := New(repository.NewMemoryExpenses(stored), testConfig(), testLogger())

	got := d.Check(context.Background(), Candidate{
		UserID:   userID,
		Merchant: "Target",
		Amount:   25.00,
		Date:     day("2024-03-15"),
	})
	assert.Empty(t, got, "amount and date match but the merchant does not")
}

func TestCheckIgnoresDistantDates(t *testing.T) {
	userID := uuid.New()
	stored := &entity.Expense{
		ID:       uuid.New(),
		UserID:   userID,
		Merchant: "Starbucks",
		Amount:   4.50,
		Date:     day("2024-03-10"),
	}
	d := New(repository.NewMemoryExpenses(stored), testConfig(), testLogger())

	got := d.Check(context.Background(), Candidate{
		UserID:   userID,
		Merchant: "Starbucks",
		Amount:   4.50,
		Date:     day("2024-03-15"),
	})
	assert.Empty(t, got)
}

func TestCheckScopedToUser(t *testing.T) {
	stored := &entity.Expense{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Merchant: "Starbucks",
		Amount:   4.50,
		Date:     day("2024-03-15"),
	}
	d := New(repository.NewMemoryExpenses(stored), testConfig(), testLogger())

	got := d.Check(context.Background(), Candidate{
		UserID:   uuid.New(),
		Merchant: "Starbucks",
		Amount:   4.50,
		Date:     day("2024-03-15"),
	})
	assert.Empty(t, got, "other users' expenses are never candidates")
}

func TestCheckExcludesGivenExpense(t *testing.T) {
	userID := uuid.New()
	stored := &entity.Expense{
		ID:       uuid.New(),
		UserID:   userID,
		Merchant: "Starbucks",
		Amount:   4.50,
		Date:     day("2024-03-15"),
	}
	d := New(repository.NewMemoryExpenses(stored), testConfig(), testLogger())

	got := d.Check(context.Background(), Candidate{
		UserID:    userID,
		Merchant:  "Starbucks",
		Amount:    4.50,
		Date:      day("2024-03-15"),
		ExcludeID: &stored.ID,
	})
	assert.Empty(t, got, "the record under edit must not flag itself")
}

type failingHistory struct{}

func (failingHistory) ListWindow(context.Context, uuid.UUID, time.Time, time.Time, *uuid.UUID) ([]*entity.Expense, error) {
	return nil, errors.New("connection refused")
}

func TestCheckSwallowsHistoryErrors(t *testing.T) {
	d := New(failingHistory{}, testConfig(), testLogger())
	got := d.Check(context.Background(), Candidate{
		UserID:   uuid.New(),
		Merchant: "Starbucks",
		Amount:   4.50,
		Date:     day("2024-03-15"),
	})
	assert.Empty(t, got)
}

func TestNewDefaultsNilLogger(t *testing.T) {
	d := New(failingHistory{}, testConfig(), nil)

	// exercises the warn path, which dereferences the logger
	got := d.Check(context.Background(), Candidate{
		UserID:   uuid.New(),
		Merchant: "Starbucks",
		Amount:   4.50,
		Date:     day("2024-03-15"),
	})
	assert.Empty(t, got)
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		min  int
		max  int
	}{
		{"Starbucks", "Starbucks", 100, 100},
		{"  starbucks ", "STARBUCKS", 100, 100},
		{"Starbucks", "Starbucks Coffee", 75, 100},
		{"Target", "Walmart", 0, 74},
		{"4.50", "4.50", 100, 100},
		{"4.50", "45.00", 50, 74}, // textually close despite the 10x gap
		{"", "Starbucks", 0, 0},
	}
	for _, tc := range cases {
		got := similarity(tc.a, tc.b)
		assert.GreaterOrEqual(t, got, tc.min, "%q vs %q", tc.a, tc.b)
		assert.LessOrEqual(t, got, tc.max, "%q vs %q", tc.a, tc.b)
	}
}
