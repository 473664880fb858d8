package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

type stubEngine struct {
	res entity.OCRResult
	err error
}

func (s stubEngine) Name() string { return "stub" }

func (s stubEngine) Recognize(context.Context, []byte) (entity.OCRResult, error) {
	return s.res, s.err
}

func TestBoundaryAbsorbsEngineFailure(t *testing.T) {
	b := NewBoundary(stubEngine{err: errors.New("engine exploded")}, nil)

	res, err := b.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err, "engine failure must not propagate")
	assert.Equal(t, "", res.Text)
	assert.Equal(t, float32(0), res.Confidence)
}

func TestBoundaryPassesThroughSuccess(t *testing.T) {
	want := entity.OCRResult{Text: "TOTAL: $42.50", Confidence: 0.9}
	b := NewBoundary(stubEngine{res: want}, nil)

	res, err := b.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, want, res)
}

func TestHeuristicConfidence(t *testing.T) {
	assert.Equal(t, float32(0), heuristicConfidence("   "))

	receipt := "Coffee Shop\n01/02/2024\nTOTAL: $12.50 USD"
	plain := "some words with no receipt artifacts"
	assert.Greater(t, heuristicConfidence(receipt), heuristicConfidence(plain))
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	in := "Walmart  Supercenter\r\n\n\n\n123   Main St\t\tAnytown   "
	out := Normalize(in)
	assert.Equal(t, "Walmart Supercenter\n\n123 Main St Anytown", out)
}
