package ocr

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRunner struct {
	out         []byte
	hadDeadline bool
	calls       int
}

func (r *captureRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	_, r.hadDeadline = ctx.Deadline()
	r.calls++
	return r.out, nil, nil
}

func testTesseract(cfg Config, runner Runner) *Tesseract {
	t := NewTesseract(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.runner = runner
	return t
}

func TestTSVConfidenceReadsConfColumn(t *testing.T) {
	// level page block par line word left top width height conf text
	tsv := strings.Join([]string{
		"level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext",
		"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t95\tTOTAL",
		"5\t1\t1\t1\t1\t2\t70\t10\t40\t20\t85\t4.50",
		"4\t1\t1\t1\t1\t0\t0\t0\t0\t0\t-1\t",
		"",
	}, "\n")
	eng := testTesseract(Config{EnableTSVConfidence: true}, &captureRunner{out: []byte(tsv)})

	conf, err := eng.tsvConfidence(context.Background(), "receipt.png")
	require.NoError(t, err)
	// mean of 95 and 85; the non-numeric text column must not matter
	assert.InDelta(t, 0.90, conf, 1e-6)
}

func TestTSVConfidenceEmptyOutput(t *testing.T) {
	eng := testTesseract(Config{EnableTSVConfidence: true}, &captureRunner{out: []byte("header only\n")})

	conf, err := eng.tsvConfidence(context.Background(), "receipt.png")
	require.NoError(t, err)
	assert.Zero(t, conf)
}

func TestRecognizeAppliesConfiguredTimeout(t *testing.T) {
	runner := &captureRunner{out: []byte("TOTAL: $9.99")}
	eng := testTesseract(Config{Timeout: time.Second}, runner)

	res, err := eng.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.True(t, runner.hadDeadline, "engine call must carry the configured deadline")
	assert.Equal(t, 1, runner.calls)
	assert.Contains(t, res.Text, "9.99")
}

func TestRecognizeWithoutTimeout(t *testing.T) {
	runner := &captureRunner{out: []byte("TOTAL: $9.99")}
	eng := testTesseract(Config{}, runner)

	_, err := eng.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.False(t, runner.hadDeadline)
}