package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/expenseflow/expense-ocr/internal/entity"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// Timeout bounds one Recognize call, both binary invocations
	// included. Zero disables the bound.
	Timeout time.Duration

	EnableTSVConfidence bool
}

// Tesseract recognizes image bytes by shelling out to the tesseract
// binary. Each Recognize call is self-contained: the image is written to a
// scoped temp file that is removed before the call returns.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &Tesseract{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, img []byte) (entity.OCRResult, error) {
	start := time.Now()

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	tmp, err := os.CreateTemp("", "receipt-*.png")
	if err != nil {
		return entity.OCRResult{}, fmt.Errorf("ocr temp file: %w", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := tmp.Write(img); err != nil {
		_ = tmp.Close()
		return entity.OCRResult{}, fmt.Errorf("ocr temp write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return entity.OCRResult{}, fmt.Errorf("ocr temp close: %w", err)
	}

	txt, err := t.recognizeText(ctx, path)
	if err != nil {
		return entity.OCRResult{}, err
	}
	txt = Normalize(txt)

	var ocrConf float32
	if t.cfg.EnableTSVConfidence {
		if c, err2 := t.tsvConfidence(ctx, path); err2 == nil {
			ocrConf = c
		} else {
			t.logger.Warn("tsv confidence unavailable", "error", err2)
		}
	}
	heurConf := heuristicConfidence(txt)

	// blend: weight OCR higher if present
	var conf float32
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	} else {
		conf = heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}

	t.logger.Debug("tesseract recognized",
		"bytes", len(img),
		"text_len", len(txt),
		"confidence", conf,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return entity.OCRResult{Text: txt, Confidence: conf}, nil
}

func (t *Tesseract) recognizeText(ctx context.Context, path string) (string, error) {
	args := t.baseArgs(path)

	// tesseract <file> stdout -l <lang>
	out, _, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil
}

// tsvConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (t *Tesseract) tsvConfidence(ctx context.Context, path string) (float32, error) {
	args := append(t.baseArgs(path), "tsv")

	out, _, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	lines := strings.Split(string(out), "\n")
	// conf is column 11 of 12; the last column is the recognized text
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue // skip header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	mean := sum / n // 0..100
	return float32(mean / 100.0), nil
}

func (t *Tesseract) baseArgs(path string) []string {
	args := []string{filepath.Clean(path), "stdout", "-l", t.cfg.TesseractLang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}
