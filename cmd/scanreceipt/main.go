package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/expenseflow/expense-ocr/constants"
	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
	"github.com/expenseflow/expense-ocr/internal/extract"
	"github.com/expenseflow/expense-ocr/internal/ocr"
	"github.com/expenseflow/expense-ocr/internal/pipeline"
	"github.com/expenseflow/expense-ocr/internal/preprocess"
	"github.com/expenseflow/expense-ocr/internal/repository"
)

// scanreceipt runs a receipt image, or a directory of them, through the
// extraction pipeline and prints structured results as JSON. No database
// required; pass -store to read the deployed template from a local store.
func main() {
	storePath := flag.String("store", "", "optional sqlite store holding deployed templates")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall scan timeout")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "scanreceipt [-store file.db] <image-file-or-directory>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var source extract.TemplateSource = extract.StaticTemplate{}
	if *storePath != "" {
		store, err := repository.OpenSqlite(ctx, *storePath)
		if err != nil {
			logger.Error("open template store", "path", *storePath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		source = templateSource{store}
	}

	cfg := common.LoadConfig()
	engine := ocr.NewTesseract(ocr.Config{
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		Timeout:             cfg.OCR.Timeout,
		EnableTSVConfidence: true,
	}, logger)

	processor := pipeline.NewProcessor(
		preprocess.New(logger),
		ocr.NewBoundary(engine, logger),
		extract.New(source, logger),
		logger,
	)

	info, err := os.Stat(path)
	if err != nil {
		logger.Error("stat input", "path", path, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if info.IsDir() {
		results := scanDirectory(ctx, processor, path, logger)
		if err := enc.Encode(results); err != nil {
			logger.Error("encode results", "error", err)
			os.Exit(1)
		}
		return
	}

	result, err := scanFile(ctx, processor, path)
	if err != nil {
		logger.Error("scan failed", "path", path, "error", err)
		os.Exit(1)
	}
	if err := enc.Encode(result); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}

func scanFile(ctx context.Context, processor *pipeline.Processor, path string) (*pipeline.ScanResult, error) {
	if !constants.IsAllowedExt(filepath.Ext(path)) {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return processor.Scan(ctx, image)
}

type fileResult struct {
	Path   string               `json:"path"`
	Result *pipeline.ScanResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// scanDirectory walks root, scanning every supported receipt image and
// skipping hidden entries. Failures are reported per file and do not
// stop the walk.
func scanDirectory(ctx context.Context, processor *pipeline.Processor, root string, logger *slog.Logger) []fileResult {
	var results []fileResult
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			results = append(results, fileResult{Path: path, Error: walkErr.Error()})
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsAllowedExt(filepath.Ext(path)) {
			return nil
		}
		result, err := scanFile(ctx, processor, path)
		if err != nil {
			logger.Warn("scan failed", "path", path, "error", err)
			results = append(results, fileResult{Path: path, Error: err.Error()})
			return nil
		}
		results = append(results, fileResult{Path: path, Result: result})
		return nil
	})
	if err != nil {
		results = append(results, fileResult{Path: root, Error: err.Error()})
	}
	return results
}

type templateSource struct {
	store *repository.SqliteStore
}

func (t templateSource) ActiveDocument(ctx context.Context) (entity.TemplateDocument, error) {
	v, err := t.store.Deployed(ctx)
	if err != nil {
		return entity.TemplateDocument{}, err
	}
	if v == nil {
		return entity.TemplateDocument{}, nil
	}
	return v.Document, nil
}
