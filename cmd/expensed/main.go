package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/corrections"
	"github.com/expenseflow/expense-ocr/internal/duplicate"
	"github.com/expenseflow/expense-ocr/internal/extract"
	"github.com/expenseflow/expense-ocr/internal/ocr"
	"github.com/expenseflow/expense-ocr/internal/pipeline"
	"github.com/expenseflow/expense-ocr/internal/preprocess"
	"github.com/expenseflow/expense-ocr/internal/repository"
	"github.com/expenseflow/expense-ocr/internal/server"
	"github.com/expenseflow/expense-ocr/internal/templates"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	correctionStore := repository.NewPostgresCorrections(pool)
	templateStore := repository.NewPostgresTemplates(pool)
	jobStore := repository.NewPostgresJobs(pool)
	expenseStore := repository.NewPostgresExpenses(pool)

	manager, err := templates.NewManager(templateStore, jobStore, correctionStore, cfg.Retraining, logger)
	if err != nil {
		logger.Error("failed to build template manager", "error", err)
		os.Exit(1)
	}

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
		extract.New(manager, logger),
		logger,
	)

	detector := duplicate.New(expenseStore, cfg.Duplicate, logger)
	correctionSvc := corrections.NewService(correctionStore, logger)

	scheduler := templates.NewScheduler(manager, logger)
	if err := scheduler.Schedule(cfg.Retraining.IntervalDays); err != nil {
		logger.Error("failed to schedule retraining", "error", err)
		os.Exit(1)
	}

	srv := server.New(processor, detector, correctionSvc, manager, cfg.Retraining, logger)

	go func() {
		logger.Info("expensed listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.Start(cfg.Server.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	scheduler.Stop()
	manager.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
}
