package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/corrections"
	"github.com/expenseflow/expense-ocr/internal/repository"
	"github.com/expenseflow/expense-ocr/internal/templates"
)

const usage = `retrainctl manages extraction template retraining over a local store.

Usage:
  retrainctl [-db file.db] <command> [args]

Commands:
  start [-days N]       mine recent corrections into a new template version
  jobs                  list retraining jobs
  job <id>              show one retraining job
  versions              list template versions
  deploy <version>      deploy a template version
  rollback              roll back to the previous deployed version
  export [-days N] <out.xlsx>  export corrections for model training
`

func main() {
	dbPath := flag.String("db", "expenseflow.db", "sqlite store path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := repository.OpenSqlite(ctx, *dbPath)
	if err != nil {
		logger.Error("open store", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cfg := common.LoadConfig()
	svc := corrections.NewService(store, logger)
	manager, err := templates.NewManager(store, store.Jobs(), store, cfg.Retraining, logger)
	if err != nil {
		logger.Error("build manager", "error", err)
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := run(ctx, cmd, args, cfg, svc, manager, logger); err != nil {
		logger.Error("command failed", "cmd", cmd, "error", err)
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	cmd string,
	args []string,
	cfg *common.Config,
	svc *corrections.Service,
	manager *templates.Manager,
	logger *slog.Logger,
) error {
	switch cmd {
	case "start":
		fs := flag.NewFlagSet("start", flag.ExitOnError)
		days := fs.Int("days", cfg.Retraining.WindowDays, "correction window in days")
		if err := fs.Parse(args); err != nil {
			return err
		}
		job, err := manager.StartJob(ctx, *days)
		if err != nil {
			return err
		}
		manager.Wait()
		done, err := manager.Job(ctx, job.ID)
		if err != nil {
			return err
		}
		return printJSON(done)

	case "jobs":
		jobs, err := manager.Jobs(ctx)
		if err != nil {
			return err
		}
		return printJSON(jobs)

	case "job":
		if len(args) != 1 {
			return fmt.Errorf("usage: retrainctl job <id>")
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parse job id: %w", err)
		}
		job, err := manager.Job(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(job)

	case "versions":
		versions, err := manager.Versions(ctx)
		if err != nil {
			return err
		}
		return printJSON(versions)

	case "deploy":
		if len(args) != 1 {
			return fmt.Errorf("usage: retrainctl deploy <version>")
		}
		if err := manager.Deploy(ctx, args[0]); err != nil {
			return err
		}
		logger.Info("template deployed", "version", args[0])
		return nil

	case "rollback":
		v, err := manager.Rollback(ctx)
		if err != nil {
			return err
		}
		logger.Info("rolled back", "version", v.Version)
		return printJSON(v)

	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		days := fs.Int("days", cfg.Retraining.WindowDays, "correction window in days")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: retrainctl export [-days N] <out.xlsx>")
		}
		blob, err := svc.ExportXLSX(ctx, *days)
		if err != nil {
			return err
		}
		out := fs.Arg(0)
		if err := os.WriteFile(out, blob, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		logger.Info("corrections exported", "path", out, "bytes", len(blob))
		return nil

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
