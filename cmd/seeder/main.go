// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/ammerola/household-be/internal/app"
	"github.com/ammerola/household-be/internal/pkg/config"
	"github.com/ammerola/household-be/internal/pkg/logger"
)

func main() {
	var (
		workbook = flag.String("file", "", "Excel workbook with Locations and Items sheets (default: built-in household)")
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun   = flag.Bool("dry-run", false, "Run the seed against in-memory backends without touching the database")
	)
	flag.Parse()

	slogger := logger.SetupLogger(*logLevel, "json")
	slog.SetDefault(slogger)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *dryRun {
		cfg.App.StoreBackend = config.BackendMemory
		cfg.Vector.Backend = config.BackendMemory
		cfg.Embedding.Provider = config.EmbeddingHash
		cfg.Redis.Host = ""
		cfg.AWS.S3Bucket = ""
		cfg.AWS.LocalArchiveDir = os.TempDir()
	}

	plan := DefaultPlan()
	if *workbook != "" {
		if plan, err = LoadWorkbook(*workbook); err != nil {
			slogger.Error("failed to load seed workbook", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	ctx := context.Background()
	container, err := app.New(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer container.Close(ctx)

	summary, err := NewSeeder(container.Service, slogger).Run(ctx, plan)
	if err != nil {
		slogger.Error("seeding failed", slog.String("error", err.Error()))
		container.Close(ctx)
		os.Exit(1)
	}

	slogger.Info("seeding complete",
		slog.Bool("dry_run", *dryRun),
		slog.Int("locations", summary.Locations),
		slog.Int("items", summary.Items),
		slog.Int("placed", summary.Placed),
		slog.Int("skipped", summary.Skipped))
}
