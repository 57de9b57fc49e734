package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sincitytravels/navigator/internal/config"
	"github.com/sincitytravels/navigator/internal/db"
	"github.com/sincitytravels/navigator/internal/logging"
	"github.com/sincitytravels/navigator/internal/poiimport"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "", "Directory of POI JSON documents (required)")
	configPath := flag.String("config", "navigator.toml", "Path to the TOML config file")
	dryRun := flag.Bool("dry-run", false, "Parse and validate without writing to the database")

	flag.Parse()

	if *dir == "" {
		fmt.Println("Usage: navigator-import --dir=<data/pois> [--config=navigator.toml] [--dry-run]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewNamed(cfg.Env, "importer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log, cfg, *dir, *dryRun); err != nil {
		log.Fatal("import failed", zap.Error(err))
	}
}

func run(log *zap.Logger, cfg config.Config, dir string, dryRun bool) error {
	start := time.Now()

	log.Info("step 1/3: parsing POI documents", zap.String("dir", dir))
	records, fileErrs, err := poiimport.ParseDir(dir)
	if err != nil {
		return err
	}
	for _, fe := range fileErrs {
		log.Warn("unreadable POI document", zap.String("path", fe.Path), zap.Error(fe.Err))
	}

	log.Info("step 2/3: validating records")
	valid, skipped := poiimport.Validate(records, log)
	for _, s := range skipped {
		log.Warn("skipping POI", zap.String("source", s.Source), zap.String("id", s.ID), zap.String("reason", s.Reason))
	}

	if dryRun {
		log.Info("dry run complete",
			zap.Int("files", len(records)+len(fileErrs)),
			zap.Int("valid", len(valid)),
			zap.Int("skipped", len(skipped)),
			zap.Int("errors", len(fileErrs)),
		)
		return nil
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	log.Info("step 3/3: writing POIs", zap.Int("count", len(valid)))
	summary, err := poiimport.NewImporter(pool, log).Import(ctx, valid)
	if err != nil {
		return err
	}

	counts, err := poiimport.CountByCategory(ctx, pool)
	if err != nil {
		return err
	}
	for _, c := range counts {
		log.Info("POIs by category", zap.String("category", c.Category), zap.Int64("count", c.Count))
	}

	log.Info("import complete",
		zap.Int("files", len(records)+len(fileErrs)),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", len(skipped)),
		zap.Int("errors", len(fileErrs)+summary.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
