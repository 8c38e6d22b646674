package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vidmetrics/vidmetrics/internal/config"
	"github.com/vidmetrics/vidmetrics/internal/ingest"
	"github.com/vidmetrics/vidmetrics/internal/observability"
	postgresengine "github.com/vidmetrics/vidmetrics/internal/query/postgres"
	"github.com/vidmetrics/vidmetrics/internal/storage"
	s3store "github.com/vidmetrics/vidmetrics/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("vidmetrics-load")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	file := flag.String("file", cfg.Loader.DatasetPath, "path of the JSON dataset")
	object := flag.String("object", cfg.Loader.DatasetObjectKey, "object key of the JSON dataset; overrides -file")
	generate := flag.Int("generate", 0, "load N synthetic videos instead of a dataset document")
	seed := flag.Int64("seed", 1, "seed for -generate")
	strict := flag.Bool("strict", false, "reject the whole document on any schema violation")
	skipDB := flag.Bool("skip-db", false, "do not write to the relational store")
	exportParquet := flag.Bool("export-parquet", cfg.Engine.Kind == config.EngineDuckDB, "write parquet tables for the embedded engine")
	prefix := flag.String("prefix", cfg.Engine.ParquetPrefix, "object prefix of the parquet tables")
	schedule := flag.String("schedule", cfg.Loader.Schedule, "cron schedule (UTC); empty runs once")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stdout)

	var objectStore storage.ObjectStore
	if *exportParquet || (*object != "" && *generate == 0) {
		store, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = store
	}

	job := &ingest.Job{Strict: *strict, Logger: logger}
	switch {
	case *generate > 0:
		generatorCfg := ingest.DefaultGeneratorConfig()
		generatorCfg.Videos = *generate
		job.Source = ingest.GeneratedSource{Seed: *seed, Config: generatorCfg}
	case *object != "":
		job.Source = ingest.ObjectSource{Store: objectStore, Key: *object}
	default:
		job.Source = ingest.FileSource{Path: *file}
	}
	if *exportParquet {
		job.ExportStore = objectStore
		job.ExportPrefix = *prefix
	}

	if !*skipDB {
		db, err := postgresengine.Open(context.Background(), postgresengine.DBConfig{
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open store db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		loader, err := ingest.NewLoader(db, logger)
		if err != nil {
			logger.Error("failed to initialize loader", slog.Any("error", err))
			os.Exit(1)
		}
		job.Loader = loader
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *schedule != "" {
		logger.Info("loader started", slog.String("source", job.Source.String()), slog.String("schedule", *schedule))
		if err := job.RunScheduled(ctx, *schedule, true); err != nil {
			logger.Error("loader exited with error", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	result, err := job.RunOnce(ctx)
	if err != nil {
		logger.Error("load failed", slog.String("source", result.Source), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("load completed",
		slog.String("source", result.Source),
		slog.Duration("duration", result.Duration),
		slog.Int("videos_loaded", result.Summary.VideosOK()),
		slog.Int("snapshots_loaded", result.Summary.SnapshotsOK()),
		slog.Int("tables_exported", len(result.Exported)),
	)
}
