package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vidmetrics/vidmetrics/internal/api"
	"github.com/vidmetrics/vidmetrics/internal/auth"
	"github.com/vidmetrics/vidmetrics/internal/config"
	"github.com/vidmetrics/vidmetrics/internal/nl2sql"
	"github.com/vidmetrics/vidmetrics/internal/observability"
	"github.com/vidmetrics/vidmetrics/internal/pipeline"
	"github.com/vidmetrics/vidmetrics/internal/query"
	duckdbengine "github.com/vidmetrics/vidmetrics/internal/query/duckdb"
	postgresengine "github.com/vidmetrics/vidmetrics/internal/query/postgres"
	s3store "github.com/vidmetrics/vidmetrics/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("vidmetrics-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	var (
		engine    query.Engine
		readiness api.ReadinessCheck
	)
	switch cfg.Engine.Kind {
	case config.EngineDuckDB:
		objectStore, err := s3store.New(context.Background(), s3store.Config{
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
		tables, err := duckdbengine.DefaultTables(cfg.Engine.ParquetPrefix)
		if err != nil {
			logger.Error("invalid parquet prefix", slog.Any("error", err))
			os.Exit(1)
		}
		duck := duckdbengine.NewEngine(objectStore, tables)
		engine = duck
		readiness = api.CombineReadinessChecks(
			api.CheckObjectStoreConfig(cfg),
			objectStore.HealthCheck,
			duck.HealthCheck,
		)
	default:
		storeDB, err := postgresengine.Open(context.Background(), postgresengine.DBConfig{
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
		defer func() { _ = storeDB.Close() }()
		postgres := postgresengine.NewEngine(storeDB)
		engine = postgres
		readiness = api.CombineReadinessChecks(
			api.CheckStoreDSN(cfg),
			postgres.HealthCheck,
		)
	}

	completer, err := nl2sql.NewCompleter(context.Background(), nl2sql.Settings{
		Provider:    cfg.Completion.Provider,
		BaseURL:     cfg.Completion.BaseURL,
		APIKey:      cfg.Completion.APIKey,
		FolderID:    cfg.Completion.FolderID,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
		Timeout:     cfg.Completion.Timeout,
		RateLimit:   cfg.Completion.RateLimit,
		RateBurst:   cfg.Completion.RateBurst,
	})
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}
	if closer, ok := completer.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	executor, err := query.NewExecutor(engine)
	if err != nil {
		logger.Error("failed to initialize executor", slog.Any("error", err))
		os.Exit(1)
	}
	answers, err := pipeline.New(pipeline.Config{
		RejectMultiStatement: cfg.SQL.RejectMultiStatement,
	}, completer, executor, logger)
	if err != nil {
		logger.Error("failed to initialize answer pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Answerer:          answers,
		Readiness:         readiness,
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("engine", cfg.Engine.Kind),
			slog.String("completion_provider", cfg.Completion.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
