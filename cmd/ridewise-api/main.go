// Package main provides the RideWise API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ridewise-ai/ridewise/internal/cache"
	"github.com/ridewise-ai/ridewise/internal/casebase"
	"github.com/ridewise-ai/ridewise/internal/catalog"
	"github.com/ridewise-ai/ridewise/internal/config"
	"github.com/ridewise-ai/ridewise/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "ridewise-api",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("catalog", cfg.Catalog.Path).
		Str("case_store", cfg.CaseStore.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting RideWise API")

	cat, err := catalog.LoadCSV(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load catalog")
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open case store")
	}

	var opts []casebase.Option
	cacheClient, err := openCache(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("Cache unavailable; precedent lookups go to the store")
	} else {
		opts = append(opts, casebase.WithCache(cacheClient, cfg.Cache.TTL))
	}

	memory := casebase.New(store, logger, opts...)

	router := NewRouter(logger, cfg, cat, memory)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

func openStore(cfg *config.Config) (casebase.Store, error) {
	switch cfg.CaseStore.Driver {
	case "memory":
		return casebase.NewMemoryStore(), nil
	case "sqlite":
		return casebase.NewSQLiteStore(casebase.SQLiteConfig{
			Path:         cfg.CaseStore.SQLite.Path,
			MaxOpenConns: cfg.CaseStore.SQLite.MaxOpenConns,
			JournalMode:  cfg.CaseStore.SQLite.JournalMode,
		})
	case "postgres":
		return casebase.NewPostgresStore(casebase.PostgresConfig{
			DSN:             cfg.CaseStore.Postgres.DSN,
			MaxOpenConns:    cfg.CaseStore.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.CaseStore.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.CaseStore.Postgres.ConnMaxLifetime,
		})
	}
	return nil, fmt.Errorf("unknown case store driver %q", cfg.CaseStore.Driver)
}

func openCache(cfg *config.Config) (cache.Client, error) {
	if cfg.Cache.Driver == "redis" {
		return cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
	}
	return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
}
