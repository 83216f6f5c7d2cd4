// Package commands implements the RideWise CLI commands.
package commands

import (
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ridewise-ai/ridewise/cmd/ridewise-cli/ui"
	"github.com/ridewise-ai/ridewise/internal/cache"
	"github.com/ridewise-ai/ridewise/internal/casebase"
	"github.com/ridewise-ai/ridewise/internal/catalog"
	"github.com/ridewise-ai/ridewise/internal/config"
	"github.com/ridewise-ai/ridewise/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "ridewise",
	Short: "RideWise - case-based motorcycle recommendations",
	Long: `RideWise recommends motorcycles by combining weighted cosine similarity
over the model catalog with precedents recalled from past user sessions.
Run "ridewise advise" for an interactive recommendation dialogue.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the wired dependencies a command needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	ui     *ui.UI
	cat    *catalog.Catalog
	memory *casebase.Memory

	closers []io.Closer
}

// loadApp loads configuration, the catalog and the case store.
func loadApp() (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if !verbose {
		// Interactive commands keep the terminal quiet unless asked.
		level = "error"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		ServiceName: "ridewise-cli",
	})

	cat, err := catalog.LoadCSV(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		ui:     ui.New(noColor),
		cat:    cat,
	}

	store, err := a.openStore()
	if err != nil {
		return nil, fmt.Errorf("open case store: %w", err)
	}

	opts := []casebase.Option{}
	if cfg.Cache.Driver == "redis" {
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, falling back to in-process cache")
		} else {
			a.closers = append(a.closers, redisClient)
			opts = append(opts, casebase.WithCache(redisClient, cfg.Cache.TTL))
		}
	}
	if len(opts) == 0 {
		memCache := cache.NewMemoryClient(cfg.Cache.MaxEntries)
		a.closers = append(a.closers, memCache)
		opts = append(opts, casebase.WithCache(memCache, cfg.Cache.TTL))
	}

	a.memory = casebase.New(store, logger, opts...)
	return a, nil
}

func (a *app) openStore() (casebase.Store, error) {
	switch a.cfg.CaseStore.Driver {
	case "memory":
		return casebase.NewMemoryStore(), nil
	case "sqlite":
		store, err := casebase.NewSQLiteStore(casebase.SQLiteConfig{
			Path:         a.cfg.CaseStore.SQLite.Path,
			MaxOpenConns: a.cfg.CaseStore.SQLite.MaxOpenConns,
			JournalMode:  a.cfg.CaseStore.SQLite.JournalMode,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	case "postgres":
		store, err := casebase.NewPostgresStore(casebase.PostgresConfig{
			DSN:             a.cfg.CaseStore.Postgres.DSN,
			MaxOpenConns:    a.cfg.CaseStore.Postgres.MaxOpenConns,
			MaxIdleConns:    a.cfg.CaseStore.Postgres.MaxIdleConns,
			ConnMaxLifetime: a.cfg.CaseStore.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	}
	return nil, fmt.Errorf("unknown case store driver %q", a.cfg.CaseStore.Driver)
}

// close releases every opened resource.
func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("close failed")
		}
	}
}
