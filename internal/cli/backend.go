package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tasking/internal/config"
	"github.com/roach88/tasking/internal/engine"
	"github.com/roach88/tasking/internal/store"
	"github.com/roach88/tasking/internal/store/postgres"
)

// taskStore is what the CLI needs from either backend.
type taskStore interface {
	engine.Store
	Ping(ctx context.Context) error
	Close() error
}

// backend bundles the opened store and the engine over it.
type backend struct {
	cfg    *config.Config
	store  taskStore
	engine *engine.Engine
	logger *slog.Logger
}

func (b *backend) Close() error {
	return b.store.Close()
}

// loadConfig reads configuration and applies the --db override.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	applyDatabaseFlag(cfg, opts.Database)
	return cfg, nil
}

// applyDatabaseFlag points cfg at db. A postgres:// or postgresql:// URL
// selects PostgreSQL; anything else is a SQLite path.
func applyDatabaseFlag(cfg *config.Config, db string) {
	if db == "" {
		return
	}
	if strings.HasPrefix(db, "postgres://") || strings.HasPrefix(db, "postgresql://") {
		cfg.DB.Driver = config.DriverPostgres
		cfg.DB.URL = db
		return
	}
	cfg.DB.Driver = config.DriverSQLite
	cfg.DB.Path = db
}

// openBackend loads config, opens the configured store and builds the
// engine. Callers must Close the backend.
func openBackend(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*backend, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr(), opts.Verbose)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("database opened", "driver", cfg.DB.Driver)

	return &backend{
		cfg:    cfg,
		store:  st,
		engine: engine.New(st, engine.WithLogger(logger)),
		logger: logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (taskStore, error) {
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		return store.Open(cfg.DSN())
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DSN())
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.DB.Driver)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
