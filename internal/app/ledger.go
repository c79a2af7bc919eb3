package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/invoicely/invoicely/internal/ledger"
	"github.com/invoicely/invoicely/internal/platform/db"
)

// OpenLedger connects the configured ledger driver and, when enabled, applies
// the schema. The returned func releases the connection.
func OpenLedger(ctx context.Context, cfg *Config, logger *slog.Logger) (*ledger.Store, func(), error) {
	var (
		store   *ledger.Store
		release func()
	)
	switch cfg.LedgerDriver {
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGConnLifetime})
		if err != nil {
			return nil, nil, err
		}
		store, release = ledger.NewPostgresStore(pool), pool.Close
	case DriverSQLite:
		handle, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store = ledger.NewSQLiteStore(handle)
		release = func() {
			if err := handle.Close(); err != nil {
				logger.Warn("sqlite close", slog.Any("error", err))
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
	}

	if cfg.MigrateOnBoot {
		if err := store.Migrate(ctx); err != nil {
			release()
			return nil, nil, err
		}
	}
	logger.Info("ledger ready", slog.String("driver", cfg.LedgerDriver), slog.Bool("migrated", cfg.MigrateOnBoot))
	return store, release, nil
}
