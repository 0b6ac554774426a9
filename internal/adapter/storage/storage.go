// Package storage opens the configured ports.Store backend.
package storage

import (
	"context"
	"fmt"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (ports.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memory.NewStore(memory.WithLockTimeout(cfg.LockTimeout)), nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			log.Info().Msg("Database schema applied")
		}
		return postgres.NewStore(pool, cfg.LockTimeout), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
