package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/patrimonio/internal/config"
	"github.com/JonMunkholm/patrimonio/internal/core"
)

// Open returns the snapshot backend selected by cfg.Store.
func Open(ctx context.Context, cfg config.SessionConfig) (core.SnapshotStore, error) {
	switch cfg.Store {
	case config.StoreFile:
		s, err := NewFileStore(cfg.SnapshotPath())
		if err != nil {
			return nil, err
		}
		slog.Info("session store ready", "store", cfg.Store, "path", s.Path())
		return s, nil

	case config.StoreSQLite:
		s, err := OpenSQLite(ctx, cfg.SnapshotPath())
		if err != nil {
			return nil, err
		}
		slog.Info("session store ready", "store", cfg.Store, "path", s.Path())
		return s, nil

	case config.StorePostgres:
		s, err := OpenPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		slog.Info("session store ready", "store", cfg.Store)
		return s, nil

	case config.StoreMemory:
		slog.Warn("session store is in memory; the audit will not survive a restart")
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.Store)
}
