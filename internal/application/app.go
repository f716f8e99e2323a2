// Package application assembles an audit session from configuration. The
// server and the CLI both start here so they read and write the same
// durable session.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/patrimonio/internal/config"
	"github.com/JonMunkholm/patrimonio/internal/core"
	"github.com/JonMunkholm/patrimonio/internal/storage"
)

// App owns the session and the resources behind it.
type App struct {
	Config  *config.Config
	Session *core.Session
	Parser  *core.ParseService

	gateway *core.Gateway
}

// Open connects the configured snapshot store, starts the parse worker and
// builds the session. The session has not read its saved state yet; call
// Start.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	slot, err := storage.Open(ctx, cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return New(cfg, slot), nil
}

// New is Open with an already opened snapshot store.
func New(cfg *config.Config, slot core.SnapshotStore) *App {
	parser := core.NewParseService(core.ParseOptions{
		RequireDescription: cfg.Import.RequireDescription,
	}, cfg.Import.MaxWaitTime)

	gateway := core.NewGateway(slot)
	session := core.NewSession(gateway, parser, core.SessionOptions{
		Engine:           core.EngineOptions{AllowReprocessing: cfg.Session.AllowReprocessing},
		PageSize:         cfg.Session.PageSize,
		SnapshotDebounce: cfg.Session.SnapshotDebounce,
		SearchThreshold:  cfg.Session.SearchThreshold,
	})

	return &App{
		Config:  cfg,
		Session: session,
		Parser:  parser,
		gateway: gateway,
	}
}

// Start reads the saved session, if any, as a pending restore.
func (a *App) Start(ctx context.Context) (count int, pending bool) {
	count, pending = a.Session.Start(ctx)
	slog.Info("session started",
		"session_id", a.gateway.SessionID(),
		"restore_pending", pending,
		"saved_items", count,
	)
	return count, pending
}

// ExportOptions returns the configured report format.
func (a *App) ExportOptions() core.SerializeOptions {
	return core.SerializeOptions{
		BOM:              a.Config.Export.BOM,
		IncludeCheckedAt: a.Config.Export.IncludeCheckedAt,
	}
}

// Close waits for an in-flight parse, flushes a pending snapshot and
// releases the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Parser.Busy() {
		slog.Info("waiting for import to finish")
		if err := a.Parser.WaitIdle(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait for import: %w", err))
		}
	}
	a.Session.Close()
	a.Parser.Close()
	if err := a.gateway.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session store: %w", err))
	}
	return errors.Join(errs...)
}
