package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/patrimonio/internal/application"
	"github.com/JonMunkholm/patrimonio/internal/config"
	"github.com/JonMunkholm/patrimonio/internal/inbox"
	"github.com/JonMunkholm/patrimonio/internal/logging"
	"github.com/JonMunkholm/patrimonio/internal/web"
)

func main() {
	// Overload lets .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"session_store", cfg.Session.Store,
		"snapshot_debounce", cfg.Session.SnapshotDebounce,
		"allow_reprocessing", cfg.Session.AllowReprocessing,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	app, err := application.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open session", "error", err)
		os.Exit(1)
	}
	if count, pending := app.Start(ctx); pending {
		slog.Info("saved session waiting for a restore decision", "items", count)
	}

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	var watcher *inbox.Watcher
	if cfg.Import.WatchDir != "" {
		watcher, err = inbox.New(app.Session, inbox.Options{
			Dir:      cfg.Import.WatchDir,
			Encoding: cfg.Import.Encoding,
			Timeout:  cfg.Import.Timeout,
		})
		if err != nil {
			slog.Error("failed to start inbox", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := watcher.Run(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("inbox stopped", "error", err)
			}
		}()
	}

	server := web.NewServer(app.Session, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()
		if watcher != nil {
			watcher.Close()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := app.Close(shutdownCtx); err != nil {
			slog.Error("session close error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		app.Close(context.Background())
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
