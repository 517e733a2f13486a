package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ShimmerHandmade/modernbuilder/internal/autosave"
	"github.com/ShimmerHandmade/modernbuilder/internal/builder"
	"github.com/ShimmerHandmade/modernbuilder/internal/config"
	"github.com/ShimmerHandmade/modernbuilder/internal/notify"
	"github.com/ShimmerHandmade/modernbuilder/internal/storage"
)

func main() {
	// 1. Define and parse command-line flags
	configPath := flag.String("config", "", "Path to config file (optional)")
	addr := flag.String("addr", "", "Listen address, overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	// 2. Set up logging
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// 3. Build the document store
	bus := notify.NewBus(logger)
	store, cleanup, err := openStore(cfg, bus, logger)
	if err != nil {
		logger.Error("Failed to open document store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// 4. Wire sessions and the websocket hub
	manager := builder.NewManager(store, bus, logger, autosave.Options{Interval: cfg.Autosave.Interval})
	defer manager.CloseAll()
	hub := notify.NewHub(bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	app := &application{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		manager: manager,
		hub:     hub,
		bus:     bus,
	}

	// 5. Start the HTTP server and wait for shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting builder server", "addr", cfg.Server.Addr, "backend", cfg.Storage.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore builds the configured DocumentStore. For the JSON backend it
// also starts the on-disk change watcher when enabled.
func openStore(cfg *config.Config, bus *notify.Bus, logger *slog.Logger) (storage.DocumentStore, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStore(cfg.Storage.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		store, err := storage.NewJSONStore(cfg.Storage.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {}
		if cfg.Storage.Watch {
			watcher, err := storage.NewWatcher(store, bus, logger)
			if err != nil {
				// The watcher is a convenience; the store works without it.
				logger.Warn("Document watcher unavailable", "error", err)
				return store, cleanup, nil
			}
			watchCtx, cancel := context.WithCancel(context.Background())
			go watcher.Run(watchCtx)
			cleanup = cancel
		}
		return store, cleanup, nil
	}
}
