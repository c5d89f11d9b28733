package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/paperdoc/internal/api"
	"github.com/dgallion1/paperdoc/internal/config"
	"github.com/dgallion1/paperdoc/internal/parser"
	"github.com/dgallion1/paperdoc/internal/pipeline"
	"github.com/dgallion1/paperdoc/internal/store"
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	overrides, err := config.LoadSectionOverrides(cfg.SectionOverridesFile)
	if err != nil {
		log.Error("invalid section overrides", "error", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Error("open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := parser.Options{
		SectionNumbers: overrides,
		Logger:         log.With("component", "parser"),
	}
	if cfg.IDStrategy == "random" {
		opts.IDGen = parser.RandomIDs()
	}

	// Initialize pipeline.
	conv := pipeline.NewConverter(opts, pipeline.NewConvertStats(time.Hour))
	orch := pipeline.NewOrchestrator(cfg, conv, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting uploads before the queue closes.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		st.Close()
	}()

	log.Info("starting paperdoc", "port", cfg.Port, "store", cfg.StoreBackend, "ids", cfg.IDStrategy)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "pathstore":
		return store.NewPathstore(cfg.PathstoreURL, cfg.PathstoreAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
