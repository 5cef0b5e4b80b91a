/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the billing engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Resolve configuration (flags, env, optional yaml)
  2. Initialize SQLite store
  3. Wire history source, wallet, and document service
  4. Start snapshot capture scheduler
  5. Start HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config           Path to yaml config (optional)
  -port             HTTP server port (default: 8080)
  -db               SQLite database path (default: billing.db)
                    Use ":memory:" for in-memory database
  -history-backend  Balance history source: snapshots or replay
  -snapshot-cron    Cron spec for snapshot capture (default: @daily)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the snapshot scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/billing.db"

  # Serve history charts from the transaction ledger
  ./server -history-backend=replay

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline/billing-engine/api"
	"github.com/ledgerline/billing-engine/billing"
	"github.com/ledgerline/billing-engine/config"
	"github.com/ledgerline/billing-engine/history"
	"github.com/ledgerline/billing-engine/store/sqlite"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Get()
	if err != nil {
		logger.Fatal("failed to resolve configuration", zap.Error(err))
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	clock := history.SystemClock()
	recon := history.NewReconstructor(store, clock, logger)
	replay := history.NewReplayer(store, clock)

	var source history.Source = recon
	if cfg.HistoryBackend == config.BackendReplay {
		source = replay
	}

	wallet := billing.NewWallet(store, recon, clock, logger)
	documents := billing.NewDocumentService(store, wallet, clock)

	handler := api.NewHandler(store, wallet, documents, source, replay, logger)
	router := api.NewRouter(handler)

	scheduler := api.NewSnapshotScheduler(store, recon, logger)
	scheduler.Spec = cfg.SnapshotCron
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start snapshot scheduler", zap.Error(err))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.String("history_backend", cfg.HistoryBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop()

	logger.Info("server stopped")
}
