/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tutoring ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, config.yaml, TUTORS_* env)
  2. Initialize the configured store (memory, sqlite, or postgres)
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  TUTORS_PORT                  HTTP server port (default: 8080)
  TUTORS_STORE_DRIVER          memory | sqlite | postgres (default: sqlite)
  TUTORS_SQLITE_PATH           SQLite database path (":memory:" works)
  TUTORS_POSTGRES_DSN          PostgreSQL DSN (required for postgres)
  TUTORS_ENFORCE_BALANCE_FLOOR Reject deductions that would go negative

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with the default SQLite file
  ./server

  # Run in memory
  TUTORS_STORE_DRIVER=memory ./server

  # Run against PostgreSQL
  TUTORS_STORE_DRIVER=postgres TUTORS_POSTGRES_DSN="postgres://..." ./server

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phil-in-taipei/tutors-assistant/api"
	"github.com/phil-in-taipei/tutors-assistant/config"
	"github.com/phil-in-taipei/tutors-assistant/ledger"
	memstore "github.com/phil-in-taipei/tutors-assistant/ledger/store"
	"github.com/phil-in-taipei/tutors-assistant/store/postgres"
	"github.com/phil-in-taipei/tutors-assistant/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	handler := api.NewHandler(store, cfg.Ledger())
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d (store: %s)", cfg.Port, cfg.StoreDriver)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func openStore(cfg config.Config) (ledger.TxStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memstore.NewMemory(), func() {}, nil
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.DriverPostgres:
		s, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
