// Curator research server — provides the HTTP API, manages queue
// workers, and orchestrates research run execution.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kbforge/curator/pkg/api"
	"github.com/kbforge/curator/pkg/audit"
	"github.com/kbforge/curator/pkg/breaker"
	"github.com/kbforge/curator/pkg/cleanup"
	"github.com/kbforge/curator/pkg/config"
	"github.com/kbforge/curator/pkg/database"
	"github.com/kbforge/curator/pkg/discovery"
	"github.com/kbforge/curator/pkg/integration"
	"github.com/kbforge/curator/pkg/metrics"
	"github.com/kbforge/curator/pkg/orchestrator"
	"github.com/kbforge/curator/pkg/queue"
	"github.com/kbforge/curator/pkg/review"
	"github.com/kbforge/curator/pkg/scoring"
	"github.com/kbforge/curator/pkg/services"
	"github.com/kbforge/curator/pkg/storage"
	"github.com/kbforge/curator/pkg/storage/memory"
	"github.com/kbforge/curator/pkg/storage/postgres"
	"github.com/kbforge/curator/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// buildDiscoveryClients constructs the enabled external search clients
// from configuration. Credentials are resolved from the environment
// variables named by the config, never from YAML.
func buildDiscoveryClients(cfg *config.DiscoveryConfig) []discovery.ExternalClient {
	var clients []discovery.ExternalClient
	if cfg.WebSearch.On() && cfg.WebSearch.Endpoint != "" {
		clients = append(clients, discovery.NewWebSearchClient(
			cfg.WebSearch.Endpoint, os.Getenv(cfg.WebSearch.APIKeyEnv)))
	}
	if cfg.Academic.On() {
		clients = append(clients, discovery.NewCrossrefClient(
			cfg.Academic.Endpoint, cfg.Academic.Mailto))
	}
	if cfg.News.On() && cfg.News.Endpoint != "" {
		clients = append(clients, discovery.NewNewsClient(
			cfg.News.Endpoint, os.Getenv(cfg.News.APIKeyEnv)))
	}
	return clients
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize storage
	var store storage.Store
	var db *sql.DB
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		dbClient, err := database.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		store = postgres.NewStore(dbClient.Client)
		db = dbClient.DB()
		slog.Info("Connected to PostgreSQL database")
	default:
		store = memory.NewStore()
		slog.Info("Using in-memory storage")
	}

	// 3. Audit log and circuit breakers
	auditLog := audit.NewLogger(store.Audit())
	registry := breaker.NewRegistry(cfg.Breakers)

	// 4. Discovery
	clients := buildDiscoveryClients(cfg.Discovery)
	if len(clients) == 0 {
		slog.Error("No discovery clients enabled")
		os.Exit(1)
	}
	discoveryService := discovery.NewService(clients, registry, auditLog, cfg.Discovery.Options())
	slog.Info("Discovery service initialized", "clients", len(clients))

	// 5. Scoring
	// Note: grpc.NewClient uses lazy dialing; actual connection happens
	// on first RPC call
	var adapter scoring.AIAdapter
	if cfg.AI.On() {
		aiAdapter, err := scoring.NewGRPCAIAdapter(cfg.AI.GRPCAddr)
		if err != nil {
			slog.Error("Failed to initialize AI adapter", "addr", cfg.AI.GRPCAddr, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := aiAdapter.Close(); err != nil {
				slog.Error("Error closing AI adapter", "error", err)
			}
		}()
		adapter = aiAdapter
		slog.Info("AI adapter initialized", "addr", cfg.AI.GRPCAddr)
	}
	scorer := scoring.NewScorer(adapter, registry, cfg.Freshness)

	// 6. Integration analysis and review queue
	analyzer := integration.NewAnalyzer(nil, nil, store.Proposals())
	processor := review.NewProcessor(analyzer, store.Sources(), store.Proposals(), store.Runs(), auditLog)
	reviewQueue := review.NewQueue(store.Reviews(), store.Assessments(), auditLog, processor)

	// 7. Orchestrator and worker pool (workers start before HTTP)
	orch := orchestrator.New(store, discoveryService, scorer, analyzer, reviewQueue, registry, auditLog, cfg.Orchestrator)
	workerPool := queue.NewWorkerPool(cfg.Queue, orch)
	workerPool.Start(ctx)

	// 8. Retention cleanup
	cleanupService := cleanup.NewService(cfg.Retention, store.Runs())
	cleanupService.Start(ctx)

	// 9. Domain services and HTTP server
	researchService := services.NewResearchService(store, workerPool, auditLog)
	reviewService := services.NewReviewService(reviewQueue)
	integrationService := services.NewIntegrationService(analyzer, store.Sources(), store.Proposals())
	collector := metrics.NewCollector(store.Runs(), store.Assessments(), store.Audit())

	server := api.NewServer(researchService, reviewService, integrationService, auditLog, collector, workerPool, db)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: server.Router(),
	}

	// 10. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Curator started successfully",
		"version", version.Full(),
		"backend", cfg.Storage.Backend,
		"workers", cfg.Queue.WorkerCount)

	// 11. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 12. Graceful shutdown: drain workers, stop cleanup, close HTTP
	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-time.After(cfg.Queue.GracefulShutdownTimeout + 5*time.Second):
		slog.Warn("Worker pool shutdown timeout exceeded")
	}

	cleanupService.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Curator shutdown complete")
}
