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

	"github.com/terra-clan/ballot-kiosk/internal/api"
	"github.com/terra-clan/ballot-kiosk/internal/catalog"
	"github.com/terra-clan/ballot-kiosk/internal/config"
	"github.com/terra-clan/ballot-kiosk/internal/deadline"
	"github.com/terra-clan/ballot-kiosk/internal/events"
	"github.com/terra-clan/ballot-kiosk/internal/results"
	"github.com/terra-clan/ballot-kiosk/internal/storage"
	"github.com/terra-clan/ballot-kiosk/internal/voting"
	"github.com/terra-clan/ballot-kiosk/pkg/tally"
)

func main() {
	// Setup structured logging; the level is raised or lowered once config is read
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel())

	slog.Info("starting ballot-kiosk",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"poll_id", cfg.Poll.ID,
		"tally", cfg.Tally.BaseURL,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Load categories and people
	cat, err := catalog.NewLoader().Load(initCtx, cfg.Catalog.CategoriesPath, cfg.Catalog.PeoplePath)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	// Settings repository
	checks := map[string]api.Pinger{}
	var repo storage.Repository
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{DSN: cfg.Database.DSN})
		if err != nil {
			slog.Error("failed to create database repository", "error", err)
			os.Exit(1)
		}

		migrations, err := storage.Migrations(cfg.Database.MigrationsDir)
		if err != nil {
			slog.Error("failed to open migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if err := storage.RunMigrations(initCtx, pg.Pool(), migrations); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		slog.Info("database connected successfully")
		repo = pg
		checks["database"] = pg
	} else {
		slog.Warn("DATABASE_DSN not set, settings are kept in memory")
		repo = storage.NewMemoryRepository()
	}
	defer repo.Close()

	// Results display cache
	var cache results.Cache
	if cfg.Redis.Address != "" {
		rc, err := results.NewRedisCache(initCtx, cfg.Redis.Address, cfg.Redis.Password)
		if err != nil {
			slog.Error("failed to create redis cache", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		cache = rc
		checks["redis"] = rc
	} else {
		cache = results.NewMemoryCache()
	}

	aggregator := results.NewAggregator(cfg.Poll.ID, cat, repo,
		results.WithCache(cache),
		results.WithTTL(cfg.Results.CacheTTL),
		results.WithDefaultGatewayURL(cfg.Results.GatewayURL),
		results.WithFetcherFactory(func(baseURL string) results.Fetcher {
			return tally.NewClient(baseURL, tally.WithTimeout(cfg.Tally.Timeout))
		}),
	)

	// Voting controller
	gateway := tally.NewClient(cfg.Tally.BaseURL, tally.WithTimeout(cfg.Tally.Timeout))
	hub := events.NewHub()
	controller := voting.NewController(cfg.Poll.ID, cat, gateway, hub)

	if len(cfg.Clients()) == 0 {
		slog.Warn("no admin api keys configured, admin routes are disabled")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start deadline watcher
	watcher := deadline.NewWatcher(gateway, controller, cfg.Poll.StatusInterval)
	watcherDone := watcher.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, controller, hub, aggregator, cfg.Clients(), checks)
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /api/v1/events connections stay open
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()
	<-watcherDone

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("ballot-kiosk stopped")
}
