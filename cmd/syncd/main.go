package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quotedash/streamcache/internal/app"
	"github.com/quotedash/streamcache/internal/cache"
	"github.com/quotedash/streamcache/internal/config"
	"github.com/quotedash/streamcache/internal/database"
	"github.com/quotedash/streamcache/internal/marketdata"
	"github.com/quotedash/streamcache/internal/stream"
	"github.com/quotedash/streamcache/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/syncd.local.yaml", "path to config file")
	watch := flag.String("watch", "", "comma-separated tickers to subscribe at startup")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"provider", cfg.Provider.Name,
		"rest_url", cfg.Provider.RestURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open the cache store. A database outage at startup degrades to an
	// in-memory store rather than refusing to run.
	store := openStore(ctx, cfg, logger)

	// Create provider REST client
	mdClient := marketdata.NewClient(
		cfg.Provider.RestURL,
		cfg.Provider.APIKey,
		marketdata.WithLogger(logger),
		marketdata.WithTimeout(cfg.Provider.Timeout),
		marketdata.WithRetries(cfg.Provider.MaxRetries, time.Second),
	)

	// Create live price channel
	creds := stream.NewHTTPCredentialFetcher(cfg.Provider.CredentialURL, cfg.Provider.CredentialToken)
	streamCfg := stream.Config{
		WSURL:      cfg.Provider.WSURL,
		MaxRetries: cfg.Stream.MaxRetries,
		RetryDelay: cfg.Stream.RetryDelay,
		Transport: stream.TransportConfig{
			HandshakeTimeout: 10 * time.Second,
			PingTimeout:      cfg.Stream.PingTimeout,
			WriteTimeout:     cfg.Stream.WriteTimeout,
			BufferSize:       cfg.Stream.BufferSize,
		},
	}
	channel := stream.NewChannel(streamCfg, creds, logger)
	channel.OnConnectionChange(func(s stream.Status) {
		logger.Info("live channel status", "status", string(s))
	})

	// Wire the fetch service
	svc := app.NewService(store, mdClient, channel, cfg.Provider.Name, logger)

	// Start background maintenance
	sweeper := app.NewSweeper(store, cfg.Cache.SweepInterval, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}
	defer stopWithTimeout(sweeper.Stop, logger, "sweeper")

	janitor := app.NewJanitor(store, cfg.Cache.MaxEntries, cfg.Cache.SweepInterval, logger)
	if err := janitor.Start(ctx); err != nil {
		logger.Error("failed to start janitor", "error", err)
		os.Exit(1)
	}
	defer stopWithTimeout(janitor.Stop, logger, "janitor")

	// Start health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(store, channel, logger),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Connect the live channel and subscribe startup tickers
	channel.Connect(ctx)
	if *watch != "" {
		tickers := strings.Split(*watch, ",")
		svc.Watch(tickers)
		logger.Info("watching startup tickers", "tickers", tickers)
	}

	logger.Info("syncd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	channel.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("syncd stopped")
}

// openStore connects to the cache database and initializes partitions,
// falling back to an in-memory store when the database is unreachable.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) cache.Store {
	logger.Info("connecting to cache database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Warn("cache database unreachable, using in-memory store", "error", err)
		return newMemoryStore(ctx, logger)
	}

	store := cache.NewPostgresStore(pool, logger)
	if err := store.Init(ctx); err != nil {
		logger.Warn("cache initialization failed, using in-memory store", "error", err)
		pool.Close()
		return newMemoryStore(ctx, logger)
	}

	logger.Info("cache database connected")
	return store
}

func newMemoryStore(ctx context.Context, logger *slog.Logger) cache.Store {
	mem := cache.NewMemoryStore()
	if err := mem.Init(ctx); err != nil {
		logger.Error("failed to initialize in-memory store", "error", err)
		os.Exit(1)
	}
	return mem
}

func stopWithTimeout(stop func(context.Context) error, logger *slog.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("component did not stop cleanly", "component", name, "error", err)
	}
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(store cache.Store, channel *stream.Channel, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check cache store
		stats, err := store.Stats(ctx)
		if err != nil {
			health.Status = "unhealthy"
			health.Components["cache"] = map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			}
		} else {
			health.Components["cache"] = map[string]interface{}{
				"status":  "available",
				"entries": stats.Total,
			}
		}

		// Check live channel
		status := channel.Status()
		health.Components["stream"] = map[string]interface{}{
			"status":     string(status),
			"subscribed": len(channel.Subscribed()),
		}
		if status == stream.StatusFailed {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/cache", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats, err := store.Stats(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total":  stats.Total,
			"counts": stats.Counts,
		})
	})

	return mux
}
