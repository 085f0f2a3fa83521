// streamtest connects the live price channel and prints ticks to console.
// Usage: go run ./cmd/streamtest --config configs/syncd.local.yaml --watch AAPL,MSFT
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quotedash/streamcache/internal/config"
	"github.com/quotedash/streamcache/internal/stream"
)

func main() {
	configPath := flag.String("config", "configs/syncd.local.yaml", "path to config file")
	watch := flag.String("watch", "AAPL", "comma-separated tickers to subscribe")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	creds := stream.NewHTTPCredentialFetcher(cfg.Provider.CredentialURL, cfg.Provider.CredentialToken)
	streamCfg := stream.DefaultConfig()
	streamCfg.WSURL = cfg.Provider.WSURL
	streamCfg.MaxRetries = cfg.Stream.MaxRetries
	streamCfg.RetryDelay = cfg.Stream.RetryDelay

	channel := stream.NewChannel(streamCfg, creds, logger)

	channel.OnConnectionChange(func(s stream.Status) {
		logger.Info("channel status", "status", string(s))
	})
	channel.OnPriceUpdate(func(tick stream.PriceTick) {
		logger.Info("tick",
			"symbol", tick.Symbol,
			"price", tick.Price,
			"at", time.UnixMilli(tick.Timestamp).UTC().Format(time.RFC3339),
		)
	})

	channel.Connect(ctx)

	tickers := strings.Split(*watch, ",")
	channel.Subscribe(tickers)
	logger.Info("subscribed", "tickers", tickers)

	<-ctx.Done()

	channel.Disconnect()
	logger.Info("streamtest stopped")
}
