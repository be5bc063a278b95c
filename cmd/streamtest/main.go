// streamtest connects to the order service's realtime endpoint and prints
// every decoded event to the console.
// Usage: go run ./cmd/streamtest --config configs/ordersync.example.yaml
//
// The token is read from api.token or api.token_file, usually via
//
//	ORDERSYNC_TOKEN - bearer token for the order service
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/ordersync/internal/auth"
	"github.com/rickgao/ordersync/internal/config"
	"github.com/rickgao/ordersync/internal/connection"
	"github.com/rickgao/ordersync/internal/events"
	"github.com/rickgao/ordersync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ordersync.example.yaml", "path to config file")
	emit := flag.String("emit", "", "event name to emit once connected, with an empty payload")
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

	creds, err := auth.LoadCredentials(cfg.API.Token, cfg.API.TokenFile)
	if err != nil {
		logger.Error("credentials required for the realtime endpoint", "error", err)
		logger.Info("Set api.token or api.token_file, e.g. token: ${ORDERSYNC_TOKEN}")
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

	mcfg := connection.DefaultManagerConfig()
	mcfg.Client.URL = cfg.API.WSURL
	mcfg.Client.UserAgent = version.UserAgent()
	mcfg.ReconnectBaseWait = cfg.Connection.ReconnectBaseDelay
	mcfg.ReconnectMaxWait = cfg.Connection.ReconnectMaxDelay
	mcfg.ReconnectFailedAfter = cfg.Connection.ReconnectFailedAfter
	mcfg.Events = events.WireNames{
		Created: cfg.Connection.Events.Created,
		Updated: cfg.Connection.Events.Updated,
	}

	mgr := connection.NewManager(mcfg, nil, logger)

	// Print every event
	mgr.OnStateChange(func(from, to connection.State) {
		fmt.Printf("[STATE] %s -> %s\n", from, to)
	})
	connection.Listen(mgr, func(e events.Connected) {
		fmt.Printf("[CONNECT] attempt=%d\n", e.Attempt)
		if *emit != "" {
			mgr.Emit(*emit, nil)
		}
	})
	connection.Listen(mgr, func(e events.Disconnected) {
		fmt.Printf("[DISCONNECT] reason=%q\n", e.Reason)
	})
	connection.Listen(mgr, func(e events.ConnectError) {
		fmt.Printf("[CONNECT ERROR] %v\n", e.Err)
	})
	connection.Listen(mgr, func(e events.ReconnectAttempt) {
		fmt.Printf("[RECONNECT] attempt=%d\n", e.Attempt)
	})
	connection.Listen(mgr, func(e events.ReconnectFailed) {
		fmt.Printf("[RECONNECT FAILED] attempts=%d\n", e.Attempts)
	})
	connection.Listen(mgr, func(e events.OrderCreated) {
		fmt.Printf("[ORDER CREATED] id=%s\n", e.OrderID)
	})
	connection.Listen(mgr, func(e events.OrderUpdated) {
		fmt.Printf("[ORDER UPDATED] id=%s\n", e.OrderID)
	})

	logger.Info("connecting", "url", cfg.API.WSURL, "credential", creds)
	mgr.Connect(ctx, creds.Token)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := mgr.Stats()
				logger.Info("stats",
					"state", stats.State,
					"attempts", stats.Attempts,
					"reconnects", stats.Reconnects,
					"frames_in", stats.FramesIn,
					"decode_errors", stats.DecodeErrors,
					"delivered", stats.Dispatch.Delivered,
					"queue", stats.Dispatch.Queue.Count,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	mgr.Disconnect()

	logger.Info("shutdown complete")
}
