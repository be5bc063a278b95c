// ordersync keeps cached order views in step with the order service.
// Usage: go run ./cmd/ordersync --config configs/ordersync.example.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/rickgao/ordersync/internal/api"
	"github.com/rickgao/ordersync/internal/auth"
	"github.com/rickgao/ordersync/internal/batchsync"
	"github.com/rickgao/ordersync/internal/coalesce"
	"github.com/rickgao/ordersync/internal/config"
	"github.com/rickgao/ordersync/internal/connection"
	"github.com/rickgao/ordersync/internal/database"
	"github.com/rickgao/ordersync/internal/events"
	"github.com/rickgao/ordersync/internal/notify"
	"github.com/rickgao/ordersync/internal/poller"
	"github.com/rickgao/ordersync/internal/querycache"
	"github.com/rickgao/ordersync/internal/router"
	"github.com/rickgao/ordersync/internal/session"
	"github.com/rickgao/ordersync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ordersync.example.yaml", "path to config file")
	bell := flag.Bool("bell", false, "ring the terminal bell on new orders")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	// Set up structured logging
	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With("instance", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting ordersync",
		version.LogAttr(),
		"config", *configPath,
		"api_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
		"reader", cfg.Sync.Reader,
	)

	creds, err := auth.LoadCredentials(cfg.API.Token, cfg.API.TokenFile)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}
	if creds.Expired(time.Now()) {
		exp, _ := creds.ExpiresAt()
		logger.Error("credential expired", "expired_at", exp)
		os.Exit(1)
	}
	logger.Info("using credentials", "credential", creds)

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

	// Create API client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		creds.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithMaxBatch(cfg.API.MaxBatch),
		api.WithUserAgent(version.UserAgent()),
	)

	var (
		reader batchsync.Reader  = apiClient
		loader querycache.Loader = apiClient.ListOrders
		db     pinger
	)

	// Connect to database
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database, "ordersync-"+cfg.Instance.ID)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		db = pool

		if cfg.Sync.Reader == config.ReaderPostgres {
			orders := database.NewOrderReader(pool, logger)
			reader, loader = orders, orders.ListOrders
		}
		logger.Info("database connected")
	}

	// Query cache
	ns := querycache.Namespace(cfg.Sync.Namespace)
	cache := querycache.New(querycache.Config{
		TTL:             cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
	}, logger)
	cache.Register(ns, loader)
	cache.OnInvalidate(func(ns querycache.Namespace, dropped []querycache.Params) {
		logger.Info("views invalidated", "namespace", ns, "views", len(dropped))
	})

	// Sync engine and coalescing queue
	engine := batchsync.NewEngine(batchsync.Config{
		Namespace:     ns,
		DiscardStale:  cfg.Sync.DiscardStale,
		FilterAppends: cfg.Sync.FilterAppends,
		Fetch: batchsync.FetcherConfig{
			Concurrency: cfg.Sync.Concurrency,
			Rate:        cfg.Sync.Rate,
			Burst:       cfg.Sync.Burst,
			Timeout:     cfg.Sync.Timeout,
		},
	}, reader, cache, logger)

	queue := coalesce.New(coalesce.Config{
		Quiescence: cfg.Coalesce.Quiescence,
		MaxBatch:   cfg.Coalesce.MaxBatch,
		MaxWait:    cfg.Coalesce.MaxWait,
	}, logger)

	// Connection manager
	manager := connection.NewManager(managerConfig(cfg), nil, logger)

	notifier := notify.Multi{notify.NewLogNotifier(logger)}
	if *bell {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			notifier = append(notifier, notify.NewTerminal(os.Stderr))
		} else {
			logger.Warn("stderr is not a terminal, ignoring -bell")
		}
	}

	sess := session.New(session.Deps{
		Manager:  manager,
		Queue:    queue,
		Engine:   engine,
		Cache:    cache,
		Notifier: notifier,
	}, logger)

	watcher := sess.Watch(session.WatchOptions{})

	// Warm the default view so the first merges have somewhere to land
	if _, err := cache.Query(ctx, ns, querycache.Params{Status: querycache.StatusOpen}); err != nil {
		logger.Warn("failed to load open orders", "error", err)
	}

	resync := poller.New(poller.Config{Interval: cfg.Poller.Interval}, cache, engine, logger)

	// Start health server early so we can monitor connection state
	healthServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: newHealthHandler(healthDeps{
			session:   sess,
			cache:     cache,
			namespace: ns,
			db:        db,
			poller:    resync,
		}, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	sess.Start(ctx, creds.Token)

	if err := resync.Start(ctx); err != nil {
		logger.Error("failed to start resync poller", "error", err)
		os.Exit(1)
	}

	logger.Info("ordersync running",
		"session", sess.ID(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	resync.Stop(shutdownCtx)
	watcher.Close()
	sess.Stop()
	engine.Wait()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("ordersync stopped")
}

// managerConfig maps the connection section onto the manager's config.
func managerConfig(cfg *config.Config) connection.ManagerConfig {
	mcfg := connection.DefaultManagerConfig()

	mcfg.Client.URL = cfg.API.WSURL
	mcfg.Client.UserAgent = version.UserAgent()
	mcfg.Client.PingInterval = cfg.Connection.PingInterval
	mcfg.Client.PingTimeout = cfg.Connection.PingTimeout
	mcfg.Client.BufferSize = cfg.Connection.BufferSize

	mcfg.ReconnectBaseWait = cfg.Connection.ReconnectBaseDelay
	mcfg.ReconnectMaxWait = cfg.Connection.ReconnectMaxDelay
	mcfg.ReconnectFailedAfter = cfg.Connection.ReconnectFailedAfter
	mcfg.Events = events.WireNames{
		Created: cfg.Connection.Events.Created,
		Updated: cfg.Connection.Events.Updated,
	}
	mcfg.Dispatch = router.Config{BufferSize: cfg.Connection.DispatchBuffer}

	return mcfg
}
