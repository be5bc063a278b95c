package batchsync

import (
	"context"
	"time"

	"github.com/rickgao/ordersync/internal/model"
	"github.com/rickgao/ordersync/internal/querycache"
)

// Reader reads one order.
type Reader interface {
	GetOrder(ctx context.Context, id string) (model.Order, error)
}

// BulkReader is implemented by readers that can fetch many orders in one call.
type BulkReader interface {
	GetOrders(ctx context.Context, ids []string) ([]model.Order, error)
}

// Store is the view cache the engine merges into.
type Store interface {
	Views(ns querycache.Namespace) []querycache.View
	Replace(ns querycache.Namespace, params querycache.Params, orders []model.Order) bool
	InvalidateNamespace(ns querycache.Namespace) []querycache.Params
}

// FetcherConfig holds Fetcher configuration.
type FetcherConfig struct {
	Concurrency int           // Max point reads in flight during fallback
	Rate        float64       // Point reads per second (0 = unlimited)
	Burst       int           // Rate limiter burst
	Timeout     time.Duration // Bound on one FetchMany call (0 = none)
}

// DefaultFetcherConfig returns default configuration.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Concurrency: 8,
		Rate:        50,
		Burst:       10,
		Timeout:     15 * time.Second,
	}
}

// Config holds Engine configuration.
type Config struct {
	Namespace    querycache.Namespace
	DiscardStale bool // Drop merges older than the last applied generation

	// FilterAppends appends a new order only to views whose params admit
	// it. Off: new orders are appended to every view.
	FilterAppends bool

	Fetch FetcherConfig
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Namespace: querycache.OrdersNamespace,
		Fetch:     DefaultFetcherConfig(),
	}
}

// FetchStats contains fetcher statistics.
type FetchStats struct {
	BulkCalls       int64
	BulkFailures    int64
	BulkUnsupported bool // Set after the reader reported the bulk endpoint missing
	PointCalls      int64
	PointFailures   int64
	Requested       int64
	Returned        int64
}

// MergeResult describes one MergeIntoNamespace call.
type MergeResult struct {
	Views       int  // Views examined
	Replaced    int  // Views rewritten
	Invalidated bool // Namespace was invalidated instead of merged
}

// SyncResult describes one Sync call.
type SyncResult struct {
	Generation uint64
	BatchID    string
	Requested  int
	Fetched    int
	Stale      bool // Discarded by the generation guard
	Merge      MergeResult
}

// Stats contains engine statistics.
type Stats struct {
	Syncs          int64
	InFlight       int64
	Generation     uint64
	Applied        uint64 // Highest generation merged
	Merges         int64
	ViewsReplaced  int64
	Invalidations  int64
	StaleDiscarded int64
	Fetch          FetchStats
}
