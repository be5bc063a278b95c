package batchsync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/rickgao/ordersync/internal/model"
	"github.com/rickgao/ordersync/internal/querycache"
)

// Engine fetches flushed batches and merges them into the view cache.
type Engine struct {
	cfg     Config
	fetcher *Fetcher
	store   Store
	logger  *slog.Logger

	generation atomic.Uint64
	wg         sync.WaitGroup
	inFlight   atomic.Int64

	// mergeMu serialises merges so the generation guard and the store
	// rewrite happen together.
	mergeMu sync.Mutex
	applied uint64

	syncs          atomic.Int64
	merges         atomic.Int64
	viewsReplaced  atomic.Int64
	invalidations  atomic.Int64
	staleDiscarded atomic.Int64
}

// NewEngine creates an Engine.
func NewEngine(cfg Config, reader Reader, store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = querycache.OrdersNamespace
	}

	return &Engine{
		cfg:     cfg,
		fetcher: NewFetcher(cfg.Fetch, reader, logger),
		store:   store,
		logger:  logger.With("component", "batchsync"),
	}
}

// Namespace returns the namespace the engine merges into.
func (e *Engine) Namespace() querycache.Namespace {
	return e.cfg.Namespace
}

// Go runs Sync for ids in a new goroutine. The generation is taken before
// Go returns, so generations follow call order. In-flight syncs are not
// cancelled by anything; Wait blocks until they finish.
func (e *Engine) Go(ids []string) {
	if len(ids) == 0 {
		return
	}
	gen := e.generation.Add(1)

	e.wg.Add(1)
	e.inFlight.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.inFlight.Add(-1)
		e.sync(context.Background(), gen, ids)
	}()
}

// Wait blocks until every sync started with Go has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Sync fetches ids and merges the result into the engine's namespace.
func (e *Engine) Sync(ctx context.Context, ids []string) SyncResult {
	return e.sync(ctx, e.generation.Add(1), ids)
}

func (e *Engine) sync(ctx context.Context, gen uint64, ids []string) SyncResult {
	res := SyncResult{
		Generation: gen,
		BatchID:    ulid.Make().String(),
		Requested:  len(ids),
	}
	e.syncs.Add(1)

	logger := e.logger.With("batch", res.BatchID, "generation", res.Generation)

	fresh := e.fetcher.FetchMany(ctx, ids)
	res.Fetched = len(fresh)

	if dropped := len(ids) - len(fresh); dropped > 0 {
		logger.Info("some orders could not be fetched",
			"requested", len(ids),
			"fetched", len(fresh),
		)
	}

	e.mergeMu.Lock()
	if e.cfg.DiscardStale && res.Generation < e.applied {
		e.mergeMu.Unlock()
		e.staleDiscarded.Add(1)
		res.Stale = true
		logger.Debug("discarding stale batch", "applied", e.applied)
		return res
	}
	res.Merge = e.mergeLocked(e.cfg.Namespace, fresh)
	e.applied = max(e.applied, res.Generation)
	e.mergeMu.Unlock()

	logger.Debug("batch synced",
		"requested", res.Requested,
		"fetched", res.Fetched,
		"views", res.Merge.Views,
		"replaced", res.Merge.Replaced,
		"invalidated", res.Merge.Invalidated,
	)

	return res
}

// MergeIntoNamespace merges fresh into every view of ns. An empty fresh batch
// or a namespace with no views invalidates the whole namespace instead.
func (e *Engine) MergeIntoNamespace(ns querycache.Namespace, fresh []model.Order) MergeResult {
	e.mergeMu.Lock()
	defer e.mergeMu.Unlock()
	return e.mergeLocked(ns, fresh)
}

func (e *Engine) mergeLocked(ns querycache.Namespace, fresh []model.Order) MergeResult {
	e.merges.Add(1)

	if len(fresh) == 0 {
		e.invalidate(ns, "empty batch")
		return MergeResult{Invalidated: true}
	}

	views := e.store.Views(ns)
	if len(views) == 0 {
		e.invalidate(ns, "no views")
		return MergeResult{Invalidated: true}
	}

	res := MergeResult{Views: len(views)}
	for _, v := range views {
		var admit func(model.Order) bool
		if e.cfg.FilterAppends {
			admit = v.Params.Admits
		}
		merged, changed := MergeView(v.Orders, fresh, admit)
		if !changed {
			continue
		}
		if e.store.Replace(ns, v.Params, merged) {
			res.Replaced++
		}
	}

	e.viewsReplaced.Add(int64(res.Replaced))
	return res
}

func (e *Engine) invalidate(ns querycache.Namespace, reason string) {
	e.invalidations.Add(1)
	e.logger.Info("invalidating namespace", "namespace", ns, "reason", reason)
	e.store.InvalidateNamespace(ns)
}

// Stats returns current statistics.
func (e *Engine) Stats() Stats {
	e.mergeMu.Lock()
	applied := e.applied
	e.mergeMu.Unlock()

	return Stats{
		Syncs:          e.syncs.Load(),
		InFlight:       e.inFlight.Load(),
		Generation:     e.generation.Load(),
		Applied:        applied,
		Merges:         e.merges.Load(),
		ViewsReplaced:  e.viewsReplaced.Load(),
		Invalidations:  e.invalidations.Load(),
		StaleDiscarded: e.staleDiscarded.Load(),
		Fetch:          e.fetcher.Stats(),
	}
}
