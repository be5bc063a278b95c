package batchsync

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rickgao/ordersync/internal/api"
	"github.com/rickgao/ordersync/internal/model"
)

// Fetcher reads order snapshots for a batch of ids.
type Fetcher struct {
	cfg     FetcherConfig
	reader  Reader
	limiter *rate.Limiter
	logger  *slog.Logger

	bulkUnsupported atomic.Bool

	bulkCalls     atomic.Int64
	bulkFailures  atomic.Int64
	pointCalls    atomic.Int64
	pointFailures atomic.Int64
	requested     atomic.Int64
	returned      atomic.Int64
}

// NewFetcher creates a Fetcher. If reader implements BulkReader the bulk path
// is tried first.
func NewFetcher(cfg FetcherConfig, reader Reader, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(cfg.Burst, 1))
	}

	return &Fetcher{
		cfg:     cfg,
		reader:  reader,
		limiter: limiter,
		logger:  logger.With("component", "fetcher"),
	}
}

// FetchMany returns the snapshots that could be read, in request order.
// Failures are logged and dropped; it never returns an error.
func (f *Fetcher) FetchMany(ctx context.Context, ids []string) []model.Order {
	if len(ids) == 0 {
		return nil
	}
	f.requested.Add(int64(len(ids)))

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	if bulk, ok := f.reader.(BulkReader); ok && !f.bulkUnsupported.Load() {
		f.bulkCalls.Add(1)
		orders, err := bulk.GetOrders(ctx, ids)
		if err == nil {
			out := keepRequested(ids, orders)
			f.returned.Add(int64(len(out)))
			return out
		}

		f.bulkFailures.Add(1)
		if errors.Is(err, api.ErrBulkUnsupported) {
			f.bulkUnsupported.Store(true)
			f.logger.Info("bulk read unsupported, using point reads", "error", err)
		} else {
			f.logger.Warn("bulk read failed, falling back to point reads",
				"error", err,
				"count", len(ids),
			)
		}
	}

	out := f.fetchEach(ctx, ids)
	f.returned.Add(int64(len(out)))
	return out
}

// fetchEach reads ids one at a time with bounded concurrency.
func (f *Fetcher) fetchEach(ctx context.Context, ids []string) []model.Order {
	results := make([]model.Order, len(ids))
	found := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)

	for i, id := range ids {
		g.Go(func() error {
			if f.limiter != nil {
				if err := f.limiter.Wait(gctx); err != nil {
					f.pointFailures.Add(1)
					f.logger.Debug("point read not attempted", "id", id, "error", err)
					return nil
				}
			}

			f.pointCalls.Add(1)
			o, err := f.reader.GetOrder(gctx, id)
			if err != nil {
				f.pointFailures.Add(1)
				f.logger.Warn("point read failed", "id", id, "error", err)
				return nil
			}

			results[i] = o
			found[i] = true
			return nil
		})
	}
	g.Wait()

	out := make([]model.Order, 0, len(ids))
	for i := range results {
		if found[i] {
			out = append(out, results[i])
		}
	}
	return out
}

// Stats returns current statistics.
func (f *Fetcher) Stats() FetchStats {
	return FetchStats{
		BulkCalls:       f.bulkCalls.Load(),
		BulkFailures:    f.bulkFailures.Load(),
		BulkUnsupported: f.bulkUnsupported.Load(),
		PointCalls:      f.pointCalls.Load(),
		PointFailures:   f.pointFailures.Load(),
		Requested:       f.requested.Load(),
		Returned:        f.returned.Load(),
	}
}

// keepRequested orders bulk results by request order and drops anything
// that was not asked for.
func keepRequested(ids []string, orders []model.Order) []model.Order {
	byID := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	out := make([]model.Order, 0, len(orders))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
			delete(byID, id)
		}
	}
	return out
}
