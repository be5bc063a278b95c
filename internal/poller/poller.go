package poller

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ordersync/internal/batchsync"
	"github.com/rickgao/ordersync/internal/querycache"
)

// ViewSource lists the cached views of a namespace.
type ViewSource interface {
	Views(ns querycache.Namespace) []querycache.View
}

// Syncer fetches ids and merges them into the views of its namespace.
type Syncer interface {
	Namespace() querycache.Namespace
	Sync(ctx context.Context, ids []string) batchsync.SyncResult
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval; 0 disables the poller
	ChunkSize   int           // Ids per Sync call (default: 200)
	Concurrency int           // Max concurrent Sync calls (default: 2)
	Timeout     time.Duration // Per-chunk timeout (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		ChunkSize:   200,
		Concurrency: 2,
		Timeout:     30 * time.Second,
	}
}

// Stats contains poller statistics.
type Stats struct {
	Cycles   int64
	Synced   int64 // Ids sent to Sync
	Fetched  int64 // Orders returned by the reader
	LastPoll time.Time
}

// Poller periodically resyncs every order held in cached views.
type Poller struct {
	cfg    Config
	views  ViewSource
	syncer Syncer
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles   atomic.Int64
	synced   atomic.Int64
	fetched  atomic.Int64
	lastPoll atomic.Int64 // unix nanos
}

// New creates a new Poller.
func New(cfg Config, views ViewSource, syncer Syncer, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:    cfg,
		views:  views,
		syncer: syncer,
		logger: logger.With("component", "poller"),
	}
}

// Start begins the polling loop. It does nothing when Interval is 0.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Interval <= 0 {
		p.logger.Info("resync poller disabled")
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("resync poller started",
		"interval", p.cfg.Interval,
		"chunk_size", p.cfg.ChunkSize,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("resync poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	s := Stats{
		Cycles:  p.cycles.Load(),
		Synced:  p.synced.Load(),
		Fetched: p.fetched.Load(),
	}
	if ns := p.lastPoll.Load(); ns != 0 {
		s.LastPoll = time.Unix(0, ns)
	}
	return s
}

// run is the main polling loop. The first poll waits one interval; the
// views were just loaded when the process started.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(p.ctx)
		}
	}
}

// pollAll resyncs the ids of every cached view in chunks.
func (p *Poller) pollAll(ctx context.Context) {
	start := time.Now()
	p.cycles.Add(1)
	p.lastPoll.Store(start.UnixNano())

	ids := p.collectIDs()
	if len(ids) == 0 {
		p.logger.Debug("no cached orders to resync")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	var fetched atomic.Int64
	for chunk := range slices.Chunk(ids, p.cfg.ChunkSize) {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			cctx, cancel := context.WithTimeout(gctx, p.cfg.Timeout)
			defer cancel()

			res := p.syncer.Sync(cctx, chunk)
			fetched.Add(int64(res.Fetched))
			return nil
		})
	}
	g.Wait()

	p.synced.Add(int64(len(ids)))
	p.fetched.Add(fetched.Load())

	p.logger.Info("resync cycle complete",
		"ids", len(ids),
		"fetched", fetched.Load(),
		"duration", time.Since(start),
	)
}

// collectIDs returns the distinct ids across all views, in view order.
func (p *Poller) collectIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, v := range p.views.Views(p.syncer.Namespace()) {
		for _, o := range v.Orders {
			if _, ok := seen[o.ID]; ok {
				continue
			}
			seen[o.ID] = struct{}{}
			ids = append(ids, o.ID)
		}
	}
	return ids
}
