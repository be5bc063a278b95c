package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/ordersync/internal/model"
)

// Cache stores views in a TTL cache. All methods are safe for concurrent use.
type Cache struct {
	cfg    Config
	logger *slog.Logger
	store  *gocache.Cache
	loads  singleflight.Group

	mu      sync.RWMutex
	loaders map[Namespace]Loader
	hooks   []InvalidateHook
	epochs  map[Namespace]uint64 // Bumped by InvalidateNamespace; loads started in an older epoch are not stored

	hits          atomic.Int64
	misses        atomic.Int64
	loadCount     atomic.Int64
	loadErrors    atomic.Int64
	replaces      atomic.Int64
	staleReplaces atomic.Int64
	invalidations atomic.Int64
	removed       atomic.Int64
}

// New creates a Cache. A zero CleanupInterval starts no background goroutine.
func New(cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}

	c := &Cache{
		cfg:     cfg,
		logger:  logger.With("component", "querycache"),
		store:   gocache.New(ttl, cfg.CleanupInterval),
		loaders: make(map[Namespace]Loader),
		epochs:  make(map[Namespace]uint64),
	}
	c.store.OnEvicted(func(string, interface{}) {
		c.removed.Add(1)
	})
	return c
}

// Register sets the loader used by Query on a miss.
func (c *Cache) Register(ns Namespace, loader Loader) {
	c.mu.Lock()
	c.loaders[ns] = loader
	c.mu.Unlock()
}

// OnInvalidate registers a hook called after every InvalidateNamespace.
func (c *Cache) OnInvalidate(hook InvalidateHook) {
	c.mu.Lock()
	c.hooks = append(c.hooks, hook)
	c.mu.Unlock()
}

// Query returns the view for params, loading it on a miss.
// Concurrent misses for the same view share one load.
func (c *Cache) Query(ctx context.Context, ns Namespace, params Params) ([]model.Order, error) {
	k := key(ns, params)

	if v, ok := c.get(k); ok {
		c.hits.Add(1)
		return v.Orders, nil
	}
	c.misses.Add(1)

	res, err, _ := c.loads.Do(k, func() (interface{}, error) {
		return c.load(ctx, ns, params)
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.Order), nil
}

// Reload runs the loader for params and stores the result, replacing any
// existing view.
func (c *Cache) Reload(ctx context.Context, ns Namespace, params Params) error {
	_, err := c.load(ctx, ns, params)
	return err
}

func (c *Cache) load(ctx context.Context, ns Namespace, params Params) ([]model.Order, error) {
	c.mu.RLock()
	loader, ok := c.loaders[ns]
	epoch := c.epochs[ns]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLoader, ns)
	}

	c.loadCount.Add(1)
	orders, err := loader(ctx, params)
	if err != nil {
		c.loadErrors.Add(1)
		return nil, fmt.Errorf("load %s view %q: %w", ns, params.Key(), err)
	}

	now := time.Now()
	c.mu.RLock()
	current := c.epochs[ns] == epoch
	if current {
		c.store.Set(key(ns, params), View{
			Namespace: ns,
			Params:    params,
			Orders:    orders,
			LoadedAt:  now,
			UpdatedAt: now,
		}, gocache.DefaultExpiration)
	}
	c.mu.RUnlock()

	if !current {
		c.logger.Debug("discarding load from before invalidation",
			"namespace", ns,
			"params", params.Key(),
		)
	}

	return orders, nil
}

// Get returns the cached view without loading.
func (c *Cache) Get(ns Namespace, params Params) (View, bool) {
	return c.get(key(ns, params))
}

func (c *Cache) get(k string) (View, bool) {
	obj, ok := c.store.Get(k)
	if !ok {
		return View{}, false
	}
	return obj.(View), true
}

// Views returns every live view in ns, ordered by params key.
func (c *Cache) Views(ns Namespace) []View {
	prefix := string(ns) + "|"

	var views []View
	for k, item := range c.store.Items() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if v, ok := item.Object.(View); ok {
			views = append(views, v)
		}
	}

	slices.SortFunc(views, func(a, b View) int {
		return strings.Compare(a.Params.Key(), b.Params.Key())
	})
	return views
}

// Replace overwrites the orders of an existing view. It returns false if the
// view has expired or been invalidated in the meantime.
func (c *Cache) Replace(ns Namespace, params Params, orders []model.Order) bool {
	k := key(ns, params)

	c.mu.RLock()
	defer c.mu.RUnlock()

	prev, ok := c.get(k)
	if !ok {
		c.staleReplaces.Add(1)
		return false
	}

	prev.Orders = orders
	prev.UpdatedAt = time.Now()
	if err := c.store.Replace(k, prev, gocache.DefaultExpiration); err != nil {
		c.staleReplaces.Add(1)
		return false
	}

	c.replaces.Add(1)
	return true
}

// InvalidateNamespace drops every view in ns and runs the invalidation hooks.
// It returns the params of the dropped views.
func (c *Cache) InvalidateNamespace(ns Namespace) []Params {
	prefix := string(ns) + "|"

	c.mu.Lock()
	c.epochs[ns]++
	var dropped []Params
	for k, item := range c.store.Items() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if v, ok := item.Object.(View); ok {
			dropped = append(dropped, v.Params)
		}
		c.store.Delete(k)
	}
	hooks := slices.Clone(c.hooks)
	c.mu.Unlock()

	c.invalidations.Add(1)
	slices.SortFunc(dropped, func(a, b Params) int {
		return strings.Compare(a.Key(), b.Key())
	})

	c.logger.Debug("invalidated namespace", "namespace", ns, "views", len(dropped))

	for _, h := range hooks {
		h(ns, dropped)
	}
	return dropped
}

// Stats returns current statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		Views:         c.store.ItemCount(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Loads:         c.loadCount.Load(),
		LoadErrors:    c.loadErrors.Load(),
		Replaces:      c.replaces.Load(),
		StaleReplaces: c.staleReplaces.Load(),
		Invalidations: c.invalidations.Load(),
		Removed:       c.removed.Load(),
	}
}
