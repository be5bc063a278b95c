package batchsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/ordersync/internal/api"
	"github.com/rickgao/ordersync/internal/model"
)

// pointReader serves point reads from a map. Ids in fail return an error.
type pointReader struct {
	orders map[string]model.Order
	fail   map[string]bool
	delay  time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newPointReader(ids ...string) *pointReader {
	r := &pointReader{orders: map[string]model.Order{}, fail: map[string]bool{}}
	for _, id := range ids {
		r.orders[id] = order(id, model.StatusReady)
	}
	return r
}

func (r *pointReader) GetOrder(ctx context.Context, id string) (model.Order, error) {
	r.calls.Add(1)
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return model.Order{}, ctx.Err()
		}
	}

	if r.fail[id] {
		return model.Order{}, fmt.Errorf("read %s: boom", id)
	}
	o, ok := r.orders[id]
	if !ok {
		return model.Order{}, api.ErrOrderNotFound
	}
	return o, nil
}

// bulkReader adds a bulk path on top of pointReader.
type bulkReader struct {
	*pointReader
	bulkErr   error
	bulkCalls atomic.Int32
	mu        sync.Mutex
	lastIDs   []string
}

func (r *bulkReader) GetOrders(ctx context.Context, ids []string) ([]model.Order, error) {
	r.bulkCalls.Add(1)
	r.mu.Lock()
	r.lastIDs = ids
	r.mu.Unlock()

	if r.bulkErr != nil {
		return nil, r.bulkErr
	}

	var out []model.Order
	// Reverse order plus an extra id the caller did not ask for.
	for i := len(ids) - 1; i >= 0; i-- {
		if o, ok := r.orders[ids[i]]; ok && !r.fail[ids[i]] {
			out = append(out, o)
		}
	}
	out = append(out, order("unrequested", model.StatusReady))
	return out, nil
}

func testFetcherConfig() FetcherConfig {
	return FetcherConfig{Concurrency: 4, Timeout: time.Second}
}

func TestFetcher_Bulk(t *testing.T) {
	r := &bulkReader{pointReader: newPointReader("a", "b", "c")}
	f := NewFetcher(testFetcherConfig(), r, nil)

	got := f.FetchMany(context.Background(), []string{"a", "b", "missing", "c"})

	if d := describeOrders(got); d != "a:ready,b:ready,c:ready" {
		t.Errorf("fetched = %s, want request order without extras", d)
	}
	if r.bulkCalls.Load() != 1 || r.calls.Load() != 0 {
		t.Errorf("bulk calls = %d, point calls = %d; want 1, 0", r.bulkCalls.Load(), r.calls.Load())
	}
}

func TestFetcher_BulkFailureDegrades(t *testing.T) {
	r := &bulkReader{pointReader: newPointReader("a", "b"), bulkErr: errors.New("connection reset")}
	r.fail["b"] = true
	f := NewFetcher(testFetcherConfig(), r, nil)

	got := f.FetchMany(context.Background(), []string{"a", "b"})

	if d := describeOrders(got); d != "a:ready" {
		t.Errorf("fetched = %s, want a:ready", d)
	}
	if r.calls.Load() != 2 {
		t.Errorf("point calls = %d, want 2", r.calls.Load())
	}

	stats := f.Stats()
	if stats.BulkFailures != 1 || stats.PointFailures != 1 || stats.BulkUnsupported {
		t.Errorf("stats = %+v", stats)
	}

	// A transient bulk failure does not disable bulk.
	f.FetchMany(context.Background(), []string{"a"})
	if r.bulkCalls.Load() != 2 {
		t.Errorf("bulk calls = %d, want 2", r.bulkCalls.Load())
	}
}

func TestFetcher_BulkUnsupportedIsRemembered(t *testing.T) {
	r := &bulkReader{
		pointReader: newPointReader("a"),
		bulkErr:     fmt.Errorf("%w: 404", api.ErrBulkUnsupported),
	}
	f := NewFetcher(testFetcherConfig(), r, nil)

	f.FetchMany(context.Background(), []string{"a"})
	f.FetchMany(context.Background(), []string{"a"})

	if r.bulkCalls.Load() != 1 {
		t.Errorf("bulk calls = %d, want 1", r.bulkCalls.Load())
	}
	if !f.Stats().BulkUnsupported {
		t.Error("expected BulkUnsupported")
	}
}

func TestFetcher_PointReadsOnly(t *testing.T) {
	r := newPointReader("a", "b", "c", "d")
	r.fail["c"] = true
	f := NewFetcher(testFetcherConfig(), r, nil)

	got := f.FetchMany(context.Background(), []string{"d", "c", "b", "a"})
	if d := describeOrders(got); d != "d:ready,b:ready,a:ready" {
		t.Errorf("fetched = %s", d)
	}
}

func TestFetcher_TotalFailureReturnsEmpty(t *testing.T) {
	r := newPointReader()
	f := NewFetcher(testFetcherConfig(), r, nil)

	got := f.FetchMany(context.Background(), []string{"x", "y"})
	if len(got) != 0 {
		t.Errorf("fetched %d orders, want 0", len(got))
	}
}

func TestFetcher_EmptyIDs(t *testing.T) {
	r := newPointReader("a")
	f := NewFetcher(testFetcherConfig(), r, nil)

	if got := f.FetchMany(context.Background(), nil); got != nil {
		t.Errorf("FetchMany(nil) = %v, want nil", got)
	}
	if r.calls.Load() != 0 {
		t.Error("reader called for empty batch")
	}
}

func TestFetcher_ConcurrencyBound(t *testing.T) {
	var ids []string
	for i := range 20 {
		ids = append(ids, fmt.Sprintf("o%d", i))
	}
	r := newPointReader(ids...)
	r.delay = 10 * time.Millisecond

	cfg := testFetcherConfig()
	cfg.Concurrency = 3
	f := NewFetcher(cfg, r, nil)

	got := f.FetchMany(context.Background(), ids)
	if len(got) != 20 {
		t.Errorf("fetched %d, want 20", len(got))
	}
	if p := r.peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
}

func TestFetcher_RateLimit(t *testing.T) {
	r := newPointReader("a", "b", "c", "d", "e")

	cfg := testFetcherConfig()
	cfg.Rate = 50 // one every 20ms after the burst
	cfg.Burst = 1
	f := NewFetcher(cfg, r, nil)

	start := time.Now()
	got := f.FetchMany(context.Background(), []string{"a", "b", "c", "d", "e"})
	elapsed := time.Since(start)

	if len(got) != 5 {
		t.Errorf("fetched %d, want 5", len(got))
	}
	if elapsed < 60*time.Millisecond {
		t.Errorf("5 reads at 50/s took %v, expected pacing", elapsed)
	}
}

func TestFetcher_Timeout(t *testing.T) {
	r := newPointReader("a")
	r.delay = time.Second

	cfg := testFetcherConfig()
	cfg.Timeout = 20 * time.Millisecond
	f := NewFetcher(cfg, r, nil)

	start := time.Now()
	got := f.FetchMany(context.Background(), []string{"a"})
	if len(got) != 0 {
		t.Errorf("fetched %d, want 0", len(got))
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout not applied")
	}
}
