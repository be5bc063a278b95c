package session

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/ordersync/internal/batchsync"
	"github.com/rickgao/ordersync/internal/coalesce"
	"github.com/rickgao/ordersync/internal/connection"
	"github.com/rickgao/ordersync/internal/model"
	"github.com/rickgao/ordersync/internal/notify"
	"github.com/rickgao/ordersync/internal/querycache"
)

// fakeClient is an in-memory transport.
type fakeClient struct {
	messages  chan connection.TimestampedMessage
	errs      chan error
	connected atomic.Bool
}

func newFakeClient() *fakeClient {
	c := &fakeClient{
		messages: make(chan connection.TimestampedMessage, 100),
		errs:     make(chan error, 1),
	}
	c.connected.Store(true)
	return c
}

func (c *fakeClient) Connect(context.Context) error { return nil }
func (c *fakeClient) Close() error                  { c.connected.Store(false); return nil }
func (c *fakeClient) Send([]byte) error             { return nil }
func (c *fakeClient) IsConnected() bool             { return c.connected.Load() }

func (c *fakeClient) Messages() <-chan connection.TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                           { return c.errs }

func (c *fakeClient) push(frame string) {
	c.messages <- connection.TimestampedMessage{Data: []byte(frame), ReceivedAt: time.Now()}
}

// recordingNotifier counts reactions.
type recordingNotifier struct {
	mu     sync.Mutex
	chimes int
	toasts []string
}

func (n *recordingNotifier) Chime() {
	n.mu.Lock()
	n.chimes++
	n.mu.Unlock()
}

func (n *recordingNotifier) Toast(level notify.Level, msg string) {
	n.mu.Lock()
	n.toasts = append(n.toasts, string(level)+": "+msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) snapshot() (int, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.chimes, slices.Clone(n.toasts)
}

// bulkReader records each bulk call.
type bulkReader struct {
	mu    sync.Mutex
	calls [][]string
	done  chan struct{}
}

func (r *bulkReader) GetOrder(ctx context.Context, id string) (model.Order, error) {
	return model.Order{ID: id, Status: model.StatusReady}, nil
}

func (r *bulkReader) GetOrders(ctx context.Context, ids []string) ([]model.Order, error) {
	r.mu.Lock()
	r.calls = append(r.calls, slices.Clone(ids))
	r.mu.Unlock()
	r.done <- struct{}{}

	out := make([]model.Order, len(ids))
	for i, id := range ids {
		out[i] = model.Order{ID: id, Status: model.StatusReady}
	}
	return out, nil
}

func (r *bulkReader) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

type harness struct {
	session  *Session
	client   *fakeClient
	dials    atomic.Int32
	cache    *querycache.Cache
	reader   *bulkReader
	notifier *recordingNotifier
}

func newHarness(t *testing.T, quiescence time.Duration) *harness {
	t.Helper()

	h := &harness{
		client:   newFakeClient(),
		reader:   &bulkReader{done: make(chan struct{}, 100)},
		notifier: &recordingNotifier{},
	}

	mcfg := connection.DefaultManagerConfig()
	mcfg.ReconnectBaseWait = time.Millisecond
	mcfg.ReconnectMaxWait = time.Millisecond
	manager := connection.NewManager(mcfg, func(ctx context.Context, credential string) (connection.Client, error) {
		h.dials.Add(1)
		return h.client, nil
	}, nil)

	h.cache = querycache.New(querycache.Config{TTL: time.Minute}, nil)
	h.cache.Register(querycache.OrdersNamespace, func(context.Context, querycache.Params) ([]model.Order, error) {
		return []model.Order{{ID: "A", Status: model.StatusPending}}, nil
	})
	if _, err := h.cache.Query(context.Background(), querycache.OrdersNamespace, querycache.Params{}); err != nil {
		t.Fatalf("seed view: %v", err)
	}

	engine := batchsync.NewEngine(batchsync.DefaultConfig(), h.reader, h.cache, nil)
	queue := coalesce.New(coalesce.Config{Quiescence: quiescence}, nil)

	h.session = New(Deps{
		Manager:  manager,
		Queue:    queue,
		Engine:   engine,
		Cache:    h.cache,
		Notifier: h.notifier,
	}, nil)

	t.Cleanup(func() {
		h.session.Stop()
		engine.Wait()
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.session.Start(context.Background(), "token")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.session.manager.WaitForState(ctx, connection.StateConnected); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSession_CreationReactionsAndCoalescedSync(t *testing.T) {
	h := newHarness(t, 100*time.Millisecond)

	var mu sync.Mutex
	var created []string
	w := h.session.Watch(WatchOptions{OnCreated: func(id string) {
		mu.Lock()
		created = append(created, id)
		mu.Unlock()
	}})
	defer w.Close()

	h.start(t)

	h.client.push(`{"event":"order-created","data":"B"}`)
	h.client.push(`{"event":"order-updated","data":{"entityId":"A"}}`)
	h.client.push(`{"event":"order-updated","data":"B"}`)
	h.client.push(`{"event":"order-created","data":{"_id":"C"}}`)

	select {
	case <-h.reader.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for batch fetch")
	}
	h.session.engine.Wait()

	calls := h.reader.snapshot()
	if len(calls) != 1 || !slices.Equal(calls[0], []string{"B", "A", "C"}) {
		t.Fatalf("bulk calls = %v, want one call [B A C]", calls)
	}

	mu.Lock()
	gotCreated := slices.Clone(created)
	mu.Unlock()
	if !slices.Equal(gotCreated, []string{"B", "C"}) {
		t.Errorf("OnCreated = %v, want [B C]", gotCreated)
	}

	chimes, _ := h.notifier.snapshot()
	if chimes != 2 {
		t.Errorf("chimes = %d, want 2", chimes)
	}

	v, ok := h.cache.Get(querycache.OrdersNamespace, querycache.Params{})
	if !ok {
		t.Fatal("view missing")
	}
	got := make([]string, len(v.Orders))
	for i, o := range v.Orders {
		got[i] = o.ID + ":" + o.Status
	}
	if want := []string{"A:ready", "B:ready", "C:ready"}; !slices.Equal(got, want) {
		t.Errorf("view = %v, want %v", got, want)
	}
}

func TestSession_StartIsIdempotent(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.start(t)
	h.session.Start(context.Background(), "token")
	h.session.Start(context.Background(), "token")

	time.Sleep(20 * time.Millisecond)
	if n := h.dials.Load(); n != 1 {
		t.Errorf("dials = %d, want 1", n)
	}

	waitFor(t, "connected toast", func() bool {
		_, toasts := h.notifier.snapshot()
		return slices.Contains(toasts, "success: Real-time updates connected")
	})
}

func TestSession_WatcherCloseKeepsConnection(t *testing.T) {
	h := newHarness(t, time.Hour)

	var first, second atomic.Int32
	w1 := h.session.Watch(WatchOptions{Silent: true, OnUpdated: func(string) { first.Add(1) }})
	w2 := h.session.Watch(WatchOptions{Silent: true, OnUpdated: func(string) { second.Add(1) }})
	defer w2.Close()

	h.start(t)

	w1.Close()
	w1.Close()

	h.client.push(`{"event":"order-updated","data":"A"}`)
	waitFor(t, "second watcher", func() bool { return second.Load() == 1 })

	if first.Load() != 0 {
		t.Errorf("closed watcher received %d events", first.Load())
	}
	if h.session.State() != connection.StateConnected {
		t.Errorf("State = %v, want connected", h.session.State())
	}
	if n := h.session.Stats().Watchers; n != 1 {
		t.Errorf("Watchers = %d, want 1", n)
	}
}

func TestSession_Refetch(t *testing.T) {
	h := newHarness(t, time.Hour)
	w := h.session.Watch(WatchOptions{})
	defer w.Close()

	w.Refetch()

	if _, ok := h.cache.Get(querycache.OrdersNamespace, querycache.Params{}); ok {
		t.Error("view survived Refetch")
	}
	if len(h.reader.snapshot()) != 0 {
		t.Error("Refetch must not go through the batch fetch")
	}
}

func TestSession_StopDiscardsPending(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	w := h.session.Watch(WatchOptions{Silent: true})
	defer w.Close()

	h.start(t)

	h.client.push(`{"event":"order-updated","data":"A"}`)
	waitFor(t, "queued id", func() bool { return h.session.queue.Len() == 1 })

	h.session.Stop()

	if h.session.queue.Len() != 0 {
		t.Errorf("queue Len after Stop = %d, want 0", h.session.queue.Len())
	}
	if h.session.State() != connection.StateDisconnected {
		t.Errorf("State = %v, want disconnected", h.session.State())
	}

	time.Sleep(150 * time.Millisecond)
	if calls := h.reader.snapshot(); len(calls) != 0 {
		t.Errorf("fetch after Stop: %v", calls)
	}
	if h.session.Active() {
		t.Error("session still active")
	}
}

func TestSession_FlushAfterStopIsDropped(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.start(t)
	h.session.Stop()

	// Nothing is listening any more; feed the queue directly.
	h.session.queue.Invalidate("A")
	h.session.queue.Flush()

	if calls := h.reader.snapshot(); len(calls) != 0 {
		t.Errorf("fetch after Stop: %v", calls)
	}
	if n := h.session.Stats().FlushDropped; n != 1 {
		t.Errorf("FlushDropped = %d, want 1", n)
	}
}

func TestSession_StopDetachesWatchers(t *testing.T) {
	h := newHarness(t, time.Hour)

	var before, after atomic.Int32
	old := h.session.Watch(WatchOptions{Silent: true, OnUpdated: func(string) { before.Add(1) }})
	h.start(t)

	h.session.Stop()
	if n := h.session.Stats().Watchers; n != 0 {
		t.Errorf("Watchers after Stop = %d, want 0", n)
	}
	old.Close()
	if n := h.session.Stats().Watchers; n != 0 {
		t.Errorf("Watchers after closing a detached watcher = %d, want 0", n)
	}

	h.client = newFakeClient()
	h.start(t)
	fresh := h.session.Watch(WatchOptions{Silent: true, OnUpdated: func(string) { after.Add(1) }})
	defer fresh.Close()

	h.client.push(`{"event":"order-updated","data":"A"}`)
	waitFor(t, "re-created watcher", func() bool { return after.Load() == 1 })

	if before.Load() != 0 {
		t.Errorf("watcher from before Stop received %d events", before.Load())
	}
	if n := h.session.Stats().Watchers; n != 1 {
		t.Errorf("Watchers = %d, want 1", n)
	}
}
