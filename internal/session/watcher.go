package session

import (
	"fmt"
	"sync"

	"github.com/rickgao/ordersync/internal/connection"
	"github.com/rickgao/ordersync/internal/events"
	"github.com/rickgao/ordersync/internal/notify"
)

// WatchOptions configures a Watcher.
type WatchOptions struct {
	OnCreated func(orderID string) // Called once per creation, before any batching
	OnUpdated func(orderID string)
	Silent    bool // No chime or toast on creation
}

// Watcher is one screen's attachment to the session.
type Watcher struct {
	s    *Session
	opts WatchOptions

	once sync.Once
	regs []registration
}

// Watch registers for order created and updated events. Every event
// invalidates its order in the coalescing queue; a creation additionally
// chimes, toasts and calls OnCreated right away.
//
// A watcher lives until Close or the session's Stop, whichever comes first.
// Watchers must be re-created after Stop.
func (s *Session) Watch(opts WatchOptions) *Watcher {
	w := &Watcher{s: s, opts: opts}

	w.regs = []registration{
		{events.KindOrderCreated, connection.Listen(s.manager, w.onCreated)},
		{events.KindOrderUpdated, connection.Listen(s.manager, w.onUpdated)},
	}

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	return w
}

func (w *Watcher) onCreated(e events.OrderCreated) {
	w.s.queue.Invalidate(e.OrderID)

	if !w.opts.Silent {
		w.s.notifier.Chime()
		w.s.notifier.Toast(notify.LevelSuccess, fmt.Sprintf("New order received (%s)", e.OrderID))
	}
	if w.opts.OnCreated != nil {
		w.opts.OnCreated(e.OrderID)
	}
}

func (w *Watcher) onUpdated(e events.OrderUpdated) {
	w.s.queue.Invalidate(e.OrderID)

	if w.opts.OnUpdated != nil {
		w.opts.OnUpdated(e.OrderID)
	}
}

// Refetch drops every cached view of the namespace, bypassing the queue.
func (w *Watcher) Refetch() {
	w.s.cache.InvalidateNamespace(w.s.engine.Namespace())
}

// Close removes this watcher's listeners. The connection stays open.
func (w *Watcher) Close() {
	w.once.Do(func() {
		for _, r := range w.regs {
			w.s.manager.Off(r.kind, r.id)
		}
		w.s.mu.Lock()
		delete(w.s.watchers, w)
		w.s.mu.Unlock()
	})
}
