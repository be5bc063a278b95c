package router

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/ordersync/internal/events"
)

// Handler receives one event.
type Handler func(events.Event)

// ListenerID identifies a single registration so it can be removed on its own.
type ListenerID = uuid.UUID

// Config holds Dispatcher configuration.
type Config struct {
	BufferSize int // Initial queue capacity; the queue grows as needed
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

type listener struct {
	id      ListenerID
	handler Handler
}

// Stats contains dispatcher statistics.
type Stats struct {
	Published      int64
	Delivered      int64
	Dropped        int64 // Published while stopped, or discarded on Stop
	ListenerPanics int64
	Listeners      int
	Queue          BufferStats
}

// Dispatcher routes events to listeners registered per event kind.
//
// The registry is independent of the delivery loop: listeners may be added
// before Start, survive Stop/Start cycles, and are only removed by Remove,
// RemoveAll or Clear.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[events.Kind][]listener

	loopMu  sync.Mutex
	queue   *Buffer[events.Event]
	running bool
	done    chan struct{}

	published      atomic.Int64
	delivered      atomic.Int64
	dropped        atomic.Int64
	listenerPanics atomic.Int64
}

// NewDispatcher creates a Dispatcher. Call Start to begin delivery.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:       cfg,
		logger:    logger,
		listeners: make(map[events.Kind][]listener),
	}
}

// Add registers handler for kind and returns its id.
func (d *Dispatcher) Add(kind events.Kind, handler Handler) ListenerID {
	id := uuid.New()

	d.mu.Lock()
	d.listeners[kind] = append(d.listeners[kind], listener{id: id, handler: handler})
	d.mu.Unlock()

	return id
}

// Remove unregisters one listener. Returns false if it was not registered.
func (d *Dispatcher) Remove(kind events.Kind, id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ls := d.listeners[kind]
	for i, l := range ls {
		if l.id == id {
			// Copy so snapshots held by the loop stay valid.
			next := make([]listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			if len(next) == 0 {
				delete(d.listeners, kind)
			} else {
				d.listeners[kind] = next
			}
			return true
		}
	}
	return false
}

// RemoveAll unregisters every listener for kind.
func (d *Dispatcher) RemoveAll(kind events.Kind) {
	d.mu.Lock()
	delete(d.listeners, kind)
	d.mu.Unlock()
}

// Clear unregisters every listener.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.listeners = make(map[events.Kind][]listener)
	d.mu.Unlock()
}

// Count returns the number of listeners for kind.
func (d *Dispatcher) Count(kind events.Kind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[kind])
}

// Start begins delivery. Calling Start on a running dispatcher is a no-op.
func (d *Dispatcher) Start() {
	d.loopMu.Lock()
	defer d.loopMu.Unlock()

	if d.running {
		return
	}

	d.queue = NewBuffer[events.Event](d.cfg.BufferSize)
	d.done = make(chan struct{})
	d.running = true

	go d.deliverLoop(d.queue, d.done)
}

// Stop halts delivery. Queued events that have not been delivered are
// discarded. Stop does not wait for an in-progress handler, so it is safe to
// call from inside a listener; use Done to wait for the loop to exit.
func (d *Dispatcher) Stop() {
	d.loopMu.Lock()
	if !d.running {
		d.loopMu.Unlock()
		return
	}
	queue := d.queue
	d.running = false
	d.loopMu.Unlock()

	d.dropped.Add(int64(queue.Discard()))
	queue.Close()
}

// Done returns a channel closed when the most recently started delivery loop exits.
func (d *Dispatcher) Done() <-chan struct{} {
	d.loopMu.Lock()
	defer d.loopMu.Unlock()
	if d.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return d.done
}

// Publish queues an event for delivery. Returns false if the dispatcher is stopped.
func (d *Dispatcher) Publish(e events.Event) bool {
	d.loopMu.Lock()
	queue, running := d.queue, d.running
	d.loopMu.Unlock()

	if !running || !queue.Send(e) {
		d.dropped.Add(1)
		return false
	}
	d.published.Add(1)
	return true
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	n := 0
	for _, ls := range d.listeners {
		n += len(ls)
	}
	d.mu.RUnlock()

	var qs BufferStats
	d.loopMu.Lock()
	if d.queue != nil {
		qs = d.queue.Stats()
	}
	d.loopMu.Unlock()

	return Stats{
		Published:      d.published.Load(),
		Delivered:      d.delivered.Load(),
		Dropped:        d.dropped.Load(),
		ListenerPanics: d.listenerPanics.Load(),
		Listeners:      n,
		Queue:          qs,
	}
}

// deliverLoop is the delivery goroutine for one Start/Stop cycle.
func (d *Dispatcher) deliverLoop(queue *Buffer[events.Event], done chan struct{}) {
	defer close(done)

	for {
		e, ok := queue.Receive()
		if !ok {
			return
		}
		d.deliver(e)
	}
}

// deliver calls every listener registered for the event's kind at the time
// the event is taken off the queue.
func (d *Dispatcher) deliver(e events.Event) {
	d.mu.RLock()
	ls := d.listeners[e.Kind()]
	d.mu.RUnlock()

	for _, l := range ls {
		d.call(l, e)
	}
	d.delivered.Add(1)
}

func (d *Dispatcher) call(l listener, e events.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.listenerPanics.Add(1)
			d.logger.Error("event listener panicked",
				"kind", e.Kind(),
				"listener", l.id,
				"panic", r,
			)
		}
	}()
	l.handler(e)
}

// Listen registers a handler that receives only events of type E.
func Listen[E events.Event](d *Dispatcher, fn func(E)) ListenerID {
	var zero E
	return d.Add(zero.Kind(), func(e events.Event) {
		if typed, ok := e.(E); ok {
			fn(typed)
		}
	})
}
