package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/ordersync/internal/batchsync"
	"github.com/rickgao/ordersync/internal/coalesce"
	"github.com/rickgao/ordersync/internal/connection"
	"github.com/rickgao/ordersync/internal/events"
	"github.com/rickgao/ordersync/internal/notify"
	"github.com/rickgao/ordersync/internal/querycache"
	"github.com/rickgao/ordersync/internal/router"
)

// Invalidator drops every view of a namespace.
type Invalidator interface {
	InvalidateNamespace(ns querycache.Namespace) []querycache.Params
}

// Deps are the collaborators a Session binds together.
type Deps struct {
	Manager  *connection.Manager
	Queue    *coalesce.Queue
	Engine   *batchsync.Engine
	Cache    Invalidator
	Notifier notify.Notifier // nil = notify.Nop
}

// Stats contains session statistics.
type Stats struct {
	ID           uuid.UUID
	Active       bool
	Watchers     int64
	FlushDropped int64 // Batches flushed after Stop and not synced
	Connection   connection.ManagerStats
	Queue        coalesce.Stats
	Sync         batchsync.Stats
}

// Session is the process-wide binding of one authenticated connection.
type Session struct {
	id       uuid.UUID
	manager  *connection.Manager
	queue    *coalesce.Queue
	engine   *batchsync.Engine
	cache    Invalidator
	notifier notify.Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	active   bool
	watchers map[*Watcher]struct{} // Attached since the last Stop

	flushDropped atomic.Int64
}

type registration struct {
	kind events.Kind
	id   router.ListenerID
}

// New creates a Session and wires queue flushes into the sync engine.
func New(deps Deps, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	id := uuid.New()
	s := &Session{
		id:       id,
		manager:  deps.Manager,
		queue:    deps.Queue,
		engine:   deps.Engine,
		cache:    deps.Cache,
		notifier: deps.Notifier,
		logger:   logger.With("component", "session", "session", id),
		watchers: make(map[*Watcher]struct{}),
	}

	s.queue.OnFlush(s.handleFlush)
	return s
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Start connects with credential and registers the status toasts.
// Calling Start on a started session is a no-op.
func (s *Session) Start(ctx context.Context, credential string) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	s.registerLifecycle()

	s.logger.Info("session starting")
	s.manager.Connect(ctx, credential)
}

// Stop disconnects, which removes every listener, and discards pending ids.
// No batch is synced after Stop returns until Start is called again.
// Fetches already in flight finish and merge.
//
// Watchers are detached by Stop and receive nothing after a later Start;
// callers must Watch again. Closing a detached watcher is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	clear(s.watchers)
	s.mu.Unlock()

	s.manager.Disconnect()
	s.queue.Clear()

	s.logger.Info("session stopped")
}

// Active reports whether the session has been started and not stopped.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State returns the connection state.
func (s *Session) State() connection.State {
	return s.manager.State()
}

// Emit forwards an event to the server, best effort.
func (s *Session) Emit(event string, payload any) {
	s.manager.Emit(event, payload)
}

// Stats returns current statistics.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	active, watchers := s.active, len(s.watchers)
	s.mu.Unlock()

	return Stats{
		ID:           s.id,
		Active:       active,
		Watchers:     int64(watchers),
		FlushDropped: s.flushDropped.Load(),
		Connection:   s.manager.Stats(),
		Queue:        s.queue.Stats(),
		Sync:         s.engine.Stats(),
	}
}

func (s *Session) handleFlush(ids []string) {
	if !s.Active() {
		s.flushDropped.Add(1)
		s.logger.Debug("dropping flush after stop", "count", len(ids))
		return
	}
	s.engine.Go(ids)
}

// registerLifecycle adds the listeners that drive status toasts. They only
// inform the user; connection state is owned by the manager. Disconnect
// removes them.
func (s *Session) registerLifecycle() {
	connection.Listen(s.manager, func(e events.Connected) {
		if e.Attempt > 1 {
			s.notifier.Toast(notify.LevelSuccess, "Real-time updates reconnected")
			return
		}
		s.notifier.Toast(notify.LevelSuccess, "Real-time updates connected")
	})
	connection.Listen(s.manager, func(e events.Disconnected) {
		s.notifier.Toast(notify.LevelWarning, fmt.Sprintf("Real-time connection lost (%s)", e.Reason))
	})
	connection.Listen(s.manager, func(e events.ReconnectAttempt) {
		s.notifier.Toast(notify.LevelInfo, fmt.Sprintf("Reconnecting (attempt %d)", e.Attempt))
	})
	connection.Listen(s.manager, func(events.ConnectError) {
		s.notifier.Toast(notify.LevelError, "Real-time connection error")
	})
	connection.Listen(s.manager, func(e events.ReconnectFailed) {
		s.notifier.Toast(notify.LevelError, fmt.Sprintf("Could not reconnect after %d attempts, still trying", e.Attempts))
	})
}
