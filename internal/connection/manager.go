package connection

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/ordersync/internal/events"
	"github.com/rickgao/ordersync/internal/router"
)

// Manager owns the single realtime connection of a session.
//
// Listeners are registered on the Manager rather than on a transport, so they
// keep firing across reconnections. Only Disconnect clears them.
type Manager struct {
	cfg        ManagerConfig
	dial       Dialer
	logger     *slog.Logger
	dispatcher *router.Dispatcher

	mu           sync.RWMutex
	state        State
	stateChanged chan struct{}
	stateHooks   []func(from, to State)
	client       Client
	credential   string
	cancel       context.CancelFunc
	done         chan struct{}

	attempts     atomic.Int64
	reconnects   atomic.Int64
	framesIn     atomic.Int64
	decodeErrors atomic.Int64
	emitsSent    atomic.Int64
	emitsDropped atomic.Int64
}

// NewManager creates a Manager. Nothing is dialed until Connect.
func NewManager(cfg ManagerConfig, dial Dialer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if dial == nil {
		dial = WebSocketDialer(cfg.Client, logger)
	}
	if cfg.Events.Created == "" || cfg.Events.Updated == "" {
		def := events.DefaultWireNames()
		if cfg.Events.Created == "" {
			cfg.Events.Created = def.Created
		}
		if cfg.Events.Updated == "" {
			cfg.Events.Updated = def.Updated
		}
	}

	return &Manager{
		cfg:          cfg,
		dial:         dial,
		logger:       logger.With("component", "connection"),
		dispatcher:   router.NewDispatcher(cfg.Dispatch, logger),
		state:        StateDisconnected,
		stateChanged: make(chan struct{}),
	}
}

// Connect starts the session's connection loop and returns immediately.
// It is a no-op while a loop is already running, whatever its state.
func (m *Manager) Connect(ctx context.Context, credential string) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		m.logger.Debug("connect ignored, session active", "state", m.State())
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.credential = credential
	m.cancel = cancel
	m.done = done
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	m.dispatcher.Start()

	go m.run(runCtx, done)
}

// Disconnect stops the connection loop, closes the transport and removes
// every listener. It is safe to call from inside a listener.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	m.dispatcher.Clear()
	m.dispatcher.Stop()

	m.mu.Lock()
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	m.logger.Info("disconnected")
}

// On registers handler for kind.
func (m *Manager) On(kind events.Kind, handler router.Handler) router.ListenerID {
	return m.dispatcher.Add(kind, handler)
}

// Off removes one listener.
func (m *Manager) Off(kind events.Kind, id router.ListenerID) bool {
	return m.dispatcher.Remove(kind, id)
}

// OffAll removes every listener for kind.
func (m *Manager) OffAll(kind events.Kind) {
	m.dispatcher.RemoveAll(kind)
}

// Listen registers a handler that receives only events of type E.
func Listen[E events.Event](m *Manager, fn func(E)) router.ListenerID {
	return router.Listen(m.dispatcher, fn)
}

// Emit sends an event to the server. Delivery is best effort: failures are
// logged and counted, never returned.
func (m *Manager) Emit(event string, payload any) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		m.emitsDropped.Add(1)
		m.logger.Warn("emit while not connected", "event", event)
		return
	}

	data, err := events.Encode(event, payload)
	if err != nil {
		m.emitsDropped.Add(1)
		m.logger.Error("failed to encode emit", "event", event, "error", err)
		return
	}

	if err := client.Send(data); err != nil {
		m.emitsDropped.Add(1)
		m.logger.Warn("emit failed", "event", event, "error", err)
		return
	}
	m.emitsSent.Add(1)
}

// IsConnected returns true while a transport is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Attempts returns the number of dials made since construction.
func (m *Manager) Attempts() int64 {
	return m.attempts.Load()
}

// WaitForState blocks until the manager reaches want or ctx ends.
func (m *Manager) WaitForState(ctx context.Context, want State) error {
	for {
		m.mu.RLock()
		state, changed := m.state, m.stateChanged
		m.mu.RUnlock()

		if state == want {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// OnStateChange registers fn to observe every state transition, in order.
// Hooks run with the manager lock held and must not call back into the
// Manager. They are not cleared by Disconnect.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.mu.Lock()
	m.stateHooks = append(m.stateHooks, fn)
	m.mu.Unlock()
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		State:        m.State(),
		Attempts:     m.attempts.Load(),
		Reconnects:   m.reconnects.Load(),
		FramesIn:     m.framesIn.Load(),
		DecodeErrors: m.decodeErrors.Load(),
		EmitsSent:    m.emitsSent.Load(),
		EmitsDropped: m.emitsDropped.Load(),
		Dispatch:     m.dispatcher.Stats(),
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.setStateLocked(s)
	m.mu.Unlock()
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug("state change", "from", m.state, "to", s)
	from := m.state
	m.state = s
	close(m.stateChanged)
	m.stateChanged = make(chan struct{})

	for _, fn := range m.stateHooks {
		fn(from, s)
	}
}

func (m *Manager) setClient(c Client) {
	m.mu.Lock()
	m.client = c
	m.mu.Unlock()
}

// run dials, pumps frames and reconnects until ctx is cancelled.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.client = nil
		m.cancel = nil
		m.done = nil
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		close(done)
	}()

	var (
		dials        int // Dials in this session
		failures     int // Consecutive failed dials
		outage       int // Reconnect attempts in the current outage
		reconnecting bool
	)

	for ctx.Err() == nil {
		if reconnecting {
			outage++
			m.setState(StateReconnecting)
			m.dispatcher.Publish(events.ReconnectAttempt{Attempt: outage})
		}

		dials++
		m.attempts.Add(1)

		client, err := m.dial(ctx, m.credential)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			m.setState(StateError)
			m.dispatcher.Publish(events.ConnectError{Err: err})

			var hs *HandshakeError
			if errors.As(err, &hs) && hs.IsAuthRejected() {
				m.logger.Error("credential rejected", "status", hs.StatusCode, "attempt", dials)
			} else {
				m.logger.Warn("connect failed", "error", err, "attempt", dials)
			}

			if n := m.cfg.ReconnectFailedAfter; n > 0 && failures%n == 0 {
				m.logger.Error("reconnection failed", "attempts", failures)
				m.dispatcher.Publish(events.ReconnectFailed{Attempts: failures})
			}

			reconnecting = true
			if !sleepCtx(ctx, m.backoff(failures)) {
				return
			}
			continue
		}

		if reconnecting {
			m.reconnects.Add(1)
		}
		failures, outage = 0, 0

		m.setClient(client)
		m.setState(StateConnected)
		m.logger.Info("connected", "attempt", dials)
		m.dispatcher.Publish(events.Connected{Attempt: dials})

		reason := m.pump(ctx, client)

		m.setClient(nil)
		client.Close()

		if ctx.Err() != nil {
			return
		}

		m.logger.Warn("connection lost", "reason", reason)
		m.setState(StateDisconnected)
		m.dispatcher.Publish(events.Disconnected{Reason: reason})

		reconnecting = true
		if !sleepCtx(ctx, m.backoff(1)) {
			return
		}
	}
}

// pump decodes frames from client until the transport fails or ctx ends.
// Frames already queued when the transport fails are still delivered.
func (m *Manager) pump(ctx context.Context, client Client) string {
	for {
		select {
		case <-ctx.Done():
			return "io client disconnect"

		case msg := <-client.Messages():
			m.handleFrame(msg)

		case err := <-client.Errors():
			for {
				select {
				case msg := <-client.Messages():
					m.handleFrame(msg)
				default:
					return disconnectReason(err)
				}
			}
		}
	}
}

func (m *Manager) handleFrame(msg TimestampedMessage) {
	m.framesIn.Add(1)

	e, err := events.Decode(msg.Data, m.cfg.Events)
	if err != nil {
		if errors.Is(err, events.ErrUnknownEvent) {
			m.logger.Debug("ignoring frame", "error", err)
			return
		}
		m.decodeErrors.Add(1)
		m.logger.Warn("failed to decode frame", "error", err, "size", len(msg.Data))
		return
	}

	m.dispatcher.Publish(e)
}

// backoff returns the jittered wait before the next dial after n failures.
func (m *Manager) backoff(n int) time.Duration {
	base := m.cfg.ReconnectBaseWait
	if base <= 0 {
		return 0
	}
	maxWait := m.cfg.ReconnectMaxWait
	if maxWait < base {
		maxWait = base
	}

	wait := base
	for i := 1; i < n && wait < maxWait; i++ {
		wait *= 2
	}
	wait = min(wait, maxWait)

	// ±50% jitter, never above the cap
	jittered := wait/2 + time.Duration(rand.Int64N(int64(wait)))
	return min(jittered, maxWait)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
