package connection

import (
	"errors"
	"time"

	"github.com/rickgao/ordersync/internal/events"
	"github.com/rickgao/ordersync/internal/router"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// State is the connection state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	}
	return "unknown"
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://pos.example.com/realtime)
	Credential       string        // Bearer token sent in the Authorization header (empty = anonymous)
	UserAgent        string        // Optional User-Agent header
	HandshakeTimeout time.Duration // Dial + upgrade timeout
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     25 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client               ClientConfig     // Template for each dial; Credential is filled from Connect
	ReconnectBaseWait    time.Duration    // Base wait time for reconnection
	ReconnectMaxWait     time.Duration    // Max wait time for reconnection
	ReconnectFailedAfter int              // Emit ReconnectFailed every N consecutive failures (0 = never)
	Events               events.WireNames // Transport event names for order events
	Dispatch             router.Config
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:            DefaultClientConfig(),
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  30 * time.Second,
		Events:            events.DefaultWireNames(),
		Dispatch:          router.DefaultConfig(),
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State        State
	Attempts     int64 // Dials since construction
	Reconnects   int64 // Successful dials after a drop or failure
	FramesIn     int64
	DecodeErrors int64
	EmitsSent    int64
	EmitsDropped int64
	Dispatch     router.Stats
}
