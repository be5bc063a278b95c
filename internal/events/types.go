package events

import "errors"

// Errors
var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrMissingOrderID = errors.New("payload carries no order id")
)

// Kind names an event. Listeners are registered per Kind.
type Kind string

const (
	KindConnected        Kind = "connect"
	KindDisconnected     Kind = "disconnect"
	KindConnectError     Kind = "connect_error"
	KindReconnectAttempt Kind = "reconnect_attempt"
	KindReconnectFailed  Kind = "reconnect_failed"
	KindOrderCreated     Kind = "order_created"
	KindOrderUpdated     Kind = "order_updated"
)

// Event is implemented only by the types in this package.
type Event interface {
	Kind() Kind
	sealed()
}

// Connected is delivered when the transport acknowledges a connection.
type Connected struct {
	Attempt int // Connect attempt that succeeded (1 = first dial of the session)
}

// Disconnected is delivered when an established connection drops.
type Disconnected struct {
	Reason string // e.g. "transport close", "ping timeout"
}

// ConnectError is delivered when a dial fails.
type ConnectError struct {
	Err error
}

// ReconnectAttempt is delivered before each reconnection dial.
type ReconnectAttempt struct {
	Attempt int // 1-based within the current outage
}

// ReconnectFailed is delivered when a full round of reconnection attempts
// has failed. Attempts continue afterwards.
type ReconnectFailed struct {
	Attempts int
}

// OrderCreated is pushed when the server creates an order.
type OrderCreated struct {
	OrderID string
}

// OrderUpdated is pushed when the server mutates an order.
type OrderUpdated struct {
	OrderID string
}

func (Connected) Kind() Kind        { return KindConnected }
func (Disconnected) Kind() Kind     { return KindDisconnected }
func (ConnectError) Kind() Kind     { return KindConnectError }
func (ReconnectAttempt) Kind() Kind { return KindReconnectAttempt }
func (ReconnectFailed) Kind() Kind  { return KindReconnectFailed }
func (OrderCreated) Kind() Kind     { return KindOrderCreated }
func (OrderUpdated) Kind() Kind     { return KindOrderUpdated }

func (Connected) sealed()        {}
func (Disconnected) sealed()     {}
func (ConnectError) sealed()     {}
func (ReconnectAttempt) sealed() {}
func (ReconnectFailed) sealed()  {}
func (OrderCreated) sealed()     {}
func (OrderUpdated) sealed()     {}

// ChangeNotification is the order-level view of OrderCreated / OrderUpdated.
type ChangeNotification struct {
	OrderID    string
	IsCreation bool
}

// AsChange converts an order event into a ChangeNotification.
// ok is false for lifecycle events.
func AsChange(e Event) (ChangeNotification, bool) {
	switch ev := e.(type) {
	case OrderCreated:
		return ChangeNotification{OrderID: ev.OrderID, IsCreation: true}, true
	case OrderUpdated:
		return ChangeNotification{OrderID: ev.OrderID}, true
	}
	return ChangeNotification{}, false
}

// WireNames maps transport event names onto order event kinds.
type WireNames struct {
	Created string
	Updated string
}

// DefaultWireNames returns the event names used by the order service.
func DefaultWireNames() WireNames {
	return WireNames{
		Created: "order-created",
		Updated: "order-updated",
	}
}

// Frame is the transport envelope: {"event": "...", "data": ...}.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
