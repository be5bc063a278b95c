// Package events defines the closed set of events the Connection Manager
// delivers to listeners.
//
// Lifecycle events (Connected, Disconnected, ConnectError, ReconnectAttempt,
// ReconnectFailed) are produced by the Manager itself. Order events
// (OrderCreated, OrderUpdated) are decoded from transport frames by Decode,
// which is the only place the "bare id or object" payload ambiguity is handled.
package events
