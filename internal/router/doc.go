// Package router delivers decoded events to registered listeners.
//
// The Dispatcher owns the listener registry for one Connection Manager. Events
// are queued in an unbounded Buffer and delivered by a single goroutine, so
// listeners observe events in arrival order and a slow listener never causes
// the transport read loop to drop frames.
package router
