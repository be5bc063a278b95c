// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns one persistent websocket connection per application session
//   - Authenticates with a bearer credential
//   - Reconnects forever with capped exponential backoff
//   - Decodes frames into typed events and dispatches them in arrival order
//   - Keeps listeners registered across reconnections; only Disconnect clears them
package connection
