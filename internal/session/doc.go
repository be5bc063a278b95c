// Package session binds the realtime connection, the coalescing queue and the
// batch sync engine into one app-lifetime object.
//
// A Session is constructed once after authentication and started once. Screens
// attach to it with Watch and detach with Watcher.Close; detaching never
// closes the connection. Only Stop tears the connection down.
package session
