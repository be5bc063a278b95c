// Package batchsync turns a flushed batch of order ids into fresh snapshots
// and merges them into every cached view of the orders namespace.
//
// Fetching degrades from one bulk read to bounded, rate-limited point reads,
// and drops individual failures. Merging is an idempotent upsert: existing
// orders are replaced in place, new orders are appended to views that admit
// them, and views that do not change are not rewritten.
package batchsync
