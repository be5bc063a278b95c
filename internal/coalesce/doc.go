// Package coalesce collects order-changed notifications and hands them to a
// flush handler in deduplicated batches.
//
// A batch is flushed once no new id has arrived for the quiescence window.
// Two optional escape valves bound a batch that never goes quiet: MaxBatch
// flushes as soon as the pending set reaches a size, MaxWait flushes a batch
// that has been open for a duration.
package coalesce
