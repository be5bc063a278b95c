package coalesce

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// FlushHandler receives one batch of distinct ids in enqueue order.
// The slice must not be modified.
type FlushHandler func(ids []string)

// Config holds Queue configuration.
type Config struct {
	Quiescence time.Duration // Idle period after the last Invalidate before a flush
	MaxBatch   int           // Flush once this many ids are pending (0 = unbounded)
	MaxWait    time.Duration // Flush a batch open this long regardless of activity (0 = unbounded)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Quiescence: 300 * time.Millisecond,
	}
}

// Flush reasons, reported in logs and Stats.
const (
	ReasonQuiescence = "quiescence"
	ReasonMaxBatch   = "max_batch"
	ReasonMaxWait    = "max_wait"
	ReasonExplicit   = "explicit"
)

// Stats contains queue statistics.
type Stats struct {
	Invalidations int64
	Duplicates    int64 // Invalidations for an id already pending
	Flushes       int64 // Non-empty flushes delivered to handlers
	FlushedIDs    int64
	ByReason      map[string]int64
	Cleared       int64 // Ids discarded by Clear
	Pending       int
}

// Queue deduplicates ids between flushes.
type Queue struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	pending  []string
	index    map[string]struct{}
	handlers []FlushHandler

	quiet    *time.Timer
	quietSeq uint64 // Bumped on every re-arm; stale quiescence timers compare against it
	deadline *time.Timer
	batchSeq uint64 // Bumped when a batch is taken or cleared
	openedAt time.Time

	invalidations int64
	duplicates    int64
	flushes       int64
	flushedIDs    int64
	cleared       int64
	byReason      map[string]int64
}

// New creates a Queue.
func New(cfg Config, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Quiescence <= 0 {
		cfg.Quiescence = DefaultConfig().Quiescence
	}
	return &Queue{
		cfg:      cfg,
		logger:   logger.With("component", "coalesce"),
		index:    make(map[string]struct{}),
		byReason: make(map[string]int64),
	}
}

// OnFlush registers a handler. Handlers run in registration order on the
// goroutine that triggered the flush.
func (q *Queue) OnFlush(h FlushHandler) {
	q.mu.Lock()
	q.handlers = append(q.handlers, h)
	q.mu.Unlock()
}

// Invalidate adds id to the pending set if absent and re-arms the quiescence
// timer. Empty ids are ignored.
func (q *Queue) Invalidate(id string) {
	if id == "" {
		return
	}

	q.mu.Lock()
	q.invalidations++

	if _, ok := q.index[id]; ok {
		q.duplicates++
	} else {
		if len(q.pending) == 0 {
			q.openBatchLocked()
		}
		q.index[id] = struct{}{}
		q.pending = append(q.pending, id)
	}

	if q.cfg.MaxBatch > 0 && len(q.pending) >= q.cfg.MaxBatch {
		ids, handlers := q.takeLocked(ReasonMaxBatch)
		q.mu.Unlock()
		q.deliver(ids, handlers, ReasonMaxBatch)
		return
	}

	q.armQuietLocked()
	q.mu.Unlock()
}

// Flush delivers the pending batch now, on the calling goroutine.
func (q *Queue) Flush() {
	q.mu.Lock()
	ids, handlers := q.takeLocked(ReasonExplicit)
	q.mu.Unlock()

	q.deliver(ids, handlers, ReasonExplicit)
}

// Clear discards pending ids and cancels armed timers.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	q.cleared += int64(n)
	q.resetLocked()

	if n > 0 {
		q.logger.Debug("cleared pending ids", "count", n)
	}
}

// Len returns the number of pending ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending returns a copy of the pending ids in enqueue order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

// Stats returns current statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	byReason := make(map[string]int64, len(q.byReason))
	for k, v := range q.byReason {
		byReason[k] = v
	}

	return Stats{
		Invalidations: q.invalidations,
		Duplicates:    q.duplicates,
		Flushes:       q.flushes,
		FlushedIDs:    q.flushedIDs,
		ByReason:      byReason,
		Cleared:       q.cleared,
		Pending:       len(q.pending),
	}
}

// openBatchLocked starts the max-wait clock for a new batch.
func (q *Queue) openBatchLocked() {
	q.openedAt = time.Now()
	if q.cfg.MaxWait <= 0 {
		return
	}
	seq := q.batchSeq
	q.deadline = time.AfterFunc(q.cfg.MaxWait, func() {
		q.fire(ReasonMaxWait, func() bool { return q.batchSeq == seq })
	})
}

func (q *Queue) armQuietLocked() {
	if q.quiet != nil {
		q.quiet.Stop()
	}
	q.quietSeq++
	seq := q.quietSeq
	q.quiet = time.AfterFunc(q.cfg.Quiescence, func() {
		q.fire(ReasonQuiescence, func() bool { return q.quietSeq == seq })
	})
}

// fire is the timer callback. current reports, under the lock, whether the
// timer still belongs to the live batch.
func (q *Queue) fire(reason string, current func() bool) {
	q.mu.Lock()
	if !current() {
		q.mu.Unlock()
		return
	}
	ids, handlers := q.takeLocked(reason)
	q.mu.Unlock()

	q.deliver(ids, handlers, reason)
}

// takeLocked captures and clears the pending batch.
func (q *Queue) takeLocked(reason string) ([]string, []FlushHandler) {
	ids := q.pending
	age := time.Since(q.openedAt)
	q.resetLocked()

	if len(ids) == 0 {
		return nil, nil
	}

	q.flushes++
	q.flushedIDs += int64(len(ids))
	q.byReason[reason]++

	q.logger.Debug("flushing batch",
		"reason", reason,
		"count", len(ids),
		"age", age,
	)

	return ids, slices.Clone(q.handlers)
}

func (q *Queue) resetLocked() {
	q.pending = nil
	clear(q.index)

	if q.quiet != nil {
		q.quiet.Stop()
		q.quiet = nil
	}
	if q.deadline != nil {
		q.deadline.Stop()
		q.deadline = nil
	}
	q.quietSeq++
	q.batchSeq++
}

func (q *Queue) deliver(ids []string, handlers []FlushHandler, reason string) {
	if len(ids) == 0 {
		return
	}
	if len(handlers) == 0 {
		q.logger.Warn("flushed batch with no handler", "reason", reason, "count", len(ids))
		return
	}
	for _, h := range handlers {
		h(ids)
	}
}
