package chat

import (
	"context"
	"sync"
	"time"

	"github.com/stressease/stressease/internal/log"
)

// Writer defaults. The pool is deliberately small: background persistence
// must never compete with the request path for resources.
const (
	DefaultWriterWorkers   = 4
	DefaultWriterQueueSize = 64

	// writerJobTimeout bounds a single store write so a wedged backend
	// cannot pin a worker forever.
	writerJobTimeout = 30 * time.Second
)

// Job is one write-behind unit of work. Kind is only used for logging.
type Job struct {
	Kind string
	Fn   func(ctx context.Context) error
}

// Writer mirrors cache mutations into the turn store on a fixed pool of
// background workers.
//
// Semantics are at-most-once: a failed write is logged and dropped, never
// retried, and the caller is never notified. When the queue is full the job
// is dropped immediately rather than blocking the request path. No ordering
// is guaranteed between two jobs for the same session.
type Writer struct {
	jobs   chan Job
	wg     sync.WaitGroup
	logger log.Logger

	mu     sync.RWMutex
	closed bool
}

// NewWriter starts a writer with the given pool size and queue capacity.
// Non-positive values fall back to the defaults.
func NewWriter(workers, queueSize int, logger log.Logger) *Writer {
	if workers <= 0 {
		workers = DefaultWriterWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultWriterQueueSize
	}
	if logger == nil {
		logger = log.NewNop()
	}

	w := &Writer{
		jobs:   make(chan Job, queueSize),
		logger: logger,
	}
	w.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go w.worker()
	}
	return w
}

func (w *Writer) worker() {
	defer w.wg.Done()
	for job := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), writerJobTimeout)
		if err := job.Fn(ctx); err != nil {
			// At-most-once: log and drop, no retry, no dead-letter queue.
			w.logger.Warn("background write failed",
				"kind", job.Kind,
				"error", err,
			)
		}
		cancel()
	}
}

// Enqueue submits a job without blocking. Jobs submitted after Close, or
// while the queue is full, are dropped with a log entry.
func (w *Writer) Enqueue(job Job) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn("writer closed, dropping job", "kind", job.Kind)
		return
	}

	select {
	case w.jobs <- job:
	default:
		w.logger.Warn("writer queue full, dropping job", "kind", job.Kind)
	}
}

// Close stops accepting jobs and waits for queued work to drain. Safe to
// call once during shutdown.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	w.wg.Wait()
}
