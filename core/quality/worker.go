package quality

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sitegraph/sitegraph/helper"
)

// WorkerConfig holds configuration for the async recompute worker.
type WorkerConfig struct {
	QueueSize  int           // Buffered queue capacity (default: 256)
	MaxRetries int           // Max recompute attempts per entity (default: 3)
	RetryDelay time.Duration // Delay between attempts (default: 200ms)
	Timeout    time.Duration // Per-recompute timeout (default: 10s)
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		QueueSize:  256,
		MaxRetries: 3,
		RetryDelay: 200 * time.Millisecond,
		Timeout:    10 * time.Second,
	}
}

// Worker recomputes quality scores in the background. Writes that affect an
// entity's score (attribute updates, embeddings, edges) enqueue the entity;
// the worker processes the queue with bounded retries. Delivery is
// at-least-once: an entity can be recomputed more than once, which is
// harmless since Recompute is idempotent over unchanged state.
type Worker struct {
	scorer *Scorer
	config *WorkerConfig
	logger *slog.Logger

	queue  chan uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Guards the stats and the closed flag; Enqueue sends under the same
	// lock so Close never closes the queue mid-send.
	mu        sync.Mutex
	closed    bool
	enqueued  int
	processed int
	failed    int
	dropped   int
}

// NewWorker creates and starts an async recompute worker.
func NewWorker(scorer *Scorer, config *WorkerConfig, logger *slog.Logger) *Worker {
	if config == nil {
		config = DefaultWorkerConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		scorer: scorer,
		config: config,
		logger: logger,
		queue:  make(chan uuid.UUID, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	w.wg.Add(1)
	go w.run()

	return w
}

// Enqueue schedules a recompute for an entity. It never blocks the writing
// path: when the queue is full or the worker is closed the request is
// dropped and counted, and the entity keeps its stale score until the next
// write touches it.
func (w *Worker) Enqueue(entityID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.dropped++
		return
	}

	select {
	case w.queue <- entityID:
		w.enqueued++
	default:
		w.dropped++
		w.logger.Warn("Quality recompute queue full, dropping request", slog.String("entity_id", entityID.String()))
	}
}

// WorkerStats returns current worker statistics.
type WorkerStats struct {
	Enqueued  int `json:"enqueued"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
}

// Stats returns current worker statistics.
func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStats{
		Enqueued:  w.enqueued,
		Processed: w.processed,
		Failed:    w.failed,
		Dropped:   w.dropped,
	}
}

// Close drains the queue and stops the worker. Safe to call more than
// once; enqueues racing with Close are dropped instead of panicking.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()
}

func (w *Worker) run() {
	defer w.wg.Done()

	w.logger.Info("Quality recompute worker started")

	for entityID := range w.queue {
		if w.ctx.Err() != nil {
			return
		}
		w.process(entityID)
	}

	w.logger.Info("Quality recompute worker stopped")
}

func (w *Worker) process(entityID uuid.UUID) {
	var lastErr error
	for attempt := 1; attempt <= w.config.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(w.ctx, w.config.Timeout)
		_, err := w.scorer.Recompute(ctx, entityID)
		cancel()

		if err == nil {
			w.mu.Lock()
			w.processed++
			w.mu.Unlock()
			return
		}

		// An entity deactivated between enqueue and recompute is not a
		// failure, the stale score no longer matters.
		if errors.Is(err, helper.ErrNotFound) {
			w.mu.Lock()
			w.processed++
			w.mu.Unlock()
			return
		}

		lastErr = err
		if attempt < w.config.MaxRetries {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(w.config.RetryDelay):
			}
		}
	}

	w.mu.Lock()
	w.failed++
	w.mu.Unlock()
	w.logger.Error("Quality recompute failed",
		slog.String("entity_id", entityID.String()),
		slog.Int("attempts", w.config.MaxRetries),
		slog.Any("error", lastErr),
	)
}
