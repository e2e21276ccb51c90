package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/observability"
	"github.com/solutions224/payments-core/internal/service"
)

// QueueWorker drains the intent queue in the background.
// It polls for due intents at regular intervals and processes them.
// Safe for concurrent instances thanks to FOR UPDATE SKIP LOCKED.
type QueueWorker struct {
	queue        *service.QueueService
	pollInterval time.Duration
	batchSize    int32
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewQueueWorker creates a new QueueWorker instance.
func NewQueueWorker(queue *service.QueueService) *QueueWorker {
	return &QueueWorker{
		queue:        queue,
		pollInterval: 1 * time.Second,
		batchSize:    25,
		stopCh:       make(chan struct{}),
	}
}

// WithPollInterval sets the poll interval for the worker.
func (w *QueueWorker) WithPollInterval(interval time.Duration) *QueueWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

// WithBatchSize sets the batch size for the worker.
func (w *QueueWorker) WithBatchSize(size int32) *QueueWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and drains the queue until Stop is called or the context is
// canceled.
func (w *QueueWorker) Start(ctx context.Context) {
	zap.L().Info("queue worker starting",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int32("batch_size", w.batchSize))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("queue worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("queue worker stop signal received")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *QueueWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

func (w *QueueWorker) processBatch(ctx context.Context) {
	if err := w.queue.ProcessBatch(ctx, w.batchSize); err != nil {
		observability.IncrementWorkerRun("queue", "failed")
		zap.L().Error("queue batch failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("queue", "success")
}

// ProcessOnce processes a single batch immediately.
// Useful for testing or manual triggering.
func (w *QueueWorker) ProcessOnce(ctx context.Context) error {
	return w.queue.ProcessBatch(ctx, w.batchSize)
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *QueueWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// String returns a string representation of the worker.
func (w *QueueWorker) String() string {
	return fmt.Sprintf("QueueWorker(interval=%v, batch=%d)", w.pollInterval, w.batchSize)
}
