package inventory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/inventory/models"
)

type EventProcessor interface {
	ProcessStockChangedEvent(ctx context.Context, event *models.StockChangedEvent) error
}

type WorkerPool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	logger    *zap.Logger
	processor EventProcessor

	mu     sync.Mutex
	closed bool
}

func NewWorkerPool(size int, processor EventProcessor, logger *zap.Logger) *WorkerPool {
	wp := &WorkerPool{
		tasks:     make(chan func(), 1000),
		logger:    logger,
		processor: processor,
	}

	for i := 0; i < size; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		task()
	}
}

// Submit queues one event for processing. Events arriving after Shutdown are
// dropped with a log line rather than sent to the closed channel.
func (wp *WorkerPool) Submit(ctx context.Context, event *models.StockChangedEvent) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		wp.logger.Warn("worker pool stopped, dropping stock changed event",
			zap.String("event_id", event.ID))
		return
	}
	wp.tasks <- func() {
		if err := wp.processor.ProcessStockChangedEvent(ctx, event); err != nil {
			wp.logger.Error("Failed to process stock changed event",
				zap.Error(err),
				zap.String("event_id", event.ID))
		}
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones to finish.
// Safe to call more than once.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
}
