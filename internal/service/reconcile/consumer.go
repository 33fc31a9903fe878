package reconcile

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/tipwallet/internal/logger"
)

type Consumer struct {
	countWorkers int
	reconciler   *Reconciler
	logger       logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan uuid.UUID) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, in)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan uuid.UUID) {
	for {
		select {
		case <-ctx.Done():
			return

		case id, ok := <-in:
			if !ok {
				c.logger.Debug("Consumer worker stopped, input channel closed")
				return
			}

			_, err := c.reconciler.ReconcileWorker(ctx, id)
			switch {
			case err == nil:
			case isSkippable(err):
				c.logger.Debug("Worker skipped", "worker_id", id, "error", err)
			default:
				c.logger.Error("Failed to reconcile worker", "worker_id", id, "error", err)
			}
		}
	}
}
