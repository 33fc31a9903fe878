package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/tipwallet/internal/logger"
)

type workerLister interface {
	ListWorkerIDs(ctx context.Context) ([]uuid.UUID, error)
}

type Producer struct {
	interval time.Duration
	workers  workerLister
	logger   logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- uuid.UUID) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting reconcile producer", "interval", p.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				ids, err := p.workers.ListWorkerIDs(ctx)
				if err != nil {
					p.logger.Error("Failed to list workers", "error", err)
					continue
				}
				p.logger.Debug("Producer tick: reconciling workers", "count", len(ids))

				for _, id := range ids {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending workers")
						return
					case out <- id:
					}
				}
			}
		}
	}()

	return idleStopped
}
