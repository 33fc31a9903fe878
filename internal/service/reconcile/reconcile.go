package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/metrics"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
)

const (
	defaultCountWorkers = 4               // Number of goroutines checking balances
	defaultInterval     = 5 * time.Minute // Interval between full passes
)

type Config struct {
	Interval     time.Duration
	CountWorkers int
}

// Result of checking one worker balance against the transaction log
type Result struct {
	WorkerID uuid.UUID
	Cached   decimal.Decimal
	Replayed decimal.Decimal

	// Set when the cached balance diverged and was rewritten
	Divergence *apperrors.PersistenceInvariantError
}

func (r Result) Repaired() bool {
	return r.Divergence != nil
}

// Reconciler treats the transaction log as the source of truth and rebuilds cached balances from it
type Reconciler struct {
	storage  repository.Storage
	logger   logger.Logger
	consumer *Consumer
	producer *Producer
}

func New(cfg Config, storage repository.Storage, logger logger.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.CountWorkers <= 0 {
		cfg.CountWorkers = defaultCountWorkers
	}

	r := &Reconciler{storage: storage, logger: logger}
	r.consumer = &Consumer{countWorkers: cfg.CountWorkers, reconciler: r, logger: logger}
	r.producer = &Producer{interval: cfg.Interval, workers: storage.Worker(), logger: logger}
	return r
}

// ReconcileWorker locks the worker, replays its log and repairs the cached balance on divergence
func (r *Reconciler) ReconcileWorker(ctx context.Context, workerID uuid.UUID) (Result, error) {
	res := Result{WorkerID: workerID}

	err := r.storage.InTx(ctx, func(s repository.Storage) error {
		w, err := s.Worker().GetWorkerByID(ctx, workerID, true)
		if err != nil {
			return err
		}

		txs, err := s.Transaction().ListTransactions(ctx, workerID)
		if err != nil {
			return err
		}

		res.Cached = w.Balance
		res.Replayed = models.Replay(txs)
		if res.Cached.Equal(res.Replayed) {
			return nil
		}

		res.Divergence = &apperrors.PersistenceInvariantError{
			WorkerID: workerID,
			Cached:   res.Cached,
			Replayed: res.Replayed,
		}
		_, err = s.Worker().SetBalance(ctx, workerID, res.Replayed)
		return err
	})
	if err != nil {
		return Result{WorkerID: workerID}, err
	}

	metrics.RecordReconcile(res.Repaired())
	if res.Repaired() {
		r.logger.Error("Balance repaired from transaction log", "error", res.Divergence, "worker_id", workerID)
	}
	return res, nil
}

// Run reconciles all workers every interval until ctx is done
func (r *Reconciler) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	ids := make(chan uuid.UUID)

	producerStopped := r.producer.Produce(ctx, ids)
	consumerStopped := r.consumer.Consume(ctx, ids)

	go func() {
		defer close(idleStopped)
		<-producerStopped
		close(ids)
		<-consumerStopped
		r.logger.Debug("Reconciler stopped")
	}()

	return idleStopped
}

// Worker missing by the time it is processed is not a failure
func isSkippable(err error) bool {
	return errors.Is(err, apperrors.ErrWorkerNotFound) || errors.Is(err, context.Canceled)
}
