package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/models"
)

// Worker repository interface
type WorkerRepo interface {
	// Create worker
	// If a worker with the phone exists already has to return apperrors.ErrWorkerAlreadyExists
	// If the tip id is taken has to return apperrors.ErrTipIDTaken
	CreateWorker(ctx context.Context, w models.Worker) (models.Worker, error)

	// Get worker by id, phone or public tip id
	// If worker not found must return apperrors.ErrWorkerNotFound
	// lock: hold the worker row until the transaction ends, every balance and allocation change starts with it
	GetWorkerByID(ctx context.Context, workerID uuid.UUID, lock bool) (models.Worker, error)
	GetWorkerByPhone(ctx context.Context, phone string) (models.Worker, error)
	GetWorkerByTipID(ctx context.Context, tipID string) (models.Worker, error)

	// Add delta (may be negative) to the cached balance and return updated worker
	// If the balance would become negative must return apperrors.ErrBalanceInsufficient
	AddBalance(ctx context.Context, workerID uuid.UUID, delta decimal.Decimal) (models.Worker, error)

	// Overwrite cached balance. Used by reconciliation only
	SetBalance(ctx context.Context, workerID uuid.UUID, balance decimal.Decimal) (models.Worker, error)

	// Ids of all workers, oldest first
	ListWorkerIDs(ctx context.Context) ([]uuid.UUID, error)
}

type ListTransactionsOpts struct {
	Types []string // empty means any type
	Limit int      // 0 means no limit
}

type ListTransactionsOption func(*ListTransactionsOpts)

func WithTypes(types ...string) ListTransactionsOption {
	return func(o *ListTransactionsOpts) {
		o.Types = types
	}
}

func WithLimit(limit int) ListTransactionsOption {
	return func(o *ListTransactionsOpts) {
		o.Limit = limit
	}
}

// Transaction repository interface
// Ledger is append only, there is no update or delete
type TransactionRepo interface {
	// Append transaction. Zero ID, CreatedAt and Status are filled with defaults
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// List worker transactions ordered by created_at desc, ties by insertion order
	ListTransactions(ctx context.Context, workerID uuid.UUID, opts ...ListTransactionsOption) ([]models.Transaction, error)
}

// Goal repository interface
type GoalRepo interface {
	CreateGoal(ctx context.Context, g models.Goal) (models.Goal, error)

	// Get goal owned by the worker
	// If the goal not found or belongs to another worker must return apperrors.ErrGoalNotFound
	GetGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID) (models.Goal, error)

	// Find worker goal by exact title
	// If not found must return apperrors.ErrGoalNotFound
	GetGoalByTitle(ctx context.Context, workerID uuid.UUID, title string) (models.Goal, error)

	// Worker goals, newest first
	ListGoals(ctx context.Context, workerID uuid.UUID) ([]models.Goal, error)

	// Save mutable goal fields (title, target, allocation, long term flag, deadline)
	UpdateGoal(ctx context.Context, g models.Goal) (models.Goal, error)

	// Raise current amount of the goal
	AddToGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID, amount decimal.Decimal) (models.Goal, error)

	// Delete goal. Deleting a missing goal is not an error
	DeleteGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token even if it is expired or used
	// If the token not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token as used and return it
	// If the token is already used must return the token with apperrors.ErrRefreshTokenIsUsed and keep the existing 'usedAt'
	GetAndMarkUsed(ctx context.Context, tokenString string) (models.RefreshToken, error)
}

type Storage interface {
	Worker() WorkerRepo
	Transaction() TransactionRepo
	Goal() GoalRepo
	Refresh() RefreshTokenRepo

	// Run fn in a single atomic unit
	// Changes are committed if fn returns nil and rolled back otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
