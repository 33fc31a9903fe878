package contentapi

import (
	"context"

	"github.com/nkiryanov/tipwallet/internal/repository"
)

// Collections of the content backend
const (
	workersPath       = "/tip-workers"
	transactionsPath  = "/tip-transactions"
	goalsPath         = "/tip-goals"
	refreshTokensPath = "/tip-refresh-tokens"
)

type Storage struct {
	client *Client
}

func NewStorage(client *Client) repository.Storage {
	return &Storage{client: client}
}

func (s *Storage) Worker() repository.WorkerRepo {
	return &WorkerRepo{client: s.client}
}

func (s *Storage) Transaction() repository.TransactionRepo {
	return &TransactionRepo{client: s.client}
}

func (s *Storage) Goal() repository.GoalRepo {
	return &GoalRepo{client: s.client}
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return &RefreshTokenRepo{client: s.client}
}

// InTx runs fn against the same backend
// The backend has no transactions: writes made before a failure stay, reconciliation repairs balances
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}
