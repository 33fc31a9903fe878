// Package ledger applies balance changes and appends the matching transaction in one atomic unit
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/metrics"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
)

// Entry is a single ledger change
type Entry struct {
	Transaction models.Transaction

	// Optional step run in the same atomic unit after the transaction is appended
	Then func(ctx context.Context, s repository.Storage, t models.Transaction) error
}

// ValidateAmount rejects non positive amounts and fractions of a cent
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		metrics.RecordRejected("invalid_amount")
		return apperrors.Invalid("amount", "must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		metrics.RecordRejected("invalid_amount")
		return apperrors.Invalid("amount", "must have at most two decimal places")
	}
	return nil
}

// Post locks the worker, checks funds, changes the cached balance and appends the transaction
// Nothing is written if any step fails
func Post(ctx context.Context, storage repository.Storage, e Entry) (models.Transaction, models.Worker, error) {
	var (
		created models.Transaction
		worker  models.Worker
	)

	if err := ValidateAmount(e.Transaction.Amount); err != nil {
		return created, worker, err
	}

	err := storage.InTx(ctx, func(s repository.Storage) error {
		w, err := s.Worker().GetWorkerByID(ctx, e.Transaction.WorkerID, true)
		if err != nil {
			return err
		}

		delta := e.Transaction.SignedAmount()
		if delta.IsNegative() && w.Balance.LessThan(e.Transaction.Amount) {
			return apperrors.ErrBalanceInsufficient
		}

		if !delta.IsZero() {
			w, err = s.Worker().AddBalance(ctx, w.ID, delta)
			if err != nil {
				return err
			}
		}

		t, err := s.Transaction().CreateTransaction(ctx, e.Transaction)
		if err != nil {
			return err
		}

		if e.Then != nil {
			if err := e.Then(ctx, s, t); err != nil {
				return err
			}
		}

		created, worker = t, w
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientFunds) {
			metrics.RecordRejected("insufficient_funds")
		}
		return models.Transaction{}, models.Worker{}, err
	}

	metrics.RecordTransaction(created.Type, created.Amount)
	return created, worker, nil
}
