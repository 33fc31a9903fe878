package wallet

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
	"github.com/nkiryanov/tipwallet/internal/retry"
	"github.com/nkiryanov/tipwallet/internal/service/ledger"
	"github.com/nkiryanov/tipwallet/internal/service/validate"
)

const anonymousSender = "Anonymous"

// Methods a payer may tip with
var tipMethods = map[string]bool{
	models.MethodMomo:        true,
	models.MethodMTNMomo:     true,
	models.MethodAirtelMoney: true,
	models.MethodCard:        true,
	models.MethodVisa:        true,
	models.MethodMastercard:  true,
}

// Mobile networks money can be sent to
var transferNetworks = map[string]bool{
	models.MethodMomo:        true,
	models.MethodMTNMomo:     true,
	models.MethodAirtelMoney: true,
}

type workerRefresher interface {
	Refresh(ctx context.Context, workerID uuid.UUID) (models.Worker, error)
}

type WalletService struct {
	storage repository.Storage
	workers workerRefresher
	retry   retry.Policy
	logger  logger.Logger
}

func NewService(storage repository.Storage, workers workerRefresher, logger logger.Logger) *WalletService {
	return &WalletService{
		storage: storage,
		workers: workers,
		retry:   retry.DefaultPolicy,
		logger:  logger,
	}
}

// Tip paid by a guest. Either TipID or WorkerID identifies the receiver
type Tip struct {
	TipID      string
	WorkerID   uuid.UUID
	Amount     decimal.Decimal
	SenderName string
	Method     string
}

func (s *WalletService) RecordTip(ctx context.Context, tip Tip) (models.Transaction, error) {
	if err := ledger.ValidateAmount(tip.Amount); err != nil {
		return models.Transaction{}, err
	}

	method := strings.ToLower(strings.TrimSpace(tip.Method))
	if method == "" {
		method = models.MethodMomo
	}
	if !tipMethods[method] {
		return models.Transaction{}, apperrors.Invalid("method", "unsupported payment method")
	}

	workerID := tip.WorkerID
	if workerID == uuid.Nil {
		tipID := strings.ToUpper(strings.TrimSpace(tip.TipID))
		if err := validate.TipID(tipID); err != nil {
			return models.Transaction{}, apperrors.Invalid("tipId", err.Error())
		}

		w, err := retry.Value(ctx, s.retry, func() (models.Worker, error) {
			return s.storage.Worker().GetWorkerByTipID(ctx, tipID)
		})
		if err != nil {
			return models.Transaction{}, err
		}
		workerID = w.ID
	}

	sender := strings.TrimSpace(tip.SenderName)
	if sender == "" {
		sender = anonymousSender
	}

	t, w, err := ledger.Post(ctx, s.storage, ledger.Entry{Transaction: models.Transaction{
		WorkerID:   workerID,
		Type:       models.TransactionTypeTip,
		Method:     method,
		Amount:     tip.Amount,
		SenderName: sender,
	}})
	if err != nil {
		return t, err
	}

	s.logger.Info("Tip received", "worker_id", workerID, "amount", t.Amount.String(), "method", method)
	s.refresh(ctx, w)
	return t, nil
}

// Withdraw pays out to the worker's own phone
func (s *WalletService) Withdraw(ctx context.Context, workerID uuid.UUID, amount decimal.Decimal) (models.Transaction, models.Worker, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return models.Transaction{}, models.Worker{}, err
	}

	w, err := retry.Value(ctx, s.retry, func() (models.Worker, error) {
		return s.storage.Worker().GetWorkerByID(ctx, workerID, false)
	})
	if err != nil {
		return models.Transaction{}, w, err
	}

	// Fail fast, Post checks again under the row lock
	if w.Balance.LessThan(amount) {
		return models.Transaction{}, w, apperrors.ErrBalanceInsufficient
	}

	t, w, err := ledger.Post(ctx, s.storage, ledger.Entry{Transaction: models.Transaction{
		WorkerID: workerID,
		Type:     models.TransactionTypeWithdrawal,
		Method:   models.MethodMomo,
		Amount:   amount,
		Phone:    w.Phone,
	}})
	if err != nil {
		return t, w, err
	}

	s.logger.Info("Withdrawal completed", "worker_id", workerID, "amount", amount.String())
	return t, s.refresh(ctx, w), nil
}

// Transfer sends money to a mobile money number
func (s *WalletService) Transfer(ctx context.Context, workerID uuid.UUID, amount decimal.Decimal, recipientPhone string, network string) (models.Transaction, models.Worker, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return models.Transaction{}, models.Worker{}, err
	}
	if err := validate.Phone(recipientPhone); err != nil {
		return models.Transaction{}, models.Worker{}, apperrors.Invalid("recipientPhone", err.Error())
	}

	network = strings.ToLower(strings.TrimSpace(network))
	if network == "" {
		network = models.MethodMomo
	}
	if !transferNetworks[network] {
		return models.Transaction{}, models.Worker{}, apperrors.Invalid("network", "unsupported network")
	}

	phone := validate.NormalizePhone(recipientPhone)
	t, w, err := ledger.Post(ctx, s.storage, ledger.Entry{Transaction: models.Transaction{
		WorkerID:  workerID,
		Type:      models.TransactionTypeTransfer,
		Method:    network,
		Amount:    amount,
		Recipient: phone,
		Phone:     phone,
	}})
	if err != nil {
		return t, w, err
	}

	s.logger.Info("Transfer completed", "worker_id", workerID, "amount", amount.String(), "network", network)
	return t, s.refresh(ctx, w), nil
}

// ListTransactions returns worker history, newest first
// Empty filter shows wallet activity only, "all" adds goal deposits
func (s *WalletService) ListTransactions(ctx context.Context, workerID uuid.UUID, filter string, search string) ([]models.Transaction, error) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	types, ok := models.FilterTypes(filter)
	if !ok {
		return nil, apperrors.Invalid("filter", "must be one of all, tip, withdrawal, transfer")
	}

	txs, err := retry.Value(ctx, s.retry, func() ([]models.Transaction, error) {
		return s.storage.Transaction().ListTransactions(ctx, workerID, repository.WithTypes(types...))
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(search) == "" {
		return txs, nil
	}

	found := make([]models.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Matches(search) {
			found = append(found, t)
		}
	}
	return found, nil
}

// Refresh session snapshot after a balance change
// The change is already committed, so a failed refresh is only logged
func (s *WalletService) refresh(ctx context.Context, committed models.Worker) models.Worker {
	w, err := s.workers.Refresh(ctx, committed.ID)
	if err != nil {
		s.logger.Warn("Failed to refresh worker after balance change", "worker_id", committed.ID, "error", err)
		return committed
	}
	return w
}
