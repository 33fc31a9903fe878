package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeTip               = "tip"
	TransactionTypeWithdrawal        = "withdrawal"
	TransactionTypeTransfer          = "transfer"
	TransactionTypeGoalDepositWallet = "goal-deposit-wallet"
	TransactionTypeGoalDepositMomo   = "goal-deposit-momo"
)

const (
	TransactionStatusCompleted = "completed"
)

const (
	MethodMomo        = "momo"
	MethodMTNMomo     = "mtn-momo"
	MethodAirtelMoney = "airtel-money"
	MethodCard        = "card"
	MethodVisa        = "visa"
	MethodMastercard  = "mastercard"
	MethodWallet      = "wallet"
)

// History filters. Empty filter means wallet activity only
const (
	FilterWallet     = ""
	FilterAll        = "all"
	FilterTip        = TransactionTypeTip
	FilterWithdrawal = TransactionTypeWithdrawal
	FilterTransfer   = TransactionTypeTransfer
)

// Transaction is an immutable ledger entry
type Transaction struct {
	ID         uuid.UUID
	Seq        int64 // insertion order, breaks created_at ties
	CreatedAt  time.Time
	WorkerID   uuid.UUID
	Type       string
	Method     string
	Status     string
	Amount     decimal.Decimal
	SenderName string
	Recipient  string
	Phone      string
	GoalID     *uuid.UUID
	Metadata   map[string]string
}

// SignedAmount is the effect of the transaction on the wallet balance
func (t Transaction) SignedAmount() decimal.Decimal {
	switch t.Type {
	case TransactionTypeTip:
		return t.Amount
	case TransactionTypeWithdrawal, TransactionTypeTransfer, TransactionTypeGoalDepositWallet:
		return t.Amount.Neg()
	default:
		return decimal.Zero
	}
}

// IsDebit reports whether the transaction takes money out of the wallet
func (t Transaction) IsDebit() bool {
	return t.SignedAmount().IsNegative()
}

func IsWalletActivity(txType string) bool {
	switch txType {
	case TransactionTypeTip, TransactionTypeWithdrawal, TransactionTypeTransfer:
		return true
	default:
		return false
	}
}

func IsKnownTransactionType(txType string) bool {
	switch txType {
	case TransactionTypeTip,
		TransactionTypeWithdrawal,
		TransactionTypeTransfer,
		TransactionTypeGoalDepositWallet,
		TransactionTypeGoalDepositMomo:
		return true
	default:
		return false
	}
}

// FilterTypes returns transaction types selected by a history filter
// ok is false for unknown filters
func FilterTypes(filter string) (types []string, ok bool) {
	switch filter {
	case FilterWallet:
		return []string{TransactionTypeTip, TransactionTypeWithdrawal, TransactionTypeTransfer}, true
	case FilterAll:
		return nil, true
	case FilterTip, FilterWithdrawal, FilterTransfer:
		return []string{filter}, true
	default:
		return nil, false
	}
}

// Replay computes the balance a worker should have given the full transaction log
func Replay(transactions []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, t := range transactions {
		balance = balance.Add(t.SignedAmount())
	}
	return balance
}
