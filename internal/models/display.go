package models

import (
	"fmt"
	"strings"
	"time"
)

var methodLabels = map[string]string{
	MethodMomo:        "Mobile Money",
	MethodMTNMomo:     "MTN MoMo",
	MethodAirtelMoney: "Airtel Money",
	MethodCard:        "Card Payment",
	MethodVisa:        "Visa",
	MethodMastercard:  "Mastercard",
	MethodWallet:      "Wallet",
}

func MethodLabel(method string) string {
	if method == "" {
		return methodLabels[MethodMomo]
	}
	if label, ok := methodLabels[strings.ToLower(method)]; ok {
		return label
	}
	return method
}

// Counterparty is the "from / to" line of the history view
func (t Transaction) Counterparty() string {
	switch t.Type {
	case TransactionTypeWithdrawal:
		return "Withdrawal to " + orDefault(t.Phone, "Account")
	case TransactionTypeTransfer:
		return "Sent to " + orDefault(t.Recipient, "Recipient")
	case TransactionTypeGoalDepositWallet, TransactionTypeGoalDepositMomo:
		return "Deposit to " + orDefault(t.Metadata["goalTitle"], "goal")
	default:
		return orDefault(t.SenderName, "Anonymous")
	}
}

// Matches reports whether the free-text search term hits the counterparty or the amount
func (t Transaction) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Counterparty()), term) ||
		strings.Contains(t.Amount.String(), term)
}

// TimeAgo renders the age of an event relative to now
func TimeAgo(now, at time.Time) string {
	age := now.Sub(at)

	switch {
	case age < time.Hour:
		return "Just now"
	case age < 24*time.Hour:
		hours := int(age / time.Hour)
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}

	days := int(age / (24 * time.Hour))
	if days == 1 {
		return "Yesterday"
	}
	return fmt.Sprintf("%d days ago", days)
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
