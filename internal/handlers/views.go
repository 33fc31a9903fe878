package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/models"
)

// JSON shapes of the API

type workerView struct {
	ID         uuid.UUID `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	FullName   string    `json:"fullName"`
	Phone      string    `json:"phone"`
	TipID      string    `json:"tipId"`
	Occupation string    `json:"occupation"`
	Workplace  string    `json:"workplace"`
	Balance    float64   `json:"balance"`
}

func newWorkerView(w models.Worker) workerView {
	return workerView{
		ID:         w.ID,
		CreatedAt:  w.CreatedAt,
		FullName:   w.FullName,
		Phone:      w.Phone,
		TipID:      w.TipID,
		Occupation: w.Occupation,
		Workplace:  w.Workplace,
		Balance:    money(w.Balance),
	}
}

type transactionView struct {
	ID           uuid.UUID         `json:"id"`
	CreatedAt    time.Time         `json:"createdAt"`
	Type         string            `json:"type"`
	Method       string            `json:"method"`
	MethodLabel  string            `json:"methodLabel"`
	Status       string            `json:"status"`
	Amount       float64           `json:"amount"`
	SenderName   string            `json:"senderName,omitempty"`
	Recipient    string            `json:"recipient,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	GoalID       *uuid.UUID        `json:"goalId,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Counterparty string            `json:"counterparty"`
	TimeAgo      string            `json:"timeAgo"`
	IsDebit      bool              `json:"isDebit"`
}

func newTransactionView(t models.Transaction, now time.Time) transactionView {
	return transactionView{
		ID:           t.ID,
		CreatedAt:    t.CreatedAt,
		Type:         t.Type,
		Method:       t.Method,
		MethodLabel:  models.MethodLabel(t.Method),
		Status:       t.Status,
		Amount:       money(t.Amount),
		SenderName:   t.SenderName,
		Recipient:    t.Recipient,
		Phone:        t.Phone,
		GoalID:       t.GoalID,
		Metadata:     t.Metadata,
		Counterparty: t.Counterparty(),
		TimeAgo:      models.TimeAgo(now, t.CreatedAt),
		IsDebit:      t.IsDebit(),
	}
}

type goalView struct {
	ID                   uuid.UUID  `json:"id"`
	CreatedAt            time.Time  `json:"createdAt"`
	Title                string     `json:"title"`
	TargetAmount         float64    `json:"targetAmount"`
	CurrentAmount        float64    `json:"currentAmount"`
	AllocationPercentage int        `json:"allocationPercentage"`
	IsLongTerm           bool       `json:"isLongTerm"`
	IsMicroInvestment    bool       `json:"isMicroInvestment"`
	Deadline             *time.Time `json:"deadline,omitempty"`
	Progress             int        `json:"progress"`
}

func newGoalView(g models.Goal) goalView {
	return goalView{
		ID:                   g.ID,
		CreatedAt:            g.CreatedAt,
		Title:                g.Title,
		TargetAmount:         money(g.TargetAmount),
		CurrentAmount:        money(g.CurrentAmount),
		AllocationPercentage: g.AllocationPercentage,
		IsLongTerm:           g.IsLongTerm,
		IsMicroInvestment:    g.IsMicroInvestment,
		Deadline:             g.Deadline,
		Progress:             g.Progress(),
	}
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
