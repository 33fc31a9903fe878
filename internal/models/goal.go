package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sum of allocation percentages over all goals of a worker never exceeds this value
const MaxAllocationPercentage = 100

const (
	DepositSourceWallet = "wallet"
	DepositSourceMomo   = "momo"
)

type Goal struct {
	ID                   uuid.UUID
	CreatedAt            time.Time
	WorkerID             uuid.UUID
	Title                string
	TargetAmount         decimal.Decimal
	CurrentAmount        decimal.Decimal
	AllocationPercentage int
	IsLongTerm           bool
	IsMicroInvestment    bool
	Deadline             *time.Time
}

// Progress in whole percents, capped at 100
func (g Goal) Progress() int {
	return Progress(g.CurrentAmount, g.TargetAmount)
}

func Progress(current, target decimal.Decimal) int {
	if !target.IsPositive() || !current.IsPositive() {
		return 0
	}

	p := current.Div(target).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if p > 100 {
		return 100
	}
	return int(p)
}

// GoalPatch holds goal fields to change. Nil means "keep as is"
type GoalPatch struct {
	Title                *string
	TargetAmount         *decimal.Decimal
	AllocationPercentage *int
	IsLongTerm           *bool
	Deadline             *time.Time
}

func (p GoalPatch) Apply(g Goal) Goal {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.AllocationPercentage != nil {
		g.AllocationPercentage = *p.AllocationPercentage
	}
	if p.IsLongTerm != nil {
		g.IsLongTerm = *p.IsLongTerm
	}
	if p.Deadline != nil {
		d := *p.Deadline
		g.Deadline = &d
	}
	return g
}

// GoalsSummary aggregates current amounts the way the investments page shows them
type GoalsSummary struct {
	InvestedBalance    decimal.Decimal // micro-investment funds
	FinancialGoalTotal decimal.Decimal // plain goals
	AllocatedPercent   int
}

func Summarize(goals []Goal) GoalsSummary {
	s := GoalsSummary{InvestedBalance: decimal.Zero, FinancialGoalTotal: decimal.Zero}
	for _, g := range goals {
		if g.IsMicroInvestment {
			s.InvestedBalance = s.InvestedBalance.Add(g.CurrentAmount)
		} else {
			s.FinancialGoalTotal = s.FinancialGoalTotal.Add(g.CurrentAmount)
		}
		s.AllocatedPercent += g.AllocationPercentage
	}
	return s
}

// AllocationShare is the part of a prospective tip claimed by a goal
type AllocationShare struct {
	GoalID     uuid.UUID
	Title      string
	Percentage int
	Amount     decimal.Decimal
}

// SplitByAllocation previews how an incoming amount would be split across goals
// The remainder stays in the wallet
func SplitByAllocation(amount decimal.Decimal, goals []Goal) (shares []AllocationShare, remainder decimal.Decimal) {
	remainder = amount
	hundred := decimal.NewFromInt(100)

	for _, g := range goals {
		if g.AllocationPercentage <= 0 {
			continue
		}
		part := amount.Mul(decimal.NewFromInt(int64(g.AllocationPercentage))).Div(hundred).Round(2)
		shares = append(shares, AllocationShare{
			GoalID:     g.ID,
			Title:      g.Title,
			Percentage: g.AllocationPercentage,
			Amount:     part,
		})
		remainder = remainder.Sub(part)
	}

	return shares, remainder
}
