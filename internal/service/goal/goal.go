package goal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/metrics"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
	"github.com/nkiryanov/tipwallet/internal/retry"
	"github.com/nkiryanov/tipwallet/internal/service/ledger"
	"github.com/nkiryanov/tipwallet/internal/service/validate"
)

type workerRefresher interface {
	Refresh(ctx context.Context, workerID uuid.UUID) (models.Worker, error)
}

type GoalService struct {
	storage repository.Storage
	workers workerRefresher
	retry   retry.Policy
	logger  logger.Logger
}

func NewService(storage repository.Storage, workers workerRefresher, logger logger.Logger) *GoalService {
	return &GoalService{
		storage: storage,
		workers: workers,
		retry:   retry.DefaultPolicy,
		logger:  logger,
	}
}

type NewGoal struct {
	Title                string
	TargetAmount         decimal.Decimal
	AllocationPercentage int
	IsLongTerm           bool
	IsMicroInvestment    bool
	Deadline             *time.Time
}

// Deposit into a goal. Wallet source debits the balance, momo source is paid from outside
type Deposit struct {
	Amount decimal.Decimal
	Source string
	Phone  string // momo only, worker phone if empty
}

func (s *GoalService) ListGoals(ctx context.Context, workerID uuid.UUID) ([]models.Goal, error) {
	goals, err := retry.Value(ctx, s.retry, func() ([]models.Goal, error) {
		return s.storage.Goal().ListGoals(ctx, workerID)
	})
	if err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []models.Goal{}
	}
	return goals, nil
}

func (s *GoalService) CreateGoal(ctx context.Context, workerID uuid.UUID, ng NewGoal) (models.Goal, error) {
	g := models.Goal{
		WorkerID:             workerID,
		Title:                strings.TrimSpace(ng.Title),
		TargetAmount:         ng.TargetAmount,
		AllocationPercentage: ng.AllocationPercentage,
		IsLongTerm:           ng.IsLongTerm,
		IsMicroInvestment:    ng.IsMicroInvestment,
		Deadline:             ng.Deadline,
	}
	if err := validateGoal(g); err != nil {
		return models.Goal{}, err
	}

	var created models.Goal
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		if err := checkHeadroom(ctx, st, workerID, uuid.Nil, g.AllocationPercentage); err != nil {
			return err
		}

		var err error
		created, err = st.Goal().CreateGoal(ctx, g)
		return err
	})
	if err != nil {
		return models.Goal{}, err
	}

	s.logger.Info("Goal created", "worker_id", workerID, "goal_id", created.ID, "allocation", created.AllocationPercentage)
	return created, nil
}

// UpdateGoal applies the patch. The goal's own previous percentage does not count against headroom
func (s *GoalService) UpdateGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID, patch models.GoalPatch) (models.Goal, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		patch.Title = &title
	}

	var updated models.Goal
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Worker().GetWorkerByID(ctx, workerID, true); err != nil {
			return err
		}

		current, err := st.Goal().GetGoal(ctx, workerID, goalID)
		if err != nil {
			return err
		}

		g := patch.Apply(current)
		if err := validateGoal(g); err != nil {
			return err
		}

		if g.AllocationPercentage > current.AllocationPercentage {
			if err := checkHeadroom(ctx, st, workerID, goalID, g.AllocationPercentage); err != nil {
				return err
			}
		}

		updated, err = st.Goal().UpdateGoal(ctx, g)
		return err
	})
	if err != nil {
		return models.Goal{}, err
	}

	return updated, nil
}

// DeleteGoal frees the goal percentage. Deposits that referenced the goal stay in the ledger
func (s *GoalService) DeleteGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID) error {
	return retry.Do(ctx, func() error {
		return s.storage.Goal().DeleteGoal(ctx, workerID, goalID)
	})
}

// AllocationHeadroom is the percentage still free, excludeGoalID does not count (uuid.Nil for none)
func (s *GoalService) AllocationHeadroom(ctx context.Context, workerID uuid.UUID, excludeGoalID uuid.UUID) (int, error) {
	goals, err := s.ListGoals(ctx, workerID)
	if err != nil {
		return 0, err
	}
	return headroom(goals, excludeGoalID), nil
}

func (s *GoalService) DepositToGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID, d Deposit) (models.Goal, models.Transaction, error) {
	g, err := retry.Value(ctx, s.retry, func() (models.Goal, error) {
		return s.storage.Goal().GetGoal(ctx, workerID, goalID)
	})
	if err != nil {
		return models.Goal{}, models.Transaction{}, err
	}

	return s.deposit(ctx, g, d, nil)
}

func (s *GoalService) deposit(ctx context.Context, g models.Goal, d Deposit, metadata map[string]string) (models.Goal, models.Transaction, error) {
	if err := ledger.ValidateAmount(d.Amount); err != nil {
		return models.Goal{}, models.Transaction{}, err
	}

	t := models.Transaction{
		WorkerID: g.WorkerID,
		Amount:   d.Amount,
		GoalID:   &g.ID,
		Metadata: map[string]string{"goalTitle": g.Title},
	}
	for k, v := range metadata {
		t.Metadata[k] = v
	}

	switch d.Source {
	case models.DepositSourceWallet, "":
		t.Type = models.TransactionTypeGoalDepositWallet
		t.Method = models.MethodWallet

	case models.DepositSourceMomo:
		t.Type = models.TransactionTypeGoalDepositMomo
		t.Method = models.MethodMomo
		t.Phone = d.Phone
		if t.Phone == "" {
			w, err := retry.Value(ctx, s.retry, func() (models.Worker, error) {
				return s.storage.Worker().GetWorkerByID(ctx, g.WorkerID, false)
			})
			if err != nil {
				return models.Goal{}, models.Transaction{}, err
			}
			t.Phone = w.Phone
		} else if err := validate.Phone(t.Phone); err != nil {
			return models.Goal{}, models.Transaction{}, apperrors.Invalid("phone", err.Error())
		} else {
			t.Phone = validate.NormalizePhone(t.Phone)
		}

	default:
		return models.Goal{}, models.Transaction{}, apperrors.Invalid("source", "must be wallet or momo")
	}

	var raised models.Goal
	created, w, err := ledger.Post(ctx, s.storage, ledger.Entry{
		Transaction: t,
		Then: func(ctx context.Context, st repository.Storage, t models.Transaction) error {
			var err error
			raised, err = st.Goal().AddToGoal(ctx, t.WorkerID, *t.GoalID, t.Amount)
			return err
		},
	})
	if err != nil {
		return models.Goal{}, models.Transaction{}, err
	}

	s.logger.Info("Goal deposit", "worker_id", g.WorkerID, "goal_id", g.ID, "amount", d.Amount.String(), "type", created.Type)

	if created.Type == models.TransactionTypeGoalDepositWallet {
		if _, err := s.workers.Refresh(ctx, w.ID); err != nil {
			s.logger.Warn("Failed to refresh worker after goal deposit", "worker_id", w.ID, "error", err)
		}
	}

	return raised, created, nil
}

func (s *GoalService) ListFunds() []models.Fund {
	return models.Funds()
}

// InvestInFund deposits into the micro-investment goal tracking the fund, creating it on first use
func (s *GoalService) InvestInFund(ctx context.Context, workerID uuid.UUID, fundKey string, d Deposit) (models.Goal, models.Transaction, error) {
	fund, ok := models.FundByKey(fundKey)
	if !ok {
		return models.Goal{}, models.Transaction{}, apperrors.ErrFundNotFound
	}
	if err := ledger.ValidateAmount(d.Amount); err != nil {
		return models.Goal{}, models.Transaction{}, err
	}

	var g models.Goal
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Worker().GetWorkerByID(ctx, workerID, true); err != nil {
			return err
		}

		var err error
		g, err = st.Goal().GetGoalByTitle(ctx, workerID, fund.GoalTitle())
		if !errors.Is(err, apperrors.ErrGoalNotFound) {
			return err
		}

		g, err = st.Goal().CreateGoal(ctx, models.Goal{
			WorkerID:          workerID,
			Title:             fund.GoalTitle(),
			TargetAmount:      models.DefaultFundTarget,
			IsLongTerm:        true,
			IsMicroInvestment: true,
		})
		return err
	})
	if err != nil {
		return models.Goal{}, models.Transaction{}, err
	}

	return s.deposit(ctx, g, d, map[string]string{"fundName": fund.Name, "fundKey": fund.Key})
}

func (s *GoalService) Summary(ctx context.Context, workerID uuid.UUID) (models.GoalsSummary, error) {
	goals, err := s.ListGoals(ctx, workerID)
	if err != nil {
		return models.GoalsSummary{}, err
	}
	return models.Summarize(goals), nil
}

// AllocationPreview shows how a prospective tip would be split. Nothing is moved
func (s *GoalService) AllocationPreview(ctx context.Context, workerID uuid.UUID, amount decimal.Decimal) ([]models.AllocationShare, decimal.Decimal, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, decimal.Zero, err
	}

	goals, err := s.ListGoals(ctx, workerID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	shares, remainder := models.SplitByAllocation(amount, goals)
	return shares, remainder, nil
}

func validateGoal(g models.Goal) error {
	if g.Title == "" {
		return apperrors.Invalid("title", "is required")
	}
	if !g.TargetAmount.IsPositive() {
		return apperrors.Invalid("targetAmount", "must be greater than zero")
	}
	if g.AllocationPercentage < 0 || g.AllocationPercentage > models.MaxAllocationPercentage {
		return apperrors.Invalid("allocationPercentage", "must be between 0 and 100")
	}
	return nil
}

// Lock the worker row and check the percentage fits next to other goals
func checkHeadroom(ctx context.Context, st repository.Storage, workerID uuid.UUID, excludeGoalID uuid.UUID, percentage int) error {
	if _, err := st.Worker().GetWorkerByID(ctx, workerID, true); err != nil {
		return err
	}

	goals, err := st.Goal().ListGoals(ctx, workerID)
	if err != nil {
		return err
	}

	available := headroom(goals, excludeGoalID)
	if percentage > available {
		metrics.RecordRejected("allocation_exceeded")
		return fmt.Errorf("%w: %w", apperrors.ErrAllocationExceeded,
			apperrors.Invalid("allocationPercentage", fmt.Sprintf("%d%% requested, only %d%% available", percentage, available)))
	}
	return nil
}

func headroom(goals []models.Goal, excludeGoalID uuid.UUID) int {
	used := 0
	for _, g := range goals {
		if g.ID != excludeGoalID {
			used += g.AllocationPercentage
		}
	}
	return models.MaxAllocationPercentage - used
}
