package goal

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
	"github.com/nkiryanov/tipwallet/internal/repository/postgres"
	"github.com/nkiryanov/tipwallet/internal/service/auth"
	"github.com/nkiryanov/tipwallet/internal/service/wallet"
	"github.com/nkiryanov/tipwallet/internal/service/worker"
	"github.com/nkiryanov/tipwallet/internal/session"
	"github.com/nkiryanov/tipwallet/internal/testutil"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

func TestHeadroom(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	goals := []models.Goal{
		{ID: a, AllocationPercentage: 70},
		{ID: b, AllocationPercentage: 20},
	}

	require.Equal(t, 10, headroom(goals, uuid.Nil))
	require.Equal(t, 80, headroom(goals, a), "own percentage does not count")
	require.Equal(t, 100, headroom(nil, uuid.Nil))
}

func TestGoals(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type env struct {
		goals   *GoalService
		storage repository.Storage
		worker  models.Worker
	}

	withWorker := func(t *testing.T, funded string, fn func(e env)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			workers := worker.NewService(auth.BcryptHasher{Cost: bcrypt.MinCost}, storage, session.NewMemoryStore(), logger.NewNoOpLogger())

			w, err := workers.Register(t.Context(), models.Profile{FullName: "Jane Doe", Phone: "0772000111", Pin: "1234"})
			require.NoError(t, err)

			if funded != "" {
				_, err := wallet.NewService(storage, workers, logger.NewNoOpLogger()).
					RecordTip(t.Context(), wallet.Tip{WorkerID: w.ID, Amount: dec(funded)})
				require.NoError(t, err)
			}

			fn(env{goals: NewService(storage, workers, logger.NewNoOpLogger()), storage: storage, worker: w})
		})
	}

	newGoal := func(title string, pct int) NewGoal {
		return NewGoal{Title: title, TargetAmount: dec("300000"), AllocationPercentage: pct}
	}

	totalAllocation := func(t *testing.T, e env) int {
		goals, err := e.goals.ListGoals(t.Context(), e.worker.ID)
		require.NoError(t, err)
		sum := 0
		for _, g := range goals {
			sum += g.AllocationPercentage
		}
		return sum
	}

	t.Run("ListGoals empty", func(t *testing.T) {
		withWorker(t, "", func(e env) {
			goals, err := e.goals.ListGoals(t.Context(), e.worker.ID)

			require.NoError(t, err)
			require.NotNil(t, goals)
			require.Empty(t, goals)
		})
	})

	t.Run("CreateGoal", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			withWorker(t, "", func(e env) {
				deadline := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
				ng := newGoal(" School fees ", 30)
				ng.Deadline = &deadline

				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, ng)

				require.NoError(t, err)
				require.Equal(t, "School fees", g.Title)
				require.True(t, g.CurrentAmount.IsZero())
				require.Equal(t, 30, g.AllocationPercentage)
				require.NotNil(t, g.Deadline)
				require.True(t, deadline.Equal(*g.Deadline))
			})
		})

		t.Run("over allocation rejected, goals unchanged", func(t *testing.T) {
			withWorker(t, "", func(e env) {
				_, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Rent", 70))
				require.NoError(t, err)

				_, err = e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Phone", 40))

				require.ErrorIs(t, err, apperrors.ErrAllocationExceeded)
				require.ErrorIs(t, err, apperrors.ErrValidation)

				goals, err := e.goals.ListGoals(t.Context(), e.worker.ID)
				require.NoError(t, err)
				require.Len(t, goals, 1)
				require.Equal(t, 70, totalAllocation(t, e))
			})
		})

		t.Run("exactly 100 is fine", func(t *testing.T) {
			withWorker(t, "", func(e env) {
				_, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Rent", 70))
				require.NoError(t, err)
				_, err = e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Phone", 30))
				require.NoError(t, err)

				headroom, err := e.goals.AllocationHeadroom(t.Context(), e.worker.ID, uuid.Nil)
				require.NoError(t, err)
				require.Zero(t, headroom)
			})
		})

		t.Run("validation", func(t *testing.T) {
			tests := []struct {
				name  string
				goal  NewGoal
				field string
			}{
				{"empty title", NewGoal{Title: " ", TargetAmount: dec("10")}, "title"},
				{"zero target", NewGoal{Title: "a", TargetAmount: dec("0")}, "targetAmount"},
				{"negative target", NewGoal{Title: "a", TargetAmount: dec("-10")}, "targetAmount"},
				{"negative percentage", NewGoal{Title: "a", TargetAmount: dec("10"), AllocationPercentage: -1}, "allocationPercentage"},
				{"percentage over 100", NewGoal{Title: "a", TargetAmount: dec("10"), AllocationPercentage: 101}, "allocationPercentage"},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					withWorker(t, "", func(e env) {
						_, err := e.goals.CreateGoal(t.Context(), e.worker.ID, tt.goal)

						var vErr *apperrors.ValidationError
						require.ErrorAs(t, err, &vErr)
						require.Equal(t, tt.field, vErr.Field)
					})
				})
			}
		})
	})

	t.Run("UpdateGoal", func(t *testing.T) {
		t.Run("own percentage excluded from headroom", func(t *testing.T) {
			withWorker(t, "", func(e env) {
				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Rent", 60))
				require.NoError(t, err)
				_, err = e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Phone", 30))
				require.NoError(t, err)

				updated, err := e.goals.UpdateGoal(t.Context(), e.worker.ID, g.ID, models.GoalPatch{
					Title:                ptr("House rent"),
					AllocationPercentage: ptr(70),
				})

				require.NoError(t, err)
				require.Equal(t, "House rent", updated.Title)
				require.Equal(t, 70, updated.AllocationPercentage)
				require.Equal(t, 100, totalAllocation(t, e))
			})
		})

		t.Run("over allocation rejected", func(t *testing.T) {
			withWorker(t, "", func(e env) {
				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Rent", 60))
				require.NoError(t, err)
				_, err = e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Phone", 30))
				require.NoError(t, err)

				_, err = e.goals.UpdateGoal(t.Context(), e.worker.ID, g.ID, models.GoalPatch{AllocationPercentage: ptr(71)})

				require.ErrorIs(t, err, apperrors.ErrAllocationExceeded)
				require.Equal(t, 90, totalAllocation(t, e))
			})
		})

		t.Run("lowering percentage always allowed", func(t *testing.T) {
			withWorker(t, "", func(e env) {
				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Rent", 60))
				require.NoError(t, err)

				updated, err := e.goals.UpdateGoal(t.Context(), e.worker.ID, g.ID, models.GoalPatch{AllocationPercentage: ptr(10)})

				require.NoError(t, err)
				require.Equal(t, 10, updated.AllocationPercentage)
			})
		})

		t.Run("invalid target", func(t *testing.T) {
			withWorker(t, "", func(e env) {
				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Rent", 10))
				require.NoError(t, err)

				_, err = e.goals.UpdateGoal(t.Context(), e.worker.ID, g.ID, models.GoalPatch{TargetAmount: ptr(dec("0"))})

				require.ErrorIs(t, err, apperrors.ErrValidation)
			})
		})

		t.Run("goal of another worker", func(t *testing.T) {
			withWorker(t, "", func(e env) {
				_, err := e.goals.UpdateGoal(t.Context(), e.worker.ID, uuid.New(), models.GoalPatch{Title: ptr("x")})

				require.ErrorIs(t, err, apperrors.ErrGoalNotFound)
			})
		})
	})

	t.Run("DeleteGoal frees allocation and keeps deposits", func(t *testing.T) {
		withWorker(t, "10000", func(e env) {
			g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Rent", 80))
			require.NoError(t, err)
			_, _, err = e.goals.DepositToGoal(t.Context(), e.worker.ID, g.ID, Deposit{Amount: dec("1000"), Source: models.DepositSourceWallet})
			require.NoError(t, err)

			err = e.goals.DeleteGoal(t.Context(), e.worker.ID, g.ID)
			require.NoError(t, err)
			err = e.goals.DeleteGoal(t.Context(), e.worker.ID, g.ID)
			require.NoError(t, err, "delete is idempotent")

			headroom, err := e.goals.AllocationHeadroom(t.Context(), e.worker.ID, uuid.Nil)
			require.NoError(t, err)
			require.Equal(t, 100, headroom)

			txs, err := e.storage.Transaction().ListTransactions(t.Context(), e.worker.ID)
			require.NoError(t, err)
			require.Len(t, txs, 2, "tip and goal deposit survive goal deletion")
			require.Equal(t, g.ID, *txs[0].GoalID)
		})
	})

	t.Run("DepositToGoal", func(t *testing.T) {
		t.Run("wallet source debits balance", func(t *testing.T) {
			withWorker(t, "10000", func(e env) {
				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("School fees", 10))
				require.NoError(t, err)

				raised, tx, err := e.goals.DepositToGoal(t.Context(), e.worker.ID, g.ID, Deposit{Amount: dec("4000"), Source: models.DepositSourceWallet})

				require.NoError(t, err)
				require.Equal(t, "4000", raised.CurrentAmount.String())
				require.Equal(t, models.TransactionTypeGoalDepositWallet, tx.Type)
				require.Equal(t, "School fees", tx.Metadata["goalTitle"])

				w, err := e.storage.Worker().GetWorkerByID(t.Context(), e.worker.ID, false)
				require.NoError(t, err)
				require.Equal(t, "6000", w.Balance.String())
			})
		})

		t.Run("wallet source over balance", func(t *testing.T) {
			withWorker(t, "1000", func(e env) {
				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("School fees", 10))
				require.NoError(t, err)

				_, _, err = e.goals.DepositToGoal(t.Context(), e.worker.ID, g.ID, Deposit{Amount: dec("4000"), Source: models.DepositSourceWallet})

				require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

				got, err := e.storage.Goal().GetGoal(t.Context(), e.worker.ID, g.ID)
				require.NoError(t, err)
				require.True(t, got.CurrentAmount.IsZero(), "goal unchanged")
			})
		})

		t.Run("momo source keeps balance", func(t *testing.T) {
			withWorker(t, "1000", func(e env) {
				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("School fees", 10))
				require.NoError(t, err)

				raised, tx, err := e.goals.DepositToGoal(t.Context(), e.worker.ID, g.ID, Deposit{Amount: dec("195000"), Source: models.DepositSourceMomo})

				require.NoError(t, err)
				require.Equal(t, 65, raised.Progress())
				require.Equal(t, models.TransactionTypeGoalDepositMomo, tx.Type)
				require.Equal(t, e.worker.Phone, tx.Phone, "worker phone by default")

				w, err := e.storage.Worker().GetWorkerByID(t.Context(), e.worker.ID, false)
				require.NoError(t, err)
				require.Equal(t, "1000", w.Balance.String())
			})
		})

		t.Run("unknown source", func(t *testing.T) {
			withWorker(t, "1000", func(e env) {
				g, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("School fees", 10))
				require.NoError(t, err)

				_, _, err = e.goals.DepositToGoal(t.Context(), e.worker.ID, g.ID, Deposit{Amount: dec("1"), Source: "bank"})

				require.ErrorIs(t, err, apperrors.ErrValidation)
			})
		})

		t.Run("missing goal", func(t *testing.T) {
			withWorker(t, "1000", func(e env) {
				_, _, err := e.goals.DepositToGoal(t.Context(), e.worker.ID, uuid.New(), Deposit{Amount: dec("1")})

				require.ErrorIs(t, err, apperrors.ErrGoalNotFound)
			})
		})
	})

	t.Run("InvestInFund", func(t *testing.T) {
		withWorker(t, "10000", func(e env) {
			g, tx, err := e.goals.InvestInFund(t.Context(), e.worker.ID, "xeno-balanced", Deposit{Amount: dec("2000")})
			require.NoError(t, err)
			require.Equal(t, "Xeno Balanced Fund", g.Title)
			require.True(t, g.IsMicroInvestment)
			require.True(t, g.IsLongTerm)
			require.Zero(t, g.AllocationPercentage)
			require.True(t, models.DefaultFundTarget.Equal(g.TargetAmount))
			require.Equal(t, "Balanced Fund", tx.Metadata["fundName"])

			again, _, err := e.goals.InvestInFund(t.Context(), e.worker.ID, "xeno-balanced", Deposit{Amount: dec("500"), Source: models.DepositSourceMomo})
			require.NoError(t, err)
			require.Equal(t, g.ID, again.ID, "second investment reuses the goal")
			require.Equal(t, "2500", again.CurrentAmount.String())

			_, err = e.goals.CreateGoal(t.Context(), e.worker.ID, NewGoal{Title: "Rent", TargetAmount: dec("1000"), AllocationPercentage: 50})
			require.NoError(t, err)

			summary, err := e.goals.Summary(t.Context(), e.worker.ID)
			require.NoError(t, err)
			require.Equal(t, "2500", summary.InvestedBalance.String())
			require.True(t, summary.FinancialGoalTotal.IsZero())
			require.Equal(t, 50, summary.AllocatedPercent)

			_, _, err = e.goals.InvestInFund(t.Context(), e.worker.ID, "bitcoin", Deposit{Amount: dec("1")})
			require.ErrorIs(t, err, apperrors.ErrFundNotFound)
		})
	})

	t.Run("AllocationPreview", func(t *testing.T) {
		withWorker(t, "", func(e env) {
			_, err := e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Rent", 25))
			require.NoError(t, err)
			_, err = e.goals.CreateGoal(t.Context(), e.worker.ID, newGoal("Phone", 10))
			require.NoError(t, err)

			shares, remainder, err := e.goals.AllocationPreview(t.Context(), e.worker.ID, dec("10000"))

			require.NoError(t, err)
			require.Len(t, shares, 2)
			require.Equal(t, "6500", remainder.String())

			goals, err := e.goals.ListGoals(t.Context(), e.worker.ID)
			require.NoError(t, err)
			for _, g := range goals {
				require.True(t, g.CurrentAmount.IsZero(), "preview moves nothing")
			}
		})
	})

	// Outside a test transaction: every goroutine needs its own connection
	t.Run("concurrent creates never exceed 100 percent", func(t *testing.T) {
		storage := postgres.NewStorage(pg.Pool)
		workers := worker.NewService(auth.BcryptHasher{Cost: bcrypt.MinCost}, storage, session.NewMemoryStore(), logger.NewNoOpLogger())
		goals := NewService(storage, workers, logger.NewNoOpLogger())

		w, err := workers.Register(t.Context(), models.Profile{FullName: "Race Walker", Phone: "0772999002", Pin: "1234"})
		require.NoError(t, err)
		t.Cleanup(func() {
			_, err := pg.Pool.Exec(context.Background(), "DELETE FROM workers WHERE id = $1", w.ID)
			require.NoError(t, err)
		})

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = goals.CreateGoal(t.Context(), w.ID, newGoal(fmt.Sprintf("Goal %d", i), 60))
			}()
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, apperrors.ErrAllocationExceeded)
				failed++
			}
		}
		require.Equal(t, 1, failed, "exactly one goal must be rejected")

		list, err := goals.ListGoals(t.Context(), w.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, 40, headroom(list, uuid.Nil))
		require.Equal(t, 60, list[0].AllocationPercentage)
	})
}
