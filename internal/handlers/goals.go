package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/handlers/workerctx"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/service/goal"
)

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Source string          `json:"source" validate:"omitempty,oneof=wallet momo"`
	Phone  string          `json:"phone" validate:"omitempty,phone"`
}

func (d depositRequest) toDeposit() goal.Deposit {
	return goal.Deposit{Amount: d.Amount, Source: d.Source, Phone: d.Phone}
}

type depositResponse struct {
	Goal        goalView        `json:"goal"`
	Transaction transactionView `json:"transaction"`
}

func goalIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Goal not found", http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func handleListGoals(goalService goalService, l logger.Logger) http.Handler {
	type response struct {
		Goals []goalView `json:"goals"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		goals, err := goalService.ListGoals(r.Context(), workerID)
		if err != nil {
			renderError(w, l, err)
			return
		}

		views := make([]goalView, 0, len(goals))
		for _, g := range goals {
			views = append(views, newGoalView(g))
		}
		render.JSON(w, response{Goals: views})
	})
}

func handleCreateGoal(goalService goalService, l logger.Logger) http.Handler {
	type request struct {
		Title                string          `json:"title" validate:"required,max=255"`
		TargetAmount         decimal.Decimal `json:"targetAmount"`
		AllocationPercentage int             `json:"allocationPercentage" validate:"gte=0,lte=100"`
		IsLongTerm           bool            `json:"isLongTerm"`
		IsMicroInvestment    bool            `json:"isMicroInvestment"`
		Deadline             *time.Time      `json:"deadline"`
	}
	type response struct {
		Goal goalView `json:"goal"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		g, err := goalService.CreateGoal(r.Context(), workerID, goal.NewGoal{
			Title:                data.Title,
			TargetAmount:         data.TargetAmount,
			AllocationPercentage: data.AllocationPercentage,
			IsLongTerm:           data.IsLongTerm,
			IsMicroInvestment:    data.IsMicroInvestment,
			Deadline:             data.Deadline,
		})
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSONWithStatus(w, response{Goal: newGoalView(g)}, http.StatusCreated)
	})
}

func handleUpdateGoal(goalService goalService, l logger.Logger) http.Handler {
	type request struct {
		Title                *string          `json:"title" validate:"omitempty,max=255"`
		TargetAmount         *decimal.Decimal `json:"targetAmount"`
		AllocationPercentage *int             `json:"allocationPercentage" validate:"omitempty,gte=0,lte=100"`
		IsLongTerm           *bool            `json:"isLongTerm"`
		Deadline             *time.Time       `json:"deadline"`
	}
	type response struct {
		Goal goalView `json:"goal"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		goalID, ok := goalIDFromPath(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		g, err := goalService.UpdateGoal(r.Context(), workerID, goalID, models.GoalPatch{
			Title:                data.Title,
			TargetAmount:         data.TargetAmount,
			AllocationPercentage: data.AllocationPercentage,
			IsLongTerm:           data.IsLongTerm,
			Deadline:             data.Deadline,
		})
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSON(w, response{Goal: newGoalView(g)})
	})
}

// Linked transactions stay in the log
func handleDeleteGoal(goalService goalService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		goalID, ok := goalIDFromPath(w, r)
		if !ok {
			return
		}

		if err := goalService.DeleteGoal(r.Context(), workerID, goalID); err != nil {
			renderError(w, l, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func handleGoalDeposit(goalService goalService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		goalID, ok := goalIDFromPath(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[depositRequest](w, r)
		if err != nil {
			return
		}

		g, t, err := goalService.DepositToGoal(r.Context(), workerID, goalID, data.toDeposit())
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSONWithStatus(w, depositResponse{Goal: newGoalView(g), Transaction: newTransactionView(t, time.Now())}, http.StatusCreated)
	})
}

func handleGoalsSummary(goalService goalService, l logger.Logger) http.Handler {
	type response struct {
		InvestedBalance    float64 `json:"investedBalance"`
		FinancialGoalTotal float64 `json:"financialGoalTotal"`
		AllocatedPercent   int     `json:"allocatedPercent"`
		AvailablePercent   int     `json:"availablePercent"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		s, err := goalService.Summary(r.Context(), workerID)
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSON(w, response{
			InvestedBalance:    money(s.InvestedBalance),
			FinancialGoalTotal: money(s.FinancialGoalTotal),
			AllocatedPercent:   s.AllocatedPercent,
			AvailablePercent:   max(models.MaxAllocationPercentage-s.AllocatedPercent, 0),
		})
	})
}

// Preview of ?amount= split over goal allocations, nothing is posted
func handleAllocationPreview(goalService goalService, l logger.Logger) http.Handler {
	type share struct {
		GoalID     uuid.UUID `json:"goalId"`
		Title      string    `json:"title"`
		Percentage int       `json:"percentage"`
		Amount     float64   `json:"amount"`
	}
	type response struct {
		Shares    []share `json:"shares"`
		Remainder float64 `json:"remainder"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
		if err != nil {
			render.FieldError(w, "amount", "Must be a number", http.StatusUnprocessableEntity)
			return
		}

		shares, remainder, err := goalService.AllocationPreview(r.Context(), workerID, amount)
		if err != nil {
			renderError(w, l, err)
			return
		}

		resp := response{Shares: make([]share, 0, len(shares)), Remainder: money(remainder)}
		for _, s := range shares {
			resp.Shares = append(resp.Shares, share{GoalID: s.GoalID, Title: s.Title, Percentage: s.Percentage, Amount: money(s.Amount)})
		}
		render.JSON(w, resp)
	})
}
