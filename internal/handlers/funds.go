package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/handlers/workerctx"
	"github.com/nkiryanov/tipwallet/internal/logger"
)

func handleListFunds(goalService goalService) http.Handler {
	type fund struct {
		Key     string `json:"key"`
		Name    string `json:"name"`
		Manager string `json:"manager"`
		Yield   string `json:"yield"`
		Risk    string `json:"risk"`
	}
	type response struct {
		Funds []fund `json:"funds"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		funds := goalService.ListFunds()

		resp := response{Funds: make([]fund, 0, len(funds))}
		for _, f := range funds {
			resp.Funds = append(resp.Funds, fund{Key: f.Key, Name: f.Name, Manager: f.Manager, Yield: f.Yield, Risk: f.Risk})
		}
		render.JSON(w, resp)
	})
}

// Invest into a fund, the fund goal is created on first investment
func handleInvestInFund(goalService goalService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		data, err := render.BindAndValidate[depositRequest](w, r)
		if err != nil {
			return
		}

		g, t, err := goalService.InvestInFund(r.Context(), workerID, r.PathValue("key"), data.toDeposit())
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSONWithStatus(w, depositResponse{Goal: newGoalView(g), Transaction: newTransactionView(t, time.Now())}, http.StatusCreated)
	})
}
