package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/handlers/workerctx"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/service/wallet"
)

type movementResponse struct {
	Transaction transactionView `json:"transaction"`
	Balance     float64         `json:"balance"`
}

// Public: a guest tips a worker by tip id
func handleCreateTip(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		TipID      string          `json:"tipId" validate:"required,tipid"`
		Amount     decimal.Decimal `json:"amount"`
		SenderName string          `json:"senderName" validate:"max=255"`
		Method     string          `json:"method"`
	}
	type response struct {
		Transaction transactionView `json:"transaction"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		t, err := walletService.RecordTip(r.Context(), wallet.Tip{
			TipID:      data.TipID,
			Amount:     data.Amount,
			SenderName: data.SenderName,
			Method:     data.Method,
		})
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSONWithStatus(w, response{Transaction: newTransactionView(t, time.Now())}, http.StatusCreated)
	})
}

func handleWithdraw(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		Amount decimal.Decimal `json:"amount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		t, worker, err := walletService.Withdraw(r.Context(), workerID, data.Amount)
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSON(w, movementResponse{Transaction: newTransactionView(t, time.Now()), Balance: money(worker.Balance)})
	})
}

func handleTransfer(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		Amount         decimal.Decimal `json:"amount"`
		RecipientPhone string          `json:"recipientPhone" validate:"required,phone"`
		Network        string          `json:"network"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		t, worker, err := walletService.Transfer(r.Context(), workerID, data.Amount, data.RecipientPhone, data.Network)
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSON(w, movementResponse{Transaction: newTransactionView(t, time.Now()), Balance: money(worker.Balance)})
	})
}

// History: ?filter= (empty, all, tip, withdrawal, transfer) and ?q= free text search
func handleListTransactions(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		Transactions []transactionView `json:"transactions"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())
		query := r.URL.Query()

		txs, err := walletService.ListTransactions(r.Context(), workerID, query.Get("filter"), query.Get("q"))
		if err != nil {
			renderError(w, l, err)
			return
		}

		now := time.Now()
		views := make([]transactionView, 0, len(txs))
		for _, t := range txs {
			views = append(views, newTransactionView(t, now))
		}
		render.JSON(w, response{Transactions: views})
	})
}

func handleReconcile(reconciler reconciler, l logger.Logger) http.Handler {
	type response struct {
		Balance         float64 `json:"balance"`
		PreviousBalance float64 `json:"previousBalance"`
		Repaired        bool    `json:"repaired"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		res, err := reconciler.ReconcileWorker(r.Context(), workerID)
		if err != nil {
			renderError(w, l, err)
			return
		}

		render.JSON(w, response{
			Balance:         money(res.Replayed),
			PreviousBalance: money(res.Cached),
			Repaired:        res.Repaired(),
		})
	})
}
