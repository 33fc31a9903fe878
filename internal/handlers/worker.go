package handlers

import (
	"net/http"

	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/handlers/workerctx"
	"github.com/nkiryanov/tipwallet/internal/logger"
)

func handleWorkerMe(workerService workerService, l logger.Logger) http.Handler {
	type response struct {
		Worker workerView `json:"worker"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		worker, err := workerService.Get(r.Context(), workerID)
		if err != nil {
			renderError(w, l, err)
			return
		}
		render.JSON(w, response{Worker: newWorkerView(worker)})
	})
}

// Re-read balance from storage, the client calls it after it suspects a stale view
func handleWorkerRefresh(workerService workerService, l logger.Logger) http.Handler {
	type response struct {
		Worker workerView `json:"worker"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		worker, err := workerService.Refresh(r.Context(), workerID)
		if err != nil {
			renderError(w, l, err)
			return
		}
		render.JSON(w, response{Worker: newWorkerView(worker)})
	})
}

func handleWorkerSession(workerService workerService, l logger.Logger) http.Handler {
	type response struct {
		ID       string  `json:"id"`
		FullName string  `json:"fullName"`
		TipID    string  `json:"tipId"`
		Phone    string  `json:"phone"`
		Balance  float64 `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())

		snap, err := workerService.Session(r.Context(), workerID)
		if err != nil {
			renderError(w, l, err)
			return
		}
		render.JSON(w, response{
			ID:       snap.WorkerID.String(),
			FullName: snap.FullName,
			TipID:    snap.TipID,
			Phone:    snap.Phone,
			Balance:  money(snap.Balance),
		})
	})
}

// Public: the tip page shows whom the guest is tipping
func handleLookupWorker(workerService workerService, l logger.Logger) http.Handler {
	type response struct {
		FullName   string `json:"fullName"`
		TipID      string `json:"tipId"`
		Occupation string `json:"occupation"`
		Workplace  string `json:"workplace"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		worker, err := workerService.LookupByTipID(r.Context(), r.PathValue("tipId"))
		if err != nil {
			renderError(w, l, err)
			return
		}
		render.JSON(w, response{
			FullName:   worker.FullName,
			TipID:      worker.TipID,
			Occupation: worker.Occupation,
			Workplace:  worker.Workplace,
		})
	})
}
