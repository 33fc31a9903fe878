package handlers

import (
	"net/http"

	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/handlers/workerctx"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/models"
)

type authResponse struct {
	Worker workerView `json:"worker"`
}

func handleRegister(authService authService, l logger.Logger) http.Handler {
	type request struct {
		FullName   string `json:"fullName" validate:"required,max=255"`
		Phone      string `json:"phone" validate:"required,phone"`
		Pin        string `json:"pin" validate:"required,pin"`
		Occupation string `json:"occupation" validate:"max=255"`
		Workplace  string `json:"workplace" validate:"max=255"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		worker, pair, err := authService.Register(r.Context(), models.Profile{
			FullName:   data.FullName,
			Phone:      data.Phone,
			Pin:        data.Pin,
			Occupation: data.Occupation,
			Workplace:  data.Workplace,
		})
		if err != nil {
			renderError(w, l, err)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSONWithStatus(w, authResponse{Worker: newWorkerView(worker)}, http.StatusCreated)
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Phone string `json:"phone" validate:"required"`
		Pin   string `json:"pin" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		worker, pair, err := authService.Login(r.Context(), data.Phone, data.Pin)
		if err != nil {
			renderError(w, l, err)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSON(w, authResponse{Worker: newWorkerView(worker)})
	})
}

func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefreshString(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := authService.RefreshPair(r.Context(), refresh)
		if err != nil {
			renderError(w, l, err)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSON(w, response{Message: "Tokens refreshed successfully"})
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, _ := workerctx.FromContext(r.Context())
		refresh, _ := authService.GetRefreshString(r)

		if err := authService.Logout(r.Context(), workerID, refresh); err != nil {
			renderError(w, l, err)
			return
		}

		authService.ClearTokens(w)
		w.WriteHeader(http.StatusNoContent)
	})
}
