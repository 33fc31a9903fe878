package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/logger"
)

// Pinger checks a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

func handleHealth(pinger Pinger, l logger.Logger) http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				l.Warn("Health check failed", "error", err)
				render.JSONWithStatus(w, response{Status: "unavailable"}, http.StatusServiceUnavailable)
				return
			}
		}
		render.JSON(w, response{Status: "ok"})
	})
}
