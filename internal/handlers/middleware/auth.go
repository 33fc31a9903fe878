package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/handlers/workerctx"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (uuid.UUID, error)
}

// AuthMiddleware puts authenticated worker id to request context or responds 401
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			workerID, err := as.Auth(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := workerctx.New(r.Context(), workerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
