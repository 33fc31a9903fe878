package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/logger"
)

// Messages for errors a client may act on
var errorMessages = []struct {
	err     error
	message string
}{
	{apperrors.ErrWorkerNotFound, "Worker not found"},
	{apperrors.ErrGoalNotFound, "Goal not found"},
	{apperrors.ErrFundNotFound, "Fund not found"},
	{apperrors.ErrWorkerAlreadyExists, "Phone is already registered"},
	{apperrors.ErrInvalidCredentials, "Invalid phone or pin"},
	{apperrors.ErrBalanceInsufficient, "Insufficient balance"},
	{apperrors.ErrRefreshTokenNotFound, "Refresh token not found"},
	{apperrors.ErrRefreshTokenIsUsed, "Refresh token is used"},
	{apperrors.ErrRefreshTokenExpired, "Refresh token expired"},
}

func messageFor(err error, fallback string) string {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.message
		}
	}
	return fallback
}

// renderError maps service errors to http responses
// Never reports success: every error ends in a 4xx or 5xx
func renderError(w http.ResponseWriter, l logger.Logger, err error) {
	var (
		validationErr *apperrors.ValidationError
		transientErr  *apperrors.TransientError
	)

	switch {
	case errors.As(err, &validationErr):
		render.FieldError(w, validationErr.Field, validationErr.Message, http.StatusUnprocessableEntity)

	case errors.Is(err, apperrors.ErrValidation):
		render.ServiceError(w, "Invalid request", http.StatusUnprocessableEntity)

	case errors.Is(err, apperrors.ErrInsufficientFunds):
		render.ServiceError(w, messageFor(err, "Insufficient funds"), http.StatusPaymentRequired)

	case errors.Is(err, apperrors.ErrNotFound):
		render.ServiceError(w, messageFor(err, "Not found"), http.StatusNotFound)

	case errors.Is(err, apperrors.ErrConflict):
		render.ServiceError(w, messageFor(err, "Conflict"), http.StatusConflict)

	case errors.Is(err, apperrors.ErrAuthentication),
		errors.Is(err, apperrors.ErrRefreshTokenIsUsed),
		errors.Is(err, apperrors.ErrRefreshTokenExpired):
		render.ServiceError(w, messageFor(err, "Unauthorized"), http.StatusUnauthorized)

	case errors.As(err, &transientErr):
		l.Warn("Transient failure", "error", err)
		if transientErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(transientErr.RetryAfter.Seconds())))
		}
		render.ServiceError(w, "Service temporarily unavailable, try again", http.StatusServiceUnavailable)

	case errors.Is(err, context.DeadlineExceeded):
		l.Warn("Request deadline exceeded", "error", err)
		render.ServiceError(w, "Request timed out, try again", http.StatusServiceUnavailable)

	case errors.Is(err, apperrors.ErrPersistenceInvariant):
		l.Error("Persistence invariant violated", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)

	default:
		l.Error("Unexpected error", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
