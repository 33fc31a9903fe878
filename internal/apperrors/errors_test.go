package apperrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestErrors_Kinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"worker not found", ErrWorkerNotFound, ErrNotFound},
		{"goal not found", ErrGoalNotFound, ErrNotFound},
		{"worker exists", ErrWorkerAlreadyExists, ErrConflict},
		{"bad credentials", ErrInvalidCredentials, ErrAuthentication},
		{"allocation exceeded", ErrAllocationExceeded, ErrValidation},
		{"insufficient", ErrBalanceInsufficient, ErrInsufficientFunds},
		{"field validation", Invalid("amount", "must be positive"), ErrValidation},
		{"transient", Transient("fetch worker", errors.New("timeout")), ErrTransient},
		{"invariant", &PersistenceInvariantError{WorkerID: uuid.New()}, ErrPersistenceInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service error: %w", tt.err)

			require.ErrorIs(t, wrapped, tt.kind, "wrapped error should keep its kind")
			require.ErrorIs(t, wrapped, tt.err, "wrapped error should match itself")
		})
	}
}

func TestErrors_ValidationError(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Invalid("targetAmount", "must be greater than zero"))

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "targetAmount", vErr.Field)
	require.Equal(t, "invalid targetAmount: must be greater than zero", vErr.Error())
	require.NotErrorIs(t, err, ErrTransient)
}

func TestErrors_TransientError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &TransientError{Op: "list goals", RetryAfter: 2 * time.Second, Err: cause}

	require.ErrorIs(t, err, cause, "cause should be unwrapped")
	require.True(t, IsRetryable(err))
	require.False(t, IsRetryable(ErrBalanceInsufficient))
	require.Contains(t, err.Error(), "retry after 2s")
}

func TestErrors_PersistenceInvariantError(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	err := &PersistenceInvariantError{
		WorkerID: id,
		Cached:   decimal.NewFromInt(7000),
		Replayed: decimal.NewFromInt(6500),
	}

	require.Equal(t, "worker 0f8fad5b-d9cb-469f-a165-70867728950e balance diverged: cached=7000 replayed=6500", err.Error())
}
