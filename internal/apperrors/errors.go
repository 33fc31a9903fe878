package apperrors

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error kinds. Every error returned by services wraps exactly one of them
var (
	ErrValidation           = errors.New("validation failed")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrAuthentication       = errors.New("authentication failed")
	ErrTransient            = errors.New("transient failure")
	ErrPersistenceInvariant = errors.New("persistence invariant violated")
)

var (
	ErrWorkerNotFound       = fmt.Errorf("worker %w", ErrNotFound)
	ErrWorkerAlreadyExists  = fmt.Errorf("worker already registered: %w", ErrConflict)
	ErrTipIDTaken           = fmt.Errorf("tip id already taken: %w", ErrConflict)
	ErrGoalNotFound         = fmt.Errorf("goal %w", ErrNotFound)
	ErrFundNotFound         = fmt.Errorf("fund %w", ErrNotFound)
	ErrInvalidCredentials   = fmt.Errorf("invalid phone or pin: %w", ErrAuthentication)
	ErrAllocationExceeded   = fmt.Errorf("allocation exceeds available headroom: %w", ErrValidation)
	ErrBalanceInsufficient  = fmt.Errorf("balance is lower than requested amount: %w", ErrInsufficientFunds)
	ErrRefreshTokenNotFound = fmt.Errorf("refresh token %w", ErrNotFound)
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")
)

// ValidationError describes a single malformed or out-of-range input
type ValidationError struct {
	Field   string
	Message string
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransientError is a network or timeout failure that is safe to retry
type TransientError struct {
	Op         string
	RetryAfter time.Duration // zero if the upstream gave no hint
	Err        error
}

func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: transient failure (retry after %s): %v", e.Op, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// PersistenceInvariantError reports a cached balance that differs from the replayed transaction log
type PersistenceInvariantError struct {
	WorkerID uuid.UUID
	Cached   decimal.Decimal
	Replayed decimal.Decimal
}

func (e *PersistenceInvariantError) Error() string {
	return fmt.Sprintf(
		"worker %s balance diverged: cached=%s replayed=%s",
		e.WorkerID, e.Cached.String(), e.Replayed.String(),
	)
}

func (e *PersistenceInvariantError) Is(target error) bool {
	return target == ErrPersistenceInvariant
}

// IsRetryable reports whether the operation may be retried as is
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
