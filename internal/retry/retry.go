package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
)

// Transient failures are retried at most this many times before surfacing
const MaxRetries = 2

type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

var DefaultPolicy = Policy{
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxRetries:      MaxRetries,
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0 // bounded by retries count

	return backoff.WithContext(backoff.WithMaxRetries(exp, p.MaxRetries), ctx)
}

// Do runs op and retries it while it fails with a retryable error
func Do(ctx context.Context, op func() error) error {
	return DefaultPolicy.Do(ctx, op)
}

func (p Policy) Do(ctx context.Context, op func() error) error {
	_, err := Value(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Value is Do for operations that return a result
func Value[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err != nil && !apperrors.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx))
}
