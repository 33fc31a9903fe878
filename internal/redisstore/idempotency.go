package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	lockKeyPrefix        = "idempotency-lock:"

	DefaultResponseTTL = 24 * time.Hour
	DefaultLockTTL     = 10 * time.Second
)

// CachedResponse is a stored reply to a request with an idempotency key
type CachedResponse struct {
	StatusCode  int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`

	// sha256 of the request body, hex encoded
	BodyHash string `json:"bodyHash,omitempty"`
}

// IdempotencyStore remembers replies to money-moving requests so client retries are not applied twice
type IdempotencyStore struct {
	rdb         *redis.Client
	responseTTL time.Duration
	lockTTL     time.Duration
}

func NewIdempotencyStore(rdb *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{
		rdb:         rdb,
		responseTTL: DefaultResponseTTL,
		lockTTL:     DefaultLockTTL,
	}
}

// Get returns stored response. ok is false if nothing stored
func (s *IdempotencyStore) Get(ctx context.Context, key string) (resp CachedResponse, ok bool, err error) {
	val, err := s.rdb.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return resp, false, nil
	case err != nil:
		return resp, false, apperrors.Transient("get idempotent response", err)
	}

	if err := json.Unmarshal(val, &resp); err != nil {
		return resp, false, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return resp, true, nil
}

// Lock marks the key as being processed. Returns false if another request holds it
func (s *IdempotencyStore) Lock(ctx context.Context, key string) (bool, error) {
	acquired, err := s.rdb.SetNX(ctx, lockKeyPrefix+key, "processing", s.lockTTL).Result()
	if err != nil {
		return false, apperrors.Transient("lock idempotency key", err)
	}
	return acquired, nil
}

func (s *IdempotencyStore) Unlock(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, lockKeyPrefix+key).Err(); err != nil {
		return apperrors.Transient("unlock idempotency key", err)
	}
	return nil
}

func (s *IdempotencyStore) Put(ctx context.Context, key string, resp CachedResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	if err := s.rdb.Set(ctx, idempotencyKeyPrefix+key, b, s.responseTTL).Err(); err != nil {
		return apperrors.Transient("put idempotent response", err)
	}
	return nil
}
