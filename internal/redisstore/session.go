package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/session"
)

const (
	sessionKeyPrefix  = "session:"
	DefaultSessionTTL = 30 * 24 * time.Hour
)

// SessionStore keeps session snapshots in redis as json
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, snap session.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.rdb.Set(ctx, sessionKey(snap.WorkerID), b, s.ttl).Err(); err != nil {
		return apperrors.Transient("save session", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, workerID uuid.UUID) (session.Snapshot, error) {
	var snap session.Snapshot

	val, err := s.rdb.Get(ctx, sessionKey(workerID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return snap, session.ErrNoSession
	case err != nil:
		return snap, apperrors.Transient("load session", err)
	}

	if err := json.Unmarshal(val, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode session: %w", err)
	}
	return snap, nil
}

func (s *SessionStore) Clear(ctx context.Context, workerID uuid.UUID) error {
	if err := s.rdb.Del(ctx, sessionKey(workerID)).Err(); err != nil {
		return apperrors.Transient("clear session", err)
	}
	return nil
}

func sessionKey(workerID uuid.UUID) string {
	return sessionKeyPrefix + workerID.String()
}
