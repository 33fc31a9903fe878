package models

import (
	"time"

	"github.com/google/uuid"
)

type RefreshToken struct {
	ID        uuid.UUID
	WorkerID  uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil if token not used
}

// Identity carried by a worker access token
type AccessClaims struct {
	WorkerID uuid.UUID
	TipID    string
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on login, registration or refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
