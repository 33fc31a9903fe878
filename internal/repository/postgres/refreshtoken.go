package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const refreshTokenColumns = `id, worker_id, token, created_at, expires_at, used_at`

const saveToken = `-- name: Save Refresh Token
INSERT INTO refresh_tokens (id, worker_id, token, created_at, expires_at, used_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + refreshTokenColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken, token.ID, token.WorkerID, token.Token, token.CreatedAt, token.ExpiresAt, token.UsedAt)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, dbError("save refresh token", err)
	}
	return saved, nil
}

const getToken = `-- name: GetToken by string itself
SELECT ` + refreshTokenColumns + `
FROM refresh_tokens
WHERE token = $1
`

// Get token
// It should return result even it expired or used already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrRefreshTokenNotFound
	default:
		return token, dbError("get refresh token", err)
	}
}

const markTokenUsed = `-- name: Mark token used if it not used
WITH prev AS (
	SELECT id, used_at FROM refresh_tokens WHERE token = $1 FOR UPDATE
)
UPDATE refresh_tokens t
SET used_at = COALESCE(t.used_at, $2)
FROM prev
WHERE t.id = prev.id
RETURNING t.id, t.worker_id, t.token, t.created_at, t.expires_at, t.used_at, prev.used_at IS NOT NULL
`

// Mark token as used
// Should not rewrite already used tokens
func (r *RefreshTokenRepo) GetAndMarkUsed(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	var token models.RefreshToken
	var wasUsed bool

	err := r.DB.QueryRow(ctx, markTokenUsed, tokenString, time.Now()).Scan(
		&token.ID, &token.WorkerID, &token.Token, &token.CreatedAt, &token.ExpiresAt, &token.UsedAt, &wasUsed,
	)

	switch {
	case err == nil && !wasUsed:
		return token, nil
	case err == nil:
		return token, apperrors.ErrRefreshTokenIsUsed
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrRefreshTokenNotFound
	default:
		return token, dbError("mark refresh token used", err)
	}
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.WorkerID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	return t, err
}
