package contentapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
)

type RefreshTokenRepo struct {
	client *Client
}

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	payload := map[string]any{
		"id":         token.ID.String(),
		"tip_worker": token.WorkerID.String(),
		"token":      token.Token,
		"createdAt":  token.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expiresAt":  token.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"usedAt":     nil,
	}
	if token.UsedAt != nil {
		payload["usedAt"] = token.UsedAt.UTC().Format(time.RFC3339Nano)
	}

	res, err := r.client.Do(ctx, http.MethodPost, refreshTokensPath, nil, payload)
	if err != nil {
		return models.RefreshToken{}, err
	}
	return decodeRefreshToken(res)
}

func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	query := url.Values{}
	query.Set("filters[token][$eq]", tokenString)

	records, err := r.client.List(ctx, refreshTokensPath, query)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
		}
		return models.RefreshToken{}, err
	}

	for _, rec := range records {
		t := recordToRefreshToken(rec)
		if t.Token == tokenString {
			return t, nil
		}
	}
	return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
}

// Not atomic: two concurrent refreshes with the same token may both pass
func (r *RefreshTokenRepo) GetAndMarkUsed(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	token, err := r.Get(ctx, tokenString)
	if err != nil {
		return token, err
	}
	if token.UsedAt != nil {
		return token, apperrors.ErrRefreshTokenIsUsed
	}

	res, err := r.client.Do(ctx, http.MethodPut, refreshTokensPath+"/"+token.ID.String(), nil, map[string]any{
		"usedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return token, err
	}
	return decodeRefreshToken(res)
}

func decodeRefreshToken(res gjson.Result) (models.RefreshToken, error) {
	rec, ok := unwrapOne(res)
	if !ok {
		return models.RefreshToken{}, errors.New("content api: refresh token record missing in response")
	}
	return recordToRefreshToken(rec), nil
}

func recordToRefreshToken(rec record) models.RefreshToken {
	return models.RefreshToken{
		ID:        rec.uuid(),
		WorkerID:  rec.relation("tip_worker", "workerId", "worker_id"),
		Token:     rec.str("token"),
		CreatedAt: rec.time("createdAt", "created_at"),
		ExpiresAt: rec.time("expiresAt", "expires_at"),
		UsedAt:    rec.optionalTime("usedAt", "used_at"),
	}
}
