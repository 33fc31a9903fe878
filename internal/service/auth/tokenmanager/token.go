// Package tokenmanager issues worker access tokens (signed JWT) and opaque single use refresh tokens
package tokenmanager

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
)

const (
	issuer = "tipwallet"

	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

// AccessTokenClaims is the payload of a worker access token
// Subject duplicates wid
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	WorkerID uuid.UUID `json:"wid"`
	TipID    string    `json:"tid"`
}

type Config struct {
	// Shared HMAC key, required
	SecretKey string

	// One of HS256, HS384, HS512. HS256 if empty
	Alg string

	// Zero means default
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	key        string
	alg        jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration

	refreshRepo repository.RefreshTokenRepo
}

func New(cfg Config, refreshRepo repository.RefreshTokenRepo) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	m := &TokenManager{
		key:         cfg.SecretKey,
		alg:         jwt.GetSigningMethod(defaultSigningMethod),
		accessTTL:   defaultAccessTokenTTL,
		refreshTTL:  defaultRefreshTokenTTL,
		refreshRepo: refreshRepo,
	}

	if cfg.Alg != "" {
		alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
		if !ok {
			return nil, fmt.Errorf("signing method %q is not a supported HMAC method", cfg.Alg)
		}
		m.alg = alg
	}
	if cfg.AccessTTL != 0 {
		m.accessTTL = cfg.AccessTTL
	}
	if cfg.RefreshTTL != 0 {
		m.refreshTTL = cfg.RefreshTTL
	}

	return m, nil
}

// GeneratePair signs an access token for the worker and stores a new refresh token
func (m *TokenManager) GeneratePair(ctx context.Context, worker models.Worker) (models.TokenPair, error) {
	if worker.ID == uuid.Nil || worker.TipID == "" {
		return models.TokenPair{}, errors.New("worker id and tip id are required to issue tokens")
	}

	now := time.Now().Truncate(time.Second)

	access, err := m.signAccess(worker, now)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.issueRefresh(ctx, worker.ID, now)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) signAccess(worker models.Worker, now time.Time) (models.IssuedToken, error) {
	expiresAt := now.Add(m.accessTTL)

	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   worker.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		WorkerID: worker.ID,
		TipID:    worker.TipID,
	}

	value, err := jwt.NewWithClaims(m.alg, claims).SignedString([]byte(m.key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

func (m *TokenManager) issueRefresh(ctx context.Context, workerID uuid.UUID, now time.Time) (models.IssuedToken, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return models.IssuedToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	token := models.RefreshToken{
		ID:        uuid.New(),
		WorkerID:  workerID,
		Token:     base64.RawURLEncoding.EncodeToString(b),
		CreatedAt: now,
		ExpiresAt: now.Add(m.refreshTTL),
	}
	if _, err := m.refreshRepo.Save(ctx, token); err != nil {
		return models.IssuedToken{}, fmt.Errorf("save refresh token: %w", err)
	}
	return models.IssuedToken{Value: token.Token, ExpiresAt: token.ExpiresAt}, nil
}

// UseRefresh marks the refresh token used and returns it
// A token is accepted once, an expired one is burnt anyway
func (m *TokenManager) UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error) {
	token, err := m.refreshRepo.GetAndMarkUsed(ctx, refresh)
	if err != nil {
		return token, fmt.Errorf("use refresh token: %w", err)
	}

	if token.ExpiresAt.Before(time.Now()) {
		return token, fmt.Errorf("use refresh token: %w", apperrors.ErrRefreshTokenExpired)
	}
	return token, nil
}

// ParseAccess validates the access token and returns the worker it was issued to
// Tokens of another issuer or with a subject other than the worker are rejected
func (m *TokenManager) ParseAccess(_ context.Context, access string) (models.AccessClaims, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(*jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.AccessClaims{}, fmt.Errorf("parse access token: %w", err)
	}

	if claims.WorkerID == uuid.Nil || claims.Subject != claims.WorkerID.String() || claims.TipID == "" {
		return models.AccessClaims{}, fmt.Errorf("parse access token: %w", jwt.ErrTokenInvalidClaims)
	}

	return models.AccessClaims{WorkerID: claims.WorkerID, TipID: claims.TipID}, nil
}
