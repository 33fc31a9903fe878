package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshToken"
	defaultRefreshCookiePath = "/api/auth"
)

type Config struct {
	// Header and scheme the access token is sent with
	AccessHeaderName string
	AccessAuthScheme string

	// Refresh token travels in a http only cookie
	RefreshCookieName string
	RefreshCookiePath string
}

type tokenManager interface {
	// Access token carries worker id and tip id
	GeneratePair(ctx context.Context, worker models.Worker) (models.TokenPair, error)

	// Mark refresh token used and return it
	// Has to fail with apperrors.ErrRefreshTokenExpired, ErrRefreshTokenIsUsed or ErrRefreshTokenNotFound
	UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error)

	ParseAccess(ctx context.Context, access string) (models.AccessClaims, error)
}

type workerService interface {
	Register(ctx context.Context, profile models.Profile) (models.Worker, error)

	// Has to return apperrors.ErrInvalidCredentials if phone unknown or pin mismatch
	Login(ctx context.Context, phone string, pin string) (models.Worker, error)

	// Forget session snapshot of the worker
	Logout(ctx context.Context, workerID uuid.UUID) error

	Get(ctx context.Context, workerID uuid.UUID) (models.Worker, error)
}

// AuthService issues tokens for workers and reads them back from requests
type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
	refreshCookiePath string

	tokens  tokenManager
	workers workerService
}

func NewService(cfg Config, tokens tokenManager, workers workerService) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)
	setDefault(&cfg.RefreshCookiePath, defaultRefreshCookiePath)

	return &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		refreshCookiePath: cfg.RefreshCookiePath,
		tokens:            tokens,
		workers:           workers,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, profile models.Profile) (models.Worker, models.TokenPair, error) {
	worker, err := s.workers.Register(ctx, profile)
	if err != nil {
		return worker, models.TokenPair{}, err
	}

	pair, err := s.tokens.GeneratePair(ctx, worker)
	if err != nil {
		return worker, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return worker, pair, nil
}

func (s *AuthService) Login(ctx context.Context, phone string, pin string) (models.Worker, models.TokenPair, error) {
	worker, err := s.workers.Login(ctx, phone, pin)
	if err != nil {
		return worker, models.TokenPair{}, err
	}

	pair, err := s.tokens.GeneratePair(ctx, worker)
	if err != nil {
		return worker, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return worker, pair, nil
}

// Rotate refresh token: old one becomes used and a new pair is issued
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	token, err := s.tokens.UseRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	// Current worker, its tip id goes into the new access token
	worker, err := s.workers.Get(ctx, token.WorkerID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return s.tokens.GeneratePair(ctx, worker)
}

// Logout burns the refresh token (if any) and clears the session snapshot
func (s *AuthService) Logout(ctx context.Context, workerID uuid.UUID, refresh string) error {
	if refresh != "" {
		_, err := s.tokens.UseRefresh(ctx, refresh)
		switch {
		case err == nil,
			errors.Is(err, apperrors.ErrRefreshTokenIsUsed),
			errors.Is(err, apperrors.ErrRefreshTokenExpired),
			errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		default:
			return err
		}
	}

	return s.workers.Logout(ctx, workerID)
}

// Set auth tokens (access, refresh) to response
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     s.refreshCookiePath,
		Expires:  pair.Refresh.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Drop refresh cookie on the client
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     s.refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", apperrors.ErrRefreshTokenNotFound
	}
	return cookie.Value, nil
}

// Auth returns id of the worker the request is authenticated as
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (uuid.UUID, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, access, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, s.accessAuthScheme) || access == "" {
		return uuid.Nil, fmt.Errorf("access token missing: %w", apperrors.ErrAuthentication)
	}

	claims, err := s.tokens.ParseAccess(ctx, access)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrAuthentication, err)
	}
	return claims.WorkerID, nil
}
