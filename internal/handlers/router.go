package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/handlers/middleware"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/metrics"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/redisstore"
	"github.com/nkiryanov/tipwallet/internal/service/goal"
	"github.com/nkiryanov/tipwallet/internal/service/reconcile"
	"github.com/nkiryanov/tipwallet/internal/service/wallet"
	"github.com/nkiryanov/tipwallet/internal/session"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Auth       authService
	Workers    workerService
	Wallet     walletService
	Goals      goalService
	Reconciler reconciler
	Health     Pinger // optional
}

type Options struct {
	RequestTimeout time.Duration

	// Replays repeated money-moving requests. Nil disables idempotency keys
	Idempotency IdempotencyStore

	// Throttles login and registration per client. Nil disables it
	LoginLimiter *middleware.RateLimiter
}

func NewRouter(s Services, opts Options, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(s.Auth)
	idempotent := middleware.Idempotency(opts.Idempotency, logger)
	limited := func(h http.Handler) http.Handler {
		if opts.LoginLimiter == nil {
			return h
		}
		return opts.LoginLimiter.Middleware(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/register", limited(handleRegister(s.Auth, logger)))
	mux.Handle("POST /api/auth/login", limited(handleLogin(s.Auth, logger)))
	mux.Handle("POST /api/auth/refresh", handleTokenRefresh(s.Auth, logger))
	mux.Handle("POST /api/auth/logout", withAuth(handleLogout(s.Auth, logger)))

	mux.Handle("GET /api/workers/lookup/{tipId}", handleLookupWorker(s.Workers, logger))
	mux.Handle("POST /api/tips", idempotent(handleCreateTip(s.Wallet, logger)))

	mux.Handle("GET /api/worker/me", withAuth(handleWorkerMe(s.Workers, logger)))
	mux.Handle("GET /api/worker/session", withAuth(handleWorkerSession(s.Workers, logger)))
	mux.Handle("POST /api/worker/refresh", withAuth(handleWorkerRefresh(s.Workers, logger)))

	mux.Handle("GET /api/wallet/transactions", withAuth(handleListTransactions(s.Wallet, logger)))
	mux.Handle("POST /api/wallet/withdraw", withAuth(idempotent(handleWithdraw(s.Wallet, logger))))
	mux.Handle("POST /api/wallet/transfer", withAuth(idempotent(handleTransfer(s.Wallet, logger))))
	mux.Handle("POST /api/wallet/reconcile", withAuth(handleReconcile(s.Reconciler, logger)))

	mux.Handle("GET /api/goals", withAuth(handleListGoals(s.Goals, logger)))
	mux.Handle("POST /api/goals", withAuth(handleCreateGoal(s.Goals, logger)))
	mux.Handle("GET /api/goals/summary", withAuth(handleGoalsSummary(s.Goals, logger)))
	mux.Handle("GET /api/goals/allocation-preview", withAuth(handleAllocationPreview(s.Goals, logger)))
	mux.Handle("PATCH /api/goals/{id}", withAuth(handleUpdateGoal(s.Goals, logger)))
	mux.Handle("DELETE /api/goals/{id}", withAuth(handleDeleteGoal(s.Goals, logger)))
	mux.Handle("POST /api/goals/{id}/deposits", withAuth(idempotent(handleGoalDeposit(s.Goals, logger))))

	mux.Handle("GET /api/funds", handleListFunds(s.Goals))
	mux.Handle("POST /api/funds/{key}/investments", withAuth(idempotent(handleInvestInFund(s.Goals, logger))))

	mux.Handle("GET /health", handleHealth(s.Health, logger))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.Timeout(opts.RequestTimeout),
		metrics.InstrumentHandler,
	)

	return handler
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (redisstore.CachedResponse, bool, error)
	Lock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
	Put(ctx context.Context, key string, resp redisstore.CachedResponse) error
}

type authService interface {
	// Register worker and issue tokens
	// Has to return apperrors.ErrWorkerAlreadyExists if phone is taken
	Register(ctx context.Context, profile models.Profile) (models.Worker, models.TokenPair, error)

	// Has to return apperrors.ErrInvalidCredentials on unknown phone or wrong pin
	Login(ctx context.Context, phone string, pin string) (models.Worker, models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	Logout(ctx context.Context, workerID uuid.UUID, refresh string) error

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)
	ClearTokens(w http.ResponseWriter)

	// Get refresh token from request
	GetRefreshString(r *http.Request) (string, error)

	// Authenticated worker id or error
	Auth(ctx context.Context, r *http.Request) (uuid.UUID, error)
}

type workerService interface {
	Get(ctx context.Context, workerID uuid.UUID) (models.Worker, error)
	Refresh(ctx context.Context, workerID uuid.UUID) (models.Worker, error)
	Session(ctx context.Context, workerID uuid.UUID) (session.Snapshot, error)
	LookupByTipID(ctx context.Context, tipID string) (models.PublicWorker, error)
}

type walletService interface {
	RecordTip(ctx context.Context, tip wallet.Tip) (models.Transaction, error)
	Withdraw(ctx context.Context, workerID uuid.UUID, amount decimal.Decimal) (models.Transaction, models.Worker, error)
	Transfer(ctx context.Context, workerID uuid.UUID, amount decimal.Decimal, recipientPhone string, network string) (models.Transaction, models.Worker, error)
	ListTransactions(ctx context.Context, workerID uuid.UUID, filter string, search string) ([]models.Transaction, error)
}

type goalService interface {
	ListGoals(ctx context.Context, workerID uuid.UUID) ([]models.Goal, error)
	CreateGoal(ctx context.Context, workerID uuid.UUID, ng goal.NewGoal) (models.Goal, error)
	UpdateGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID, patch models.GoalPatch) (models.Goal, error)
	DeleteGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID) error
	DepositToGoal(ctx context.Context, workerID uuid.UUID, goalID uuid.UUID, d goal.Deposit) (models.Goal, models.Transaction, error)
	ListFunds() []models.Fund
	InvestInFund(ctx context.Context, workerID uuid.UUID, fundKey string, d goal.Deposit) (models.Goal, models.Transaction, error)
	Summary(ctx context.Context, workerID uuid.UUID) (models.GoalsSummary, error)
	AllocationPreview(ctx context.Context, workerID uuid.UUID, amount decimal.Decimal) ([]models.AllocationShare, decimal.Decimal, error)
}

type reconciler interface {
	ReconcileWorker(ctx context.Context, workerID uuid.UUID) (reconcile.Result, error)
}
