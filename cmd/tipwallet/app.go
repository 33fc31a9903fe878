package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/tipwallet/internal/db"
	"github.com/nkiryanov/tipwallet/internal/handlers"
	"github.com/nkiryanov/tipwallet/internal/handlers/middleware"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/redisstore"
	"github.com/nkiryanov/tipwallet/internal/repository"
	"github.com/nkiryanov/tipwallet/internal/repository/contentapi"
	"github.com/nkiryanov/tipwallet/internal/repository/postgres"
	"github.com/nkiryanov/tipwallet/internal/service/auth"
	"github.com/nkiryanov/tipwallet/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/tipwallet/internal/service/goal"
	"github.com/nkiryanov/tipwallet/internal/service/reconcile"
	"github.com/nkiryanov/tipwallet/internal/service/wallet"
	"github.com/nkiryanov/tipwallet/internal/service/worker"
	"github.com/nkiryanov/tipwallet/internal/session"
)

const (
	sessionTTL      = 24 * time.Hour
	shutdownTimeout = 5 * time.Second

	// Login and registration attempts per client
	loginPerMinute = 10
	loginBurst     = 5
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger     logger.Logger
	reconciler *reconcile.Reconciler
	limiter    *middleware.RateLimiter
	closers    []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	// Initialize logger
	logger, err := logger.New(c.LogFormat(), c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Initialize storage
	var (
		storage repository.Storage
		pinger  handlers.Pinger
	)
	switch c.StorageBackend {
	case BackendPostgres:
		pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN, 0)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		app.closers = append(app.closers, pool.Close)
		storage = postgres.NewStorage(pool)
		pinger = pool
	case BackendContentAPI:
		client := contentapi.NewClient(c.ContentAPIURL, c.ContentAPIToken, logger.With("component", "contentapi"))
		storage = contentapi.NewStorage(client)
		logger.Warn("Content backend storage is not transactional, balances rely on reconciliation", "url", c.ContentAPIURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	// Redis is optional: sessions fall back to memory, idempotency keys are disabled
	var (
		sessions    session.Store
		idempotency handlers.IdempotencyStore
	)
	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		sessions = redisstore.NewSessionStore(rdb, sessionTTL)
		idempotency = redisstore.NewIdempotencyStore(rdb)
	} else {
		logger.Warn("Redis is not configured, sessions are kept in memory and idempotency keys are ignored")
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.Refresh())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	workerService := worker.NewService(auth.DefaultHasher, storage, sessions, logger)
	authService, err := auth.NewService(auth.Config{}, tokenManager, workerService)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	walletService := wallet.NewService(storage, workerService, logger)
	goalService := goal.NewService(storage, workerService, logger)

	app.reconciler = reconcile.New(reconcile.Config{Interval: c.ReconcileInterval}, storage, logger.With("component", "reconciler"))
	app.limiter = middleware.NewRateLimiter(loginPerMinute, loginBurst)

	app.Handler = handlers.NewRouter(
		handlers.Services{
			Auth:       authService,
			Workers:    workerService,
			Wallet:     walletService,
			Goals:      goalService,
			Reconciler: app.reconciler,
			Health:     pinger,
		},
		handlers.Options{
			RequestTimeout: c.RequestTimeout,
			Idempotency:    idempotency,
			LoginLimiter:   app.limiter,
		},
		logger,
	)

	return app, nil
}

// Run starts http server and background jobs, closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	reconcileDone := s.reconciler.Run(srvCtx)
	cleanupDone := s.cleanupLimiter(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-reconcileDone
	<-cleanupDone

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Forget idle rate limiter clients from time to time
func (s *ServerApp) cleanupLimiter(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.Cleanup()
			}
		}
	}()

	return done
}

func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
