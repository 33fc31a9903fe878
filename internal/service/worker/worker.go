package worker

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
	"github.com/nkiryanov/tipwallet/internal/retry"
	"github.com/nkiryanov/tipwallet/internal/service/auth"
	"github.com/nkiryanov/tipwallet/internal/service/validate"
	"github.com/nkiryanov/tipwallet/internal/session"
)

const (
	tipIDPrefix   = "TIP-"
	tipIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	tipIDLength   = 6

	maxTipIDAttempts = 5
)

type WorkerService struct {
	hasher   auth.PinHasher
	storage  repository.Storage
	sessions session.Store
	retry    retry.Policy
	logger   logger.Logger
}

func NewService(hasher auth.PinHasher, storage repository.Storage, sessions session.Store, logger logger.Logger) *WorkerService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}

	return &WorkerService{
		hasher:   hasher,
		storage:  storage,
		sessions: sessions,
		retry:    retry.DefaultPolicy,
		logger:   logger,
	}
}

// Register creates a worker with zero balance and a fresh public tip id
func (s *WorkerService) Register(ctx context.Context, profile models.Profile) (models.Worker, error) {
	var worker models.Worker

	profile.FullName = strings.TrimSpace(profile.FullName)
	if profile.FullName == "" {
		return worker, apperrors.Invalid("fullName", "is required")
	}
	if err := validate.Phone(profile.Phone); err != nil {
		return worker, apperrors.Invalid("phone", err.Error())
	}
	if err := validate.Pin(profile.Pin); err != nil {
		return worker, apperrors.Invalid("pin", err.Error())
	}

	hash, err := s.hasher.Hash(profile.Pin)
	if err != nil {
		return worker, fmt.Errorf("can't use this as pin, Err: %w", err)
	}

	for attempt := 1; ; attempt++ {
		tipID, err := NewTipID()
		if err != nil {
			return worker, err
		}

		// Own transaction: a unique violation must not poison an enclosing one
		err = s.storage.InTx(ctx, func(st repository.Storage) error {
			var err error
			worker, err = st.Worker().CreateWorker(ctx, models.Worker{
				FullName:   profile.FullName,
				Phone:      validate.NormalizePhone(profile.Phone),
				TipID:      tipID,
				PinHash:    hash,
				Occupation: strings.TrimSpace(profile.Occupation),
				Workplace:  strings.TrimSpace(profile.Workplace),
			})
			return err
		})
		if errors.Is(err, apperrors.ErrTipIDTaken) && attempt < maxTipIDAttempts {
			s.logger.Debug("Tip id collision, generating another", "tip_id", tipID, "attempt", attempt)
			continue
		}
		if err != nil {
			return worker, fmt.Errorf("can't create worker. Err: %w", err)
		}
		break
	}

	s.logger.Info("Worker registered", "worker_id", worker.ID, "tip_id", worker.TipID)
	s.save(ctx, worker)
	return worker, nil
}

// Login checks phone and pin. Unknown phone and wrong pin are indistinguishable
func (s *WorkerService) Login(ctx context.Context, phone string, pin string) (models.Worker, error) {
	worker, err := retry.Value(ctx, s.retry, func() (models.Worker, error) {
		return s.storage.Worker().GetWorkerByPhone(ctx, validate.NormalizePhone(phone))
	})
	switch {
	case errors.Is(err, apperrors.ErrWorkerNotFound):
		return models.Worker{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.Worker{}, err
	}

	if err := s.hasher.Compare(worker.PinHash, pin); err != nil {
		return models.Worker{}, apperrors.ErrInvalidCredentials
	}

	s.save(ctx, worker)
	return worker, nil
}

func (s *WorkerService) Logout(ctx context.Context, workerID uuid.UUID) error {
	return s.sessions.Clear(ctx, workerID)
}

// Refresh re-reads the worker from storage and saves the session snapshot
// Has to be called after every balance change
func (s *WorkerService) Refresh(ctx context.Context, workerID uuid.UUID) (models.Worker, error) {
	worker, err := s.Get(ctx, workerID)
	if err != nil {
		return worker, err
	}
	s.save(ctx, worker)
	return worker, nil
}

func (s *WorkerService) Get(ctx context.Context, workerID uuid.UUID) (models.Worker, error) {
	return retry.Value(ctx, s.retry, func() (models.Worker, error) {
		return s.storage.Worker().GetWorkerByID(ctx, workerID, false)
	})
}

// Public profile for the tip page, phone is never exposed
func (s *WorkerService) LookupByTipID(ctx context.Context, tipID string) (models.PublicWorker, error) {
	tipID = strings.ToUpper(strings.TrimSpace(tipID))
	if err := validate.TipID(tipID); err != nil {
		return models.PublicWorker{}, apperrors.Invalid("tipId", err.Error())
	}

	worker, err := retry.Value(ctx, s.retry, func() (models.Worker, error) {
		return s.storage.Worker().GetWorkerByTipID(ctx, tipID)
	})
	if err != nil {
		return models.PublicWorker{}, err
	}
	return worker.Public(), nil
}

// Session returns the saved snapshot, falls back to storage if nothing saved
func (s *WorkerService) Session(ctx context.Context, workerID uuid.UUID) (session.Snapshot, error) {
	snap, err := s.sessions.Load(ctx, workerID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, session.ErrNoSession) {
		s.logger.Warn("Session store unavailable, reading storage", "worker_id", workerID, "error", err)
	}

	worker, err := s.Refresh(ctx, workerID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return session.FromWorker(worker), nil
}

// Snapshot is a cache, failing to save it must not fail the operation that already succeeded
func (s *WorkerService) save(ctx context.Context, worker models.Worker) {
	if err := s.sessions.Save(ctx, session.FromWorker(worker)); err != nil {
		s.logger.Warn("Failed to save session", "worker_id", worker.ID, "error", err)
	}
}

// NewTipID generates public short code like TIP-7KQ2MX
func NewTipID() (string, error) {
	b := make([]byte, tipIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating tip id. Err: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(tipIDPrefix)
	for _, v := range b {
		sb.WriteByte(tipIDAlphabet[int(v)%len(tipIDAlphabet)])
	}
	return sb.String(), nil
}
