package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
	"github.com/nkiryanov/tipwallet/internal/repository/postgres"
	"github.com/nkiryanov/tipwallet/internal/service/auth"
	"github.com/nkiryanov/tipwallet/internal/service/validate"
	"github.com/nkiryanov/tipwallet/internal/session"
	"github.com/nkiryanov/tipwallet/internal/testutil"
)

var profile = models.Profile{
	FullName:   "  Jane Doe ",
	Phone:      "+256 772 000 111",
	Pin:        "1234",
	Occupation: "Waiter",
	Workplace:  "Cafe Javas",
}

// Session store that is always down
type brokenStore struct{}

func (brokenStore) Save(context.Context, session.Snapshot) error { return errors.New("store down") }
func (brokenStore) Load(context.Context, uuid.UUID) (session.Snapshot, error) {
	return session.Snapshot{}, errors.New("store down")
}
func (brokenStore) Clear(context.Context, uuid.UUID) error { return errors.New("store down") }

func TestWorker(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	inTx := func(t *testing.T, fn func(s *WorkerService, storage repository.Storage, sessions *session.MemoryStore)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			sessions := session.NewMemoryStore()
			fn(NewService(hasher, storage, sessions, logger.NewNoOpLogger()), storage, sessions)
		})
	}

	t.Run("Register", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			inTx(t, func(s *WorkerService, _ repository.Storage, sessions *session.MemoryStore) {
				worker, err := s.Register(t.Context(), profile)

				require.NoError(t, err, "registering new worker should be ok")
				require.NotEqual(t, uuid.Nil, worker.ID)
				require.Equal(t, "Jane Doe", worker.FullName, "name should be trimmed")
				require.Equal(t, "+256772000111", worker.Phone, "phone should be normalized")
				require.True(t, worker.Balance.IsZero(), "new worker starts with zero balance")
				require.NoError(t, validate.TipID(worker.TipID), "tip id should be well formed")
				require.NotEqual(t, "1234", worker.PinHash, "pin should be hashed")

				snap, err := sessions.Load(t.Context(), worker.ID)
				require.NoError(t, err, "session should be saved on registration")
				require.Equal(t, worker.TipID, snap.TipID)
			})
		})

		t.Run("duplicate phone conflicts", func(t *testing.T) {
			inTx(t, func(s *WorkerService, _ repository.Storage, _ *session.MemoryStore) {
				_, err := s.Register(t.Context(), profile)
				require.NoError(t, err)

				_, err = s.Register(t.Context(), profile)

				require.ErrorIs(t, err, apperrors.ErrWorkerAlreadyExists)
				require.ErrorIs(t, err, apperrors.ErrConflict)
			})
		})

		t.Run("validation", func(t *testing.T) {
			tests := []struct {
				name   string
				modify func(p *models.Profile)
				field  string
			}{
				{"missing name", func(p *models.Profile) { p.FullName = "  " }, "fullName"},
				{"missing phone", func(p *models.Profile) { p.Phone = "" }, "phone"},
				{"short phone", func(p *models.Profile) { p.Phone = "077200" }, "phone"},
				{"missing pin", func(p *models.Profile) { p.Pin = "" }, "pin"},
				{"letters in pin", func(p *models.Profile) { p.Pin = "12a4" }, "pin"},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					inTx(t, func(s *WorkerService, _ repository.Storage, _ *session.MemoryStore) {
						p := profile
						tt.modify(&p)

						_, err := s.Register(t.Context(), p)

						var vErr *apperrors.ValidationError
						require.ErrorAs(t, err, &vErr)
						require.Equal(t, tt.field, vErr.Field)
						require.ErrorIs(t, err, apperrors.ErrValidation)
					})
				})
			}
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("ok with differently formatted phone", func(t *testing.T) {
			inTx(t, func(s *WorkerService, _ repository.Storage, _ *session.MemoryStore) {
				registered, err := s.Register(t.Context(), profile)
				require.NoError(t, err)

				worker, err := s.Login(t.Context(), "+256-772-000-111", "1234")

				require.NoError(t, err)
				require.Equal(t, registered.ID, worker.ID)
			})
		})

		t.Run("wrong pin", func(t *testing.T) {
			inTx(t, func(s *WorkerService, _ repository.Storage, _ *session.MemoryStore) {
				_, err := s.Register(t.Context(), profile)
				require.NoError(t, err)

				_, err = s.Login(t.Context(), profile.Phone, "9999")

				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
				require.ErrorIs(t, err, apperrors.ErrAuthentication)
			})
		})

		t.Run("unknown phone", func(t *testing.T) {
			inTx(t, func(s *WorkerService, _ repository.Storage, _ *session.MemoryStore) {
				_, err := s.Login(t.Context(), "0700000000", "1234")

				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			})
		})
	})

	t.Run("Refresh reads balance from storage", func(t *testing.T) {
		inTx(t, func(s *WorkerService, storage repository.Storage, sessions *session.MemoryStore) {
			worker, err := s.Register(t.Context(), profile)
			require.NoError(t, err)

			_, err = storage.Worker().AddBalance(t.Context(), worker.ID, mustDecimal("5000"))
			require.NoError(t, err)

			refreshed, err := s.Refresh(t.Context(), worker.ID)

			require.NoError(t, err)
			require.Equal(t, "5000", refreshed.Balance.String())
			snap, err := sessions.Load(t.Context(), worker.ID)
			require.NoError(t, err)
			require.Equal(t, "5000", snap.Balance.String(), "snapshot should follow storage")
		})
	})

	t.Run("Refresh unknown worker", func(t *testing.T) {
		inTx(t, func(s *WorkerService, _ repository.Storage, _ *session.MemoryStore) {
			_, err := s.Refresh(t.Context(), uuid.New())

			require.ErrorIs(t, err, apperrors.ErrWorkerNotFound)
		})
	})

	t.Run("LookupByTipID", func(t *testing.T) {
		inTx(t, func(s *WorkerService, _ repository.Storage, _ *session.MemoryStore) {
			worker, err := s.Register(t.Context(), profile)
			require.NoError(t, err)

			public, err := s.LookupByTipID(t.Context(), " "+worker.TipID)
			require.NoError(t, err)
			require.Equal(t, worker.FullName, public.FullName)
			require.Equal(t, worker.TipID, public.TipID)

			_, err = s.LookupByTipID(t.Context(), "TIP-000000")
			require.ErrorIs(t, err, apperrors.ErrWorkerNotFound)

			_, err = s.LookupByTipID(t.Context(), "nope")
			require.ErrorIs(t, err, apperrors.ErrValidation)
		})
	})

	t.Run("Logout clears session", func(t *testing.T) {
		inTx(t, func(s *WorkerService, _ repository.Storage, sessions *session.MemoryStore) {
			worker, err := s.Register(t.Context(), profile)
			require.NoError(t, err)

			err = s.Logout(t.Context(), worker.ID)
			require.NoError(t, err)

			_, err = sessions.Load(t.Context(), worker.ID)
			require.ErrorIs(t, err, session.ErrNoSession)

			snap, err := s.Session(t.Context(), worker.ID)
			require.NoError(t, err, "session is rebuilt from storage")
			require.Equal(t, worker.ID, snap.WorkerID)
		})
	})

	t.Run("broken session store does not fail login", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			s := NewService(hasher, postgres.NewStorage(tx), brokenStore{}, logger.NewNoOpLogger())

			worker, err := s.Register(t.Context(), profile)
			require.NoError(t, err)

			_, err = s.Login(t.Context(), profile.Phone, profile.Pin)
			require.NoError(t, err)

			snap, err := s.Session(t.Context(), worker.ID)
			require.NoError(t, err)
			require.Equal(t, worker.ID, snap.WorkerID)
		})
	})
}

func TestNewTipID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		tipID, err := NewTipID()
		require.NoError(t, err)
		require.NoError(t, validate.TipID(tipID))
		seen[tipID] = struct{}{}
	}
	require.Greater(t, len(seen), 95, "tip ids should be random")
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
