package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
)

var ErrNoSession = fmt.Errorf("session %w", apperrors.ErrNotFound)

// Snapshot of the authenticated worker
// It is a cache: storage stays the source of truth and the snapshot is refreshed after every balance change
type Snapshot struct {
	WorkerID uuid.UUID       `json:"id"`
	FullName string          `json:"fullName"`
	TipID    string          `json:"tipId"`
	Phone    string          `json:"phone"`
	Balance  decimal.Decimal `json:"balance"`
	SavedAt  time.Time       `json:"savedAt"`
}

func FromWorker(w models.Worker) Snapshot {
	return Snapshot{
		WorkerID: w.ID,
		FullName: w.FullName,
		TipID:    w.TipID,
		Phone:    w.Phone,
		Balance:  w.Balance,
		SavedAt:  time.Now(),
	}
}

type Store interface {
	Save(ctx context.Context, snap Snapshot) error

	// Must return ErrNoSession if nothing saved for the worker
	Load(ctx context.Context, workerID uuid.UUID) (Snapshot, error)

	// Clearing a missing session is not an error
	Clear(ctx context.Context, workerID uuid.UUID) error
}

// MemoryStore keeps snapshots in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[uuid.UUID]Snapshot)}
}

func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.WorkerID] = snap
	return nil
}

func (s *MemoryStore) Load(_ context.Context, workerID uuid.UUID) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[workerID]
	if !ok {
		return Snapshot{}, ErrNoSession
	}
	return snap, nil
}

func (s *MemoryStore) Clear(_ context.Context, workerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, workerID)
	return nil
}
