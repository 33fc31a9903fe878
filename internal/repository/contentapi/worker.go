package contentapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
)

type WorkerRepo struct {
	client *Client
}

func (r *WorkerRepo) CreateWorker(ctx context.Context, w models.Worker) (models.Worker, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}

	// Backend does not enforce uniqueness, check before insert
	_, err := r.GetWorkerByPhone(ctx, w.Phone)
	switch {
	case err == nil:
		return models.Worker{}, apperrors.ErrWorkerAlreadyExists
	case !errors.Is(err, apperrors.ErrWorkerNotFound):
		return models.Worker{}, err
	}

	_, err = r.GetWorkerByTipID(ctx, w.TipID)
	switch {
	case err == nil:
		return models.Worker{}, apperrors.ErrTipIDTaken
	case !errors.Is(err, apperrors.ErrWorkerNotFound):
		return models.Worker{}, err
	}

	res, err := r.client.Do(ctx, http.MethodPost, workersPath, nil, map[string]any{
		"id":         w.ID.String(),
		"createdAt":  w.CreatedAt.UTC().Format(time.RFC3339Nano),
		"fullName":   w.FullName,
		"phone":      w.Phone,
		"tipId":      w.TipID,
		"pinHash":    w.PinHash,
		"occupation": w.Occupation,
		"workplace":  w.Workplace,
		"balance":    "0",
	})
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		return models.Worker{}, apperrors.ErrWorkerAlreadyExists
	case err != nil:
		return models.Worker{}, err
	}

	return decodeWorker(res)
}

func (r *WorkerRepo) GetWorkerByID(ctx context.Context, workerID uuid.UUID, _ bool) (models.Worker, error) {
	res, err := r.client.Do(ctx, http.MethodGet, workersPath+"/"+workerID.String(), nil, nil)
	if err != nil {
		return models.Worker{}, mapWorkerErr(err)
	}
	return decodeWorker(res)
}

func (r *WorkerRepo) GetWorkerByPhone(ctx context.Context, phone string) (models.Worker, error) {
	return r.findOne(ctx, "phone", phone, func(w models.Worker) bool { return w.Phone == phone })
}

func (r *WorkerRepo) GetWorkerByTipID(ctx context.Context, tipID string) (models.Worker, error) {
	return r.findOne(ctx, "tipId", tipID, func(w models.Worker) bool { return w.TipID == tipID })
}

// findOne filters on the backend and checks again locally, backends may ignore unknown filters
func (r *WorkerRepo) findOne(ctx context.Context, field string, value string, match func(models.Worker) bool) (models.Worker, error) {
	query := url.Values{}
	query.Set(fmt.Sprintf("filters[%s][$eq]", field), value)

	records, err := r.client.List(ctx, workersPath, query)
	if err != nil {
		return models.Worker{}, mapWorkerErr(err)
	}

	for _, rec := range records {
		w := recordToWorker(rec)
		if match(w) {
			return w, nil
		}
	}
	return models.Worker{}, apperrors.ErrWorkerNotFound
}

func (r *WorkerRepo) AddBalance(ctx context.Context, workerID uuid.UUID, delta decimal.Decimal) (models.Worker, error) {
	w, err := r.GetWorkerByID(ctx, workerID, true)
	if err != nil {
		return w, err
	}

	balance := w.Balance.Add(delta)
	if balance.IsNegative() {
		return w, apperrors.ErrBalanceInsufficient
	}

	return r.SetBalance(ctx, workerID, balance)
}

func (r *WorkerRepo) SetBalance(ctx context.Context, workerID uuid.UUID, balance decimal.Decimal) (models.Worker, error) {
	if balance.IsNegative() {
		return models.Worker{}, apperrors.ErrBalanceInsufficient
	}

	res, err := r.client.Do(ctx, http.MethodPut, workersPath+"/"+workerID.String(), nil, map[string]any{
		"balance": balance.String(),
	})
	if err != nil {
		return models.Worker{}, mapWorkerErr(err)
	}
	return decodeWorker(res)
}

func (r *WorkerRepo) ListWorkerIDs(ctx context.Context) ([]uuid.UUID, error) {
	records, err := r.client.List(ctx, workersPath, url.Values{"sort": {"createdAt:asc"}})
	if err != nil {
		return nil, err
	}

	workers := make([]models.Worker, 0, len(records))
	for _, rec := range records {
		workers = append(workers, recordToWorker(rec))
	}
	sort.SliceStable(workers, func(i, j int) bool {
		return workers[i].CreatedAt.Before(workers[j].CreatedAt)
	})

	ids := make([]uuid.UUID, 0, len(workers))
	for _, w := range workers {
		ids = append(ids, w.ID)
	}
	return ids, nil
}

func mapWorkerErr(err error) error {
	if errors.Is(err, errNotFound) {
		return apperrors.ErrWorkerNotFound
	}
	return err
}

func decodeWorker(res gjson.Result) (models.Worker, error) {
	rec, ok := unwrapOne(res)
	if !ok {
		return models.Worker{}, errors.New("content api: worker record missing in response")
	}
	return recordToWorker(rec), nil
}

func recordToWorker(rec record) models.Worker {
	return models.Worker{
		ID:         rec.uuid(),
		CreatedAt:  rec.time("createdAt", "created_at"),
		FullName:   rec.str("fullName", "full_name"),
		Phone:      rec.str("phone"),
		TipID:      rec.str("tipId", "tip_id"),
		PinHash:    rec.str("pinHash", "pin_hash"),
		Occupation: rec.str("occupation"),
		Workplace:  rec.str("workplace"),
		Balance:    rec.decimal("balance"),
	}
}
