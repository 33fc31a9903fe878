package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/models"
)

type WorkerRepo struct {
	DB DBTX
}

const workerColumns = `id, created_at, full_name, phone, tip_id, pin_hash, occupation, workplace, balance`

const createWorker = `-- name: CreateWorker
INSERT INTO workers (id, created_at, full_name, phone, tip_id, pin_hash, occupation, workplace, balance)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
RETURNING ` + workerColumns

func (r *WorkerRepo) CreateWorker(ctx context.Context, w models.Worker) (models.Worker, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createWorker, w.ID, w.CreatedAt, w.FullName, w.Phone, w.TipID, w.PinHash, w.Occupation, w.Workplace)
	worker, err := pgx.CollectOneRow(rows, rowToWorker)

	switch {
	case err == nil:
		return worker, nil
	case pgErrorCode(err) == pgerrcode.UniqueViolation && pgConstraint(err) == "workers_tip_id_key":
		return worker, apperrors.ErrTipIDTaken
	case pgErrorCode(err) == pgerrcode.UniqueViolation:
		return worker, apperrors.ErrWorkerAlreadyExists
	default:
		return worker, dbError("create worker", err)
	}
}

const getWorkerByID = `-- name: GetWorkerByID
SELECT ` + workerColumns + ` FROM workers
WHERE id = $1
`

func (r *WorkerRepo) GetWorkerByID(ctx context.Context, workerID uuid.UUID, lock bool) (models.Worker, error) {
	query := getWorkerByID
	if lock {
		query += "FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, workerID)
	return collectWorker(rows)
}

const getWorkerByPhone = `-- name: GetWorkerByPhone
SELECT ` + workerColumns + ` FROM workers
WHERE phone = $1
`

func (r *WorkerRepo) GetWorkerByPhone(ctx context.Context, phone string) (models.Worker, error) {
	rows, _ := r.DB.Query(ctx, getWorkerByPhone, phone)
	return collectWorker(rows)
}

const getWorkerByTipID = `-- name: GetWorkerByTipID
SELECT ` + workerColumns + ` FROM workers
WHERE tip_id = $1
`

func (r *WorkerRepo) GetWorkerByTipID(ctx context.Context, tipID string) (models.Worker, error) {
	rows, _ := r.DB.Query(ctx, getWorkerByTipID, tipID)
	return collectWorker(rows)
}

const addBalance = `-- name: AddBalance
UPDATE workers
SET balance = balance + $2
WHERE id = $1
RETURNING ` + workerColumns

func (r *WorkerRepo) AddBalance(ctx context.Context, workerID uuid.UUID, delta decimal.Decimal) (models.Worker, error) {
	rows, _ := r.DB.Query(ctx, addBalance, workerID, delta)
	worker, err := pgx.CollectOneRow(rows, rowToWorker)

	switch {
	case err == nil:
		return worker, nil
	case pgErrorCode(err) == pgerrcode.CheckViolation:
		return worker, apperrors.ErrBalanceInsufficient
	case errors.Is(err, pgx.ErrNoRows):
		return worker, apperrors.ErrWorkerNotFound
	default:
		return worker, dbError("add balance", err)
	}
}

const setBalance = `-- name: SetBalance
UPDATE workers
SET balance = $2
WHERE id = $1
RETURNING ` + workerColumns

func (r *WorkerRepo) SetBalance(ctx context.Context, workerID uuid.UUID, balance decimal.Decimal) (models.Worker, error) {
	rows, _ := r.DB.Query(ctx, setBalance, workerID, balance)
	worker, err := pgx.CollectOneRow(rows, rowToWorker)

	switch {
	case err == nil:
		return worker, nil
	case pgErrorCode(err) == pgerrcode.CheckViolation:
		return worker, apperrors.ErrBalanceInsufficient
	case errors.Is(err, pgx.ErrNoRows):
		return worker, apperrors.ErrWorkerNotFound
	default:
		return worker, dbError("set balance", err)
	}
}

const listWorkerIDs = `-- name: ListWorkerIDs
SELECT id FROM workers
ORDER BY created_at, id
`

func (r *WorkerRepo) ListWorkerIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, _ := r.DB.Query(ctx, listWorkerIDs)
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, dbError("list workers", err)
	}
	return ids, nil
}

func collectWorker(rows pgx.Rows) (models.Worker, error) {
	worker, err := pgx.CollectOneRow(rows, rowToWorker)

	switch {
	case err == nil:
		return worker, nil
	case errors.Is(err, pgx.ErrNoRows):
		return worker, apperrors.ErrWorkerNotFound
	default:
		return worker, dbError("get worker", err)
	}
}

func rowToWorker(row pgx.CollectableRow) (models.Worker, error) {
	var w models.Worker
	err := row.Scan(&w.ID, &w.CreatedAt, &w.FullName, &w.Phone, &w.TipID, &w.PinHash, &w.Occupation, &w.Workplace, &w.Balance)
	return w, err
}
