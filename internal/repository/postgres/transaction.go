package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
)

type TransactionRepo struct {
	DB DBTX
}

const transactionColumns = `id, seq, created_at, worker_id, type, method, status, amount, sender_name, recipient, phone, goal_id, metadata`

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (id, created_at, worker_id, type, method, status, amount, sender_name, recipient, phone, goal_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + transactionColumns

func (r *TransactionRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = models.TransactionStatusCompleted
	}
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}

	rows, _ := r.DB.Query(ctx, createTransaction,
		t.ID, t.CreatedAt, t.WorkerID, t.Type, t.Method, t.Status, t.Amount,
		t.SenderName, t.Recipient, t.Phone, t.GoalID, t.Metadata,
	)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)
	if err != nil {
		return created, dbError("create transaction", err)
	}

	return created, nil
}

const listTransactions = `-- name: ListTransactions
SELECT ` + transactionColumns + ` FROM transactions
WHERE worker_id = $1
	AND ($2::text[] IS NULL OR type = ANY($2::text[]))
ORDER BY created_at DESC, seq ASC
LIMIT NULLIF($3::int, 0)
`

func (r *TransactionRepo) ListTransactions(ctx context.Context, workerID uuid.UUID, opts ...repository.ListTransactionsOption) ([]models.Transaction, error) {
	o := repository.ListTransactionsOpts{}
	for _, option := range opts {
		option(&o)
	}

	var types []string
	if len(o.Types) > 0 {
		types = o.Types
	}

	rows, _ := r.DB.Query(ctx, listTransactions, workerID, types, o.Limit)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, dbError("list transactions", err)
	}

	return transactions, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.Seq, &t.CreatedAt, &t.WorkerID, &t.Type, &t.Method, &t.Status, &t.Amount,
		&t.SenderName, &t.Recipient, &t.Phone, &t.GoalID, &t.Metadata,
	)
	return t, err
}
