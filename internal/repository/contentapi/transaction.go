package contentapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
)

type TransactionRepo struct {
	client *Client
}

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
	// Insertion order for equal timestamps, the backend has no sequence of its own
	t.Seq = time.Now().UnixNano()

	payload := map[string]any{
		"id":         t.ID.String(),
		"seq":        strconv.FormatInt(t.Seq, 10),
		"createdAt":  t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"tip_worker": t.WorkerID.String(),
		"type":       t.Type,
		"method":     t.Method,
		"status":     t.Status,
		"amount":     t.Amount.String(),
		"senderName": t.SenderName,
		"recipient":  t.Recipient,
		"phone":      t.Phone,
		"metadata":   t.Metadata,
	}
	if t.GoalID != nil {
		payload["tip_goal"] = t.GoalID.String()
	}

	res, err := r.client.Do(ctx, http.MethodPost, transactionsPath, nil, payload)
	if err != nil {
		return models.Transaction{}, err
	}

	rec, ok := unwrapOne(res)
	if !ok {
		return models.Transaction{}, errors.New("content api: transaction record missing in response")
	}
	created := recordToTransaction(rec)
	if created.Seq == 0 {
		created.Seq = t.Seq
	}
	return created, nil
}

func (r *TransactionRepo) ListTransactions(ctx context.Context, workerID uuid.UUID, opts ...repository.ListTransactionsOption) ([]models.Transaction, error) {
	o := repository.ListTransactionsOpts{}
	for _, option := range opts {
		option(&o)
	}

	query := url.Values{}
	query.Set("filters[tip_worker][id][$eq]", workerID.String())
	query.Set("sort", "createdAt:desc")
	for i, typ := range o.Types {
		query.Set("filters[type][$in]["+strconv.Itoa(i)+"]", typ)
	}

	records, err := r.client.List(ctx, transactionsPath, query)
	if err != nil {
		return nil, err
	}

	transactions := make([]models.Transaction, 0, len(records))
	for _, rec := range records {
		t := recordToTransaction(rec)
		if t.WorkerID != workerID {
			continue
		}
		if len(o.Types) > 0 && !slices.Contains(o.Types, t.Type) {
			continue
		}
		transactions = append(transactions, t)
	}

	sort.SliceStable(transactions, func(i, j int) bool {
		a, b := transactions[i], transactions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})

	if o.Limit > 0 && len(transactions) > o.Limit {
		transactions = transactions[:o.Limit]
	}
	return transactions, nil
}

func recordToTransaction(rec record) models.Transaction {
	t := models.Transaction{
		ID:         rec.uuid(),
		Seq:        rec.get("seq").Int(),
		CreatedAt:  rec.time("createdAt", "created_at"),
		WorkerID:   rec.relation("tip_worker", "workerId", "worker_id"),
		Type:       rec.str("type"),
		Method:     rec.str("method"),
		Status:     rec.str("status"),
		Amount:     rec.decimal("amount"),
		SenderName: rec.str("senderName", "sender_name"),
		Recipient:  rec.str("recipient"),
		Phone:      rec.str("phone"),
		GoalID:     rec.optionalRelation("tip_goal", "goalId", "goal_id"),
		Metadata:   rec.stringMap("metadata"),
	}
	// Records written by older clients carry no type, those are tips
	if t.Type == "" {
		t.Type = models.TransactionTypeTip
	}
	if t.Seq == 0 && rec.id.Type == gjson.Number {
		t.Seq = rec.id.Int()
	}
	return t
}
