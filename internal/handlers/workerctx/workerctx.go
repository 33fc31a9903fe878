package workerctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const workerKey ctxKey = "worker"

// Create a new context with the authenticated worker id
func New(ctx context.Context, workerID uuid.UUID) context.Context {
	return context.WithValue(ctx, workerKey, workerID)
}

// Extract the worker id from the context
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(workerKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
