package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository"
	"github.com/nkiryanov/tipwallet/internal/testutil"
)

var phoneSeq atomic.Int64

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func inTx(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage)) {
	testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
		fn(innerTx, NewStorage(innerTx))
	})
}

// newTestWorker creates a worker with unique phone and tip id
func newTestWorker(ctx context.Context, t *testing.T, s repository.Storage) models.Worker {
	t.Helper()

	n := phoneSeq.Add(1)
	w, err := s.Worker().CreateWorker(ctx, models.Worker{
		FullName:   "John Doe",
		Phone:      fmt.Sprintf("07%08d", n),
		TipID:      fmt.Sprintf("TIP-%06d", n),
		PinHash:    "hashed-pin",
		Occupation: "Waiter",
		Workplace:  "Cafe Javas",
	})
	require.NoError(t, err)
	return w
}
