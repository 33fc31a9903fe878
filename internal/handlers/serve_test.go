package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/models"
	"github.com/nkiryanov/tipwallet/internal/repository/postgres"
	"github.com/nkiryanov/tipwallet/internal/service/auth"
	"github.com/nkiryanov/tipwallet/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/tipwallet/internal/service/goal"
	"github.com/nkiryanov/tipwallet/internal/service/reconcile"
	"github.com/nkiryanov/tipwallet/internal/service/wallet"
	"github.com/nkiryanov/tipwallet/internal/service/worker"
	"github.com/nkiryanov/tipwallet/internal/session"
	"github.com/nkiryanov/tipwallet/internal/testutil"
)

type testServices struct {
	Auth    *auth.AuthService
	Workers *worker.WorkerService
	Wallet  *wallet.WalletService
	Goals   *goal.GoalService
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.InTx with it
func serveWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, s testServices)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		l := logger.NewNoOpLogger()

		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, storage.Refresh())
		require.NoError(t, err, "token manager should be created without errors")

		ws := worker.NewService(auth.BcryptHasher{Cost: bcrypt.MinCost}, storage, session.NewMemoryStore(), l)
		as, err := auth.NewService(auth.Config{}, tokenManager, ws)
		require.NoError(t, err, "auth service starting error")

		s := testServices{
			Auth:    as,
			Workers: ws,
			Wallet:  wallet.NewService(storage, ws, l),
			Goals:   goal.NewService(storage, ws, l),
		}

		router := NewRouter(Services{
			Auth:       s.Auth,
			Workers:    s.Workers,
			Wallet:     s.Wallet,
			Goals:      s.Goals,
			Reconciler: reconcile.New(reconcile.Config{}, storage, l),
		}, Options{}, l)

		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, s)
	})
}

// Registers a worker and returns it with an access token
func registerWorker(t *testing.T, s testServices, phone string) (models.Worker, string) {
	w, pair, err := s.Auth.Register(t.Context(), models.Profile{FullName: "Jane Doe", Phone: phone, Pin: "1234"})
	require.NoError(t, err)
	return w, pair.Access.Value
}

func doJSON(t *testing.T, method string, url string, access string, body any) (*http.Response, string) {
	var payload io.Reader
	if body != nil {
		d, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request")
		payload = bytes.NewReader(d)
	}

	req, err := http.NewRequest(method, url, payload)
	require.NoError(t, err, "failed to create request")
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "failed to send request")
	defer resp.Body.Close() // nolint:errcheck

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	return resp, string(b)
}
