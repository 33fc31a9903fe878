package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/nkiryanov/tipwallet/internal/handlers/render"
	"github.com/nkiryanov/tipwallet/internal/handlers/workerctx"
	"github.com/nkiryanov/tipwallet/internal/redisstore"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	IdempotencyHitHeader = "X-Idempotency-Hit"

	maxIdempotencyKeyLen = 128
)

type idempotencyStore interface {
	Get(ctx context.Context, key string) (redisstore.CachedResponse, bool, error)
	Lock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
	Put(ctx context.Context, key string, resp redisstore.CachedResponse) error
}

// Captures status and body so a successful reply can be replayed
type recordingWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the stored reply for a repeated Idempotency-Key
// so a retried money-moving request is applied once. Requests without the header pass through
// Keys are scoped by worker when the request is authenticated
// A key reused with a different body is rejected with 422
func Idempotency(store idempotencyStore, l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				render.ServiceError(w, "Idempotency key is too long", http.StatusBadRequest)
				return
			}

			scope := "public"
			if workerID, ok := workerctx.FromContext(r.Context()); ok {
				scope = workerID.String()
			}
			key = scope + ":" + r.Method + ":" + r.URL.Path + ":" + key

			body, err := io.ReadAll(r.Body)
			if err != nil {
				render.ServiceError(w, "Failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			bodyHash := hex.EncodeToString(sum[:])

			// Cache and lock survive the request context
			ctx := context.WithoutCancel(r.Context())

			cached, found, err := store.Get(ctx, key)
			if err != nil {
				l.Error("Idempotency store unavailable", "error", err)
				render.ServiceError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}
			if found {
				replay(w, cached, bodyHash)
				return
			}

			acquired, err := store.Lock(ctx, key)
			if err != nil {
				l.Error("Idempotency lock failed", "error", err)
				render.ServiceError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}
			if !acquired {
				render.ServiceError(w, "A request with this idempotency key is being processed", http.StatusConflict)
				return
			}
			defer func() {
				if err := store.Unlock(ctx, key); err != nil {
					l.Error("Failed to release idempotency lock", "error", err)
				}
			}()

			// The holder of the previous lock may have finished between Get and Lock
			cached, found, err = store.Get(ctx, key)
			if err != nil {
				l.Error("Idempotency store unavailable", "error", err)
				render.ServiceError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}
			if found {
				replay(w, cached, bodyHash)
				return
			}

			rw := &recordingWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Only successful replies are remembered, failures may be retried
			if rw.statusCode < 200 || rw.statusCode >= 300 {
				return
			}
			err = store.Put(ctx, key, redisstore.CachedResponse{
				StatusCode:  rw.statusCode,
				ContentType: rw.Header().Get("Content-Type"),
				Body:        rw.body.Bytes(),
				BodyHash:    bodyHash,
			})
			if err != nil {
				l.Error("Failed to store idempotent response", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, cached redisstore.CachedResponse, bodyHash string) {
	if cached.BodyHash != "" && cached.BodyHash != bodyHash {
		render.ServiceError(w, "Idempotency key was already used with a different request body", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", cached.ContentType)
	w.Header().Set(IdempotencyHitHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
