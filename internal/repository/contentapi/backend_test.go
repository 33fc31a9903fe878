package contentapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/retry"
)

// fakeBackend is an in-memory content backend answering in the wrapped {"id", "attributes"} form
// It ignores filters, the adapter must filter on its own
// Lists are paginated like the real backend: 25 per page by default, never more than maxPageSize
type fakeBackend struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	order       map[string][]string
	maxPageSize int

	failNext int // number of next requests answered with 503
	requests int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		collections: map[string]map[string]map[string]any{},
		order:       map[string][]string{},
		maxPageSize: 25,
	}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests++
	if b.failNext > 0 {
		b.failNext--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	collection := parts[0]
	if b.collections[collection] == nil {
		b.collections[collection] = map[string]map[string]any{}
	}
	items := b.collections[collection]

	switch {
	case r.Method == http.MethodPost && len(parts) == 1:
		var body struct {
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id, _ := body.Data["id"].(string)
		delete(body.Data, "id")
		items[id] = body.Data
		b.order[collection] = append(b.order[collection], id)
		writeData(w, wrap(id, body.Data))

	case r.Method == http.MethodGet && len(parts) == 1:
		list := make([]any, 0)
		for _, id := range b.order[collection] {
			if item, ok := items[id]; ok {
				list = append(list, wrap(id, item))
			}
		}
		writePage(w, list, queryInt(r, "pagination[page]", 1), min(queryInt(r, "pagination[pageSize]", 25), b.maxPageSize))

	case r.Method == http.MethodGet && len(parts) == 2:
		item, ok := items[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeData(w, wrap(parts[1], item))

	case r.Method == http.MethodPut && len(parts) == 2:
		item, ok := items[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for k, v := range body.Data {
			item[k] = v
		}
		writeData(w, wrap(parts[1], item))

	case r.Method == http.MethodDelete && len(parts) == 2:
		if _, ok := items[parts[1]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(items, parts[1])
		writeData(w, nil)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func wrap(id string, attrs map[string]any) map[string]any {
	return map[string]any{"id": id, "attributes": attrs}
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writePage(w http.ResponseWriter, list []any, page int, pageSize int) {
	pageCount := max((len(list)+pageSize-1)/pageSize, 1)
	from := min((page-1)*pageSize, len(list))
	to := min(from+pageSize, len(list))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": list[from:to],
		"meta": map[string]any{"pagination": map[string]any{
			"page":      page,
			"pageSize":  pageSize,
			"pageCount": pageCount,
			"total":     len(list),
		}},
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func startBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()

	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL+"/", "secret", logger.NewNoOpLogger())
	client.Retry = retry.Policy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxRetries: retry.MaxRetries}
	return backend, client
}
