package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nkiryanov/tipwallet/internal/apperrors"
	"github.com/nkiryanov/tipwallet/internal/logger"
	"github.com/nkiryanov/tipwallet/internal/retry"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultRetryAfter     = 60 * time.Second

	// Largest page size the backend accepts
	listPageSize = 100
)

// Returned for 404, repos translate it to their own not found error
var errNotFound = errors.New("content not found")

// Client talks to a REST content backend that wraps every payload in {"data": ...}
type Client struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retry   retry.Policy

	client *http.Client
	logger logger.Logger
}

func NewClient(baseURL string, token string, logger logger.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Timeout: defaultRequestTimeout,
		Retry:   retry.DefaultPolicy,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Do sends the request and returns the parsed response body
// Safe methods are retried on transient failures, POST is sent once
func (c *Client) Do(ctx context.Context, method string, path string, query url.Values, payload any) (gjson.Result, error) {
	if method == http.MethodPost {
		return c.do(ctx, method, path, query, payload)
	}

	return retry.Value(ctx, c.Retry, func() (gjson.Result, error) {
		return c.do(ctx, method, path, query, payload)
	})
}

// List fetches every page of a collection and returns the records of all of them
// Stops after the last page reported in meta.pagination, a response without it is a single page
func (c *Client) List(ctx context.Context, path string, query url.Values) ([]record, error) {
	records := make([]record, 0)

	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(listPageSize))

		res, err := c.Do(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return nil, err
		}

		batch := unwrapMany(res)
		records = append(records, batch...)

		pageCount := res.Get("meta.pagination.pageCount")
		if !pageCount.Exists() || int64(page) >= pageCount.Int() || len(batch) == 0 {
			return records, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, payload any) (gjson.Result, error) {
	op := method + " " + path

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(map[string]any{"data": payload})
		if err != nil {
			return gjson.Result{}, fmt.Errorf("%s: failed to encode payload: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, apperrors.Transient(op, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, apperrors.Transient(op, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(bytes.TrimSpace(raw)) == 0 {
			return gjson.Result{}, nil
		}
		if !gjson.ValidBytes(raw) {
			return gjson.Result{}, fmt.Errorf("%s: malformed json response", op)
		}
		return gjson.ParseBytes(raw), nil
	case resp.StatusCode == http.StatusNotFound:
		return gjson.Result{}, errNotFound
	case resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(string(raw)), "unique"):
		return gjson.Result{}, fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), resp.StatusCode)
		c.logger.Warn("Content backend unavailable", "op", op, "status_code", resp.StatusCode, "retry_after", retryAfter)
		return gjson.Result{}, &apperrors.TransientError{
			Op:         op,
			RetryAfter: retryAfter,
			Err:        fmt.Errorf("status code %d", resp.StatusCode),
		}
	default:
		message := gjson.GetBytes(raw, "error.message").String()
		c.logger.Warn("Content backend request failed", "op", op, "status_code", resp.StatusCode, "message", message)
		return gjson.Result{}, fmt.Errorf("%s: unexpected status code %d: %s", op, resp.StatusCode, message)
	}
}

func parseRetryAfter(header string, status int) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	switch {
	case err == nil:
		return time.Duration(seconds) * time.Second
	case status == http.StatusTooManyRequests:
		return defaultRetryAfter
	default:
		return 0
	}
}
