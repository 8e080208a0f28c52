// Package api is the client for the mock-test backend's JSON REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds each request attempt.
const DefaultTimeout = 15 * time.Second

const maxBodyBytes = 16 << 20

// RetryPolicy controls how idempotent GET requests are retried after
// network errors and 5xx responses. Other methods are never retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetry is three attempts with exponential backoff from 250ms, capped at 2s.
var DefaultRetry = RetryPolicy{Attempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}

// delay returns the wait before retry n (n >= 1).
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Client talks to the backend on behalf of one user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialProvider
	timeout    time.Duration
	retry      RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets the GET retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the backend at baseURL using creds.
func New(baseURL string, creds CredentialProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		creds:      creds,
		timeout:    DefaultTimeout,
		retry:      DefaultRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credentials returns the client's credential provider.
func (c *Client) Credentials() CredentialProvider { return c.creds }

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	attempts := 1
	if method == http.MethodGet && c.retry.Attempts > 1 {
		attempts = c.retry.Attempts
	}

	var err error
	for n := 1; ; n++ {
		err = c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		var apiErr *Error
		if n >= attempts || !errors.As(err, &apiErr) || !apiErr.retryable() {
			return err
		}
		wait := c.retry.delay(n)
		slog.Debug("retrying request", "method", method, "path", path, "attempt", n+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if err := c.creds.Apply(req); err != nil {
			return err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Detail: fmt.Sprintf("no response within %s", c.timeout), Cause: err}
		}
		return &Error{Kind: KindNetwork, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Status: resp.StatusCode, Cause: err}
		}
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Cause: err}
	}
	slog.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if c.creds != nil {
		if err := c.creds.Capture(resp); err != nil {
			slog.Warn("failed to store credentials", "error", err)
		}
	}

	if resp.StatusCode >= 400 {
		return &Error{
			Kind:   kindForStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Detail: parseDetail(data, resp.StatusCode),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Detail: "malformed response", Cause: err}
	}
	return nil
}
