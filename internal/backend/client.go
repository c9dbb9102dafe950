// Package backend talks to the clients/orders REST API. Every loosely typed
// response shape is normalized here so the screens only see typed values.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Recorder receives one observation per upstream call.
type Recorder interface {
	ObserveUpstream(endpoint, outcome string, elapsed time.Duration)
}

// Option customises an API.
type Option func(*API)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *API) { c.httpClient = hc }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *API) { c.recorder = r }
}

// WithLogger sets the logger used for upstream failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *API) { c.logger = l }
}

// API wraps the clients and orders REST API.
type API struct {
	baseURL    *url.URL
	httpClient *http.Client
	recorder   Recorder
	logger     *slog.Logger
}

// New constructs an API for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*API, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &API{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type call struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	body     any
}

// do executes c and decodes the envelope. A non-2xx status or an envelope code
// other than 200 becomes an *APIError.
func (c *API) do(ctx context.Context, cl call) (*envelope, error) {
	start := time.Now()
	env, err := c.roundTrip(ctx, cl)
	c.observe(cl.endpoint, err, time.Since(start))
	if err != nil && StatusOf(err) != http.StatusNotFound && ctx.Err() == nil {
		c.logger.Warn("backend call failed",
			slog.String("endpoint", cl.endpoint),
			slog.Any("error", err),
		)
	}
	return env, err
}

func (c *API) roundTrip(ctx context.Context, cl call) (*envelope, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("backend: encode %s: %w", cl.endpoint, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: %w", cl.endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("backend: read %s: %w", cl.endpoint, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Endpoint: cl.endpoint, Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Code = env.Code
			apiErr.Message = env.Message
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("backend: decode %s: %w", cl.endpoint, decodeErr)
	}
	if env.Code != http.StatusOK {
		return nil, &APIError{Endpoint: cl.endpoint, Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	return &env, nil
}

func (c *API) observe(endpoint string, err error, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), StatusOf(err) == http.StatusNotFound:
		outcome = "not_found"
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	c.recorder.ObserveUpstream(endpoint, outcome, elapsed)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
