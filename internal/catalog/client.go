// Package catalog is the client for the remote anime / manhwa backend:
// search, episode and chapter listings, stream generation, subtitle storage,
// chapter images and usage logging.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"nimebot/internal/retry"
)

const (
	maxJSONBody  = 10 << 20
	maxImageBody = 40 << 20

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrNotSuccessful is returned when the backend answers 2xx with success=false.
var ErrNotSuccessful = errors.New("backend reported failure")

// APIError describes a failed backend call.
type APIError struct {
	Op     string
	Status int
	Err    error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL       string
	ImageProxyURL string
	// Timeout applies to every call except stream generation.
	Timeout time.Duration
	// StreamTimeout bounds a single stream generation attempt.
	StreamTimeout time.Duration
	StreamRetry   retry.Policy
}

// DefaultConfig returns the production timings: 20s calls, 40s stream
// attempts, three stream attempts two seconds apart.
func DefaultConfig(baseURL, imageProxyURL string) Config {
	return Config{
		BaseURL:       baseURL,
		ImageProxyURL: imageProxyURL,
		Timeout:       20 * time.Second,
		StreamTimeout: 40 * time.Second,
		StreamRetry:   retry.Fixed(3, 2*time.Second),
	}
}

type Client struct {
	cfg    Config
	http   *http.Client
	stream *http.Client
	log    zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 40 * time.Second
	}
	if cfg.StreamRetry.MaxAttempts == 0 {
		cfg.StreamRetry = retry.Fixed(3, 2*time.Second)
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		stream: &http.Client{Timeout: cfg.StreamTimeout},
		log:    log.With().Str("component", "catalog").Logger(),
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) getJSON(ctx context.Context, hc *http.Client, op, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	return c.do(hc, op, req, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(body))
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(c.http, op, req, out)
}

func (c *Client) do(hc *http.Client, op string, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", snippet(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func snippet(b []byte) string {
	const n = 200
	if len(b) > n {
		return string(b[:n]) + "…"
	}
	return string(b)
}
