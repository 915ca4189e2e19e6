// Package ultimate is a small client for the device's REST control API. It
// covers drive mounting, drive status and device identity.
package ultimate

import (
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

	"ultidisk/internal/config"
	"ultidisk/internal/logging"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultReadRetry  = 2
	defaultRetryDelay = time.Second
	maxErrorBody      = 4 << 10
)

// ErrUnauthorized reports a rejected or missing X-Password.
var ErrUnauthorized = errors.New("device rejected password")

// APIError is a non-2xx response or a response carrying an errors array.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Method, e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	return msg
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to one device.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	retries    int
	retryDelay time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "ultimate")
	}
}

// WithReadRetries sets how often idempotent reads are retried on transport
// errors, and the delay between attempts.
func WithReadRetries(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = max(retries, 0)
		c.retryDelay = delay
	}
}

// New constructs a client for baseURL.
func New(baseURL, password string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(nil, "ultimate"),
		retries:    defaultReadRetry,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the [device] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(cfg.Device.BaseURL, cfg.Device.Password, cfg.DeviceTimeout(), opts...)
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient exposes the transport for tests and instrumentation.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

type errorEnvelope struct {
	Errors []string `json:"errors"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.password != "" {
		req.Header.Set("X-Password", c.password)
	}
	return req, nil
}

// do sends req and decodes a JSON body into out when out is non-nil. A
// non-empty errors array fails the call even with a 2xx status.
func (c *Client) do(req *http.Request, out any) error {
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}
	c.logger.Debug("device request",
		logging.String("method", req.Method),
		logging.String("path", req.URL.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)

	var envelope errorEnvelope
	if len(data) > 0 {
		_ = json.Unmarshal(data, &envelope)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode, Messages: envelope.Errors}
		if len(apiErr.Messages) == 0 && len(data) > 0 {
			apiErr.Messages = []string{strings.TrimSpace(string(data[:min(len(data), maxErrorBody)]))}
		}
		return apiErr
	}
	if len(envelope.Errors) > 0 {
		return &APIError{Method: req.Method, Path: req.URL.Path, Messages: envelope.Errors}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
		}
	}
	return nil
}

// getJSON performs an idempotent GET, retrying transport failures.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
		if err != nil {
			return err
		}
		lastErr = c.do(req, out)
		var apiErr *APIError
		if lastErr == nil || errors.As(lastErr, &apiErr) || ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) put(ctx context.Context, path string, query url.Values) error {
	req, err := c.newRequest(ctx, http.MethodPut, path, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
