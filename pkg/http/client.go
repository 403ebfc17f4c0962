package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	applogger "FuturesHist/pkg/logger"
)

// Limiter gates outgoing requests per key (usually the upstream host).
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// ClientOption configures Client.
type ClientOption func(*Client)

// Client performs GET requests against a JSON REST API and classifies the
// result as an Outcome. Retryable outcomes are retried internally.
type Client struct {
	timeout     time.Duration
	maxRetries  int
	backoffUnit time.Duration
	userAgent   string
	limiter     Limiter
	logger      *applogger.Logger
	client      *http.Client
}

// NewClient creates a new HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:     30 * time.Second,
		maxRetries:  5,
		backoffUnit: time.Second,
		userAgent:   "futureshist/1.0",
		logger:      applogger.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Get sends one logical GET request. The returned Outcome is never Retryable:
// retryable failures are retried up to the configured bound and then
// surfaced as Fatal.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) Outcome {
	return c.doWithRetry(ctx, rawURL, params)
}

// attempt performs exactly one HTTP round trip.
func (c *Client) attempt(ctx context.Context, rawURL string, params url.Values) Outcome {
	req, err := c.buildRequest(ctx, rawURL, params)
	if err != nil {
		return fatal(0, fmt.Errorf("build request: %w", err))
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.URL.Host); err != nil {
			return fatal(0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fatal(0, ctx.Err())
		}
		if isTransient(err) {
			return retryable(0, fmt.Errorf("request failed: %w", err))
		}
		return fatal(0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return retryable(resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !json.Valid(body) {
			return fatal(resp.StatusCode, fmt.Errorf("malformed json response (%d bytes)", len(body)))
		}
		return Outcome{Kind: OutcomeOK, Payload: body, Status: resp.StatusCode}
	case isRetryableStatus(resp.StatusCode):
		out := retryable(resp.StatusCode, fmt.Errorf("server status %d: %s", resp.StatusCode, snippet(body)))
		out.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return out
	default:
		return fatal(resp.StatusCode, fmt.Errorf("client status %d: %s", resp.StatusCode, snippet(body)))
	}
}

func (c *Client) buildRequest(ctx context.Context, rawURL string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isTransient reports timeouts, TLS handshake failures and dropped connections.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var recErr tls.RecordHeaderError
	if errors.As(err, &recErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(err.Error(), "tls: ") || strings.Contains(err.Error(), "TLS handshake")
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry sets the retry bound and the linear backoff unit.
func WithRetry(maxRetries int, unit time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if unit >= 0 {
			c.backoffUnit = unit
		}
	}
}

// WithLimiter applies a shared request budget to every attempt.
func WithLimiter(l Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger used for per-attempt messages.
func WithLogger(l *applogger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}
