// Package client provides the HTTP client shared by the marketplace sources:
// bearer authentication, retries with backoff, error classification and
// request metrics.
package client

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

	"github.com/Sternrassler/matexport/pkg/auth"
	"github.com/Sternrassler/matexport/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for marketplace API calls.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matexport_requests_total",
		Help: "Total API requests by source and status",
	}, []string{"source", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matexport_request_duration_seconds",
		Help:    "API request duration in seconds by source",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matexport_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matexport_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matexport_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matexport_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401/403 responses and token acquisition failures.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// maxErrorBody bounds how much of an error response ends up in APIError.Message.
const maxErrorBody = 512

// Client performs authenticated JSON requests against one marketplace.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Source names the marketplace in metrics and logs (e.g. "duspot").
	Source string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request (ignored when HTTPClient is set).
	Timeout time.Duration

	// Credentials supplies the bearer token. Nil sends no Authorization header.
	Credentials auth.Provider

	// Retry overrides. Zero values keep the per-class defaults of
	// RetryConfigForErrorClass.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// DisableRetry makes every request a single attempt.
	DisableRetry bool

	// HTTPClient replaces the default transport (tests, proxies).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(source, userAgent string) Config {
	return Config{
		Source:    source,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logging.NewLogger("http-client").With().Str("source", cfg.Source).Logger(),
	}, nil
}

// Source returns the configured source name.
func (c *Client) Source() string {
	return c.config.Source
}

// Get performs a GET request. query is merged into the query string of rawURL.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			q[key] = append([]string(nil), values...)
		}
		u.RawQuery = q.Encode()
	}

	return c.Do(ctx, http.MethodGet, u.String(), nil)
}

// PostJSON marshals body and POSTs it as application/json.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return c.Do(ctx, http.MethodPost, rawURL, payload)
}

// Do performs a request with authentication and retries and returns the
// body of a 2xx response. Any other outcome is an *APIError, possibly
// wrapped in ErrRetryExhausted or ErrContextCancelled.
//
// A 401/403 response causes one retry with a fresh token when the
// credential provider implements auth.Invalidator. Token acquisition
// failures are returned as is.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	data, err := c.doWithRetry(ctx, method, rawURL, body)
	// Token acquisition failures carry no status and are returned as is.
	if err == nil || !errors.Is(err, ErrUnauthorized) || StatusCode(err) == 0 {
		return data, err
	}

	invalidator, ok := c.config.Credentials.(auth.Invalidator)
	if !ok {
		return nil, err
	}

	c.logger.Info().Str("url", rawURL).Msg("Token rejected, acquiring a new one")
	if invErr := invalidator.Invalidate(ctx); invErr != nil {
		c.logger.Warn().Err(invErr).Msg("Failed to invalidate token")
	}
	return c.doWithRetry(ctx, method, rawURL, body)
}

func (c *Client) doWithRetry(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	var data []byte

	err := retryWithBackoff(ctx, func() error {
		var reqErr error
		data, reqErr = c.attempt(ctx, method, rawURL, body)
		return reqErr
	}, classOf, c.retryConfig)

	if err != nil {
		return nil, err
	}
	return data, nil
}

// attempt performs a single HTTP round trip.
func (c *Client) attempt(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(c.config.Source).Observe(time.Since(startTime).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.config.Credentials != nil {
		token, err := c.config.Credentials.Token(ctx)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassAuth)).Inc()
			return nil, &APIError{Class: ErrorClassAuth, Message: "acquire token", Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", req.URL.Redacted()).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		requestsTotal.WithLabelValues(c.config.Source, "network_error").Inc()
		c.logger.Warn().Err(err).Str("url", req.URL.Redacted()).Msg("HTTP request failed")
		return nil, &APIError{Class: errClass, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(c.config.Source, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := c.classifyError(resp, nil)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("url", req.URL.Redacted()).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("API request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      errClass,
			Message:    errorMessage(resp.Status, data),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return data, nil
}

// classifyError categorizes a failure for observability and retry handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrorClassAuth
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx that the transport did not resolve
		return ErrorClassClient
	}
}

// retryConfig applies the configured overrides to the per-class defaults.
func (c *Client) retryConfig(errorClass ErrorClass) RetryConfig {
	config := RetryConfigForErrorClass(errorClass)
	if c.config.DisableRetry {
		config.MaxAttempts = 1
	}
	if c.config.MaxRetries > 0 {
		config.MaxAttempts = c.config.MaxRetries + 1
	}
	if c.config.InitialBackoff > 0 {
		config.InitialBackoff = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		config.MaxBackoff = c.config.MaxBackoff
	}
	return config
}

func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	// request construction errors fail the same way on every attempt
	return ErrorClassClient
}

func errorMessage(status string, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return status
	}
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return status + ": " + text
}

// parseRetryAfter accepts both delay-seconds and HTTP-date values.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
