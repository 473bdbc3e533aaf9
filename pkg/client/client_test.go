package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/matexport/pkg/auth"
)

// newTestClient creates a client with millisecond backoffs.
func newTestClient(t *testing.T, creds auth.Provider) *Client {
	t.Helper()

	c, err := New(Config{
		Source:         "test",
		UserAgent:      "matexport-test/1.0",
		Credentials:    creds,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// rotatingProvider hands out token-1 until invalidated, then token-2, ...
type rotatingProvider struct {
	invalidated int32
}

func (p *rotatingProvider) Token(ctx context.Context) (string, error) {
	return fmt.Sprintf("token-%d", atomic.LoadInt32(&p.invalidated)+1), nil
}

func (p *rotatingProvider) Invalidate(ctx context.Context) error {
	atomic.AddInt32(&p.invalidated, 1)
	return nil
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("duspot", "matexport/1.0"),
			expectError: false,
		},
		{
			name:        "missing source",
			config:      Config{UserAgent: "matexport/1.0"},
			expectError: true,
			errorMsg:    "source is required",
		},
		{
			name:        "empty user agent",
			config:      Config{Source: "duspot"},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "negative retries",
			config:      Config{Source: "duspot", UserAgent: "matexport/1.0", MaxRetries: -1},
			expectError: true,
			errorMsg:    "max_retries must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("Expected client, got nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("duspot", "matexport/1.0")

	if config.Source != "duspot" {
		t.Errorf("Source = %q, want duspot", config.Source)
	}
	if config.UserAgent != "matexport/1.0" {
		t.Errorf("UserAgent = %q, want matexport/1.0", config.UserAgent)
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", config.Timeout)
	}
}

func TestClassifyError(t *testing.T) {
	c := newTestClient(t, nil)

	tests := []struct {
		name   string
		status int
		err    error
		want   ErrorClass
	}{
		{name: "network error", err: errors.New("dial tcp: connection refused"), want: ErrorClassNetwork},
		{name: "400 bad request", status: 400, want: ErrorClassClient},
		{name: "401 unauthorized", status: 401, want: ErrorClassAuth},
		{name: "403 forbidden", status: 403, want: ErrorClassAuth},
		{name: "404 not found", status: 404, want: ErrorClassClient},
		{name: "429 too many requests", status: 429, want: ErrorClassRateLimit},
		{name: "500 internal server error", status: 500, want: ErrorClassServer},
		{name: "503 service unavailable", status: 503, want: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.err == nil {
				resp = &http.Response{StatusCode: tt.status}
			}
			if got := c.classifyError(resp, tt.err); got != tt.want {
				t.Errorf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGet_HeadersAndQuery(t *testing.T) {
	var gotHeader http.Header
	var gotQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(t, auth.Static("secret-token"))

	body, err := c.Get(context.Background(), server.URL+"/api/products?published=true", map[string][]string{
		"page":   {"2"},
		"search": {"staal"},
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %s", body)
	}

	if got := gotHeader.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer secret-token")
	}
	if got := gotHeader.Get("User-Agent"); got != "matexport-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if gotQuery != "page=2&published=true&search=staal" {
		t.Errorf("query = %q, want page=2&published=true&search=staal", gotQuery)
	}
}

func TestGet_NoCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("Authorization header sent without credentials")
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := newTestClient(t, nil).Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if payload["offers"] != true {
			t.Errorf("payload = %v, want offers=true", payload)
		}
		w.Write([]byte(`[{"id":"1"}]`))
	}))
	defer server.Close()

	body, err := newTestClient(t, auth.Static("t")).PostJSON(context.Background(), server.URL, map[string]bool{"offers": true})
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if string(body) != `[{"id":"1"}]` {
		t.Errorf("body = %s", body)
	}
}

func TestDo_RetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if _, err := newTestClient(t, nil).Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"hydra:description":"Not Found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, nil).Get(context.Background(), server.URL, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Get() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 404 || apiErr.Class != ErrorClassClient {
		t.Errorf("APIError = %+v, want 404 client", apiErr)
	}
	if !strings.Contains(apiErr.Message, "Not Found") {
		t.Errorf("Message = %q, want response body excerpt", apiErr.Message)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetryOnRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	start := time.Now()
	if _, err := newTestClient(t, nil).Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	// Retry-After is capped by MaxBackoff (5ms in the test client).
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("elapsed = %v, Retry-After not capped", elapsed)
	}
}

func TestDo_RetryExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(t, nil).Get(context.Background(), server.URL, nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Get() error = %v, want ErrRetryExhausted", err)
	}
	if got := StatusCode(err); got != http.StatusServiceUnavailable {
		t.Errorf("StatusCode(err) = %d, want 503", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_DisableRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := New(Config{Source: "test", UserAgent: "matexport-test/1.0", DisableRetry: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Get(context.Background(), server.URL, nil); StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("Get() error = %v, want 502", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(t, nil).Get(context.Background(), url, nil)
	if !IsTransport(err) {
		t.Fatalf("IsTransport(%v) = false, want true", err)
	}
}

func TestDo_ReauthenticatesOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer token-2" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":401,"message":"Expired JWT Token"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	provider := &rotatingProvider{}
	if _, err := newTestClient(t, provider).Get(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if provider.invalidated != 1 {
		t.Errorf("invalidations = %d, want 1", provider.invalidated)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_UnauthorizedWithStaticToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(t, auth.Static("expired")).Get(context.Background(), server.URL, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Get() error = %v, want ErrUnauthorized", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_TokenError(t *testing.T) {
	_, err := newTestClient(t, auth.Static("")).Get(context.Background(), "http://127.0.0.1:1", nil)
	if !errors.Is(err, auth.ErrNoCredentials) {
		t.Fatalf("Get() error = %v, want auth.ErrNoCredentials", err)
	}
}

func TestDo_RejectedLoginNotRepeated(t *testing.T) {
	var logins, apiCalls int32
	loginServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":401,"message":"Invalid credentials."}`))
	}))
	defer loginServer.Close()

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		w.Write([]byte(`{}`))
	}))
	defer apiServer.Close()

	provider, err := auth.NewPasswordLogin(auth.PasswordLoginConfig{
		Source:   "test",
		LoginURL: loginServer.URL,
		Username: "user",
		Password: "wrong",
	})
	if err != nil {
		t.Fatalf("NewPasswordLogin() error = %v", err)
	}

	c, err := New(Config{
		Source:       "test",
		UserAgent:    "matexport-test/1.0",
		Credentials:  provider,
		DisableRetry: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Get(context.Background(), apiServer.URL, nil)
	if !errors.Is(err, auth.ErrAuthenticationFailed) {
		t.Fatalf("Get() error = %v, want auth.ErrAuthenticationFailed", err)
	}
	if logins != 1 {
		t.Errorf("logins = %d, want 1", logins)
	}
	if apiCalls != 0 {
		t.Errorf("api calls = %d, want 0", apiCalls)
	}
}

func TestDo_TokenErrorNotInvalidated(t *testing.T) {
	var tokenCalls, invalidations int32
	provider := &failingProvider{calls: &tokenCalls, invalidations: &invalidations}

	_, err := newTestClient(t, provider).Get(context.Background(), "http://127.0.0.1:1", nil)
	if !errors.Is(err, auth.ErrAuthenticationFailed) {
		t.Fatalf("Get() error = %v, want auth.ErrAuthenticationFailed", err)
	}
	if tokenCalls != 1 {
		t.Errorf("token calls = %d, want 1", tokenCalls)
	}
	if invalidations != 0 {
		t.Errorf("invalidations = %d, want 0", invalidations)
	}
}

// failingProvider always fails to produce a token.
type failingProvider struct {
	calls         *int32
	invalidations *int32
}

func (p *failingProvider) Token(ctx context.Context) (string, error) {
	atomic.AddInt32(p.calls, 1)
	return "", fmt.Errorf("%w: device code declined", auth.ErrAuthenticationFailed)
}

func (p *failingProvider) Invalidate(ctx context.Context) error {
	atomic.AddInt32(p.invalidations, 1)
	return nil
}

func TestDo_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, nil).Get(ctx, server.URL, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("parseRetryAfter(3) = %v, want 3s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v, want 0", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(soon) = %v, want 0", got)
	}

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Errorf("parseRetryAfter(date) = %v, want (0, 1m]", got)
	}
}

func TestErrorMessage_Truncates(t *testing.T) {
	msg := errorMessage("500 Internal Server Error", []byte(strings.Repeat("x", 2000)))
	if len(msg) > maxErrorBody+64 {
		t.Errorf("len(message) = %d, want truncated", len(msg))
	}
}
