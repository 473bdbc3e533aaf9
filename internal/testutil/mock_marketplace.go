// Package testutil provides testing utilities for the marketplace sources.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockMarketplace is a configurable mock marketplace API server for testing.
type MockMarketplace struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	Queries           []url.Values
}

// NewMockMarketplace creates a new mock marketplace server.
func NewMockMarketplace() *MockMarketplace {
	mock := &MockMarketplace{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.Queries = append(mock.Queries, r.URL.Query())
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockMarketplace) URL() string {
	return m.server.URL
}

// Client returns an HTTP client that trusts the mock server.
func (m *MockMarketplace) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockMarketplace) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockMarketplace) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.Queries = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockMarketplace) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockMarketplace) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// HydraListing serves total items at path in pages of pageSize using the
// hydra collection envelope. Item i is {"id": i}. failPages maps a page
// number to the status code returned for it.
func (m *MockMarketplace) HydraListing(path string, total, pageSize int, failPages map[int]int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			page = n
		}

		if status, ok := failPages[page]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"message": "page %d failed"}`, page)
			return
		}

		members := make([]map[string]int, 0, pageSize)
		for i := (page - 1) * pageSize; i < page*pageSize && i < total; i++ {
			members = append(members, map[string]int{"id": i})
		}

		w.Header().Set("Content-Type", "application/ld+json")
		json.NewEncoder(w).Encode(map[string]any{
			"@context":         "/api/contexts/Product",
			"@type":            "hydra:Collection",
			"hydra:totalItems": total,
			"hydra:member":     members,
		})
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockMarketplace) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetQueries returns the query strings of all requests in arrival order.
func (m *MockMarketplace) GetQueries() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.Queries...)
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockMarketplace) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// NewJSONResponse creates a standard 200 OK JSON response.
func NewJSONResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewUnauthorizedResponse creates a 401 response like the Duspot JWT firewall.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"code": 401, "message": "Expired JWT Token"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":  "1",
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
