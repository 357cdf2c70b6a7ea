// Package testutil provides test doubles for the Lever API.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock Lever endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request seen by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// MockLever is a configurable mock Lever API server.
type MockLever struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockLever starts a mock Lever server. Paths without a handler answer 404
// with a Lever-style error body.
func NewMockLever() *MockLever {
	mock := &MockLever{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		writeResponse(w, NewNotFoundResponse())
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockLever) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockLever) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockLever) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockLever) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockLever) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence answers successive requests to path with the given responses.
// The last response repeats once the sequence is used up.
func (m *MockLever) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[min(next, len(responses)-1)]
		next++
		mu.Unlock()
		writeResponse(w, resp)
	})
}

// ServePages serves a Lever list endpoint. The offset token is the page
// index; the last page reports hasNext false.
func (m *MockLever) ServePages(path string, pages ...[]any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		index := 0
		if offset := r.URL.Query().Get("offset"); offset != "" {
			n, err := strconv.Atoi(offset)
			if err != nil || n < 0 || n >= len(pages) {
				writeResponse(w, MockResponse{
					StatusCode: http.StatusBadRequest,
					Body:       `{"code":"BadRequestError","message":"invalid offset"}`,
				})
				return
			}
			index = n
		}

		page := map[string]any{"data": []any{}, "hasNext": false}
		if index < len(pages) {
			page["data"] = pages[index]
		}
		if index+1 < len(pages) {
			page["hasNext"] = true
			page["next"] = strconv.Itoa(index + 1)
		}

		writeResponse(w, NewJSONResponse(http.StatusOK, page))
	})
}

// Requests returns a copy of all recorded requests.
func (m *MockLever) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests made to the server.
func (m *MockLever) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request.
func (m *MockLever) LastRequest() (RecordedRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	if _, ok := resp.Headers["Content-Type"]; !ok && resp.Body != "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewJSONResponse encodes v as the response body.
func NewJSONResponse(status int, v any) MockResponse {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal response: %v", err))
	}
	return MockResponse{StatusCode: status, Body: string(body)}
}

// NewDataResponse wraps v in Lever's single-object envelope {"data": v}.
func NewDataResponse(v any) MockResponse {
	return NewJSONResponse(http.StatusOK, map[string]any{"data": v})
}

// NewRateLimitResponse creates a 429 response with an optional Retry-After.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"code":"TooManyRequests","message":"Rate limit exceeded"}`,
	}
	if retryAfter != "" {
		resp.Headers = map[string]string{"Retry-After": retryAfter}
	}
	return resp
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       `{"code":"ServiceUnavailable","message":"Service temporarily unavailable"}`,
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"code":"ResourceNotFound","message":"Resource not found"}`,
	}
}
