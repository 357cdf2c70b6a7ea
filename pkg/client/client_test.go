package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/lever-ats-client/internal/testutil"
)

// countingLimiter admits everything and counts acquisitions.
type countingLimiter struct {
	n atomic.Int32
}

func (l *countingLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.n.Add(1)
	return nil
}

func newTestExecutor(t *testing.T, mock *testutil.MockLever, mutate func(*Config)) (*Executor, *countingLimiter, *testutil.FakeClock) {
	t.Helper()

	limiter := &countingLimiter{}
	cfg := DefaultConfig("test-key", limiter)
	cfg.BaseURL = mock.URL()
	if mutate != nil {
		mutate(&cfg)
	}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	clock := testutil.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e.SetClock(clock)

	return e, limiter, clock
}

func TestNew_Validation(t *testing.T) {
	limiter := &countingLimiter{}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "missing api key",
			mutate:      func(c *Config) { c.APIKey = "" },
			expectError: true,
		},
		{
			name:        "missing limiter",
			mutate:      func(c *Config) { c.Limiter = nil },
			expectError: true,
		},
		{
			name:        "relative base url",
			mutate:      func(c *Config) { c.BaseURL = "api.lever.co/v1" },
			expectError: true,
		},
		{
			name:        "unknown auth scheme",
			mutate:      func(c *Config) { c.AuthScheme = "digest" },
			expectError: true,
		},
		{
			name:        "empty auth scheme defaults to basic",
			mutate:      func(c *Config) { c.AuthScheme = "" },
			expectError: false,
		},
		{
			name:        "zero attempt timeout",
			mutate:      func(c *Config) { c.AttemptTimeout = 0 },
			expectError: true,
		},
		{
			name:        "zero attempts",
			mutate:      func(c *Config) { c.Retry.MaxAttempts = 0 },
			expectError: true,
		},
		{
			name:        "max backoff below initial",
			mutate:      func(c *Config) { c.Retry.MaxBackoff = time.Millisecond },
			expectError: true,
		},
		{
			name:        "breaker disabled",
			mutate:      func(c *Config) { c.Breaker.ConsecutiveFailures = 0 },
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("test-key", limiter)
			tt.mutate(&cfg)

			_, err := New(cfg)
			if tt.expectError && err == nil {
				t.Error("New() expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("New() unexpected error: %v", err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	limiter := &countingLimiter{}
	cfg := DefaultConfig("key", limiter)

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.AuthScheme != AuthBasic {
		t.Errorf("AuthScheme = %q, want %q", cfg.AuthScheme, AuthBasic)
	}
	if cfg.AttemptTimeout != 30*time.Second {
		t.Errorf("AttemptTimeout = %v, want 30s", cfg.AttemptTimeout)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Breaker.ConsecutiveFailures != 5 {
		t.Errorf("Breaker.ConsecutiveFailures = %d, want 5", cfg.Breaker.ConsecutiveFailures)
	}
}

func TestExecute_RetryOnServerError(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	mock.SetSequence("/stages",
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewDataResponse([]map[string]string{{"id": "s1", "text": "New applicant"}}),
	)

	e, limiter, clock := newTestExecutor(t, mock, nil)

	resp, err := e.Get(context.Background(), "get_stages", "/stages", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}

	if got := mock.RequestCount(); got != 3 {
		t.Errorf("requests = %d, want 3 (2 retries)", got)
	}
	if got := limiter.n.Load(); got != 3 {
		t.Errorf("limiter acquisitions = %d, want one per attempt (3)", got)
	}
	if got := len(clock.Sleeps()); got != 2 {
		t.Errorf("backoff waits = %d, want 2", got)
	}
}

func TestExecute_NoRetryOnClientError(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	mock.SetResponse("/opportunities/missing", testutil.NewNotFoundResponse())

	e, _, clock := newTestExecutor(t, mock, nil)

	_, err := e.Execute(context.Background(), &Request{
		Operation: "get_candidate",
		Path:      "/opportunities/missing",
		Route:     "/opportunities/{id}",
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Execute() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Class != ErrorClassClient {
		t.Errorf("Class = %q, want %q", apiErr.Class, ErrorClassClient)
	}
	if apiErr.Message != "Resource not found" {
		t.Errorf("Message = %q, want Lever's message", apiErr.Message)
	}
	if apiErr.Guidance == "" {
		t.Error("Guidance is empty for 404")
	}
	if apiErr.Route != "/opportunities/{id}" {
		t.Errorf("Route = %q, want the route template", apiErr.Route)
	}

	if got := mock.RequestCount(); got != 1 {
		t.Errorf("requests = %d, want 1 (no retry)", got)
	}
	if got := len(clock.Sleeps()); got != 0 {
		t.Errorf("backoff waits = %d, want 0", got)
	}
}

func TestExecute_RetryAfterHonoured(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	mock.SetSequence("/postings",
		testutil.NewRateLimitResponse("3"),
		testutil.NewDataResponse([]any{}),
	)

	e, _, clock := newTestExecutor(t, mock, nil)

	if _, err := e.Get(context.Background(), "list_open_roles", "/postings", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	sleeps := clock.Sleeps()
	if len(sleeps) != 1 {
		t.Fatalf("backoff waits = %v, want exactly one", sleeps)
	}
	// Retry-After (3s) exceeds the first backoff (~500ms).
	if sleeps[0] != 3*time.Second {
		t.Errorf("backoff = %v, want Retry-After of 3s", sleeps[0])
	}
}

func TestExecute_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	mock.SetResponse("/stages", testutil.NewServerErrorResponse())

	e, _, _ := newTestExecutor(t, mock, nil)

	_, err := e.Get(context.Background(), "get_stages", "/stages", nil)

	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("Get() error = %v, want *TransientError", err)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("errors.Is(err, ErrRetryExhausted) = false")
	}
	if transient.Attempts != 3 || transient.LastStatus != http.StatusServiceUnavailable {
		t.Errorf("Attempts = %d, LastStatus = %d, want 3 and 503", transient.Attempts, transient.LastStatus)
	}
	if got := mock.RequestCount(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestExecute_AttemptTimeoutIsRetried(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	slow := testutil.NewDataResponse([]any{})
	slow.Delay = 300 * time.Millisecond
	mock.SetSequence("/stages", slow, testutil.NewDataResponse([]any{}))

	e, _, _ := newTestExecutor(t, mock, func(c *Config) {
		c.AttemptTimeout = 50 * time.Millisecond
	})

	if _, err := e.Get(context.Background(), "get_stages", "/stages", nil); err != nil {
		t.Fatalf("Get() error = %v, want success on second attempt", err)
	}
	if got := mock.RequestCount(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestExecute_ParentDeadlineStopsWithoutRetry(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	slow := testutil.NewDataResponse([]any{})
	slow.Delay = 500 * time.Millisecond
	mock.SetResponse("/stages", slow)

	e, _, clock := newTestExecutor(t, mock, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Get(ctx, "get_stages", "/stages", nil)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get() error = %v, want context.DeadlineExceeded", err)
	}
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Get() error = %v, want ErrContextCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("Get() returned after %v, want prompt return", elapsed)
	}
	if got := len(clock.Sleeps()); got != 0 {
		t.Errorf("backoff waits = %d, want 0", got)
	}
}

func TestExecute_AlreadyCancelled(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	e, limiter, _ := newTestExecutor(t, mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Get(ctx, "get_stages", "/stages", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Get() error = %v, want context.Canceled", err)
	}
	if mock.RequestCount() != 0 || limiter.n.Load() != 0 {
		t.Errorf("requests = %d, acquisitions = %d, want none", mock.RequestCount(), limiter.n.Load())
	}
}

func TestExecute_CircuitBreakerOpens(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	mock.SetResponse("/stages", testutil.NewServerErrorResponse())
	mock.SetResponse("/missing", testutil.NewNotFoundResponse())

	e, _, _ := newTestExecutor(t, mock, func(c *Config) {
		c.Retry.MaxAttempts = 1
		c.Breaker = BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Hour}
	})
	ctx := context.Background()

	// Permanent errors do not count against Lever's health.
	for i := 0; i < 3; i++ {
		if _, err := e.Get(ctx, "get_missing", "/missing", nil); err == nil {
			t.Fatal("Get(/missing) expected error")
		}
	}

	for i := 0; i < 2; i++ {
		if _, err := e.Get(ctx, "get_stages", "/stages", nil); !errors.Is(err, ErrRetryExhausted) {
			t.Fatalf("Get() #%d error = %v, want ErrRetryExhausted", i, err)
		}
	}

	before := mock.RequestCount()
	_, err := e.Get(ctx, "get_stages", "/stages", nil)

	var transient *TransientError
	if !errors.As(err, &transient) || !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Get() error = %v, want *TransientError wrapping ErrCircuitOpen", err)
	}
	if got := mock.RequestCount(); got != before {
		t.Errorf("open breaker sent %d requests, want 0", got-before)
	}
}

func TestExecute_AuthHeaders(t *testing.T) {
	tests := []struct {
		name   string
		scheme AuthScheme
		check  func(t *testing.T, r testutil.RecordedRequest)
	}{
		{
			name:   "basic",
			scheme: AuthBasic,
			check: func(t *testing.T, r testutil.RecordedRequest) {
				req := &http.Request{Header: r.Header}
				user, pass, ok := req.BasicAuth()
				if !ok || user != "test-key" || pass != "" {
					t.Errorf("BasicAuth() = %q, %q, %v, want key as username", user, pass, ok)
				}
			},
		},
		{
			name:   "bearer",
			scheme: AuthBearer,
			check: func(t *testing.T, r testutil.RecordedRequest) {
				if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
					t.Errorf("Authorization = %q, want bearer token", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockLever()
			defer mock.Close()
			mock.SetResponse("/stages", testutil.NewDataResponse([]any{}))

			e, _, _ := newTestExecutor(t, mock, func(c *Config) {
				c.AuthScheme = tt.scheme
				c.UserAgent = "TestApp/1.0"
			})

			if _, err := e.Get(context.Background(), "get_stages", "/stages", nil); err != nil {
				t.Fatalf("Get() error = %v", err)
			}

			req, ok := mock.LastRequest()
			if !ok {
				t.Fatal("no request recorded")
			}
			tt.check(t, req)
			if got := req.Header.Get("User-Agent"); got != "TestApp/1.0" {
				t.Errorf("User-Agent = %q, want TestApp/1.0", got)
			}
			if got := req.Header.Get("Accept"); got != "application/json" {
				t.Errorf("Accept = %q, want application/json", got)
			}
		})
	}
}

func TestExecute_JSONBodyAndQuery(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()
	mock.SetResponse("/opportunities/abc/notes", testutil.NewDataResponse(map[string]string{"noteId": "n1"}))

	e, _, _ := newTestExecutor(t, mock, nil)

	_, err := e.Execute(context.Background(), &Request{
		Operation: "add_note",
		Method:    http.MethodPost,
		Path:      "/opportunities/abc/notes",
		Route:     "/opportunities/{id}/notes",
		Query:     map[string][]string{"perform_as": {"user-1"}},
		Body:      map[string]string{"value": "Great call"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	req, _ := mock.LastRequest()
	if req.Method != http.MethodPost {
		t.Errorf("Method = %q, want POST", req.Method)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if got := req.Query.Get("perform_as"); got != "user-1" {
		t.Errorf("perform_as = %q, want user-1", got)
	}

	var body map[string]string
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if body["value"] != "Great call" {
		t.Errorf("body value = %q, want %q", body["value"], "Great call")
	}
}

func TestExecute_NonJSONBody(t *testing.T) {
	mock := testutil.NewMockLever()
	defer mock.Close()

	mock.SetResponse("/stages", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       "<html>maintenance</html>",
		Headers:    map[string]string{"Content-Type": "text/html"},
	})

	e, _, _ := newTestExecutor(t, mock, nil)

	_, err := e.Get(context.Background(), "get_stages", "/stages", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Class != ErrorClassDecode {
		t.Fatalf("Get() error = %v, want decode *APIError", err)
	}
	if got := mock.RequestCount(); got != 1 {
		t.Errorf("requests = %d, want 1 (no retry)", got)
	}
}

func TestResponse_Decode(t *testing.T) {
	resp := &Response{StatusCode: 200, Body: []byte(`{"data": [`), operation: "get_stages", route: "/stages"}

	var out struct {
		Data []any `json:"data"`
	}
	err := resp.Decode(&out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Decode() error = %v, want *APIError", err)
	}
	if apiErr.Class != ErrorClassDecode || apiErr.Operation != "get_stages" {
		t.Errorf("Decode() error = %+v, want decode class for get_stages", apiErr)
	}

	ok := &Response{StatusCode: 200, Body: []byte(`{"data": [1, 2]}`)}
	if err := ok.Decode(&out); err != nil || len(out.Data) != 2 {
		t.Errorf("Decode() = %v, %v; want 2 items", out.Data, err)
	}
}
