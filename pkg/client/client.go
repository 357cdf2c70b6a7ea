// Package client executes authenticated Lever API requests with rate
// limiting, retries and typed errors.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sternrassler/lever-ats-client/pkg/ratelimit"
)

// Prometheus metrics for Lever client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lever_requests_total",
		Help: "Total Lever API attempts by route and status",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lever_request_duration_seconds",
		Help:    "Lever logical operation duration in seconds by route, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"route"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lever_errors_total",
		Help: "Total Lever errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lever_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lever_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lever_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})

	circuitOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lever_circuit_breaker_open",
		Help: "1 while the Lever circuit breaker is open, 0 otherwise",
	})
)

// DefaultBaseURL is the Lever v1 API root.
const DefaultBaseURL = "https://api.lever.co/v1"

// DefaultUserAgent identifies this client to Lever.
const DefaultUserAgent = "lever-ats-client/0.1.0"

// AuthScheme selects how the API key is attached.
type AuthScheme string

const (
	// AuthBasic sends the key as the basic-auth username with an empty
	// password, as Lever documents.
	AuthBasic AuthScheme = "basic"

	// AuthBearer sends the key as a bearer token.
	AuthBearer AuthScheme = "bearer"
)

// Executor performs Lever API requests. It is safe for concurrent use.
type Executor struct {
	httpClient *http.Client
	baseURL    string
	limiter    ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker
	clock      ratelimit.Clock
	tracer     trace.Tracer
	config     Config
	logger     zerolog.Logger
}

// Config holds the executor configuration.
type Config struct {
	// Lever API root, without trailing slash
	BaseURL string

	// API key; never logged
	APIKey     string
	AuthScheme AuthScheme

	UserAgent string

	// Limiter gates every attempt (REQUIRED)
	Limiter ratelimit.Limiter

	// AttemptTimeout bounds a single physical attempt
	AttemptTimeout time.Duration

	Retry   RetryConfig
	Breaker BreakerConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string, limiter ratelimit.Limiter) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		APIKey:         apiKey,
		AuthScheme:     AuthBasic,
		UserAgent:      DefaultUserAgent,
		Limiter:        limiter,
		AttemptTimeout: 30 * time.Second,
		Retry:          DefaultRetryConfig(),
		Breaker:        DefaultBreakerConfig(),
	}
}

// New creates a new Lever executor.
func New(cfg Config) (*Executor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	switch cfg.AuthScheme {
	case "":
		cfg.AuthScheme = AuthBasic
	case AuthBasic, AuthBearer:
	default:
		return nil, fmt.Errorf("auth scheme must be %q or %q (got %q)", AuthBasic, AuthBearer, cfg.AuthScheme)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.AttemptTimeout <= 0 {
		return nil, fmt.Errorf("attempt timeout must be positive (got %s)", cfg.AttemptTimeout)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialBackoff <= 0 || cfg.Retry.MaxBackoff < cfg.Retry.InitialBackoff {
		return nil, fmt.Errorf("retry backoff must satisfy 0 < initial <= max (got %s, %s)",
			cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff)
	}
	if cfg.Retry.BackoffMultiplier < 1 {
		cfg.Retry.BackoffMultiplier = 1
	}

	logger := log.With().Str("component", "lever-client").Logger()

	return &Executor{
		// Timeouts are applied per attempt through the request context.
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    cfg.Limiter,
		breaker:    newBreaker(cfg.Breaker, logger),
		clock:      ratelimit.SystemClock,
		tracer:     otel.Tracer("github.com/Sternrassler/lever-ats-client/pkg/client"),
		config:     cfg,
		logger:     logger,
	}, nil
}

// Execute performs one logical operation. Transient failures are retried
// with backoff; each attempt first waits for the rate limiter.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
	}

	route := req.route()
	ctx, span := e.tracer.Start(ctx, "lever "+req.method()+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("lever.operation", req.Operation),
			attribute.String("http.request.method", req.method()),
			attribute.String("lever.route", route),
		))
	defer span.End()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(route).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := e.execute(ctx, req, route)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (e *Executor) execute(ctx context.Context, req *Request, route string) (*Response, error) {
	if e.breaker == nil {
		return e.retryWithBackoff(ctx, req, route)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.retryWithBackoff(ctx, req, route)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			errorsTotal.WithLabelValues("circuit_open").Inc()
			e.logger.Warn().
				Str("operation", req.Operation).
				Str("route", route).
				Msg("Request rejected by open circuit breaker")
			return nil, &TransientError{
				Operation: req.Operation,
				Route:     route,
				Reason:    ErrCircuitOpen,
				Err:       err,
			}
		}
		return nil, err
	}

	return result.(*Response), nil
}

// attempt performs a single physical request.
func (e *Executor) attempt(ctx context.Context, req *Request, route string, attempt int) (*Response, error) {
	if err := e.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.config.AttemptTimeout)
	defer cancel()

	httpReq, err := e.newHTTPRequest(attemptCtx, req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return nil, &APIError{
			Operation: req.Operation,
			Route:     route,
			Class:     ErrorClassClient,
			Message:   err.Error(),
		}
	}

	e.logger.Debug().
		Str("operation", req.Operation).
		Str("method", httpReq.Method).
		Str("route", route).
		Int("attempt", attempt).
		Msg("Sending request")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, e.transportError(ctx, req, route, attempt, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, e.transportError(ctx, req, route, attempt, fmt.Errorf("read response body: %w", err))
	}

	requestsTotal.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()
	trace.SpanFromContext(ctx).AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.Int("http.response.status_code", resp.StatusCode),
	))

	return e.classifyResponse(req, route, attempt, resp, body)
}

// transportError classifies a failure with no usable response. The caller's
// own cancellation is returned as is; everything else, including the
// attempt timeout, is a retryable network error.
func (e *Executor) transportError(ctx context.Context, req *Request, route string, attempt int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrContextCancelled, ctxErr)
	}

	errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
	requestsTotal.WithLabelValues(route, "network_error").Inc()
	trace.SpanFromContext(ctx).AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.String("error", err.Error()),
	))

	e.logger.Warn().
		Err(err).
		Str("operation", req.Operation).
		Str("route", route).
		Int("attempt", attempt).
		Msg("Request failed")

	return &attemptError{class: ErrorClassNetwork, err: err}
}

// classifyResponse turns a completed HTTP exchange into a Response or an error.
func (e *Executor) classifyResponse(req *Request, route string, attempt int, resp *http.Response, body []byte) (*Response, error) {
	status := resp.StatusCode

	if status >= 200 && status < 300 {
		if len(body) > 0 && !isJSON(resp.Header.Get("Content-Type"), body) {
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			e.logger.Error().
				Str("operation", req.Operation).
				Str("route", route).
				Str("content_type", resp.Header.Get("Content-Type")).
				Msg("Response body is not JSON")
			return nil, &APIError{
				Operation:  req.Operation,
				Route:      route,
				StatusCode: status,
				Class:      ErrorClassDecode,
				Message:    "response body is not JSON",
				Body:       snippet(body),
			}
		}

		return &Response{
			StatusCode: status,
			Header:     resp.Header,
			Body:       body,
			operation:  req.Operation,
			route:      route,
		}, nil
	}

	class := classifyStatus(status)
	message := errorMessage(status, body)
	errorsTotal.WithLabelValues(string(class)).Inc()

	if shouldRetry(class) {
		e.logger.Warn().
			Str("operation", req.Operation).
			Str("route", route).
			Int("status", status).
			Int("attempt", attempt).
			Str("error_class", string(class)).
			Msg("Transient Lever error")
		return nil, &attemptError{
			class:      class,
			status:     status,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), e.clock.Now()),
			message:    message,
		}
	}

	e.logger.Error().
		Str("operation", req.Operation).
		Str("route", route).
		Int("status", status).
		Str("message", message).
		Msg("Lever request failed")

	return nil, &APIError{
		Operation:  req.Operation,
		Route:      route,
		StatusCode: status,
		Class:      class,
		Message:    message,
		Guidance:   guidanceForStatus(status),
		Body:       snippet(body),
	}
}

// Get performs a GET request against path.
func (e *Executor) Get(ctx context.Context, operation, path string, query url.Values) (*Response, error) {
	return e.Execute(ctx, &Request{
		Operation: operation,
		Method:    http.MethodGet,
		Path:      path,
		Query:     query,
	})
}

// SetHTTPClient replaces the HTTP client (for testing).
func (e *Executor) SetHTTPClient(client *http.Client) {
	e.httpClient = client
}

// SetClock replaces the clock used for backoff waits (for testing).
func (e *Executor) SetClock(clock ratelimit.Clock) {
	e.clock = clock
}

// SetLogger replaces the executor's logger.
func (e *Executor) SetLogger(logger zerolog.Logger) {
	e.logger = logger.With().Str("component", "lever-client").Logger()
}
