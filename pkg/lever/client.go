// Package lever is the query surface over the Lever API: one method per
// recruiting operation, composed from the paginator and the request
// executor, plus the client-side matching Lever cannot do server-side.
package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/lever-ats-client/pkg/client"
	"github.com/Sternrassler/lever-ats-client/pkg/pagination"
)

// Config holds facade configuration.
type Config struct {
	Pagination pagination.Config

	// ScanLimit bounds how many records a client-side search examines.
	ScanLimit int

	// DefaultLimit applies when a caller passes no limit.
	DefaultLimit int

	// MaxLimit caps caller-supplied limits.
	MaxLimit int
}

// DefaultConfig returns the default facade configuration.
func DefaultConfig() Config {
	return Config{
		Pagination:   pagination.DefaultConfig(),
		ScanLimit:    500,
		DefaultLimit: 100,
		MaxLimit:     500,
	}
}

// Client exposes Lever operations. It is safe for concurrent use.
type Client struct {
	doer   pagination.Doer
	pages  *pagination.Paginator
	config Config
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a facade over doer, normally a *client.Executor.
func New(doer pagination.Doer, cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = defaults.ScanLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = defaults.MaxLimit
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaults.DefaultLimit
	}
	cfg.DefaultLimit = min(cfg.DefaultLimit, cfg.MaxLimit)

	return &Client{
		doer:   doer,
		pages:  pagination.New(doer, cfg.Pagination),
		config: cfg,
		now:    time.Now,
		logger: log.With().Str("component", "lever").Logger(),
	}
}

// Config returns the facade configuration.
func (c *Client) Config() Config {
	return c.config
}

// limit applies the default and the cap to a caller-supplied limit.
func (c *Client) limit(n int) (int, string) {
	switch {
	case n <= 0:
		return c.config.DefaultLimit, ""
	case n > c.config.MaxLimit:
		return c.config.MaxLimit, fmt.Sprintf("limit %d exceeds the maximum; capped at %d", n, c.config.MaxLimit)
	default:
		return n, ""
	}
}

// getData fetches a single Lever record wrapped in {"data": ...}.
func (c *Client) getData(ctx context.Context, op, route, path string, query url.Values, v any) error {
	resp, err := c.doer.Execute(ctx, &client.Request{
		Operation: op,
		Method:    http.MethodGet,
		Path:      path,
		Route:     route,
		Query:     query,
	})
	if err != nil {
		return err
	}
	return resp.Decode(&envelope{Data: v})
}

// send performs a write with a JSON body and decodes {"data": ...} into v
// when v is non-nil.
func (c *Client) send(ctx context.Context, op, method, route, path string, body, v any) error {
	resp, err := c.doer.Execute(ctx, &client.Request{
		Operation: op,
		Method:    method,
		Path:      path,
		Route:     route,
		Body:      body,
	})
	if err != nil {
		return err
	}
	if v == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Decode(&envelope{Data: v})
}

type envelope struct {
	Data any `json:"data"`
}

type failOnDeadlineKey struct{}

// WithFailOnDeadline returns a context under which list operations fail
// with a deadline error instead of returning the pages fetched so far.
func WithFailOnDeadline(ctx context.Context) context.Context {
	return context.WithValue(ctx, failOnDeadlineKey{}, true)
}

func failOnDeadline(ctx context.Context) bool {
	fail, _ := ctx.Value(failOnDeadlineKey{}).(bool)
	return fail
}

// list walks a list endpoint and decodes up to maxItems records.
func list[T any](ctx context.Context, c *Client, q pagination.Query, maxItems int) (*Result[T], error) {
	q.FailOnDeadline = q.FailOnDeadline || failOnDeadline(ctx)
	rs, err := c.pages.FetchAll(ctx, q, maxItems)
	if err != nil {
		return nil, err
	}

	items, err := decodeAll[T](q, rs.Items)
	if err != nil {
		return nil, err
	}

	result := newResult(items)
	result.Truncated = rs.Truncated
	result.DeadlineExceeded = rs.DeadlineExceeded
	if rs.DeadlineExceeded {
		result.warn("deadline reached before all pages were fetched; results are partial")
	}
	return result, nil
}

// scan walks up to ScanLimit opportunities and keeps the first limit that
// match. The result reports how many were examined and whether the scan
// stopped before the server ran out.
func scan(ctx context.Context, c *Client, q pagination.Query, match Matcher, limit int) (*Result[Opportunity], error) {
	scanned, err := list[Opportunity](ctx, c, q, c.config.ScanLimit)
	if err != nil {
		return nil, err
	}

	matches := FilterOpportunities(scanned.Items, match)
	cut := len(matches) > limit
	if cut {
		matches = matches[:limit]
	}

	result := newResult(matches)
	result.Scanned = scanned.Count
	result.ScanTruncated = scanned.Truncated
	result.Truncated = cut || scanned.Truncated
	result.DeadlineExceeded = scanned.DeadlineExceeded
	result.Warnings = scanned.Warnings

	if scanned.Truncated && !scanned.DeadlineExceeded {
		result.warn(fmt.Sprintf("searched the first %d candidates only; more exist. Narrow the search with a stage or posting filter",
			scanned.Count))
	}

	c.logger.Debug().
		Str("operation", q.Operation).
		Int("scanned", result.Scanned).
		Int("matches", result.Count).
		Bool("scan_truncated", result.ScanTruncated).
		Msg("Client-side search complete")

	return result, nil
}

func decodeAll[T any](q pagination.Query, raws []json.RawMessage) ([]T, error) {
	route := q.Route
	if route == "" {
		route = q.Path
	}

	items := make([]T, 0, len(raws))
	for i, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &client.APIError{
				Operation: q.Operation,
				Route:     route,
				Class:     client.ErrorClassDecode,
				Message:   fmt.Sprintf("decode item %d: %v", i, err),
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func opportunityPath(id string, rest ...string) string {
	p := "/opportunities/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}
