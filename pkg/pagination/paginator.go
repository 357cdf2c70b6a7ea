package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/lever-ats-client/pkg/client"
)

// MaxPageSize is the largest page Lever serves.
const MaxPageSize = 100

// ErrMaxItemsRequired is returned when a walk is requested without a bound.
var ErrMaxItemsRequired = errors.New("pagination: maxItems must be positive")

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lever_pages_fetched_total",
		Help: "Total list pages fetched by route",
	}, []string{"route"})

	truncatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lever_pagination_truncated_total",
		Help: "Total paginated walks that stopped before the server ran out, by reason",
	}, []string{"reason"})
)

// Config holds paginator configuration.
type Config struct {
	// PageSize is the number of items requested per page (1..100)
	PageSize int

	// PartialOnDeadline returns collected items instead of an error when
	// the caller's deadline passes mid-walk
	PartialOnDeadline bool
}

// DefaultConfig returns the default pagination configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:          MaxPageSize,
		PartialOnDeadline: true,
	}
}

// Doer executes a single Lever request. *client.Executor implements it.
type Doer interface {
	Execute(ctx context.Context, req *client.Request) (*client.Response, error)
}

// Query describes one list endpoint walk.
type Query struct {
	Operation string
	Route     string
	Path      string

	// Params are sent with every page; limit and offset are managed here.
	Params url.Values

	// FailOnDeadline overrides PartialOnDeadline for this walk.
	FailOnDeadline bool
}

// ResultSet is the outcome of a walk.
type ResultSet struct {
	// Items are raw records in server order.
	Items []json.RawMessage

	Count int

	// Truncated is set whenever the server may hold more matching items.
	Truncated bool

	// DeadlineExceeded is set when the walk stopped at the caller's deadline.
	DeadlineExceeded bool

	Pages int
}

// page is one Lever list response.
type page struct {
	Data    []json.RawMessage `json:"data"`
	HasNext bool              `json:"hasNext"`
	Next    string            `json:"next"`
}

// Paginator fetches list endpoints page by page.
type Paginator struct {
	doer   Doer
	config Config
	logger zerolog.Logger
}

// New creates a paginator.
func New(doer Doer, config Config) *Paginator {
	if config.PageSize <= 0 || config.PageSize > MaxPageSize {
		config.PageSize = MaxPageSize
	}

	return &Paginator{
		doer:   doer,
		config: config,
		logger: log.With().Str("component", "paginator").Logger(),
	}
}

// Config returns the paginator configuration.
func (p *Paginator) Config() Config {
	return p.config
}

// FetchAll collects up to maxItems records from a list endpoint.
//
// A permanent error discards anything collected and is returned as is.
func (p *Paginator) FetchAll(ctx context.Context, q Query, maxItems int) (*ResultSet, error) {
	if maxItems <= 0 {
		return nil, ErrMaxItemsRequired
	}

	route := q.Route
	if route == "" {
		route = q.Path
	}
	logger := p.logger.With().
		Str("operation", q.Operation).
		Str("route", route).
		Int("max_items", maxItems).
		Logger()

	start := time.Now()
	rs := &ResultSet{Items: make([]json.RawMessage, 0, min(maxItems, p.config.PageSize))}
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return p.stopAtContext(rs, q, err, err, logger)
		}

		remaining := maxItems - len(rs.Items)
		params := cloneValues(q.Params)
		params.Set("limit", strconv.Itoa(min(p.config.PageSize, remaining)))
		if cursor != "" {
			params.Set("offset", cursor)
		}

		resp, err := p.doer.Execute(ctx, &client.Request{
			Operation: q.Operation,
			Method:    http.MethodGet,
			Path:      q.Path,
			Route:     route,
			Query:     params,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return p.stopAtContext(rs, q, ctxErr, err, logger)
			}
			logger.Warn().
				Err(err).
				Int("page", rs.Pages+1).
				Int("discarded", len(rs.Items)).
				Msg("Page fetch failed")
			return nil, err
		}

		var pg page
		if err := resp.Decode(&pg); err != nil {
			return nil, err
		}
		rs.Pages++
		pagesFetchedTotal.WithLabelValues(route).Inc()

		items := pg.Data
		if len(items) > remaining {
			items = items[:remaining]
			rs.Truncated = true
		}
		rs.Items = append(rs.Items, items...)

		logger.Debug().
			Int("page", rs.Pages).
			Int("page_items", len(pg.Data)).
			Int("collected", len(rs.Items)).
			Bool("has_next", pg.HasNext).
			Msg("Fetched page")

		if !pg.HasNext {
			break
		}
		if len(rs.Items) >= maxItems {
			rs.Truncated = true
			truncatedTotal.WithLabelValues("max_items").Inc()
			break
		}
		if pg.Next == "" || pg.Next == cursor {
			rs.Truncated = true
			truncatedTotal.WithLabelValues("bad_cursor").Inc()
			logger.Warn().
				Str("next", pg.Next).
				Int("page", rs.Pages).
				Msg("Server reported more pages without a usable cursor, stopping")
			break
		}
		if len(pg.Data) == 0 {
			rs.Truncated = true
			truncatedTotal.WithLabelValues("empty_page").Inc()
			logger.Warn().
				Int("page", rs.Pages).
				Msg("Server returned an empty page with more pages pending, stopping")
			break
		}

		cursor = pg.Next
	}

	rs.Count = len(rs.Items)

	logger.Debug().
		Int("pages", rs.Pages).
		Int("count", rs.Count).
		Bool("truncated", rs.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return rs, nil
}

// stopAtContext applies the deadline policy once ctx is done. ctxErr is the
// context's own error; err is what the walk will report on failure.
func (p *Paginator) stopAtContext(rs *ResultSet, q Query, ctxErr, err error, logger zerolog.Logger) (*ResultSet, error) {
	partial := p.config.PartialOnDeadline && !q.FailOnDeadline
	if !partial || !errors.Is(ctxErr, context.DeadlineExceeded) {
		logger.Debug().Err(err).Int("collected", len(rs.Items)).Msg("Pagination stopped by context")
		return nil, fmt.Errorf("%s: %w", q.Operation, err)
	}

	rs.Truncated = true
	rs.DeadlineExceeded = true
	rs.Count = len(rs.Items)
	truncatedTotal.WithLabelValues("deadline").Inc()

	logger.Warn().
		Int("pages", rs.Pages).
		Int("collected", rs.Count).
		Msg("Deadline exceeded, returning partial results")

	return rs, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}
