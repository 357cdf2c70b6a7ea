package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/lever-ats-client/pkg/client"
)

// listDoer serves items 1..total as a Lever list endpoint. The cursor is
// the index of the next item.
type listDoer struct {
	mu       sync.Mutex
	total    int
	requests []url.Values

	// respond overrides the page for a given call number (1-based).
	respond map[int]func(ctx context.Context) (*client.Response, error)
}

func (d *listDoer) Execute(ctx context.Context, req *client.Request) (*client.Response, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req.Query)
	call := len(d.requests)
	override := d.respond[call]
	d.mu.Unlock()

	if override != nil {
		return override(ctx)
	}

	limit, _ := strconv.Atoi(req.Query.Get("limit"))
	offset, _ := strconv.Atoi(req.Query.Get("offset"))

	var data []map[string]int
	for i := offset; i < d.total && len(data) < limit; i++ {
		data = append(data, map[string]int{"n": i + 1})
	}

	next := offset + len(data)
	body := map[string]any{"data": data, "hasNext": next < d.total}
	if next < d.total {
		body["next"] = strconv.Itoa(next)
	}
	return jsonResponse(body), nil
}

func (d *listDoer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func jsonResponse(v any) *client.Response {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return &client.Response{StatusCode: 200, Body: b}
}

func numbers(t *testing.T, rs *ResultSet) []int {
	t.Helper()
	out := make([]int, 0, len(rs.Items))
	for _, raw := range rs.Items {
		var item struct{ N int }
		require.NoError(t, json.Unmarshal(raw, &item))
		out = append(out, item.N)
	}
	return out
}

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestFetchAll_BoundsAndOrder(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		maxItems  int
		wantPages int
	}{
		{"fewer items than max", 7, 3, 10, 3},
		{"exactly max", 9, 3, 9, 3},
		{"more items than max", 10, 2, 7, 4},
		{"max not aligned to page size", 25, 10, 15, 2},
		{"single small page", 2, 100, 100, 1},
		{"empty collection", 0, 100, 50, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := &listDoer{total: tt.total}
			p := New(doer, Config{PageSize: tt.pageSize, PartialOnDeadline: true})

			rs, err := p.FetchAll(context.Background(), Query{Operation: "list", Path: "/opportunities"}, tt.maxItems)
			require.NoError(t, err)

			want := min(tt.total, tt.maxItems)
			assert.Equal(t, want, rs.Count)
			assert.Len(t, rs.Items, want)
			if want > 0 {
				assert.Equal(t, seq(1, want), numbers(t, rs))
			}
			assert.Equal(t, tt.maxItems < tt.total, rs.Truncated)
			assert.False(t, rs.DeadlineExceeded)
			assert.Equal(t, tt.wantPages, rs.Pages)
			assert.Equal(t, tt.wantPages, doer.calls())
		})
	}
}

func TestFetchAll_RequestsOnlyWhatIsNeeded(t *testing.T) {
	doer := &listDoer{total: 500}
	p := New(doer, DefaultConfig())

	_, err := p.FetchAll(context.Background(), Query{
		Path:   "/opportunities",
		Params: url.Values{"posting_id": {"p1"}},
	}, 130)
	require.NoError(t, err)

	require.Len(t, doer.requests, 2)
	assert.Equal(t, "100", doer.requests[0].Get("limit"))
	assert.Empty(t, doer.requests[0].Get("offset"))
	assert.Equal(t, "30", doer.requests[1].Get("limit"))
	assert.Equal(t, "100", doer.requests[1].Get("offset"))
	for _, q := range doer.requests {
		assert.Equal(t, "p1", q.Get("posting_id"))
	}
}

func TestFetchAll_DoesNotMutateParams(t *testing.T) {
	doer := &listDoer{total: 5}
	p := New(doer, Config{PageSize: 2})
	params := url.Values{"stage_id": {"s1"}}

	_, err := p.FetchAll(context.Background(), Query{Path: "/opportunities", Params: params}, 5)
	require.NoError(t, err)

	assert.Equal(t, url.Values{"stage_id": {"s1"}}, params)
}

func TestFetchAll_MaxItemsRequired(t *testing.T) {
	for _, max := range []int{0, -1} {
		doer := &listDoer{total: 5}
		p := New(doer, DefaultConfig())

		rs, err := p.FetchAll(context.Background(), Query{Path: "/postings"}, max)

		assert.ErrorIs(t, err, ErrMaxItemsRequired)
		assert.Nil(t, rs)
		assert.Zero(t, doer.calls())
	}
}

func TestFetchAll_HasNextWithoutCursor(t *testing.T) {
	doer := &listDoer{respond: map[int]func(context.Context) (*client.Response, error){
		1: func(context.Context) (*client.Response, error) {
			return jsonResponse(map[string]any{
				"data":    []map[string]int{{"n": 1}, {"n": 2}},
				"hasNext": true,
			}), nil
		},
	}}
	p := New(doer, DefaultConfig())

	rs, err := p.FetchAll(context.Background(), Query{Path: "/opportunities"}, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, rs.Count)
	assert.True(t, rs.Truncated, "hasNext=true must never be reported as complete")
	assert.Equal(t, 1, doer.calls())
}

func TestFetchAll_RepeatedCursorStops(t *testing.T) {
	repeat := func(context.Context) (*client.Response, error) {
		return jsonResponse(map[string]any{
			"data":    []map[string]int{{"n": 1}},
			"hasNext": true,
			"next":    "same",
		}), nil
	}
	doer := &listDoer{respond: map[int]func(context.Context) (*client.Response, error){1: repeat, 2: repeat, 3: repeat}}
	p := New(doer, DefaultConfig())

	rs, err := p.FetchAll(context.Background(), Query{Path: "/opportunities"}, 100)
	require.NoError(t, err)

	assert.True(t, rs.Truncated)
	assert.Equal(t, 2, doer.calls())
}

func TestFetchAll_PermanentErrorDiscardsPartial(t *testing.T) {
	notFound := &client.APIError{StatusCode: 404, Class: client.ErrorClassClient, Message: "Resource not found"}
	doer := &listDoer{total: 10, respond: map[int]func(context.Context) (*client.Response, error){
		2: func(context.Context) (*client.Response, error) { return nil, notFound },
	}}
	p := New(doer, Config{PageSize: 3})

	rs, err := p.FetchAll(context.Background(), Query{Path: "/opportunities"}, 10)

	assert.Nil(t, rs)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, 2, doer.calls())
}

func TestFetchAll_MalformedPage(t *testing.T) {
	doer := &listDoer{respond: map[int]func(context.Context) (*client.Response, error){
		1: func(context.Context) (*client.Response, error) {
			return &client.Response{StatusCode: 200, Body: []byte(`{"data": {}}`)}, nil
		},
	}}
	p := New(doer, DefaultConfig())

	_, err := p.FetchAll(context.Background(), Query{Path: "/stages"}, 10)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, client.ErrorClassDecode, apiErr.Class)
}

func TestFetchAll_ExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	t.Run("partial by default", func(t *testing.T) {
		doer := &listDoer{total: 10}
		p := New(doer, DefaultConfig())

		rs, err := p.FetchAll(ctx, Query{Path: "/opportunities"}, 10)
		require.NoError(t, err)

		assert.Zero(t, rs.Count)
		assert.True(t, rs.Truncated)
		assert.True(t, rs.DeadlineExceeded)
		assert.Zero(t, doer.calls())
	})

	t.Run("hard failure per query", func(t *testing.T) {
		doer := &listDoer{total: 10}
		p := New(doer, DefaultConfig())

		rs, err := p.FetchAll(ctx, Query{Path: "/opportunities", FailOnDeadline: true}, 10)

		assert.Nil(t, rs)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, doer.calls())
	})

	t.Run("hard failure by config", func(t *testing.T) {
		doer := &listDoer{total: 10}
		p := New(doer, Config{PageSize: 10, PartialOnDeadline: false})

		_, err := p.FetchAll(ctx, Query{Path: "/opportunities"}, 10)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestFetchAll_DeadlineDuringFetch(t *testing.T) {
	doer := &listDoer{total: 10, respond: map[int]func(context.Context) (*client.Response, error){
		2: func(ctx context.Context) (*client.Response, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("%w: %w", client.ErrContextCancelled, ctx.Err())
		},
	}}
	p := New(doer, Config{PageSize: 4, PartialOnDeadline: true})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rs, err := p.FetchAll(ctx, Query{Path: "/opportunities"}, 10)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, numbers(t, rs))
	assert.Equal(t, 4, rs.Count)
	assert.True(t, rs.Truncated)
	assert.True(t, rs.DeadlineExceeded)
}

func TestFetchAll_CancelledAlwaysFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	doer := &listDoer{total: 10, respond: map[int]func(context.Context) (*client.Response, error){
		2: func(ctx context.Context) (*client.Response, error) {
			cancel()
			return nil, fmt.Errorf("%w: %w", client.ErrContextCancelled, ctx.Err())
		},
	}}
	p := New(doer, Config{PageSize: 4, PartialOnDeadline: true})

	rs, err := p.FetchAll(ctx, Query{Path: "/opportunities"}, 10)

	assert.Nil(t, rs)
	assert.True(t, errors.Is(err, context.Canceled))
}
