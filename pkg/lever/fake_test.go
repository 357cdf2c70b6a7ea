package lever

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/Sternrassler/lever-ats-client/pkg/client"
)

// fakeLever is an in-memory Lever serving list endpoints page by page (the
// cursor is the next item index) and single records wrapped in {"data": ...}.
type fakeLever struct {
	mu       sync.Mutex
	lists    map[string][]any
	records  map[string]any
	errs     map[string]error
	requests []*client.Request

	// stall, when set and true for a request, holds it until ctx is done.
	stall func(req *client.Request) bool
}

func newFakeLever() *fakeLever {
	return &fakeLever{
		lists:   make(map[string][]any),
		records: make(map[string]any),
		errs:    make(map[string]error),
	}
}

func (f *fakeLever) Execute(ctx context.Context, req *client.Request) (*client.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.errs[req.Method+" "+req.Path]
	if err == nil {
		err = f.errs[req.Path]
	}
	items, isList := f.lists[req.Path]
	record, isRecord := f.records[req.Method+" "+req.Path]
	if !isRecord {
		record, isRecord = f.records[req.Path]
	}
	stall := f.stall
	f.mu.Unlock()

	if stall != nil && stall(req) {
		<-ctx.Done()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}

	switch {
	case isRecord:
		return respond(map[string]any{"data": record}), nil
	case isList:
		limit, _ := strconv.Atoi(req.Query.Get("limit"))
		offset, _ := strconv.Atoi(req.Query.Get("offset"))
		end := min(offset+limit, len(items))
		page := map[string]any{"data": items[offset:end], "hasNext": end < len(items)}
		if end < len(items) {
			page["next"] = strconv.Itoa(end)
		}
		return respond(page), nil
	default:
		return nil, &client.APIError{Operation: req.Operation, Route: req.Route, StatusCode: 404, Class: client.ErrorClassClient, Message: "Resource not found"}
	}
}

// stallPagesAfterFirst holds every follow-up page of path until the
// caller's context expires.
func stallPagesAfterFirst(path string) func(*client.Request) bool {
	return func(req *client.Request) bool {
		return req.Path == path && req.Query.Get("offset") != ""
	}
}

func (f *fakeLever) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLever) requestsTo(method, path string) []*client.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*client.Request
	for _, r := range f.requests {
		m := r.Method
		if m == "" {
			m = "GET"
		}
		if m == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func respond(v any) *client.Response {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return &client.Response{StatusCode: 200, Body: b}
}

func opp(id, name, headline string, tags ...string) map[string]any {
	return map[string]any{
		"id":        id,
		"name":      name,
		"headline":  headline,
		"tags":      tags,
		"emails":    []string{},
		"createdAt": 1700000000000,
	}
}

func newTestClient(f *fakeLever, mutate func(*Config)) *Client {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(f, cfg)
}
