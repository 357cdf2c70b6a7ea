package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/lever-ats-client/internal/testutil"
	"github.com/Sternrassler/lever-ats-client/pkg/client"
	"github.com/Sternrassler/lever-ats-client/pkg/lever"
	"github.com/Sternrassler/lever-ats-client/pkg/ratelimit"
)

func newTestRegistry(t *testing.T) (*Registry, *testutil.MockLever) {
	t.Helper()

	mock := testutil.NewMockLever()
	t.Cleanup(mock.Close)

	window, err := ratelimit.NewWindow(1000, time.Second, zerolog.Nop())
	require.NoError(t, err)

	cfg := client.DefaultConfig("test-key", window)
	cfg.BaseURL = mock.URL()
	cfg.Retry.MaxAttempts = 1

	exec, err := client.New(cfg)
	require.NoError(t, err)

	return NewRegistry(lever.New(exec, lever.DefaultConfig())), mock
}

func candidates(n int) []any {
	out := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, map[string]any{
			"id":        fmt.Sprintf("o%d", i),
			"name":      fmt.Sprintf("Candidate %d", i),
			"emails":    []string{fmt.Sprintf("c%d@example.com", i)},
			"stage":     map[string]any{"id": "s1", "text": "New applicant"},
			"createdAt": 1700000000000,
		})
	}
	return out
}

func TestList_HidesUnsupportedTools(t *testing.T) {
	r, _ := newTestRegistry(t)

	tools := r.List()
	require.Len(t, tools, 16)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.IsNonDecreasing(t, names)
	assert.NotContains(t, names, lever.OpChangeStage)
	assert.NotContains(t, names, lever.OpCreateApplication)

	archive, ok := r.Lookup(lever.OpArchiveCandidate)
	require.True(t, ok)
	assert.True(t, archive.Destructive)

	_, ok = r.Lookup(lever.OpChangeStage)
	assert.True(t, ok, "hidden tools can still be looked up")
}

func TestCall_UnsupportedToolMakesNoRequest(t *testing.T) {
	r, mock := newTestRegistry(t)

	env := r.Call(context.Background(), lever.OpChangeStage, map[string]any{"opportunity_id": "o1", "stage_id": "s2"})
	assert.False(t, env.OK)
	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindCapabilityUnsupported, env.Error.Kind)
	assert.NotEmpty(t, env.Error.Guidance)

	env = r.Call(context.Background(), lever.OpCreateApplication, map[string]any{"opportunity_id": "o1", "posting_id": "p1"})
	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindCapabilityUnsupported, env.Error.Kind)

	assert.Zero(t, mock.RequestCount())
}

func TestCall_UnsupportedToolIgnoresArgumentShape(t *testing.T) {
	r, mock := newTestRegistry(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{name: "stage name instead of id", tool: lever.OpChangeStage, args: map[string]any{"opportunity_id": "o1", "stage": "Onsite"}},
		{name: "extra reason", tool: lever.OpChangeStage, args: map[string]any{"opportunity_id": "o1", "stage_id": "s2", "reason": "x"}},
		{name: "no arguments", tool: lever.OpChangeStage, args: nil},
		{name: "posting as object", tool: lever.OpCreateApplication, args: map[string]any{"opportunity_id": "o1", "posting_id": map[string]any{"id": "p1"}}},
		{name: "posting as list", tool: lever.OpCreateApplication, args: map[string]any{"opportunity_id": []any{"o1"}, "posting_id": []any{"p1", "p2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := r.Call(context.Background(), tt.tool, tt.args)

			assert.False(t, env.OK)
			require.NotNil(t, env.Error)
			assert.Equal(t, lever.KindCapabilityUnsupported, env.Error.Kind)
			assert.NotEmpty(t, env.Error.Guidance)
		})
	}

	assert.Zero(t, mock.RequestCount())
}

func TestCall_FailOnDeadline(t *testing.T) {
	firstPage := testutil.NewJSONResponse(200, map[string]any{
		"data":    []any{map[string]any{"id": "s1", "text": "New"}},
		"hasNext": true,
		"next":    "1",
	})
	slowPage := testutil.NewJSONResponse(200, map[string]any{
		"data":    []any{map[string]any{"id": "s2", "text": "Onsite"}},
		"hasNext": false,
	})
	slowPage.Delay = 500 * time.Millisecond

	tests := []struct {
		name    string
		args    map[string]any
		ok      bool
		errKind lever.ErrorKind
	}{
		{name: "partial by default", args: nil, ok: true},
		{name: "explicit false", args: map[string]any{"fail_on_deadline": false}, ok: true},
		{name: "fail", args: map[string]any{"fail_on_deadline": true}, errKind: lever.KindDeadlineExceeded},
		{name: "fail as string", args: map[string]any{"fail_on_deadline": "true"}, errKind: lever.KindDeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newTestRegistry(t)
			mock.SetSequence("/stages", firstPage, slowPage)

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			env := r.Call(ctx, lever.OpGetStages, tt.args)

			if !tt.ok {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.errKind, env.Error.Kind)
				return
			}
			require.True(t, env.OK, "%+v", env.Error)
			assert.Equal(t, 1, env.Count)
			assert.True(t, env.Truncated)
			assert.True(t, env.DeadlineExceeded)
		})
	}
}

func TestCall_FailOnDeadlineMustBeBoolean(t *testing.T) {
	r, mock := newTestRegistry(t)

	env := r.Call(context.Background(), lever.OpGetStages, map[string]any{"fail_on_deadline": "sometimes"})

	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindValidation, env.Error.Kind)
	assert.Contains(t, env.Error.Message, "fail_on_deadline")
	assert.Zero(t, mock.RequestCount())
}

func TestCall_UnknownTool(t *testing.T) {
	r, mock := newTestRegistry(t)

	env := r.Call(context.Background(), "lever_delete_everything", nil)

	assert.False(t, env.OK)
	assert.NotEmpty(t, env.InvocationID)
	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindValidation, env.Error.Kind)
	assert.Zero(t, mock.RequestCount())
}

func TestCall_ArgumentDecoding(t *testing.T) {
	r, mock := newTestRegistry(t)
	mock.ServePages("/opportunities", candidates(5))

	env := r.Call(context.Background(), lever.OpSearchCandidates, map[string]any{"limit": "2"})
	require.Nil(t, env.Error)

	assert.True(t, env.OK)
	assert.Equal(t, 2, env.Count)
	assert.True(t, env.Truncated)
	assert.Len(t, env.Items, 2)

	last, ok := mock.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "2", last.Query.Get("limit"))
}

func TestCall_UnknownArgumentRejected(t *testing.T) {
	r, mock := newTestRegistry(t)

	env := r.Call(context.Background(), lever.OpSearchCandidates, map[string]any{"limt": 5})

	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindValidation, env.Error.Kind)
	assert.Contains(t, env.Error.Message, "limt")
	assert.Zero(t, mock.RequestCount())
}

func TestCall_MissingRequiredArgument(t *testing.T) {
	r, mock := newTestRegistry(t)

	env := r.Call(context.Background(), lever.OpGetCandidate, map[string]any{})

	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindValidation, env.Error.Kind)
	assert.Contains(t, env.Error.Message, "opportunity_id")
	assert.Zero(t, mock.RequestCount())
}

func TestCall_GetCandidateRendersDetail(t *testing.T) {
	r, mock := newTestRegistry(t)
	mock.SetResponse("/opportunities/o1", testutil.NewDataResponse(map[string]any{
		"id":           "o1",
		"name":         "Jane Doe",
		"headline":     "Acme, Globex",
		"emails":       []string{"jane@example.com"},
		"phones":       []map[string]string{{"type": "mobile", "value": "+49 30 1234"}},
		"stage":        map[string]any{"id": "s3", "text": "Onsite"},
		"owner":        map[string]any{"id": "u1", "name": "Rita Recruiter"},
		"applications": []string{"a1"},
		"createdAt":    1700000000000,
	}))

	env := r.Call(context.Background(), lever.OpGetCandidate, map[string]any{"opportunity_id": "o1"})
	require.Nil(t, env.Error)

	detail, ok := env.Record.(CandidateDetail)
	require.True(t, ok, "record is %T", env.Record)
	assert.Equal(t, "Jane Doe", detail.Name)
	assert.Equal(t, "jane@example.com", detail.Email)
	assert.Equal(t, []string{"+49 30 1234"}, detail.Phones)
	assert.Equal(t, "Onsite", detail.Stage)
	assert.Equal(t, "s3", detail.StageID)
	assert.Equal(t, "Rita Recruiter", detail.Owner)
	assert.Equal(t, []string{"Acme", "Globex"}, detail.Companies)
	assert.Equal(t, 1, detail.Applications)
	assert.Equal(t, "2023-11-14", detail.Created)
	assert.Equal(t, "2023-11-14 22:13", detail.CreatedAt)
	assert.Nil(t, detail.Archived)
}

func TestCall_PermanentAPIError(t *testing.T) {
	r, mock := newTestRegistry(t)

	env := r.Call(context.Background(), lever.OpGetCandidate, map[string]any{"opportunity_id": "missing"})

	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindPermanentAPI, env.Error.Kind)
	assert.Equal(t, 404, env.Error.Status)
	assert.False(t, env.Error.Retryable)
	assert.Equal(t, 1, mock.RequestCount())
}

func TestCall_TransientAPIError(t *testing.T) {
	r, mock := newTestRegistry(t)
	mock.SetResponse("/stages", testutil.NewServerErrorResponse())

	env := r.Call(context.Background(), lever.OpGetStages, nil)

	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindTransientAPI, env.Error.Kind)
	assert.True(t, env.Error.Retryable)
	assert.Equal(t, 503, env.Error.Status)
}

func TestCall_CandidatesForRoleGroupsByStage(t *testing.T) {
	r, mock := newTestRegistry(t)
	mock.ServePages("/opportunities", []any{
		map[string]any{"id": "o1", "name": "A", "stage": map[string]any{"id": "s1", "text": "Screen"}},
		map[string]any{"id": "o2", "name": "B", "stage": map[string]any{"id": "s2", "text": "Offer"}},
		map[string]any{"id": "o3", "name": "C", "stage": map[string]any{"id": "s1", "text": "Screen"}},
	})

	env := r.Call(context.Background(), lever.OpFindCandidatesForRole, map[string]any{"posting_id": "p1"})
	require.Nil(t, env.Error)

	groups, ok := env.Items.([]StageGroupView)
	require.True(t, ok)
	require.Len(t, groups, 2)
	assert.Equal(t, "Screen", groups[0].Stage)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, 3, env.Count)
}

func TestCall_RecoversFromPanic(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.tools["lever_boom"] = Tool{
		Name: "lever_boom",
		handle: func(context.Context, *lever.Client, string, map[string]any) (*Envelope, error) {
			panic("boom")
		},
	}

	env := r.Call(context.Background(), "lever_boom", nil)

	require.NotNil(t, env.Error)
	assert.Equal(t, lever.KindInternal, env.Error.Kind)
	assert.Contains(t, env.Error.Message, "boom")
	assert.Equal(t, "lever_boom", env.Tool)
}

func TestEnvelope_JSON(t *testing.T) {
	r, mock := newTestRegistry(t)
	mock.ServePages("/archive_reasons", []any{map[string]any{"id": "r1", "text": "Hired", "type": "hired"}})

	env := r.Call(context.Background(), lever.OpGetArchiveReasons, nil)
	require.Nil(t, env.Error)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, lever.OpGetArchiveReasons, decoded["tool"])
	assert.Equal(t, true, decoded["ok"])
	assert.EqualValues(t, 1, decoded["count"])
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "record")
	assert.Len(t, decoded["items"], 1)
}
