// Package tools exposes the Lever operations as named tools: JSON-style
// arguments in, a uniform JSON envelope out. Errors never escape Call; they
// are described inside the envelope.
package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/lever-ats-client/pkg/lever"
	"github.com/Sternrassler/lever-ats-client/pkg/logging"
)

// Prometheus metrics for tool invocations.
var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lever_tool_calls_total",
		Help: "Total tool invocations by tool and outcome",
	}, []string{"tool", "outcome"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lever_tool_call_duration_seconds",
		Help:    "Tool invocation duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"tool"})
)

// Envelope is the uniform result of a tool invocation. Exactly one of
// Items, Record or Error is set.
type Envelope struct {
	Tool             string                  `json:"tool"`
	InvocationID     string                  `json:"invocationId"`
	OK               bool                    `json:"ok"`
	Items            any                     `json:"items,omitempty"`
	Record           any                     `json:"record,omitempty"`
	Count            int                     `json:"count"`
	Truncated        bool                    `json:"truncated"`
	Scanned          int                     `json:"scanned,omitempty"`
	ScanTruncated    bool                    `json:"scanTruncated,omitempty"`
	DeadlineExceeded bool                    `json:"deadlineExceeded,omitempty"`
	Warnings         []string                `json:"warnings,omitempty"`
	Context          map[string]string       `json:"context,omitempty"`
	Error            *lever.ErrorDescription `json:"error,omitempty"`
}

// Param describes one tool argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description"`
}

// Tool describes an invocable tool.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`

	// Destructive tools change data in Lever in a way that is hard to undo.
	Destructive bool `json:"destructive,omitempty"`

	// Hidden tools are answered but not listed.
	Hidden bool `json:"-"`

	handle handler
}

type handler func(ctx context.Context, c *lever.Client, op string, args map[string]any) (*Envelope, error)

// Registry dispatches tool invocations to a lever.Client. It is safe for
// concurrent use.
type Registry struct {
	client *lever.Client
	tools  map[string]Tool
	logger zerolog.Logger
	newID  func() string
}

// NewRegistry creates a registry with every Lever tool.
func NewRegistry(c *lever.Client) *Registry {
	r := &Registry{
		client: c,
		tools:  make(map[string]Tool),
		logger: logging.NewLogger("tools"),
		newID:  uuid.NewString,
	}
	for _, t := range definitions() {
		r.tools[t.Name] = t
	}
	return r
}

// List returns the listed tools sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if !t.Hidden {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns a tool by name, including hidden ones.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Call invokes a tool. It never panics and never returns an error: any
// failure is described in the envelope.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (env Envelope) {
	id := r.newID()
	start := time.Now()
	logger := r.logger.With().Str("tool", name).Str("invocation_id", id).Logger()

	tool, known := r.tools[name]
	label := name
	if !known {
		label = "unknown"
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("Tool panicked")
			env = failure(name, id, fmt.Errorf("internal error: %v", rec))
		}

		outcome := "ok"
		if env.Error != nil {
			outcome = string(env.Error.Kind)
		}
		toolCallsTotal.WithLabelValues(label, outcome).Inc()
		toolCallDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

		event := logger.Info()
		if env.Error != nil {
			event = logger.Warn().Str("error_kind", outcome).Str("error", env.Error.Message)
		}
		event.
			Int("count", env.Count).
			Bool("truncated", env.Truncated).
			Dur("duration", time.Since(start)).
			Msg("Tool invocation complete")
	}()

	if !known {
		return failure(name, id, &lever.ValidationError{Operation: name, Field: "tool", Reason: "unknown tool"})
	}

	args, failFast, err := deadlinePolicy(name, args)
	if err != nil {
		return failure(name, id, err)
	}
	if failFast {
		ctx = lever.WithFailOnDeadline(ctx)
	}

	logger.Debug().Int("args", len(args)).Bool("fail_on_deadline", failFast).Msg("Tool invoked")

	out, err := tool.handle(logger.WithContext(ctx), r.client, name, args)
	if err != nil {
		return failure(name, id, err)
	}

	out.Tool = name
	out.InvocationID = id
	out.OK = true
	return *out
}

func failure(name, id string, err error) Envelope {
	return Envelope{
		Tool:         name,
		InvocationID: id,
		Error:        lever.Describe(err),
	}
}

// argFailOnDeadline is accepted by every tool. When true, a list walk that
// runs out of time fails instead of returning the pages fetched so far.
const argFailOnDeadline = "fail_on_deadline"

// deadlinePolicy removes argFailOnDeadline from args and reports its value.
func deadlinePolicy(op string, args map[string]any) (map[string]any, bool, error) {
	v, ok := args[argFailOnDeadline]
	if !ok {
		return args, false, nil
	}

	rest := make(map[string]any, len(args)-1)
	for k, a := range args {
		if k != argFailOnDeadline {
			rest[k] = a
		}
	}

	var fail bool
	if err := mapstructure.WeakDecode(v, &fail); err != nil {
		return nil, false, &lever.ValidationError{Operation: op, Field: argFailOnDeadline, Reason: "must be a boolean"}
	}
	return rest, fail, nil
}

// decodeArgs decodes tool arguments into an operation's parameter struct.
// Strings convert to numbers ("25" → 25); unknown arguments are rejected.
func decodeArgs[P any](op string, args map[string]any) (P, error) {
	var p P
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(args); err != nil {
		return p, &lever.ValidationError{Operation: op, Reason: err.Error()}
	}
	return p, nil
}

// listTool adapts a list or search operation.
func listTool[P, T, V any](call func(*lever.Client, context.Context, P) (*lever.Result[T], error), view func(T) V) handler {
	return func(ctx context.Context, c *lever.Client, op string, args map[string]any) (*Envelope, error) {
		p, err := decodeArgs[P](op, args)
		if err != nil {
			return nil, err
		}
		result, err := call(c, ctx, p)
		if err != nil {
			return nil, err
		}
		return fromResult(result, mapSlice(result.Items, view)), nil
	}
}

// recordTool adapts a single-record operation.
func recordTool[P, T, V any](call func(*lever.Client, context.Context, P) (*T, error), view func(T) V) handler {
	return func(ctx context.Context, c *lever.Client, op string, args map[string]any) (*Envelope, error) {
		p, err := decodeArgs[P](op, args)
		if err != nil {
			return nil, err
		}
		record, err := call(c, ctx, p)
		if err != nil {
			return nil, err
		}
		return &Envelope{Record: view(*record), Count: 1}, nil
	}
}

// unsupportedTool adapts an operation Lever does not allow. Arguments are
// decoded best effort: the answer is the same whatever they hold.
func unsupportedTool[P any](call func(*lever.Client, context.Context, P) error) handler {
	return func(ctx context.Context, c *lever.Client, op string, args map[string]any) (*Envelope, error) {
		var p P
		_ = mapstructure.WeakDecode(args, &p)
		if err := call(c, ctx, p); err != nil {
			return nil, err
		}
		return &Envelope{}, nil
	}
}

func fromResult[T, V any](r *lever.Result[T], items []V) *Envelope {
	return &Envelope{
		Items:            items,
		Count:            r.Count,
		Truncated:        r.Truncated,
		Scanned:          r.Scanned,
		ScanTruncated:    r.ScanTruncated,
		DeadlineExceeded: r.DeadlineExceeded,
		Warnings:         r.Warnings,
		Context:          r.Context,
	}
}
