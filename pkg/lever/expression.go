package lever

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expression is a compiled boolean filter over candidate fields, such as
//
//	"python" in tags && days_since(created_at) < 90
type Expression struct {
	source  string
	program *vm.Program
}

// CompileExpression compiles a filter. Unknown fields are compile errors.
func CompileExpression(source string) (*Expression, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("empty expression")
	}

	program, err := expr.Compile(source,
		expr.Env(expressionEnv(Opportunity{}, time.Time{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	return &Expression{source: source, program: program}, nil
}

// String returns the expression source.
func (e *Expression) String() string { return e.source }

// Matcher returns the expression as a Matcher. Evaluation errors reject the
// candidate.
func (e *Expression) Matcher(now time.Time) Matcher {
	return func(o Opportunity) bool {
		out, err := expr.Run(e.program, expressionEnv(o, now))
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}
}

// expressionEnv exposes lower-cased candidate fields and helpers.
func expressionEnv(o Opportunity, now time.Time) map[string]any {
	var archived bool
	if o.Archived != nil {
		archived = true
	}

	return map[string]any{
		"id":                  o.ID,
		"name":                normalize(o.Name),
		"headline":            normalize(o.Headline),
		"emails":              lowerAll(o.Emails),
		"tags":                lowerAll(o.Tags),
		"sources":             lowerAll(o.Sources),
		"organizations":       lowerAll(o.Organizations()),
		"location":            normalize(o.Location.String()),
		"stage":               normalize(o.Stage.String()),
		"origin":              normalize(o.Origin),
		"owner":               normalize(o.Owner.String()),
		"archived":            archived,
		"applications":        len(o.Applications),
		"created_at":          o.CreatedAt.Time(),
		"last_interaction_at": o.LastInteractionAt.Time(),

		"days_since": func(t time.Time) int {
			if t.IsZero() {
				return -1
			}
			return int(now.Sub(t).Hours() / 24)
		},
		"has_tag": func(tag string) bool {
			return slices.Contains(lowerAll(o.Tags), normalize(tag))
		},
		"works_at": func(company string) bool {
			_, ok := MatchCompany(o, []string{company})
			return ok
		},
	}
}
