package lever

import (
	"context"
	"net/url"
	"strings"

	"github.com/Sternrassler/lever-ats-client/pkg/pagination"
)

// AdvancedSearch combines criteria: every given criterion must match, and
// any of its comma-separated values satisfies it. Stage, posting and the
// first tag are filtered by Lever; everything else is matched client-side.
// An optional expression adds an arbitrary boolean filter.
func (c *Client) AdvancedSearch(ctx context.Context, p AdvancedSearchParams) (*Result[Opportunity], error) {
	criteria := Criteria{
		Companies: splitList(p.Companies),
		Skills:    splitList(p.Skills),
		Locations: splitList(p.Locations),
		Tags:      splitList(p.Tags),
	}

	var filter *Expression
	if strings.TrimSpace(p.Expression) != "" {
		compiled, err := CompileExpression(p.Expression)
		if err != nil {
			return nil, &ValidationError{Operation: OpAdvancedSearch, Field: "expression", Reason: err.Error()}
		}
		filter = compiled
	}

	limit, capped := c.limit(p.Limit)

	params := url.Values{}
	if p.Stage != "" {
		params.Set("stage_id", p.Stage)
	}
	if p.PostingID != "" {
		params.Set("posting_id", p.PostingID)
	}
	if len(criteria.Tags) > 0 {
		// Lever filters on one tag per request.
		params.Set("tag", criteria.Tags[0])
	}

	q := pagination.Query{
		Operation: OpAdvancedSearch,
		Route:     routeOpportunities,
		Path:      routeOpportunities,
		Params:    params,
	}

	var (
		result *Result[Opportunity]
		err    error
	)
	if criteria.Empty() && filter == nil {
		result, err = list[Opportunity](ctx, c, q, limit)
	} else {
		matchers := []Matcher{criteria.Matcher()}
		if filter != nil {
			matchers = append(matchers, filter.Matcher(c.now()))
		}
		result, err = scan(ctx, c, q, All(matchers...), limit)
	}
	if err != nil {
		return nil, err
	}

	if len(criteria.Tags) > 1 {
		result.warn("Lever filters by one tag; the remaining tags were matched against the first tag's candidates")
	}
	if filter != nil {
		result.Context["expression"] = filter.String()
	}
	if capped != "" {
		result.warn(capped)
	}
	return result, nil
}

// FindByCompany finds candidates whose headline lists one of the companies,
// annotated with the company that matched.
func (c *Client) FindByCompany(ctx context.Context, p FindByCompanyParams) (*Result[CompanyMatch], error) {
	companies := splitList(p.Companies)
	if len(companies) == 0 {
		return nil, &ValidationError{Operation: OpFindByCompany, Field: "companies", Reason: "is required"}
	}
	limit, capped := c.limit(p.Limit)

	found, err := scan(ctx, c, pagination.Query{
		Operation: OpFindByCompany,
		Route:     routeOpportunities,
		Path:      routeOpportunities,
	}, func(o Opportunity) bool {
		_, ok := MatchCompany(o, companies)
		return ok
	}, limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(found.Items))
	matches := make([]CompanyMatch, 0, len(found.Items))
	for _, o := range found.Items {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		company, _ := MatchCompany(o, companies)
		matches = append(matches, CompanyMatch{Opportunity: o, MatchedCompany: company})
	}

	result := rewrap(found, matches)
	result.Context["companies"] = strings.Join(companies, ", ")
	if capped != "" {
		result.warn(capped)
	}
	return result, nil
}
