package lever

import (
	"context"
	"maps"
	"net/url"

	"github.com/Sternrassler/lever-ats-client/pkg/pagination"
)

// DefaultPostingState is the posting state listed when none is given.
const DefaultPostingState = "published"

// ListOpenRoles lists postings in a state, published by default.
func (c *Client) ListOpenRoles(ctx context.Context, p ListOpenRolesParams) (*Result[Posting], error) {
	limit, capped := c.limit(p.Limit)
	state := p.State
	if state == "" {
		state = DefaultPostingState
	}

	result, err := list[Posting](ctx, c, pagination.Query{
		Operation: OpListOpenRoles,
		Route:     "/postings",
		Path:      "/postings",
		Params:    url.Values{"state": {state}},
	}, limit)
	if err != nil {
		return nil, err
	}

	result.Context["state"] = state
	if capped != "" {
		result.warn(capped)
	}
	return result, nil
}

// GetPosting fetches one posting.
func (c *Client) GetPosting(ctx context.Context, op, postingID string) (*Posting, error) {
	if err := requireField(op, "posting_id", postingID); err != nil {
		return nil, err
	}

	var posting Posting
	if err := c.getData(ctx, op, "/postings/{id}", "/postings/"+url.PathEscape(postingID), nil, &posting); err != nil {
		return nil, err
	}
	return &posting, nil
}

// FindCandidatesForRole lists the candidates who applied to a posting.
// GroupByStage turns the result into a pipeline view.
func (c *Client) FindCandidatesForRole(ctx context.Context, p FindCandidatesForRoleParams) (*Result[Opportunity], error) {
	if err := requireField(OpFindCandidatesForRole, "posting_id", p.PostingID); err != nil {
		return nil, err
	}
	limit, capped := c.limit(p.Limit)

	result, err := list[Opportunity](ctx, c, pagination.Query{
		Operation: OpFindCandidatesForRole,
		Route:     routeOpportunities,
		Path:      routeOpportunities,
		Params:    url.Values{"posting_id": {p.PostingID}, "expand": {"stage"}},
	}, limit)
	if err != nil {
		return nil, err
	}

	result.Context["posting_id"] = p.PostingID
	if capped != "" {
		result.warn(capped)
	}
	return result, nil
}

// GetStages lists the account's pipeline stages.
func (c *Client) GetStages(ctx context.Context) (*Result[Stage], error) {
	return list[Stage](ctx, c, pagination.Query{
		Operation: OpGetStages,
		Route:     "/stages",
		Path:      "/stages",
	}, c.config.MaxLimit)
}

// GetArchiveReasons lists the reasons opportunities can be archived with.
func (c *Client) GetArchiveReasons(ctx context.Context) (*Result[ArchiveReason], error) {
	return list[ArchiveReason](ctx, c, pagination.Query{
		Operation: OpGetArchiveReasons,
		Route:     "/archive_reasons",
		Path:      "/archive_reasons",
	}, c.config.MaxLimit)
}

// FindInternalReferrals finds people who could refer candidates for a
// posting: employees and internal contacts first, then candidates whose
// background relates to the posting's team or title.
func (c *Client) FindInternalReferrals(ctx context.Context, p FindInternalReferralsParams) (*Result[Referral], error) {
	posting, err := c.GetPosting(ctx, OpFindInternalReferrals, p.PostingID)
	if err != nil {
		return nil, err
	}
	limit, capped := c.limit(p.Limit)

	relevant := func(o Opportunity) bool {
		_, ok := ReferralRelevance(o, *posting)
		return ok
	}

	found, err := scan(ctx, c, pagination.Query{
		Operation: OpFindInternalReferrals,
		Route:     routeOpportunities,
		Path:      routeOpportunities,
	}, relevant, limit)
	if err != nil {
		return nil, err
	}

	referrals := make([]Referral, 0, len(found.Items))
	for _, o := range found.Items {
		relevance, _ := ReferralRelevance(o, *posting)
		referrals = append(referrals, Referral{Opportunity: o, Relevance: relevance})
	}

	result := rewrap(found, referrals)
	result.Context["posting_id"] = posting.ID
	result.Context["role"] = posting.Text
	result.Context["team"] = posting.TeamName()
	if capped != "" {
		result.warn(capped)
	}
	return result, nil
}

// rewrap carries a result's bookkeeping over to a new item type.
func rewrap[T, U any](from *Result[T], items []U) *Result[U] {
	to := newResult(items)
	to.Truncated = from.Truncated
	to.Scanned = from.Scanned
	to.ScanTruncated = from.ScanTruncated
	to.DeadlineExceeded = from.DeadlineExceeded
	to.Warnings = from.Warnings
	maps.Copy(to.Context, from.Context)
	return to
}
