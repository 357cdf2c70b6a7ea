package lever

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/lever-ats-client/pkg/pagination"
)

const (
	routeOpportunities = "/opportunities"
	routeOpportunity   = "/opportunities/{id}"

	// quickFindEmailLimit and quickFindLimit bound QuickFindCandidate.
	quickFindEmailLimit = 10
	quickFindLimit      = 5
)

// Search modes reported in Result.Context["search_type"].
const (
	SearchByEmail = "email"
	SearchByName  = "name"
	SearchList    = "list"
)

// SearchCandidates finds candidates. A query containing "@" is an exact
// email lookup done by Lever; any other query is matched against names over
// a bounded scan; without a query the candidates are listed.
func (c *Client) SearchCandidates(ctx context.Context, p SearchCandidatesParams) (*Result[Opportunity], error) {
	limit, capped := c.limit(p.Limit)
	query := strings.TrimSpace(p.Query)

	params := url.Values{}
	if p.Stage != "" {
		params.Set("stage_id", p.Stage)
	}

	q := pagination.Query{
		Operation: OpSearchCandidates,
		Route:     routeOpportunities,
		Path:      routeOpportunities,
		Params:    params,
	}

	var (
		result *Result[Opportunity]
		err    error
		mode   string
	)
	switch {
	case strings.Contains(query, "@"):
		mode = SearchByEmail
		params.Set("email", query)
		result, err = list[Opportunity](ctx, c, q, limit)
	case query != "":
		mode = SearchByName
		result, err = scan(ctx, c, q, NameContains(query), limit)
	default:
		mode = SearchList
		result, err = list[Opportunity](ctx, c, q, limit)
	}
	if err != nil {
		return nil, err
	}

	result.Context["search_type"] = mode
	if query != "" {
		result.Context["query"] = query
	}
	if capped != "" {
		result.warn(capped)
	}
	return result, nil
}

// QuickFindCandidate is a fast lookup for one person: an email goes straight
// to Lever; a name matches in both directions and returns at most five
// candidates.
func (c *Client) QuickFindCandidate(ctx context.Context, p QuickFindCandidateParams) (*Result[Opportunity], error) {
	if err := requireField(OpQuickFindCandidate, "name_or_email", p.NameOrEmail); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(p.NameOrEmail)

	q := pagination.Query{
		Operation: OpQuickFindCandidate,
		Route:     routeOpportunities,
		Path:      routeOpportunities,
		Params:    url.Values{},
	}

	if strings.Contains(query, "@") {
		q.Params.Set("email", query)
		result, err := list[Opportunity](ctx, c, q, quickFindEmailLimit)
		if err != nil {
			return nil, err
		}
		result.Context["search_type"] = SearchByEmail
		return result, nil
	}

	result, err := scan(ctx, c, q, NameResembles(query), quickFindLimit)
	if err != nil {
		return nil, err
	}
	result.Context["search_type"] = SearchByName
	return result, nil
}

// FindCandidateInPosting looks for a name among one posting's candidates,
// matching the full name or any part of it.
func (c *Client) FindCandidateInPosting(ctx context.Context, p FindCandidateInPostingParams) (*Result[Opportunity], error) {
	if err := requireField(OpFindCandidateInPosting, "name", p.Name); err != nil {
		return nil, err
	}
	if err := requireField(OpFindCandidateInPosting, "posting_id", p.PostingID); err != nil {
		return nil, err
	}
	limit, capped := c.limit(p.Limit)

	params := url.Values{"posting_id": {p.PostingID}}
	if p.Stage != "" {
		params.Set("stage_id", p.Stage)
	}

	result, err := scan(ctx, c, pagination.Query{
		Operation: OpFindCandidateInPosting,
		Route:     routeOpportunities,
		Path:      routeOpportunities,
		Params:    params,
	}, NameHasAnyPart(p.Name), limit)
	if err != nil {
		return nil, err
	}

	result.Context["posting_id"] = p.PostingID
	if capped != "" {
		result.warn(capped)
	}
	return result, nil
}

// GetCandidate fetches one opportunity with its stage and owner expanded.
func (c *Client) GetCandidate(ctx context.Context, p GetCandidateParams) (*Opportunity, error) {
	if err := requireField(OpGetCandidate, "opportunity_id", p.OpportunityID); err != nil {
		return nil, err
	}
	return c.getOpportunity(ctx, OpGetCandidate, p.OpportunityID)
}

func (c *Client) getOpportunity(ctx context.Context, op, id string) (*Opportunity, error) {
	var o Opportunity
	query := url.Values{"expand": {"stage", "owner"}}
	if err := c.getData(ctx, op, routeOpportunity, opportunityPath(id), query, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// AddNote adds a note to an opportunity and confirms whose profile it landed on.
func (c *Client) AddNote(ctx context.Context, p AddNoteParams) (*NoteReceipt, error) {
	if err := requireField(OpAddNote, "opportunity_id", p.OpportunityID); err != nil {
		return nil, err
	}
	if err := requireField(OpAddNote, "note", p.Note); err != nil {
		return nil, err
	}

	body := map[string]string{"value": p.Note}
	if p.AuthorEmail != "" {
		body["author"] = p.AuthorEmail
	}

	var created struct {
		NoteID string `json:"noteId"`
		ID     string `json:"id"`
	}
	if err := c.send(ctx, OpAddNote, http.MethodPost, "/opportunities/{id}/notes",
		opportunityPath(p.OpportunityID, "notes"), body, &created); err != nil {
		return nil, err
	}

	receipt := &NoteReceipt{
		OpportunityID: p.OpportunityID,
		NoteID:        firstNonEmpty(created.NoteID, created.ID),
		Note:          p.Note,
		AddedAt:       c.now().UTC(),
	}

	// The note is already saved; a failed name lookup only costs the label.
	if o, err := c.getOpportunity(ctx, OpAddNote, p.OpportunityID); err == nil {
		receipt.Candidate = o.Name
	} else {
		c.logger.Warn().Err(err).Str("opportunity_id", p.OpportunityID).Msg("Note added but candidate lookup failed")
	}

	return receipt, nil
}

// ArchiveCandidate archives an opportunity with a reason. The candidate is
// fetched first so a wrong id fails before anything changes.
func (c *Client) ArchiveCandidate(ctx context.Context, p ArchiveCandidateParams) (*ArchiveReceipt, error) {
	if err := requireField(OpArchiveCandidate, "opportunity_id", p.OpportunityID); err != nil {
		return nil, err
	}
	if err := requireField(OpArchiveCandidate, "reason_id", p.ReasonID); err != nil {
		return nil, err
	}

	o, err := c.getOpportunity(ctx, OpArchiveCandidate, p.OpportunityID)
	if err != nil {
		return nil, err
	}

	if err := c.send(ctx, OpArchiveCandidate, http.MethodPut, "/opportunities/{id}/archived",
		opportunityPath(p.OpportunityID, "archived"), map[string]string{"reason": p.ReasonID}, nil); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("opportunity_id", p.OpportunityID).
		Str("reason_id", p.ReasonID).
		Msg("Candidate archived")

	return &ArchiveReceipt{
		OpportunityID: p.OpportunityID,
		Candidate:     o.Name,
		ReasonID:      p.ReasonID,
		ArchivedAt:    c.now().UTC(),
	}, nil
}

// ChangeStage is not available: Lever rejects stage changes from this
// integration. It never sends a request.
func (c *Client) ChangeStage(ctx context.Context, p ChangeStageParams) error {
	return &CapabilityError{
		Operation: OpChangeStage,
		Guidance:  "move the candidate to the new stage in the Lever web interface",
	}
}
