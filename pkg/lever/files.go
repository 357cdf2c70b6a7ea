package lever

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/lever-ats-client/pkg/pagination"
)

// ListFiles lists an opportunity's documents from both the files and the
// resumes endpoints, fetched concurrently. A source that fails becomes a
// warning; the call fails only when the opportunity itself cannot be read
// or neither source answers.
func (c *Client) ListFiles(ctx context.Context, p ListFilesParams) (*Result[File], error) {
	if err := requireField(OpListFiles, "opportunity_id", p.OpportunityID); err != nil {
		return nil, err
	}

	var (
		opportunity *Opportunity
		sources     = []string{"files", "resumes"}
		lists       = make([]*Result[File], len(sources))
		failures    = make([]error, len(sources))
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o, err := c.getOpportunity(gctx, OpListFiles, p.OpportunityID)
		if err != nil {
			return err
		}
		opportunity = o
		return nil
	})

	for i, source := range sources {
		g.Go(func() error {
			listed, err := c.listFileSource(gctx, p.OpportunityID, source)
			if err != nil {
				if failOnDeadline(ctx) && errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// One missing source is not fatal; see below.
				failures[i] = err
				return nil
			}
			lists[i] = listed
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failures[0] != nil && failures[1] != nil {
		return nil, failures[0]
	}

	var files []File
	for _, l := range lists {
		if l != nil {
			files = append(files, l.Items...)
		}
	}

	result := newResult(files)
	result.Context["candidate"] = opportunity.Name
	for i, l := range lists {
		if l == nil {
			continue
		}
		switch {
		case l.DeadlineExceeded:
			result.DeadlineExceeded = true
			result.Truncated = true
			result.warn(fmt.Sprintf("deadline reached while listing %s; %d listed, more may exist", sources[i], l.Count))
		case l.Truncated:
			result.Truncated = true
			result.warn(fmt.Sprintf("only the first %d %s were listed; more exist", l.Count, sources[i]))
		}
	}
	for i, err := range failures {
		if err == nil {
			continue
		}
		c.logger.Warn().Err(err).
			Str("opportunity_id", p.OpportunityID).
			Str("source", sources[i]).
			Msg("File source unavailable")
		result.warn("could not list " + sources[i] + ": " + err.Error())
	}
	return result, nil
}

// listFileSource lists one source, keeping the walk's truncation flags.
func (c *Client) listFileSource(ctx context.Context, opportunityID, source string) (*Result[File], error) {
	records, err := list[json.RawMessage](ctx, c, pagination.Query{
		Operation: OpListFiles,
		Route:     "/opportunities/{id}/" + source,
		Path:      opportunityPath(opportunityID, source),
	}, c.config.MaxLimit)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(records.Items))
	for _, raw := range records.Items {
		var rec fileRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		files = append(files, rec.normalize(source))
	}
	return rewrap(records, files), nil
}

// ListApplications lists an opportunity's applications.
func (c *Client) ListApplications(ctx context.Context, p ListApplicationsParams) (*Result[Application], error) {
	if err := requireField(OpListApplications, "opportunity_id", p.OpportunityID); err != nil {
		return nil, err
	}

	result, err := list[Application](ctx, c, pagination.Query{
		Operation: OpListApplications,
		Route:     "/opportunities/{id}/applications",
		Path:      opportunityPath(p.OpportunityID, "applications"),
		Params:    url.Values{"expand": {"posting"}},
	}, c.config.MaxLimit)
	if err != nil {
		return nil, err
	}

	result.Context["opportunity_id"] = p.OpportunityID
	return result, nil
}

// GetApplication fetches one application of an opportunity.
func (c *Client) GetApplication(ctx context.Context, p GetApplicationParams) (*Application, error) {
	if err := requireField(OpGetApplication, "opportunity_id", p.OpportunityID); err != nil {
		return nil, err
	}
	if err := requireField(OpGetApplication, "application_id", p.ApplicationID); err != nil {
		return nil, err
	}

	var app Application
	path := opportunityPath(p.OpportunityID, "applications", url.PathEscape(p.ApplicationID))
	query := url.Values{"expand": {"posting"}}
	if err := c.getData(ctx, OpGetApplication, "/opportunities/{id}/applications/{aid}", path, query, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// CreateApplication is not available: Lever only accepts applications
// through its postings API. It never sends a request.
func (c *Client) CreateApplication(ctx context.Context, p CreateApplicationParams) error {
	return &CapabilityError{
		Operation: OpCreateApplication,
		Guidance:  "apply the candidate to the posting in the Lever web interface",
	}
}
