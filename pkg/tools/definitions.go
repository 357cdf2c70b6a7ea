package tools

import (
	"context"

	"github.com/Sternrassler/lever-ats-client/pkg/lever"
)

var (
	paramOpportunityID = Param{Name: "opportunity_id", Type: "string", Required: true, Description: "Lever opportunity (candidate) ID"}
	paramPostingID     = Param{Name: "posting_id", Type: "string", Required: true, Description: "Lever posting ID"}
	paramStage         = Param{Name: "stage", Type: "string", Description: "Stage ID to filter by (see lever_get_stages)"}
	paramLimit         = Param{Name: "limit", Type: "integer", Description: "Maximum number of results (default 100, max 500)"}

	paramFailOnDeadline = Param{Name: argFailOnDeadline, Type: "boolean", Description: "Fail instead of returning partial results when the deadline passes"}
)

// paginated names the tools that walk Lever list endpoints.
var paginated = map[string]bool{
	lever.OpSearchCandidates:       true,
	lever.OpQuickFindCandidate:     true,
	lever.OpFindCandidateInPosting: true,
	lever.OpListOpenRoles:          true,
	lever.OpFindCandidatesForRole:  true,
	lever.OpGetStages:              true,
	lever.OpGetArchiveReasons:      true,
	lever.OpAdvancedSearch:         true,
	lever.OpFindByCompany:          true,
	lever.OpFindInternalReferrals:  true,
	lever.OpListFiles:              true,
	lever.OpListApplications:       true,
}

func optional(p Param) Param {
	p.Required = false
	return p
}

type noParams struct{}

func definitions() []Tool {
	tools := []Tool{
		{
			Name:        lever.OpSearchCandidates,
			Description: "Search candidates. A query containing @ is an exact email lookup; any other query matches names; without a query candidates are listed.",
			Params: []Param{
				{Name: "query", Type: "string", Description: "Email address or name fragment"},
				paramStage,
				paramLimit,
			},
			handle: listTool((*lever.Client).SearchCandidates, candidateSummary),
		},
		{
			Name:        lever.OpQuickFindCandidate,
			Description: "Quickly find one candidate by name or email. Returns at most a few matches from a bounded search.",
			Params: []Param{
				{Name: "name_or_email", Type: "string", Required: true, Description: "Candidate name or email address"},
			},
			handle: listTool((*lever.Client).QuickFindCandidate, candidateSummary),
		},
		{
			Name:        lever.OpFindCandidateInPosting,
			Description: "Find a candidate by name within one job posting. Matches the full name or any part of it.",
			Params: []Param{
				{Name: "name", Type: "string", Required: true, Description: "Candidate name"},
				paramPostingID,
				paramStage,
				paramLimit,
			},
			handle: listTool((*lever.Client).FindCandidateInPosting, candidateSummary),
		},
		{
			Name:        lever.OpGetCandidate,
			Description: "Get full details of one candidate, including stage, owner, contact data and companies.",
			Params:      []Param{paramOpportunityID},
			handle:      recordTool((*lever.Client).GetCandidate, candidateDetail),
		},
		{
			Name:        lever.OpAddNote,
			Description: "Add a note to a candidate's profile.",
			Params: []Param{
				paramOpportunityID,
				{Name: "note", Type: "string", Required: true, Description: "Note text"},
				{Name: "author_email", Type: "string", Description: "Email of the note author"},
			},
			handle: recordTool((*lever.Client).AddNote, noteView),
		},
		{
			Name:        lever.OpListOpenRoles,
			Description: "List job postings, published ones by default.",
			Params: []Param{
				{Name: "state", Type: "string", Description: "Posting state (default published)"},
				paramLimit,
			},
			handle: listTool((*lever.Client).ListOpenRoles, postingView),
		},
		{
			Name:        lever.OpFindCandidatesForRole,
			Description: "List the candidates who applied to a job posting, grouped by pipeline stage.",
			Params:      []Param{paramPostingID, paramLimit},
			handle:      candidatesForRole,
		},
		{
			Name:        lever.OpArchiveCandidate,
			Description: "Archive a candidate with an archive reason (see lever_get_archive_reasons).",
			Params: []Param{
				paramOpportunityID,
				{Name: "reason_id", Type: "string", Required: true, Description: "Archive reason ID"},
			},
			Destructive: true,
			handle:      recordTool((*lever.Client).ArchiveCandidate, archiveView),
		},
		{
			Name:        lever.OpGetStages,
			Description: "List all pipeline stages with their IDs.",
			Params:      []Param{},
			handle: listTool(func(c *lever.Client, ctx context.Context, _ noParams) (*lever.Result[lever.Stage], error) {
				return c.GetStages(ctx)
			}, identity[lever.Stage]),
		},
		{
			Name:        lever.OpGetArchiveReasons,
			Description: "List all archive reasons with their IDs.",
			Params:      []Param{},
			handle: listTool(func(c *lever.Client, ctx context.Context, _ noParams) (*lever.Result[lever.ArchiveReason], error) {
				return c.GetArchiveReasons(ctx)
			}, identity[lever.ArchiveReason]),
		},
		{
			Name: lever.OpAdvancedSearch,
			Description: "Search candidates by several criteria. Values within a criterion are alternatives; all given criteria must match. " +
				"An optional expression filters further, e.g. `\"python\" in tags && days_since(created_at) < 90`.",
			Params: []Param{
				{Name: "companies", Type: "string", Description: "Comma-separated company names (any)"},
				{Name: "skills", Type: "string", Description: "Comma-separated skills (any)"},
				{Name: "locations", Type: "string", Description: "Comma-separated locations (any)"},
				{Name: "tags", Type: "string", Description: "Comma-separated tags (any)"},
				paramStage,
				optional(paramPostingID),
				{Name: "expression", Type: "string", Description: "Boolean filter over candidate fields: name, headline, emails, tags, sources, organizations, location, stage, origin, owner, archived, applications, created_at, last_interaction_at; helpers days_since, has_tag, works_at"},
				paramLimit,
			},
			handle: listTool((*lever.Client).AdvancedSearch, candidateSummary),
		},
		{
			Name:        lever.OpFindByCompany,
			Description: "Find candidates whose background lists one of the given companies.",
			Params: []Param{
				{Name: "companies", Type: "string", Required: true, Description: "Comma-separated company names, e.g. \"Google, Meta\""},
				paramLimit,
			},
			handle: listTool((*lever.Client).FindByCompany, companyMatchView),
		},
		{
			Name:        lever.OpFindInternalReferrals,
			Description: "Find employees and contacts who could refer candidates for a job posting.",
			Params:      []Param{paramPostingID, paramLimit},
			handle:      listTool((*lever.Client).FindInternalReferrals, referralView),
		},
		{
			Name:        lever.OpListFiles,
			Description: "List the files and resumes attached to a candidate.",
			Params:      []Param{paramOpportunityID},
			handle:      listTool((*lever.Client).ListFiles, fileView),
		},
		{
			Name:        lever.OpListApplications,
			Description: "List a candidate's applications.",
			Params:      []Param{paramOpportunityID},
			handle:      listTool((*lever.Client).ListApplications, applicationView),
		},
		{
			Name:        lever.OpGetApplication,
			Description: "Get one of a candidate's applications.",
			Params: []Param{
				paramOpportunityID,
				{Name: "application_id", Type: "string", Required: true, Description: "Application ID"},
			},
			handle: recordTool((*lever.Client).GetApplication, applicationView),
		},
		{
			Name:   lever.OpChangeStage,
			Hidden: true,
			Params: []Param{
				paramOpportunityID,
				{Name: "stage_id", Type: "string", Required: true},
			},
			handle: unsupportedTool((*lever.Client).ChangeStage),
		},
		{
			Name:   lever.OpCreateApplication,
			Hidden: true,
			Params: []Param{
				paramOpportunityID,
				paramPostingID,
				{Name: "user_id", Type: "string"},
			},
			handle: unsupportedTool((*lever.Client).CreateApplication),
		},
	}

	for i, t := range tools {
		if paginated[t.Name] {
			tools[i].Params = append(t.Params, paramFailOnDeadline)
		}
	}
	return tools
}

func candidatesForRole(ctx context.Context, c *lever.Client, op string, args map[string]any) (*Envelope, error) {
	p, err := decodeArgs[lever.FindCandidatesForRoleParams](op, args)
	if err != nil {
		return nil, err
	}
	result, err := c.FindCandidatesForRole(ctx, p)
	if err != nil {
		return nil, err
	}
	return fromResult(result, stageGroups(lever.GroupByStage(result.Items))), nil
}
