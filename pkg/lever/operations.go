package lever

// Operation names. They double as the tool names callers invoke.
const (
	OpSearchCandidates       = "lever_search_candidates"
	OpQuickFindCandidate     = "lever_quick_find_candidate"
	OpFindCandidateInPosting = "lever_find_candidate_in_posting"
	OpGetCandidate           = "lever_get_candidate"
	OpAddNote                = "lever_add_note"
	OpListOpenRoles          = "lever_list_open_roles"
	OpFindCandidatesForRole  = "lever_find_candidates_for_role"
	OpArchiveCandidate       = "lever_archive_candidate"
	OpGetStages              = "lever_get_stages"
	OpGetArchiveReasons      = "lever_get_archive_reasons"
	OpAdvancedSearch         = "lever_advanced_search"
	OpFindByCompany          = "lever_find_by_company"
	OpFindInternalReferrals  = "lever_find_internal_referrals_for_role"
	OpListFiles              = "lever_list_files"
	OpListApplications       = "lever_list_applications"
	OpGetApplication         = "lever_get_application"
	OpChangeStage            = "lever_change_stage"
	OpCreateApplication      = "lever_create_application"
)

// Parameter structs. The mapstructure tags are the argument names callers
// use when invoking an operation as a tool.

// SearchCandidatesParams selects candidates by email, name fragment or stage.
type SearchCandidatesParams struct {
	Query string `mapstructure:"query"`
	Stage string `mapstructure:"stage"`
	Limit int    `mapstructure:"limit"`
}

// QuickFindCandidateParams finds a candidate by name or email.
type QuickFindCandidateParams struct {
	NameOrEmail string `mapstructure:"name_or_email"`
}

// FindCandidateInPostingParams finds a candidate by name within one posting.
type FindCandidateInPostingParams struct {
	Name      string `mapstructure:"name"`
	PostingID string `mapstructure:"posting_id"`
	Stage     string `mapstructure:"stage"`
	Limit     int    `mapstructure:"limit"`
}

// GetCandidateParams identifies one opportunity.
type GetCandidateParams struct {
	OpportunityID string `mapstructure:"opportunity_id"`
}

// AddNoteParams adds a note to an opportunity.
type AddNoteParams struct {
	OpportunityID string `mapstructure:"opportunity_id"`
	Note          string `mapstructure:"note"`
	AuthorEmail   string `mapstructure:"author_email"`
}

// ListOpenRolesParams lists postings.
type ListOpenRolesParams struct {
	State string `mapstructure:"state"`
	Limit int    `mapstructure:"limit"`
}

// FindCandidatesForRoleParams lists a posting's candidates.
type FindCandidatesForRoleParams struct {
	PostingID string `mapstructure:"posting_id"`
	Limit     int    `mapstructure:"limit"`
}

// ArchiveCandidateParams archives an opportunity.
type ArchiveCandidateParams struct {
	OpportunityID string `mapstructure:"opportunity_id"`
	ReasonID      string `mapstructure:"reason_id"`
}

// AdvancedSearchParams combines several client-side criteria. List
// criteria are comma-separated.
type AdvancedSearchParams struct {
	Companies  string `mapstructure:"companies"`
	Skills     string `mapstructure:"skills"`
	Locations  string `mapstructure:"locations"`
	Tags       string `mapstructure:"tags"`
	Stage      string `mapstructure:"stage"`
	PostingID  string `mapstructure:"posting_id"`
	Expression string `mapstructure:"expression"`
	Limit      int    `mapstructure:"limit"`
}

// FindByCompanyParams finds candidates by current or past company.
type FindByCompanyParams struct {
	Companies string `mapstructure:"companies"`
	Limit     int    `mapstructure:"limit"`
}

// FindInternalReferralsParams finds potential referrers for a posting.
type FindInternalReferralsParams struct {
	PostingID string `mapstructure:"posting_id"`
	Limit     int    `mapstructure:"limit"`
}

// ListFilesParams lists an opportunity's documents.
type ListFilesParams struct {
	OpportunityID string `mapstructure:"opportunity_id"`
}

// ListApplicationsParams lists an opportunity's applications.
type ListApplicationsParams struct {
	OpportunityID string `mapstructure:"opportunity_id"`
}

// GetApplicationParams identifies one application.
type GetApplicationParams struct {
	OpportunityID string `mapstructure:"opportunity_id"`
	ApplicationID string `mapstructure:"application_id"`
}

// ChangeStageParams would move an opportunity to another stage.
type ChangeStageParams struct {
	OpportunityID string `mapstructure:"opportunity_id"`
	StageID       string `mapstructure:"stage_id"`
}

// CreateApplicationParams would apply an opportunity to a posting.
type CreateApplicationParams struct {
	OpportunityID string `mapstructure:"opportunity_id"`
	PostingID     string `mapstructure:"posting_id"`
	UserID        string `mapstructure:"user_id"`
}
