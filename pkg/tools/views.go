package tools

import (
	"time"

	"github.com/Sternrassler/lever-ats-client/pkg/lever"
)

// Timestamp layouts used in views. Times are rendered in UTC.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// CandidateSummary is the compact form of an opportunity used in lists.
type CandidateSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Stage         string `json:"stage,omitempty"`
	Location      string `json:"location,omitempty"`
	Organizations string `json:"organizations,omitempty"`
	Created       string `json:"created,omitempty"`
}

// CandidateDetail is the full view of one opportunity.
type CandidateDetail struct {
	CandidateSummary
	Emails       []string      `json:"emails"`
	Phones       []string      `json:"phones"`
	StageID      string        `json:"stageId,omitempty"`
	Owner        string        `json:"owner,omitempty"`
	Tags         []string      `json:"tags"`
	Sources      []string      `json:"sources"`
	Origin       string        `json:"origin,omitempty"`
	Headline     string        `json:"headline,omitempty"`
	Companies    []string      `json:"companies"`
	Links        []string      `json:"links"`
	Applications int           `json:"applications"`
	CreatedAt    string        `json:"createdAt,omitempty"`
	LastActivity string        `json:"lastInteractionAt,omitempty"`
	Archived     *ArchivedView `json:"archived,omitempty"`
}

// ArchivedView describes an archived opportunity.
type ArchivedView struct {
	ArchivedAt string `json:"archivedAt,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// PostingView is a job posting.
type PostingView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	State    string `json:"state,omitempty"`
	Team     string `json:"team,omitempty"`
	Location string `json:"location,omitempty"`
	URL      string `json:"url,omitempty"`
}

// StageGroupView is one pipeline stage with its candidates.
type StageGroupView struct {
	Stage      string             `json:"stage"`
	Count      int                `json:"count"`
	Candidates []CandidateSummary `json:"candidates"`
}

// CompanyMatchView is a candidate found by company.
type CompanyMatchView struct {
	CandidateSummary
	MatchedCompany string `json:"matchedCompany"`
}

// ReferralView is a potential referrer.
type ReferralView struct {
	CandidateSummary
	Relevance string `json:"relevance"`
}

// FileView is a document attached to an opportunity.
type FileView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Ext         string `json:"ext,omitempty"`
	Size        int64  `json:"size,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	UploadedAt  string `json:"uploadedAt,omitempty"`
	Source      string `json:"source"`
}

// ApplicationView is an application of an opportunity to a posting.
type ApplicationView struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
	Posting   string `json:"posting,omitempty"`
	PostingID string `json:"postingId,omitempty"`
	CreatedBy string `json:"createdBy,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Archived  bool   `json:"archived"`
}

func formatMillis(m lever.Millis, layout string) string {
	if m.IsZero() {
		return ""
	}
	return m.Time().UTC().Format(layout)
}

func candidateSummary(o lever.Opportunity) CandidateSummary {
	s := CandidateSummary{
		ID:            o.ID,
		Name:          o.Name,
		Stage:         o.Stage.String(),
		Location:      o.Location.String(),
		Organizations: o.Headline,
		Created:       formatMillis(o.CreatedAt, dateLayout),
	}
	if len(o.Emails) > 0 {
		s.Email = o.Emails[0]
	}
	return s
}

func candidateDetail(o lever.Opportunity) CandidateDetail {
	d := CandidateDetail{
		CandidateSummary: candidateSummary(o),
		Emails:           nonNil(o.Emails),
		Phones:           []string{},
		StageID:          o.Stage.ID,
		Owner:            o.Owner.String(),
		Tags:             nonNil(o.Tags),
		Sources:          nonNil(o.Sources),
		Origin:           o.Origin,
		Headline:         o.Headline,
		Companies:        nonNil(o.Organizations()),
		Links:            nonNil(o.Links),
		Applications:     len(o.Applications),
		CreatedAt:        formatMillis(o.CreatedAt, dateTimeLayout),
		LastActivity:     formatMillis(o.LastInteractionAt, dateTimeLayout),
	}
	for _, p := range o.Phones {
		d.Phones = append(d.Phones, p.Value)
	}
	if o.Archived != nil {
		d.Archived = &ArchivedView{
			ArchivedAt: formatMillis(o.Archived.ArchivedAt, dateTimeLayout),
			Reason:     o.Archived.Reason,
		}
	}
	return d
}

func postingView(p lever.Posting) PostingView {
	return PostingView{
		ID:       p.ID,
		Title:    p.Text,
		State:    p.State,
		Team:     p.TeamName(),
		Location: p.LocationName(),
		URL:      p.URLs.Show,
	}
}

func stageGroups(groups []lever.StageGroup) []StageGroupView {
	out := make([]StageGroupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, StageGroupView{
			Stage:      g.Stage,
			Count:      len(g.Candidates),
			Candidates: mapSlice(g.Candidates, candidateSummary),
		})
	}
	return out
}

func companyMatchView(m lever.CompanyMatch) CompanyMatchView {
	return CompanyMatchView{CandidateSummary: candidateSummary(m.Opportunity), MatchedCompany: m.MatchedCompany}
}

func referralView(r lever.Referral) ReferralView {
	return ReferralView{CandidateSummary: candidateSummary(r.Opportunity), Relevance: r.Relevance}
}

func fileView(f lever.File) FileView {
	return FileView{
		ID:          f.ID,
		Name:        f.Name,
		Ext:         f.Ext,
		Size:        f.Size,
		DownloadURL: f.DownloadURL,
		UploadedAt:  formatMillis(f.UploadedAt, dateTimeLayout),
		Source:      f.Source,
	}
}

func applicationView(a lever.Application) ApplicationView {
	return ApplicationView{
		ID:        a.ID,
		Type:      a.Type,
		Status:    a.Status,
		Posting:   a.Posting.Text,
		PostingID: a.Posting.ID,
		CreatedBy: a.User.String(),
		CreatedAt: formatMillis(a.CreatedAt, dateTimeLayout),
		Archived:  a.Archived != nil,
	}
}

// NoteView confirms a note was added.
type NoteView struct {
	OpportunityID string `json:"opportunityId"`
	Candidate     string `json:"candidate,omitempty"`
	NoteID        string `json:"noteId,omitempty"`
	Note          string `json:"note"`
	AddedAt       string `json:"addedAt"`
}

// ArchiveView confirms an opportunity was archived.
type ArchiveView struct {
	OpportunityID string `json:"opportunityId"`
	Candidate     string `json:"candidate"`
	ReasonID      string `json:"reasonId"`
	ArchivedAt    string `json:"archivedAt"`
}

func noteView(r lever.NoteReceipt) NoteView {
	return NoteView{
		OpportunityID: r.OpportunityID,
		Candidate:     r.Candidate,
		NoteID:        r.NoteID,
		Note:          r.Note,
		AddedAt:       receiptTime(r.AddedAt),
	}
}

func archiveView(r lever.ArchiveReceipt) ArchiveView {
	return ArchiveView{
		OpportunityID: r.OpportunityID,
		Candidate:     r.Candidate,
		ReasonID:      r.ReasonID,
		ArchivedAt:    receiptTime(r.ArchivedAt),
	}
}

func receiptTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func identity[T any](v T) T { return v }

func mapSlice[T, V any](items []T, view func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
