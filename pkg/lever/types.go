package lever

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Millis is a Lever timestamp in milliseconds since the Unix epoch.
type Millis int64

// Time converts to time.Time. The zero value maps to the zero time.
func (m Millis) Time() time.Time {
	if m == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(m))
}

// IsZero reports whether the timestamp is unset.
func (m Millis) IsZero() bool { return m == 0 }

// TextRef is a reference Lever returns either as a bare string (an id or a
// plain name, depending on the field and expansion) or as an object with an
// id and a display text or name.
type TextRef struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *TextRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		return json.Unmarshal(data, &r.Text)
	}

	var obj struct {
		ID   string `json:"id"`
		Text string `json:"text"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	r.Text = obj.Text
	if r.Text == "" {
		r.Text = obj.Name
	}
	return nil
}

// String returns the display text, falling back to the id.
func (r TextRef) String() string {
	if r.Text != "" {
		return r.Text
	}
	return r.ID
}

// Phone is a candidate phone number.
type Phone struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

// Archived describes why and when an opportunity was archived.
type Archived struct {
	ArchivedAt Millis `json:"archivedAt"`
	Reason     string `json:"reason"`
}

// Opportunity is a candidate's application journey in Lever.
type Opportunity struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Headline          string            `json:"headline"`
	Contact           string            `json:"contact"`
	Emails            []string          `json:"emails"`
	Phones            []Phone           `json:"phones"`
	Links             []string          `json:"links"`
	Tags              []string          `json:"tags"`
	Sources           []string          `json:"sources"`
	Origin            string            `json:"origin"`
	Location          TextRef           `json:"location"`
	Stage             TextRef           `json:"stage"`
	Owner             TextRef           `json:"owner"`
	Applications      []json.RawMessage `json:"applications"`
	Archived          *Archived         `json:"archived"`
	CreatedAt         Millis            `json:"createdAt"`
	LastInteractionAt Millis            `json:"lastInteractionAt"`
}

// Organizations splits the headline, which Lever fills with the
// candidate's companies, into its comma-separated parts.
func (o Opportunity) Organizations() []string {
	return splitList(o.Headline)
}

// PostingCategories are the categories Lever attaches to a posting.
type PostingCategories struct {
	Team       string `json:"team"`
	Department string `json:"department"`
	Location   string `json:"location"`
	Commitment string `json:"commitment"`
}

// PostingURLs are the public links of a posting.
type PostingURLs struct {
	List  string `json:"list"`
	Show  string `json:"show"`
	Apply string `json:"apply"`
}

// Posting is a job posting.
type Posting struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	State      string            `json:"state"`
	Team       TextRef           `json:"team"`
	Location   TextRef           `json:"location"`
	Categories PostingCategories `json:"categories"`
	Tags       []string          `json:"tags"`
	URLs       PostingURLs       `json:"urls"`
	CreatedAt  Millis            `json:"createdAt"`
	UpdatedAt  Millis            `json:"updatedAt"`
}

// TeamName returns the posting's team from whichever field Lever filled.
func (p Posting) TeamName() string {
	if name := p.Team.String(); name != "" {
		return name
	}
	return p.Categories.Team
}

// LocationName returns the posting's location.
func (p Posting) LocationName() string {
	if name := p.Location.String(); name != "" {
		return name
	}
	return p.Categories.Location
}

// Stage is a pipeline stage.
type Stage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ArchiveReason is a reason an opportunity can be archived with.
type ArchiveReason struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// File is a document attached to an opportunity, normalized from Lever's
// files and resumes endpoints.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Ext         string `json:"ext"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
	UploadedAt  Millis `json:"uploadedAt"`

	// Source is "files" or "resumes".
	Source string `json:"source"`
}

// fileRecord covers both shapes: resumes nest the document under "file",
// files carry it at the top level.
type fileRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Ext         string `json:"ext"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
	UploadedAt  Millis `json:"uploadedAt"`
	CreatedAt   Millis `json:"createdAt"`
	File        *struct {
		Name        string `json:"name"`
		Ext         string `json:"ext"`
		Size        int64  `json:"size"`
		DownloadURL string `json:"downloadUrl"`
		UploadedAt  Millis `json:"uploadedAt"`
	} `json:"file"`
}

func (r fileRecord) normalize(source string) File {
	f := File{
		ID:          r.ID,
		Name:        r.Name,
		Ext:         r.Ext,
		Size:        r.Size,
		DownloadURL: r.DownloadURL,
		UploadedAt:  r.UploadedAt,
		Source:      source,
	}
	if f.Name == "" {
		f.Name = r.Filename
	}
	if r.File != nil {
		f.Name = firstNonEmpty(r.File.Name, f.Name)
		f.Ext = firstNonEmpty(r.File.Ext, f.Ext)
		f.DownloadURL = firstNonEmpty(r.File.DownloadURL, f.DownloadURL)
		if r.File.Size != 0 {
			f.Size = r.File.Size
		}
		if r.File.UploadedAt != 0 {
			f.UploadedAt = r.File.UploadedAt
		}
	}
	if f.UploadedAt == 0 {
		f.UploadedAt = r.CreatedAt
	}
	if f.Ext == "" {
		if i := strings.LastIndex(f.Name, "."); i >= 0 && i < len(f.Name)-1 {
			f.Ext = f.Name[i+1:]
		}
	}
	return f
}

// Application links an opportunity to a posting.
type Application struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Posting   TextRef   `json:"posting"`
	User      TextRef   `json:"user"`
	Archived  *Archived `json:"archived"`
	CreatedAt Millis    `json:"createdAt"`
}

// NoteReceipt confirms a note was added.
type NoteReceipt struct {
	OpportunityID string    `json:"opportunityId"`
	Candidate     string    `json:"candidate"`
	NoteID        string    `json:"noteId,omitempty"`
	Note          string    `json:"note"`
	AddedAt       time.Time `json:"addedAt"`
}

// ArchiveReceipt confirms an opportunity was archived.
type ArchiveReceipt struct {
	OpportunityID string    `json:"opportunityId"`
	Candidate     string    `json:"candidate"`
	ReasonID      string    `json:"reasonId"`
	ArchivedAt    time.Time `json:"archivedAt"`
}

// CompanyMatch is a candidate found by company, with the company that matched.
type CompanyMatch struct {
	Opportunity
	MatchedCompany string `json:"matchedCompany"`
}

// Referral relevance values.
const (
	RelevanceInternal = "internal"
	RelevanceRelated  = "related"
)

// Referral is a potential referrer for a posting.
type Referral struct {
	Opportunity
	Relevance string `json:"relevance"`
}

// StageGroup is a pipeline stage with the candidates currently in it.
type StageGroup struct {
	Stage      string        `json:"stage"`
	Candidates []Opportunity `json:"candidates"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
