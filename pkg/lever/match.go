package lever

import (
	"slices"
	"strings"
)

// Matcher selects opportunities during a client-side search. Lever has no
// server-side text search, so name and company lookups scan pages and filter
// them here.
type Matcher func(Opportunity) bool

// NameContains matches names containing query, ignoring case.
func NameContains(query string) Matcher {
	q := normalize(query)
	return func(o Opportunity) bool {
		return q != "" && strings.Contains(normalize(o.Name), q)
	}
}

// NameResembles matches when either the name contains query or query
// contains the name, ignoring case. "Jane Doe" finds "Jane", and "Dr. Jane
// Doe PhD" finds "Jane Doe".
func NameResembles(query string) Matcher {
	q := normalize(query)
	return func(o Opportunity) bool {
		name := normalize(o.Name)
		if q == "" || name == "" {
			return false
		}
		return strings.Contains(name, q) || strings.Contains(q, name)
	}
}

// NameHasAnyPart matches the full query or any of its whitespace-separated
// parts against the name, ignoring case.
func NameHasAnyPart(query string) Matcher {
	q := normalize(query)
	parts := strings.Fields(q)
	return func(o Opportunity) bool {
		name := normalize(o.Name)
		if q == "" || name == "" {
			return false
		}
		if strings.Contains(name, q) {
			return true
		}
		for _, part := range parts {
			if strings.Contains(name, part) {
				return true
			}
		}
		return false
	}
}

// All combines matchers with AND. Nil matchers are skipped.
func All(matchers ...Matcher) Matcher {
	return func(o Opportunity) bool {
		for _, m := range matchers {
			if m != nil && !m(o) {
				return false
			}
		}
		return true
	}
}

// FilterOpportunities returns the opportunities m accepts, in order.
func FilterOpportunities(items []Opportunity, m Matcher) []Opportunity {
	out := make([]Opportunity, 0, len(items))
	for _, o := range items {
		if m(o) {
			out = append(out, o)
		}
	}
	return out
}

// MatchCompany returns the first of companies the opportunity is associated
// with. A headline segment matches when either it contains the company or
// the company contains it; tags match by substring.
func MatchCompany(o Opportunity, companies []string) (string, bool) {
	segments := lowerAll(o.Organizations())
	tags := lowerAll(o.Tags)

	for _, company := range companies {
		c := normalize(company)
		if c == "" {
			continue
		}
		for _, seg := range segments {
			if strings.Contains(seg, c) || strings.Contains(c, seg) {
				return company, true
			}
		}
		for _, tag := range tags {
			if strings.Contains(tag, c) {
				return company, true
			}
		}
	}
	return "", false
}

// Criteria are AdvancedSearch filters. Values within one criterion are
// alternatives (OR); criteria are combined with AND. Empty criteria match
// everything.
type Criteria struct {
	Companies []string
	Skills    []string
	Locations []string
	Tags      []string
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool {
	return len(c.Companies) == 0 && len(c.Skills) == 0 && len(c.Locations) == 0 && len(c.Tags) == 0
}

// Matcher returns the criteria as a Matcher.
func (c Criteria) Matcher() Matcher {
	companies := lowerAll(c.Companies)
	skills := lowerAll(c.Skills)
	locations := lowerAll(c.Locations)
	tags := lowerAll(c.Tags)

	return func(o Opportunity) bool {
		headline := normalize(o.Headline)
		candidateTags := lowerAll(o.Tags)

		if len(companies) > 0 && !anyContained(headline, companies) {
			return false
		}

		if len(skills) > 0 {
			// Lever has no skills field; search everything textual.
			text := strings.Join([]string{
				normalize(o.Name),
				strings.Join(lowerAll(o.Emails), " "),
				strings.Join(candidateTags, " "),
				headline,
			}, " ")
			if !anyContained(text, skills) {
				return false
			}
		}

		if len(locations) > 0 && !anyContained(normalize(o.Location.String()), locations) {
			return false
		}

		if len(tags) > 0 && !slices.ContainsFunc(tags, func(t string) bool {
			return slices.Contains(candidateTags, t)
		}) {
			return false
		}

		return true
	}
}

// ReferralRelevance classifies an opportunity as a potential referrer for a
// posting: "internal" when tagged as an employee, internal or referral
// contact (or the headline says "current"), "related" when the headline or
// tags mention the posting's team or a significant word of its title.
func ReferralRelevance(o Opportunity, posting Posting) (string, bool) {
	headline := normalize(o.Headline)
	tags := lowerAll(o.Tags)
	joinedTags := strings.Join(tags, " ")

	if slices.Contains(tags, "employee") || slices.Contains(tags, "internal") ||
		strings.Contains(joinedTags, "referral") || strings.Contains(headline, "current") {
		return RelevanceInternal, true
	}

	if team := normalize(posting.TeamName()); team != "" {
		if strings.Contains(headline, team) || strings.Contains(joinedTags, team) {
			return RelevanceRelated, true
		}
	}

	for _, word := range strings.Fields(normalize(posting.Text)) {
		// Skip short words such as "of" or "a" that match everything.
		if len(word) < 3 {
			continue
		}
		if strings.Contains(headline, word) {
			return RelevanceRelated, true
		}
	}

	return "", false
}

// GroupByStage groups opportunities by current stage, in order of first
// appearance. Opportunities without a stage are grouped under "Unknown".
func GroupByStage(items []Opportunity) []StageGroup {
	var groups []StageGroup
	index := make(map[string]int)

	for _, o := range items {
		stage := o.Stage.String()
		if stage == "" {
			stage = "Unknown"
		}
		i, ok := index[stage]
		if !ok {
			i = len(groups)
			index[stage] = i
			groups = append(groups, StageGroup{Stage: stage})
		}
		groups[i].Candidates = append(groups[i].Candidates, o)
	}

	return groups
}

// splitList splits a comma-separated list, trimming and dropping empty parts.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalize(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func anyContained(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
