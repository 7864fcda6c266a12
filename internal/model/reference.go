// Package model defines the domain types shared across the reference pipeline.
package model

import (
	"regexp"
	"strings"
	"time"
)

// ReferenceType classifies the kind of work a reference points at.
type ReferenceType string

const (
	TypeJournalArticle  ReferenceType = "journal_article"
	TypeBook            ReferenceType = "book"
	TypeBookChapter     ReferenceType = "book_chapter"
	TypeConferencePaper ReferenceType = "conference_paper"
	TypeThesis          ReferenceType = "thesis"
	TypeReport          ReferenceType = "report"
	TypeWebsite         ReferenceType = "website"
	TypePreprint        ReferenceType = "preprint"
	TypePatent          ReferenceType = "patent"
	TypeOther           ReferenceType = "other"
)

// doiPattern is the strict DOI format applied after prefix stripping.
var doiPattern = regexp.MustCompile(`^10\.\d{4,}/\S+$`)

// doiPrefixes are the known URL/scheme prefixes stripped before validation.
var doiPrefixes = []string{
	"https://doi.org/",
	"https://dx.doi.org/",
	"http://doi.org/",
	"http://dx.doi.org/",
	"doi:",
	"DOI:",
}

// CleanDOI strips known URL/scheme prefixes and surrounding whitespace from
// a DOI string. It is idempotent: CleanDOI(CleanDOI(s)) == CleanDOI(s).
func CleanDOI(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	return strings.TrimSpace(s)
}

// IsValidDOI reports whether the cleaned DOI matches the registry format.
func IsValidDOI(s string) bool {
	return doiPattern.MatchString(CleanDOI(s))
}

// Reference represents one bibliographic source tracked by the pipeline.
type Reference struct {
	ID string `json:"id"`

	// Bibliographic fields
	Title    string   `json:"title"`
	Authors  []string `json:"authors"` // "Last, First" order preserved
	Year     int      `json:"year,omitempty"`
	Journal  string   `json:"journal,omitempty"`
	Volume   string   `json:"volume,omitempty"`
	Issue    string   `json:"issue,omitempty"`
	Pages    string   `json:"pages,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	PMID     string   `json:"pmid,omitempty"` // external identifier (biomedical index)
	URL      string   `json:"url,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty"`

	Type ReferenceType `json:"type"`

	// Enriched fields
	CitationCount int     `json:"citation_count,omitempty"`
	ImpactFactor  float64 `json:"impact_factor,omitempty"`
	IsRetracted   bool    `json:"is_retracted,omitempty"`
	IsPreprint    bool    `json:"is_preprint,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReference constructs a Reference, applying constructor-time validation.
// A malformed DOI is cleared rather than stored — this is a documented
// contract: downstream consumers may assume Reference.DOI is either empty
// or matches the registry format.
func NewReference(id, title string, authors []string, year int) Reference {
	now := time.Now().UTC()
	return Reference{
		ID:        id,
		Title:     title,
		Authors:   authors,
		Year:      year,
		Type:      TypeJournalArticle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetDOI cleans and validates the DOI before storing it. Malformed values
// clear the field.
func (r *Reference) SetDOI(doi string) {
	cleaned := CleanDOI(doi)
	if doiPattern.MatchString(cleaned) {
		r.DOI = cleaned
		return
	}
	r.DOI = ""
}

// requiredFields and optionalFields drive the completeness score.
// Required: title, authors, year. Optional: journal, volume, issue,
// pages, doi.

// Completeness returns the weighted fraction of bibliographic fields
// present: 0.7 x required + 0.3 x optional.
func (r Reference) Completeness() float64 {
	required := 0
	if r.Title != "" {
		required++
	}
	if len(r.Authors) > 0 {
		required++
	}
	if r.Year != 0 {
		required++
	}

	optional := 0
	if r.Journal != "" {
		optional++
	}
	if r.Volume != "" {
		optional++
	}
	if r.Issue != "" {
		optional++
	}
	if r.Pages != "" {
		optional++
	}
	if r.DOI != "" {
		optional++
	}

	return 0.7*(float64(required)/3.0) + 0.3*(float64(optional)/5.0)
}

// HasRequiredFields reports whether title, authors, and year are all present.
func (r Reference) HasRequiredFields() bool {
	return r.Title != "" && len(r.Authors) > 0 && r.Year != 0
}

// Age returns the reference's age in years at the given time, or -1 when
// the year is unknown.
func (r Reference) Age(now time.Time) int {
	if r.Year == 0 {
		return -1
	}
	return now.Year() - r.Year
}
