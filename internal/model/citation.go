package model

// Section identifies the manuscript section a citation need was found in.
type Section string

const (
	SectionIntroduction Section = "introduction"
	SectionMethods      Section = "methods"
	SectionResults      Section = "results"
	SectionDiscussion   Section = "discussion"
	SectionConclusion   Section = "conclusion"
	SectionUnknown      Section = "unknown"
)

// ClaimType classifies the kind of claim a citation supports.
type ClaimType string

const (
	ClaimStatisticalFact    ClaimType = "statistical_fact"
	ClaimPriorResearch      ClaimType = "prior_research"
	ClaimMethodology        ClaimType = "methodology"
	ClaimClinicalGuideline  ClaimType = "clinical_guideline"
	ClaimDefinition         ClaimType = "definition"
	ClaimBackgroundInfo     ClaimType = "background_info"
	ClaimOther              ClaimType = "other"
)

// Urgency ranks how badly a located claim needs a supporting citation.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// CitationNeed is a located point in manuscript text requiring a citation.
type CitationNeed struct {
	ID       string    `json:"id"`
	Snippet  string    `json:"snippet"`
	Context  string    `json:"context"`
	Position int       `json:"position"` // character offset into the manuscript
	Section  Section   `json:"section"`
	Claim    ClaimType `json:"claim"`
	Urgency  Urgency   `json:"urgency"`

	// Explicit reports whether the need came from an in-text marker
	// rather than an un-cited claim heuristic.
	Explicit bool   `json:"explicit"`
	Marker   string `json:"marker,omitempty"` // e.g. "[3]" or "[2-4]"

	// Candidates holds reference IDs ranked best-first by the matcher.
	Candidates []string `json:"candidates,omitempty"`
}

// CitationStyle names a supported bibliography style.
type CitationStyle string

const (
	StyleAPA       CitationStyle = "apa"
	StyleAMA       CitationStyle = "ama"
	StyleVancouver CitationStyle = "vancouver"
	StyleHarvard   CitationStyle = "harvard"
	StyleChicago   CitationStyle = "chicago"
	StyleNature    CitationStyle = "nature"
	StyleCell      CitationStyle = "cell"
	StyleJAMA      CitationStyle = "jama"
	StyleMLA       CitationStyle = "mla"
	StyleIEEE      CitationStyle = "ieee"
)

// Citation is one formatted rendering of a Reference in one style.
type Citation struct {
	ReferenceID     string        `json:"reference_id"`
	Style           CitationStyle `json:"style"`
	Text            string        `json:"text"`
	Markers         []string      `json:"markers,omitempty"` // in-text markers, e.g. "[1]"
	IsComplete      bool          `json:"is_complete"`
	Completeness    float64       `json:"completeness"`
	StyleCompliant  bool          `json:"style_compliant"`
}
