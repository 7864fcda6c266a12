package model

import "time"

// LiteratureRecord is a loosely-typed source record from an upstream
// literature search. Fields mirror the common denominator of the search
// providers; anything absent stays zero.
type LiteratureRecord struct {
	SourceID string   `json:"source_id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Year     int      `json:"year,omitempty"`
	Journal  string   `json:"journal,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// ReferenceState is the pipeline input envelope.
type ReferenceState struct {
	StudyID            string             `json:"study_id"`
	ManuscriptText     string             `json:"manuscript_text"`
	LiteratureResults  []LiteratureRecord `json:"literature_results,omitempty"`
	ExistingReferences []Reference        `json:"existing_references,omitempty"`
	TargetStyle        CitationStyle      `json:"target_style"`

	EnableDOIValidation      bool `json:"enable_doi_validation"`
	EnableDuplicateDetection bool `json:"enable_duplicate_detection"`
	EnableQualityAssessment  bool `json:"enable_quality_assessment"`

	MaxReferences int    `json:"max_references,omitempty"`
	ResearchField string `json:"research_field,omitempty"`
	TargetJournal string `json:"target_journal,omitempty"`
}

// Telemetry records per-run processing counters.
type Telemetry struct {
	Elapsed     time.Duration `json:"elapsed_ms"`
	APICalls    int           `json:"api_calls"`
	CacheHits   int           `json:"cache_hits"`
	CacheMisses int           `json:"cache_misses"`
}

// ReferenceResult is the pipeline output. It is always best-effort: partial
// failures surface as warnings and missing-citation entries, never as a
// failed run.
type ReferenceResult struct {
	References          []Reference       `json:"references"`
	Citations           []Citation        `json:"citations"`
	Bibliography        string            `json:"bibliography"`
	CitationMap         map[string]string `json:"citation_map"` // in-text marker -> reference ID
	QualityScores       []QualityScore    `json:"quality_scores,omitempty"`
	Warnings            []QualityWarning  `json:"warnings,omitempty"`
	TotalReferences     int               `json:"total_references"`
	StyleCompliance     float64           `json:"style_compliance_score"`
	MissingCitations    []CitationNeed    `json:"missing_citations,omitempty"`
	DuplicateReferences []DuplicateGroup  `json:"duplicate_references,omitempty"`
	Telemetry           Telemetry         `json:"telemetry"`
}
