package model

// QualityLevel is the discrete quality band derived from the overall score.
type QualityLevel string

const (
	QualityExcellent   QualityLevel = "excellent"
	QualityGood        QualityLevel = "good"
	QualityAcceptable  QualityLevel = "acceptable"
	QualityPoor        QualityLevel = "poor"
	QualityProblematic QualityLevel = "problematic"
)

// QualityScore holds the five-dimension assessment for one reference.
// All dimension scores and the overall score lie in [0,1].
type QualityScore struct {
	ReferenceID string `json:"reference_id"`

	Credibility float64 `json:"credibility"`
	Recency     float64 `json:"recency"`
	Relevance   float64 `json:"relevance"`
	Impact      float64 `json:"impact"`
	Methodology float64 `json:"methodology"`

	Overall float64      `json:"overall"`
	Level   QualityLevel `json:"level"`

	Strengths       []string `json:"strengths,omitempty"`
	Weaknesses      []string `json:"weaknesses,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// WarningType is a typed quality flag attached to a reference.
type WarningType string

const (
	WarnRetracted          WarningType = "retracted_paper"
	WarnPredatoryVenue     WarningType = "predatory_venue"
	WarnStale              WarningType = "stale_reference"
	WarnLowImpact          WarningType = "low_impact"
	WarnPreprintMisuse     WarningType = "preprint_misuse"
	WarnSelfCitation       WarningType = "excessive_self_citation"
	WarnCircularCitation   WarningType = "circular_citation"
	WarnIncompleteMetadata WarningType = "incomplete_metadata"
	WarnBrokenLink         WarningType = "broken_link"
	WarnDuplicate          WarningType = "duplicate_reference"
)

// Severity ranks quality warnings.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// QualityWarning flags a problem with one reference. AutoFixable warnings
// can be resolved without editorial judgment (e.g. re-fetching metadata).
type QualityWarning struct {
	ReferenceID string      `json:"reference_id"`
	Type        WarningType `json:"type"`
	Severity    Severity    `json:"severity"`
	Message     string      `json:"message"`
	AutoFixable bool        `json:"auto_fixable"`
}
