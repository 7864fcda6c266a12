package model

// MatchCriterion names a similarity signal that fired for a duplicate group.
type MatchCriterion string

const (
	MatchExactDOI        MatchCriterion = "exact_doi"
	MatchTitleSimilarity MatchCriterion = "title_similarity"
	MatchAuthorOverlap   MatchCriterion = "author_overlap"
)

// DuplicateGroup is a set of reference IDs judged to represent one work.
type DuplicateGroup struct {
	ReferenceIDs []string         `json:"reference_ids"`
	PrimaryID    string           `json:"primary_id"`
	Similarity   float64          `json:"similarity"`
	Criteria     []MatchCriterion `json:"criteria"`
	AutoResolve  bool             `json:"auto_resolve"`
}
