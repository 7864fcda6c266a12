package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/biblio-cli/internal/model"
)

// Assessor scores references. It is a pure computation over its inputs;
// identical reference + context + field always yields identical scores.
type Assessor struct {
	weights   Weights
	predatory map[string]bool // normalized venue names
	timeNow   func() time.Time
	links     LinkChecker // optional; nil skips reachability probes
}

// NewAssessor creates an Assessor. predatoryVenues extends the built-in
// deny list; may be nil.
func NewAssessor(weights Weights, predatoryVenues []string) *Assessor {
	venues := make(map[string]bool, len(predatoryVenues)+len(builtinPredatory))
	for _, v := range builtinPredatory {
		venues[v] = true
	}
	for _, v := range predatoryVenues {
		venues[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return &Assessor{weights: weights, predatory: venues, timeNow: time.Now}
}

// WithLinkChecker enables broken-link warnings. Passing nil leaves them
// disabled.
func (a *Assessor) WithLinkChecker(checker LinkChecker) *Assessor {
	a.links = checker
	return a
}

// builtinPredatory seeds the predatory-venue deny list. Matched on the
// lower-cased journal name.
var builtinPredatory = []string{
	"international journal of advanced research",
	"global journal of science frontier research",
	"journal of scientific discovery",
	"world journal of innovative research",
}

// Assess scores one reference against the manuscript context and
// research field.
func (a *Assessor) Assess(ref model.Reference, manuscriptContext, field string) model.QualityScore {
	score := model.QualityScore{
		ReferenceID: ref.ID,
		Credibility: a.credibility(ref),
		Recency:     a.recency(ref),
		Relevance:   a.relevance(ref, manuscriptContext),
		Impact:      a.impact(ref, field),
		Methodology: a.methodology(ref),
	}

	score.Overall = clamp(a.weights.Credibility*score.Credibility +
		a.weights.Recency*score.Recency +
		a.weights.Relevance*score.Relevance +
		a.weights.Impact*score.Impact +
		a.weights.Methodology*score.Methodology)
	score.Level = levelFor(score.Overall)

	a.annotate(&score, ref)
	return score
}

func levelFor(overall float64) model.QualityLevel {
	switch {
	case overall >= 0.90:
		return model.QualityExcellent
	case overall >= 0.75:
		return model.QualityGood
	case overall >= 0.60:
		return model.QualityAcceptable
	case overall >= 0.40:
		return model.QualityPoor
	default:
		return model.QualityProblematic
	}
}

// credibility starts at 0.5 and adjusts for venue, retraction, preprint
// status, DOI presence, and metadata completeness. Retraction zeroes it
// outright.
func (a *Assessor) credibility(ref model.Reference) float64 {
	if ref.IsRetracted {
		return 0
	}

	score := 0.5
	if a.isPredatory(ref.Journal) {
		score -= 0.4
	}
	if ref.DOI != "" {
		score += 0.1
	}
	score += 0.2 * ref.Completeness()
	if ref.IsPreprint || ref.Type == model.TypePreprint {
		score *= 0.8
	}
	return clamp(score)
}

func (a *Assessor) isPredatory(journal string) bool {
	return a.predatory[strings.ToLower(strings.TrimSpace(journal))]
}

// recency is a step function of age in years.
func (a *Assessor) recency(ref model.Reference) float64 {
	age := ref.Age(a.timeNow())
	switch {
	case age < 0:
		return 0.3 // unknown year
	case age <= 2:
		return 1.0
	case age <= 5:
		return 0.8
	case age <= 10:
		return 0.6
	case age <= 15:
		return 0.4
	case age <= 25:
		return 0.2
	default:
		return 0.1
	}
}

// relevance measures token overlap between the manuscript context and
// the reference's title, abstract, and keywords, with a small bonus for
// article types that typically carry citable findings.
func (a *Assessor) relevance(ref model.Reference, manuscriptContext string) float64 {
	if manuscriptContext == "" {
		return 0.5
	}

	ctxTokens := tokenSet(manuscriptContext)
	refText := ref.Title + " " + ref.Abstract + " " + strings.Join(ref.Keywords, " ")
	refTokens := tokenSet(refText)
	if len(ctxTokens) == 0 || len(refTokens) == 0 {
		return 0.5
	}

	inter := 0
	for t := range ctxTokens {
		if refTokens[t] {
			inter++
		}
	}
	score := float64(inter) / float64(len(ctxTokens))

	if ref.Type == model.TypeJournalArticle {
		score += 0.1
	}
	return clamp(score)
}

// fieldPercentiles maps research fields to citation-count thresholds at
// the 50th/75th/90th/95th percentiles. Figures approximate published
// field-normalized citation distributions.
var fieldPercentiles = map[string][4]int{
	"medicine":         {10, 30, 80, 150},
	"biology":          {12, 35, 90, 170},
	"computer science": {8, 25, 70, 140},
	"physics":          {10, 28, 75, 145},
	"chemistry":        {12, 32, 85, 160},
	"psychology":       {10, 30, 80, 150},
	"social science":   {6, 18, 50, 100},
}

var defaultPercentiles = [4]int{10, 30, 80, 150}

// impact scores the citation count against field percentiles, with
// impact-factor bonus tiers.
func (a *Assessor) impact(ref model.Reference, field string) float64 {
	p := defaultPercentiles
	if fp, ok := fieldPercentiles[strings.ToLower(strings.TrimSpace(field))]; ok {
		p = fp
	}

	var score float64
	switch {
	case ref.CitationCount >= p[3]:
		score = 0.9
	case ref.CitationCount >= p[2]:
		score = 0.75
	case ref.CitationCount >= p[1]:
		score = 0.6
	case ref.CitationCount >= p[0]:
		score = 0.45
	default:
		score = 0.3
	}

	switch {
	case ref.ImpactFactor >= 10:
		score += 0.1
	case ref.ImpactFactor >= 5:
		score += 0.05
	}
	return clamp(score)
}

var positiveMethodology = []string{
	"randomized", "randomised", "controlled", "systematic review",
	"meta-analysis", "double-blind", "prospective", "cohort", "multicenter",
}

var negativeMethodology = []string{
	"case report", "editorial", "opinion", "letter",
}

// methodology starts at 0.5 and shifts on study-design keywords found in
// the title and abstract.
func (a *Assessor) methodology(ref model.Reference) float64 {
	text := strings.ToLower(ref.Title + " " + ref.Abstract)
	score := 0.5
	for _, kw := range positiveMethodology {
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}
	for _, kw := range negativeMethodology {
		if strings.Contains(text, kw) {
			score -= 0.2
		}
	}
	return clamp(score)
}

// annotate fills the free-text strengths/weaknesses/recommendations.
func (a *Assessor) annotate(score *model.QualityScore, ref model.Reference) {
	if score.Credibility >= 0.7 {
		score.Strengths = append(score.Strengths, "credible, well-identified source")
	}
	if score.Recency >= 0.8 {
		score.Strengths = append(score.Strengths, "recent publication")
	}
	if score.Impact >= 0.75 {
		score.Strengths = append(score.Strengths, "highly cited in its field")
	}

	if ref.IsRetracted {
		score.Weaknesses = append(score.Weaknesses, "paper has been retracted")
		score.Recommendations = append(score.Recommendations, "remove this reference and cite a replacement")
	}
	if a.isPredatory(ref.Journal) {
		score.Weaknesses = append(score.Weaknesses, "venue appears on the predatory-journal list")
		score.Recommendations = append(score.Recommendations, "verify the venue's editorial standards")
	}
	if score.Recency <= 0.2 {
		score.Weaknesses = append(score.Weaknesses, fmt.Sprintf("reference is %d years old", ref.Age(a.timeNow())))
		score.Recommendations = append(score.Recommendations, "check for a more recent source")
	}
	if ref.Completeness() < 0.5 {
		score.Weaknesses = append(score.Weaknesses, "incomplete bibliographic metadata")
		score.Recommendations = append(score.Recommendations, "re-fetch metadata via DOI enrichment")
	}
	if (ref.IsPreprint || ref.Type == model.TypePreprint) && ref.Age(a.timeNow()) > 2 {
		score.Weaknesses = append(score.Weaknesses, "preprint older than two years without a published version")
	}
}

func tokenSet(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(s)) {
		t = strings.Trim(t, ".,;:()[]{}\"'")
		if len(t) > 3 { // skip stopword-length tokens
			tokens[t] = true
		}
	}
	return tokens
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
