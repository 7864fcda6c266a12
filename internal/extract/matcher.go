package extract

import (
	"context"
	"sort"
	"strings"

	"github.com/sells-group/biblio-cli/internal/config"
	"github.com/sells-group/biblio-cli/internal/model"
)

// Scorer ranks a reference against a citation need's context. Scores lie
// in [0,1]; implementations must be side-effect free so match results do
// not depend on evaluation order.
type Scorer interface {
	Score(ctx context.Context, needContext string, ref model.Reference) (float64, error)
}

// Matcher ranks candidate references per citation need.
type Matcher struct {
	scorer          Scorer
	acceptThreshold float64
	maxCandidates   int
}

// NewMatcher creates a Matcher over the given scorer. A nil scorer uses
// the lexical default.
func NewMatcher(scorer Scorer, cfg config.MatchConfig) *Matcher {
	if scorer == nil {
		scorer = LexicalScorer{}
	}
	m := &Matcher{
		scorer:          scorer,
		acceptThreshold: cfg.AcceptThreshold,
		maxCandidates:   cfg.MaxCandidates,
	}
	if m.acceptThreshold <= 0 {
		m.acceptThreshold = 0.3
	}
	if m.maxCandidates <= 0 {
		m.maxCandidates = 3
	}
	return m
}

// MatchToLiterature ranks the pool plus existing references against each
// need, mutating each need's candidate list, and returns the references
// that were accepted for at least one need in first-acceptance order.
func (m *Matcher) MatchToLiterature(ctx context.Context, needs []model.CitationNeed, pool []model.LiteratureRecord, existing []model.Reference) ([]model.Reference, error) {
	candidates := make([]model.Reference, 0, len(pool)+len(existing))
	candidates = append(candidates, existing...)
	for _, rec := range pool {
		candidates = append(candidates, recordToReference(rec))
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	accepted := make(map[string]bool)
	var matched []model.Reference

	type scored struct {
		idx   int
		score float64
	}

	for i := range needs {
		var ranked []scored
		for j, ref := range candidates {
			score, err := m.scorer.Score(ctx, needs[i].Context, ref)
			if err != nil {
				return nil, err
			}
			score = 0.7*score + 0.3*typeCompatibility(needs[i].Claim, ref.Type)
			if score > m.acceptThreshold {
				ranked = append(ranked, scored{idx: j, score: score})
			}
		}

		sort.SliceStable(ranked, func(a, b int) bool {
			return ranked[a].score > ranked[b].score
		})
		if len(ranked) > m.maxCandidates {
			ranked = ranked[:m.maxCandidates]
		}

		needs[i].Candidates = needs[i].Candidates[:0]
		for _, s := range ranked {
			ref := candidates[s.idx]
			needs[i].Candidates = append(needs[i].Candidates, ref.ID)
			if !accepted[ref.ID] {
				accepted[ref.ID] = true
				matched = append(matched, ref)
			}
		}
	}
	return matched, nil
}

// typeCompatibility scores how well a reference type supports a claim
// type. Statistical facts favor journal articles; methodology claims
// favor articles and conference papers; guidelines favor reports.
func typeCompatibility(claim model.ClaimType, refType model.ReferenceType) float64 {
	switch claim {
	case model.ClaimStatisticalFact:
		if refType == model.TypeJournalArticle {
			return 1.0
		}
		if refType == model.TypeReport {
			return 0.7
		}
	case model.ClaimPriorResearch:
		switch refType {
		case model.TypeJournalArticle, model.TypeConferencePaper:
			return 1.0
		case model.TypePreprint:
			return 0.6
		}
	case model.ClaimMethodology:
		switch refType {
		case model.TypeJournalArticle, model.TypeConferencePaper:
			return 0.9
		}
	case model.ClaimClinicalGuideline:
		if refType == model.TypeReport {
			return 1.0
		}
		if refType == model.TypeJournalArticle {
			return 0.7
		}
	case model.ClaimDefinition:
		switch refType {
		case model.TypeBook, model.TypeBookChapter:
			return 1.0
		case model.TypeJournalArticle:
			return 0.7
		}
	}
	return 0.5
}

// recordToReference lifts a loosely-typed literature record into a
// Reference, cleaning the DOI on the way in.
func recordToReference(rec model.LiteratureRecord) model.Reference {
	ref := model.NewReference(rec.SourceID, rec.Title, rec.Authors, rec.Year)
	ref.Journal = rec.Journal
	ref.Abstract = rec.Abstract
	ref.URL = rec.URL
	ref.SetDOI(rec.DOI)
	return ref
}

// LexicalScorer scores by token overlap between the need context and the
// reference's title plus abstract.
type LexicalScorer struct{}

// Score implements Scorer. Pure function of its inputs.
func (LexicalScorer) Score(_ context.Context, needContext string, ref model.Reference) (float64, error) {
	ctxTokens := matchTokens(needContext)
	refTokens := matchTokens(ref.Title + " " + ref.Abstract)
	if len(ctxTokens) == 0 || len(refTokens) == 0 {
		return 0, nil
	}
	inter := 0
	for t := range ctxTokens {
		if refTokens[t] {
			inter++
		}
	}
	// Overlap against the smaller set so short titles are not penalized.
	denom := len(ctxTokens)
	if len(refTokens) < denom {
		denom = len(refTokens)
	}
	return float64(inter) / float64(denom), nil
}

func matchTokens(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(s)) {
		t = strings.Trim(t, ".,;:()[]{}\"'")
		if len(t) > 3 {
			tokens[t] = true
		}
	}
	return tokens
}
