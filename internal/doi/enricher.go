package doi

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/model"
	"github.com/sells-group/biblio-cli/pkg/crossref"
)

// crossrefTypes maps registry work types onto reference types.
var crossrefTypes = map[string]model.ReferenceType{
	"journal-article":     model.TypeJournalArticle,
	"book":                model.TypeBook,
	"book-chapter":        model.TypeBookChapter,
	"proceedings-article": model.TypeConferencePaper,
	"dissertation":        model.TypeThesis,
	"report":              model.TypeReport,
	"posted-content":      model.TypePreprint,
}

// Enricher fills missing reference fields from registry metadata.
type Enricher struct {
	validator *Validator
	retracted map[string]bool // cleaned DOIs known to be retracted
}

// NewEnricher creates an Enricher. retracted lists DOIs known retracted
// independent of what the registry reports; may be nil.
func NewEnricher(validator *Validator, retracted []string) *Enricher {
	set := make(map[string]bool, len(retracted))
	for _, d := range retracted {
		set[strings.ToLower(Clean(d))] = true
	}
	return &Enricher{validator: validator, retracted: set}
}

// Enrich resolves the reference's DOI and fills only empty fields from
// the registry record. Existing data is never overwritten. References
// without a valid DOI are returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, ref model.Reference) (model.Reference, error) {
	if ref.DOI == "" {
		return ref, nil
	}

	result, err := e.validator.Validate(ctx, ref.DOI, true)
	if err != nil {
		return ref, err
	}
	if !result.Resolved || result.Work == nil {
		if result.Error != "" {
			zap.L().Debug("doi: enrichment skipped",
				zap.String("reference_id", ref.ID),
				zap.String("reason", result.Error),
			)
		}
		return ref, nil
	}

	e.apply(&ref, result.Work)
	e.fillCitationCount(ctx, &ref)
	return ref, nil
}

// EnrichBatch enriches many references in one registry round-trip per 50
// DOIs. References that fail individually keep their original fields.
func (e *Enricher) EnrichBatch(ctx context.Context, refs []model.Reference) ([]model.Reference, error) {
	var dois []string
	for _, ref := range refs {
		if ref.DOI != "" {
			dois = append(dois, ref.DOI)
		}
	}
	if len(dois) == 0 {
		return refs, nil
	}

	results, err := e.validator.ValidateBatch(ctx, dois)
	if err != nil {
		return refs, err
	}

	out := make([]model.Reference, len(refs))
	for i, ref := range refs {
		out[i] = ref
		if ref.DOI == "" {
			continue
		}
		if result, ok := results[Clean(ref.DOI)]; ok && result.Resolved && result.Work != nil {
			e.apply(&out[i], result.Work)
			e.fillCitationCount(ctx, &out[i])
		}
	}
	return out, nil
}

// apply maps registry fields onto empty reference fields.
func (e *Enricher) apply(ref *model.Reference, work *crossref.Work) {
	if ref.Title == "" {
		ref.Title = work.FirstTitle()
	}
	if len(ref.Authors) == 0 {
		for _, a := range work.Author {
			switch {
			case a.Family != "" && a.Given != "":
				ref.Authors = append(ref.Authors, a.Family+", "+a.Given)
			case a.Family != "":
				ref.Authors = append(ref.Authors, a.Family)
			}
		}
	}
	if ref.Year == 0 {
		ref.Year = work.Issued.Year()
	}
	if ref.Journal == "" {
		ref.Journal = work.Journal()
	}
	if ref.Volume == "" {
		ref.Volume = work.Volume
	}
	if ref.Issue == "" {
		ref.Issue = work.Issue
	}
	if ref.Pages == "" {
		ref.Pages = work.Page
	}
	if ref.Abstract == "" {
		ref.Abstract = work.Abstract
	}
	if len(ref.Keywords) == 0 {
		ref.Keywords = work.Subject
	}
	if ref.URL == "" {
		ref.URL = work.URL
	}
	if ref.CitationCount == 0 {
		ref.CitationCount = work.CitedByCount
	}
	if ref.Type == "" || ref.Type == model.TypeOther {
		if t, ok := crossrefTypes[work.Type]; ok {
			ref.Type = t
		}
	}
	if work.Type == "posted-content" {
		ref.IsPreprint = true
	}
	if work.IsRetracted() || e.retracted[strings.ToLower(ref.DOI)] {
		ref.IsRetracted = true
	}
}

// fillCitationCount consults the scholarly graph when the registry
// record carried no citation count.
func (e *Enricher) fillCitationCount(ctx context.Context, ref *model.Reference) {
	if ref.CitationCount != 0 || ref.DOI == "" {
		return
	}
	ref.CitationCount = e.CitationCount(ctx, ref.DOI)
}

// CitationCount returns the scholarly-graph citation count for a DOI,
// falling back to zero when the graph is unavailable. Used when the
// registry record carries no count.
func (e *Enricher) CitationCount(ctx context.Context, doi string) int {
	if e.validator.graph == nil {
		return 0
	}
	work, err := e.validator.graph.GetWorkByDOI(ctx, Clean(doi))
	if err != nil {
		zap.L().Debug("doi: graph lookup failed", zap.String("doi", doi), zap.Error(err))
		return 0
	}
	return work.CitedByCount
}
