// Package pipeline orchestrates the reference processing run: extract,
// match, enrich, dedupe, prioritize, format, assess.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/biblio-cli/internal/cache"
	"github.com/sells-group/biblio-cli/internal/dedupe"
	"github.com/sells-group/biblio-cli/internal/extract"
	"github.com/sells-group/biblio-cli/internal/model"
	"github.com/sells-group/biblio-cli/internal/quality"
	"github.com/sells-group/biblio-cli/internal/styles"
	"github.com/sells-group/biblio-cli/pkg/llmcite"
)

// ErrInvalidInput rejects a structurally invalid request envelope. It is
// the only failure that aborts a whole run.
var ErrInvalidInput = eris.New("pipeline: invalid input")

// Enricher fills missing reference metadata from the registry.
type Enricher interface {
	EnrichBatch(ctx context.Context, refs []model.Reference) ([]model.Reference, error)
}

// APICounter reports outbound request totals for telemetry.
type APICounter interface {
	APICalls() int64
}

// Options wires the pipeline's collaborators. Enricher, Store, Counter,
// and Fallback may be nil; the corresponding stages degrade gracefully.
type Options struct {
	Extractor *extract.Extractor
	Matcher   *extract.Matcher
	Enricher  Enricher
	Detector  *dedupe.Detector
	Assessor  *quality.Assessor
	Fallback  llmcite.Generator
	Store     cache.Store
	Counter   APICounter

	MaxReferences  int
	MaxConcurrency int
}

// Pipeline processes one ReferenceState into a ReferenceResult.
type Pipeline struct {
	opts Options
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Extractor == nil {
		opts.Extractor = extract.NewExtractor()
	}
	if opts.MaxReferences <= 0 {
		opts.MaxReferences = 100
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	return &Pipeline{opts: opts}
}

// Process runs the full pipeline. Failures local to one reference or
// DOI never abort the run; the result is always best-effort with
// warnings enumerating what could not be completed.
func (p *Pipeline) Process(ctx context.Context, state model.ReferenceState) (*model.ReferenceResult, error) {
	if err := validateState(state); err != nil {
		return nil, err
	}

	start := time.Now()
	var apiBefore int64
	var cacheBefore cache.CounterSnapshot
	if p.opts.Counter != nil {
		apiBefore = p.opts.Counter.APICalls()
	}
	if p.opts.Store != nil {
		cacheBefore = p.opts.Store.Stats()
	}

	result := &model.ReferenceResult{CitationMap: map[string]string{}}

	// Extract and match. Envelope references arrive unvalidated, so the
	// DOI contract is re-applied here: downstream stages may assume every
	// Reference.DOI is either empty or registry-format.
	needs := p.opts.Extractor.ExtractCitations(state.ManuscriptText)
	refs := make([]model.Reference, 0, len(state.ExistingReferences))
	for _, ref := range state.ExistingReferences {
		ref.SetDOI(ref.DOI)
		refs = append(refs, ref)
	}

	if p.opts.Matcher != nil {
		matched, err := p.opts.Matcher.MatchToLiterature(ctx, needs, state.LiteratureResults, refs)
		if err != nil {
			zap.L().Warn("pipeline: matching failed, continuing with existing references", zap.Error(err))
		} else {
			refs = mergeByID(refs, matched)
		}
	}

	// Enrich via the registry.
	if state.EnableDOIValidation && p.opts.Enricher != nil {
		enriched, err := p.opts.Enricher.EnrichBatch(ctx, refs)
		if err != nil {
			zap.L().Warn("pipeline: enrichment failed, continuing unenriched", zap.Error(err))
		} else {
			refs = enriched
		}
	}

	// Group and merge duplicates.
	if state.EnableDuplicateDetection && p.opts.Detector != nil {
		groups := p.opts.Detector.FindDuplicates(refs)
		if len(groups) > 0 {
			result.DuplicateReferences = groups
			refs = p.opts.Detector.Merge(refs, groups)
		}
	}

	refs = p.prioritize(refs, needs, state.MaxReferences)

	// Format; a per-reference failure degrades, an unsupported style
	// fails the run up front in validateState.
	citations, err := styles.Format(refs, state.TargetStyle)
	if err != nil {
		return nil, err
	}
	p.applyFallback(ctx, refs, citations, state.TargetStyle)

	result.References = refs
	result.Citations = citations
	result.TotalReferences = len(refs)
	result.Bibliography = styles.BuildBibliography(citations, refs, state.TargetStyle)
	result.CitationMap = styles.CreateCitationMap(needs, citations)
	result.StyleCompliance = styles.StyleCompliance(citations)
	result.MissingCitations = missingCitations(needs, result.CitationMap)

	// Assess concurrently; scores are pure functions of a stable
	// snapshot, so completion order cannot affect the result.
	if state.EnableQualityAssessment && p.opts.Assessor != nil {
		result.QualityScores = p.assessAll(ctx, refs, state)
		result.Warnings = p.opts.Assessor.FlagProblematic(ctx, refs)
	}

	result.Telemetry.Elapsed = time.Since(start)
	if p.opts.Counter != nil {
		result.Telemetry.APICalls = int(p.opts.Counter.APICalls() - apiBefore)
	}
	if p.opts.Store != nil {
		after := p.opts.Store.Stats()
		result.Telemetry.CacheHits = int(after.Hits - cacheBefore.Hits)
		result.Telemetry.CacheMisses = int(after.Misses - cacheBefore.Misses)
	}

	zap.L().Info("pipeline: run complete",
		zap.String("study_id", state.StudyID),
		zap.Int("references", result.TotalReferences),
		zap.Int("missing_citations", len(result.MissingCitations)),
		zap.Duration("elapsed", result.Telemetry.Elapsed),
	)
	return result, nil
}

// validateState rejects structurally invalid envelopes before any work.
func validateState(state model.ReferenceState) error {
	if state.StudyID == "" {
		return eris.Wrap(ErrInvalidInput, "study_id is required")
	}
	if state.ManuscriptText == "" {
		return eris.Wrap(ErrInvalidInput, "manuscript_text is required")
	}
	if !styles.Supported(state.TargetStyle) {
		return eris.Wrapf(ErrInvalidInput, "unsupported citation style %q", state.TargetStyle)
	}
	return nil
}

// mergeByID appends refs not already present.
func mergeByID(base, extra []model.Reference) []model.Reference {
	seen := make(map[string]bool, len(base))
	for _, r := range base {
		seen[r.ID] = true
	}
	for _, r := range extra {
		if !seen[r.ID] {
			seen[r.ID] = true
			base = append(base, r)
		}
	}
	return base
}

// prioritize caps the reference count, preferring references some
// citation need actually ranked, then preserving input order.
func (p *Pipeline) prioritize(refs []model.Reference, needs []model.CitationNeed, maxOverride int) []model.Reference {
	limit := p.opts.MaxReferences
	if maxOverride > 0 {
		limit = maxOverride
	}
	if len(refs) <= limit {
		return refs
	}

	wanted := make(map[string]bool)
	for _, need := range needs {
		for _, id := range need.Candidates {
			wanted[id] = true
		}
	}

	ordered := make([]model.Reference, len(refs))
	copy(ordered, refs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return wanted[ordered[i].ID] && !wanted[ordered[j].ID]
	})

	zap.L().Info("pipeline: capped reference set",
		zap.Int("from", len(refs)),
		zap.Int("to", limit),
	)
	return ordered[:limit]
}

// applyFallback asks the LLM generator for citations that degraded, and
// keeps the deterministic metadata fallback when the generator cannot
// produce a valid shape.
func (p *Pipeline) applyFallback(ctx context.Context, refs []model.Reference, citations []model.Citation, style model.CitationStyle) {
	if p.opts.Fallback == nil {
		return
	}
	byID := make(map[string]model.Reference, len(refs))
	for _, r := range refs {
		byID[r.ID] = r
	}

	for i := range citations {
		if citations[i].StyleCompliant {
			continue
		}
		ref := byID[citations[i].ReferenceID]
		gen, err := p.opts.Fallback.GenerateCitation(ctx, ref.ID, describeReference(ref), string(style))
		if err != nil {
			continue // deterministic fallback text already in place
		}
		citations[i].Text = gen.CitationText
	}
}

func describeReference(ref model.Reference) string {
	var b strings.Builder
	b.WriteString("title: " + ref.Title)
	if len(ref.Authors) > 0 {
		b.WriteString("\nauthors: " + strings.Join(ref.Authors, "; "))
	}
	if ref.Year != 0 {
		fmt.Fprintf(&b, "\nyear: %d", ref.Year)
	}
	if ref.Journal != "" {
		b.WriteString("\njournal: " + ref.Journal)
	}
	if ref.DOI != "" {
		b.WriteString("\ndoi: " + ref.DOI)
	}
	return b.String()
}

// assessAll scores every reference with bounded fan-out.
func (p *Pipeline) assessAll(ctx context.Context, refs []model.Reference, state model.ReferenceState) []model.QualityScore {
	scores := make([]model.QualityScore, len(refs))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrency)

	var mu sync.Mutex
	for i := range refs {
		g.Go(func() error {
			score := p.opts.Assessor.Assess(refs[i], state.ManuscriptText, state.ResearchField)
			mu.Lock()
			scores[i] = score
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // assessment never returns errors
	return scores
}

// missingCitations returns needs that resolved to no reference: explicit
// markers absent from the citation map and implicit claims with no
// accepted candidates.
func missingCitations(needs []model.CitationNeed, citationMap map[string]string) []model.CitationNeed {
	var missing []model.CitationNeed
	for _, need := range needs {
		if need.Marker != "" {
			if _, ok := citationMap[need.Marker]; !ok {
				missing = append(missing, need)
			}
			continue
		}
		if len(need.Candidates) == 0 {
			missing = append(missing, need)
		}
	}
	return missing
}
