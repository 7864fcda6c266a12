package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biblio-cli/internal/cache"
	"github.com/sells-group/biblio-cli/internal/config"
	"github.com/sells-group/biblio-cli/internal/dedupe"
	"github.com/sells-group/biblio-cli/internal/extract"
	"github.com/sells-group/biblio-cli/internal/model"
	"github.com/sells-group/biblio-cli/internal/quality"
	"github.com/sells-group/biblio-cli/pkg/llmcite"
)

// fakeEnricher fills a fixed year so enrichment is observable without a
// registry.
type fakeEnricher struct {
	calls int
	fail  error
}

func (f *fakeEnricher) EnrichBatch(_ context.Context, refs []model.Reference) ([]model.Reference, error) {
	f.calls++
	if f.fail != nil {
		return refs, f.fail
	}
	out := make([]model.Reference, len(refs))
	for i, r := range refs {
		out[i] = r
		if out[i].Year == 0 {
			out[i].Year = 2021
		}
	}
	return out, nil
}

type fakeGenerator struct {
	text string
	fail error
}

func (f *fakeGenerator) GenerateCitation(_ context.Context, sourceID, _, _ string) (*llmcite.Generated, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &llmcite.Generated{SourceID: sourceID, CitationText: f.text}, nil
}

func testPipeline(opts Options) *Pipeline {
	if opts.Matcher == nil {
		opts.Matcher = extract.NewMatcher(nil, config.MatchConfig{AcceptThreshold: 0.3, MaxCandidates: 3})
	}
	if opts.Detector == nil {
		opts.Detector = dedupe.NewDetector(config.DedupeConfig{})
	}
	if opts.Assessor == nil {
		opts.Assessor = quality.NewAssessor(quality.DefaultWeights(), nil)
	}
	return New(opts)
}

func baseState() model.ReferenceState {
	return model.ReferenceState{
		StudyID:        "study-1",
		ManuscriptText: "Statin therapy reduced cardiovascular events in elderly cohorts [1].",
		TargetStyle:    model.StyleAPA,
		ExistingReferences: []model.Reference{{
			ID: "ref-1", Title: "Statin therapy and cardiovascular events in elderly cohorts",
			Authors: []string{"Lee, Kim"}, Year: 2022, Journal: "Cardio J",
			Volume: "8", Issue: "2", Pages: "100-110", DOI: "10.1234/card.1",
			Type: model.TypeJournalArticle,
		}},
	}
}

func TestProcess_InvalidInput(t *testing.T) {
	p := testPipeline(Options{})
	tests := []struct {
		name   string
		mutate func(*model.ReferenceState)
	}{
		{"missing study id", func(s *model.ReferenceState) { s.StudyID = "" }},
		{"missing manuscript", func(s *model.ReferenceState) { s.ManuscriptText = "" }},
		{"unsupported style", func(s *model.ReferenceState) { s.TargetStyle = "bibtex" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := baseState()
			tt.mutate(&state)
			_, err := p.Process(context.Background(), state)
			assert.True(t, eris.Is(err, ErrInvalidInput))
		})
	}
}

func TestProcess_EndToEnd(t *testing.T) {
	enricher := &fakeEnricher{}
	store := cache.NewMemory()
	p := testPipeline(Options{Enricher: enricher, Store: store})

	state := baseState()
	state.EnableDOIValidation = true
	state.EnableQualityAssessment = true

	result, err := p.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalReferences)
	require.Len(t, result.Citations, 1)
	assert.True(t, result.Citations[0].StyleCompliant)
	assert.NotEmpty(t, result.Bibliography)
	assert.Equal(t, "ref-1", result.CitationMap["[1]"])
	assert.Empty(t, result.MissingCitations)
	require.Len(t, result.QualityScores, 1)
	assert.Greater(t, result.QualityScores[0].Overall, 0.0)
	assert.Equal(t, 1, enricher.calls)
}

func TestProcess_NormalizesEnvelopeDOIs(t *testing.T) {
	p := testPipeline(Options{})

	state := baseState()
	state.ExistingReferences[0].DOI = "https://doi.org/10.1234/card.1"
	malformed := model.Reference{
		ID: "ref-bad-doi", Title: "An entirely unrelated botanical survey",
		Authors: []string{"Moss, P."}, Year: 2019, Journal: "Botany",
		DOI: "not-a-doi", Type: model.TypeJournalArticle,
	}
	state.ExistingReferences = append(state.ExistingReferences, malformed)

	result, err := p.Process(context.Background(), state)
	require.NoError(t, err)

	byID := make(map[string]model.Reference)
	for _, ref := range result.References {
		byID[ref.ID] = ref
	}
	assert.Equal(t, "10.1234/card.1", byID["ref-1"].DOI, "URL prefix stripped at ingestion")
	assert.Empty(t, byID["ref-bad-doi"].DOI, "malformed DOI cleared at ingestion")
}

func TestProcess_EnrichmentFailureIsBestEffort(t *testing.T) {
	enricher := &fakeEnricher{fail: eris.New("registry down")}
	p := testPipeline(Options{Enricher: enricher})

	state := baseState()
	state.EnableDOIValidation = true

	result, err := p.Process(context.Background(), state)
	require.NoError(t, err, "enrichment failure must not abort the run")
	assert.Equal(t, 1, result.TotalReferences)
}

func TestProcess_DisabledStagesSkipped(t *testing.T) {
	enricher := &fakeEnricher{}
	p := testPipeline(Options{Enricher: enricher})

	result, err := p.Process(context.Background(), baseState())
	require.NoError(t, err)
	assert.Zero(t, enricher.calls, "enrichment gated behind its flag")
	assert.Empty(t, result.QualityScores, "assessment gated behind its flag")
}

func TestProcess_DuplicatesMerged(t *testing.T) {
	p := testPipeline(Options{})

	state := baseState()
	state.EnableDuplicateDetection = true
	dup := state.ExistingReferences[0]
	dup.ID = "ref-1-copy"
	state.ExistingReferences = append(state.ExistingReferences, dup)

	result, err := p.Process(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, result.DuplicateReferences, 1)
	assert.Equal(t, 1, result.TotalReferences, "duplicates collapse to the primary")
}

func TestProcess_MissingCitationsReported(t *testing.T) {
	p := testPipeline(Options{})

	state := baseState()
	state.ManuscriptText = "A finding with no matching source anywhere [7]."
	state.ExistingReferences = nil

	result, err := p.Process(context.Background(), state)
	require.NoError(t, err)
	require.NotEmpty(t, result.MissingCitations)
	assert.Equal(t, "[7]", result.MissingCitations[0].Marker)
	assert.Zero(t, result.TotalReferences)
}

func TestProcess_CapsReferences(t *testing.T) {
	p := testPipeline(Options{})

	state := baseState()
	state.MaxReferences = 1
	extraRef := model.Reference{
		ID: "ref-extra", Title: "An entirely unrelated botanical survey",
		Authors: []string{"Moss, P."}, Year: 2019, Journal: "Botany",
		Type: model.TypeJournalArticle,
	}
	state.ExistingReferences = append(state.ExistingReferences, extraRef)

	result, err := p.Process(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalReferences)
	assert.Equal(t, "ref-1", result.References[0].ID,
		"the reference a citation need ranked survives the cap")
}

func TestProcess_LLMFallbackRepairsDegradedCitations(t *testing.T) {
	gen := &fakeGenerator{text: "Repaired citation text."}
	p := testPipeline(Options{Fallback: gen})

	state := baseState()
	state.ExistingReferences = []model.Reference{{ID: "ref-bare", Year: 2020}}
	state.ManuscriptText = "Text without markers mentioning prior findings in passing detail."

	result, err := p.Process(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "Repaired citation text.", result.Citations[0].Text)
}

func TestProcess_LLMFallbackErrorKeepsDeterministicText(t *testing.T) {
	gen := &fakeGenerator{fail: eris.New("model unavailable")}
	p := testPipeline(Options{Fallback: gen})

	state := baseState()
	state.ExistingReferences = []model.Reference{{ID: "ref-bare", Year: 2020}}
	state.ManuscriptText = "Text without markers mentioning prior findings in passing detail."

	result, err := p.Process(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "Untitled (2020)", result.Citations[0].Text)
}

func TestProcess_TelemetryPopulated(t *testing.T) {
	store := cache.NewMemory()
	// Warm the counters so the run-scoped delta logic is exercised.
	_, _ = store.Get(context.Background(), "validation", "absent")

	p := testPipeline(Options{Store: store})
	result, err := p.Process(context.Background(), baseState())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Telemetry.Elapsed.Nanoseconds(), int64(0))
	assert.Zero(t, result.Telemetry.CacheHits, "pre-run counter activity is excluded")
	assert.Zero(t, result.Telemetry.CacheMisses)
}
