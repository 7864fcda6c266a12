package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biblio-cli/internal/config"
	"github.com/sells-group/biblio-cli/internal/model"
)

func testDetector() *Detector {
	return NewDetector(config.DedupeConfig{
		TitleThreshold:         0.8,
		CombinedTitleThreshold: 0.6,
		AuthorThreshold:        0.5,
	})
}

func TestFindDuplicates_NearIdenticalTitles(t *testing.T) {
	refs := []model.Reference{
		{ID: "a", Title: "COVID-19 and Diabetes", Authors: []string{"Smith, J.", "Doe, A."}, Year: 2023, Journal: "Med J"},
		{ID: "b", Title: "COVID-19 and diabetes: A review", Authors: []string{"Smith, John", "Doe, Alice"}, Year: 2023, Journal: "Med J"},
	}

	groups := testDetector().FindDuplicates(refs)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, groups[0].ReferenceIDs)
}

func TestFindDuplicates_ExactDOI(t *testing.T) {
	refs := []model.Reference{
		{ID: "a", Title: "Completely different title one", DOI: "10.1234/same"},
		{ID: "b", Title: "Another unrelated phrasing here", DOI: "10.1234/same"},
	}

	groups := testDetector().FindDuplicates(refs)
	require.Len(t, groups, 1)
	assert.Contains(t, groups[0].Criteria, model.MatchExactDOI)
	assert.True(t, groups[0].AutoResolve)
}

func TestFindDuplicates_PrefixedDOISpellings(t *testing.T) {
	refs := []model.Reference{
		{ID: "a", Title: "Completely different title one", DOI: "10.9999/same.1"},
		{ID: "b", Title: "Another unrelated phrasing here", DOI: "https://doi.org/10.9999/same.1"},
	}

	groups := testDetector().FindDuplicates(refs)
	require.Len(t, groups, 1, "URL-prefixed and bare spellings identify the same work")
	assert.ElementsMatch(t, []string{"a", "b"}, groups[0].ReferenceIDs)
	assert.Contains(t, groups[0].Criteria, model.MatchExactDOI)
}

func TestFindDuplicates_Symmetric(t *testing.T) {
	a := model.Reference{ID: "a", Title: "Machine learning in clinical genomics", Authors: []string{"Lee, K."}}
	b := model.Reference{ID: "b", Title: "Machine learning in clinical genomics applications", Authors: []string{"Lee, Karen"}}

	forward := testDetector().FindDuplicates([]model.Reference{a, b})
	backward := testDetector().FindDuplicates([]model.Reference{b, a})

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.ElementsMatch(t, forward[0].ReferenceIDs, backward[0].ReferenceIDs)
}

func TestFindDuplicates_Transitive(t *testing.T) {
	refs := []model.Reference{
		{ID: "a", Title: "Gut microbiome composition in early infancy", DOI: "10.1/a"},
		{ID: "b", Title: "Gut microbiome composition in early infancy", DOI: "10.1/a"},
		{ID: "c", Title: "Gut microbiome composition in early infancy", DOI: "10.1/c"},
	}

	groups := testDetector().FindDuplicates(refs)
	require.Len(t, groups, 1, "a~b (DOI) and b~c (title) must land a, b, c in one group")
	assert.Len(t, groups[0].ReferenceIDs, 3)
}

func TestFindDuplicates_DistinctStayApart(t *testing.T) {
	refs := []model.Reference{
		{ID: "a", Title: "Sleep deprivation and cardiovascular risk", Authors: []string{"Ng, P."}},
		{ID: "b", Title: "Soil nitrogen cycling in boreal forests", Authors: []string{"Ivanov, D."}},
	}
	assert.Empty(t, testDetector().FindDuplicates(refs))
}

func TestElectPrimary_PrefersDOIThenCompleteness(t *testing.T) {
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	refs := []model.Reference{
		{ID: "sparse", Title: "Statin therapy outcomes in elderly patients", CreatedAt: old},
		{ID: "withdoi", Title: "Statin therapy outcomes in elderly patients", DOI: "10.1/x",
			Authors: []string{"Kim, S."}, Year: 2021, CreatedAt: old.Add(time.Hour)},
	}

	groups := testDetector().FindDuplicates(refs)
	require.Len(t, groups, 1)
	assert.Equal(t, "withdoi", groups[0].PrimaryID)
}

func TestMerge_FillsEmptyFieldsKeepsRicherAbstract(t *testing.T) {
	refs := []model.Reference{
		{ID: "p", Title: "Antibiotic resistance surveillance in Europe", DOI: "10.1/p", Abstract: "short"},
		{ID: "m", Title: "Antibiotic resistance surveillance in Europe",
			Journal: "Lancet", Pages: "10-20", Abstract: "a considerably longer abstract body"},
	}
	d := testDetector()
	groups := d.FindDuplicates(refs)
	require.Len(t, groups, 1)
	require.Equal(t, "p", groups[0].PrimaryID)

	merged := d.Merge(refs, groups)
	require.Len(t, merged, 1)
	assert.Equal(t, "p", merged[0].ID)
	assert.Equal(t, "Lancet", merged[0].Journal, "empty primary field fills from member")
	assert.Equal(t, "10.1/p", merged[0].DOI, "primary's non-empty value wins")
	assert.Equal(t, "a considerably longer abstract body", merged[0].Abstract)
}

func TestNormalizeAuthor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith, J.", "smith j"},
		{"Smith, John", "smith j"},
		{"John Smith", "smith j"},
		{"Müller, K.", "muller k"},
		{"Plato", "plato"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeAuthor(tt.in), "input %q", tt.in)
	}
}

func TestBlockingKey(t *testing.T) {
	assert.Equal(t,
		blockingKey("COVID-19 and Diabetes: A Review"),
		blockingKey("covid 19 and diabetes outcomes"),
		"blocking key uses the first four normalized tokens")
}
