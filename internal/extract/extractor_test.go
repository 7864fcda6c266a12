package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biblio-cli/internal/model"
)

func TestExtractCitations_ExplicitMarkers(t *testing.T) {
	text := "Studies have shown that diabetes affects millions [1]. Later work confirmed the trend [2-4] across cohorts."

	needs := NewExtractor().ExtractCitations(text)

	var markers []string
	for _, n := range needs {
		if n.Explicit {
			markers = append(markers, n.Marker)
		}
	}
	assert.Contains(t, markers, "[1]")
	assert.Contains(t, markers, "[2-4]")

	for _, n := range needs {
		if n.Marker == "[1]" || n.Marker == "[2-4]" {
			assert.NotEqual(t, model.ClaimOther, n.Claim)
			assert.NotEqual(t, model.ClaimType(""), n.Claim)
		}
	}
}

func TestExtractCitations_MarkerVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single", "Diabetes is rising [12].", "[12]"},
		{"range", "As reported [3-7].", "[3-7]"},
		{"list", "Multiple sources agree [1,4,9].", "[1,4,9]"},
		{"citation needed", "This is disputed [citation needed].", "[citation needed]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			needs := NewExtractor().ExtractCitations(tt.text)
			require.NotEmpty(t, needs)
			found := false
			for _, n := range needs {
				if n.Marker == tt.want {
					found = true
				}
			}
			assert.True(t, found, "expected marker %q", tt.want)
		})
	}
}

func TestExtractCitations_ImplicitSuppressedNearExplicit(t *testing.T) {
	// The implicit phrase sits well inside the ±100 char window of [1].
	text := "Studies have shown that treatment works [1]."
	needs := NewExtractor().ExtractCitations(text)

	implicit := 0
	for _, n := range needs {
		if !n.Explicit {
			implicit++
		}
	}
	assert.Zero(t, implicit, "implicit phrase within 100 chars of a marker must not double-flag")
}

func TestExtractCitations_ImplicitDetectedWhenAlone(t *testing.T) {
	text := "Evidence suggests the intervention reduces mortality in older adults over long follow-up periods."
	needs := NewExtractor().ExtractCitations(text)

	require.Len(t, needs, 1)
	assert.False(t, needs[0].Explicit)
	assert.Equal(t, model.UrgencyMedium, needs[0].Urgency)
}

func TestExtractCitations_SectionDetection(t *testing.T) {
	text := `Introduction

Diabetes prevalence is rising [1].

Methods

Samples were processed using standard technique [2].

Discussion

The findings align with earlier reports and extend them to community settings over a multi-year horizon of follow-up. Evidence suggests broader applicability across populations and healthcare settings worldwide.`

	needs := NewExtractor().ExtractCitations(text)
	sections := make(map[string]model.Section)
	for _, n := range needs {
		if n.Marker != "" {
			sections[n.Marker] = n.Section
		} else {
			sections["implicit"] = n.Section
		}
	}

	assert.Equal(t, model.SectionIntroduction, sections["[1]"])
	assert.Equal(t, model.SectionMethods, sections["[2]"])
	assert.Equal(t, model.SectionDiscussion, sections["implicit"])
}

func TestExtractCitations_NoHeaderMeansUnknown(t *testing.T) {
	needs := NewExtractor().ExtractCitations("A bare claim with a marker [1].")
	require.NotEmpty(t, needs)
	assert.Equal(t, model.SectionUnknown, needs[0].Section)
}

func TestClassifyClaim(t *testing.T) {
	tests := []struct {
		context string
		want    model.ClaimType
	}{
		{"prevalence reached 12% among participants", model.ClaimStatisticalFact},
		{"a previous study found improved outcomes", model.ClaimPriorResearch},
		{"the assay technique was adapted from earlier work", model.ClaimMethodology},
		{"current guidelines recommend early screening", model.ClaimClinicalGuideline},
		{"sarcopenia is defined as progressive muscle loss", model.ClaimDefinition},
		{"the broader context remains poorly understood", model.ClaimBackgroundInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyClaim(tt.context), "context %q", tt.context)
	}
}

func TestExtractCitations_OrderedByPosition(t *testing.T) {
	text := "First claim [2]. Second claim [1]. According to recent studies, more research is needed on this topic in the coming years beyond current work."
	needs := NewExtractor().ExtractCitations(text)

	for i := 1; i < len(needs); i++ {
		assert.GreaterOrEqual(t, needs[i].Position, needs[i-1].Position)
	}
}
