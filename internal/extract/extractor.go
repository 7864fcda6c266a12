// Package extract scans manuscript text for citation markers and
// un-cited claims, and matches them against candidate references.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/biblio-cli/internal/model"
)

// implicitWindow suppresses implicit needs near an explicit marker.
const implicitWindow = 100

// Explicit marker patterns: [n], [n-m], [n,m,...], parenthesized numeric
// equivalents, and literal "citation needed".
var (
	bracketMarker  = regexp.MustCompile(`\[(\d+(?:\s*[-,]\s*\d+)*)\]`)
	parenMarker    = regexp.MustCompile(`\((\d+(?:\s*[-,]\s*\d+)*)\)`)
	citationNeeded = regexp.MustCompile(`(?i)\[?citation needed\]?`)
)

// Implicit-claim phrases that flag an un-cited assertion.
var implicitPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)studies have shown`),
	regexp.MustCompile(`(?i)evidence suggests`),
	regexp.MustCompile(`(?i)according to recent studies`),
	regexp.MustCompile(`(?i)research (?:has )?(?:shown|demonstrated|indicates)`),
	regexp.MustCompile(`(?i)it is (?:well[- ])?known that`),
	regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*%[^.]{0,60}\b(?:patients|subjects|participants)\b`),
}

var sectionHeaders = []struct {
	pattern *regexp.Regexp
	section model.Section
}{
	{regexp.MustCompile(`(?im)^#*\s*(?:\d+\.?\s*)?introduction\b`), model.SectionIntroduction},
	{regexp.MustCompile(`(?im)^#*\s*(?:\d+\.?\s*)?(?:methods|materials and methods)\b`), model.SectionMethods},
	{regexp.MustCompile(`(?im)^#*\s*(?:\d+\.?\s*)?results\b`), model.SectionResults},
	{regexp.MustCompile(`(?im)^#*\s*(?:\d+\.?\s*)?discussion\b`), model.SectionDiscussion},
	{regexp.MustCompile(`(?im)^#*\s*(?:\d+\.?\s*)?conclusions?\b`), model.SectionConclusion},
}

// Extractor locates citation needs in manuscript text.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractCitations returns all explicit markers and un-flagged implicit
// claims found in the manuscript, ordered by position.
func (e *Extractor) ExtractCitations(text string) []model.CitationNeed {
	sections := sectionIndex(text)

	var needs []model.CitationNeed
	explicitPositions := make([]int, 0)

	addExplicit := func(start, end int, marker string) {
		needs = append(needs, model.CitationNeed{
			ID:       fmt.Sprintf("need-%d", len(needs)+1),
			Snippet:  snippet(text, start, end),
			Context:  contextAround(text, start),
			Position: start,
			Section:  sections.at(start),
			Claim:    classifyClaim(contextAround(text, start)),
			Urgency:  model.UrgencyLow, // already cited, needs resolution only
			Explicit: true,
			Marker:   marker,
		})
		explicitPositions = append(explicitPositions, start)
	}

	for _, loc := range bracketMarker.FindAllStringIndex(text, -1) {
		addExplicit(loc[0], loc[1], text[loc[0]:loc[1]])
	}
	for _, loc := range parenMarker.FindAllStringIndex(text, -1) {
		// Parenthesized numbers are ambiguous; only treat as markers when
		// adjacent to sentence-final punctuation like bracket markers are.
		if looksLikeCitation(text, loc[0], loc[1]) {
			addExplicit(loc[0], loc[1], text[loc[0]:loc[1]])
		}
	}
	for _, loc := range citationNeeded.FindAllStringIndex(text, -1) {
		needs = append(needs, model.CitationNeed{
			ID:       fmt.Sprintf("need-%d", len(needs)+1),
			Snippet:  snippet(text, loc[0], loc[1]),
			Context:  contextAround(text, loc[0]),
			Position: loc[0],
			Section:  sections.at(loc[0]),
			Claim:    classifyClaim(contextAround(text, loc[0])),
			Urgency:  model.UrgencyHigh,
			Explicit: true,
			Marker:   text[loc[0]:loc[1]],
		})
		explicitPositions = append(explicitPositions, loc[0])
	}

	for _, re := range implicitPhrases {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if nearExplicit(explicitPositions, loc[0]) {
				continue
			}
			ctx := contextAround(text, loc[0])
			needs = append(needs, model.CitationNeed{
				ID:       fmt.Sprintf("need-%d", len(needs)+1),
				Snippet:  snippet(text, loc[0], loc[1]),
				Context:  ctx,
				Position: loc[0],
				Section:  sections.at(loc[0]),
				Claim:    classifyClaim(ctx),
				Urgency:  model.UrgencyMedium,
				Explicit: false,
			})
		}
	}

	sort.SliceStable(needs, func(i, j int) bool {
		return needs[i].Position < needs[j].Position
	})
	for i := range needs {
		needs[i].ID = fmt.Sprintf("need-%d", i+1)
	}
	return needs
}

// looksLikeCitation filters parenthesized numbers: a citation sits right
// before sentence punctuation or at a clause boundary, not inside prose
// like "(3) groups".
func looksLikeCitation(text string, start, end int) bool {
	rest := strings.TrimLeft(text[end:], " ")
	if rest == "" {
		return true
	}
	switch rest[0] {
	case '.', ',', ';', ':':
		return true
	}
	return false
}

func nearExplicit(positions []int, pos int) bool {
	for _, p := range positions {
		if abs(p-pos) <= implicitWindow {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// snippet returns the sentence-ish region containing the match.
func snippet(text string, start, end int) string {
	lo := start - 60
	if lo < 0 {
		lo = 0
	}
	hi := end + 20
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

// contextAround returns ±150 characters of surrounding text.
func contextAround(text string, pos int) string {
	lo := pos - 150
	if lo < 0 {
		lo = 0
	}
	hi := pos + 150
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

// sectionMarks records header positions for nearest-preceding lookup.
type sectionMarks struct {
	positions []int
	sections  []model.Section
}

func sectionIndex(text string) sectionMarks {
	var marks sectionMarks
	for _, h := range sectionHeaders {
		for _, loc := range h.pattern.FindAllStringIndex(text, -1) {
			marks.positions = append(marks.positions, loc[0])
			marks.sections = append(marks.sections, h.section)
		}
	}
	sort.Sort(&marks)
	return marks
}

func (m *sectionMarks) Len() int      { return len(m.positions) }
func (m *sectionMarks) Swap(i, j int) {
	m.positions[i], m.positions[j] = m.positions[j], m.positions[i]
	m.sections[i], m.sections[j] = m.sections[j], m.sections[i]
}
func (m *sectionMarks) Less(i, j int) bool { return m.positions[i] < m.positions[j] }

// at returns the section of the nearest preceding header, or unknown.
func (m *sectionMarks) at(pos int) model.Section {
	section := model.SectionUnknown
	for i, p := range m.positions {
		if p > pos {
			break
		}
		section = m.sections[i]
	}
	return section
}

// Claim classification is first-match: statistical tokens, then study
// language, methodology, guidelines, definitions, background.
var claimRules = []struct {
	pattern *regexp.Regexp
	claim   model.ClaimType
}{
	{regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*%|prevalence|incidence|odds ratio|confidence interval|statistically`), model.ClaimStatisticalFact},
	{regexp.MustCompile(`(?i)\b(?:study|studies|found|showed|demonstrated|reported)\b`), model.ClaimPriorResearch},
	{regexp.MustCompile(`(?i)\b(?:method|procedure|technique|protocol was|assay)\b`), model.ClaimMethodology},
	{regexp.MustCompile(`(?i)\b(?:guideline|recommendation|protocol)s?\b`), model.ClaimClinicalGuideline},
	{regexp.MustCompile(`(?i)\bdefined as\b`), model.ClaimDefinition},
}

func classifyClaim(context string) model.ClaimType {
	for _, rule := range claimRules {
		if rule.pattern.MatchString(context) {
			return rule.claim
		}
	}
	return model.ClaimBackgroundInfo
}
