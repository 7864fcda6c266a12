// Package styles renders references into citation styles and assembles
// bibliographies.
package styles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/model"
)

// ErrUnsupportedStyle rejects styles outside the supported set. This is
// an input validation failure, not a per-reference one.
var ErrUnsupportedStyle = eris.New("styles: unsupported citation style")

// Formatter renders one journal article in one style. Implementations
// must be pure so bibliography output is deterministic.
type Formatter interface {
	FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string
}

// registry maps style tags to formatters.
var registry = map[model.CitationStyle]Formatter{
	model.StyleAPA:       apaStyle{},
	model.StyleAMA:       amaStyle{},
	model.StyleVancouver: vancouverStyle{},
	model.StyleHarvard:   harvardStyle{},
	model.StyleChicago:   chicagoStyle{},
	model.StyleNature:    natureStyle{},
	model.StyleCell:      cellStyle{},
	model.StyleJAMA:      jamaStyle{},
	model.StyleMLA:       mlaStyle{},
	model.StyleIEEE:      ieeeStyle{},
}

// numberedStyles assign in-text markers by first-appearance order and
// render the bibliography numerically.
var numberedStyles = map[model.CitationStyle]bool{
	model.StyleAMA:       true,
	model.StyleVancouver: true,
	model.StyleNature:    true,
	model.StyleJAMA:      true,
	model.StyleIEEE:      true,
}

// Supported reports whether the style tag is known.
func Supported(style model.CitationStyle) bool {
	_, ok := registry[style]
	return ok
}

// IsNumbered reports whether the style uses numeric in-text markers.
func IsNumbered(style model.CitationStyle) bool {
	return numberedStyles[style]
}

// Format renders every reference in the given style. A failure on one
// reference degrades to a "Title (Year)" fallback rather than aborting
// the batch. References arrive in first-appearance order; numbered
// styles assign markers from that order.
func Format(refs []model.Reference, style model.CitationStyle) ([]model.Citation, error) {
	formatter, ok := registry[style]
	if !ok {
		return nil, eris.Wrapf(ErrUnsupportedStyle, "%q", style)
	}

	citations := make([]model.Citation, 0, len(refs))
	for i, ref := range refs {
		citation := model.Citation{
			ReferenceID:  ref.ID,
			Style:        style,
			Completeness: ref.Completeness(),
			IsComplete:   ref.HasRequiredFields(),
		}

		text := safeFormat(formatter, ref)
		if text == "" {
			text = fallbackCitation(ref)
			citation.StyleCompliant = false
			zap.L().Warn("styles: degraded to fallback citation",
				zap.String("reference_id", ref.ID),
				zap.String("style", string(style)),
			)
		} else {
			citation.StyleCompliant = true
		}
		citation.Text = text

		if numberedStyles[style] {
			citation.Markers = []string{fmt.Sprintf("[%d]", i+1)}
		} else {
			citation.Markers = []string{authorDateMarker(ref)}
		}
		citations = append(citations, citation)
	}
	return citations, nil
}

// safeFormat guards against a panicking formatter; the caller turns an
// empty result into the fallback citation.
func safeFormat(f Formatter, ref model.Reference) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	if !ref.HasRequiredFields() {
		// Render what exists anyway; completeness flags carry the caveat.
		if ref.Title == "" {
			return ""
		}
	}
	return f.FormatJournalArticle(ref.Authors, ref.Title, ref.Journal, ref.Year, ref.Volume, ref.Issue, ref.Pages, ref.DOI)
}

// fallbackCitation is the degraded rendering used when a formatter fails.
func fallbackCitation(ref model.Reference) string {
	title := ref.Title
	if title == "" {
		title = "Untitled"
	}
	if ref.Year != 0 {
		return fmt.Sprintf("%s (%d)", title, ref.Year)
	}
	return fmt.Sprintf("%s (n.d.)", title)
}

// authorDateMarker builds the in-text marker for author-date styles,
// e.g. "(Smith et al., 2023)".
func authorDateMarker(ref model.Reference) string {
	year := "n.d."
	if ref.Year != 0 {
		year = fmt.Sprintf("%d", ref.Year)
	}
	switch len(ref.Authors) {
	case 0:
		return fmt.Sprintf("(%s, %s)", firstWord(ref.Title), year)
	case 1:
		return fmt.Sprintf("(%s, %s)", surname(ref.Authors[0]), year)
	case 2:
		return fmt.Sprintf("(%s & %s, %s)", surname(ref.Authors[0]), surname(ref.Authors[1]), year)
	default:
		return fmt.Sprintf("(%s et al., %s)", surname(ref.Authors[0]), year)
	}
}

// BuildBibliography renders the citation list as one string: numbered
// styles in marker order with numeric prefixes, author-date styles
// alphabetically by first author surname.
func BuildBibliography(citations []model.Citation, refs []model.Reference, style model.CitationStyle) string {
	if len(citations) == 0 {
		return ""
	}

	byID := make(map[string]model.Reference, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}

	ordered := make([]model.Citation, len(citations))
	copy(ordered, citations)

	if !numberedStyles[style] {
		sort.SliceStable(ordered, func(i, j int) bool {
			return sortKey(byID[ordered[i].ReferenceID]) < sortKey(byID[ordered[j].ReferenceID])
		})
	}

	var b strings.Builder
	for i, c := range ordered {
		if numberedStyles[style] {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c.Text)
		} else {
			b.WriteString(c.Text)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortKey(ref model.Reference) string {
	if len(ref.Authors) > 0 {
		return strings.ToLower(surname(ref.Authors[0]))
	}
	return strings.ToLower(ref.Title)
}

// CreateCitationMap links each need's in-text marker to the top-ranked
// candidate's reference ID. Needs without candidates are skipped; the
// pipeline reports them as missing citations.
func CreateCitationMap(needs []model.CitationNeed, citations []model.Citation) map[string]string {
	cited := make(map[string]bool, len(citations))
	for _, c := range citations {
		cited[c.ReferenceID] = true
	}

	citationMap := make(map[string]string)
	for _, need := range needs {
		if need.Marker == "" {
			continue
		}
		for _, id := range need.Candidates {
			if cited[id] {
				citationMap[need.Marker] = id
				break
			}
		}
	}
	return citationMap
}

// StyleCompliance returns the fraction of citations that rendered
// without degradation.
func StyleCompliance(citations []model.Citation) float64 {
	if len(citations) == 0 {
		return 1.0
	}
	compliant := 0
	for _, c := range citations {
		if c.StyleCompliant {
			compliant++
		}
	}
	return float64(compliant) / float64(len(citations))
}
