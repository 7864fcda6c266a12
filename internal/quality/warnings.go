package quality

import (
	"context"
	"fmt"

	"github.com/sells-group/biblio-cli/internal/model"
)

// FlagProblematic scans references for typed quality warnings. Warnings
// are independent of the dimension scores. The context bounds link
// probes when a checker is configured.
func (a *Assessor) FlagProblematic(ctx context.Context, refs []model.Reference) []model.QualityWarning {
	var warnings []model.QualityWarning
	now := a.timeNow()

	for _, ref := range refs {
		if ref.IsRetracted {
			warnings = append(warnings, model.QualityWarning{
				ReferenceID: ref.ID,
				Type:        model.WarnRetracted,
				Severity:    model.SeverityCritical,
				Message:     fmt.Sprintf("%q has been retracted and must not be cited", ref.Title),
			})
		}
		if a.isPredatory(ref.Journal) {
			warnings = append(warnings, model.QualityWarning{
				ReferenceID: ref.ID,
				Type:        model.WarnPredatoryVenue,
				Severity:    model.SeverityHigh,
				Message:     fmt.Sprintf("venue %q appears on the predatory-journal list", ref.Journal),
			})
		}
		if age := ref.Age(now); age > 25 {
			warnings = append(warnings, model.QualityWarning{
				ReferenceID: ref.ID,
				Type:        model.WarnStale,
				Severity:    model.SeverityMedium,
				Message:     fmt.Sprintf("reference is %d years old", age),
			})
		}
		if (ref.IsPreprint || ref.Type == model.TypePreprint) && ref.Age(now) > 2 {
			warnings = append(warnings, model.QualityWarning{
				ReferenceID: ref.ID,
				Type:        model.WarnPreprintMisuse,
				Severity:    model.SeverityMedium,
				Message:     "preprint older than two years with no confirmed published version",
			})
		}
		if ref.Completeness() < 0.5 {
			warnings = append(warnings, model.QualityWarning{
				ReferenceID: ref.ID,
				Type:        model.WarnIncompleteMetadata,
				Severity:    model.SeverityLow,
				Message:     "bibliographic metadata is less than half complete",
				AutoFixable: true,
			})
		}
		if ref.URL != "" && a.links != nil && !a.links.Reachable(ctx, ref.URL) {
			warnings = append(warnings, model.QualityWarning{
				ReferenceID: ref.ID,
				Type:        model.WarnBrokenLink,
				Severity:    model.SeverityLow,
				Message:     fmt.Sprintf("url %s did not respond", ref.URL),
				AutoFixable: true,
			})
		}
	}
	return warnings
}
