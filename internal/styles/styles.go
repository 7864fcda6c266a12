package styles

import (
	"fmt"
	"strings"
)

// Author-name helpers. Input names are "Last, First" where available;
// bare "First Last" is handled by position.

func surname(name string) string {
	if i := strings.Index(name, ","); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func givenNames(name string) string {
	if i := strings.Index(name, ","); i >= 0 {
		return strings.TrimSpace(name[i+1:])
	}
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[:len(fields)-1], " ")
}

// initials renders given names as "J. M." (dotted) or "JM" (bare).
func initials(name string, dotted bool) string {
	var parts []string
	for _, g := range strings.Fields(givenNames(name)) {
		initial := strings.ToUpper(g[:1])
		if dotted {
			parts = append(parts, initial+".")
		} else {
			parts = append(parts, initial)
		}
	}
	if dotted {
		return strings.Join(parts, " ")
	}
	return strings.Join(parts, "")
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// joinNames joins a formatted author list with commas and a final
// conjunction ("&" or "and"); empty conjunction joins with commas only.
func joinNames(names []string, conj string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	if conj == "" {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:len(names)-1], ", ") + ", " + conj + " " + names[len(names)-1]
}

// truncateAuthors caps the list at max, appending "et al." when cut.
func truncateAuthors(names []string, max int) ([]string, bool) {
	if max > 0 && len(names) > max {
		return names[:max], true
	}
	return names, false
}

func volumeIssuePages(volume, issue, pages string) string {
	var b strings.Builder
	b.WriteString(volume)
	if issue != "" {
		fmt.Fprintf(&b, "(%s)", issue)
	}
	if pages != "" {
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(pages)
	}
	return b.String()
}

func doiSuffix(doi string) string {
	if doi == "" {
		return ""
	}
	return " doi:" + doi
}

func yearOr(year int, unknown string) string {
	if year == 0 {
		return unknown
	}
	return fmt.Sprintf("%d", year)
}

// apaStyle: Last, F. M., & Last, F. M. (Year). Title. Journal, Volume(Issue), Pages.
type apaStyle struct{}

func (apaStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if ini := initials(a, true); ini != "" {
			names = append(names, surname(a)+", "+ini)
		} else {
			names = append(names, surname(a))
		}
	}
	names, cut := truncateAuthors(names, 20)
	authorStr := joinNames(names, "&")
	if cut {
		authorStr += ", et al."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s). %s.", authorStr, yearOr(year, "n.d."), title)
	if journal != "" {
		fmt.Fprintf(&b, " %s", journal)
		if volume != "" {
			fmt.Fprintf(&b, ", %s", volume)
			if issue != "" {
				fmt.Fprintf(&b, "(%s)", issue)
			}
		}
		if pages != "" {
			fmt.Fprintf(&b, ", %s", pages)
		}
		b.WriteByte('.')
	}
	if doi != "" {
		fmt.Fprintf(&b, " https://doi.org/%s", doi)
	}
	return b.String()
}

// amaStyle: Last FM, Last FM. Title. Journal. Year;Volume(Issue):Pages.
type amaStyle struct{}

func (amaStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, strings.TrimSpace(surname(a)+" "+initials(a, false)))
	}
	names, cut := truncateAuthors(names, 6)
	authorStr := strings.Join(names, ", ")
	if cut {
		authorStr += ", et al"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s. %s. %s. %s", authorStr, title, journal, yearOr(year, "n.d."))
	if vip := volumeIssuePages(volume, issue, pages); vip != "" {
		fmt.Fprintf(&b, ";%s", vip)
	}
	b.WriteByte('.')
	b.WriteString(doiSuffix(doi))
	return b.String()
}

// vancouverStyle matches AMA's element order with a 6-author cap.
type vancouverStyle struct{}

func (vancouverStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, strings.TrimSpace(surname(a)+" "+initials(a, false)))
	}
	names, cut := truncateAuthors(names, 6)
	authorStr := strings.Join(names, ", ")
	if cut {
		authorStr += ", et al"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s. %s. %s. %s", authorStr, title, journal, yearOr(year, "n.d."))
	if vip := volumeIssuePages(volume, issue, pages); vip != "" {
		fmt.Fprintf(&b, ";%s", vip)
	}
	b.WriteByte('.')
	return b.String()
}

// harvardStyle: Last, F.M. and Last, F.M. (Year) 'Title', Journal, Volume(Issue), pp. Pages.
type harvardStyle struct{}

func (harvardStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if ini := initials(a, true); ini != "" {
			names = append(names, surname(a)+", "+strings.ReplaceAll(ini, ". ", "."))
		} else {
			names = append(names, surname(a))
		}
	}
	authorStr := joinNames(names, "and")

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) '%s', %s", authorStr, yearOr(year, "no date"), title, journal)
	if volume != "" {
		fmt.Fprintf(&b, ", %s", volume)
		if issue != "" {
			fmt.Fprintf(&b, "(%s)", issue)
		}
	}
	if pages != "" {
		fmt.Fprintf(&b, ", pp. %s", pages)
	}
	b.WriteByte('.')
	return b.String()
}

// chicagoStyle: Last, First, and First Last. "Title." Journal Volume, no. Issue (Year): Pages.
type chicagoStyle struct{}

func (chicagoStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for i, a := range authors {
		given := givenNames(a)
		switch {
		case i == 0 && given != "":
			names = append(names, surname(a)+", "+given)
		case given != "":
			names = append(names, given+" "+surname(a))
		default:
			names = append(names, surname(a))
		}
	}
	authorStr := joinNames(names, "and")

	var b strings.Builder
	fmt.Fprintf(&b, "%s. %q %s", authorStr, title+".", journal)
	if volume != "" {
		fmt.Fprintf(&b, " %s", volume)
	}
	if issue != "" {
		fmt.Fprintf(&b, ", no. %s", issue)
	}
	fmt.Fprintf(&b, " (%s)", yearOr(year, "n.d."))
	if pages != "" {
		fmt.Fprintf(&b, ": %s", pages)
	}
	b.WriteByte('.')
	return b.String()
}

// natureStyle: Last, F. M. et al. Title. Journal Volume, Pages (Year).
type natureStyle struct{}

func (natureStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if ini := initials(a, true); ini != "" {
			names = append(names, surname(a)+", "+ini)
		} else {
			names = append(names, surname(a))
		}
	}
	var authorStr string
	if len(names) > 5 {
		authorStr = names[0] + " et al."
	} else {
		authorStr = joinNames(names, "&")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s. %s", authorStr, title, journal)
	if volume != "" {
		fmt.Fprintf(&b, " %s", volume)
	}
	if pages != "" {
		fmt.Fprintf(&b, ", %s", pages)
	}
	fmt.Fprintf(&b, " (%s).", yearOr(year, "n.d."))
	return b.String()
}

// cellStyle: Last, F.M., and Last, F.M. (Year). Title. Journal Volume, Pages.
type cellStyle struct{}

func (cellStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if ini := initials(a, true); ini != "" {
			names = append(names, surname(a)+", "+strings.ReplaceAll(ini, ". ", "."))
		} else {
			names = append(names, surname(a))
		}
	}
	authorStr := joinNames(names, "and")

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s). %s. %s", authorStr, yearOr(year, "n.d."), title, journal)
	if volume != "" {
		fmt.Fprintf(&b, " %s", volume)
	}
	if pages != "" {
		fmt.Fprintf(&b, ", %s", pages)
	}
	b.WriteByte('.')
	return b.String()
}

// jamaStyle follows AMA with the DOI appended when present.
type jamaStyle struct{}

func (jamaStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	return amaStyle{}.FormatJournalArticle(authors, title, journal, year, volume, issue, pages, doi)
}

// mlaStyle: Last, First, and First Last. "Title." Journal, vol. V, no. I, Year, pp. Pages.
type mlaStyle struct{}

func (mlaStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for i, a := range authors {
		given := givenNames(a)
		switch {
		case i == 0 && given != "":
			names = append(names, surname(a)+", "+given)
		case given != "":
			names = append(names, given+" "+surname(a))
		default:
			names = append(names, surname(a))
		}
	}
	var authorStr string
	if len(names) > 2 {
		authorStr = names[0] + ", et al."
	} else {
		authorStr = joinNames(names, "and") + "."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %q %s", authorStr, title+".", journal)
	if volume != "" {
		fmt.Fprintf(&b, ", vol. %s", volume)
	}
	if issue != "" {
		fmt.Fprintf(&b, ", no. %s", issue)
	}
	fmt.Fprintf(&b, ", %s", yearOr(year, "n.d."))
	if pages != "" {
		fmt.Fprintf(&b, ", pp. %s", pages)
	}
	b.WriteByte('.')
	return b.String()
}

// ieeeStyle: F. M. Last, "Title," Journal, vol. V, no. I, pp. Pages, Year.
type ieeeStyle struct{}

func (ieeeStyle) FormatJournalArticle(authors []string, title, journal string, year int, volume, issue, pages, doi string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if ini := initials(a, true); ini != "" {
			names = append(names, ini+" "+surname(a))
		} else {
			names = append(names, surname(a))
		}
	}
	authorStr := joinNames(names, "and")

	var b strings.Builder
	fmt.Fprintf(&b, "%s, %q %s", authorStr, title+",", journal)
	if volume != "" {
		fmt.Fprintf(&b, ", vol. %s", volume)
	}
	if issue != "" {
		fmt.Fprintf(&b, ", no. %s", issue)
	}
	if pages != "" {
		fmt.Fprintf(&b, ", pp. %s", pages)
	}
	fmt.Fprintf(&b, ", %s.", yearOr(year, "n.d."))
	return b.String()
}
