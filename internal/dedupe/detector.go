package dedupe

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/config"
	"github.com/sells-group/biblio-cli/internal/model"
)

// Detector groups references that represent the same work.
type Detector struct {
	titleThreshold    float64
	combinedThreshold float64
	authorThreshold   float64
}

// NewDetector creates a Detector with the given grouping thresholds.
func NewDetector(cfg config.DedupeConfig) *Detector {
	d := &Detector{
		titleThreshold:    cfg.TitleThreshold,
		combinedThreshold: cfg.CombinedTitleThreshold,
		authorThreshold:   cfg.AuthorThreshold,
	}
	if d.titleThreshold <= 0 {
		d.titleThreshold = 0.8
	}
	if d.combinedThreshold <= 0 {
		d.combinedThreshold = 0.6
	}
	if d.authorThreshold <= 0 {
		d.authorThreshold = 0.5
	}
	return d
}

// pairMatch records one above-threshold pair with its strongest signal.
type pairMatch struct {
	a, b       int
	similarity float64
	criteria   []model.MatchCriterion
}

// FindDuplicates returns transitive groups of references judged to be
// the same work. Grouping is symmetric: the pairwise comparison does
// not depend on argument order.
func (d *Detector) FindDuplicates(refs []model.Reference) []model.DuplicateGroup {
	if len(refs) < 2 {
		return nil
	}

	type indexed struct {
		idx     int
		titles  map[string]bool
		authors map[string]bool
	}

	// Blocking keys bound the pairwise comparisons; references with a
	// DOI are additionally indexed exactly.
	blocks := make(map[string][]indexed)
	byDOI := make(map[string][]int)
	for i, ref := range refs {
		entry := indexed{idx: i, titles: titleTokens(ref.Title), authors: authorTokens(ref.Authors)}
		blocks[blockingKey(ref.Title)] = append(blocks[blockingKey(ref.Title)], entry)
		// Keyed on the cleaned DOI so prefixed spellings of one
		// identifier still collide.
		if doi := model.CleanDOI(ref.DOI); doi != "" {
			byDOI[strings.ToLower(doi)] = append(byDOI[strings.ToLower(doi)], i)
		}
	}

	uf := newUnionFind(len(refs))
	matches := make(map[[2]int]*pairMatch)

	record := func(a, b int, sim float64, crit model.MatchCriterion) {
		if a > b {
			a, b = b, a
		}
		key := [2]int{a, b}
		if m, ok := matches[key]; ok {
			if sim > m.similarity {
				m.similarity = sim
			}
			m.criteria = appendCriterion(m.criteria, crit)
			return
		}
		matches[key] = &pairMatch{a: a, b: b, similarity: sim, criteria: []model.MatchCriterion{crit}}
		uf.union(a, b)
	}

	for _, idxs := range byDOI {
		for i := 1; i < len(idxs); i++ {
			record(idxs[0], idxs[i], 1.0, model.MatchExactDOI)
		}
	}

	for _, block := range blocks {
		for i := 0; i < len(block); i++ {
			for j := i + 1; j < len(block); j++ {
				a, b := block[i], block[j]
				titleSim := jaccard(a.titles, b.titles)
				if titleSim >= d.titleThreshold {
					record(a.idx, b.idx, titleSim, model.MatchTitleSimilarity)
					continue
				}
				if titleSim >= d.combinedThreshold {
					authorSim := jaccard(a.authors, b.authors)
					if authorSim >= d.authorThreshold {
						record(a.idx, b.idx, (titleSim+authorSim)/2, model.MatchTitleSimilarity)
						m := matches[orderedKey(a.idx, b.idx)]
						m.criteria = appendCriterion(m.criteria, model.MatchAuthorOverlap)
					}
				}
			}
		}
	}

	return d.buildGroups(refs, uf, matches)
}

func orderedKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func appendCriterion(list []model.MatchCriterion, c model.MatchCriterion) []model.MatchCriterion {
	for _, existing := range list {
		if existing == c {
			return list
		}
	}
	return append(list, c)
}

// buildGroups consolidates union-find components into DuplicateGroups.
func (d *Detector) buildGroups(refs []model.Reference, uf *unionFind, matches map[[2]int]*pairMatch) []model.DuplicateGroup {
	members := make(map[int][]int)
	for i := range refs {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	var groups []model.DuplicateGroup
	for _, idxs := range members {
		if len(idxs) < 2 {
			continue
		}
		sort.Ints(idxs)

		var group model.DuplicateGroup
		var simSum float64
		var simCount int
		for _, m := range matches {
			if uf.find(m.a) == uf.find(idxs[0]) {
				simSum += m.similarity
				simCount++
				for _, c := range m.criteria {
					group.Criteria = appendCriterion(group.Criteria, c)
				}
			}
		}
		if simCount > 0 {
			group.Similarity = simSum / float64(simCount)
		}

		// Exact-identifier or strong title agreement merges without
		// editorial review; weaker combined-signal groups do not.
		for _, c := range group.Criteria {
			if c == model.MatchExactDOI {
				group.AutoResolve = true
			}
		}
		if group.Similarity >= d.titleThreshold {
			group.AutoResolve = true
		}

		for _, i := range idxs {
			group.ReferenceIDs = append(group.ReferenceIDs, refs[i].ID)
		}
		group.PrimaryID = refs[d.electPrimary(refs, idxs)].ID
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].PrimaryID < groups[j].PrimaryID
	})

	if len(groups) > 0 {
		zap.L().Info("dedupe: grouped duplicates",
			zap.Int("references", len(refs)),
			zap.Int("groups", len(groups)),
		)
	}
	return groups
}

// electPrimary prefers a member with a DOI, then the most complete
// metadata, then the earliest created timestamp.
func (d *Detector) electPrimary(refs []model.Reference, idxs []int) int {
	best := idxs[0]
	for _, i := range idxs[1:] {
		if betterPrimary(refs[i], refs[best]) {
			best = i
		}
	}
	return best
}

func betterPrimary(a, b model.Reference) bool {
	if (a.DOI != "") != (b.DOI != "") {
		return a.DOI != ""
	}
	ca, cb := a.Completeness(), b.Completeness()
	if ca != cb {
		return ca > cb
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Merge collapses each group into its primary, unioning metadata
// field-by-field: the primary's non-empty value wins, empty fields fill
// from members, and the richest abstract is kept. Ungrouped references
// pass through unchanged, in input order.
func (d *Detector) Merge(refs []model.Reference, groups []model.DuplicateGroup) []model.Reference {
	byID := make(map[string]model.Reference, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}

	drop := make(map[string]bool)
	merged := make(map[string]model.Reference)
	for _, group := range groups {
		primary, ok := byID[group.PrimaryID]
		if !ok {
			continue
		}
		for _, id := range group.ReferenceIDs {
			if id == group.PrimaryID {
				continue
			}
			drop[id] = true
			if member, ok := byID[id]; ok {
				primary = mergeInto(primary, member)
			}
		}
		merged[group.PrimaryID] = primary
	}

	out := make([]model.Reference, 0, len(refs)-len(drop))
	for _, ref := range refs {
		if drop[ref.ID] {
			continue
		}
		if m, ok := merged[ref.ID]; ok {
			out = append(out, m)
			continue
		}
		out = append(out, ref)
	}
	return out
}

// mergeInto fills the primary's empty fields from the member and keeps
// the richer abstract text.
func mergeInto(primary, member model.Reference) model.Reference {
	if primary.Title == "" {
		primary.Title = member.Title
	}
	if len(primary.Authors) == 0 {
		primary.Authors = member.Authors
	}
	if primary.Year == 0 {
		primary.Year = member.Year
	}
	if primary.Journal == "" {
		primary.Journal = member.Journal
	}
	if primary.Volume == "" {
		primary.Volume = member.Volume
	}
	if primary.Issue == "" {
		primary.Issue = member.Issue
	}
	if primary.Pages == "" {
		primary.Pages = member.Pages
	}
	if primary.DOI == "" {
		primary.DOI = member.DOI
	}
	if primary.PMID == "" {
		primary.PMID = member.PMID
	}
	if primary.URL == "" {
		primary.URL = member.URL
	}
	if len(member.Abstract) > len(primary.Abstract) {
		primary.Abstract = member.Abstract
	}
	if len(primary.Keywords) == 0 {
		primary.Keywords = member.Keywords
	}
	if primary.CitationCount == 0 {
		primary.CitationCount = member.CitationCount
	}
	if primary.ImpactFactor == 0 {
		primary.ImpactFactor = member.ImpactFactor
	}
	if member.IsRetracted {
		primary.IsRetracted = true
	}
	return primary
}
