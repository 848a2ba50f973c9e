package wiki

import (
	"sort"

	"repowiki/internal/policy"
)

type mergeGroup struct {
	key         string
	title       string
	tempIDs     []string // shard-namespaced section ids folded into this group
	sectionRefs []string // shard-namespaced section refs
	pages       []int    // indexes into the page pool
}

type poolPage struct {
	tempID string
	page   PartialPage
	group  string
}

// Merge folds shard partials into one structure. Sections are grouped by
// normalized title (first title seen wins); pages with the same normalized
// title inside a group are folded together. Section ids follow group order,
// page ids follow group order then page order. References that cannot be
// resolved are kept verbatim for PruneAndRenumber to discard.
func Merge(partials []Partial) Structure {
	var groups []*mergeGroup
	byKey := make(map[string]*mergeGroup)
	sectionGroup := make(map[string]string) // temp section id -> group key

	var pool []poolPage
	pageAlias := make(map[string]int) // temp page id -> pool index
	titleIndex := make(map[string]int)

	for _, part := range partials {
		for _, sec := range part.Sections {
			if sec.Title == "" {
				continue
			}
			key := policy.NormalizeTitle(sec.Title)
			g, ok := byKey[key]
			if !ok {
				g = &mergeGroup{key: key, title: sec.Title}
				byKey[key] = g
				groups = append(groups, g)
			}
			g.tempIDs = append(g.tempIDs, sec.ID)
			if _, seen := sectionGroup[sec.ID]; !seen {
				sectionGroup[sec.ID] = key
			}
			g.sectionRefs = append(g.sectionRefs, sec.SectionRefs...)

			for _, page := range sec.Pages {
				if page.Title == "" {
					continue
				}
				dedupeKey := key + "\x00" + policy.NormalizeTitle(page.Title)
				if idx, dup := titleIndex[dedupeKey]; dup {
					existing := &pool[idx].page
					existing.Files = append(existing.Files, page.Files...)
					existing.Related = append(existing.Related, page.Related...)
					if _, aliased := pageAlias[page.ID]; !aliased {
						pageAlias[page.ID] = idx
					}
					continue
				}
				idx := len(pool)
				pool = append(pool, poolPage{tempID: page.ID, page: page, group: key})
				titleIndex[dedupeKey] = idx
				if _, aliased := pageAlias[page.ID]; !aliased {
					pageAlias[page.ID] = idx
				}
				g.pages = append(g.pages, idx)
			}
		}
	}

	newSection := make(map[string]string, len(groups))
	for i, g := range groups {
		newSection[g.key] = SectionID(i + 1)
	}

	newPageByPool := make([]string, len(pool))
	var order []int
	for _, g := range groups {
		order = append(order, g.pages...)
	}
	for n, idx := range order {
		newPageByPool[idx] = PageID(n + 1)
	}

	resolvePage := func(temp string) string {
		if idx, ok := pageAlias[temp]; ok {
			return newPageByPool[idx]
		}
		return temp
	}
	resolveSection := func(temp string) string {
		if key, ok := sectionGroup[temp]; ok {
			return newSection[key]
		}
		return temp
	}

	out := Structure{
		Sections: make([]Section, 0, len(groups)),
		Pages:    make([]Page, 0, len(order)),
	}
	for _, g := range groups {
		id := newSection[g.key]
		sec := Section{ID: id, Title: g.title, PageRefs: []string{}, SectionRefs: []string{}}
		for _, idx := range g.pages {
			sec.PageRefs = append(sec.PageRefs, newPageByPool[idx])
		}
		seen := map[string]bool{id: true}
		for _, ref := range g.sectionRefs {
			r := resolveSection(ref)
			if !seen[r] {
				seen[r] = true
				sec.SectionRefs = append(sec.SectionRefs, r)
			}
		}
		out.Sections = append(out.Sections, sec)
	}

	for _, idx := range order {
		pp := pool[idx]
		id := newPageByPool[idx]
		page := Page{
			ID:          id,
			Title:       pp.page.Title,
			Description: pp.page.Description,
			Importance:  NormalizeImportance(pp.page.Importance),
			Files:       sortedUnique(pp.page.Files),
			Related:     []string{},
			Parent:      newSection[pp.group],
		}
		seen := map[string]bool{id: true}
		for _, r := range pp.page.Related {
			resolved := resolvePage(r)
			if !seen[resolved] {
				seen[resolved] = true
				page.Related = append(page.Related, resolved)
			}
		}
		out.Pages = append(out.Pages, page)
	}
	return out
}

func sortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
