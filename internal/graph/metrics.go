package graph

import "sort"

// ComputeTotals counts files, declarations and per-file import references.
func ComputeTotals(g *Graph) Totals {
	t := Totals{Languages: make(map[string]int)}
	if g == nil {
		return t
	}
	for _, f := range g.Files {
		t.Files++
		t.Classes += len(f.Classes)
		t.Functions += len(f.Functions)
		t.Imports += len(f.Imports)
		t.Languages[f.Lang]++
	}
	return t
}

// LanguageMix returns languages ordered by file count, then name.
func (t Totals) LanguageMix() []string {
	langs := make([]string, 0, len(t.Languages))
	for l := range t.Languages {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		if t.Languages[langs[i]] != t.Languages[langs[j]] {
			return t.Languages[langs[i]] > t.Languages[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}
