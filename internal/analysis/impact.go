// Package analysis maps repository changes onto the wiki pages and evidence
// units they affect.
package analysis

import (
	"repowiki/internal/git"
	"repowiki/internal/knowledge"
	"repowiki/internal/wiki"
)

// ImpactReport lists what a set of changes touches.
type ImpactReport struct {
	// DirectPages cite at least one changed file.
	DirectPages []string
	// RelatedPages are reachable from a direct page through related_pages
	// but do not cite a changed file themselves.
	RelatedPages []string
	// AffectedUnits are symbol units whose line range overlaps a changed
	// line, plus the file unit of every changed file.
	AffectedUnits []string
}

// Analyzer performs impact analysis over a wiki and its evidence corpus.
type Analyzer struct {
	w     wiki.Structure
	units []knowledge.Unit
}

func NewAnalyzer(w wiki.Structure, units []knowledge.Unit) *Analyzer {
	return &Analyzer{w: w, units: units}
}

// AnalyzeImpact identifies the pages and units affected by changes. Page
// order follows the wiki.
func (a *Analyzer) AnalyzeImpact(changes []git.ChangedFile) *ImpactReport {
	report := &ImpactReport{
		DirectPages:   []string{},
		RelatedPages:  []string{},
		AffectedUnits: []string{},
	}

	byPath := make(map[string]git.ChangedFile, len(changes))
	for _, c := range changes {
		byPath[c.Path] = c
	}

	direct := make(map[string]bool)
	for _, p := range a.w.Pages {
		for _, f := range p.Files {
			if _, ok := byPath[f]; ok {
				direct[p.ID] = true
				break
			}
		}
	}

	related := make(map[string]bool)
	for _, p := range a.w.Pages {
		if !direct[p.ID] {
			continue
		}
		for _, r := range p.Related {
			if !direct[r] {
				related[r] = true
			}
		}
	}

	for _, p := range a.w.Pages {
		switch {
		case direct[p.ID]:
			report.DirectPages = append(report.DirectPages, p.ID)
		case related[p.ID]:
			report.RelatedPages = append(report.RelatedPages, p.ID)
		}
	}

	for _, u := range a.units {
		c, ok := byPath[u.Path]
		if !ok {
			continue
		}
		if u.Level == knowledge.LevelFile || c.Deleted || isAffected(u, c.ChangedLines) {
			report.AffectedUnits = append(report.AffectedUnits, u.ID)
		}
	}

	return report
}

// PagesCiting returns the ids of pages that cite any of paths, in wiki order.
func PagesCiting(w wiki.Structure, paths []string) []string {
	changes := make([]git.ChangedFile, len(paths))
	for i, p := range paths {
		changes[i] = git.ChangedFile{Path: p}
	}
	return NewAnalyzer(w, nil).AnalyzeImpact(changes).DirectPages
}

func isAffected(u knowledge.Unit, lines []int) bool {
	for _, line := range lines {
		if line >= u.StartLine && line <= u.EndLine {
			return true
		}
	}
	return false
}
