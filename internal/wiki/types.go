// Package wiki holds the documentation tree and the pure transformations
// that merge, prune and renumber it.
package wiki

import (
	"fmt"
	"strings"
)

// Importance levels of a page.
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

// Section groups pages under one title.
type Section struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	PageRefs    []string `json:"page_refs"`
	SectionRefs []string `json:"section_refs"`
}

// Page is one documentation page.
type Page struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Importance  string   `json:"importance"`
	Files       []string `json:"relevant_files"`
	Related     []string `json:"related_pages"`
	Parent      string   `json:"parent_section"`
}

// Structure is the arena of sections and pages. Transformations return a
// new Structure and never modify their input.
type Structure struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Sections    []Section `json:"sections"`
	Pages       []Page    `json:"pages"`
}

// PartialPage is a page proposed for one shard.
type PartialPage struct {
	ID          string
	Title       string
	Description string
	Importance  string
	Files       []string
	Related     []string
}

// PartialSection is a section proposed for one shard. Ids are
// shard-namespaced.
type PartialSection struct {
	ID          string
	Title       string
	Pages       []PartialPage
	SectionRefs []string
}

// Partial is the parsed generation output for one shard.
type Partial struct {
	Shard    string
	Sections []PartialSection
}

// NamespaceID prefixes a shard-local id.
func NamespaceID(shard, local string) string {
	return shard + "::" + local
}

// SectionID and PageID format final identifiers.
func SectionID(n int) string { return fmt.Sprintf("section-%d", n) }
func PageID(n int) string    { return fmt.Sprintf("page-%d", n) }

// NormalizeImportance maps free text onto high, medium or low.
func NormalizeImportance(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ImportanceHigh:
		return ImportanceHigh
	case ImportanceLow:
		return ImportanceLow
	default:
		return ImportanceMedium
	}
}

// Clone returns a deep copy.
func (s Structure) Clone() Structure {
	out := Structure{Title: s.Title, Description: s.Description}
	out.Sections = make([]Section, len(s.Sections))
	for i, sec := range s.Sections {
		sec.PageRefs = cloneStrings(sec.PageRefs)
		sec.SectionRefs = cloneStrings(sec.SectionRefs)
		out.Sections[i] = sec
	}
	out.Pages = make([]Page, len(s.Pages))
	for i, p := range s.Pages {
		p.Files = cloneStrings(p.Files)
		p.Related = cloneStrings(p.Related)
		out.Pages[i] = p
	}
	return out
}

// Section returns the section with id.
func (s Structure) Section(id string) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return Section{}, false
}

// Page returns the page with id.
func (s Structure) Page(id string) (Page, bool) {
	for _, p := range s.Pages {
		if p.ID == id {
			return p, true
		}
	}
	return Page{}, false
}

// PageOrder lists page ids in reading order: each section's page refs in
// section order, then pages no section references.
func (s Structure) PageOrder() []string {
	seen := make(map[string]bool, len(s.Pages))
	known := make(map[string]bool, len(s.Pages))
	for _, p := range s.Pages {
		known[p.ID] = true
	}
	var order []string
	for _, sec := range s.Sections {
		for _, ref := range sec.PageRefs {
			if known[ref] && !seen[ref] {
				seen[ref] = true
				order = append(order, ref)
			}
		}
	}
	for _, p := range s.Pages {
		if !seen[p.ID] {
			seen[p.ID] = true
			order = append(order, p.ID)
		}
	}
	return order
}

// Compose sets the wiki title and description when they are empty.
func Compose(s Structure, ownerRepo, description string) Structure {
	out := s.Clone()
	if strings.TrimSpace(out.Title) == "" {
		name := ownerRepo
		if name == "" {
			name = "repository"
		}
		out.Title = "Wiki – " + name
	}
	if strings.TrimSpace(out.Description) == "" {
		out.Description = description
	}
	if strings.TrimSpace(out.Description) == "" {
		out.Description = "Auto-generated wiki structure."
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}
