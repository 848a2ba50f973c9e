// Package policy decides which documentation sections a repository may have.
package policy

import (
	"regexp"
	"sort"
	"strings"
)

// Section titles, normalized.
const (
	Overview         = "overview"
	Architecture     = "system architecture"
	CoreFeatures     = "core features"
	DataFlow         = "data management/flow"
	Deployment       = "deployment/infrastructure"
	Extensibility    = "extensibility and customization"
	Frontend         = "frontend components"
	Backend          = "backend systems"
	ModelIntegration = "model integration"
	Examples         = "examples and notebooks"
)

var separatorRe = regexp.MustCompile(`[\s\-_]+`)

// NormalizeTitle folds case, whitespace, hyphens and underscores, and
// spells "&" as "and".
func NormalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = separatorRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", "and")
	return s
}

var displayTitles = map[string]string{
	Overview:         "Overview",
	Architecture:     "System Architecture",
	CoreFeatures:     "Core Features",
	DataFlow:         "Data Management/Flow",
	Deployment:       "Deployment/Infrastructure",
	Extensibility:    "Extensibility and Customization",
	Frontend:         "Frontend Components",
	Backend:          "Backend Systems",
	ModelIntegration: "Model Integration",
	Examples:         "Examples and Notebooks",
}

// DisplayTitle returns the canonical casing of a normalized title.
func DisplayTitle(norm string) string {
	if t, ok := displayTitles[norm]; ok {
		return t
	}
	return norm
}

var alwaysForbidden = []string{
	"text examples", "c++ examples", "python examples", "random scripts", "playground", "misc",
}

// Policy is the allow-list and deny-list of normalized section titles.
type Policy struct {
	Signals   Signals  `json:"signals"`
	Allowed   []string `json:"allowed"`
	Forbidden []string `json:"forbidden"`
}

// Derive computes the policy for a repository file set.
func Derive(paths []string) Policy {
	return FromSignals(DeriveSignals(paths))
}

// FromSignals applies the section rules to precomputed signals.
func FromSignals(s Signals) Policy {
	allowed := []string{Overview, Architecture, CoreFeatures, DataFlow, Deployment, Extensibility}
	var forbidden []string

	gate := func(on bool, title string) {
		if on {
			allowed = append(allowed, title)
		} else {
			forbidden = append(forbidden, title)
		}
	}
	gate(s.Frontend, Frontend)
	gate(s.BackendLike(), Backend)
	gate(s.Models, ModelIntegration)
	gate(s.ExamplesDir || s.Notebooks, Examples)
	if !(s.ExamplesDir || s.Notebooks) {
		forbidden = append(forbidden, "examples", "notebooks")
	}
	forbidden = append(forbidden, alwaysForbidden...)

	return Policy{
		Signals:   s,
		Allowed:   normalizedSet(allowed),
		Forbidden: normalizedSet(forbidden),
	}
}

// IsAllowed reports whether a section title may appear in the wiki.
func (p Policy) IsAllowed(title string) bool {
	return contains(p.Allowed, NormalizeTitle(title))
}

// IsForbidden reports whether a section title is explicitly denied.
func (p Policy) IsForbidden(title string) bool {
	return contains(p.Forbidden, NormalizeTitle(title))
}

// AllowedDisplay returns allowed titles in canonical casing.
func (p Policy) AllowedDisplay() []string {
	out := make([]string, len(p.Allowed))
	for i, t := range p.Allowed {
		out[i] = DisplayTitle(t)
	}
	return out
}

func normalizedSet(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		n := NormalizeTitle(t)
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func contains(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	return i < len(sorted) && sorted[i] == s
}
