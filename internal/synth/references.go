package synth

import (
	"regexp"
	"strings"
)

// CitedPaths returns the evidence paths md mentions: inline code spans
// first in document order, then plain-text mentions in evidence order.
func CitedPaths(md string, evidence []string) []string {
	valid := make(map[string]bool, len(evidence))
	for _, p := range evidence {
		valid[p] = true
	}
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if valid[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, c := range codeSpans(md) {
		add(strings.TrimPrefix(c, "/"))
	}
	for _, p := range evidence {
		if strings.Contains(md, p) {
			add(p)
		}
	}
	return out
}

// EnforceReferences rewrites the "## References" section of md so it lists
// only evidence paths: the ones the page already cites, topped up from the
// evidence order to minRefs and capped at maxRefs. A page with no evidence
// loses the section.
func EnforceReferences(md string, evidence []string, minRefs, maxRefs int) string {
	refs := CitedPaths(md, evidence)
	for _, p := range evidence {
		if len(refs) >= minRefs {
			break
		}
		if !containsString(refs, p) {
			refs = append(refs, p)
		}
	}
	if maxRefs > 0 && len(refs) > maxRefs {
		refs = refs[:maxRefs]
	}

	body := md
	if s, ok := headingSection(md, "References"); ok {
		body = md[:s.start] + md[s.end:]
	}
	body = strings.TrimRight(body, "\n")
	if len(refs) == 0 {
		return body + "\n"
	}

	var sb strings.Builder
	sb.WriteString(body)
	sb.WriteString("\n\n## References\n\n")
	for _, p := range refs {
		sb.WriteString("- `" + p + "`\n")
	}
	return sb.String()
}

var codeRef = regexp.MustCompile("(\\[?)`([^`\\n]+)`")

// Linkify turns `path` entries of the References section into links under
// base. An empty base leaves md unchanged.
func Linkify(md, base string) string {
	if base == "" {
		return md
	}
	s, ok := headingSection(md, "References")
	if !ok {
		return md
	}
	section := codeRef.ReplaceAllStringFunc(md[s.start:s.end], func(m string) string {
		sub := codeRef.FindStringSubmatch(m)
		if sub[1] == "[" {
			return m
		}
		p := strings.TrimSpace(sub[2])
		return "[`" + p + "`](" + base + strings.TrimPrefix(p, "/") + ")"
	})
	return md[:s.start] + section + md[s.end:]
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
