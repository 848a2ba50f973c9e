package knowledge

import (
	"fmt"
	"path"
	"strings"

	"repowiki/internal/extractor"
)

// SummaryPrompt asks for a short search-oriented description of u.
func SummaryPrompt(u Unit) string {
	role := u.Kind
	if role == "" {
		role = "file"
	}
	name := u.Name
	if name == "" {
		name = path.Base(u.Path)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the following %s '%s' for semantic search.\n\n", role, name)
	sb.WriteString("Return 2-4 sentences covering:\n")
	sb.WriteString("- Purpose and what it does,\n")
	sb.WriteString("- Inputs/outputs (if any),\n")
	sb.WriteString("- Key side-effects or important behaviors (if any).\n")
	sb.WriteString("Be concise, factual, and specific. Do not include code fences.\n\n")
	sb.WriteString("Docstring (may be empty):\n")
	sb.WriteString(u.Docstring)
	sb.WriteString("\n\nCode (excerpt):\n")
	sb.WriteString(extractor.Clip(u.Code, maxSummaryInput))
	sb.WriteString("\n")
	return sb.String()
}
