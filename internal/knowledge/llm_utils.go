package knowledge

import "strings"

// CleanMarkdown strips a fence wrapping the whole response.
func CleanMarkdown(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```markdown") {
		text = strings.TrimPrefix(text, "```markdown")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```md\n") {
		text = strings.TrimPrefix(text, "```md")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
