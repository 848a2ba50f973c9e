package synth

import "strings"

// Quality is a heuristic score of a rendered page in [0, 1].
type Quality struct {
	Score  float64
	Issues []string
}

var requiredHeadings = []string{"## overview", "## how it works", "## references"}

// Assess scores a page on the structure the page prompt asks for.
func Assess(md string) Quality {
	text := strings.TrimSpace(md)
	if text == "" {
		return Quality{Score: 0, Issues: []string{"empty_content"}}
	}

	score := 1.0
	issues := make([]string, 0, 6)
	total, bullets, paragraphs := 0, 0, 0
	inFence := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if line == "" || inFence {
			continue
		}
		total++
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			bullets++
		}
		if !strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "* ") {
			paragraphs++
		}
	}
	if total > 0 && float64(bullets)/float64(total) > 0.45 {
		score -= 0.25
		issues = append(issues, "list_heavy")
	}
	if paragraphs < 2 {
		score -= 0.2
		issues = append(issues, "insufficient_paragraphs")
	}

	lower := strings.ToLower(text)
	for _, token := range []string{"explain the", "describe the", "must include", "tbd", "placeholder", "lorem ipsum"} {
		if strings.Contains(lower, token) {
			score -= 0.2
			issues = append(issues, "instructional_or_placeholder_text")
			break
		}
	}
	if len(MermaidBlocks(md)) == 0 {
		score -= 0.2
		issues = append(issues, "missing_diagram")
	}
	for _, h := range requiredHeadings {
		if !strings.Contains(lower, h) {
			score -= 0.1
			issues = append(issues, "missing_heading:"+strings.TrimPrefix(h, "## "))
		}
	}
	if score < 0 {
		score = 0
	}
	return Quality{Score: score, Issues: issues}
}
