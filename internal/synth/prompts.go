package synth

import (
	"encoding/json"
	"fmt"
	"strings"

	"repowiki/internal/knowledge"
	"repowiki/internal/policy"
	"repowiki/internal/retrieval"
	"repowiki/internal/wiki"
)

const pageSystem = "Follow the user's instructions EXACTLY. Output ONLY Markdown; " +
	"include required Mermaid diagrams; obey file selection constraints; no extra commentary."

const diagramSystem = "Return ONLY a mermaid fenced block."

var sectionDiagrams = map[string][]string{
	policy.Architecture:     {"flowchart", "graph TD", "graph LR"},
	policy.Backend:          {"sequenceDiagram", "flowchart"},
	policy.Frontend:         {"flowchart", "sequenceDiagram"},
	policy.ModelIntegration: {"sequenceDiagram", "classDiagram"},
	policy.DataFlow:         {"erDiagram", "flowchart"},
	policy.Deployment:       {"flowchart", "graph LR", "graph TD"},
	policy.Examples:         {"flowchart"},
	policy.Overview:         {"flowchart"},
	policy.Extensibility:    {"classDiagram", "flowchart"},
}

// DiagramTypes returns the preferred mermaid diagram types for a section.
func DiagramTypes(section string) []string {
	if t, ok := sectionDiagrams[policy.NormalizeTitle(section)]; ok {
		return t
	}
	return []string{"flowchart"}
}

type contextRow struct {
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	Name      string `json:"name"`
	Summary   string `json:"summary"`
	Docstring string `json:"docstring"`
	Code      string `json:"code"`
}

// ContextPack renders hits as the JSON evidence block of a prompt.
func ContextPack(hits []retrieval.Hit, maxCodeChars int) string {
	rows := make([]contextRow, 0, len(hits))
	for _, h := range hits {
		row := contextRow{
			Kind:    "file",
			Path:    h.Path,
			Summary: truncate(h.Summary, 800),
			Code:    truncate(h.Code, maxCodeChars),
		}
		if h.Level == knowledge.LevelSymbol {
			row.Kind = "symbol::" + h.Kind
			row.Name = h.Name
			if row.Name == "" {
				row.Name = h.Signature
			}
			row.Docstring = truncate(h.Docstring, 800)
		}
		rows = append(rows, row)
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return string(out)
}

// PageRequest is everything a page prompt is built from.
type PageRequest struct {
	RepoTitle string
	Section   string
	Page      wiki.Page
	Context   []retrieval.Hit
	Language  string
	ReadmeOK  bool
	MinRefs   int
	MaxRefs   int
	CodeChars int
	Allowed   []string
	Forbidden []string
}

// PagePrompts returns the draft prompt and the refine prompt; the draft is
// appended to the latter.
func PagePrompts(r PageRequest) (draft, refine string) {
	mermaidPref := DiagramTypes(r.Section)
	filesHint := "[]"
	if len(r.Page.Files) > 0 {
		b, _ := json.MarshalIndent(r.Page.Files, "", "  ")
		filesHint = string(b)
	}
	readme := "Allowed for this page."
	if !r.ReadmeOK {
		readme = "NOT allowed (only in 'Overview' or 'Examples and Notebooks')."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a senior technical writer and software architect documenting the repository '%s'.\n\n", r.RepoTitle)
	sb.WriteString("PAGE SPEC:\n")
	fmt.Fprintf(&sb, "- Section: %s\n- Page ID: %s\n- Title: %s\n- Description: %s\n- Importance: %s\n\n",
		r.Section, r.Page.ID, r.Page.Title, r.Page.Description, r.Page.Importance)
	sb.WriteString("SECTION TITLES (context only; do not create new sections):\n")
	fmt.Fprintf(&sb, "- Allowed: %s\n- Forbidden: %s\n\n", quoteList(r.Allowed), quoteList(r.Forbidden))
	sb.WriteString("FILE GROUNDEDNESS (HARD RULES):\n")
	sb.WriteString("- Use ONLY file paths from the context units below; do NOT invent paths.\n")
	fmt.Fprintf(&sb, "- Include %d-%d exact file paths (verbatim, in backticks) in a \"References\" section.\n", r.MinRefs, r.MaxRefs)
	fmt.Fprintf(&sb, "- README-like files are %s\n", readme)
	sb.WriteString("- Prefer code/config files that truly support the page topic.\n\n")
	sb.WriteString("MERMAID DIAGRAMS:\n")
	sb.WriteString("- Include at least one Mermaid diagram suitable for this section.\n")
	fmt.Fprintf(&sb, "- Recommended types for '%s': %s\n", r.Section, quoteList(mermaidPref))
	sb.WriteString("- Valid: sequenceDiagram, classDiagram, stateDiagram-v2, flowchart, erDiagram, graph LR, graph TD.\n")
	sb.WriteString("- Use ```mermaid fenced code blocks and add a short caption below each diagram.\n\n")
	sb.WriteString("OUTPUT FORMAT (STRICT):\n")
	sb.WriteString("- Return ONLY Markdown. No front-matter, no commentary.\n")
	fmt.Fprintf(&sb, "- Headings: # %s, ## Overview, ## Key Components / Concepts, ## How it Works, ## Example(s), ## Diagram(s), ## References\n", r.Page.Title)
	fmt.Fprintf(&sb, "- Language: %s.\n\n", r.Language)
	sb.WriteString("CONTEXT UNITS (use these only; do not invent file paths):\n")
	sb.WriteString(ContextPack(r.Context, r.CodeChars))
	sb.WriteString("\n\nXML 'relevant_files' hints (optional):\n")
	sb.WriteString(filesHint)
	draft = sb.String()

	sb.Reset()
	sb.WriteString("You are a meticulous documentation editor.\n")
	fmt.Fprintf(&sb, "Refine the Markdown for page '%s' under '%s' for repo '%s'.\n\n", r.Page.Title, r.Section, r.RepoTitle)
	sb.WriteString("CHECKLIST (MUST):\n")
	sb.WriteString("- Content is grounded in file paths from the provided context.\n")
	fmt.Fprintf(&sb, "- \"References\" contains %d-%d exact file paths used in the write-up.\n", r.MinRefs, r.MaxRefs)
	fmt.Fprintf(&sb, "- Mermaid diagram(s) exist and use suitable type(s) for this section (e.g., %s); fix syntax if needed.\n", quoteList(mermaidPref))
	sb.WriteString("- Headings present: # Title, ## Overview, ## Key Components / Concepts, ## How it Works, ## Example(s), ## Diagram(s), ## References.\n")
	sb.WriteString("- No generic filler; precise explanations aligned with the code/summaries.\n")
	fmt.Fprintf(&sb, "- Language: %s. No extra commentary.\n\n", r.Language)
	sb.WriteString("Return ONLY the final Markdown (no extra text).\n\nORIGINAL DRAFT:\n")
	refine = sb.String()
	return draft, refine
}

// DiagramPrompt asks for a single diagram for a page that came back
// without one.
func DiagramPrompt(r PageRequest) string {
	return fmt.Sprintf(`Generate only a Mermaid diagram for the page '%s' (%s).
Use 'sequenceDiagram' unless a class or flowchart is clearly better; return a single Mermaid fenced block and nothing else.

Context units (for accurate names & calls):
%s`, r.Page.Title, r.Section, ContextPack(r.Context, 600))
}

// Turn is one exchange of a chat.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ChatContext renders chat evidence as markdown.
func ChatContext(res retrieval.Result, maxCodeChars int) string {
	var sb strings.Builder
	sb.WriteString("## Top Files\n")
	for _, h := range res.Files {
		fmt.Fprintf(&sb, "\n### %s\n", h.Path)
		if h.Summary != "" {
			sb.WriteString(h.Summary + "\n")
		}
		if code := truncate(h.Code, maxCodeChars); code != "" {
			sb.WriteString("```\n" + code + "\n```\n")
		}
	}
	sb.WriteString("\n## Top Symbols\n")
	for _, h := range res.Symbols {
		fmt.Fprintf(&sb, "\n### %s (%s %s)\n", h.Path, h.Kind, h.Name)
		if h.Signature != "" {
			sb.WriteString("`" + h.Signature + "`\n")
		}
		if h.Summary != "" {
			sb.WriteString(h.Summary + "\n")
		}
		if code := truncate(h.Code, maxCodeChars); code != "" {
			sb.WriteString("```\n" + code + "\n```\n")
		}
	}
	return sb.String()
}

// ChatPrompt asks a grounded question.
func ChatPrompt(contextMD, question string) string {
	return fmt.Sprintf(`You are a codebase assistant. Use the following context to answer the user's question.

Context:
%s

Question:
%s

Return a concise, factual answer. If relevant, cite file paths or symbol names from the context.`, contextMD, question)
}

func quoteList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
