package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ShardRequest is everything a shard prompt is built from.
type ShardRequest struct {
	OwnerRepo string
	SourceURL string
	Language  string
	Shard     string
	Files     []FileSummary
	// ContextFiles bounds the rows given detailed symbol hints.
	ContextFiles int
	Allowed      []string
	Forbidden    []string
	Readme       string
	MinPages     int
	MaxPages     int
}

const hintsPerFile = 8

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}

func readmeBlock(excerpt string) string {
	if excerpt == "" {
		return ""
	}
	return "## README excerpt (context; do NOT quote directly; use for guidance only)\n<readme>\n" + excerpt + "\n</readme>\n\n"
}

func jsonList(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

func capped(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ShardPrompt asks for the <partial_wiki> of one shard.
func ShardPrompt(r ShardRequest) string {
	paths := make([]string, len(r.Files))
	details := make([]FileSummary, 0, len(r.Files))
	for i, f := range r.Files {
		paths[i] = f.Path
		if r.ContextFiles <= 0 || i < r.ContextFiles {
			f.Classes = capped(f.Classes, hintsPerFile)
			f.Functions = capped(f.Functions, hintsPerFile)
			f.Imports = capped(f.Imports, hintsPerFile)
			details = append(details, f)
		}
	}
	shard := r.Shard

	var sb strings.Builder
	sb.WriteString("You are a senior documentation architect.\n\n")
	fmt.Fprintf(&sb, "Repository: %s\nSource: %s\nThis prompt is for shard: %s\n", orUnknown(r.OwnerRepo), orUnknown(r.SourceURL), shard)
	fmt.Fprintf(&sb, "IMPORTANT: The wiki content MUST be generated in %s.\n\n", r.Language)
	sb.WriteString(readmeBlock(r.Readme))

	sb.WriteString("## What you are building (THIS SHARD ONLY)\n")
	sb.WriteString("Return a coherent <partial_wiki> for this shard. Do NOT describe other shards or the whole repo.\n\n")

	sb.WriteString("## ALLOWED vs FORBIDDEN section titles\n")
	fmt.Fprintf(&sb, "- Allowed (use ONLY these; case-insensitive match): %s\n", jsonInline(r.Allowed))
	fmt.Fprintf(&sb, "- Forbidden (must NOT appear): %s\n\n", jsonInline(r.Forbidden))

	sb.WriteString("## File selection rules (EXTREMELY IMPORTANT)\n")
	sb.WriteString("- You may ONLY reference file paths from the list below.\n")
	sb.WriteString("- For EACH page include 2-5 <file_path> entries under <relevant_files>.\n")
	sb.WriteString("- Prefer code or config files that directly support the page topic.\n")
	sb.WriteString("- Avoid README-like files EXCEPT for pages under \"Overview\" or \"Examples and Notebooks\".\n")
	sb.WriteString("- If you cannot find suitable files for a page, do NOT create that page.\n")
	sb.WriteString("- NEVER invent file names or directories. Use exact, case-correct paths from the list.\n\n")

	sb.WriteString("## Section-wise guidance\n")
	sb.WriteString("- \"System Architecture\": high-level organization, module entry points.\n")
	sb.WriteString("- \"Core Features\": source files implementing major capabilities.\n")
	sb.WriteString("- \"Data Management/Flow\": loaders, ETL, DB/SQL/migrations, repositories.\n")
	sb.WriteString("- \"Backend Systems\": server/api/controllers/services/routes/middleware.\n")
	sb.WriteString("- \"Frontend Components\": UI components, pages, client state.\n")
	sb.WriteString("- \"Model Integration\": inference/training code, weight loading, checkpoints.\n")
	sb.WriteString("- \"Deployment/Infrastructure\": Dockerfile, compose, helm/k8s, Terraform, CI workflows.\n")
	sb.WriteString("- \"Examples and Notebooks\": files under examples/, notebooks.\n")
	sb.WriteString("- \"Overview\": README (root/docs) and entry docs that introduce the project.\n\n")

	sb.WriteString("## Page quality bar\n")
	sb.WriteString("- Concise, specific titles and descriptions anchored to the chosen files.\n")
	fmt.Fprintf(&sb, "- Keep %d-%d pages total across all sections in this shard. No filler.\n\n", r.MinPages, r.MaxPages)

	sb.WriteString("## Files from this shard (choose file_path ONLY from this list)\n[file_paths]\n")
	sb.WriteString(jsonList(paths))
	sb.WriteString("\n[/file_paths]\n\n")
	sb.WriteString("## Context details for some files (hints; do NOT copy)\n")
	sb.WriteString(jsonList(details))
	sb.WriteString("\n\n")

	sb.WriteString("## REQUIRED OUTPUT FORMAT (STRICT)\n")
	fmt.Fprintf(&sb, `<partial_wiki>
  <sections>
    <section id="sec-%[1]s-1">
      <title>[Section title from allowed list]</title>
      <pages>
        <page id="page-%[1]s-1">
          <title>[Page title]</title>
          <description>[Brief description in %[2]s]</description>
          <importance>high|medium|low</importance>
          <relevant_files>
            <file_path>[One file path from the list above]</file_path>
            <file_path>[Another]</file_path>
          </relevant_files>
          <related_pages>
            <related>page-%[1]s-2</related>
          </related_pages>
        </page>
      </pages>
      <subsections>
        <section_ref>sec-%[1]s-2</section_ref>
      </subsections>
    </section>
  </sections>
</partial_wiki>
`, shard, r.Language)

	sb.WriteString("\n## HARD CONSTRAINTS\n")
	sb.WriteString("- Output ONLY <partial_wiki>. No extra text, no markdown, no commentary.\n")
	fmt.Fprintf(&sb, "- Use IDs starting with: sec-%s-N, page-%s-N (N = 1..).\n", shard, shard)
	sb.WriteString("- Use section titles ONLY from the allowed list, never from the forbidden list.\n")
	sb.WriteString("- For non-\"Overview\"/\"Examples and Notebooks\" pages, DO NOT include README-like files in <relevant_files>.\n")
	return sb.String()
}

// RefineRequest is the input of the final refine prompt.
type RefineRequest struct {
	OwnerRepo string
	SourceURL string
	Language  string
	Merged    string
	Allowed   []string
	Readme    string
}

// RefinePrompt asks for one normalized <wiki_structure> from the merged
// tree.
func RefinePrompt(r RefineRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a meticulous documentation architect.\n\n")
	fmt.Fprintf(&sb, "We combined shard-level partial wikis into a single merged XML for repository: %s\n", orUnknown(r.OwnerRepo))
	fmt.Fprintf(&sb, "Source: %s\nIMPORTANT: The wiki content MUST be generated in %s.\n\n", orUnknown(r.SourceURL), r.Language)
	sb.WriteString(readmeBlock(r.Readme))

	sb.WriteString("## Your task\n")
	sb.WriteString("- Keep the most logical and informative sections and the most important files.\n")
	sb.WriteString("- Refine and normalize the merged XML into a single, clean <wiki_structure>.\n")
	sb.WriteString("- Keep topical pages; remove redundant or empty ones.\n\n")

	sb.WriteString("## Policies to enforce\n")
	sb.WriteString("1) IDs and references: sections section-1..N, pages page-1..M (sequential, no gaps); ")
	sb.WriteString("each <page> has exactly one existing <parent_section>; every <section_ref> and <page_ref> references an existing id.\n")
	fmt.Fprintf(&sb, "2) Section titles: use ONLY %s. Do NOT invent noisy or generic sections.\n", jsonInline(r.Allowed))
	sb.WriteString("3) File selection: 2-5 <file_path> entries per page, code or config first; README-like files only under \"Overview\" or \"Examples and Notebooks\".\n")
	fmt.Fprintf(&sb, "4) Language: all titles and descriptions in %s.\n\n", r.Language)

	sb.WriteString("## Merge input (clean and normalize it)\n")
	sb.WriteString(r.Merged)
	sb.WriteString("\n\n## REQUIRED OUTPUT FORMAT (STRICT)\n")
	sb.WriteString("Return ONLY a single valid <wiki_structure> (no commentary):\n")
	fmt.Fprintf(&sb, `<wiki_structure>
  <title>[Overall wiki title]</title>
  <description>[Short description in %[1]s]</description>
  <sections>
    <section id="section-1">
      <title>[Section title]</title>
      <pages>
        <page_ref>page-1</page_ref>
      </pages>
      <subsections>
        <section_ref>section-2</section_ref>
      </subsections>
    </section>
  </sections>
  <pages>
    <page id="page-1">
      <title>[Page title]</title>
      <description>[Brief description in %[1]s]</description>
      <importance>high|medium|low</importance>
      <relevant_files>
        <file_path>[Exact repo path]</file_path>
      </relevant_files>
      <related_pages>
        <related>page-2</related>
      </related_pages>
      <parent_section>section-1</parent_section>
    </page>
  </pages>
</wiki_structure>
`, r.Language)
	return sb.String()
}

func jsonInline(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
