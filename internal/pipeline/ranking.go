package pipeline

import (
	"sort"
	"strings"

	"repowiki/internal/crawler"
	"repowiki/internal/graph"
)

// FileSummary is one row of a shard prompt.
type FileSummary struct {
	Path        string   `json:"path"`
	Lang        string   `json:"lang"`
	Classes     []string `json:"classes"`
	Functions   []string `json:"functions"`
	Imports     []string `json:"imports"`
	SymbolCount int      `json:"-"`
}

// RankFiles orders the files of g by symbol density (classes, functions
// and imports together), densest first, ties broken by path. At most limit
// rows are returned; limit <= 0 keeps all.
func RankFiles(g *graph.Graph, limit int) []FileSummary {
	rows := make([]FileSummary, 0, len(g.Files))
	for _, f := range g.Files {
		imports := g.ImportNames(f)
		lang := f.Lang
		if lang == "" {
			lang = "unknown"
		}
		rows = append(rows, FileSummary{
			Path:        f.Path,
			Lang:        lang,
			Classes:     nonNil(f.Classes),
			Functions:   nonNil(f.Functions),
			Imports:     imports,
			SymbolCount: len(f.Classes) + len(f.Functions) + len(imports),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SymbolCount != rows[j].SymbolCount {
			return rows[i].SymbolCount > rows[j].SymbolCount
		}
		return rows[i].Path < rows[j].Path
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Readme is a README-like file with its text.
type Readme struct {
	Path string
	Text string
}

// CollectReadmes picks the README-like files out of files.
func CollectReadmes(files []crawler.SourceFile) []Readme {
	var out []Readme
	for _, f := range files {
		if f.Readable && crawler.IsReadme(f.Path) {
			out = append(out, Readme{Path: f.Path, Text: f.Text})
		}
	}
	return out
}

func readmeScore(path string) float64 {
	p := strings.ToLower(path)
	score := 0.0
	if !strings.Contains(p, "/") {
		score += 100
	}
	if strings.HasPrefix(p, "readme") {
		score += 50
	}
	if strings.HasPrefix(p, "docs/") || strings.Contains(p, "/docs/") {
		score += 40
	}
	if strings.HasPrefix(p, "examples/") || strings.Contains(p, "/examples/") {
		score += 30
	}
	return score - 0.001*float64(len(p))
}

// ReadmeExcerpt concatenates readmes as "### <path>" blocks, best scored
// first (root, then docs/, then examples/), truncated to maxChars.
func ReadmeExcerpt(readmes []Readme, maxChars int) string {
	if len(readmes) == 0 || maxChars <= 0 {
		return ""
	}
	sorted := append([]Readme(nil), readmes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return readmeScore(sorted[i].Path) > readmeScore(sorted[j].Path)
	})

	var chunks []string
	total := 0
	for _, r := range sorted {
		piece := "\n### " + r.Path + "\n" + r.Text
		if total+len(piece) > maxChars {
			piece = truncateBytes(piece, maxChars-total)
		}
		if piece != "" {
			chunks = append(chunks, piece)
			total += len(piece)
		}
		if total >= maxChars {
			break
		}
	}
	return strings.TrimSpace(strings.Join(chunks, "\n"))
}

func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
