package synth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"repowiki/internal/wiki"

	"go.abhg.dev/goldmark/toc"
)

// IndexMarkdown renders the wiki's table of contents: sections in order,
// their pages linked to <page-id>.md, and each page's second-level
// headings as anchors.
func IndexMarkdown(w wiki.Structure, pages []PageResult) (string, error) {
	byID := make(map[string]PageResult, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", w.Title)
	if w.Description != "" {
		sb.WriteString(w.Description + "\n\n")
	}

	listed := make(map[string]bool)
	writePage := func(id string) error {
		r, ok := byID[id]
		if !ok || listed[id] {
			return nil
		}
		listed[id] = true
		fmt.Fprintf(&sb, "- [%s](%s.md)\n", r.Title, id)
		items, err := pageHeadings(r.Markdown)
		if err != nil {
			return fmt.Errorf("page %s: %w", id, err)
		}
		for _, it := range items {
			fmt.Fprintf(&sb, "  - [%s](%s.md#%s)\n", it.Title, id, it.ID)
		}
		return nil
	}

	for _, sec := range w.Sections {
		fmt.Fprintf(&sb, "## %s\n\n", sec.Title)
		for _, id := range sec.PageRefs {
			if err := writePage(id); err != nil {
				return "", err
			}
		}
		sb.WriteString("\n")
	}
	for _, p := range pages {
		if !listed[p.ID] {
			if err := writePage(p.ID); err != nil {
				return "", err
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}

type heading struct {
	Title string
	ID    string
}

func pageHeadings(md string) ([]heading, error) {
	src := []byte(md)
	tree, err := toc.Inspect(parse(src), src,
		toc.MinDepth(2),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}
	var out []heading
	var walk func(items toc.Items)
	walk = func(items toc.Items) {
		for _, it := range items {
			if len(it.Title) > 0 {
				out = append(out, heading{Title: string(it.Title), ID: string(it.ID)})
			}
			walk(it.Items)
		}
	}
	walk(tree.Items)
	return out, nil
}

// WritePages writes every result to <dir>/<page-id>.md and the table of
// contents to <dir>/index.md.
func WritePages(dir string, w wiki.Structure, pages []PageResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, p := range pages {
		if err := os.WriteFile(filepath.Join(dir, p.ID+".md"), []byte(p.Markdown), 0o644); err != nil {
			return fmt.Errorf("write page %s: %w", p.ID, err)
		}
	}
	idx, err := IndexMarkdown(w, pages)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "index.md"), []byte(idx), 0o644)
}

// WithExisting completes fresh with pages already on disk in dir, so a
// partial regeneration still indexes the whole wiki. Order follows w.
func WithExisting(dir string, w wiki.Structure, fresh []PageResult) []PageResult {
	byID := make(map[string]PageResult, len(fresh))
	for _, r := range fresh {
		byID[r.ID] = r
	}
	var out []PageResult
	for _, id := range w.PageOrder() {
		if r, ok := byID[id]; ok {
			out = append(out, r)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, id+".md"))
		if err != nil {
			continue
		}
		p, _ := w.Page(id)
		out = append(out, PageResult{ID: id, Title: p.Title, Markdown: string(data)})
	}
	return out
}
