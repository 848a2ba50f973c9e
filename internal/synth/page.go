// Package synth renders grounded wiki pages and chat answers from retrieved
// evidence.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"repowiki/internal/cache"
	"repowiki/internal/config"
	"repowiki/internal/crawler"
	"repowiki/internal/index"
	"repowiki/internal/knowledge"
	"repowiki/internal/policy"
	"repowiki/internal/retrieval"
	"repowiki/internal/wiki"

	"github.com/sourcegraph/conc/pool"
)

const unknownSection = "(Unknown Section)"

// Searcher is the hybrid retrieval engine.
type Searcher interface {
	Search(ctx context.Context, query, section string, opts retrieval.Options) (retrieval.Result, error)
}

// Options configure a Synthesizer.
type Options struct {
	RepoTitle  string
	BlobBase   string
	Language   string
	Retrieval  config.RetrievalConfig
	Generation config.GenerationConfig
	Allowed    []string
	Forbidden  []string
	Workers    int
}

type Synthesizer struct {
	gen    knowledge.Generator
	search Searcher
	cache  *cache.Cache
	opts   Options
}

// New creates a synthesizer. c may be nil to disable caching.
func New(gen knowledge.Generator, search Searcher, c *cache.Cache, opts Options) *Synthesizer {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Language == "" {
		opts.Language = "English"
	}
	return &Synthesizer{gen: gen, search: search, cache: c, opts: opts}
}

// PageResult is one rendered page.
type PageResult struct {
	ID       string
	Title    string
	Section  string
	Markdown string
	// Evidence are the context unit ids in ranked order.
	Evidence []string
	CacheHit bool
}

func (s *Synthesizer) retrievalOptions() retrieval.Options {
	r := s.opts.Retrieval
	return retrieval.Options{TopKFile: r.TopKFile, TopKSymbol: r.TopKSymbol, ExtraFile: r.ExtraFile, ExtraSymbol: r.ExtraSymbol}
}

// PageQuery is the retrieval query for a page.
func PageQuery(p wiki.Page, section string) string {
	hints := retrieval.SectionHints(section)
	if len(hints) > 8 {
		hints = hints[:8]
	}
	return fmt.Sprintf("%s — %s. %s. %s", p.Title, section, p.Description, strings.Join(hints, " "))
}

// readmeAllowed reports whether README evidence may ground a page.
func (s *Synthesizer) readmeAllowed(section string) bool {
	norm := policy.NormalizeTitle(section)
	return s.opts.Generation.IncludeOverviewReadme && (norm == policy.Overview || norm == policy.Examples)
}

func withoutReadmes(hits []retrieval.Hit) []retrieval.Hit {
	out := hits[:0:0]
	for _, h := range hits {
		if !crawler.IsReadme(h.Path) {
			out = append(out, h)
		}
	}
	return out
}

// Page renders one page of w, reusing the cached artifact for identical
// inputs unless force is set.
func (s *Synthesizer) Page(ctx context.Context, w wiki.Structure, p wiki.Page, force bool) (PageResult, error) {
	section := unknownSection
	if sec, ok := w.Section(p.Parent); ok {
		section = sec.Title
	}

	res, err := s.search.Search(ctx, PageQuery(p, section), section, s.retrievalOptions())
	if err != nil {
		return PageResult{}, fmt.Errorf("retrieval for %s: %w", p.ID, err)
	}
	readmeOK := s.readmeAllowed(section)
	if !readmeOK {
		res.Files = withoutReadmes(res.Files)
		res.Symbols = withoutReadmes(res.Symbols)
	}
	hits := res.Context(s.opts.Retrieval.MaxUnits)
	ids := retrieval.IDs(hits)

	req := PageRequest{
		RepoTitle: s.opts.RepoTitle,
		Section:   section,
		Page:      p,
		Context:   hits,
		Language:  s.opts.Language,
		ReadmeOK:  readmeOK,
		MinRefs:   s.opts.Generation.MinRefs,
		MaxRefs:   s.opts.Generation.MaxRefs,
		CodeChars: s.opts.Retrieval.MaxCodeChars,
		Allowed:   s.opts.Allowed,
		Forbidden: s.opts.Forbidden,
	}
	compute := func(ctx context.Context) ([]byte, error) {
		md, err := s.render(ctx, req)
		return []byte(md), err
	}

	out := PageResult{ID: p.ID, Title: p.Title, Section: section, Evidence: ids}
	if s.cache == nil {
		data, err := compute(ctx)
		if err != nil {
			return PageResult{}, err
		}
		out.Markdown = string(data)
		return out, nil
	}

	name := cache.EntryName(p.ID, cache.Key(cache.KeyInputs{
		Page: cache.PageIdentity{
			ID:            p.ID,
			Title:         p.Title,
			Description:   p.Description,
			Importance:    p.Importance,
			ParentSection: p.Parent,
		},
		Section:    section,
		Retrieval:  s.opts.Retrieval,
		Generation: s.opts.Generation,
		Language:   s.opts.Language,
		ContextIDs: ids,
	}))
	var data []byte
	if force {
		data, err = s.cache.Refresh(ctx, name, compute)
	} else {
		data, out.CacheHit, err = s.cache.GetOrCompute(ctx, name, compute)
	}
	if err != nil {
		return PageResult{}, err
	}
	out.Markdown = string(data)
	return out, nil
}

// render runs draft and refine passes, then enforces the diagram and
// citation constraints.
func (s *Synthesizer) render(ctx context.Context, req PageRequest) (string, error) {
	draftPrompt, refinePrompt := PagePrompts(req)
	draft, err := s.gen.Generate(ctx, pageSystem, draftPrompt)
	if err != nil {
		return "", fmt.Errorf("draft %s: %w", req.Page.ID, err)
	}
	draft = knowledge.CleanMarkdown(draft)

	final, err := s.gen.Generate(ctx, pageSystem, refinePrompt+"\n\n"+draft)
	if err != nil || strings.TrimSpace(final) == "" {
		log.Printf("WARNING: refine failed for %s, keeping draft: %v", req.Page.ID, err)
		final = draft
	}
	final = knowledge.CleanMarkdown(final)

	if len(MermaidBlocks(final)) == 0 {
		final = InsertDiagram(final, s.fallbackDiagram(ctx, req))
	}
	final = EnforceReferences(final, evidencePaths(req.Context), req.MinRefs, req.MaxRefs)
	final = Linkify(final, s.opts.BlobBase)

	if q := Assess(final); q.Score < 0.5 {
		log.Printf("WARNING: page %s scored %.2f: %s", req.Page.ID, q.Score, strings.Join(q.Issues, ", "))
	}
	return final, nil
}

func (s *Synthesizer) fallbackDiagram(ctx context.Context, req PageRequest) string {
	if s.opts.Generation.DiagramFallback {
		reply, err := s.gen.Generate(ctx, diagramSystem, DiagramPrompt(req))
		if err == nil {
			if code := ExtractDiagram(reply); code != "" {
				return code
			}
		} else {
			log.Printf("WARNING: diagram fallback failed for %s: %v", req.Page.ID, err)
		}
	}
	return FlowDiagram(req.Context)
}

func evidencePaths(hits []retrieval.Hit) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range hits {
		if h.Path != "" && !seen[h.Path] {
			seen[h.Path] = true
			out = append(out, h.Path)
		}
	}
	return out
}

// Pages renders the pages named by ids (all pages when ids is empty) in
// parallel. Results follow the wiki's page order. A failed page is logged
// and left out; index corruption aborts.
func (s *Synthesizer) Pages(ctx context.Context, w wiki.Structure, ids []string, force bool) ([]PageResult, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var order []string
	for _, id := range w.PageOrder() {
		if len(ids) == 0 || want[id] {
			order = append(order, id)
		}
	}

	results := make([]*PageResult, len(order))
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(s.opts.Workers)
	for i, id := range order {
		page, _ := w.Page(id)
		p.Go(func(ctx context.Context) error {
			r, err := s.Page(ctx, w, page, force)
			if err != nil {
				if errors.Is(err, index.ErrCorrupt) {
					return err
				}
				log.Printf("WARNING: page %s skipped: %v", id, err)
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	out := make([]PageResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}
