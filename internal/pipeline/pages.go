package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"repowiki/internal/analysis"
	"repowiki/internal/cache"
	"repowiki/internal/git"
	"repowiki/internal/policy"
	"repowiki/internal/synth"
	"repowiki/internal/wiki"
)

// PagesOptions select the pages to render.
type PagesOptions struct {
	// PageIDs limits rendering to these pages.
	PageIDs []string
	// ChangedSince adds the pages citing files changed since this git ref.
	ChangedSince string
	// Force bypasses the page cache.
	Force bool
}

// Pages renders wiki pages and rewrites the page directory and its index.
func (s *Snapshot) Pages(ctx context.Context, opts PagesOptions) ([]synth.PageResult, error) {
	gen := s.providers.Generator
	if gen == nil {
		return nil, errors.New("pages need a generation provider")
	}
	w, err := s.Wiki(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := s.selectPages(ctx, w, opts)
	if err != nil {
		return nil, err
	}
	if ids != nil && len(ids) == 0 {
		s.logf("No pages to regenerate")
		return nil, nil
	}

	search, cleanup, err := s.searcher(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	c, err := s.pageCache()
	if err != nil {
		return nil, err
	}
	syn := synth.New(gen, search, c, s.synthOptions(ctx))
	results, err := syn.Pages(ctx, w, ids, opts.Force)
	if err != nil {
		return nil, err
	}

	hits := 0
	for _, r := range results {
		if r.CacheHit {
			hits++
		}
	}
	dir := s.Layout.Pages()
	if err := synth.WritePages(dir, w, synth.WithExisting(dir, w, results)); err != nil {
		return nil, fmt.Errorf("failed to write pages: %w", err)
	}
	s.logf("Rendered %d pages (%d from cache) into %s", len(results), hits, dir)
	return results, nil
}

// selectPages returns nil for every page, or the explicit selection.
func (s *Snapshot) selectPages(ctx context.Context, w wiki.Structure, opts PagesOptions) ([]string, error) {
	if len(opts.PageIDs) == 0 && opts.ChangedSince == "" {
		return nil, nil
	}
	for _, id := range opts.PageIDs {
		if _, ok := w.Page(id); !ok {
			return nil, fmt.Errorf("unknown page %q", id)
		}
	}
	ids := append([]string{}, opts.PageIDs...)
	if opts.ChangedSince == "" {
		return ids, nil
	}

	changes, err := git.GetChangedFiles(ctx, s.Source.Root, opts.ChangedSince)
	if err != nil {
		return nil, err
	}
	changes = s.underSubpath(changes)
	units, err := s.store.LoadUnits(ctx)
	if err != nil {
		return nil, err
	}
	report := analysis.NewAnalyzer(w, units).AnalyzeImpact(changes)
	s.logf("%d changed files since %s: %d pages cite them, %d related pages, %d evidence units affected",
		len(changes), opts.ChangedSince, len(report.DirectPages), len(report.RelatedPages), len(report.AffectedUnits))
	if len(report.AffectedUnits) > 0 {
		s.logf("WARNING: evidence units are stale, run index to refresh them")
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range report.DirectPages {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// underSubpath rewrites repository-relative paths to be relative to the
// snapshot subpath, dropping changes outside it.
func (s *Snapshot) underSubpath(changes []git.ChangedFile) []git.ChangedFile {
	if s.Source.Subpath == "" {
		return changes
	}
	prefix := strings.Trim(s.Source.Subpath, "/") + "/"
	var out []git.ChangedFile
	for _, c := range changes {
		if strings.HasPrefix(c.Path, prefix) {
			c.Path = strings.TrimPrefix(c.Path, prefix)
			out = append(out, c)
		}
	}
	return out
}

func (s *Snapshot) pageCache() (*cache.Cache, error) {
	var store cache.Store
	if strings.EqualFold(s.cfg.Cache.Backend, "s3") {
		s3, err := cache.NewS3Store(cache.S3Config{
			Endpoint:  s.cfg.Cache.Endpoint,
			Region:    s.cfg.Cache.Region,
			AccessKey: s.cfg.Cache.AccessKey,
			SecretKey: s.cfg.Cache.SecretKey,
			Bucket:    s.cfg.Cache.Bucket,
			UseSSL:    s.cfg.Cache.UseSSL,
			Prefix:    s.Source.Name() + "-" + s.Source.Fingerprint(),
		})
		if err != nil {
			return nil, err
		}
		store = s3
	} else {
		disk, err := cache.NewDiskStore(s.Layout.PageCache())
		if err != nil {
			return nil, err
		}
		store = disk
	}
	return cache.New(store, s.cfg.Cache.LRUSize)
}

func (s *Snapshot) synthOptions(ctx context.Context) synth.Options {
	pol := s.policy(ctx)
	return synth.Options{
		RepoTitle:  s.title(),
		BlobBase:   s.Source.BlobBase(),
		Language:   s.cfg.Pipeline.Language,
		Retrieval:  s.cfg.Retrieval,
		Generation: s.cfg.Generation,
		Allowed:    pol.AllowedDisplay(),
		Forbidden:  displayAll(pol.Forbidden),
		Workers:    s.cfg.Pipeline.Workers,
	}
}

// policy derives the section policy from the persisted graph, or from an
// empty path set when there is none.
func (s *Snapshot) policy(ctx context.Context) policy.Policy {
	g, err := s.store.LoadGraph(ctx)
	if err != nil {
		return policy.Derive(nil)
	}
	return policy.Derive(g.Paths())
}

// Chat answers question over the snapshot's evidence corpus.
func (s *Snapshot) Chat(ctx context.Context, history []synth.Turn, question string) (synth.Answer, error) {
	gen := s.providers.Generator
	if gen == nil {
		return synth.Answer{}, errors.New("chat needs a generation provider")
	}
	search, cleanup, err := s.searcher(ctx)
	if err != nil {
		return synth.Answer{}, err
	}
	defer cleanup()
	return synth.New(gen, search, nil, s.synthOptions(ctx)).Chat(ctx, history, question)
}
