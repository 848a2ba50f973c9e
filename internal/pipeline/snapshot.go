// Package pipeline runs the per-snapshot steps: scan, structure, index,
// pages and chat.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"repowiki/internal/config"
	"repowiki/internal/crawler"
	"repowiki/internal/extractor"
	"repowiki/internal/graph"
	"repowiki/internal/policy"
	"repowiki/internal/repo"
	"repowiki/internal/shard"
	"repowiki/internal/storage"
	"repowiki/internal/synth"
	"repowiki/internal/wiki"

	"github.com/google/uuid"
)

const readmeMaxChars = 4000

// Snapshot is one repository snapshot and its on-disk state.
type Snapshot struct {
	Source repo.Source
	Layout repo.Layout
	// RunID tags the log lines of one invocation.
	RunID string

	cfg       *config.Config
	providers Providers
	store     *storage.SQLiteStore
	crawler   *crawler.Crawler
	extractor *extractor.Extractor
}

// Open resolves arg (a GitHub URL or a local path) and opens its snapshot
// directory.
func Open(ctx context.Context, cfg *config.Config, arg string, providers Providers) (*Snapshot, error) {
	src, layout, err := repo.Resolve(ctx, arg, repo.ResolveOptions{
		CacheDir:    cfg.CacheDir,
		GitHubToken: cfg.GitHubToken,
	})
	if err != nil {
		return nil, err
	}
	if err := layout.Ensure(); err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStore(layout.Database())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Snapshot{
		Source:    src,
		Layout:    layout,
		RunID:     uuid.NewString(),
		cfg:       cfg,
		providers: providers,
		store:     store,
		crawler:   crawler.NewCrawler(),
		extractor: extractor.NewExtractor(),
	}
	s.logf("Snapshot %s at %s", s.title(), layout.Root)
	return s, nil
}

func (s *Snapshot) Close() error {
	return s.store.Close()
}

func (s *Snapshot) logf(format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{s.RunID[:8]}, args...)...)
}

func (s *Snapshot) title() string {
	if or := s.Source.OwnerRepo(); or != "" {
		return or
	}
	return s.Source.Name()
}

// ScanResult summarizes a scan.
type ScanResult struct {
	Graph    *graph.Graph
	Totals   graph.Totals
	Manifest *shard.Manifest
}

// Scan crawls the checkout, extracts every file, and persists the graph and
// its shards.
func (s *Snapshot) Scan(ctx context.Context) (*ScanResult, error) {
	start := time.Now()
	files, err := s.crawler.Collect(s.Source.FilesRoot())
	if err != nil {
		return nil, fmt.Errorf("failed to crawl %s: %w", s.Source.FilesRoot(), err)
	}

	records := make([]extractor.FileRecord, 0, len(files))
	for _, f := range files {
		records = append(records, s.extractor.Extract(f.Path, f.Text))
	}

	g, totals := graph.Build(graph.Meta{
		Repo:    s.Source.OwnerRepo(),
		Branch:  s.Source.Branch,
		Subpath: s.Source.Subpath,
	}, records)
	m, shards := shard.Split(g)

	if err := shard.Save(s.Layout.KnowledgeGraph(), m, shards); err != nil {
		return nil, fmt.Errorf("failed to save shards: %w", err)
	}
	if err := s.store.SaveGraph(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}

	s.logf("Scanned %d files (%d classes, %d functions, %d imports) into %d shards in %v",
		totals.Files, totals.Classes, totals.Functions, totals.Imports, len(m.Shards), time.Since(start).Round(time.Millisecond))
	return &ScanResult{Graph: g, Totals: totals, Manifest: m}, nil
}

// Structure synthesizes the canonical wiki from the persisted shards.
func (s *Snapshot) Structure(ctx context.Context) (wiki.Structure, error) {
	gen := s.providers.Generator
	if gen == nil {
		return wiki.Structure{}, errors.New("structure needs a generation provider")
	}

	m, byName, err := shard.LoadAll(s.Layout.KnowledgeGraph())
	if err != nil {
		return wiki.Structure{}, fmt.Errorf("failed to load shards (run scan first): %w", err)
	}
	shards, err := ShardsInOrder(m, byName)
	if err != nil {
		return wiki.Structure{}, err
	}
	var paths []string
	for _, sh := range shards {
		paths = append(paths, sh.Graph.Paths()...)
	}
	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		files[p] = true
	}
	pol := policy.Derive(paths)
	s.logf("Section policy: allowed %v, forbidden %v", pol.Allowed, pol.Forbidden)

	cfg := s.cfg.Pipeline
	w, err := BuildStructure(ctx, gen, shards, StructureOptions{
		OwnerRepo:        s.title(),
		SourceURL:        s.Source.URL,
		Description:      s.description(ctx),
		Language:         cfg.Language,
		Policy:           pol,
		Files:            files,
		Readme:           ReadmeExcerpt(s.readmes(), readmeMaxChars),
		Workers:          cfg.Workers,
		MaxFilesPerShard: cfg.MaxFilesPerShard,
		MaxContextFiles:  cfg.MaxContextFiles,
		MinPages:         cfg.MinPages,
		MaxPages:         cfg.MaxPages,
		Refine:           cfg.Refine,
		PartialDir:       s.Layout.WikiXML(),
	})
	if err != nil {
		return wiki.Structure{}, err
	}
	if len(w.Pages) == 0 {
		s.logf("WARNING: the wiki has no pages")
	}

	if err := wiki.Save(s.Layout.WikiXML(), w); err != nil {
		return wiki.Structure{}, fmt.Errorf("failed to save wiki: %w", err)
	}
	if err := s.store.SaveWiki(ctx, w); err != nil {
		return wiki.Structure{}, fmt.Errorf("failed to store wiki: %w", err)
	}
	s.logf("Wiki: %d sections, %d pages", len(w.Sections), len(w.Pages))
	return w, nil
}

// description asks GitHub for the repository description of remote
// snapshots. Failure is not an error.
func (s *Snapshot) description(ctx context.Context) string {
	if !repo.IsURL(s.Source.URL) || s.Source.OwnerRepo() == "" {
		return ""
	}
	gh, err := repo.NewGitHub(s.cfg.GitHubToken)
	if err != nil {
		return ""
	}
	desc, err := gh.Description(ctx, s.Source.Owner, s.Source.Repo)
	if err != nil {
		s.logf("WARNING: could not fetch repository description: %v", err)
		return ""
	}
	return desc
}

func (s *Snapshot) readmes() []Readme {
	root := s.Source.FilesRoot()
	paths, err := s.crawler.ListFiles(root)
	if err != nil {
		return nil
	}
	var out []Readme
	for _, p := range paths {
		if !crawler.IsReadme(p) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil || len(data) > crawler.MaxFileBytes {
			continue
		}
		if text, ok := crawler.DecodeText(data); ok {
			out = append(out, Readme{Path: p, Text: text})
		}
	}
	return out
}

// Wiki returns the canonical wiki of the snapshot.
func (s *Snapshot) Wiki(ctx context.Context) (wiki.Structure, error) {
	w, err := s.store.LoadWiki(ctx)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return wiki.Structure{}, err
	}
	w, err = wiki.Load(s.Layout.WikiXML())
	if err != nil {
		return wiki.Structure{}, fmt.Errorf("%w (run structure first)", wiki.ErrNoStructure)
	}
	return w, nil
}

// Validate checks the canonical wiki against the persisted file set.
func (s *Snapshot) Validate(ctx context.Context) error {
	w, err := s.Wiki(ctx)
	if err != nil {
		return err
	}
	g, err := s.store.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph (run scan first): %w", err)
	}
	files := make(map[string]bool, len(g.Files))
	for _, p := range g.Paths() {
		files[p] = true
	}
	if err := wiki.Validate(w, files); err != nil {
		return err
	}
	return wiki.ValidateSchema(w)
}

// Expand returns the node/edge view of one shard, named by its top-level
// directory or its label.
func (s *Snapshot) Expand(name string) (*graph.View, error) {
	m, err := shard.LoadManifest(s.Layout.KnowledgeGraph())
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest (run scan first): %w", err)
	}
	for _, e := range m.Shards {
		if e.TopDir == name || e.Key == name {
			sh, err := shard.LoadShard(s.Layout.KnowledgeGraph(), e)
			if err != nil {
				return nil, err
			}
			return shard.Expand(sh), nil
		}
	}
	return nil, fmt.Errorf("unknown shard %q (have %v)", name, m.Names())
}

// ExpandNode returns one node of a shard's view with its direct neighbours.
func (s *Snapshot) ExpandNode(name, nodeID string) (graph.Neighborhood, error) {
	v, err := s.Expand(name)
	if err != nil {
		return graph.Neighborhood{}, err
	}
	nb, ok := v.Neighborhood(nodeID)
	if !ok {
		return graph.Neighborhood{}, fmt.Errorf("shard %q has no node %q", name, nodeID)
	}
	return nb, nil
}

// Build runs scan, structure, index and pages in sequence.
func (s *Snapshot) Build(ctx context.Context, force bool) ([]synth.PageResult, error) {
	if _, err := s.Scan(ctx); err != nil {
		return nil, err
	}
	if _, err := s.Structure(ctx); err != nil {
		return nil, err
	}
	if _, err := s.Index(ctx); err != nil {
		return nil, err
	}
	return s.Pages(ctx, PagesOptions{Force: force})
}
