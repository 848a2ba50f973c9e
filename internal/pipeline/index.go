package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"repowiki/internal/index"
	"repowiki/internal/knowledge"
	"repowiki/internal/retrieval"
)

const (
	filesIndex   = "files"
	symbolsIndex = "symbols"
)

// IndexStats summarizes an index run.
type IndexStats struct {
	FileUnits   int
	SymbolUnits int
	Summarized  int
	Dimension   int
}

func (s *Snapshot) engine(withSummaries bool) (*knowledge.Engine, error) {
	if s.providers.Embedder == nil {
		return nil, errors.New("an embedding provider is required")
	}
	var gen knowledge.Generator
	if withSummaries {
		gen = s.providers.Summarizer
	}
	return knowledge.NewEngine(gen, s.providers.Embedder, s.cfg.Pipeline.Workers, s.cfg.Embedding.BatchSize), nil
}

// Index builds the evidence-unit corpus: units per file and symbol,
// summaries, embeddings, and the file and symbol vector indices.
func (s *Snapshot) Index(ctx context.Context) (IndexStats, error) {
	engine, err := s.engine(true)
	if err != nil {
		return IndexStats{}, err
	}
	start := time.Now()

	files, err := s.crawler.Collect(s.Source.FilesRoot())
	if err != nil {
		return IndexStats{}, fmt.Errorf("failed to crawl %s: %w", s.Source.FilesRoot(), err)
	}
	var units []knowledge.Unit
	for _, f := range files {
		if !f.Readable {
			continue
		}
		units = append(units, knowledge.BuildUnits(f.Path, f.Text, s.extractor.Analyze(f.Path, f.Text))...)
	}
	s.logf("Built %d evidence units from %d files", len(units), len(files))

	units = engine.Summarize(ctx, units)
	vectors, err := engine.EmbedUnits(ctx, units)
	if err != nil {
		return IndexStats{}, fmt.Errorf("failed to embed units: %w", err)
	}
	if err := s.store.SaveUnits(ctx, units, vectors); err != nil {
		return IndexStats{}, fmt.Errorf("failed to save units: %w", err)
	}

	stats := IndexStats{Dimension: engine.Dimension()}
	for _, u := range units {
		if u.Summary != "" {
			stats.Summarized++
		}
	}
	if len(vectors) > 0 {
		stats.Dimension = len(vectors[0])
	}

	byLevel := splitVectors(units, vectors)
	for _, level := range []knowledge.Level{knowledge.LevelFile, knowledge.LevelSymbol} {
		set := byLevel[level]
		if err := s.writeIndex(ctx, level, set.ids, set.vectors, stats.Dimension); err != nil {
			return IndexStats{}, err
		}
	}
	stats.FileUnits = len(byLevel[knowledge.LevelFile].ids)
	stats.SymbolUnits = len(byLevel[knowledge.LevelSymbol].ids)

	s.logf("Indexed %d file and %d symbol units (%d summarized, dim %d) in %v",
		stats.FileUnits, stats.SymbolUnits, stats.Summarized, stats.Dimension, time.Since(start).Round(time.Millisecond))
	return stats, nil
}

type vectorSet struct {
	ids     []string
	vectors [][]float32
}

func splitVectors(units []knowledge.Unit, vectors [][]float32) map[knowledge.Level]*vectorSet {
	out := map[knowledge.Level]*vectorSet{
		knowledge.LevelFile:   {},
		knowledge.LevelSymbol: {},
	}
	for i, u := range units {
		set := out[u.Level]
		if set == nil {
			set = out[knowledge.LevelFile]
		}
		set.ids = append(set.ids, u.ID)
		set.vectors = append(set.vectors, vectors[i])
	}
	return out
}

func indexName(level knowledge.Level) string {
	if level == knowledge.LevelSymbol {
		return symbolsIndex
	}
	return filesIndex
}

func (s *Snapshot) qdrantCollection(level knowledge.Level) string {
	return fmt.Sprintf("%s-%s-%s", s.cfg.Vector.CollectionPrefix, s.Source.Fingerprint(), indexName(level))
}

func (s *Snapshot) useQdrant() bool {
	return strings.EqualFold(s.cfg.Vector.Backend, "qdrant")
}

func (s *Snapshot) writeIndex(ctx context.Context, level knowledge.Level, ids []string, vectors [][]float32, dim int) error {
	if s.useQdrant() {
		q, err := index.NewQdrant(ctx, s.cfg.Vector.QdrantHost, s.cfg.Vector.QdrantPort, s.qdrantCollection(level), dim)
		if err != nil {
			return err
		}
		defer q.Close()
		if err := q.Reset(ctx); err != nil {
			return err
		}
		return q.Add(ctx, ids, vectors)
	}

	flat := index.NewFlat(dim)
	if err := flat.Add(ctx, ids, vectors); err != nil {
		return err
	}
	return flat.Save(s.Layout.Embeddings(), indexName(level))
}

// openIndex loads the vector index of one level. A missing flat index is
// rebuilt from the embeddings kept with the units; a count that differs
// from the corpus is corruption.
func (s *Snapshot) openIndex(ctx context.Context, level knowledge.Level, units []knowledge.Unit) (index.Index, func(), error) {
	want := 0
	for _, u := range units {
		if u.Level == level {
			want++
		}
	}

	var idx index.Index
	closeFn := func() {}
	if s.useQdrant() {
		q, err := index.NewQdrant(ctx, s.cfg.Vector.QdrantHost, s.cfg.Vector.QdrantPort, s.qdrantCollection(level), s.providers.Embedder.Dimension())
		if err != nil {
			return nil, nil, err
		}
		idx, closeFn = q, func() { q.Close() }
	} else {
		flat, err := index.LoadFlat(s.Layout.Embeddings(), indexName(level))
		if errors.Is(err, fs.ErrNotExist) {
			flat, err = s.rebuildFlat(ctx, level, units)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s index: %w", indexName(level), err)
		}
		idx = flat
	}

	if idx.Len() != want {
		closeFn()
		return nil, nil, fmt.Errorf("%s index: %w: %d vectors for %d units", indexName(level), index.ErrCorrupt, idx.Len(), want)
	}
	return idx, closeFn, nil
}

func (s *Snapshot) rebuildFlat(ctx context.Context, level knowledge.Level, units []knowledge.Unit) (*index.Flat, error) {
	embeddings, err := s.store.LoadEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	var vectors [][]float32
	for _, u := range units {
		if u.Level != level {
			continue
		}
		v, ok := embeddings[u.ID]
		if !ok {
			return nil, fmt.Errorf("%w: unit %s has no embedding", index.ErrCorrupt, u.ID)
		}
		ids = append(ids, u.ID)
		vectors = append(vectors, v)
	}
	dim := s.providers.Embedder.Dimension()
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	s.logf("Rebuilding %s index from %d stored embeddings", indexName(level), len(ids))
	flat := index.NewFlat(dim)
	if err := flat.Add(ctx, ids, vectors); err != nil {
		return nil, err
	}
	if err := flat.Save(s.Layout.Embeddings(), indexName(level)); err != nil {
		return nil, err
	}
	return flat, nil
}

// searcher opens the hybrid retrieval engine over the persisted corpus.
func (s *Snapshot) searcher(ctx context.Context) (*retrieval.Hybrid, func(), error) {
	engine, err := s.engine(false)
	if err != nil {
		return nil, nil, err
	}
	units, err := s.store.LoadUnits(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(units) == 0 {
		return nil, nil, errors.New("no evidence units (run index first)")
	}

	files, closeFiles, err := s.openIndex(ctx, knowledge.LevelFile, units)
	if err != nil {
		return nil, nil, err
	}
	symbols, closeSymbols, err := s.openIndex(ctx, knowledge.LevelSymbol, units)
	if err != nil {
		closeFiles()
		return nil, nil, err
	}
	cleanup := func() {
		closeFiles()
		closeSymbols()
	}
	return retrieval.NewHybrid(engine, files, symbols, retrieval.NewCorpus(units)), cleanup, nil
}
