package retrieval

import (
	"context"
	"fmt"

	"repowiki/internal/index"
	"repowiki/internal/knowledge"
)

// Source tells which path produced a hit.
type Source string

const (
	SourceVector  Source = "vector"
	SourceLexical Source = "lexical"
)

// Hit is an evidence unit selected for a query.
type Hit struct {
	knowledge.Unit
	Score  float32 `json:"score"`
	Source Source  `json:"source"`
}

// Result holds hits per granularity.
type Result struct {
	Files   []Hit
	Symbols []Hit
}

// Options are the retrieval knobs.
type Options struct {
	TopKFile    int
	TopKSymbol  int
	ExtraFile   int
	ExtraSymbol int
}

// QueryEmbedder embeds one query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Corpus is the evidence-unit set in a fixed order with lookup by id.
type Corpus struct {
	units []knowledge.Unit
	byID  map[string]int
}

func NewCorpus(units []knowledge.Unit) *Corpus {
	c := &Corpus{units: units, byID: make(map[string]int, len(units))}
	for i, u := range units {
		if _, dup := c.byID[u.ID]; !dup {
			c.byID[u.ID] = i
		}
	}
	return c
}

func (c *Corpus) Units() []knowledge.Unit { return c.units }
func (c *Corpus) Len() int                { return len(c.units) }

func (c *Corpus) Get(id string) (knowledge.Unit, bool) {
	i, ok := c.byID[id]
	if !ok {
		return knowledge.Unit{}, false
	}
	return c.units[i], true
}

// Hybrid searches a file-level and a symbol-level index and backfills with
// lexical matches.
type Hybrid struct {
	embedder QueryEmbedder
	files    index.Index
	symbols  index.Index
	corpus   *Corpus
}

func NewHybrid(embedder QueryEmbedder, files, symbols index.Index, corpus *Corpus) *Hybrid {
	return &Hybrid{embedder: embedder, files: files, symbols: symbols, corpus: corpus}
}

// Search returns vector hits followed by lexical hits for section that the
// vector path missed. A vector hit whose id is not in the corpus means the
// index and corpus are out of step and is reported as index.ErrCorrupt.
func (h *Hybrid) Search(ctx context.Context, query, section string, opts Options) (Result, error) {
	qvec, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed query: %w", err)
	}

	fileHits, err := h.vector(ctx, h.files, qvec, opts.TopKFile)
	if err != nil {
		return Result{}, fmt.Errorf("file index: %w", err)
	}
	symHits, err := h.vector(ctx, h.symbols, qvec, opts.TopKSymbol)
	if err != nil {
		return Result{}, fmt.Errorf("symbol index: %w", err)
	}

	lexFiles, lexSyms := Lexical(h.corpus.Units(), SectionHints(section), opts.ExtraFile, opts.ExtraSymbol)

	return Result{
		Files:   Combine(fileHits, lexicalHits(lexFiles)),
		Symbols: Combine(symHits, lexicalHits(lexSyms)),
	}, nil
}

func (h *Hybrid) vector(ctx context.Context, idx index.Index, qvec []float32, k int) ([]Hit, error) {
	if idx == nil || k <= 0 {
		return nil, nil
	}
	raw, err := idx.Search(ctx, qvec, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(raw))
	for _, r := range raw {
		u, ok := h.corpus.Get(r.ID)
		if !ok {
			return nil, fmt.Errorf("%w: unit %s is indexed but missing from the corpus", index.ErrCorrupt, r.ID)
		}
		hits = append(hits, Hit{Unit: u, Score: r.Score, Source: SourceVector})
	}
	return hits, nil
}

func lexicalHits(units []knowledge.Unit) []Hit {
	out := make([]Hit, len(units))
	for i, u := range units {
		out[i] = Hit{Unit: u, Source: SourceLexical}
	}
	return out
}

// Combine concatenates a and b and drops repeated unit ids, keeping the
// first occurrence. Order is otherwise unchanged.
func Combine(a, b []Hit) []Hit {
	out := make([]Hit, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]Hit{a, b} {
		for _, h := range list {
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			out = append(out, h)
		}
	}
	return out
}

// Context returns up to maxUnits hits, symbols first, then files.
func (r Result) Context(maxUnits int) []Hit {
	out := make([]Hit, 0, maxUnits)
	for _, h := range r.Symbols {
		if len(out) >= maxUnits {
			return out
		}
		out = append(out, h)
	}
	for _, h := range r.Files {
		if len(out) >= maxUnits {
			break
		}
		out = append(out, h)
	}
	return out
}

// IDs returns the unit ids of hits in order.
func IDs(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}
