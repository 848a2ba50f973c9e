package knowledge

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// Engine summarizes and embeds evidence units.
type Engine struct {
	generator Generator
	embedder  Embedder
	workers   int
	batchSize int
}

// NewEngine creates an engine. generator may be nil, in which case units
// keep empty summaries.
func NewEngine(gen Generator, em Embedder, workers, batchSize int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Engine{
		generator: gen,
		embedder:  em,
		workers:   workers,
		batchSize: batchSize,
	}
}

// Summarize returns a copy of units with summaries filled in. A failed
// summary is logged and left empty.
func (e *Engine) Summarize(ctx context.Context, units []Unit) []Unit {
	out := make([]Unit, len(units))
	copy(out, units)
	if e.generator == nil {
		return out
	}

	var failed atomic.Int64
	p := pool.New().WithMaxGoroutines(e.workers)
	for i := range out {
		if strings.TrimSpace(out[i].Code) == "" || out[i].Summary != "" {
			continue
		}
		p.Go(func() {
			text, err := e.generator.Generate(ctx, "", SummaryPrompt(out[i]))
			if err != nil {
				failed.Add(1)
				log.Printf("WARNING: summary failed for %s: %v", out[i].ID, err)
				return
			}
			out[i].Summary = CleanMarkdown(text)
		})
	}
	p.Wait()

	if n := failed.Load(); n > 0 {
		log.Printf("WARNING: %d of %d summaries failed", n, len(out))
	}
	return out
}

// Embed embeds texts in batches, preserving order.
func (e *Engine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch, err := e.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(batch), end-i)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedUnits embeds the EmbeddingText of each unit.
func (e *Engine) EmbedUnits(ctx context.Context, units []Unit) ([][]float32, error) {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = EmbeddingText(u)
	}
	return e.Embed(ctx, texts)
}

// EmbedQuery embeds a single query string.
func (e *Engine) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return vecs[0], nil
}

// Dimension reports the embedder's vector size.
func (e *Engine) Dimension() int {
	if e.embedder == nil {
		return 0
	}
	return e.embedder.Dimension()
}
