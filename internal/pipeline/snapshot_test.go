package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"repowiki/internal/config"
	"repowiki/internal/index"
	"repowiki/internal/synth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageMarkdown = "# Page\n\n## Overview\n\nRequests enter through `api/routes.py`.\n\n" +
	"## Diagram(s)\n\n```mermaid\nflowchart LR\n  A[Client] --> B[routes]\n```\n\n" +
	"## References\n\n- `api/routes.py`\n"

// stackGenerator answers every prompt the pipeline sends.
type stackGenerator struct {
	mu     sync.Mutex
	shards *scriptedGenerator
	calls  map[string]int
}

func newStackGenerator() *stackGenerator {
	return &stackGenerator{shards: newScriptedGenerator(), calls: map[string]int{}}
}

func (g *stackGenerator) count(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

func (g *stackGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	kind := "other"
	switch {
	case strings.HasPrefix(prompt, "You are a senior documentation architect"),
		strings.HasPrefix(prompt, "You are a meticulous documentation architect"):
		kind = "structure"
	case strings.HasPrefix(prompt, "Summarize the following"):
		kind = "summary"
	case strings.HasPrefix(prompt, "You are a senior technical writer"):
		kind = "draft"
	case strings.HasPrefix(prompt, "You are a meticulous documentation editor"):
		kind = "refine"
	case strings.HasPrefix(prompt, "You are a codebase assistant"):
		kind = "chat"
	}
	g.mu.Lock()
	g.calls[kind]++
	g.mu.Unlock()

	switch kind {
	case "structure":
		return g.shards.Generate(ctx, system, prompt)
	case "summary":
		first, _, _ := strings.Cut(prompt, "\n")
		return "Summary of " + first, nil
	case "draft", "refine":
		return pageMarkdown, nil
	case "chat":
		return "Routing lives in api/routes.py.", nil
	}
	return "", errors.New("unexpected prompt")
}

type hashEmbedder struct{}

func (hashEmbedder) Dimension() int { return 4 }

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		h := fnv.New32a()
		h.Write([]byte(t))
		sum := h.Sum32()
		v := make([]float32, 4)
		for j := range v {
			v[j] = float32((sum>>(8*j))&0xff) + 1
		}
		out[i] = v
	}
	return out, nil
}

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"README.md":        "# Demo\n\nA small demo service.\n",
		"api/routes.py":    "import flask\n\n\ndef handle_request(req):\n    \"\"\"Route one request.\"\"\"\n    return \"ok\"\n",
		"infra/Dockerfile": "FROM python:3.12\nCOPY . /app\n",
	}
	for p, text := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(text), 0o644))
	}
	return root
}

func openSnapshot(t *testing.T, gen *stackGenerator) *Snapshot {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	cfg.Pipeline.Refine = false

	var providers Providers
	if gen != nil {
		providers = Providers{Generator: gen, Summarizer: gen, Embedder: hashEmbedder{}}
	}
	s, err := Open(context.Background(), cfg, writeRepo(t), providers)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func builtSnapshot(t *testing.T, gen *stackGenerator) *Snapshot {
	t.Helper()
	ctx := context.Background()
	s := openSnapshot(t, gen)
	_, err := s.Scan(ctx)
	require.NoError(t, err)
	_, err = s.Structure(ctx)
	require.NoError(t, err)
	_, err = s.Index(ctx)
	require.NoError(t, err)
	return s
}

func TestSnapshot_ScanStructureValidate(t *testing.T) {
	ctx := context.Background()
	s := openSnapshot(t, newStackGenerator())

	res, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Totals.Files)
	assert.Equal(t, []string{"", "api", "infra"}, res.Manifest.Names())
	assert.FileExists(t, filepath.Join(s.Layout.KnowledgeGraph(), "manifest.json.gz"))

	w, err := s.Structure(ctx)
	require.NoError(t, err)
	require.Len(t, w.Pages, 3)
	assert.Equal(t, "Introduction", w.Pages[0].Title)
	assert.Equal(t, "Request Routing", w.Pages[1].Title)
	assert.Equal(t, "Container Image", w.Pages[2].Title)
	assert.FileExists(t, filepath.Join(s.Layout.WikiXML(), "partial__api.xml"))

	stored, err := s.Wiki(ctx)
	require.NoError(t, err)
	assert.Equal(t, w, stored)
	assert.NoError(t, s.Validate(ctx))

	v, err := s.Expand("_root")
	require.NoError(t, err)
	_, ok := v.Node("file:README.md")
	assert.True(t, ok)
	_, err = s.Expand("web")
	assert.Error(t, err)

	nb, err := s.ExpandNode("api", "file:api/routes.py")
	require.NoError(t, err)
	ids := make([]string, len(nb.Dependencies))
	for i, n := range nb.Dependencies {
		ids[i] = n.ID
	}
	assert.Contains(t, ids, "function:api/routes.py#handle_request")
	assert.Contains(t, ids, "import:flask")
	assert.Empty(t, nb.Dependents)
	_, err = s.ExpandNode("api", "file:api/missing.py")
	assert.Error(t, err)
}

func TestSnapshot_StructureNeedsProviderAndScan(t *testing.T) {
	ctx := context.Background()

	_, err := openSnapshot(t, nil).Structure(ctx)
	assert.ErrorContains(t, err, "generation provider")

	_, err = openSnapshot(t, newStackGenerator()).Structure(ctx)
	assert.ErrorContains(t, err, "run scan first")
}

func TestSnapshot_IndexPagesAndCache(t *testing.T) {
	ctx := context.Background()
	gen := newStackGenerator()
	s := builtSnapshot(t, gen)

	units, err := s.store.LoadUnits(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, units)
	assert.Equal(t, len(units), gen.count("summary"))

	results, err := s.Pages(ctx, PagesOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.CacheHit, r.ID)
		assert.NotEmpty(t, r.Evidence, r.ID)
		assert.Contains(t, r.Markdown, "```mermaid")
		assert.FileExists(t, filepath.Join(s.Layout.Pages(), r.ID+".md"))
	}
	assert.FileExists(t, filepath.Join(s.Layout.Pages(), "index.md"))
	drafts := gen.count("draft")
	assert.Equal(t, 3, drafts)

	again, err := s.Pages(ctx, PagesOptions{})
	require.NoError(t, err)
	require.Len(t, again, 3)
	for i, r := range again {
		assert.True(t, r.CacheHit, r.ID)
		assert.Equal(t, results[i].Markdown, r.Markdown)
	}
	assert.Equal(t, drafts, gen.count("draft"))

	forced, err := s.Pages(ctx, PagesOptions{PageIDs: []string{"page-2"}, Force: true})
	require.NoError(t, err)
	require.Len(t, forced, 1)
	assert.Equal(t, "page-2", forced[0].ID)
	assert.False(t, forced[0].CacheHit)
	assert.Equal(t, drafts+1, gen.count("draft"))

	_, err = s.Pages(ctx, PagesOptions{PageIDs: []string{"page-99"}})
	assert.ErrorContains(t, err, `unknown page "page-99"`)
}

func TestSnapshot_Index(t *testing.T) {
	ctx := context.Background()
	s := openSnapshot(t, newStackGenerator())

	stats, err := s.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FileUnits)
	assert.GreaterOrEqual(t, stats.SymbolUnits, 1)
	assert.Equal(t, stats.FileUnits+stats.SymbolUnits, stats.Summarized)
	assert.Equal(t, 4, stats.Dimension)
	assert.FileExists(t, filepath.Join(s.Layout.Embeddings(), "files.index"))
	assert.FileExists(t, filepath.Join(s.Layout.Embeddings(), "symbols_ids.json"))
}

func TestSnapshot_Chat(t *testing.T) {
	ctx := context.Background()
	gen := newStackGenerator()
	s := builtSnapshot(t, gen)

	ans, err := s.Chat(ctx, []synth.Turn{{Question: "What is this?", Answer: "A demo."}}, "Where is routing?")
	require.NoError(t, err)
	assert.False(t, ans.Degraded)
	assert.Equal(t, "Routing lives in api/routes.py.", ans.Text)
	assert.NotEmpty(t, ans.UnitIDs)
	assert.Equal(t, 1, gen.count("chat"))
}

func TestSnapshot_MissingFlatIndexIsRebuilt(t *testing.T) {
	ctx := context.Background()
	s := builtSnapshot(t, newStackGenerator())

	dir := s.Layout.Embeddings()
	require.NoError(t, os.Remove(filepath.Join(dir, "files.index")))
	require.NoError(t, os.Remove(filepath.Join(dir, "files_ids.json")))

	ans, err := s.Chat(ctx, nil, "Where is routing?")
	require.NoError(t, err)
	assert.False(t, ans.Degraded)
	assert.FileExists(t, filepath.Join(dir, "files.index"))

	flat, err := index.LoadFlat(dir, "files")
	require.NoError(t, err)
	assert.Equal(t, 3, flat.Len())
}

func TestSnapshot_CorruptIndexAborts(t *testing.T) {
	ctx := context.Background()
	s := builtSnapshot(t, newStackGenerator())

	short := index.NewFlat(4)
	require.NoError(t, short.Add(ctx, []string{"stray"}, [][]float32{{1, 2, 3, 4}}))
	require.NoError(t, short.Save(s.Layout.Embeddings(), "files"))

	_, err := s.Chat(ctx, nil, "Where is routing?")
	assert.ErrorIs(t, err, index.ErrCorrupt)

	_, err = s.Pages(ctx, PagesOptions{})
	assert.ErrorIs(t, err, index.ErrCorrupt)
}
