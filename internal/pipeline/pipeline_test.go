package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"repowiki/internal/crawler"
	"repowiki/internal/extractor"
	"repowiki/internal/graph"
	"repowiki/internal/policy"
	"repowiki/internal/shard"
	"repowiki/internal/wiki"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shardLine = regexp.MustCompile(`This prompt is for shard: (\S+)`)

const apiPartial = `Here you go:
<partial_wiki><sections>
  <section id="sec-api-1"><title>Backend Systems</title><pages>
    <page id="page-api-1"><title>Request Routing</title><description>How requests are routed</description>
      <importance>high</importance>
      <relevant_files><file_path>api/routes.py</file_path><file_path>infra/Dockerfile</file_path></relevant_files>
      <related_pages><related>page-api-2</related></related_pages>
    </page>
    <page id="page-api-2"><title>Ghost</title><description>Cites nothing real</description>
      <importance>low</importance>
      <relevant_files><file_path>missing/file.py</file_path></relevant_files>
    </page>
  </pages></section>
  <section id="sec-api-2"><title>Misc</title><pages>
    <page id="page-api-3"><title>Scratch</title><relevant_files><file_path>api/routes.py</file_path></relevant_files></page>
  </pages></section>
</sections></partial_wiki>`

const infraPartial = `<partial_wiki><sections>
  <section id="sec-infra-1"><title>Deployment/Infrastructure</title><pages>
    <page id="page-infra-1"><title>Container Image</title><description>Docker build</description>
      <importance>medium</importance>
      <relevant_files><file_path>infra/Dockerfile</file_path></relevant_files>
    </page>
  </pages></section>
</sections></partial_wiki>`

const rootPartial = `<partial_wiki><sections>
  <section id="sec-_root-1"><title>overview</title><pages>
    <page id="page-_root-1"><title>Introduction</title><description>What the project is</description>
      <importance>high</importance>
      <relevant_files><file_path>README.md</file_path></relevant_files>
      <related_pages><related>page-api-1</related></related_pages>
    </page>
  </pages></section>
</sections></partial_wiki>`

// scriptedGenerator answers shard prompts by shard label and refine
// prompts with refine.
type scriptedGenerator struct {
	mu        sync.Mutex
	shards    map[string]string
	fail      map[string]bool
	refine    string
	refineErr error
	prompts   map[string]string
	refined   int
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		shards:  map[string]string{"api": apiPartial, "infra": infraPartial, "_root": rootPartial},
		fail:    map[string]bool{},
		prompts: map[string]string{},
	}
}

func (g *scriptedGenerator) Generate(_ context.Context, _, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if strings.HasPrefix(prompt, "You are a meticulous documentation architect") {
		g.refined++
		g.prompts["refine"] = prompt
		return g.refine, g.refineErr
	}
	m := shardLine.FindStringSubmatch(prompt)
	if m == nil {
		return "", errors.New("unexpected prompt")
	}
	g.prompts[m[1]] = prompt
	if g.fail[m[1]] {
		return "", errors.New("quota exceeded")
	}
	return g.shards[m[1]], nil
}

func exampleGraph() *graph.Graph {
	g, _ := graph.Build(graph.Meta{Repo: "acme/app"}, []extractor.FileRecord{
		{Path: "api/routes.py", Lang: "python", Functions: []string{"handle_request"}, Imports: []string{"flask"}},
		{Path: "infra/Dockerfile", Lang: "text"},
		{Path: "README.md", Lang: "text"},
	})
	return g
}

func exampleShards(t *testing.T, g *graph.Graph) []*shard.Shard {
	t.Helper()
	m, byName := shard.Split(g)
	shards, err := ShardsInOrder(m, byName)
	require.NoError(t, err)
	return shards
}

func exampleOptions(g *graph.Graph) StructureOptions {
	files := map[string]bool{}
	for _, p := range g.Paths() {
		files[p] = true
	}
	return StructureOptions{
		OwnerRepo: "acme/app",
		Language:  "English",
		Policy:    policy.Derive(g.Paths()),
		Files:     files,
		Workers:   2,
		MinPages:  6,
		MaxPages:  14,
	}
}

func TestRankFiles(t *testing.T) {
	g, _ := graph.Build(graph.Meta{}, []extractor.FileRecord{
		{Path: "c.py", Lang: "python"},
		{Path: "b.py", Lang: "python", Functions: []string{"x", "y", "z"}},
		{Path: "a.py", Lang: "python", Functions: []string{"f", "g"}, Imports: []string{"os"}},
		{Path: "d.txt"},
	})

	rows := RankFiles(g, 0)
	var paths []string
	for _, r := range rows {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"a.py", "b.py", "c.py", "d.txt"}, paths)
	assert.Equal(t, []string{"os"}, rows[0].Imports)
	assert.Equal(t, 3, rows[0].SymbolCount)
	assert.Equal(t, "unknown", rows[3].Lang)
	assert.Equal(t, []string{}, rows[3].Classes)

	assert.Len(t, RankFiles(g, 2), 2)
}

func TestReadmeExcerpt(t *testing.T) {
	readmes := []Readme{
		{Path: "pkg/sub/README.md", Text: "nested"},
		{Path: "examples/README.md", Text: "examples"},
		{Path: "docs/README.md", Text: "docs"},
		{Path: "README.md", Text: "root"},
	}

	out := ReadmeExcerpt(readmes, 4000)
	assert.True(t, strings.HasPrefix(out, "### README.md\nroot"))
	root := strings.Index(out, "### README.md")
	docs := strings.Index(out, "### docs/README.md")
	examples := strings.Index(out, "### examples/README.md")
	nested := strings.Index(out, "### pkg/sub/README.md")
	assert.True(t, root < docs && docs < examples && examples < nested, out)

	short := ReadmeExcerpt([]Readme{{Path: "README.md", Text: strings.Repeat("x", 100)}}, 30)
	assert.LessOrEqual(t, len(short), 30)
	assert.True(t, strings.HasPrefix(short, "### README.md"))

	assert.Empty(t, ReadmeExcerpt(nil, 4000))
}

func TestCollectReadmes(t *testing.T) {
	got := CollectReadmes([]crawler.SourceFile{
		{Path: "README.md", Text: "hi", Readable: true},
		{Path: "docs/readme.rst", Readable: false},
		{Path: "main.go", Text: "package main", Readable: true},
	})
	assert.Equal(t, []Readme{{Path: "README.md", Text: "hi"}}, got)
}

func TestShardPrompt(t *testing.T) {
	g := exampleGraph()
	pol := policy.Derive(g.Paths())
	prompt := ShardPrompt(ShardRequest{
		OwnerRepo: "acme/app",
		Language:  "English",
		Shard:     "api",
		Files:     RankFiles(g, 0),
		Allowed:   pol.AllowedDisplay(),
		Forbidden: displayAll(pol.Forbidden),
		Readme:    "### README.md\nDemo",
		MinPages:  6,
		MaxPages:  14,
	})

	assert.True(t, strings.HasPrefix(prompt, "You are a senior documentation architect."))
	assert.Contains(t, prompt, "This prompt is for shard: api\n")
	assert.Contains(t, prompt, "Source: (unknown)")
	assert.Contains(t, prompt, `"Backend Systems"`)
	assert.Contains(t, prompt, `"Frontend Components"`)
	assert.Contains(t, prompt, "<readme>\n### README.md\nDemo\n</readme>")
	assert.Contains(t, prompt, `"api/routes.py"`)
	assert.Contains(t, prompt, `"handle_request"`)
	assert.Contains(t, prompt, `<section id="sec-api-1">`)
	assert.Contains(t, prompt, "sec-api-N, page-api-N")
	assert.Contains(t, prompt, "Keep 6-14 pages")
}

func TestBuildStructure_MergesPrunesAndDegrades(t *testing.T) {
	g := exampleGraph()
	gen := newScriptedGenerator()
	gen.fail["infra"] = true
	opts := exampleOptions(g)
	opts.PartialDir = t.TempDir()

	w, err := BuildStructure(context.Background(), gen, exampleShards(t, g), opts)
	require.NoError(t, err)

	assert.Equal(t, "Wiki – acme/app", w.Title)
	assert.Equal(t, "Auto-generated wiki structure.", w.Description)
	require.Len(t, w.Sections, 2)
	assert.Equal(t, "Backend Systems", w.Sections[0].Title)
	assert.Equal(t, "overview", w.Sections[1].Title)
	require.Len(t, w.Pages, 2)
	assert.Equal(t, "page-1", w.Pages[0].ID)
	assert.Equal(t, "Request Routing", w.Pages[0].Title)
	assert.Empty(t, w.Pages[0].Related, "reference to the pruned page is dropped")
	assert.Empty(t, w.Pages[1].Related, "ids are shard-local")
	assert.Equal(t, "section-2", w.Pages[1].Parent)
	require.NoError(t, wiki.Validate(w, opts.Files))

	_, err = os.Stat(filepath.Join(opts.PartialDir, "partial__api.xml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(opts.PartialDir, "partial__infra.xml"))
	assert.True(t, os.IsNotExist(err))
	assert.Zero(t, gen.refined)
}

func TestBuildStructure_AllShardsFail(t *testing.T) {
	g := exampleGraph()
	gen := newScriptedGenerator()
	gen.fail = map[string]bool{"api": true, "infra": true, "_root": true}
	opts := exampleOptions(g)
	opts.Refine = true

	w, err := BuildStructure(context.Background(), gen, exampleShards(t, g), opts)
	require.NoError(t, err)
	assert.Empty(t, w.Pages)
	assert.Empty(t, w.Sections)
	assert.Zero(t, gen.refined, "nothing to refine")
}

func TestBuildStructure_Refine(t *testing.T) {
	g := exampleGraph()
	gen := newScriptedGenerator()
	gen.refine = `<wiki_structure>
  <title>Acme App</title>
  <description>A demo service.</description>
  <sections>
    <section id="section-7"><title>Deployment/Infrastructure</title>
      <pages><page_ref>page-9</page_ref></pages>
    </section>
  </sections>
  <pages>
    <page id="page-9"><title>Shipping</title><description>Docker</description><importance>HIGH</importance>
      <relevant_files><file_path>infra/Dockerfile</file_path></relevant_files>
      <parent_section>section-7</parent_section>
    </page>
    <page id="page-10"><title>Invented</title><description>x</description><importance>low</importance>
      <relevant_files><file_path>nope.go</file_path></relevant_files>
      <parent_section>section-7</parent_section>
    </page>
  </pages>
</wiki_structure>`
	opts := exampleOptions(g)
	opts.Refine = true

	w, err := BuildStructure(context.Background(), gen, exampleShards(t, g), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.refined)
	assert.Contains(t, gen.prompts["refine"], "<wiki_structure>")
	assert.Contains(t, gen.prompts["refine"], "Request Routing")
	assert.Equal(t, "Acme App", w.Title)
	require.Len(t, w.Pages, 1)
	assert.Equal(t, wiki.Page{
		ID: "page-1", Title: "Shipping", Description: "Docker", Importance: "high",
		Files: []string{"infra/Dockerfile"}, Related: []string{}, Parent: "section-1",
	}, w.Pages[0])
	assert.Equal(t, []string{"page-1"}, w.Sections[0].PageRefs)
}

func TestBuildStructure_RefineFallsBack(t *testing.T) {
	tests := map[string]*scriptedGenerator{
		"garbage": func() *scriptedGenerator {
			g := newScriptedGenerator()
			g.refine = "I could not do it."
			return g
		}(),
		"error": func() *scriptedGenerator {
			g := newScriptedGenerator()
			g.refineErr = errors.New("timeout")
			return g
		}(),
		"everything pruned": func() *scriptedGenerator {
			g := newScriptedGenerator()
			g.refine = `<wiki_structure><sections><section id="section-1"><title>Misc</title>
<pages><page_ref>page-1</page_ref></pages></section></sections>
<pages><page id="page-1"><title>X</title><relevant_files><file_path>README.md</file_path></relevant_files>
<parent_section>section-1</parent_section></page></pages></wiki_structure>`
			return g
		}(),
	}
	for name, gen := range tests {
		t.Run(name, func(t *testing.T) {
			g := exampleGraph()
			opts := exampleOptions(g)
			opts.Refine = true

			w, err := BuildStructure(context.Background(), gen, exampleShards(t, g), opts)
			require.NoError(t, err)
			assert.Equal(t, 1, gen.refined)
			require.Len(t, w.Pages, 3)
			assert.Equal(t, "Request Routing", w.Pages[0].Title)
			assert.Equal(t, "Container Image", w.Pages[1].Title)
			assert.Equal(t, "Introduction", w.Pages[2].Title)
		})
	}
}

func TestBuildStructure_CancelledContext(t *testing.T) {
	g := exampleGraph()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildStructure(ctx, newScriptedGenerator(), exampleShards(t, g), exampleOptions(g))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildStructure_CollidingShardLabelsKeepIDsApart(t *testing.T) {
	g, _ := graph.Build(graph.Meta{}, []extractor.FileRecord{
		{Path: "my docs/x.py", Lang: "python"},
		{Path: "my-docs/y.py", Lang: "python"},
	})
	gen := newScriptedGenerator()
	gen.shards = map[string]string{
		"my-docs": `<partial_wiki><sections><section id="sec-1"><title>Core Features</title><pages>
  <page id="page-1"><title>Alpha</title><relevant_files><file_path>my docs/x.py</file_path></relevant_files></page>
</pages></section></sections></partial_wiki>`,
		"my-docs-2": `<partial_wiki><sections><section id="sec-1"><title>Core Features</title><pages>
  <page id="page-1"><title>Beta</title><relevant_files><file_path>my-docs/y.py</file_path></relevant_files></page>
  <page id="page-2"><title>Gamma</title><relevant_files><file_path>my-docs/y.py</file_path></relevant_files>
    <related_pages><related>page-1</related></related_pages></page>
</pages></section></sections></partial_wiki>`,
	}

	w, err := BuildStructure(context.Background(), gen, exampleShards(t, g), exampleOptions(g))
	require.NoError(t, err)

	assert.Contains(t, gen.prompts, "my-docs")
	assert.Contains(t, gen.prompts, "my-docs-2")
	require.Len(t, w.Pages, 3)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, []string{w.Pages[0].Title, w.Pages[1].Title, w.Pages[2].Title})
	assert.Equal(t, []string{w.Pages[1].ID}, w.Pages[2].Related)
}
