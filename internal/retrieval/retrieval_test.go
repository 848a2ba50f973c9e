package retrieval

import (
	"context"
	"errors"
	"testing"

	"repowiki/internal/index"
	"repowiki/internal/knowledge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func fileUnit(path, summary string) knowledge.Unit {
	return knowledge.Unit{ID: "file::" + path, Level: knowledge.LevelFile, Path: path, Summary: summary}
}

func symbolUnit(path, name, sig string) knowledge.Unit {
	return knowledge.Unit{
		ID:        "symbol::" + path + "::function::" + name + "::1",
		Level:     knowledge.LevelSymbol,
		Path:      path,
		Name:      name,
		Signature: sig,
	}
}

func testCorpus() []knowledge.Unit {
	return []knowledge.Unit{
		fileUnit("api/routes.py", "HTTP routes."),
		fileUnit("infra/docker/Dockerfile", ""),
		fileUnit("Dockerfile", ""),
		fileUnit("deploy/helm/values.yaml", "Helm values."),
		fileUnit("README.md", "Project readme."),
		symbolUnit("api/routes.py", "handle_request", "def handle_request(req)"),
		symbolUnit("tools/build.py", "build_dockerfile", "def build_dockerfile()"),
	}
}

func TestSectionHints(t *testing.T) {
	assert.Contains(t, SectionHints("Deployment/Infrastructure"), "dockerfile")
	assert.Contains(t, SectionHints("  deployment/infrastructure "), "helm")
	assert.Equal(t, SectionHints("Backend Systems"), SectionHints("backend-systems"))
	assert.Empty(t, SectionHints("Random"))

	h := SectionHints("Overview")
	h[0] = "mutated"
	assert.Equal(t, "readme", SectionHints("Overview")[0])
}

func TestLexical_RanksSummaryThenShortPath(t *testing.T) {
	files, symbols := Lexical(testCorpus(), SectionHints("Deployment/Infrastructure"), 6, 10)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"deploy/helm/values.yaml", "Dockerfile", "infra/docker/Dockerfile"}, paths)

	require.Len(t, symbols, 1)
	assert.Equal(t, "build_dockerfile", symbols[0].Name)
}

func TestLexical_Caps(t *testing.T) {
	files, _ := Lexical(testCorpus(), []string{"docker"}, 1, 0)
	require.Len(t, files, 1)
	assert.Equal(t, "Dockerfile", files[0].Path)

	files, symbols := Lexical(testCorpus(), nil, 5, 5)
	assert.Empty(t, files)
	assert.Empty(t, symbols)
}

func TestCombine_DedupesWithVectorPrecedence(t *testing.T) {
	a := []Hit{
		{Unit: fileUnit("a.go", ""), Score: 0.9, Source: SourceVector},
		{Unit: fileUnit("b.go", ""), Score: 0.8, Source: SourceVector},
	}
	b := []Hit{
		{Unit: fileUnit("b.go", ""), Source: SourceLexical},
		{Unit: fileUnit("c.go", ""), Source: SourceLexical},
		{Unit: fileUnit("c.go", ""), Source: SourceLexical},
	}

	got := Combine(a, b)
	assert.Equal(t, []string{"file::a.go", "file::b.go", "file::c.go"}, IDs(got))
	assert.Equal(t, SourceVector, got[1].Source)
	assert.Equal(t, SourceLexical, got[2].Source)
}

func newTestHybrid(t *testing.T, units []knowledge.Unit, em QueryEmbedder) *Hybrid {
	t.Helper()
	ctx := context.Background()
	files := index.NewFlat(2)
	symbols := index.NewFlat(2)
	require.NoError(t, files.Add(ctx,
		[]string{"file::api/routes.py", "file::README.md", "file::Dockerfile"},
		[][]float32{{1, 0}, {0.5, 0.5}, {0, 1}}))
	require.NoError(t, symbols.Add(ctx,
		[]string{"symbol::api/routes.py::function::handle_request::1"},
		[][]float32{{1, 0}}))
	return NewHybrid(em, files, symbols, NewCorpus(units))
}

func TestHybridSearch(t *testing.T) {
	h := newTestHybrid(t, testCorpus(), fakeEmbedder{vec: []float32{1, 0}})

	res, err := h.Search(context.Background(), "how are requests routed", "Deployment/Infrastructure",
		Options{TopKFile: 2, TopKSymbol: 1, ExtraFile: 6, ExtraSymbol: 10})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"file::api/routes.py",
		"file::README.md",
		"file::deploy/helm/values.yaml",
		"file::Dockerfile",
		"file::infra/docker/Dockerfile",
	}, IDs(res.Files))
	assert.Equal(t, SourceVector, res.Files[0].Source)
	assert.InDelta(t, 1.0, res.Files[0].Score, 1e-5)

	assert.Equal(t, []string{
		"symbol::api/routes.py::function::handle_request::1",
		"symbol::tools/build.py::function::build_dockerfile::1",
	}, IDs(res.Symbols))

	ctxHits := res.Context(3)
	assert.Equal(t, []string{
		"symbol::api/routes.py::function::handle_request::1",
		"symbol::tools/build.py::function::build_dockerfile::1",
		"file::api/routes.py",
	}, IDs(ctxHits))
}

func TestHybridSearch_VectorHitsNeverDropped(t *testing.T) {
	h := newTestHybrid(t, testCorpus(), fakeEmbedder{vec: []float32{0, 1}})

	res, err := h.Search(context.Background(), "q", "Deployment/Infrastructure",
		Options{TopKFile: 3, TopKSymbol: 1, ExtraFile: 6, ExtraSymbol: 10})
	require.NoError(t, err)

	ids := IDs(res.Files)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	for _, id := range []string{"file::api/routes.py", "file::README.md", "file::Dockerfile"} {
		assert.True(t, seen[id], id)
	}
	assert.Equal(t, "file::Dockerfile", ids[0])
}

func TestHybridSearch_CorpusMismatchIsCorrupt(t *testing.T) {
	units := testCorpus()[1:] // drop api/routes.py from the corpus
	h := newTestHybrid(t, units, fakeEmbedder{vec: []float32{1, 0}})

	_, err := h.Search(context.Background(), "q", "Overview", Options{TopKFile: 1, TopKSymbol: 1})
	assert.ErrorIs(t, err, index.ErrCorrupt)
}

func TestHybridSearch_EmbedError(t *testing.T) {
	boom := errors.New("quota")
	h := newTestHybrid(t, testCorpus(), fakeEmbedder{err: boom})

	_, err := h.Search(context.Background(), "q", "Overview", Options{TopKFile: 1})
	assert.ErrorIs(t, err, boom)
}
