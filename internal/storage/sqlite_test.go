package storage

import (
	"context"
	"path/filepath"
	"testing"

	"repowiki/internal/extractor"
	"repowiki/internal/graph"
	"repowiki/internal/knowledge"
	"repowiki/internal/wiki"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveGraph_SnapshotSync(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g1, _ := graph.Build(graph.Meta{Repo: "acme/app"}, []extractor.FileRecord{
		{Path: "a.go", Lang: "go", Functions: []string{"A"}, Imports: []string{"fmt"}},
		{Path: "b.go", Lang: "go", Functions: []string{"B"}, Imports: []string{"os"}},
	})
	require.NoError(t, store.SaveGraph(ctx, g1))

	// New snapshot: a.go removed, c.py added.
	g2, _ := graph.Build(graph.Meta{Repo: "acme/app", Branch: "main"}, []extractor.FileRecord{
		{Path: "b.go", Lang: "go", Functions: []string{"B"}, Imports: []string{"os"}},
		{Path: "c.py", Lang: "python", Classes: []string{"C"}, Imports: []string{"json", "os"}},
	})
	require.NoError(t, store.SaveGraph(ctx, g2))

	loaded, err := store.LoadGraph(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"b.go", "c.py"}, loaded.Paths())
	assert.Equal(t, "main", loaded.Meta.Branch)
	assert.Equal(t, []string{"os", "json"}, loaded.Imports.Names())
	assert.Equal(t, []string{"json", "os"}, loaded.ImportNames(loaded.Files[1]))
	assert.Equal(t, []string{"C"}, loaded.Files[1].Classes)
}

func TestSQLiteStore_SaveGraph_EmptySnapshotClearsData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g, _ := graph.Build(graph.Meta{}, []extractor.FileRecord{{Path: "main.go", Lang: "go"}})
	require.NoError(t, store.SaveGraph(ctx, g))

	empty, _ := graph.Build(graph.Meta{}, nil)
	require.NoError(t, store.SaveGraph(ctx, empty))

	loaded, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Files)
	assert.Zero(t, loaded.Imports.Len())
}

func TestSQLiteStore_LoadGraph_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadGraph(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func testUnit(id, path, name string, level knowledge.Level) knowledge.Unit {
	return knowledge.Unit{
		ID:        id,
		Level:     level,
		Path:      path,
		Lang:      "go",
		Name:      name,
		Signature: "func " + name + "()",
		StartLine: 1,
		EndLine:   10,
		Code:      "func " + name + "() {}",
		Summary:   name + " does things.",
	}
}

func TestSQLiteStore_SaveUnits_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	units := []knowledge.Unit{
		testUnit("file::a.go", "a.go", "", knowledge.LevelFile),
		testUnit("symbol::a.go::function::A::1", "a.go", "A", knowledge.LevelSymbol),
		testUnit("file::b.go", "b.go", "", knowledge.LevelFile),
	}
	vecs := [][]float32{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}
	require.NoError(t, store.SaveUnits(ctx, units, vecs))

	loaded, err := store.LoadUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, units, loaded)

	embeddings, err := store.LoadEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, embeddings, 3)
	assert.Equal(t, []float32{0.3, 0.4}, embeddings["symbol::a.go::function::A::1"])

	byFile, err := store.FindUnitsByFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, byFile, 2)
	assert.Equal(t, knowledge.LevelFile, byFile[0].Level)
	assert.Equal(t, "A", byFile[1].Name)
}

func TestSQLiteStore_SaveUnits_ReplacesSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUnits(ctx, []knowledge.Unit{
		testUnit("file::old.go", "old.go", "", knowledge.LevelFile),
	}, nil))
	require.NoError(t, store.SaveUnits(ctx, []knowledge.Unit{
		testUnit("file::new.go", "new.go", "", knowledge.LevelFile),
	}, nil))

	loaded, err := store.LoadUnits(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "file::new.go", loaded[0].ID)

	embeddings, err := store.LoadEmbeddings(ctx)
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestSQLiteStore_SaveUnits_EmbeddingCountMismatch(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveUnits(context.Background(), []knowledge.Unit{
		testUnit("file::a.go", "a.go", "", knowledge.LevelFile),
	}, [][]float32{{1}, {2}})
	assert.Error(t, err)
}

func TestSQLiteStore_Wiki(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.LoadWiki(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	w := wiki.Structure{
		Title:    "acme/app",
		Sections: []wiki.Section{{ID: "section-1", Title: "Overview", PageRefs: []string{"page-1"}}},
		Pages: []wiki.Page{{
			ID: "page-1", Title: "Intro", Importance: wiki.ImportanceHigh,
			Files: []string{"README.md"}, Parent: "section-1",
		}},
	}
	require.NoError(t, store.SaveWiki(ctx, w))

	w.Title = "acme/app v2"
	require.NoError(t, store.SaveWiki(ctx, w))

	loaded, err := store.LoadWiki(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme/app v2", loaded.Title)
	assert.Equal(t, []string{"README.md"}, loaded.Pages[0].Files)
}

func TestVectorCodec(t *testing.T) {
	blob, err := encodeVector([]float32{1.5, -2})
	require.NoError(t, err)
	assert.Len(t, blob, 8)

	v, err := decodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, v)

	_, err = decodeVector(blob[:5])
	assert.Error(t, err)
}
