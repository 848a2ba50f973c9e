package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repowiki/internal/extractor"
	"repowiki/internal/graph"
)

func exampleGraph() *graph.Graph {
	g, _ := graph.Build(graph.Meta{Repo: "acme/demo"}, []extractor.FileRecord{
		{Path: "README.md", Lang: "text"},
		{Path: "api/routes.py", Lang: "python", Functions: []string{"handle_request"}, Imports: []string{"flask"}},
		{Path: "api/v1/users.py", Lang: "python", Classes: []string{"User"}},
		{Path: "infra/Dockerfile", Lang: "text"},
		{Path: "setup.py", Lang: "python", Imports: []string{"setuptools"}},
	})
	return g
}

func TestTopDir(t *testing.T) {
	assert.Equal(t, "api", TopDir("api/routes.py"))
	assert.Equal(t, "api", TopDir("api/v1/users.py"))
	assert.Equal(t, RootShard, TopDir("README.md"))
}

func TestSplit_Partition(t *testing.T) {
	g := exampleGraph()
	m, shards := Split(g)

	assert.Equal(t, []string{RootShard, "api", "infra"}, m.Names())
	assert.Equal(t, 5, m.FilesTotal)
	assert.Equal(t, 2, m.ImportsCount)

	seen := map[string]int{}
	total := 0
	for _, name := range m.Names() {
		s := shards[name]
		require.NotNil(t, s)
		for _, f := range s.Graph.Files {
			seen[f.Path]++
			total++
			assert.Equal(t, name, TopDir(f.Path))
		}
		assert.Same(t, g.Imports, s.Graph.Imports)
	}
	assert.Equal(t, len(g.Files), total)
	for _, p := range g.Paths() {
		assert.Equal(t, 1, seen[p], p)
	}

	assert.Equal(t, "shards/shard___root.json.gz", m.Shards[0].Path)
	assert.Equal(t, "shards/shard__api.json.gz", m.Shards[1].Path)
}

func TestExpand(t *testing.T) {
	_, shards := Split(exampleGraph())
	v := Expand(shards["api"])

	_, ok := v.Node("file:api/routes.py")
	assert.True(t, ok)
	_, ok = v.Node("function:api/routes.py#handle_request")
	assert.True(t, ok)
	_, ok = v.Node("class:api/v1/users.py#User")
	assert.True(t, ok)
	_, ok = v.Node("import:flask")
	assert.True(t, ok)

	deps := v.GetDependencies("file:api/routes.py")
	require.Len(t, deps, 2)
	assert.Equal(t, "function:api/routes.py#handle_request", deps[0].ID)
	assert.Equal(t, "import:flask", deps[1].ID)

	nb, ok := v.Neighborhood("class:api/v1/users.py#User")
	require.True(t, ok)
	require.Len(t, nb.Dependents, 1)
	assert.Equal(t, "file:api/v1/users.py", nb.Dependents[0].ID)
	assert.Len(t, v.Nodes, 5)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	m, shards := Split(exampleGraph())
	require.NoError(t, Save(dir, m, shards))

	m2, shards2, err := LoadAll(dir)
	require.NoError(t, err)
	assert.Equal(t, m.Names(), m2.Names())
	assert.Equal(t, m.FilesTotal, m2.FilesTotal)
	require.Contains(t, shards2, "api")
	assert.Equal(t, shards["api"].Graph.Files, shards2["api"].Graph.Files)
	assert.Equal(t, "api", shards2["api"].Graph.Meta.Shard)
}

func TestSaveLoad_CollidingLabelsKeepPartition(t *testing.T) {
	g, _ := graph.Build(graph.Meta{}, []extractor.FileRecord{
		{Path: "README.md"},
		{Path: "_root/a.py", Lang: "python"},
		{Path: "my docs/x.md"},
		{Path: "my-docs/y.md"},
	})
	m, shards := Split(g)

	keys := map[string]bool{}
	paths := map[string]bool{}
	for _, e := range m.Shards {
		assert.False(t, keys[e.Key], e.Key)
		assert.False(t, paths[e.Path], e.Path)
		keys[e.Key], paths[e.Path] = true, true
	}
	assert.Equal(t, "_root", shards[RootShard].Key)
	assert.Equal(t, "_root-2", shards["_root"].Key)
	assert.Equal(t, "my-docs", shards["my docs"].Key)
	assert.Equal(t, "my-docs-2", shards["my-docs"].Key)

	dir := t.TempDir()
	require.NoError(t, Save(dir, m, shards))
	m2, loaded, err := LoadAll(dir)
	require.NoError(t, err)

	var got []string
	for _, e := range m2.Shards {
		s := loaded[e.TopDir]
		require.NotNil(t, s, e.TopDir)
		assert.Equal(t, e.Key, s.Key)
		for _, f := range s.Graph.Files {
			assert.Equal(t, e.TopDir, TopDir(f.Path))
			got = append(got, f.Path)
		}
	}
	assert.ElementsMatch(t, g.Paths(), got)
}
