package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repowiki/internal/extractor"
)

func sampleRecords() []extractor.FileRecord {
	return []extractor.FileRecord{
		{Path: "README.md", Lang: "text"},
		{Path: "api/routes.py", Lang: "python", Functions: []string{"handle_request"}, Imports: []string{"os", "flask"}},
		{Path: "api/models.py", Lang: "python", Classes: []string{"User"}, Imports: []string{"sqlalchemy", "os"}},
		{Path: "infra/Dockerfile", Lang: "text"},
	}
}

func TestBuild_Totals(t *testing.T) {
	g, totals := Build(Meta{Repo: "acme/demo"}, sampleRecords())

	assert.Equal(t, 4, totals.Files)
	assert.Equal(t, 1, totals.Classes)
	assert.Equal(t, 1, totals.Functions)
	assert.Equal(t, 4, totals.Imports)
	assert.Equal(t, map[string]int{"text": 2, "python": 2}, totals.Languages)
	assert.Equal(t, []string{"python", "text"}, totals.LanguageMix())
	assert.Equal(t, []string{"README.md", "api/routes.py", "api/models.py", "infra/Dockerfile"}, g.Paths())
}

func TestBuild_ImportDictionaryIsFirstSeen(t *testing.T) {
	g, _ := Build(Meta{}, sampleRecords())

	// routes.py interns its sorted modules first: flask, os; models.py adds sqlalchemy.
	assert.Equal(t, []string{"flask", "os", "sqlalchemy"}, g.Imports.Names())
	assert.Equal(t, []int{0, 1}, g.Files[1].Imports)
	assert.Equal(t, []int{1, 2}, g.Files[2].Imports)
	assert.Equal(t, []string{"os", "sqlalchemy"}, g.ImportNames(g.Files[2]))
}

func TestBuild_Stable(t *testing.T) {
	a, _ := Build(Meta{}, sampleRecords())
	b, _ := Build(Meta{}, sampleRecords())
	assert.Equal(t, a.Imports.Names(), b.Imports.Names())
	assert.Equal(t, a.Files, b.Files)
}

func TestBuilder_IgnoresDuplicatePaths(t *testing.T) {
	b := NewBuilder(Meta{})
	b.Add(extractor.FileRecord{Path: "a.go", Lang: "go"})
	b.Add(extractor.FileRecord{Path: "a.go", Lang: "go", Functions: []string{"X"}})
	g, totals := b.Build()
	assert.Len(t, g.Files, 1)
	assert.Equal(t, 0, totals.Functions)
}

func TestGraph_JSONRoundTrip(t *testing.T) {
	g, _ := Build(Meta{Repo: "acme/demo"}, sampleRecords())

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dicts":{"imports":["flask","os","sqlalchemy"]}`)
	assert.Contains(t, string(data), `"schema":"v2-compact"`)

	var back Graph
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.Files, back.Files)
	assert.Equal(t, g.Imports.Names(), back.Imports.Names())
}

func TestGraph_UnmarshalRejectsDanglingImport(t *testing.T) {
	raw := `{"meta":{},"dicts":{"imports":["os"]},"files":[{"path":"a.py","lang":"python","classes":[],"functions":[],"imports":[3]}]}`
	var g Graph
	assert.Error(t, json.Unmarshal([]byte(raw), &g))
}

func TestView_Dependencies(t *testing.T) {
	v := NewView()
	v.AddNode(Node{ID: "file:a.py", Kind: NodeFile})
	v.AddNode(Node{ID: "import:os", Kind: NodeImport})
	v.AddNode(Node{ID: "import:os", Kind: NodeImport})
	v.AddEdge("file:a.py", "import:os", RelationImports)

	assert.Len(t, v.Nodes, 2)
	deps := v.GetDependencies("file:a.py")
	require.Len(t, deps, 1)
	assert.Equal(t, "import:os", deps[0].ID)
	assert.Len(t, v.GetDependents("import:os"), 1)
}

func TestView_Neighborhood(t *testing.T) {
	v := NewView()
	v.AddNode(Node{ID: "file:a.py", Kind: NodeFile})
	v.AddNode(Node{ID: "file:b.py", Kind: NodeFile})
	v.AddNode(Node{ID: "import:os", Kind: NodeImport})
	v.AddEdge("file:b.py", "import:os", RelationImports)
	v.AddEdge("file:a.py", "import:os", RelationImports)

	nb, ok := v.Neighborhood("import:os")
	require.True(t, ok)
	assert.Empty(t, nb.Dependencies)
	require.Len(t, nb.Dependents, 2)
	assert.Equal(t, "file:a.py", nb.Dependents[0].ID)

	_, ok = v.Neighborhood("import:sys")
	assert.False(t, ok)
}
