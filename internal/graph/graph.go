package graph

import (
	"encoding/json"
	"fmt"
	"sort"

	"repowiki/internal/extractor"
)

// ImportDictionary interns module strings. Indices are assigned in first-seen
// order and never change.
type ImportDictionary struct {
	names []string
	index map[string]int
}

// NewImportDictionary creates an empty dictionary.
func NewImportDictionary() *ImportDictionary {
	return &ImportDictionary{index: make(map[string]int)}
}

// DictionaryFrom rebuilds a dictionary from its serialized name list.
func DictionaryFrom(names []string) *ImportDictionary {
	d := NewImportDictionary()
	for _, n := range names {
		d.Intern(n)
	}
	return d
}

// Intern returns the index of name, adding it if needed.
func (d *ImportDictionary) Intern(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	i := len(d.names)
	d.names = append(d.names, name)
	d.index[name] = i
	return i
}

// Name returns the module string at index i.
func (d *ImportDictionary) Name(i int) (string, bool) {
	if d == nil || i < 0 || i >= len(d.names) {
		return "", false
	}
	return d.names[i], true
}

// Len returns the number of interned names.
func (d *ImportDictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Names returns a copy of the names in index order.
func (d *ImportDictionary) Names() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.names...)
}

// Graph is the compact repository graph.
type Graph struct {
	Meta    Meta
	Imports *ImportDictionary
	Files   []FileRecord
}

type graphJSON struct {
	Meta  Meta `json:"meta"`
	Dicts struct {
		Imports []string `json:"imports"`
	} `json:"dicts"`
	Files []FileRecord `json:"files"`
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	var out graphJSON
	out.Meta = g.Meta
	out.Meta.Schema = SchemaCompact
	out.Dicts.Imports = g.Imports.Names()
	if out.Dicts.Imports == nil {
		out.Dicts.Imports = []string{}
	}
	out.Files = g.Files
	if out.Files == nil {
		out.Files = []FileRecord{}
	}
	return json.Marshal(out)
}

func (g *Graph) UnmarshalJSON(data []byte) error {
	var in graphJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	g.Meta = in.Meta
	g.Imports = DictionaryFrom(in.Dicts.Imports)
	g.Files = in.Files
	for _, f := range g.Files {
		for _, idx := range f.Imports {
			if _, ok := g.Imports.Name(idx); !ok {
				return fmt.Errorf("file %s references import index %d outside dictionary of %d", f.Path, idx, g.Imports.Len())
			}
		}
	}
	return nil
}

// Paths returns every file path in graph order.
func (g *Graph) Paths() []string {
	out := make([]string, len(g.Files))
	for i, f := range g.Files {
		out[i] = f.Path
	}
	return out
}

// ImportNames resolves the dictionary indices of f.
func (g *Graph) ImportNames(f FileRecord) []string {
	out := make([]string, 0, len(f.Imports))
	for _, idx := range f.Imports {
		if name, ok := g.Imports.Name(idx); ok {
			out = append(out, name)
		}
	}
	return out
}

// Builder aggregates extractor records into a Graph. Add order defines file
// order and import index assignment.
type Builder struct {
	meta    Meta
	imports *ImportDictionary
	files   []FileRecord
	seen    map[string]bool
}

// NewBuilder creates a builder for a snapshot.
func NewBuilder(meta Meta) *Builder {
	return &Builder{
		meta:    meta,
		imports: NewImportDictionary(),
		seen:    make(map[string]bool),
	}
}

// Add appends a record. A repeated path is ignored.
func (b *Builder) Add(rec extractor.FileRecord) {
	if b.seen[rec.Path] {
		return
	}
	b.seen[rec.Path] = true

	modules := append([]string(nil), rec.Imports...)
	sort.Strings(modules)

	idx := make([]int, 0, len(modules))
	for i, m := range modules {
		if i > 0 && modules[i-1] == m {
			continue
		}
		idx = append(idx, b.imports.Intern(m))
	}

	b.files = append(b.files, FileRecord{
		Path:      rec.Path,
		Lang:      rec.Lang,
		Classes:   nonNil(rec.Classes),
		Functions: nonNil(rec.Functions),
		Imports:   idx,
	})
}

// Build returns the graph and its totals.
func (b *Builder) Build() (*Graph, Totals) {
	g := &Graph{Meta: b.meta, Imports: b.imports, Files: b.files}
	g.Meta.Schema = SchemaCompact
	return g, ComputeTotals(g)
}

// Build aggregates records in order.
func Build(meta Meta, records []extractor.FileRecord) (*Graph, Totals) {
	b := NewBuilder(meta)
	for _, r := range records {
		b.Add(r)
	}
	return b.Build()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
