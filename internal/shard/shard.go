// Package shard partitions a repository graph by top-level directory.
package shard

import (
	"fmt"
	"regexp"
	"strings"

	"repowiki/internal/graph"
)

// RootShard names the shard holding files with no directory.
const RootShard = ""

// Shard is the subset of a graph under one top-level directory. The import
// dictionary is shared with the source graph.
type Shard struct {
	Name string
	// Key is unique within a manifest and names the shard on disk and in
	// generated ids.
	Key   string
	Graph *graph.Graph
}

// Entry is one manifest line.
type Entry struct {
	TopDir string `json:"topdir"`
	Key    string `json:"key"`
	Path   string `json:"path"`
	Files  int    `json:"files"`
}

// Manifest lists shards in the order their top directories first appear.
type Manifest struct {
	Meta         graph.Meta `json:"meta"`
	Shards       []Entry    `json:"shards"`
	ImportsCount int        `json:"imports_count"`
	FilesTotal   int        `json:"files_total"`
}

// Names returns shard names in manifest order.
func (m *Manifest) Names() []string {
	out := make([]string, len(m.Shards))
	for i, e := range m.Shards {
		out[i] = e.TopDir
	}
	return out
}

// TopDir returns the first path segment, or RootShard for top-level files.
func TopDir(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return RootShard
}

var unsafeChars = regexp.MustCompile(`[^\w\-\.]+`)

// Label is the printable name of a shard. Distinct names can share a
// label; Split derives unique keys from it.
func Label(name string) string {
	if name == RootShard {
		return "_root"
	}
	return strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-")
}

// FileName is the file the shard with key is stored under.
func FileName(key string) string {
	return "shard__" + key + ".json.gz"
}

// uniqueKey returns the label of name, suffixed with -2, -3, ... until it
// is not in used.
func uniqueKey(name string, used map[string]bool) string {
	base := Label(name)
	key := base
	for n := 2; used[key]; n++ {
		key = fmt.Sprintf("%s-%d", base, n)
	}
	used[key] = true
	return key
}

// Split partitions g. Every file lands in exactly one shard.
func Split(g *graph.Graph) (*Manifest, map[string]*Shard) {
	shards := make(map[string]*Shard)
	used := make(map[string]bool)
	var order []string

	for _, f := range g.Files {
		name := TopDir(f.Path)
		s, ok := shards[name]
		if !ok {
			key := uniqueKey(name, used)
			meta := g.Meta
			meta.Shard = key
			s = &Shard{Name: name, Key: key, Graph: &graph.Graph{Meta: meta, Imports: g.Imports}}
			shards[name] = s
			order = append(order, name)
		}
		s.Graph.Files = append(s.Graph.Files, f)
	}

	m := &Manifest{
		Meta:         g.Meta,
		ImportsCount: g.Imports.Len(),
		FilesTotal:   len(g.Files),
		Shards:       make([]Entry, 0, len(order)),
	}
	for _, name := range order {
		key := shards[name].Key
		m.Shards = append(m.Shards, Entry{
			TopDir: name,
			Key:    key,
			Path:   "shards/" + FileName(key),
			Files:  len(shards[name].Graph.Files),
		})
	}
	return m, shards
}

// Expand turns a shard into the verbose node/edge view.
func Expand(s *Shard) *graph.View {
	v := graph.NewView()
	for _, f := range s.Graph.Files {
		fileID := "file:" + f.Path
		v.AddNode(graph.Node{ID: fileID, Kind: graph.NodeFile, Label: f.Path, Path: f.Path, Lang: f.Lang})

		for _, c := range f.Classes {
			id := "class:" + f.Path + "#" + c
			v.AddNode(graph.Node{ID: id, Kind: graph.NodeClass, Label: c, Path: f.Path})
			v.AddEdge(fileID, id, graph.RelationContainsClass)
		}
		for _, fn := range f.Functions {
			id := "function:" + f.Path + "#" + fn
			v.AddNode(graph.Node{ID: id, Kind: graph.NodeFunction, Label: fn, Path: f.Path})
			v.AddEdge(fileID, id, graph.RelationContainsFunction)
		}
		for _, mod := range s.Graph.ImportNames(f) {
			id := "import:" + mod
			v.AddNode(graph.Node{ID: id, Kind: graph.NodeImport, Label: mod})
			v.AddEdge(fileID, id, graph.RelationImports)
		}
	}
	return v
}
