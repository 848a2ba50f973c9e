package graph

// NodeKind classifies nodes of the expanded view.
type NodeKind string

const (
	NodeFile     NodeKind = "file"
	NodeClass    NodeKind = "class"
	NodeFunction NodeKind = "function"
	NodeImport   NodeKind = "import"
)

// RelationKind classifies edges of the expanded view.
type RelationKind string

const (
	RelationContainsClass    RelationKind = "FILE_CONTAINS_CLASS"
	RelationContainsFunction RelationKind = "FILE_CONTAINS_FUNCTION"
	RelationImports          RelationKind = "FILE_IMPORTS"
)

// SchemaCompact tags serialized compact graphs.
const SchemaCompact = "v2-compact"

// Meta describes the snapshot a graph was built from.
type Meta struct {
	Schema  string `json:"schema"`
	Repo    string `json:"repo,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Subpath string `json:"subpath,omitempty"`
	Shard   string `json:"shard,omitempty"`
}

// FileRecord is a file in compact form: imports are dictionary indices.
type FileRecord struct {
	Path      string   `json:"path"`
	Lang      string   `json:"lang"`
	Classes   []string `json:"classes"`
	Functions []string `json:"functions"`
	Imports   []int    `json:"imports"`
}

// Totals are diagnostic counts over a graph.
type Totals struct {
	Files     int            `json:"files"`
	Classes   int            `json:"classes"`
	Functions int            `json:"functions"`
	Imports   int            `json:"imports"`
	Languages map[string]int `json:"languages"`
}
