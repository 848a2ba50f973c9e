package extractor

// Symbol kinds emitted by every language strategy.
const (
	KindClass    = "class"
	KindFunction = "function"
)

// FileRecord is the per-file structural summary. Name lists are sorted and
// deduplicated so identical input text always yields an identical record.
type FileRecord struct {
	Path      string   `json:"path"`
	Lang      string   `json:"lang"`
	Classes   []string `json:"classes"`
	Functions []string `json:"functions"`
	Imports   []string `json:"imports"`
}

// Symbol is a declaration found in a file, carrying enough source to become
// an evidence unit.
type Symbol struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Docstring string `json:"docstring,omitempty"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Code      string `json:"code"`
}

// Result is the raw output of a language strategy. Functions holds only the
// names that count toward the FileRecord; Symbols may include more (methods).
type Result struct {
	Classes   []string
	Functions []string
	Imports   []string
	Symbols   []Symbol
}

// LanguageExtractor defines the interface that each language strategy must implement.
type LanguageExtractor interface {
	Language() string
	Extract(src []byte) (*Result, error)
}

// Analysis is the full extraction output for one file.
type Analysis struct {
	Record  FileRecord
	Symbols []Symbol
}
