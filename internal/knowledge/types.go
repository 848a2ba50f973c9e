package knowledge

import (
	"context"
)

// Generator turns a prompt (and an optional system instruction) into free
// text. Output is untrusted; callers extract what they need defensively.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Embedder defines the interface for converting text to vectors.
// Vectors are returned in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Level is the granularity of an evidence unit.
type Level string

const (
	LevelFile   Level = "file"
	LevelSymbol Level = "symbol"
)

// Unit is one piece of retrievable evidence: a whole file or a symbol
// inside it.
type Unit struct {
	ID        string `json:"id"`
	Level     Level  `json:"level"`
	Path      string `json:"path"`
	Lang      string `json:"lang"`
	Kind      string `json:"kind,omitempty"`
	Name      string `json:"name,omitempty"`
	Signature string `json:"signature,omitempty"`
	Docstring string `json:"docstring,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Code      string `json:"code"`
	Summary   string `json:"summary,omitempty"`
}
