// Package index stores unit embeddings and answers nearest-neighbour
// queries over them.
package index

import (
	"context"
	"errors"
)

var (
	// ErrCorrupt means a persisted index and its id list disagree.
	ErrCorrupt = errors.New("index corrupt")
	// ErrDimension means a vector does not match the index dimension.
	ErrDimension = errors.New("vector dimension mismatch")
)

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// Index is a vector index keyed by unit id.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
}
