package storage

import (
	"context"

	"repowiki/internal/graph"
	"repowiki/internal/knowledge"
	"repowiki/internal/wiki"
)

// Store persists one repository snapshot.
type Store interface {
	GraphStore
	UnitStore
	WikiStore
	Close() error
}

// GraphStore persists the compact repository graph.
type GraphStore interface {
	// SaveGraph replaces the stored graph with g.
	SaveGraph(ctx context.Context, g *graph.Graph) error
	LoadGraph(ctx context.Context) (*graph.Graph, error)
}

// UnitStore persists evidence units and their embeddings.
type UnitStore interface {
	// SaveUnits replaces all units. embeddings is either nil or parallel
	// to units.
	SaveUnits(ctx context.Context, units []knowledge.Unit, embeddings [][]float32) error
	LoadUnits(ctx context.Context) ([]knowledge.Unit, error)
	LoadEmbeddings(ctx context.Context) (map[string][]float32, error)
	FindUnitsByFile(ctx context.Context, path string) ([]knowledge.Unit, error)
}

// WikiStore persists the canonical wiki structure.
type WikiStore interface {
	SaveWiki(ctx context.Context, s wiki.Structure) error
	LoadWiki(ctx context.Context) (wiki.Structure, error)
}
