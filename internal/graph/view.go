package graph

import "sort"

// Node is a vertex of the verbose view.
type Node struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"type"`
	Label string   `json:"label"`
	Path  string   `json:"path,omitempty"`
	Lang  string   `json:"lang,omitempty"`
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	From string       `json:"source"`
	To   string       `json:"target"`
	Kind RelationKind `json:"type"`
}

// View is the node/edge form of a graph, used for inspection only.
type View struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	index map[string]int
}

// NewView creates an empty view.
func NewView() *View {
	return &View{Nodes: []Node{}, Edges: []Edge{}, index: make(map[string]int)}
}

// AddNode adds n unless a node with the same id exists.
func (v *View) AddNode(n Node) {
	if _, ok := v.index[n.ID]; ok {
		return
	}
	v.index[n.ID] = len(v.Nodes)
	v.Nodes = append(v.Nodes, n)
}

// AddEdge appends an edge.
func (v *View) AddEdge(from, to string, kind RelationKind) {
	v.Edges = append(v.Edges, Edge{From: from, To: to, Kind: kind})
}

// Node looks a node up by id.
func (v *View) Node(id string) (Node, bool) {
	i, ok := v.index[id]
	if !ok {
		return Node{}, false
	}
	return v.Nodes[i], true
}

// GetDependencies returns the targets of edges leaving id, sorted by id.
func (v *View) GetDependencies(id string) []Node {
	var out []Node
	for _, e := range v.Edges {
		if e.From == id {
			if n, ok := v.Node(e.To); ok {
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetDependents returns the sources of edges entering id, sorted by id.
func (v *View) GetDependents(id string) []Node {
	var out []Node
	for _, e := range v.Edges {
		if e.To == id {
			if n, ok := v.Node(e.From); ok {
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Neighborhood is one node with the nodes it points at and is pointed at by.
type Neighborhood struct {
	Node         Node   `json:"node"`
	Dependencies []Node `json:"dependencies"`
	Dependents   []Node `json:"dependents"`
}

// Neighborhood reports false when id is not in the view.
func (v *View) Neighborhood(id string) (Neighborhood, bool) {
	n, ok := v.Node(id)
	if !ok {
		return Neighborhood{}, false
	}
	nb := Neighborhood{Node: n, Dependencies: v.GetDependencies(id), Dependents: v.GetDependents(id)}
	if nb.Dependencies == nil {
		nb.Dependencies = []Node{}
	}
	if nb.Dependents == nil {
		nb.Dependents = []Node{}
	}
	return nb, true
}
