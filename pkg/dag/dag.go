package dag

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a directed cycle
	// exists. Package manifests may declare cyclic dependencies, so a walked
	// graph can legitimately fail this check.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph,
// such as the resolved version or the repack outcome of a package.
type Metadata map[string]any

// Node is one package in the graph. Row is the depth at which the package
// was first reached (0 for requested packages).
type Node struct {
	ID    string   // Unique identifier
	Label string   // Display label; ID when empty
	Row   int      // Discovery depth
	Meta  Metadata // Never nil after AddNode
}

// DisplayLabel returns Label, or ID when no label is set.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a declared dependency From → To.
type Edge struct {
	From string
	To   string
	Meta Metadata // Never nil after AddEdge
}

// DAG is a directed dependency graph with insertion-ordered nodes and edges.
//
// The zero value is not usable - use New to create a valid instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    map[string]*Node
	order    []string
	edges    []Edge
	outgoing map[string][]string // nodeID -> children IDs
	incoming map[string][]string // nodeID -> parent IDs
	meta     Metadata
}

// New creates an empty graph with optional graph-level metadata.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns the graph-level metadata map.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode adds a node. Returns ErrInvalidNodeID for an empty ID and
// ErrDuplicateNodeID when the ID is taken.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	node := &n
	d.nodes[node.ID] = node
	d.order = append(d.order, node.ID)
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Adding an edge
// that already exists is a no-op.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if d.HasEdge(e.From, e.To) {
		return nil
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// HasEdge reports whether the edge from → to exists.
func (d *DAG) HasEdge(from, to string) bool {
	return slices.Contains(d.outgoing[from], to)
}

// Nodes returns all nodes in insertion order. The returned pointers refer to
// the graph's nodes.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.order))
	for _, id := range d.order {
		nodes = append(nodes, d.nodes[id])
	}
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the IDs of the node's dependencies. The slice is a
// read-only view.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of the node's dependents. The slice is a
// read-only view.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// OutDegree returns the number of outgoing edges from the node.
func (d *DAG) OutDegree(id string) int { return len(d.outgoing[id]) }

// InDegree returns the number of incoming edges to the node.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// Node returns the node with the given ID.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// RowIDs returns all distinct rows in ascending order.
func (d *DAG) RowIDs() []int {
	rows := make(map[int]struct{})
	for _, n := range d.nodes {
		rows[n.Row] = struct{}{}
	}
	return slices.Sorted(maps.Keys(rows))
}

// NodesInRow returns the nodes of a row in insertion order.
func (d *DAG) NodesInRow(row int) []*Node {
	var out []*Node
	for _, id := range d.order {
		if n := d.nodes[id]; n.Row == row {
			out = append(out, n)
		}
	}
	return out
}

// Sources returns nodes with no incoming edges, in insertion order.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, id := range d.order {
		if len(d.incoming[id]) == 0 {
			sources = append(sources, d.nodes[id])
		}
	}
	return sources
}

// Sinks returns nodes with no outgoing edges, in insertion order.
func (d *DAG) Sinks() []*Node {
	var sinks []*Node
	for _, id := range d.order {
		if len(d.outgoing[id]) == 0 {
			sinks = append(sinks, d.nodes[id])
		}
	}
	return sinks
}

// Validate returns ErrGraphHasCycle if the graph has a directed cycle.
func (d *DAG) Validate() error {
	if len(d.BackEdges()) > 0 {
		return ErrGraphHasCycle
	}
	return nil
}

// BackEdges returns the edges that close a cycle, found by depth-first
// search from the sources and then from any unvisited node, both in
// insertion order. Removing them leaves the graph acyclic.
func (d *DAG) BackEdges() []Edge {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var back []Edge

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				back = append(back, Edge{From: id, To: child})
			}
		}
		color[id] = black
	}

	for _, n := range d.Sources() {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	for _, id := range d.order {
		if color[id] == white {
			dfs(id)
		}
	}
	return back
}
