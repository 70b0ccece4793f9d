package dag

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	// All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrSelfLoop is returned by [DAG.AddEdge] when From and To are the same
	// node. A field never depends on itself.
	ErrSelfLoop = errors.New("self loop")

	// ErrInvalidEdgeEndpoint is returned by [DAG.Validate] when an edge
	// references a node that doesn't exist. This indicates graph corruption.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is detected.
	// Cycles are detected using depth-first search with white/gray/black coloring.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph.
// It carries field metadata (datatype, role, calculation) that the engine
// treats as opaque. Metadata maps are never nil after creation.
type Metadata map[string]any

// NodeKind distinguishes field vertices from sheet vertices.
type NodeKind int

const (
	// NodeKindField represents a workbook field (raw, calculated or parameter).
	NodeKindField NodeKind = iota
	// NodeKindSheet represents a worksheet. Sheets only ever appear as
	// dependents: they have outgoing edges to the fields they display.
	NodeKindSheet
)

// String returns "field" or "sheet".
func (k NodeKind) String() string {
	if k == NodeKindSheet {
		return "sheet"
	}
	return "field"
}

// Node represents a vertex in the dependency graph.
//
// The zero value is not usable - ID must be set before adding to a DAG.
type Node struct {
	ID    string   // Unique identifier
	Label string   // Display label (defaults to ID)
	Level int      // Dependency level, assigned by [DAG.SetLevels]
	Kind  NodeKind // Field or sheet
	Meta  Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// IsSheet reports whether the node is a worksheet.
func (n Node) IsSheet() bool { return n.Kind == NodeKindSheet }

// DisplayLabel returns Label if set, otherwise the ID.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a directed reference: From relies on To. For fields this means
// From's calculation mentions To; for sheets it means the sheet displays To.
type Edge struct {
	From string   // Dependent node ID
	To   string   // Dependency node ID
	Meta Metadata // Arbitrary key-value metadata (never nil after AddEdge)
}

// DAG is a directed graph of fields and sheets. Despite the name it may
// temporarily hold cycles coming from malformed workbooks; [DAG.Validate]
// reports them and the closure engine excludes the offending edges.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent mutation; concurrent readers are fine once
// construction has finished.
type DAG struct {
	nodes    map[string]*Node
	order    []string // insertion order
	edges    []Edge
	edgeSet  map[[2]string]struct{}
	outgoing map[string][]string // nodeID -> dependency IDs
	incoming map[string][]string // nodeID -> dependent IDs
	meta     Metadata
}

// New creates an empty DAG with optional graph-level metadata.
// The metadata parameter can be nil, in which case an empty map is created.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes:    make(map[string]*Node),
		edgeSet:  make(map[[2]string]struct{}),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns the graph-level metadata map.
func (d *DAG) Meta() Metadata { return d.meta }

// Clone returns a deep copy of the graph structure. Node and edge metadata
// maps are shared with the original, which is fine for the read-only
// metadata the engine attaches.
func (d *DAG) Clone() *DAG {
	c := New(maps.Clone(d.meta))
	for _, id := range d.order {
		n := *d.nodes[id]
		_ = c.AddNode(n)
	}
	for _, e := range d.edges {
		_, _ = c.AddEdge(e)
	}
	return c
}

// AddNode adds a node to the graph.
// Returns ErrInvalidNodeID if the node ID is empty, or ErrDuplicateNodeID
// if a node with the same ID already exists. The node's Meta field is
// automatically initialized to an empty map if nil.
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

// SetLevels updates the level of every node present in levels.
// Nodes not present in the map retain their current level.
func (d *DAG) SetLevels(levels map[string]int) {
	for id, lvl := range levels {
		if n, ok := d.nodes[id]; ok {
			n.Level = lvl
		}
	}
}

// AddEdge adds a directed edge between two existing nodes.
// Returns ErrSelfLoop for From == To, ErrUnknownSourceNode if the From node
// doesn't exist, or ErrUnknownTargetNode if the To node doesn't exist.
//
// Edges have set semantics: adding an edge that already exists is a no-op
// and returns false. The first return value reports whether the edge was new.
func (d *DAG) AddEdge(e Edge) (bool, error) {
	if e.From == e.To {
		return false, ErrSelfLoop
	}
	if _, ok := d.nodes[e.From]; !ok {
		return false, ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return false, ErrUnknownTargetNode
	}
	key := [2]string{e.From, e.To}
	if _, dup := d.edgeSet[key]; dup {
		return false, nil
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	d.edgeSet[key] = struct{}{}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return true, nil
}

// HasEdge reports whether the edge from→to exists.
func (d *DAG) HasEdge(from, to string) bool {
	_, ok := d.edgeSet[[2]string{from, to}]
	return ok
}

// RemoveEdge removes the edge from→to if it exists.
// No error is returned if the edge does not exist.
func (d *DAG) RemoveEdge(from, to string) {
	key := [2]string{from, to}
	if _, ok := d.edgeSet[key]; !ok {
		return
	}
	delete(d.edgeSet, key)
	d.edges = slices.DeleteFunc(d.edges, func(e Edge) bool { return e.From == from && e.To == to })
	d.outgoing[from] = slices.DeleteFunc(d.outgoing[from], func(s string) bool { return s == to })
	d.incoming[to] = slices.DeleteFunc(d.incoming[to], func(s string) bool { return s == from })
}

// Nodes returns all nodes in insertion order. The returned slice contains
// pointers to the actual node structs, so modifications affect the graph.
func (d *DAG) Nodes() []*Node {
	nodes := make([]*Node, 0, len(d.order))
	for _, id := range d.order {
		nodes = append(nodes, d.nodes[id])
	}
	return nodes
}

// NodeIDs returns all node IDs sorted ascending.
func (d *DAG) NodeIDs() []string {
	return slices.Sorted(maps.Keys(d.nodes))
}

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the IDs of nodes that this node has edges to (its direct
// dependencies). The returned slice should not be modified.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of nodes that have edges to this node (its direct
// dependents). The returned slice should not be modified.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// OutDegree returns the number of outgoing edges from the node.
func (d *DAG) OutDegree(id string) int { return len(d.outgoing[id]) }

// InDegree returns the number of incoming edges to the node.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// Node returns the node with the given ID and true, or nil and false if not found.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// NodesOfKind returns the nodes of the given kind in insertion order.
func (d *DAG) NodesOfKind(kind NodeKind) []*Node {
	var result []*Node
	for _, id := range d.order {
		if n := d.nodes[id]; n.Kind == kind {
			result = append(result, n)
		}
	}
	return result
}

// MaxLevel returns the highest level assigned to any node, or 0 if the
// graph is empty.
func (d *DAG) MaxLevel() int {
	maxLevel := 0
	for _, n := range d.nodes {
		maxLevel = max(maxLevel, n.Level)
	}
	return maxLevel
}

// Sources returns nodes with no incoming edges (nothing depends on them),
// sorted by ID.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, id := range d.NodeIDs() {
		if len(d.incoming[id]) == 0 {
			sources = append(sources, d.nodes[id])
		}
	}
	return sources
}

// Sinks returns nodes with no outgoing edges (no dependencies), sorted by ID.
func (d *DAG) Sinks() []*Node {
	var sinks []*Node
	for _, id := range d.NodeIDs() {
		if len(d.outgoing[id]) == 0 {
			sinks = append(sinks, d.nodes[id])
		}
	}
	return sinks
}

// Validate checks graph integrity and returns nil if valid.
// It verifies that all edges connect existing nodes and that the graph is
// acyclic. Returns ErrInvalidEdgeEndpoint or ErrGraphHasCycle.
//
// Cycle detection runs in O(N+E) time using depth-first search.
func (d *DAG) Validate() error {
	for _, e := range d.edges {
		_, okS := d.nodes[e.From]
		_, okD := d.nodes[e.To]
		if !okS || !okD {
			return ErrInvalidEdgeEndpoint
		}
	}
	return d.detectCycles()
}

func (d *DAG) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
	}

	for id := range d.nodes {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}

// NodeLabels extracts the display label from each node in a slice.
func NodeLabels(nodes []*Node) []string {
	labels := make([]string, len(nodes))
	for i, n := range nodes {
		labels[i] = n.DisplayLabel()
	}
	return labels
}

// NodeIDs extracts the ID from each node in a slice.
// Returns a new slice containing the IDs in the same order as the input.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
