package transform

import (
	"slices"

	"github.com/matzehuels/workbookdeps/pkg/dag"
)

// Cycle describes one dependency cycle found during depth-first search.
type Cycle struct {
	// Members lists the nodes on the cycle in traversal order, starting at
	// the node the back edge points to.
	Members []string
	// BackEdge is the edge (from, to) that closes the cycle. Removing it
	// breaks this particular cycle.
	BackEdge [2]string
}

// FindCycles locates back edges using depth-first search with
// white/gray/black coloring and returns one [Cycle] per back edge.
// The graph is not modified.
//
// # Algorithm
//
// The DFS starts from all source nodes (nodes with in-degree 0) in ID order,
// then visits any remaining unvisited nodes (components that are entirely
// cyclic). Children are visited in ID order, so the result is deterministic
// for a given graph regardless of insertion order. A node is:
//   - white: not yet visited
//   - gray: currently on the DFS path
//   - black: fully processed
//
// Any edge pointing to a gray node closes a cycle. The cycle members are the
// suffix of the current path starting at that gray node.
//
// # Performance
//
// Time complexity is O(V log V + E log E) due to sorting; space is O(V).
func FindCycles(g *dag.DAG) []Cycle {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, g.NodeCount())
	var path []string
	var cycles []Cycle

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = gray
		path = append(path, node)
		for _, child := range sortedChildren(g, node) {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				start := slices.Index(path, child)
				cycles = append(cycles, Cycle{
					Members:  slices.Clone(path[start:]),
					BackEdge: [2]string{node, child},
				})
			}
		}
		path = path[:len(path)-1]
		color[node] = black
	}

	for _, n := range g.Sources() {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	for _, id := range g.NodeIDs() {
		if color[id] == white {
			dfs(id)
		}
	}
	return cycles
}

// BreakCycles removes back edges from the graph so that it becomes a valid
// directed acyclic graph, and returns the cycles that were broken.
//
// BreakCycles panics if g is nil. If g is empty, it returns nil.
//
// When multiple edges could break a cycle, the choice is deterministic but
// not guaranteed to minimize the total number removed across all cycles.
func BreakCycles(g *dag.DAG) []Cycle {
	cycles := FindCycles(g)
	for _, c := range cycles {
		g.RemoveEdge(c.BackEdge[0], c.BackEdge[1])
	}
	return cycles
}

func sortedChildren(g *dag.DAG, id string) []string {
	children := slices.Clone(g.Children(id))
	slices.Sort(children)
	return children
}
