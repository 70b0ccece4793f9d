package transform

import "github.com/matzehuels/workbookdeps/pkg/dag"

// TransitiveReduction removes redundant edges from the graph and returns
// the number of edges removed.
//
// TransitiveReduction removes any edge (u, v) where there exists an alternate
// path from u to v through at least one intermediate node. For example, if a
// sheet displays both Profit Ratio and Sales while Profit Ratio already
// relies on Sales, the sheet→Sales edge is redundant and removed.
//
// Sheet diagrams use this so that a sheet only points at the fields no other
// field on the sheet already covers.
//
// # Algorithm
//
// TransitiveReduction computes full reachability using DFS, then removes any
// edge (u, v) where u reaches v through an intermediate node w (u→w and w
// reaches v). The graph must be acyclic; run [BreakCycles] first.
//
// # Performance
//
// Time complexity is O(V·E) for sparse graphs; space is O(V²) for the
// reachability matrix.
func TransitiveReduction(g *dag.DAG) int {
	ids := g.NodeIDs()
	if len(ids) == 0 {
		return 0
	}

	nodeIndex := make(map[string]int, len(ids))
	for i, id := range ids {
		nodeIndex[id] = i
	}
	adjacency := make([][]int, len(ids))
	for _, e := range g.Edges() {
		adjacency[nodeIndex[e.From]] = append(adjacency[nodeIndex[e.From]], nodeIndex[e.To])
	}

	reachability := computeReachability(adjacency)

	removed := 0
	for _, e := range g.Edges() {
		src, dst := nodeIndex[e.From], nodeIndex[e.To]
		for _, intermediate := range adjacency[src] {
			if intermediate != dst && reachability[intermediate][dst] {
				g.RemoveEdge(e.From, e.To)
				removed++
				break
			}
		}
	}
	return removed
}

func computeReachability(adjacency [][]int) [][]bool {
	n := len(adjacency)
	reachable := make([][]bool, n)
	for i := range reachable {
		reachable[i] = make([]bool, n)
	}

	var dfs func(source, current int)
	dfs = func(source, current int) {
		if reachable[source][current] {
			return
		}
		reachable[source][current] = true
		for _, next := range adjacency[current] {
			dfs(source, next)
		}
	}

	for i := range reachable {
		dfs(i, i)
	}
	return reachable
}
