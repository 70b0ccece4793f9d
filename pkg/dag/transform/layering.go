package transform

import (
	"slices"

	"github.com/matzehuels/workbookdeps/pkg/dag"
)

// AssignLevels computes the dependency level of every node: the length of
// the longest path following edges toward dependencies. Nodes without
// dependencies (sinks) are level 0, and every other node sits one above its
// highest direct dependency. The levels are written to the graph with
// [dag.DAG.SetLevels] and returned.
//
// # Algorithm
//
// AssignLevels runs Kahn's algorithm on the reversed graph:
//  1. Initialize all sinks (out-degree 0) at level 0 and add them to a queue
//  2. Pop a node; its level is final because all its dependencies were popped
//  3. Raise each dependent to at least level+1 and decrement its pending count
//  4. Enqueue dependents whose pending count reaches zero
//
// # Cycles
//
// AssignLevels assumes the graph is acyclic. Nodes on a cycle never reach
// zero pending count and keep level 0. Run [BreakCycles] first.
//
// # Performance
//
// Time complexity is O(V + E); space is O(V).
func AssignLevels(g *dag.DAG) map[string]int {
	levels := longestPaths(g.NodeIDs(), g.OutDegree, g.Parents)
	g.SetLevels(levels)
	return levels
}

// AssignDepths computes, for every node, the length of the longest path
// following edges toward dependents: 0 for nodes nothing depends on, and one
// more than the deepest direct dependent otherwise. Unlike [AssignLevels]
// the graph is not modified.
//
// The same acyclicity assumption and complexity apply.
func AssignDepths(g *dag.DAG) map[string]int {
	return longestPaths(g.NodeIDs(), g.InDegree, g.Children)
}

// longestPaths is Kahn's algorithm parameterized by direction: pending
// reports how many neighbors must be finalized first, and next lists the
// nodes unblocked by finalizing a node.
func longestPaths(ids []string, pending func(string) int, next func(string) []string) map[string]int {
	remaining := make(map[string]int, len(ids))
	levels := make(map[string]int, len(ids))
	queue := make([]string, 0, len(ids))

	for _, id := range ids {
		remaining[id] = pending(id)
		levels[id] = 0
		if remaining[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		following := slices.Clone(next(curr))
		slices.Sort(following)
		for _, n := range following {
			if lvl := levels[curr] + 1; lvl > levels[n] {
				levels[n] = lvl
			}
			remaining[n]--
			if remaining[n] == 0 {
				queue = append(queue, n)
			}
		}
	}
	return levels
}
