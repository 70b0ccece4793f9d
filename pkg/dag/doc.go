// Package dag provides the directed graph that backs workbook field
// dependency analysis.
//
// # Overview
//
// Every field of a workbook (raw column, calculated field, parameter) and
// every worksheet becomes a [Node]. An [Edge] points from a dependent to the
// thing it relies on: a calculated field points at the fields its formula
// mentions, and a sheet points at the fields it displays.
//
// # Basic Usage
//
// Create a new graph with [New], add nodes with [DAG.AddNode], and edges with
// [DAG.AddEdge]. Nodes must have unique IDs and edges can only connect
// existing nodes:
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "[ds].[Profit]"})
//	g.AddNode(dag.Node{ID: "[ds].[Sales]"})
//	g.AddEdge(dag.Edge{From: "[ds].[Profit]", To: "[ds].[Sales]"})
//
// Edges have set semantics and self loops are rejected with [ErrSelfLoop].
// Query the structure with [DAG.Children] (direct dependencies) and
// [DAG.Parents] (direct dependents).
//
// # Cycles
//
// Workbooks exported by the authoring tool are acyclic, but hand-edited or
// partially broken files are not guaranteed to be. The graph therefore
// accepts cycles; [DAG.Validate] reports them with [ErrGraphHasCycle], and
// the transform subpackage finds and removes the back edges.
//
// # Levels
//
// [Node.Level] holds the dependency level computed by the closure engine
// (longest chain of dependencies below a node). It is informational and is
// used by renderers for ranking.
//
// # Concurrency
//
// DAG instances are not safe for concurrent mutation. Once built, a graph
// may be read from several goroutines.
//
// # Related Packages
//
// The [transform] subpackage provides cycle detection, level assignment and
// transitive reduction.
//
// [transform]: github.com/matzehuels/workbookdeps/pkg/dag/transform
package dag
