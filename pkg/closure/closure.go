// Package closure computes transitive dependency sets and dependency levels
// over a workbook dependency graph.
//
// Cycles are truncated once, globally: a deterministic depth-first search
// over the graph (ids in sorted order) removes every back edge and reports
// one cycle diagnostic per removed edge. All sets and levels are then
// computed on that acyclic reduction, so they stay mutually consistent:
//
//   - B ∈ Forward(A) exactly when A ∈ Backward(B)
//   - MaxLevel(A) == 0 exactly when Forward(A) is empty
//   - MaxLevel(A) == 1 + max(MaxLevel(D)) over A's reduced direct dependencies
package closure

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/workbookdeps/pkg/dag"
	"github.com/matzehuels/workbookdeps/pkg/dag/transform"
	"github.com/matzehuels/workbookdeps/pkg/depgraph"
	"github.com/matzehuels/workbookdeps/pkg/diag"
)

// Closure holds the transitive closure of one graph. It is immutable and
// safe for concurrent readers.
type Closure struct {
	graph    *depgraph.Graph
	reduced  *dag.DAG
	cycles   []transform.Cycle
	diags    []diag.Diagnostic
	forward  map[string][]string
	backward map[string][]string
	levels   map[string]int
	depths   map[string]int
	order    []string
}

// Compute builds the closure of g. Cycle diagnostics are returned by
// [Closure.Diagnostics] and forwarded to sink when it is non-nil.
func Compute(g *depgraph.Graph, sink diag.Sink) *Closure {
	reduced := g.DAG().Clone()
	cycles := transform.BreakCycles(reduced)

	c := &Closure{
		graph:   g,
		reduced: reduced,
		cycles:  cycles,
		levels:  transform.AssignLevels(reduced),
		depths:  transform.AssignDepths(reduced),
	}

	for _, cy := range cycles {
		d := c.cycleDiagnostic(cy)
		c.diags = append(c.diags, d)
		if sink != nil {
			sink.Report(d)
		}
	}

	c.order = reduced.NodeIDs()
	slices.SortStableFunc(c.order, func(a, b string) int {
		return cmp.Compare(c.levels[a], c.levels[b])
	})
	c.forward = accumulate(c.order, reduced.Children)

	upstream := reduced.NodeIDs()
	slices.SortStableFunc(upstream, func(a, b string) int {
		return cmp.Compare(c.depths[a], c.depths[b])
	})
	c.backward = accumulate(upstream, reduced.Parents)
	return c
}

// accumulate folds reachability along next. Every node in order must come
// after all nodes next returns for it.
func accumulate(order []string, next func(string) []string) map[string][]string {
	sets := make(map[string][]string, len(order))
	for _, id := range order {
		seen := make(map[string]struct{})
		for _, n := range next(id) {
			seen[n] = struct{}{}
			for _, m := range sets[n] {
				seen[m] = struct{}{}
			}
		}
		sets[id] = slices.Sorted(maps.Keys(seen))
	}
	return sets
}

func (c *Closure) cycleDiagnostic(cy transform.Cycle) diag.Diagnostic {
	labels := make([]string, 0, len(cy.Members)+1)
	for _, id := range cy.Members {
		labels = append(labels, c.graph.Label(id))
	}
	labels = append(labels, c.graph.Label(cy.Members[0]))
	return diag.Diagnostic{
		Kind:    diag.KindCycle,
		FieldID: cy.Members[0],
		Message: fmt.Sprintf("dependency cycle %s; ignoring %s -> %s",
			strings.Join(labels, " -> "), c.graph.Label(cy.BackEdge[0]), c.graph.Label(cy.BackEdge[1])),
		Related: slices.Clone(cy.Members),
	}
}

// Graph returns the graph the closure was computed for.
func (c *Closure) Graph() *depgraph.Graph { return c.graph }

// Reduced returns the acyclic reduction of the graph. Callers must not
// mutate it.
func (c *Closure) Reduced() *dag.DAG { return c.reduced }

// Forward returns every id that id transitively depends on, sorted.
func (c *Closure) Forward(id string) []string { return slices.Clone(c.forward[id]) }

// Backward returns every id that transitively depends on id, sorted.
func (c *Closure) Backward(id string) []string { return slices.Clone(c.backward[id]) }

// MaxLevel returns the length of the longest dependency chain below id;
// 0 when id depends on nothing.
func (c *Closure) MaxLevel(id string) int { return c.levels[id] }

// MaxBackwardLevel returns the length of the longest chain of dependents
// above id; 0 when nothing depends on id.
func (c *Closure) MaxBackwardLevel(id string) int { return c.depths[id] }

// DirectDependencies returns id's dependencies in the reduced graph, sorted.
func (c *Closure) DirectDependencies(id string) []string {
	return slices.Sorted(slices.Values(c.reduced.Children(id)))
}

// DirectDependents returns id's dependents in the reduced graph, sorted.
func (c *Closure) DirectDependents(id string) []string {
	return slices.Sorted(slices.Values(c.reduced.Parents(id)))
}

// Order returns every node id with dependencies before dependents: sorted
// by level, then by id.
func (c *Closure) Order() []string { return slices.Clone(c.order) }

// Cycles returns the cycles that were truncated.
func (c *Closure) Cycles() []transform.Cycle { return slices.Clone(c.cycles) }

// Diagnostics returns one cycle diagnostic per truncated cycle.
func (c *Closure) Diagnostics() []diag.Diagnostic { return slices.Clone(c.diags) }
