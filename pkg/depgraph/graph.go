package depgraph

import (
	"cmp"
	"slices"

	"github.com/matzehuels/workbookdeps/pkg/dag"
	"github.com/matzehuels/workbookdeps/pkg/diag"
	"github.com/matzehuels/workbookdeps/pkg/formula"
	"github.com/matzehuels/workbookdeps/pkg/registry"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

// Node metadata keys set on every graph node.
const (
	MetaKind       = "kind"       // workbook.Kind
	MetaCategory   = "category"   // workbook.Category; sheets have none
	MetaDatasource = "datasource" // datasource label; sheets have none
)

// sheetPrefix keeps sheet ids disjoint from the bracketed field ids.
const sheetPrefix = "sheet:"

// SheetID returns the node id of the named sheet.
func SheetID(name string) string { return sheetPrefix + name }

// DependencyEdge is one direct dependency: To's definition references From.
type DependencyEdge struct {
	From string `json:"from"` // dependency
	To   string `json:"to"`   // dependent
}

// Graph is the dependency graph of one workbook.
type Graph struct {
	dag    *dag.DAG
	reg    *registry.Registry
	sheets map[string]workbook.Sheet // by node id
	fields map[string]workbook.Field // by node id
	diags  []diag.Diagnostic
}

// DAG returns the underlying graph. Callers must not mutate it; use
// [dag.DAG.Clone] to derive modified graphs.
func (g *Graph) DAG() *dag.DAG { return g.dag }

// Registry returns the field registry the graph was built from.
func (g *Graph) Registry() *registry.Registry { return g.reg }

// Diagnostics returns the findings of the build, in report order.
func (g *Graph) Diagnostics() []diag.Diagnostic { return slices.Clone(g.diags) }

// NodeCount returns the number of field and sheet nodes.
func (g *Graph) NodeCount() int { return g.dag.NodeCount() }

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.dag.Node(id)
	return ok
}

// IsSheet reports whether id is a sheet node.
func (g *Graph) IsSheet(id string) bool {
	_, ok := g.sheets[id]
	return ok
}

// Label returns the display label of a field or sheet node.
func (g *Graph) Label(id string) string {
	if n, ok := g.dag.Node(id); ok {
		return n.DisplayLabel()
	}
	return ""
}

// Field returns the field behind a field node.
func (g *Graph) Field(id string) (workbook.Field, bool) {
	f, ok := g.fields[id]
	return f, ok
}

// Sheet returns the sheet behind a sheet node.
func (g *Graph) Sheet(id string) (workbook.Sheet, bool) {
	s, ok := g.sheets[id]
	return s, ok
}

// Kind returns the presentation kind of a node.
func (g *Graph) Kind(id string) workbook.Kind {
	if g.IsSheet(id) {
		return workbook.KindSheet
	}
	return g.fields[id].Kind()
}

// FieldIDs returns the field node ids in input order.
func (g *Graph) FieldIDs() []string { return g.reg.IDs() }

// SheetIDs returns the sheet node ids sorted by sheet name.
func (g *Graph) SheetIDs() []string {
	return dag.NodeIDs(g.dag.NodesOfKind(dag.NodeKindSheet))
}

// DirectDependencies returns the ids id references directly, sorted.
func (g *Graph) DirectDependencies(id string) []string {
	return slices.Sorted(slices.Values(g.dag.Children(id)))
}

// DirectDependents returns the ids referencing id directly, sorted.
func (g *Graph) DirectDependents(id string) []string {
	return slices.Sorted(slices.Values(g.dag.Parents(id)))
}

// Edges returns every direct dependency, sorted by (From, To).
func (g *Graph) Edges() []DependencyEdge {
	edges := make([]DependencyEdge, 0, g.dag.EdgeCount())
	for _, e := range g.dag.Edges() {
		edges = append(edges, DependencyEdge{From: e.To, To: e.From})
	}
	slices.SortFunc(edges, func(a, b DependencyEdge) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return edges
}

// Worksheets returns the names of the sheets a node appears on, sorted. A
// field appears on the sheets recorded in its metadata and on every sheet
// that links to it; a sheet appears only on itself.
func (g *Graph) Worksheets(id string) []string {
	if s, ok := g.sheets[id]; ok {
		return []string{s.Name}
	}
	names := slices.Clone(g.fields[id].Worksheets)
	for _, p := range g.dag.Parents(id) {
		if s, ok := g.sheets[p]; ok {
			names = append(names, s.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// LabeledCalculation returns the calculation of a field with every
// unambiguous reference replaced by the target's label.
func (g *Graph) LabeledCalculation(id string) string {
	f, ok := g.fields[id]
	if !ok {
		return ""
	}
	return formula.Rewrite(f.Calculation, func(ref formula.Reference) (string, bool) {
		ids := g.reg.Resolve(ref, f.Datasource.Name)
		if len(ids) != 1 {
			return "", false
		}
		return formula.Reference{Name: g.Label(ids[0])}.String(), true
	})
}
