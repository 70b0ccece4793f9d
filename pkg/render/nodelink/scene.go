package nodelink

import (
	"cmp"
	"slices"

	"github.com/matzehuels/workbookdeps/pkg/closure"
	"github.com/matzehuels/workbookdeps/pkg/dag"
	"github.com/matzehuels/workbookdeps/pkg/dag/transform"
	"github.com/matzehuels/workbookdeps/pkg/depgraph"
	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

// SceneNode is one node of a diagram.
type SceneNode struct {
	ID      string        `json:"id"`
	Label   string        `json:"label"`
	Kind    workbook.Kind `json:"kind"`
	Shape   string        `json:"shape"`
	Color   string        `json:"color"`
	Tooltip string        `json:"tooltip,omitempty"`
	Focus   bool          `json:"focus,omitempty"`
}

// SceneEdge points from a dependent to one of its dependencies.
type SceneEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Scene is a renderer-agnostic diagram description.
type Scene struct {
	Title   string      `json:"title,omitempty"`
	RankDir string      `json:"rankdir"`
	Nodes   []SceneNode `json:"nodes"`
	Edges   []SceneEdge `json:"edges"`
}

// Node returns the scene node with the given id.
func (s Scene) Node(id string) (SceneNode, bool) {
	i := slices.IndexFunc(s.Nodes, func(n SceneNode) bool { return n.ID == id })
	if i < 0 {
		return SceneNode{}, false
	}
	return s.Nodes[i], true
}

// Export describes the whole graph: every field and sheet, every direct
// dependency.
func Export(g *depgraph.Graph, style Style) Scene {
	ids := append(g.FieldIDs(), g.SheetIDs()...)
	var edges []SceneEdge
	for _, e := range g.Edges() {
		edges = append(edges, SceneEdge{From: e.To, To: e.From})
	}
	return newScene(g, "", ids, edges, "", style)
}

// FieldScene describes one field in context: the field, everything it
// relies on and every field relying on it, with the dependencies among them.
// Sheets are left out.
func FieldScene(c *closure.Closure, id string, style Style) (Scene, error) {
	g := c.Graph()
	if !g.Has(id) || g.IsSheet(id) {
		return Scene{}, errors.New(errors.ErrCodeNotFound, "no field %s", id)
	}

	members := map[string]bool{id: true}
	for _, n := range c.Forward(id) {
		members[n] = true
	}
	for _, n := range c.Backward(id) {
		if !g.IsSheet(n) {
			members[n] = true
		}
	}

	var ids []string
	var edges []SceneEdge
	for _, n := range c.Order() {
		if !members[n] {
			continue
		}
		ids = append(ids, n)
		for _, dep := range c.DirectDependencies(n) {
			if members[dep] {
				edges = append(edges, SceneEdge{From: n, To: dep})
			}
		}
	}
	return newScene(g, g.Label(id), ids, edges, id, style), nil
}

// SheetScene describes one sheet: the sheet, the fields it shows and the
// dependencies among those fields, transitively reduced so that the sheet
// links only to fields no other field on the sheet relies on.
func SheetScene(c *closure.Closure, id string, style Style) (Scene, error) {
	g := c.Graph()
	if !g.IsSheet(id) {
		return Scene{}, errors.New(errors.ErrCodeNotFound, "no sheet %s", id)
	}

	fields := c.DirectDependencies(id)
	sub := dag.New(nil)
	_ = sub.AddNode(dag.Node{ID: id})
	for _, f := range fields {
		_ = sub.AddNode(dag.Node{ID: f})
	}
	for _, f := range fields {
		_, _ = sub.AddEdge(dag.Edge{From: id, To: f})
		for _, dep := range c.Forward(f) {
			if slices.Contains(fields, dep) {
				_, _ = sub.AddEdge(dag.Edge{From: f, To: dep})
			}
		}
	}
	transform.TransitiveReduction(sub)

	var edges []SceneEdge
	for _, e := range sub.Edges() {
		edges = append(edges, SceneEdge{From: e.From, To: e.To})
	}
	return newScene(g, g.Label(id), append([]string{id}, fields...), edges, "", style), nil
}

func newScene(g *depgraph.Graph, title string, ids []string, edges []SceneEdge, focus string, style Style) Scene {
	s := Scene{Title: title, RankDir: style.rankDir(), Edges: edges}
	for _, id := range ids {
		kind := g.Kind(id)
		ns := style.For(kind)
		n := SceneNode{
			ID:      id,
			Label:   g.Label(id),
			Kind:    kind,
			Shape:   ns.Shape,
			Color:   ns.Color,
			Tooltip: g.LabeledCalculation(id),
		}
		if id == focus {
			n.Focus = true
			n.Color = style.focusColor()
		}
		s.Nodes = append(s.Nodes, n)
	}
	slices.SortStableFunc(s.Edges, func(a, b SceneEdge) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return s
}
