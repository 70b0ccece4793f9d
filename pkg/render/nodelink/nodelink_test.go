package nodelink

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/workbookdeps/pkg/closure"
	"github.com/matzehuels/workbookdeps/pkg/depgraph"
	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/formula"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

var (
	ds     = workbook.Datasource{Name: "ds"}
	params = workbook.Datasource{Name: workbook.ParametersDatasource}
)

func id(name string) string { return workbook.QualifiedID(ds.Name, name) }

// testClosure: Margin -> Ratio -> {Profit, Sales}; Margin -> Sales;
// Flag -> {Margin, Target}; sheet Dash shows Ratio, Sales and Margin.
func testClosure(t *testing.T) *closure.Closure {
	t.Helper()
	fields := []workbook.Field{
		{Datasource: ds, Name: "Sales"},
		{Datasource: ds, Name: "Profit"},
		{Datasource: ds, Name: "Ratio", Calculation: "[Profit] / [Sales]"},
		{Datasource: ds, Name: "Margin", Calculation: "{FIXED : SUM([Ratio])} * [Sales]"},
		{Datasource: params, Name: "Target", Calculation: "0.2"},
		{Datasource: ds, Name: "Flag", Calculation: "[Margin] > [Parameters].[Target]"},
	}
	sheets := []workbook.Sheet{{
		Name: "Dash",
		Fields: []formula.Reference{
			{Source: "ds", Name: "Ratio"},
			{Source: "ds", Name: "Sales"},
			{Source: "ds", Name: "Margin"},
		},
	}}
	g, err := depgraph.Build(fields, sheets, depgraph.Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return closure.Compute(g, nil)
}

func TestExport(t *testing.T) {
	c := testClosure(t)
	s := Export(c.Graph(), DefaultStyle())

	if len(s.Nodes) != 7 {
		t.Errorf("Nodes = %d, want 7", len(s.Nodes))
	}
	if len(s.Edges) != 9 {
		t.Errorf("Edges = %d, want 9", len(s.Edges))
	}

	tests := []struct {
		id    string
		shape string
		color string
	}{
		{id("Sales"), "box", "green"},
		{id("Ratio"), "oval", "orange"},
		{id("Margin"), "oval", "red"},
		{workbook.QualifiedID("Parameters", "Target"), "parallelogram", "#cbc3e3"},
		{depgraph.SheetID("Dash"), "box", "grey"},
	}
	for _, tt := range tests {
		n, ok := s.Node(tt.id)
		if !ok {
			t.Errorf("node %s missing", tt.id)
			continue
		}
		if n.Shape != tt.shape || n.Color != tt.color {
			t.Errorf("node %s = %s/%s, want %s/%s", tt.id, n.Shape, n.Color, tt.shape, tt.color)
		}
	}

	// Edges run from dependent to dependency.
	want := SceneEdge{From: id("Ratio"), To: id("Profit")}
	found := false
	for _, e := range s.Edges {
		found = found || e == want
	}
	if !found {
		t.Errorf("edge %v missing from %v", want, s.Edges)
	}
}

func TestFieldScene(t *testing.T) {
	c := testClosure(t)
	s, err := FieldScene(c, id("Ratio"), DefaultStyle())
	if err != nil {
		t.Fatalf("FieldScene() error = %v", err)
	}

	var got []string
	for _, n := range s.Nodes {
		got = append(got, n.Label)
	}
	want := []string{"Profit", "Sales", "Ratio", "Margin", "Flag"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("node labels = %v, want %v", got, want)
	}

	root, _ := s.Node(id("Ratio"))
	if !root.Focus || root.Color != "lightblue" {
		t.Errorf("root = %+v, want focused lightblue", root)
	}
	if root.Tooltip != "[Profit] / [Sales]" {
		t.Errorf("root tooltip = %q", root.Tooltip)
	}
	for _, n := range s.Nodes {
		if n.Kind == workbook.KindSheet {
			t.Errorf("sheet %s in field scene", n.ID)
		}
	}
	// Flag -> Target is outside the scene.
	for _, e := range s.Edges {
		if _, ok := s.Node(e.To); !ok {
			t.Errorf("edge %v leaves the scene", e)
		}
	}
	if s.Title != "Ratio" {
		t.Errorf("Title = %q", s.Title)
	}

	if _, err := FieldScene(c, depgraph.SheetID("Dash"), DefaultStyle()); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("FieldScene(sheet) error = %v, want NOT_FOUND", err)
	}
}

func TestSheetScene(t *testing.T) {
	c := testClosure(t)
	s, err := SheetScene(c, depgraph.SheetID("Dash"), DefaultStyle())
	if err != nil {
		t.Fatalf("SheetScene() error = %v", err)
	}

	sheet := depgraph.SheetID("Dash")
	want := []SceneEdge{
		{From: id("Margin"), To: id("Ratio")},
		{From: id("Ratio"), To: id("Sales")},
		{From: sheet, To: id("Margin")},
	}
	if !reflect.DeepEqual(s.Edges, want) {
		t.Errorf("Edges = %v, want %v", s.Edges, want)
	}
	if len(s.Nodes) != 4 {
		t.Errorf("Nodes = %d, want 4", len(s.Nodes))
	}

	if _, err := SheetScene(c, id("Sales"), DefaultStyle()); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("SheetScene(field) error = %v, want NOT_FOUND", err)
	}
}

func TestStyleFallback(t *testing.T) {
	s := Style{LOD: NodeStyle{Color: "purple"}}
	if got := s.For(workbook.KindLOD); got != (NodeStyle{Shape: "oval", Color: "purple"}) {
		t.Errorf("For(LOD) = %+v", got)
	}
	if got := s.For(workbook.KindSheet); got != DefaultStyle().Sheet {
		t.Errorf("For(Sheet) = %+v", got)
	}
	if s.rankDir() != "TB" || s.focusColor() != "lightblue" {
		t.Errorf("defaults = %s, %s", s.rankDir(), s.focusColor())
	}
}

func TestToDOT(t *testing.T) {
	s := Scene{
		Title:   `Say "hi"`,
		RankDir: "LR",
		Nodes: []SceneNode{
			{ID: "[ds].[A]", Label: "A", Shape: "box", Color: "green"},
			{ID: "[ds].[B]", Label: "B", Shape: "oval", Color: "orange", Tooltip: "[A]\n* 2", Focus: true},
		},
		Edges: []SceneEdge{{From: "[ds].[B]", To: "[ds].[A]"}},
	}
	dot := ToDOT(s)

	for _, want := range []string{
		"digraph G {",
		"rankdir=LR;",
		`label="Say \"hi\"";`,
		`"[ds].[A]" [label="A", shape="box", fillcolor="green", tooltip=" "];`,
		`tooltip="[A]\n* 2", penwidth=2];`,
		`"[ds].[B]" -> "[ds].[A]";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q in:\n%s", want, dot)
		}
	}
}

func TestQuote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", `"plain"`},
		{`a\b`, `"a\\b"`},
		{"tab\there", `"tab here"`},
		{"line\r\nbreak", `"line\nbreak"`},
	}
	for _, tt := range tests {
		if got := quote(tt.in); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		if got, err := ParseFormat(string(f)); err != nil || got != f {
			t.Errorf("ParseFormat(%s) = %v, %v", f, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("ParseFormat(pdf) error = %v", err)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	dot := ToDOT(Export(testClosure(t).Graph(), DefaultStyle()))

	out, err := Render(ctx, dot, FormatDOT)
	if err != nil || string(out) != dot {
		t.Errorf("Render(dot) = %q, %v", out, err)
	}

	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		t.Fatalf("RenderSVG() error = %v", err)
	}
	if !bytes.Contains(svg, []byte(`viewBox="0 0 `)) {
		t.Errorf("RenderSVG() did not normalize the viewBox")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := RenderPNG(canceled, dot); err == nil {
		t.Error("RenderPNG() with canceled context succeeded")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="62pt" height="116pt" viewBox="0.00 0.00 62.00 116.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 62.00 116.00" width="62" height="116"`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg></svg>")); string(got) != "<svg></svg>" {
		t.Errorf("normalizeViewBox(no viewBox) = %s", got)
	}
}
