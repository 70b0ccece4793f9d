package depgraph

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/matzehuels/workbookdeps/pkg/diag"
	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/formula"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

var orders = workbook.Datasource{Name: "federated.1", Caption: "Orders"}

func raw(name string) workbook.Field {
	return workbook.Field{Datasource: orders, Name: name, Role: "measure"}
}

func calc(name, expr string) workbook.Field {
	return workbook.Field{Datasource: orders, Name: name, Calculation: expr, Role: "measure"}
}

func id(name string) string { return workbook.QualifiedID(orders.Name, name) }

func sheet(name string, fields ...string) workbook.Sheet {
	s := workbook.Sheet{Name: name}
	for _, f := range fields {
		s.Fields = append(s.Fields, formula.Reference{Source: orders.Name, Name: f})
	}
	return s
}

func counter() func() string {
	n := 0
	return func() string {
		n++
		return strconv.Itoa(n)
	}
}

func TestBuildProfitRatio(t *testing.T) {
	fields := []workbook.Field{
		raw("Sales"),
		raw("Profit"),
		calc("Profit Ratio", "SUM([Profit]) / SUM([Sales])"),
	}
	g, err := Build(fields, []workbook.Sheet{sheet("Overview", "Profit Ratio")}, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// "[Profit Ratio]" sorts before "[Profit]".
	want := []DependencyEdge{
		{From: id("Profit Ratio"), To: SheetID("Overview")},
		{From: id("Profit"), To: id("Profit Ratio")},
		{From: id("Sales"), To: id("Profit Ratio")},
	}
	if got := g.Edges(); !reflect.DeepEqual(got, want) {
		t.Errorf("Edges() = %v, want %v", got, want)
	}
	if got := g.DirectDependencies(id("Profit Ratio")); !reflect.DeepEqual(got, []string{id("Profit"), id("Sales")}) {
		t.Errorf("DirectDependencies() = %v", got)
	}
	if got := g.DirectDependents(id("Profit Ratio")); !reflect.DeepEqual(got, []string{SheetID("Overview")}) {
		t.Errorf("DirectDependents() = %v", got)
	}
	if len(g.Diagnostics()) != 0 {
		t.Errorf("Diagnostics() = %v, want none", g.Diagnostics())
	}
	if !g.IsSheet(SheetID("Overview")) || g.IsSheet(id("Sales")) {
		t.Error("IsSheet() misclassifies nodes")
	}
	if got := g.Kind(id("Profit Ratio")); got != workbook.KindCalculated {
		t.Errorf("Kind() = %v, want %v", got, workbook.KindCalculated)
	}
	if got := g.Kind(SheetID("Overview")); got != workbook.KindSheet {
		t.Errorf("Kind(sheet) = %v", got)
	}
}

func TestBuildDiagnostics(t *testing.T) {
	fields := []workbook.Field{
		raw("A"),
		calc("Self", "[Self] + [A]"),
		calc("Dangling", "[Deleted] * 2"),
		calc("Broken", "[A] + [Unclosed"),
		calc("Literal", `[A] & "open`),
	}
	sheets := []workbook.Sheet{sheet("S", "A", "Ghost")}

	var sink diag.Collector
	g, err := Build(fields, sheets, Options{Sink: &sink})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	counts := map[diag.Kind]int{}
	for _, d := range g.Diagnostics() {
		counts[d.Kind]++
	}
	want := map[diag.Kind]int{
		diag.KindSelfReference:       1,
		diag.KindUnresolvedReference: 2,
		diag.KindUnbalancedBracket:   1,
		diag.KindUnterminatedLiteral: 1,
	}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("diagnostic counts = %v, want %v", counts, want)
	}
	if sink.Len() != len(g.Diagnostics()) {
		t.Errorf("sink got %d diagnostics, graph has %d", sink.Len(), len(g.Diagnostics()))
	}

	// Recovered references still produce edges.
	for _, from := range []string{"Self", "Broken", "Literal"} {
		if !reflect.DeepEqual(g.DirectDependencies(id(from)), []string{id("A")}) {
			t.Errorf("DirectDependencies(%s) = %v, want [A]", from, g.DirectDependencies(id(from)))
		}
	}
	if g.DAG().HasEdge(id("Self"), id("Self")) {
		t.Error("self loop was added")
	}
}

func TestBuildStructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []workbook.Field
		sheets []workbook.Sheet
		code   errors.Code
	}{
		{"no fields", nil, nil, errors.ErrCodeEmptyFields},
		{"duplicate field", []workbook.Field{raw("A"), raw("A")}, nil, errors.ErrCodeDuplicateField},
		{"duplicate sheet", []workbook.Field{raw("A")}, []workbook.Sheet{sheet("S"), sheet("T"), sheet("S")}, errors.ErrCodeDuplicateSheet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.fields, tt.sheets, Options{})
			if !errors.Is(err, tt.code) {
				t.Errorf("Build() error = %v, want %s", err, tt.code)
			}
			if !errors.IsGraphBuild(err) {
				t.Errorf("IsGraphBuild(%v) = false", err)
			}
		})
	}
}

func TestBuildDuplicateNames(t *testing.T) {
	fields := []workbook.Field{
		{Datasource: workbook.Datasource{Name: "a"}, Name: "Sales"},
		{Datasource: workbook.Datasource{Name: "b"}, Name: "Sales"},
		{Datasource: workbook.Datasource{Name: "b"}, Name: "Double", Calculation: "[Sales] * 2"},
	}
	g, err := Build(fields, nil, Options{Suffixer: counter()})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := g.Label("[a].[Sales]"); got != "Sales" {
		t.Errorf("Label(a) = %q, want Sales", got)
	}
	if got := g.Label("[b].[Sales]"); got != "Sales (1)" {
		t.Errorf("Label(b) = %q, want Sales (1)", got)
	}
	// The bare reference resolves within the field's own datasource.
	if got := g.DirectDependencies("[b].[Double]"); !reflect.DeepEqual(got, []string{"[b].[Sales]"}) {
		t.Errorf("DirectDependencies(Double) = %v", got)
	}
	if got := g.LabeledCalculation("[b].[Double]"); got != "[Sales (1)] * 2" {
		t.Errorf("LabeledCalculation() = %q", got)
	}
}

func TestBuildSheetTitle(t *testing.T) {
	fields := []workbook.Field{raw("Region"), raw("Sales")}
	s := sheet("Map", "Sales")
	s.Title = "Sales by <[federated.1].[none:Region:nk]>"
	g, err := Build(fields, []workbook.Sheet{s}, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []string{id("Region"), id("Sales")}
	if got := g.DirectDependencies(SheetID("Map")); !reflect.DeepEqual(got, want) {
		t.Errorf("DirectDependencies(sheet) = %v, want %v", got, want)
	}
	if got := g.Worksheets(id("Region")); !reflect.DeepEqual(got, []string{"Map"}) {
		t.Errorf("Worksheets(Region) = %v", got)
	}
	if got := g.Worksheets(SheetID("Map")); !reflect.DeepEqual(got, []string{"Map"}) {
		t.Errorf("Worksheets(sheet) = %v", got)
	}
}

func TestBuildSheetLabelClash(t *testing.T) {
	g, err := Build([]workbook.Field{raw("Sales")}, []workbook.Sheet{sheet("Sales", "Sales"), sheet("Other")}, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := g.Label(SheetID("Sales")); got != "Sales (sheet)" {
		t.Errorf("Label(sheet) = %q, want %q", got, "Sales (sheet)")
	}
	if got := g.SheetIDs(); !reflect.DeepEqual(got, []string{SheetID("Other"), SheetID("Sales")}) {
		t.Errorf("SheetIDs() = %v", got)
	}
}

func TestFromWorkbook(t *testing.T) {
	wb := &workbook.Workbook{
		Fields: []workbook.Field{raw("A"), calc("B", "[A]")},
		Sheets: []workbook.Sheet{sheet("S", "B")},
	}
	g, err := FromWorkbook(wb, Options{})
	if err != nil {
		t.Fatalf("FromWorkbook() error = %v", err)
	}
	if g.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", g.NodeCount())
	}
	if got := g.FieldIDs(); !reflect.DeepEqual(got, []string{id("A"), id("B")}) {
		t.Errorf("FieldIDs() = %v", got)
	}
}
