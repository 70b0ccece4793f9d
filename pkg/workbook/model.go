package workbook

import (
	"strings"

	"github.com/matzehuels/workbookdeps/pkg/formula"
)

// ParametersDatasource is the name of the datasource holding parameters.
const ParametersDatasource = "Parameters"

// Category classifies a field by its analytical role.
type Category string

const (
	CategoryDimension Category = "dimension"
	CategoryMeasure   Category = "measure"
	CategoryUnknown   Category = "unknown"
)

// Kind classifies a node for presentation.
type Kind string

const (
	KindField      Kind = "Field"
	KindCalculated Kind = "Calculated Field"
	KindLOD        Kind = "Calculated Field (LOD)"
	KindParameter  Kind = "Parameter"
	KindSheet      Kind = "Sheet"
)

// Datasource identifies where a field comes from.
type Datasource struct {
	Name    string `json:"name"`
	Caption string `json:"caption,omitempty"`
}

// Label returns the caption, or the name when no caption is set.
func (d Datasource) Label() string {
	if d.Caption != "" {
		return d.Caption
	}
	return d.Name
}

// IsParameters reports whether d is the parameters datasource.
func (d Datasource) IsParameters() bool { return d.Name == ParametersDatasource }

// Field is a raw or calculated field declared in a datasource.
type Field struct {
	Datasource  Datasource `json:"datasource"`
	Name        string     `json:"name"` // internal name, unbracketed
	Caption     string     `json:"caption,omitempty"`
	Calculation string     `json:"calculation,omitempty"`
	Datatype    string     `json:"datatype,omitempty"`
	Role        string     `json:"role,omitempty"`
	Type        string     `json:"type,omitempty"`
	Hidden      bool       `json:"hidden,omitempty"`
	Description string     `json:"description,omitempty"`
	Worksheets  []string   `json:"worksheets,omitempty"` // sorted sheet names
}

// ID returns the qualified identifier "[datasource].[name]".
func (f Field) ID() string {
	return QualifiedID(f.Datasource.Name, f.Name)
}

// DisplayName returns the caption, or the internal name when no caption is set.
func (f Field) DisplayName() string {
	if f.Caption != "" {
		return f.Caption
	}
	return f.Name
}

// Category derives the analytical category from the role.
func (f Field) Category() Category {
	switch strings.ToLower(f.Role) {
	case "dimension":
		return CategoryDimension
	case "measure":
		return CategoryMeasure
	default:
		return CategoryUnknown
	}
}

// Kind derives the presentation kind. Parameters win over calculations,
// since every parameter carries its current value as a formula.
func (f Field) Kind() Kind {
	switch {
	case f.Datasource.IsParameters():
		return KindParameter
	case strings.TrimSpace(f.Calculation) == "":
		return KindField
	case formula.Scan(f.Calculation).HasLOD:
		return KindLOD
	default:
		return KindCalculated
	}
}

// richness counts the populated attributes; used to pick between duplicate
// declarations of the same column.
func (f Field) richness() int {
	n := 0
	for _, s := range []string{f.Caption, f.Calculation, f.Datatype, f.Role, f.Type, f.Description} {
		if s != "" {
			n++
		}
	}
	if f.Calculation != "" {
		n += 10
	}
	return n
}

// Sheet is a worksheet and the fields it displays.
type Sheet struct {
	Name   string              `json:"name"`
	Fields []formula.Reference `json:"fields"` // qualified by datasource name
	Title  string              `json:"title,omitempty"`
}

// Dropped counts what normalization removed while loading.
type Dropped struct {
	ParameterCopies int `json:"parameter_copies"`
	MeasureNames    int `json:"measure_names"`
	Merged          int `json:"merged"`
}

// Workbook is a loaded workbook definition.
type Workbook struct {
	Name        string       `json:"name"`
	Datasources []Datasource `json:"datasources"`
	Fields      []Field      `json:"fields"`
	Sheets      []Sheet      `json:"sheets"`
	Dropped     Dropped      `json:"dropped"`
}

// Datasource returns the datasource with the given name.
func (w *Workbook) Datasource(name string) (Datasource, bool) {
	for _, ds := range w.Datasources {
		if ds.Name == name {
			return ds, true
		}
	}
	return Datasource{}, false
}

// QualifiedID builds "[source].[name]" with "]" doubled inside each part.
func QualifiedID(source, name string) string {
	return formula.Reference{Source: source, Name: name}.String()
}

// Unbracket strips one pair of surrounding brackets and resolves doubled
// "]]" escapes: "[Sales]]Q1]" → "Sales]Q1". Other strings are returned as-is.
func Unbracket(s string) string {
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		return strings.ReplaceAll(s[1:len(s)-1], "]]", "]")
	}
	return s
}
