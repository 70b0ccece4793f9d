package nodelink

import "github.com/matzehuels/workbookdeps/pkg/workbook"

// NodeStyle is the appearance of one node kind.
type NodeStyle struct {
	Shape string `toml:"shape" json:"shape"`
	Color string `toml:"color" json:"color"`
}

// Style controls diagram appearance.
type Style struct {
	Field      NodeStyle `toml:"field" json:"field"`
	Calculated NodeStyle `toml:"calculated" json:"calculated"`
	LOD        NodeStyle `toml:"lod" json:"lod"`
	Parameter  NodeStyle `toml:"parameter" json:"parameter"`
	Sheet      NodeStyle `toml:"sheet" json:"sheet"`

	// FocusColor fills the subject node of field diagrams.
	FocusColor string `toml:"focus_color" json:"focus_color"`
	// RankDir is the Graphviz layout direction (TB, BT, LR, RL).
	RankDir string `toml:"rankdir" json:"rankdir"`
}

// DefaultStyle returns the built-in style.
func DefaultStyle() Style {
	return Style{
		Field:      NodeStyle{Shape: "box", Color: "green"},
		Calculated: NodeStyle{Shape: "oval", Color: "orange"},
		LOD:        NodeStyle{Shape: "oval", Color: "red"},
		Parameter:  NodeStyle{Shape: "parallelogram", Color: "#cbc3e3"},
		Sheet:      NodeStyle{Shape: "box", Color: "grey"},
		FocusColor: "lightblue",
		RankDir:    "TB",
	}
}

// For returns the style of a node kind. Empty attributes fall back to the
// default style.
func (s Style) For(kind workbook.Kind) NodeStyle {
	def := DefaultStyle()
	var ns, fallback NodeStyle
	switch kind {
	case workbook.KindCalculated:
		ns, fallback = s.Calculated, def.Calculated
	case workbook.KindLOD:
		ns, fallback = s.LOD, def.LOD
	case workbook.KindParameter:
		ns, fallback = s.Parameter, def.Parameter
	case workbook.KindSheet:
		ns, fallback = s.Sheet, def.Sheet
	default:
		ns, fallback = s.Field, def.Field
	}
	if ns.Shape == "" {
		ns.Shape = fallback.Shape
	}
	if ns.Color == "" {
		ns.Color = fallback.Color
	}
	return ns
}

func (s Style) focusColor() string {
	if s.FocusColor == "" {
		return DefaultStyle().FocusColor
	}
	return s.FocusColor
}

func (s Style) rankDir() string {
	if s.RankDir == "" {
		return DefaultStyle().RankDir
	}
	return s.RankDir
}
