package report

import (
	"github.com/matzehuels/workbookdeps/pkg/closure"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

// FieldSummary aggregates the closure of one field.
type FieldSummary struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Datasource  string            `json:"datasource"`
	Kind        workbook.Kind     `json:"kind"`
	Category    workbook.Category `json:"category"`
	Datatype    string            `json:"datatype,omitempty"`
	Role        string            `json:"role,omitempty"`
	Type        string            `json:"type,omitempty"`
	Hidden      bool              `json:"hidden"`
	Description string            `json:"description,omitempty"`
	Calculation string            `json:"calculation,omitempty"` // references shown by label
	Worksheets  []string          `json:"worksheets,omitempty"`

	ForwardCount     int `json:"forward_count"`  // fields relied upon
	BackwardCount    int `json:"backward_count"` // fields relying on this one
	MaxLevel         int `json:"max_level"`
	MaxBackwardLevel int `json:"max_backward_level"`

	// BaseFields lists the labels of the raw fields this field relies on.
	BaseFields []string `json:"base_fields,omitempty"`
	// LODCount counts the LOD calculations this field relies on.
	LODCount int `json:"lod_count"`
	// SheetCount counts the sheets that use this field, directly or through
	// other fields.
	SheetCount int `json:"sheet_count"`
	// Unused is set when no sheet relies on the field.
	Unused bool `json:"unused"`
}

// Summaries returns one summary per field, in input order.
func Summaries(c *closure.Closure) []FieldSummary {
	g := c.Graph()
	ids := g.FieldIDs()
	out := make([]FieldSummary, 0, len(ids))
	for _, id := range ids {
		f, _ := g.Field(id)
		s := FieldSummary{
			ID:               id,
			Label:            g.Label(id),
			Datasource:       f.Datasource.Label(),
			Kind:             f.Kind(),
			Category:         f.Category(),
			Datatype:         f.Datatype,
			Role:             f.Role,
			Type:             f.Type,
			Hidden:           f.Hidden,
			Description:      f.Description,
			Calculation:      g.LabeledCalculation(id),
			Worksheets:       f.Worksheets,
			MaxLevel:         c.MaxLevel(id),
			MaxBackwardLevel: c.MaxBackwardLevel(id),
		}

		for _, dep := range c.Forward(id) {
			s.ForwardCount++
			switch g.Kind(dep) {
			case workbook.KindField:
				s.BaseFields = append(s.BaseFields, g.Label(dep))
			case workbook.KindLOD:
				s.LODCount++
			}
		}
		for _, dep := range c.Backward(id) {
			if g.IsSheet(dep) {
				s.SheetCount++
			} else {
				s.BackwardCount++
			}
		}
		s.Unused = s.SheetCount == 0
		out = append(out, s)
	}
	return out
}
