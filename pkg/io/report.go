package io

import (
	"github.com/matzehuels/workbookdeps/pkg/closure"
	"github.com/matzehuels/workbookdeps/pkg/diag"
	"github.com/matzehuels/workbookdeps/pkg/render/nodelink"
	"github.com/matzehuels/workbookdeps/pkg/report"
)

// Report is the serializable result of analyzing one workbook.
type Report struct {
	Workbook     string                `json:"workbook"`
	Version      string                `json:"version,omitempty"` // producing workbookdeps version
	Fields       []report.FieldSummary `json:"fields"`
	Dependencies []report.Row          `json:"dependencies"`
	Diagnostics  []diag.Diagnostic     `json:"diagnostics"`
	Graph        nodelink.Scene        `json:"graph"`
}

// NewReport assembles a report from a computed closure. rows are the
// deduplicated dependency rows; diagnostics are sorted in place.
func NewReport(name string, c *closure.Closure, rows []report.Row, diagnostics []diag.Diagnostic, style nodelink.Style) *Report {
	diag.Sort(diagnostics)
	scene := nodelink.Export(c.Graph(), style)
	scene.Title = name
	return &Report{
		Workbook:     name,
		Fields:       report.Summaries(c),
		Dependencies: rows,
		Diagnostics:  diagnostics,
		Graph:        scene,
	}
}
