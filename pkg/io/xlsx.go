package io

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Spreadsheet sheet names.
const (
	SheetFields       = "fields"
	SheetDependencies = "dependencies"
	SheetDiagnostics  = "diagnostics"
)

var (
	fieldsHeader = []any{
		"ID", "Label", "Datasource", "Kind", "Category", "Datatype", "Role", "Type",
		"Hidden", "Description", "Calculation", "Worksheets",
		"Forward Count", "Backward Count", "Max Level", "Max Backward Level",
		"Base Fields", "LOD Count", "Sheet Count", "Unused",
	}
	dependenciesHeader = []any{
		"Source", "Target", "Source ID", "Target ID", "Level", "Category", "Worksheets Overlap",
	}
	diagnosticsHeader = []any{"Kind", "Field ID", "Message", "Related"}
)

// WriteXLSX encodes a report as a spreadsheet and writes it to w.
func WriteXLSX(r *Report, w io.Writer) error {
	f, err := newWorkbookFile(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// ExportXLSX writes a report to a spreadsheet file at path.
func ExportXLSX(r *Report, path string) error {
	f, err := newWorkbookFile(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func newWorkbookFile(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	sw := sheetWriter{f: f, header: bold}

	// NewFile starts with "Sheet1"; rename it instead of adding a fourth sheet.
	if err := f.SetSheetName("Sheet1", SheetFields); err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, name := range []string{SheetDependencies, SheetDiagnostics} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("xlsx sheet %s: %w", name, err)
		}
	}

	fields := make([][]any, len(r.Fields))
	for i, s := range r.Fields {
		fields[i] = []any{
			s.ID, s.Label, s.Datasource, string(s.Kind), string(s.Category), s.Datatype, s.Role, s.Type,
			s.Hidden, s.Description, s.Calculation, strings.Join(s.Worksheets, ", "),
			s.ForwardCount, s.BackwardCount, s.MaxLevel, s.MaxBackwardLevel,
			strings.Join(s.BaseFields, ", "), s.LODCount, s.SheetCount, s.Unused,
		}
	}
	deps := make([][]any, len(r.Dependencies))
	for i, d := range r.Dependencies {
		deps[i] = []any{d.SourceLabel, d.TargetLabel, d.SourceID, d.TargetID, d.Level, d.Category, d.WorksheetsOverlap}
	}
	diags := make([][]any, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		diags[i] = []any{string(d.Kind), d.FieldID, d.Message, strings.Join(d.Related, ", ")}
	}

	for _, sheet := range []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetFields, fieldsHeader, fields},
		{SheetDependencies, dependenciesHeader, deps},
		{SheetDiagnostics, diagnosticsHeader, diags},
	} {
		if err := sw.write(sheet.name, sheet.header, sheet.rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
}

// write fills a sheet with a bold, frozen, filterable header row.
func (sw sheetWriter) write(sheet string, header []any, rows [][]any) error {
	if err := sw.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx %s header: %w", sheet, err)
	}
	for i, row := range rows {
		for j, v := range row {
			if s, ok := v.(string); ok {
				row[j] = clip(s)
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, i+2, err)
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := sw.f.SetCellStyle(sheet, "A1", last, sw.header); err != nil {
		return fmt.Errorf("xlsx %s style: %w", sheet, err)
	}
	if err := sw.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("xlsx %s panes: %w", sheet, err)
	}
	if len(rows) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(header), len(rows)+1)
		if err := sw.f.AutoFilter(sheet, "A1:"+end, nil); err != nil {
			return fmt.Errorf("xlsx %s filter: %w", sheet, err)
		}
	}
	return nil
}

// clip truncates s to the longest text a spreadsheet cell accepts.
func clip(s string) string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return s
	}
	return string([]rune(s)[:excelize.TotalCellChars])
}
