// Package io serializes workbook analysis reports.
//
// A [Report] bundles everything derived from one workbook: per-field
// summaries, deduplicated dependency rows, diagnostics and the overview
// diagram scene. Two encodings are provided:
//
//   - JSON ([WriteJSON], [ExportJSON], [ReadJSON], [ImportJSON]) keeps the
//     full report and round-trips. The embedded scene can be rendered again
//     without the source workbook.
//   - XLSX ([WriteXLSX], [ExportXLSX]) writes a spreadsheet with the sheets
//     "fields", "dependencies" and "diagnostics", one row per record.
//
// # JSON Format
//
//	{
//	  "workbook": "Superstore",
//	  "fields": [{"id": "[Orders].[Profit Ratio]", "label": "Profit Ratio", ...}],
//	  "dependencies": [{"source_label": "Profit", "target_label": "Profit Ratio", "level": 1, ...}],
//	  "diagnostics": [{"kind": "unresolved_reference", "field_id": "...", "message": "..."}],
//	  "graph": {"rankdir": "TB", "nodes": [...], "edges": [...]}
//	}
//
// # Concurrency
//
// All functions are safe to call concurrently as long as the report is not
// modified meanwhile.
package io
