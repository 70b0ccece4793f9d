// Package depgraph builds the dependency graph of a workbook.
//
// Nodes are fields and sheets. An edge points from a dependent to one of its
// direct dependencies: a calculated field points to every field its formula
// references, a sheet points to every field it displays or cites in its
// title. Sheets therefore only ever appear as dependents.
//
// [Build] never fails on data-quality problems. Unresolved references, self
// references and malformed formula text become [diag.Diagnostic] values,
// returned by [Graph.Diagnostics] and forwarded to [Options.Sink]. Only
// structural problems abort the build:
//
//   - no fields at all (GRAPH_EMPTY_FIELDS)
//   - two fields with the same id (GRAPH_DUPLICATE_FIELD)
//   - two sheets with the same name (GRAPH_DUPLICATE_SHEET)
//
// A built [Graph] is immutable and safe for concurrent readers.
package depgraph
