// Package workbook models the parts of a BI workbook definition that the
// dependency engine consumes, and loads them from Tableau .twb and .twbx
// files.
//
// # Model
//
// A [Workbook] holds [Datasource] values, the [Field] values declared in
// them, and the [Sheet] values that display those fields. Fields are keyed by
// their qualified identifier "[datasource].[name]" (see [Field.ID]); display
// names may collide across datasources.
//
// # Loading
//
// [Load] reads a file from disk; [Read] reads from any io.Reader. Packaged
// .twbx archives are unzipped and their first .twb entry is parsed.
//
// The loader normalizes the raw definition the same way regardless of
// source:
//
//   - Columns declared more than once in a datasource are merged, keeping
//     the declaration with the most attributes.
//   - Copies of parameters inside regular datasources are dropped; sheet
//     usages of such copies are redirected to the Parameters datasource.
//   - The synthetic [:Measure Names] column is dropped.
//
// Counts of everything dropped are reported in [Workbook.Dropped].
package workbook
