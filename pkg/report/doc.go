// Package report turns a dependency closure into tabular report data.
//
// Dependency rows are produced in two steps. [Enumerate] walks the graph
// from every node in both directions and emits a row each time it reaches a
// pair of nodes through a chain shorter than any seen before, so the same
// pair usually appears several times. [Dedup] collapses the rows to one per
// (source label, target label) pair, keeping the shortest chain.
// [DependencyRows] combines both.
//
// Labels are compared in canonical form: Unicode NFC, runs of whitespace
// collapsed to one space, surrounding brackets removed. "[Sales]" and
// "Sales " therefore name the same pair.
//
// [Summaries] aggregates the closure per field for the "fields" report.
package report
