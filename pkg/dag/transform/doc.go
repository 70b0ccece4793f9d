// Package transform provides the graph algorithms the dependency engine
// builds on.
//
// # Cycle Detection
//
// [FindCycles] runs a deterministic white/gray/black depth-first search and
// reports every back edge together with the path it closes. [BreakCycles]
// additionally removes those edges, turning the graph into its acyclic
// reduction. Cycles in workbook formulas are data-quality findings, so
// callers report them as diagnostics rather than failing.
//
// # Levels
//
// [AssignLevels] computes, for each node, the longest chain of dependencies
// below it (0 for fields that reference nothing). [AssignDepths] is the
// mirror image: the longest chain of dependents above a node. Both use
// Kahn's algorithm, so a node's value is only finalized after all of its
// neighbors in the relevant direction are finalized.
//
// # Transitive Reduction
//
// [TransitiveReduction] removes edges implied by longer paths. Sheet
// diagrams use it to connect a sheet only to its top-most fields.
//
// # Usage
//
//	reduced := g.Clone()
//	cycles := transform.BreakCycles(reduced)
//	levels := transform.AssignLevels(reduced)
//
// All functions panic if g is nil.
package transform
