// Package pkg provides the core libraries for workbookdeps field dependency
// analysis.
//
// # Overview
//
// workbookdeps reads Tableau workbooks and answers, for every field, which
// fields it is computed from and which fields and worksheets rely on it. The
// pkg directory is organized into four main areas:
//
//  1. Domain logic: [workbook], [formula], [registry], [depgraph], [closure], [report]
//  2. Graph primitives: [dag] and [dag/transform]
//  3. Output: [render/nodelink] diagrams and [io] spreadsheets and JSON reports
//  4. Orchestration: [pipeline], [api], [cache], [config], [observability]
//
// # Architecture
//
// The typical data flow:
//
//	.twb / .twbx file
//	         ↓
//	    [workbook] (datasources, fields, worksheets)
//	         ↓
//	    [registry] + [formula] (unique labels, reference extraction)
//	         ↓
//	    [depgraph] (field and sheet dependency graph)
//	         ↓
//	    [closure] (levels, transitive sets, cycle truncation)
//	         ↓
//	    [report] (deduplicated rows) → [io] XLSX/JSON, [render/nodelink] SVG/PNG
//
// # Quick Start
//
//	wb, _ := workbook.Load("Superstore.twbx")
//	g, _ := depgraph.FromWorkbook(wb, depgraph.Options{})
//	c := closure.Compute(g, nil)
//	for _, id := range g.FieldIDs() {
//	    fmt.Println(g.Label(id), c.Forward(id))
//	}
//
// Most callers use [pipeline] instead, which runs every stage and writes the
// outputs:
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	res, _ := runner.AnalyzeFile(ctx, "Superstore.twbx", pipeline.DefaultOptions())
//	runner.Write(ctx, res, "out", pipeline.DefaultOptions())
//
// # Error Handling
//
// Failures carry machine-readable codes from [errors]. Data-quality problems
// inside a workbook (unresolved references, cycles) are not errors: they are
// collected as [diag] diagnostics and reported next to the results.
//
// [workbook]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/workbook
// [formula]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/formula
// [registry]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/registry
// [depgraph]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/depgraph
// [closure]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/closure
// [report]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/report
// [dag]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/dag
// [dag/transform]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/dag/transform
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/render/nodelink
// [io]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/io
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/pipeline
// [api]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/api
// [cache]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/errors
// [diag]: https://pkg.go.dev/github.com/matzehuels/workbookdeps/pkg/diag
package pkg
