// Package pipeline runs workbook analysis end to end.
//
// This package implements the load → build → closure → report → render →
// write pipeline shared by the CLI and the HTTP service, so both produce
// identical outputs for the same workbook.
//
// # Stages
//
//  1. Load: read a .twb/.twbx file ([workbook.Load])
//  2. Build: register fields and build the dependency graph ([depgraph.FromWorkbook])
//  3. Closure: levels, transitive sets and cycle truncation ([closure.Compute])
//  4. Report: deduplicated dependency rows and field summaries
//  5. Render: one diagram per field and per sheet, via Graphviz, cached
//  6. Write: spreadsheet, JSON report and diagram files
//
// Stages 1-4 are pure and fast; [Runner.Analyze] runs them. Rendering and
// writing are driven by [Runner.Write].
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.DefaultOptions()
//	result, err := runner.AnalyzeFile(ctx, "Superstore.twbx", opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	written, err := runner.Write(ctx, result, "out", opts)
//
// Several workbooks are analyzed concurrently with [Runner.AnalyzeAll].
package pipeline

import (
	"fmt"
	"runtime"
	"time"

	"github.com/matzehuels/workbookdeps/pkg/closure"
	"github.com/matzehuels/workbookdeps/pkg/config"
	"github.com/matzehuels/workbookdeps/pkg/depgraph"
	"github.com/matzehuels/workbookdeps/pkg/diag"
	"github.com/matzehuels/workbookdeps/pkg/io"
	"github.com/matzehuels/workbookdeps/pkg/observability"
	"github.com/matzehuels/workbookdeps/pkg/registry"
	"github.com/matzehuels/workbookdeps/pkg/render/nodelink"
	"github.com/matzehuels/workbookdeps/pkg/report"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run.
type Options struct {
	// Formats are the diagram formats written for every diagram.
	Formats []nodelink.Format `json:"formats,omitempty"`
	// FieldGraphs enables one diagram per field with dependencies.
	FieldGraphs bool `json:"field_graphs"`
	// SheetGraphs enables one diagram per worksheet.
	SheetGraphs bool `json:"sheet_graphs"`
	// Workers bounds concurrent analyses in AnalyzeAll; 0 means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
	// Style controls diagram shapes and colors.
	Style nodelink.Style `json:"style"`
	// Version is recorded in JSON reports.
	Version string `json:"-"`

	// Suffixer overrides the label disambiguation suffixes (tests).
	Suffixer registry.Suffixer `json:"-"`
	// Observer receives progress events. It must not block.
	Observer Observer `json:"-"`

	validated bool
}

// DefaultOptions returns options matching the default configuration.
func DefaultOptions() Options {
	opts, _ := OptionsFromConfig(config.Default())
	return opts
}

// OptionsFromConfig converts loaded settings into pipeline options.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	formats, err := cfg.DiagramFormats()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Formats:     formats,
		FieldGraphs: cfg.FieldGraphs,
		SheetGraphs: cfg.SheetGraphs,
		Workers:     cfg.Workers,
		Style:       cfg.Style,
	}, nil
}

// ValidateAndSetDefaults checks the options and fills in defaults.
// Calling it more than once has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	for _, f := range o.Formats {
		if _, err := nodelink.ParseFormat(string(f)); err != nil {
			return err
		}
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	if o.Workers == 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	o.validated = true
	return nil
}

// renders reports whether any diagram will be produced.
func (o *Options) renders() bool {
	return len(o.Formats) > 0 && (o.FieldGraphs || o.SheetGraphs)
}

// =============================================================================
// Progress
// =============================================================================

// Event reports pipeline progress for one workbook.
type Event struct {
	Workbook string
	Phase    observability.Phase
	// Done and Total count diagrams during PhaseRender; both are zero for
	// other phases.
	Done, Total int
	// Finished is set once the phase has completed.
	Finished bool
	Err      error
}

// Percent maps the event onto a 0-100 progress scale. Analysis phases
// cover 0-15, rendering 15-90 and writing the remainder.
func (e Event) Percent() int {
	const renderStart, renderEnd = 15, 90
	switch e.Phase {
	case observability.PhaseLoad:
		return 0
	case observability.PhaseBuild:
		return 5
	case observability.PhaseClosure:
		return 10
	case observability.PhaseReport:
		return 12
	case observability.PhaseRender:
		if e.Total == 0 {
			return renderStart
		}
		return renderStart + e.Done*(renderEnd-renderStart)/e.Total
	case observability.PhaseWrite:
		if e.Finished {
			return 100
		}
		return renderEnd
	}
	return 0
}

// Observer receives progress events.
type Observer func(Event)

func (o *Options) notify(e Event) {
	if o.Observer != nil {
		o.Observer(e)
	}
}

// =============================================================================
// Results
// =============================================================================

// Result holds everything derived from one workbook.
type Result struct {
	Name     string
	Workbook *workbook.Workbook
	Graph    *depgraph.Graph
	Closure  *closure.Closure
	// Rows are the deduplicated dependency rows.
	Rows []report.Row
	// Diagnostics from graph construction and closure, sorted.
	Diagnostics []diag.Diagnostic
	// Report is the serializable summary written to disk.
	Report *io.Report
	Stats  Stats
}

// Stats contains sizes and timings of a run.
type Stats struct {
	Fields      int
	Sheets      int
	Edges       int
	Rows        int
	Cycles      int
	Diagnostics int

	LoadTime    time.Duration
	BuildTime   time.Duration
	ClosureTime time.Duration
	ReportTime  time.Duration
	RenderTime  time.Duration
	WriteTime   time.Duration
}
