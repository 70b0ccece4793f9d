package pipeline

import (
	"context"
	"errors"
	"fmt"
	goio "io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/workbookdeps/pkg/cache"
	"github.com/matzehuels/workbookdeps/pkg/closure"
	"github.com/matzehuels/workbookdeps/pkg/depgraph"
	"github.com/matzehuels/workbookdeps/pkg/diag"
	"github.com/matzehuels/workbookdeps/pkg/io"
	"github.com/matzehuels/workbookdeps/pkg/observability"
	"github.com/matzehuels/workbookdeps/pkg/report"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

// Runner executes the pipeline with a shared artifact cache.
//
// The Runner holds no per-run state. Multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// uses [cache.NewDefaultKeyer] and a nil logger uses log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// AnalyzeFile loads the workbook at path and analyzes it.
func (r *Runner) AnalyzeFile(ctx context.Context, path string, opts Options) (*Result, error) {
	var wb *workbook.Workbook
	d, err := r.phase(ctx, path, observability.PhaseLoad, &opts, func() (err error) {
		wb, err = workbook.Load(path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	res, err := r.Analyze(ctx, wb, opts)
	if res != nil {
		res.Stats.LoadTime = d
	}
	return res, err
}

// AnalyzeReader reads a workbook from rd and analyzes it. name is the file
// name and decides whether rd holds a packaged workbook.
func (r *Runner) AnalyzeReader(ctx context.Context, rd goio.Reader, name string, opts Options) (*Result, error) {
	var wb *workbook.Workbook
	d, err := r.phase(ctx, name, observability.PhaseLoad, &opts, func() (err error) {
		wb, err = workbook.Read(rd, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	res, err := r.Analyze(ctx, wb, opts)
	if res != nil {
		res.Stats.LoadTime = d
	}
	return res, err
}

// Analyze builds the graph and closure of a loaded workbook and derives
// its dependency rows, summaries and report. Data-quality problems become
// diagnostics on the result; only structural failures are returned as errors.
func (r *Runner) Analyze(ctx context.Context, wb *workbook.Workbook, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := r.Logger.With("workbook", wb.Name)
	if dropped := wb.Dropped; dropped != (workbook.Dropped{}) {
		logger.Debug("normalized workbook",
			"parameter_copies", dropped.ParameterCopies,
			"measure_names", dropped.MeasureNames,
			"merged", dropped.Merged)
	}

	res := &Result{Name: wb.Name, Workbook: wb}
	sink := diag.Multi(diag.LogSink{Logger: logger}, hookSink{ctx: ctx, workbook: wb.Name})

	var err error
	res.Stats.BuildTime, err = r.phase(ctx, wb.Name, observability.PhaseBuild, &opts, func() (err error) {
		res.Graph, err = depgraph.FromWorkbook(wb, depgraph.Options{Suffixer: opts.Suffixer, Sink: sink})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	res.Stats.Fields = len(res.Graph.FieldIDs())
	res.Stats.Sheets = len(res.Graph.SheetIDs())
	res.Stats.Edges = res.Graph.DAG().EdgeCount()
	logger.Info("built graph",
		"fields", res.Stats.Fields,
		"sheets", res.Stats.Sheets,
		"edges", res.Stats.Edges,
		"duration", res.Stats.BuildTime)

	res.Stats.ClosureTime, err = r.phase(ctx, wb.Name, observability.PhaseClosure, &opts, func() error {
		res.Closure = closure.Compute(res.Graph, sink)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Stats.Cycles = len(res.Closure.Cycles())

	res.Stats.ReportTime, err = r.phase(ctx, wb.Name, observability.PhaseReport, &opts, func() error {
		res.Rows = report.DependencyRows(res.Closure)
		res.Diagnostics = append(res.Graph.Diagnostics(), res.Closure.Diagnostics()...)
		res.Report = io.NewReport(wb.Name, res.Closure, res.Rows, res.Diagnostics, opts.Style)
		res.Report.Version = opts.Version
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Stats.Rows = len(res.Rows)
	res.Stats.Diagnostics = len(res.Diagnostics)
	logger.Info("analyzed dependencies",
		"rows", res.Stats.Rows,
		"max_level", res.Closure.Reduced().MaxLevel(),
		"cycles", res.Stats.Cycles,
		"diagnostics", res.Stats.Diagnostics)

	return res, nil
}

// AnalyzeAll analyzes workbooks concurrently, at most opts.Workers at a
// time, and calls handle with each successful result. handle may be called
// from several goroutines at once.
//
// A workbook that fails to load or build does not stop the others; those
// failures are joined into the returned error. An error from handle or a
// canceled ctx stops the run.
func (r *Runner) AnalyzeAll(ctx context.Context, paths []string, opts Options, handle func(context.Context, *Result) error) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	failures := make([]error, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			res, err := r.AnalyzeFile(ctx, path, opts)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.Logger.Error("analysis failed", "path", path, "err", err)
				failures[i] = fmt.Errorf("%s: %w", path, err)
				return nil
			}
			if handle == nil {
				return nil
			}
			return handle(ctx, res)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(failures...)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// phase runs fn as one pipeline phase: it checks ctx, notifies hooks and
// the observer, and returns fn's duration.
func (r *Runner) phase(ctx context.Context, name string, p observability.Phase, opts *Options, fn func() error) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	hooks := observability.Pipeline()
	hooks.OnPhaseStart(ctx, name, p)
	opts.notify(Event{Workbook: name, Phase: p})

	start := time.Now()
	err := fn()
	d := time.Since(start)

	hooks.OnPhaseComplete(ctx, name, p, d, err)
	opts.notify(Event{Workbook: name, Phase: p, Finished: true, Err: err})
	r.Logger.Debug("phase complete", "workbook", name, "phase", p, "duration", d)
	return d, err
}

// hookSink forwards diagnostics to the pipeline hooks.
type hookSink struct {
	ctx      context.Context
	workbook string
}

func (s hookSink) Report(d diag.Diagnostic) {
	observability.Pipeline().OnDiagnostic(s.ctx, s.workbook, string(d.Kind))
}
