package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/workbookdeps/pkg/buildinfo"
	"github.com/matzehuels/workbookdeps/pkg/config"
	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/pipeline"
)

// analyzeOpts holds the command-line flags for the analyze command. Flags
// only override the loaded config when set explicitly.
type analyzeOpts struct {
	output      string
	formats     string
	fieldGraphs bool
	sheetGraphs bool
	workers     int
	noCache     bool
	zip         bool
	interactive bool
}

// apply copies explicitly set flags onto cfg.
func (o *analyzeOpts) apply(cfg *config.Config, flags *pflag.FlagSet) error {
	if flags.Changed("output") {
		cfg.Output = o.output
	}
	if flags.Changed("format") {
		cfg.Formats = config.SplitList(o.formats)
	}
	if flags.Changed("field-graphs") {
		cfg.FieldGraphs = o.fieldGraphs
	}
	if flags.Changed("sheet-graphs") {
		cfg.SheetGraphs = o.sheetGraphs
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	return cfg.Validate()
}

// analyzeCommand creates the analyze command.
func (c *CLI) analyzeCommand() *cobra.Command {
	var opts analyzeOpts

	cmd := &cobra.Command{
		Use:   "analyze <workbook|dir>...",
		Short: "Write dependency spreadsheets, reports and diagrams for workbooks",
		Long: `Analyze one or more Tableau workbooks. Directories are searched recursively
for .twb and .twbx files. For every workbook a "<name> Files" folder is
written to the output directory containing:

  Fields/<name>.xlsx        fields, deduplicated dependencies, diagnostics
  Fields/report.json        the same data plus the full dependency graph
  Graphs/<datasource>/...   one diagram per field with dependencies
  Graphs/Sheets/...         one diagram per worksheet`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(&cfg, cmd.Flags()); err != nil {
				return err
			}
			return c.runAnalyze(cmd.Context(), args, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", ".", "output directory")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "svg,png", "diagram format(s): svg, png, dot (comma-separated, empty for none)")
	cmd.Flags().BoolVar(&opts.fieldGraphs, "field-graphs", true, "write one diagram per field")
	cmd.Flags().BoolVar(&opts.sheetGraphs, "sheet-graphs", true, "write one diagram per worksheet")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "workbooks analyzed concurrently (0 = number of CPUs)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the rendered diagram cache")
	cmd.Flags().BoolVar(&opts.zip, "zip", false, `also write "<name> Files.zip" next to each output folder`)
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pick the workbooks to analyze from a list")

	return cmd
}

// workbookSummary is what gets printed for one analyzed workbook.
type workbookSummary struct {
	res     *pipeline.Result
	written *pipeline.Written
	archive string
}

func (c *CLI) runAnalyze(ctx context.Context, args []string, cfg config.Config, opts analyzeOpts) error {
	paths, err := collectWorkbooks(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no .twb or .twbx workbooks found in %s", strings.Join(args, ", "))
	}
	if opts.interactive && len(paths) > 1 {
		if paths, err = pickWorkbooks(paths); err != nil {
			return err
		}
		if len(paths) == 0 {
			printInfo("Nothing selected")
			return nil
		}
	}

	popts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	popts.Version = buildinfo.Version

	runner, err := c.newRunner(cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Analyzing %d workbook(s)", len(paths)))
	tracker := newTracker(len(paths), spinner)
	popts.Observer = tracker.observe
	spinner.Start()

	var (
		mu        sync.Mutex
		summaries []workbookSummary
	)
	err = runner.AnalyzeAll(ctx, paths, popts, func(ctx context.Context, res *pipeline.Result) error {
		written, err := runner.Write(ctx, res, cfg.Output, popts)
		if err != nil {
			return fmt.Errorf("%s: %w", res.Name, err)
		}
		s := workbookSummary{res: res, written: written}
		if opts.zip {
			if s.archive, err = writeArchive(written.Dir); err != nil {
				return fmt.Errorf("%s: %w", res.Name, err)
			}
		}
		mu.Lock()
		summaries = append(summaries, s)
		mu.Unlock()
		return nil
	})
	spinner.Stop()

	slices.SortFunc(summaries, func(a, b workbookSummary) int { return strings.Compare(a.res.Name, b.res.Name) })
	for _, s := range summaries {
		printWorkbook(s)
	}
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Analyzed %d workbook(s)", len(summaries)))
	return nil
}

func printWorkbook(s workbookSummary) {
	printSuccess("%s", s.res.Name)
	printStats(s.res.Stats, s.written)
	if n := s.res.Stats.Diagnostics; n > 0 {
		printWarning("%d diagnostic(s), see the Diagnostics sheet", n)
	}
	printFile(s.written.Dir)
	if s.archive != "" {
		printFile(s.archive)
	}
}

// writeArchive zips dir into "<dir>.zip".
func writeArchive(dir string) (string, error) {
	path := dir + ".zip"
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := pipeline.Archive(dir, f); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// collectWorkbooks expands directories into the workbooks they contain.
// Files named explicitly must be workbooks; the result is sorted and free of
// duplicates.
func collectWorkbooks(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New(errors.ErrCodeFileNotFound, "%s does not exist", arg)
			}
			return nil, err
		}
		if !info.IsDir() {
			if err := errors.ValidateWorkbookFilename(filepath.Base(arg)); err != nil {
				return nil, err
			}
			paths = append(paths, filepath.Clean(arg))
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != arg && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			// "~$" prefixes mark lock files of open workbooks.
			if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
				return nil
			}
			if errors.HasWorkbookExtension(name) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

// tracker folds progress events of concurrent analyses into one spinner
// message.
type tracker struct {
	mu      sync.Mutex
	total   int
	done    int
	spinner *Spinner
}

func newTracker(total int, s *Spinner) *tracker {
	return &tracker{total: total, spinner: s}
}

func (t *tracker) observe(e pipeline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := e.Percent()
	if p == 100 || e.Err != nil {
		t.done++
	}
	t.spinner.SetMessage(t.message(e.Workbook, p))
}

func (t *tracker) message(current string, p int) string {
	return fmt.Sprintf("Analyzing %d/%d · %s %d%%", min(t.done+1, t.total), t.total, filepath.Base(current), p)
}
