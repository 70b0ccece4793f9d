package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/workbookdeps/pkg/depgraph"
	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/io"
	"github.com/matzehuels/workbookdeps/pkg/pipeline"
	"github.com/matzehuels/workbookdeps/pkg/render/nodelink"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output  string // output file, base path for several formats, or "-" for stdout
	formats string // comma-separated diagram formats
	field   string // field label, caption or [datasource].[name] id
	sheet   string // worksheet name
	noCache bool
}

// renderCommand creates the render command for a single diagram.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <workbook|report.json>",
		Short: "Render one field, sheet or whole-workbook diagram",
		Long: `Render a single dependency diagram.

With --field or --sheet the diagram shows that field or sheet together with
everything it depends on and everything depending on it. Without either
flag the whole workbook graph is rendered. A report.json written by
"analyze" can be rendered instead of a workbook; it only holds the whole
graph.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.field != "" && opts.sheet != "" {
				return errors.New(errors.ErrCodeInvalidInput, "--field and --sheet are mutually exclusive")
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output file, base path for several formats, or "-" for stdout`)
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "svg", "diagram format(s): svg, png, dot (comma-separated)")
	cmd.Flags().StringVar(&opts.field, "field", "", "render the diagram of this field")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "render the diagram of this worksheet")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the rendered diagram cache")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, opts renderOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cfg.Formats = splitFormats(opts.formats)
	formats, err := cfg.DiagramFormats()
	if err != nil {
		return err
	}
	if len(formats) == 0 {
		return errors.New(errors.ErrCodeInvalidFormat, "no diagram format given")
	}
	if opts.output == "-" && len(formats) > 1 {
		return errors.New(errors.ErrCodeInvalidInput, "stdout output takes a single format")
	}

	runner, err := c.newRunner(cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	var scene nodelink.Scene
	if strings.EqualFold(filepath.Ext(input), ".json") {
		scene, err = reportScene(input, opts)
	} else {
		scene, err = c.workbookScene(ctx, runner, input, opts, cfg.Style)
	}
	if err != nil {
		return err
	}
	c.Logger.Infof("Rendering %q: %d nodes, %d edges", scene.Title, len(scene.Nodes), len(scene.Edges))

	out, cached, err := runner.RenderScene(ctx, scene, formats)
	if err != nil {
		return err
	}

	if opts.output == "-" {
		_, err := os.Stdout.Write(out[formats[0]])
		return err
	}
	base := basePath(opts.output, scene.Title)
	for _, f := range formats {
		path := base + "." + string(f)
		if len(formats) == 1 && opts.output != "" && filepath.Ext(opts.output) != "" {
			path = opts.output
		}
		if err := os.WriteFile(path, out[f], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	if cached {
		printDetail("from cache")
	}
	return nil
}

// reportScene loads the whole-graph scene of a JSON report.
func reportScene(path string, opts renderOpts) (nodelink.Scene, error) {
	if opts.field != "" || opts.sheet != "" {
		return nodelink.Scene{}, errors.New(errors.ErrCodeUnsupported,
			"--field and --sheet need the workbook; a report only holds the whole graph")
	}
	r, err := io.ImportJSON(path)
	if err != nil {
		return nodelink.Scene{}, err
	}
	if r.Graph.Title == "" {
		r.Graph.Title = r.Workbook
	}
	return r.Graph, nil
}

// workbookScene analyzes a workbook and returns the requested scene.
func (c *CLI) workbookScene(ctx context.Context, runner *pipeline.Runner, path string, opts renderOpts, style nodelink.Style) (nodelink.Scene, error) {
	popts := pipeline.DefaultOptions()
	popts.Style = style
	res, err := runner.AnalyzeFile(ctx, path, popts)
	if err != nil {
		return nodelink.Scene{}, err
	}

	switch {
	case opts.field != "":
		id, err := findField(res.Graph, opts.field)
		if err != nil {
			return nodelink.Scene{}, err
		}
		return nodelink.FieldScene(res.Closure, id, style)
	case opts.sheet != "":
		id := depgraph.SheetID(opts.sheet)
		if !res.Graph.IsSheet(id) {
			return nodelink.Scene{}, errors.New(errors.ErrCodeNotFound, "workbook %s has no worksheet %q", res.Name, opts.sheet)
		}
		return nodelink.SheetScene(res.Closure, id, style)
	}
	return res.Report.Graph, nil
}

// findField resolves name to a field id. The qualified id and the unique
// display label match exactly; a caption or internal name must be
// unambiguous.
func findField(g *depgraph.Graph, name string) (string, error) {
	ids := g.FieldIDs()
	if slices.Contains(ids, name) {
		return name, nil
	}
	for _, id := range ids {
		if g.Label(id) == name {
			return id, nil
		}
	}

	var matches []string
	for _, id := range ids {
		f, _ := g.Field(id)
		if f.DisplayName() == name || f.Name == name {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.New(errors.ErrCodeNotFound, "no field named %q", name)
	case 1:
		return matches[0], nil
	}
	labels := make([]string, len(matches))
	for i, id := range matches {
		labels[i] = g.Label(id)
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "field name %q is ambiguous, use one of: %s", name, strings.Join(labels, ", "))
}

// basePath derives the output path without extension. An empty output
// uses the diagram title; a known format extension is stripped.
func basePath(output, title string) string {
	if output == "" {
		return pipeline.SafeName(title)
	}
	ext := filepath.Ext(output)
	if _, err := nodelink.ParseFormat(strings.TrimPrefix(ext, ".")); err == nil {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// splitFormats parses the --format flag. Empty means svg.
func splitFormats(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{string(nodelink.FormatSVG)}
	}
	return strings.Split(s, ",")
}
