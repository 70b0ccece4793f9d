package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	goio "io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/io"
	"github.com/matzehuels/workbookdeps/pkg/observability"
)

// Output layout below the output directory:
//
//	<workbook> Files/
//	    Fields/<workbook>.xlsx
//	    Fields/report.json
//	    Graphs/<datasource>/<field>.svg|png|dot
//	    Graphs/Sheets/<sheet>.svg|png|dot
const (
	filesSuffix = " Files"
	fieldsDir   = "Fields"
	graphsDir   = "Graphs"
	reportJSON  = "report.json"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SafeName strips everything but ASCII letters and digits from s so it can
// be used as a file name on every platform. An all-symbol name becomes "_".
func SafeName(s string) string {
	if out := unsafeChars.ReplaceAllString(s, ""); out != "" {
		return out
	}
	return "_"
}

// OutputDir returns the directory receiving the outputs of one workbook.
func OutputDir(out, workbook string) string {
	return filepath.Join(out, workbook+filesSuffix)
}

// Written describes the files produced by [Runner.Write].
type Written struct {
	Dir         string
	Spreadsheet string
	JSON        string
	// Diagrams counts rendered diagrams; Files counts diagram files.
	Diagrams  int
	Files     int
	CacheHits int
}

// Write renders the diagrams of res and writes them together with the
// spreadsheet and JSON report below [OutputDir](out, res.Name).
func (r *Runner) Write(ctx context.Context, res *Result, out string, opts Options) (*Written, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := errors.ValidateOutputDir(out); err != nil {
		return nil, err
	}

	w := &Written{Dir: OutputDir(out, res.Name)}
	w.Spreadsheet = filepath.Join(w.Dir, fieldsDir, res.Name+".xlsx")
	w.JSON = filepath.Join(w.Dir, fieldsDir, reportJSON)

	var err error
	res.Stats.RenderTime, err = r.phase(ctx, res.Name, observability.PhaseRender, &opts, func() error {
		return r.writeDiagrams(ctx, res, w, opts)
	})
	if err != nil {
		return nil, err
	}

	res.Stats.WriteTime, err = r.phase(ctx, res.Name, observability.PhaseWrite, &opts, func() error {
		if err := os.MkdirAll(filepath.Dir(w.Spreadsheet), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := io.ExportXLSX(res.Report, w.Spreadsheet); err != nil {
			return err
		}
		return io.ExportJSON(res.Report, w.JSON)
	})
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	r.Logger.Info("wrote outputs",
		"workbook", res.Name,
		"dir", w.Dir,
		"diagrams", w.Diagrams,
		"cache_hits", w.CacheHits,
		"duration", res.Stats.RenderTime+res.Stats.WriteTime)
	return w, nil
}

func (r *Runner) writeDiagrams(ctx context.Context, res *Result, w *Written, opts Options) error {
	if !opts.renders() {
		return nil
	}
	diagrams, err := Diagrams(res, opts)
	if err != nil {
		return err
	}

	used := make(map[string]bool)
	start := time.Now()
	for i, d := range diagrams {
		if err := ctx.Err(); err != nil {
			return err
		}
		artifacts, cached, err := r.RenderScene(ctx, d.Scene, opts.Formats)
		if err != nil {
			return err
		}

		dir := filepath.Join(w.Dir, graphsDir, SafeName(d.Group))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create graph dir: %w", err)
		}
		base := uniqueName(used, filepath.Join(dir, SafeName(d.Label)))
		for _, format := range opts.Formats {
			path := base + "." + string(format)
			if err := os.WriteFile(path, artifacts[format], 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			w.Files++
		}
		w.Diagrams++
		if cached {
			w.CacheHits++
		}
		opts.notify(Event{Workbook: res.Name, Phase: observability.PhaseRender, Done: i + 1, Total: len(diagrams)})
	}
	r.Logger.Debug("rendered diagrams", "workbook", res.Name, "count", len(diagrams), "duration", time.Since(start))
	return nil
}

// uniqueName returns base, or base_2, base_3, ... when labels that differ
// only in stripped characters map to the same file.
func uniqueName(used map[string]bool, base string) string {
	name := base
	for n := 2; used[name]; n++ {
		name = base + "_" + strconv.Itoa(n)
	}
	used[name] = true
	return name
}

// Archive writes dir as a zip archive to w. Entry names keep dir's base
// name as their top-level folder.
func Archive(dir string, w goio.Writer) error {
	zw := zip.NewWriter(w)
	parent := filepath.Dir(dir)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = goio.Copy(entry, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("archive %s: %w", dir, err)
	}
	return zw.Close()
}
