package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/workbookdeps/pkg/cache"
	"github.com/matzehuels/workbookdeps/pkg/observability"
	"github.com/matzehuels/workbookdeps/pkg/render/nodelink"
)

// DiagramKind distinguishes field diagrams from sheet diagrams.
type DiagramKind string

const (
	DiagramField DiagramKind = "field"
	DiagramSheet DiagramKind = "sheet"
)

// SheetsGroup is the group (and output directory) of sheet diagrams.
const SheetsGroup = "Sheets"

// Diagram is one scene to render.
type Diagram struct {
	Kind  DiagramKind
	ID    string
	Label string
	// Group is the datasource label for field diagrams and SheetsGroup for
	// sheet diagrams.
	Group string
	Scene nodelink.Scene
}

// Diagrams lists the diagrams enabled by opts. Fields without any
// dependency in either direction get no diagram, nor do sheets without
// fields.
func Diagrams(res *Result, opts Options) ([]Diagram, error) {
	g, c := res.Graph, res.Closure
	var out []Diagram

	if opts.FieldGraphs {
		for _, id := range g.FieldIDs() {
			if !hasFieldDependencies(res, id) {
				continue
			}
			scene, err := nodelink.FieldScene(c, id, opts.Style)
			if err != nil {
				return nil, err
			}
			f, _ := g.Field(id)
			out = append(out, Diagram{
				Kind:  DiagramField,
				ID:    id,
				Label: g.Label(id),
				Group: f.Datasource.Label(),
				Scene: scene,
			})
		}
	}

	if opts.SheetGraphs {
		for _, id := range g.SheetIDs() {
			if len(c.DirectDependencies(id)) == 0 {
				continue
			}
			scene, err := nodelink.SheetScene(c, id, opts.Style)
			if err != nil {
				return nil, err
			}
			out = append(out, Diagram{
				Kind:  DiagramSheet,
				ID:    id,
				Label: g.Label(id),
				Group: SheetsGroup,
				Scene: scene,
			})
		}
	}
	return out, nil
}

func hasFieldDependencies(res *Result, id string) bool {
	if len(res.Closure.Forward(id)) > 0 {
		return true
	}
	for _, n := range res.Closure.Backward(id) {
		if !res.Graph.IsSheet(n) {
			return true
		}
	}
	return false
}

// RenderScene renders a scene in every requested format. Rendered bytes
// are cached under the hash of the scene's DOT source; the second return
// value reports whether every format came from the cache.
func (r *Runner) RenderScene(ctx context.Context, scene nodelink.Scene, formats []nodelink.Format) (map[nodelink.Format][]byte, bool, error) {
	dot := nodelink.ToDOT(scene)
	hash := cache.Hash([]byte(dot))
	hooks := observability.Cache()

	artifacts := make(map[nodelink.Format][]byte, len(formats))
	allCached := true
	for _, format := range formats {
		if format == nodelink.FormatDOT {
			artifacts[format] = []byte(dot)
			continue
		}

		key := r.Keyer.ArtifactKey(hash, cache.ArtifactKeyOpts{Format: string(format), Engine: "dot"})
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			hooks.OnCacheHit(ctx, "artifact")
			artifacts[format] = data
			continue
		} else if err != nil {
			r.Logger.Debug("cache read failed", "key", key, "err", err)
		}
		hooks.OnCacheMiss(ctx, "artifact")
		allCached = false

		data, err := nodelink.Render(ctx, dot, format)
		if err != nil {
			return nil, false, fmt.Errorf("render %s: %w", scene.Title, err)
		}
		artifacts[format] = data
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
			r.Logger.Debug("cache write failed", "key", key, "err", err)
		} else {
			hooks.OnCacheSet(ctx, "artifact", len(data))
		}
	}
	return artifacts, allCached, nil
}
