// Package nodelink exports workbook dependency graphs as node-link diagrams.
//
// # Overview
//
// Export happens in two steps. A [Scene] is the renderer-agnostic
// description: nodes annotated with label, kind, shape, color and tooltip,
// and edges drawn from dependent to dependency. [ToDOT] turns a scene into
// Graphviz DOT source, which [Render] lays out and rasterizes in-process.
//
//	scene := nodelink.Export(g, nodelink.DefaultStyle())
//	svg, err := nodelink.Render(ctx, nodelink.ToDOT(scene), nodelink.FormatSVG)
//
// # Scenes
//
//   - [Export]: every field and sheet of a graph.
//   - [FieldScene]: one field with everything it relies on and everything
//     relying on it, sheets excluded, the field itself highlighted.
//   - [SheetScene]: one sheet, the fields it shows and the dependencies
//     among them. The sheet only links to fields no other field on the
//     sheet already relies on.
//
// # Style
//
// [Style] maps each [workbook.Kind] to a Graphviz shape and fill color.
// [DefaultStyle] uses parallelograms for parameters, green boxes for raw
// fields, orange ovals for calculations, red ovals for LOD calculations and
// grey boxes for sheets.
//
// # Dependencies
//
// Rendering uses [github.com/goccy/go-graphviz], which embeds Graphviz as
// WebAssembly; no system installation is needed.
package nodelink
