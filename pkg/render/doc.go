// Package render groups the diagram renderers.
//
// [nodelink] turns dependency scenes into Graphviz DOT and renders them to
// SVG or PNG with the embedded Graphviz of go-graphviz. A scene is either
// the whole workbook graph or one field or sheet in context: the focus node,
// everything it depends on and everything depending on it.
//
// [nodelink]: github.com/matzehuels/workbookdeps/pkg/render/nodelink
package render
