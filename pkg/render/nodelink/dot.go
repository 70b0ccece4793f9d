package nodelink

import (
	"bytes"
	"fmt"
	"strings"
)

// ToDOT converts a scene to Graphviz DOT source. The result can be rendered
// with [Render] or saved and processed with external Graphviz tools.
func ToDOT(s Scene) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", s.RankDir)
	buf.WriteString("  tooltip=\" \";\n")
	if s.Title != "" {
		fmt.Fprintf(&buf, "  label=%s;\n  labelloc=t;\n", quote(s.Title))
	}
	buf.WriteString("  node [style=filled, fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("  edge [tooltip=\" \"];\n")
	buf.WriteString("\n")

	for _, n := range s.Nodes {
		attrs := []string{
			"label=" + quote(n.Label),
			"shape=" + quote(n.Shape),
			"fillcolor=" + quote(n.Color),
			"tooltip=" + quote(tooltip(n.Tooltip)),
		}
		if n.Focus {
			attrs = append(attrs, "penwidth=2")
		}
		fmt.Fprintf(&buf, "  %s [%s];\n", quote(n.ID), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range s.Edges {
		fmt.Fprintf(&buf, "  %s -> %s;\n", quote(e.From), quote(e.To))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// tooltip keeps Graphviz from falling back to the node label.
func tooltip(s string) string {
	if strings.TrimSpace(s) == "" {
		return " "
	}
	return s
}

var dotEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
	"\t", " ",
)

// quote renders s as a DOT double-quoted string.
func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
