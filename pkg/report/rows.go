package report

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/matzehuels/workbookdeps/pkg/closure"
	"github.com/matzehuels/workbookdeps/pkg/depgraph"
)

// Row is one dependency: Target relies on Source, Level hops apart.
type Row struct {
	SourceLabel       string `json:"source_label"`
	TargetLabel       string `json:"target_label"`
	SourceID          string `json:"source_id"`
	TargetID          string `json:"target_id"`
	Level             int    `json:"level"`
	Category          string `json:"category"` // kind of the target
	WorksheetsOverlap int    `json:"worksheets_overlap_count"`
}

// Enumerate emits dependency rows for every node of the closure's reduced
// graph. The result contains duplicates; see [Dedup].
func Enumerate(c *closure.Closure) []Row {
	e := &enumerator{c: c, g: c.Graph(), sheets: make(map[string][]string)}
	for _, root := range c.Order() {
		e.walk(root, root, 0, c.Reduced().Children, true, make(map[string]int))
		e.walk(root, root, 0, c.Reduced().Parents, false, make(map[string]int))
	}
	return e.rows
}

type enumerator struct {
	c      *closure.Closure
	g      *depgraph.Graph
	sheets map[string][]string
	rows   []Row
}

// walk relaxes chain lengths from root along next. A node is expanded again
// only when reached through a shorter chain.
func (e *enumerator) walk(root, node string, depth int, next func(string) []string, forward bool, best map[string]int) {
	for _, n := range next(node) {
		d := depth + 1
		if b, seen := best[n]; seen && b <= d {
			continue
		}
		best[n] = d
		if forward {
			e.rows = append(e.rows, e.row(n, root, d))
		} else {
			e.rows = append(e.rows, e.row(root, n, d))
		}
		e.walk(root, n, d, next, forward, best)
	}
}

func (e *enumerator) row(source, target string, level int) Row {
	return Row{
		SourceLabel:       e.g.Label(source),
		TargetLabel:       e.g.Label(target),
		SourceID:          source,
		TargetID:          target,
		Level:             level,
		Category:          string(e.g.Kind(target)),
		WorksheetsOverlap: overlap(e.worksheets(source), e.worksheets(target)),
	}
}

func (e *enumerator) worksheets(id string) []string {
	ws, ok := e.sheets[id]
	if !ok {
		ws = e.g.Worksheets(id)
		e.sheets[id] = ws
	}
	return ws
}

// overlap counts common elements of two sorted slices.
func overlap(a, b []string) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch strings.Compare(a[i], b[j]) {
		case 0:
			n++
			i++
			j++
		case -1:
			i++
		default:
			j++
		}
	}
	return n
}

// Canonical normalizes a label for comparison.
func Canonical(label string) string {
	s := strings.Join(strings.Fields(norm.NFC.String(label)), " ")
	for len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

type rowKey struct{ source, target string }

// Dedup keeps one row per canonical (source, target) label pair: the one
// with the fewest hops, ties broken by source id, target id and category.
// The result is sorted by canonical source then target label. Dedup is
// idempotent and does not depend on input order.
func Dedup(rows []Row) []Row {
	best := make(map[rowKey]Row, len(rows))
	for _, r := range rows {
		k := rowKey{Canonical(r.SourceLabel), Canonical(r.TargetLabel)}
		if cur, ok := best[k]; !ok || better(r, cur) {
			best[k] = r
		}
	}

	keys := make([]rowKey, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b rowKey) int {
		return cmp.Or(cmp.Compare(a.source, b.source), cmp.Compare(a.target, b.target))
	})

	out := make([]Row, len(keys))
	for i, k := range keys {
		out[i] = best[k]
	}
	return out
}

func better(a, b Row) bool {
	return cmp.Or(
		cmp.Compare(a.Level, b.Level),
		cmp.Compare(a.SourceID, b.SourceID),
		cmp.Compare(a.TargetID, b.TargetID),
		cmp.Compare(a.Category, b.Category),
	) < 0
}

// DependencyRows returns the deduplicated dependency rows of a closure.
func DependencyRows(c *closure.Closure) []Row {
	return Dedup(Enumerate(c))
}
