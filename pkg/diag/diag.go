// Package diag collects data-quality findings produced while analyzing a
// workbook.
//
// Unresolved references, self references, malformed formula text and
// dependency cycles never abort an analysis. Producers report them as
// [Diagnostic] values to a [Sink]; callers decide whether to log them,
// attach them to the report, or both.
package diag

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Kind classifies a diagnostic.
type Kind string

const (
	// KindUnresolvedReference marks a formula or sheet reference that
	// matches no known field (deleted or external field).
	KindUnresolvedReference Kind = "unresolved_reference"
	// KindSelfReference marks a formula citing its own field.
	KindSelfReference Kind = "self_reference"
	// KindUnbalancedBracket marks an unterminated "[" in formula text.
	KindUnbalancedBracket Kind = "unbalanced_bracket"
	// KindUnterminatedLiteral marks an unterminated string literal.
	KindUnterminatedLiteral Kind = "unterminated_literal"
	// KindCycle marks a dependency cycle between fields.
	KindCycle Kind = "cycle"
)

// Diagnostic is one warning about one field (or sheet).
type Diagnostic struct {
	Kind    Kind     `json:"kind"`
	FieldID string   `json:"field_id"`
	Message string   `json:"message"`
	Related []string `json:"related,omitempty"` // cycle members, candidate ids, ...
}

// String formats the diagnostic for logs.
func (d Diagnostic) String() string {
	if len(d.Related) == 0 {
		return fmt.Sprintf("%s %s: %s", d.Kind, d.FieldID, d.Message)
	}
	return fmt.Sprintf("%s %s: %s [%s]", d.Kind, d.FieldID, d.Message, strings.Join(d.Related, ", "))
}

// Sink accepts diagnostics. Implementations must not block and must not
// influence the producer's control flow.
type Sink interface {
	Report(Diagnostic)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Diagnostic) {}

// Collector is a Sink that keeps every diagnostic in memory.
// It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Report appends d.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, d)
}

// Diagnostics returns a copy of the collected diagnostics in report order.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Count returns the number of collected diagnostics of the given kind.
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// LogSink writes each diagnostic as a warning line.
type LogSink struct {
	Logger *log.Logger
}

// Report logs d at warn level.
func (s LogSink) Report(d Diagnostic) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	kv := []any{"kind", d.Kind, "field", d.FieldID}
	if len(d.Related) > 0 {
		kv = append(kv, "related", strings.Join(d.Related, ", "))
	}
	logger.Warn(d.Message, kv...)
}

// Multi fans a diagnostic out to several sinks. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Report(d Diagnostic) {
	for _, s := range m {
		s.Report(d)
	}
}

// Sort orders diagnostics by field, kind and message so reports are stable.
func Sort(ds []Diagnostic) {
	slices.SortStableFunc(ds, func(a, b Diagnostic) int {
		return cmp.Or(
			cmp.Compare(a.FieldID, b.FieldID),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Message, b.Message),
		)
	})
}
