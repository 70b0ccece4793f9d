package formula

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Reference is one field reference found in formula or caption text.
type Reference struct {
	Source string // Qualifying data source, empty for bare references
	Name   string // Field name with escapes resolved
}

// String renders the reference in bracket notation, re-escaping "]".
func (r Reference) String() string {
	if r.Source == "" {
		return bracket(r.Name)
	}
	return bracket(r.Source) + "." + bracket(r.Name)
}

func bracket(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

// IssueKind classifies a recoverable lexical problem.
type IssueKind int

const (
	// UnbalancedBracket reports a "[" without a matching "]".
	UnbalancedBracket IssueKind = iota
	// UnterminatedLiteral reports a string literal without a closing quote.
	UnterminatedLiteral
)

func (k IssueKind) String() string {
	if k == UnterminatedLiteral {
		return "unterminated string literal"
	}
	return "unbalanced bracket"
}

// Issue is a recoverable lexical problem. Offset is the byte offset of the
// opening delimiter; Fragment is the dropped text.
type Issue struct {
	Kind     IssueKind
	Offset   int
	Fragment string
}

// Result is the outcome of scanning one text.
type Result struct {
	// References in first-occurrence order, without duplicates.
	References []Reference
	// Issues found while scanning; empty for well-formed text.
	Issues []Issue
	// HasLOD reports a "{" outside literals and comments.
	HasLOD bool
}

// Names returns the distinct reference names, sorted.
func (r Result) Names() []string {
	names := make([]string, 0, len(r.References))
	for _, ref := range r.References {
		names = append(names, ref.Name)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

type state int

const (
	stateNormal state = iota
	stateReference
	stateLiteral
	stateComment
)

// scanner is the tokenizer state machine.
type scanner struct {
	src   string
	pos   int
	state state

	quote   rune            // active literal delimiter
	start   int             // offset of the opening delimiter
	buf     strings.Builder // current reference name
	pending *Reference      // closed reference that may still get qualified
	qualify string          // qualifier for the reference being read
	span    [2]int          // byte range of the pending reference, qualifier included
	seen    map[Reference]bool
	result  Result

	// onRef, when set, observes every reference occurrence with its span,
	// duplicates included.
	onRef func(ref Reference, start, end int)
}

// Scan tokenizes text and returns the field references it contains.
func Scan(text string) Result {
	s := &scanner{src: text, seen: make(map[Reference]bool)}
	s.run()
	return s.result
}

// Names is shorthand for Scan(text).Names().
func Names(text string) []string {
	return Scan(text).Names()
}

func (s *scanner) next() (rune, bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	r, w := utf8.DecodeRuneInString(s.src[s.pos:])
	s.pos += w
	return r, true
}

func (s *scanner) peek() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.pos:])
	return r
}

func (s *scanner) run() {
	for {
		r, ok := s.next()
		if !ok {
			break
		}
		switch s.state {
		case stateNormal:
			s.normal(r)
		case stateReference:
			s.reference(r)
		case stateLiteral:
			s.literal(r)
		case stateComment:
			if r == '\n' {
				s.state = stateNormal
			}
		}
	}

	switch s.state {
	case stateReference:
		s.result.Issues = append(s.result.Issues, Issue{
			Kind:     UnbalancedBracket,
			Offset:   s.start,
			Fragment: s.src[s.start:],
		})
		s.qualify = ""
	case stateLiteral:
		s.result.Issues = append(s.result.Issues, Issue{
			Kind:     UnterminatedLiteral,
			Offset:   s.start,
			Fragment: s.src[s.start:],
		})
	}
	s.flush()
}

func (s *scanner) normal(r rune) {
	if s.pending != nil {
		// "[a].[b]": the dot directly after a reference and directly before
		// a "[" qualifies the next reference.
		if r == '.' && s.peek() == '[' && s.pending.Source == "" {
			s.qualify = s.pending.Name
			s.pending = nil
			return
		}
		s.flush()
	}

	switch r {
	case '[':
		s.state = stateReference
		s.start = s.pos - 1
		if s.qualify == "" {
			s.span[0] = s.start
		}
		s.buf.Reset()
	case '"', '\'':
		s.state = stateLiteral
		s.quote = r
		s.start = s.pos - 1
	case '/':
		if s.peek() == '/' {
			s.state = stateComment
		}
	case '\\':
		// An escaped character outside a reference is plain text.
		s.next()
	case '{':
		s.result.HasLOD = true
	}
}

func (s *scanner) reference(r rune) {
	switch r {
	case '\\':
		if esc, ok := s.next(); ok {
			s.buf.WriteRune(esc)
		}
	case ']':
		if s.peek() == ']' {
			s.next()
			s.buf.WriteRune(']')
			return
		}
		s.pending = &Reference{Source: s.qualify, Name: s.buf.String()}
		s.span[1] = s.pos
		s.qualify = ""
		s.state = stateNormal
	default:
		s.buf.WriteRune(r)
	}
}

func (s *scanner) literal(r rune) {
	if r != s.quote {
		return
	}
	if s.peek() == s.quote {
		s.next()
		return
	}
	s.state = stateNormal
}

// flush emits the pending reference, if any.
func (s *scanner) flush() {
	if s.pending == nil {
		return
	}
	ref := *s.pending
	s.pending = nil
	if ref.Name == "" {
		return
	}
	if s.onRef != nil {
		s.onRef(ref, s.span[0], s.span[1])
	}
	if s.seen[ref] {
		return
	}
	s.seen[ref] = true
	s.result.References = append(s.result.References, ref)
}

// Rewrite replaces every reference occurrence in text with the string
// returned by fn. Occurrences for which fn returns false are kept verbatim,
// as is all text outside references.
func Rewrite(text string, fn func(Reference) (string, bool)) string {
	var b strings.Builder
	last := 0
	s := &scanner{src: text, seen: make(map[Reference]bool)}
	s.onRef = func(ref Reference, start, end int) {
		repl, ok := fn(ref)
		if !ok {
			return
		}
		b.WriteString(text[last:start])
		b.WriteString(repl)
		last = end
	}
	s.run()
	b.WriteString(text[last:])
	return b.String()
}
