// Package registry assigns every field of a workbook a stable identity and a
// unique display label, and resolves formula references to field ids.
//
// Field ids are the qualified "[datasource].[name]" identifiers and are
// unique by construction. Display names are not: two datasources may both
// expose "Sales". The first field (in input order) keeps the plain name as
// its label; every later field with the same name is labelled
// "Sales (<suffix>)" where the suffix is a short random token.
package registry

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/formula"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

// maxSuffixAttempts bounds the retries for a colliding suffix before the
// field id is used as label.
const maxSuffixAttempts = 32

// Suffixer produces disambiguation tokens for colliding display names.
type Suffixer func() string

// RandomSuffix returns the first six hex characters of a random UUID.
func RandomSuffix() string {
	return uuid.NewString()[:6]
}

// Option configures a Registry.
type Option func(*Registry)

// WithSuffixer replaces the random suffix generator, e.g. with a counter for
// reproducible labels.
func WithSuffixer(s Suffixer) Option {
	return func(r *Registry) {
		if s != nil {
			r.suffix = s
		}
	}
}

// Registry is an immutable index of fields. It is safe for concurrent reads.
type Registry struct {
	fields  []workbook.Field
	labels  []string
	byID    map[string]int
	byName  map[string][]int // internal and display names
	bySrc   map[string][]int // datasource names and captions
	byLabel map[string]int
	suffix  Suffixer
}

// New indexes fields. It returns a GRAPH_EMPTY_FIELDS error for an empty
// list and GRAPH_DUPLICATE_FIELD when two fields share an id.
func New(fields []workbook.Field, opts ...Option) (*Registry, error) {
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyFields, "no fields to register")
	}

	r := &Registry{
		fields:  slices.Clone(fields),
		labels:  make([]string, len(fields)),
		byID:    make(map[string]int, len(fields)),
		byName:  make(map[string][]int),
		bySrc:   make(map[string][]int),
		byLabel: make(map[string]int, len(fields)),
		suffix:  RandomSuffix,
	}
	for _, opt := range opts {
		opt(r)
	}

	for i, f := range r.fields {
		id := f.ID()
		if j, dup := r.byID[id]; dup {
			return nil, errors.New(errors.ErrCodeDuplicateField, "duplicate field id %s (positions %d and %d)", id, j, i)
		}
		r.byID[id] = i
		r.byName[f.Name] = append(r.byName[f.Name], i)
		if dn := f.DisplayName(); dn != f.Name {
			r.byName[dn] = append(r.byName[dn], i)
		}
		r.bySrc[f.Datasource.Name] = appendUnique(r.bySrc[f.Datasource.Name], i)
		if c := f.Datasource.Caption; c != "" {
			r.bySrc[c] = appendUnique(r.bySrc[c], i)
		}
	}

	r.assignLabels()
	return r, nil
}

// assignLabels gives the first field of each display name the plain name,
// then suffixes the rest. Plain names are reserved first so a suffixed label
// can never shadow another field's plain name.
func (r *Registry) assignLabels() {
	var pending []int
	for i, f := range r.fields {
		name := f.DisplayName()
		if _, taken := r.byLabel[name]; taken {
			pending = append(pending, i)
			continue
		}
		r.labels[i] = name
		r.byLabel[name] = i
	}

	for _, i := range pending {
		f := r.fields[i]
		label := f.ID()
		for range maxSuffixAttempts {
			candidate := fmt.Sprintf("%s (%s)", f.DisplayName(), r.suffix())
			if _, taken := r.byLabel[candidate]; !taken {
				label = candidate
				break
			}
		}
		r.labels[i] = label
		r.byLabel[label] = i
	}
}

func appendUnique(s []int, v int) []int {
	if len(s) > 0 && s[len(s)-1] == v {
		return s
	}
	return append(s, v)
}

// Len returns the number of registered fields.
func (r *Registry) Len() int { return len(r.fields) }

// Fields returns the fields in input order.
func (r *Registry) Fields() []workbook.Field { return slices.Clone(r.fields) }

// IDs returns the field ids in input order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.fields))
	for i, f := range r.fields {
		ids[i] = f.ID()
	}
	return ids
}

// Field returns the field with the given id.
func (r *Registry) Field(id string) (workbook.Field, bool) {
	i, ok := r.byID[id]
	if !ok {
		return workbook.Field{}, false
	}
	return r.fields[i], true
}

// Label returns the unique display label for id, or "" if id is unknown.
func (r *Registry) Label(id string) string {
	if i, ok := r.byID[id]; ok {
		return r.labels[i]
	}
	return ""
}

// IDForLabel returns the id carrying the given label.
func (r *Registry) IDForLabel(label string) (string, bool) {
	i, ok := r.byLabel[label]
	if !ok {
		return "", false
	}
	return r.fields[i].ID(), true
}

// IDsForName returns the ids of all fields whose internal or display name
// equals name, in input order.
func (r *Registry) IDsForName(name string) []string {
	return r.ids(r.byName[name])
}

// Resolve maps a reference to candidate field ids.
//
// A qualified reference matches its datasource by name or caption and the
// field by internal or display name. A bare reference matches by name in any
// datasource. When any candidate lives in the datasource named by context,
// only those candidates are returned. An empty result means the reference is
// unresolved.
func (r *Registry) Resolve(ref formula.Reference, context string) []string {
	candidates := r.byName[ref.Name]
	if ref.Source != "" {
		inSource := r.bySrc[ref.Source]
		candidates = slices.DeleteFunc(slices.Clone(candidates), func(i int) bool {
			return !slices.Contains(inSource, i)
		})
	}
	if context != "" {
		local := slices.DeleteFunc(slices.Clone(candidates), func(i int) bool {
			return r.fields[i].Datasource.Name != context
		})
		if len(local) > 0 {
			candidates = local
		}
	}
	return r.ids(candidates)
}

func (r *Registry) ids(idx []int) []string {
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = r.fields[j].ID()
	}
	return out
}
