package depgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/workbookdeps/pkg/dag"
	"github.com/matzehuels/workbookdeps/pkg/diag"
	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/formula"
	"github.com/matzehuels/workbookdeps/pkg/registry"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

// Options configures Build.
type Options struct {
	// Suffixer generates label suffixes for colliding field names.
	// Defaults to registry.RandomSuffix.
	Suffixer registry.Suffixer

	// Sink additionally receives every diagnostic as it is produced.
	Sink diag.Sink
}

// FromWorkbook builds the graph of a loaded workbook.
func FromWorkbook(wb *workbook.Workbook, opts Options) (*Graph, error) {
	return Build(wb.Fields, wb.Sheets, opts)
}

// Build constructs the dependency graph of fields and sheets.
func Build(fields []workbook.Field, sheets []workbook.Sheet, opts Options) (*Graph, error) {
	reg, err := registry.New(fields, registry.WithSuffixer(opts.Suffixer))
	if err != nil {
		return nil, err
	}

	sorted := slices.Clone(sheets)
	slices.SortStableFunc(sorted, func(a, b workbook.Sheet) int { return strings.Compare(a.Name, b.Name) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, errors.New(errors.ErrCodeDuplicateSheet, "duplicate sheet %q", sorted[i].Name)
		}
	}

	b := &builder{
		g: &Graph{
			dag:    dag.New(nil),
			reg:    reg,
			sheets: make(map[string]workbook.Sheet, len(sorted)),
			fields: make(map[string]workbook.Field, reg.Len()),
		},
		sink: opts.Sink,
	}
	if err := b.addFields(); err != nil {
		return nil, err
	}
	if err := b.addSheets(sorted); err != nil {
		return nil, err
	}
	return b.g, nil
}

type builder struct {
	g    *Graph
	sink diag.Sink
}

func (b *builder) report(d diag.Diagnostic) {
	b.g.diags = append(b.g.diags, d)
	if b.sink != nil {
		b.sink.Report(d)
	}
}

func (b *builder) addFields() error {
	reg := b.g.reg
	for _, f := range reg.Fields() {
		id := f.ID()
		b.g.fields[id] = f
		err := b.g.dag.AddNode(dag.Node{
			ID:    id,
			Label: reg.Label(id),
			Kind:  dag.NodeKindField,
			Meta: dag.Metadata{
				MetaKind:       f.Kind(),
				MetaCategory:   f.Category(),
				MetaDatasource: f.Datasource.Label(),
			},
		})
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "add field %s", id)
		}
	}

	for _, f := range reg.Fields() {
		if strings.TrimSpace(f.Calculation) == "" {
			continue
		}
		id := f.ID()
		res := formula.Scan(f.Calculation)
		for _, iss := range res.Issues {
			b.report(issueDiagnostic(id, iss))
		}
		for _, ref := range res.References {
			targets := reg.Resolve(ref, f.Datasource.Name)
			if len(targets) == 0 {
				b.report(diag.Diagnostic{
					Kind:    diag.KindUnresolvedReference,
					FieldID: id,
					Message: fmt.Sprintf("reference %s matches no field", ref),
				})
				continue
			}
			for _, to := range targets {
				if to == id {
					b.report(diag.Diagnostic{
						Kind:    diag.KindSelfReference,
						FieldID: id,
						Message: fmt.Sprintf("calculation references its own field via %s", ref),
					})
					continue
				}
				if _, err := b.g.dag.AddEdge(dag.Edge{From: id, To: to}); err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "add edge %s -> %s", id, to)
				}
			}
		}
	}
	return nil
}

func (b *builder) addSheets(sheets []workbook.Sheet) error {
	for _, s := range sheets {
		id := SheetID(s.Name)
		label := s.Name
		if _, clash := b.g.reg.IDForLabel(label); clash {
			label += " (sheet)"
		}
		b.g.sheets[id] = s
		if err := b.g.dag.AddNode(dag.Node{
			ID:    id,
			Label: label,
			Kind:  dag.NodeKindSheet,
			Meta:  dag.Metadata{MetaKind: workbook.KindSheet},
		}); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "add sheet %s", s.Name)
		}

		refs := slices.Clone(s.Fields)
		refs = append(refs, formula.CaptionReferences(s.Title)...)
		for _, ref := range refs {
			targets := b.g.reg.Resolve(ref, "")
			if len(targets) == 0 {
				b.report(diag.Diagnostic{
					Kind:    diag.KindUnresolvedReference,
					FieldID: id,
					Message: fmt.Sprintf("sheet %q uses %s which matches no field", s.Name, ref),
				})
				continue
			}
			for _, to := range targets {
				if _, err := b.g.dag.AddEdge(dag.Edge{From: id, To: to}); err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "add edge %s -> %s", id, to)
				}
			}
		}
	}
	return nil
}

func issueDiagnostic(id string, iss formula.Issue) diag.Diagnostic {
	kind := diag.KindUnbalancedBracket
	if iss.Kind == formula.UnterminatedLiteral {
		kind = diag.KindUnterminatedLiteral
	}
	return diag.Diagnostic{
		Kind:    kind,
		FieldID: id,
		Message: fmt.Sprintf("%s at offset %d, dropped %q", iss.Kind, iss.Offset, iss.Fragment),
	}
}
