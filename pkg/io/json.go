package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteJSON encodes a report as indented JSON.
func WriteJSON(r *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a report to a JSON file at path.
func ExportJSON(r *Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(r, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadJSON decodes a report written by [WriteJSON] and checks that graph
// edges connect known nodes. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if rep.Workbook == "" {
		return nil, fmt.Errorf("decode: missing workbook name")
	}
	for _, e := range rep.Graph.Edges {
		if _, ok := rep.Graph.Node(e.From); !ok {
			return nil, fmt.Errorf("edge %s->%s: unknown node %s", e.From, e.To, e.From)
		}
		if _, ok := rep.Graph.Node(e.To); !ok {
			return nil, fmt.Errorf("edge %s->%s: unknown node %s", e.From, e.To, e.To)
		}
	}
	return &rep, nil
}

// ImportJSON reads a report from the JSON file at path.
func ImportJSON(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
