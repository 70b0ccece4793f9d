package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/workbookdeps/pkg/config"
	"github.com/matzehuels/workbookdeps/pkg/depgraph"
	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/workbook"
)

func salesGraph(t *testing.T) *depgraph.Graph {
	t.Helper()
	wb, err := workbook.Read(strings.NewReader(salesTWB), "Sales.twb")
	require.NoError(t, err)
	g, err := depgraph.FromWorkbook(wb, depgraph.Options{})
	require.NoError(t, err)
	return g
}

func TestFindField(t *testing.T) {
	g := salesGraph(t)

	tests := []struct {
		name    string
		want    string
		wantErr errors.Code
	}{
		{"[federated.1].[Calculation_1]", "[federated.1].[Calculation_1]", ""},
		{"Profit Ratio", "[federated.1].[Calculation_1]", ""},
		{"Calculation_1", "[federated.1].[Calculation_1]", ""},
		{"Sales", "[federated.1].[Sales]", ""},
		{"Margin", "", errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		got, err := findField(g, tt.name)
		if tt.wantErr != "" {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("findField(%q) error = %v, want %s", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("findField(%q) = %q, %v, want %q", tt.name, got, err, tt.want)
		}
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, title, want string
	}{
		{"", "Profit Ratio", "ProfitRatio"},
		{"out/diagram.svg", "x", "out/diagram"},
		{"out/diagram.png", "x", "out/diagram"},
		{"out/diagram", "x", "out/diagram"},
		{"out/diagram.v2", "x", "out/diagram.v2"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.title); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.title, got, tt.want)
		}
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvCache, "off")
	wb := writeFile(t, filepath.Join(dir, "Sales.twb"), salesTWB)

	tests := []struct {
		name string
		args []string
		file string
		want string
	}{
		{"field", []string{"--field", "Profit Ratio", "-o", "ratio.dot", "-f", "dot"}, "ratio.dot", "Profit Ratio"},
		{"sheet", []string{"--sheet", "Overview", "-o", "sheet", "-f", "dot"}, "sheet.dot", "Overview"},
		{"whole workbook", []string{"-o", "all.dot", "-f", "dot"}, "all.dot", "Sales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := New(io.Discard, log.InfoLevel).RootCommand()
			root.SetArgs(append([]string{"render", wb}, tt.args...))
			require.NoError(t, root.Execute())

			data, err := os.ReadFile(filepath.Join(dir, tt.file))
			require.NoError(t, err)
			assert.Contains(t, string(data), "digraph")
			assert.Contains(t, string(data), tt.want)
		})
	}
}

func TestRenderCommandErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvCache, "off")
	wb := writeFile(t, filepath.Join(dir, "Sales.twb"), salesTWB)

	tests := []struct {
		name string
		args []string
		want errors.Code
	}{
		{"both selectors", []string{"render", wb, "--field", "Sales", "--sheet", "Overview"}, errors.ErrCodeInvalidInput},
		{"unknown sheet", []string{"render", wb, "--sheet", "Nope", "-f", "dot"}, errors.ErrCodeNotFound},
		{"bad format", []string{"render", wb, "-f", "gif"}, errors.ErrCodeInvalidFormat},
		{"stdout with two formats", []string{"render", wb, "-f", "svg,dot", "-o", "-"}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := New(io.Discard, log.InfoLevel).RootCommand()
			root.SetArgs(tt.args)
			err := root.Execute()
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
