package cli

import (
	"bytes"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, log.InfoLevel).RootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"analyze", "render", "serve", "cache", "version", "completion"} {
		if !slices.Contains(names, want) {
			t.Errorf("RootCommand() missing subcommand %q, have %v", want, names)
		}
	}

	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("RootCommand() should define a persistent --config flag")
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := New(io.Discard, log.InfoLevel).RootCommand()
	if root.Version == "" {
		t.Error("RootCommand().Version should be set")
	}
}

func TestVersionCommand(t *testing.T) {
	root := New(io.Discard, log.InfoLevel).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "version: ") {
		t.Errorf("version output = %q, want build info", out.String())
	}
}
