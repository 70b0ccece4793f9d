package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/workbookdeps/pkg/buildinfo"
	"github.com/matzehuels/workbookdeps/pkg/config"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "workbookdeps maps field dependencies in Tableau workbooks",
		Long: `workbookdeps reads Tableau workbooks (.twb, .twbx), resolves which calculated
fields, parameters and worksheets depend on which fields, and writes a
spreadsheet, a JSON report and one dependency diagram per field and sheet.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")

	// Register all subcommands
	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// versionCommand prints build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
