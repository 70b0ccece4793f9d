package cli

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/workbookdeps/pkg/api"
	"github.com/matzehuels/workbookdeps/pkg/buildinfo"
)

const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command running the HTTP service.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		workDir string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve workbook analysis over HTTP",
		Long: `Run an HTTP service accepting workbook uploads.

  POST /api/v1/workbooks              upload (multipart field "file")
  GET  /api/v1/jobs/{id}              progress
  GET  /api/v1/jobs/{id}/events       progress as server-sent events
  GET  /api/v1/jobs/{id}/report.xlsx  spreadsheet
  GET  /api/v1/jobs/{id}/report.json  JSON report
  GET  /api/v1/jobs/{id}/archive.zip  every output including diagrams`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			runner, err := c.newRunner(cfg, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			opts, err := api.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			opts.WorkDir = workDir
			opts.Logger = c.Logger
			opts.Pipeline.Version = buildinfo.Version

			srv, err := api.New(runner, opts)
			if err != nil {
				return err
			}
			defer srv.Close()

			return c.listen(cmd.Context(), api.NewHTTPServer(cfg.Server.Addr, srv.Handler()))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "directory for uploads and job outputs (default: temporary)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the rendered diagram cache")

	return cmd
}

// listen serves until ctx is cancelled, then shuts down gracefully.
func (c *CLI) listen(ctx context.Context, hs *http.Server) error {
	ln, err := net.Listen("tcp", hs.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", hs.Addr, err)
	}
	printSuccess("Listening on %s", StyleLink.Render("http://"+displayAddr(ln.Addr())))
	printDetail("Press Ctrl+C to stop")

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	select {
	case err := <-errc:
		if !goerrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// displayAddr turns a wildcard listen address into a clickable one.
func displayAddr(a net.Addr) string {
	tcp, ok := a.(*net.TCPAddr)
	if !ok || !tcp.IP.IsUnspecified() {
		return a.String()
	}
	return fmt.Sprintf("localhost:%d", tcp.Port)
}
