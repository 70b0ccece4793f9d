// Package cli implements the workbookdeps command-line interface.
//
// This package provides commands for analyzing Tableau workbooks, rendering
// single dependency diagrams, serving the analysis over HTTP and managing the
// diagram cache. The CLI is built using cobra and logs via charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - analyze: Write the spreadsheet, JSON report and diagrams of workbooks
//   - render: Render one field, sheet or whole-workbook diagram
//   - serve: Run the HTTP upload service
//   - cache: Manage the rendered diagram cache
//
// # Configuration
//
// Settings come from workbookdeps.toml (or --config), then WORKBOOKDEPS_*
// environment variables, then command-line flags.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// logs every pipeline phase as it completes.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/workbookdeps/pkg/buildinfo"
	"github.com/matzehuels/workbookdeps/pkg/cache"
	"github.com/matzehuels/workbookdeps/pkg/config"
	"github.com/matzehuels/workbookdeps/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "workbookdeps"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is bound to the persistent --config flag.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. At debug level pipeline phases
// and cache lookups are logged too.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		installLogHooks(c.Logger)
	}
}

// loadConfig reads the settings file named by --config, or the default one.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	c.Logger.Debug("loaded config", "path", c.configPath, "output", cfg.Output, "formats", cfg.Formats)
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. Cached diagrams are
// scoped to the running build so upgrades never reuse stale renders.
func (c *CLI) newRunner(cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	cc, err := newCache(cfg.Cache, noCache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), buildinfo.CacheScope())
	return pipeline.NewRunner(cc, keyer, c.Logger), nil
}

func newCache(cfg config.CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache || !cfg.Enabled {
		return cache.NewNullCache(), nil
	}
	dir := cfg.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/workbookdeps/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
