// Package config loads workbookdeps settings.
//
// Settings come from three layers, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file, ./workbookdeps.toml or the path given with --config
//  3. WORKBOOKDEPS_* environment variables
//
// Command-line flags are applied on top by the CLI.
//
// # File format
//
//	output  = "out"
//	formats = ["svg", "png"]
//	field_graphs = true
//	sheet_graphs = true
//
//	[cache]
//	enabled = true
//
//	[server]
//	addr = ":8080"
//	max_upload_mb = 64
//
//	[style.calculated]
//	shape = "oval"
//	color = "orange"
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/render/nodelink"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "workbookdeps.toml"

// Environment variables overriding file settings.
const (
	EnvOutput  = "WORKBOOKDEPS_OUTPUT"
	EnvFormats = "WORKBOOKDEPS_FORMATS"
	EnvAddr    = "WORKBOOKDEPS_ADDR"
	EnvCache   = "WORKBOOKDEPS_CACHE" // cache directory, or "off"
)

// Config holds all settings.
type Config struct {
	// Output is the directory receiving "<workbook> Files" folders.
	Output string `toml:"output"`
	// Formats are the diagram formats to write.
	Formats []string `toml:"formats"`
	// FieldGraphs enables one diagram per field.
	FieldGraphs bool `toml:"field_graphs"`
	// SheetGraphs enables one diagram per worksheet.
	SheetGraphs bool `toml:"sheet_graphs"`
	// Workers bounds concurrent workbook analyses; 0 means GOMAXPROCS.
	Workers int `toml:"workers"`

	Cache  CacheConfig    `toml:"cache"`
	Server ServerConfig   `toml:"server"`
	Style  nodelink.Style `toml:"style"`
}

// CacheConfig configures the render artifact cache.
type CacheConfig struct {
	Enabled bool `toml:"enabled"`
	// Dir overrides the default $XDG_CACHE_HOME/workbookdeps location.
	Dir string `toml:"dir"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	MaxUploadMB int64  `toml:"max_upload_mb"`
	// MaxJobs bounds the number of finished jobs kept in memory.
	MaxJobs int `toml:"max_jobs"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Output:      ".",
		Formats:     []string{string(nodelink.FormatSVG), string(nodelink.FormatPNG)},
		FieldGraphs: true,
		SheetGraphs: true,
		Cache:       CacheConfig{Enabled: true},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 64,
			MaxJobs:     128,
		},
		Style: nodelink.DefaultStyle(),
	}
}

// Load reads the config file at path, applies environment overrides and
// validates the result. An empty path reads [DefaultFile] when it exists
// and falls back to defaults otherwise; an explicit path must exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if cfg, err = Parse(data); err != nil {
			return Config{}, err
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables read via getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvOutput); v != "" {
		c.Output = v
	}
	if v := getenv(EnvFormats); v != "" {
		c.Formats = SplitList(v)
	}
	if v := getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	switch v := getenv(EnvCache); strings.ToLower(v) {
	case "":
	case "off", "false", "0", "none":
		c.Cache.Enabled = false
	default:
		c.Cache.Enabled = true
		c.Cache.Dir = v
	}
}

// Validate checks formats and numeric limits.
func (c Config) Validate() error {
	if _, err := c.DiagramFormats(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "formats")
	}
	if c.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers must not be negative, got %d", c.Workers)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	if c.Server.MaxJobs <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.max_jobs must be positive, got %d", c.Server.MaxJobs)
	}
	switch strings.ToUpper(c.Style.RankDir) {
	case "", "TB", "BT", "LR", "RL":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "style.rankdir must be TB, BT, LR or RL, got %q", c.Style.RankDir)
	}
	return nil
}

// DiagramFormats parses Formats, dropping duplicates.
func (c Config) DiagramFormats() ([]nodelink.Format, error) {
	var formats []nodelink.Format
	seen := make(map[nodelink.Format]bool)
	for _, s := range c.Formats {
		f, err := nodelink.ParseFormat(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
