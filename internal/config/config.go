// Package config loads and validates the daemon's TOML configuration
// file, filling in defaults for anything the user omits.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Indexing controls which directories are scanned and watched.
type Indexing struct {
	IncludePaths    []string `toml:"include_paths"`
	ExcludePatterns []string `toml:"exclude_patterns"`
}

// Performance bounds the daemon's resource footprint and batching
// behavior.
type Performance struct {
	MaxCPUPercent   uint8  `toml:"max_cpu_percent"`
	MaxMemoryMB     uint64 `toml:"max_memory_mb"`
	BatchSize       int    `toml:"batch_size"`
	FlushIntervalMS uint64 `toml:"flush_interval_ms"`
}

// UI controls parameters of the query-facing surface.
type UI struct {
	KeyboardShortcut string `toml:"keyboard_shortcut"`
	MaxResults       int    `toml:"max_results"`
}

// Config is the full daemon configuration, as loaded from
// config.toml.
type Config struct {
	Indexing    Indexing    `toml:"indexing"`
	Performance Performance `toml:"performance"`
	UI          UI          `toml:"ui"`
}

// Default returns the configuration used when no file is present or a
// field is omitted from one that is.
func Default() Config {
	return Config{
		Indexing: Indexing{
			IncludePaths:    []string{"~"},
			ExcludePatterns: []string{".*", "node_modules", ".git", "target"},
		},
		Performance: Performance{
			MaxCPUPercent:   10,
			MaxMemoryMB:     100,
			BatchSize:       100,
			FlushIntervalMS: 1000,
		},
		UI: UI{
			KeyboardShortcut: "Super+Space",
			MaxResults:       50,
		},
	}
}

// Load reads and validates the config file at path. A missing file is
// not an error: it yields the default configuration. A present file
// is decoded over a copy of the defaults, so any field or section it
// omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()

	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, &ParseError{Path: path, Err: err}
	}

	if err := toml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, &ParseError{Path: path, Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against the daemon's operating
// constraints.
func (c Config) Validate() error {
	if len(c.Indexing.IncludePaths) == 0 {
		return &ValidationError{Field: "indexing.include_paths", Reason: "cannot be empty"}
	}
	if c.Performance.MaxCPUPercent == 0 || c.Performance.MaxCPUPercent > 100 {
		return &ValidationError{Field: "performance.max_cpu_percent", Reason: "must be between 1 and 100"}
	}
	if c.Performance.MaxMemoryMB == 0 {
		return &ValidationError{Field: "performance.max_memory_mb", Reason: "must be greater than 0"}
	}
	if c.Performance.BatchSize <= 0 {
		return &ValidationError{Field: "performance.batch_size", Reason: "must be greater than 0"}
	}
	if c.Performance.FlushIntervalMS == 0 {
		return &ValidationError{Field: "performance.flush_interval_ms", Reason: "must be greater than 0"}
	}
	if c.UI.MaxResults <= 0 {
		return &ValidationError{Field: "ui.max_results", Reason: "must be greater than 0"}
	}
	if c.UI.KeyboardShortcut == "" {
		return &ValidationError{Field: "ui.keyboard_shortcut", Reason: "cannot be empty"}
	}
	return nil
}

// ExpandedIncludePaths returns include_paths with a leading "~" or
// "~/" expanded against home. A path with no tilde is returned
// unchanged.
func (c Config) ExpandedIncludePaths(home string) []string {
	out := make([]string, len(c.Indexing.IncludePaths))
	for i, p := range c.Indexing.IncludePaths {
		out[i] = expandTilde(p, home)
	}
	return out
}

func expandTilde(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
