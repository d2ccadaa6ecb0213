// Package config loads and validates the optional .cmdrun YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file.
const FileName = ".cmdrun"

// Default values for runner configuration.
const (
	DefaultMaxOutput    = 1 << 20 // 1 MB
	DefaultHistoryCache = 16
)

// Config holds the parsed .cmdrun configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version       int                `yaml:"version"`
	RawTimeout    string             `yaml:"timeout"`    // e.g. "5m", "30s"; empty means none
	RawMaxOutput  int                `yaml:"max_output"` // bytes per stream
	RawShowOutput *bool              `yaml:"show_output"`
	Env           []string           `yaml:"env"` // KEY=VALUE appended to every run
	Log           LogConfig          `yaml:"log"`
	History       HistoryConfig      `yaml:"history"`
	Commands      map[string]Command `yaml:"commands"`
}

// LogConfig controls the logger that receives command output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// HistoryConfig controls where run records are kept.
type HistoryConfig struct {
	Dir   string `yaml:"dir"`   // empty means the user cache directory
	Cache int    `yaml:"cache"` // in-memory LRU capacity
}

// Command is a named command preset.
type Command struct {
	Argv       []string `yaml:"argv"`
	Dir        string   `yaml:"dir"` // relative to the project root
	Env        []string `yaml:"env"`
	ShowOutput *bool    `yaml:"show_output"`
}

// Timeout returns the configured per-run timeout, or 0 for none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// ShowOutput returns the default for echoing command output, true unless
// configured otherwise.
func (c *Config) ShowOutput() bool {
	if c.RawShowOutput != nil {
		return *c.RawShowOutput
	}
	return true
}

// HistoryCache returns the LRU capacity for run records.
func (c *Config) HistoryCache() int {
	if c.History.Cache > 0 {
		return c.History.Cache
	}
	return DefaultHistoryCache
}

// HistoryDir returns the directory run records are written to. Relative
// paths resolve against root. When unset it falls back to the user cache
// directory, or "" if that cannot be determined.
func (c *Config) HistoryDir(root string) string {
	if c.History.Dir != "" {
		if filepath.IsAbs(c.History.Dir) {
			return c.History.Dir
		}
		return filepath.Join(root, c.History.Dir)
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cache, "cmdrun", "runs")
}

// Command returns the named preset.
func (c *Config) Command(name string) (Command, bool) {
	cmd, ok := c.Commands[name]
	return cmd, ok
}

// CommandNames returns the preset names in sorted order.
func (c *Config) CommandNames() []string {
	names := make([]string, 0, len(c.Commands))
	for name := range c.Commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate reports presets without an argv.
func (c *Config) Validate() error {
	for _, name := range c.CommandNames() {
		if len(c.Commands[name].Argv) == 0 {
			return fmt.Errorf("command %q: argv is empty", name)
		}
	}
	return nil
}

// LoadResult holds the parsed config and the discovered project root.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .cmdrun; falls back to workspace
}

// Load reads the .cmdrun file. The project root is discovered by walking
// upward from workspace looking for .cmdrun. If none exists, a default
// Config is returned with workspace as the root.
func Load(workspace string) (*LoadResult, error) {
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	root, err := findRoot(workspace)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: workspace}, nil
	}

	data, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, Root: root}, nil
}

// findRoot walks upward from dir looking for a directory containing .cmdrun.
func findRoot(dir string) (string, error) {
	for {
		if fi, err := os.Stat(filepath.Join(dir, FileName)); err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
