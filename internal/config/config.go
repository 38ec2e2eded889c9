// Package config loads and validates the optional .verdict YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file at the repository root.
const FileName = ".verdict"

// Default values for the validation pipeline.
const (
	DefaultSmokeScript = "validation_smoke.py"
	DefaultSuiteDir    = "Pillow"
	DefaultLogExcerpt  = 2000
)

// Recognized keys of the configuration mapping passed on the command line
// or through the MCP server.
const (
	KeyFailureThreshold = "ACCEPTABLE_FAILURE_THRESHOLD"
)

// Suite output formats understood by the metrics parsers.
const (
	FormatPytest     = "pytest"
	FormatGoTestJSON = "gotest-json"
)

// Config holds the parsed .verdict configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version          int         `yaml:"version"`
	RawTimeout       string      `yaml:"timeout"`     // e.g. "30m"; empty means no timeout
	RawMaxOutput     int         `yaml:"max_output"`  // bytes; 0 means unbounded
	RawLogExcerpt    int         `yaml:"log_excerpt"` // characters of suite stdout echoed to the log
	FailureThreshold int         `yaml:"acceptable_failure_threshold"`
	ResultsDir       string      `yaml:"results_dir"` // where run reports are kept; empty means a temp dir
	Smoke            SmokeConfig `yaml:"smoke"`
	Suite            SuiteConfig `yaml:"suite"`
}

// SmokeConfig controls how the smoke test is invoked.
type SmokeConfig struct {
	Script  string   `yaml:"script"`  // run as <interpreter> <script> (default validation_smoke.py)
	Args    []string `yaml:"args"`    // extra arguments appended after the script
	Command []string `yaml:"command"` // full argv; replaces interpreter + script when set
}

// SuiteConfig controls how the full test suite is invoked.
type SuiteConfig struct {
	Dir     string   `yaml:"dir"`     // subdirectory holding the library and its tests (default Pillow)
	Args    []string `yaml:"args"`    // extra flags appended to <interpreter> -m pytest
	Command []string `yaml:"command"` // full argv; replaces interpreter -m pytest when set
	Format  string   `yaml:"format"`  // pytest (default) or gotest-json
}

// Timeout returns the configured timeout, or zero when none is set.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured output cap, or zero when unbounded.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// LogExcerpt returns how many bytes of suite stdout are echoed to the log.
func (c *Config) LogExcerpt() int {
	if c.RawLogExcerpt > 0 {
		return c.RawLogExcerpt
	}
	return DefaultLogExcerpt
}

// SmokeArgv returns the argv for the smoke test stage.
func (c *Config) SmokeArgv(interpreter string) []string {
	if len(c.Smoke.Command) > 0 {
		return append([]string(nil), c.Smoke.Command...)
	}
	script := c.Smoke.Script
	if script == "" {
		script = DefaultSmokeScript
	}
	argv := []string{interpreter, script}
	return append(argv, c.Smoke.Args...)
}

// SuiteArgv returns the argv for the full test suite stage.
func (c *Config) SuiteArgv(interpreter string) []string {
	if len(c.Suite.Command) > 0 {
		return append([]string(nil), c.Suite.Command...)
	}
	argv := []string{interpreter, "-m", "pytest"}
	return append(argv, c.Suite.Args...)
}

// SuiteDir returns the subdirectory the full suite runs in.
func (c *Config) SuiteDir() string {
	if c.Suite.Dir != "" {
		return c.Suite.Dir
	}
	return DefaultSuiteDir
}

// SuiteFormat returns the configured suite output format, falling back to pytest.
func (c *Config) SuiteFormat() string {
	if c.Suite.Format != "" {
		return c.Suite.Format
	}
	return FormatPytest
}

// Apply overlays a configuration mapping onto c. Unknown keys are ignored
// so that a mapping shared with other tools can be passed through as is.
func (c *Config) Apply(overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := overrides[k]
		switch k {
		case KeyFailureThreshold:
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %q is not an integer", k, v)
			}
			if n < 0 {
				return fmt.Errorf("%s: must not be negative, got %d", k, n)
			}
			c.FailureThreshold = n
		}
	}
	return nil
}

// Validate reports configuration values that cannot be acted upon.
func (c *Config) Validate() error {
	if c.FailureThreshold < 0 {
		return fmt.Errorf("acceptable_failure_threshold must not be negative, got %d", c.FailureThreshold)
	}
	switch c.SuiteFormat() {
	case FormatPytest, FormatGoTestJSON:
	default:
		return fmt.Errorf("unknown suite format %q", c.Suite.Format)
	}
	if filepath.IsAbs(c.SuiteDir()) {
		return fmt.Errorf("suite dir %q must be relative to the workspace", c.SuiteDir())
	}
	return nil
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing .verdict; falls back to workspace
}

// Load reads the .verdict file nearest to workspace, walking upward. The
// directory holding it becomes the repository root. If no .verdict file
// exists, a default Config is returned with workspace as the root.
func Load(workspace string) (*LoadResult, error) {
	root, err := findConfigRoot(workspace)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return &LoadResult{Config: &Config{}, RepoRoot: workspace}, nil
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
	return &LoadResult{Config: cfg, RepoRoot: root}, nil
}

// findConfigRoot walks upward from dir looking for a directory containing a
// .verdict file. It returns "" when none is found.
func findConfigRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	for {
		fi, err := os.Stat(filepath.Join(dir, FileName))
		if err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
