// Package config handles loading preprocessor configuration from files.
//
// Configuration can be written as JSON (pps.json, .ppsrc, .ppsrc.json) or
// YAML (pps.yaml, pps.yml, .ppsrc.yaml). The config file is searched for
// in the starting directory and its parents. ${VAR} and ${VAR:-default}
// are replaced from the environment before parsing, and relative paths
// are resolved against the config file's directory.
//
// Example pps.yaml:
//
//	static: false
//	bools:
//	  isRaster: true
//	  useShadow: false
//	instances:
//	  useShadow: scene.useShadow
//	prefixes: [shaders/include]
//	archive: ${PPS_ARCHIVE:-shaders.ppsa}
//	diagnostics:
//	  W0204: off
package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HugoDaniel/pps/internal/diagnostic"
	"github.com/HugoDaniel/pps/internal/directive"
	"github.com/HugoDaniel/pps/internal/preprocessor"
)

// Config represents the configuration file structure.
// All fields are optional. Variable names may be written with or
// without their leading '@'.
type Config struct {
	// Static resolves instance branches fully (default false)
	Static *bool `json:"static,omitempty" yaml:"static,omitempty"`

	// Defined constants
	Bools   map[string]bool   `json:"bools,omitempty" yaml:"bools,omitempty"`
	Ints    map[string]int64  `json:"ints,omitempty" yaml:"ints,omitempty"`
	Strings map[string]string `json:"strings,omitempty" yaml:"strings,omitempty"`

	// Instances maps variables to their emitted text
	Instances map[string]string `json:"instances,omitempty" yaml:"instances,omitempty"`

	// Prefixes are include search directories
	Prefixes []string `json:"prefixes,omitempty" yaml:"prefixes,omitempty"`

	// Archive is a shader archive consulted for includes, opened with Key
	Archive string `json:"archive,omitempty" yaml:"archive,omitempty"`
	Key     string `json:"key,omitempty" yaml:"key,omitempty"`

	// Output tidying (both default true)
	CollapseBlankLines *bool `json:"collapseBlankLines,omitempty" yaml:"collapseBlankLines,omitempty"`
	TrimTrailingSpace  *bool `json:"trimTrailingSpace,omitempty" yaml:"trimTrailingSpace,omitempty"`

	// Diagnostics maps codes to off, error, warning or info
	Diagnostics map[string]string `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// ConfigFileNames are the names searched for config files, in order of preference.
var ConfigFileNames = []string{
	"pps.json",
	"pps.yaml",
	"pps.yml",
	".ppsrc",
	".ppsrc.json",
	".ppsrc.yaml",
}

// Load searches for a config file starting from the given directory
// and walking up to parent directories. Returns nil if no config file is found.
func Load(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := LoadFile(path)
				return cfg, path, err
			}
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, no config found
			return nil, "", nil
		}
		dir = parent
	}
}

// LoadFile loads configuration from a specific file path, interpolating
// the process environment.
func LoadFile(path string) (*Config, error) {
	return LoadFileEnv(path, os.Getenv)
}

// LoadFileEnv is LoadFile with a custom environment lookup.
func LoadFileEnv(path string, getenv func(string) string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = interpolateEnv(data, getenv)

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(absPath))
	return &cfg, nil
}

func (c *Config) resolvePaths(baseDir string) {
	for i, p := range c.Prefixes {
		if !filepath.IsAbs(p) {
			c.Prefixes[i] = filepath.Join(baseDir, p)
		}
	}
	if c.Archive != "" && !filepath.IsAbs(c.Archive) {
		c.Archive = filepath.Join(baseDir, c.Archive)
	}
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		value := getenv(string(parts[1]))
		if value == "" && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// varName adds the leading '@' to a variable name written without it.
func varName(name string) string {
	if strings.HasPrefix(name, "@") {
		return name
	}
	return "@" + name
}

func withAt[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[varName(k)] = v
	}
	return out
}

// ToContext converts the config to a directive context.
func (c *Config) ToContext() *directive.Context {
	ctx := &directive.Context{
		Bools:     withAt(c.Bools),
		Ints:      withAt(c.Ints),
		Strings:   withAt(c.Strings),
		Instances: withAt(c.Instances),
		Prefixes:  c.Prefixes,
	}
	if c.Static != nil {
		ctx.IsStatic = *c.Static
	}
	return ctx
}

// ToOptions converts a Config to preprocessor.Options, using defaults for
// unset fields. The archive is not opened.
func (c *Config) ToOptions() (preprocessor.Options, error) {
	opts := preprocessor.DefaultOptions()
	opts.Context = c.ToContext()
	opts.Key = c.Key

	if c.CollapseBlankLines != nil {
		opts.CollapseBlankLines = *c.CollapseBlankLines
	}
	if c.TrimTrailingSpace != nil {
		opts.TrimTrailingSpace = *c.TrimTrailingSpace
	}

	if len(c.Diagnostics) > 0 {
		filter := diagnostic.NewFilter()
		for code, level := range c.Diagnostics {
			if err := filter.ParseRule(code + "=" + level); err != nil {
				return opts, err
			}
		}
		opts.Filter = filter
	}
	return opts, nil
}

// MergeOptions holds CLI settings. Nil pointers and empty values mean
// "not specified on the CLI".
type MergeOptions struct {
	Static      *bool
	Bools       map[string]bool
	Ints        map[string]int64
	Strings     map[string]string
	Instances   map[string]string
	Prefixes    []string
	Archive     string
	Key         string
	Diagnostics map[string]string
}

// Merge merges CLI options with config file options. CLI options override
// config file options when specified; CLI variables are added to the
// config's, and CLI prefixes are searched before the config's. A nil
// config yields the CLI options alone.
func (c *Config) Merge(cli MergeOptions) *Config {
	var out Config
	if c != nil {
		out = *c
	}

	if cli.Static != nil {
		out.Static = cli.Static
	}
	out.Bools = mergeMap(out.Bools, cli.Bools)
	out.Ints = mergeMap(out.Ints, cli.Ints)
	out.Strings = mergeMap(out.Strings, cli.Strings)
	out.Instances = mergeMap(out.Instances, cli.Instances)
	if len(cli.Diagnostics) > 0 {
		diags := make(map[string]string, len(out.Diagnostics)+len(cli.Diagnostics))
		maps.Copy(diags, out.Diagnostics)
		maps.Copy(diags, cli.Diagnostics)
		out.Diagnostics = diags
	}
	if len(cli.Prefixes) > 0 {
		out.Prefixes = append(append([]string(nil), cli.Prefixes...), out.Prefixes...)
	}
	if cli.Archive != "" {
		out.Archive = cli.Archive
	}
	if cli.Key != "" {
		out.Key = cli.Key
	}
	return &out
}

// mergeMap returns a copy of base with over applied on top. Keys are
// compared after adding the leading '@'.
func mergeMap[V any](base, over map[string]V) map[string]V {
	if len(over) == 0 {
		return base
	}
	out := withAt(base)
	if out == nil {
		out = make(map[string]V, len(over))
	}
	maps.Copy(out, withAt(over))
	return out
}
