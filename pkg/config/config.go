package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Stitch/pkg/assembly"
	"github.com/caarlos0/env/v11"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "stitch.json"

// Variant is one template/manifest/output combination. Relative paths are
// resolved against the directory of the config file.
type Variant struct {
	Name        string           `json:"name" yaml:"name"`
	Template    string           `json:"template" yaml:"template"`
	Output      string           `json:"output" yaml:"output"`
	FragmentDir string           `json:"fragment_dir" yaml:"fragment_dir"`
	Strict      bool             `json:"strict" yaml:"strict"`
	Entries     []assembly.Entry `json:"entries" yaml:"entries"`

	manifest *assembly.Manifest
}

// Config is the top-level configuration.
type Config struct {
	LogLevel   string     `json:"log_level" yaml:"log_level"`
	LedgerPath string     `json:"ledger_path" yaml:"ledger_path"`
	Record     bool       `json:"record" yaml:"record"`
	Strict     bool       `json:"strict" yaml:"strict"`
	Variants   []*Variant `json:"variants" yaml:"variants"`

	baseDir string
}

// envOverrides are applied on top of the file. Unset variables leave the
// file's value alone. A relative STITCH_LEDGER_PATH is taken relative to the
// working directory, not the config file.
type envOverrides struct {
	LogLevel   *string `env:"STITCH_LOG_LEVEL"`
	LedgerPath *string `env:"STITCH_LEDGER_PATH"`
	Record     *bool   `env:"STITCH_RECORD"`
	Strict     *bool   `env:"STITCH_STRICT"`
}

// Default returns a configuration with default values and no variants.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		LedgerPath: filepath.Join(".stitch", "history.db"),
		Variants:   []*Variant{},
	}
}

// Load reads the config file at path. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON. Environment overrides are applied
// and the result is validated, which includes building every manifest.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err = cfg.applyEnv(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg.baseDir = filepath.Dir(abs)

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path, replacing any existing file atomically. The
// format follows the file extension like Load.
func Save(path string, cfg *Config) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if o.LedgerPath != nil {
		path := *o.LedgerPath
		if path != "" && !filepath.IsAbs(path) {
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("failed to resolve STITCH_LEDGER_PATH: %w", err)
			}
			path = abs
		}
		c.LedgerPath = path
	}
	if o.Record != nil {
		c.Record = *o.Record
	}
	if o.Strict != nil {
		c.Strict = *o.Strict
	}
	return nil
}

// Validate checks variant names and paths and builds each variant's
// manifest, so manifest errors surface before any assembly starts.
func (c *Config) Validate() error {
	if len(c.Variants) == 0 {
		return errors.New("config defines no variants")
	}
	seen := make(map[string]struct{}, len(c.Variants))
	for i, v := range c.Variants {
		if v == nil {
			return fmt.Errorf("variant %d is empty", i)
		}
		if v.Name == "" {
			return fmt.Errorf("variant %d has no name", i)
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("duplicate variant name %q", v.Name)
		}
		seen[v.Name] = struct{}{}
		if v.Template == "" {
			return fmt.Errorf("variant %q: template path is required", v.Name)
		}
		if v.Output == "" {
			return fmt.Errorf("variant %q: output path is required", v.Name)
		}
		m, err := assembly.NewManifest(v.Entries)
		if err != nil {
			return fmt.Errorf("variant %q: %w", v.Name, err)
		}
		v.manifest = m
	}
	return nil
}

// Level maps LogLevel onto a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Resolve makes path absolute relative to the config file's directory.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// Select returns the named variants in the order given, or every variant
// when names is empty.
func (c *Config) Select(names []string) ([]*Variant, error) {
	if len(names) == 0 {
		return c.Variants, nil
	}
	byName := make(map[string]*Variant, len(c.Variants))
	for _, v := range c.Variants {
		byName[v.Name] = v
	}
	out := make([]*Variant, 0, len(names))
	for _, name := range names {
		v, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown variant %q", name)
		}
		out = append(out, v)
	}
	return out, nil
}

// Plan turns a validated variant into an assembly plan with resolved paths.
func (c *Config) Plan(v *Variant) (assembly.Plan, error) {
	m := v.manifest
	if m == nil {
		var err error
		if m, err = assembly.NewManifest(v.Entries); err != nil {
			return assembly.Plan{}, fmt.Errorf("variant %q: %w", v.Name, err)
		}
	}
	fragDir := c.Resolve(v.FragmentDir)
	if fragDir == "" {
		fragDir = c.baseDir
	}
	return assembly.Plan{
		Name:        v.Name,
		Template:    c.Resolve(v.Template),
		Output:      c.Resolve(v.Output),
		FragmentDir: fragDir,
		Manifest:    m,
		Strict:      v.Strict || c.Strict,
	}, nil
}

// Plans selects variants by name and returns their plans.
func (c *Config) Plans(names []string) ([]assembly.Plan, error) {
	variants, err := c.Select(names)
	if err != nil {
		return nil, err
	}
	plans := make([]assembly.Plan, 0, len(variants))
	for _, v := range variants {
		p, err := c.Plan(v)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}
