// Loads the source declarations from YAML.
//
// Config file locations (priority order):
//  1. $RECDB_CONFIG
//  2. ./recdb.yaml
//  3. ~/.config/recdb/config.yaml
//
// When none exists the embedded default declaration is used.

package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// currentVersion is the current version of the configuration format.
const currentVersion = 1

// Config is the on-disk declaration of every source.
type Config struct {
	Version       int                     `yaml:"version" json:"version"`
	App           AppConfig               `yaml:"app,omitempty" json:"app,omitempty"`
	DefaultView   string                  `yaml:"defaultView,omitempty" json:"defaultView,omitempty" jsonschema:"description=Source shown first by clients"`
	Storage       StorageConfig           `yaml:"storage,omitempty" json:"storage,omitempty"`
	Sources       map[string]*Source      `yaml:"dataSources" json:"dataSources"`
	Relationships map[string]Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Dashboard     Dashboard               `yaml:"dashboard,omitempty" json:"dashboard,omitempty"`
}

// AppConfig carries descriptive application metadata.
type AppConfig struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// StorageConfig selects the persistence driver.
type StorageConfig struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"description=Storage namespace"`
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty" jsonschema:"enum=jsonl,enum=sqlite,enum=memory"`
}

// Dashboard lists aggregate metrics.
type Dashboard struct {
	Metrics []Metric `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// FindConfigPath returns the first existing config file, or "".
func FindConfigPath() string {
	candidates := []string{os.Getenv("RECDB_CONFIG"), "recdb.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "recdb", "config.yaml"))
	}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load finds and loads the config file, or returns the default if none found.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		cfg, err := DefaultConfig()
		return cfg, "", err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, path, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, path, nil
}

// DefaultConfig returns the embedded declaration.
func DefaultConfig() (*Config, error) {
	return Parse(defaultYAML)
}

// Parse decodes and validates a YAML declaration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal encodes the config back to YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = currentVersion
	}
	if c.Storage.Name == "" {
		c.Storage.Name = "AppStorage"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "jsonl"
	}
	for id, src := range c.Sources {
		if src == nil {
			continue
		}
		src.ID = id
		if src.DisplayName == "" {
			src.DisplayName = id
		}
	}
}

// Validate checks that the declaration is consistent.
func (c *Config) Validate() error {
	if c.Version != currentVersion {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if len(c.Sources) == 0 {
		return errors.New("at least one data source is required")
	}
	for _, id := range slices.Sorted(maps.Keys(c.Sources)) {
		src := c.Sources[id]
		if src == nil {
			return fmt.Errorf("dataSources.%s: empty declaration", id)
		}
		if err := src.Validate(); err != nil {
			return fmt.Errorf("dataSources.%s: %w", id, err)
		}
	}
	for id, rel := range c.Relationships {
		if _, ok := c.Sources[id]; !ok {
			return fmt.Errorf("relationships.%s: unknown source", id)
		}
		for field, target := range rel.References {
			if _, ok := c.Sources[target]; !ok {
				return fmt.Errorf("relationships.%s.references.%s: unknown target source %q", id, field, target)
			}
		}
	}
	if c.DefaultView != "" {
		if _, ok := c.Sources[c.DefaultView]; !ok {
			return fmt.Errorf("defaultView: unknown source %q", c.DefaultView)
		}
	}
	for i := range c.Dashboard.Metrics {
		m := &c.Dashboard.Metrics[i]
		if err := m.Validate(); err != nil {
			return fmt.Errorf("dashboard.metrics[%d]: %w", i, err)
		}
		if _, ok := c.Sources[m.Source]; !ok {
			return fmt.Errorf("dashboard.metrics[%d]: unknown source %q", i, m.Source)
		}
	}
	return nil
}
