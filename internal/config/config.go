package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Report formats accepted in configuration.
const (
	FormatJSON = "json"
	FormatHTML = "html"
)

// DirName is the per-project and per-user configuration directory.
const DirName = ".gbr"

// Config holds all configuration for go-bundle-report
type Config struct {
	// Format of the written report: json or html
	Format string `yaml:"format" env:"GBR_FORMAT"`

	// Output is the report path; "-" writes to stdout
	Output string `yaml:"output" env:"GBR_OUTPUT"`

	// Open opens an html report in the system viewer after writing it
	Open bool `yaml:"open" env:"GBR_OPEN"`

	// Include and Exclude are gitignore-style patterns applied to module keys
	Include []string `yaml:"include,omitempty" env:"GBR_INCLUDE"`
	Exclude []string `yaml:"exclude,omitempty" env:"GBR_EXCLUDE"`

	// Compressed sizes to compute
	Gzip   bool `yaml:"gzip" env:"GBR_GZIP"`
	Brotli bool `yaml:"brotli" env:"GBR_BROTLI"`

	// DropUnreachable removes modules no asset reaches instead of flagging them
	DropUnreachable bool `yaml:"drop_unreachable" env:"GBR_DROP_UNREACHABLE"`

	// StateDir holds the asset list of the previous run
	StateDir string `yaml:"state_dir" env:"GBR_STATE_DIR"`

	// Top is the number of rows in the printed summary; 0 disables it
	Top int `yaml:"top" env:"GBR_TOP"`

	// Logging
	LogLevel string `yaml:"log_level" env:"GBR_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"GBR_LOG_JSON"`
	Verbose  bool   `yaml:"verbose" env:"GBR_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Format:          FormatJSON,
		Output:          "bundle-report.json",
		Open:            false,
		Gzip:            true,
		Brotli:          false,
		DropUnreachable: false,
		StateDir:        filepath.Join(DirName, "cache"),
		Top:             10,
		LogLevel:        "info",
		LogJSON:         false,
		Verbose:         false,
	}
}

// globalConfigFilePath returns the global config file path (~/.gbr/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DirName, "config.yaml")
	}
	return filepath.Join(home, DirName, "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gbr/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(DirName, "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.gbr/config.yaml)
// 2. Environment variables (a ./.env file is loaded first, without
// overriding variables already set)
// 3. Global config (~/.gbr/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(globalConfigFilePath(), ProjectConfigFilePath())
}

func load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, globalPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile unmarshals path over cfg. A missing file is not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GBR_FORMAT"); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if v := os.Getenv("GBR_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("GBR_OPEN"); v != "" {
		cfg.Open = parseBool(v)
	}
	if v := os.Getenv("GBR_INCLUDE"); v != "" {
		cfg.Include = splitList(v)
	}
	if v := os.Getenv("GBR_EXCLUDE"); v != "" {
		cfg.Exclude = splitList(v)
	}
	if v := os.Getenv("GBR_GZIP"); v != "" {
		cfg.Gzip = parseBool(v)
	}
	if v := os.Getenv("GBR_BROTLI"); v != "" {
		cfg.Brotli = parseBool(v)
	}
	if v := os.Getenv("GBR_DROP_UNREACHABLE"); v != "" {
		cfg.DropUnreachable = parseBool(v)
	}
	if v := os.Getenv("GBR_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("GBR_TOP"); v != "" {
		if i, ok := parseInt(v); ok && i >= 0 {
			cfg.Top = i
		}
	}
	if v := os.Getenv("GBR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GBR_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv("GBR_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	switch c.Format {
	case FormatJSON, FormatHTML:
	default:
		return fmt.Errorf("invalid format: %s (must be 'json' or 'html')", c.Format)
	}

	if c.Output == "" {
		return fmt.Errorf("output is required")
	}
	if c.Open && c.Output == "-" {
		return fmt.Errorf("open requires a report file, not stdout")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if c.Top < 0 {
		return fmt.Errorf("top must be non-negative")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "off":
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}

	return nil
}

// parseBool accepts the usual truthy spellings
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, bool) {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0, false
	}
	return i, true
}

// splitList splits a comma-separated env value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
