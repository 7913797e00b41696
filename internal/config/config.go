package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = ".deprecheck.yaml"

type Config struct {
	Rules struct {
		Source    string `yaml:"source"`
		VendorDir string `yaml:"vendor_dir"`
	} `yaml:"rules"`
	Cache struct {
		Dir      string `yaml:"dir"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"cache"`
	Check struct {
		Roots   []string `yaml:"roots"`
		Ignore  []string `yaml:"ignore"`
		Workers int      `yaml:"workers"`
		Filter  []string `yaml:"filter"`
		Dedup   bool     `yaml:"dedup"`
		Fail    bool     `yaml:"fail"`
	} `yaml:"check"`
	Output struct {
		Format string `yaml:"format"` // text or json
	} `yaml:"output"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	cfg.Rules.VendorDir = "vendor"
	cfg.Output.Format = "text"
	cfg.Log.Level = "warn"
	cfg.Log.Format = "text"
	return &cfg
}

// LoadConfig reads .env, then the YAML file at path, then DEPRECHECK_*
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	if dir := os.Getenv("DEPRECHECK_CACHE_DIR"); dir != "" {
		cfg.Cache.Dir = dir
	}
	if v := os.Getenv("DEPRECHECK_NO_CACHE"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEPRECHECK_NO_CACHE %q: %w", v, err)
		}
		cfg.Cache.Disabled = disabled
	}
	if level := os.Getenv("DEPRECHECK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("DEPRECHECK_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
	if v := os.Getenv("DEPRECHECK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid DEPRECHECK_WORKERS %q", v)
		}
		cfg.Check.Workers = n
	}
	return nil
}

// FilterList joins the configured filter entries in the form accepted by
// the --filter flag.
func (cfg *Config) FilterList() string {
	return strings.Join(cfg.Check.Filter, ",")
}
