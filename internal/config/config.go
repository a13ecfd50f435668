// Package config provides configuration for the dataset inspector.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/graphnet-team/datainspect/internal/profile"
	"github.com/graphnet-team/datainspect/internal/storage"
	"github.com/graphnet-team/datainspect/pkg/types"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "DATAINSPECT_"

// Config holds the inspector configuration.
type Config struct {
	// DataDir is the base directory relative store locations resolve against
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// CacheDir holds stores staged from S3 or decompressed from snappy
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// FailFast aborts the run at the first failing profile
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`

	// Parallel is the maximum number of profiles inspected concurrently
	Parallel int `json:"parallel" yaml:"parallel"`

	// Color enables ANSI bold profile headers
	Color bool `json:"color" yaml:"color"`

	// LookupValue is the index value used for query plan inspection
	LookupValue int64 `json:"lookup_value" yaml:"lookup_value"`

	// Storage configuration for remote stores
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Profiles override or extend the built-in dataset presets
	Profiles []types.Profile `json:"profiles" yaml:"profiles"`
}

// StorageConfig holds remote storage configuration.
type StorageConfig struct {
	// S3 configuration for s3:// store locations
	S3 storage.S3Config `json:"s3" yaml:"s3"`
}

// DefaultConfig returns the default configuration: stores under the
// current directory, one profile at a time, isolated failures.
func DefaultConfig() *Config {
	return &Config{
		DataDir:     ".",
		CacheDir:    "",
		FailFast:    false,
		Parallel:    1,
		Color:       true,
		LookupValue: 1,
		Storage: StorageConfig{
			S3: storage.S3Config{
				Region: "us-east-1",
			},
		},
	}
}

// Resolve sets defaults derived from other fields.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(os.TempDir(), "datainspect")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	for _, p := range c.Profiles {
		if err := profile.Validate(p); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns the built-in profiles merged with the configured overrides.
func (c *Config) Registry() (*profile.Registry, error) {
	r := profile.Builtin()
	if err := r.Merge(c.Profiles); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the DATAINSPECT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(EnvPrefix + "FAIL_FAST"); v != "" {
		cfg.FailFast = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvPrefix + "PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Parallel = n
		}
	}
	if v := os.Getenv(EnvPrefix + "COLOR"); v != "" {
		cfg.Color = v == "true" || v == "1"
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.Color = false
	}
	if v := os.Getenv(EnvPrefix + "LOOKUP_VALUE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.LookupValue = n
		}
	}

	// Storage configuration
	if v := os.Getenv(EnvPrefix + "S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv(EnvPrefix + "S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
}
