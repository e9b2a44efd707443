// Package config loads cultureplan settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects the catalog backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory, sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects where exported layouts are written.
type BlobConfig struct {
	Driver string   `yaml:"driver"` // fs, s3, memory
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config addresses an S3 or MinIO bucket.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// MetricsConfig selects the metrics recorder.
type MetricsConfig struct {
	Backend string `yaml:"backend"` // none, expvar, prometheus
}

// Default returns the built-in configuration: a local sqlite catalog and a
// filesystem artifact directory.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: "sqlite", SQLitePath: "cultureplan.db"},
		Blob:    BlobConfig{Driver: "fs", FSRoot: "./artifacts", S3: S3Config{Region: "us-east-1"}},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Backend: "none"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

// applyEnv overlays CULTUREPLAN_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("CULTUREPLAN_STORAGE_DRIVER", &c.Storage.Driver)
	str("CULTUREPLAN_SQLITE_PATH", &c.Storage.SQLitePath)
	str("CULTUREPLAN_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CULTUREPLAN_BLOB_DRIVER", &c.Blob.Driver)
	str("CULTUREPLAN_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("CULTUREPLAN_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("CULTUREPLAN_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("CULTUREPLAN_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("CULTUREPLAN_BLOB_S3_PREFIX", &c.Blob.S3.Prefix)
	str("CULTUREPLAN_LOG_LEVEL", &c.Logging.Level)
	str("CULTUREPLAN_METRICS_BACKEND", &c.Metrics.Backend)
	if v, ok := lookup("CULTUREPLAN_BLOB_S3_PATH_STYLE"); ok && v != "" {
		c.Blob.S3.PathStyle = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate reports inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "memory", "fs":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket required for s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	switch c.Metrics.Backend {
	case "", "none", "expvar", "prometheus":
	default:
		errs = append(errs, fmt.Errorf("unknown metrics backend %q", c.Metrics.Backend))
	}
	return errors.Join(errs...)
}
