// Package config loads stagectl settings from a YAML file with STAGEPLAN_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"stageplan/internal/archive"
	"stageplan/internal/blob/core"
	enginecore "stageplan/internal/core"
	"stageplan/internal/infra/blob/s3"
	"stageplan/internal/observability"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all stagectl configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Engine  EngineConfig  `yaml:"engine"`
}

// StorageConfig selects the snapshot store.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory, sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ArchiveConfig selects the blob backend archives are written to.
type ArchiveConfig struct {
	Driver string   `yaml:"driver"` // fs, memory, s3
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config configures the S3 archive backend. Keys are optional; the default
// AWS credential chain applies without them.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig picks the metrics recorder.
type MetricsConfig struct {
	Backend string `yaml:"backend"` // none, prometheus, expvar
}

// EngineConfig tunes the reconciliation engine.
type EngineConfig struct {
	StageCount          int `yaml:"stage_count"`
	MaxCableConnections int `yaml:"max_cable_connections"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{Driver: string(enginecore.StorageSQLite), SQLitePath: "stageplan.db"},
		Archive: ArchiveConfig{Driver: string(core.DriverFilesystem), FSRoot: "archives", S3: S3Config{Region: s3.DefaultRegion}},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Backend: "none"},
		Engine:  EngineConfig{StageCount: 1, MaxCableConnections: enginecore.DefaultMaxCableConnections},
	}
}

// Load reads path (when non-empty and present), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies STAGEPLAN_* variables over file values.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"STAGEPLAN_STORAGE_DRIVER":      &c.Storage.Driver,
		"STAGEPLAN_SQLITE_PATH":         &c.Storage.SQLitePath,
		"STAGEPLAN_POSTGRES_DSN":        &c.Storage.PostgresDSN,
		"STAGEPLAN_ARCHIVE_DRIVER":      &c.Archive.Driver,
		"STAGEPLAN_ARCHIVE_FS_ROOT":     &c.Archive.FSRoot,
		"STAGEPLAN_ARCHIVE_S3_BUCKET":   &c.Archive.S3.Bucket,
		"STAGEPLAN_ARCHIVE_S3_REGION":   &c.Archive.S3.Region,
		"STAGEPLAN_ARCHIVE_S3_ENDPOINT": &c.Archive.S3.Endpoint,
		"STAGEPLAN_LOG_LEVEL":           &c.Logging.Level,
		"STAGEPLAN_LOG_FORMAT":          &c.Logging.Format,
		"STAGEPLAN_METRICS":             &c.Metrics.Backend,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("STAGEPLAN_ARCHIVE_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: STAGEPLAN_ARCHIVE_S3_PATH_STYLE=%q", ErrInvalid, v)
		}
		c.Archive.S3.PathStyle = b
	}
	ints := map[string]*int{
		"STAGEPLAN_STAGE_COUNT":           &c.Engine.StageCount,
		"STAGEPLAN_MAX_CABLE_CONNECTIONS": &c.Engine.MaxCableConnections,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, key, v)
		}
		*dst = n
	}
	return nil
}

// Validate checks driver names and engine bounds.
func (c *Config) Validate() error {
	switch enginecore.StorageDriver(c.Storage.Driver) {
	case enginecore.StorageMemory, enginecore.StorageSQLite, enginecore.StoragePostgres:
	default:
		return fmt.Errorf("%w: storage driver %q", ErrInvalid, c.Storage.Driver)
	}
	switch core.Driver(c.Archive.Driver) {
	case core.DriverFilesystem, core.DriverMemory:
	case core.DriverS3:
		if c.Archive.S3.Bucket == "" {
			return fmt.Errorf("%w: s3 archive requires a bucket", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: archive driver %q", ErrInvalid, c.Archive.Driver)
	}
	switch strings.ToLower(c.Metrics.Backend) {
	case "", "none", "prometheus", "expvar":
	default:
		return fmt.Errorf("%w: metrics backend %q", ErrInvalid, c.Metrics.Backend)
	}
	if c.Engine.StageCount < 1 {
		return fmt.Errorf("%w: stage count %d", ErrInvalid, c.Engine.StageCount)
	}
	if c.Engine.MaxCableConnections < 1 {
		return fmt.Errorf("%w: max cable connections %d", ErrInvalid, c.Engine.MaxCableConnections)
	}
	return nil
}

// StorageOptions maps the storage section onto the store factory input.
func (c *Config) StorageOptions() enginecore.StorageConfig {
	return enginecore.StorageConfig{
		Driver:      enginecore.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// ArchiveOptions maps the archive section onto archive.Open input.
func (c *Config) ArchiveOptions() archive.Config {
	return archive.Config{
		Driver: core.Driver(c.Archive.Driver),
		Root:   c.Archive.FSRoot,
		S3: s3.Config{
			Bucket:          c.Archive.S3.Bucket,
			Region:          c.Archive.S3.Region,
			Endpoint:        c.Archive.S3.Endpoint,
			PathStyle:       c.Archive.S3.PathStyle,
			AccessKeyID:     c.Archive.S3.AccessKeyID,
			SecretAccessKey: c.Archive.S3.SecretAccessKey,
			SessionToken:    c.Archive.S3.SessionToken,
		},
	}
}

// LogOptions maps the logging section onto the zap logger factory input.
func (c *Config) LogOptions() observability.LogConfig {
	return observability.LogConfig{Level: c.Logging.Level, Format: c.Logging.Format}
}
