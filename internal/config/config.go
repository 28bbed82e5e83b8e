package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	NodeID          string        `yaml:"node_id"`
	Host            string        `yaml:"host"`
	HealthPort      int           `yaml:"health_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	// DataDirs lists storage locations, optionally prefixed with a storage
	// type, e.g. "[SSD]/data/1".
	DataDirs []string `yaml:"data_dirs"`

	// DirPermission is the octal permission mode storage directories are
	// expected to have, e.g. "0700".
	DirPermission string `yaml:"dir_permission"`
}

// Permission returns the parsed directory permission mode. Validate must
// have accepted the configuration first.
func (c *StorageConfig) Permission() os.FileMode {
	mode, _ := strconv.ParseUint(c.DirPermission, 8, 32)
	return os.FileMode(mode)
}

// DiskCheckConfig holds startup disk check configuration
type DiskCheckConfig struct {
	Timeout                time.Duration `yaml:"timeout"`
	MinGap                 time.Duration `yaml:"min_gap"`
	FailedVolumesTolerated int           `yaml:"failed_volumes_tolerated"`
	Workers                int           `yaml:"workers"`
	QueueSize              int           `yaml:"queue_size"`
	DegradedUsagePercent   float64       `yaml:"degraded_usage_percent"`
}

// GossipConfig holds gossip protocol configuration
type GossipConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BindPort       int           `yaml:"bind_port"`
	SeedNodes      []string      `yaml:"seed_nodes"`
	GossipInterval time.Duration `yaml:"gossip_interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the storage node startup
// checker
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	DiskCheck DiskCheckConfig `yaml:"disk_check"`
	Gossip    GossipConfig    `yaml:"gossip"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HealthPort == 0 {
		cfg.Server.HealthPort = 50053
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Storage.DirPermission == "" {
		cfg.Storage.DirPermission = "0700"
	}

	if cfg.DiskCheck.Timeout == 0 {
		cfg.DiskCheck.Timeout = 10 * time.Minute
	}
	if cfg.DiskCheck.MinGap == 0 {
		cfg.DiskCheck.MinGap = 15 * time.Minute
	}
	if cfg.DiskCheck.Workers == 0 {
		cfg.DiskCheck.Workers = 4
	}
	if cfg.DiskCheck.QueueSize == 0 {
		cfg.DiskCheck.QueueSize = 64
	}
	if cfg.DiskCheck.DegradedUsagePercent == 0 {
		cfg.DiskCheck.DegradedUsagePercent = 98.0
	}

	if cfg.Gossip.BindPort == 0 {
		cfg.Gossip.BindPort = 7946
	}
	if cfg.Gossip.GossipInterval == 0 {
		cfg.Gossip.GossipInterval = 200 * time.Millisecond
	}
	if cfg.Gossip.ProbeTimeout == 0 {
		cfg.Gossip.ProbeTimeout = 500 * time.Millisecond
	}
	if cfg.Gossip.ProbeInterval == 0 {
		cfg.Gossip.ProbeInterval = time.Second
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.NodeID == "" {
		return fmt.Errorf("server.node_id is required")
	}
	if len(c.Storage.DataDirs) == 0 {
		return fmt.Errorf("storage.data_dirs must list at least one directory")
	}
	if _, err := strconv.ParseUint(c.Storage.DirPermission, 8, 32); err != nil {
		return fmt.Errorf("storage.dir_permission %q is not a valid octal mode", c.Storage.DirPermission)
	}
	if c.DiskCheck.FailedVolumesTolerated < 0 {
		return fmt.Errorf("disk_check.failed_volumes_tolerated must not be negative")
	}
	if c.DiskCheck.DegradedUsagePercent <= 0 || c.DiskCheck.DegradedUsagePercent > 100 {
		return fmt.Errorf("disk_check.degraded_usage_percent must be between 0 and 100")
	}
	return nil
}
