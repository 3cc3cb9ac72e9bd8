package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration loaded from YAML.
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	Services struct {
		DispatchServicePort int `yaml:"dispatch_service_port"`
		AdminServicePort    int `yaml:"admin_service_port"`
	} `yaml:"services"`

	Queue struct {
		// SessionTTL is how long a driver may sit in a booth queue before
		// the maintenance sweep removes the stale entry.
		SessionTTL time.Duration `yaml:"session_ttl"`
		// RepairInterval is the cadence of the self-healing repair pass.
		RepairInterval time.Duration `yaml:"repair_interval"`
		// SnapshotCacheTTL bounds staleness of cached queue snapshots.
		SnapshotCacheTTL time.Duration `yaml:"snapshot_cache_ttl"`
	} `yaml:"queue"`
}

// LoadFromFile loads config from a YAML file, applies defaults, and
// validates required fields.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	// Services
	if cfg.Services.DispatchServicePort == 0 {
		cfg.Services.DispatchServicePort = 3000
	}
	if cfg.Services.AdminServicePort == 0 {
		cfg.Services.AdminServicePort = 3004
	}

	// Queue tuning
	if cfg.Queue.SessionTTL == 0 {
		cfg.Queue.SessionTTL = 12 * time.Hour
	}
	if cfg.Queue.RepairInterval == 0 {
		cfg.Queue.RepairInterval = 5 * time.Minute
	}
	if cfg.Queue.SnapshotCacheTTL == 0 {
		cfg.Queue.SnapshotCacheTTL = 10 * time.Second
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}

	// Queue tuning
	if c.Queue.SessionTTL < time.Minute {
		problems = append(problems, "queue.session_ttl must be at least 1m")
	}
	if c.Queue.RepairInterval < time.Second {
		problems = append(problems, "queue.repair_interval must be at least 1s")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
