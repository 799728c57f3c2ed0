package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a YAML configuration file. Fields the file does
// not set take their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks configuration consistency beyond what defaults cover.
func (c *Config) Validate() error {
	switch c.Policies.Source {
	case "memory", "file":
	default:
		return fmt.Errorf("policies.source must be memory or file, got %q", c.Policies.Source)
	}

	switch c.Audit.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("audit.backend must be memory or sqlite, got %q", c.Audit.Backend)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative")
	}

	switch c.Approvals.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("approvals.backend must be memory or sqlite, got %q", c.Approvals.Backend)
	}

	switch c.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level must be debug, info, warn or error, got %q", c.Telemetry.Logging.Level)
	}
	switch c.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format must be json or text, got %q", c.Telemetry.Logging.Format)
	}

	if c.Compiler.MaxConditionDepth < 1 {
		return fmt.Errorf("compiler.max_condition_depth must be at least 1")
	}
	return nil
}
