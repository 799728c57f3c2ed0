package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
policies:
  source: file
  path: /etc/warden/policies
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Policies.Source != "file" || cfg.Policies.Path != "/etc/warden/policies" {
		t.Errorf("explicit values lost: %+v", cfg.Policies)
	}
	if cfg.Engine.LookupTimeout != 500*time.Millisecond {
		t.Errorf("engine.lookup_timeout = %v, want default 500ms", cfg.Engine.LookupTimeout)
	}
	if cfg.Audit.Backend != "memory" || cfg.Audit.PruneSchedule != "0 3 * * *" {
		t.Errorf("audit defaults not applied: %+v", cfg.Audit)
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("logging defaults not applied: %+v", cfg.Telemetry.Logging)
	}
	if cfg.Compiler.MaxConditionDepth != 8 {
		t.Errorf("compiler.max_condition_depth = %d, want default 8", cfg.Compiler.MaxConditionDepth)
	}
	if cfg.Telemetry.Metrics.Namespace != "warden" {
		t.Errorf("metrics.namespace = %q, want default", cfg.Telemetry.Metrics.Namespace)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
engine:
  lookup_timeout: 250ms
  audit_timeout: 2s
audit:
  backend: sqlite
  path: /var/lib/warden/audit.db
  retention_days: 30
telemetry:
  logging:
    level: debug
    format: text
  metrics:
    enabled: true
    listen_address: ":9100"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.LookupTimeout != 250*time.Millisecond || cfg.Engine.AuditTimeout != 2*time.Second {
		t.Errorf("engine overrides lost: %+v", cfg.Engine)
	}
	if cfg.Audit.Backend != "sqlite" || cfg.Audit.RetentionDays != 30 {
		t.Errorf("audit overrides lost: %+v", cfg.Audit)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("logging overrides lost: %+v", cfg.Telemetry.Logging)
	}
	if cfg.Telemetry.Metrics.ListenAddress != ":9100" {
		t.Errorf("metrics listen address lost: %q", cfg.Telemetry.Metrics.ListenAddress)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeConfig(t, "{not yaml: [")
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad policy source", func(c *Config) { c.Policies.Source = "database" }, "policies.source"},
		{"bad audit backend", func(c *Config) { c.Audit.Backend = "postgres" }, "audit.backend"},
		{"negative retention", func(c *Config) { c.Audit.RetentionDays = -1 }, "retention_days"},
		{"bad approvals backend", func(c *Config) { c.Approvals.Backend = "redis" }, "approvals.backend"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "logging.format"},
		{"zero condition depth", func(c *Config) { c.Compiler.MaxConditionDepth = 0 }, "max_condition_depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error mentioning %q", tt.wantErr)
			}
		})
	}
}
