package config

import "time"

// Default returns a configuration with every section set to its default.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			LookupTimeout: 500 * time.Millisecond,
			AuditTimeout:  5 * time.Second,
		},
		Policies: PoliciesConfig{
			Source: "memory",
			Path:   "policies/",
			Watch:  true,
		},
		Compiler: CompilerConfig{
			MaxConditionDepth: 8,
		},
		Audit: AuditConfig{
			Backend:             "memory",
			Path:                "data/audit.db",
			RetentionDays:       365,
			PruneSchedule:       "0 3 * * *",
			ArchiveBeforeDelete: true,
			ArchivePath:         "data/archives/",
		},
		Approvals: ApprovalsConfig{
			Backend: "memory",
			Path:    "data/approvals.db",
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Metrics: MetricsConfig{
				Enabled:       true,
				Namespace:     "warden",
				ListenAddress: "127.0.0.1:9090",
			},
		},
	}
}

// applyDefaults fills zero-valued fields with their defaults.
func applyDefaults(c *Config) {
	d := Default()

	if c.Engine.LookupTimeout == 0 {
		c.Engine.LookupTimeout = d.Engine.LookupTimeout
	}
	if c.Engine.AuditTimeout == 0 {
		c.Engine.AuditTimeout = d.Engine.AuditTimeout
	}

	if c.Policies.Source == "" {
		c.Policies.Source = d.Policies.Source
	}
	if c.Policies.Path == "" {
		c.Policies.Path = d.Policies.Path
	}

	if c.Compiler.MaxConditionDepth == 0 {
		c.Compiler.MaxConditionDepth = d.Compiler.MaxConditionDepth
	}

	if c.Audit.Backend == "" {
		c.Audit.Backend = d.Audit.Backend
	}
	if c.Audit.Path == "" {
		c.Audit.Path = d.Audit.Path
	}
	if c.Audit.PruneSchedule == "" {
		c.Audit.PruneSchedule = d.Audit.PruneSchedule
	}
	if c.Audit.ArchivePath == "" {
		c.Audit.ArchivePath = d.Audit.ArchivePath
	}

	if c.Approvals.Backend == "" {
		c.Approvals.Backend = d.Approvals.Backend
	}
	if c.Approvals.Path == "" {
		c.Approvals.Path = d.Approvals.Path
	}

	if c.Telemetry.Logging.Level == "" {
		c.Telemetry.Logging.Level = d.Telemetry.Logging.Level
	}
	if c.Telemetry.Logging.Format == "" {
		c.Telemetry.Logging.Format = d.Telemetry.Logging.Format
	}
	if c.Telemetry.Metrics.Namespace == "" {
		c.Telemetry.Metrics.Namespace = d.Telemetry.Metrics.Namespace
	}
	if c.Telemetry.Metrics.ListenAddress == "" {
		c.Telemetry.Metrics.ListenAddress = d.Telemetry.Metrics.ListenAddress
	}
}
