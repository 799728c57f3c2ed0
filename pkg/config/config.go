package config

import "time"

// Config is the root configuration structure for warden. It contains all
// configuration sections for the enforcement engine, policy sources, the
// audit trail, approval storage, and telemetry.
type Config struct {
	// Engine contains enforcement engine timing bounds.
	Engine EngineConfig `yaml:"engine"`

	// Policies configures where policy documents are loaded from.
	Policies PoliciesConfig `yaml:"policies"`

	// Compiler configures policy-to-rule compilation.
	Compiler CompilerConfig `yaml:"compiler"`

	// Audit configures the decision log and its retention.
	Audit AuditConfig `yaml:"audit"`

	// Approvals configures durable approval request storage.
	Approvals ApprovalsConfig `yaml:"approvals"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains enforcement engine settings.
type EngineConfig struct {
	// LookupTimeout bounds each external data lookup during condition
	// evaluation. An expired lookup fails the predicate closed.
	// Default: 500ms
	LookupTimeout time.Duration `yaml:"lookup_timeout"`

	// AuditTimeout bounds the audit append at the end of each
	// enforcement call.
	// Default: 5s
	AuditTimeout time.Duration `yaml:"audit_timeout"`
}

// PoliciesConfig contains policy source settings.
type PoliciesConfig struct {
	// Source selects the policy store backend: "memory" or "file".
	// Default: "memory"
	Source string `yaml:"source"`

	// Path is the directory of policy YAML documents for the file source.
	// Default: "policies/"
	Path string `yaml:"path"`

	// Watch enables filesystem watching of Path; edits trigger a reload
	// and an index rebuild without a restart.
	// Default: true
	Watch bool `yaml:"watch"`
}

// CompilerConfig contains policy compilation settings.
type CompilerConfig struct {
	// MaxConditionDepth caps the depth of compiled condition trees.
	// Default: 8
	MaxConditionDepth int `yaml:"max_condition_depth"`
}

// AuditConfig contains decision log settings.
type AuditConfig struct {
	// Backend selects the audit storage: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file for the sqlite backend.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// RetentionDays is how long entries are kept. 0 keeps them forever.
	// Default: 365
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete writes pruned entries to JSONL archives first.
	// Default: true
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the directory archives are written to.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`
}

// ApprovalsConfig contains approval request storage settings.
type ApprovalsConfig struct {
	// Backend selects the approval store: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file for the sqlite backend.
	// Default: "data/approvals.db"
	Path string `yaml:"path"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes every metric name.
	// Default: "warden"
	Namespace string `yaml:"namespace"`

	// ListenAddress is where the metrics HTTP handler listens when the
	// embedding application serves it.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`
}
