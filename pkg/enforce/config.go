package enforce

import "time"

// Config holds the engine's timing bounds.
type Config struct {
	// LookupTimeout bounds each DataAccessor lookup. An expired lookup
	// degrades the predicate to undefined rather than failing the call.
	LookupTimeout time.Duration `yaml:"lookup_timeout"`

	// AuditTimeout bounds the audit append at the end of each call.
	AuditTimeout time.Duration `yaml:"audit_timeout"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		LookupTimeout: 500 * time.Millisecond,
		AuditTimeout:  5 * time.Second,
	}
}
