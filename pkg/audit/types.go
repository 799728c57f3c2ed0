package audit

import (
	"context"
	"time"
)

// RuleOutcome records how one rule fared during an enforcement call,
// including rules that were considered but did not match. Negative
// outcomes matter for audit: "rule didn't apply" and "rule couldn't be
// evaluated" are distinct, recorded via Degraded.
type RuleOutcome struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Kind     string `json:"kind"`

	// Matched is true if the rule's conditions were satisfied and its
	// actions executed.
	Matched bool `json:"matched"`

	// Degraded is true if the conditions could not be cleanly evaluated
	// (lookup timeout, expression error) and the rule was failed closed.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Decision is this rule's contribution to the final decision, empty
	// if the rule did not match.
	Decision string `json:"decision,omitempty"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Entry is the immutable record of one enforcement call. Hash links the
// entry to its predecessor; Seq orders the chain.
type Entry struct {
	ID  string `json:"id"`
	Seq int64  `json:"seq"`

	RequestID string `json:"request_id"`
	TenantID  string `json:"tenant_id"`
	Module    string `json:"module"`
	Operation string `json:"operation"`
	Timing    string `json:"timing"`
	Actor     string `json:"actor"`

	// Payload is the context snapshot of the attempted change.
	Payload map[string]any `json:"payload,omitempty"`

	// IndexVersion identifies the rule index snapshot the decision was
	// made against, for reproducibility.
	IndexVersion int64 `json:"index_version"`

	Evaluations []RuleOutcome `json:"evaluations"`
	Decision    string        `json:"decision"`
	Messages    []string      `json:"messages,omitempty"`
	Approvers   []string      `json:"approvers,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// Query filters entries for reads and aggregate statistics.
type Query struct {
	TenantID string
	RuleID   string
	Decision string

	// Start and End bound the time window (inclusive).
	Start *time.Time
	End   *time.Time

	Limit  int
	Offset int
}

// Stats are aggregate counts over the entries a query matches, computed
// from the log.
type Stats struct {
	Total      int64            `json:"total"`
	ByDecision map[string]int64 `json:"by_decision"`
	ByRule     map[string]int64 `json:"by_rule"`
	ByTenant   map[string]int64 `json:"by_tenant"`
}

// Storage is the persistence contract for audit entries. Implementations
// must be safe for concurrent use. Delete exists solely for retention
// pruning and is not reachable through the Log's public surface.
type Storage interface {
	// Append persists one entry. Entries arrive with Seq and Hash set.
	Append(ctx context.Context, e *Entry) error

	// Last returns the entry with the highest Seq, or nil if empty.
	Last(ctx context.Context) (*Entry, error)

	// FindByRequest returns the entry recorded for a request id and
	// timing, or nil if none exists. Used for idempotent appends.
	FindByRequest(ctx context.Context, requestID, timing string) (*Entry, error)

	// Query returns matching entries in ascending Seq order.
	Query(ctx context.Context, q *Query) ([]*Entry, error)

	// Count returns the number of matching entries.
	Count(ctx context.Context, q *Query) (int64, error)

	// Stats aggregates matching entries.
	Stats(ctx context.Context, q *Query) (*Stats, error)

	// Delete removes matching entries and returns how many. Retention
	// pruning only.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases resources.
	Close() error
}
