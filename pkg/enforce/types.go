package enforce

import (
	"context"
	"strings"
	"time"

	"fleetgrid/warden/pkg/audit"
	"fleetgrid/warden/pkg/rules"
)

// Decision is the outcome of an enforcement call.
type Decision string

const (
	DecisionAllow           Decision = "allow"
	DecisionWarn            Decision = "warn"
	DecisionRequireApproval Decision = "require_approval"
	DecisionBlock           Decision = "block"
)

// decisionRank orders decisions by severity. Aggregation always takes the
// most severe contribution; block can never be softened by a later allow.
var decisionRank = map[Decision]int{
	DecisionAllow:           0,
	DecisionWarn:            1,
	DecisionRequireApproval: 2,
	DecisionBlock:           3,
}

// MoreSevere returns the more severe of two decisions.
func MoreSevere(a, b Decision) Decision {
	if decisionRank[b] > decisionRank[a] {
		return b
	}
	return a
}

// Context describes one attempted operation submitted for enforcement.
type Context struct {
	// RequestID identifies the attempt. Re-submitting the same request id
	// and timing does not produce a second audit entry.
	RequestID string `json:"request_id"`

	TenantID string `json:"tenant_id"`

	// Actor is the user or system initiating the operation.
	Actor string `json:"actor"`

	// Module and Operation name the attempted change, e.g. module "fuel"
	// and operation "purchase". Operation may also carry the full dotted
	// name ("fuel.purchase"), in which case Module is optional.
	Module    string       `json:"module"`
	Operation string       `json:"operation"`
	Timing    rules.Timing `json:"timing"`

	// Payload is the snapshot of the change being attempted: the fields
	// rule conditions resolve against.
	Payload map[string]any `json:"payload"`
}

// DottedOperation returns the full module.verb operation name rules are
// indexed under.
func (c *Context) DottedOperation() string {
	if strings.ContainsRune(c.Operation, '.') || c.Module == "" {
		return c.Operation
	}
	return c.Module + "." + c.Operation
}

// Validate checks the context carries what enforcement needs.
func (c *Context) Validate() error {
	switch {
	case c.RequestID == "":
		return &ContextError{Field: "request_id", Reason: "required"}
	case c.TenantID == "":
		return &ContextError{Field: "tenant_id", Reason: "required"}
	case c.Operation == "":
		return &ContextError{Field: "operation", Reason: "required"}
	case c.Timing != rules.TimingBefore && c.Timing != rules.TimingAfter:
		return &ContextError{Field: "timing", Reason: "must be before or after"}
	}
	return nil
}

// RuleEvaluation records how one rule fared during a call. Rules that were
// looked up but did not match still appear, with Matched false.
type RuleEvaluation struct {
	RuleID   string     `json:"rule_id"`
	RuleName string     `json:"rule_name"`
	Kind     rules.Kind `json:"kind"`

	Matched bool `json:"matched"`

	// Degraded is set when the rule's conditions could not be cleanly
	// resolved and the fail-closed path decided the outcome instead.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Decision is the rule's contribution, empty for non-matching rules.
	Decision Decision `json:"decision,omitempty"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e *RuleEvaluation) outcome() audit.RuleOutcome {
	return audit.RuleOutcome{
		RuleID:         e.RuleID,
		RuleName:       e.RuleName,
		Kind:           string(e.Kind),
		Matched:        e.Matched,
		Degraded:       e.Degraded,
		DegradedReason: e.DegradedReason,
		Decision:       string(e.Decision),
		Message:        e.Message,
		Error:          e.Error,
	}
}

// Result is the outcome of one enforcement call.
type Result struct {
	Decision Decision `json:"decision"`

	// Evaluations lists every rule considered, in evaluation order.
	Evaluations []RuleEvaluation `json:"evaluations"`

	// Messages are the user-facing messages of matched rules, in rule
	// priority order.
	Messages []string `json:"messages,omitempty"`

	// Approvers names the roles whose approval the operation requires,
	// populated when Decision is require_approval.
	Approvers []string `json:"approvers,omitempty"`

	// Metadata carries calculate-rule outputs keyed by output name.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Degraded is true if any rule evaluation was degraded.
	Degraded bool `json:"degraded"`

	// AuditEntryID is the id of the audit entry recording this call.
	AuditEntryID string `json:"audit_entry_id"`

	// IndexVersion identifies the rule snapshot the decision used.
	IndexVersion int64 `json:"index_version"`

	Duration time.Duration `json:"duration"`
}

// Allowed reports whether the operation may proceed immediately.
func (r *Result) Allowed() bool {
	return r.Decision == DecisionAllow || r.Decision == DecisionWarn
}

// DataAccessor resolves lookup-sourced condition fields from systems of
// record the payload does not carry (driver licensing, vehicle maintenance
// state). Implementations must honor ctx cancellation; the engine bounds
// each lookup with a timeout and fails the predicate closed when it
// expires.
type DataAccessor interface {
	Lookup(ctx context.Context, req *Context, field string) (any, error)
}

// Metrics receives enforcement telemetry. The engine calls it on every
// enforce, rebuild and audit append; a nil-safe no-op implementation is
// used when none is configured.
type Metrics interface {
	RecordEnforcement(tenantID string, decision Decision, duration time.Duration)
	RecordDegraded(tenantID string)
	RecordIndexRebuild(ruleCount int)
	RecordAuditAppend(success bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordEnforcement(string, Decision, time.Duration) {}
func (nopMetrics) RecordDegraded(string)                            {}
func (nopMetrics) RecordIndexRebuild(int)                           {}
func (nopMetrics) RecordAuditAppend(bool)                           {}
