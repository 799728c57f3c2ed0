package rules

import (
	"sort"
	"strings"
)

// Kind classifies a compiled rule by the shape of the requirement it was
// derived from. The enforcement engine dispatches on kind: validation and
// approval rules fail closed on evaluation errors, automation and
// notification rules never block.
type Kind string

const (
	KindValidation   Kind = "validation"   // hard gate on a numeric or categorical constraint
	KindAutomation   Kind = "automation"   // recurring trigger-and-create behavior
	KindApproval     Kind = "approval"     // threshold gated behind an approver role
	KindNotification Kind = "notification" // informs a recipient, never blocks
	KindCalculation  Kind = "calculation"  // derives a score or value
)

// Timing determines whether a rule is evaluated before the attempted
// operation (and may prevent it) or after it completed (observe-only).
type Timing string

const (
	TimingBefore Timing = "before"
	TimingAfter  Timing = "after"
)

// Trigger is the (operation, timing) pair a rule is evaluated against.
// Operations are dotted module.verb names, e.g. "vehicle.assign".
type Trigger struct {
	Operation string `json:"operation"`
	Timing    Timing `json:"timing"`
}

// Module returns the module portion of the trigger operation
// ("vehicle.assign" -> "vehicle").
func (t Trigger) Module() string {
	if i := strings.IndexByte(t.Operation, '.'); i >= 0 {
		return t.Operation[:i]
	}
	return t.Operation
}

// CompiledRule is a deterministic, machine-executable derivation of one
// policy requirement. Every compiled rule traces to exactly one policy
// version; when that version is superseded, its rules are deactivated
// atomically as a set by the next index rebuild.
type CompiledRule struct {
	// ID uniquely identifies this rule instance. IDs are not stable
	// across recompilations; semantic identity is (PolicyID,
	// PolicyVersion, Name).
	ID string `json:"id"`

	// Name is a stable, human-readable rule name derived from the
	// requirement it was compiled from.
	Name string `json:"name"`

	// Source policy version this rule was derived from.
	PolicyID      string `json:"policy_id"`
	PolicyVersion int    `json:"policy_version"`
	TenantID      string `json:"tenant_id"`

	Kind    Kind    `json:"kind"`
	Trigger Trigger `json:"trigger"`

	// Condition is the root of the condition tree. A nil condition means
	// the rule always applies.
	Condition *Condition `json:"condition,omitempty"`

	// Actions are executed in order when the condition is satisfied.
	Actions []*Action `json:"actions"`

	// Priority orders evaluation and conflict reporting; lower values are
	// evaluated and reported first.
	Priority int `json:"priority"`

	// Enforceable is false for rules compiled from draft policies in
	// dry-run mode. Non-enforceable rules never enter the index.
	Enforceable bool `json:"enforceable"`

	// Description carries the original requirement text for audit display.
	Description string `json:"description,omitempty"`
}

// HasCondition returns true if the rule has a condition tree.
func (r *CompiledRule) HasCondition() bool {
	return r.Condition != nil
}

// SortByPriority orders rules by ascending priority, then by name for a
// deterministic order among equal priorities.
func SortByPriority(rs []*CompiledRule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority < rs[j].Priority
		}
		return rs[i].Name < rs[j].Name
	})
}
