package compiler

import (
	"fmt"

	"github.com/google/uuid"

	"fleetgrid/warden/pkg/policy"
	"fleetgrid/warden/pkg/rules"
)

// Warning reports a requirement the compiler could not turn into a rule, or
// a rule it had to adjust. Warnings never prevent policy activation.
type Warning struct {
	PolicyID      string `json:"policy_id"`
	RequirementID string `json:"requirement_id"`
	Message       string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s/%s: %s", w.PolicyID, w.RequirementID, w.Message)
}

// Result is the outcome of compiling one policy version.
type Result struct {
	Rules    []*rules.CompiledRule
	Warnings []Warning

	// RequirementCount is the number of requirements in the source
	// policy, compiled or not.
	RequirementCount int
}

// Coverage returns the fraction of requirements that compiled to a rule.
// A value below 1.0 means the coverage report should flag the policy.
func (r *Result) Coverage() float64 {
	if r.RequirementCount == 0 {
		return 1.0
	}
	return float64(len(r.Rules)) / float64(r.RequirementCount)
}

// Options configures a Compiler.
type Options struct {
	// FieldUnits maps dot-path fields to their declared unit (e.g.
	// "repair.cost" -> "usd"). Requirements whose declared unit is in a
	// different unit class than the field's are left uncompiled.
	// Defaults to DefaultFieldUnits.
	FieldUnits map[string]string

	// Triggers maps subject keywords to operations, extending the
	// built-in table (see inferTrigger).
	Triggers map[string]string

	// MaxConditionDepth bounds compiled condition trees. Default: 16.
	MaxConditionDepth int
}

// Compiler derives CompiledRules from policies. It holds only immutable
// configuration and is safe for concurrent use.
type Compiler struct {
	fieldUnits map[string]string
	triggers   map[string]string
	maxDepth   int
}

// New creates a compiler. A nil options value uses the defaults.
func New(opts *Options) *Compiler {
	c := &Compiler{
		fieldUnits: DefaultFieldUnits(),
		triggers:   map[string]string{},
		maxDepth:   16,
	}
	if opts != nil {
		for k, v := range opts.FieldUnits {
			c.fieldUnits[k] = v
		}
		for k, v := range opts.Triggers {
			c.triggers[k] = v
		}
		if opts.MaxConditionDepth > 0 {
			c.maxDepth = opts.MaxConditionDepth
		}
	}
	return c
}

// Compile derives enforceable rules from an active policy. Compiling a
// non-active policy is an error; use Preview for drafts.
func (c *Compiler) Compile(p *policy.Policy) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("policy cannot be nil")
	}
	if p.Status != policy.StatusActive {
		return nil, fmt.Errorf("policy %q is %s, only active policies compile to enforceable rules", p.ID, p.Status)
	}
	return c.compile(p, true)
}

// Preview compiles a policy of any lifecycle state in dry-run mode. The
// produced rules are flagged non-enforceable and are rejected by the rule
// index; the result exists to let authors inspect what a draft would
// compile to before activation.
func (c *Compiler) Preview(p *policy.Policy) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("policy cannot be nil")
	}
	return c.compile(p, false)
}

func (c *Compiler) compile(p *policy.Policy, enforceable bool) (*Result, error) {
	if err := policy.Validate(p); err != nil {
		return nil, err
	}

	result := &Result{RequirementCount: len(p.Requirements)}
	for i := range p.Requirements {
		req := &p.Requirements[i]
		rule, warns := c.compileRequirement(p, req, enforceable)
		result.Warnings = append(result.Warnings, warns...)
		if rule != nil {
			result.Rules = append(result.Rules, rule)
		}
	}
	rules.SortByPriority(result.Rules)
	return result, nil
}

// compileRequirement turns one requirement into at most one rule. A nil
// rule with warnings means the requirement was left uncompiled.
func (c *Compiler) compileRequirement(p *policy.Policy, req *policy.Requirement, enforceable bool) (*rules.CompiledRule, []Warning) {
	var warns []Warning
	warn := func(format string, args ...any) {
		warns = append(warns, Warning{
			PolicyID:      p.ID,
			RequirementID: req.ID,
			Message:       fmt.Sprintf(format, args...),
		})
	}

	kind, ok := classify(req)
	if !ok {
		warn("requirement cannot be mapped to a rule kind; left uncompiled")
		return nil, warns
	}

	trigger, ok := c.inferTrigger(p, req)
	if !ok {
		warn("cannot infer a trigger operation from subject %q; left uncompiled", req.Subject)
		return nil, warns
	}

	if msg, ok := c.checkUnits(req); !ok {
		warn("%s", msg)
		return nil, warns
	}

	cond, err := c.buildCondition(kind, req)
	if err != nil {
		warn("condition: %v; left uncompiled", err)
		return nil, warns
	}
	if cond != nil && cond.Depth() > c.maxDepth {
		warn("condition tree exceeds maximum depth %d; left uncompiled", c.maxDepth)
		return nil, warns
	}

	actions := buildActions(kind, req)

	// After-timing rules observe completed operations and can never undo
	// or gate them. A blocking or approval action on an after trigger is an
	// authoring error: flag it and demote to warn.
	if trigger.Timing == rules.TimingAfter {
		for _, a := range actions {
			switch a.Type {
			case rules.ActionTypeBlock:
				a.Type = rules.ActionTypeWarn
				warn("block action on an after-timing trigger demoted to warn")
			case rules.ActionTypeRequireApproval:
				a.Type = rules.ActionTypeWarn
				warn("require_approval action on an after-timing trigger demoted to warn")
			}
		}
	}

	return &rules.CompiledRule{
		ID:            uuid.New().String(),
		Name:          p.Name + "/" + req.ID,
		PolicyID:      p.ID,
		PolicyVersion: p.Version,
		TenantID:      p.TenantID,
		Kind:          kind,
		Trigger:       trigger,
		Condition:     cond,
		Actions:       actions,
		Priority:      kindPriority(kind),
		Enforceable:   enforceable,
		Description:   req.Constraint,
	}, warns
}

// kindPriority orders rules for evaluation and conflict reporting: gates
// first, then approvals, then derived values, then observers.
func kindPriority(kind rules.Kind) int {
	switch kind {
	case rules.KindValidation:
		return 10
	case rules.KindApproval:
		return 20
	case rules.KindCalculation:
		return 30
	case rules.KindNotification:
		return 40
	case rules.KindAutomation:
		return 50
	default:
		return 100
	}
}
