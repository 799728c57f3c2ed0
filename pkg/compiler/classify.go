package compiler

import (
	"fmt"
	"strings"

	"fleetgrid/warden/pkg/policy"
	"fleetgrid/warden/pkg/rules"
)

// classify maps a requirement to a rule kind by its structured fields and
// the verb pattern of its constraint text. Structured fields are the
// strongest signal; verb patterns cover requirements whose author supplied
// only text and a field/value pair. The checks run in a fixed order so
// classification is deterministic.
func classify(req *policy.Requirement) (rules.Kind, bool) {
	text := strings.ToLower(req.Constraint)

	switch {
	case req.ApproverRole != "",
		strings.Contains(text, "requires approval"),
		strings.Contains(text, "require approval"),
		strings.Contains(text, "approved by"):
		return rules.KindApproval, true

	case req.Workflow != "",
		strings.Contains(text, "automatically"),
		strings.Contains(text, "schedule a"),
		strings.Contains(text, "every "):
		return rules.KindAutomation, true

	case req.Expression != "",
		strings.Contains(text, "calculate"),
		strings.Contains(text, "computed as"),
		strings.Contains(text, "score"):
		return rules.KindCalculation, true

	case req.Recipient != "",
		strings.Contains(text, "notify"),
		strings.Contains(text, "alert "),
		strings.Contains(text, "inform "):
		return rules.KindNotification, true

	case req.Field != "" && req.Value != nil,
		strings.Contains(text, "must "),
		strings.Contains(text, "may not"),
		strings.Contains(text, "cannot"):
		return rules.KindValidation, true
	}

	return "", false
}

// buildCondition constructs the condition tree for a requirement according
// to its kind.
//
// Validation requirements state what must hold; the compiled rule fires on
// the violation, so the requirement predicate is wrapped in NOT. With the
// evaluator's undefined semantics (positive comparisons against missing
// data are false) this yields fail-closed gates: missing data means the
// requirement is not known to hold, so the gate fires.
//
// Approval requirements fire when the threshold predicate holds and the
// call was not already pre-approved (payload key "approval.granted").
func (c *Compiler) buildCondition(kind rules.Kind, req *policy.Requirement) (*rules.Condition, error) {
	pred, err := buildPredicate(req)
	if err != nil {
		return nil, err
	}

	switch kind {
	case rules.KindValidation:
		if pred == nil {
			return nil, fmt.Errorf("validation requirement needs a field and value")
		}
		return &rules.Condition{
			Type:     rules.ConditionTypeNot,
			Children: []*rules.Condition{pred},
		}, nil

	case rules.KindApproval:
		if pred == nil {
			return nil, fmt.Errorf("approval requirement needs a threshold field and value")
		}
		notPreApproved := &rules.Condition{
			Type: rules.ConditionTypeNot,
			Children: []*rules.Condition{{
				Type:     rules.ConditionTypeSimple,
				Field:    "approval.granted",
				Operator: rules.OperatorEqual,
				Value:    true,
				Source:   rules.SourceContext,
			}},
		}
		return &rules.Condition{
			Type:     rules.ConditionTypeAll,
			Children: []*rules.Condition{pred, notPreApproved},
		}, nil

	case rules.KindNotification, rules.KindAutomation:
		// Observers fire on the triggering situation when one is given,
		// or unconditionally on the trigger otherwise.
		return pred, nil

	case rules.KindCalculation:
		// Calculations always run on the trigger; the expression lives
		// in the action.
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown rule kind %q", kind)
	}
}

// buildPredicate builds the simple predicate a requirement's field,
// operator and value describe, or nil if the requirement has no field.
func buildPredicate(req *policy.Requirement) (*rules.Condition, error) {
	if req.Field == "" {
		return nil, nil
	}
	if req.Value == nil && req.Expression == "" {
		return nil, fmt.Errorf("field %q has no comparison value", req.Field)
	}

	op, err := parseOperator(req.Operator, req.Constraint)
	if err != nil {
		return nil, err
	}

	source := rules.SourceContext
	switch strings.ToLower(req.Source) {
	case "", "context":
	case "lookup":
		source = rules.SourceLookup
	case "calculated":
		source = rules.SourceCalculated
	default:
		return nil, fmt.Errorf("unknown data source %q", req.Source)
	}

	return &rules.Condition{
		Type:       rules.ConditionTypeSimple,
		Field:      req.Field,
		Operator:   op,
		Value:      req.Value,
		Source:     source,
		Expression: req.Expression,
		Unit:       req.Unit,
	}, nil
}

// parseOperator resolves an explicit operator string, falling back to the
// comparative phrasing of the constraint text ("over", "at least", ...)
// and finally to equality.
func parseOperator(explicit, constraint string) (rules.Operator, error) {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "==", "equals", "is":
		return rules.OperatorEqual, nil
	case "!=", "not-equals", "not_equals":
		return rules.OperatorNotEqual, nil
	case ">", "greater-than", "greater_than":
		return rules.OperatorGreaterThan, nil
	case "<", "less-than", "less_than":
		return rules.OperatorLessThan, nil
	case ">=", "greater-or-equal", "greater_or_equal":
		return rules.OperatorGreaterEqual, nil
	case "<=", "less-or-equal", "less_or_equal":
		return rules.OperatorLessEqual, nil
	case "in":
		return rules.OperatorIn, nil
	case "contains":
		return rules.OperatorContains, nil
	case "matches":
		return rules.OperatorMatches, nil
	case "":
	default:
		return "", fmt.Errorf("unknown operator %q", explicit)
	}

	text := strings.ToLower(constraint)
	switch {
	case strings.Contains(text, "at least"), strings.Contains(text, "or more"):
		return rules.OperatorGreaterEqual, nil
	case strings.Contains(text, "at most"), strings.Contains(text, "no more than"):
		return rules.OperatorLessEqual, nil
	case strings.Contains(text, "over"), strings.Contains(text, "exceed"), strings.Contains(text, "more than"), strings.Contains(text, "above"):
		return rules.OperatorGreaterThan, nil
	case strings.Contains(text, "under"), strings.Contains(text, "below"), strings.Contains(text, "less than"):
		return rules.OperatorLessThan, nil
	}
	return rules.OperatorEqual, nil
}

// buildActions constructs the ordered action list for a requirement.
func buildActions(kind rules.Kind, req *policy.Requirement) []*rules.Action {
	msg := req.Message
	if msg == "" {
		msg = req.Constraint
	}

	switch kind {
	case rules.KindValidation:
		return []*rules.Action{{
			Type:    rules.ActionTypeBlock,
			Message: msg,
		}}

	case rules.KindApproval:
		return []*rules.Action{{
			Type:    rules.ActionTypeRequireApproval,
			Target:  req.ApproverRole,
			Message: msg,
		}}

	case rules.KindNotification:
		return []*rules.Action{{
			Type:    rules.ActionTypeNotify,
			Target:  req.Recipient,
			Message: msg,
		}}

	case rules.KindAutomation:
		return []*rules.Action{{
			Type:    rules.ActionTypeExecuteWorkflow,
			Target:  req.Workflow,
			Message: msg,
		}}

	case rules.KindCalculation:
		outputKey := req.OutputKey
		if outputKey == "" {
			outputKey = req.ID
		}
		return []*rules.Action{{
			Type:    rules.ActionTypeCalculate,
			Message: msg,
			Parameters: map[string]any{
				"expression": req.Expression,
				"output_key": outputKey,
			},
		}}

	default:
		return nil
	}
}
