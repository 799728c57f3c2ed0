package rules

// ActionType represents the effect a rule applies when its conditions are
// satisfied.
type ActionType string

const (
	ActionTypeBlock           ActionType = "block"            // refuse the operation with a message
	ActionTypeWarn            ActionType = "warn"             // allow but surface a warning message
	ActionTypeLog             ActionType = "log"              // write an audit note, no user-visible effect
	ActionTypeNotify          ActionType = "notify"           // fire-and-forget notification to a target
	ActionTypeRequireApproval ActionType = "require_approval" // gate the operation behind an approver role
	ActionTypeExecuteWorkflow ActionType = "execute_workflow" // hand off to an external workflow
	ActionTypeCalculate       ActionType = "calculate"        // compute a value into result metadata
)

// Action represents one effect in a rule's ordered action list.
type Action struct {
	Type ActionType `json:"type"`

	// Target names the recipient of the effect: an approver role for
	// require_approval, a role or user group for notify, a workflow id
	// for execute_workflow.
	Target string `json:"target,omitempty"`

	// Message is the human-readable message template. Occurrences of
	// {path} are expanded from the enforcement payload at execution time.
	Message string `json:"message,omitempty"`

	// Parameters holds action-specific settings, e.g. the expression and
	// output key for calculate actions.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// StringParameter returns the string value of a parameter, or "" if the
// parameter is absent or not a string.
func (a *Action) StringParameter(key string) string {
	if v, ok := a.Parameters[key].(string); ok {
		return v
	}
	return ""
}

// Blocking reports whether the action can prevent the underlying operation.
func (a *Action) Blocking() bool {
	return a.Type == ActionTypeBlock || a.Type == ActionTypeRequireApproval
}
