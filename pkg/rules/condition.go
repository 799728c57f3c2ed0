package rules

// ConditionType represents the type of a condition node.
type ConditionType string

const (
	ConditionTypeSimple ConditionType = "simple" // field op value
	ConditionTypeAll    ConditionType = "all"    // AND of children
	ConditionTypeAny    ConditionType = "any"    // OR of children
	ConditionTypeNot    ConditionType = "not"    // NOT of its single child
)

// Operator represents a comparison operator in a simple condition.
type Operator string

const (
	OperatorEqual        Operator = "=="
	OperatorNotEqual     Operator = "!="
	OperatorGreaterThan  Operator = ">"
	OperatorLessThan     Operator = "<"
	OperatorGreaterEqual Operator = ">="
	OperatorLessEqual    Operator = "<="
	OperatorIn           Operator = "in"
	OperatorContains     Operator = "contains"
	OperatorMatches      Operator = "matches" // regex match
)

// Source identifies where a simple condition's field value is resolved from.
type Source string

const (
	// SourceContext reads the field directly from the enforcement payload
	// by dot-path. Missing paths resolve to undefined.
	SourceContext Source = "context"

	// SourceLookup resolves the field through the injected DataAccessor
	// (e.g. a driver's current license status). Lookups are bounded by a
	// timeout; errors degrade the evaluation rather than failing the call.
	SourceLookup Source = "lookup"

	// SourceCalculated evaluates a restricted arithmetic expression over
	// payload values. The expression language is a closed grammar, not a
	// scripting host.
	SourceCalculated Source = "calculated"
)

// Condition is a node in a rule's condition tree: either a single predicate
// (ConditionTypeSimple) or a boolean combinator over child conditions.
// Trees are built by the compiler and are finite and acyclic by
// construction; the compiler additionally enforces a maximum depth.
type Condition struct {
	Type ConditionType `json:"type"`

	// Simple predicate fields.
	Field    string   `json:"field,omitempty"`    // dot-path into payload or lookup key
	Operator Operator `json:"operator,omitempty"` // comparison operator
	Value    any      `json:"value,omitempty"`    // literal comparison value
	Source   Source   `json:"source,omitempty"`   // context, lookup or calculated

	// Expression is the arithmetic expression for SourceCalculated
	// predicates (e.g. "payload.cost * 1.2").
	Expression string `json:"expression,omitempty"`

	// Unit is the declared unit for numeric comparisons ("km", "usd",
	// "days", ...). Unit compatibility is validated at compile time.
	Unit string `json:"unit,omitempty"`

	// Children holds sub-conditions for all/any/not nodes.
	Children []*Condition `json:"children,omitempty"`
}

// IsSimple returns true if this node is a single predicate.
func (c *Condition) IsSimple() bool {
	return c.Type == ConditionTypeSimple
}

// IsCombinator returns true if this node combines child conditions.
func (c *Condition) IsCombinator() bool {
	return c.Type == ConditionTypeAll || c.Type == ConditionTypeAny || c.Type == ConditionTypeNot
}

// Depth returns the depth of the condition tree rooted at c.
func (c *Condition) Depth() int {
	if c == nil {
		return 0
	}
	max := 0
	for _, child := range c.Children {
		if d := child.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Predicates returns every simple predicate in the tree, depth-first.
func (c *Condition) Predicates() []*Condition {
	if c == nil {
		return nil
	}
	if c.IsSimple() {
		return []*Condition{c}
	}
	var out []*Condition
	for _, child := range c.Children {
		out = append(out, child.Predicates()...)
	}
	return out
}
