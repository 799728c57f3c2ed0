package policy

import "time"

// Status represents a policy version's lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"      // authored, not yet enforceable
	StatusActive     Status = "active"     // compiled and enforced
	StatusSuperseded Status = "superseded" // replaced by a newer version, retained for audit
)

// Category classifies the governance area a policy belongs to.
type Category string

const (
	CategorySafety      Category = "safety"
	CategoryMaintenance Category = "maintenance"
	CategoryCompliance  Category = "compliance"
	CategoryOperational Category = "operational"
)

// Requirement is one structured requirement inside a policy: the unit the
// compiler derives rules from. Constraint carries the authored text; the
// remaining fields carry the machine-usable parts the author (or an
// upstream drafting tool) extracted from it. Which fields are populated
// determines, together with the constraint's verb pattern, what rule kind
// the requirement compiles to.
type Requirement struct {
	// ID is stable within the policy lineage and names derived rules.
	ID string `yaml:"id" json:"id"`

	// Subject is the operation phrase the requirement governs, e.g.
	// "assigning a vehicle" or "approving a repair".
	Subject string `yaml:"subject" json:"subject"`

	// Constraint is the authored requirement text, retained verbatim for
	// audit display and used for verb-pattern classification.
	Constraint string `yaml:"constraint" json:"constraint"`

	// Field is the dot-path the constraint tests, e.g.
	// "driver.licenseStatus" or "repair.cost".
	Field string `yaml:"field,omitempty" json:"field,omitempty"`

	// Source selects where Field resolves from: "context" (default),
	// "lookup" or "calculated".
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Operator is the comparison operator ("==", ">", "in", ...). When
	// empty the compiler infers it from the constraint verb pattern.
	Operator string `yaml:"operator,omitempty" json:"operator,omitempty"`

	// Value is the threshold or expected value the field is compared to.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Unit declares the unit of a numeric threshold ("usd", "km",
	// "days"). Mismatched unit classes are a compile-time error.
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`

	// ApproverRole marks an approval requirement and names who may
	// approve (e.g. "fleet-manager").
	ApproverRole string `yaml:"approver_role,omitempty" json:"approver_role,omitempty"`

	// Recipient marks a notification requirement and names who is told.
	Recipient string `yaml:"recipient,omitempty" json:"recipient,omitempty"`

	// Workflow marks an automation requirement and names the workflow to
	// execute.
	Workflow string `yaml:"workflow,omitempty" json:"workflow,omitempty"`

	// Expression and OutputKey mark a calculation requirement: the closed
	// arithmetic expression to evaluate and the metadata key to store the
	// result under.
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
	OutputKey  string `yaml:"output_key,omitempty" json:"output_key,omitempty"`

	// Timing overrides the inferred trigger timing ("before"/"after").
	Timing string `yaml:"timing,omitempty" json:"timing,omitempty"`

	// Message overrides the generated user-facing message.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Policy is one version of a human-authored governance document.
type Policy struct {
	// ID identifies this version. Lineage identity is (TenantID, Name).
	ID       string `yaml:"id" json:"id"`
	TenantID string `yaml:"tenant_id" json:"tenant_id"`
	Name     string `yaml:"name" json:"name"`

	Category Category `yaml:"category" json:"category"`
	Status   Status   `yaml:"status" json:"status"`
	Version  int      `yaml:"version" json:"version"`

	// Module optionally restricts the policy to one application module
	// ("vehicle", "fuel", ...). Empty means the policy's requirements
	// decide per-requirement via trigger inference.
	Module string `yaml:"module,omitempty" json:"module,omitempty"`

	EffectiveDate time.Time `yaml:"effective_date" json:"effective_date"`

	// Body is the authored free-text policy document.
	Body string `yaml:"body,omitempty" json:"body,omitempty"`

	Requirements []Requirement `yaml:"requirements" json:"requirements"`

	// SupersededAt records when this version stopped being active.
	SupersededAt *time.Time `yaml:"superseded_at,omitempty" json:"superseded_at,omitempty"`
}

// IsActive returns true if this version is the enforced one.
func (p *Policy) IsActive() bool {
	return p.Status == StatusActive
}

// Lineage returns the (tenant, name) lineage key for this policy.
func (p *Policy) Lineage() string {
	return p.TenantID + "/" + p.Name
}
