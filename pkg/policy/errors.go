package policy

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a policy id does not exist in the store.
var ErrNotFound = errors.New("policy not found")

// ErrNotDraft is returned when activating a version that is not a draft.
var ErrNotDraft = errors.New("policy is not a draft")

// InvalidPolicyError reports a policy document that fails structural
// validation. Structural failures are fatal and prevent activation.
type InvalidPolicyError struct {
	PolicyID string
	Reasons  []string
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("invalid policy %q: %d problem(s): %v", e.PolicyID, len(e.Reasons), e.Reasons)
}

// Validate checks the structural invariants a policy must satisfy before it
// can be stored or compiled. It does not classify requirements; that is the
// compiler's concern and produces warnings rather than errors.
func Validate(p *Policy) error {
	var reasons []string
	if p.ID == "" {
		reasons = append(reasons, "missing id")
	}
	if p.TenantID == "" {
		reasons = append(reasons, "missing tenant id")
	}
	if p.Name == "" {
		reasons = append(reasons, "missing name")
	}
	if p.Version <= 0 {
		reasons = append(reasons, fmt.Sprintf("version must be positive, got %d", p.Version))
	}
	switch p.Status {
	case StatusDraft, StatusActive, StatusSuperseded:
	default:
		reasons = append(reasons, fmt.Sprintf("unknown status %q", p.Status))
	}
	seen := make(map[string]bool, len(p.Requirements))
	for i, req := range p.Requirements {
		if req.ID == "" {
			reasons = append(reasons, fmt.Sprintf("requirement %d: missing id", i))
			continue
		}
		if seen[req.ID] {
			reasons = append(reasons, fmt.Sprintf("requirement %q: duplicate id", req.ID))
		}
		seen[req.ID] = true
		if req.Subject == "" {
			reasons = append(reasons, fmt.Sprintf("requirement %q: missing subject", req.ID))
		}
		if req.Constraint == "" {
			reasons = append(reasons, fmt.Sprintf("requirement %q: missing constraint", req.ID))
		}
	}
	if len(reasons) > 0 {
		return &InvalidPolicyError{PolicyID: p.ID, Reasons: reasons}
	}
	return nil
}
