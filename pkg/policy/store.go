package policy

import "context"

// ChangeType describes what happened to the active policy set.
type ChangeType string

const (
	ChangeActivated  ChangeType = "activated"
	ChangeSuperseded ChangeType = "superseded"
	ChangeReloaded   ChangeType = "reloaded" // bulk change, e.g. file store re-read
)

// ChangeEvent notifies subscribers that the active policy set changed and
// the rule index should be rebuilt.
type ChangeEvent struct {
	Type     ChangeType
	TenantID string
	PolicyID string
}

// Store provides read access to policy documents by tenant and module, and
// notifies subscribers when the active set changes.
type Store interface {
	// GetActivePolicies returns all active policies for the tenant. An
	// empty tenantID returns the active set across all tenants (used for
	// full index rebuilds). If module is non-empty, only policies scoped
	// to that module (or unscoped ones) are returned.
	GetActivePolicies(ctx context.Context, tenantID, module string) ([]*Policy, error)

	// GetPolicy returns one policy version by id, regardless of status.
	GetPolicy(ctx context.Context, id string) (*Policy, error)

	// Subscribe returns a channel receiving change events until the store
	// is closed. Slow subscribers may miss intermediate events; every
	// burst of changes is followed by at least one event.
	Subscribe() <-chan ChangeEvent

	// Close releases the store's resources and closes subscriber channels.
	Close() error
}
