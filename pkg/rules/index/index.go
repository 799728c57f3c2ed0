package index

import (
	"fmt"
	"sync/atomic"
	"time"

	"fleetgrid/warden/pkg/rules"
)

// Snapshot is an immutable, versioned view of the active rule set.
// Lookup is a hash-map access keyed by tenant+operation+timing; a snapshot
// is never mutated after Build returns it.
type Snapshot struct {
	version int64
	builtAt time.Time
	byKey   map[string][]*rules.CompiledRule
	count   int
}

// Version returns the snapshot's monotonically increasing version.
func (s *Snapshot) Version() int64 { return s.version }

// BuiltAt returns when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// RuleCount returns the number of rules in the snapshot.
func (s *Snapshot) RuleCount() int { return s.count }

// Lookup returns the active rules matching the tenant, dotted operation
// name and timing, ordered by priority. The returned slice is shared with
// the snapshot and must not be modified.
func (s *Snapshot) Lookup(tenantID, operation string, timing rules.Timing) []*rules.CompiledRule {
	if s == nil {
		return nil
	}
	return s.byKey[lookupKey(tenantID, operation, timing)]
}

// Index publishes the active snapshot. Reads are lock-free; Swap installs a
// complete replacement snapshot atomically.
type Index struct {
	current atomic.Pointer[Snapshot]
	nextVer atomic.Int64
}

// New creates an index holding an empty initial snapshot.
func New() *Index {
	idx := &Index{}
	idx.current.Store(&Snapshot{
		version: 0,
		builtAt: time.Now(),
		byKey:   map[string][]*rules.CompiledRule{},
	})
	return idx
}

// Active returns the current snapshot. The caller may use it for any number
// of lookups; it remains consistent even if a rebuild swaps in a successor.
func (i *Index) Active() *Snapshot {
	return i.current.Load()
}

// Swap builds a snapshot from the given rules and installs it as the active
// one. Non-enforceable rules (dry-run output) are rejected rather than
// silently dropped, since their presence indicates a caller bug.
func (i *Index) Swap(ruleSet []*rules.CompiledRule) (*Snapshot, error) {
	snap, err := build(i.nextVer.Add(1), ruleSet)
	if err != nil {
		return nil, err
	}
	i.current.Store(snap)
	return snap, nil
}

func build(version int64, ruleSet []*rules.CompiledRule) (*Snapshot, error) {
	byKey := make(map[string][]*rules.CompiledRule)
	for _, r := range ruleSet {
		if !r.Enforceable {
			return nil, fmt.Errorf("rule %q (policy %s v%d) is not enforceable", r.Name, r.PolicyID, r.PolicyVersion)
		}
		if r.Trigger.Operation == "" {
			return nil, fmt.Errorf("rule %q has an empty trigger operation", r.Name)
		}
		key := lookupKey(r.TenantID, r.Trigger.Operation, r.Trigger.Timing)
		byKey[key] = append(byKey[key], r)
	}
	for _, bucket := range byKey {
		rules.SortByPriority(bucket)
	}
	return &Snapshot{
		version: version,
		builtAt: time.Now(),
		byKey:   byKey,
		count:   len(ruleSet),
	}, nil
}

func lookupKey(tenantID, operation string, timing rules.Timing) string {
	return tenantID + "\x00" + operation + "\x00" + string(timing)
}
