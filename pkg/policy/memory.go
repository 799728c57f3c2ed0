package policy

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with full lifecycle operations. It is
// the reference implementation used by tests and by applications that keep
// policies in their own database and mirror the active set here.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*Policy // by version id
	subs     []chan ChangeEvent
	closed   bool
}

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]*Policy),
	}
}

// Put stores a policy version. The version must validate structurally.
// Storing a second active version of a (tenant, name) lineage is rejected;
// the lifecycle path to replace an active version is Put a draft, then
// Activate it.
func (s *MemoryStore) Put(p *Policy) error {
	if err := Validate(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if p.Status == StatusActive {
		for _, prior := range s.policies {
			if prior.ID != p.ID && prior.Lineage() == p.Lineage() && prior.Status == StatusActive {
				return fmt.Errorf("put %q: lineage %s already has active version %q", p.ID, p.Lineage(), prior.ID)
			}
		}
	}
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

// Activate promotes a draft version to active, superseding the prior active
// version of the same (tenant, name) lineage in the same step. The
// superseded version is retained, never deleted.
func (s *MemoryStore) Activate(id string) error {
	s.mu.Lock()
	p, ok := s.policies[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("activate %q: %w", id, ErrNotFound)
	}
	if p.Status != StatusDraft {
		s.mu.Unlock()
		return fmt.Errorf("activate %q: %w (status %q)", id, ErrNotDraft, p.Status)
	}

	var superseded *Policy
	for _, prior := range s.policies {
		if prior.ID != p.ID && prior.Lineage() == p.Lineage() && prior.Status == StatusActive {
			now := time.Now()
			prior.Status = StatusSuperseded
			prior.SupersededAt = &now
			superseded = prior
			break
		}
	}
	p.Status = StatusActive
	events := []ChangeEvent{{Type: ChangeActivated, TenantID: p.TenantID, PolicyID: p.ID}}
	if superseded != nil {
		events = append(events, ChangeEvent{Type: ChangeSuperseded, TenantID: superseded.TenantID, PolicyID: superseded.ID})
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.notify(ev)
	}
	return nil
}

// Supersede retires an active version without activating a successor.
func (s *MemoryStore) Supersede(id string) error {
	s.mu.Lock()
	p, ok := s.policies[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("supersede %q: %w", id, ErrNotFound)
	}
	if p.Status != StatusActive {
		s.mu.Unlock()
		return fmt.Errorf("supersede %q: policy is not active (status %q)", id, p.Status)
	}
	now := time.Now()
	p.Status = StatusSuperseded
	p.SupersededAt = &now
	ev := ChangeEvent{Type: ChangeSuperseded, TenantID: p.TenantID, PolicyID: p.ID}
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

// GetActivePolicies returns the active policies for a tenant, optionally
// restricted to one module.
func (s *MemoryStore) GetActivePolicies(ctx context.Context, tenantID, module string) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Policy
	for _, p := range s.policies {
		if p.Status != StatusActive {
			continue
		}
		if tenantID != "" && p.TenantID != tenantID {
			continue
		}
		if module != "" && p.Module != "" && p.Module != module {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// GetPolicy returns one policy version by id.
func (s *MemoryStore) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

// Subscribe returns a channel receiving change events.
func (s *MemoryStore) Subscribe() <-chan ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan ChangeEvent, 16)
	s.subs = append(s.subs, ch)
	return ch
}

// Close closes all subscriber channels.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	return nil
}

// notify delivers an event to all subscribers without blocking. A full
// subscriber channel drops the event; the buffer makes that rare and a
// rebuild triggered by any event covers all prior changes.
func (s *MemoryStore) notify(ev ChangeEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
