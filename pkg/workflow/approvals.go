package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending ApprovalStatus = "pending"
	ApprovalGranted ApprovalStatus = "granted"
	ApprovalDenied  ApprovalStatus = "denied"
)

// ErrApprovalNotFound is returned when an approval request id is unknown.
var ErrApprovalNotFound = errors.New("approval request not found")

// ErrAlreadyDecided is returned when deciding a request twice.
var ErrAlreadyDecided = errors.New("approval request already decided")

// ApprovalRequest is the durable record of a require-approval decision.
// Granting it does not bypass the engine: the caller re-submits the
// operation with the grant noted in the payload, producing a fresh
// enforcement call and a fresh audit entry.
type ApprovalRequest struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	RequestID string         `json:"request_id"`
	RuleID    string         `json:"rule_id"`
	Role      string         `json:"role"` // approver role eligible to decide
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Status    ApprovalStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
	DecidedBy string         `json:"decided_by,omitempty"`
}

// ApprovalStore records approval requests durably. Record must complete
// before the enforcement call that produced the request returns.
type ApprovalStore interface {
	Record(ctx context.Context, req *ApprovalRequest) error
	Get(ctx context.Context, id string) (*ApprovalRequest, error)
	Decide(ctx context.Context, id string, status ApprovalStatus, decidedBy string) error
	ListPending(ctx context.Context, tenantID string) ([]*ApprovalRequest, error)
	Close() error
}

// MemoryApprovalStore is an in-memory ApprovalStore for tests and for
// callers that provide durability elsewhere.
type MemoryApprovalStore struct {
	mu       sync.RWMutex
	requests map[string]*ApprovalRequest
}

// NewMemoryApprovalStore creates an empty in-memory approval store.
func NewMemoryApprovalStore() *MemoryApprovalStore {
	return &MemoryApprovalStore{requests: make(map[string]*ApprovalRequest)}
}

// Record stores a pending approval request.
func (s *MemoryApprovalStore) Record(ctx context.Context, req *ApprovalRequest) error {
	if req.ID == "" {
		return fmt.Errorf("approval request needs an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

// Get returns one approval request by id.
func (s *MemoryApprovalStore) Get(ctx context.Context, id string) (*ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrApprovalNotFound)
	}
	cp := *req
	return &cp, nil
}

// Decide resolves a pending request to granted or denied.
func (s *MemoryApprovalStore) Decide(ctx context.Context, id string, status ApprovalStatus, decidedBy string) error {
	if status != ApprovalGranted && status != ApprovalDenied {
		return fmt.Errorf("invalid decision status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("decide %q: %w", id, ErrApprovalNotFound)
	}
	if req.Status != ApprovalPending {
		return fmt.Errorf("decide %q: %w (status %q)", id, ErrAlreadyDecided, req.Status)
	}
	now := time.Now()
	req.Status = status
	req.DecidedAt = &now
	req.DecidedBy = decidedBy
	return nil
}

// ListPending returns all pending requests for a tenant.
func (s *MemoryApprovalStore) ListPending(ctx context.Context, tenantID string) ([]*ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ApprovalRequest
	for _, req := range s.requests {
		if req.TenantID == tenantID && req.Status == ApprovalPending {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Close releases the store. The memory store has nothing to release.
func (s *MemoryApprovalStore) Close() error { return nil }
