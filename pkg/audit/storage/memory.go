package storage

import (
	"context"
	"sync"

	"fleetgrid/warden/pkg/audit"
)

// MemoryStorage keeps entries in an in-memory slice, ordered by Seq. It is
// the default for tests and for deployments that do not need the decision
// log to survive restarts.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []*audit.Entry
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Append(ctx context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *e
	s.entries = append(s.entries, &clone)
	return nil
}

func (s *MemoryStorage) Last(ctx context.Context) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	clone := *s.entries[len(s.entries)-1]
	return &clone, nil
}

func (s *MemoryStorage) FindByRequest(ctx context.Context, requestID, timing string) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.RequestID == requestID && e.Timing == timing {
			clone := *e
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *MemoryStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*audit.Entry
	skipped := 0
	for _, e := range s.entries {
		if !matches(e, q) {
			continue
		}
		if q != nil && skipped < q.Offset {
			skipped++
			continue
		}
		clone := *e
		out = append(out, &clone)
		if q != nil && q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.entries {
		if matches(e, q) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) Stats(ctx context.Context, q *audit.Query) (*audit.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &audit.Stats{
		ByDecision: make(map[string]int64),
		ByRule:     make(map[string]int64),
		ByTenant:   make(map[string]int64),
	}
	for _, e := range s.entries {
		if !matches(e, q) {
			continue
		}
		stats.Total++
		stats.ByDecision[e.Decision]++
		stats.ByTenant[e.TenantID]++
		for _, ev := range e.Evaluations {
			if ev.Matched {
				stats.ByRule[ev.RuleID]++
			}
		}
	}
	return stats, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*audit.Entry
	var removed int64
	for _, e := range s.entries {
		if matches(e, q) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *MemoryStorage) Close() error { return nil }

func matches(e *audit.Entry, q *audit.Query) bool {
	if q == nil {
		return true
	}
	if q.TenantID != "" && e.TenantID != q.TenantID {
		return false
	}
	if q.Decision != "" && e.Decision != q.Decision {
		return false
	}
	if q.RuleID != "" {
		found := false
		for _, ev := range e.Evaluations {
			if ev.RuleID == q.RuleID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Start != nil && e.Timestamp.Before(*q.Start) {
		return false
	}
	if q.End != nil && e.Timestamp.After(*q.End) {
		return false
	}
	return true
}
