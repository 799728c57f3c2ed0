package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fleetgrid/warden/pkg/audit"
)

func newSQLiteStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sqliteEntry(seq int64, requestID, decision string, ts time.Time) *audit.Entry {
	return &audit.Entry{
		ID:        requestID + "-id",
		Seq:       seq,
		RequestID: requestID,
		TenantID:  "tenant-a",
		Module:    "vehicle",
		Operation: "vehicle.assign",
		Timing:    "before",
		Actor:     "dispatcher-1",
		Payload:   map[string]any{"vehicle": map[string]any{"id": "TRK-104"}},
		Evaluations: []audit.RuleOutcome{{
			RuleID: "rule-1", RuleName: "driver-safety/r-license",
			Kind: "validation", Matched: decision == "block", Decision: decision,
		}},
		Decision:  decision,
		Messages:  []string{"license check"},
		Timestamp: ts,
		PrevHash:  "prev",
		Hash:      "hash-" + requestID,
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := newSQLiteStorage(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.Append(ctx, sqliteEntry(1, "req-1", "allow", now)); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := store.Append(ctx, sqliteEntry(2, "req-2", "block", now.Add(time.Second))); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	last, err := store.Last(ctx)
	if err != nil {
		t.Fatalf("Last() error: %v", err)
	}
	if last == nil || last.Seq != 2 || last.RequestID != "req-2" {
		t.Fatalf("Last() = %+v, want seq 2", last)
	}

	got, err := store.FindByRequest(ctx, "req-1", "before")
	if err != nil {
		t.Fatalf("FindByRequest() error: %v", err)
	}
	if got == nil || got.Decision != "allow" {
		t.Fatalf("FindByRequest() = %+v", got)
	}
	if got.Payload["vehicle"].(map[string]any)["id"] != "TRK-104" {
		t.Errorf("payload did not survive the round trip: %v", got.Payload)
	}
	if len(got.Evaluations) != 1 || got.Evaluations[0].RuleID != "rule-1" {
		t.Errorf("evaluations did not survive the round trip: %v", got.Evaluations)
	}

	if miss, err := store.FindByRequest(ctx, "req-1", "after"); err != nil || miss != nil {
		t.Errorf("FindByRequest(after) = %+v, %v, want nil, nil", miss, err)
	}
}

func TestSQLiteEmptyStore(t *testing.T) {
	store := newSQLiteStorage(t)
	ctx := context.Background()

	last, err := store.Last(ctx)
	if err != nil || last != nil {
		t.Errorf("Last() on empty store = %+v, %v, want nil, nil", last, err)
	}
	count, err := store.Count(ctx, &audit.Query{})
	if err != nil || count != 0 {
		t.Errorf("Count() on empty store = %d, %v", count, err)
	}
}

func TestSQLiteRejectsDuplicateRequestTiming(t *testing.T) {
	store := newSQLiteStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Append(ctx, sqliteEntry(1, "req-1", "allow", now)); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	dup := sqliteEntry(2, "req-1", "allow", now)
	if err := store.Append(ctx, dup); err == nil {
		t.Error("expected unique constraint violation for duplicate (request, timing)")
	}
}

func TestSQLiteQueryFilters(t *testing.T) {
	store := newSQLiteStorage(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	entries := []*audit.Entry{
		sqliteEntry(1, "req-1", "allow", base),
		sqliteEntry(2, "req-2", "block", base.Add(time.Minute)),
		sqliteEntry(3, "req-3", "allow", base.Add(2*time.Minute)),
	}
	entries[2].TenantID = "tenant-b"
	for _, e := range entries {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	blocked, err := store.Query(ctx, &audit.Query{Decision: "block"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(blocked) != 1 || blocked[0].RequestID != "req-2" {
		t.Errorf("decision filter = %+v", blocked)
	}

	tenantA, _ := store.Query(ctx, &audit.Query{TenantID: "tenant-a"})
	if len(tenantA) != 2 {
		t.Errorf("tenant filter returned %d entries, want 2", len(tenantA))
	}

	start := base.Add(30 * time.Second)
	windowed, _ := store.Query(ctx, &audit.Query{Start: &start})
	if len(windowed) != 2 {
		t.Errorf("time window returned %d entries, want 2", len(windowed))
	}

	limited, _ := store.Query(ctx, &audit.Query{Limit: 1, Offset: 1})
	if len(limited) != 1 || limited[0].Seq != 2 {
		t.Errorf("limit/offset = %+v, want the second entry", limited)
	}

	stats, err := store.Stats(ctx, &audit.Query{})
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Total != 3 || stats.ByDecision["allow"] != 2 || stats.ByTenant["tenant-b"] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.ByRule["rule-1"] != 1 {
		// Only the block entry's evaluation is Matched.
		t.Errorf("rule stats = %v", stats.ByRule)
	}
}

func TestSQLiteRuleFilterMatchesExactID(t *testing.T) {
	store := newSQLiteStorage(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	exact := sqliteEntry(1, "req-1", "block", base)

	// Same prefix in the rule id, and the filtered id appearing in another
	// entry's rule name and message. None of these should match.
	prefixed := sqliteEntry(2, "req-2", "allow", base.Add(time.Minute))
	prefixed.Evaluations[0].RuleID = "rule-10"
	named := sqliteEntry(3, "req-3", "warn", base.Add(2*time.Minute))
	named.Evaluations[0].RuleID = "rule-2"
	named.Evaluations[0].RuleName = "shadowing rule-1 by name"
	named.Evaluations[0].Message = "supersedes rule-1"

	for _, e := range []*audit.Entry{exact, prefixed, named} {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	got, err := store.Query(ctx, &audit.Query{RuleID: "rule-1"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 1 || got[0].RequestID != "req-1" {
		t.Fatalf("rule filter = %+v, want only req-1", got)
	}

	count, err := store.Count(ctx, &audit.Query{RuleID: "rule-1"})
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	stats, err := store.Stats(ctx, &audit.Query{RuleID: "rule-1"})
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Total != 1 || stats.ByDecision["block"] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	// Paging applies after the exact check.
	paged, err := store.Query(ctx, &audit.Query{RuleID: "rule-1", Offset: 1})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(paged) != 0 {
		t.Errorf("offset past the only match = %+v, want empty", paged)
	}
}

func TestSQLiteDelete(t *testing.T) {
	store := newSQLiteStorage(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, req := range []string{"req-1", "req-2", "req-3"} {
		e := sqliteEntry(int64(i+1), req, "allow", base.Add(time.Duration(i)*time.Minute))
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	cutoff := base.Add(time.Minute)
	deleted, err := store.Delete(ctx, &audit.Query{End: &cutoff})
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	count, _ := store.Count(ctx, &audit.Query{})
	if count != 1 {
		t.Errorf("remaining = %d, want 1", count)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error: %v", err)
	}
	if err := store.Append(ctx, sqliteEntry(1, "req-1", "allow", time.Now().UTC())); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	last, err := reopened.Last(ctx)
	if err != nil || last == nil || last.RequestID != "req-1" {
		t.Errorf("entry did not survive reopen: %+v, %v", last, err)
	}
}
