package enforce

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fleetgrid/warden/pkg/audit"
	"fleetgrid/warden/pkg/audit/storage"
	"fleetgrid/warden/pkg/compiler"
	"fleetgrid/warden/pkg/policy"
	"fleetgrid/warden/pkg/rules"
	"fleetgrid/warden/pkg/workflow"
)

type captureNotifier struct {
	mu       sync.Mutex
	payloads []*workflow.Payload
}

func (n *captureNotifier) Notify(ctx context.Context, p *workflow.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, p)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.payloads)
}

type funcAccessor func(ctx context.Context, req *Context, field string) (any, error)

func (f funcAccessor) Lookup(ctx context.Context, req *Context, field string) (any, error) {
	return f(ctx, req, field)
}

type testEnv struct {
	engine    *Engine
	store     *policy.MemoryStore
	approvals *workflow.MemoryApprovalStore
	auditLog  *audit.Log
	notifier  *captureNotifier
}

func newTestEngine(t *testing.T, accessor DataAccessor, policies ...*policy.Policy) (*Engine, *testEnv) {
	t.Helper()

	store := policy.NewMemoryStore()
	for _, p := range policies {
		if err := store.Put(p); err != nil {
			t.Fatalf("store.Put() error: %v", err)
		}
	}

	auditLog, err := audit.NewLog(storage.NewMemoryStorage(), nil, nil)
	if err != nil {
		t.Fatalf("audit.NewLog() error: %v", err)
	}
	approvals := workflow.NewMemoryApprovalStore()
	notifier := &captureNotifier{}

	engine, err := NewEngine(Options{
		Store:     store,
		Compiler:  compiler.New(nil),
		AuditLog:  auditLog,
		Accessor:  accessor,
		Approvals: approvals,
		Notifier:  notifier,
		Config: &Config{
			LookupTimeout: 50 * time.Millisecond,
			AuditTimeout:  time.Second,
		},
	})
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	if _, err := engine.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error: %v", err)
	}

	return engine, &testEnv{
		engine:    engine,
		store:     store,
		approvals: approvals,
		auditLog:  auditLog,
		notifier:  notifier,
	}
}

func licensePolicy() *policy.Policy {
	return &policy.Policy{
		ID: "pol-license", TenantID: "tenant-a", Name: "driver-safety",
		Category: policy.CategorySafety, Status: policy.StatusActive, Version: 1,
		Requirements: []policy.Requirement{{
			ID: "r-license", Subject: "assigning a vehicle",
			Constraint: "Drivers must have a valid license",
			Field:      "driver.licenseStatus", Operator: "==", Value: "valid",
		}},
	}
}

func repairApprovalPolicy() *policy.Policy {
	return &policy.Policy{
		ID: "pol-repair", TenantID: "tenant-a", Name: "maintenance-controls",
		Category: policy.CategoryMaintenance, Status: policy.StatusActive, Version: 1,
		Requirements: []policy.Requirement{{
			ID: "r-cost", Subject: "approving a repair",
			Constraint:   "Repairs exceeding 2000 USD require fleet manager approval",
			Field:        "repair.cost", Operator: ">", Value: 2000, Unit: "usd",
			ApproverRole: "fleet-manager",
		}},
	}
}

func assignRequest(licenseStatus string) *Context {
	payload := map[string]any{}
	if licenseStatus != "" {
		payload["driver"] = map[string]any{"licenseStatus": licenseStatus}
	}
	return &Context{
		RequestID: "req-1", TenantID: "tenant-a", Actor: "dispatcher-1",
		Module: "vehicle", Operation: "assign", Timing: rules.TimingBefore,
		Payload: payload,
	}
}

func TestEnforceAllowsCompliantOperation(t *testing.T) {
	engine, _ := newTestEngine(t, nil, licensePolicy())

	result, err := engine.Enforce(context.Background(), assignRequest("valid"))
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("decision = %q, want allow", result.Decision)
	}
	if len(result.Evaluations) != 1 || result.Evaluations[0].Matched {
		t.Errorf("compliant call should evaluate the rule without matching, got %+v", result.Evaluations)
	}
	if result.AuditEntryID == "" {
		t.Error("every enforcement call must produce an audit entry")
	}
}

func TestEnforceBlocksViolation(t *testing.T) {
	engine, _ := newTestEngine(t, nil, licensePolicy())

	result, err := engine.Enforce(context.Background(), assignRequest("suspended"))
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionBlock {
		t.Errorf("decision = %q, want block", result.Decision)
	}
	if len(result.Messages) == 0 {
		t.Error("block decision should carry the rule message")
	}
}

func TestEnforceFailsClosedOnMissingData(t *testing.T) {
	engine, _ := newTestEngine(t, nil, licensePolicy())

	// No driver data at all: the requirement cannot be shown to hold.
	result, err := engine.Enforce(context.Background(), assignRequest(""))
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionBlock {
		t.Errorf("decision = %q, want block on missing data", result.Decision)
	}
}

func TestEnforceNoMatchingRules(t *testing.T) {
	engine, env := newTestEngine(t, nil, licensePolicy())

	result, err := engine.Enforce(context.Background(), &Context{
		RequestID: "req-other", TenantID: "tenant-a",
		Module: "trip", Operation: "start", Timing: rules.TimingBefore,
		Payload: map[string]any{},
	})
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow || len(result.Evaluations) != 0 {
		t.Errorf("unmatched operation should allow with no evaluations, got %+v", result)
	}
	if result.AuditEntryID == "" {
		t.Error("no-match calls still produce an audit entry")
	}

	entries, err := env.auditLog.Query(context.Background(), &audit.Query{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
}

func TestEnforceTenantIsolation(t *testing.T) {
	engine, _ := newTestEngine(t, nil, licensePolicy())

	req := assignRequest("suspended")
	req.TenantID = "tenant-b"
	result, err := engine.Enforce(context.Background(), req)
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("another tenant's policy must not apply, got %q", result.Decision)
	}
}

func TestApprovalRoundTrip(t *testing.T) {
	engine, env := newTestEngine(t, nil, repairApprovalPolicy())
	ctx := context.Background()

	req := &Context{
		RequestID: "req-repair-1", TenantID: "tenant-a", Actor: "mechanic-1",
		Module: "repair", Operation: "approve", Timing: rules.TimingBefore,
		Payload: map[string]any{"repair": map[string]any{"cost": 3500}},
	}

	result, err := engine.Enforce(ctx, req)
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionRequireApproval {
		t.Fatalf("decision = %q, want require_approval", result.Decision)
	}
	if len(result.Approvers) != 1 || result.Approvers[0] != "fleet-manager" {
		t.Errorf("approvers = %v, want [fleet-manager]", result.Approvers)
	}

	// The approval request is durably recorded before Enforce returns.
	pending, err := env.approvals.ListPending(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending approvals, want 1", len(pending))
	}
	if pending[0].RequestID != "req-repair-1" || pending[0].Role != "fleet-manager" {
		t.Errorf("unexpected approval request %+v", pending[0])
	}

	if err := env.approvals.Decide(ctx, pending[0].ID, workflow.ApprovalGranted, "manager-1"); err != nil {
		t.Fatalf("Decide() error: %v", err)
	}

	// Re-submission carries the grant in the payload and goes through the
	// engine again; it does not bypass enforcement.
	resubmit := &Context{
		RequestID: "req-repair-2", TenantID: "tenant-a", Actor: "mechanic-1",
		Module: "repair", Operation: "approve", Timing: rules.TimingBefore,
		Payload: map[string]any{
			"repair":   map[string]any{"cost": 3500},
			"approval": map[string]any{"granted": true},
		},
	}
	result, err = engine.Enforce(ctx, resubmit)
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("pre-approved resubmission = %q, want allow", result.Decision)
	}

	// Below the threshold no approval is needed.
	small := &Context{
		RequestID: "req-repair-3", TenantID: "tenant-a", Actor: "mechanic-1",
		Module: "repair", Operation: "approve", Timing: rules.TimingBefore,
		Payload: map[string]any{"repair": map[string]any{"cost": 900}},
	}
	result, err = engine.Enforce(ctx, small)
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("below-threshold repair = %q, want allow", result.Decision)
	}
}

func TestDecisionPrecedenceBlockWins(t *testing.T) {
	// One policy blocks unlicensed assignment, another requires approval
	// for long assignments; both firing must yield block.
	combined := &policy.Policy{
		ID: "pol-combined", TenantID: "tenant-a", Name: "assignment-controls",
		Category: policy.CategoryOperational, Status: policy.StatusActive, Version: 1,
		Requirements: []policy.Requirement{
			{
				ID: "r-license", Subject: "assigning a vehicle",
				Constraint: "Drivers must have a valid license",
				Field:      "driver.licenseStatus", Operator: "==", Value: "valid",
			},
			{
				ID: "r-duration", Subject: "assigning a vehicle",
				Constraint:   "Assignments exceeding 30 days require fleet manager approval",
				Field:        "assignment.durationDays", Operator: ">", Value: 30, Unit: "days",
				ApproverRole: "fleet-manager",
			},
		},
	}
	engine, _ := newTestEngine(t, nil, combined)

	result, err := engine.Enforce(context.Background(), &Context{
		RequestID: "req-1", TenantID: "tenant-a",
		Module: "vehicle", Operation: "assign", Timing: rules.TimingBefore,
		Payload: map[string]any{
			"driver":     map[string]any{"licenseStatus": "suspended"},
			"assignment": map[string]any{"durationDays": 45},
		},
	})
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionBlock {
		t.Errorf("decision = %q, want block (block outranks require_approval)", result.Decision)
	}

	matched := 0
	for _, ev := range result.Evaluations {
		if ev.Matched {
			matched++
		}
	}
	if matched != 2 {
		t.Errorf("both rules should have matched, got %d", matched)
	}
}

func TestNotificationNeverBlocks(t *testing.T) {
	p := &policy.Policy{
		ID: "pol-notify", TenantID: "tenant-a", Name: "fuel-monitoring",
		Category: policy.CategoryOperational, Status: policy.StatusActive, Version: 1,
		Requirements: []policy.Requirement{{
			ID: "r-fuel", Subject: "after a fuel purchase",
			Constraint: "Notify the fleet supervisor of purchases over 500 USD",
			Field:      "fuel.cost", Operator: ">", Value: 500, Unit: "usd",
			Recipient:  "fleet-supervisor",
		}},
	}
	engine, env := newTestEngine(t, nil, p)

	result, err := engine.Enforce(context.Background(), &Context{
		RequestID: "req-fuel-1", TenantID: "tenant-a",
		Module: "fuel", Operation: "purchase", Timing: rules.TimingAfter,
		Payload: map[string]any{"fuel": map[string]any{"cost": 750}},
	})
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("notification rule must not change the decision, got %q", result.Decision)
	}
	if env.notifier.count() != 1 {
		t.Errorf("notifier received %d payloads, want 1", env.notifier.count())
	}
}

func TestCalculationWritesMetadata(t *testing.T) {
	p := &policy.Policy{
		ID: "pol-calc", TenantID: "tenant-a", Name: "trip-costing",
		Category: policy.CategoryOperational, Status: policy.StatusActive, Version: 1,
		Requirements: []policy.Requirement{{
			ID: "r-cpk", Subject: "trip.end", Timing: "after",
			Constraint: "Calculate the cost per kilometer",
			Field:      "trip.costPerKm", Source: "calculated",
			Expression: "trip.cost / trip.distance", OutputKey: "cost_per_km",
		}},
	}
	engine, _ := newTestEngine(t, nil, p)

	result, err := engine.Enforce(context.Background(), &Context{
		RequestID: "req-trip-1", TenantID: "tenant-a",
		Module: "trip", Operation: "end", Timing: rules.TimingAfter,
		Payload: map[string]any{"trip": map[string]any{"cost": 125.0, "distance": 250.0}},
	})
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("decision = %q, want allow", result.Decision)
	}
	if got := result.Metadata["cost_per_km"]; got != 0.5 {
		t.Errorf("metadata cost_per_km = %v, want 0.5", got)
	}
}

func TestLookupTimeoutFailsClosed(t *testing.T) {
	p := &policy.Policy{
		ID: "pol-lookup", TenantID: "tenant-a", Name: "driver-records",
		Category: policy.CategorySafety, Status: policy.StatusActive, Version: 1,
		Requirements: []policy.Requirement{{
			ID: "r-license", Subject: "assigning a vehicle",
			Constraint: "Drivers must have a valid license on record",
			Field:      "driver.licenseStatus", Source: "lookup",
			Operator:   "==", Value: "valid",
		}},
	}

	slow := funcAccessor(func(ctx context.Context, req *Context, field string) (any, error) {
		select {
		case <-time.After(time.Second):
			return "valid", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	engine, _ := newTestEngine(t, slow, p)

	result, err := engine.Enforce(context.Background(), assignRequest("ignored"))
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionBlock {
		t.Errorf("timed-out lookup should fail the gate closed, got %q", result.Decision)
	}
	if !result.Degraded {
		t.Error("result should be flagged degraded")
	}
	if !result.Evaluations[0].Degraded || result.Evaluations[0].DegradedReason == "" {
		t.Errorf("evaluation should carry the degradation reason, got %+v", result.Evaluations[0])
	}
}

func TestLookupResolvesFromAccessor(t *testing.T) {
	p := &policy.Policy{
		ID: "pol-lookup", TenantID: "tenant-a", Name: "driver-records",
		Category: policy.CategorySafety, Status: policy.StatusActive, Version: 1,
		Requirements: []policy.Requirement{{
			ID: "r-license", Subject: "assigning a vehicle",
			Constraint: "Drivers must have a valid license on record",
			Field:      "driver.licenseStatus", Source: "lookup",
			Operator:   "==", Value: "valid",
		}},
	}

	accessor := funcAccessor(func(ctx context.Context, req *Context, field string) (any, error) {
		if field == "driver.licenseStatus" {
			return "valid", nil
		}
		return nil, fmt.Errorf("unknown field %q", field)
	})
	engine, _ := newTestEngine(t, accessor, p)

	result, err := engine.Enforce(context.Background(), assignRequest(""))
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("decision = %q, want allow with lookup-resolved license", result.Decision)
	}
}

func TestAfterTimingNeverBlocks(t *testing.T) {
	engine, _ := newTestEngine(t, nil, licensePolicy())

	// Force an after-timing call against a hand-built blocking rule by
	// swapping one into the index directly.
	_, err := engine.index.Swap([]*rules.CompiledRule{{
		ID: "rule-x", Name: "forced-block", TenantID: "tenant-a",
		Kind:    rules.KindValidation,
		Trigger: rules.Trigger{Operation: "vehicle.assign", Timing: rules.TimingAfter},
		Actions: []*rules.Action{{Type: rules.ActionTypeBlock, Message: "too late"}},
		Priority: 10, Enforceable: true,
	}})
	if err != nil {
		t.Fatalf("Swap() error: %v", err)
	}

	req := assignRequest("suspended")
	req.Timing = rules.TimingAfter
	result, err := engine.Enforce(context.Background(), req)
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionWarn {
		t.Errorf("after-timing block must demote to warn, got %q", result.Decision)
	}
}

func TestAfterTimingApprovalNeverGates(t *testing.T) {
	p := repairApprovalPolicy()
	p.Requirements[0].Timing = "after"
	engine, env := newTestEngine(t, nil, p)
	ctx := context.Background()

	result, err := engine.Enforce(ctx, &Context{
		RequestID: "req-repair-1", TenantID: "tenant-a", Actor: "mechanic-1",
		Module: "repair", Operation: "approve", Timing: rules.TimingAfter,
		Payload: map[string]any{"repair": map[string]any{"cost": 3500}},
	})
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionWarn {
		t.Errorf("after-timing approval requirement = %q, want warn", result.Decision)
	}
	if !result.Allowed() {
		t.Error("a completed operation must not be held for approval")
	}

	pending, err := env.approvals.ListPending(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending approvals for a completed operation, want 0", len(pending))
	}
}

func TestAfterTimingRequireApprovalDecisionDemoted(t *testing.T) {
	engine, _ := newTestEngine(t, nil, licensePolicy())

	// A hand-built approval rule on an after trigger bypasses the
	// compiler's demotion; the engine guard must still soften the decision.
	_, err := engine.index.Swap([]*rules.CompiledRule{{
		ID: "rule-x", Name: "forced-approval", TenantID: "tenant-a",
		Kind:    rules.KindApproval,
		Trigger: rules.Trigger{Operation: "vehicle.assign", Timing: rules.TimingAfter},
		Actions: []*rules.Action{{
			Type: rules.ActionTypeRequireApproval, Target: "fleet-manager", Message: "too late",
		}},
		Priority: 20, Enforceable: true,
	}})
	if err != nil {
		t.Fatalf("Swap() error: %v", err)
	}

	req := assignRequest("valid")
	req.Timing = rules.TimingAfter
	result, err := engine.Enforce(context.Background(), req)
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionWarn {
		t.Errorf("after-timing require_approval must demote to warn, got %q", result.Decision)
	}
}

func TestEnforceDuplicateRequestReusesAuditEntry(t *testing.T) {
	engine, env := newTestEngine(t, nil, licensePolicy())
	ctx := context.Background()

	first, err := engine.Enforce(ctx, assignRequest("valid"))
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	second, err := engine.Enforce(ctx, assignRequest("valid"))
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if first.AuditEntryID != second.AuditEntryID {
		t.Errorf("duplicate request ids should share an audit entry: %s vs %s",
			first.AuditEntryID, second.AuditEntryID)
	}

	count, err := env.auditLog.Stats(ctx, &audit.Query{})
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if count.Total != 1 {
		t.Errorf("got %d audit entries, want 1", count.Total)
	}
}

func TestEnforceRetryDoesNotRepeatActions(t *testing.T) {
	engine, env := newTestEngine(t, nil, repairApprovalPolicy())
	ctx := context.Background()

	req := &Context{
		RequestID: "req-repair-1", TenantID: "tenant-a", Actor: "mechanic-1",
		Module: "repair", Operation: "approve", Timing: rules.TimingBefore,
		Payload: map[string]any{"repair": map[string]any{"cost": 3500}},
	}

	first, err := engine.Enforce(ctx, req)
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if first.Decision != DecisionRequireApproval {
		t.Fatalf("decision = %q, want require_approval", first.Decision)
	}

	// A retried call returns the recorded decision without re-running
	// side effects.
	second, err := engine.Enforce(ctx, req)
	if err != nil {
		t.Fatalf("retried Enforce() error: %v", err)
	}
	if second.Decision != DecisionRequireApproval {
		t.Errorf("retry decision = %q, want require_approval", second.Decision)
	}
	if second.AuditEntryID != first.AuditEntryID {
		t.Errorf("retry should share the audit entry: %s vs %s", first.AuditEntryID, second.AuditEntryID)
	}
	if len(second.Approvers) != 1 || second.Approvers[0] != "fleet-manager" {
		t.Errorf("retry approvers = %v, want [fleet-manager]", second.Approvers)
	}

	pending, err := env.approvals.ListPending(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("ListPending() error: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d pending approvals after a retry, want 1", len(pending))
	}
	if env.notifier.count() != 1 {
		t.Errorf("notifier received %d payloads after a retry, want 1", env.notifier.count())
	}
}

func TestRebuildAfterSupersession(t *testing.T) {
	engine, env := newTestEngine(t, nil, licensePolicy())
	ctx := context.Background()

	before := engine.Snapshot()
	if before.RuleCount() != 1 {
		t.Fatalf("initial snapshot has %d rules, want 1", before.RuleCount())
	}

	// A v2 that drops the requirement supersedes v1.
	v2 := licensePolicy()
	v2.ID = "pol-license-v2"
	v2.Version = 2
	v2.Status = policy.StatusDraft
	v2.Requirements = nil
	if err := env.store.Put(v2); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := env.store.Activate(v2.ID); err != nil {
		t.Fatalf("Activate() error: %v", err)
	}

	after, err := engine.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild() error: %v", err)
	}
	if after.Version() <= before.Version() {
		t.Errorf("snapshot version should increase: %d -> %d", before.Version(), after.Version())
	}
	if after.RuleCount() != 0 {
		t.Errorf("superseded rules should leave the index, got %d", after.RuleCount())
	}

	result, err := engine.Enforce(ctx, assignRequest("suspended"))
	if err != nil {
		t.Fatalf("Enforce() error: %v", err)
	}
	if result.Decision != DecisionAllow {
		t.Errorf("after supersession the gate is gone, got %q", result.Decision)
	}
}

func TestEnforceValidatesContext(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	tests := []*Context{
		{TenantID: "t", Operation: "vehicle.assign", Timing: rules.TimingBefore},
		{RequestID: "r", Operation: "vehicle.assign", Timing: rules.TimingBefore},
		{RequestID: "r", TenantID: "t", Timing: rules.TimingBefore},
		{RequestID: "r", TenantID: "t", Operation: "vehicle.assign", Timing: "sometime"},
	}
	for i, req := range tests {
		if _, err := engine.Enforce(context.Background(), req); err == nil {
			t.Errorf("case %d: expected context validation error", i)
		}
	}
}

func TestAuditChainVerifiesAfterEnforcement(t *testing.T) {
	engine, env := newTestEngine(t, nil, licensePolicy(), repairApprovalPolicy())
	ctx := context.Background()

	calls := []*Context{
		assignRequest("valid"),
		{
			RequestID: "req-2", TenantID: "tenant-a",
			Module: "vehicle", Operation: "assign", Timing: rules.TimingBefore,
			Payload: map[string]any{"driver": map[string]any{"licenseStatus": "suspended"}},
		},
		{
			RequestID: "req-3", TenantID: "tenant-a",
			Module: "repair", Operation: "approve", Timing: rules.TimingBefore,
			Payload: map[string]any{"repair": map[string]any{"cost": 5000}},
		},
	}
	for _, req := range calls {
		if _, err := engine.Enforce(ctx, req); err != nil {
			t.Fatalf("Enforce(%s) error: %v", req.RequestID, err)
		}
	}

	if err := env.auditLog.Verify(ctx); err != nil {
		t.Fatalf("Verify() error: %v", err)
	}

	stats, err := env.auditLog.Stats(ctx, &audit.Query{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("stats total = %d, want 3", stats.Total)
	}
	if stats.ByDecision[string(DecisionBlock)] != 1 || stats.ByDecision[string(DecisionRequireApproval)] != 1 {
		t.Errorf("unexpected decision breakdown %v", stats.ByDecision)
	}
}
