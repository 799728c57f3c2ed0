package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fleetgrid/warden/pkg/audit"
	"fleetgrid/warden/pkg/compiler"
	"fleetgrid/warden/pkg/policy"
	"fleetgrid/warden/pkg/rules"
	"fleetgrid/warden/pkg/rules/index"
	"fleetgrid/warden/pkg/workflow"
)

// Options wires the engine's collaborators. Store, Compiler and AuditLog
// are required; the rest have working defaults.
type Options struct {
	Store    policy.Store
	Compiler *compiler.Compiler
	AuditLog *audit.Log

	// Accessor resolves lookup-sourced fields. Nil degrades every lookup
	// predicate, which fails lookup-based gates closed.
	Accessor DataAccessor

	// Approvals stores require-approval requests durably. Nil turns every
	// require_approval action into a block.
	Approvals workflow.ApprovalStore

	Notifier workflow.Notifier
	Runner   workflow.Runner
	Metrics  Metrics
	Config   *Config
	Logger   *slog.Logger
}

// Engine is the synchronous enforcement point. One engine serves all
// tenants; per-call isolation comes from the index keying and the
// immutable snapshot each call pins.
type Engine struct {
	store    policy.Store
	compiler *compiler.Compiler
	index    *index.Index
	auditLog *audit.Log

	evaluator *evaluator
	executor  *executor

	metrics Metrics
	config  *Config
	logger  *slog.Logger

	mu      sync.Mutex // serializes rebuilds
	stopped chan struct{}
	once    sync.Once
}

// NewEngine creates an engine with an empty rule index. Call Rebuild (or
// Start, which rebuilds and then follows store changes) before enforcing.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	if opts.Compiler == nil {
		return nil, fmt.Errorf("compiler is required")
	}
	if opts.AuditLog == nil {
		return nil, fmt.Errorf("audit log is required")
	}
	if opts.Config == nil {
		opts.Config = DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	return &Engine{
		store:     opts.Store,
		compiler:  opts.Compiler,
		index:     index.New(),
		auditLog:  opts.AuditLog,
		evaluator: newEvaluator(opts.Accessor, opts.Config.LookupTimeout, opts.Logger),
		executor:  newExecutor(opts.Approvals, opts.Notifier, opts.Runner, opts.Logger),
		metrics:   opts.Metrics,
		config:    opts.Config,
		logger:    opts.Logger.With("component", "enforce.engine"),
		stopped:   make(chan struct{}),
	}, nil
}

// Enforce evaluates one attempted operation and returns the decision.
//
// The call pins the index snapshot current at entry, evaluates every
// matching rule in priority order, executes matched rules' actions, and
// appends exactly one audit entry before returning. A non-nil error means
// no decision was durably recorded and the operation must not proceed.
func (e *Engine) Enforce(ctx context.Context, req *Context) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	// A request already recorded for this timing is a retry. Return the
	// recorded decision instead of evaluating again, so a retried call
	// cannot record a second approval request or re-send notifications.
	prior, err := e.auditLog.Find(ctx, req.RequestID, string(req.Timing))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	if prior != nil {
		result := resultFromEntry(prior)
		result.Duration = time.Since(start)
		e.logger.Debug("duplicate enforcement call, returning recorded decision",
			"request_id", req.RequestID,
			"timing", string(req.Timing),
			"audit_entry_id", prior.ID,
		)
		return result, nil
	}

	snapshot := e.index.Active()
	operation := req.DottedOperation()

	matched := snapshot.Lookup(req.TenantID, operation, req.Timing)

	result := &Result{
		Decision:     DecisionAllow,
		IndexVersion: snapshot.Version(),
	}

	for _, rule := range matched {
		eval := RuleEvaluation{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Kind:     rule.Kind,
		}

		r := e.evaluator.evaluate(ctx, req, rule.Condition)
		eval.Matched = r.matched
		eval.Degraded = r.degraded
		eval.DegradedReason = r.reason
		if r.degraded {
			result.Degraded = true
			e.metrics.RecordDegraded(req.TenantID)
		}

		if r.matched {
			e.executor.execute(ctx, req, rule, result, &eval)
		}

		result.Evaluations = append(result.Evaluations, eval)
	}

	// After-timing calls observe a completed operation; nothing is left
	// to prevent or to gate behind an approver. The compiler already
	// demotes after-timing block and require_approval actions, this guard
	// covers rules that arrived through other paths.
	if req.Timing == rules.TimingAfter {
		switch result.Decision {
		case DecisionBlock, DecisionRequireApproval:
			result.Decision = DecisionWarn
		}
	}

	result.Duration = time.Since(start)

	entryID, err := e.appendAudit(ctx, req, operation, result)
	if err != nil {
		e.metrics.RecordAuditAppend(false)
		return nil, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	e.metrics.RecordAuditAppend(true)
	result.AuditEntryID = entryID

	e.metrics.RecordEnforcement(req.TenantID, result.Decision, result.Duration)
	e.logger.Debug("enforcement completed",
		"tenant_id", req.TenantID,
		"operation", operation,
		"timing", string(req.Timing),
		"decision", string(result.Decision),
		"rules_considered", len(result.Evaluations),
		"duration", result.Duration,
	)
	return result, nil
}

// resultFromEntry reconstructs the result of an already-recorded call from
// its audit entry. Calculate-rule metadata is not persisted and is absent
// from replayed results.
func resultFromEntry(entry *audit.Entry) *Result {
	result := &Result{
		Decision:     Decision(entry.Decision),
		Messages:     entry.Messages,
		Approvers:    entry.Approvers,
		AuditEntryID: entry.ID,
		IndexVersion: entry.IndexVersion,
	}
	for _, o := range entry.Evaluations {
		result.Evaluations = append(result.Evaluations, RuleEvaluation{
			RuleID:         o.RuleID,
			RuleName:       o.RuleName,
			Kind:           rules.Kind(o.Kind),
			Matched:        o.Matched,
			Degraded:       o.Degraded,
			DegradedReason: o.DegradedReason,
			Decision:       Decision(o.Decision),
			Message:        o.Message,
			Error:          o.Error,
		})
		if o.Degraded {
			result.Degraded = true
		}
	}
	return result
}

func (e *Engine) appendAudit(ctx context.Context, req *Context, operation string, result *Result) (string, error) {
	auditCtx, cancel := context.WithTimeout(ctx, e.config.AuditTimeout)
	defer cancel()

	outcomes := make([]audit.RuleOutcome, 0, len(result.Evaluations))
	for i := range result.Evaluations {
		outcomes = append(outcomes, result.Evaluations[i].outcome())
	}

	module := req.Module
	if module == "" {
		module = rules.Trigger{Operation: operation}.Module()
	}

	return e.auditLog.Append(auditCtx, &audit.Entry{
		RequestID:    req.RequestID,
		TenantID:     req.TenantID,
		Module:       module,
		Operation:    operation,
		Timing:       string(req.Timing),
		Actor:        req.Actor,
		Payload:      req.Payload,
		IndexVersion: result.IndexVersion,
		Evaluations:  outcomes,
		Decision:     string(result.Decision),
		Messages:     result.Messages,
		Approvers:    result.Approvers,
	})
}

// Rebuild recompiles every active policy across all tenants and swaps the
// resulting rule set into the index atomically. A failed rebuild leaves
// the previous snapshot active.
func (e *Engine) Rebuild(ctx context.Context) (*index.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	policies, err := e.store.GetActivePolicies(ctx, "", "")
	if err != nil {
		return nil, &RebuildError{Cause: err}
	}

	var ruleSet []*rules.CompiledRule
	var warnings int
	for _, p := range policies {
		res, err := e.compiler.Compile(p)
		if err != nil {
			return nil, &RebuildError{PolicyID: p.ID, Cause: err}
		}
		ruleSet = append(ruleSet, res.Rules...)
		warnings += len(res.Warnings)
		for _, w := range res.Warnings {
			e.logger.Warn("compile warning", "policy_id", p.ID, "warning", w.String())
		}
	}

	snapshot, err := e.index.Swap(ruleSet)
	if err != nil {
		return nil, &RebuildError{Cause: err}
	}

	e.metrics.RecordIndexRebuild(snapshot.RuleCount())
	e.logger.Info("rule index rebuilt",
		"version", snapshot.Version(),
		"policies", len(policies),
		"rules", snapshot.RuleCount(),
		"warnings", warnings,
	)
	return snapshot, nil
}

// Start performs an initial rebuild and then follows the policy store's
// change events, rebuilding the index after each. It returns once the
// initial rebuild finished; the follower goroutine runs until ctx is
// cancelled or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	if _, err := e.Rebuild(ctx); err != nil {
		return err
	}

	events := e.store.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopped:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				e.logger.Info("policy change, rebuilding index",
					"change", string(ev.Type),
					"tenant_id", ev.TenantID,
					"policy_id", ev.PolicyID,
				)
				if _, err := e.Rebuild(ctx); err != nil {
					e.logger.Error("index rebuild failed, keeping previous snapshot", "error", err)
				}
			}
		}
	}()
	return nil
}

// Snapshot returns the currently active rule index snapshot.
func (e *Engine) Snapshot() *index.Snapshot {
	return e.index.Active()
}

// Close stops the change follower. It does not close the collaborators
// passed in Options; their lifecycle belongs to the caller.
func (e *Engine) Close() error {
	e.once.Do(func() { close(e.stopped) })
	return nil
}
