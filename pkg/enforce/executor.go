package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"fleetgrid/warden/pkg/rules"
	"fleetgrid/warden/pkg/workflow"
)

// executor applies a matched rule's actions to the in-progress result.
// Action failures are isolated: a notification that cannot be enqueued is
// logged and recorded in the evaluation, it never changes the decision.
// The one exception is require_approval, whose durable record is part of
// the decision itself: if it cannot be written the operation blocks.
type executor struct {
	approvals workflow.ApprovalStore
	notifier  workflow.Notifier
	runner    workflow.Runner
	logger    *slog.Logger
}

func newExecutor(approvals workflow.ApprovalStore, notifier workflow.Notifier, runner workflow.Runner, logger *slog.Logger) *executor {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = workflow.NewLogNotifier(logger)
	}
	if runner == nil {
		runner = workflow.NewLogRunner(logger)
	}
	return &executor{
		approvals: approvals,
		notifier:  notifier,
		runner:    runner,
		logger:    logger.With("component", "enforce.executor"),
	}
}

// execute runs a matched rule's actions in order, folding each action's
// contribution into the result and the rule's evaluation record.
func (x *executor) execute(ctx context.Context, req *Context, rule *rules.CompiledRule, res *Result, eval *RuleEvaluation) {
	for _, action := range rule.Actions {
		decision, message, err := x.applyAction(ctx, req, rule, action, res)
		if err != nil {
			eval.Error = err.Error()
			x.logger.Error("action failed",
				"rule", rule.Name,
				"action", string(action.Type),
				"request_id", req.RequestID,
				"error", err,
			)
		}
		if decision != "" {
			eval.Decision = MoreSevere(eval.Decision, decision)
			res.Decision = MoreSevere(res.Decision, decision)
		}
		if message != "" {
			eval.Message = message
			res.Messages = append(res.Messages, message)
		}
	}
}

// applyAction performs one action and returns its decision contribution
// and user-facing message, either possibly empty.
func (x *executor) applyAction(ctx context.Context, req *Context, rule *rules.CompiledRule, action *rules.Action, res *Result) (Decision, string, error) {
	message := expandTemplate(action.Message, req.Payload)

	switch action.Type {
	case rules.ActionTypeBlock:
		return DecisionBlock, message, nil

	case rules.ActionTypeWarn:
		return DecisionWarn, message, nil

	case rules.ActionTypeLog:
		x.logger.Info("rule log action",
			"rule", rule.Name,
			"tenant_id", req.TenantID,
			"request_id", req.RequestID,
			"message", message,
		)
		return "", "", nil

	case rules.ActionTypeNotify:
		if err := x.notifier.Notify(ctx, x.payload(req, rule, action, message)); err != nil {
			return "", "", fmt.Errorf("notify %q: %w", action.Target, err)
		}
		return "", "", nil

	case rules.ActionTypeRequireApproval:
		return x.requireApproval(ctx, req, rule, action, res, message)

	case rules.ActionTypeExecuteWorkflow:
		if err := x.runner.Run(ctx, x.payload(req, rule, action, message)); err != nil {
			return "", "", fmt.Errorf("workflow %q: %w", action.Target, err)
		}
		return "", "", nil

	case rules.ActionTypeCalculate:
		expr := action.StringParameter("expression")
		key := action.StringParameter("output_key")
		value, err := evalExpression(expr, req.Payload)
		if err != nil {
			return "", "", fmt.Errorf("calculate %q: %w", key, err)
		}
		if res.Metadata == nil {
			res.Metadata = make(map[string]any)
		}
		res.Metadata[key] = value
		return "", "", nil

	default:
		return "", "", fmt.Errorf("unknown action type %q", action.Type)
	}
}

// requireApproval durably records the approval request before returning:
// the require_approval decision is only valid if an approver can later find
// and decide the request. Recording failure fails closed to block.
func (x *executor) requireApproval(ctx context.Context, req *Context, rule *rules.CompiledRule, action *rules.Action, res *Result, message string) (Decision, string, error) {
	if x.approvals == nil {
		return DecisionBlock, message, fmt.Errorf("no approval store configured")
	}

	approval := &workflow.ApprovalRequest{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		RequestID: req.RequestID,
		RuleID:    rule.ID,
		Role:      action.Target,
		Message:   message,
		Context:   req.Payload,
		Status:    workflow.ApprovalPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := x.approvals.Record(ctx, approval); err != nil {
		return DecisionBlock, message, fmt.Errorf("record approval request: %w", err)
	}

	res.Approvers = append(res.Approvers, action.Target)

	// Best-effort notification to the approver role; the durable record
	// above is what the decision rests on.
	if err := x.notifier.Notify(ctx, x.payload(req, rule, action, message)); err != nil {
		x.logger.Warn("approval notification failed",
			"rule", rule.Name,
			"role", action.Target,
			"request_id", req.RequestID,
			"error", err,
		)
	}

	return DecisionRequireApproval, message, nil
}

func (x *executor) payload(req *Context, rule *rules.CompiledRule, action *rules.Action, message string) *workflow.Payload {
	return &workflow.Payload{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		TenantID:  req.TenantID,
		RequestID: req.RequestID,
		Operation: req.DottedOperation(),
		Target:    action.Target,
		Message:   message,
		Context:   req.Payload,
		CreatedAt: time.Now().UTC(),
	}
}

var templateVar = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_.]*)\}`)

// expandTemplate substitutes {dot.path} placeholders in a message with
// payload values. Unresolvable placeholders are left as written.
func expandTemplate(message string, payload map[string]any) string {
	if message == "" {
		return ""
	}
	return templateVar.ReplaceAllStringFunc(message, func(m string) string {
		path := m[1 : len(m)-1]
		if v, ok := resolvePath(payload, path); ok {
			return fmt.Sprintf("%v", v)
		}
		return m
	})
}
