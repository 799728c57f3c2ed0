package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fleetgrid/warden/pkg/rules"
)

// evalResult is the outcome of evaluating one condition (sub)tree.
type evalResult struct {
	matched  bool
	degraded bool
	reason   string
}

func degradedResult(reason string) evalResult {
	return evalResult{matched: false, degraded: true, reason: reason}
}

// evaluator resolves condition trees against an enforcement context.
// Degradation is not an error path: a predicate whose value cannot be
// resolved evaluates as undefined (false under everything but not-equals)
// and the result is flagged, so gates wrapping the predicate in a negation
// fire instead of passing.
type evaluator struct {
	accessor      DataAccessor
	lookupTimeout time.Duration
	logger        *slog.Logger
}

func newEvaluator(accessor DataAccessor, lookupTimeout time.Duration, logger *slog.Logger) *evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &evaluator{
		accessor:      accessor,
		lookupTimeout: lookupTimeout,
		logger:        logger.With("component", "enforce.evaluator"),
	}
}

// evaluate resolves a condition tree. A nil condition always matches.
func (ev *evaluator) evaluate(ctx context.Context, req *Context, cond *rules.Condition) evalResult {
	if cond == nil {
		return evalResult{matched: true}
	}

	switch cond.Type {
	case rules.ConditionTypeSimple:
		return ev.evaluateSimple(ctx, req, cond)

	case rules.ConditionTypeAll:
		out := evalResult{matched: true}
		for _, child := range cond.Children {
			r := ev.evaluate(ctx, req, child)
			out.degraded = out.degraded || r.degraded
			if out.reason == "" {
				out.reason = r.reason
			}
			if !r.matched {
				out.matched = false
				return out
			}
		}
		return out

	case rules.ConditionTypeAny:
		out := evalResult{matched: false}
		for _, child := range cond.Children {
			r := ev.evaluate(ctx, req, child)
			out.degraded = out.degraded || r.degraded
			if out.reason == "" {
				out.reason = r.reason
			}
			if r.matched {
				out.matched = true
				return out
			}
		}
		return out

	case rules.ConditionTypeNot:
		if len(cond.Children) != 1 {
			return degradedResult(fmt.Sprintf("not node has %d children", len(cond.Children)))
		}
		r := ev.evaluate(ctx, req, cond.Children[0])
		r.matched = !r.matched
		return r

	default:
		return degradedResult(fmt.Sprintf("unknown condition type %q", cond.Type))
	}
}

func (ev *evaluator) evaluateSimple(ctx context.Context, req *Context, cond *rules.Condition) evalResult {
	value, defined, degradedReason := ev.resolve(ctx, req, cond)

	matched, err := compare(cond.Operator, value, defined, cond.Value)
	if err != nil {
		// Operator errors (type mismatch, bad pattern) degrade to the
		// undefined semantics rather than aborting the call.
		matched = cond.Operator == rules.OperatorNotEqual
		if degradedReason == "" {
			degradedReason = err.Error()
		}
	}

	return evalResult{
		matched:  matched,
		degraded: degradedReason != "",
		reason:   degradedReason,
	}
}

// resolve produces the predicate's left-hand value. The third return is a
// non-empty degradation reason when resolution failed in a way the payload
// author did not control (lookup timeout, accessor error, expression
// error); a merely absent payload field is undefined but not degraded.
func (ev *evaluator) resolve(ctx context.Context, req *Context, cond *rules.Condition) (any, bool, string) {
	switch cond.Source {
	case rules.SourceLookup:
		if ev.accessor == nil {
			return nil, false, fmt.Sprintf("no data accessor for lookup field %q", cond.Field)
		}
		lookupCtx, cancel := context.WithTimeout(ctx, ev.lookupTimeout)
		defer cancel()
		value, err := ev.accessor.Lookup(lookupCtx, req, cond.Field)
		if err != nil {
			ev.logger.Warn("lookup failed, predicate degraded",
				"field", cond.Field,
				"tenant_id", req.TenantID,
				"request_id", req.RequestID,
				"error", err,
			)
			return nil, false, fmt.Sprintf("lookup %q: %v", cond.Field, err)
		}
		return value, true, ""

	case rules.SourceCalculated:
		value, err := evalExpression(cond.Expression, req.Payload)
		if err != nil {
			return nil, false, err.Error()
		}
		return value, true, ""

	default: // SourceContext and legacy empty source
		value, found := resolvePath(req.Payload, cond.Field)
		return value, found, ""
	}
}
