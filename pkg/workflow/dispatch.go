package workflow

import (
	"context"
	"log/slog"
	"time"
)

// Payload is the immutable hand-off the engine sends to a notification or
// workflow collaborator: which rule fired, for which request, aimed at
// which target, with a snapshot of the enforcement context.
type Payload struct {
	RuleID    string         `json:"rule_id"`
	RuleName  string         `json:"rule_name"`
	TenantID  string         `json:"tenant_id"`
	RequestID string         `json:"request_id"`
	Operation string         `json:"operation"`
	Target    string         `json:"target"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier delivers notifications to roles or user groups. Implementations
// must enqueue and return promptly; delivery happens out of band and its
// failure never affects the enforcement decision.
type Notifier interface {
	Notify(ctx context.Context, p *Payload) error
}

// Runner hands a payload to the external workflow service for execution.
// Like Notifier, implementations enqueue and return.
type Runner interface {
	Run(ctx context.Context, p *Payload) error
}

// LogNotifier is the default Notifier: it writes the notification to the
// structured log. Useful for development and as a stand-in in tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a Notifier backed by slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "workflow.notifier")}
}

// Notify logs the notification payload.
func (n *LogNotifier) Notify(ctx context.Context, p *Payload) error {
	n.logger.Info("notification dispatched",
		"rule", p.RuleName,
		"target", p.Target,
		"tenant_id", p.TenantID,
		"request_id", p.RequestID,
		"message", p.Message,
	)
	return nil
}

// LogRunner is the default Runner: it records the workflow hand-off in the
// structured log without executing anything.
type LogRunner struct {
	logger *slog.Logger
}

// NewLogRunner creates a Runner backed by slog.
func NewLogRunner(logger *slog.Logger) *LogRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRunner{logger: logger.With("component", "workflow.runner")}
}

// Run logs the workflow payload.
func (r *LogRunner) Run(ctx context.Context, p *Payload) error {
	r.logger.Info("workflow dispatched",
		"rule", p.RuleName,
		"workflow", p.Target,
		"tenant_id", p.TenantID,
		"request_id", p.RequestID,
	)
	return nil
}
