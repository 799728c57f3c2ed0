// Package workflow defines the contracts between the enforcement engine
// and its external collaborators: the notification service, the workflow
// service, and the approval queue.
//
// Notifications and workflow executions are fire-and-forget from the
// engine's perspective; implementations must enqueue and return promptly.
// Approval requests are different: the pending request must be durably
// recorded before the enforcement call returns, so a lost notification can
// never lose the approval itself. The SQLite-backed ApprovalStore provides
// that durability.
package workflow
