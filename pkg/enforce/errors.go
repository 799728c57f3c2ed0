package enforce

import (
	"errors"
	"fmt"
)

// ErrAuditUnavailable wraps audit append failures. A decision that could
// not be recorded is treated as if it was never made; callers must not
// proceed with the operation.
var ErrAuditUnavailable = errors.New("audit log unavailable")

// ContextError reports an enforcement context that cannot be evaluated.
type ContextError struct {
	Field  string
	Reason string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("invalid enforcement context: %s %s", e.Field, e.Reason)
}

// RebuildError reports a failed index rebuild. The previous snapshot stays
// active when a rebuild fails.
type RebuildError struct {
	PolicyID string
	Cause    error
}

func (e *RebuildError) Error() string {
	if e.PolicyID != "" {
		return fmt.Sprintf("index rebuild failed on policy %s: %v", e.PolicyID, e.Cause)
	}
	return fmt.Sprintf("index rebuild failed: %v", e.Cause)
}

func (e *RebuildError) Unwrap() error { return e.Cause }
