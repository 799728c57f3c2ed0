package audit

import "fmt"

// ChainError reports a broken hash chain: an entry whose stored hash or
// predecessor link does not match what recomputation yields.
type ChainError struct {
	Seq    int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at seq %d: %s", e.Seq, e.Reason)
}

// StorageError wraps a backend failure with the operation that hit it.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }
