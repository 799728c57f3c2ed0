package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogConfig configures the audit log.
type LogConfig struct {
	// AppendTimeout bounds the durable write of one entry.
	// Default: 5 seconds.
	AppendTimeout time.Duration
}

// DefaultLogConfig returns the default log configuration.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{AppendTimeout: 5 * time.Second}
}

// Log is the append-only audit logger. It assigns sequence numbers and
// chain hashes, deduplicates on (request id, timing), and exposes the
// aggregate queries compliance dashboards need. Appends are serialized so
// the chain stays linear under concurrent enforcement calls.
type Log struct {
	storage Storage
	config  *LogConfig
	logger  *slog.Logger

	mu       sync.Mutex
	lastSeq  int64
	lastHash string
}

// NewLog creates a Log over the given storage, resuming the chain from the
// storage's last entry.
func NewLog(storage Storage, config *LogConfig, logger *slog.Logger) (*Log, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if config == nil {
		config = DefaultLogConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.AppendTimeout)
	defer cancel()
	last, err := storage.Last(ctx)
	if err != nil {
		return nil, &StorageError{Op: "load tail", Cause: err}
	}

	l := &Log{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "audit.log"),
	}
	if last != nil {
		l.lastSeq = last.Seq
		l.lastHash = last.Hash
	}
	return l, nil
}

// Append persists one entry and returns its id. The entry's ID, Seq,
// PrevHash, Hash and (if unset) Timestamp are assigned here. Appending a
// second entry for the same (request id, timing) returns the existing
// entry's id without writing, which makes retried calls safe.
func (l *Log) Append(ctx context.Context, e *Entry) (string, error) {
	if e == nil {
		return "", fmt.Errorf("entry cannot be nil")
	}
	if e.RequestID == "" {
		return "", fmt.Errorf("entry needs a request id")
	}

	ctx, cancel := context.WithTimeout(ctx, l.config.AppendTimeout)
	defer cancel()

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.storage.FindByRequest(ctx, e.RequestID, e.Timing)
	if err != nil {
		return "", &StorageError{Op: "dedup lookup", Cause: err}
	}
	if existing != nil {
		l.logger.Debug("duplicate audit append suppressed",
			"request_id", e.RequestID,
			"timing", e.Timing,
			"entry_id", existing.ID,
		)
		return existing.ID, nil
	}

	e.ID = uuid.New().String()
	e.Seq = l.lastSeq + 1
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.PrevHash = l.lastHash
	hash, err := chainHash(l.lastHash, e)
	if err != nil {
		return "", err
	}
	e.Hash = hash

	if err := l.storage.Append(ctx, e); err != nil {
		return "", &StorageError{Op: "append", Cause: err}
	}

	l.lastSeq = e.Seq
	l.lastHash = e.Hash
	return e.ID, nil
}

// Find returns the entry recorded for a request id and timing, or nil if
// that call was never recorded.
func (l *Log) Find(ctx context.Context, requestID, timing string) (*Entry, error) {
	e, err := l.storage.FindByRequest(ctx, requestID, timing)
	if err != nil {
		return nil, &StorageError{Op: "find by request", Cause: err}
	}
	return e, nil
}

// Query returns entries matching the filter in chain order.
func (l *Log) Query(ctx context.Context, q *Query) ([]*Entry, error) {
	return l.storage.Query(ctx, q)
}

// Stats aggregates matching entries directly from the log.
func (l *Log) Stats(ctx context.Context, q *Query) (*Stats, error) {
	return l.storage.Stats(ctx, q)
}

// Verify walks the retained chain and recomputes every link. The first
// retained entry's PrevHash is taken as the trusted chain root (older
// entries may have been archived away by retention); everything after it
// must hash-link cleanly or a ChainError identifies the first bad entry.
func (l *Log) Verify(ctx context.Context) error {
	entries, err := l.storage.Query(ctx, &Query{})
	if err != nil {
		return &StorageError{Op: "verify scan", Cause: err}
	}

	var prevHash string
	var prevSeq int64
	for i, e := range entries {
		if i == 0 {
			prevHash = e.PrevHash
			prevSeq = e.Seq - 1
		}
		if e.Seq != prevSeq+1 {
			return &ChainError{Seq: e.Seq, Reason: fmt.Sprintf("sequence gap after %d", prevSeq)}
		}
		if e.PrevHash != prevHash {
			return &ChainError{Seq: e.Seq, Reason: "predecessor hash mismatch"}
		}
		want, err := chainHash(prevHash, e)
		if err != nil {
			return err
		}
		if e.Hash != want {
			return &ChainError{Seq: e.Seq, Reason: "entry hash mismatch"}
		}
		prevHash = e.Hash
		prevSeq = e.Seq
	}
	return nil
}

// Close closes the underlying storage.
func (l *Log) Close() error {
	return l.storage.Close()
}
