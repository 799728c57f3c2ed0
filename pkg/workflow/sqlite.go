package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const approvalSchema = `
CREATE TABLE IF NOT EXISTS approvals (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    request_id TEXT NOT NULL,
    rule_id TEXT NOT NULL,
    role TEXT NOT NULL,
    message TEXT,
    context TEXT,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    decided_at TIMESTAMP,
    decided_by TEXT
);

CREATE INDEX IF NOT EXISTS idx_approvals_tenant_status ON approvals(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_approvals_request ON approvals(request_id);
`

// SQLiteApprovalStore is the durable ApprovalStore backing production
// deployments: a require-approval request written here survives process
// restarts and failed notification deliveries.
type SQLiteApprovalStore struct {
	db *sql.DB
}

// NewSQLiteApprovalStore opens (and if needed initializes) the approval
// database at path.
func NewSQLiteApprovalStore(path string) (*SQLiteApprovalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open approval store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(approvalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create approval schema: %w", err)
	}
	return &SQLiteApprovalStore{db: db}, nil
}

// Record stores a pending approval request. The write is committed before
// Record returns.
func (s *SQLiteApprovalStore) Record(ctx context.Context, req *ApprovalRequest) error {
	if req.ID == "" {
		return fmt.Errorf("approval request needs an id")
	}
	contextJSON, err := json.Marshal(req.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO approvals (id, tenant_id, request_id, rule_id, role, message, context, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.TenantID, req.RequestID, req.RuleID, req.Role, req.Message,
		string(contextJSON), string(req.Status), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record approval: %w", err)
	}
	return nil
}

// Get returns one approval request by id.
func (s *SQLiteApprovalStore) Get(ctx context.Context, id string) (*ApprovalRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, request_id, rule_id, role, message, context, status, created_at, decided_at, decided_by
		FROM approvals WHERE id = ?`, id)
	return scanApproval(row)
}

// Decide resolves a pending request to granted or denied.
func (s *SQLiteApprovalStore) Decide(ctx context.Context, id string, status ApprovalStatus, decidedBy string) error {
	if status != ApprovalGranted && status != ApprovalDenied {
		return fmt.Errorf("invalid decision status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals SET status = ?, decided_at = ?, decided_by = ?
		WHERE id = ? AND status = ?`,
		string(status), time.Now(), decidedBy, id, string(ApprovalPending),
	)
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish unknown id from double decision.
		if _, err := s.Get(ctx, id); err != nil {
			return fmt.Errorf("decide %q: %w", id, ErrApprovalNotFound)
		}
		return fmt.Errorf("decide %q: %w", id, ErrAlreadyDecided)
	}
	return nil
}

// ListPending returns all pending requests for a tenant.
func (s *SQLiteApprovalStore) ListPending(ctx context.Context, tenantID string) ([]*ApprovalRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, request_id, rule_id, role, message, context, status, created_at, decided_at, decided_by
		FROM approvals WHERE tenant_id = ? AND status = ? ORDER BY created_at`,
		tenantID, string(ApprovalPending))
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []*ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteApprovalStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (*ApprovalRequest, error) {
	var req ApprovalRequest
	var contextJSON, status string
	var decidedAt sql.NullTime
	var decidedBy sql.NullString

	err := row.Scan(&req.ID, &req.TenantID, &req.RequestID, &req.RuleID, &req.Role,
		&req.Message, &contextJSON, &status, &req.CreatedAt, &decidedAt, &decidedBy)
	if err == sql.ErrNoRows {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan approval: %w", err)
	}

	req.Status = ApprovalStatus(status)
	if contextJSON != "" {
		if err := json.Unmarshal([]byte(contextJSON), &req.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		req.DecidedAt = &t
	}
	if decidedBy.Valid {
		req.DecidedBy = decidedBy.String
	}
	return &req, nil
}
