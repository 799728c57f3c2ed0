package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"fleetgrid/warden/pkg/audit"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL UNIQUE,
    request_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    module TEXT NOT NULL,
    operation TEXT NOT NULL,
    timing TEXT NOT NULL,
    actor TEXT,
    payload TEXT,
    index_version INTEGER NOT NULL,
    evaluations TEXT NOT NULL,
    decision TEXT NOT NULL,
    messages TEXT,
    approvers TEXT,
    timestamp TIMESTAMP NOT NULL,
    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_request_timing ON audit_entries(request_id, timing);
CREATE INDEX IF NOT EXISTS idx_audit_tenant_time ON audit_entries(tenant_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_decision ON audit_entries(decision);
`

const entryColumns = `id, seq, request_id, tenant_id, module, operation, timing, actor,
	payload, index_version, evaluations, decision, messages, approvers,
	timestamp, prev_hash, hash`

// SQLiteStorage persists audit entries to a SQLite database. The unique
// index on (request_id, timing) backs the log's idempotent append at the
// storage level as well.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (and if needed initializes) the audit database
// at path.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Append(ctx context.Context, e *audit.Entry) error {
	payload, err := marshalField(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	evaluations, err := json.Marshal(e.Evaluations)
	if err != nil {
		return fmt.Errorf("marshal evaluations: %w", err)
	}
	messages, err := marshalField(e.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	approvers, err := marshalField(e.Approvers)
	if err != nil {
		return fmt.Errorf("marshal approvers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Seq, e.RequestID, e.TenantID, e.Module, e.Operation, e.Timing, e.Actor,
		payload, e.IndexVersion, string(evaluations), e.Decision, messages, approvers,
		e.Timestamp, e.PrevHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Last(ctx context.Context) (*audit.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM audit_entries ORDER BY seq DESC LIMIT 1`)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *SQLiteStorage) FindByRequest(ctx context.Context, requestID, timing string) (*audit.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM audit_entries WHERE request_id = ? AND timing = ?`,
		requestID, timing)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Entry, error) {
	where, args := buildWhere(q)
	query := `SELECT ` + entryColumns + ` FROM audit_entries` + where + ` ORDER BY seq`

	// A rule filter needs the exact per-outcome check below, so paging
	// moves out of SQL: the LIKE in buildWhere is only a coarse prefilter.
	exactRule := q != nil && q.RuleID != ""
	if !exactRule {
		if q != nil && q.Limit > 0 {
			query += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset)
		} else if q != nil && q.Offset > 0 {
			query += fmt.Sprintf(" LIMIT -1 OFFSET %d", q.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*audit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if exactRule && !entryHasRule(e, q.RuleID) {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if exactRule {
		out = page(out, q.Offset, q.Limit)
	}
	return out, nil
}

// entryHasRule reports whether one of the entry's evaluations is for the
// given rule id. The LIKE prefilter also matches ids embedded in rule names
// or messages; this is the exact check.
func entryHasRule(e *audit.Entry, ruleID string) bool {
	for _, ev := range e.Evaluations {
		if ev.RuleID == ruleID {
			return true
		}
	}
	return false
}

func page(entries []*audit.Entry, offset, limit int) []*audit.Entry {
	if offset > 0 {
		if offset >= len(entries) {
			return nil
		}
		entries = entries[offset:]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (s *SQLiteStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	if q != nil && q.RuleID != "" {
		cp := *q
		cp.Limit, cp.Offset = 0, 0
		entries, err := s.Query(ctx, &cp)
		if err != nil {
			return 0, err
		}
		return int64(len(entries)), nil
	}

	where, args := buildWhere(q)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count audit entries: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) Stats(ctx context.Context, q *audit.Query) (*audit.Stats, error) {
	// A rule filter cannot be expressed in the SQL group-bys; aggregate
	// from the exactly-filtered entries instead.
	if q != nil && q.RuleID != "" {
		return s.statsFromEntries(ctx, q)
	}

	stats := &audit.Stats{
		ByDecision: make(map[string]int64),
		ByRule:     make(map[string]int64),
		ByTenant:   make(map[string]int64),
	}

	where, args := buildWhere(q)

	rows, err := s.db.QueryContext(ctx, `
		SELECT decision, COUNT(*) FROM audit_entries`+where+` GROUP BY decision`, args...)
	if err != nil {
		return nil, fmt.Errorf("stats by decision: %w", err)
	}
	for rows.Next() {
		var decision string
		var n int64
		if err := rows.Scan(&decision, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByDecision[decision] = n
		stats.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT tenant_id, COUNT(*) FROM audit_entries`+where+` GROUP BY tenant_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("stats by tenant: %w", err)
	}
	for rows.Next() {
		var tenant string
		var n int64
		if err := rows.Scan(&tenant, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByTenant[tenant] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Per-rule match counts live inside the evaluations JSON; walk the
	// matching entries rather than maintaining a parallel counter table.
	rows, err = s.db.QueryContext(ctx, `
		SELECT evaluations FROM audit_entries`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("stats by rule: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var evals []audit.RuleOutcome
		if err := json.Unmarshal([]byte(raw), &evals); err != nil {
			return nil, fmt.Errorf("unmarshal evaluations: %w", err)
		}
		for _, ev := range evals {
			if ev.Matched {
				stats.ByRule[ev.RuleID]++
			}
		}
	}
	return stats, rows.Err()
}

func (s *SQLiteStorage) statsFromEntries(ctx context.Context, q *audit.Query) (*audit.Stats, error) {
	cp := *q
	cp.Limit, cp.Offset = 0, 0
	entries, err := s.Query(ctx, &cp)
	if err != nil {
		return nil, err
	}

	stats := &audit.Stats{
		ByDecision: make(map[string]int64),
		ByRule:     make(map[string]int64),
		ByTenant:   make(map[string]int64),
	}
	for _, e := range entries {
		stats.Total++
		stats.ByDecision[e.Decision]++
		stats.ByTenant[e.TenantID]++
		for _, ev := range e.Evaluations {
			if ev.Matched {
				stats.ByRule[ev.RuleID]++
			}
		}
	}
	return stats, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhere(q)
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_entries`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete audit entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

func buildWhere(q *audit.Query) (string, []any) {
	if q == nil {
		return "", nil
	}
	var conds []string
	var args []any
	if q.TenantID != "" {
		conds = append(conds, "tenant_id = ?")
		args = append(args, q.TenantID)
	}
	if q.Decision != "" {
		conds = append(conds, "decision = ?")
		args = append(args, q.Decision)
	}
	if q.RuleID != "" {
		// Coarse prefilter; Query does the exact per-outcome check.
		conds = append(conds, "evaluations LIKE ?")
		args = append(args, "%"+q.RuleID+"%")
	}
	if q.Start != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, *q.Start)
	}
	if q.End != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, *q.End)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func marshalField(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func scanEntry(row interface{ Scan(...any) error }) (*audit.Entry, error) {
	var e audit.Entry
	var payload, evaluations, messages, approvers sql.NullString
	var actor sql.NullString

	err := row.Scan(&e.ID, &e.Seq, &e.RequestID, &e.TenantID, &e.Module, &e.Operation,
		&e.Timing, &actor, &payload, &e.IndexVersion, &evaluations, &e.Decision,
		&messages, &approvers, &e.Timestamp, &e.PrevHash, &e.Hash)
	if err != nil {
		return nil, err
	}

	e.Actor = actor.String
	if payload.Valid && payload.String != "" && payload.String != "null" {
		if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if evaluations.Valid && evaluations.String != "" {
		if err := json.Unmarshal([]byte(evaluations.String), &e.Evaluations); err != nil {
			return nil, fmt.Errorf("unmarshal evaluations: %w", err)
		}
	}
	if messages.Valid && messages.String != "" && messages.String != "null" {
		if err := json.Unmarshal([]byte(messages.String), &e.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
	}
	if approvers.Valid && approvers.String != "" && approvers.String != "null" {
		if err := json.Unmarshal([]byte(approvers.String), &e.Approvers); err != nil {
			return nil, fmt.Errorf("unmarshal approvers: %w", err)
		}
	}
	return &e, nil
}
