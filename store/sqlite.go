package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/autonomos/orchestrator/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: serializes writers, and keeps an in-memory database
	// shared across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			seq INTEGER PRIMARY KEY,
			ts DATETIME NOT NULL,
			event_count INTEGER NOT NULL,
			autonomous_count INTEGER NOT NULL,
			escalation_count INTEGER NOT NULL,
			observed_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL,
			snapshot_digest TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			decision_id TEXT PRIMARY KEY,
			cycle_seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			action TEXT,
			detail TEXT,
			failure_reason TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_cycle ON decisions(cycle_seq, created_at)`,
		`CREATE TABLE IF NOT EXISTS escalations (
			escalation_id TEXT PRIMARY KEY,
			cycle_seq INTEGER NOT NULL,
			event TEXT NOT NULL,
			recommended_action TEXT NOT NULL,
			status TEXT NOT NULL,
			decided_by TEXT,
			reason TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			decided_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_escalations_status ON escalations(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS purchase_orders (
			po_number TEXT PRIMARY KEY,
			date DATETIME NOT NULL,
			vendor_id TEXT NOT NULL,
			vendor_name TEXT NOT NULL,
			items TEXT NOT NULL,
			total_amount REAL NOT NULL,
			terms TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// NextCycleSeq returns the next cycle sequence number.
func (s *SQLiteStore) NextCycleSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM cycles`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// AppendCycle appends one cycle record.
func (s *SQLiteStore) AppendCycle(ctx context.Context, rec *domain.CycleRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (seq, ts, event_count, autonomous_count, escalation_count, observed_count, failed_count, snapshot_digest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq, rec.Timestamp, rec.EventCount, rec.AutonomousCount, rec.EscalationCount, rec.ObservedCount, rec.FailedCount, rec.SnapshotDigest)
	return err
}

// ListCycles lists the most recent cycle records, newest first.
func (s *SQLiteStore) ListCycles(ctx context.Context, limit int) ([]domain.CycleRecord, error) {
	query := `SELECT seq, ts, event_count, autonomous_count, escalation_count, observed_count, failed_count, snapshot_digest
		FROM cycles ORDER BY seq DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []domain.CycleRecord
	for rows.Next() {
		var rec domain.CycleRecord
		var digest sql.NullString
		if err := rows.Scan(&rec.Seq, &rec.Timestamp, &rec.EventCount, &rec.AutonomousCount, &rec.EscalationCount, &rec.ObservedCount, &rec.FailedCount, &digest); err != nil {
			return nil, err
		}
		if digest.Valid {
			rec.SnapshotDigest = digest.String
		}
		cycles = append(cycles, rec)
	}
	return cycles, rows.Err()
}

// CreateDecision appends one decision record.
func (s *SQLiteStore) CreateDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (decision_id, cycle_seq, kind, subject_id, outcome, action, detail, failure_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DecisionID, rec.CycleSeq, rec.Kind, rec.SubjectID, rec.Outcome, rec.Action, rec.Detail, rec.FailureReason, rec.CreatedAt)
	return err
}

// ListDecisions lists the decision records for a cycle in insertion order.
func (s *SQLiteStore) ListDecisions(ctx context.Context, cycleSeq int64) ([]domain.DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT decision_id, cycle_seq, kind, subject_id, outcome, action, detail, failure_reason, created_at
		 FROM decisions WHERE cycle_seq = ? ORDER BY rowid ASC`, cycleSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var action, detail, failureReason sql.NullString
		if err := rows.Scan(&rec.DecisionID, &rec.CycleSeq, &rec.Kind, &rec.SubjectID, &rec.Outcome, &action, &detail, &failureReason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if action.Valid {
			rec.Action = action.String
		}
		if detail.Valid {
			rec.Detail = detail.String
		}
		if failureReason.Valid {
			rec.FailureReason = failureReason.String
		}
		decisions = append(decisions, rec)
	}
	return decisions, rows.Err()
}

// CreateEscalation creates a new escalation.
func (s *SQLiteStore) CreateEscalation(ctx context.Context, esc *domain.Escalation) error {
	event, err := json.Marshal(esc.Event)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO escalations (escalation_id, cycle_seq, event, recommended_action, status, decided_by, reason, created_at, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		esc.EscalationID, esc.CycleSeq, string(event), esc.RecommendedAction, esc.Status, esc.DecidedBy, esc.Reason, esc.CreatedAt, esc.DecidedAt)
	return err
}

// GetEscalation retrieves an escalation by ID. Returns nil when not found.
func (s *SQLiteStore) GetEscalation(ctx context.Context, escalationID string) (*domain.Escalation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT escalation_id, cycle_seq, event, recommended_action, status, decided_by, reason, created_at, decided_at
		 FROM escalations WHERE escalation_id = ?`, escalationID)

	esc, err := scanEscalation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return esc, nil
}

// ListEscalations lists escalations, optionally filtered by status.
func (s *SQLiteStore) ListEscalations(ctx context.Context, status domain.EscalationStatus) ([]domain.Escalation, error) {
	query := `SELECT escalation_id, cycle_seq, event, recommended_action, status, decided_by, reason, created_at, decided_at
		FROM escalations`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escalations []domain.Escalation
	for rows.Next() {
		esc, err := scanEscalation(rows.Scan)
		if err != nil {
			return nil, err
		}
		escalations = append(escalations, *esc)
	}
	return escalations, rows.Err()
}

func scanEscalation(scan func(dest ...interface{}) error) (*domain.Escalation, error) {
	var esc domain.Escalation
	var event string
	var decidedBy, reason sql.NullString
	var decidedAt sql.NullTime
	if err := scan(&esc.EscalationID, &esc.CycleSeq, &event, &esc.RecommendedAction, &esc.Status, &decidedBy, &reason, &esc.CreatedAt, &decidedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(event), &esc.Event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal escalation event: %w", err)
	}
	if decidedBy.Valid {
		esc.DecidedBy = decidedBy.String
	}
	if reason.Valid {
		esc.Reason = reason.String
	}
	if decidedAt.Valid {
		esc.DecidedAt = &decidedAt.Time
	}
	return &esc, nil
}

// UpdateEscalationStatus records a human decision on an escalation.
func (s *SQLiteStore) UpdateEscalationStatus(ctx context.Context, escalationID string, status domain.EscalationStatus, decidedBy, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET status = ?, decided_by = ?, reason = ?, decided_at = CURRENT_TIMESTAMP WHERE escalation_id = ?`,
		status, decidedBy, reason, escalationID)
	return err
}

// ApprovalRate returns the fraction of decided escalations that were
// approved, 0 when none have been decided yet.
func (s *SQLiteStore) ApprovalRate(ctx context.Context) (float64, error) {
	var approved, decided int64
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN status = ? THEN 1 END),
			COUNT(CASE WHEN status IN (?, ?) THEN 1 END)
		 FROM escalations`,
		domain.EscalationStatusApproved, domain.EscalationStatusApproved, domain.EscalationStatusRejected).
		Scan(&approved, &decided)
	if err != nil {
		return 0, err
	}
	if decided == 0 {
		return 0, nil
	}
	return float64(approved) / float64(decided), nil
}

// CreatePurchaseOrder persists a generated purchase order.
func (s *SQLiteStore) CreatePurchaseOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	items, err := json.Marshal(po.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal line items: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO purchase_orders (po_number, date, vendor_id, vendor_name, items, total_amount, terms, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		po.PONumber, po.Date, po.VendorID, po.VendorName, string(items), po.TotalAmount, po.Terms, po.Status)
	return err
}

// ListPurchaseOrders lists purchase orders, newest first.
func (s *SQLiteStore) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT po_number, date, vendor_id, vendor_name, items, total_amount, terms, status
		 FROM purchase_orders ORDER BY date DESC, po_number DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.PurchaseOrder
	for rows.Next() {
		var po domain.PurchaseOrder
		var items string
		if err := rows.Scan(&po.PONumber, &po.Date, &po.VendorID, &po.VendorName, &items, &po.TotalAmount, &po.Terms, &po.Status); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(items), &po.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal line items: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}
