// Package sqlite implements ledger.Store backed by SQLite, with tables for
// the budget-node hierarchy, leases, reservations, and usage events. Reserve
// and Commit each open their own transaction, SQLite's stand-in for
// row-level locking under WAL, so a concurrent Reserve against the same
// lease or budget node serializes rather than races.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/idgen"
	"github.com/budgetgate/budgetcore/internal/ledger"
)

// Store implements ledger.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite store at the given path.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS budget_nodes (
	id TEXT PRIMARY KEY,
	scope TEXT NOT NULL CHECK(scope IN ('master','provider','project','agent')),
	parent_id TEXT REFERENCES budget_nodes(id),
	max_micro_usd INTEGER NOT NULL,
	spent_micro_usd INTEGER NOT NULL DEFAULT 0,
	enforcement TEXT NOT NULL CHECK(enforcement IN ('restrictive','informative')),
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_budget_nodes_parent ON budget_nodes(parent_id);

CREATE TABLE IF NOT EXISTS leases (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	budget_node_id TEXT NOT NULL REFERENCES budget_nodes(id),
	granted_micro_usd INTEGER NOT NULL,
	consumed_micro_usd INTEGER NOT NULL DEFAULT 0,
	reserved_micro_usd INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL CHECK(state IN ('active','closed')) DEFAULT 'active',
	refresh_watermark_micro_usd INTEGER NOT NULL DEFAULT 0,
	created_at_ms INTEGER NOT NULL,
	last_report_at_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_leases_agent ON leases(agent_id);

CREATE TABLE IF NOT EXISTS reservations (
	id TEXT PRIMARY KEY,
	lease_id TEXT NOT NULL REFERENCES leases(id),
	micro_usd INTEGER NOT NULL,
	settled INTEGER NOT NULL DEFAULT 0,
	created_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_events (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL UNIQUE,
	lease_id TEXT NOT NULL REFERENCES leases(id),
	agent_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	cost_micro_usd INTEGER NOT NULL,
	created_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_limits (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL UNIQUE,
	max_cost_per_month_micro_usd INTEGER NOT NULL,
	current_cost_micro_usd_this_month INTEGER NOT NULL DEFAULT 0,
	reset_at_ms INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateBudgetNode(ctx context.Context, scope ledger.Scope, parentID *string, maxMicroUSD int64, enforcement ledger.Enforcement) (*ledger.BudgetNode, error) {
	n := &ledger.BudgetNode{
		ID:          idgen.NewBudget(),
		Scope:       scope,
		ParentID:    parentID,
		MaxMicroUSD: maxMicroUSD,
		Enforcement: enforcement,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_nodes (id, scope, parent_id, max_micro_usd, spent_micro_usd, enforcement, created_at_ms)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		n.ID, string(n.Scope), n.ParentID, n.MaxMicroUSD, string(n.Enforcement), n.CreatedAtMs)
	if err != nil {
		return nil, fmt.Errorf("create budget node: %w", err)
	}
	return n, nil
}

func (s *Store) GetBudgetNode(ctx context.Context, id string) (*ledger.BudgetNode, error) {
	return scanBudgetNode(s.db.QueryRowContext(ctx,
		`SELECT id, scope, parent_id, max_micro_usd, spent_micro_usd, enforcement, created_at_ms FROM budget_nodes WHERE id = ?`, id))
}

func scanBudgetNode(row *sql.Row) (*ledger.BudgetNode, error) {
	var n ledger.BudgetNode
	var scope, enforcement string
	var parentID sql.NullString
	if err := row.Scan(&n.ID, &scope, &parentID, &n.MaxMicroUSD, &n.SpentMicroUSD, &enforcement, &n.CreatedAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcerrors.ErrNotFound
		}
		return nil, fmt.Errorf("get budget node: %w", err)
	}
	n.Scope = ledger.Scope(scope)
	n.Enforcement = ledger.Enforcement(enforcement)
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	return &n, nil
}

func (s *Store) UpdateBudgetNodeMax(ctx context.Context, id string, maxMicroUSD int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE budget_nodes SET max_micro_usd = ? WHERE id = ?`, maxMicroUSD, id)
	if err != nil {
		return err
	}
	return checkRows(res, err)
}

func (s *Store) CreateLease(ctx context.Context, agentID, budgetNodeID string, grantedMicroUSD, refreshWatermarkMicroUSD int64) (*ledger.Lease, error) {
	l := &ledger.Lease{
		ID:                       idgen.NewLease(),
		AgentID:                  agentID,
		BudgetNodeID:             budgetNodeID,
		GrantedMicroUSD:          grantedMicroUSD,
		State:                    ledger.LeaseActive,
		RefreshWatermarkMicroUSD: refreshWatermarkMicroUSD,
		CreatedAtMs:              time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leases (id, agent_id, budget_node_id, granted_micro_usd, consumed_micro_usd, reserved_micro_usd, state, refresh_watermark_micro_usd, created_at_ms, last_report_at_ms)
		 VALUES (?, ?, ?, ?, 0, 0, 'active', ?, ?, 0)`,
		l.ID, l.AgentID, l.BudgetNodeID, l.GrantedMicroUSD, l.RefreshWatermarkMicroUSD, l.CreatedAtMs)
	if err != nil {
		return nil, fmt.Errorf("create lease: %w", err)
	}
	return l, nil
}

func (s *Store) GetLease(ctx context.Context, id string) (*ledger.Lease, error) {
	return scanLease(s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, budget_node_id, granted_micro_usd, consumed_micro_usd, reserved_micro_usd, state, refresh_watermark_micro_usd, created_at_ms, last_report_at_ms
		 FROM leases WHERE id = ?`, id))
}

func scanLease(row *sql.Row) (*ledger.Lease, error) {
	var l ledger.Lease
	var state string
	if err := row.Scan(&l.ID, &l.AgentID, &l.BudgetNodeID, &l.GrantedMicroUSD, &l.ConsumedMicroUSD, &l.ReservedMicroUSD,
		&state, &l.RefreshWatermarkMicroUSD, &l.CreatedAtMs, &l.LastReportAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcerrors.ErrLeaseNotFound
		}
		return nil, fmt.Errorf("get lease: %w", err)
	}
	l.State = ledger.LeaseState(state)
	return &l, nil
}

func (s *Store) RefreshLease(ctx context.Context, id string, deltaMicroUSD int64) (*ledger.Lease, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var state string
	if err := tx.QueryRowContext(ctx, `SELECT state FROM leases WHERE id = ?`, id).Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcerrors.ErrLeaseNotFound
		}
		return nil, err
	}
	if ledger.LeaseState(state) == ledger.LeaseClosed {
		return nil, bcerrors.ErrLeaseClosed
	}
	if _, err := tx.ExecContext(ctx, `UPDATE leases SET granted_micro_usd = granted_micro_usd + ? WHERE id = ?`, deltaMicroUSD, id); err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT id, agent_id, budget_node_id, granted_micro_usd, consumed_micro_usd, reserved_micro_usd, state, refresh_watermark_micro_usd, created_at_ms, last_report_at_ms
		 FROM leases WHERE id = ?`, id)
	var l ledger.Lease
	var st string
	if err := row.Scan(&l.ID, &l.AgentID, &l.BudgetNodeID, &l.GrantedMicroUSD, &l.ConsumedMicroUSD, &l.ReservedMicroUSD,
		&st, &l.RefreshWatermarkMicroUSD, &l.CreatedAtMs, &l.LastReportAtMs); err != nil {
		return nil, err
	}
	l.State = ledger.LeaseState(st)
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) CloseLease(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lease, err := scanLeaseTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if lease.State == ledger.LeaseClosed {
		return tx.Commit()
	}
	if lease.ReservedMicroUSD > 0 {
		if err := releaseFromAncestors(ctx, tx, lease.BudgetNodeID, lease.ReservedMicroUSD); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE leases SET state = 'closed', reserved_micro_usd = 0 WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanLeaseTx(ctx context.Context, tx *sql.Tx, id string) (*ledger.Lease, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, agent_id, budget_node_id, granted_micro_usd, consumed_micro_usd, reserved_micro_usd, state, refresh_watermark_micro_usd, created_at_ms, last_report_at_ms
		 FROM leases WHERE id = ?`, id)
	var l ledger.Lease
	var state string
	if err := row.Scan(&l.ID, &l.AgentID, &l.BudgetNodeID, &l.GrantedMicroUSD, &l.ConsumedMicroUSD, &l.ReservedMicroUSD,
		&state, &l.RefreshWatermarkMicroUSD, &l.CreatedAtMs, &l.LastReportAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcerrors.ErrLeaseNotFound
		}
		return nil, err
	}
	l.State = ledger.LeaseState(state)
	return &l, nil
}

// Reserve walks lease's budget node up to master inside one transaction,
// checking each Restrictive node's headroom before committing any write; a
// denial at any level leaves every node and the lease untouched.
func (s *Store) Reserve(ctx context.Context, leaseID string, microUSD int64) (*ledger.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lease, err := scanLeaseTx(ctx, tx, leaseID)
	if err != nil {
		return nil, err
	}
	if lease.State == ledger.LeaseClosed {
		return nil, bcerrors.ErrLeaseClosed
	}
	if lease.Remaining() < microUSD {
		return nil, bcerrors.Wrap(bcerrors.ErrBudgetExceeded, "lease %s has %d remaining, needs %d", leaseID, lease.Remaining(), microUSD)
	}

	nodeID := lease.BudgetNodeID
	for nodeID != "" {
		node, err := scanBudgetNodeTx(ctx, tx, nodeID)
		if err != nil {
			return nil, err
		}
		if node.Enforcement == ledger.Restrictive && node.SpentMicroUSD+microUSD > node.MaxMicroUSD {
			return nil, bcerrors.Wrap(bcerrors.ErrBudgetExceeded, "budget node %s has %d headroom, needs %d",
				node.ID, node.MaxMicroUSD-node.SpentMicroUSD, microUSD)
		}
		if node.ParentID == nil {
			break
		}
		nodeID = *node.ParentID
	}

	if _, err := tx.ExecContext(ctx, `UPDATE leases SET reserved_micro_usd = reserved_micro_usd + ? WHERE id = ?`, microUSD, leaseID); err != nil {
		return nil, err
	}
	if err := walkUpSpent(ctx, tx, lease.BudgetNodeID, microUSD); err != nil {
		return nil, err
	}

	r := &ledger.Reservation{
		ID:          idgen.New("resv_"),
		LeaseID:     leaseID,
		MicroUSD:    microUSD,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (id, lease_id, micro_usd, settled, created_at_ms) VALUES (?, ?, ?, 0, ?)`,
		r.ID, r.LeaseID, r.MicroUSD, r.CreatedAtMs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func scanBudgetNodeTx(ctx context.Context, tx *sql.Tx, id string) (*ledger.BudgetNode, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, scope, parent_id, max_micro_usd, spent_micro_usd, enforcement, created_at_ms FROM budget_nodes WHERE id = ?`, id)
	var n ledger.BudgetNode
	var scope, enforcement string
	var parentID sql.NullString
	if err := row.Scan(&n.ID, &scope, &parentID, &n.MaxMicroUSD, &n.SpentMicroUSD, &enforcement, &n.CreatedAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcerrors.ErrNotFound
		}
		return nil, err
	}
	n.Scope = ledger.Scope(scope)
	n.Enforcement = ledger.Enforcement(enforcement)
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	return &n, nil
}

// walkUpSpent adds deltaMicroUSD to nodeID's spend and every ancestor's,
// up to the root of the budget tree.
func walkUpSpent(ctx context.Context, tx *sql.Tx, nodeID string, deltaMicroUSD int64) error {
	for nodeID != "" {
		node, err := scanBudgetNodeTx(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE budget_nodes SET spent_micro_usd = spent_micro_usd + ? WHERE id = ?`, deltaMicroUSD, nodeID); err != nil {
			return err
		}
		if node.ParentID == nil {
			return nil
		}
		nodeID = *node.ParentID
	}
	return nil
}

func releaseFromAncestors(ctx context.Context, tx *sql.Tx, nodeID string, microUSD int64) error {
	return walkUpSpent(ctx, tx, nodeID, -microUSD)
}

// Commit settles reservationID: it moves the reservation's hold from
// reserved to consumed, reconciles any difference between the reserved
// estimate and actualMicroUSD across the budget tree, and appends a
// UsageEvent. A requestID already committed returns its prior event
// unchanged, making REPORT safe to retry.
func (s *Store) Commit(ctx context.Context, reservationID, requestID, provider string, promptTokens, completionTokens, actualMicroUSD int64) (*ledger.UsageEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if existing, err := scanUsageEventTx(ctx, tx, requestID); err == nil {
		_ = tx.Commit()
		return existing, nil
	} else if !errors.Is(err, bcerrors.ErrNotFound) {
		return nil, err
	}

	var leaseID string
	var microUSD int64
	var settled bool
	err = tx.QueryRowContext(ctx, `SELECT lease_id, micro_usd, settled FROM reservations WHERE id = ?`, reservationID).
		Scan(&leaseID, &microUSD, &settled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bcerrors.Wrap(bcerrors.ErrNotFound, "reservation %s", reservationID)
	}
	if err != nil {
		return nil, err
	}
	if settled {
		return nil, bcerrors.Wrap(bcerrors.ErrConflict, "reservation %s already settled", reservationID)
	}

	lease, err := scanLeaseTx(ctx, tx, leaseID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE leases SET reserved_micro_usd = reserved_micro_usd - ?, consumed_micro_usd = consumed_micro_usd + ?, last_report_at_ms = ? WHERE id = ?`,
		microUSD, actualMicroUSD, time.Now().UnixMilli(), leaseID); err != nil {
		return nil, err
	}
	if diff := actualMicroUSD - microUSD; diff != 0 {
		if err := walkUpSpent(ctx, tx, lease.BudgetNodeID, diff); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE reservations SET settled = 1 WHERE id = ?`, reservationID); err != nil {
		return nil, err
	}

	ev := &ledger.UsageEvent{
		ID:               idgen.NewUsageEvent(),
		RequestID:        requestID,
		LeaseID:          leaseID,
		AgentID:          lease.AgentID,
		Provider:         provider,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostMicroUSD:     actualMicroUSD,
		CreatedAtMs:      time.Now().UnixMilli(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO usage_events (id, request_id, lease_id, agent_id, provider, prompt_tokens, completion_tokens, cost_micro_usd, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RequestID, ev.LeaseID, ev.AgentID, ev.Provider, ev.PromptTokens, ev.CompletionTokens, ev.CostMicroUSD, ev.CreatedAtMs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ev, nil
}

func scanUsageEventTx(ctx context.Context, tx *sql.Tx, requestID string) (*ledger.UsageEvent, error) {
	var ev ledger.UsageEvent
	err := tx.QueryRowContext(ctx,
		`SELECT id, request_id, lease_id, agent_id, provider, prompt_tokens, completion_tokens, cost_micro_usd, created_at_ms
		 FROM usage_events WHERE request_id = ?`, requestID).
		Scan(&ev.ID, &ev.RequestID, &ev.LeaseID, &ev.AgentID, &ev.Provider, &ev.PromptTokens, &ev.CompletionTokens, &ev.CostMicroUSD, &ev.CreatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bcerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Refund releases a reservation's hold without recording spend, for a
// forward call that failed before producing a billable response.
func (s *Store) Refund(ctx context.Context, reservationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var leaseID string
	var microUSD int64
	var settled bool
	err = tx.QueryRowContext(ctx, `SELECT lease_id, micro_usd, settled FROM reservations WHERE id = ?`, reservationID).
		Scan(&leaseID, &microUSD, &settled)
	if errors.Is(err, sql.ErrNoRows) {
		return bcerrors.Wrap(bcerrors.ErrNotFound, "reservation %s", reservationID)
	}
	if err != nil {
		return err
	}
	if settled {
		return bcerrors.Wrap(bcerrors.ErrConflict, "reservation %s already settled", reservationID)
	}

	lease, err := scanLeaseTx(ctx, tx, leaseID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE leases SET reserved_micro_usd = reserved_micro_usd - ? WHERE id = ?`, microUSD, leaseID); err != nil {
		return err
	}
	if err := walkUpSpent(ctx, tx, lease.BudgetNodeID, -microUSD); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE reservations SET settled = 1 WHERE id = ?`, reservationID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetOrCreateUsageLimit(ctx context.Context, ownerID string, maxCostPerMonthMicroUSD int64, resetAtMs int64) (*ledger.UsageLimit, error) {
	existing, err := s.getUsageLimit(ctx, ownerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, bcerrors.ErrNotFound) {
		return nil, err
	}
	ul := &ledger.UsageLimit{
		ID:                      idgen.New("ulim_"),
		OwnerID:                 ownerID,
		MaxCostPerMonthMicroUSD: maxCostPerMonthMicroUSD,
		ResetAtMs:               resetAtMs,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_limits (id, owner_id, max_cost_per_month_micro_usd, current_cost_micro_usd_this_month, reset_at_ms)
		 VALUES (?, ?, ?, 0, ?)`,
		ul.ID, ul.OwnerID, ul.MaxCostPerMonthMicroUSD, ul.ResetAtMs)
	if err != nil {
		return nil, fmt.Errorf("create usage limit: %w", err)
	}
	return ul, nil
}

func (s *Store) getUsageLimit(ctx context.Context, ownerID string) (*ledger.UsageLimit, error) {
	var ul ledger.UsageLimit
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, max_cost_per_month_micro_usd, current_cost_micro_usd_this_month, reset_at_ms FROM usage_limits WHERE owner_id = ?`,
		ownerID).Scan(&ul.ID, &ul.OwnerID, &ul.MaxCostPerMonthMicroUSD, &ul.CurrentCostMicroUSDThisMonth, &ul.ResetAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bcerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ul, nil
}

func (s *Store) IncrementUsageLimit(ctx context.Context, ownerID string, microUSD int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE usage_limits SET current_cost_micro_usd_this_month = current_cost_micro_usd_this_month + ? WHERE owner_id = ?`,
		microUSD, ownerID)
	if err != nil {
		return err
	}
	return checkRows(res, err)
}

func checkRows(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return bcerrors.ErrNotFound
	}
	return nil
}
