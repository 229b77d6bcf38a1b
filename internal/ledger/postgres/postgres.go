// Package postgres implements ledger.Store backed by PostgreSQL, mirroring
// the sqlite package's transaction shape but taking real row locks (SELECT
// ... FOR UPDATE) on the lease and each ancestor budget node instead of
// relying on WAL single-writer serialization.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/idgen"
	"github.com/budgetgate/budgetcore/internal/ledger"
)

// Store implements ledger.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL-backed ledger store using dsn and the given
// connection pool settings.
func New(dsn string, maxOpen, maxIdle, lifetimeMinutes, idleTimeMinutes int) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if lifetimeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(lifetimeMinutes) * time.Minute)
	}
	if idleTimeMinutes > 0 {
		db.SetConnMaxIdleTime(time.Duration(idleTimeMinutes) * time.Minute)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an already-open *sql.DB, e.g. one shared with identity.
func NewFromDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS budget_nodes (
	id TEXT PRIMARY KEY,
	scope TEXT NOT NULL CHECK(scope IN ('master','provider','project','agent')),
	parent_id TEXT REFERENCES budget_nodes(id),
	max_micro_usd BIGINT NOT NULL,
	spent_micro_usd BIGINT NOT NULL DEFAULT 0,
	enforcement TEXT NOT NULL CHECK(enforcement IN ('restrictive','informative')),
	created_at_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_budget_nodes_parent ON budget_nodes(parent_id);

CREATE TABLE IF NOT EXISTS leases (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	budget_node_id TEXT NOT NULL REFERENCES budget_nodes(id),
	granted_micro_usd BIGINT NOT NULL,
	consumed_micro_usd BIGINT NOT NULL DEFAULT 0,
	reserved_micro_usd BIGINT NOT NULL DEFAULT 0,
	state TEXT NOT NULL CHECK(state IN ('active','closed')) DEFAULT 'active',
	refresh_watermark_micro_usd BIGINT NOT NULL DEFAULT 0,
	created_at_ms BIGINT NOT NULL,
	last_report_at_ms BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_leases_agent ON leases(agent_id);

CREATE TABLE IF NOT EXISTS reservations (
	id TEXT PRIMARY KEY,
	lease_id TEXT NOT NULL REFERENCES leases(id),
	micro_usd BIGINT NOT NULL,
	settled BOOLEAN NOT NULL DEFAULT false,
	created_at_ms BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_events (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL UNIQUE,
	lease_id TEXT NOT NULL REFERENCES leases(id),
	agent_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	prompt_tokens BIGINT NOT NULL,
	completion_tokens BIGINT NOT NULL,
	cost_micro_usd BIGINT NOT NULL,
	created_at_ms BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_limits (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL UNIQUE,
	max_cost_per_month_micro_usd BIGINT NOT NULL,
	current_cost_micro_usd_this_month BIGINT NOT NULL DEFAULT 0,
	reset_at_ms BIGINT NOT NULL
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
		 VALUES ($1, $2, $3, $4, 0, $5, $6)`,
		n.ID, string(n.Scope), n.ParentID, n.MaxMicroUSD, string(n.Enforcement), n.CreatedAtMs)
	if err != nil {
		return nil, fmt.Errorf("create budget node: %w", err)
	}
	return n, nil
}

func (s *Store) GetBudgetNode(ctx context.Context, id string) (*ledger.BudgetNode, error) {
	return scanBudgetNode(s.db.QueryRowContext(ctx,
		`SELECT id, scope, parent_id, max_micro_usd, spent_micro_usd, enforcement, created_at_ms FROM budget_nodes WHERE id = $1`, id))
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
	res, err := s.db.ExecContext(ctx, `UPDATE budget_nodes SET max_micro_usd = $1 WHERE id = $2`, maxMicroUSD, id)
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
		 VALUES ($1, $2, $3, $4, 0, 0, 'active', $5, $6, 0)`,
		l.ID, l.AgentID, l.BudgetNodeID, l.GrantedMicroUSD, l.RefreshWatermarkMicroUSD, l.CreatedAtMs)
	if err != nil {
		return nil, fmt.Errorf("create lease: %w", err)
	}
	return l, nil
}

func (s *Store) GetLease(ctx context.Context, id string) (*ledger.Lease, error) {
	return scanLease(s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, budget_node_id, granted_micro_usd, consumed_micro_usd, reserved_micro_usd, state, refresh_watermark_micro_usd, created_at_ms, last_report_at_ms
		 FROM leases WHERE id = $1`, id))
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
	if err := tx.QueryRowContext(ctx, `SELECT state FROM leases WHERE id = $1 FOR UPDATE`, id).Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcerrors.ErrLeaseNotFound
		}
		return nil, err
	}
	if ledger.LeaseState(state) == ledger.LeaseClosed {
		return nil, bcerrors.ErrLeaseClosed
	}
	if _, err := tx.ExecContext(ctx, `UPDATE leases SET granted_micro_usd = granted_micro_usd + $1 WHERE id = $2`, deltaMicroUSD, id); err != nil {
		return nil, err
	}
	l, err := scanLeaseTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) CloseLease(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lease, err := scanLeaseForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if lease.State == ledger.LeaseClosed {
		return tx.Commit()
	}
	if lease.ReservedMicroUSD > 0 {
		if err := walkUpSpentLocked(ctx, tx, lease.BudgetNodeID, -lease.ReservedMicroUSD); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE leases SET state = 'closed', reserved_micro_usd = 0 WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanLeaseTx(ctx context.Context, tx *sql.Tx, id string) (*ledger.Lease, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, agent_id, budget_node_id, granted_micro_usd, consumed_micro_usd, reserved_micro_usd, state, refresh_watermark_micro_usd, created_at_ms, last_report_at_ms
		 FROM leases WHERE id = $1`, id)
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

// scanLeaseForUpdate locks the lease row for the remainder of the
// transaction.
func scanLeaseForUpdate(ctx context.Context, tx *sql.Tx, id string) (*ledger.Lease, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, agent_id, budget_node_id, granted_micro_usd, consumed_micro_usd, reserved_micro_usd, state, refresh_watermark_micro_usd, created_at_ms, last_report_at_ms
		 FROM leases WHERE id = $1 FOR UPDATE`, id)
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

// Reserve locks lease and every ancestor budget node up to master with
// SELECT ... FOR UPDATE before checking headroom, so two concurrent
// Reserves against siblings under the same restrictive provider node
// serialize on that node's row lock instead of both reading stale spend.
func (s *Store) Reserve(ctx context.Context, leaseID string, microUSD int64) (*ledger.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lease, err := scanLeaseForUpdate(ctx, tx, leaseID)
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
		node, err := scanBudgetNodeForUpdate(ctx, tx, nodeID)
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

	if _, err := tx.ExecContext(ctx, `UPDATE leases SET reserved_micro_usd = reserved_micro_usd + $1 WHERE id = $2`, microUSD, leaseID); err != nil {
		return nil, err
	}
	if err := walkUpSpentLocked(ctx, tx, lease.BudgetNodeID, microUSD); err != nil {
		return nil, err
	}

	r := &ledger.Reservation{
		ID:          idgen.New("resv_"),
		LeaseID:     leaseID,
		MicroUSD:    microUSD,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (id, lease_id, micro_usd, settled, created_at_ms) VALUES ($1, $2, $3, false, $4)`,
		r.ID, r.LeaseID, r.MicroUSD, r.CreatedAtMs); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func scanBudgetNodeForUpdate(ctx context.Context, tx *sql.Tx, id string) (*ledger.BudgetNode, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, scope, parent_id, max_micro_usd, spent_micro_usd, enforcement, created_at_ms FROM budget_nodes WHERE id = $1 FOR UPDATE`, id)
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

// walkUpSpentLocked adds deltaMicroUSD to nodeID's spend and every
// ancestor's. It locks each row on the way up to collect the chain, then
// applies the delta to the whole chain in one batched UPDATE keyed by
// id = ANY($2), rather than one round trip per ancestor.
func walkUpSpentLocked(ctx context.Context, tx *sql.Tx, nodeID string, deltaMicroUSD int64) error {
	var chain []string
	for nodeID != "" {
		node, err := scanBudgetNodeForUpdate(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		chain = append(chain, nodeID)
		if node.ParentID == nil {
			break
		}
		nodeID = *node.ParentID
	}
	if len(chain) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE budget_nodes SET spent_micro_usd = spent_micro_usd + $1 WHERE id = ANY($2)`,
		deltaMicroUSD, pq.Array(chain))
	return err
}

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
	err = tx.QueryRowContext(ctx, `SELECT lease_id, micro_usd, settled FROM reservations WHERE id = $1 FOR UPDATE`, reservationID).
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

	lease, err := scanLeaseForUpdate(ctx, tx, leaseID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE leases SET reserved_micro_usd = reserved_micro_usd - $1, consumed_micro_usd = consumed_micro_usd + $2, last_report_at_ms = $3 WHERE id = $4`,
		microUSD, actualMicroUSD, time.Now().UnixMilli(), leaseID); err != nil {
		return nil, err
	}
	if diff := actualMicroUSD - microUSD; diff != 0 {
		if err := walkUpSpentLocked(ctx, tx, lease.BudgetNodeID, diff); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE reservations SET settled = true WHERE id = $1`, reservationID); err != nil {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
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
		 FROM usage_events WHERE request_id = $1`, requestID).
		Scan(&ev.ID, &ev.RequestID, &ev.LeaseID, &ev.AgentID, &ev.Provider, &ev.PromptTokens, &ev.CompletionTokens, &ev.CostMicroUSD, &ev.CreatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bcerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) Refund(ctx context.Context, reservationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var leaseID string
	var microUSD int64
	var settled bool
	err = tx.QueryRowContext(ctx, `SELECT lease_id, micro_usd, settled FROM reservations WHERE id = $1 FOR UPDATE`, reservationID).
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

	lease, err := scanLeaseForUpdate(ctx, tx, leaseID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE leases SET reserved_micro_usd = reserved_micro_usd - $1 WHERE id = $2`, microUSD, leaseID); err != nil {
		return err
	}
	if err := walkUpSpentLocked(ctx, tx, lease.BudgetNodeID, -microUSD); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE reservations SET settled = true WHERE id = $1`, reservationID); err != nil {
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
		 VALUES ($1, $2, $3, 0, $4) ON CONFLICT (owner_id) DO NOTHING`,
		ul.ID, ul.OwnerID, ul.MaxCostPerMonthMicroUSD, ul.ResetAtMs)
	if err != nil {
		return nil, fmt.Errorf("create usage limit: %w", err)
	}
	return s.getUsageLimit(ctx, ownerID)
}

func (s *Store) getUsageLimit(ctx context.Context, ownerID string) (*ledger.UsageLimit, error) {
	var ul ledger.UsageLimit
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, max_cost_per_month_micro_usd, current_cost_micro_usd_this_month, reset_at_ms FROM usage_limits WHERE owner_id = $1`,
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
		`UPDATE usage_limits SET current_cost_micro_usd_this_month = current_cost_micro_usd_this_month + $1 WHERE owner_id = $2`,
		microUSD, ownerID)
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
