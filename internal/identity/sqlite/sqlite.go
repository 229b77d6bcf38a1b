// Package sqlite implements identity.Store backed by modernc.org/sqlite,
// for local development and the integration test suite. It mirrors
// userstore/sqlite's initSchema-on-open pattern and WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/idgen"
	"github.com/budgetgate/budgetcore/internal/identity"
)

// Store implements identity.Store.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite identity store at path.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create identity directory: %w", err)
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

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_owner ON agents(owner_id);

CREATE TABLE IF NOT EXISTS upstream_credentials (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	ciphertext BLOB NOT NULL,
	nonce BLOB NOT NULL,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_upstream_owner_provider ON upstream_credentials(owner_id, provider);

CREATE TABLE IF NOT EXISTS developer_credentials (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	owner_id TEXT NOT NULL REFERENCES users(id),
	ciphertext_payload BLOB NOT NULL,
	expires_at_ms INTEGER NOT NULL,
	revoked INTEGER NOT NULL DEFAULT 0,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_devcred_agent ON developer_credentials(agent_id);
`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, role identity.Role) (*identity.User, error) {
	u := &identity.User{
		ID:           idgen.NewUser(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAtMs:  time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, is_active, created_at_ms) VALUES (?, ?, ?, ?, 1, ?)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedAtMs)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*identity.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, is_active, created_at_ms FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, is_active, created_at_ms FROM users WHERE email = ?`, email))
}

func (s *Store) scanUser(row *sql.Row) (*identity.User, error) {
	var u identity.User
	var role string
	var active int
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &active, &u.CreatedAtMs); err != nil {
		if err == sql.ErrNoRows {
			return nil, bcerrors.ErrNotFound
		}
		return nil, err
	}
	u.Role = identity.Role(role)
	u.IsActive = active != 0
	return &u, nil
}

func (s *Store) DeactivateUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = 0 WHERE id = ?`, id)
	return checkRows(res, err)
}

// DeleteUser does not itself check for live leases: the lease table lives
// in a different package (internal/ledger), which this package does not
// import. Callers that must refuse deletion while an agent has an open
// lease check ledger.Store before calling DeleteUser.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return checkRows(res, err)
}

func (s *Store) CreateAgent(ctx context.Context, ownerID, name string) (*identity.Agent, error) {
	a := &identity.Agent{
		ID:          idgen.NewAgent(),
		Name:        name,
		OwnerID:     ownerID,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, owner_id, created_at_ms) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.OwnerID, a.CreatedAtMs)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*identity.Agent, error) {
	var a identity.Agent
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at_ms FROM agents WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.OwnerID, &a.CreatedAtMs)
	if err == sql.ErrNoRows {
		return nil, bcerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAgentsForOwner(ctx context.Context, ownerID string, asAdmin bool) ([]identity.Agent, error) {
	var rows *sql.Rows
	var err error
	if asAdmin {
		rows, err = s.db.QueryContext(ctx, `SELECT id, name, owner_id, created_at_ms FROM agents ORDER BY created_at_ms`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT id, name, owner_id, created_at_ms FROM agents WHERE owner_id = ? ORDER BY created_at_ms`, ownerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []identity.Agent
	for rows.Next() {
		var a identity.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.OwnerID, &a.CreatedAtMs); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	return checkRows(res, err)
}

func (s *Store) CreateUpstreamCredential(ctx context.Context, ownerID, provider string, ciphertext, nonce []byte) (*identity.UpstreamCredential, error) {
	c := &identity.UpstreamCredential{
		ID:          idgen.New(idgen.PrefixIPToken),
		Provider:    provider,
		OwnerID:     ownerID,
		Ciphertext:  ciphertext,
		Nonce:       nonce,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upstream_credentials (id, provider, owner_id, ciphertext, nonce, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Provider, c.OwnerID, c.Ciphertext, c.Nonce, c.CreatedAtMs)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) GetUpstreamCredentialByOwnerProvider(ctx context.Context, ownerID, provider string) (*identity.UpstreamCredential, error) {
	return s.scanUpstream(s.db.QueryRowContext(ctx,
		`SELECT id, provider, owner_id, ciphertext, nonce, created_at_ms FROM upstream_credentials WHERE owner_id = ? AND provider = ? ORDER BY created_at_ms DESC LIMIT 1`,
		ownerID, provider))
}

func (s *Store) GetUpstreamCredentialForOwner(ctx context.Context, ownerID string) (*identity.UpstreamCredential, error) {
	return s.scanUpstream(s.db.QueryRowContext(ctx,
		`SELECT id, provider, owner_id, ciphertext, nonce, created_at_ms FROM upstream_credentials WHERE owner_id = ? ORDER BY created_at_ms DESC LIMIT 1`,
		ownerID))
}

func (s *Store) GetUpstreamCredential(ctx context.Context, id string) (*identity.UpstreamCredential, error) {
	return s.scanUpstream(s.db.QueryRowContext(ctx,
		`SELECT id, provider, owner_id, ciphertext, nonce, created_at_ms FROM upstream_credentials WHERE id = ?`, id))
}

func (s *Store) scanUpstream(row *sql.Row) (*identity.UpstreamCredential, error) {
	var c identity.UpstreamCredential
	if err := row.Scan(&c.ID, &c.Provider, &c.OwnerID, &c.Ciphertext, &c.Nonce, &c.CreatedAtMs); err != nil {
		if err == sql.ErrNoRows {
			return nil, bcerrors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateDeveloperCredential(ctx context.Context, agentID, ownerID string, ciphertextPayload []byte, expiresAtMs int64) (*identity.DeveloperCredential, error) {
	c := &identity.DeveloperCredential{
		ID:                idgen.New(idgen.PrefixICToken),
		AgentID:           agentID,
		OwnerID:           ownerID,
		CiphertextPayload: ciphertextPayload,
		ExpiresAtMs:       expiresAtMs,
		CreatedAtMs:       time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO developer_credentials (id, agent_id, owner_id, ciphertext_payload, expires_at_ms, revoked, created_at_ms) VALUES (?, ?, ?, ?, ?, 0, ?)`,
		c.ID, c.AgentID, c.OwnerID, c.CiphertextPayload, c.ExpiresAtMs, c.CreatedAtMs)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) GetDeveloperCredential(ctx context.Context, id string) (*identity.DeveloperCredential, error) {
	var c identity.DeveloperCredential
	var revoked int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, owner_id, ciphertext_payload, expires_at_ms, revoked, created_at_ms FROM developer_credentials WHERE id = ?`, id,
	).Scan(&c.ID, &c.AgentID, &c.OwnerID, &c.CiphertextPayload, &c.ExpiresAtMs, &revoked, &c.CreatedAtMs)
	if err == sql.ErrNoRows {
		return nil, bcerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Revoked = revoked != 0
	return &c, nil
}

func (s *Store) RevokeDeveloperCredential(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE developer_credentials SET revoked = 1 WHERE id = ?`, id)
	return checkRows(res, err)
}

func (s *Store) ListDeveloperCredentialsForAgent(ctx context.Context, agentID string) ([]identity.DeveloperCredential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, owner_id, ciphertext_payload, expires_at_ms, revoked, created_at_ms FROM developer_credentials WHERE agent_id = ? ORDER BY created_at_ms`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []identity.DeveloperCredential
	for rows.Next() {
		var c identity.DeveloperCredential
		var revoked int
		if err := rows.Scan(&c.ID, &c.AgentID, &c.OwnerID, &c.CiphertextPayload, &c.ExpiresAtMs, &revoked, &c.CreatedAtMs); err != nil {
			return nil, err
		}
		c.Revoked = revoked != 0
		out = append(out, c)
	}
	return out, rows.Err()
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
