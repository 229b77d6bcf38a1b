// Package postgres implements identity.Store against PostgreSQL via
// database/sql over the pgx stdlib driver, following the query shape of
// postgres_v2 (ownership filters inline in the WHERE clause, RETURNING on
// INSERT, $N placeholders).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/idgen"
	"github.com/budgetgate/budgetcore/internal/identity"
)

// Store implements identity.Store.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and pings to fail fast on misconfiguration.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sql.DB, e.g. one shared with the ledger store.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

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
		`INSERT INTO users (id, email, password_hash, role, is_active, created_at_ms) VALUES ($1, $2, $3, $4, true, $5)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedAtMs)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*identity.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, is_active, created_at_ms FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, is_active, created_at_ms FROM users WHERE email = $1`, email))
}

func (s *Store) scanUser(row *sql.Row) (*identity.User, error) {
	var u identity.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcerrors.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = identity.Role(role)
	return &u, nil
}

func (s *Store) DeactivateUser(ctx context.Context, id string) error {
	return execExpectingRow(ctx, s.db, `UPDATE users SET is_active = false WHERE id = $1`, id)
}

// DeleteUser relies on a database-level FK: agents cascade on user delete,
// but agents -> leases is ON DELETE RESTRICT, so a user with a live lease
// makes this statement fail with a foreign key violation, which the caller
// should map to bcerrors.ErrConflict.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return execExpectingRow(ctx, s.db, `DELETE FROM users WHERE id = $1`, id)
}

func (s *Store) CreateAgent(ctx context.Context, ownerID, name string) (*identity.Agent, error) {
	a := &identity.Agent{
		ID:          idgen.NewAgent(),
		Name:        name,
		OwnerID:     ownerID,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, owner_id, created_at_ms) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Name, a.OwnerID, a.CreatedAtMs)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*identity.Agent, error) {
	var a identity.Agent
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at_ms FROM agents WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.OwnerID, &a.CreatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bcerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &a, nil
}

// ListAgentsForOwner applies the (owner_id = $1 OR asAdmin) ownership
// filter in the query itself: there is no unfiltered public query.
func (s *Store) ListAgentsForOwner(ctx context.Context, ownerID string, asAdmin bool) ([]identity.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, owner_id, created_at_ms FROM agents WHERE owner_id = $1 OR $2 ORDER BY created_at_ms`,
		ownerID, asAdmin)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
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
	return execExpectingRow(ctx, s.db, `DELETE FROM agents WHERE id = $1`, id)
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
		`INSERT INTO upstream_credentials (id, provider, owner_id, ciphertext, nonce, created_at_ms) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Provider, c.OwnerID, c.Ciphertext, c.Nonce, c.CreatedAtMs)
	if err != nil {
		return nil, fmt.Errorf("create upstream credential: %w", err)
	}
	return c, nil
}

func (s *Store) GetUpstreamCredentialByOwnerProvider(ctx context.Context, ownerID, provider string) (*identity.UpstreamCredential, error) {
	return s.scanUpstream(s.db.QueryRowContext(ctx,
		`SELECT id, provider, owner_id, ciphertext, nonce, created_at_ms FROM upstream_credentials
		 WHERE owner_id = $1 AND provider = $2 ORDER BY created_at_ms DESC LIMIT 1`, ownerID, provider))
}

func (s *Store) GetUpstreamCredentialForOwner(ctx context.Context, ownerID string) (*identity.UpstreamCredential, error) {
	return s.scanUpstream(s.db.QueryRowContext(ctx,
		`SELECT id, provider, owner_id, ciphertext, nonce, created_at_ms FROM upstream_credentials
		 WHERE owner_id = $1 ORDER BY created_at_ms DESC LIMIT 1`, ownerID))
}

func (s *Store) GetUpstreamCredential(ctx context.Context, id string) (*identity.UpstreamCredential, error) {
	return s.scanUpstream(s.db.QueryRowContext(ctx,
		`SELECT id, provider, owner_id, ciphertext, nonce, created_at_ms FROM upstream_credentials WHERE id = $1`, id))
}

func (s *Store) scanUpstream(row *sql.Row) (*identity.UpstreamCredential, error) {
	var c identity.UpstreamCredential
	if err := row.Scan(&c.ID, &c.Provider, &c.OwnerID, &c.Ciphertext, &c.Nonce, &c.CreatedAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bcerrors.ErrNotFound
		}
		return nil, fmt.Errorf("get upstream credential: %w", err)
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
		`INSERT INTO developer_credentials (id, agent_id, owner_id, ciphertext_payload, expires_at_ms, revoked, created_at_ms)
		 VALUES ($1, $2, $3, $4, $5, false, $6)`,
		c.ID, c.AgentID, c.OwnerID, c.CiphertextPayload, c.ExpiresAtMs, c.CreatedAtMs)
	if err != nil {
		return nil, fmt.Errorf("create developer credential: %w", err)
	}
	return c, nil
}

func (s *Store) GetDeveloperCredential(ctx context.Context, id string) (*identity.DeveloperCredential, error) {
	var c identity.DeveloperCredential
	err := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, owner_id, ciphertext_payload, expires_at_ms, revoked, created_at_ms FROM developer_credentials WHERE id = $1`, id,
	).Scan(&c.ID, &c.AgentID, &c.OwnerID, &c.CiphertextPayload, &c.ExpiresAtMs, &c.Revoked, &c.CreatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bcerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get developer credential: %w", err)
	}
	return &c, nil
}

func (s *Store) RevokeDeveloperCredential(ctx context.Context, id string) error {
	return execExpectingRow(ctx, s.db, `UPDATE developer_credentials SET revoked = true WHERE id = $1`, id)
}

func (s *Store) ListDeveloperCredentialsForAgent(ctx context.Context, agentID string) ([]identity.DeveloperCredential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, owner_id, ciphertext_payload, expires_at_ms, revoked, created_at_ms
		 FROM developer_credentials WHERE agent_id = $1 ORDER BY created_at_ms`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list developer credentials: %w", err)
	}
	defer rows.Close()
	var out []identity.DeveloperCredential
	for rows.Next() {
		var c identity.DeveloperCredential
		if err := rows.Scan(&c.ID, &c.AgentID, &c.OwnerID, &c.CiphertextPayload, &c.ExpiresAtMs, &c.Revoked, &c.CreatedAtMs); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func execExpectingRow(ctx context.Context, db *sql.DB, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
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
