// Package identity persists users, agents, sealed upstream credentials, and
// developer credentials. ListAgentsForOwner filters by ownership with an
// (owner_id = $1 OR is_admin) predicate; GetAgent, DeleteAgent and
// ListDeveloperCredentialsForAgent take an id without an acting user and do
// not filter by owner.
package identity

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role gates administrative bypass of ownership checks.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleNormal   Role = "normal"
	RoleReadonly Role = "readonly"
)

// User is the top-level principal. Admins bypass ownership checks entirely.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAtMs  int64
}

// IsAdmin reports whether u may bypass ownership checks.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Agent is the unit of restrictive budgeting and credential binding. Its
// owner FK is the cornerstone of multi-tenant isolation.
type Agent struct {
	ID          string
	Name        string
	OwnerID     string
	CreatedAtMs int64
}

// UpstreamCredential is a sealed upstream provider API key. Plaintext is
// never stored; Ciphertext/Nonce round-trip through Seal/Unseal only.
type UpstreamCredential struct {
	ID          string
	Provider    string
	OwnerID     string
	Ciphertext  []byte
	Nonce       []byte
	CreatedAtMs int64
}

// DeveloperCredential (the "IC token") binds an agent and its owner inside
// an encrypted claims payload. It is the only credential a developer ever
// sees.
type DeveloperCredential struct {
	ID               string
	AgentID          string
	OwnerID          string
	CiphertextPayload []byte
	ExpiresAtMs      int64
	Revoked          bool
	CreatedAtMs      int64
}

func nowMs() int64 { return time.Now().UnixMilli() }

// HashPassword bcrypt-hashes a plaintext password for storage in
// User.PasswordHash. Admin users are provisioned out of band (the
// create-admin CLI command), never through an HTTP endpoint that would
// accept a plaintext password over the wire from an untrusted caller.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("identity: hash password: %w", err)
	}
	return string(hash), nil
}
