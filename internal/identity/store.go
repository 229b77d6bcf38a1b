package identity

import (
	"context"
	"errors"
)

// ErrAgentOwnerMismatch signals that a developer credential's claimed
// owner diverges from the agent's live owner row.
var ErrAgentOwnerMismatch = errors.New("identity: agent owner mismatch")

// Store is the persistence contract for identity. Every *ForOwner method applies
// the ownership filter in the query itself — callers never receive a row
// they are not entitled to see, so a forbidden lookup and an absent one
// both come back as "not found" at this layer. authz.Authorize reports a
// denial as bcerrors.ErrForbidden, which internal/httpserver maps to 403
// rather than 404.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string, role Role) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	DeactivateUser(ctx context.Context, id string) error
	// DeleteUser cascades to the user's agents; it fails if any owned
	// agent has a live (non-closed) lease.
	DeleteUser(ctx context.Context, id string) error

	CreateAgent(ctx context.Context, ownerID, name string) (*Agent, error)
	GetAgent(ctx context.Context, id string) (*Agent, error)
	// ListAgentsForOwner returns agents owned by ownerID, or every agent
	// when asAdmin is true.
	ListAgentsForOwner(ctx context.Context, ownerID string, asAdmin bool) ([]Agent, error)
	DeleteAgent(ctx context.Context, id string) error

	CreateUpstreamCredential(ctx context.Context, ownerID, provider string, ciphertext, nonce []byte) (*UpstreamCredential, error)
	GetUpstreamCredentialByOwnerProvider(ctx context.Context, ownerID, provider string) (*UpstreamCredential, error)
	// GetUpstreamCredentialForOwner returns the owner's most recently
	// created upstream credential regardless of provider, for the common
	// case of one active upstream credential per owner.
	GetUpstreamCredentialForOwner(ctx context.Context, ownerID string) (*UpstreamCredential, error)
	GetUpstreamCredential(ctx context.Context, id string) (*UpstreamCredential, error)

	CreateDeveloperCredential(ctx context.Context, agentID, ownerID string, ciphertextPayload []byte, expiresAtMs int64) (*DeveloperCredential, error)
	GetDeveloperCredential(ctx context.Context, id string) (*DeveloperCredential, error)
	RevokeDeveloperCredential(ctx context.Context, id string) error
	ListDeveloperCredentialsForAgent(ctx context.Context, agentID string) ([]DeveloperCredential, error)
}
