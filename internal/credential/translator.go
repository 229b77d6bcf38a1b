package credential

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/idgen"
	"github.com/budgetgate/budgetcore/internal/identity"
)

// Translation is the tuple the request gate needs to admit and forward a
// request. Plaintext must not be retained beyond the request that produced
// it.
type Translation struct {
	AgentID   string
	OwnerID   string
	Plaintext []byte
	Provider  string
}

// Translator implements translate(developer_credential). It is the only
// component in the system where upstream plaintext exists in memory;
// nothing here logs any field of its input or output.
type Translator struct {
	store  identity.Store
	sealer *identity.Sealer
}

// New builds a Translator over store, sealing/unsealing with sealer.
func New(store identity.Store, sealer *identity.Sealer) *Translator {
	return &Translator{store: store, sealer: sealer}
}

// Translate runs, in order: prefix check, revocation and expiry check,
// claims decrypt and binding verification, then upstream unseal.
func (t *Translator) Translate(ctx context.Context, developerCredentialID string) (Translation, error) {
	if !strings.HasPrefix(developerCredentialID, idgen.PrefixICToken) {
		return Translation{}, bcerrors.ErrInvalidCredential
	}

	cred, err := t.store.GetDeveloperCredential(ctx, developerCredentialID)
	if err != nil {
		return Translation{}, err
	}
	if cred.Revoked {
		return Translation{}, bcerrors.ErrCredentialRevoked
	}
	if cred.ExpiresAtMs < time.Now().UnixMilli() {
		return Translation{}, bcerrors.ErrCredentialExpired
	}

	claims, err := t.decryptClaims(cred)
	if err != nil {
		return Translation{}, err
	}

	if err := ValidateAgentID(claims.AgentID); err != nil {
		return Translation{}, err
	}
	if claims.AgentID != cred.AgentID {
		return Translation{}, bcerrors.ErrCredentialBindingMismatch
	}

	agent, err := t.store.GetAgent(ctx, claims.AgentID)
	if err != nil {
		return Translation{}, err
	}
	if agent.OwnerID != claims.OwnerID || agent.OwnerID != cred.OwnerID {
		return Translation{}, bcerrors.ErrCredentialBindingMismatch
	}

	upstream, err := t.store.GetUpstreamCredentialForOwner(ctx, agent.OwnerID)
	if err != nil {
		return Translation{}, err
	}
	plaintext, err := t.sealer.Unseal(upstream.Ciphertext, upstream.Nonce)
	if err != nil {
		return Translation{}, err
	}

	return Translation{
		AgentID:   agent.ID,
		OwnerID:   agent.OwnerID,
		Plaintext: plaintext,
		Provider:  upstream.Provider,
	}, nil
}

// decryptClaims is split out so the payload's own embedded nonce (stored
// alongside ciphertext_payload, encoded at Mint time) is used rather than a
// nil nonce; see Mint for the paired encoding.
func (t *Translator) decryptClaims(cred *identity.DeveloperCredential) (Claims, error) {
	if len(cred.CiphertextPayload) < 12 {
		return Claims{}, bcerrors.ErrCredentialSealBroken
	}
	nonce := cred.CiphertextPayload[:12]
	ciphertext := cred.CiphertextPayload[12:]
	plaintext, err := t.sealer.Unseal(ciphertext, nonce)
	if err != nil {
		return Claims{}, err
	}
	return UnmarshalClaims(plaintext)
}

// Mint seals a fresh Claims record for agentID/ownerID and persists the
// resulting developer credential. The nonce used to seal is prepended to
// the stored ciphertext payload so decryptClaims can recover it without a
// separate column.
func (t *Translator) Mint(ctx context.Context, agentID, ownerID string, ttl time.Duration) (*identity.DeveloperCredential, error) {
	if err := ValidateAgentID(agentID); err != nil {
		return nil, err
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}
	claims := Claims{
		Version:    ClaimsV1,
		AgentID:    agentID,
		OwnerID:    ownerID,
		IssuedAtMs: time.Now().UnixMilli(),
		Nonce:      nonce,
	}
	plaintext, err := MarshalClaims(claims)
	if err != nil {
		return nil, err
	}
	ciphertext, sealNonce, err := t.sealer.Seal(plaintext)
	if err != nil {
		return nil, err
	}
	payload := append(append([]byte{}, sealNonce...), ciphertext...)
	return t.store.CreateDeveloperCredential(ctx, agentID, ownerID, payload, time.Now().Add(ttl).UnixMilli())
}

// ValidateAgentID rejects any agent id that is absent, non-prefixed, or not
// a well-formed prefixed UUID. There is no fallback to a default agent: a
// malformed id is always ErrInvalidAgentID, covering boundary cases like
// "", "!!!", "0", "-1", or a bare large integer, as well as structurally
// wrong prefixed strings.
func ValidateAgentID(id string) error {
	if id == "" || !strings.HasPrefix(id, idgen.PrefixAgent) {
		return bcerrors.ErrInvalidAgentID
	}
	rest := strings.TrimPrefix(id, idgen.PrefixAgent)
	if _, err := uuid.Parse(rest); err != nil {
		return bcerrors.ErrInvalidAgentID
	}
	return nil
}
