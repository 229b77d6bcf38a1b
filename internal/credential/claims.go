// Package credential implements the credential translator: it validates a
// developer ("IC") credential, resolves its agent/owner, and unseals the
// agent owner's upstream credential in one call. Claims are a versioned,
// typed record sealed with AES-256-GCM rather than a signed, pipe-joined
// string, so a tampered or truncated payload fails to decrypt instead of
// failing a separate signature check.
package credential

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// ClaimsVersion tags the wire encoding of a Claims record so future
// versions can be added without breaking existing outstanding tokens (the
// "tagged variant over the credential-version byte" from the design notes).
type ClaimsVersion uint8

const ClaimsV1 ClaimsVersion = 1

// Claims is the payload sealed inside a developer credential's
// ciphertext_payload. IssuedAtMs and Nonce exist purely to make repeated
// seals of the same (AgentID, OwnerID) pair produce different ciphertext.
type Claims struct {
	Version    ClaimsVersion `json:"v"`
	AgentID    string        `json:"agent_id"`
	OwnerID    string        `json:"owner_id"`
	IssuedAtMs int64         `json:"issued_at_ms"`
	Nonce      uint64        `json:"nonce"`
}

// randomNonce returns a fresh 64-bit nonce for a new Claims record.
func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// MarshalClaims encodes c as canonical JSON for sealing.
func MarshalClaims(c Claims) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalClaims decodes a sealed claims payload, rejecting unknown
// versions rather than guessing a layout.
func UnmarshalClaims(data []byte) (Claims, error) {
	var c Claims
	if err := json.Unmarshal(data, &c); err != nil {
		return Claims{}, fmt.Errorf("credential: decode claims: %w", err)
	}
	if c.Version != ClaimsV1 {
		return Claims{}, fmt.Errorf("credential: unsupported claims version %d", c.Version)
	}
	return c, nil
}
