package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
)

// ErrSealBroken is an alias of bcerrors.ErrCredentialSealBroken kept local
// so callers matching purely within this package do not need the
// bcerrors import.
var ErrSealBroken = bcerrors.ErrCredentialSealBroken

// Sealer encrypts and decrypts credential plaintext with AES-256-GCM, keyed
// by the master key passed to NewSealer. The key derivation and seal/open
// shape follow the authenticated-encryption pattern used elsewhere in the
// stack for hashing secrets at rest: a SHA-256-derived key and a random
// per-call nonce, which Seal returns separately and Unseal takes back as a
// parameter, so callers store it next to the ciphertext.
//
// cmd/gateway builds a single Sealer from IC_TOKEN_SECRET and uses it both
// for developer-credential claims and for upstream provider keys;
// IP_TOKEN_KEY is checked by the boot guard but is not used as a key.
type Sealer struct {
	key [32]byte
}

// NewSealer derives a 256-bit key from masterKey via SHA-256. masterKey
// must be non-empty; callers are expected to have already run it through
// the boot guard.
func NewSealer(masterKey string) (*Sealer, error) {
	if masterKey == "" {
		return nil, fmt.Errorf("identity: empty master key")
	}
	return &Sealer{key: sha256.Sum256([]byte(masterKey))}, nil
}

// Seal authenticated-encrypts plaintext, returning ciphertext and the
// random nonce used to produce it. Sealing the same plaintext twice yields
// different ciphertext because the nonce is fresh each call.
func (s *Sealer) Seal(plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Unseal verifies and decrypts ciphertext produced by Seal using nonce.
// A tampered ciphertext or a key mismatch returns ErrSealBroken, never a
// silent zero-value fallback.
func (s *Sealer) Unseal(ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealBroken, err)
	}
	return plaintext, nil
}

// Zero overwrites buf in place. Callers that held plaintext upstream
// credentials must call this before returning it to a pool or letting it
// go out of scope, so unsealed plaintext never outlives the request that
// needed it.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
