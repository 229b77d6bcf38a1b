// Package bcerrors defines the typed error taxonomy shared across the
// budget control core. Handlers at the HTTP boundary map these sentinels to
// status codes; internal callers use errors.Is/errors.As against them
// instead of matching on message text.
package bcerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", ErrX) to add context.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("bcerrors: not found")
	// ErrForbidden indicates the caller lacks permission for the resource,
	// independent of whether it exists.
	ErrForbidden = errors.New("bcerrors: forbidden")
	// ErrInvalidCredential indicates a credential failed validation
	// (malformed, unknown prefix, unknown id); revoked and expired
	// credentials report ErrCredentialRevoked and ErrCredentialExpired.
	ErrInvalidCredential = errors.New("bcerrors: invalid credential")
	// ErrBudgetExceeded indicates a reservation was denied because it would
	// exceed a node's remaining budget under restrictive enforcement.
	ErrBudgetExceeded = errors.New("bcerrors: budget exceeded")
	// ErrLeaseNotFound indicates the referenced lease does not exist.
	ErrLeaseNotFound = errors.New("bcerrors: lease not found")
	// ErrLeaseClosed indicates an operation was attempted against a lease
	// whose state is closed.
	ErrLeaseClosed = errors.New("bcerrors: lease closed")
	// ErrConflict indicates an optimistic-concurrency or uniqueness
	// violation (duplicate request_id, concurrent update, etc).
	ErrConflict = errors.New("bcerrors: conflict")
	// ErrInvalidArgument indicates a caller-supplied value failed
	// validation (bad enum, negative amount, missing field).
	ErrInvalidArgument = errors.New("bcerrors: invalid argument")
	// ErrUpstream indicates the call to the upstream provider failed after
	// a reservation was already made; the caller must refund the lease.
	ErrUpstream = errors.New("bcerrors: upstream request failed")
	// ErrCredentialSealBroken indicates a sealed credential failed to
	// decrypt: tampered ciphertext or a key mismatch. Never silently
	// falls back to a zero-value plaintext.
	ErrCredentialSealBroken = errors.New("bcerrors: credential seal broken")
	// ErrCredentialBindingMismatch indicates a developer credential's
	// decrypted claims do not match the agent/owner row it references.
	ErrCredentialBindingMismatch = errors.New("bcerrors: credential binding mismatch")
	// ErrInvalidAgentID indicates a malformed or missing agent id in a
	// credential's claims; there is no fallback to a default agent.
	ErrInvalidAgentID = errors.New("bcerrors: invalid agent id")
	// ErrCredentialRevoked indicates the developer credential has been
	// revoked.
	ErrCredentialRevoked = errors.New("bcerrors: credential revoked")
	// ErrCredentialExpired indicates the developer credential's expiry has
	// passed.
	ErrCredentialExpired = errors.New("bcerrors: credential expired")
	// ErrQuotaExceeded indicates the monthly usage limit for an
	// owner/scope was exceeded.
	ErrQuotaExceeded = errors.New("bcerrors: quota exceeded")
	// ErrUnavailable indicates a database operation exceeded its fixed
	// timeout; callers may retry with a fresh request id.
	ErrUnavailable = errors.New("bcerrors: unavailable")
	// ErrConfigurationRefused indicates the boot guard rejected startup.
	ErrConfigurationRefused = errors.New("bcerrors: configuration refused")
)

// Wrap attaches context to a sentinel while keeping it matchable via
// errors.Is.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
