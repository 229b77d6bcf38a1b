// Package authz implements the authorization kernel: a single authorize
// function. gate.Gate.Admit calls it before reserving against a lease; the
// internal/httpserver handlers do not call it, and the agent, credential,
// budget-node and lease routes perform no ownership check of their own.
// It deliberately does not wrap an OPA process —
// the ownership check is a single equality test, and a network hop to a
// policy engine would dominate the latency budget of every admission call.
package authz

import "github.com/budgetgate/budgetcore/internal/bcerrors"

// Principal is the caller a request has already been authenticated as.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// Authorize enforces the ownership-or-admin rule used throughout the core:
// a principal may act on a resource it owns, or any resource if it is an
// admin. It returns ErrForbidden otherwise; it never returns ErrNotFound —
// that distinction belongs to the caller, which must check existence with
// its own store method first and return 404 there, so that "forbidden" is
// never used to sniff whether something exists.
func Authorize(p Principal, resourceOwnerID string) error {
	if p.IsAdmin {
		return nil
	}
	if p.UserID != "" && p.UserID == resourceOwnerID {
		return nil
	}
	return bcerrors.ErrForbidden
}
