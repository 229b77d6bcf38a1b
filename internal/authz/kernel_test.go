package authz

import (
	"errors"
	"testing"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
)

func TestAuthorizeOwnerAllowed(t *testing.T) {
	if err := Authorize(Principal{UserID: "user_1"}, "user_1"); err != nil {
		t.Fatalf("owner should be authorized: %v", err)
	}
}

func TestAuthorizeAdminAllowedOnAnyOwner(t *testing.T) {
	if err := Authorize(Principal{UserID: "user_2", IsAdmin: true}, "user_1"); err != nil {
		t.Fatalf("admin should be authorized: %v", err)
	}
}

func TestAuthorizeNonOwnerForbidden(t *testing.T) {
	err := Authorize(Principal{UserID: "user_2"}, "user_1")
	if !errors.Is(err, bcerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAuthorizeEmptyPrincipalForbidden(t *testing.T) {
	err := Authorize(Principal{}, "user_1")
	if !errors.Is(err, bcerrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
