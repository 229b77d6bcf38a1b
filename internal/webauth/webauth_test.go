package webauth

import (
	"testing"
	"time"
)

func TestChallengeLifecycle(t *testing.T) {
	mgr, err := New("secret", time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, code, expires, err := mgr.CreateChallenge("user@example.com")
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	if expires.Before(time.Now()) {
		t.Fatalf("expires in past")
	}
	email, err := mgr.VerifyChallenge(id, code)
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if email != "user@example.com" {
		t.Fatalf("unexpected email %s", email)
	}
	if _, err := mgr.VerifyChallenge(id, code); err == nil {
		t.Fatalf("expected error after challenge consumed")
	}
}

func TestSessionValidation(t *testing.T) {
	mgr, err := New("secret", time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token, err := mgr.IssueSession("user@example.com")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	email, err := mgr.ValidateSession(token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if email != "user@example.com" {
		t.Fatalf("unexpected email %s", email)
	}
}

func TestExpiredSession(t *testing.T) {
	mgr, err := New("secret", time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token, err := mgr.IssueSession("user@example.com")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := mgr.ValidateSession(token); err == nil {
		t.Fatalf("expected expiration error")
	}
}

func TestValidateSessionRejectsWrongSecret(t *testing.T) {
	mgr, err := New("secret-a", time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token, err := mgr.IssueSession("user@example.com")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	other, err := New("secret-b", time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.ValidateSession(token); err == nil {
		t.Fatalf("expected signature mismatch error")
	}
}
