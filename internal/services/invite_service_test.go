package services

import (
	"testing"
	"time"
)

func TestInviteTokenRoundTrip(t *testing.T) {
	svc := NewInviteService("test-secret", time.Hour)

	token, err := svc.Mint("g1", "AbCd1234")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	groupID, code, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if groupID != "g1" || code != "AbCd1234" {
		t.Errorf("Verify = (%q, %q), want (g1, AbCd1234)", groupID, code)
	}
}

func TestInviteTokenExpired(t *testing.T) {
	svc := NewInviteService("test-secret", -time.Hour)

	token, err := svc.Mint("g1", "AbCd1234")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, _, err := svc.Verify(token); err != ErrInvalidInviteToken {
		t.Errorf("Verify of expired token = %v, want ErrInvalidInviteToken", err)
	}
}

func TestInviteTokenWrongSecret(t *testing.T) {
	minter := NewInviteService("secret-a", time.Hour)
	verifier := NewInviteService("secret-b", time.Hour)

	token, err := minter.Mint("g1", "AbCd1234")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, _, err := verifier.Verify(token); err != ErrInvalidInviteToken {
		t.Errorf("Verify with wrong secret = %v, want ErrInvalidInviteToken", err)
	}
}

func TestInviteTokenGarbage(t *testing.T) {
	svc := NewInviteService("test-secret", time.Hour)
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, _, err := svc.Verify(tok); err != ErrInvalidInviteToken {
			t.Errorf("Verify(%q) = %v, want ErrInvalidInviteToken", tok, err)
		}
	}
}
