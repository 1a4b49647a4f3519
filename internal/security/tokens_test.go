package security

import (
	"testing"
	"time"
)

func TestIssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	token, jti, expiresAt, err := p.IssueAccess("u1", "web-client", []string{"profile", "email"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("token and jti must be set")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expiration must be in the future")
	}

	userID, clientID, scope, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if userID != "u1" || clientID != "web-client" || scope != "profile email" {
		t.Fatalf("claims = %q %q %q", userID, clientID, scope)
	}
}

func TestValidateAccessRejectsGarbage(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := p.ValidateAccess("not.a.jwt"); err == nil {
		t.Fatal("garbage token must fail")
	}
}

func TestValidateAccessRejectsWrongIssuer(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	other := NewTokenProvider(signer, pub, "someone-else", "test-audience", time.Minute)

	token, _, _, err := other.IssueAccess("u1", "web-client", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := p.ValidateAccess(token); err == nil {
		t.Fatal("token from another issuer must fail")
	}
}

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash([]byte("s3cureP@ssword"))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Compare(hash, []byte("s3cureP@ssword")); err != nil {
		t.Fatalf("matching credential: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Fatal("mismatched credential must fail")
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	if h := NewHasher(-1); h.Cost < 4 {
		t.Fatalf("cost = %d", h.Cost)
	}
	if h := NewHasher(99); h.Cost > 31 {
		t.Fatalf("cost = %d", h.Cost)
	}
}
