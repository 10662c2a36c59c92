package core

import (
	"errors"
	"testing"
)

func TestNormalizeIdentityHandle(t *testing.T) {
	valid := map[string]string{
		"a01234567":     "a01234567",
		"A01234567":     "a01234567",
		"  a98765432  ": "a98765432",
	}
	for in, want := range valid {
		got, err := NormalizeIdentityHandle(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeIdentityHandle(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "a1234567", "a012345678", "b01234567", "a0123456x"} {
		if _, err := NormalizeIdentityHandle(in); !errors.Is(err, ErrInvalidIdentityHandle) {
			t.Fatalf("expected %q to be rejected, got %v", in, err)
		}
	}
}

func TestAPICredentialPermits(t *testing.T) {
	production := APICredential{}
	if !production.Permits("a01234567") {
		t.Fatalf("production credentials may verify any handle")
	}
	dev := APICredential{IsDev: true, RestrictedIdentity: "A01234567"}
	if !dev.Permits("a01234567") {
		t.Fatalf("dev credential should permit its restricted identity")
	}
	if dev.Permits("a07654321") {
		t.Fatalf("dev credential must reject other identities")
	}
	if (APICredential{IsDev: true}).Permits("a01234567") {
		t.Fatalf("dev credential without restriction must reject everything")
	}
}

func TestConfirmationAndAcknowledgementLinks(t *testing.T) {
	if got := ConfirmationLink("https://auth.example.test/", "abc"); got != "https://auth.example.test/authaggie?aggieToken=abc" {
		t.Fatalf("unexpected confirmation link %q", got)
	}
	if got := AcknowledgementURI("https://auth.example.test", "abc"); got != "https://auth.example.test/token/verify/abc" {
		t.Fatalf("unexpected acknowledgment uri %q", got)
	}
}
