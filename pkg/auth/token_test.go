package auth

import (
	"errors"
	"testing"
	"time"
)

func TestMintVerify_Roundtrip(t *testing.T) {
	p := Profile{
		Subject:  "user-1",
		Email:    "ann@example.com",
		Name:     "Ann",
		Avatar:   "https://example.com/a.png",
		Provider: "google",
	}

	tok, err := Mint(p, "secret", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	got, err := Verify(tok, "secret")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if *got != p {
		t.Fatalf("Verify() = %+v, want %+v", *got, p)
	}
}

func TestVerify_Expired(t *testing.T) {
	tok, err := Mint(Profile{Subject: "u", Email: "u@example.com"}, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if _, err := Verify(tok, "secret"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := Mint(Profile{Subject: "u", Email: "u@example.com"}, "secret", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if _, err := Verify(tok, "other"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	if _, err := Verify("not-a-token", "secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestMint_RequiresIdentity(t *testing.T) {
	if _, err := Mint(Profile{Email: "u@example.com"}, "secret", time.Hour); err == nil {
		t.Fatalf("Mint() expected error for empty subject")
	}
	if _, err := Mint(Profile{Subject: "u"}, "secret", time.Hour); err == nil {
		t.Fatalf("Mint() expected error for empty email")
	}
	if _, err := Mint(Profile{Subject: "u", Email: "u@example.com"}, "", time.Hour); err == nil {
		t.Fatalf("Mint() expected error for empty secret")
	}
}
