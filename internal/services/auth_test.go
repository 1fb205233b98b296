package services

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"chathub-backend/internal/models"
)

func newTestAuthenticator(t *testing.T, password string) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return NewAuthenticatorFromHash(string(hash))
}

func TestGate_Login(t *testing.T) {
	auth := newTestAuthenticator(t, "demo123")

	t.Run("wrong password leaves session untouched", func(t *testing.T) {
		sess := newTestSession(t)
		gate := NewGate(sess, auth)

		err := gate.Login("alice", "wrong")

		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("Expected *AuthError, got %v", err)
		}
		if gate.IsAuthenticated() || gate.Username() != "" {
			t.Error("Failed login must not change session state")
		}
	})

	t.Run("shared password signs in any username", func(t *testing.T) {
		sess := newTestSession(t)
		gate := NewGate(sess, auth)

		if err := gate.Login("  bob ", "demo123"); err != nil {
			t.Fatalf("Login error: %v", err)
		}
		if !gate.IsAuthenticated() || gate.Username() != "bob" {
			t.Errorf("Expected bob signed in, got %v/%q", gate.IsAuthenticated(), gate.Username())
		}

		gate.Logout()
		if gate.IsAuthenticated() || gate.Username() != "" {
			t.Error("Expected logout to clear auth state")
		}
	})

	t.Run("blank username becomes guest", func(t *testing.T) {
		for _, name := range []string{"", "   "} {
			gate := NewGate(newTestSession(t), auth)
			if err := gate.Login(name, "demo123"); err != nil {
				t.Fatalf("Login(%q) error: %v", name, err)
			}
			if gate.Username() != "guest" {
				t.Errorf("Login(%q): expected guest, got %q", name, gate.Username())
			}
		}
	})
}

func TestNewAuthenticator_VerifiesPlainPassword(t *testing.T) {
	auth, err := NewAuthenticator("demo123")
	if err != nil {
		t.Fatalf("NewAuthenticator error: %v", err)
	}
	if !auth.Verify("demo123") || auth.Verify("demo124") {
		t.Error("Unexpected verification result")
	}
}

func TestGate_Register(t *testing.T) {
	gate := NewGate(newTestSession(t), newTestAuthenticator(t, "demo123"))

	tests := []struct {
		name      string
		req       models.RegisterRequest
		wantField string
	}{
		{"valid", models.RegisterRequest{Username: "a", Password: "secret1", ConfirmPassword: "secret1"}, ""},
		{"mismatch", models.RegisterRequest{Password: "secret1", ConfirmPassword: "secret2"}, "confirm_password"},
		{"too short", models.RegisterRequest{Password: "abc", ConfirmPassword: "abc"}, "password"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.Register(tc.req)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("Expected success, got %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if _, ok := vErr.Fields[tc.wantField]; !ok {
				t.Errorf("Expected field %q, got %v", tc.wantField, vErr.Fields)
			}
		})
	}

	if gate.IsAuthenticated() {
		t.Error("Registration must not sign the session in")
	}
}
