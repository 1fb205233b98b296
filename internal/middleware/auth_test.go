package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chathub-backend/internal/session"
)

func TestSocketToken_RoundTrip(t *testing.T) {
	auth := NewSocketAuth("test-secret-at-least-16")

	token, err := auth.GenerateSocketToken("sid-123")
	if err != nil {
		t.Fatalf("GenerateSocketToken error: %v", err)
	}

	sid, err := auth.ParseSocketToken(token)
	if err != nil {
		t.Fatalf("ParseSocketToken error: %v", err)
	}
	if sid != "sid-123" {
		t.Errorf("Expected sid-123, got %q", sid)
	}
}

func TestSocketToken_Rejects(t *testing.T) {
	auth := NewSocketAuth("test-secret-at-least-16")

	other, _ := NewSocketAuth("another-secret-value").GenerateSocketToken("sid-123")
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": "sid-123",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString(auth.Secret)
	noSid, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(auth.Secret)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", other},
		{"expired", expired},
		{"missing sid", noSid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := auth.ParseSocketToken(tc.token); err == nil {
				t.Error("Expected token to be rejected")
			}
		})
	}
}

func newSessionRequest(t *testing.T, signedIn bool) *http.Request {
	t.Helper()
	store := session.NewStore("test-secret-at-least-16", time.Hour, false)
	sess, err := store.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if signedIn {
		sess.SignIn("alice")
	}
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	return req.WithContext(session.NewContext(req.Context(), sess))
}

func TestRequireAuth(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	t.Run("signed out is redirected", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		RequireAuth(next).ServeHTTP(rec, newSessionRequest(t, false))

		if rec.Code != http.StatusSeeOther {
			t.Errorf("Expected 303, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Errorf("Expected redirect to /login, got %q", loc)
		}
		if called {
			t.Error("Protected handler must not run")
		}
	})

	t.Run("signed in passes through", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		RequireAuth(next).ServeHTTP(rec, newSessionRequest(t, true))

		if rec.Code != http.StatusOK || !called {
			t.Errorf("Expected handler to run, got %d", rec.Code)
		}
	})

	t.Run("no session at all", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusSeeOther || called {
			t.Errorf("Expected redirect without a session, got %d", rec.Code)
		}
	})
}

func TestRequireAPIAuth(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	RequireAPIAuth(next).ServeHTTP(rec, newSessionRequest(t, false))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON error, got %q", ct)
	}
	if called {
		t.Error("Protected handler must not run")
	}
}
