package services

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"chathub-backend/internal/models"
	"chathub-backend/internal/session"
)

const minPasswordLength = 6

// Authenticator checks the shared login password against a bcrypt hash
// computed once at startup.
type Authenticator struct {
	hash []byte
}

func NewAuthenticator(password string) (*Authenticator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash login password: %w", err)
	}
	return &Authenticator{hash: hash}, nil
}

func NewAuthenticatorFromHash(hash string) *Authenticator {
	return &Authenticator{hash: []byte(hash)}
}

func (a *Authenticator) Verify(password string) bool {
	return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
}

// Gate is the auth view of one session.
type Gate struct {
	sess *session.Session
	auth *Authenticator
}

func NewGate(sess *session.Session, auth *Authenticator) *Gate {
	return &Gate{sess: sess, auth: auth}
}

func (g *Gate) IsAuthenticated() bool {
	return g.sess != nil && g.sess.Authenticated()
}

func (g *Gate) Username() string {
	if g.sess == nil {
		return ""
	}
	return g.sess.Username()
}

// Login signs the session in when password matches the shared secret.
// A failed attempt leaves the session untouched.
func (g *Gate) Login(username, password string) error {
	if g.sess == nil {
		return &AuthError{Message: "No active session"}
	}
	if !g.auth.Verify(password) {
		return &AuthError{Message: "Invalid username or password"}
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = "guest"
	}
	g.sess.SignIn(username)
	return nil
}

// Logout clears the auth flag. The caller rotates the session afterwards.
func (g *Gate) Logout() {
	if g.sess != nil {
		g.sess.SignOut()
	}
}

// Register runs the form checks and accepts the account without storing it.
// There is no user store; every login uses the shared password.
func (g *Gate) Register(req models.RegisterRequest) error {
	fields := map[string]string{}
	if req.Password != req.ConfirmPassword {
		fields["confirm_password"] = "Passwords don't match"
	} else if len(req.Password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("Password must be at least %d characters", minPasswordLength)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type AuthError struct{ Message string }

func (e *AuthError) Error() string { return e.Message }

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// First returns one field message, for forms that show a single line.
func (e *ValidationError) First() string {
	for _, k := range []string{"message", "confirm_password", "password"} {
		if msg, ok := e.Fields[k]; ok {
			return msg
		}
	}
	for _, msg := range e.Fields {
		return msg
	}
	return e.Error()
}
