package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"chathub-backend/internal/session"
)

const socketTokenTTL = 15 * time.Minute

var ErrInvalidToken = errors.New("invalid socket token")

// SocketAuth signs short-lived tokens that bind a websocket to a session.
type SocketAuth struct {
	Secret []byte
}

func NewSocketAuth(secret string) *SocketAuth {
	return &SocketAuth{Secret: []byte(secret)}
}

// GenerateSocketToken creates a JWT with 15 minute expiry
func (j *SocketAuth) GenerateSocketToken(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": sessionID,
		"exp": now.Add(socketTokenTTL).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// ParseSocketToken verifies tokenStr and returns its session ID.
func (j *SocketAuth) ParseSocketToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", ErrInvalidToken
	}
	return sid, nil
}

// RequireAuth redirects page requests from signed-out sessions to /login.
// The wrapped handler never runs for them.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIAuth is RequireAuth for JSON endpoints.
func RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authenticated(r) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Login required", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authenticated(r *http.Request) bool {
	sess := session.FromContext(r.Context())
	return sess != nil && sess.Authenticated()
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := chimiddleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
