package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"chathub-backend/internal/models"
	"chathub-backend/internal/services"
	"chathub-backend/internal/session"
)

// SessionRotator replaces the browser's session with a fresh one.
type SessionRotator interface {
	Rotate(w http.ResponseWriter, r *http.Request, old *session.Session) (*session.Session, error)
}

type AuthHandler struct {
	auth     *services.Authenticator
	sessions SessionRotator
	views    *Views
}

func NewAuthHandler(auth *services.Authenticator, sessions SessionRotator, views *Views) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, views: views}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromContext(r.Context()); sess != nil && sess.Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.views.render(w, http.StatusOK, "login", newPage("Login", "login"))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	err := services.NewGate(sess, h.auth).Login(r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		page := newPage("Login", "login")
		page.Error = err.Error()
		h.views.render(w, http.StatusUnauthorized, "login", page)
		return
	}

	log.Printf("[auth] %s signed in", sess.Username())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	req := models.RegisterRequest{
		Username:        r.FormValue("username"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
	}

	page := newPage("Login", "login")
	if err := services.NewGate(sess, h.auth).Register(req); err != nil {
		if vErr, ok := err.(*services.ValidationError); ok {
			page.Error = vErr.First()
		} else {
			page.Error = err.Error()
		}
		h.views.render(w, http.StatusBadRequest, "login", page)
		return
	}

	page.Flash = "Registration successful! You can now login."
	h.views.render(w, http.StatusOK, "login", page)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.logout(w, r); err != nil {
		log.Printf("[auth] logout: %v", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// logout signs the session out and binds a fresh one. The old transcripts
// are left behind with the old session.
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) error {
	sess := session.FromContext(r.Context())
	if sess == nil {
		return nil
	}
	services.NewGate(sess, h.auth).Logout()
	_, err := h.sessions.Rotate(w, r, sess)
	return err
}

// ──── JSON API ────

func (h *AuthHandler) APILogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	if err := services.NewGate(sess, h.auth).Login(req.Username, req.Password); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Login successful!",
		"username": sess.Username(),
	})
}

func (h *AuthHandler) APILogout(w http.ResponseWriter, r *http.Request) {
	if err := h.logout(w, r); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
