package session

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	CookieName = "chathub_session"
	sidKey     = "sid"
)

type contextKey string

const sessionKey contextKey = "session"

// Store keeps sessions in memory. The browser only carries a signed cookie
// with the session ID.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	cookies  *sessions.CookieStore
	now      func() time.Time
}

func NewStore(secret string, ttl time.Duration, secure bool) *Store {
	cookies := sessions.NewCookieStore([]byte(secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		cookies:  cookies,
		now:      time.Now,
	}
}

// Get looks up a live session by ID.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if sess.expired(s.now(), s.ttl) {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}

// Load returns the session bound to the request cookie, creating and
// binding a new one when the cookie is missing, invalid or expired.
func (s *Store) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	// A cookie that fails verification still yields a fresh *sessions.Session.
	cs, _ := s.cookies.Get(r, CookieName)

	if id, ok := cs.Values[sidKey].(string); ok && id != "" {
		if sess, ok := s.Get(id); ok {
			now := s.now()
			sess.touch(now)
			// Slide the cookie's MaxAge along with the idle TTL.
			if s.ttl > 0 && sess.refreshCookie(now, s.ttl/4) {
				if err := cs.Save(r, w); err != nil {
					return nil, fmt.Errorf("failed to refresh session cookie: %w", err)
				}
			}
			return sess, nil
		}
	}

	sess := s.create()
	cs.Values[sidKey] = sess.ID
	if err := cs.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to save session cookie: %w", err)
	}
	return sess, nil
}

// Rotate unbinds old from the browser and binds a fresh session. The old
// session is dropped from the store without clearing its transcripts.
func (s *Store) Rotate(w http.ResponseWriter, r *http.Request, old *Session) (*Session, error) {
	if old != nil {
		s.mu.Lock()
		delete(s.sessions, old.ID)
		s.mu.Unlock()
	}

	cs, _ := s.cookies.Get(r, CookieName)
	sess := s.create()
	cs.Values[sidKey] = sess.ID
	if err := cs.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to save session cookie: %w", err)
	}
	return sess, nil
}

func (s *Store) create() *Session {
	sess := newSession(uuid.NewString(), s.now())
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Len reports the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes idle sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.expired(now, s.ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Printf("[session] swept %d idle session(s)", n)
				}
			}
		}
	}()
}

// Middleware attaches the request's session to its context.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Load(w, r)
		if err != nil {
			log.Printf("[session] %v", err)
			http.Error(w, "Session error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess)))
	})
}

func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext returns the session attached by Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey).(*Session)
	return sess
}
