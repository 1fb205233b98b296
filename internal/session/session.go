package session

import (
	"sync"
	"time"

	"chathub-backend/internal/models"
)

// Session is the server-side state of one browser session: the auth flag
// and a chat transcript per chatbot.
type Session struct {
	ID string

	mu            sync.Mutex
	authenticated bool
	username      string
	messages      map[string][]models.Message
	lastSeen      time.Time
	cookieSaved   time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:          id,
		messages:    make(map[string][]models.Message),
		lastSeen:    now,
		cookieSaved: now,
	}
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// SignIn marks the session authenticated as username.
func (s *Session) SignIn(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.username = username
}

// SignOut drops the auth flag. Transcripts are left as they are.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.username = ""
}

// Append adds msg to the end of bot's transcript.
func (s *Session) Append(bot string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[bot] = append(s.messages[bot], msg)
}

// History returns a copy of bot's transcript in append order.
func (s *Session) History(bot string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[bot]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *Session) Count(bot string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[bot])
}

// Clear empties bot's transcript.
func (s *Session) Clear(bot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, bot)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// refreshCookie reports whether the browser cookie was last written more
// than every ago, and if so records now as the new write time.
func (s *Session) refreshCookie(now time.Time, every time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.cookieSaved) < every {
		return false
	}
	s.cookieSaved = now
	return true
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ttl > 0 && now.Sub(s.lastSeen) > ttl
}
