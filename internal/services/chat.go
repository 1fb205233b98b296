package services

import (
	"context"
	"strings"
	"time"

	"chathub-backend/internal/models"
	"chathub-backend/internal/session"
)

const (
	EventChatMessage = "chat_message"
	EventChatCleared = "chat_cleared"
)

// ChatClient sends one query to a chatbot backend.
type ChatClient interface {
	SendChatQuery(ctx context.Context, profile models.ChatbotProfile, query string, history []models.Message) string
}

// Notifier delivers live events to the other tabs of a session.
type Notifier interface {
	Publish(ctx context.Context, sessionID string, msg models.WSMessage)
}

// ChatComponent is one chatbot bound to one session's transcript.
type ChatComponent struct {
	sess     *session.Session
	profile  models.ChatbotProfile
	client   ChatClient
	notifier Notifier
	now      func() time.Time
}

func NewChatComponent(sess *session.Session, profile models.ChatbotProfile, client ChatClient, notifier Notifier) *ChatComponent {
	return &ChatComponent{
		sess:     sess,
		profile:  profile,
		client:   client,
		notifier: notifier,
		now:      time.Now,
	}
}

func (c *ChatComponent) Profile() models.ChatbotProfile { return c.profile }

// Send records the user's query, asks the webhook with the transcript as
// context and records the reply. The reply is returned even when it is a
// failure notice.
func (c *ChatComponent) Send(ctx context.Context, query string) (models.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Message{}, &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}

	userMsg := models.NewMessage(models.RoleUser, query, c.now())
	c.sess.Append(c.profile.Key, userMsg)

	reply := c.client.SendChatQuery(ctx, c.profile, query, c.sess.History(c.profile.Key))

	assistantMsg := models.NewMessage(models.RoleAssistant, reply, c.now())
	c.sess.Append(c.profile.Key, assistantMsg)

	c.publish(ctx, EventChatMessage, &assistantMsg)
	return assistantMsg, nil
}

func (c *ChatComponent) History() []models.Message {
	return c.sess.History(c.profile.Key)
}

func (c *ChatComponent) Count() int {
	return c.sess.Count(c.profile.Key)
}

func (c *ChatComponent) Clear(ctx context.Context) {
	c.sess.Clear(c.profile.Key)
	c.publish(ctx, EventChatCleared, nil)
}

func (c *ChatComponent) publish(ctx context.Context, kind string, msg *models.Message) {
	if c.notifier == nil {
		return
	}
	c.notifier.Publish(ctx, c.sess.ID, models.WSMessage{
		Type:    kind,
		Payload: models.ChatEvent{Bot: c.profile.Key, Message: msg},
	})
}
