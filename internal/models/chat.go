package models

import "time"

// Role of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TimestampLayout is how message timestamps are rendered and sent upstream.
const TimestampLayout = "2006-01-02 15:04:05"

// Message represents a single turn in a conversation.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// NewMessage stamps a message with the current local time.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{Role: role, Content: content, Timestamp: now.Format(TimestampLayout)}
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply from the webhook plus the updated transcript.
type ChatResponse struct {
	Reply    Message   `json:"reply"`
	Messages []Message `json:"messages"`
}
