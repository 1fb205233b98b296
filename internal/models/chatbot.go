package models

import (
	"fmt"
	"time"
)

// AuthScheme selects the Authorization header sent to a webhook.
type AuthScheme string

const (
	AuthNone   AuthScheme = "none"
	AuthBearer AuthScheme = "bearer"
	AuthBasic  AuthScheme = "basic"
)

// WebhookAuth holds the credentials for one webhook endpoint.
type WebhookAuth struct {
	Scheme   AuthScheme
	Token    string
	Username string
	Password string
}

// ChatbotProfile describes one chat assistant and the webhook behind it.
type ChatbotProfile struct {
	Key          string        `json:"key"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Icon         string        `json:"icon"`
	Tip          string        `json:"tip,omitempty"`
	SystemPrompt string        `json:"-"`
	ChatbotType  string        `json:"chatbot_type"`
	Endpoint     string        `json:"-"`
	Auth         WebhookAuth   `json:"-"`
	Timeout      time.Duration `json:"-"`
}

// Validate reports settings that make the profile unusable.
func (p ChatbotProfile) Validate() error {
	if p.Endpoint == "" {
		return fmt.Errorf("webhook URL for %q is not configured", p.Key)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("webhook timeout for %q must be positive", p.Key)
	}
	switch p.Auth.Scheme {
	case AuthNone, "":
	case AuthBearer:
		if p.Auth.Token == "" {
			return fmt.Errorf("bearer token for %q is not configured", p.Key)
		}
	case AuthBasic:
		if p.Auth.Username == "" {
			return fmt.Errorf("basic auth username for %q is not configured", p.Key)
		}
	default:
		return fmt.Errorf("unknown auth scheme %q for %q", p.Auth.Scheme, p.Key)
	}
	return nil
}
