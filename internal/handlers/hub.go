package handlers

import (
	"log"
	"net/http"

	"chathub-backend/internal/models"
	"chathub-backend/internal/session"
)

// BotCatalog exposes the configured chatbot profiles.
type BotCatalog interface {
	Chatbot(key string) (models.ChatbotProfile, error)
	ChatbotList() []models.ChatbotProfile
}

// TokenIssuer signs websocket tokens for a session.
type TokenIssuer interface {
	GenerateSocketToken(sessionID string) (string, error)
}

// SystemInfo is shown on the hub page.
type SystemInfo struct {
	Env        string
	Port       string
	Database   string
	WebhookURL string
	Chatbots   int
}

type HubHandler struct {
	bots  BotCatalog
	info  SystemInfo
	views *Views
}

func NewHubHandler(bots BotCatalog, info SystemInfo, views *Views) *HubHandler {
	return &HubHandler{bots: bots, info: info, views: views}
}

func (h *HubHandler) Index(w http.ResponseWriter, r *http.Request) {
	page := signedInPage(r, h.bots, nil, "Hub", "hub")
	page.Data = h.info
	h.views.render(w, http.StatusOK, "hub", page)
}

// signedInPage fills the sidebar data shared by every authenticated page.
func signedInPage(r *http.Request, bots BotCatalog, tokens TokenIssuer, title, active string) Page {
	page := newPage(title, active)
	page.Bots = bots.ChatbotList()

	sess := session.FromContext(r.Context())
	if sess == nil {
		return page
	}
	page.Username = sess.Username()

	if tokens != nil {
		token, err := tokens.GenerateSocketToken(sess.ID)
		if err != nil {
			log.Printf("[ws] token for session: %v", err)
		} else {
			page.SocketToken = token
		}
	}
	return page
}
