package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chathub-backend/internal/models"
	"chathub-backend/internal/services"
	"chathub-backend/internal/session"
)

type ChatHandler struct {
	bots     BotCatalog
	client   services.ChatClient
	notifier services.Notifier
	tokens   TokenIssuer
	views    *Views
}

func NewChatHandler(bots BotCatalog, client services.ChatClient, notifier services.Notifier, tokens TokenIssuer, views *Views) *ChatHandler {
	return &ChatHandler{bots: bots, client: client, notifier: notifier, tokens: tokens, views: views}
}

type chatPage struct {
	Profile     models.ChatbotProfile
	Messages    []models.Message
	Count       int
	ConfigError string
}

// component binds the {bot} profile to the request's session. A profile
// with broken settings is returned together with its error; an unknown bot
// yields an empty profile.
func (h *ChatHandler) component(r *http.Request) (*services.ChatComponent, models.ChatbotProfile, error) {
	profile, err := h.bots.Chatbot(chi.URLParam(r, "bot"))
	if err != nil {
		return nil, profile, err
	}
	sess := session.FromContext(r.Context())
	return services.NewChatComponent(sess, profile, h.client, h.notifier), profile, nil
}

func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	c, profile, err := h.component(r)
	if profile.Key == "" {
		http.NotFound(w, r)
		return
	}

	page := signedInPage(r, h.bots, h.tokens, profile.Name, profile.Key)
	data := chatPage{Profile: profile}
	if err != nil {
		data.ConfigError = err.Error()
		page.Data = data
		h.views.render(w, http.StatusOK, "chat", page)
		return
	}

	data.Messages = c.History()
	data.Count = len(data.Messages)
	page.Data = data
	h.views.render(w, http.StatusOK, "chat", page)
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	c, profile, err := h.component(r)
	if profile.Key == "" {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Redirect(w, r, "/chat/"+profile.Key, http.StatusSeeOther)
		return
	}

	// Blank messages are ignored; the page simply reloads.
	if _, err := c.Send(r.Context(), r.FormValue("message")); err != nil {
		var vErr *services.ValidationError
		if !errors.As(err, &vErr) {
			log.Printf("[chat] %s: send failed: %v", profile.Key, err)
		}
	}
	http.Redirect(w, r, "/chat/"+profile.Key, http.StatusSeeOther)
}

func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c, profile, err := h.component(r)
	if profile.Key == "" {
		http.NotFound(w, r)
		return
	}
	if err == nil {
		c.Clear(r.Context())
	}
	http.Redirect(w, r, "/chat/"+profile.Key, http.StatusSeeOther)
}

// ──── JSON API ────

func (h *ChatHandler) apiComponent(w http.ResponseWriter, r *http.Request) (*services.ChatComponent, bool) {
	c, profile, err := h.component(r)
	if profile.Key == "" {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chatbot not found", r))
		return nil, false
	}
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return c, true
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.apiComponent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chatbot":  c.Profile(),
		"messages": c.History(),
		"count":    c.Count(),
	})
}

func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c, ok := h.apiComponent(w, r)
	if !ok {
		return
	}

	reply, err := c.Send(r.Context(), req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply, Messages: c.History()})
}

func (h *ChatHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.apiComponent(w, r)
	if !ok {
		return
	}
	c.Clear(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat cleared"})
}
