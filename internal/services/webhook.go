package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"chathub-backend/internal/models"
)

// Replies shown in place of an answer when the webhook call does not
// produce one.
const (
	NoticeEmptyResponse   = "❌ Webhook returned an empty response. Please check your workflow configuration."
	NoticeNoResponseField = "No response received from the webhook workflow."
	NoticeAuthFailed      = "🔐 Authentication failed with the webhook."
	NoticeNotFound        = "🔍 Webhook not found. Please check the webhook URL configuration."
	NoticeServerError     = "⚠️ The webhook workflow is experiencing issues. Please try again later."
	NoticeConnect         = "🔌 Cannot connect to the webhook. Please check that the service is running and reachable."
	NoticeTimeout         = "⏱️ Request timed out. The workflow might be processing a complex request."
)

const (
	historyWindow  = 5
	excerptLength  = 200
	maxBodyBytes   = 4 << 20
	defaultTimeout = 30 * time.Second
)

type TransportErrorKind string

const (
	TransportConnect TransportErrorKind = "connect"
	TransportTimeout TransportErrorKind = "timeout"
	TransportOther   TransportErrorKind = "other"
)

// WebhookTransportError is a failure to get any HTTP response.
type WebhookTransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *WebhookTransportError) Error() string {
	return fmt.Sprintf("webhook %s error: %v", e.Kind, e.Err)
}

func (e *WebhookTransportError) Unwrap() error { return e.Err }

// WebhookProtocolError is a response with a status other than 200.
type WebhookProtocolError struct {
	StatusCode int
	Excerpt    string
}

func (e *WebhookProtocolError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.StatusCode)
}

type webhookPayload struct {
	Message             string           `json:"message"`
	SystemPrompt        string           `json:"system_prompt"`
	ConversationHistory []models.Message `json:"conversation_history"`
	FullPrompt          string           `json:"full_prompt"`
	ChatbotType         string           `json:"chatbot_type"`
	Timestamp           string           `json:"timestamp"`
}

// WebhookClient posts chat queries to a chatbot's webhook and normalizes
// whatever comes back into a reply string.
type WebhookClient struct {
	httpClient *http.Client
	extractor  ResponseExtractor
	extractors map[string]ResponseExtractor
	now        func() time.Time
}

func NewWebhookClient(httpClient *http.Client) *WebhookClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &WebhookClient{
		httpClient: httpClient,
		extractor:  NewFieldPriorityExtractor(),
		extractors: make(map[string]ResponseExtractor),
		now:        time.Now,
	}
}

// WithExtractor overrides reply extraction for one chatbot key.
func (c *WebhookClient) WithExtractor(botKey string, e ResponseExtractor) *WebhookClient {
	c.extractors[botKey] = e
	return c
}

func (c *WebhookClient) extractorFor(botKey string) ResponseExtractor {
	if e, ok := c.extractors[botKey]; ok {
		return e
	}
	return c.extractor
}

// SendChatQuery always returns display text. Failures become notices.
func (c *WebhookClient) SendChatQuery(ctx context.Context, profile models.ChatbotProfile, query string, history []models.Message) string {
	reply, err := c.Query(ctx, profile, query, history)
	if err != nil {
		log.Printf("[chat:%s] %v", profile.Key, err)
		return noticeFor(err)
	}
	return reply
}

// Query is SendChatQuery with typed errors for transport failures and
// non-200 responses.
func (c *WebhookClient) Query(ctx context.Context, profile models.ChatbotProfile, query string, history []models.Message) (string, error) {
	payload := buildPayload(profile, query, history, c.now())
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	timeout := profile.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, profile.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, profile.Auth)

	log.Printf("[chat:%s] POST %s (query %d chars, history %d)", profile.Key, profile.Endpoint, len(query), len(payload.ConversationHistory))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", classifyTransportError(err)
	}

	log.Printf("[chat:%s] status %d, %d bytes", profile.Key, resp.StatusCode, len(raw))

	if resp.StatusCode != http.StatusOK {
		return "", &WebhookProtocolError{StatusCode: resp.StatusCode, Excerpt: excerpt(string(raw), excerptLength)}
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return NoticeEmptyResponse, nil
	}

	decoded, err := decodeJSON(raw)
	if err != nil {
		// Not JSON: the body itself is the answer.
		return text, nil
	}
	return c.extractorFor(profile.Key).Extract(decoded), nil
}

func buildPayload(profile models.ChatbotProfile, query string, history []models.Message, now time.Time) webhookPayload {
	start := len(history) - historyWindow
	if start < 0 {
		start = 0
	}
	window := make([]models.Message, 0, len(history)-start)
	lines := make([]string, 0, len(history)-start)
	for _, m := range history[start:] {
		window = append(window, m)
		lines = append(lines, fmt.Sprintf("%s: %s", titleRole(m.Role), m.Content))
	}

	fullPrompt := fmt.Sprintf("%s\n\nConversation History:\n%s\n\nCurrent Query: %s",
		profile.SystemPrompt, strings.Join(lines, "\n"), query)

	return webhookPayload{
		Message:             query,
		SystemPrompt:        profile.SystemPrompt,
		ConversationHistory: window,
		FullPrompt:          fullPrompt,
		ChatbotType:         profile.ChatbotType,
		Timestamp:           now.Format(time.RFC3339Nano),
	}
}

func titleRole(r models.Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func setAuth(req *http.Request, auth models.WebhookAuth) {
	switch auth.Scheme {
	case models.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case models.AuthBasic:
		req.SetBasicAuth(auth.Username, auth.Password)
	}
}

func classifyTransportError(err error) *WebhookTransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &WebhookTransportError{Kind: TransportTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &WebhookTransportError{Kind: TransportTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &WebhookTransportError{Kind: TransportConnect, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &WebhookTransportError{Kind: TransportConnect, Err: err}
	}
	return &WebhookTransportError{Kind: TransportOther, Err: err}
}

func noticeFor(err error) string {
	var transportErr *WebhookTransportError
	var protocolErr *WebhookProtocolError
	switch {
	case errors.As(err, &transportErr):
		switch transportErr.Kind {
		case TransportConnect:
			return NoticeConnect
		case TransportTimeout:
			return NoticeTimeout
		default:
			return fmt.Sprintf("🌐 Network error contacting the webhook: %v", transportErr.Err)
		}
	case errors.As(err, &protocolErr):
		switch protocolErr.StatusCode {
		case http.StatusUnauthorized:
			return NoticeAuthFailed
		case http.StatusNotFound:
			return NoticeNotFound
		case http.StatusInternalServerError:
			return NoticeServerError
		default:
			return fmt.Sprintf("❌ Webhook error: status %d - %s", protocolErr.StatusCode, protocolErr.Excerpt)
		}
	default:
		return fmt.Sprintf("💥 Unexpected error: %v", err)
	}
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
