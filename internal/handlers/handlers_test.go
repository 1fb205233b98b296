package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"chathub-backend/internal/config"
	"chathub-backend/internal/database"
	"chathub-backend/internal/models"
	"chathub-backend/internal/services"
	"chathub-backend/internal/session"
)

type spyDashboard struct {
	calls     int
	connected bool
	err       error
	lastZips  []string
	lastIn    services.ListingFilterInput
}

func (s *spyDashboard) Connected(ctx context.Context) bool { return s.connected }

func (s *spyDashboard) Overview(ctx context.Context) (*services.OverviewView, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &services.OverviewView{KPIs: []services.KPI{{Label: "Total Listings", Value: "1,234"}}}, nil
}

func (s *spyDashboard) ZipAnalysis(ctx context.Context, selected []string) (*services.ZipView, error) {
	s.calls++
	s.lastZips = selected
	return &services.ZipView{Available: []string{"45202"}, Selected: selected}, s.err
}

func (s *spyDashboard) Listings(ctx context.Context, in services.ListingFilterInput) (*services.ListingsView, error) {
	s.calls++
	s.lastIn = in
	return &services.ListingsView{}, s.err
}

func (s *spyDashboard) Trends(ctx context.Context, period string) (*services.TrendsView, error) {
	s.calls++
	return &services.TrendsView{Period: period}, s.err
}

type staticBots map[string]models.ChatbotProfile

func (b staticBots) Chatbot(key string) (models.ChatbotProfile, error) {
	p, ok := b[key]
	if !ok {
		return models.ChatbotProfile{}, &config.Error{Key: key, Message: "unknown chatbot"}
	}
	if err := p.Validate(); err != nil {
		return p, &config.Error{Key: key, Message: err.Error()}
	}
	return p, nil
}

func (b staticBots) ChatbotList() []models.ChatbotProfile {
	out := make([]models.ChatbotProfile, 0, len(b))
	for _, p := range b {
		out = append(out, p)
	}
	return out
}

func mustViews(t *testing.T) *Views {
	t.Helper()
	v, err := NewViews()
	if err != nil {
		t.Fatalf("NewViews error: %v", err)
	}
	return v
}

func signedInRequest(t *testing.T, method, target string, body *strings.Reader) (*http.Request, *session.Session) {
	t.Helper()
	store := session.NewStore("test-secret-at-least-16", time.Hour, false)
	sess, err := store.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	sess.SignIn("alice")

	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	return req.WithContext(session.NewContext(req.Context(), sess)), sess
}

// ─── Error mapping ───

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"message": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"auth", &services.AuthError{Message: "Invalid username or password"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"connection", &database.ConnectionError{Attempts: 3, Err: errors.New("refused")}, http.StatusServiceUnavailable, "DB_UNAVAILABLE"},
		{"wrapped query", wrap(&database.QueryError{Query: "SELECT", Err: errors.New("relation missing")}), http.StatusInternalServerError, "QUERY_ERROR"},
		{"config", &config.Error{Key: "controller", Message: "webhook URL missing"}, http.StatusInternalServerError, "CONFIG_ERROR"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handleServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)

			if rr.Code != tc.status {
				t.Errorf("Expected %d, got %d", tc.status, rr.Code)
			}
			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tc.code {
				t.Errorf("Expected code %s, got %s", tc.code, resp.Error.Code)
			}
		})
	}
}

func wrap(err error) error {
	return errors.Join(errors.New("listing summary"), err)
}

// ─── Views ───

func TestNewViews_ParsesEveryPage(t *testing.T) {
	v := mustViews(t)
	for _, name := range pageNames {
		if v.pages[name] == nil {
			t.Errorf("Missing page %s", name)
		}
	}
}

// ─── Dashboard ───

func TestDashboardPage_DefaultsToOverview(t *testing.T) {
	spy := &spyDashboard{connected: true}
	h := NewDashboardHandler(spy, staticBots{}, mustViews(t))

	req, _ := signedInRequest(t, http.MethodGet, "/dashboard?tab=bogus", nil)
	rr := httptest.NewRecorder()
	h.Page(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "1,234") || !strings.Contains(body, "Database connected") {
		t.Errorf("Expected overview KPIs and connected indicator in page")
	}
	if spy.calls != 1 {
		t.Errorf("Expected exactly one view built, got %d", spy.calls)
	}
}

func TestDashboardPage_Banners(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"connection failure", &database.ConnectionError{Attempts: 3, Err: errors.New("refused")}, "Database connection failed after 3 attempt(s)"},
		{"query failure", &database.QueryError{Query: "SELECT", Err: errors.New(`relation "zillow_listings" does not exist`)}, "relation &#34;zillow_listings&#34; does not exist"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewDashboardHandler(&spyDashboard{err: tc.err}, staticBots{}, mustViews(t))
			req, _ := signedInRequest(t, http.MethodGet, "/dashboard", nil)
			rr := httptest.NewRecorder()
			h.Page(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected page to render, got %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tc.want) {
				t.Errorf("Expected banner containing %q", tc.want)
			}
			if !strings.Contains(rr.Body.String(), "Database disconnected") {
				t.Error("Expected disconnected indicator")
			}
		})
	}
}

func TestListingFilterFromQuery(t *testing.T) {
	t.Run("untouched form uses defaults", func(t *testing.T) {
		in := listingFilterFromQuery(url.Values{})
		if in.ZipCodes != nil || in.Bedrooms != nil || in.MinPrice != nil {
			t.Errorf("Expected nil fields, got %+v", in)
		}
	})

	t.Run("submitted form", func(t *testing.T) {
		in := listingFilterFromQuery(url.Values{
			"filtered":  {"1"},
			"zip":       {"45202", "45206"},
			"beds":      {"1", "x", "3"},
			"min_price": {"500"},
			"max_price": {"abc"},
		})
		if len(in.ZipCodes) != 2 {
			t.Errorf("Expected 2 zips, got %v", in.ZipCodes)
		}
		if len(in.Bedrooms) != 2 || in.Bedrooms[1] != 3 {
			t.Errorf("Expected beds [1 3], got %v", in.Bedrooms)
		}
		if in.HomeTypes == nil || len(in.HomeTypes) != 0 {
			t.Errorf("Expected empty non-nil home types, got %#v", in.HomeTypes)
		}
		if in.MinPrice == nil || *in.MinPrice != 500 || in.MaxPrice != nil {
			t.Errorf("Unexpected price bounds: %v / %v", in.MinPrice, in.MaxPrice)
		}
	})
}

func TestDashboardAPI_ZipSelection(t *testing.T) {
	spy := &spyDashboard{}
	h := NewDashboardHandler(spy, staticBots{}, mustViews(t))

	rr := httptest.NewRecorder()
	h.APIZips(rr, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/zips?zip=45202&zip=45206", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if len(spy.lastZips) != 2 || spy.lastZips[1] != "45206" {
		t.Errorf("Expected both zips passed through, got %v", spy.lastZips)
	}
}

// ─── Chat ───

type echoClient struct{}

func (echoClient) SendChatQuery(ctx context.Context, p models.ChatbotProfile, query string, history []models.Message) string {
	return "echo: " + query
}

func withBot(req *http.Request, bot string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("bot", bot)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testBots() staticBots {
	return staticBots{
		"ian_cruz":   {Key: "ian_cruz", Name: "Chat with Ian Cruz", Icon: "👨‍💼", Endpoint: "http://example", Auth: models.WebhookAuth{Scheme: models.AuthNone}, Timeout: time.Second},
		"controller": {Key: "controller", Name: "Financial Controller", Icon: "💰", Auth: models.WebhookAuth{Scheme: models.AuthBasic}, Timeout: time.Second},
	}
}

func TestChatPage_ConfigErrorPanel(t *testing.T) {
	h := NewChatHandler(testBots(), echoClient{}, nil, nil, mustViews(t))

	req, _ := signedInRequest(t, http.MethodGet, "/chat/controller", nil)
	rr := httptest.NewRecorder()
	h.Page(rr, withBot(req, "controller"))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Configuration error") {
		t.Error("Expected configuration error panel")
	}
}

func TestChatPage_UnknownBot(t *testing.T) {
	h := NewChatHandler(testBots(), echoClient{}, nil, nil, mustViews(t))

	req, _ := signedInRequest(t, http.MethodGet, "/chat/nobody", nil)
	rr := httptest.NewRecorder()
	h.Page(rr, withBot(req, "nobody"))

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}
}

func TestChatSend_RedirectsAndRecords(t *testing.T) {
	h := NewChatHandler(testBots(), echoClient{}, nil, nil, mustViews(t))

	req, sess := signedInRequest(t, http.MethodPost, "/chat/ian_cruz", strings.NewReader("message=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.Send(rr, withBot(req, "ian_cruz"))

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/chat/ian_cruz" {
		t.Fatalf("Expected 303 to chat page, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	history := sess.History("ian_cruz")
	if len(history) != 2 || history[1].Content != "echo: hello" {
		t.Errorf("Unexpected history: %+v", history)
	}
}

func TestChatSend_BlankMessageJustReloads(t *testing.T) {
	h := NewChatHandler(testBots(), echoClient{}, nil, nil, mustViews(t))

	req, sess := signedInRequest(t, http.MethodPost, "/chat/ian_cruz", strings.NewReader("message=+++"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.Send(rr, withBot(req, "ian_cruz"))

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/chat/ian_cruz" {
		t.Fatalf("Expected 303 to chat page, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if sess.Count("ian_cruz") != 0 {
		t.Errorf("Blank message must not be recorded, got %d", sess.Count("ian_cruz"))
	}
}

func TestChatPage_KeepsLineBreaksInReplies(t *testing.T) {
	h := NewChatHandler(testBots(), echoClient{}, nil, nil, mustViews(t))

	req, sess := signedInRequest(t, http.MethodGet, "/chat/ian_cruz", nil)
	reply := "Step 1: budget\nStep 2: forecast\n- item"
	sess.Append("ian_cruz", models.NewMessage(models.RoleAssistant, reply, time.Now()))

	rr := httptest.NewRecorder()
	h.Page(rr, withBot(req, "ian_cruz"))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `<div class="content">`+reply+`</div>`) {
		t.Errorf("Expected reply with its newlines inside the content block")
	}
	if !strings.Contains(body, ".msg .content { white-space: pre-wrap;") {
		t.Errorf("Expected message content to be styled pre-wrap")
	}
}

func TestChatAPI_PostMessageRejectsBlank(t *testing.T) {
	h := NewChatHandler(testBots(), echoClient{}, nil, nil, mustViews(t))

	req, sess := signedInRequest(t, http.MethodPost, "/api/v1/chat/ian_cruz/messages", strings.NewReader(`{"message":"   "}`))
	rr := httptest.NewRecorder()
	h.PostMessage(rr, withBot(req, "ian_cruz"))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
	if sess.Count("ian_cruz") != 0 {
		t.Error("Blank message must not be recorded")
	}
}

// ─── Auth ───

func TestRegister_MismatchShowsError(t *testing.T) {
	auth, err := services.NewAuthenticator("demo123")
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	h := NewAuthHandler(auth, session.NewStore("test-secret-at-least-16", time.Hour, false), mustViews(t))

	form := url.Values{"password": {"secret1"}, "confirm_password": {"secret2"}}
	req, _ := signedInRequest(t, http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.Register(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("Passwords don&#39;t match")) {
		t.Errorf("Expected mismatch message in page")
	}
}
