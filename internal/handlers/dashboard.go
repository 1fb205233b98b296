package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"chathub-backend/internal/database"
	"chathub-backend/internal/services"
)

// DashboardViews builds the four dashboard tabs.
type DashboardViews interface {
	Connected(ctx context.Context) bool
	Overview(ctx context.Context) (*services.OverviewView, error)
	ZipAnalysis(ctx context.Context, selected []string) (*services.ZipView, error)
	Listings(ctx context.Context, in services.ListingFilterInput) (*services.ListingsView, error)
	Trends(ctx context.Context, period string) (*services.TrendsView, error)
}

var dashboardTabs = []string{"overview", "zips", "listings", "trends"}

type DashboardHandler struct {
	svc   DashboardViews
	bots  BotCatalog
	views *Views
}

func NewDashboardHandler(svc DashboardViews, bots BotCatalog, views *Views) *DashboardHandler {
	return &DashboardHandler{svc: svc, bots: bots, views: views}
}

type dashboardPage struct {
	Tab       string
	Connected bool
	Banner    string
	Overview  *services.OverviewView
	Zips      *services.ZipView
	Listings  *services.ListingsView
	Trends    *services.TrendsView
}

func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	data := &dashboardPage{Tab: q.Get("tab"), Connected: h.svc.Connected(ctx)}
	if !containsString(dashboardTabs, data.Tab) {
		data.Tab = "overview"
	}

	var (
		err  error
		what string
	)
	switch data.Tab {
	case "overview":
		data.Overview, err = h.svc.Overview(ctx)
		what = "market overview"
	case "zips":
		data.Zips, err = h.svc.ZipAnalysis(ctx, q["zip"])
		what = "ZIP code analysis"
	case "listings":
		data.Listings, err = h.svc.Listings(ctx, listingFilterFromQuery(q))
		what = "property listings"
	case "trends":
		data.Trends, err = h.svc.Trends(ctx, q.Get("period"))
		what = "metrics trends"
	}
	if err != nil {
		log.Printf("[dashboard] %s: %v", data.Tab, err)
		data.Banner = describe(err, what)
	}

	page := signedInPage(r, h.bots, nil, "Rental Market Dashboard", "dashboard")
	page.Data = data
	h.views.render(w, http.StatusOK, "dashboard", page)
}

// describe turns a view error into the banner text. Connection failures
// get a fixed message; query errors keep the database's wording.
func describe(err error, what string) string {
	var connErr *database.ConnectionError
	if errors.As(err, &connErr) {
		return fmt.Sprintf("🔴 Database connection failed after %d attempt(s). Showing no data.", connErr.Attempts)
	}
	var queryErr *database.QueryError
	if errors.As(err, &queryErr) {
		return fmt.Sprintf("Error loading %s: %v", what, queryErr.Err)
	}
	return fmt.Sprintf("Error loading %s: %v", what, err)
}

func listingFilterFromQuery(q url.Values) services.ListingFilterInput {
	in := services.ListingFilterInput{
		ZipCodes:  q["zip"],
		HomeTypes: q["type"],
		Statuses:  q["status"],
	}
	for _, raw := range q["beds"] {
		if n, err := strconv.Atoi(raw); err == nil {
			in.Bedrooms = append(in.Bedrooms, n)
		}
	}

	// A submitted form with nothing picked means "none", not "defaults".
	if q.Get("filtered") != "" {
		if in.ZipCodes == nil {
			in.ZipCodes = []string{}
		}
		if in.Bedrooms == nil {
			in.Bedrooms = []int{}
		}
		if in.HomeTypes == nil {
			in.HomeTypes = []string{}
		}
		if in.Statuses == nil {
			in.Statuses = []string{}
		}
	}

	if v, err := strconv.ParseFloat(q.Get("min_price"), 64); err == nil {
		in.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(q.Get("max_price"), 64); err == nil {
		in.MaxPrice = &v
	}
	return in
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ──── JSON API ────

func (h *DashboardHandler) APIOverview(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Overview(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DashboardHandler) APIZips(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.ZipAnalysis(r.Context(), r.URL.Query()["zip"])
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DashboardHandler) APIListings(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Listings(r.Context(), listingFilterFromQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DashboardHandler) APITrends(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Trends(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DashboardHandler) APIStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"connected": h.svc.Connected(r.Context())})
}
