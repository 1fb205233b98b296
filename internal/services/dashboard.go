package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"chathub-backend/internal/models"
)

const msPerDay = 86_400_000

var (
	BedroomOptions  = []int{0, 1, 2, 3, 4, 5}
	StatusOptions   = []string{"FOR_RENT", "FOR_SALE", "PENDING", "SOLD"}
	DefaultStatuses = []string{"FOR_RENT", "FOR_SALE"}
	TrendPeriods    = []string{"daily", "weekly", "monthly", "quarterly", "zip_level"}
)

const (
	DefaultMinPrice    = 0
	DefaultMaxPrice    = 10000
	DefaultTrendPeriod = "monthly"
)

type ListingStore interface {
	Summary(ctx context.Context) (*models.MarketSummary, error)
	CountByHomeType(ctx context.Context) ([]models.CategoryCount, error)
	CountByBedrooms(ctx context.Context) ([]models.CategoryCount, error)
	CountByStatus(ctx context.Context) ([]models.CategoryCount, error)
	ZipCodes(ctx context.Context) ([]string, error)
	HomeTypes(ctx context.Context) ([]string, error)
	ZipComparison(ctx context.Context, zips []string) ([]models.ZipStats, error)
	Search(ctx context.Context, f models.ListingFilter) ([]models.ListingRecord, error)
}

type MetricsStore interface {
	Count(ctx context.Context) (int64, error)
	Rolling(ctx context.Context, zips []string) ([]models.AggregatedMetric, error)
	Trends(ctx context.Context, aggType string) ([]models.AggregatedMetric, error)
}

type HealthChecker interface {
	TestConnection(ctx context.Context) bool
}

type DashboardService struct {
	listings ListingStore
	metrics  MetricsStore
	health   HealthChecker
	charts   *ChartRenderer
}

func NewDashboardService(listings ListingStore, metrics MetricsStore, health HealthChecker, charts *ChartRenderer) *DashboardService {
	if charts == nil {
		charts = NewChartRenderer()
	}
	return &DashboardService{listings: listings, metrics: metrics, health: health, charts: charts}
}

// Connected reports whether the database answers a trivial query.
func (s *DashboardService) Connected(ctx context.Context) bool {
	return s.health != nil && s.health.TestConnection(ctx)
}

// ──── Formatting ────

// DaysOnMarket converts a time-on-market counter in milliseconds to days.
func DaysOnMarket(ms int64) float64 {
	return float64(ms) / msPerDay
}

// PricePerArea divides price by area; ok is false when area is not positive.
func PricePerArea(price, area float64) (float64, bool) {
	if area <= 0 {
		return 0, false
	}
	return price / area, true
}

func FormatPricePerArea(price, area float64) string {
	v, ok := PricePerArea(price, area)
	if !ok {
		return "N/A"
	}
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatCurrency renders whole dollars with thousands separators, dropping
// any fraction.
func FormatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	whole := int64(v)
	if whole < 0 {
		return "-$" + groupThousands(-whole)
	}
	return "$" + groupThousands(whole)
}

func FormatCount(n int64) string {
	if n < 0 {
		return "-" + groupThousands(-n)
	}
	return groupThousands(n)
}

func FormatFixed(v float64, places int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', places, 64)
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// ──── Overview ────

type KPI struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Caption string `json:"caption"`
}

type OverviewView struct {
	Summary    *models.MarketSummary  `json:"summary"`
	KPIs       []KPI                  `json:"kpis"`
	ByType     []models.CategoryCount `json:"by_home_type"`
	ByBedrooms []models.CategoryCount `json:"by_bedrooms"`
	ByStatus   []models.CategoryCount `json:"by_status"`
	Charts     []Chart                `json:"-"`
	Empty      bool                   `json:"empty"`
}

func (s *DashboardService) Overview(ctx context.Context) (*OverviewView, error) {
	summary, err := s.listings.Summary(ctx)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return &OverviewView{Empty: true}, nil
	}

	view := &OverviewView{
		Summary: summary,
		KPIs: []KPI{
			{Label: "Total Listings", Value: FormatCount(summary.TotalListings), Caption: fmt.Sprintf("📍 %d ZIP codes", summary.ActiveZips)},
			{Label: "Avg Days on Market", Value: FormatFixed(summary.AvgDOM, 1) + " days", Caption: "Median: " + FormatFixed(summary.MedianDOM, 1) + " days"},
			{Label: "Median Rent", Value: FormatCurrency(summary.MedianRent), Caption: "Average: " + FormatCurrency(summary.AvgRent)},
			{Label: "Rent Range", Value: FormatCurrency(summary.MinRent) + " – " + FormatCurrency(summary.MaxRent), Caption: "Min to max"},
			{Label: "For Rent", Value: FormatCount(summary.ForRentCount), Caption: "For Sale: " + FormatCount(summary.ForSaleCount)},
		},
		Empty: summary.TotalListings == 0,
	}

	if view.ByType, err = s.listings.CountByHomeType(ctx); err != nil {
		return nil, err
	}
	if view.ByBedrooms, err = s.listings.CountByBedrooms(ctx); err != nil {
		return nil, err
	}
	if view.ByStatus, err = s.listings.CountByStatus(ctx); err != nil {
		return nil, err
	}

	if len(view.ByType) > 0 {
		labels, series := countSeries("Listings", view.ByType)
		chart, err := s.charts.Bar("Listings by Property Type", labels, []ChartSeries{series})
		if err != nil {
			return nil, err
		}
		view.Charts = append(view.Charts, chart)
	}
	if len(view.ByBedrooms) > 0 {
		labels, series := countSeries("Listings", view.ByBedrooms)
		chart, err := s.charts.Bar("Listings by Bedrooms", labels, []ChartSeries{series})
		if err != nil {
			return nil, err
		}
		view.Charts = append(view.Charts, chart)
	}
	if len(view.ByStatus) > 0 {
		_, series := countSeries("Status", view.ByStatus)
		chart, err := s.charts.Donut("Listings by Status", series)
		if err != nil {
			return nil, err
		}
		view.Charts = append(view.Charts, chart)
	}

	return view, nil
}

func countSeries(name string, counts []models.CategoryCount) ([]string, ChartSeries) {
	labels := make([]string, len(counts))
	points := make([]ChartPoint, len(counts))
	for i, c := range counts {
		labels[i] = c.Label
		points[i] = ChartPoint{Label: c.Label, Value: float64(c.Count)}
	}
	return labels, ChartSeries{Name: name, Points: points}
}

// ──── ZIP comparison ────

type ZipRow struct {
	ZipCode      string `json:"zip_code"`
	Listings     string `json:"total_listings"`
	AvgDOM       string `json:"avg_dom"`
	MedianDOM    string `json:"median_dom"`
	MedianRent   string `json:"median_rent"`
	AvgRent      string `json:"avg_rent"`
	PricePerSqft string `json:"avg_price_per_sqft"`
}

type MetricRow struct {
	PeriodType    string `json:"period_type"`
	PeriodStart   string `json:"period_start"`
	ZipCode       string `json:"zip_code"`
	AvgDOM        string `json:"avg_dom"`
	MedianRent    string `json:"median_rent"`
	AvgRent       string `json:"avg_rent"`
	TotalListings string `json:"total_listings"`
	NewListings   string `json:"new_listings"`
}

type ZipView struct {
	Available []string          `json:"available"`
	Selected  []string          `json:"selected"`
	Stats     []models.ZipStats `json:"stats"`
	Rows      []ZipRow          `json:"rows"`
	Rolling   []MetricRow       `json:"rolling"`
	Charts    []Chart           `json:"-"`
}

// ZipAnalysis compares the selected zip codes. With no selection the first
// two available zips are used. Unknown zips are ignored.
func (s *DashboardService) ZipAnalysis(ctx context.Context, selected []string) (*ZipView, error) {
	available, err := s.listings.ZipCodes(ctx)
	if err != nil {
		return nil, err
	}
	view := &ZipView{Available: available}
	if len(available) == 0 {
		return view, nil
	}

	view.Selected = intersect(selected, available)
	if len(selected) == 0 {
		n := 2
		if len(available) < n {
			n = len(available)
		}
		view.Selected = append([]string(nil), available[:n]...)
	}
	if len(view.Selected) == 0 {
		return view, nil
	}

	if view.Stats, err = s.listings.ZipComparison(ctx, view.Selected); err != nil {
		return nil, err
	}
	for _, z := range view.Stats {
		view.Rows = append(view.Rows, ZipRow{
			ZipCode:      z.ZipCode,
			Listings:     FormatCount(z.TotalListings),
			AvgDOM:       FormatFixed(z.AvgDOM, 1),
			MedianDOM:    FormatFixed(z.MedianDOM, 1),
			MedianRent:   FormatCurrency(z.MedianRent),
			AvgRent:      FormatCurrency(z.AvgRent),
			PricePerSqft: "$" + FormatFixed(z.AvgPricePerSqft, 2),
		})
	}

	if len(view.Stats) > 0 {
		zips := make([]string, len(view.Stats))
		dom := make([]ChartPoint, len(view.Stats))
		rent := make([]ChartPoint, len(view.Stats))
		for i, z := range view.Stats {
			zips[i] = z.ZipCode
			dom[i] = ChartPoint{Label: z.ZipCode, Value: round(z.AvgDOM, 1)}
			rent[i] = ChartPoint{Label: z.ZipCode, Value: math.Trunc(z.MedianRent)}
		}
		domChart, err := s.charts.Bar("Average Days on Market", zips, []ChartSeries{{Name: "Avg DOM", Points: dom}})
		if err != nil {
			return nil, err
		}
		rentChart, err := s.charts.Bar("Median Rent Comparison", zips, []ChartSeries{{Name: "Median Rent ($)", Points: rent}})
		if err != nil {
			return nil, err
		}
		view.Charts = append(view.Charts, domChart, rentChart)
	}

	rolling, err := s.metrics.Rolling(ctx, view.Selected)
	if err != nil {
		return nil, err
	}
	view.Rolling = metricRows(rolling)

	return view, nil
}

// ──── Listings ────

type ListingRow struct {
	Address      string `json:"address"`
	ZipCode      string `json:"zip_code"`
	Beds         int    `json:"bedrooms"`
	Baths        string `json:"bathrooms"`
	Sqft         string `json:"living_area"`
	HomeType     string `json:"home_type"`
	Status       string `json:"home_status"`
	Price        string `json:"price"`
	DaysOnMarket string `json:"days_on_market"`
	PricePerSqft string `json:"price_per_sqft"`
}

type ListingOptions struct {
	ZipCodes  []string `json:"zip_codes"`
	HomeTypes []string `json:"home_types"`
	Bedrooms  []int    `json:"bedrooms"`
	Statuses  []string `json:"statuses"`
}

type ListingsView struct {
	Options ListingOptions         `json:"options"`
	Filter  models.ListingFilter   `json:"filter"`
	Records []models.ListingRecord `json:"records"`
	Rows    []ListingRow           `json:"rows"`
	Mapped  int                    `json:"mapped"`
	Map     *Chart                 `json:"-"`
}

// ListingFilterInput is a partially specified filter; nil fields take the
// view defaults.
type ListingFilterInput struct {
	ZipCodes  []string
	Bedrooms  []int
	HomeTypes []string
	Statuses  []string
	MinPrice  *float64
	MaxPrice  *float64
}

func (s *DashboardService) Listings(ctx context.Context, in ListingFilterInput) (*ListingsView, error) {
	zips, err := s.listings.ZipCodes(ctx)
	if err != nil {
		return nil, err
	}
	types, err := s.listings.HomeTypes(ctx)
	if err != nil {
		return nil, err
	}

	view := &ListingsView{
		Options: ListingOptions{ZipCodes: zips, HomeTypes: types, Bedrooms: BedroomOptions, Statuses: StatusOptions},
		Filter:  resolveFilter(in, zips, types),
	}

	view.Records, err = s.listings.Search(ctx, view.Filter)
	if err != nil {
		return nil, err
	}

	var points []ChartPoint
	for _, l := range view.Records {
		dom := "N/A"
		if l.TimeOnMarket > 0 {
			dom = FormatFixed(math.Round(DaysOnMarket(l.TimeOnMarket)), 0)
		}
		view.Rows = append(view.Rows, ListingRow{
			Address:      l.StreetAddress,
			ZipCode:      l.ZipCode,
			Beds:         l.Bedrooms,
			Baths:        FormatFixed(l.Bathrooms, 1),
			Sqft:         FormatCount(int64(l.LivingArea)),
			HomeType:     l.HomeType,
			Status:       l.HomeStatus,
			Price:        FormatCurrency(l.Price),
			DaysOnMarket: dom,
			PricePerSqft: FormatPricePerArea(l.Price, l.LivingArea),
		})
		if l.Latitude != nil && l.Longitude != nil {
			points = append(points, ChartPoint{Label: l.StreetAddress, Pair: []float64{*l.Longitude, *l.Latitude}})
		}
	}

	view.Mapped = len(points)
	if len(points) > 0 {
		chart, err := s.charts.Scatter("Property Locations", "Longitude", "Latitude", []ChartSeries{{Name: "Listings", Points: points}})
		if err != nil {
			return nil, err
		}
		view.Map = &chart
	}

	return view, nil
}

func resolveFilter(in ListingFilterInput, zips, types []string) models.ListingFilter {
	f := models.ListingFilter{
		ZipCodes:  in.ZipCodes,
		Bedrooms:  in.Bedrooms,
		HomeTypes: in.HomeTypes,
		Statuses:  in.Statuses,
		MinPrice:  DefaultMinPrice,
		MaxPrice:  DefaultMaxPrice,
	}
	if f.ZipCodes == nil {
		f.ZipCodes = zips
	}
	if f.Bedrooms == nil {
		f.Bedrooms = BedroomOptions
	}
	if f.HomeTypes == nil {
		f.HomeTypes = types
	}
	if f.Statuses == nil {
		f.Statuses = DefaultStatuses
	}
	if in.MinPrice != nil && *in.MinPrice >= 0 {
		f.MinPrice = *in.MinPrice
	}
	if in.MaxPrice != nil && *in.MaxPrice >= 0 {
		f.MaxPrice = *in.MaxPrice
	}
	return f
}

// ──── Trends ────

type TrendsView struct {
	Periods    []string                  `json:"periods"`
	Period     string                    `json:"period"`
	HasMetrics bool                      `json:"has_metrics"`
	Metrics    []models.AggregatedMetric `json:"metrics"`
	Rows       []MetricRow               `json:"rows"`
	Charts     []Chart                   `json:"-"`
}

func (s *DashboardService) Trends(ctx context.Context, period string) (*TrendsView, error) {
	if !contains(TrendPeriods, period) {
		period = DefaultTrendPeriod
	}
	view := &TrendsView{Periods: TrendPeriods, Period: period}

	count, err := s.metrics.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return view, nil
	}
	view.HasMetrics = true

	if view.Metrics, err = s.metrics.Trends(ctx, period); err != nil {
		return nil, err
	}
	view.Rows = metricRows(view.Metrics)
	if len(view.Metrics) == 0 {
		return view, nil
	}

	dates, dom := pivotByZip(view.Metrics, func(m models.AggregatedMetric) float64 { return round(m.AvgDaysOnMarket, 1) })
	_, rent := pivotByZip(view.Metrics, func(m models.AggregatedMetric) float64 { return math.Trunc(m.MedianPrice) })
	_, total := pivotByZip(view.Metrics, func(m models.AggregatedMetric) float64 { return float64(m.TotalListings) })

	for _, spec := range []struct {
		title  string
		series []ChartSeries
	}{
		{"Days on Market Trend", dom},
		{"Median Rent Trend", rent},
		{"Total Listings Trend", total},
	} {
		chart, err := s.charts.Line(spec.title, dates, spec.series)
		if err != nil {
			return nil, err
		}
		view.Charts = append(view.Charts, chart)
	}

	return view, nil
}

// pivotByZip lays metrics out as one series per zip over ascending dates.
// Dates a zip has no row for are left as gaps.
func pivotByZip(metrics []models.AggregatedMetric, value func(models.AggregatedMetric) float64) ([]string, []ChartSeries) {
	byZip := map[string]map[string]float64{}
	dateSet := map[string]bool{}
	for _, m := range metrics {
		d := m.PeriodStart.Format("2006-01-02")
		dateSet[d] = true
		if byZip[m.ZipCode] == nil {
			byZip[m.ZipCode] = map[string]float64{}
		}
		byZip[m.ZipCode][d] = value(m)
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	zips := make([]string, 0, len(byZip))
	for z := range byZip {
		zips = append(zips, z)
	}
	sort.Strings(zips)

	series := make([]ChartSeries, 0, len(zips))
	for _, z := range zips {
		points := make([]ChartPoint, len(dates))
		for i, d := range dates {
			v, ok := byZip[z][d]
			points[i] = ChartPoint{Label: d, Value: v, Missing: !ok}
		}
		name := z
		if name == "" {
			name = "All"
		}
		series = append(series, ChartSeries{Name: name, Points: points})
	}
	return dates, series
}

func metricRows(metrics []models.AggregatedMetric) []MetricRow {
	rows := make([]MetricRow, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, MetricRow{
			PeriodType:    m.AggregationType,
			PeriodStart:   m.PeriodStart.Format("2006-01-02"),
			ZipCode:       m.ZipCode,
			AvgDOM:        FormatFixed(m.AvgDaysOnMarket, 1),
			MedianRent:    FormatCurrency(m.MedianPrice),
			AvgRent:       FormatCurrency(m.AveragePrice),
			TotalListings: FormatCount(m.TotalListings),
			NewListings:   FormatCount(m.NewListings),
		})
	}
	return rows
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intersect(want, have []string) []string {
	out := make([]string, 0, len(want))
	for _, w := range want {
		if contains(have, w) && !contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}
