package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chathub-backend/internal/models"
)

type stubListings struct {
	summary    *models.MarketSummary
	zips       []string
	types      []string
	records    []models.ListingRecord
	stats      []models.ZipStats
	lastFilter models.ListingFilter
	lastZips   []string
}

func (s *stubListings) Summary(ctx context.Context) (*models.MarketSummary, error) {
	return s.summary, nil
}
func (s *stubListings) CountByHomeType(ctx context.Context) ([]models.CategoryCount, error) {
	return []models.CategoryCount{{Label: "APARTMENT", Count: 10}, {Label: "CONDO", Count: 3}}, nil
}
func (s *stubListings) CountByBedrooms(ctx context.Context) ([]models.CategoryCount, error) {
	return []models.CategoryCount{{Label: "1", Count: 6}, {Label: "2", Count: 7}}, nil
}
func (s *stubListings) CountByStatus(ctx context.Context) ([]models.CategoryCount, error) {
	return []models.CategoryCount{{Label: "FOR_RENT", Count: 12}, {Label: "FOR_SALE", Count: 1}}, nil
}
func (s *stubListings) ZipCodes(ctx context.Context) ([]string, error)  { return s.zips, nil }
func (s *stubListings) HomeTypes(ctx context.Context) ([]string, error) { return s.types, nil }
func (s *stubListings) ZipComparison(ctx context.Context, zips []string) ([]models.ZipStats, error) {
	s.lastZips = zips
	return s.stats, nil
}
func (s *stubListings) Search(ctx context.Context, f models.ListingFilter) ([]models.ListingRecord, error) {
	s.lastFilter = f
	return s.records, nil
}

type stubMetrics struct {
	count   int64
	metrics []models.AggregatedMetric
	lastAgg string
}

func (s *stubMetrics) Count(ctx context.Context) (int64, error) { return s.count, nil }
func (s *stubMetrics) Rolling(ctx context.Context, zips []string) ([]models.AggregatedMetric, error) {
	return s.metrics, nil
}
func (s *stubMetrics) Trends(ctx context.Context, aggType string) ([]models.AggregatedMetric, error) {
	s.lastAgg = aggType
	return s.metrics, nil
}

func TestDaysOnMarket(t *testing.T) {
	assert.Equal(t, 2.0, DaysOnMarket(172800000))
	assert.Equal(t, 0.5, DaysOnMarket(43200000))
}

func TestPricePerArea(t *testing.T) {
	_, ok := PricePerArea(1500, 0)
	assert.False(t, ok)
	assert.Equal(t, "N/A", FormatPricePerArea(1500, 0))

	v, ok := PricePerArea(1500, 1000)
	require.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)
	assert.Equal(t, "$1.50", FormatPricePerArea(1500, 1000))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$1,234", FormatCurrency(1234.99))
	assert.Equal(t, "$0", FormatCurrency(0))
	assert.Equal(t, "$1,000,000", FormatCurrency(1000000))
	assert.Equal(t, "-$2,500", FormatCurrency(-2500.4))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "12,345", FormatCount(12345))
	assert.Equal(t, "3.5", FormatFixed(3.46, 1))
	assert.Equal(t, "0.00", FormatFixed(0, 2))
}

func TestOverview(t *testing.T) {
	svc := NewDashboardService(&stubListings{summary: &models.MarketSummary{
		TotalListings: 1234, ActiveZips: 5, AvgDOM: 12.345, MedianDOM: 10, AvgRent: 1450.7, MedianRent: 1399.9,
		ForRentCount: 1000, ForSaleCount: 234,
	}}, &stubMetrics{}, nil, nil)

	view, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.False(t, view.Empty)
	assert.Equal(t, "1,234", view.KPIs[0].Value)
	assert.Equal(t, "12.3 days", view.KPIs[1].Value)
	assert.Equal(t, "$1,399", view.KPIs[2].Value)
	assert.Len(t, view.Charts, 3)
	for _, c := range view.Charts {
		assert.Contains(t, c.HTML, "echarts")
	}
}

func TestOverview_NoSummary(t *testing.T) {
	view, err := NewDashboardService(&stubListings{}, &stubMetrics{}, nil, nil).Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, view.Empty)
	assert.Empty(t, view.Charts)
}

func TestZipAnalysis_DefaultsToFirstTwo(t *testing.T) {
	listings := &stubListings{
		zips:  []string{"45202", "45206", "45219"},
		stats: []models.ZipStats{{ZipCode: "45202", TotalListings: 3, AvgPricePerSqft: 1.234}},
	}
	svc := NewDashboardService(listings, &stubMetrics{}, nil, nil)

	view, err := svc.ZipAnalysis(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"45202", "45206"}, view.Selected)
	assert.Equal(t, []string{"45202", "45206"}, listings.lastZips)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "$1.23", view.Rows[0].PricePerSqft)
	assert.Len(t, view.Charts, 2)
}

func TestZipAnalysis_IgnoresUnknownZips(t *testing.T) {
	listings := &stubListings{zips: []string{"45202"}}
	view, err := NewDashboardService(listings, &stubMetrics{}, nil, nil).ZipAnalysis(context.Background(), []string{"99999"})
	require.NoError(t, err)
	assert.Empty(t, view.Selected)
	assert.Nil(t, listings.lastZips)
}

func TestListings_DefaultFilterAndRows(t *testing.T) {
	lat, lon := 39.1, -84.5
	listings := &stubListings{
		zips:  []string{"45202"},
		types: []string{"APARTMENT"},
		records: []models.ListingRecord{
			{StreetAddress: "1 Main St", Price: 1500, LivingArea: 1000, TimeOnMarket: 172800000, Latitude: &lat, Longitude: &lon},
			{StreetAddress: "2 Main St", Price: 900, LivingArea: 0},
		},
	}
	svc := NewDashboardService(listings, &stubMetrics{}, nil, nil)

	view, err := svc.Listings(context.Background(), ListingFilterInput{})
	require.NoError(t, err)

	assert.Equal(t, []string{"45202"}, listings.lastFilter.ZipCodes)
	assert.Equal(t, BedroomOptions, listings.lastFilter.Bedrooms)
	assert.Equal(t, DefaultStatuses, listings.lastFilter.Statuses)
	assert.Equal(t, float64(DefaultMaxPrice), listings.lastFilter.MaxPrice)

	require.Len(t, view.Rows, 2)
	assert.Equal(t, "2", view.Rows[0].DaysOnMarket)
	assert.Equal(t, "$1.50", view.Rows[0].PricePerSqft)
	assert.Equal(t, "N/A", view.Rows[1].PricePerSqft)
	assert.Equal(t, "N/A", view.Rows[1].DaysOnMarket)
	assert.Equal(t, 1, view.Mapped)
	require.NotNil(t, view.Map)
}

func TestTrends(t *testing.T) {
	t.Run("no aggregated data", func(t *testing.T) {
		view, err := NewDashboardService(&stubListings{}, &stubMetrics{count: 0}, nil, nil).Trends(context.Background(), "")
		require.NoError(t, err)
		assert.False(t, view.HasMetrics)
		assert.Equal(t, DefaultTrendPeriod, view.Period)
	})

	t.Run("unknown period falls back to monthly", func(t *testing.T) {
		d1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		d2 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		metrics := &stubMetrics{count: 3, metrics: []models.AggregatedMetric{
			{PeriodStart: d2, ZipCode: "45202", AvgDaysOnMarket: 10, MedianPrice: 1400, TotalListings: 20},
			{PeriodStart: d1, ZipCode: "45202", AvgDaysOnMarket: 12, MedianPrice: 1350, TotalListings: 18},
			{PeriodStart: d1, ZipCode: "45206", AvgDaysOnMarket: 8, MedianPrice: 1100, TotalListings: 9},
		}}

		view, err := NewDashboardService(&stubListings{}, metrics, nil, nil).Trends(context.Background(), "yearly")
		require.NoError(t, err)

		assert.Equal(t, "monthly", metrics.lastAgg)
		assert.True(t, view.HasMetrics)
		assert.Len(t, view.Rows, 3)
		assert.Len(t, view.Charts, 3)
	})
}

func TestPivotByZip_LeavesGaps(t *testing.T) {
	d1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	dates, series := pivotByZip([]models.AggregatedMetric{
		{PeriodStart: d2, ZipCode: "B", TotalListings: 2},
		{PeriodStart: d1, ZipCode: "A", TotalListings: 1},
	}, func(m models.AggregatedMetric) float64 { return float64(m.TotalListings) })

	assert.Equal(t, []string{"2025-01-01", "2025-02-01"}, dates)
	require.Len(t, series, 2)
	assert.Equal(t, "A", series[0].Name)
	assert.False(t, series[0].Points[0].Missing)
	assert.True(t, series[0].Points[1].Missing)
}
