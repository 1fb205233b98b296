package repository

import (
	"context"
	"fmt"

	"chathub-backend/internal/models"
)

// Period types stored in zillow_metrics_aggregated.
var AggregationTypes = []string{"daily", "weekly", "monthly", "quarterly", "zip_level"}

const DefaultAggregationType = "monthly"

type MetricsRepo struct {
	db Querier
}

func NewMetricsRepo(db Querier) *MetricsRepo {
	return &MetricsRepo{db: db}
}

// Count reports how many aggregated rows exist.
func (r *MetricsRepo) Count(ctx context.Context) (int64, error) {
	row, err := r.db.FetchOne(ctx, `SELECT COUNT(*) AS count FROM zillow_metrics_aggregated`)
	if err != nil {
		return 0, fmt.Errorf("metrics count: %w", err)
	}
	if row == nil {
		return 0, nil
	}
	return safeInt(row["count"]), nil
}

// Rolling returns the latest daily/weekly/monthly rows for zips.
func (r *MetricsRepo) Rolling(ctx context.Context, zips []string) ([]models.AggregatedMetric, error) {
	rows, err := r.db.FetchAll(ctx, `
		SELECT
			aggregation_type,
			period_start_date,
			zip_code,
			AVG(average_days_on_market) AS avg_dom,
			AVG(median_price) AS median_rent,
			SUM(total_listings) AS total_listings
		FROM zillow_metrics_aggregated
		WHERE zip_code = ANY($1)
			AND aggregation_type IN ('daily', 'weekly', 'monthly')
		GROUP BY aggregation_type, period_start_date, zip_code
		ORDER BY period_start_date DESC, aggregation_type
		LIMIT 50
	`, zips)
	if err != nil {
		return nil, fmt.Errorf("rolling metrics: %w", err)
	}
	return toMetrics(rows), nil
}

// Trends returns up to 100 rows for one period type, newest first.
func (r *MetricsRepo) Trends(ctx context.Context, aggType string) ([]models.AggregatedMetric, error) {
	rows, err := r.db.FetchAll(ctx, `
		SELECT
			period_start_date,
			zip_code,
			aggregation_type,
			AVG(average_days_on_market) AS avg_dom,
			AVG(median_price) AS median_rent,
			AVG(average_price) AS avg_rent,
			SUM(total_listings) AS total_listings,
			SUM(new_listings) AS new_listings
		FROM zillow_metrics_aggregated
		WHERE aggregation_type = $1
		GROUP BY period_start_date, zip_code, aggregation_type
		ORDER BY period_start_date DESC
		LIMIT 100
	`, aggType)
	if err != nil {
		return nil, fmt.Errorf("metric trends: %w", err)
	}
	return toMetrics(rows), nil
}

func toMetrics(rows []map[string]any) []models.AggregatedMetric {
	out := make([]models.AggregatedMetric, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.AggregatedMetric{
			AggregationType: safeString(row["aggregation_type"]),
			PeriodStart:     safeTime(row["period_start_date"]),
			ZipCode:         safeString(row["zip_code"]),
			AvgDaysOnMarket: safeFloat(row["avg_dom"]),
			MedianPrice:     safeFloat(row["median_rent"]),
			AveragePrice:    safeFloat(row["avg_rent"]),
			TotalListings:   safeInt(row["total_listings"]),
			NewListings:     safeInt(row["new_listings"]),
		})
	}
	return out
}
