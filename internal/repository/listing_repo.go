package repository

import (
	"context"
	"fmt"

	"chathub-backend/internal/models"
)

type ListingRepo struct {
	db Querier
}

func NewListingRepo(db Querier) *ListingRepo {
	return &ListingRepo{db: db}
}

const domDays = `CASE WHEN time_on_zillow > 0 THEN time_on_zillow::NUMERIC / 86400000 ELSE NULL END`

// Summary returns market-wide KPIs, or nil when the aggregate yields no row.
func (r *ListingRepo) Summary(ctx context.Context) (*models.MarketSummary, error) {
	row, err := r.db.FetchOne(ctx, `
		SELECT
			COUNT(*) AS total_listings,
			COUNT(DISTINCT zip_code) AS active_zips,
			AVG(`+domDays+`) AS avg_dom,
			PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY `+domDays+`) AS median_dom,
			AVG(price) AS avg_rent,
			PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY price) AS median_rent,
			MIN(price) AS min_rent,
			MAX(price) AS max_rent,
			COUNT(*) FILTER (WHERE home_status = 'FOR_RENT') AS for_rent_count,
			COUNT(*) FILTER (WHERE home_status = 'FOR_SALE') AS for_sale_count
		FROM zillow_listings
	`)
	if err != nil {
		return nil, fmt.Errorf("listing summary: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	return &models.MarketSummary{
		TotalListings: safeInt(row["total_listings"]),
		ActiveZips:    safeInt(row["active_zips"]),
		AvgDOM:        safeFloat(row["avg_dom"]),
		MedianDOM:     safeFloat(row["median_dom"]),
		AvgRent:       safeFloat(row["avg_rent"]),
		MedianRent:    safeFloat(row["median_rent"]),
		MinRent:       safeFloat(row["min_rent"]),
		MaxRent:       safeFloat(row["max_rent"]),
		ForRentCount:  safeInt(row["for_rent_count"]),
		ForSaleCount:  safeInt(row["for_sale_count"]),
	}, nil
}

func (r *ListingRepo) CountByHomeType(ctx context.Context) ([]models.CategoryCount, error) {
	return r.countBy(ctx, `
		SELECT home_type AS label, COUNT(*) AS count
		FROM zillow_listings
		WHERE home_type IS NOT NULL
		GROUP BY home_type
		ORDER BY count DESC
	`)
}

func (r *ListingRepo) CountByBedrooms(ctx context.Context) ([]models.CategoryCount, error) {
	return r.countBy(ctx, `
		SELECT bedrooms::TEXT AS label, COUNT(*) AS count
		FROM zillow_listings
		WHERE bedrooms IS NOT NULL
		GROUP BY bedrooms
		ORDER BY bedrooms
	`)
}

func (r *ListingRepo) CountByStatus(ctx context.Context) ([]models.CategoryCount, error) {
	return r.countBy(ctx, `
		SELECT home_status AS label, COUNT(*) AS count
		FROM zillow_listings
		WHERE home_status IS NOT NULL
		GROUP BY home_status
		ORDER BY count DESC
	`)
}

func (r *ListingRepo) countBy(ctx context.Context, query string) ([]models.CategoryCount, error) {
	rows, err := r.db.FetchAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing counts: %w", err)
	}
	out := make([]models.CategoryCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.CategoryCount{
			Label: safeString(row["label"]),
			Count: safeInt(row["count"]),
		})
	}
	return out, nil
}

func (r *ListingRepo) ZipCodes(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT zip_code AS value FROM zillow_listings WHERE zip_code IS NOT NULL ORDER BY zip_code`)
}

func (r *ListingRepo) HomeTypes(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT home_type AS value FROM zillow_listings WHERE home_type IS NOT NULL ORDER BY home_type`)
}

func (r *ListingRepo) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.FetchAll(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing options: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, safeString(row["value"]))
	}
	return out, nil
}

// ZipComparison aggregates listings per selected zip code.
func (r *ListingRepo) ZipComparison(ctx context.Context, zips []string) ([]models.ZipStats, error) {
	rows, err := r.db.FetchAll(ctx, `
		SELECT
			zip_code,
			COUNT(*) AS total_listings,
			AVG(`+domDays+`) AS avg_dom,
			PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY `+domDays+`) AS median_dom,
			PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY price) AS median_rent,
			AVG(price) AS avg_rent,
			AVG(CASE WHEN living_area > 0 THEN price::NUMERIC / living_area ELSE NULL END) AS avg_price_per_sqft
		FROM zillow_listings
		WHERE zip_code = ANY($1)
		GROUP BY zip_code
		ORDER BY zip_code
	`, zips)
	if err != nil {
		return nil, fmt.Errorf("zip comparison: %w", err)
	}

	out := make([]models.ZipStats, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ZipStats{
			ZipCode:         safeString(row["zip_code"]),
			TotalListings:   safeInt(row["total_listings"]),
			AvgDOM:          safeFloat(row["avg_dom"]),
			MedianDOM:       safeFloat(row["median_dom"]),
			MedianRent:      safeFloat(row["median_rent"]),
			AvgRent:         safeFloat(row["avg_rent"]),
			AvgPricePerSqft: safeFloat(row["avg_price_per_sqft"]),
		})
	}
	return out, nil
}

// SearchLimit caps the listings view.
const SearchLimit = 100

// Search returns up to SearchLimit listings matching f, freshest on market
// first with unknown durations last.
func (r *ListingRepo) Search(ctx context.Context, f models.ListingFilter) ([]models.ListingRecord, error) {
	bedrooms := make([]int32, len(f.Bedrooms))
	for i, b := range f.Bedrooms {
		bedrooms[i] = int32(b)
	}

	rows, err := r.db.FetchAll(ctx, `
		SELECT
			zpid::TEXT AS zpid,
			street_address,
			city,
			zip_code,
			bedrooms,
			bathrooms,
			living_area,
			home_type,
			home_status,
			price,
			time_on_zillow,
			latitude,
			longitude
		FROM zillow_listings
		WHERE zip_code = ANY($1)
			AND bedrooms = ANY($2)
			AND home_type = ANY($3)
			AND home_status = ANY($4)
			AND price >= $5
			AND price <= $6
		ORDER BY CASE WHEN time_on_zillow > 0 THEN time_on_zillow ELSE NULL END ASC NULLS LAST
		LIMIT $7
	`, f.ZipCodes, bedrooms, f.HomeTypes, f.Statuses, f.MinPrice, f.MaxPrice, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("listing search: %w", err)
	}

	out := make([]models.ListingRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ListingRecord{
			ZPID:          safeString(row["zpid"]),
			StreetAddress: safeString(row["street_address"]),
			City:          safeString(row["city"]),
			ZipCode:       safeString(row["zip_code"]),
			Bedrooms:      int(safeInt(row["bedrooms"])),
			Bathrooms:     safeFloat(row["bathrooms"]),
			LivingArea:    safeFloat(row["living_area"]),
			HomeType:      safeString(row["home_type"]),
			HomeStatus:    safeString(row["home_status"]),
			Price:         safeFloat(row["price"]),
			TimeOnMarket:  safeInt(row["time_on_zillow"]),
			Latitude:      optFloat(row["latitude"]),
			Longitude:     optFloat(row["longitude"]),
		})
	}
	return out, nil
}
