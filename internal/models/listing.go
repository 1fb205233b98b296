package models

import "time"

// ListingRecord is a row of zillow_listings as read by the dashboard.
type ListingRecord struct {
	ZPID          string   `json:"zpid"`
	StreetAddress string   `json:"street_address"`
	City          string   `json:"city"`
	ZipCode       string   `json:"zip_code"`
	Bedrooms      int      `json:"bedrooms"`
	Bathrooms     float64  `json:"bathrooms"`
	LivingArea    float64  `json:"living_area"`
	HomeType      string   `json:"home_type"`
	HomeStatus    string   `json:"home_status"`
	Price         float64  `json:"price"`
	TimeOnMarket  int64    `json:"time_on_zillow"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

// AggregatedMetric is a row of zillow_metrics_aggregated.
type AggregatedMetric struct {
	AggregationType string    `json:"aggregation_type"`
	PeriodStart     time.Time `json:"period_start_date"`
	ZipCode         string    `json:"zip_code"`
	AvgDaysOnMarket float64   `json:"avg_dom"`
	MedianPrice     float64   `json:"median_rent"`
	AveragePrice    float64   `json:"avg_rent"`
	TotalListings   int64     `json:"total_listings"`
	NewListings     int64     `json:"new_listings"`
}

// ListingFilter carries the user-selected filters of the listings view.
type ListingFilter struct {
	ZipCodes  []string `json:"zip_codes"`
	Bedrooms  []int    `json:"bedrooms"`
	HomeTypes []string `json:"home_types"`
	Statuses  []string `json:"statuses"`
	MinPrice  float64  `json:"min_price"`
	MaxPrice  float64  `json:"max_price"`
}

// MarketSummary holds the overview KPIs over all listings.
type MarketSummary struct {
	TotalListings int64   `json:"total_listings"`
	ActiveZips    int64   `json:"active_zips"`
	AvgDOM        float64 `json:"avg_dom"`
	MedianDOM     float64 `json:"median_dom"`
	AvgRent       float64 `json:"avg_rent"`
	MedianRent    float64 `json:"median_rent"`
	MinRent       float64 `json:"min_rent"`
	MaxRent       float64 `json:"max_rent"`
	ForRentCount  int64   `json:"for_rent_count"`
	ForSaleCount  int64   `json:"for_sale_count"`
}

// CategoryCount is one bucket of a GROUP BY count.
type CategoryCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// ZipStats compares listings of one zip code.
type ZipStats struct {
	ZipCode         string  `json:"zip_code"`
	TotalListings   int64   `json:"total_listings"`
	AvgDOM          float64 `json:"avg_dom"`
	MedianDOM       float64 `json:"median_dom"`
	MedianRent      float64 `json:"median_rent"`
	AvgRent         float64 `json:"avg_rent"`
	AvgPricePerSqft float64 `json:"avg_price_per_sqft"`
}
