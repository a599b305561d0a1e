package model

import "time"

// Market is a top-level sales territory (e.g. a country).
type Market struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Region is a province within a market. Name is unique within the
// market. TAM is the administrator-set ceiling of schools known to
// exist in the region and is the only field mutated after creation.
type Region struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Name      string    `json:"name"`
	TAM       int       `json:"tam"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusCounts holds the per-status school tally for one region,
// joined to the region's TAM. This is the raw input to the metrics
// engine and is recomputed on every read.
type StatusCounts struct {
	RegionID    string `json:"region_id"`
	Name        string `json:"name"`
	TAM         int    `json:"tam"`
	Known       int    `json:"known"`
	Uncontacted int    `json:"uncontacted"`
	Contacted   int    `json:"contacted"`
	Replied     int    `json:"replied"`
	Yes         int    `json:"yes"`
	No          int    `json:"no"`
}
