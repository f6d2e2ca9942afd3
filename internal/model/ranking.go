package model

import "time"

// VendorRanking is one scored snapshot of a vendor. A full generation of
// rankings is produced by one scoring pass and replaces the prior generation
// atomically.
type VendorRanking struct {
	Vendor string `json:"vendor" csv:"vendor"`

	TotalCerts  int `json:"total_certs" csv:"total_certs"`
	RecentCerts int `json:"recent_certs" csv:"recent_certs"` // inside the recent window (90 days)
	Last30Days  int `json:"last_30_days" csv:"last_30_days"`

	// Purity statistics cover only certificates with a defined purity.
	AvgPurity *float64 `json:"avg_purity,omitempty" csv:"avg_purity"`
	MinPurity *float64 `json:"min_purity,omitempty" csv:"min_purity"`
	MaxPurity *float64 `json:"max_purity,omitempty" csv:"max_purity"`
	StdPurity *float64 `json:"std_purity,omitempty" csv:"std_purity"`

	AvgEndotoxin   *float64 `json:"avg_endotoxin,omitempty" csv:"avg_endotoxin"`
	EndotoxinCount int      `json:"endotoxin_count" csv:"endotoxin_count"`

	VolumeScore      float64 `json:"volume_score" csv:"volume_score"`
	QualityScore     float64 `json:"quality_score" csv:"quality_score"`
	ConsistencyScore float64 `json:"consistency_score" csv:"consistency_score"`
	RecencyScore     float64 `json:"recency_score" csv:"recency_score"`
	EndotoxinScore   float64 `json:"endotoxin_score" csv:"endotoxin_score"`
	TotalScore       float64 `json:"total_score" csv:"total_score"`

	Rank int `json:"rank" csv:"rank"`

	DaysSinceLastCert *int     `json:"days_since_last_cert,omitempty" csv:"days_since_last_cert"`
	AvgDateGapDays    *float64 `json:"avg_date_gap_days,omitempty" csv:"avg_date_gap_days"`

	CalculatedAt time.Time `json:"calculated_at" csv:"calculated_at"`
}

// TrendPoint is one historical ranking observation for a vendor.
type TrendPoint struct {
	CalculatedAt time.Time `json:"calculated_at"`
	TotalScore   float64   `json:"total_score"`
	Rank         int       `json:"rank"`
}
