package domain

import (
	"encoding/json"
	"time"
)

// ReportStatus enumerates the lifecycle states of an analysis report.
type ReportStatus string

const (
	ReportCompleted ReportStatus = "completed"
)

// ReportSource identifies how a report entered the system.
type ReportSource string

const (
	SourceUpload ReportSource = "upload" // multipart CSV through the API
	SourceAPI    ReportSource = "api"    // JSON records through the API
	SourceS3     ReportSource = "s3"     // picked up by the S3 inbox watcher
)

// Report is the persisted metadata of one analyzed batch. Per-record results
// are stored separately and fetched page by page.
type Report struct {
	ID             string       `json:"id" db:"id"`
	OrganizationID string       `json:"organization_id" db:"organization_id"`
	Name           string       `json:"name" db:"name"`
	Source         ReportSource `json:"source" db:"source"`
	Status         ReportStatus `json:"status" db:"status"`
	SourceKey      string       `json:"source_key,omitempty" db:"source_key"`
	Fingerprint    string       `json:"fingerprint,omitempty" db:"fingerprint"`

	// Params and Baseline are stored as JSONB. Their concrete shapes
	// belong to the analysis package.
	Params   json.RawMessage  `json:"params" db:"params"`
	Baseline json.RawMessage  `json:"baseline" db:"baseline"`
	Counts   SuggestionCounts `json:"counts"`

	TotalKeywords    int     `json:"total_keywords" db:"total_keywords"`
	TotalImpressions float64 `json:"total_impressions" db:"total_impressions"`
	TotalClicks      float64 `json:"total_clicks" db:"total_clicks"`
	TotalSpend       float64 `json:"total_spend" db:"total_spend"`
	TotalSales       float64 `json:"total_sales" db:"total_sales"`
	TotalOrders      float64 `json:"total_orders" db:"total_orders"`
	OverallAcos      float64 `json:"overall_acos" db:"overall_acos"`
	OverallCVR       float64 `json:"overall_conversion_rate" db:"overall_conversion_rate"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SuggestionCounts holds one counter per suggestion category.
type SuggestionCounts struct {
	IncreaseBid    int `json:"increase_bid" db:"increase_bid_count"`
	DecreaseBid    int `json:"decrease_bid" db:"decrease_bid_count"`
	ExactNegative  int `json:"exact_negative" db:"exact_negative_count"`
	PhraseNegative int `json:"phrase_negative" db:"phrase_negative_count"`
	Reasonable     int `json:"reasonable" db:"reasonable_count"`
	Pending        int `json:"pending" db:"pending_count"`
}

// Total returns the sum of all counters.
func (c SuggestionCounts) Total() int {
	return c.IncreaseBid + c.DecreaseBid + c.ExactNegative + c.PhraseNegative + c.Reasonable + c.Pending
}
