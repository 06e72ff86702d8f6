package domain

// SearchTermRecord is one row of a sponsored-ads search-term report after
// ingestion. Derived ratios are computed once by NewSearchTermRecord and the
// record is treated as immutable afterwards.
type SearchTermRecord struct {
	SearchTerm  string  `json:"search_term"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Spend       float64 `json:"spend"`
	Sales       float64 `json:"sales"`
	Orders      float64 `json:"orders"`

	// Derived at construction time.
	ACOS float64 `json:"acos"` // spend / sales * 100
	CTR  float64 `json:"ctr"`  // clicks / impressions * 100
	CVR  float64 `json:"cvr"`  // orders / clicks * 100
	CPC  float64 `json:"cpc"`  // spend / clicks

	Campaign string `json:"campaign,omitempty"`
	AdGroup  string `json:"ad_group,omitempty"`
}

// RawMetrics holds the raw counters of a search-term row before derivation.
type RawMetrics struct {
	Impressions float64
	Clicks      float64
	Spend       float64
	Sales       float64
	Orders      float64
}

// NewSearchTermRecord builds a record from raw counters and derives ACOS,
// CTR, CVR and CPC. Negative counters are clamped to zero.
func NewSearchTermRecord(term string, m RawMetrics, campaign, adGroup string) SearchTermRecord {
	rec := SearchTermRecord{
		SearchTerm:  term,
		Impressions: nonNegative(m.Impressions),
		Clicks:      nonNegative(m.Clicks),
		Spend:       nonNegative(m.Spend),
		Sales:       nonNegative(m.Sales),
		Orders:      nonNegative(m.Orders),
		Campaign:    campaign,
		AdGroup:     adGroup,
	}

	if rec.Sales > 0 {
		rec.ACOS = rec.Spend / rec.Sales * 100
	}
	if rec.Impressions > 0 {
		rec.CTR = rec.Clicks / rec.Impressions * 100
	}
	if rec.Clicks > 0 {
		rec.CVR = rec.Orders / rec.Clicks * 100
		rec.CPC = rec.Spend / rec.Clicks
	}
	return rec
}

func nonNegative(v float64) float64 {
	// NaN compares false, so it falls through to zero as well.
	if v > 0 {
		return v
	}
	return 0
}
