package analysis

import "github.com/ignite/searchterm-optimizer/internal/domain"

// Summary is the outcome of analyzing one batch.
type Summary struct {
	TotalKeywords int                     `json:"total_keywords"`
	Counts        domain.SuggestionCounts `json:"counts"`

	TotalImpressions float64 `json:"total_impressions"`
	TotalClicks      float64 `json:"total_clicks"`
	TotalSpend       float64 `json:"total_spend"`
	TotalSales       float64 `json:"total_sales"`
	TotalOrders      float64 `json:"total_orders"`

	OverallAcos           float64 `json:"overall_acos"`
	OverallCTR            float64 `json:"overall_ctr"`
	OverallConversionRate float64 `json:"overall_conversion_rate"`
	AverageCPC            float64 `json:"average_cpc"`

	Baseline Baseline               `json:"baseline"`
	Params   Params                 `json:"params"`
	Results  []ClassificationResult `json:"results"`
}

// Count returns how many results carry suggestion s.
func (s *Summary) Count(sg Suggestion) int {
	return CountOf(s.Counts, sg)
}

// CountOf reads the counter for sg.
func CountOf(c domain.SuggestionCounts, sg Suggestion) int {
	switch sg {
	case IncreaseBid:
		return c.IncreaseBid
	case DecreaseBid:
		return c.DecreaseBid
	case ExactNegative:
		return c.ExactNegative
	case PhraseNegative:
		return c.PhraseNegative
	case Reasonable:
		return c.Reasonable
	case Pending:
		return c.Pending
	}
	return 0
}

func increment(c *domain.SuggestionCounts, sg Suggestion) {
	switch sg {
	case IncreaseBid:
		c.IncreaseBid++
	case DecreaseBid:
		c.DecreaseBid++
	case ExactNegative:
		c.ExactNegative++
	case PhraseNegative:
		c.PhraseNegative++
	case Reasonable:
		c.Reasonable++
	case Pending:
		c.Pending++
	}
}

// Filter returns the results with suggestion sg, in batch order.
func (s *Summary) Filter(sg Suggestion) []ClassificationResult {
	out := make([]ClassificationResult, 0, s.Count(sg))
	for _, r := range s.Results {
		if r.Suggestion == sg {
			out = append(out, r)
		}
	}
	return out
}

// Summarize folds results into per-category counts and batch totals.
func Summarize(results []ClassificationResult, b Baseline, p Params) *Summary {
	s := &Summary{
		TotalKeywords: len(results),
		Baseline:      b,
		Params:        p,
		Results:       results,
	}
	if s.Results == nil {
		s.Results = []ClassificationResult{}
	}

	var t Totals
	for i := range results {
		increment(&s.Counts, results[i].Suggestion)
		t.add(&results[i].SearchTermRecord)
	}
	s.TotalImpressions = t.Impressions
	s.TotalClicks = t.Clicks
	s.TotalSpend = t.Spend
	s.TotalSales = t.Sales
	s.TotalOrders = t.Orders

	if t.Sales > 0 {
		s.OverallAcos = t.Spend / t.Sales * 100
	}
	if t.Impressions > 0 {
		s.OverallCTR = t.Clicks / t.Impressions * 100
	}
	if t.Clicks > 0 {
		s.OverallConversionRate = t.Orders / t.Clicks * 100
		s.AverageCPC = t.Spend / t.Clicks
	}
	return s
}
