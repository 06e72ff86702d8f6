package analysis

import (
	"testing"

	"github.com/ignite/searchterm-optimizer/internal/domain"
)

func rec(term string, clicks, spend, sales, orders float64) domain.SearchTermRecord {
	return domain.NewSearchTermRecord(term, domain.RawMetrics{
		Impressions: clicks * 20,
		Clicks:      clicks,
		Spend:       spend,
		Sales:       sales,
		Orders:      orders,
	}, "", "")
}

func resultFor(t testing.TB, s *Summary, term string) ClassificationResult {
	t.Helper()
	for _, r := range s.Results {
		if r.SearchTerm == term {
			return r
		}
	}
	t.Fatalf("no result for %q", term)
	return ClassificationResult{}
}
