package analysis

import (
	"math"

	"github.com/ignite/searchterm-optimizer/internal/domain"
)

// ceilEpsilon absorbs float noise such as 1/0.04 = 25.000000000000004
// before rounding a click threshold up.
const ceilEpsilon = 1e-9

// Totals are the raw sums over a batch.
type Totals struct {
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Spend       float64 `json:"spend"`
	Sales       float64 `json:"sales"`
	Orders      float64 `json:"orders"`
}

func (t *Totals) add(r *domain.SearchTermRecord) {
	t.Impressions += r.Impressions
	t.Clicks += r.Clicks
	t.Spend += r.Spend
	t.Sales += r.Sales
	t.Orders += r.Orders
}

func sumRecords(records []domain.SearchTermRecord) Totals {
	var t Totals
	for i := range records {
		t.add(&records[i])
	}
	return t
}

// Baseline holds the batch-wide performance figures and the decision
// thresholds derived from them. Rates and ACOS values are percentages.
type Baseline struct {
	OverallAcos           float64 `json:"overall_acos"`
	OverallConversionRate float64 `json:"overall_conversion_rate"`
	AverageCPC            float64 `json:"average_cpc"`
	AverageOrderValue     float64 `json:"average_order_value"`

	TargetAcos                   float64 `json:"target_acos"`
	ExactNegativeClickThreshold  Metric  `json:"exact_negative_click_threshold"`
	PhraseNegativeClickThreshold Metric  `json:"phrase_negative_click_threshold"`
	ReliabilityClickThreshold    Metric  `json:"reliability_click_threshold"`
}

// IncreaseBidAcos is the ACOS below which a bid should go up.
func (b Baseline) IncreaseBidAcos(p Params) float64 { return b.TargetAcos * p.IncreaseBidLv }

// DecreaseBidAcos is the ACOS above which a bid should go down.
func (b Baseline) DecreaseBidAcos(p Params) float64 { return b.TargetAcos * p.DecreaseBidLv }

// ComputeBaseline derives the baseline for a batch. With no conversions in
// the batch the click thresholds are infinite, so zero-conversion and
// reliability checks can never pass and the affected records stay Pending.
func ComputeBaseline(records []domain.SearchTermRecord, p Params) Baseline {
	return computeBaseline(sumRecords(records), p)
}

func computeBaseline(t Totals, p Params) Baseline {
	var b Baseline
	if t.Sales > 0 {
		b.OverallAcos = t.Spend / t.Sales * 100
	}
	if t.Clicks > 0 {
		b.OverallConversionRate = t.Orders / t.Clicks * 100
		b.AverageCPC = t.Spend / t.Clicks
	}
	if t.Orders > 0 {
		b.AverageOrderValue = t.Sales / t.Orders
	}

	b.TargetAcos = math.Max(MinTargetAcos, b.OverallAcos/p.TargetAcosIndex)

	if b.OverallConversionRate <= 0 {
		b.ExactNegativeClickThreshold = Infinity
		b.PhraseNegativeClickThreshold = Infinity
		b.ReliabilityClickThreshold = Infinity
		return b
	}
	rate := b.OverallConversionRate / 100
	b.ExactNegativeClickThreshold = Metric(math.Max(MinExactNegativeClicks, ceil(p.ExactNegativeLv/rate)))
	b.PhraseNegativeClickThreshold = Metric(math.Max(MinPhraseNegativeClicks, ceil(p.PhraseNegativeLv/rate)))
	b.ReliabilityClickThreshold = Metric(math.Max(MinReliabilityClicks, p.Reliability/rate))
	return b
}

func ceil(v float64) float64 {
	return math.Ceil(v - ceilEpsilon)
}
