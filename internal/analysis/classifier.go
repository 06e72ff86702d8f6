package analysis

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ignite/searchterm-optimizer/internal/domain"
)

// Suggestion is the action recommended for one search term.
type Suggestion string

const (
	IncreaseBid    Suggestion = "Increase_Bid"
	DecreaseBid    Suggestion = "Decrease_Bid"
	ExactNegative  Suggestion = "Exact_Negative"
	PhraseNegative Suggestion = "Phrase_Negative"
	Reasonable     Suggestion = "Reasonable"
	Pending        Suggestion = "Pending"
)

// Suggestions lists every category in report order.
var Suggestions = []Suggestion{IncreaseBid, DecreaseBid, ExactNegative, PhraseNegative, Reasonable, Pending}

// ParseSuggestion accepts the canonical spelling of a category.
func ParseSuggestion(s string) (Suggestion, bool) {
	for _, sg := range Suggestions {
		if string(sg) == s {
			return sg, true
		}
	}
	return "", false
}

// Rule names the cascade branch that produced a result.
type Rule string

const (
	RuleZeroConversionWord Rule = "zero_conversion_word"
	RuleOwnOrders          Rule = "own_orders"
	RuleWordEstimate       Rule = "feature_word_estimate"
	RuleNoActivity         Rule = "no_activity"
	RuleFallback           Rule = "fallback"
)

// Confidence values per branch.
const (
	confidencePhraseNegative   = 0.8
	confidenceExactNegative    = 0.7
	confidenceNegativePending  = 0.3
	confidenceEstimatePending  = 0.4
	confidenceEstimateBid      = 0.6
	confidenceEstimateOK       = 0.5
	confidenceNoActivity       = 0.2
	confidenceFallback         = 0.3
	confidenceOwnBidCap        = 0.99
	confidenceOwnReasonableCap = 0.85
	confidencePerOrder         = 0.05
)

// ClassificationResult is a record together with its verdict.
type ClassificationResult struct {
	domain.SearchTermRecord

	Suggestion      Suggestion `json:"suggestion"`
	SuggestedAction string     `json:"suggested_action"`
	Confidence      float64    `json:"confidence"`
	// EstimatedAcos is nil when the branch taken did not compute one.
	EstimatedAcos *Metric `json:"estimated_acos,omitempty"`
	// ProblemKeyword is the feature word that drove the verdict, if any.
	ProblemKeyword *string `json:"problem_keyword,omitempty"`
	Rule           Rule    `json:"rule"`
}

// Classify runs the rule cascade for one record. words and baseline must
// come from the batch the record belongs to.
func Classify(rec domain.SearchTermRecord, words FeatureWords, b Baseline, p Params) ClassificationResult {
	return classify(rec, SplitFeatureWords(rec.SearchTerm), words, b, p)
}

func classify(rec domain.SearchTermRecord, tokens []string, words FeatureWords, b Baseline, p Params) ClassificationResult {
	res := ClassificationResult{SearchTermRecord: rec}

	stats := make([]*FeatureWordStat, 0, len(tokens))
	for _, t := range tokens {
		if s, ok := words.Get(t); ok {
			stats = append(stats, s)
		}
	}

	if worst := worstZeroConversion(stats); worst != nil {
		classifyZeroConversion(&res, worst, b)
		return res
	}

	if rec.Orders > 0 {
		classifyOwnOrders(&res, b, p)
		return res
	}

	minCvr, hasConverting := minPositiveConversion(stats)
	if hasConverting && rec.Clicks > 0 && rec.CPC > 0 {
		classifyEstimate(&res, stats, minCvr, b, p)
		return res
	}

	if rec.Clicks == 0 || rec.Spend == 0 {
		res.Rule = RuleNoActivity
		res.Suggestion = Pending
		res.Confidence = confidenceNoActivity
		if hasConverting {
			res.SuggestedAction = "Feature words in this term convert in other search terms, but this exact phrase has no clicks or spend of its own yet; wait for data."
		} else {
			res.SuggestedAction = "No clicks, spend or converting feature words recorded; nothing to act on yet."
		}
		return res
	}

	res.Rule = RuleFallback
	res.Suggestion = Pending
	res.Confidence = confidenceFallback
	res.SuggestedAction = "Insufficient data for a confident suggestion; review manually."
	return res
}

// worstZeroConversion returns the clicked-but-never-converted word with the
// most clicks. Ties keep the earlier word.
func worstZeroConversion(stats []*FeatureWordStat) *FeatureWordStat {
	var worst *FeatureWordStat
	for _, s := range stats {
		if !s.zeroConversion() {
			continue
		}
		if worst == nil || s.Clicks > worst.Clicks {
			worst = s
		}
	}
	return worst
}

func minPositiveConversion(stats []*FeatureWordStat) (float64, bool) {
	minCvr := math.Inf(1)
	for _, s := range stats {
		if s.ConversionRate > 0 && s.ConversionRate < minCvr {
			minCvr = s.ConversionRate
		}
	}
	return minCvr, !math.IsInf(minCvr, 1)
}

// leastClicked returns the word with the fewest clicks. Ties keep the
// earlier word.
func leastClicked(stats []*FeatureWordStat) *FeatureWordStat {
	var least *FeatureWordStat
	for _, s := range stats {
		if least == nil || s.Clicks < least.Clicks {
			least = s
		}
	}
	return least
}

func classifyZeroConversion(res *ClassificationResult, w *FeatureWordStat, b Baseline) {
	res.Rule = RuleZeroConversionWord
	word := w.Word
	res.ProblemKeyword = &word
	clicks := formatCount(w.Clicks)

	switch {
	case w.Clicks >= float64(b.PhraseNegativeClickThreshold):
		res.Suggestion = PhraseNegative
		res.Confidence = confidencePhraseNegative
		res.SuggestedAction = fmt.Sprintf(
			"Feature word %q has %s clicks and no orders across the report (phrase negative threshold %s); add %q as a phrase negative.",
			w.Word, clicks, b.PhraseNegativeClickThreshold, w.Word)
	case w.Clicks >= float64(b.ExactNegativeClickThreshold):
		res.Suggestion = ExactNegative
		res.Confidence = confidenceExactNegative
		res.SuggestedAction = fmt.Sprintf(
			"Feature word %q has %s clicks and no orders (exact negative threshold %s); add this search term as an exact negative.",
			w.Word, clicks, b.ExactNegativeClickThreshold)
	default:
		res.Suggestion = Pending
		res.Confidence = confidenceNegativePending
		if b.ExactNegativeClickThreshold.IsInf() {
			res.SuggestedAction = fmt.Sprintf(
				"Feature word %q has %s clicks and no orders, but the report has no conversions to compare against; keep collecting data.",
				w.Word, clicks)
		} else {
			short := float64(b.ExactNegativeClickThreshold) - w.Clicks
			res.SuggestedAction = fmt.Sprintf(
				"Feature word %q has %s clicks and no orders, %s clicks short of the exact negative threshold %s; keep collecting data.",
				w.Word, clicks, formatCount(short), b.ExactNegativeClickThreshold)
		}
	}
}

func classifyOwnOrders(res *ClassificationResult, b Baseline, p Params) {
	res.Rule = RuleOwnOrders
	res.EstimatedAcos = metricPtr(res.ACOS)
	applyBand(res, res.ACOS, "ACOS", b, p,
		math.Min(confidenceOwnBidCap, 0.5+res.Orders*confidencePerOrder),
		math.Min(confidenceOwnReasonableCap, 0.4+res.Orders*confidencePerOrder))
}

func classifyEstimate(res *ClassificationResult, stats []*FeatureWordStat, minCvr float64, b Baseline, p Params) {
	res.Rule = RuleWordEstimate
	least := leastClicked(stats)
	if least.Clicks < float64(b.ReliabilityClickThreshold) {
		res.Suggestion = Pending
		res.Confidence = confidenceEstimatePending
		word := least.Word
		res.ProblemKeyword = &word
		res.SuggestedAction = fmt.Sprintf(
			"Feature word %q has only %s clicks, below the reliability threshold of %s; its conversion rate cannot be trusted yet.",
			least.Word, formatCount(least.Clicks), formatThreshold(b.ReliabilityClickThreshold))
		return
	}

	est := math.Inf(1)
	if denom := (minCvr / 100) * b.AverageOrderValue; denom > 0 {
		est = res.CPC / denom * 100
	}
	res.EstimatedAcos = metricPtr(est)
	applyBand(res, est, "Estimated ACOS", b, p, confidenceEstimateBid, confidenceEstimateOK)
}

// applyBand compares acos with the target band and fills in the verdict.
func applyBand(res *ClassificationResult, acos float64, label string, b Baseline, p Params, bidConf, okConf float64) {
	low, high := b.IncreaseBidAcos(p), b.DecreaseBidAcos(p)
	switch {
	case acos < low:
		res.Suggestion = IncreaseBid
		res.Confidence = bidConf
		res.SuggestedAction = fmt.Sprintf("%s %s is below %s (target %s); raise the bid.",
			label, formatPercent(acos), formatPercent(low), formatPercent(b.TargetAcos))
	case acos > high:
		res.Suggestion = DecreaseBid
		res.Confidence = bidConf
		res.SuggestedAction = fmt.Sprintf("%s %s is above %s (target %s); lower the bid.",
			label, formatPercent(acos), formatPercent(high), formatPercent(b.TargetAcos))
	default:
		res.Suggestion = Reasonable
		res.Confidence = okConf
		res.SuggestedAction = fmt.Sprintf("%s %s is within %s to %s; keep the current bid.",
			label, formatPercent(acos), formatPercent(low), formatPercent(high))
	}
}

func formatPercent(v float64) string {
	if math.IsInf(v, 1) {
		return "∞%"
	}
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatThreshold(m Metric) string {
	if m.IsInf() {
		return "∞ (no conversions in report)"
	}
	return strconv.FormatFloat(math.Ceil(float64(m)), 'f', -1, 64)
}
