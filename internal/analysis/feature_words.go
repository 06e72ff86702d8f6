package analysis

import (
	"sort"

	"github.com/ignite/searchterm-optimizer/internal/domain"
)

// FeatureWordStat accumulates the metrics of every record whose search term
// contains the word.
type FeatureWordStat struct {
	Word           string  `json:"word"`
	Records        int     `json:"records"`
	Clicks         float64 `json:"clicks"`
	Orders         float64 `json:"orders"`
	Spend          float64 `json:"spend"`
	Sales          float64 `json:"sales"`
	ConversionRate float64 `json:"conversion_rate"`
}

// zeroConversion reports whether the word was clicked but never converted.
func (s *FeatureWordStat) zeroConversion() bool {
	return s.Clicks > 0 && s.Orders == 0
}

// FeatureWords maps a normalized token to its batch-wide statistics.
// A FeatureWords value belongs to exactly one batch.
type FeatureWords map[string]*FeatureWordStat

// Get returns the stats for word, if the batch contained it.
func (fw FeatureWords) Get(word string) (*FeatureWordStat, bool) {
	s, ok := fw[word]
	return s, ok
}

// Sorted returns the stats ordered by clicks descending, then word.
func (fw FeatureWords) Sorted() []FeatureWordStat {
	out := make([]FeatureWordStat, 0, len(fw))
	for _, s := range fw {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].Word < out[j].Word
	})
	return out
}

// AggregateFeatureWords tokenizes every record and sums its metrics into each
// of its feature words.
func AggregateFeatureWords(records []domain.SearchTermRecord) FeatureWords {
	return aggregate(records, tokenize(records))
}

func tokenize(records []domain.SearchTermRecord) [][]string {
	tokens := make([][]string, len(records))
	for i := range records {
		tokens[i] = SplitFeatureWords(records[i].SearchTerm)
	}
	return tokens
}

func aggregate(records []domain.SearchTermRecord, tokens [][]string) FeatureWords {
	words := make(FeatureWords)
	for i := range records {
		rec := &records[i]
		for _, w := range tokens[i] {
			stat, ok := words[w]
			if !ok {
				stat = &FeatureWordStat{Word: w}
				words[w] = stat
			}
			stat.Records++
			stat.Clicks += rec.Clicks
			stat.Orders += rec.Orders
			stat.Spend += rec.Spend
			stat.Sales += rec.Sales
		}
	}
	for _, stat := range words {
		if stat.Clicks > 0 {
			stat.ConversionRate = stat.Orders / stat.Clicks * 100
		}
	}
	return words
}
