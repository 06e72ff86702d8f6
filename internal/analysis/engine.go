package analysis

import "github.com/ignite/searchterm-optimizer/internal/domain"

// Analyze classifies one batch of records. Feature words and the baseline
// are both built from the whole batch before any record is classified.
// Results keep the input order. The only error is ErrInvalidParams.
func Analyze(records []domain.SearchTermRecord, p Params) (*Summary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	tokens := tokenize(records)
	words := aggregate(records, tokens)
	baseline := computeBaseline(sumRecords(records), p)

	results := make([]ClassificationResult, len(records))
	for i := range records {
		results[i] = classify(records[i], tokens[i], words, baseline, p)
	}
	return Summarize(results, baseline, p), nil
}
