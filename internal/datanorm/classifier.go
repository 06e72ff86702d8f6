package datanorm

import (
	"strings"
)

// Classifier determines the report type from filename and header row.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

var targetingKeywords = []string{"targeting", "target", "keyword-report", "投放"}

// Classify determines the report type. A header with a search-term column
// always wins; otherwise the filename and a targeting column are checked.
func (c *Classifier) Classify(key string, headerRow []string) ReportType {
	if MapColumns(headerRow) != nil {
		return ReportSearchTerm
	}

	keyLower := strings.ToLower(key)
	for _, kw := range targetingKeywords {
		if strings.Contains(keyLower, kw) {
			return ReportTargeting
		}
	}

	for _, h := range headerRow {
		if columnAliases[NormalizeHeader(h)] == FieldTargeting {
			return ReportTargeting
		}
	}

	return ReportUnknown
}
