// Package export renders classification results for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
)

// Header is the column row written by WriteCSV.
var Header = []string{
	"search_term", "campaign", "ad_group",
	"impressions", "clicks", "spend", "sales", "orders",
	"acos", "ctr", "cvr", "cpc",
	"suggestion", "suggested_action", "confidence", "estimated_acos", "problem_keyword", "rule",
}

// WriteCSV writes Header followed by one row per result.
func WriteCSV(w io.Writer, results []analysis.ClassificationResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, res := range results {
		if err := cw.Write(Row(res)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders one result in Header order. An infinite estimated ACOS is
// written as "Infinity" and absent optionals as empty cells.
func Row(res analysis.ClassificationResult) []string {
	estimated := ""
	if res.EstimatedAcos != nil {
		if res.EstimatedAcos.IsInf() {
			estimated = "Infinity"
		} else {
			estimated = formatFloat(res.EstimatedAcos.Float64())
		}
	}
	problem := ""
	if res.ProblemKeyword != nil {
		problem = *res.ProblemKeyword
	}
	return []string{
		res.SearchTerm, res.Campaign, res.AdGroup,
		formatFloat(res.Impressions), formatFloat(res.Clicks), formatFloat(res.Spend),
		formatFloat(res.Sales), formatFloat(res.Orders),
		formatFloat(res.ACOS), formatFloat(res.CTR), formatFloat(res.CVR), formatFloat(res.CPC),
		string(res.Suggestion), res.SuggestedAction, formatFloat(res.Confidence),
		estimated, problem, string(res.Rule),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
