// Command analyze classifies a search-term report export offline and
// prints the suggestions.
//
//	analyze -file report.csv [-config config.yaml] [-format table|json|csv] [-only Exact_Negative] [-words 10]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/config"
	"github.com/ignite/searchterm-optimizer/internal/datanorm"
	"github.com/ignite/searchterm-optimizer/internal/export"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "search-term report export (CSV or TSV)")
	configPath := fs.String("config", "", "config.yaml whose analysis section overrides the defaults")
	format := fs.String("format", "table", "output format: table, json or csv")
	only := fs.String("only", "", "print only results with this suggestion")
	maxRows := fs.Int("max-rows", 0, "reject reports with more rows (0 = unlimited)")
	words := fs.Int("words", 10, "table format: list this many clicked words that never converted (0 = none)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(stderr, "analyze: -file is required")
		fs.Usage()
		return 2
	}

	params := analysis.DefaultParams()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "analyze: config: %v\n", err)
			return 1
		}
		params = cfg.Analysis
	}

	var filter analysis.Suggestion
	if *only != "" {
		sg, ok := analysis.ParseSuggestion(*only)
		if !ok {
			fmt.Fprintf(stderr, "analyze: unknown suggestion %q\n", *only)
			return 1
		}
		filter = sg
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %v\n", err)
		return 1
	}
	defer f.Close()

	parsed, err := datanorm.ParseReport(f, datanorm.ParseOptions{MaxRows: *maxRows})
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %s: %v\n", *file, err)
		return 1
	}
	for _, w := range parsed.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}
	if parsed.SkippedRows > len(parsed.Warnings) {
		fmt.Fprintf(stderr, "warning: %d more rows skipped\n", parsed.SkippedRows-len(parsed.Warnings))
	}

	summary, err := analysis.Analyze(parsed.Records, params)
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %v\n", err)
		return 1
	}
	if filter != "" {
		summary.Results = summary.Filter(filter)
	}

	switch *format {
	case "table":
		err = printTable(stdout, summary)
		if err == nil && *words > 0 {
			printZeroConversionWords(stdout, analysis.AggregateFeatureWords(parsed.Records), *words)
		}
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(summary)
	case "csv":
		err = export.WriteCSV(stdout, summary.Results)
	default:
		fmt.Fprintf(stderr, "analyze: unknown format %q\n", *format)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "analyze: write output: %v\n", err)
		return 1
	}
	return 0
}

func printTable(w io.Writer, s *analysis.Summary) error {
	b := s.Baseline
	fmt.Fprintf(w, "Keywords: %d   Clicks: %s   Spend: %.2f   Sales: %.2f   Orders: %s\n",
		s.TotalKeywords, fmtNum(s.TotalClicks), s.TotalSpend, s.TotalSales, fmtNum(s.TotalOrders))
	fmt.Fprintf(w, "ACOS: %.2f%%   CVR: %.2f%%   Target ACOS: %.2f%%\n",
		s.OverallAcos, s.OverallConversionRate, b.TargetAcos)
	fmt.Fprintf(w, "Click thresholds: exact %s, phrase %s, reliability %s\n\n",
		b.ExactNegativeClickThreshold, b.PhraseNegativeClickThreshold, b.ReliabilityClickThreshold)

	counts := make([]string, 0, len(analysis.Suggestions))
	for _, sg := range analysis.Suggestions {
		counts = append(counts, fmt.Sprintf("%s=%d", sg, s.Count(sg)))
	}
	fmt.Fprintln(w, strings.Join(counts, "  "))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEARCH TERM\tCLICKS\tORDERS\tACOS\tSUGGESTION\tCONF\tEST. ACOS\tKEYWORD")
	for _, r := range s.Results {
		est, kw := "-", "-"
		if r.EstimatedAcos != nil {
			est = r.EstimatedAcos.String()
		}
		if r.ProblemKeyword != nil {
			kw = *r.ProblemKeyword
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%.2f\t%s\t%s\n",
			r.SearchTerm, fmtNum(r.Clicks), fmtNum(r.Orders), r.ACOS, r.Suggestion, r.Confidence, est, kw)
	}
	return tw.Flush()
}

// printZeroConversionWords lists the most clicked feature words without a
// single order, the usual candidates for phrase negatives.
func printZeroConversionWords(w io.Writer, fw analysis.FeatureWords, limit int) {
	var lines []string
	for _, st := range fw.Sorted() {
		if len(lines) == limit {
			break
		}
		if st.Clicks > 0 && st.Orders == 0 {
			lines = append(lines, fmt.Sprintf("  %s: %s clicks, %.2f spend in %d terms", st.Word, fmtNum(st.Clicks), st.Spend, st.Records))
		}
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w, "\nZero-conversion words:")
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func fmtNum(v float64) string {
	return analysis.Metric(v).String()
}
