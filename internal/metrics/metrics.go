// Package metrics exposes Prometheus counters for analyses and inbox
// imports, plus a collector that reads stored report totals on scrape.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/pkg/logger"
)

const namespace = "searchterm"

// Metrics holds the process-level collectors. A nil *Metrics records
// nothing, so callers never need to guard.
type Metrics struct {
	suggestions *prometheus.CounterVec
	reports     *prometheus.CounterVec
	importRows  *prometheus.CounterVec
	duration    prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Classified search terms by suggestion.",
		}, []string{"suggestion"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_analyzed_total",
			Help:      "Analyzed reports by source.",
		}, []string{"source"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Rows read from inbox files by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent classifying one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	reg.MustRegister(m.suggestions, m.reports, m.importRows, m.duration)
	return m
}

// ObserveSummary records one finished analysis.
func (m *Metrics) ObserveSummary(source string, s *analysis.Summary, took time.Duration) {
	if m == nil || s == nil {
		return
	}
	m.reports.WithLabelValues(source).Inc()
	m.duration.Observe(took.Seconds())
	for _, sg := range analysis.Suggestions {
		if n := s.Count(sg); n > 0 {
			m.suggestions.WithLabelValues(string(sg)).Add(float64(n))
		}
	}
}

// ImportRows counts inbox rows by outcome ("imported", "skipped").
func (m *Metrics) ImportRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(outcome).Add(float64(n))
}

var storedReportsDesc = prometheus.NewDesc(
	namespace+"_reports_stored",
	"Stored reports per organization",
	[]string{"organization_id"},
	nil,
)

// ReportCounter is implemented by the report repository.
type ReportCounter interface {
	CountByOrganization(ctx context.Context) (map[string]int, error)
}

// StoredReportsCollector reads report counts from the database on each
// scrape.
type StoredReportsCollector struct {
	source  ReportCounter
	timeout time.Duration
}

func NewStoredReportsCollector(source ReportCounter) *StoredReportsCollector {
	return &StoredReportsCollector{source: source, timeout: 5 * time.Second}
}

func (c *StoredReportsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storedReportsDesc
}

func (c *StoredReportsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.source.CountByOrganization(ctx)
	if err != nil {
		logger.Error("failed to collect stored report metrics", "error", err)
		return
	}
	for org, n := range counts {
		ch <- prometheus.MustNewConstMetric(storedReportsDesc, prometheus.GaugeValue, float64(n), org)
	}
}
