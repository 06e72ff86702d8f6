package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/ignite/searchterm-optimizer/internal/service/report"
)

// resultInsertBatch keeps one INSERT under the 65535 bind parameter limit.
const resultInsertBatch = 500

const reportColumns = `
	id, organization_id, name, source, status, COALESCE(source_key,''), COALESCE(fingerprint,''),
	params, baseline,
	increase_bid_count, decrease_bid_count, exact_negative_count, phrase_negative_count,
	reasonable_count, pending_count,
	total_keywords, total_impressions, total_clicks, total_spend, total_sales, total_orders,
	overall_acos, overall_conversion_rate, created_at, updated_at`

var resultColumns = []string{
	"report_id", "position", "search_term", "campaign", "ad_group",
	"impressions", "clicks", "spend", "sales", "orders",
	"acos", "ctr", "cvr", "cpc",
	"suggestion", "suggested_action", "confidence", "estimated_acos", "problem_keyword", "rule",
}

// ReportRepo implements report.Repository against PostgreSQL.
type ReportRepo struct{ db *sql.DB }

// NewReportRepo creates a Postgres-backed report repository.
func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s rowScanner) (*domain.Report, error) {
	r := &domain.Report{}
	var params, baseline []byte
	err := s.Scan(
		&r.ID, &r.OrganizationID, &r.Name, &r.Source, &r.Status, &r.SourceKey, &r.Fingerprint,
		&params, &baseline,
		&r.Counts.IncreaseBid, &r.Counts.DecreaseBid, &r.Counts.ExactNegative, &r.Counts.PhraseNegative,
		&r.Counts.Reasonable, &r.Counts.Pending,
		&r.TotalKeywords, &r.TotalImpressions, &r.TotalClicks, &r.TotalSpend, &r.TotalSales, &r.TotalOrders,
		&r.OverallAcos, &r.OverallCVR, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Params = params
	r.Baseline = baseline
	return r, nil
}

func (r *ReportRepo) Get(ctx context.Context, orgID, id string) (*domain.Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM searchterm_reports WHERE id = $1 AND organization_id = $2`,
		id, orgID))
	if err == sql.ErrNoRows {
		return nil, report.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return rep, nil
}

func (r *ReportRepo) List(ctx context.Context, orgID string, f report.ListFilter) ([]domain.Report, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE organization_id = $1`
	args := []interface{}{orgID}
	idx := 2
	if f.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", idx)
		args = append(args, f.Source)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM searchterm_reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	q := `SELECT ` + reportColumns + ` FROM searchterm_reports` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, *rep)
	}
	return out, total, rows.Err()
}

func (r *ReportRepo) Create(ctx context.Context, rep *domain.Report, results []analysis.ClassificationResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO searchterm_reports
			(id, organization_id, name, source, status, source_key, fingerprint, params, baseline,
			 increase_bid_count, decrease_bid_count, exact_negative_count, phrase_negative_count,
			 reasonable_count, pending_count,
			 total_keywords, total_impressions, total_clicks, total_spend, total_sales, total_orders,
			 overall_acos, overall_conversion_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), $8, $9,
		        $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`, rep.ID, rep.OrganizationID, rep.Name, string(rep.Source), string(rep.Status), rep.SourceKey, rep.Fingerprint,
		[]byte(rep.Params), []byte(rep.Baseline),
		rep.Counts.IncreaseBid, rep.Counts.DecreaseBid, rep.Counts.ExactNegative, rep.Counts.PhraseNegative,
		rep.Counts.Reasonable, rep.Counts.Pending,
		rep.TotalKeywords, rep.TotalImpressions, rep.TotalClicks, rep.TotalSpend, rep.TotalSales, rep.TotalOrders,
		rep.OverallAcos, rep.OverallCVR, rep.CreatedAt, rep.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("report %s already exists: %w", rep.ID, err)
		}
		return fmt.Errorf("insert report: %w", err)
	}

	for start := 0; start < len(results); start += resultInsertBatch {
		end := start + resultInsertBatch
		if end > len(results) {
			end = len(results)
		}
		q, args := resultInsert(rep.ID, start, results[start:end])
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert results %d-%d: %w", start, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// resultInsert builds one multi-row INSERT; offset is the position of the
// first result in the batch.
func resultInsert(reportID string, offset int, results []analysis.ClassificationResult) (string, []interface{}) {
	var b strings.Builder
	b.WriteString("INSERT INTO searchterm_results (")
	b.WriteString(strings.Join(resultColumns, ", "))
	b.WriteString(") VALUES ")

	n := len(resultColumns)
	args := make([]interface{}, 0, len(results)*n)
	for i, res := range results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < n; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*n+j+1)
		}
		b.WriteByte(')')

		args = append(args,
			reportID, offset+i, res.SearchTerm, res.Campaign, res.AdGroup,
			res.Impressions, res.Clicks, res.Spend, res.Sales, res.Orders,
			res.ACOS, res.CTR, res.CVR, res.CPC,
			string(res.Suggestion), res.SuggestedAction, res.Confidence,
			metricArg(res.EstimatedAcos), stringArg(res.ProblemKeyword), string(res.Rule),
		)
	}
	return b.String(), args
}

// metricArg encodes an optional metric. lib/pq formats +Inf as "+Inf",
// which Postgres rejects, so infinity is sent as its SQL spelling.
func metricArg(m *analysis.Metric) interface{} {
	if m == nil {
		return nil
	}
	if m.IsInf() {
		return "Infinity"
	}
	return m.Float64()
}

func stringArg(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// metricText is metricArg for text arrays.
func metricText(m *analysis.Metric) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	if m.IsInf() {
		return sql.NullString{String: "Infinity", Valid: true}
	}
	return sql.NullString{String: fmt.Sprintf("%g", m.Float64()), Valid: true}
}

const resultSelect = `
	SELECT r.search_term, r.campaign, r.ad_group,
	       r.impressions, r.clicks, r.spend, r.sales, r.orders,
	       r.acos, r.ctr, r.cvr, r.cpc,
	       r.suggestion, r.suggested_action, r.confidence, r.estimated_acos, r.problem_keyword, r.rule
	FROM searchterm_results r
	JOIN searchterm_reports p ON p.id = r.report_id
	WHERE r.report_id = $1 AND p.organization_id = $2`

func scanResult(s rowScanner) (analysis.ClassificationResult, error) {
	var (
		res     analysis.ClassificationResult
		estAcos sql.NullFloat64
		problem sql.NullString
	)
	err := s.Scan(
		&res.SearchTerm, &res.Campaign, &res.AdGroup,
		&res.Impressions, &res.Clicks, &res.Spend, &res.Sales, &res.Orders,
		&res.ACOS, &res.CTR, &res.CVR, &res.CPC,
		&res.Suggestion, &res.SuggestedAction, &res.Confidence, &estAcos, &problem, &res.Rule,
	)
	if err != nil {
		return res, err
	}
	if estAcos.Valid {
		m := analysis.Metric(estAcos.Float64)
		res.EstimatedAcos = &m
	}
	if problem.Valid {
		p := problem.String
		res.ProblemKeyword = &p
	}
	return res, nil
}

func (r *ReportRepo) Results(ctx context.Context, orgID, id string, f report.ResultFilter) ([]analysis.ClassificationResult, int, error) {
	where := ""
	args := []interface{}{id, orgID}
	idx := 3
	if f.Suggestion != "" {
		where = fmt.Sprintf(" AND r.suggestion = $%d", idx)
		args = append(args, string(f.Suggestion))
		idx++
	}

	var total int
	countQ := `SELECT COUNT(*) FROM searchterm_results r
		JOIN searchterm_reports p ON p.id = r.report_id
		WHERE r.report_id = $1 AND p.organization_id = $2` + where
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	q := resultSelect + where + " ORDER BY r.position"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		q += fmt.Sprintf(" OFFSET $%d", idx)
		args = append(args, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []analysis.ClassificationResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, res)
	}
	return out, total, rows.Err()
}

func (r *ReportRepo) Records(ctx context.Context, orgID, id string) ([]domain.SearchTermRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.search_term, r.campaign, r.ad_group, r.impressions, r.clicks, r.spend, r.sales, r.orders
		FROM searchterm_results r
		JOIN searchterm_reports p ON p.id = r.report_id
		WHERE r.report_id = $1 AND p.organization_id = $2
		ORDER BY r.position`, id, orgID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var out []domain.SearchTermRecord
	for rows.Next() {
		var (
			term, campaign, adGroup string
			m                       domain.RawMetrics
		)
		if err := rows.Scan(&term, &campaign, &adGroup, &m.Impressions, &m.Clicks, &m.Spend, &m.Sales, &m.Orders); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, domain.NewSearchTermRecord(term, m, campaign, adGroup))
	}
	return out, rows.Err()
}

func (r *ReportRepo) ReplaceResults(ctx context.Context, rep *domain.Report, results []analysis.ClassificationResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE searchterm_reports SET
			params = $1, baseline = $2, fingerprint = NULLIF($3,''),
			increase_bid_count = $4, decrease_bid_count = $5, exact_negative_count = $6,
			phrase_negative_count = $7, reasonable_count = $8, pending_count = $9,
			overall_acos = $10, overall_conversion_rate = $11, updated_at = $12
		WHERE id = $13 AND organization_id = $14
	`, []byte(rep.Params), []byte(rep.Baseline), rep.Fingerprint,
		rep.Counts.IncreaseBid, rep.Counts.DecreaseBid, rep.Counts.ExactNegative,
		rep.Counts.PhraseNegative, rep.Counts.Reasonable, rep.Counts.Pending,
		rep.OverallAcos, rep.OverallCVR, rep.UpdatedAt, rep.ID, rep.OrganizationID)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return report.ErrNotFound
	}

	positions := make([]int64, len(results))
	suggestions := make([]string, len(results))
	actions := make([]string, len(results))
	confidences := make([]float64, len(results))
	estimates := make([]sql.NullString, len(results))
	problems := make([]sql.NullString, len(results))
	rules := make([]string, len(results))
	for i, cr := range results {
		positions[i] = int64(i)
		suggestions[i] = string(cr.Suggestion)
		actions[i] = cr.SuggestedAction
		confidences[i] = cr.Confidence
		estimates[i] = metricText(cr.EstimatedAcos)
		if cr.ProblemKeyword != nil {
			problems[i] = sql.NullString{String: *cr.ProblemKeyword, Valid: true}
		}
		rules[i] = string(cr.Rule)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE searchterm_results r SET
			suggestion = u.suggestion, suggested_action = u.suggested_action,
			confidence = u.confidence, estimated_acos = u.estimated_acos::double precision,
			problem_keyword = u.problem_keyword, rule = u.rule
		FROM unnest($2::int[], $3::text[], $4::text[], $5::float8[], $6::text[], $7::text[], $8::text[])
			AS u(position, suggestion, suggested_action, confidence, estimated_acos, problem_keyword, rule)
		WHERE r.report_id = $1 AND r.position = u.position
	`, rep.ID, pq.Array(positions), pq.Array(suggestions), pq.Array(actions), pq.Array(confidences),
		pq.Array(estimates), pq.Array(problems), pq.Array(rules))
	if err != nil {
		return fmt.Errorf("update results: %w", err)
	}
	if n, _ := res.RowsAffected(); n != int64(len(results)) {
		return fmt.Errorf("update results: %d of %d rows matched", n, len(results))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ReportRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM searchterm_reports WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return report.ErrNotFound
	}
	return nil
}

// CountByOrganization feeds the stored-reports gauge.
func (r *ReportRepo) CountByOrganization(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT organization_id, COUNT(*) FROM searchterm_reports GROUP BY organization_id`)
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var org string
		var n int
		if err := rows.Scan(&org, &n); err != nil {
			return nil, err
		}
		out[org] = n
	}
	return out, rows.Err()
}
