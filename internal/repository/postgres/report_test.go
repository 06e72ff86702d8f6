package postgres

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/ignite/searchterm-optimizer/internal/service/report"
)

func newMock(t *testing.T) (*ReportRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReportRepo(db), mock
}

var reportCols = []string{
	"id", "organization_id", "name", "source", "status", "source_key", "fingerprint",
	"params", "baseline",
	"increase_bid_count", "decrease_bid_count", "exact_negative_count", "phrase_negative_count",
	"reasonable_count", "pending_count",
	"total_keywords", "total_impressions", "total_clicks", "total_spend", "total_sales", "total_orders",
	"overall_acos", "overall_conversion_rate", "created_at", "updated_at",
}

var resultCols = []string{
	"search_term", "campaign", "ad_group", "impressions", "clicks", "spend", "sales", "orders",
	"acos", "ctr", "cvr", "cpc",
	"suggestion", "suggested_action", "confidence", "estimated_acos", "problem_keyword", "rule",
}

var created = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func addReportRow(rows *sqlmock.Rows, id string) *sqlmock.Rows {
	return rows.AddRow(id, "acme", "Week 42", "upload", "completed", "uploads/acme/"+id+".csv", "",
		[]byte(`{"target_acos_index":1}`), []byte(`{"overall_acos":25}`),
		1, 2, 3, 4, 5, 6,
		21, 4200.0, 210.0, 105.0, 420.0, 12.0,
		25.0, 5.71, created, created)
}

func sampleResults() []analysis.ClassificationResult {
	inf := analysis.Infinity
	est := analysis.Metric(42.5)
	word := "free"
	return []analysis.ClassificationResult{
		{
			SearchTermRecord: domain.NewSearchTermRecord("free shoes", domain.RawMetrics{Clicks: 60, Spend: 30}, "SP", "Run"),
			Suggestion:       analysis.ExactNegative,
			SuggestedAction:  "Add as exact negative",
			Confidence:       0.8,
			ProblemKeyword:   &word,
			Rule:             analysis.RuleZeroConversionWord,
		},
		{
			SearchTermRecord: domain.NewSearchTermRecord("shoes kids", domain.RawMetrics{Clicks: 6, Spend: 3}, "SP", "Run"),
			Suggestion:       analysis.Pending,
			Confidence:       0.3,
			EstimatedAcos:    &inf,
			Rule:             analysis.RuleWordEstimate,
		},
		{
			SearchTermRecord: domain.NewSearchTermRecord("trail shoes", domain.RawMetrics{Clicks: 10, Spend: 5, Sales: 20, Orders: 1}, "SP", "Run"),
			Suggestion:       analysis.DecreaseBid,
			Confidence:       0.6,
			EstimatedAcos:    &est,
			Rule:             analysis.RuleOwnOrders,
		},
	}
}

func TestReportRepo_Get(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`FROM searchterm_reports WHERE id = \$1 AND organization_id = \$2`).
		WithArgs("rep-1", "acme").
		WillReturnRows(addReportRow(sqlmock.NewRows(reportCols), "rep-1"))

	r, err := repo.Get(context.Background(), "acme", "rep-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceUpload, r.Source)
	assert.Equal(t, domain.SuggestionCounts{IncreaseBid: 1, DecreaseBid: 2, ExactNegative: 3, PhraseNegative: 4, Reasonable: 5, Pending: 6}, r.Counts)
	assert.Equal(t, 21, r.TotalKeywords)
	assert.JSONEq(t, `{"overall_acos":25}`, string(r.Baseline))
	assert.Equal(t, created, r.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_GetNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`FROM searchterm_reports`).WillReturnRows(sqlmock.NewRows(reportCols))

	_, err := repo.Get(context.Background(), "acme", "nope")
	assert.True(t, errors.Is(err, report.ErrNotFound))
}

func TestReportRepo_List(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM searchterm_reports WHERE organization_id = \$1 AND source = \$2`).
		WithArgs("acme", "upload").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	rows := sqlmock.NewRows(reportCols)
	addReportRow(rows, "rep-2")
	addReportRow(rows, "rep-1")
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("acme", "upload", 50, 0).
		WillReturnRows(rows)

	out, total, err := repo.List(context.Background(), "acme", report.ListFilter{Source: "upload"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, out, 2)
	assert.Equal(t, "rep-2", out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultInsert(t *testing.T) {
	q, args := resultInsert("rep-1", 500, sampleResults())

	n := len(resultColumns)
	require.Len(t, args, 3*n)
	assert.True(t, strings.HasPrefix(q, "INSERT INTO searchterm_results (report_id, position, "))
	assert.Contains(t, q, "($41, $42, ")
	assert.True(t, strings.HasSuffix(q, "$60)"))

	row := func(i int) []interface{} { return args[i*n : (i+1)*n] }
	assert.Equal(t, 500, row(0)[1])
	assert.Equal(t, 502, row(2)[1])
	assert.Equal(t, "Exact_Negative", row(0)[14])
	assert.Nil(t, row(0)[17], "no estimate")
	assert.Equal(t, "free", row(0)[18])
	assert.Equal(t, "Infinity", row(1)[17])
	assert.Nil(t, row(1)[18])
	assert.Equal(t, 42.5, row(2)[17])
}

func testReport() *domain.Report {
	return &domain.Report{
		ID: "rep-1", OrganizationID: "acme", Name: "Week 42",
		Source: domain.SourceAPI, Status: domain.ReportCompleted,
		Params: []byte(`{}`), Baseline: []byte(`{}`),
		CreatedAt: created, UpdatedAt: created,
	}
}

func TestReportRepo_Create(t *testing.T) {
	repo, mock := newMock(t)

	results := make([]analysis.ClassificationResult, 0, resultInsertBatch+3)
	for len(results) < resultInsertBatch+3 {
		results = append(results, sampleResults()...)
	}
	results = results[:resultInsertBatch+3]

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO searchterm_reports`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO searchterm_results`).WillReturnResult(sqlmock.NewResult(0, resultInsertBatch))
	mock.ExpectExec(`INSERT INTO searchterm_results`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), testReport(), results))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_CreateDuplicateRollsBack(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO searchterm_reports`).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), testReport(), sampleResults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_Results(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM searchterm_results`).
		WithArgs("rep-1", "acme", "Pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`AND r.suggestion = \$3 ORDER BY r.position LIMIT \$4 OFFSET \$5`).
		WithArgs("rep-1", "acme", "Pending", 2, 4).
		WillReturnRows(sqlmock.NewRows(resultCols).
			AddRow("shoes kids", "SP", "Run", 120.0, 6.0, 3.0, 0.0, 0.0, 0.0, 5.0, 0.0, 0.5,
				"Pending", "Wait for data", 0.3, "Infinity", nil, "feature_word_estimate").
			AddRow("shoes toddler", "SP", "Run", 80.0, 4.0, 2.0, 0.0, 0.0, 0.0, 5.0, 0.0, 0.5,
				"Pending", "Wait for data", 0.4, 61.5, "toddler", "feature_word_estimate"))

	out, total, err := repo.Results(context.Background(), "acme", "rep-1",
		report.ResultFilter{Suggestion: analysis.Pending, Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, out, 2)

	assert.Equal(t, analysis.Pending, out[0].Suggestion)
	assert.Equal(t, analysis.RuleWordEstimate, out[0].Rule)
	require.NotNil(t, out[0].EstimatedAcos)
	assert.True(t, math.IsInf(out[0].EstimatedAcos.Float64(), 1))
	assert.Nil(t, out[0].ProblemKeyword)

	require.NotNil(t, out[1].ProblemKeyword)
	assert.Equal(t, "toddler", *out[1].ProblemKeyword)
	assert.Equal(t, 61.5, out[1].EstimatedAcos.Float64())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_ResultsAll(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT`).WithArgs("rep-1", "acme").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY r.position$`).WithArgs("rep-1", "acme").
		WillReturnRows(sqlmock.NewRows(resultCols))

	out, total, err := repo.Results(context.Background(), "acme", "rep-1", report.ResultFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_Records(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT r.search_term, r.campaign, r.ad_group, r.impressions`).
		WithArgs("rep-1", "acme").
		WillReturnRows(sqlmock.NewRows([]string{"search_term", "campaign", "ad_group", "impressions", "clicks", "spend", "sales", "orders"}).
			AddRow("running shoes", "SP", "Run", 2000.0, 100.0, 50.0, 200.0, 4.0))

	recs, err := repo.Records(context.Background(), "acme", "rep-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "running shoes", recs[0].SearchTerm)
	assert.InDelta(t, 25.0, recs[0].ACOS, 1e-9, "derived fields are recomputed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_ReplaceResults(t *testing.T) {
	repo, mock := newMock(t)
	rep := testReport()
	rep.Fingerprint = "abc"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE searchterm_reports SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE searchterm_results r SET`).
		WithArgs("rep-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceResults(context.Background(), rep, sampleResults()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_ReplaceResultsMismatchRollsBack(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE searchterm_reports SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE searchterm_results r SET`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	err := repo.ReplaceResults(context.Background(), testReport(), sampleResults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_ReplaceResultsNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE searchterm_reports SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ReplaceResults(context.Background(), testReport(), sampleResults())
	assert.True(t, errors.Is(err, report.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_Delete(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM searchterm_reports`).WithArgs("rep-1", "acme").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM searchterm_reports`).WithArgs("rep-1", "acme").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "acme", "rep-1"))
	assert.True(t, errors.Is(repo.Delete(context.Background(), "acme", "rep-1"), report.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepo_CountByOrganization(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`GROUP BY organization_id`).
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "count"}).AddRow("acme", 4).AddRow("globex", 1))

	counts, err := repo.CountByOrganization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"acme": 4, "globex": 1}, counts)
}

func TestMetricText(t *testing.T) {
	inf := analysis.Infinity
	v := analysis.Metric(12.5)
	assert.False(t, metricText(nil).Valid)
	assert.Equal(t, "Infinity", metricText(&inf).String)
	assert.Equal(t, "12.5", metricText(&v).String)
}
