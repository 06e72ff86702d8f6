package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/config"
	"github.com/ignite/searchterm-optimizer/internal/datanorm"
	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/ignite/searchterm-optimizer/internal/export"
	"github.com/ignite/searchterm-optimizer/internal/service/report"
)

// mockReports records the calls the handlers make.
type mockReports struct {
	created    []report.CreateInput
	createOrg  string
	duplicate  bool
	listFilter report.ListFilter
	resFilter  report.ResultFilter
	results    []analysis.ClassificationResult
	reanalyzed *analysis.Params
	deleted    []string
	getErr     error
	resErr     error
}

func (m *mockReports) Defaults() analysis.Params { return analysis.DefaultParams() }

func (m *mockReports) Create(ctx context.Context, orgID string, in report.CreateInput) (*report.Created, error) {
	if len(in.Records) == 0 {
		return nil, report.ErrEmptyReport
	}
	m.created = append(m.created, in)
	m.createOrg = orgID
	return &report.Created{
		Report:    &domain.Report{ID: "rep-1", OrganizationID: orgID, Name: in.Name, Source: in.Source, TotalKeywords: len(in.Records)},
		Duplicate: m.duplicate,
	}, nil
}

func (m *mockReports) Get(ctx context.Context, orgID, id string) (*domain.Report, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if id != "rep-1" {
		return nil, report.ErrNotFound
	}
	return &domain.Report{ID: id, OrganizationID: orgID, Name: "weekly"}, nil
}

func (m *mockReports) List(ctx context.Context, orgID string, f report.ListFilter) ([]domain.Report, int, error) {
	m.listFilter = f
	return []domain.Report{{ID: "rep-1", OrganizationID: orgID}}, 31, nil
}

func (m *mockReports) Results(ctx context.Context, orgID, id string, f report.ResultFilter) ([]analysis.ClassificationResult, int, error) {
	m.resFilter = f
	if m.resErr != nil {
		return nil, 0, m.resErr
	}
	if id != "rep-1" {
		return nil, 0, report.ErrNotFound
	}
	return m.results, len(m.results), nil
}

func (m *mockReports) Reanalyze(ctx context.Context, orgID, id string, override analysis.Params) (*domain.Report, error) {
	m.reanalyzed = &override
	if err := override.WithDefaults().Validate(); err != nil {
		return nil, errors.Join(report.ErrInvalidInput, err)
	}
	return &domain.Report{ID: id, OrganizationID: orgID}, nil
}

func (m *mockReports) Delete(ctx context.Context, orgID, id string) error {
	if id != "rep-1" {
		return report.ErrNotFound
	}
	m.deleted = append(m.deleted, orgID+"/"+id)
	return nil
}

type mockImports struct {
	running   bool
	triggered int
	logs      []datanorm.ImportLogEntry
	status    string
	retried   string
}

func (m *mockImports) Status() datanorm.Status {
	return datanorm.Status{Healthy: true, Running: m.running, Bucket: "inbox-bucket", Prefix: "inbox/"}
}
func (m *mockImports) Trigger() { m.triggered++ }
func (m *mockImports) ListImports(ctx context.Context, status string, limit int) ([]datanorm.ImportLogEntry, error) {
	m.status = status
	return m.logs, nil
}
func (m *mockImports) Retry(ctx context.Context, key string) (bool, error) {
	m.retried = key
	return key == "inbox/failed.csv", nil
}

func setupTestHandlers(t *testing.T, opts ...HandlerOption) (http.Handler, *mockReports) {
	t.Helper()
	svc := &mockReports{}
	h := NewHandlers(svc, config.UploadConfig{MaxBytes: 64 << 10, MaxRows: 100}, "default-org", opts...)
	return SetupRoutes(h, nil, nil), svc
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/reports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const uploadCSV = `Customer Search Term,Impressions,Clicks,Spend,7 Day Total Sales,7 Day Total Orders (#)
wireless earbuds,1000,50,25.5,120,4
earbuds case,800,10,5,0,0
,10,1,1,0,0
`

func TestHealthEndpoints(t *testing.T) {
	h, _ := setupTestHandlers(t)

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady(t *testing.T) {
	ok := HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}

	h, _ := setupTestHandlers(t, WithHealthChecks(ok))
	w := do(t, h, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	h, _ = setupTestHandlers(t, WithHealthChecks(ok, down))
	w = do(t, h, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, false, body["ready"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "up", checks["postgres"].(map[string]interface{})["status"])
	assert.Equal(t, "down", checks["redis"].(map[string]interface{})["status"])

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "searchterm_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := SetupRoutes(NewHandlers(&mockReports{}, config.UploadConfig{}, "default-org"), reg, nil)
	w := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "searchterm_test_total 1")
}

func TestGetDefaultParams(t *testing.T) {
	h, _ := setupTestHandlers(t)
	w := do(t, h, httptest.NewRequest(http.MethodGet, "/api/params/defaults", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var p analysis.Params
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, analysis.DefaultParams(), p)
}

func TestCreateReport_JSON(t *testing.T) {
	h, svc := setupTestHandlers(t)

	body := `{"name":"api batch","params":{"target_acos_index":1.2},"records":[
		{"search_term":"wireless earbuds","impressions":1000,"clicks":50,"spend":25,"sales":100,"orders":4},
		{"search_term":"earbuds case","impressions":800,"clicks":10,"spend":5}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(orgHeader, "org-7")
	w := do(t, h, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, svc.created, 1)
	in := svc.created[0]
	assert.Equal(t, "org-7", svc.createOrg)
	assert.Equal(t, domain.SourceAPI, in.Source)
	assert.Equal(t, 1.2, in.Params.TargetAcosIndex)
	require.Len(t, in.Records, 2)
	assert.InDelta(t, 25.0, in.Records[0].ACOS, 1e-9)
	assert.InDelta(t, 0.5, in.Records[0].CPC, 1e-9)

	out := decode(t, w)
	assert.Equal(t, false, out["duplicate"])
	assert.Equal(t, "rep-1", out["report"].(map[string]interface{})["id"])
}

func TestCreateReport_JSONErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"records":`, http.StatusBadRequest},
		{"negative metric", `{"records":[{"search_term":"x","clicks":-1}]}`, http.StatusBadRequest},
		{"no records", `{"records":[]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestHandlers(t)
			req := httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := do(t, h, req)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestCreateReport_Upload(t *testing.T) {
	h, svc := setupTestHandlers(t)

	req := uploadRequest(t, "week-42.csv", uploadCSV, map[string]string{"reliability": "0.75"})
	w := do(t, h, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, svc.created, 1)
	in := svc.created[0]
	assert.Equal(t, "default-org", svc.createOrg)
	assert.Equal(t, "week-42", in.Name)
	assert.Equal(t, domain.SourceUpload, in.Source)
	assert.Equal(t, uploadCSV, string(in.Raw))
	assert.Equal(t, 0.75, in.Params.Reliability)
	assert.Zero(t, in.Params.TargetAcosIndex)
	require.Len(t, in.Records, 2)
	assert.Equal(t, "wireless earbuds", in.Records[0].SearchTerm)

	out := decode(t, w)
	assert.EqualValues(t, 3, out["total_rows"])
	assert.EqualValues(t, 1, out["skipped_rows"])
	assert.Len(t, out["warnings"], 1)
}

func TestCreateReport_UploadNamed(t *testing.T) {
	h, svc := setupTestHandlers(t)
	w := do(t, h, uploadRequest(t, "x.csv", uploadCSV, map[string]string{"name": "Q3 review"}))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Q3 review", svc.created[0].Name)
}

func TestCreateReport_UploadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		fields  map[string]string
		code    int
	}{
		{"missing file", "", "", nil, http.StatusBadRequest},
		{"empty file", "a.csv", "", nil, http.StatusBadRequest},
		{"no search term column", "a.csv", "foo,bar\n1,2\n", nil, http.StatusBadRequest},
		{"bad param", "a.csv", uploadCSV, map[string]string{"reliability": "high"}, http.StatusBadRequest},
		{"too many rows", "a.csv", "search term,clicks\n" + strings.Repeat("kw,1\n", 101), nil, http.StatusRequestEntityTooLarge},
		{"too large", "a.csv", strings.Repeat("x", 70<<10), nil, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := setupTestHandlers(t)
			w := do(t, h, uploadRequest(t, tt.file, tt.content, tt.fields))
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Empty(t, svc.created)
		})
	}
}

func TestCreateReport_Duplicate(t *testing.T) {
	h, svc := setupTestHandlers(t)
	svc.duplicate = true
	w := do(t, h, uploadRequest(t, "a.csv", uploadCSV, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["duplicate"])
}

func TestListReports(t *testing.T) {
	h, svc := setupTestHandlers(t)

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports?page=3&limit=10&source=s3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, report.ListFilter{Source: "s3", Limit: 10, Offset: 20}, svc.listFilter)
	out := decode(t, w)
	assert.EqualValues(t, 31, out["total"])
	assert.EqualValues(t, 3, out["page"])
	assert.EqualValues(t, 4, out["total_pages"])
	assert.Equal(t, true, out["has_more"])
	assert.Len(t, out["reports"], 1)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports?limit=5000", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxPageSize, svc.listFilter.Limit)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports?page=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaginationMeta(t *testing.T) {
	tests := []struct {
		total   int
		page    int
		pages   int
		hasMore bool
	}{
		{0, 1, 1, false},
		{50, 1, 1, false},
		{51, 1, 2, true},
		{51, 2, 2, false},
	}
	for _, tt := range tests {
		p := PaginationParams{Page: tt.page, Limit: 50}
		meta := p.Meta(tt.total)
		assert.Equal(t, tt.pages, meta.TotalPages, "total=%d", tt.total)
		assert.Equal(t, tt.hasMore, meta.HasMore, "total=%d page=%d", tt.total, tt.page)
	}
}

func TestOrgContext(t *testing.T) {
	h, _ := setupTestHandlers(t)

	orgOf := func(w *httptest.ResponseRecorder) interface{} {
		reports := decode(t, w)["reports"].([]interface{})
		return reports[0].(map[string]interface{})["organization_id"]
	}

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	assert.Equal(t, "default-org", orgOf(w))

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports?org_id=acme", nil))
	assert.Equal(t, "acme", orgOf(w))

	req := httptest.NewRequest(http.MethodGet, "/api/reports?org_id=acme", nil)
	req.Header.Set(orgHeader, "globex")
	assert.Equal(t, "globex", orgOf(do(t, h, req)))
}

func TestGetReport(t *testing.T) {
	h, svc := setupTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/rep-1", nil)
	req.Header.Set(orgHeader, "org-2")
	w := do(t, h, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "org-2", decode(t, w)["organization_id"])

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	svc.getErr = errors.New(`pq: relation "searchterm_reports" does not exist`)
	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports/rep-1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "A database error occurred", decode(t, w)["error"])
}

func sampleResults() []analysis.ClassificationResult {
	inf := analysis.Infinity
	word := "case"
	return []analysis.ClassificationResult{
		{
			SearchTermRecord: domain.NewSearchTermRecord("earbuds case", domain.RawMetrics{Impressions: 800, Clicks: 10, Spend: 5}, "Camp", "AG"),
			Suggestion:       analysis.PhraseNegative,
			SuggestedAction:  "negate phrase",
			Confidence:       0.8,
			EstimatedAcos:    &inf,
			ProblemKeyword:   &word,
			Rule:             analysis.RuleZeroConversionWord,
		},
	}
}

func TestGetResults(t *testing.T) {
	h, svc := setupTestHandlers(t)
	svc.results = sampleResults()

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports/rep-1/results?suggestion=Phrase_Negative&page=2&limit=25", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, report.ResultFilter{Suggestion: analysis.PhraseNegative, Limit: 25, Offset: 25}, svc.resFilter)
	out := decode(t, w)
	require.Len(t, out["results"], 1)
	first := out["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Infinity", first["estimated_acos"])
	assert.Equal(t, "earbuds case", first["search_term"])

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports/rep-1/results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultResultsPage, svc.resFilter.Limit)

	svc.resErr = report.ErrInvalidInput
	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports/rep-1/results?suggestion=Bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportResults(t *testing.T) {
	h, svc := setupTestHandlers(t)
	svc.results = sampleResults()

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports/rep-1/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "searchterms-rep-1.csv")
	assert.Zero(t, svc.resFilter.Limit)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(export.Header, ","), lines[0])
	assert.Equal(t, "earbuds case,Camp,AG,800,10,5,0,0,0,1.25,0,0.5,Phrase_Negative,negate phrase,0.8,Infinity,case,zero_conversion_word", lines[1])

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/reports/nope/export", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReanalyzeReport(t *testing.T) {
	h, svc := setupTestHandlers(t)

	w := do(t, h, httptest.NewRequest(http.MethodPost, "/api/reports/rep-1/reanalyze", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, analysis.Params{}, *svc.reanalyzed)

	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/reports/rep-1/reanalyze", strings.NewReader(`{"exact_negative_lv":2}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, svc.reanalyzed.ExactNegativeLv)

	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/reports/rep-1/reanalyze", strings.NewReader(`{"target_acos_index":-1}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/reports/rep-1/reanalyze", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteReport(t *testing.T) {
	h, svc := setupTestHandlers(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/reports/rep-1", nil)
	req.Header.Set(orgHeader, "org-9")
	w := do(t, h, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"org-9/rep-1"}, svc.deleted)

	w = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/reports/rep-2", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImports_Disabled(t *testing.T) {
	h, _ := setupTestHandlers(t)

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/api/imports/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["initialized"])

	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/imports/trigger", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestImports(t *testing.T) {
	imports := &mockImports{logs: []datanorm.ImportLogEntry{{
		OriginalKey: "inbox/a.csv", Status: datanorm.StatusCompleted, RecordCount: 12, CreatedAt: time.Now(),
	}}}
	h, _ := setupTestHandlers(t, WithImports(imports))

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/api/imports/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, true, status["initialized"])
	assert.Equal(t, "inbox-bucket", status["bucket"])

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/imports?status=completed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, datanorm.StatusCompleted, imports.status)
	assert.Len(t, decode(t, w)["imports"], 1)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/imports?status=weird", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/imports/trigger", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, imports.triggered)

	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/imports/retry", strings.NewReader(`{"key":"inbox/failed.csv"}`)))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "inbox/failed.csv", imports.retried)
	assert.Equal(t, 2, imports.triggered)

	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/imports/retry", strings.NewReader(`{"key":"inbox/ok.csv"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/imports/retry", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	imports.running = true
	w = do(t, h, httptest.NewRequest(http.MethodPost, "/api/imports/trigger", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "already_running", decode(t, w)["status"])
	assert.Equal(t, 2, imports.triggered)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{report.ErrNotFound, http.StatusNotFound},
		{errors.Join(report.ErrInvalidInput, errors.New("x")), http.StatusBadRequest},
		{report.ErrEmptyReport, http.StatusBadRequest},
		{analysis.ErrInvalidParams, http.StatusBadRequest},
		{datanorm.ErrNoSearchTermColumn, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{datanorm.ErrTooManyRows, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}

func TestSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "bad input", safeErrorMessage(400, errors.New("bad input")))
	assert.Equal(t, "Service temporarily unavailable", safeErrorMessage(500, errors.New("dial tcp 10.0.0.1:5432: connection refused")))
	assert.Equal(t, "Request timed out", safeErrorMessage(500, context.DeadlineExceeded))
	assert.Equal(t, "An internal error occurred", safeErrorMessage(500, errors.New("boom")))
}
