package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/datanorm"
	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/ignite/searchterm-optimizer/internal/export"
	"github.com/ignite/searchterm-optimizer/internal/service/report"
)

const (
	defaultPageSize    = 50
	maxPageSize        = 200
	defaultResultsPage = 100
	maxResultsPage     = 1000
	multipartMemory    = 8 << 20
)

// recordInput is one search term in a JSON create request. Derived ratios
// are always recomputed server side.
type recordInput struct {
	SearchTerm  string  `json:"search_term"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Spend       float64 `json:"spend"`
	Sales       float64 `json:"sales"`
	Orders      float64 `json:"orders"`
	Campaign    string  `json:"campaign,omitempty"`
	AdGroup     string  `json:"ad_group,omitempty"`
}

type createRequest struct {
	Name    string          `json:"name"`
	Records []recordInput   `json:"records"`
	Params  analysis.Params `json:"params"`
}

type createResponse struct {
	Report      *domain.Report `json:"report"`
	Duplicate   bool           `json:"duplicate"`
	TotalRows   int            `json:"total_rows,omitempty"`
	SkippedRows int            `json:"skipped_rows,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// paramFields are the multipart form fields that override analysis params.
var paramFields = []struct {
	name string
	dst  func(*analysis.Params) *float64
}{
	{"target_acos_index", func(p *analysis.Params) *float64 { return &p.TargetAcosIndex }},
	{"exact_negative_lv", func(p *analysis.Params) *float64 { return &p.ExactNegativeLv }},
	{"phrase_negative_lv", func(p *analysis.Params) *float64 { return &p.PhraseNegativeLv }},
	{"reliability", func(p *analysis.Params) *float64 { return &p.Reliability }},
	{"increase_bid_lv", func(p *analysis.Params) *float64 { return &p.IncreaseBidLv }},
	{"decrease_bid_lv", func(p *analysis.Params) *float64 { return &p.DecreaseBidLv }},
}

// GetDefaultParams returns the params applied when a request sets none.
func (h *Handlers) GetDefaultParams(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.reports.Defaults())
}

// CreateReport analyzes a batch sent either as a multipart CSV upload
// (field "file") or as JSON records.
func (h *Handlers) CreateReport(w http.ResponseWriter, r *http.Request) {
	if h.upload.MaxBytes > 0 {
		if r.ContentLength > h.upload.MaxBytes {
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", h.upload.MaxBytes))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		in   report.CreateInput
		resp createResponse
		err  error
	)
	if mediaType == "multipart/form-data" {
		in, resp, err = h.readUpload(r)
	} else {
		in, err = h.readJSONRecords(r)
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	created, err := h.reports.Create(r.Context(), orgID(r), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	resp.Report = created.Report
	resp.Duplicate = created.Duplicate

	status := http.StatusCreated
	if created.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, resp)
}

func (h *Handlers) readUpload(r *http.Request) (report.CreateInput, createResponse, error) {
	var in report.CreateInput
	var resp createResponse

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, resp, err
		}
		return in, resp, fmt.Errorf("%w: malformed multipart form: %v", report.ErrInvalidInput, err)
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		return in, resp, fmt.Errorf("%w: missing file field", report.ErrInvalidInput)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return in, resp, fmt.Errorf("read upload: %w", err)
	}

	parsed, err := datanorm.ParseReport(bytes.NewReader(raw), datanorm.ParseOptions{MaxRows: h.upload.MaxRows})
	if err != nil {
		return in, resp, err
	}

	params, err := formParams(r)
	if err != nil {
		return in, resp, err
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(hdr.Filename, path.Ext(hdr.Filename))
	}

	in = report.CreateInput{
		Name:    name,
		Source:  domain.SourceUpload,
		Records: parsed.Records,
		Params:  params,
		Raw:     raw,
	}
	resp.TotalRows = parsed.TotalRows
	resp.SkippedRows = parsed.SkippedRows
	resp.Warnings = parsed.Warnings
	return in, resp, nil
}

func formParams(r *http.Request) (analysis.Params, error) {
	var p analysis.Params
	for _, f := range paramFields {
		v := strings.TrimSpace(r.FormValue(f.name))
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("%w: %s must be a number", report.ErrInvalidInput, f.name)
		}
		*f.dst(&p) = n
	}
	return p, nil
}

func (h *Handlers) readJSONRecords(r *http.Request) (report.CreateInput, error) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return report.CreateInput{}, err
		}
		return report.CreateInput{}, fmt.Errorf("%w: invalid JSON: %v", report.ErrInvalidInput, err)
	}
	if h.upload.MaxRows > 0 && len(req.Records) > h.upload.MaxRows {
		return report.CreateInput{}, fmt.Errorf("%w: limit is %d", datanorm.ErrTooManyRows, h.upload.MaxRows)
	}

	records := make([]domain.SearchTermRecord, 0, len(req.Records))
	for i, in := range req.Records {
		if in.Impressions < 0 || in.Clicks < 0 || in.Spend < 0 || in.Sales < 0 || in.Orders < 0 {
			return report.CreateInput{}, fmt.Errorf("%w: record %d (%q) has a negative metric", report.ErrInvalidInput, i, in.SearchTerm)
		}
		records = append(records, domain.NewSearchTermRecord(in.SearchTerm, domain.RawMetrics{
			Impressions: in.Impressions,
			Clicks:      in.Clicks,
			Spend:       in.Spend,
			Sales:       in.Sales,
			Orders:      in.Orders,
		}, in.Campaign, in.AdGroup))
	}
	return report.CreateInput{
		Name:    req.Name,
		Source:  domain.SourceAPI,
		Records: records,
		Params:  req.Params,
	}, nil
}

// ListReports returns one page of the organization's reports.
func (h *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	pg, err := ParsePagination(r, defaultPageSize, maxPageSize)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	reports, total, err := h.reports.List(r.Context(), orgID(r), report.ListFilter{
		Source: r.URL.Query().Get("source"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	respondJSON(w, http.StatusOK, struct {
		Reports []domain.Report `json:"reports"`
		PaginationMeta
	}{reports, pg.Meta(total)})
}

// GetReport returns a report's metadata and summary.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Get(r.Context(), orgID(r), chi.URLParam(r, "reportId"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// GetResults returns one page of classification results, optionally for a
// single suggestion.
func (h *Handlers) GetResults(w http.ResponseWriter, r *http.Request) {
	pg, err := ParsePagination(r, defaultResultsPage, maxResultsPage)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	results, total, err := h.reports.Results(r.Context(), orgID(r), chi.URLParam(r, "reportId"), report.ResultFilter{
		Suggestion: analysis.Suggestion(r.URL.Query().Get("suggestion")),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if results == nil {
		results = []analysis.ClassificationResult{}
	}
	respondJSON(w, http.StatusOK, struct {
		Results []analysis.ClassificationResult `json:"results"`
		PaginationMeta
	}{results, pg.Meta(total)})
}

// ExportResults streams every result of a report as a CSV download.
func (h *Handlers) ExportResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportId")
	results, _, err := h.reports.Results(r.Context(), orgID(r), id, report.ResultFilter{
		Suggestion: analysis.Suggestion(r.URL.Query().Get("suggestion")),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="searchterms-%s.csv"`, id))
	if err := export.WriteCSV(w, results); err != nil {
		h.log.Warn("export write failed", "report_id", id, "error", err)
	}
}

// ReanalyzeReport reruns the engine over a stored report. An empty body
// reanalyzes with the defaults.
func (h *Handlers) ReanalyzeReport(w http.ResponseWriter, r *http.Request) {
	var params analysis.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rep, err := h.reports.Reanalyze(r.Context(), orgID(r), chi.URLParam(r, "reportId"), params)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// DeleteReport removes a report and its results.
func (h *Handlers) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.Delete(r.Context(), orgID(r), chi.URLParam(r, "reportId")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
