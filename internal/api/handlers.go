package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/config"
	"github.com/ignite/searchterm-optimizer/internal/datanorm"
	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/ignite/searchterm-optimizer/internal/pkg/httputil"
	"github.com/ignite/searchterm-optimizer/internal/pkg/logger"
	"github.com/ignite/searchterm-optimizer/internal/service/report"
)

// ReportService is the part of the report service the API calls.
type ReportService interface {
	Defaults() analysis.Params
	Create(ctx context.Context, orgID string, in report.CreateInput) (*report.Created, error)
	Get(ctx context.Context, orgID, id string) (*domain.Report, error)
	List(ctx context.Context, orgID string, f report.ListFilter) ([]domain.Report, int, error)
	Results(ctx context.Context, orgID, id string, f report.ResultFilter) ([]analysis.ClassificationResult, int, error)
	Reanalyze(ctx context.Context, orgID, id string, override analysis.Params) (*domain.Report, error)
	Delete(ctx context.Context, orgID, id string) error
}

// ImportWatcher is the S3 inbox watcher as seen by the import endpoints.
type ImportWatcher interface {
	Status() datanorm.Status
	Trigger()
	ListImports(ctx context.Context, status string, limit int) ([]datanorm.ImportLogEntry, error)
	Retry(ctx context.Context, key string) (bool, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	reports    ReportService
	imports    ImportWatcher
	checks     []HealthCheck
	upload     config.UploadConfig
	defaultOrg string
	log        *logger.Logger
	startedAt  time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithImports enables the /api/imports endpoints.
func WithImports(w ImportWatcher) HandlerOption { return func(h *Handlers) { h.imports = w } }

// WithHealthChecks registers dependencies probed by /health/ready.
func WithHealthChecks(checks ...HealthCheck) HandlerOption {
	return func(h *Handlers) { h.checks = append(h.checks, checks...) }
}

// NewHandlers creates a new Handlers instance
func NewHandlers(reports ReportService, upload config.UploadConfig, defaultOrg string, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		reports:    reports,
		upload:     upload,
		defaultOrg: defaultOrg,
		log:        logger.With("component", "api"),
		startedAt:  time.Now(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// requestLogger logs one line per request through the structured logger.
func (h *Handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case status >= 500:
			h.log.Error("request", fields...)
		case r.URL.Path == "/health/live" || r.URL.Path == "/metrics":
			h.log.Debug("request", fields...)
		default:
			h.log.Info("request", fields...)
		}
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.JSON(w, status, data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	httputil.Error(w, status, message)
}
