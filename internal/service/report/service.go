package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/cache"
	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/ignite/searchterm-optimizer/internal/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Cache is the optional read-through cache for report metadata and
// upload fingerprints. *cache.SummaryCache implements it.
type Cache interface {
	Get(ctx context.Context, orgID, id string) (*domain.Report, bool)
	Set(ctx context.Context, r *domain.Report)
	Delete(ctx context.Context, orgID, id string)
	LookupFingerprint(ctx context.Context, orgID, fp string) (string, bool)
	RememberFingerprint(ctx context.Context, orgID, fp, reportID string)
	ForgetFingerprint(ctx context.Context, orgID, fp string)
}

// Recorder receives one observation per analysis run.
type Recorder interface {
	ObserveSummary(source string, s *analysis.Summary, took time.Duration)
}

// Archive keeps the raw file behind an uploaded report.
type Archive interface {
	Put(ctx context.Context, orgID, reportID string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Service implements report business logic. All public methods are safe
// for concurrent use if the repository and cache are.
type Service struct {
	repo     Repository
	cache    Cache
	recorder Recorder
	archive  Archive
	defaults analysis.Params
	log      *logger.Logger
}

// Option customizes a Service.
type Option func(*Service)

func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

func WithArchive(a Archive) Option { return func(s *Service) { s.archive = a } }

// WithDefaults sets the params used for fields a caller leaves at zero.
func WithDefaults(p analysis.Params) Option {
	return func(s *Service) { s.defaults = p.WithDefaults() }
}

// NewService creates a report service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		defaults: analysis.DefaultParams(),
		log:      logger.With("component", "report.Service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput holds the fields for analyzing a new batch.
type CreateInput struct {
	Name      string
	Source    domain.ReportSource
	SourceKey string
	Records   []domain.SearchTermRecord
	// Params fields left at zero take the service defaults.
	Params analysis.Params
	// Raw is the uploaded file, archived when an archive is configured.
	Raw []byte
}

// Created is the outcome of Create. Summary is nil when an identical batch
// was already analyzed and its report is returned instead.
type Created struct {
	Report    *domain.Report
	Summary   *analysis.Summary
	Duplicate bool
}

// Defaults returns the params applied to fields callers leave at zero.
func (s *Service) Defaults() analysis.Params {
	return s.defaults
}

// Params resolves a partial override against the service defaults and
// validates the result.
func (s *Service) Params(override analysis.Params) (analysis.Params, error) {
	p := override.Or(s.defaults)
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return p, nil
}

// Create validates and analyzes a batch, then persists the report with
// one result per record.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*Created, error) {
	if len(in.Records) == 0 {
		return nil, ErrEmptyReport
	}
	if err := validateRecords(in.Records); err != nil {
		return nil, err
	}
	params, err := s.Params(in.Params)
	if err != nil {
		return nil, err
	}
	if in.Source == "" {
		in.Source = domain.SourceAPI
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Report " + time.Now().UTC().Format("2006-01-02 15:04")
	}

	var fp string
	if s.cache != nil {
		fp = cache.Fingerprint(in.Records, params)
		if existing := s.duplicateOf(ctx, orgID, fp); existing != nil {
			s.log.Info("duplicate batch, returning existing report", "report_id", existing.ID, "org_id", orgID)
			return &Created{Report: existing, Duplicate: true}, nil
		}
	}

	start := time.Now()
	summary, err := analysis.Analyze(in.Records, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	took := time.Since(start)

	now := time.Now().UTC()
	r := &domain.Report{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           name,
		Source:         in.Source,
		Status:         domain.ReportCompleted,
		SourceKey:      in.SourceKey,
		Fingerprint:    fp,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := applySummary(r, summary); err != nil {
		return nil, err
	}

	if s.archive != nil && len(in.Raw) > 0 {
		key, err := s.archive.Put(ctx, orgID, r.ID, in.Raw)
		if err != nil {
			s.log.Warn("archive upload failed", "report_id", r.ID, "error", err)
		} else if r.SourceKey == "" {
			r.SourceKey = key
		}
	}

	if err := s.repo.Create(ctx, r, summary.Results); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, r)
		s.cache.RememberFingerprint(ctx, orgID, fp, r.ID)
	}
	if s.recorder != nil {
		s.recorder.ObserveSummary(string(r.Source), summary, took)
	}

	s.log.Info("report analyzed",
		"report_id", r.ID, "org_id", orgID, "source", r.Source, "keywords", r.TotalKeywords,
		"exact_negative", r.Counts.ExactNegative, "phrase_negative", r.Counts.PhraseNegative,
		"duration", took)
	return &Created{Report: r, Summary: summary}, nil
}

func (s *Service) duplicateOf(ctx context.Context, orgID, fp string) *domain.Report {
	id, ok := s.cache.LookupFingerprint(ctx, orgID, fp)
	if !ok {
		return nil
	}
	r, err := s.Get(ctx, orgID, id)
	if err != nil {
		// The report was deleted behind the cache's back.
		s.cache.ForgetFingerprint(ctx, orgID, fp)
		return nil
	}
	return r
}

// ImportReport analyzes records picked up from the S3 inbox and returns
// the report id.
func (s *Service) ImportReport(ctx context.Context, orgID, name, sourceKey string, records []domain.SearchTermRecord) (string, error) {
	c, err := s.Create(ctx, orgID, CreateInput{
		Name:      name,
		Source:    domain.SourceS3,
		SourceKey: sourceKey,
		Records:   records,
	})
	if err != nil {
		return "", err
	}
	return c.Report.ID, nil
}

// Get returns a single report, from the cache when possible.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Report, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	if s.cache != nil {
		if r, ok := s.cache.Get(ctx, orgID, id); ok {
			return r, nil
		}
	}
	r, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, r)
	}
	return r, nil
}

// List returns reports matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Report, int, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, orgID, f)
}

// Results returns one page of a report's classification results.
func (s *Service) Results(ctx context.Context, orgID, id string, f ResultFilter) ([]analysis.ClassificationResult, int, error) {
	if f.Suggestion != "" {
		if _, ok := analysis.ParseSuggestion(string(f.Suggestion)); !ok {
			return nil, 0, fmt.Errorf("%w: unknown suggestion %q", ErrInvalidInput, f.Suggestion)
		}
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: negative limit or offset", ErrInvalidInput)
	}
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return nil, 0, err
	}
	return s.repo.Results(ctx, orgID, id, f)
}

// Reanalyze reruns the engine over a report's stored records with new
// params and replaces its results. The same params always produce the
// same results.
func (s *Service) Reanalyze(ctx context.Context, orgID, id string, override analysis.Params) (*domain.Report, error) {
	params, err := s.Params(override)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, ErrNotFound
	}
	r, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.Records(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyReport
	}

	start := time.Now()
	summary, err := analysis.Analyze(records, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	took := time.Since(start)

	oldFP := r.Fingerprint
	if err := applySummary(r, summary); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Now().UTC()
	if s.cache != nil {
		r.Fingerprint = cache.Fingerprint(records, params)
	}

	if err := s.repo.ReplaceResults(ctx, r, summary.Results); err != nil {
		return nil, fmt.Errorf("replace results: %w", err)
	}

	if s.cache != nil {
		if oldFP != r.Fingerprint {
			s.cache.ForgetFingerprint(ctx, orgID, oldFP)
		}
		s.cache.Set(ctx, r)
		s.cache.RememberFingerprint(ctx, orgID, r.Fingerprint, r.ID)
	}
	if s.recorder != nil {
		s.recorder.ObserveSummary("reanalyze", summary, took)
	}
	s.log.Info("report reanalyzed", "report_id", r.ID, "org_id", orgID, "duration", took)
	return r, nil
}

// Delete removes a report, its results and any archived upload.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	r, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Delete(ctx, orgID, id)
		s.cache.ForgetFingerprint(ctx, orgID, r.Fingerprint)
	}
	if s.archive != nil && r.Source == domain.SourceUpload && r.SourceKey != "" {
		if err := s.archive.Delete(ctx, r.SourceKey); err != nil {
			s.log.Warn("archive delete failed", "report_id", id, "key", r.SourceKey, "error", err)
		}
	}
	return nil
}

// validID reports whether id can name a stored report. Report ids are
// UUIDs; anything else cannot exist.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// applySummary copies counts, totals, params and baseline onto r.
func applySummary(r *domain.Report, s *analysis.Summary) error {
	params, err := json.Marshal(s.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	baseline, err := json.Marshal(s.Baseline)
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	r.Params = params
	r.Baseline = baseline
	r.Counts = s.Counts
	r.TotalKeywords = s.TotalKeywords
	r.TotalImpressions = s.TotalImpressions
	r.TotalClicks = s.TotalClicks
	r.TotalSpend = s.TotalSpend
	r.TotalSales = s.TotalSales
	r.TotalOrders = s.TotalOrders
	r.OverallAcos = s.OverallAcos
	r.OverallCVR = s.OverallConversionRate
	return nil
}

func validateRecords(records []domain.SearchTermRecord) error {
	for i, rec := range records {
		if strings.TrimSpace(rec.SearchTerm) == "" {
			return fmt.Errorf("%w: record %d has no search term", ErrInvalidInput, i)
		}
		for _, v := range []float64{rec.Impressions, rec.Clicks, rec.Spend, rec.Sales, rec.Orders} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: record %d (%q) has a non-finite or negative metric", ErrInvalidInput, i, rec.SearchTerm)
			}
		}
	}
	return nil
}
