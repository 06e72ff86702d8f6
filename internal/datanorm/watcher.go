package datanorm

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/ignite/searchterm-optimizer/internal/pkg/distlock"
	"github.com/ignite/searchterm-optimizer/internal/pkg/logger"
)

const (
	processedPrefix = "processed/"
	queueBatchSize  = 10
	// stuckAfter is how long a file may sit in 'processing' before another
	// cycle treats its worker as crashed.
	stuckAfter = 30 * time.Minute
)

// S3API is the subset of *s3.Client the watcher uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Analyzer stores and analyzes the records of one inbox file and returns
// the new report id.
type Analyzer interface {
	ImportReport(ctx context.Context, orgID, name, sourceKey string, records []domain.SearchTermRecord) (string, error)
}

// Recorder receives row counts per outcome ("imported", "skipped").
type Recorder interface {
	ImportRows(outcome string, n int)
}

// Watcher polls an S3 inbox for search-term report exports, tracks each
// file in report_import_log and feeds parsed records to an Analyzer.
type Watcher struct {
	s3         S3API
	db         *sql.DB
	analyzer   Analyzer
	cfg        Config
	classifier *Classifier
	lock       distlock.DistLock
	recorder   Recorder
	log        *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running int32
	healthy atomic.Bool

	mu        sync.Mutex
	lastRunAt time.Time
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithLock serializes cycles across replicas.
func WithLock(l distlock.DistLock) Option { return func(w *Watcher) { w.lock = l } }

// WithRecorder reports row counts to metrics.
func WithRecorder(r Recorder) Option { return func(w *Watcher) { w.recorder = r } }

func NewWatcher(client S3API, db *sql.DB, analyzer Analyzer, cfg Config, opts ...Option) *Watcher {
	w := &Watcher{
		s3:         client,
		db:         db,
		analyzer:   analyzer,
		cfg:        cfg.withDefaults(),
		classifier: NewClassifier(),
		log:        logger.With("component", "datanorm"),
	}
	w.healthy.Store(true)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the polling loop. Stop or cancelling ctx ends it.
func (w *Watcher) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	go func() {
		w.RunOnce(w.ctx)
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(w.ctx)
			}
		}
	}()
}

func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

// Status is a point-in-time view for health checks and the import API.
type Status struct {
	Healthy   bool      `json:"healthy"`
	Running   bool      `json:"running"`
	LastRunAt time.Time `json:"last_run_at"`
	Bucket    string    `json:"bucket"`
	Prefix    string    `json:"prefix"`
}

func (w *Watcher) Status() Status {
	w.mu.Lock()
	last := w.lastRunAt
	w.mu.Unlock()
	return Status{
		Healthy:   w.healthy.Load(),
		Running:   atomic.LoadInt32(&w.running) == 1,
		LastRunAt: last,
		Bucket:    w.cfg.Bucket,
		Prefix:    w.cfg.Prefix,
	}
}

// Trigger runs a cycle in the background; overlapping calls are dropped.
func (w *Watcher) Trigger() {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go w.RunOnce(ctx)
}

// RunOnce executes one cycle: recover stuck files, discover new files,
// then process a batch from the queue. Only one cycle runs per process,
// and with a lock configured only one per fleet.
func (w *Watcher) RunOnce(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&w.running, 0)

	w.mu.Lock()
	w.lastRunAt = time.Now()
	w.mu.Unlock()

	cycle := func(ctx context.Context) error {
		w.resumeStuck(ctx)
		if err := w.discoverFiles(ctx); err != nil {
			w.healthy.Store(false)
			return err
		}
		w.healthy.Store(true)
		w.processQueue(ctx)
		return nil
	}

	if w.lock == nil {
		if err := cycle(ctx); err != nil {
			w.log.Error("cycle failed", "error", err)
		}
		return
	}
	ran, err := distlock.Run(ctx, w.lock, cycle)
	if err != nil {
		w.log.Error("cycle failed", "error", err)
	}
	if !ran && err == nil {
		w.log.Debug("cycle skipped, another replica holds the lock")
	}
}

func (w *Watcher) wantKey(key string) bool {
	if !strings.HasPrefix(key, w.cfg.Prefix) || strings.HasPrefix(key, processedPrefix) {
		return false
	}
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".tsv") || strings.HasSuffix(lower, ".txt")
}

// Enqueue registers one object as pending. Known keys are left untouched.
func (w *Watcher) Enqueue(ctx context.Context, key string, size int64) (bool, error) {
	if !w.wantKey(key) {
		return false, nil
	}
	res, err := w.db.ExecContext(ctx,
		`INSERT INTO report_import_log (original_key, status, file_size)
		 VALUES ($1, 'pending', $2)
		 ON CONFLICT (original_key) DO NOTHING`,
		key, size,
	)
	if err != nil {
		return false, fmt.Errorf("insert pending %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// discoverFiles scans the inbox prefix and enqueues every new report file.
func (w *Watcher) discoverFiles(ctx context.Context) error {
	paginator := s3.NewListObjectsV2Paginator(w.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(w.cfg.Bucket),
		Prefix: aws.String(w.cfg.Prefix),
	})

	inserted := 0
	for paginator.HasMorePages() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Size == nil || *obj.Size == 0 {
				continue
			}
			ok, err := w.Enqueue(ctx, aws.ToString(obj.Key), *obj.Size)
			if err != nil {
				w.log.Warn("enqueue failed", "error", err)
				continue
			}
			if ok {
				inserted++
			}
		}
	}

	if inserted > 0 {
		w.log.Info("discovered new files", "count", inserted)
	}
	return nil
}

// processQueue picks pending files (smallest first) and processes them
// concurrently.
func (w *Watcher) processQueue(ctx context.Context) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT original_key FROM report_import_log
		 WHERE status = 'pending'
		 ORDER BY file_size ASC, created_at ASC
		 LIMIT $1`, queueBatchSize)
	if err != nil {
		w.log.Error("query queue", "error", err)
		return
	}

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err == nil {
			keys = append(keys, k)
		}
	}
	rows.Close()

	if len(keys) == 0 {
		return
	}
	w.log.Info("processing batch from queue", "files", len(keys))

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(k string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := w.ProcessFile(ctx, k); err != nil {
				w.log.Error("process file", "key", k, "error", err)
			}
		}(key)
	}
	wg.Wait()
}

// ProcessFile claims one pending file, parses it and hands its records to
// the analyzer. A nil result with a nil error means another worker owns
// the file.
func (w *Watcher) ProcessFile(ctx context.Context, key string) (*ImportResult, error) {
	start := time.Now()
	res, err := w.db.ExecContext(ctx,
		`UPDATE report_import_log
		 SET status = 'processing', retry_count = retry_count + 1, started_at = NOW()
		 WHERE original_key = $1 AND status = 'pending'`, key)
	if err != nil {
		return nil, fmt.Errorf("claim file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}

	out, err := w.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(w.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		w.markFailed(ctx, key, fmt.Sprintf("get S3 object: %v", err))
		return nil, fmt.Errorf("get S3 object: %w", err)
	}
	defer out.Body.Close()

	br := bufio.NewReaderSize(stripBOM(out.Body), 256*1024)
	headerLine, err := peekHeaderLine(br)
	if err != nil {
		if err == io.EOF {
			w.markFailed(ctx, key, ErrEmptyFile.Error())
			return nil, nil
		}
		w.markFailed(ctx, key, fmt.Sprintf("peek header: %v", err))
		return nil, fmt.Errorf("peek header: %w", err)
	}

	reportType := w.classifier.Classify(key, splitHeader(headerLine))
	if reportType != ReportSearchTerm {
		w.markSkipped(ctx, key, reportType)
		w.log.Info("skipping non search-term report", "key", key, "report_type", reportType)
		return &ImportResult{FileKey: key, ReportType: reportType, Duration: time.Since(start)}, nil
	}

	parsed, err := ParseReport(br, ParseOptions{MaxRows: w.cfg.MaxRows})
	if err != nil {
		w.markFailed(ctx, key, err.Error())
		return nil, err
	}
	if len(parsed.Records) == 0 {
		w.markFailed(ctx, key, "no usable rows")
		w.record("skipped", parsed.SkippedRows)
		return nil, fmt.Errorf("%s: no usable rows", key)
	}

	reportID, err := w.analyzer.ImportReport(ctx, w.cfg.OrgID, path.Base(key), key, parsed.Records)
	if err != nil {
		w.markFailed(ctx, key, fmt.Sprintf("analyze: %v", err))
		return nil, fmt.Errorf("analyze %s: %w", key, err)
	}
	w.record("imported", len(parsed.Records))
	w.record("skipped", parsed.SkippedRows)

	archivedKey := archiveKey(reportID, reportType, key, start)
	_, copyErr := w.s3.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(w.cfg.Bucket),
		CopySource: aws.String(w.cfg.Bucket + "/" + key),
		Key:        aws.String(archivedKey),
	})
	if copyErr != nil {
		w.log.Warn("archive copy failed", "key", key, "archived_key", archivedKey, "error", copyErr)
		archivedKey = ""
	}

	_, updErr := w.db.ExecContext(ctx,
		`UPDATE report_import_log
		 SET status = 'completed', report_type = $1, report_id = $2, archived_key = $3,
		     record_count = $4, skipped_count = $5, error_message = NULL, processed_at = NOW()
		 WHERE original_key = $6`,
		string(reportType), reportID, archivedKey, len(parsed.Records), parsed.SkippedRows, key,
	)

	if updErr != nil {
		// The original stays in the inbox so a requeue can still read it.
		w.log.Warn("mark completed failed, keeping original", "key", key, "report_id", reportID, "error", updErr)
	}

	if copyErr == nil && updErr == nil {
		if _, err := w.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(w.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			w.log.Warn("delete original failed", "key", key, "error", err)
		}
	}

	result := &ImportResult{
		FileKey:     key,
		ReportType:  reportType,
		ArchivedKey: archivedKey,
		ReportID:    reportID,
		TotalRows:   parsed.TotalRows,
		Imported:    len(parsed.Records),
		Skipped:     parsed.SkippedRows,
		Duration:    time.Since(start),
	}
	w.log.Info("file imported",
		"key", key, "report_id", reportID, "archived_key", archivedKey,
		"rows", result.Imported, "skipped", result.Skipped, "duration", result.Duration)
	return result, nil
}

func (w *Watcher) record(outcome string, n int) {
	if w.recorder != nil && n > 0 {
		w.recorder.ImportRows(outcome, n)
	}
}

// archiveKey names the processed copy, e.g.
// processed/2026-10-19/3f1c...-SearchTerm-report.csv
func archiveKey(reportID string, rt ReportType, key string, at time.Time) string {
	// cases.Caser is not safe for concurrent use; one per call.
	title := cases.Title(language.English).String(strings.ReplaceAll(string(rt), "_", " "))
	return fmt.Sprintf("%s%s/%s-%s-%s", processedPrefix, at.UTC().Format("2006-01-02"),
		reportID, strings.ReplaceAll(title, " ", ""), path.Base(key))
}

func splitHeader(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = sniffDelimiter(line)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return strings.Split(line, string(r.Comma))
	}
	return fields
}

func (w *Watcher) markFailed(ctx context.Context, key, errMsg string) {
	w.db.ExecContext(ctx,
		`UPDATE report_import_log SET status = 'failed', error_message = $1 WHERE original_key = $2`,
		errMsg, key,
	)
}

func (w *Watcher) markSkipped(ctx context.Context, key string, rt ReportType) {
	w.db.ExecContext(ctx,
		`UPDATE report_import_log SET status = 'skipped', report_type = $1, error_message = $2 WHERE original_key = $3`,
		string(rt), "not a search term report", key,
	)
}

// resumeStuck resets files left in 'processing' by a crashed worker back
// to 'pending'. Files that have exhausted their retries are failed.
func (w *Watcher) resumeStuck(ctx context.Context) {
	cutoff := time.Now().Add(-stuckAfter)
	w.db.ExecContext(ctx,
		`UPDATE report_import_log SET status = 'pending'
		 WHERE status = 'processing' AND started_at < $1 AND retry_count < $2`,
		cutoff, w.cfg.MaxRetries)
	w.db.ExecContext(ctx,
		`UPDATE report_import_log SET status = 'failed', error_message = 'max retries exceeded'
		 WHERE status = 'processing' AND started_at < $1 AND retry_count >= $2`,
		cutoff, w.cfg.MaxRetries)
}

// ImportLogEntry is one row of report_import_log.
type ImportLogEntry struct {
	OriginalKey  string     `json:"original_key"`
	Status       string     `json:"status"`
	ReportType   string     `json:"report_type,omitempty"`
	ReportID     string     `json:"report_id,omitempty"`
	ArchivedKey  string     `json:"archived_key,omitempty"`
	FileSize     int64      `json:"file_size"`
	RecordCount  int        `json:"record_count"`
	SkippedCount int        `json:"skipped_count"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// ListImports returns the most recent import log entries, optionally
// filtered by status.
func (w *Watcher) ListImports(ctx context.Context, status string, limit int) ([]ImportLogEntry, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT original_key, status, COALESCE(report_type, ''), COALESCE(report_id::text, ''),
		        COALESCE(archived_key, ''), file_size, record_count, skipped_count, retry_count,
		        COALESCE(error_message, ''), created_at, processed_at
		 FROM report_import_log
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC
		 LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var out []ImportLogEntry
	for rows.Next() {
		var e ImportLogEntry
		var processed sql.NullTime
		if err := rows.Scan(&e.OriginalKey, &e.Status, &e.ReportType, &e.ReportID,
			&e.ArchivedKey, &e.FileSize, &e.RecordCount, &e.SkippedCount, &e.RetryCount,
			&e.ErrorMessage, &e.CreatedAt, &processed); err != nil {
			return nil, err
		}
		if processed.Valid {
			t := processed.Time
			e.ProcessedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Retry puts a failed or skipped file back in the queue.
func (w *Watcher) Retry(ctx context.Context, key string) (bool, error) {
	res, err := w.db.ExecContext(ctx,
		`UPDATE report_import_log SET status = 'pending', retry_count = 0, error_message = NULL
		 WHERE original_key = $1 AND status IN ('failed', 'skipped')`, key)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
