package datanorm

import "time"

// ReportType is the file type enum.
type ReportType string

const (
	ReportSearchTerm ReportType = "search_term"
	ReportTargeting  ReportType = "targeting"
	ReportUnknown    ReportType = "unknown"
)

// ImportStatus values of report_import_log.status.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

// ImportResult tracks the outcome of one inbox file.
type ImportResult struct {
	FileKey     string
	ReportType  ReportType
	ArchivedKey string
	ReportID    string
	TotalRows   int
	Imported    int
	Skipped     int
	Duration    time.Duration
}

// Config holds watcher configuration loaded from config.yaml.
type Config struct {
	Bucket      string
	Region      string
	AWSProfile  string
	Prefix      string
	OrgID       string
	Interval    time.Duration
	MaxRetries  int
	Concurrency int
	MaxRows     int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}
