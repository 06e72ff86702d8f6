package report

import (
	"context"

	"github.com/ignite/searchterm-optimizer/internal/analysis"
	"github.com/ignite/searchterm-optimizer/internal/domain"
)

// Repository defines the data access contract for reports and their results.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single report. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.Report, error)

	// List returns reports matching the filter, ordered by created_at DESC,
	// and the total number of matches.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Report, int, error)

	// Create inserts the report and its results in one transaction. Results
	// keep their slice order as their position.
	Create(ctx context.Context, r *domain.Report, results []analysis.ClassificationResult) error

	// Results returns one page of a report's results in position order and
	// the total number of matches. A zero Limit returns every match.
	Results(ctx context.Context, orgID, id string, filter ResultFilter) ([]analysis.ClassificationResult, int, error)

	// Records returns the input records of a report in position order.
	Records(ctx context.Context, orgID, id string) ([]domain.SearchTermRecord, error)

	// ReplaceResults overwrites the report metadata and the verdicts of its
	// results after a re-analysis. The record set itself is unchanged.
	ReplaceResults(ctx context.Context, r *domain.Report, results []analysis.ClassificationResult) error

	// Delete removes a report and its results. Returns ErrNotFound if it
	// doesn't exist.
	Delete(ctx context.Context, orgID, id string) error
}

// ListFilter controls pagination and filtering for report lists.
type ListFilter struct {
	Source string
	Limit  int
	Offset int
}

// ResultFilter controls pagination and filtering for a report's results.
type ResultFilter struct {
	Suggestion analysis.Suggestion // empty means all
	Limit      int
	Offset     int
}
