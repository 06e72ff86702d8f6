// Package report implements the lifecycle of analyzed search-term reports.
//
// The service validates incoming batches, runs the analysis engine, and
// persists the report together with one classification result per input
// record. Stored records can be re-analyzed with different params later.
// It depends on repository interfaces defined in this package and should
// never import from api/.
//
// The Postgres implementation lives in repository/postgres/.
package report
