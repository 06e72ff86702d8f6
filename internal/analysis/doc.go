// Package analysis is the search-term classification engine.
//
// One call to Analyze processes one uploaded batch:
//
//	records ─► SplitFeatureWords (per record)
//	        ─► AggregateFeatureWords (batch-wide token stats)
//	        ─► ComputeBaseline (batch totals + dynamic thresholds)
//	        ─► Classify (priority rule cascade, per record)
//	        ─► Summarize (counts + overall metrics)
//
// Everything here is pure and deterministic. A batch's FeatureWords and
// Baseline are private to that call, so independent batches may be analyzed
// from any number of goroutines without locking. The engine never logs and
// never returns an error for well-typed input; the only failure is an invalid
// Params value.
package analysis
