// Package metrics provides in-process operation counters backed by
// stdlib expvar.
package metrics

import "expvar"

// Operation counters.
var (
	IngestRuns           = expvar.NewInt("storyloom_ingest_runs_total")
	FilesClassified      = expvar.NewInt("storyloom_files_classified_total")
	FilesDegraded        = expvar.NewInt("storyloom_files_degraded_total")
	ProjectsMaterialized = expvar.NewInt("storyloom_projects_materialized_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
