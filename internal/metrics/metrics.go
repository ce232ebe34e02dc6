// Package metrics holds the Prometheus instruments for a sync run.  All
// collectors are registered with the global registry.  A one-shot CLI has
// no scrape endpoint, so Export writes the registry to a node-exporter
// textfile when the operator configures metrics_file.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DumpBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncee_dump_bytes",
			Help: "Size of the last raw dump fetched, per resource kind.",
		}, []string{"kind"})

	FilesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncee_files_written_total",
			Help: "Cumulative number of resource files written.",
		}, []string{"kind"})

	ArchivesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncee_archives_total",
			Help: "Cumulative number of site directories moved into an archive slot.",
		}, []string{"kind"})

	EmptyResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncee_empty_results_total",
			Help: "Cumulative number of fetches that yielded no records.",
		}, []string{"kind"})

	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncee_fetch_errors_total",
			Help: "Cumulative number of failed remote fetches.",
		}, []string{"kind"})

	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncee_last_run_timestamp_seconds",
			Help: "Unix time the last sync run finished.",
		})
)

func init() {
	prometheus.MustRegister(
		DumpBytes,
		FilesWrittenTotal,
		ArchivesTotal,
		EmptyResultsTotal,
		FetchErrorsTotal,
		LastRunTimestamp,
	)
}

// Export stamps LastRunTimestamp and writes the default registry to path
// in text exposition format.
func Export(path string) error {
	LastRunTimestamp.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
