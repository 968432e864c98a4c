// Package metrics holds the Prometheus collectors for the pipeline. They
// live on a private registry so tests and multiple binaries never collide
// with the global default one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	// FetchTotal counts calendar fetches by result: ok, transport, structure.
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecocal_fetch_total",
		Help: "Calendar fetch attempts by result.",
	}, []string{"result"})

	// RowsTotal counts parsed calendar rows by outcome: kept, superseded, filtered, skipped.
	RowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecocal_rows_total",
		Help: "Calendar data rows by parse outcome.",
	}, []string{"outcome"})

	// Events is the size of the last built event map per source.
	Events = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ecocal_events",
		Help: "Events in the last built agenda by source.",
	}, []string{"source"})

	// JobRuns counts scheduled job executions.
	JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecocal_job_runs_total",
		Help: "Scheduled job runs by job and result.",
	}, []string{"job", "result"})

	// Delivery counts chat platform calls.
	Delivery = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecocal_delivery_total",
		Help: "Chat platform requests by kind and result.",
	}, []string{"kind", "result"})
)

func init() {
	Registry.MustRegister(
		FetchTotal,
		RowsTotal,
		Events,
		JobRuns,
		Delivery,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Result maps an error onto the "ok"/"error" label pair.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
