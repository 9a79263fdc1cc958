// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentdash_remote_calls_total",
		Help: "Calls to the internship data service by operation and outcome.",
	}, []string{"op", "outcome"})

	RemoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studentdash_remote_call_seconds",
		Help:    "Latency of calls to the internship data service.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// DegradedReads counts counter reads that failed and were replaced by their zero value.
	DegradedReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentdash_degraded_reads_total",
		Help: "Attendance counter reads that fell back to a default value.",
	}, []string{"counter"})

	SupersededComputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studentdash_superseded_computations_total",
		Help: "Counter computations discarded because a newer trigger replaced them.",
	})

	DashboardBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentdash_dashboard_builds_total",
		Help: "Dashboard view builds by outcome.",
	}, []string{"outcome"})

	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentdash_mutations_total",
		Help: "Attendance and report mutations by kind and outcome.",
	}, []string{"kind", "outcome"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentdash_cache_lookups_total",
		Help: "Redis counter cache lookups by key kind and result.",
	}, []string{"kind", "result"})
)

// ObserveRemote records one data service call. absent marks a successful call that
// found no record.
func ObserveRemote(op string, started time.Time, absent bool, err error) {
	RemoteLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case absent:
		outcome = "absent"
	}
	RemoteCalls.WithLabelValues(op, outcome).Inc()
}
