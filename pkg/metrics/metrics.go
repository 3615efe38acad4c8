package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_reconciliations_total",
			Help: "Reaction notifications by outcome (filtered, ok, error).",
		},
		[]string{"outcome"},
	)
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poll_reconcile_duration_seconds",
			Help:    "Time spent reconciling one poll message.",
			Buckets: prometheus.DefBuckets,
		},
	)
	CorrectiveRemovals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_corrective_removals_total",
			Help: "Reactions removed to keep one selection per participant.",
		},
		[]string{"result"},
	)
	AuditPosts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_audit_posts_total",
			Help: "Audit log lines posted to poll threads.",
		},
		[]string{"result"},
	)
	AuditThreadsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_audit_threads_created_total",
			Help: "Audit threads created because none was found.",
		},
	)
	CappedReads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_capped_reads_total",
			Help: "Reaction reads that filled the whole page.",
		},
	)
	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_commands_total",
			Help: "Commands handled by name and result.",
		},
		[]string{"command", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		Reconciliations,
		ReconcileDuration,
		CorrectiveRemovals,
		AuditPosts,
		AuditThreadsCreated,
		CappedReads,
		Commands,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Result maps an error to a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
