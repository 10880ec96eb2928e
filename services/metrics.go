package services

import "github.com/prometheus/client_golang/prometheus"

var (
	issuesReportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_issues_reported_total",
			Help: "Issues reported, by category",
		},
		[]string{"category"},
	)

	statusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_issue_status_transitions_total",
			Help: "Issue status transitions, by target status and trigger",
		},
		[]string{"status", "trigger"},
	)

	writeConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "civic_issue_write_conflicts_total",
			Help: "Optimistic write conflicts that forced an issue command to re-run",
		},
	)

	sideEffectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_side_effect_failures_total",
			Help: "Reputation or event side effects that failed after the issue write landed",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(issuesReportedTotal, statusTransitionsTotal, writeConflictsTotal, sideEffectFailuresTotal)
}
