// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts HTTP requests by route, method and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// ApplicationSubmissionsTotal counts submissions by result (created, duplicate, job_not_found, ...).
	ApplicationSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_submissions_total",
			Help: "Total number of application submissions by result.",
		},
		[]string{"result"},
	)

	// ApplicationWithdrawalsTotal counts withdrawals by acting party and outcome.
	ApplicationWithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_withdrawals_total",
			Help: "Total number of application withdrawals by party and outcome.",
		},
		[]string{"party", "outcome"},
	)

	// ResumeUploadsTotal counts résumé uploads to the blob store.
	ResumeUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_uploads_total",
			Help: "Total number of resume uploads by status.",
		},
		[]string{"status"},
	)

	// LedgerWriteConflictsTotal counts compare-and-swap writes that lost a race and were retried.
	LedgerWriteConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_write_conflicts_total",
			Help: "Total number of application writes that hit a concurrent modification.",
		},
	)

	// OrphanBlobsPending is the number of blobs waiting for deletion.
	OrphanBlobsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orphan_blobs_pending",
			Help: "Number of uploaded blobs queued for deletion.",
		},
	)

	// Applications is the number of stored applications per withdrawal state.
	Applications = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "applications",
			Help: "Number of stored applications by withdrawal state.",
		},
		[]string{"state"},
	)

	// IsLeader marks whether this node currently runs background maintenance.
	IsLeader = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "is_leader",
			Help: "Is this node currently the leader. 1 if leader, 0 otherwise.",
		},
		[]string{"node_id"},
	)

	// ClusterNodes is the number of API nodes registered in etcd, as seen by this node.
	ClusterNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cluster_nodes",
			Help: "Number of API nodes currently registered.",
		},
	)
)
