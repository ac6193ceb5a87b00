// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReviewActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_actions_total",
			Help: "Total number of review actions recorded, by action type and level",
		},
		[]string{"action", "level"},
	)

	ClaimConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_claim_conflicts_total",
			Help: "Total number of claim attempts lost to a concurrent claimant",
		},
	)

	OperationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_operations_failed_total",
			Help: "Total number of failed workflow operations, by operation and error code",
		},
		[]string{"operation", "error_code"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "review_operation_duration_seconds",
			Help: "Duration of workflow engine operations in seconds",
		},
		[]string{"operation"},
	)

	IdentifiersMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_identifiers_minted_total",
			Help: "Total number of permanent registration identifiers minted, by prefix",
		},
		[]string{"prefix"},
	)

	EntriesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_entries_swept_total",
			Help: "Total number of queue entries marked overdue by the SLA sweeper",
		},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_notifications_dispatched_total",
			Help: "Total number of notification requests dispatched, by template and status",
		},
		[]string{"template", "status"},
	)
)
