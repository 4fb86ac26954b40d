// internal/pkg/metricsx/metrics.go
package metricsx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结算平台的全局 Prometheus 指标。
// bootstrap 的 /metrics 端点会把它们一并暴露出去。
var (
	OrdersSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_orders_settled_total",
		Help: "Orders that finished the settlement pipeline, by outcome.",
	}, []string{"outcome"})

	VersionConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_version_conflicts_total",
		Help: "Optimistic version check failures, by resource.",
	}, []string{"resource"})

	RetryExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_retry_exhausted_total",
		Help: "Operations that gave up after the optimistic retry budget.",
	}, []string{"resource"})

	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_compensations_total",
		Help: "Compensation steps executed, by resource and outcome.",
	}, []string{"resource", "outcome"})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_events_processed_total",
		Help: "Events applied by the idempotent processor, by consumer group.",
	}, []string{"group"})

	EventsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_events_deduplicated_total",
		Help: "Replayed events suppressed by the dedup gate, by consumer group.",
	}, []string{"group"})

	OutboxDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_outbox_dispatched_total",
		Help: "Outbox records successfully published to the event bus.",
	})

	DeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_dead_lettered_total",
		Help: "Records pushed to the dead letter topic, by reason.",
	}, []string{"reason"})
)
