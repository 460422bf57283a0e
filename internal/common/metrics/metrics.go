// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_turns_total",
			Help: "Total number of conversation turns processed, by resulting status",
		},
		[]string{"status"},
	)

	TurnFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_turn_failures_total",
			Help: "Total number of turns aborted on infrastructure errors",
		},
		[]string{"error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "conversation_turn_duration_seconds",
			Help: "Duration of turn processing in seconds",
		},
		[]string{"status"},
	)

	OrdersFinalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Total number of orders confirmed by customers",
		},
	)

	OrderTotals = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_total_brl",
			Help:    "Finalized order totals in BRL",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		},
	)

	ParserEmptyResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_parser_empty_results_total",
			Help: "Utterances in which the parser recognized no products",
		},
	)
)
