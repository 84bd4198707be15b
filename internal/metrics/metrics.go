// Package metrics exposes Prometheus collectors for the backtester's order
// flow, positions, equity and slippage.
//
// Grounded on evdnx-gots/metrics/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtester_orders_submitted_total",
			Help: "Total number of orders submitted to the risk manager, by strategy.",
		},
		[]string{"strategy"},
	)

	OrdersFilled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtester_orders_filled_total",
			Help: "Total number of orders filled, by strategy.",
		},
		[]string{"strategy"},
	)

	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtester_orders_rejected_total",
			Help: "Total number of orders vetoed by the risk manager, by strategy.",
		},
		[]string{"strategy"},
	)

	PositionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backtester_positions_open",
			Help: "Current signed position size per ticker.",
		},
		[]string{"ticker"},
	)

	EquityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtester_equity",
			Help: "Current total portfolio equity.",
		},
	)

	SlippageApplied = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backtester_slippage_fraction",
			Help:    "Slippage fraction applied to MKT fills.",
			Buckets: prometheus.LinearBuckets(0, 0.005, 11),
		},
	)
)

func init() {
	prometheus.MustRegister(OrdersSubmitted, OrdersFilled, OrdersRejected, PositionsOpen, EquityGauge, SlippageApplied)
}
