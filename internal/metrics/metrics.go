// Package metrics declares the prometheus collectors served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_processed_total",
		Help: "Total simulation ticks processed.",
	})

	TradesExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_trades_executed_total",
		Help: "Total trades executed, by symbol.",
	}, []string{"symbol"})

	NewsEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_news_events_total",
		Help: "Total news events processed, by category.",
	}, []string{"category"})

	OrdersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_orders_submitted_total",
		Help: "Total orders submitted, by order type.",
	}, []string{"type"})

	CurrentTick = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_current_tick",
		Help: "Current simulation tick.",
	})

	CommodityPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_commodity_price",
		Help: "Current commodity price, by symbol.",
	}, []string{"symbol"})
)

func init() {
	prometheus.MustRegister(
		TicksProcessed,
		TradesExecuted,
		NewsEvents,
		OrdersSubmitted,
		CurrentTick,
		CommodityPrice,
	)
}
