// Package metrics exposes Prometheus counters the engine updates while
// trading. Served at /metrics by the web server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Signals evaluated, by outcome",
		},
		[]string{"signal"},
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders placed",
		},
		[]string{"mode", "side", "type"},
	)

	mtxCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_closes_total",
			Help: "Positions closed, by reason and side",
		},
		[]string{"reason", "side"},
	)

	mtxRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_realized_pnl",
			Help: "Cumulative realized PnL across all symbols",
		},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_open_positions",
			Help: "Number of currently open positions",
		},
	)

	mtxTickErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_tick_errors_total",
			Help: "Per-symbol tick steps that ended in an error",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxSignals,
		mtxOrders,
		mtxCloses,
		mtxRealizedPnL,
		mtxOpenPositions,
		mtxTickErrors,
	)
}

func Signal(signal string) {
	mtxSignals.WithLabelValues(signal).Inc()
}

func Order(mode, side, orderType string) {
	mtxOrders.WithLabelValues(mode, side, orderType).Inc()
}

func Close(reason, side string) {
	mtxCloses.WithLabelValues(reason, side).Inc()
}

func SetRealizedPnL(v float64) {
	mtxRealizedPnL.Set(v)
}

func SetOpenPositions(n int) {
	mtxOpenPositions.Set(float64(n))
}

func TickError() {
	mtxTickErrors.Inc()
}
