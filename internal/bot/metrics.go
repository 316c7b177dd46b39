package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах

// ============ Метрики латентности ============

// BarToSignalLatency - время от закрытия бара до решения по сигналу
var BarToSignalLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "bar_to_signal_latency_ms",
		Help:      "Latency from bar close to signal decision in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	},
	[]string{"pair"},
)

// OrderExecutionLatency - время исполнения парного ордера у брокера
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "order_execution_latency_ms",
		Help:      "Time to execute pair order at broker in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000, 10000},
	},
	[]string{"broker", "action"}, // action: enter, exit, rollback
)

// ============ Счётчики событий ============

// TicksProcessed - количество принятых тиков
var TicksProcessed = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "feed",
		Name:      "ticks_total",
		Help:      "Total number of ticks received",
	},
)

// BarsEmitted - количество построенных баров
var BarsEmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "feed",
		Name:      "bars_total",
		Help:      "Total number of bars emitted",
	},
	[]string{"symbol"},
)

// TradesTotal - общее количество сделок
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "trades_total",
		Help:      "Total number of trades",
	},
	[]string{"pair", "result"}, // result: target, stop_loss, square_off, rollback
)

// SignalsGenerated - сигналы по типам
var SignalsGenerated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "signals_total",
		Help:      "Signals generated by action",
	},
	[]string{"pair", "action"}, // enter, exit, hold
)

// ============ Метрики состояния ============

// DayPnl - реализованный P&L текущего дня
var DayPnl = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "portfolio",
		Name:      "day_pnl",
		Help:      "Realized PnL for the current trading day",
	},
)

// OpenPositions - количество открытых парных позиций
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "portfolio",
		Name:      "open_positions",
		Help:      "Current number of open pair positions",
	},
)

// PairsByState - пары по состояниям жизненного цикла
var PairsByState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "pairs_by_state",
		Help:      "Number of trading pairs by lifecycle state",
	},
	[]string{"state"}, // ready, holding, entering, exiting, paused, error
)

// PairZScore - текущий z-score пары
var PairZScore = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "pair_zscore",
		Help:      "Current z-score of the pair spread",
	},
	[]string{"pair"},
)

// GuardianHealth - светофор стража (0=GREEN, 1=YELLOW, 2=RED)
var GuardianHealth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "guardian",
		Name:      "health",
		Help:      "Guardian health status (0=green, 1=yellow, 2=red)",
	},
	[]string{"pair"},
)

// TickerConnected - статус соединения с потоком данных
var TickerConnected = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "statarb",
		Subsystem: "feed",
		Name:      "ticker_connected",
		Help:      "Market data stream status (1=connected, 0=disconnected)",
	},
)

// ============ Метрики производительности ============

// BufferOverflows - переполнения буферов каналов
var BufferOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statarb",
		Subsystem: "trading",
		Name:      "buffer_overflows_total",
		Help:      "Number of channel buffer overflows (events dropped)",
	},
	[]string{"buffer"}, // bars, alerts
)

// ============ Вспомогательные функции ============

// RecordTrade записывает закрытую сделку
func RecordTrade(pair, result string, pnl float64) {
	TradesTotal.WithLabelValues(pair, result).Inc()
}

// RecordSignal записывает решение машины сигналов
func RecordSignal(pair, action string) {
	SignalsGenerated.WithLabelValues(pair, action).Inc()
}

// RecordGuardianHealth переводит светофор в числовой gauge
func RecordGuardianHealth(pair, status string) {
	var v float64
	switch status {
	case "YELLOW":
		v = 1
	case "RED":
		v = 2
	}
	GuardianHealth.WithLabelValues(pair).Set(v)
}

// RecordBufferOverflow записывает переполнение буфера
func RecordBufferOverflow(bufferName string) {
	BufferOverflows.WithLabelValues(bufferName).Inc()
}
