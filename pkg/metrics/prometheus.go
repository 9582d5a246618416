package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the domain Metrics interface using Prometheus.
type Recorder struct {
	ticksTotal    *prometheus.CounterVec
	ticksDropped  *prometheus.CounterVec
	candlesClosed *prometheus.CounterVec
	reconnects    prometheus.Counter
	heartbeatRTT  prometheus.Histogram
	signalsArmed  *prometheus.CounterVec
	signalsDone   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdengine_ticks_total",
				Help: "Ticks received per symbol",
			},
			[]string{"symbol"},
		),
		ticksDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdengine_ticks_dropped_total",
				Help: "Ticks dropped by saturated per-instrument queues",
			},
			[]string{"symbol"},
		),
		candlesClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdengine_candles_closed_total",
				Help: "Closed candles per symbol and series",
			},
			[]string{"symbol", "series"},
		),
		reconnects: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mdengine_reconnects_total",
				Help: "Stream reconnect attempts scheduled",
			},
		),
		heartbeatRTT: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mdengine_heartbeat_rtt_seconds",
				Help:    "Round trip time of heartbeat probes",
				Buckets: prometheus.DefBuckets,
			},
		),
		signalsArmed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdengine_signals_pending_total",
				Help: "Pending signals armed per source key",
			},
			[]string{"key"},
		),
		signalsDone: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdengine_signals_resolved_total",
				Help: "Resolved signals per source key and result",
			},
			[]string{"key", "result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdengine_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
	}
}

func (r *Recorder) RecordTick(symbol string) {
	r.ticksTotal.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordTickDropped(symbol string) {
	r.ticksDropped.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordCandleClosed(symbol, series string) {
	r.candlesClosed.WithLabelValues(symbol, series).Inc()
}

func (r *Recorder) RecordReconnect() {
	r.reconnects.Inc()
}

func (r *Recorder) RecordHeartbeatRTT(seconds float64) {
	r.heartbeatRTT.Observe(seconds)
}

func (r *Recorder) RecordSignalPending(key string) {
	r.signalsArmed.WithLabelValues(key).Inc()
}

func (r *Recorder) RecordSignalResolved(key string, success bool) {
	result := "loss"
	if success {
		result = "win"
	}
	r.signalsDone.WithLabelValues(key, result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
