// Package metrics exposes table activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"taixiu-dealer/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements ports.GameMetrics.
type Metrics struct {
	RoundsCommitted     prometheus.Counter
	ChipsWagered        prometheus.Counter
	RoundsSettled       *prometheus.CounterVec
	ChipsPaidOut        prometheus.Counter
	SettleLatency       prometheus.Histogram
	CommentaryFallbacks *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	ActiveEngines       prometheus.Gauge
	OpenConnections     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RoundsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_committed_total",
			Help:      "Total number of committed rounds",
		}),
		ChipsWagered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chips_wagered_total",
			Help:      "Total chips staked on committed rounds",
		}),
		RoundsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_settled_total",
			Help:      "Total number of settled rounds by outcome and winning side",
		}, []string{"outcome", "side"}),
		ChipsPaidOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chips_paid_out_total",
			Help:      "Total chips paid out on winning rounds",
		}),
		SettleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settle_latency_seconds",
			Help:      "Time from commit to settlement",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 6),
		}),
		CommentaryFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commentary_fallbacks_total",
			Help:      "Dealer remarks replaced by a fallback line",
		}, []string{"reason"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions started minus sessions ended since process start",
		}),
		ActiveEngines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_engines",
			Help:      "Round engines held in memory",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open WebSocket connections",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RoundsCommitted,
		m.ChipsWagered,
		m.RoundsSettled,
		m.ChipsPaidOut,
		m.SettleLatency,
		m.CommentaryFallbacks,
		m.ActiveSessions,
		m.ActiveEngines,
		m.OpenConnections,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RoundCommitted(stake int64) {
	m.RoundsCommitted.Inc()
	m.ChipsWagered.Add(float64(stake))
}

func (m *Metrics) RoundSettled(s domain.Settlement, elapsed time.Duration) {
	outcome := "loss"
	if s.Won {
		outcome = "win"
		m.ChipsPaidOut.Add(float64(s.Payout))
	}
	m.RoundsSettled.WithLabelValues(outcome, string(s.Result.Side)).Inc()
	m.SettleLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) CommentaryFallback(reason string) {
	m.CommentaryFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	m.ActiveSessions.Dec()
}

// SetActiveEngines records how many engines are in memory.
func (m *Metrics) SetActiveEngines(n int) {
	m.ActiveEngines.Set(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	m.OpenConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.OpenConnections.Dec()
}
