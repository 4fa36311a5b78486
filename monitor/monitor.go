// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers  prometheus.Gauge
	ActiveRooms    prometheus.Gauge
	ActiveSessions prometheus.Gauge
	EventsReceived prometheus.Counter
	EventLatency   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of in-progress match sessions",
		}),
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of realtime events received",
		}),
		EventLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_latency_seconds",
			Help:      "Realtime event processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.ActiveSessions,
		m.EventsReceived,
		m.EventLatency,
	)

	return m
}

type Monitor struct {
	metrics   *Metrics
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

// StartServer exposes /metrics on its own listener.
func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	mux.Handle("/debug/vars", expvar.Handler())

	go http.ListenAndServe(addr, mux)
}

// Nil-safe helpers so callers can run without a monitor wired in.

func (m *Monitor) IncOnlinePlayers() {
	if m != nil {
		m.metrics.OnlinePlayers.Inc()
	}
}

func (m *Monitor) DecOnlinePlayers() {
	if m != nil {
		m.metrics.OnlinePlayers.Dec()
	}
}

func (m *Monitor) SetActiveRooms(count int) {
	if m != nil {
		m.metrics.ActiveRooms.Set(float64(count))
	}
}

func (m *Monitor) SetActiveSessions(count int) {
	if m != nil {
		m.metrics.ActiveSessions.Set(float64(count))
	}
}

func (m *Monitor) IncEventsReceived() {
	if m != nil {
		m.metrics.EventsReceived.Inc()
	}
}

func (m *Monitor) ObserveEventLatency(duration time.Duration) {
	if m != nil {
		m.metrics.EventLatency.Observe(duration.Seconds())
	}
}
