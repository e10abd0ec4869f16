// Package metrics exposes chat server counters for prometheus scraping.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Connections   prometheus.Gauge
	Messages      *prometheus.CounterVec
	PollEvents    *prometheus.CounterVec
	EventErrors   *prometheus.CounterVec
	DroppedFrames prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hrchat",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrchat",
			Name:      "messages_total",
			Help:      "Messages persisted and broadcast, by room and author role.",
		}, []string{"room", "role"}),
		PollEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrchat",
			Name:      "poll_events_total",
			Help:      "Accepted poll operations, by room and operation.",
		}, []string{"room", "op"}),
		EventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrchat",
			Name:      "event_errors_total",
			Help:      "Client events rejected with an error frame, by event type.",
		}, []string{"event"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrchat",
			Name:      "dropped_frames_total",
			Help:      "Frames that could not be queued for a slow member.",
		}),
	}
	reg.MustRegister(m.Connections, m.Messages, m.PollEvents, m.EventErrors, m.DroppedFrames)
	return m
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) Message(room, role string) {
	if m != nil {
		m.Messages.WithLabelValues(room, role).Inc()
	}
}

func (m *Metrics) Poll(room, op string) {
	if m != nil {
		m.PollEvents.WithLabelValues(room, op).Inc()
	}
}

func (m *Metrics) EventError(event string) {
	if m != nil {
		m.EventErrors.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Dropped(n int) {
	if m != nil && n > 0 {
		m.DroppedFrames.Add(float64(n))
	}
}
