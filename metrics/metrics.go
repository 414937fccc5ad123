// Package metrics holds the Prometheus instrumentation for the UDT engine.
// Callers register a Registry into their own prometheus.Registerer; nothing
// here touches the default global registry, so multiple engines can coexist
// in one process and tests don't collide with each other.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the set of collectors one UDT engine instance reports through.
type Registry struct {
	PacketsSent     *prometheus.CounterVec
	PacketsReceived *prometheus.CounterVec
	BytesSent       prometheus.Counter
	BytesReceived   prometheus.Counter
	ActiveSockets   prometheus.Gauge
	Retransmits     prometheus.Counter
	NAKsSent        prometheus.Counter
	NAKsReceived    prometheus.Counter
	RTTMicros       prometheus.Histogram
	DecodeErrors    prometheus.Counter
}

// NewRegistry builds a Registry and registers every collector into reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udt_packets_sent_total",
			Help: "UDT packets sent, labeled by packet type.",
		}, []string{"type"}),
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udt_packets_received_total",
			Help: "UDT packets received, labeled by packet type.",
		}, []string{"type"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udt_bytes_sent_total",
			Help: "Payload bytes sent across all sockets.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udt_bytes_received_total",
			Help: "Payload bytes received across all sockets.",
		}),
		ActiveSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "udt_active_sockets",
			Help: "Number of sockets currently registered (not CLOSED).",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udt_retransmits_total",
			Help: "Data packets retransmitted due to a NAK or a retransmission timeout.",
		}),
		NAKsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udt_naks_sent_total",
			Help: "NAK control packets sent.",
		}),
		NAKsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udt_naks_received_total",
			Help: "NAK control packets received.",
		}),
		RTTMicros: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "udt_rtt_microseconds",
			Help:    "Measured RTT samples, in microseconds.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 14), // 100us .. ~0.8s
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udt_decode_errors_total",
			Help: "Datagrams dropped because they failed to decode as a UDT packet.",
		}),
	}

	reg.MustRegister(
		m.PacketsSent, m.PacketsReceived, m.BytesSent, m.BytesReceived,
		m.ActiveSockets, m.Retransmits, m.NAKsSent, m.NAKsReceived,
		m.RTTMicros, m.DecodeErrors,
	)
	return m
}

// Noop returns a Registry backed by a private registry, for callers (tests,
// mostly) that want the counting behavior without wiring a real exporter.
func Noop() *Registry {
	return NewRegistry(prometheus.NewRegistry())
}
