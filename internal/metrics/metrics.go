// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors for the live feed and the simulator endpoints.
type Metrics struct {
	LiveConnections        prometheus.Gauge
	FramesSent             *prometheus.CounterVec
	InboundFrames          *prometheus.CounterVec
	ConversationsSimulated prometheus.Counter
	SimulatorRequests      *prometheus.CounterVec
	SimulatorDuration      *prometheus.HistogramVec
}

// New registers the collectors with reg. Passing a fresh prometheus.NewRegistry()
// keeps tests isolated from the global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "live_connections",
			Help: "Current number of open live-update WebSocket connections",
		}),
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "live_frames_sent_total",
			Help: "Total number of frames written to live-update connections",
		}, []string{"type"}),
		InboundFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "live_inbound_frames_total",
			Help: "Total number of frames received from live-update connections",
		}, []string{"result"}),
		ConversationsSimulated: factory.NewCounter(prometheus.CounterOpts{
			Name: "live_conversations_simulated_total",
			Help: "Total number of synthetic conversations appended by the live simulation",
		}),
		SimulatorRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_simulator_requests_total",
			Help: "Total number of simulator API requests",
		}, []string{"endpoint", "status"}),
		SimulatorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_simulator_request_duration_seconds",
			Help:    "Time taken to serve simulator API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}
