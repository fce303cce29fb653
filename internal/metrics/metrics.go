package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	// Capture / decode counters
	FramesPulled      atomic.Uint64
	PullTimeouts      atomic.Uint64
	PullErrors        atomic.Uint64
	FramesDecoded     atomic.Uint64
	DecodeErrors      atomic.Uint64
	UnsupportedFrames atomic.Uint64

	// Dispatch counters
	FramesDispatched      atomic.Uint64
	SinkFramesSent        atomic.Uint64
	SinkFramesDropped     atomic.Uint64
	RecorderFramesSent    atomic.Uint64
	RecorderFramesDropped atomic.Uint64

	// Latency tracking
	DecodeLatencyMs atomic.Uint64 // Last decode+overlay latency in ms
	CycleLatencyMs  atomic.Uint64 // Last full cycle latency in ms

	// Viewer tracking
	ActiveClients atomic.Uint64
	TotalClients  atomic.Uint64

	// Recording state
	RecordingActive atomic.Uint64 // 0 = inactive, 1 = active
	RecordingBytes  atomic.Uint64
	RecordingFrames atomic.Uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	counters := []struct {
		name string
		help string
		load func() uint64
	}{
		{"camfeed_frames_pulled_total", "Total raw frames pulled from the capture source", m.FramesPulled.Load},
		{"camfeed_pull_timeouts_total", "Total pulls that timed out waiting for a frame", m.PullTimeouts.Load},
		{"camfeed_pull_errors_total", "Total pulls that failed with an I/O error", m.PullErrors.Load},
		{"camfeed_frames_decoded_total", "Total frames normalized to planar form", m.FramesDecoded.Load},
		{"camfeed_decode_errors_total", "Total frames dropped on decode failure", m.DecodeErrors.Load},
		{"camfeed_unsupported_frames_total", "Total frames skipped for an unrecognized encoding", m.UnsupportedFrames.Load},
		{"camfeed_frames_dispatched_total", "Total normalized frames handed to sinks", m.FramesDispatched.Load},
		{"camfeed_sink_frames_sent_total", "Total frames accepted by transport clients", m.SinkFramesSent.Load},
		{"camfeed_sink_frames_dropped_total", "Total frames dropped by full transport queues", m.SinkFramesDropped.Load},
		{"camfeed_recorder_frames_sent_total", "Total frames written by the recorder", m.RecorderFramesSent.Load},
		{"camfeed_recorder_frames_dropped_total", "Total frames dropped by the recorder queue", m.RecorderFramesDropped.Load},
		{"camfeed_decode_latency_ms", "Decode plus overlay latency in milliseconds", m.DecodeLatencyMs.Load},
		{"camfeed_cycle_latency_ms", "Full pull-to-dispatch cycle latency in milliseconds", m.CycleLatencyMs.Load},
		{"camfeed_active_clients", "Number of connected transport clients", m.ActiveClients.Load},
		{"camfeed_total_clients", "Total transport clients ever connected", m.TotalClients.Load},
		{"camfeed_recording_active", "Recording active (0=inactive, 1=active)", m.RecordingActive.Load},
		{"camfeed_recording_bytes", "Total bytes written to the current recording", m.RecordingBytes.Load},
		{"camfeed_recording_frames", "Total frames written to the current recording", m.RecordingFrames.Load},
	}

	for _, c := range counters {
		load := c.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(load()) },
		))
	}
}

// UpdateDecodeLatency records the latency of one decode+overlay pass
func (m *Metrics) UpdateDecodeLatency(d time.Duration) {
	m.DecodeLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateCycleLatency records the latency of one full pipeline cycle
func (m *Metrics) UpdateCycleLatency(d time.Duration) {
	m.CycleLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
