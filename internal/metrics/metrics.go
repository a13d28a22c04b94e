package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame analysis counters
	FramesAnalyzed  atomic.Uint64
	FramesSimulated atomic.Uint64
	BatchRequests   atomic.Uint64
	BatchItems      atomic.Uint64

	// Transcription counters
	Transcriptions          atomic.Uint64
	TranscriptionsSimulated atomic.Uint64

	// Error counters
	DecodeErrors    atomic.Uint64
	InferenceErrors atomic.Uint64
	TimeoutErrors   atomic.Uint64

	// Latency tracking (last observed, milliseconds)
	AnalyzeLatencyMs    atomic.Uint64
	TranscribeLatencyMs atomic.Uint64

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

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() uint64
	}{
		{
			"moderation_frames_analyzed_total",
			"Total frames analyzed (real backend)",
			m.FramesAnalyzed.Load,
		},
		{
			"moderation_frames_simulated_total",
			"Total frame results produced in simulated mode",
			m.FramesSimulated.Load,
		},
		{
			"moderation_batch_requests_total",
			"Total batch analysis requests",
			m.BatchRequests.Load,
		},
		{
			"moderation_batch_items_total",
			"Total items processed across all batches",
			m.BatchItems.Load,
		},
		{
			"moderation_transcriptions_total",
			"Total audio clips transcribed (real backend)",
			m.Transcriptions.Load,
		},
		{
			"moderation_transcriptions_simulated_total",
			"Total transcripts produced in simulated mode",
			m.TranscriptionsSimulated.Load,
		},
		{
			"moderation_decode_errors_total",
			"Total inputs rejected as undecodable",
			m.DecodeErrors.Load,
		},
		{
			"moderation_inference_errors_total",
			"Total backend inference failures",
			m.InferenceErrors.Load,
		},
		{
			"moderation_timeout_errors_total",
			"Total per-item inference timeouts",
			m.TimeoutErrors.Load,
		},
		{
			"moderation_analyze_latency_ms",
			"Last frame analysis latency in milliseconds",
			m.AnalyzeLatencyMs.Load,
		},
		{
			"moderation_transcribe_latency_ms",
			"Last transcription latency in milliseconds",
			m.TranscribeLatencyMs.Load,
		},
	}

	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}
}

// UpdateAnalyzeLatency records the latency of one frame analysis
func (m *Metrics) UpdateAnalyzeLatency(d time.Duration) {
	m.AnalyzeLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateTranscribeLatency records the latency of one transcription
func (m *Metrics) UpdateTranscribeLatency(d time.Duration) {
	m.TranscribeLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	http.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, nil)
}
