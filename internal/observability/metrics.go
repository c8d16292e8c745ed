package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the task worker and daemon.
type Metrics struct {
	registry      *prometheus.Registry
	Tasks         *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
	StreamChunks  *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	ActiveSession *prometheus.GaugeVec
	TransportErrs *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with worker collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissk_tasks_total",
		Help: "Tasks completed by mode and outcome",
	}, []string{"mode", "outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swissk_task_duration_seconds",
		Help:    "Time from dequeue to result per task",
		Buckets: prometheus.ExponentialBuckets(0.01, 3, 10),
	}, []string{"mode"})

	chunks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissk_stream_chunks_total",
		Help: "Text fragments decoded from generation streams",
	}, []string{"mode"})

	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swissk_queue_depth",
		Help: "Tasks waiting in worker inbound queues",
	})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "swissk_transport_active_sessions",
		Help: "Active daemon sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissk_transport_errors_total",
		Help: "Transport-level errors by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(tasks, durs, chunks, depth, active, trErrors)

	return &Metrics{
		registry:      reg,
		Tasks:         tasks,
		TaskDuration:  durs,
		StreamChunks:  chunks,
		QueueDepth:    depth,
		ActiveSession: active,
		TransportErrs: trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTask records one completed task.
func (m *Metrics) RecordTask(mode, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.Tasks.WithLabelValues(mode, outcome).Inc()
	m.TaskDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// AddChunks counts decoded stream fragments.
func (m *Metrics) AddChunks(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StreamChunks.WithLabelValues(mode).Add(float64(n))
}

// QueueDelta moves the queue depth gauge.
func (m *Metrics) QueueDelta(delta int) {
	if m == nil {
		return
	}
	m.QueueDepth.Add(float64(delta))
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}
