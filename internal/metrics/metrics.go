package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imagehub/storage-pipeline/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EventsAccepted    prometheus.Counter
	EventsMalformed   prometheus.Counter
	EventsUnmatched   prometheus.Counter
	RecordsProcessed  prometheus.Counter
	ProcessingFailed  *prometheus.CounterVec
	MessagesRejected  prometheus.Counter
	MailsSent         *prometheus.CounterVec
	MailsDropped      *prometheus.CounterVec
	ProcessingLatency prometheus.Histogram
	QueueDepthReady   prometheus.Gauge
	QueueDepthFlight  prometheus.Gauge
	QueueDepthDead    prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_accepted_total",
			Help: "Total number of raw records normalized into domain events.",
		}),
		EventsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_malformed_total",
			Help: "Total number of raw records dropped as malformed.",
		}),
		EventsUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_unmatched_total",
			Help: "Total number of events that matched no subscription.",
		}),
		RecordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "records_processed_total",
			Help: "Total number of records successfully persisted.",
		}),
		ProcessingFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processing_failed_total",
			Help: "Total number of failed processing attempts, by reason.",
		}, []string{"reason"}),
		MessagesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_rejected_total",
			Help: "Total number of dead-lettered messages turned into rejection notices.",
		}),
		MailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mails_sent_total",
			Help: "Total number of notification mails handed to the transport.",
		}, []string{"kind"}),
		MailsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mails_dropped_total",
			Help: "Total number of notification mails dropped after a send or render failure.",
		}, []string{"kind"}),
		ProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "record_processing_seconds",
			Help:    "Per-message processing latency from dequeue to acknowledge.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepthReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_ready",
			Help: "Current number of visible messages on the work queue.",
		}),
		QueueDepthFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_inflight",
			Help: "Current number of in-flight (delivered, unsettled) messages.",
		}),
		QueueDepthDead: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_dead",
			Help: "Current number of messages waiting on the dead-letter queue.",
		}),
	}

	reg.MustRegister(
		m.EventsAccepted,
		m.EventsMalformed,
		m.EventsUnmatched,
		m.RecordsProcessed,
		m.ProcessingFailed,
		m.MessagesRejected,
		m.MailsSent,
		m.MailsDropped,
		m.ProcessingLatency,
		m.QueueDepthReady,
		m.QueueDepthFlight,
		m.QueueDepthDead,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so worker.go stays metrics-free.
func (m *Metrics) WorkerHooks() (
	onProcessed func(time.Duration),
	onFailed func(string),
) {
	onProcessed = func(latency time.Duration) {
		m.RecordsProcessed.Inc()
		m.ProcessingLatency.Observe(latency.Seconds())
	}
	onFailed = func(reason string) {
		m.ProcessingFailed.WithLabelValues(reason).Inc()
	}
	return
}

// MailerHooks returns the metric callbacks expected by the mail dispatcher.
func (m *Metrics) MailerHooks() (
	onSent func(domain.TaskKind),
	onDropped func(domain.TaskKind),
) {
	onSent = func(kind domain.TaskKind) {
		m.MailsSent.WithLabelValues(string(kind)).Inc()
	}
	onDropped = func(kind domain.TaskKind) {
		m.MailsDropped.WithLabelValues(string(kind)).Inc()
	}
	return
}
