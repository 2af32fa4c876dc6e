package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal      *prometheus.CounterVec
	processDuration   *prometheus.HistogramVec
	processInFlight   prometheus.Gauge
	chunksPerDocument *prometheus.HistogramVec
	indexSize         prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdoc",
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdoc",
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragdoc",
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksPerDocument := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdoc",
			Subsystem: "worker",
			Name:      "chunks_per_document",
			Help:      "Distribution of chunks produced per indexed document.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service"},
	)
	indexSize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragdoc",
			Subsystem: "index",
			Name:      "vectors",
			Help:      "Current number of vectors in the flat index.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, chunksPerDocument, indexSize)

	return &WorkerMetrics{
		registry:          registry,
		processTotal:      processTotal,
		processDuration:   processDuration,
		processInFlight:   processInFlight,
		chunksPerDocument: chunksPerDocument,
		indexSize:         indexSize,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveChunks(service string, chunkCount int) {
	if chunkCount <= 0 {
		return
	}
	m.chunksPerDocument.WithLabelValues(service).Observe(float64(chunkCount))
}

func (m *WorkerMetrics) SetIndexSize(size int) {
	m.indexSize.Set(float64(size))
}
