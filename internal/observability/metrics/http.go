package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal           *prometheus.CounterVec
	queryDuration        *prometheus.HistogramVec
	queryRetrievedChunks *prometheus.HistogramVec
	queryConfidence      *prometheus.HistogramVec
	queryNoContextTotal  *prometheus.CounterVec
	hallucinationRisk    *prometheus.CounterVec
	uploadsTotal         *prometheus.CounterVec
	uploadBytes          *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdoc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdoc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragdoc",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdoc",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered retrieval queries.",
		},
		[]string{"service", "endpoint"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdoc",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	queryRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdoc",
			Subsystem: "query",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per answered query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	queryConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdoc",
			Subsystem: "query",
			Name:      "confidence",
			Help:      "Distribution of answer confidence per answered query.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "endpoint"},
	)
	queryNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdoc",
			Subsystem: "query",
			Name:      "no_context_total",
			Help:      "Total queries answered without any retrieved source.",
		},
		[]string{"service", "endpoint"},
	)
	hallucinationRisk := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdoc",
			Subsystem: "query",
			Name:      "hallucination_risk_total",
			Help:      "Total queries flagged as hallucination risk.",
		},
		[]string{"service", "endpoint"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragdoc",
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total accepted document uploads.",
		},
		[]string{"service"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdoc",
			Subsystem: "ingest",
			Name:      "upload_bytes",
			Help:      "Distribution of accepted upload sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryDuration,
		queryRetrievedChunks,
		queryConfidence,
		queryNoContextTotal,
		hallucinationRisk,
		uploadsTotal,
		uploadBytes,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		queryTotal:           queryTotal,
		queryDuration:        queryDuration,
		queryRetrievedChunks: queryRetrievedChunks,
		queryConfidence:      queryConfidence,
		queryNoContextTotal:  queryNoContextTotal,
		hallucinationRisk:    hallucinationRisk,
		uploadsTotal:         uploadsTotal,
		uploadBytes:          uploadBytes,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordQueryObservation captures per-query retrieval quality signals.
func (m *HTTPServerMetrics) RecordQueryObservation(service, endpoint string, sourceCount int, confidence float64, hallucinationRisk bool, duration time.Duration) {
	m.queryTotal.WithLabelValues(service, endpoint).Inc()
	m.queryDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.queryRetrievedChunks.WithLabelValues(service, endpoint).Observe(float64(sourceCount))
	m.queryConfidence.WithLabelValues(service, endpoint).Observe(confidence)

	if sourceCount == 0 {
		m.queryNoContextTotal.WithLabelValues(service, endpoint).Inc()
	}
	if hallucinationRisk {
		m.hallucinationRisk.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordUpload(service string, sizeBytes int64) {
	m.uploadsTotal.WithLabelValues(service).Inc()
	if sizeBytes > 0 {
		m.uploadBytes.WithLabelValues(service).Observe(float64(sizeBytes))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
