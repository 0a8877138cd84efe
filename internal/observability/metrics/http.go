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

	retrievalTotal       *prometheus.CounterVec
	retrievalHitTotal    *prometheus.CounterVec
	retrievalEmptyTotal  *prometheus.CounterVec
	retrievedChunks      *prometheus.HistogramVec
	retrievalDuration    *prometheus.HistogramVec
	signalFailuresTotal  *prometheus.CounterVec
	crossEncoderOutcomes *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nav",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nav",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nav",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nav",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total completed retrieval requests.",
		},
		[]string{"service"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nav",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total retrieval requests returning at least one chunk.",
		},
		[]string{"service"},
	)
	retrievalEmptyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nav",
			Subsystem: "retrieval",
			Name:      "empty_total",
			Help:      "Total retrieval requests returning no chunks.",
		},
		[]string{"service"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nav",
			Subsystem: "retrieval",
			Name:      "returned_chunks",
			Help:      "Distribution of chunks returned per retrieval request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15},
		},
		[]string{"service"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nav",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	signalFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nav",
			Subsystem: "retrieval",
			Name:      "signal_failures_total",
			Help:      "Total tolerated per-signal search failures.",
		},
		[]string{"service", "signal"},
	)
	crossEncoderOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nav",
			Subsystem: "retrieval",
			Name:      "cross_encoder_total",
			Help:      "Cross-encoder rerank attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalHitTotal,
		retrievalEmptyTotal,
		retrievedChunks,
		retrievalDuration,
		signalFailuresTotal,
		crossEncoderOutcomes,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		retrievalTotal:       retrievalTotal,
		retrievalHitTotal:    retrievalHitTotal,
		retrievalEmptyTotal:  retrievalEmptyTotal,
		retrievedChunks:      retrievedChunks,
		retrievalDuration:    retrievalDuration,
		signalFailuresTotal:  signalFailuresTotal,
		crossEncoderOutcomes: crossEncoderOutcomes,
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

func (m *HTTPServerMetrics) RecordRetrieval(service string, chunkCount int, duration time.Duration) {
	m.retrievalTotal.WithLabelValues(service).Inc()
	m.retrievedChunks.WithLabelValues(service).Observe(float64(chunkCount))
	m.retrievalDuration.WithLabelValues(service).Observe(duration.Seconds())

	if chunkCount > 0 {
		m.retrievalHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.retrievalEmptyTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordSignalFailure(service, signal string) {
	if signal == "" {
		signal = "unknown"
	}
	m.signalFailuresTotal.WithLabelValues(service, signal).Inc()
}

func (m *HTTPServerMetrics) RecordCrossEncoder(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.crossEncoderOutcomes.WithLabelValues(service, outcome).Inc()
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
