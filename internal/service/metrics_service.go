package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decision and cleanup result labels.
const (
	MetricResultSuccess  = "success"
	MetricResultNotFound = "not_found"
	MetricResultInvalid  = "invalid"
	MetricResultError    = "error"
	MetricResultDropped  = "dead_letter"

	CleanupFileDeleted = "deleted"
	CleanupFileMissing = "missing"
	CleanupFileFailed  = "failed"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface and the task workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	lockWait        prometheus.Histogram
	cleanupFiles    *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_decisions_total",
		Help: "Reviewer decisions by outcome and result",
	}, []string{"outcome", "result"})

	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "task_lock_wait_seconds",
		Help:    "Time spent waiting for the per-user task lock",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	cleanupFiles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_cleanup_files_total",
		Help: "Evidence files processed while purging rejected tasks",
	}, []string{"result"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_notifications_total",
		Help: "Notification events handed to the side channel",
	}, []string{"event", "result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, decisions, lockWait, cleanupFiles, notifications, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		decisions:       decisions,
		lockWait:        lockWait,
		cleanupFiles:    cleanupFiles,
		notifications:   notifications,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordDecision counts one decide call.
func (m *MetricsService) RecordDecision(outcome, result string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome, result).Inc()
}

// ObserveLockWait records how long a caller waited for a subject lock.
func (m *MetricsService) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

// RecordCleanupFile counts one evidence file visited by the cleanup agent.
func (m *MetricsService) RecordCleanupFile(result string) {
	if m == nil {
		return
	}
	m.cleanupFiles.WithLabelValues(result).Inc()
}

// RecordNotification counts one notification hand-off.
func (m *MetricsService) RecordNotification(event, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, result).Inc()
}
