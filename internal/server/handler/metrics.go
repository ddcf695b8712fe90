package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmerrifield20/vendorguard/internal/analysis"
	"github.com/jmerrifield20/vendorguard/internal/risk"
)

var (
	vgRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorguard_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	vgRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vendorguard_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	vgAnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorguard_analyses_total",
		Help: "Completed analyses by recommendation and outcome (success or fallback).",
	}, []string{"recommendation", "outcome"})

	vgAnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vendorguard_analysis_duration_seconds",
		Help:    "End-to-end analysis duration in seconds, model call included.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	vgAnalysisFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorguard_analysis_failures_total",
		Help: "Analyses that fell back, by failure kind.",
	}, []string{"kind"})

	vgAuditWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vendorguard_audit_write_failures_total",
		Help: "Audit log appends that failed.",
	})

	vgHistoryReports = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vendorguard_history_reports",
		Help: "Reports currently held in the session history.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		vgRequestsTotal.WithLabelValues(method, path, status).Inc()
		vgRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// AnalysisHooks returns analysis.Hooks that feed the analysis metrics.
func AnalysisHooks() analysis.Hooks {
	return analysis.Hooks{
		Completed: RecordAnalysis,
		Failed:    RecordAnalysisFailure,
	}
}

// RecordAnalysis records a finished analysis.
func RecordAnalysis(r risk.Report, elapsed time.Duration) {
	outcome := "success"
	if r.IsFallback() {
		outcome = "fallback"
	}
	vgAnalysesTotal.WithLabelValues(string(r.Recommendation), outcome).Inc()
	vgAnalysisDuration.Observe(elapsed.Seconds())
}

// RecordAnalysisFailure records a classified analysis failure.
func RecordAnalysisFailure(kind analysis.Kind) {
	vgAnalysisFailuresTotal.WithLabelValues(string(kind)).Inc()
}

// RecordAuditFailure records a failed audit append.
func RecordAuditFailure() {
	vgAuditWriteFailuresTotal.Inc()
}

// SetHistoryGauge sets the history size gauge.
func SetHistoryGauge(n int) {
	vgHistoryReports.Set(float64(n))
}
