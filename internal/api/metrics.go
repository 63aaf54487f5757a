package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aurora_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aurora_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	signInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aurora_sign_ins_total",
		Help: "Total successful sign-ins by auth type.",
	}, []string{"auth_type"})

	notificationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aurora_notifications_created_total",
		Help: "Total notifications created.",
	})
)

// PrometheusMiddleware records per-request counters and latency histograms.
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

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RecordSignIn bumps the sign-in counter for the given auth type.
func RecordSignIn(authType string) {
	signInsTotal.WithLabelValues(authType).Inc()
}

// RecordNotificationCreated bumps the created-notifications counter.
func RecordNotificationCreated() {
	notificationsCreatedTotal.Inc()
}
