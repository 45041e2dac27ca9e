package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 报名状态流转次数
	EnrollmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_transitions_total",
			Help: "Enrollment lifecycle transitions by kind",
		},
		[]string{"transition"},
	)

	// 访问判定结果
	AccessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_access_decisions_total",
			Help: "Course and lesson access decisions by scope and reason",
		},
		[]string{"scope", "reason"},
	)

	ExpiredEnrollments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollment_sweep_expired_total",
			Help: "Enrollments transitioned to EXPIRED by the sweeper",
		},
	)

	NotificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollment_notification_failures_total",
			Help: "Enrollment notifications that failed to dispatch",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			EnrollmentTransitions,
			AccessDecisions,
			ExpiredEnrollments,
			NotificationFailures,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
