package monitoring

import (
	"strconv"
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

	// IngestCounter 转写稿接收结果计数 (created / appended / rejected)
	IngestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_ingest_total",
			Help: "Transcript ingestion outcomes",
		},
		[]string{"action"},
	)

	// SummaryJobCounter 摘要任务结果计数 (completed / failed)
	SummaryJobCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_summary_jobs_total",
			Help: "Lesson summary generation outcomes",
		},
		[]string{"result"},
	)

	// TutorMessageCounter 辅导消息上下行计数
	TutorMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_messages_total",
			Help: "Tutor chat messages by type and direction",
		},
		[]string{"type", "direction"},
	)

	// TutorOnlineUsers 当前在线的 WebSocket 连接数
	TutorOnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutor_online_users",
			Help: "Currently connected tutor chat clients",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(IngestCounter)
	prometheus.MustRegister(SummaryJobCounter)
	prometheus.MustRegister(TutorMessageCounter)
	prometheus.MustRegister(TutorOnlineUsers)
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
