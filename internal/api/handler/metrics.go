package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	hubRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	hubRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hub_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	hubAgentsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_agents_total",
		Help: "Total number of stored agents.",
	})

	hubFragmentsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_fragments_total",
		Help: "Total number of stored fragments.",
	})

	hubTrustPathQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_trust_path_queries_total",
		Help: "Total trust path queries.",
	})

	hubFederatedSearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_federated_searches_total",
		Help: "Total federated searches.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
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

		hubRequestsTotal.WithLabelValues(method, path, status).Inc()
		hubRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsRoute mounts the Prometheus text exposition endpoint.
func MetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// SetEntityGauges publishes the stored entity counts.
func SetEntityGauges(agents, fragments uint64) {
	hubAgentsTotal.Set(float64(agents))
	hubFragmentsTotal.Set(float64(fragments))
}

func recordTrustPathQuery() { hubTrustPathQueriesTotal.Inc() }

func recordFederatedSearch() { hubFederatedSearchesTotal.Inc() }
