// Package metrics provides Prometheus metrics for the finderhub server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finderhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finderhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Backing store metrics
	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finderhub_listings_total",
			Help: "Directory listings by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	listingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finderhub_listing_duration_seconds",
			Help:    "Time to enumerate one directory",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	handleLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finderhub_handle_cache_lookups_total",
			Help: "Directory handle cache lookups",
		},
		[]string{"result"},
	)

	readsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finderhub_reads_total",
			Help: "File content reads by outcome",
		},
		[]string{"provider", "outcome"},
	)

	staleResultsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finderhub_stale_results_dropped_total",
			Help: "Listings discarded because a newer request superseded them",
		},
		[]string{"kind"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finderhub_sessions_active",
			Help: "Number of open browser sessions",
		},
	)

	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finderhub_ws_connections_active",
			Help: "Number of open websocket connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordListing records a directory enumeration.
func RecordListing(provider string, err error, duration time.Duration) {
	listingsTotal.WithLabelValues(provider, outcome(err)).Inc()
	listingDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordRead records a file content read.
func RecordRead(provider string, err error) {
	readsTotal.WithLabelValues(provider, outcome(err)).Inc()
}

// RecordHandleLookup records a hit or miss in a directory handle cache.
func RecordHandleLookup(hit bool) {
	if hit {
		handleLookups.WithLabelValues("hit").Inc()
		return
	}
	handleLookups.WithLabelValues("miss").Inc()
}

// RecordStaleResult records a superseded listing ("items" or "columns").
func RecordStaleResult(kind string) {
	staleResultsDropped.WithLabelValues(kind).Inc()
}

// SetSessionsActive sets the open session gauge.
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// AddWSConnections adjusts the websocket connection gauge.
func AddWSConnections(delta int) {
	wsConnections.Add(float64(delta))
}

// Middleware records request count and latency for every gin route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
