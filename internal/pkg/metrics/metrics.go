package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "anchorage",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "anchorage",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// AR-specific metrics
	AnchorsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "anchorage",
		Subsystem: "ar",
		Name:      "anchors_placed_total",
		Help:      "Total anchors attached to sessions",
	}, []string{"mode"}) // fresh | restored

	PlacementsIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "anchorage",
		Subsystem: "ar",
		Name:      "placements_ignored_total",
		Help:      "Placement requests no-opped because the session was not tracking",
	})

	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "anchorage",
		Subsystem: "ar",
		Name:      "frames_total",
		Help:      "Total device frames processed",
	})

	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "anchorage",
		Subsystem: "ar",
		Name:      "frames_skipped_total",
		Help:      "Frames skipped because tracking was unavailable",
	})

	NearAnchors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "anchorage",
		Subsystem: "ar",
		Name:      "near_anchors",
		Help:      "Anchors inside the proximity gate on the most recent frame",
	})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "anchorage",
		Subsystem: "ar",
		Name:      "live_sessions",
		Help:      "Sessions currently held in the registry",
	})

	SessionsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "anchorage",
		Subsystem: "ar",
		Name:      "sessions_purged_total",
		Help:      "Idle sessions purged by the janitor",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "anchorage",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "anchorage",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "anchorage",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "anchorage",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "anchorage",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "anchorage",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(stat interface{}) {
	// Accept pgxpool.Stat through a narrow interface so this package stays
	// free of the pgx dependency.
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
