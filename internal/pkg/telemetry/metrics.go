package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricFramesPerSec = "ar.frames_per_second"

	// Data freshness
	MetricPoseAge = "ar.pose_age_seconds"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricAnchorsPlaced   = "business.anchors_placed"
	MetricSessionsOpened  = "business.sessions_opened"
	MetricSessionsExpired = "business.sessions_expired"
)
