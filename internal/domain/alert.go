package domain

import "time"

// Alert kinds raised by threshold evaluation.
const (
	AlertSlowResponse   = "slow_response_time"
	AlertSlowEndpoint   = "slow_endpoint"
	AlertHighErrorRate  = "high_error_rate"
	AlertHighConcurrent = "high_concurrency"
	AlertHighThroughput = "high_request_rate"
	AlertPartialMetrics = "partial_metrics_failure"
)

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityMedium   = "medium"
)

// Alert statuses.
const (
	AlertStatusActive     = "active"
	AlertStatusResolved   = "resolved"
	AlertStatusSuppressed = "suppressed"
)

// Alert describes one threshold violation. Alerts sharing (Kind, Endpoint)
// identity are suppressed inside the configured minimum interval.
type Alert struct {
	ID          string
	Kind        string
	Severity    string
	Message     string
	MetricValue float64
	Threshold   float64
	Timestamp   time.Time
	Status      string
	Endpoint    string
	Channels    []string
}
