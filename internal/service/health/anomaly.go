package health

import (
	"fmt"

	"github.com/crazybass81/DOT-sub003/internal/domain"
)

// Issue types emitted by the detectors.
const (
	IssueHighConnectionCount = "high_connection_count"
	IssueConnectionSpike     = "connection_spike"
	IssueSlowResponse        = "slow_response_time"
	IssueHighErrorRate       = "high_error_rate"
	IssueThroughputSurge     = "throughput_surge"
	IssueLoadCorrelation     = "load_performance_correlation"
	IssueCapacityBottleneck  = "capacity_bottleneck"
)

// detectConnectionAnomalies applies the rule-based connection detectors. Each
// rule may fire zero, one, or many findings.
func (a *Aggregator) detectConnectionAnomalies(m ConnectionMetrics) []domain.HealthIssue {
	var issues []domain.HealthIssue
	if a.cfg.MaxConnections > 0 && m.Total > a.cfg.MaxConnections {
		issues = append(issues, domain.HealthIssue{
			Type:      IssueHighConnectionCount,
			Severity:  domain.SeverityWarning,
			Message:   fmt.Sprintf("%d total connections exceed ceiling %d", m.Total, a.cfg.MaxConnections),
			Value:     float64(m.Total),
			Threshold: float64(a.cfg.MaxConnections),
		})
	}
	if m.Total >= a.cfg.ConnectionSpikeMin {
		for scope, count := range m.ByScope {
			share := float64(count) / float64(m.Total)
			if share > a.cfg.ConnectionSpikeShare {
				issues = append(issues, domain.HealthIssue{
					Type:      IssueConnectionSpike,
					Severity:  domain.SeverityWarning,
					Message:   fmt.Sprintf("scope %q holds %.0f%% of all connections", scope, share*100),
					Value:     share,
					Threshold: a.cfg.ConnectionSpikeShare,
					Scope:     scope,
				})
			}
		}
	}
	return issues
}

// detectAPIAnomalies applies the rule-based API performance detectors.
func (a *Aggregator) detectAPIAnomalies(m APIMetrics) []domain.HealthIssue {
	var issues []domain.HealthIssue
	if a.cfg.ResponseTimeMS > 0 && m.AvgLatencyMS > a.cfg.ResponseTimeMS {
		issues = append(issues, domain.HealthIssue{
			Type:      IssueSlowResponse,
			Severity:  severityByRatio(m.AvgLatencyMS, a.cfg.ResponseTimeMS),
			Message:   fmt.Sprintf("average latency %.2fms exceeds %.2fms", m.AvgLatencyMS, a.cfg.ResponseTimeMS),
			Value:     m.AvgLatencyMS,
			Threshold: a.cfg.ResponseTimeMS,
		})
	}
	if a.cfg.ErrorRate > 0 && m.TotalRequests > 0 && m.ErrorRate > a.cfg.ErrorRate {
		issues = append(issues, domain.HealthIssue{
			Type:      IssueHighErrorRate,
			Severity:  severityByRatio(m.ErrorRate, a.cfg.ErrorRate),
			Message:   fmt.Sprintf("error rate %.2f%% exceeds %.2f%%", m.ErrorRate*100, a.cfg.ErrorRate*100),
			Value:     m.ErrorRate,
			Threshold: a.cfg.ErrorRate,
		})
	}
	if a.cfg.MaxRequestsPerSecond > 0 && m.RequestsPerSecond > a.cfg.MaxRequestsPerSecond {
		issues = append(issues, domain.HealthIssue{
			Type:      IssueThroughputSurge,
			Severity:  severityByRatio(m.RequestsPerSecond, a.cfg.MaxRequestsPerSecond),
			Message:   fmt.Sprintf("%.2f requests/s exceed %.2f", m.RequestsPerSecond, a.cfg.MaxRequestsPerSecond),
			Value:     m.RequestsPerSecond,
			Threshold: a.cfg.MaxRequestsPerSecond,
		})
	}
	return issues
}

// correlate cross-references concurrently elevated signals from different
// sources.
func (a *Aggregator) correlate(conn ConnectionMetrics, api APIMetrics, resources ResourceSection) []domain.HealthIssue {
	var issues []domain.HealthIssue

	// elevated connection load together with rising latency
	if a.cfg.ResponseTimeMS > 0 && conn.Utilization > 0.7 && api.AvgLatencyMS > a.cfg.ResponseTimeMS {
		strength := (conn.Utilization + minF(api.AvgLatencyMS/(a.cfg.ResponseTimeMS*2), 1)) / 2
		issues = append(issues, domain.HealthIssue{
			Type:     IssueLoadCorrelation,
			Severity: domain.SeverityWarning,
			Message: fmt.Sprintf("connection utilization %.0f%% coincides with %.2fms average latency",
				conn.Utilization*100, api.AvgLatencyMS),
			Value:    api.AvgLatencyMS,
			Strength: round2(minF(strength, 1)),
			Actions: []string{
				"reduce per-connection work or enable request batching",
				"add instances behind the load balancer",
			},
		})
	}

	// multiple resource dimensions approaching their ceilings together
	if resources.Status == SourceOK {
		pressured := 0
		if a.cfg.CPUPercent > 0 && resources.Metrics.CPUPercent >= a.cfg.CPUPercent {
			pressured++
		}
		if a.cfg.MemoryPercent > 0 && resources.Metrics.MemoryPercent >= a.cfg.MemoryPercent {
			pressured++
		}
		if a.cfg.GoroutineCeiling > 0 && resources.Metrics.Goroutines >= int(float64(a.cfg.GoroutineCeiling)*0.8) {
			pressured++
		}
		if conn.Utilization >= 0.8 {
			pressured++
		}
		if pressured >= 2 {
			issues = append(issues, domain.HealthIssue{
				Type:     IssueCapacityBottleneck,
				Severity: domain.SeverityCritical,
				Message:  fmt.Sprintf("%d resource dimensions are approaching their ceilings", pressured),
				Value:    float64(pressured),
				Strength: round2(minF(float64(pressured)/4, 1)),
				Actions: []string{
					"provision additional capacity before saturation",
					"review recent traffic growth against current limits",
				},
			})
		}
	}
	return issues
}

// ScalingRecommendations turns a combined report into typed, prioritized
// suggestions. Priority escalates with how far a signal overshoots.
func (a *Aggregator) ScalingRecommendations(report Report) []domain.Recommendation {
	var recs []domain.Recommendation

	if report.Resources.Status == SourceOK {
		res := report.Resources.Metrics
		if a.cfg.CPUPercent > 0 && res.CPUPercent > a.cfg.CPUPercent {
			recs = append(recs, domain.Recommendation{
				Type:     "horizontal_scaling",
				Priority: priorityByRatio(res.CPUPercent, a.cfg.CPUPercent),
				Reason:   fmt.Sprintf("cpu at %.0f%% against %.0f%% threshold", res.CPUPercent, a.cfg.CPUPercent),
			})
		}
		if a.cfg.MemoryPercent > 0 && res.MemoryPercent > a.cfg.MemoryPercent {
			recs = append(recs, domain.Recommendation{
				Type:     "memory_upgrade",
				Priority: priorityByRatio(res.MemoryPercent, a.cfg.MemoryPercent),
				Reason:   fmt.Sprintf("memory at %.0f%% against %.0f%% threshold", res.MemoryPercent, a.cfg.MemoryPercent),
			})
		}
	}
	if report.Connections.Status == SourceOK && report.Connections.Metrics.Utilization > 0.8 {
		recs = append(recs, domain.Recommendation{
			Type:     "load_balancing",
			Priority: priorityByRatio(report.Connections.Metrics.Utilization, 0.8),
			Reason:   fmt.Sprintf("connection utilization at %.0f%%", report.Connections.Metrics.Utilization*100),
		})
	}
	if report.API.Status == SourceOK && a.cfg.ErrorRate > 0 && report.API.Metrics.ErrorRate > a.cfg.ErrorRate {
		recs = append(recs, domain.Recommendation{
			Type:     "error_investigation",
			Priority: priorityByRatio(report.API.Metrics.ErrorRate, a.cfg.ErrorRate),
			Reason:   fmt.Sprintf("error rate %.2f%% above %.2f%%", report.API.Metrics.ErrorRate*100, a.cfg.ErrorRate*100),
		})
	}
	return recs
}

func severityByRatio(value, threshold float64) string {
	if threshold > 0 && value >= threshold*2 {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}

func priorityByRatio(value, threshold float64) string {
	switch {
	case threshold > 0 && value >= threshold*1.5:
		return "critical"
	case threshold > 0 && value >= threshold*1.2:
		return "high"
	default:
		return "medium"
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
