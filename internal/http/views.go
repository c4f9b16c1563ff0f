package httpx

import (
	"strconv"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
	"github.com/crazybass81/DOT-sub003/internal/service/health"
)

// summaryResponse shapes a metrics summary for JSON output.
func summaryResponse(s domain.MetricsSummary) map[string]any {
	endpoints := make([]map[string]any, 0, len(s.Endpoints))
	for _, e := range s.Endpoints {
		endpoints = append(endpoints, map[string]any{
			"method":              e.Method,
			"endpoint":            e.Endpoint,
			"count":               e.Count,
			"success_count":       e.SuccessCount,
			"failure_count":       e.FailureCount,
			"avg_ms":              e.AvgMS,
			"median_ms":           e.MedianMS,
			"p95_ms":              e.P95MS,
			"p99_ms":              e.P99MS,
			"min_ms":              e.MinMS,
			"max_ms":              e.MaxMS,
			"requests_per_minute": e.RequestsPerMinute,
			"success_rate":        e.SuccessRate,
		})
	}
	statusCodes := make(map[string]int, len(s.StatusCodes))
	for code, count := range s.StatusCodes {
		statusCodes[strconv.Itoa(code)] = count
	}
	return map[string]any{
		"generated_at":         s.GeneratedAt.Format(time.RFC3339Nano),
		"total_requests":       s.TotalRequests,
		"inflight_requests":    s.InflightRequests,
		"requests_per_second":  s.RequestsPerSecond,
		"avg_response_time_ms": s.AvgResponseTimeMS,
		"success_rate":         s.SuccessRate,
		"error_rate":           s.ErrorRate,
		"endpoints":            endpoints,
		"status_codes":         statusCodes,
		"volume":               seriesList(s.Volume),
		"latency_ms":           seriesList(s.LatencyMS),
		"error_rates":          seriesList(s.ErrorRates),
		"slowest":              recordList(s.Slowest),
		"errors":               recordList(s.Errors),
	}
}

func seriesList(points []domain.TimeSeriesPoint) []map[string]any {
	out := make([]map[string]any, 0, len(points))
	for _, p := range points {
		out = append(out, map[string]any{
			"bucket": p.Bucket.Format(time.RFC3339),
			"value":  p.Value,
		})
	}
	return out
}

func recordList(records []domain.MetricRecord) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		entry := map[string]any{
			"request_id":       r.RequestID,
			"source":           r.Source,
			"method":           r.Method,
			"endpoint":         r.Endpoint,
			"status_code":      r.StatusCode,
			"response_time_ms": r.ResponseTimeMS,
			"timestamp":        r.Timestamp.Format(time.RFC3339Nano),
		}
		if r.BytesIn != nil {
			entry["bytes_in"] = *r.BytesIn
		}
		if r.BytesOut != nil {
			entry["bytes_out"] = *r.BytesOut
		}
		out = append(out, entry)
	}
	return out
}

func alertList(alerts []domain.Alert) []map[string]any {
	out := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		entry := map[string]any{
			"id":           a.ID,
			"kind":         a.Kind,
			"severity":     a.Severity,
			"message":      a.Message,
			"metric_value": a.MetricValue,
			"threshold":    a.Threshold,
			"timestamp":    a.Timestamp.Format(time.RFC3339Nano),
			"status":       a.Status,
		}
		if a.Endpoint != "" {
			entry["endpoint"] = a.Endpoint
		}
		if len(a.Channels) > 0 {
			entry["channels"] = a.Channels
		}
		out = append(out, entry)
	}
	return out
}

// reportResponse shapes the combined health report for JSON output.
func reportResponse(r health.Report) map[string]any {
	issues := make([]map[string]any, 0, len(r.Issues))
	for _, issue := range r.Issues {
		entry := map[string]any{
			"type":     issue.Type,
			"severity": issue.Severity,
			"message":  issue.Message,
		}
		if issue.Threshold != 0 || issue.Value != 0 {
			entry["value"] = issue.Value
			entry["threshold"] = issue.Threshold
		}
		if issue.Scope != "" {
			entry["scope"] = issue.Scope
		}
		if issue.Strength != 0 {
			entry["strength"] = issue.Strength
		}
		if len(issue.Actions) > 0 {
			entry["actions"] = issue.Actions
		}
		issues = append(issues, entry)
	}
	recs := make([]map[string]any, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		recs = append(recs, map[string]any{
			"type":     rec.Type,
			"priority": rec.Priority,
			"reason":   rec.Reason,
		})
	}
	return map[string]any{
		"generated_at":    r.GeneratedAt.Format(time.RFC3339Nano),
		"composite_score": r.CompositeScore,
		"status":          r.Status,
		"connections":     sectionResponse(r.Connections.SourceStatus, r.Connections.Score, connectionMetricsView(r.Connections)),
		"api":             sectionResponse(r.API.SourceStatus, r.API.Score, apiMetricsView(r.API)),
		"resources":       sectionResponse(r.Resources.SourceStatus, r.Resources.Score, resourceMetricsView(r.Resources)),
		"issues":          issues,
		"alerts":          alertList(r.Alerts),
		"recommendations": recs,
	}
}

func sectionResponse(status health.SourceStatus, score health.Score, metrics map[string]any) map[string]any {
	section := map[string]any{"status": status.Status}
	if status.Status == health.SourceUnavailable {
		section["error"] = status.Error
		section["impact"] = status.Impact
		return section
	}
	section["metrics"] = metrics
	section["score"] = map[string]any{
		"value":   score.Value,
		"status":  score.Status,
		"factors": score.Factors,
	}
	return section
}

func connectionMetricsView(s health.ConnectionSection) map[string]any {
	m := s.Metrics
	view := map[string]any{
		"total":         m.Total,
		"authenticated": m.Authenticated,
		"max":           m.Max,
		"auth_rate":     m.AuthRate,
		"utilization":   m.Utilization,
	}
	if len(m.ByScope) > 0 {
		view["by_scope"] = m.ByScope
	}
	return view
}

func apiMetricsView(s health.APISection) map[string]any {
	m := s.Metrics
	return map[string]any{
		"total_requests":      m.TotalRequests,
		"requests_per_second": m.RequestsPerSecond,
		"avg_latency_ms":      m.AvgLatencyMS,
		"success_rate":        m.SuccessRate,
		"error_rate":          m.ErrorRate,
		"active_alerts":       m.ActiveAlerts,
	}
}

func resourceMetricsView(s health.ResourceSection) map[string]any {
	m := s.Metrics
	return map[string]any{
		"cpu_percent":    m.CPUPercent,
		"memory_percent": m.MemoryPercent,
		"goroutines":     m.Goroutines,
	}
}
