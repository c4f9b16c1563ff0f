package metrics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crazybass81/DOT-sub003/internal/domain"
	"github.com/crazybass81/DOT-sub003/internal/publish"
)

// CheckThresholds evaluates current aggregates against configured limits.
// Violations sharing an identity with an alert emitted inside the minimum
// interval are suppressed; anything newly emitted is returned, published to
// the alert topic, and persisted fire-and-forget. Active alerts whose
// condition has cleared are marked resolved and announced on the same topic.
func (c *Collector) CheckThresholds() []domain.Alert {
	if !c.IsEnabled() || !c.cfg.Alerts.Enabled {
		return nil
	}
	summary := c.Summary()
	now := c.now().UTC()

	var violations []domain.Alert
	t := c.cfg.Thresholds

	if t.ResponseTimeMS > 0 && summary.TotalRequests > 0 && summary.AvgResponseTimeMS > t.ResponseTimeMS {
		violations = append(violations, c.newAlert(domain.AlertSlowResponse, "",
			summary.AvgResponseTimeMS, t.ResponseTimeMS, now,
			fmt.Sprintf("average response time %.2fms exceeds %.2fms", summary.AvgResponseTimeMS, t.ResponseTimeMS)))
	}
	if t.ErrorRate > 0 && summary.TotalRequests > 0 && summary.ErrorRate > t.ErrorRate {
		violations = append(violations, c.newAlert(domain.AlertHighErrorRate, "",
			summary.ErrorRate, t.ErrorRate, now,
			fmt.Sprintf("error rate %.2f%% exceeds %.2f%%", summary.ErrorRate*100, t.ErrorRate*100)))
	}
	if t.MaxConcurrentRequests > 0 && summary.InflightRequests > t.MaxConcurrentRequests {
		violations = append(violations, c.newAlert(domain.AlertHighConcurrent, "",
			float64(summary.InflightRequests), float64(t.MaxConcurrentRequests), now,
			fmt.Sprintf("%d concurrent requests exceed limit %d", summary.InflightRequests, t.MaxConcurrentRequests)))
	}
	if t.MaxRequestsPerSecond > 0 && summary.RequestsPerSecond > t.MaxRequestsPerSecond {
		violations = append(violations, c.newAlert(domain.AlertHighThroughput, "",
			summary.RequestsPerSecond, t.MaxRequestsPerSecond, now,
			fmt.Sprintf("%.2f requests/s exceed limit %.2f", summary.RequestsPerSecond, t.MaxRequestsPerSecond)))
	}
	if t.ResponseTimeMS > 0 {
		for _, ep := range summary.Endpoints {
			if ep.AvgMS > t.ResponseTimeMS {
				violations = append(violations, c.newAlert(domain.AlertSlowEndpoint, ep.Method+" "+ep.Endpoint,
					ep.AvgMS, t.ResponseTimeMS, now,
					fmt.Sprintf("%s %s averages %.2fms, over %.2fms", ep.Method, ep.Endpoint, ep.AvgMS, t.ResponseTimeMS)))
			}
		}
	}

	for _, alert := range c.resolveCleared(violations, now) {
		c.publishResolution(alert)
	}
	emitted, suppressed := c.admit(violations, now)
	if len(suppressed) > 0 && c.logger != nil {
		c.logger.Debug("alerts suppressed inside minimum interval", "count", len(suppressed))
	}
	for _, alert := range emitted {
		c.publishAlert(alert)
		c.persistAlert(alert)
	}
	return emitted
}

// admit applies the suppression window and the active-list cap. Violations
// swallowed by the window come back in the second slice marked suppressed.
func (c *Collector) admit(violations []domain.Alert, now time.Time) (emitted, suppressed []domain.Alert) {
	if len(violations) == 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, alert := range violations {
		key := alertKey{kind: alert.Kind, endpoint: alert.Endpoint}
		if last, ok := c.lastFired[key]; ok && now.Sub(last) < c.cfg.Alerts.MinInterval {
			alert.Status = domain.AlertStatusSuppressed
			suppressed = append(suppressed, alert)
			continue
		}
		c.lastFired[key] = now
		c.active = append(c.active, alert)
		emitted = append(emitted, alert)
	}
	if overflow := len(c.active) - c.cfg.Alerts.MaxActive; overflow > 0 {
		c.active = append([]domain.Alert(nil), c.active[overflow:]...)
	}
	return emitted, suppressed
}

// resolveCleared drops active alerts whose identity no longer violates any
// threshold and returns them marked resolved.
func (c *Collector) resolveCleared(violations []domain.Alert, now time.Time) []domain.Alert {
	current := make(map[alertKey]bool, len(violations))
	for _, alert := range violations {
		current[alertKey{kind: alert.Kind, endpoint: alert.Endpoint}] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var resolved []domain.Alert
	var remaining []domain.Alert
	for _, alert := range c.active {
		if current[alertKey{kind: alert.Kind, endpoint: alert.Endpoint}] {
			remaining = append(remaining, alert)
			continue
		}
		alert.Status = domain.AlertStatusResolved
		alert.Timestamp = now
		resolved = append(resolved, alert)
	}
	c.active = remaining
	return resolved
}

func (c *Collector) newAlert(kind, endpoint string, value, threshold float64, now time.Time, message string) domain.Alert {
	return domain.Alert{
		ID:          uuid.NewString(),
		Kind:        kind,
		Severity:    severityFor(value, threshold),
		Message:     message,
		MetricValue: value,
		Threshold:   threshold,
		Timestamp:   now,
		Status:      domain.AlertStatusActive,
		Endpoint:    endpoint,
		Channels:    c.cfg.Alerts.Channels,
	}
}

// severityFor escalates with how far the value overshoots its threshold.
func severityFor(value, threshold float64) string {
	if threshold > 0 && value >= threshold*2 {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}

func (c *Collector) publishAlert(alert domain.Alert) {
	if c.publisher == nil {
		return
	}
	payload, err := json.Marshal(alertPayload(alert))
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to marshal alert", "kind", alert.Kind, "error", err)
		}
		return
	}
	c.publisher.Publish(publish.TopicAlerts, payload)
	if c.logger != nil {
		c.logger.Warn("alert raised",
			"kind", alert.Kind,
			"severity", alert.Severity,
			"endpoint", alert.Endpoint,
			"value", alert.MetricValue,
			"threshold", alert.Threshold)
	}
}

func (c *Collector) publishResolution(alert domain.Alert) {
	if c.logger != nil {
		c.logger.Info("alert resolved", "kind", alert.Kind, "endpoint", alert.Endpoint)
	}
	if c.publisher == nil {
		return
	}
	payload, err := json.Marshal(alertPayload(alert))
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to marshal alert", "kind", alert.Kind, "error", err)
		}
		return
	}
	c.publisher.Publish(publish.TopicAlerts, payload)
}

func alertPayload(alert domain.Alert) map[string]any {
	return map[string]any{
		"id":           alert.ID,
		"kind":         alert.Kind,
		"severity":     alert.Severity,
		"message":      alert.Message,
		"metric_value": alert.MetricValue,
		"threshold":    alert.Threshold,
		"status":       alert.Status,
		"endpoint":     alert.Endpoint,
		"channels":     alert.Channels,
		"timestamp":    alert.Timestamp.Format(time.RFC3339Nano),
	}
}
