package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
)

func seedSlowTraffic(c *Collector, base time.Time, latencyMS float64, n int) {
	for i := 0; i < n; i++ {
		c.Collect(domain.MetricRecord{
			Method:         "GET",
			Endpoint:       "/slow",
			StatusCode:     200,
			ResponseTimeMS: latencyMS,
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		})
	}
}

func TestCheckThresholdsRaisesSlowResponseAlert(t *testing.T) {
	c, pub := newTestCollector(t, func(cfg *Config) {
		cfg.Thresholds.ResponseTimeMS = 100
		cfg.Thresholds.ErrorRate = 0
		cfg.Thresholds.MaxRequestsPerSecond = 0
	})
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base.Add(time.Minute) }
	seedSlowTraffic(c, base, 500, 4)

	emitted := c.CheckThresholds()
	if len(emitted) != 2 {
		t.Fatalf("expected aggregate and per-endpoint alerts, got %d", len(emitted))
	}
	kinds := map[string]bool{}
	for _, alert := range emitted {
		kinds[alert.Kind] = true
		if alert.Status != domain.AlertStatusActive {
			t.Fatalf("expected active status, got %q", alert.Status)
		}
		if alert.ID == "" {
			t.Fatal("expected generated alert id")
		}
	}
	if !kinds[domain.AlertSlowResponse] || !kinds[domain.AlertSlowEndpoint] {
		t.Fatalf("unexpected alert kinds %v", kinds)
	}
	// 500ms over a 100ms limit is a 5x overshoot
	for _, alert := range emitted {
		if alert.Severity != domain.SeverityCritical {
			t.Fatalf("expected critical severity, got %q", alert.Severity)
		}
	}
	if got := pub.count("telemetry.alerts"); got != 2 {
		t.Fatalf("expected 2 alert publishes, got %d", got)
	}
}

func TestCheckThresholdsSuppressesRepeatWithinInterval(t *testing.T) {
	c, _ := newTestCollector(t, func(cfg *Config) {
		cfg.Thresholds.ResponseTimeMS = 100
		cfg.Thresholds.MaxRequestsPerSecond = 0
		cfg.Alerts.MinInterval = 5 * time.Minute
	})
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	now := base.Add(time.Minute)
	c.now = func() time.Time { return now }
	seedSlowTraffic(c, base, 500, 4)

	first := c.CheckThresholds()
	if len(first) == 0 {
		t.Fatal("expected alerts on first evaluation")
	}

	now = now.Add(time.Minute)
	second := c.CheckThresholds()
	if len(second) != 0 {
		t.Fatalf("expected repeat violation suppressed, got %d alerts", len(second))
	}

	now = now.Add(10 * time.Minute)
	third := c.CheckThresholds()
	if len(third) == 0 {
		t.Fatal("expected alert to fire again outside the suppression window")
	}
}

func TestCheckThresholdsResolvesClearedAlerts(t *testing.T) {
	c, pub := newTestCollector(t, func(cfg *Config) {
		cfg.BufferCapacity = 10
		cfg.Thresholds.ResponseTimeMS = 100
		cfg.Thresholds.ErrorRate = 0
		cfg.Thresholds.MaxRequestsPerSecond = 0
	})
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	now := base.Add(time.Minute)
	c.now = func() time.Time { return now }
	seedSlowTraffic(c, base, 500, 4)

	if emitted := c.CheckThresholds(); len(emitted) != 2 {
		t.Fatalf("expected 2 alerts while violating, got %d", len(emitted))
	}
	raised := pub.count("telemetry.alerts")

	// fresh fast traffic pushes every slow sample out of the ring
	for i := 0; i < 10; i++ {
		c.Collect(domain.MetricRecord{
			Method:         "GET",
			Endpoint:       "/fast",
			StatusCode:     200,
			ResponseTimeMS: 10,
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		})
	}
	now = now.Add(time.Minute)
	if emitted := c.CheckThresholds(); len(emitted) != 0 {
		t.Fatalf("expected no new alerts after the condition cleared, got %d", len(emitted))
	}
	if active := c.ActiveAlerts(); len(active) != 0 {
		t.Fatalf("expected active list emptied on resolution, got %d", len(active))
	}
	msgs := pub.messages("telemetry.alerts")
	if len(msgs) != raised+2 {
		t.Fatalf("expected 2 resolution publishes, got %d", len(msgs)-raised)
	}
	for _, msg := range msgs[raised:] {
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal resolution payload: %v", err)
		}
		if payload["status"] != domain.AlertStatusResolved {
			t.Fatalf("expected resolved status in payload, got %v", payload["status"])
		}
	}
}

func TestAdmitMarksRepeatViolationsSuppressed(t *testing.T) {
	c, _ := newTestCollector(t, func(cfg *Config) {
		cfg.Alerts.MinInterval = 5 * time.Minute
	})
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	alert := c.newAlert(domain.AlertHighErrorRate, "", 0.5, 0.05, base, "errors")

	emitted, suppressed := c.admit([]domain.Alert{alert}, base)
	if len(emitted) != 1 || len(suppressed) != 0 {
		t.Fatalf("first admit: emitted=%d suppressed=%d", len(emitted), len(suppressed))
	}
	emitted, suppressed = c.admit([]domain.Alert{alert}, base.Add(time.Minute))
	if len(emitted) != 0 || len(suppressed) != 1 {
		t.Fatalf("repeat admit: emitted=%d suppressed=%d", len(emitted), len(suppressed))
	}
	if suppressed[0].Status != domain.AlertStatusSuppressed {
		t.Fatalf("expected suppressed status, got %q", suppressed[0].Status)
	}
}

func TestActiveAlertListIsCapped(t *testing.T) {
	c, _ := newTestCollector(t, func(cfg *Config) {
		cfg.Alerts.MaxActive = 3
		cfg.Alerts.MinInterval = time.Nanosecond
	})
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		now := base.Add(time.Duration(i) * time.Hour)
		c.admit([]domain.Alert{c.newAlert(domain.AlertHighErrorRate, "", 0.5, 0.05, now, "errors")}, now)
	}
	active := c.ActiveAlerts()
	if len(active) != 3 {
		t.Fatalf("expected active list capped at 3, got %d", len(active))
	}
	// oldest entries are dropped first
	if !active[0].Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected oldest surviving alert at +2h, got %v", active[0].Timestamp)
	}
}

func TestCheckThresholdsDisabledAlertsEmitNothing(t *testing.T) {
	c, pub := newTestCollector(t, func(cfg *Config) {
		cfg.Alerts.Enabled = false
		cfg.Thresholds.ResponseTimeMS = 1
	})
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base.Add(time.Minute) }
	seedSlowTraffic(c, base, 500, 4)
	if emitted := c.CheckThresholds(); emitted != nil {
		t.Fatalf("expected no alerts when disabled, got %d", len(emitted))
	}
	if got := pub.count("telemetry.alerts"); got != 0 {
		t.Fatalf("expected no alert publishes, got %d", got)
	}
}

func TestSeverityEscalatesWithOvershoot(t *testing.T) {
	if got := severityFor(150, 100); got != domain.SeverityWarning {
		t.Fatalf("expected warning for 1.5x overshoot, got %q", got)
	}
	if got := severityFor(200, 100); got != domain.SeverityCritical {
		t.Fatalf("expected critical for 2x overshoot, got %q", got)
	}
}
