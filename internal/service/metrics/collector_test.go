package metrics

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
)

type stubPublisher struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{payloads: make(map[string][][]byte)}
}

func (p *stubPublisher) Publish(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads[topic] = append(p.payloads[topic], append([]byte(nil), payload...))
}

func (p *stubPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads[topic])
}

func (p *stubPublisher) messages(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.payloads[topic]...)
}

type stubAlertRepo struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (r *stubAlertRepo) InsertAlert(_ context.Context, alert domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *stubAlertRepo) ListRecentAlerts(_ context.Context, limit int) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.Alert(nil), r.alerts...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestCollector(t *testing.T, mutate func(*Config)) (*Collector, *stubPublisher) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CheckInterval = time.Hour
	if mutate != nil {
		mutate(&cfg)
	}
	pub := newStubPublisher()
	c, err := New(cfg, pub, nil, nil)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}
	c.Start()
	t.Cleanup(c.Stop)
	return c, pub
}

func seedScenario(c *Collector, base time.Time) {
	latencies := []float64{100, 150, 75, 250, 300}
	statuses := []int{200, 200, 404, 201, 500}
	methods := []string{"GET", "GET", "GET", "POST", "POST"}
	endpoints := []string{"/a", "/a", "/a", "/b", "/b"}
	for i := range latencies {
		c.Collect(domain.MetricRecord{
			Method:         methods[i],
			Endpoint:       endpoints[i],
			StatusCode:     statuses[i],
			ResponseTimeMS: latencies[i],
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		})
	}
}

func TestCollectorSummaryScenario(t *testing.T) {
	c, _ := newTestCollector(t, nil)
	base := time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base.Add(time.Minute) }
	seedScenario(c, base)

	summary := c.Summary()
	if summary.TotalRequests != 5 {
		t.Fatalf("expected 5 requests, got %d", summary.TotalRequests)
	}
	if summary.AvgResponseTimeMS != 175 {
		t.Fatalf("expected avg 175ms, got %v", summary.AvgResponseTimeMS)
	}
	if summary.SuccessRate != 0.6 {
		t.Fatalf("expected success rate 0.6, got %v", summary.SuccessRate)
	}
	if summary.ErrorRate != 0.4 {
		t.Fatalf("expected error rate 0.4, got %v", summary.ErrorRate)
	}
	if got := summary.SuccessRate + summary.ErrorRate; math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected rates to sum to 1, got %v", got)
	}
	if summary.StatusCodes[200] != 2 || summary.StatusCodes[404] != 1 || summary.StatusCodes[500] != 1 {
		t.Fatalf("unexpected status code distribution %v", summary.StatusCodes)
	}

	if len(summary.Endpoints) != 2 {
		t.Fatalf("expected 2 endpoint groups, got %d", len(summary.Endpoints))
	}
	getA := summary.Endpoints[0]
	if getA.Method != "GET" || getA.Endpoint != "/a" {
		t.Fatalf("unexpected first endpoint group %+v", getA)
	}
	if getA.Count != 3 {
		t.Fatalf("expected 3 requests for GET /a, got %d", getA.Count)
	}
	if getA.AvgMS != 108.33 {
		t.Fatalf("expected GET /a avg 108.33, got %v", getA.AvgMS)
	}
	if getA.MinMS != 75 || getA.MaxMS != 150 {
		t.Fatalf("expected GET /a min 75 max 150, got %v / %v", getA.MinMS, getA.MaxMS)
	}
	if getA.SuccessCount != 2 || getA.FailureCount != 1 {
		t.Fatalf("unexpected GET /a success/failure %d / %d", getA.SuccessCount, getA.FailureCount)
	}

	for _, ep := range summary.Endpoints {
		if ep.P95MS < ep.MedianMS {
			t.Fatalf("%s %s p95 %v below median %v", ep.Method, ep.Endpoint, ep.P95MS, ep.MedianMS)
		}
		if ep.P99MS < ep.P95MS {
			t.Fatalf("%s %s p99 %v below p95 %v", ep.Method, ep.Endpoint, ep.P99MS, ep.P95MS)
		}
	}

	if len(summary.Slowest) == 0 || summary.Slowest[0].ResponseTimeMS != 300 {
		t.Fatalf("expected slowest record at 300ms, got %+v", summary.Slowest)
	}
	if len(summary.Errors) != 2 {
		t.Fatalf("expected 2 error records, got %d", len(summary.Errors))
	}
	if !summary.Errors[0].Timestamp.After(summary.Errors[1].Timestamp) {
		t.Fatalf("expected error records newest first")
	}
}

func TestCollectorDropsMalformedRecords(t *testing.T) {
	c, _ := newTestCollector(t, nil)
	now := time.Now().UTC()
	malformed := []domain.MetricRecord{
		{Method: "", Endpoint: "/a", StatusCode: 200, ResponseTimeMS: 10, Timestamp: now},
		{Method: "GET", Endpoint: "", StatusCode: 200, ResponseTimeMS: 10, Timestamp: now},
		{Method: "GET", Endpoint: "/a", StatusCode: 99, ResponseTimeMS: 10, Timestamp: now},
		{Method: "GET", Endpoint: "/a", StatusCode: 600, ResponseTimeMS: 10, Timestamp: now},
		{Method: "GET", Endpoint: "/a", StatusCode: 200, ResponseTimeMS: -1, Timestamp: now},
		{Method: "GET", Endpoint: "/a", StatusCode: 200, ResponseTimeMS: 10},
	}
	for _, record := range malformed {
		c.Collect(record)
	}
	if got := c.Summary().TotalRequests; got != 0 {
		t.Fatalf("expected malformed records dropped, got %d retained", got)
	}
}

func TestCollectorDisabledIsNoOp(t *testing.T) {
	c, _ := newTestCollector(t, func(cfg *Config) { cfg.Enabled = false })
	c.Collect(domain.MetricRecord{
		Method: "GET", Endpoint: "/a", StatusCode: 200, ResponseTimeMS: 10, Timestamp: time.Now(),
	})
	summary := c.Summary()
	if summary.TotalRequests != 0 {
		t.Fatalf("expected zeroed summary when disabled, got %d requests", summary.TotalRequests)
	}
	if c.IsEnabled() {
		t.Fatal("expected disabled collector")
	}
}

func TestCollectorZeroSamplingDropsEverything(t *testing.T) {
	c, _ := newTestCollector(t, func(cfg *Config) { cfg.SamplingRate = 0 })
	for i := 0; i < 10; i++ {
		c.Collect(domain.MetricRecord{
			Method: "GET", Endpoint: "/a", StatusCode: 200, ResponseTimeMS: 10, Timestamp: time.Now(),
		})
	}
	if got := c.Summary().TotalRequests; got != 0 {
		t.Fatalf("expected all records sampled out, got %d", got)
	}
}

func TestCollectorStopIsIdempotentAndDisablesIngest(t *testing.T) {
	c, _ := newTestCollector(t, nil)
	c.Stop()
	c.Stop()
	c.Collect(domain.MetricRecord{
		Method: "GET", Endpoint: "/a", StatusCode: 200, ResponseTimeMS: 10, Timestamp: time.Now(),
	})
	if c.IsEnabled() {
		t.Fatal("expected collector disabled after stop")
	}
}

func TestCollectorRestartReArmsBufferCleanup(t *testing.T) {
	c, _ := newTestCollector(t, func(cfg *Config) {
		cfg.BufferRetention = time.Hour
		cfg.BufferCleanup = time.Minute
	})
	if !cleanupArmed(c.buffer) {
		t.Fatal("expected cleanup armed after start")
	}
	c.Stop()
	if cleanupArmed(c.buffer) {
		t.Fatal("expected cleanup disarmed after stop")
	}
	c.Start()
	if !cleanupArmed(c.buffer) {
		t.Fatal("expected cleanup re-armed after restart")
	}
}

func cleanupArmed[T any](b *Buffer[T]) bool {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()
	return b.loopCh != nil
}

func TestCollectorInflightTracking(t *testing.T) {
	c, _ := newTestCollector(t, nil)
	c.IncInflight()
	c.IncInflight()
	c.DecInflight()
	if got := c.currentInflight(); got != 1 {
		t.Fatalf("expected 1 inflight, got %d", got)
	}
	c.DecInflight()
	c.DecInflight()
	if got := c.currentInflight(); got != 0 {
		t.Fatalf("expected inflight to floor at 0, got %d", got)
	}
}

func TestCollectorPublishWithoutBatchWindowIsImmediate(t *testing.T) {
	c, pub := newTestCollector(t, func(cfg *Config) { cfg.BatchWindow = 0 })
	c.Collect(domain.MetricRecord{
		Method: "GET", Endpoint: "/a", StatusCode: 200, ResponseTimeMS: 10, Timestamp: time.Now(),
	})
	if got := pub.count("telemetry.updates"); got != 1 {
		t.Fatalf("expected one immediate summary publish, got %d", got)
	}
}

func TestConfigValidation(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.SamplingRate = -0.1 },
		func(c *Config) { c.SamplingRate = 1.5 },
		func(c *Config) { c.BufferCapacity = -1 },
		func(c *Config) { c.Thresholds.ErrorRate = 2 },
		func(c *Config) { c.Alerts.MinInterval = -time.Second },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	cfg := Config{Enabled: true, SamplingRate: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Alerts.MinInterval != defaultMinAlertInterval {
		t.Fatalf("expected default alert interval, got %v", cfg.Alerts.MinInterval)
	}
	if cfg.Alerts.MaxActive != defaultMaxActiveAlerts {
		t.Fatalf("expected default max active, got %d", cfg.Alerts.MaxActive)
	}
	if cfg.TimeSeriesInterval != defaultTimeSeriesInterval {
		t.Fatalf("expected default time series interval, got %v", cfg.TimeSeriesInterval)
	}
}
