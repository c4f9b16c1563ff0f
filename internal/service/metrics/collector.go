package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
	"github.com/crazybass81/DOT-sub003/internal/publish"
	"github.com/crazybass81/DOT-sub003/internal/repository"
)

const (
	defaultBufferCapacity     = 10000
	defaultTimeSeriesInterval = time.Minute
	defaultMinAlertInterval   = 5 * time.Minute
	defaultMaxActiveAlerts    = 100
	defaultSlowestCount       = 10
	defaultCheckInterval      = 30 * time.Second
	persistTimeout            = 2 * time.Second
)

// Thresholds define the aggregate limits that trigger alerts.
type Thresholds struct {
	ResponseTimeMS        float64
	ErrorRate             float64
	MaxConcurrentRequests int
	MaxRequestsPerSecond  float64
}

// AlertConfig controls alert emission.
type AlertConfig struct {
	Enabled     bool
	MinInterval time.Duration
	MaxActive   int
	Channels    []string
}

// Config drives collector behavior. Zero values fall back to defaults in
// Validate; invalid values fail construction.
type Config struct {
	Enabled            bool
	SamplingRate       float64
	BufferCapacity     int
	BufferRetention    time.Duration
	BufferCleanup      time.Duration
	Thresholds         Thresholds
	Alerts             AlertConfig
	BatchWindow        time.Duration
	TimeSeriesInterval time.Duration
	SlowestCount       int
	CheckInterval      time.Duration
}

// DefaultConfig returns a collector configuration with conservative limits.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		SamplingRate:   1.0,
		BufferCapacity: defaultBufferCapacity,
		Thresholds: Thresholds{
			ResponseTimeMS:        1000,
			ErrorRate:             0.05,
			MaxConcurrentRequests: 500,
			MaxRequestsPerSecond:  1000,
		},
		Alerts: AlertConfig{
			Enabled:     true,
			MinInterval: defaultMinAlertInterval,
			MaxActive:   defaultMaxActiveAlerts,
			Channels:    []string{"dashboard"},
		},
		TimeSeriesInterval: defaultTimeSeriesInterval,
		SlowestCount:       defaultSlowestCount,
		CheckInterval:      defaultCheckInterval,
	}
}

// Validate normalizes defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling rate %v outside [0,1]", c.SamplingRate)
	}
	if c.BufferCapacity < 0 {
		return fmt.Errorf("buffer capacity %d must not be negative", c.BufferCapacity)
	}
	if c.BufferRetention < 0 || c.BufferCleanup < 0 {
		return fmt.Errorf("buffer retention settings must not be negative")
	}
	if c.Thresholds.ErrorRate < 0 || c.Thresholds.ErrorRate > 1 {
		return fmt.Errorf("error rate threshold %v outside [0,1]", c.Thresholds.ErrorRate)
	}
	if c.Alerts.MinInterval < 0 {
		return fmt.Errorf("min alert interval must not be negative")
	}
	if c.Alerts.MinInterval == 0 {
		c.Alerts.MinInterval = defaultMinAlertInterval
	}
	if c.Alerts.MaxActive <= 0 {
		c.Alerts.MaxActive = defaultMaxActiveAlerts
	}
	if c.TimeSeriesInterval <= 0 {
		c.TimeSeriesInterval = defaultTimeSeriesInterval
	}
	if c.SlowestCount <= 0 {
		c.SlowestCount = defaultSlowestCount
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	return nil
}

// Collector ingests metric records into a rolling buffer, derives summaries
// on demand, and raises rate-limited alerts on threshold violations.
type Collector struct {
	cfg       Config
	buffer    *Buffer[domain.MetricRecord]
	publisher publish.Publisher
	alertRepo repository.AlertRepository
	logger    *slog.Logger

	now func() time.Time

	randMu sync.Mutex
	random *rand.Rand

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	batcher   *batcher
	lastFired map[alertKey]time.Time
	active    []domain.Alert

	inflightMu sync.Mutex
	inflight   int
}

type alertKey struct {
	kind     string
	endpoint string
}

// New constructs a stopped collector. Alerts persistence is optional.
func New(cfg Config, publisher publish.Publisher, alertRepo repository.AlertRepository, logger *slog.Logger) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("collector config: %w", err)
	}
	opts := []BufferOption[domain.MetricRecord]{
		WithTimestamp(func(r domain.MetricRecord) time.Time { return r.Timestamp }),
	}
	if cfg.BufferRetention > 0 {
		opts = append(opts, WithRetention[domain.MetricRecord](cfg.BufferRetention))
		if cfg.BufferCleanup > 0 {
			opts = append(opts, WithAutoCleanup[domain.MetricRecord](cfg.BufferCleanup))
		}
	}
	buffer, err := NewBuffer(cfg.BufferCapacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("collector buffer: %w", err)
	}
	if logger != nil {
		logger = logger.With("component", "metric_collector")
	}
	return &Collector{
		cfg:       cfg,
		buffer:    buffer,
		publisher: publisher,
		alertRepo: alertRepo,
		logger:    logger,
		now:       time.Now,
		random:    rand.New(rand.NewSource(time.Now().UnixNano())),
		lastFired: make(map[alertKey]time.Time),
	}, nil
}

// Start moves the collector to Running and launches its timers. Idempotent.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	if c.cfg.BatchWindow > 0 {
		c.batcher = newBatcher(c.cfg.BatchWindow, c.publishSummary)
	}
	c.buffer.StartCleanup()
	go c.checkLoop(c.stopCh)
	if c.logger != nil {
		c.logger.Info("collector started",
			"sampling_rate", c.cfg.SamplingRate,
			"buffer_capacity", c.cfg.BufferCapacity,
			"batch_window", c.cfg.BatchWindow)
	}
}

// Stop cancels timers and turns ingestion into a no-op. Idempotent; no timer
// callback runs after it returns.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	batch := c.batcher
	c.batcher = nil
	c.mu.Unlock()

	if batch != nil {
		batch.Stop()
	}
	c.buffer.Stop()
	if c.logger != nil {
		c.logger.Info("collector stopped")
	}
}

// IsEnabled reports whether the collector is running and configured to
// collect.
func (c *Collector) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && c.cfg.Enabled
}

// Collect ingests one record. Malformed records are dropped silently so the
// caller's request path is never interrupted; sampling rejections are a
// deliberate no-op.
func (c *Collector) Collect(record domain.MetricRecord) {
	if !c.IsEnabled() {
		return
	}
	if !validRecord(record) {
		if c.logger != nil {
			c.logger.Debug("dropped malformed metric record",
				"method", record.Method, "endpoint", record.Endpoint)
		}
		return
	}
	if !c.sampled() {
		return
	}
	record.Timestamp = record.Timestamp.UTC()
	record.Endpoint = strings.TrimSpace(record.Endpoint)
	c.buffer.Add(record)

	c.mu.Lock()
	batch := c.batcher
	c.mu.Unlock()
	if batch != nil {
		batch.Signal()
		return
	}
	c.publishSummary()
}

// IncInflight marks the start of a tracked request.
func (c *Collector) IncInflight() {
	c.inflightMu.Lock()
	c.inflight++
	c.inflightMu.Unlock()
}

// DecInflight marks the end of a tracked request.
func (c *Collector) DecInflight() {
	c.inflightMu.Lock()
	if c.inflight > 0 {
		c.inflight--
	}
	c.inflightMu.Unlock()
}

// ActiveAlerts returns the capped list of currently active alerts, oldest
// first.
func (c *Collector) ActiveAlerts() []domain.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]domain.Alert, len(c.active))
	copy(result, c.active)
	return result
}

func (c *Collector) checkLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.CheckThresholds()
		case <-stopCh:
			return
		}
	}
}

func (c *Collector) publishSummary() {
	if c.publisher == nil {
		return
	}
	summary := c.Summary()
	payload, err := json.Marshal(summaryPayload(summary))
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to marshal metrics summary", "error", err)
		}
		return
	}
	c.publisher.Publish(publish.TopicUpdates, payload)
}

func (c *Collector) sampled() bool {
	if c.cfg.SamplingRate >= 1 {
		return true
	}
	if c.cfg.SamplingRate <= 0 {
		return false
	}
	c.randMu.Lock()
	draw := c.random.Float64()
	c.randMu.Unlock()
	return draw < c.cfg.SamplingRate
}

func (c *Collector) currentInflight() int {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	return c.inflight
}

func (c *Collector) persistAlert(alert domain.Alert) {
	if c.alertRepo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.alertRepo.InsertAlert(ctx, alert); err != nil {
			if c.logger != nil {
				c.logger.Warn("failed to persist alert", "kind", alert.Kind, "error", err)
			}
		}
	}()
}

func validRecord(record domain.MetricRecord) bool {
	if strings.TrimSpace(record.Method) == "" || strings.TrimSpace(record.Endpoint) == "" {
		return false
	}
	if record.StatusCode < 100 || record.StatusCode > 599 {
		return false
	}
	if record.ResponseTimeMS < 0 {
		return false
	}
	if record.Timestamp.IsZero() {
		return false
	}
	return true
}
