package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
	"github.com/crazybass81/DOT-sub003/internal/repository"
)

const (
	defaultSourceTimeout  = 2 * time.Second
	defaultSnapshotEvery  = time.Minute
	defaultCleanupEvery   = time.Hour
	defaultRetentionDays  = 7
	defaultSpikeShare     = 0.5
	defaultSpikeMinTotal  = 20
	defaultPartialSources = 2
	defaultTrendEpsilon   = 0.25
)

// ConnectionStats is the raw view from the connection source.
type ConnectionStats struct {
	TotalConnections         int
	AuthenticatedConnections int
	MaxConnections           int
	ByScope                  map[string]int
}

// ResourceStats is the raw view from the resource source.
type ResourceStats struct {
	CPUPercent       float64
	MemoryUsedBytes  uint64
	MemoryTotalBytes uint64
	Goroutines       int
}

// ConnectionSource provides live connection statistics.
type ConnectionSource interface {
	ConnectionStats(ctx context.Context) (ConnectionStats, error)
}

// MetricsSource exposes the collector's derived view.
type MetricsSource interface {
	Summary() domain.MetricsSummary
	ActiveAlerts() []domain.Alert
}

// ResourceSource provides process resource statistics.
type ResourceSource interface {
	ResourceStats(ctx context.Context) (ResourceStats, error)
}

// Weights control how sub-factors combine into component scores.
type Weights struct {
	ConnAuthRate    float64
	ConnUtilization float64
	APILatency      float64
	APISuccess      float64
	APIThroughput   float64
}

// Config carries the aggregator's thresholds, ceilings, and weights. None of
// them are hardcoded in detectors.
type Config struct {
	MaxConnections       int
	ConnectionSpikeShare float64
	ConnectionSpikeMin   int
	ResponseTimeMS       float64
	ErrorRate            float64
	MaxRequestsPerSecond float64
	CPUPercent           float64
	MemoryPercent        float64
	GoroutineCeiling     int
	// PartialFailureSources is how many simultaneously unavailable sources
	// trigger the partial_metrics_failure alert.
	PartialFailureSources int
	// TrendEpsilon is the score-per-hour rate below which a history series
	// counts as stable.
	TrendEpsilon  float64
	Weights       Weights
	SourceTimeout time.Duration
	SnapshotEvery time.Duration
	CleanupEvery  time.Duration
	RetentionDays int
}

// DefaultConfig returns aggregator settings suitable for a single instance.
func DefaultConfig() Config {
	return Config{
		MaxConnections:        1000,
		ConnectionSpikeShare:  defaultSpikeShare,
		ConnectionSpikeMin:    defaultSpikeMinTotal,
		ResponseTimeMS:        1000,
		ErrorRate:             0.05,
		MaxRequestsPerSecond:  1000,
		CPUPercent:            80,
		MemoryPercent:         85,
		GoroutineCeiling:      10000,
		PartialFailureSources: defaultPartialSources,
		TrendEpsilon:          defaultTrendEpsilon,
		Weights: Weights{
			ConnAuthRate:    0.4,
			ConnUtilization: 0.6,
			APILatency:      0.4,
			APISuccess:      0.4,
			APIThroughput:   0.2,
		},
		SourceTimeout: defaultSourceTimeout,
		SnapshotEvery: defaultSnapshotEvery,
		CleanupEvery:  defaultCleanupEvery,
		RetentionDays: defaultRetentionDays,
	}
}

// Validate normalizes defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.ConnectionSpikeShare < 0 || c.ConnectionSpikeShare > 1 {
		return fmt.Errorf("connection spike share %v outside [0,1]", c.ConnectionSpikeShare)
	}
	if c.ErrorRate < 0 || c.ErrorRate > 1 {
		return fmt.Errorf("error rate threshold %v outside [0,1]", c.ErrorRate)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days %d must not be negative", c.RetentionDays)
	}
	if c.TrendEpsilon < 0 {
		return fmt.Errorf("trend epsilon %v must not be negative", c.TrendEpsilon)
	}
	if c.ConnectionSpikeShare == 0 {
		c.ConnectionSpikeShare = defaultSpikeShare
	}
	if c.ConnectionSpikeMin <= 0 {
		c.ConnectionSpikeMin = defaultSpikeMinTotal
	}
	if c.PartialFailureSources <= 0 {
		c.PartialFailureSources = defaultPartialSources
	}
	if c.TrendEpsilon == 0 {
		c.TrendEpsilon = defaultTrendEpsilon
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = defaultSourceTimeout
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = defaultSnapshotEvery
	}
	if c.CleanupEvery <= 0 {
		c.CleanupEvery = defaultCleanupEvery
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = defaultRetentionDays
	}
	return nil
}

// Aggregator composes one operator-facing report from independently failing
// sources and keeps a scored history for trend analysis.
type Aggregator struct {
	cfg         Config
	connections ConnectionSource
	metrics     MetricsSource
	resources   ResourceSource
	history     repository.HistoryRepository
	logger      *slog.Logger
	now         func() time.Time
}

// New constructs an Aggregator. Any source may be nil; its section then
// reports unavailable.
func New(cfg Config, connections ConnectionSource, metrics MetricsSource, resources ResourceSource, history repository.HistoryRepository, logger *slog.Logger) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("health config: %w", err)
	}
	if logger != nil {
		logger = logger.With("component", "health_aggregator")
	}
	return &Aggregator{
		cfg:         cfg,
		connections: connections,
		metrics:     metrics,
		resources:   resources,
		history:     history,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Run captures snapshots and prunes history on schedule until the context is
// cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	if a == nil {
		return
	}
	snapshots := time.NewTicker(a.cfg.SnapshotEvery)
	cleanup := time.NewTicker(a.cfg.CleanupEvery)
	defer snapshots.Stop()
	defer cleanup.Stop()

	if a.logger != nil {
		a.logger.Info("health aggregator started",
			"snapshot_every", a.cfg.SnapshotEvery,
			"retention_days", a.cfg.RetentionDays)
	}
	for {
		select {
		case <-ctx.Done():
			if a.logger != nil {
				a.logger.Info("health aggregator stopped")
			}
			return
		case <-snapshots.C:
			if _, err := a.CaptureSnapshot(ctx); err != nil && a.logger != nil {
				a.logger.Warn("failed to capture health snapshot", "error", err)
			}
		case <-cleanup.C:
			if _, err := a.CleanupHistory(ctx, a.cfg.RetentionDays); err != nil && a.logger != nil {
				a.logger.Warn("failed to prune health history", "error", err)
			}
		}
	}
}

// ConnectionMetrics reshapes raw connection statistics into the
// health-relevant view.
func (a *Aggregator) ConnectionMetrics(ctx context.Context) (ConnectionMetrics, error) {
	if a.connections == nil {
		return ConnectionMetrics{}, fmt.Errorf("connection source not configured")
	}
	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
	defer cancel()
	stats, err := a.connections.ConnectionStats(fetchCtx)
	if err != nil {
		return ConnectionMetrics{}, fmt.Errorf("fetch connection stats: %w", err)
	}
	m := ConnectionMetrics{
		Total:         stats.TotalConnections,
		Authenticated: stats.AuthenticatedConnections,
		Max:           stats.MaxConnections,
		ByScope:       stats.ByScope,
	}
	if m.Max == 0 {
		m.Max = a.cfg.MaxConnections
	}
	if m.Total > 0 {
		m.AuthRate = float64(m.Authenticated) / float64(m.Total)
	}
	if m.Max > 0 {
		m.Utilization = float64(m.Total) / float64(m.Max)
	}
	return m, nil
}

// APIHealthMetrics reshapes the collector summary into the health-relevant
// view.
func (a *Aggregator) APIHealthMetrics(ctx context.Context) (APIMetrics, error) {
	if a.metrics == nil {
		return APIMetrics{}, fmt.Errorf("metrics source not configured")
	}
	done := make(chan APIMetrics, 1)
	go func() {
		summary := a.metrics.Summary()
		done <- APIMetrics{
			TotalRequests:     summary.TotalRequests,
			RequestsPerSecond: summary.RequestsPerSecond,
			AvgLatencyMS:      summary.AvgResponseTimeMS,
			SuccessRate:       summary.SuccessRate,
			ErrorRate:         summary.ErrorRate,
			ActiveAlerts:      len(a.metrics.ActiveAlerts()),
		}
	}()
	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
	defer cancel()
	select {
	case m := <-done:
		return m, nil
	case <-fetchCtx.Done():
		return APIMetrics{}, fmt.Errorf("fetch api metrics: %w", fetchCtx.Err())
	}
}

// ResourceMetrics reshapes raw resource statistics into the health-relevant
// view. Missing optional fields read as zero, never as errors.
func (a *Aggregator) ResourceMetrics(ctx context.Context) (ResourceMetrics, error) {
	if a.resources == nil {
		return ResourceMetrics{}, fmt.Errorf("resource source not configured")
	}
	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
	defer cancel()
	stats, err := a.resources.ResourceStats(fetchCtx)
	if err != nil {
		return ResourceMetrics{}, fmt.Errorf("fetch resource stats: %w", err)
	}
	m := ResourceMetrics{
		CPUPercent: stats.CPUPercent,
		Goroutines: stats.Goroutines,
	}
	if stats.MemoryTotalBytes > 0 {
		m.MemoryPercent = float64(stats.MemoryUsedBytes) / float64(stats.MemoryTotalBytes) * 100
	}
	return m, nil
}
