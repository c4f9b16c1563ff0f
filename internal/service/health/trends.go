package health

import (
	"context"
	"fmt"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
)

// CaptureSnapshot scores the current state and appends it to history.
func (a *Aggregator) CaptureSnapshot(ctx context.Context) (domain.HealthSnapshot, error) {
	report := a.CombinedReport(ctx)
	snapshot := domain.HealthSnapshot{
		Timestamp:      report.GeneratedAt,
		CompositeScore: report.CompositeScore,
		ComponentScores: map[string]float64{
			"connections": report.Connections.Score.Value,
			"api":         report.API.Score.Value,
			"resources":   report.Resources.Score.Value,
		},
	}
	if a.history == nil {
		return snapshot, fmt.Errorf("history store not configured")
	}
	if err := a.history.InsertHealthSnapshot(ctx, snapshot); err != nil {
		return snapshot, fmt.Errorf("append health snapshot: %w", err)
	}
	return snapshot, nil
}

// AnalyzeTrends derives direction and signed hourly change rate from the
// stored series inside the lookback window.
func (a *Aggregator) AnalyzeTrends(ctx context.Context, window time.Duration) (domain.TrendAnalysis, error) {
	if a.history == nil {
		return domain.TrendAnalysis{}, fmt.Errorf("history store not configured")
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	since := a.now().Add(-window)
	snapshots, err := a.history.ListHealthSnapshotsSince(ctx, since)
	if err != nil {
		return domain.TrendAnalysis{}, fmt.Errorf("load health history: %w", err)
	}
	analysis := domain.TrendAnalysis{
		Window:    window,
		Direction: domain.TrendStable,
		Samples:   len(snapshots),
	}
	if len(snapshots) == 0 {
		return analysis, nil
	}
	analysis.First = snapshots[0].CompositeScore
	analysis.Latest = snapshots[len(snapshots)-1].CompositeScore
	if len(snapshots) < 2 {
		return analysis, nil
	}
	slope, _ := regress(snapshots)
	analysis.ChangeRate = round2(slope)
	analysis.Direction = a.directionFor(slope)
	return analysis, nil
}

// PredictTrends extrapolates the recent trend across the horizon. Confidence
// is the regression fit bounded into (0,1].
func (a *Aggregator) PredictTrends(ctx context.Context, horizon time.Duration) (domain.TrendForecast, error) {
	if a.history == nil {
		return domain.TrendForecast{}, fmt.Errorf("history store not configured")
	}
	if horizon <= 0 {
		horizon = time.Hour
	}
	// base the forecast on the most recent day of observations
	since := a.now().Add(-24 * time.Hour)
	snapshots, err := a.history.ListHealthSnapshotsSince(ctx, since)
	if err != nil {
		return domain.TrendForecast{}, fmt.Errorf("load health history: %w", err)
	}
	forecast := domain.TrendForecast{
		Horizon:   horizon,
		Direction: domain.TrendStable,
		Samples:   len(snapshots),
	}
	if len(snapshots) == 0 {
		forecast.PredictedScore = 50
		forecast.Confidence = 0.1
		return forecast, nil
	}
	latest := snapshots[len(snapshots)-1].CompositeScore
	if len(snapshots) < 2 {
		forecast.PredictedScore = latest
		forecast.Confidence = 0.1
		return forecast, nil
	}
	slope, fit := regress(snapshots)
	horizonHours := horizon.Hours()
	forecast.Direction = a.directionFor(slope)
	forecast.PredictedScore = clampScore(latest + slope*horizonHours)
	forecast.Confidence = boundConfidence(fit)
	return forecast, nil
}

// CleanupHistory removes snapshots strictly older than now minus
// retentionDays. Entries still inside the window always survive.
func (a *Aggregator) CleanupHistory(ctx context.Context, retentionDays int) (int64, error) {
	if a.history == nil {
		return 0, fmt.Errorf("history store not configured")
	}
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days %d must be positive", retentionDays)
	}
	cutoff := a.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	removed, err := a.history.DeleteHealthSnapshotsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune health history: %w", err)
	}
	if removed > 0 && a.logger != nil {
		a.logger.Info("pruned health history", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// regress fits score against hours-since-first via least squares, returning
// the slope (score per hour) and the coefficient of determination.
func regress(snapshots []domain.HealthSnapshot) (slope, fit float64) {
	n := float64(len(snapshots))
	origin := snapshots[0].Timestamp
	var sumX, sumY, sumXY, sumXX float64
	for _, snap := range snapshots {
		x := snap.Timestamp.Sub(origin).Hours()
		y := snap.CompositeScore
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for _, snap := range snapshots {
		x := snap.Timestamp.Sub(origin).Hours()
		predicted := intercept + slope*x
		ssTot += (snap.CompositeScore - meanY) * (snap.CompositeScore - meanY)
		ssRes += (snap.CompositeScore - predicted) * (snap.CompositeScore - predicted)
	}
	if ssTot == 0 {
		// flat series fits perfectly
		return slope, 1
	}
	fit = 1 - ssRes/ssTot
	return slope, fit
}

func (a *Aggregator) directionFor(slope float64) string {
	switch {
	case slope > a.cfg.TrendEpsilon:
		return domain.TrendIncreasing
	case slope < -a.cfg.TrendEpsilon:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func boundConfidence(fit float64) float64 {
	if fit < 0.1 {
		return 0.1
	}
	if fit > 1 {
		return 1
	}
	return round2(fit)
}
