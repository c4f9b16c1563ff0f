package domain

import "time"

// HealthSnapshot is one scheduled observation of the composite health score,
// appended to the history store and pruned by retention.
type HealthSnapshot struct {
	Timestamp       time.Time
	CompositeScore  float64
	ComponentScores map[string]float64
}

// HealthIssue is one finding produced by an anomaly or correlation detector.
type HealthIssue struct {
	Type      string
	Severity  string
	Message   string
	Value     float64
	Threshold float64
	Scope     string
	Strength  float64
	Actions   []string
}

// Recommendation is a typed, prioritized scaling suggestion.
type Recommendation struct {
	Type     string
	Priority string
	Reason   string
}

// TrendAnalysis summarizes the direction of the stored health-score series
// over a lookback window.
type TrendAnalysis struct {
	Window    time.Duration
	Direction string
	// ChangeRate is the signed score delta per hour.
	ChangeRate float64
	Samples    int
	First      float64
	Latest     float64
}

// TrendForecast extrapolates the recent trend over a short horizon.
type TrendForecast struct {
	Horizon        time.Duration
	Direction      string
	PredictedScore float64
	Confidence     float64
	Samples        int
}

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendDeclining  = "declining"
)
