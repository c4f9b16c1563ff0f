package health

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crazybass81/DOT-sub003/internal/domain"
)

// Source section statuses.
const (
	SourceOK          = "ok"
	SourceUnavailable = "unavailable"
)

// ConnectionMetrics is the health-relevant connection view.
type ConnectionMetrics struct {
	Total         int
	Authenticated int
	Max           int
	AuthRate      float64
	Utilization   float64
	ByScope       map[string]int
}

// APIMetrics is the health-relevant API performance view.
type APIMetrics struct {
	TotalRequests     int
	RequestsPerSecond float64
	AvgLatencyMS      float64
	SuccessRate       float64
	ErrorRate         float64
	ActiveAlerts      int
}

// ResourceMetrics is the health-relevant resource view.
type ResourceMetrics struct {
	CPUPercent    float64
	MemoryPercent float64
	Goroutines    int
}

// SourceStatus labels a report section with its fetch outcome.
type SourceStatus struct {
	Status string
	Error  string
	Impact string
}

// ConnectionSection is the connection part of a combined report.
type ConnectionSection struct {
	SourceStatus
	Metrics ConnectionMetrics
	Score   Score
}

// APISection is the API part of a combined report.
type APISection struct {
	SourceStatus
	Metrics APIMetrics
	Score   Score
}

// ResourceSection is the resource part of a combined report.
type ResourceSection struct {
	SourceStatus
	Metrics ResourceMetrics
	Score   Score
}

// Report is the composite operator-facing health view. The composite score is
// always in [0,100] even when sources fail.
type Report struct {
	GeneratedAt     time.Time
	CompositeScore  float64
	Status          string
	Connections     ConnectionSection
	API             APISection
	Resources       ResourceSection
	Issues          []domain.HealthIssue
	Alerts          []domain.Alert
	Recommendations []domain.Recommendation
}

// CombinedReport fetches every source independently and composes whatever
// succeeded. A failing source becomes an unavailable section, never an error.
func (a *Aggregator) CombinedReport(ctx context.Context) Report {
	now := a.now().UTC()
	report := Report{GeneratedAt: now}

	var scores []float64
	var unavailable int

	if conn, err := a.ConnectionMetrics(ctx); err != nil {
		report.Connections.SourceStatus = unavailableStatus(err, "connection anomalies undetectable")
		unavailable++
		if a.logger != nil {
			a.logger.Warn("connection source unavailable", "error", err)
		}
	} else {
		report.Connections = ConnectionSection{
			SourceStatus: SourceStatus{Status: SourceOK},
			Metrics:      conn,
			Score:        a.ConnectionHealthScore(conn),
		}
		scores = append(scores, report.Connections.Score.Value)
		report.Issues = append(report.Issues, a.detectConnectionAnomalies(conn)...)
	}

	if api, err := a.APIHealthMetrics(ctx); err != nil {
		report.API.SourceStatus = unavailableStatus(err, "api performance unknown")
		unavailable++
		if a.logger != nil {
			a.logger.Warn("metrics source unavailable", "error", err)
		}
	} else {
		report.API = APISection{
			SourceStatus: SourceStatus{Status: SourceOK},
			Metrics:      api,
			Score:        a.APIHealthScore(api),
		}
		scores = append(scores, report.API.Score.Value)
		report.Issues = append(report.Issues, a.detectAPIAnomalies(api)...)
	}

	if res, err := a.ResourceMetrics(ctx); err != nil {
		report.Resources.SourceStatus = unavailableStatus(err, "resource pressure unknown")
		unavailable++
		if a.logger != nil {
			a.logger.Warn("resource source unavailable", "error", err)
		}
	} else {
		report.Resources = ResourceSection{
			SourceStatus: SourceStatus{Status: SourceOK},
			Metrics:      res,
			Score:        a.ResourceHealthScore(res),
		}
		scores = append(scores, report.Resources.Score.Value)
	}

	report.CompositeScore = clampScore(average(scores))
	report.Status = statusFor(report.CompositeScore)

	if report.Connections.Status == SourceOK && report.API.Status == SourceOK {
		report.Issues = append(report.Issues, a.correlate(report.Connections.Metrics, report.API.Metrics, report.Resources)...)
	}
	if unavailable >= a.cfg.PartialFailureSources {
		report.Alerts = append(report.Alerts, domain.Alert{
			ID:        uuid.NewString(),
			Kind:      domain.AlertPartialMetrics,
			Severity:  domain.SeverityMedium,
			Message:   "multiple health sources are unavailable; composite score is partial",
			Timestamp: now,
			Status:    domain.AlertStatusActive,
		})
	}
	report.Recommendations = a.ScalingRecommendations(report)
	return report
}

func unavailableStatus(err error, impact string) SourceStatus {
	return SourceStatus{Status: SourceUnavailable, Error: err.Error(), Impact: impact}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		// nothing measurable; report a neutral midpoint rather than a
		// disabled indicator
		return 50
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func statusFor(score float64) string {
	switch {
	case score >= 80:
		return "healthy"
	case score >= 50:
		return "degraded"
	default:
		return "unhealthy"
	}
}
