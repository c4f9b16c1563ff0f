package domain

import "time"

// MetricRecord captures one completed request observed by the instrumentation
// layer. Records are immutable once ingested.
type MetricRecord struct {
	RequestID      string
	Source         string
	Method         string
	Endpoint       string
	StatusCode     int
	ResponseTimeMS float64
	Timestamp      time.Time
	BytesIn        *int64
	BytesOut       *int64
	UserID         string
}

// IsError reports whether the record represents a failed request.
func (r MetricRecord) IsError() bool {
	return r.StatusCode >= 400
}

// EndpointStats is a derived view over the currently retained records for one
// (method, endpoint) pair. It is recomputed on every read and never persisted.
type EndpointStats struct {
	Method            string
	Endpoint          string
	Count             int
	SuccessCount      int
	FailureCount      int
	AvgMS             float64
	MedianMS          float64
	P95MS             float64
	P99MS             float64
	MinMS             float64
	MaxMS             float64
	RequestsPerMinute float64
	SuccessRate       float64
}

// TimeSeriesPoint is one fixed-interval bucket of a derived series.
type TimeSeriesPoint struct {
	Bucket time.Time
	Value  float64
}

// MetricsSummary is the collector's full derived view over the current buffer
// contents.
type MetricsSummary struct {
	GeneratedAt       time.Time
	TotalRequests     int
	InflightRequests  int
	RequestsPerSecond float64
	AvgResponseTimeMS float64
	SuccessRate       float64
	ErrorRate         float64
	Endpoints         []EndpointStats
	StatusCodes       map[int]int
	Volume            []TimeSeriesPoint
	LatencyMS         []TimeSeriesPoint
	ErrorRates        []TimeSeriesPoint
	Slowest           []MetricRecord
	Errors            []MetricRecord
}
