package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/crazybass81/DOT-sub003/internal/domain"
)

type endpointKey struct {
	method   string
	endpoint string
}

// Summary recomputes the full derived view from current buffer contents. A
// disabled collector returns a zeroed summary.
func (c *Collector) Summary() domain.MetricsSummary {
	now := c.now().UTC()
	summary := domain.MetricsSummary{
		GeneratedAt: now,
		StatusCodes: make(map[int]int),
	}
	if !c.IsEnabled() {
		return summary
	}

	records := c.buffer.Items()
	summary.InflightRequests = c.currentInflight()
	summary.TotalRequests = len(records)
	if len(records) == 0 {
		return summary
	}

	var latencySum float64
	var successCount int
	latencies := make([]float64, 0, len(records))
	byEndpoint := make(map[endpointKey][]domain.MetricRecord)
	for _, record := range records {
		latencySum += record.ResponseTimeMS
		latencies = append(latencies, record.ResponseTimeMS)
		summary.StatusCodes[record.StatusCode]++
		if !record.IsError() {
			successCount++
		}
		key := endpointKey{method: record.Method, endpoint: record.Endpoint}
		byEndpoint[key] = append(byEndpoint[key], record)
	}

	summary.AvgResponseTimeMS = round2(latencySum / float64(len(records)))
	summary.SuccessRate = round4(float64(successCount) / float64(len(records)))
	summary.ErrorRate = round4(float64(len(records)-successCount) / float64(len(records)))
	summary.RequestsPerSecond = throughput(records, time.Second)

	summary.Endpoints = endpointStats(byEndpoint)
	summary.Volume, summary.LatencyMS, summary.ErrorRates = c.timeSeries(records)
	summary.Slowest = slowestRecords(records, c.cfg.SlowestCount)
	summary.Errors = errorRecords(records)
	return summary
}

func endpointStats(byEndpoint map[endpointKey][]domain.MetricRecord) []domain.EndpointStats {
	stats := make([]domain.EndpointStats, 0, len(byEndpoint))
	for key, records := range byEndpoint {
		latencies := make([]float64, 0, len(records))
		var sum float64
		var success int
		for _, record := range records {
			latencies = append(latencies, record.ResponseTimeMS)
			sum += record.ResponseTimeMS
			if !record.IsError() {
				success++
			}
		}
		sort.Float64s(latencies)
		entry := domain.EndpointStats{
			Method:            key.method,
			Endpoint:          key.endpoint,
			Count:             len(records),
			SuccessCount:      success,
			FailureCount:      len(records) - success,
			AvgMS:             round2(sum / float64(len(records))),
			MedianMS:          nearestRank(latencies, 50),
			P95MS:             nearestRank(latencies, 95),
			P99MS:             nearestRank(latencies, 99),
			MinMS:             latencies[0],
			MaxMS:             latencies[len(latencies)-1],
			RequestsPerMinute: throughput(records, time.Minute),
			SuccessRate:       round4(float64(success) / float64(len(records))),
		}
		stats = append(stats, entry)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Endpoint != stats[j].Endpoint {
			return stats[i].Endpoint < stats[j].Endpoint
		}
		return stats[i].Method < stats[j].Method
	})
	return stats
}

// nearestRank selects the pth percentile from an already sorted sample set
// using nearest-rank selection, so p99 >= p95 >= p50 holds by construction.
func nearestRank(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(float64(len(sorted)) * p / 100)
	if float64(len(sorted))*p/100 > float64(rank) {
		rank++
	}
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// throughput derives events per unit from the observed record span. A window
// narrower than one unit counts as one unit so a burst does not explode the
// rate.
func throughput(records []domain.MetricRecord, unit time.Duration) float64 {
	if len(records) == 0 {
		return 0
	}
	oldest, newest := records[0].Timestamp, records[0].Timestamp
	for _, record := range records[1:] {
		if record.Timestamp.Before(oldest) {
			oldest = record.Timestamp
		}
		if record.Timestamp.After(newest) {
			newest = record.Timestamp
		}
	}
	span := newest.Sub(oldest)
	if span < unit {
		span = unit
	}
	return round2(float64(len(records)) / (float64(span) / float64(unit)))
}

// timeSeries buckets records into fixed intervals. Buckets come out strictly
// chronological regardless of arrival order.
func (c *Collector) timeSeries(records []domain.MetricRecord) (volume, latency, errorRate []domain.TimeSeriesPoint) {
	interval := c.cfg.TimeSeriesInterval
	type bin struct {
		count      int
		errors     int
		latencySum float64
	}
	bins := make(map[time.Time]*bin)
	for _, record := range records {
		bucket := record.Timestamp.Truncate(interval)
		entry := bins[bucket]
		if entry == nil {
			entry = &bin{}
			bins[bucket] = entry
		}
		entry.count++
		entry.latencySum += record.ResponseTimeMS
		if record.IsError() {
			entry.errors++
		}
	}
	buckets := make([]time.Time, 0, len(bins))
	for bucket := range bins {
		buckets = append(buckets, bucket)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	for _, bucket := range buckets {
		entry := bins[bucket]
		volume = append(volume, domain.TimeSeriesPoint{Bucket: bucket, Value: float64(entry.count)})
		latency = append(latency, domain.TimeSeriesPoint{Bucket: bucket, Value: round2(entry.latencySum / float64(entry.count))})
		errorRate = append(errorRate, domain.TimeSeriesPoint{Bucket: bucket, Value: round4(float64(entry.errors) / float64(entry.count))})
	}
	return volume, latency, errorRate
}

func slowestRecords(records []domain.MetricRecord, n int) []domain.MetricRecord {
	sorted := append([]domain.MetricRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ResponseTimeMS > sorted[j].ResponseTimeMS
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func errorRecords(records []domain.MetricRecord) []domain.MetricRecord {
	var result []domain.MetricRecord
	for _, record := range records {
		if record.IsError() {
			result = append(result, record)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}

// summaryPayload shapes a summary for outward publishing.
func summaryPayload(summary domain.MetricsSummary) map[string]any {
	endpoints := make([]map[string]any, 0, len(summary.Endpoints))
	for _, ep := range summary.Endpoints {
		endpoints = append(endpoints, map[string]any{
			"method":              ep.Method,
			"endpoint":            ep.Endpoint,
			"count":               ep.Count,
			"success_count":       ep.SuccessCount,
			"failure_count":       ep.FailureCount,
			"avg_ms":              ep.AvgMS,
			"median_ms":           ep.MedianMS,
			"p95_ms":              ep.P95MS,
			"p99_ms":              ep.P99MS,
			"min_ms":              ep.MinMS,
			"max_ms":              ep.MaxMS,
			"requests_per_minute": ep.RequestsPerMinute,
			"success_rate":        ep.SuccessRate,
		})
	}
	return map[string]any{
		"generated_at":        summary.GeneratedAt.Format(time.RFC3339Nano),
		"total_requests":      summary.TotalRequests,
		"inflight_requests":   summary.InflightRequests,
		"requests_per_second": summary.RequestsPerSecond,
		"avg_response_ms":     summary.AvgResponseTimeMS,
		"success_rate":        summary.SuccessRate,
		"error_rate":          summary.ErrorRate,
		"endpoints":           endpoints,
		"status_codes":        summary.StatusCodes,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
