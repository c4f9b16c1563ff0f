package health

import "math"

// Score is a clamped [0,100] component score with its factor breakdown.
type Score struct {
	Value   float64
	Status  string
	Factors map[string]float64
}

// ConnectionHealthScore maps connection metrics onto [0,100] using the
// configured weights. High utilization and low authentication rates pull the
// score down.
func (a *Aggregator) ConnectionHealthScore(m ConnectionMetrics) Score {
	w := a.cfg.Weights

	authFactor := 100.0
	if m.Total > 0 {
		authFactor = clampScore(m.AuthRate * 100)
	}
	utilizationFactor := clampScore((1 - m.Utilization) * 100)

	value := clampScore(weighted([]factor{
		{w.ConnAuthRate, authFactor},
		{w.ConnUtilization, utilizationFactor},
	}))
	return Score{
		Value:  value,
		Status: statusFor(value),
		Factors: map[string]float64{
			"auth_rate":   round2(authFactor),
			"utilization": round2(utilizationFactor),
		},
	}
}

// APIHealthScore maps API performance onto [0,100]: latency relative to the
// configured threshold, success rate, and throughput headroom.
func (a *Aggregator) APIHealthScore(m APIMetrics) Score {
	w := a.cfg.Weights

	latencyFactor := 100.0
	if a.cfg.ResponseTimeMS > 0 && m.AvgLatencyMS > 0 {
		latencyFactor = clampScore((1 - m.AvgLatencyMS/(a.cfg.ResponseTimeMS*2)) * 100)
	}
	successFactor := 100.0
	if m.TotalRequests > 0 {
		successFactor = clampScore(m.SuccessRate * 100)
	}
	throughputFactor := 100.0
	if a.cfg.MaxRequestsPerSecond > 0 {
		throughputFactor = clampScore((1 - m.RequestsPerSecond/a.cfg.MaxRequestsPerSecond) * 100)
	}

	value := clampScore(weighted([]factor{
		{w.APILatency, latencyFactor},
		{w.APISuccess, successFactor},
		{w.APIThroughput, throughputFactor},
	}))
	return Score{
		Value:  value,
		Status: statusFor(value),
		Factors: map[string]float64{
			"latency":    round2(latencyFactor),
			"success":    round2(successFactor),
			"throughput": round2(throughputFactor),
		},
	}
}

// ResourceHealthScore maps resource pressure onto [0,100]. Each dimension
// degrades linearly toward its configured ceiling.
func (a *Aggregator) ResourceHealthScore(m ResourceMetrics) Score {
	cpuFactor := headroom(m.CPUPercent, 100)
	memFactor := headroom(m.MemoryPercent, 100)
	goroutineFactor := 100.0
	if a.cfg.GoroutineCeiling > 0 {
		goroutineFactor = headroom(float64(m.Goroutines), float64(a.cfg.GoroutineCeiling))
	}

	value := clampScore((cpuFactor + memFactor + goroutineFactor) / 3)
	return Score{
		Value:  value,
		Status: statusFor(value),
		Factors: map[string]float64{
			"cpu":        round2(cpuFactor),
			"memory":     round2(memFactor),
			"goroutines": round2(goroutineFactor),
		},
	}
}

type factor struct {
	weight float64
	value  float64
}

// weighted combines factor values by weight; a zero total weight averages.
func weighted(factors []factor) float64 {
	var totalWeight, sum float64
	for _, f := range factors {
		totalWeight += f.weight
		sum += f.weight * f.value
	}
	if totalWeight == 0 {
		var plain float64
		for _, f := range factors {
			plain += f.value
		}
		return plain / float64(len(factors))
	}
	return sum / totalWeight
}

func headroom(value, ceiling float64) float64 {
	if ceiling <= 0 {
		return 100
	}
	return clampScore((1 - value/ceiling) * 100)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return round2(v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
