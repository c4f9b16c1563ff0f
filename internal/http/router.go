package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crazybass81/DOT-sub003/internal/domain"
	"github.com/crazybass81/DOT-sub003/internal/publish"
	"github.com/crazybass81/DOT-sub003/internal/repository"
	"github.com/crazybass81/DOT-sub003/internal/service/health"
	"github.com/crazybass81/DOT-sub003/internal/service/metrics"
	"github.com/crazybass81/DOT-sub003/internal/ws"
)

// Router wires the read surface to the collector and aggregator.
type Router struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	collector  *metrics.Collector
	aggregator *health.Aggregator
	alerts     repository.AlertRepository
	hub        *ws.Hub
	upgrader   websocket.Upgrader
	limiter    RateLimiter

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	healthScore        *prometheus.GaugeVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitIngest    = 6000
	rateLimitRead      = 240
	rateLimitStream    = 30
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, collector *metrics.Collector, aggregator *health.Aggregator, alerts repository.AlertRepository, hub *ws.Hub, limiter RateLimiter) *Router {
	r := &Router{
		mux:        http.NewServeMux(),
		logger:     logger,
		collector:  collector,
		aggregator: aggregator,
		alerts:     alerts,
		hub:        hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter: limiter,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.handleHealthz)
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/v1/events", r.instrument("/v1/events",
		r.withRateLimit("/v1/events", rateLimitIngest, rateWindowDefault, r.handleIngest)))
	r.mux.HandleFunc("/v1/metrics/summary", r.instrument("/v1/metrics/summary",
		r.withRateLimit("/v1/metrics/summary", rateLimitRead, rateWindowDefault, r.handleSummary)))
	r.mux.HandleFunc("/v1/alerts", r.instrument("/v1/alerts",
		r.withRateLimit("/v1/alerts", rateLimitRead, rateWindowDefault, r.handleAlerts)))
	r.mux.HandleFunc("/v1/health/report", r.instrument("/v1/health/report",
		r.withRateLimit("/v1/health/report", rateLimitRead, rateWindowDefault, r.handleHealthReport)))
	r.mux.HandleFunc("/v1/health/trends", r.instrument("/v1/health/trends",
		r.withRateLimit("/v1/health/trends", rateLimitRead, rateWindowDefault, r.handleHealthTrends)))
	r.mux.HandleFunc("/v1/health/forecast", r.instrument("/v1/health/forecast",
		r.withRateLimit("/v1/health/forecast", rateLimitRead, rateWindowDefault, r.handleHealthForecast)))
	r.mux.HandleFunc("/ws/stream", r.withRateLimit("/ws/stream", rateLimitStream, rateWindowRealtime, r.handleStreamWS))
	r.mux.HandleFunc("/sse/stream", r.withRateLimit("/sse/stream", rateLimitStream, rateWindowRealtime, r.handleStreamSSE))
}

// instrument times the handler, records request metrics, and feeds the
// collector with a record for the completed request.
func (r *Router) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.collector != nil {
			r.collector.IncInflight()
			defer r.collector.DecInflight()
		}
		recorder := &responseRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)
		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, elapsed)
		if r.collector != nil {
			r.collector.Collect(domain.MetricRecord{
				Source:         "telemetry_api",
				Method:         req.Method,
				Endpoint:       route,
				StatusCode:     status,
				ResponseTimeMS: float64(elapsed) / float64(time.Millisecond),
				Timestamp:      start.UTC(),
			})
		}
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *responseRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleIngest(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if r.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "collector not configured")
		return
	}
	var payload struct {
		RequestID      string  `json:"request_id"`
		Source         string  `json:"source"`
		Method         string  `json:"method"`
		Endpoint       string  `json:"endpoint"`
		StatusCode     int     `json:"status_code"`
		ResponseTimeMS float64 `json:"response_time_ms"`
		Timestamp      string  `json:"timestamp"`
		BytesIn        *int64  `json:"bytes_in"`
		BytesOut       *int64  `json:"bytes_out"`
		UserID         string  `json:"user_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	timestamp := time.Now().UTC()
	if payload.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timestamp")
			return
		}
		timestamp = parsed.UTC()
	}
	// malformed records are dropped inside Collect by design
	r.collector.Collect(domain.MetricRecord{
		RequestID:      payload.RequestID,
		Source:         payload.Source,
		Method:         payload.Method,
		Endpoint:       payload.Endpoint,
		StatusCode:     payload.StatusCode,
		ResponseTimeMS: payload.ResponseTimeMS,
		Timestamp:      timestamp,
		BytesIn:        payload.BytesIn,
		BytesOut:       payload.BytesOut,
		UserID:         payload.UserID,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "collector not configured")
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse(r.collector.Summary()))
}

func (r *Router) handleAlerts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "collector not configured")
		return
	}
	response := map[string]any{
		"active": alertList(r.collector.ActiveAlerts()),
	}
	if req.URL.Query().Get("include") == "history" && r.alerts != nil {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		history, err := r.alerts.ListRecentAlerts(req.Context(), limit)
		if err != nil {
			r.logger.Warn("failed to load alert history", "error", err)
		} else {
			response["history"] = alertList(history)
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (r *Router) handleHealthReport(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.aggregator == nil {
		writeError(w, http.StatusServiceUnavailable, "aggregator not configured")
		return
	}
	report := r.aggregator.CombinedReport(req.Context())
	r.recordHealthScores(map[string]float64{
		"composite":   report.CompositeScore,
		"connections": report.Connections.Score.Value,
		"api":         report.API.Score.Value,
		"resources":   report.Resources.Score.Value,
	})
	writeJSON(w, http.StatusOK, reportResponse(report))
}

func (r *Router) handleHealthTrends(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.aggregator == nil {
		writeError(w, http.StatusServiceUnavailable, "aggregator not configured")
		return
	}
	window := parseDurationParam(req, "window", 24*time.Hour)
	analysis, err := r.aggregator.AnalyzeTrends(req.Context(), window)
	if err != nil {
		r.logger.Warn("trend analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "trend analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window":      analysis.Window.String(),
		"direction":   analysis.Direction,
		"change_rate": analysis.ChangeRate,
		"samples":     analysis.Samples,
		"first":       analysis.First,
		"latest":      analysis.Latest,
	})
}

func (r *Router) handleHealthForecast(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.aggregator == nil {
		writeError(w, http.StatusServiceUnavailable, "aggregator not configured")
		return
	}
	horizon := parseDurationParam(req, "horizon", time.Hour)
	forecast, err := r.aggregator.PredictTrends(req.Context(), horizon)
	if err != nil {
		r.logger.Warn("trend forecast failed", "error", err)
		writeError(w, http.StatusInternalServerError, "trend forecast failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"horizon":         forecast.Horizon.String(),
		"direction":       forecast.Direction,
		"predicted_score": forecast.PredictedScore,
		"confidence":      forecast.Confidence,
		"samples":         forecast.Samples,
	})
}

func (r *Router) handleStreamWS(w http.ResponseWriter, req *http.Request) {
	topic := streamTopic(req)
	if topic == "" {
		writeError(w, http.StatusBadRequest, "unknown topic")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(topic, client)
	go func() {
		defer func() {
			r.hub.Unregister(topic, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (r *Router) handleStreamSSE(w http.ResponseWriter, req *http.Request) {
	topic := streamTopic(req)
	if topic == "" {
		writeError(w, http.StatusBadRequest, "unknown topic")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, "telemetry", r.logger)
	r.hub.Register(topic, client)
	defer func() {
		r.hub.Unregister(topic, client)
		client.Close()
	}()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-heartbeat.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func streamTopic(req *http.Request) string {
	switch req.URL.Query().Get("topic") {
	case "", "updates":
		return publish.TopicUpdates
	case "alerts":
		return publish.TopicAlerts
	}
	return ""
}

func parseDurationParam(req *http.Request, name string, fallback time.Duration) time.Duration {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
