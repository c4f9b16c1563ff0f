package config

import "time"

// TelemetryConfig holds runtime configuration for the telemetry service.
type TelemetryConfig struct {
	Environment   string
	Addr          string
	DatabaseURL   string
	MigrationsDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CollectorEnabled bool
	SamplingRate     float64
	BufferCapacity   int
	BufferRetention  time.Duration
	BufferCleanup    time.Duration

	ResponseTimeThresholdMS float64
	ErrorRateThreshold      float64
	MaxConcurrentRequests   int
	MaxRequestsPerSecond    float64

	AlertsEnabled    bool
	MinAlertInterval time.Duration
	MaxActiveAlerts  int
	AlertChannels    string

	BatchWindow        time.Duration
	TimeSeriesInterval time.Duration

	MaxConnections       int
	ConnectionSpikeShare float64
	CPUThresholdPercent  float64
	MemThresholdPercent  float64
	GoroutineCeiling     int

	SnapshotInterval     time.Duration
	HistoryRetentionDays int
	HistoryCleanupEvery  time.Duration

	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	RateLimitKeyPrefix string
	RateLimitOpTimeout time.Duration

	TrendEpsilon float64
}

// LoadTelemetryConfig constructs a TelemetryConfig from environment variables.
func LoadTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Environment:   GetString("APP_ENV", "development"),
		Addr:          GetString("TELEMETRY_ADDR", ":4100"),
		DatabaseURL:   GetString("DATABASE_URL", ""),
		MigrationsDir: GetString("DB_MIGRATIONS_DIR", "./db/migrations"),

		RedisAddr:     GetString("TELEMETRY_REDIS_ADDR", ""),
		RedisPassword: GetString("TELEMETRY_REDIS_PASSWORD", ""),
		RedisDB:       GetInt("TELEMETRY_REDIS_DB", 0),

		CollectorEnabled: GetBool("COLLECTOR_ENABLED", true),
		SamplingRate:     GetFloat("COLLECTOR_SAMPLING_RATE", 1.0),
		BufferCapacity:   GetInt("COLLECTOR_BUFFER_CAPACITY", 10000),
		BufferRetention:  GetDuration("COLLECTOR_BUFFER_RETENTION", time.Hour),
		BufferCleanup:    GetDuration("COLLECTOR_BUFFER_CLEANUP_EVERY", 5*time.Minute),

		ResponseTimeThresholdMS: GetFloat("THRESHOLD_RESPONSE_TIME_MS", 1000),
		ErrorRateThreshold:      GetFloat("THRESHOLD_ERROR_RATE", 0.05),
		MaxConcurrentRequests:   GetInt("THRESHOLD_MAX_CONCURRENT", 500),
		MaxRequestsPerSecond:    GetFloat("THRESHOLD_MAX_RPS", 1000),

		AlertsEnabled:    GetBool("ALERTS_ENABLED", true),
		MinAlertInterval: GetDuration("ALERT_MIN_INTERVAL", 5*time.Minute),
		MaxActiveAlerts:  GetInt("ALERT_MAX_ACTIVE", 100),
		AlertChannels:    GetString("ALERT_CHANNELS", "dashboard"),

		BatchWindow:        GetDuration("COLLECTOR_BATCH_WINDOW", time.Second),
		TimeSeriesInterval: GetDuration("COLLECTOR_TIMESERIES_INTERVAL", time.Minute),

		MaxConnections:       GetInt("HEALTH_MAX_CONNECTIONS", 1000),
		ConnectionSpikeShare: GetFloat("HEALTH_CONNECTION_SPIKE_SHARE", 0.5),
		CPUThresholdPercent:  GetFloat("HEALTH_CPU_THRESHOLD_PERCENT", 80),
		MemThresholdPercent:  GetFloat("HEALTH_MEMORY_THRESHOLD_PERCENT", 85),
		GoroutineCeiling:     GetInt("HEALTH_GOROUTINE_CEILING", 10000),

		SnapshotInterval:     GetDuration("HEALTH_SNAPSHOT_INTERVAL", time.Minute),
		HistoryRetentionDays: GetInt("HEALTH_HISTORY_RETENTION_DAYS", 7),
		HistoryCleanupEvery:  GetDuration("HEALTH_HISTORY_CLEANUP_EVERY", time.Hour),

		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		RateLimitKeyPrefix: GetString("RATE_LIMIT_KEY_PREFIX", "dot:telemetry:ratelimit:"),
		RateLimitOpTimeout: GetDuration("RATE_LIMIT_REDIS_TIMEOUT", 250*time.Millisecond),

		TrendEpsilon: GetFloat("HEALTH_TREND_EPSILON", 0.25),
	}
}
