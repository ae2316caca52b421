package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Vector-Insights warehouse.
type Config struct {
	Env       string
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Load      LoadConfig
	Analytics AnalyticsConfig
	Fatigue   FatigueConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
	// ConnLifetime and ConnIdleTime bound pooled connections. Batch loads
	// hold connections much longer than request/response traffic, so both
	// are tunable rather than fixed.
	ConnLifetime time.Duration
	ConnIdleTime time.Duration
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool
	Path    string
	Addr    string
}

// LoadConfig controls fact-load batching and retry behavior.
type LoadConfig struct {
	ChunkSize    int
	ChunkRetries int
	// CalendarStart/CalendarEnd bound the pre-populated date dimension.
	CalendarStart string
	CalendarEnd   string
	// ConversionActionTypes is the allow-list of action types flagged as
	// conversions on first sight. Everything else is stored with
	// is_conversion=false until explicitly toggled.
	ConversionActionTypes []string
}

// AnalyticsConfig controls read-side query behavior.
type AnalyticsConfig struct {
	DefaultLookbackDays int
	MaxLookbackDays     int
	CacheTTL            time.Duration
	// MinTrendStrength is the normalized slope below which trend direction
	// is reported as flat.
	MinTrendStrength float64
}

// FatigueConfig controls creative fatigue detection.
type FatigueConfig struct {
	// InitialWindowDays and RecentWindowDays are the CTR comparison windows
	// at the start and end of the lookback period. A creative needs enough
	// active days to fill both without overlap, or it is excluded.
	InitialWindowDays int
	RecentWindowDays  int
	MinImpressions    int64
	MinActiveDays     int
	// Decline percentage thresholds. Must be ordered critical >= warning >= monitor.
	CriticalDeclinePct float64
	WarningDeclinePct  float64
	MonitorDeclinePct  float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("VECTOR_INSIGHTS_ENV", "development"),
		Database: DatabaseConfig{
			Host:         getEnv("VECTOR_INSIGHTS_DB_HOST", "localhost"),
			Port:         getIntEnv("VECTOR_INSIGHTS_DB_PORT", 5432),
			User:         getEnv("VECTOR_INSIGHTS_DB_USER", "insights"),
			Password:     getEnv("VECTOR_INSIGHTS_DB_PASSWORD", "insights_secret"),
			DBName:       getEnv("VECTOR_INSIGHTS_DB_NAME", "insights"),
			SSLMode:      getEnv("VECTOR_INSIGHTS_DB_SSLMODE", "disable"),
			MaxConns:     getIntEnv("VECTOR_INSIGHTS_DB_MAX_CONNS", 25),
			MinConns:     getIntEnv("VECTOR_INSIGHTS_DB_MIN_CONNS", 5),
			ConnLifetime: getDurationEnv("VECTOR_INSIGHTS_DB_CONN_LIFETIME", time.Hour),
			ConnIdleTime: getDurationEnv("VECTOR_INSIGHTS_DB_CONN_IDLE_TIME", 15*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("VECTOR_INSIGHTS_REDIS_ENABLED", true),
			Addr:     getEnv("VECTOR_INSIGHTS_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VECTOR_INSIGHTS_REDIS_PASSWORD", ""),
			DB:       getIntEnv("VECTOR_INSIGHTS_REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  getEnv("VECTOR_INSIGHTS_LOG_LEVEL", "info"),
			Format: getEnv("VECTOR_INSIGHTS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("VECTOR_INSIGHTS_METRICS_ENABLED", true),
			Path:    getEnv("VECTOR_INSIGHTS_METRICS_PATH", "/metrics"),
			Addr:    getEnv("VECTOR_INSIGHTS_METRICS_ADDR", ":9090"),
		},
		Load: LoadConfig{
			ChunkSize:     getIntEnv("VECTOR_INSIGHTS_LOAD_CHUNK_SIZE", 500),
			ChunkRetries:  getIntEnv("VECTOR_INSIGHTS_LOAD_CHUNK_RETRIES", 3),
			CalendarStart: getEnv("VECTOR_INSIGHTS_CALENDAR_START", "2020-01-01"),
			CalendarEnd:   getEnv("VECTOR_INSIGHTS_CALENDAR_END", "2030-12-31"),
			ConversionActionTypes: getSliceEnv("VECTOR_INSIGHTS_CONVERSION_ACTIONS",
				[]string{"purchase", "lead", "add_to_cart", "complete_registration"}),
		},
		Analytics: AnalyticsConfig{
			DefaultLookbackDays: getIntEnv("VECTOR_INSIGHTS_LOOKBACK_DEFAULT", 90),
			MaxLookbackDays:     getIntEnv("VECTOR_INSIGHTS_LOOKBACK_MAX", 90),
			CacheTTL:            getDurationEnv("VECTOR_INSIGHTS_CACHE_TTL", time.Hour),
			MinTrendStrength:    getFloatEnv("VECTOR_INSIGHTS_TREND_MIN_STRENGTH", 0.05),
		},
		Fatigue: FatigueConfig{
			InitialWindowDays:  getIntEnv("VECTOR_INSIGHTS_FATIGUE_INITIAL_WINDOW", 7),
			RecentWindowDays:   getIntEnv("VECTOR_INSIGHTS_FATIGUE_RECENT_WINDOW", 7),
			MinImpressions:     int64(getIntEnv("VECTOR_INSIGHTS_FATIGUE_MIN_IMPRESSIONS", 1000)),
			MinActiveDays:      getIntEnv("VECTOR_INSIGHTS_FATIGUE_MIN_ACTIVE_DAYS", 7),
			CriticalDeclinePct: getFloatEnv("VECTOR_INSIGHTS_FATIGUE_CRITICAL_PCT", 30),
			WarningDeclinePct:  getFloatEnv("VECTOR_INSIGHTS_FATIGUE_WARNING_PCT", 20),
			MonitorDeclinePct:  getFloatEnv("VECTOR_INSIGHTS_FATIGUE_MONITOR_PCT", 15),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants before any work begins.
func (c *Config) Validate() error {
	if c.Analytics.MaxLookbackDays <= 0 {
		return fmt.Errorf("VECTOR_INSIGHTS_LOOKBACK_MAX must be positive, got %d", c.Analytics.MaxLookbackDays)
	}
	if c.Analytics.DefaultLookbackDays > c.Analytics.MaxLookbackDays {
		return fmt.Errorf("default lookback %d exceeds max %d",
			c.Analytics.DefaultLookbackDays, c.Analytics.MaxLookbackDays)
	}
	if c.Load.ChunkSize <= 0 {
		return fmt.Errorf("VECTOR_INSIGHTS_LOAD_CHUNK_SIZE must be positive, got %d", c.Load.ChunkSize)
	}
	if c.Load.ChunkRetries < 0 {
		return fmt.Errorf("VECTOR_INSIGHTS_LOAD_CHUNK_RETRIES must not be negative, got %d", c.Load.ChunkRetries)
	}
	f := c.Fatigue
	if !(f.CriticalDeclinePct >= f.WarningDeclinePct && f.WarningDeclinePct >= f.MonitorDeclinePct) {
		return fmt.Errorf("fatigue thresholds must be ordered critical >= warning >= monitor, got %.1f/%.1f/%.1f",
			f.CriticalDeclinePct, f.WarningDeclinePct, f.MonitorDeclinePct)
	}
	if f.InitialWindowDays <= 0 || f.RecentWindowDays <= 0 {
		return fmt.Errorf("fatigue windows must be positive, got initial=%d recent=%d",
			f.InitialWindowDays, f.RecentWindowDays)
	}
	start, err := time.Parse("2006-01-02", c.Load.CalendarStart)
	if err != nil {
		return fmt.Errorf("invalid VECTOR_INSIGHTS_CALENDAR_START %q: %w", c.Load.CalendarStart, err)
	}
	end, err := time.Parse("2006-01-02", c.Load.CalendarEnd)
	if err != nil {
		return fmt.Errorf("invalid VECTOR_INSIGHTS_CALENDAR_END %q: %w", c.Load.CalendarEnd, err)
	}
	if end.Before(start) {
		return fmt.Errorf("calendar end %s before start %s", c.Load.CalendarEnd, c.Load.CalendarStart)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
