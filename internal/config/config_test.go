package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 500, cfg.Load.ChunkSize)
	assert.Equal(t, time.Hour, cfg.Database.ConnLifetime)
	assert.Equal(t, 15*time.Minute, cfg.Database.ConnIdleTime)
	assert.Equal(t, 90, cfg.Analytics.DefaultLookbackDays)
	assert.Equal(t, time.Hour, cfg.Analytics.CacheTTL)
	assert.Equal(t, 30.0, cfg.Fatigue.CriticalDeclinePct)
	assert.Contains(t, cfg.Load.ConversionActionTypes, "purchase")
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("VECTOR_INSIGHTS_ENV", "production")
	t.Setenv("VECTOR_INSIGHTS_LOAD_CHUNK_SIZE", "250")
	t.Setenv("VECTOR_INSIGHTS_CACHE_TTL", "30m")
	t.Setenv("VECTOR_INSIGHTS_DB_CONN_LIFETIME", "45m")
	t.Setenv("VECTOR_INSIGHTS_CONVERSION_ACTIONS", "purchase, subscribe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 250, cfg.Load.ChunkSize)
	assert.Equal(t, 30*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 45*time.Minute, cfg.Database.ConnLifetime)
	assert.Equal(t, []string{"purchase", "subscribe"}, cfg.Load.ConversionActionTypes)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", DBName: "insights", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5432/insights?sslmode=disable", d.DSN())
}

func TestValidateRejectsBadConfig(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"default lookback over max", func(c *Config) { c.Analytics.DefaultLookbackDays = 120 }},
		{"non-positive max lookback", func(c *Config) { c.Analytics.MaxLookbackDays = 0 }},
		{"non-positive chunk size", func(c *Config) { c.Load.ChunkSize = 0 }},
		{"negative retries", func(c *Config) { c.Load.ChunkRetries = -1 }},
		{"disordered fatigue thresholds", func(c *Config) { c.Fatigue.WarningDeclinePct = 40 }},
		{"zero fatigue window", func(c *Config) { c.Fatigue.InitialWindowDays = 0 }},
		{"bad calendar start", func(c *Config) { c.Load.CalendarStart = "June 1" }},
		{"calendar end before start", func(c *Config) { c.Load.CalendarEnd = "2019-01-01" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
