package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/radiusdt/vector-insights/internal/config"
	"github.com/radiusdt/vector-insights/internal/metrics"
	"github.com/radiusdt/vector-insights/internal/models"
	"github.com/radiusdt/vector-insights/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Prometheus collectors register globally, so the test binary shares one set.
var testMetrics = metrics.NewMetrics("analytics_test")

// stubReader serves canned aggregates.
type stubReader struct {
	daily    []models.DailyStat
	creative []models.CreativeDailyStat
}

func (r *stubReader) DailyStats(ctx context.Context, q warehouse.StatsQuery) ([]models.DailyStat, error) {
	return r.daily, nil
}

func (r *stubReader) CreativeDailyStats(ctx context.Context, q warehouse.StatsQuery) ([]models.CreativeDailyStat, error) {
	return r.creative, nil
}

func testAnalyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		DefaultLookbackDays: 90,
		MaxLookbackDays:     90,
		CacheTTL:            time.Hour,
		MinTrendStrength:    0.05,
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 6, 20, 12, 0, 0, 0, time.UTC)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestTrendService(reader warehouse.Reader) *TrendService {
	svc := NewTrendService(reader, NewMemoryCache(), testAnalyticsConfig(), zap.NewNop(), testMetrics)
	svc.now = fixedNow
	return svc
}

func TestWeeklyCTRIsSummedNotAveraged(t *testing.T) {
	// Two days in the same ISO week with very different volume. Averaging
	// the daily CTRs would report 5.06%; the correct pooled CTR is 1.1%.
	reader := &stubReader{daily: []models.DailyStat{
		{Date: day(2026, 6, 15), Impressions: 100, Clicks: 10},
		{Date: day(2026, 6, 16), Impressions: 900, Clicks: 1},
	}}

	result, err := newTestTrendService(reader).Analyze(context.Background(), TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)
	require.Len(t, result.WeeklyTrends, 1)

	week := result.WeeklyTrends[0]
	require.NotNil(t, week.CTR)
	assert.InDelta(t, 1.1, *week.CTR, 0.0001)
}

func TestWeekOverWeekChangeIsNullAfterZeroWeek(t *testing.T) {
	reader := &stubReader{daily: []models.DailyStat{
		{Date: day(2026, 6, 1), Impressions: 100, Conversions: 0},
		{Date: day(2026, 6, 8), Impressions: 100, Conversions: 5},
		{Date: day(2026, 6, 15), Impressions: 100, Conversions: 10},
	}}

	result, err := newTestTrendService(reader).Analyze(context.Background(), TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)
	require.Len(t, result.WeeklyTrends, 3)

	assert.Nil(t, result.WeeklyTrends[0].WowChangePct, "first week has no prior")
	assert.Nil(t, result.WeeklyTrends[1].WowChangePct, "prior week had zero conversions")
	require.NotNil(t, result.WeeklyTrends[2].WowChangePct)
	assert.InDelta(t, 100, *result.WeeklyTrends[2].WowChangePct, 0.0001)
}

func TestWeeklyTrendsOrderedAcrossYearBoundary(t *testing.T) {
	reader := &stubReader{daily: []models.DailyStat{
		{Date: day(2026, 1, 5), Impressions: 10},  // 2026-W02
		{Date: day(2025, 12, 29), Impressions: 5}, // 2026-W01
	}}

	result, err := newTestTrendService(reader).Analyze(context.Background(), TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)
	require.Len(t, result.WeeklyTrends, 2)
	assert.Equal(t, "2026-W01", result.WeeklyTrends[0].Week)
	assert.Equal(t, "2026-W02", result.WeeklyTrends[1].Week)
}

func TestSeasonalityOmitsUnseenWeekdays(t *testing.T) {
	reader := &stubReader{daily: []models.DailyStat{
		{Date: day(2026, 6, 15), Impressions: 1000, Clicks: 30, Spend: 50, ConversionValue: 100}, // Monday
		{Date: day(2026, 6, 8), Impressions: 1000, Clicks: 10, Spend: 50, ConversionValue: 200},  // Monday
		{Date: day(2026, 6, 16), Impressions: 500, Clicks: 5},                                    // Tuesday
	}}

	result, err := newTestTrendService(reader).Analyze(context.Background(), TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)
	require.Len(t, result.DailySeasonality, 2)

	monday := result.DailySeasonality[0]
	assert.Equal(t, "Monday", monday.Weekday)
	require.NotNil(t, monday.AvgCTR)
	assert.InDelta(t, 2.0, *monday.AvgCTR, 0.0001) // 40 clicks / 2000 impressions
	require.NotNil(t, monday.AvgROAS)
	assert.InDelta(t, 3.0, *monday.AvgROAS, 0.0001) // 300 value / 100 spend
}

func TestTrendMetricsDirection(t *testing.T) {
	up := &stubReader{daily: []models.DailyStat{
		{Date: day(2026, 6, 1), Impressions: 100, Clicks: 5, Conversions: 10},
		{Date: day(2026, 6, 8), Impressions: 100, Clicks: 5, Conversions: 20},
		{Date: day(2026, 6, 15), Impressions: 100, Clicks: 5, Conversions: 30},
	}}
	result, err := newTestTrendService(up).Analyze(context.Background(), TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)
	assert.Equal(t, "up", result.TrendMetrics.Direction)
	assert.Equal(t, "Monday", result.TrendMetrics.BestDay)

	flat := &stubReader{daily: []models.DailyStat{
		{Date: day(2026, 6, 1), Conversions: 100},
		{Date: day(2026, 6, 8), Conversions: 101},
		{Date: day(2026, 6, 15), Conversions: 100},
	}}
	result, err = newTestTrendService(flat).Analyze(context.Background(), TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)
	assert.Equal(t, "flat", result.TrendMetrics.Direction)
}

func TestTrendMetricsSingleWeekIsFlat(t *testing.T) {
	reader := &stubReader{daily: []models.DailyStat{
		{Date: day(2026, 6, 15), Conversions: 10},
	}}
	result, err := newTestTrendService(reader).Analyze(context.Background(), TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)
	assert.Equal(t, "flat", result.TrendMetrics.Direction)
	assert.Nil(t, result.TrendMetrics.Volatility)
}

func TestAnalyzeRejectsExcessiveLookback(t *testing.T) {
	svc := newTestTrendService(&stubReader{})
	_, err := svc.Analyze(context.Background(), TrendQuery{AccountID: "act_1", LookbackDays: 120})
	assert.ErrorIs(t, err, ErrLookbackTooLong)
}

func TestAnalyzeServesSecondCallFromCache(t *testing.T) {
	reader := &stubReader{daily: []models.DailyStat{
		{Date: day(2026, 6, 15), Impressions: 100, Clicks: 10},
	}}
	svc := newTestTrendService(reader)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)

	// Change the underlying data; the cached result must still be served.
	reader.daily = nil
	second, err := svc.Analyze(ctx, TrendQuery{AccountID: "act_1"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveLookbackAppliesDefault(t *testing.T) {
	cfg := testAnalyticsConfig()

	got, err := resolveLookback(0, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultLookbackDays, got)

	got, err = resolveLookback(30, cfg)
	require.NoError(t, err)
	assert.Equal(t, 30, got)
}
