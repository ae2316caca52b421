package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/radiusdt/vector-insights/internal/config"
	"github.com/radiusdt/vector-insights/internal/metrics"
	"github.com/radiusdt/vector-insights/internal/models"
	"github.com/radiusdt/vector-insights/internal/warehouse"
	"go.uber.org/zap"
)

// ErrLookbackTooLong rejects queries exceeding the configured hard cap
// before any computation begins.
var ErrLookbackTooLong = fmt.Errorf("lookback exceeds configured maximum")

// TrendQuery parameterizes a trend analysis.
type TrendQuery struct {
	AccountID    string `json:"account_id"`
	CampaignID   string `json:"campaign_id,omitempty"`
	LookbackDays int    `json:"lookback_days,omitempty"`
}

// TrendService computes weekly aggregates, day-of-week seasonality and
// summary trend metrics from the fact store.
type TrendService struct {
	reader  warehouse.Reader
	cache   Cache
	cfg     config.AnalyticsConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTrendService creates a TrendService.
func NewTrendService(reader warehouse.Reader, cache Cache, cfg config.AnalyticsConfig, logger *zap.Logger, m *metrics.Metrics) *TrendService {
	return &TrendService{
		reader:  reader,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Analyze runs the trend analysis for the query's lookback window.
func (s *TrendService) Analyze(ctx context.Context, q TrendQuery) (*models.TrendResult, error) {
	lookback, err := resolveLookback(q.LookbackDays, s.cfg)
	if err != nil {
		return nil, err
	}
	q.LookbackDays = lookback

	key := CacheKey("trends", q.AccountID, q)
	started := s.now()
	result, hit, err := cached(ctx, s.cache, key, s.cfg.CacheTTL, func() (*models.TrendResult, error) {
		return s.compute(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCache("trends", hit)
	if !hit {
		s.metrics.RecordQuery("trends", s.now().Sub(started))
	}
	return result, nil
}

func (s *TrendService) compute(ctx context.Context, q TrendQuery) (*models.TrendResult, error) {
	until := s.now().UTC().Truncate(24 * time.Hour)
	since := until.AddDate(0, 0, -(q.LookbackDays - 1))

	days, err := s.reader.DailyStats(ctx, warehouse.StatsQuery{
		AccountID:  q.AccountID,
		CampaignID: q.CampaignID,
		Since:      since,
		Until:      until,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read daily stats: %w", err)
	}

	result := &models.TrendResult{
		WeeklyTrends:     weeklyTrends(days),
		DailySeasonality: seasonality(days),
	}
	result.TrendMetrics = s.trendMetrics(result.WeeklyTrends, result.DailySeasonality)

	s.logger.Debug("trend analysis computed",
		zap.String("account_id", q.AccountID),
		zap.Int("days", len(days)),
		zap.Int("weeks", len(result.WeeklyTrends)),
	)
	return result, nil
}

// weeklyTrends groups daily stats into ISO weeks and derives ratios from
// the weekly sums. Week-over-week change follows the weekly conversion
// series; a zero prior week yields a nil change, never infinity.
func weeklyTrends(days []models.DailyStat) []models.WeeklyTrend {
	type weekKey struct {
		year int
		week int
	}
	byWeek := make(map[weekKey]*models.WeeklyTrend)
	var order []weekKey

	for _, d := range days {
		y, w := d.Date.ISOWeek()
		k := weekKey{year: y, week: w}
		t, ok := byWeek[k]
		if !ok {
			t = &models.WeeklyTrend{Week: fmt.Sprintf("%d-W%02d", y, w)}
			byWeek[k] = t
			order = append(order, k)
		}
		t.Spend += d.Spend
		t.Impressions += d.Impressions
		t.Clicks += d.Clicks
		t.Conversions += d.Conversions
		t.ConversionValue += d.ConversionValue
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].year != order[j].year {
			return order[i].year < order[j].year
		}
		return order[i].week < order[j].week
	})

	trends := make([]models.WeeklyTrend, 0, len(order))
	for i, k := range order {
		t := *byWeek[k]
		t.CTR = ctr(t.Clicks, t.Impressions)
		t.CPC = ratio(t.Spend, float64(t.Clicks), 1)
		t.ROAS = ratio(t.ConversionValue, t.Spend, 1)
		if i > 0 {
			prev := byWeek[order[i-1]]
			t.WowChangePct = ratio(t.Conversions-prev.Conversions, prev.Conversions, 100)
		}
		trends = append(trends, t)
	}
	return trends
}

// seasonality averages performance per weekday across the full lookback.
// Ratios come from the weekday's summed numerators and denominators, never
// from averaging daily ratios.
func seasonality(days []models.DailyStat) []models.SeasonalityDay {
	type agg struct {
		spend       float64
		impressions int64
		clicks      int64
		value       float64
		seen        bool
	}
	var byWeekday [7]agg

	for _, d := range days {
		a := &byWeekday[int(d.Date.Weekday())]
		a.spend += d.Spend
		a.impressions += d.Impressions
		a.clicks += d.Clicks
		a.value += d.ConversionValue
		a.seen = true
	}

	var profile []models.SeasonalityDay
	for wd := 0; wd < 7; wd++ {
		a := byWeekday[wd]
		if !a.seen {
			continue
		}
		profile = append(profile, models.SeasonalityDay{
			Weekday:     time.Weekday(wd).String(),
			Spend:       a.spend,
			Impressions: a.impressions,
			Clicks:      a.clicks,
			AvgCTR:      ctr(a.clicks, a.impressions),
			AvgROAS:     ratio(a.value, a.spend, 1),
		})
	}
	return profile
}

// trendMetrics summarizes direction, strength and volatility of the weekly
// conversion series and picks the best and worst weekday by CTR.
func (s *TrendService) trendMetrics(weeks []models.WeeklyTrend, profile []models.SeasonalityDay) models.TrendMetrics {
	tm := models.TrendMetrics{Direction: "flat"}

	series := make([]float64, len(weeks))
	for i, w := range weeks {
		series[i] = w.Conversions
	}

	if len(series) >= 2 {
		m := mean(series)
		sl := slope(series)
		if m > 0 {
			tm.Strength = math.Abs(sl) / m
		}
		switch {
		case tm.Strength < s.cfg.MinTrendStrength:
			tm.Direction = "flat"
		case sl > 0:
			tm.Direction = "up"
		default:
			tm.Direction = "down"
		}
		tm.Volatility = coefficientOfVariation(series)
	}

	var best, worst *models.SeasonalityDay
	for i := range profile {
		d := &profile[i]
		if d.AvgCTR == nil {
			continue
		}
		if best == nil || *d.AvgCTR > *best.AvgCTR {
			best = d
		}
		if worst == nil || *d.AvgCTR < *worst.AvgCTR {
			worst = d
		}
	}
	if best != nil {
		tm.BestDay = best.Weekday
	}
	if worst != nil {
		tm.WorstDay = worst.Weekday
	}
	return tm
}

// resolveLookback applies the default and enforces the hard cap.
func resolveLookback(requested int, cfg config.AnalyticsConfig) (int, error) {
	if requested <= 0 {
		return cfg.DefaultLookbackDays, nil
	}
	if requested > cfg.MaxLookbackDays {
		return 0, fmt.Errorf("%w: requested %d days, maximum %d",
			ErrLookbackTooLong, requested, cfg.MaxLookbackDays)
	}
	return requested, nil
}
