package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/radiusdt/vector-insights/internal/config"
	"github.com/radiusdt/vector-insights/internal/metrics"
	"github.com/radiusdt/vector-insights/internal/models"
	"github.com/radiusdt/vector-insights/internal/warehouse"
	"go.uber.org/zap"
)

// FatigueQuery parameterizes a fatigue detection run.
type FatigueQuery struct {
	AccountID    string `json:"account_id"`
	CampaignID   string `json:"campaign_id,omitempty"`
	LookbackDays int    `json:"lookback_days,omitempty"`
}

// FatigueService classifies per-creative CTR decline and produces
// prioritized refresh recommendations.
type FatigueService struct {
	reader   warehouse.Reader
	cache    Cache
	cfg      config.FatigueConfig
	queryCfg config.AnalyticsConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewFatigueService creates a FatigueService.
func NewFatigueService(reader warehouse.Reader, cache Cache, cfg config.FatigueConfig, queryCfg config.AnalyticsConfig, logger *zap.Logger, m *metrics.Metrics) *FatigueService {
	return &FatigueService{
		reader:   reader,
		cache:    cache,
		cfg:      cfg,
		queryCfg: queryCfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Analyze runs fatigue detection for the query's lookback window.
func (s *FatigueService) Analyze(ctx context.Context, q FatigueQuery) (*models.FatigueResult, error) {
	lookback, err := resolveLookback(q.LookbackDays, s.queryCfg)
	if err != nil {
		return nil, err
	}
	q.LookbackDays = lookback

	key := CacheKey("fatigue", q.AccountID, q)
	started := s.now()
	result, hit, err := cached(ctx, s.cache, key, s.queryCfg.CacheTTL, func() (*models.FatigueResult, error) {
		return s.compute(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCache("fatigue", hit)
	if !hit {
		s.metrics.RecordQuery("fatigue", s.now().Sub(started))
	}
	return result, nil
}

// creativeSeries is one creative's day-ordered activity inside the lookback.
type creativeSeries struct {
	creativeID string
	adID       string
	title      string
	days       []models.CreativeDailyStat // active days only, ascending
	totalImpr  int64
}

func (s *FatigueService) compute(ctx context.Context, q FatigueQuery) (*models.FatigueResult, error) {
	until := s.now().UTC().Truncate(24 * time.Hour)
	since := until.AddDate(0, 0, -(q.LookbackDays - 1))

	rows, err := s.reader.CreativeDailyStats(ctx, warehouse.StatsQuery{
		AccountID:  q.AccountID,
		CampaignID: q.CampaignID,
		Since:      since,
		Until:      until,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read creative stats: %w", err)
	}

	series := groupByCreative(rows)
	result := &models.FatigueResult{
		CriticalRefreshes: []models.CreativeFatigue{},
		WarningRefreshes:  []models.CreativeFatigue{},
		MonitorClosely:    []models.CreativeFatigue{},
		Recommendations:   []string{},
	}

	for _, cs := range series {
		cf, ok := s.classify(cs)
		if !ok {
			result.Summary.Excluded++
			continue
		}
		result.Summary.TotalAnalyzed++
		switch cf.Severity {
		case models.SeverityCritical:
			result.Summary.Critical++
			result.CriticalRefreshes = append(result.CriticalRefreshes, cf)
		case models.SeverityWarning:
			result.Summary.Warning++
			result.WarningRefreshes = append(result.WarningRefreshes, cf)
		case models.SeverityMonitor:
			result.Summary.Monitor++
			result.MonitorClosely = append(result.MonitorClosely, cf)
		default:
			result.Summary.Healthy++
		}
	}

	byDeclineDesc := func(list []models.CreativeFatigue) func(i, j int) bool {
		return func(i, j int) bool { return list[i].FatiguePct > list[j].FatiguePct }
	}
	sort.Slice(result.CriticalRefreshes, byDeclineDesc(result.CriticalRefreshes))
	sort.Slice(result.WarningRefreshes, byDeclineDesc(result.WarningRefreshes))
	sort.Slice(result.MonitorClosely, byDeclineDesc(result.MonitorClosely))

	result.Recommendations = recommendations(result)

	s.logger.Debug("fatigue detection computed",
		zap.String("account_id", q.AccountID),
		zap.Int("analyzed", result.Summary.TotalAnalyzed),
		zap.Int("excluded", result.Summary.Excluded),
		zap.Int("critical", result.Summary.Critical),
	)
	return result, nil
}

// groupByCreative collects each creative's active days in date order.
func groupByCreative(rows []models.CreativeDailyStat) []creativeSeries {
	byID := make(map[string]*creativeSeries)
	var order []string

	for _, r := range rows {
		if r.Impressions == 0 {
			continue
		}
		cs, ok := byID[r.CreativeID]
		if !ok {
			cs = &creativeSeries{creativeID: r.CreativeID, adID: r.AdID, title: r.Title}
			byID[r.CreativeID] = cs
			order = append(order, r.CreativeID)
		}
		cs.days = append(cs.days, r)
		cs.totalImpr += r.Impressions
	}

	out := make([]creativeSeries, 0, len(order))
	for _, id := range order {
		cs := byID[id]
		sort.Slice(cs.days, func(i, j int) bool { return cs.days[i].Date.Before(cs.days[j].Date) })
		out = append(out, *cs)
	}
	return out
}

// classify compares a creative's initial and recent CTR windows. Creatives
// below the activity thresholds, or with too few active days to fill both
// windows without overlap, are excluded entirely rather than reported as
// healthy: overlapping windows would dilute or zero out a real decline.
func (s *FatigueService) classify(cs creativeSeries) (models.CreativeFatigue, bool) {
	activeDays := len(cs.days)
	if cs.totalImpr < s.cfg.MinImpressions || activeDays < s.cfg.MinActiveDays {
		return models.CreativeFatigue{}, false
	}
	if activeDays < s.cfg.InitialWindowDays+s.cfg.RecentWindowDays {
		return models.CreativeFatigue{}, false
	}

	initialCTR := windowCTR(cs.days[:s.cfg.InitialWindowDays])
	recentCTR := windowCTR(cs.days[activeDays-s.cfg.RecentWindowDays:])
	if initialCTR == nil || recentCTR == nil || *initialCTR == 0 {
		return models.CreativeFatigue{}, false
	}

	fatiguePct := (*initialCTR - *recentCTR) / *initialCTR * 100

	cf := models.CreativeFatigue{
		CreativeID:  cs.creativeID,
		AdID:        cs.adID,
		Title:       cs.title,
		InitialCTR:  *initialCTR,
		RecentCTR:   *recentCTR,
		FatiguePct:  fatiguePct,
		Severity:    s.severity(fatiguePct),
		Impressions: cs.totalImpr,
		ActiveDays:  activeDays,
	}
	return cf, true
}

// severity maps a decline percentage to a bucket. Boundary values belong
// to the more severe bucket.
func (s *FatigueService) severity(declinePct float64) models.FatigueSeverity {
	switch {
	case declinePct >= s.cfg.CriticalDeclinePct:
		return models.SeverityCritical
	case declinePct >= s.cfg.WarningDeclinePct:
		return models.SeverityWarning
	case declinePct >= s.cfg.MonitorDeclinePct:
		return models.SeverityMonitor
	}
	return models.SeverityNone
}

// windowCTR computes CTR over a window from summed counts.
func windowCTR(days []models.CreativeDailyStat) *float64 {
	var clicks, impressions int64
	for _, d := range days {
		clicks += d.Clicks
		impressions += d.Impressions
	}
	return ctr(clicks, impressions)
}

// recommendations renders the partition into prioritized free-text advice.
func recommendations(r *models.FatigueResult) []string {
	recs := make([]string, 0, len(r.CriticalRefreshes)+len(r.WarningRefreshes)+2)
	for _, c := range r.CriticalRefreshes {
		recs = append(recs, fmt.Sprintf(
			"Refresh creative %s immediately: CTR fell %.1f%% (%.2f%% to %.2f%%)",
			c.CreativeID, c.FatiguePct, c.InitialCTR, c.RecentCTR))
	}
	for _, c := range r.WarningRefreshes {
		recs = append(recs, fmt.Sprintf(
			"Prepare a replacement for creative %s: CTR down %.1f%% and declining",
			c.CreativeID, c.FatiguePct))
	}
	if r.Summary.Monitor > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d creative(s) show early decline; re-check within a week", r.Summary.Monitor))
	}
	if r.Summary.TotalAnalyzed > 0 && r.Summary.Critical == 0 && r.Summary.Warning == 0 {
		recs = append(recs, "No creatives need an immediate refresh")
	}
	return recs
}
