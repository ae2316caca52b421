package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/radiusdt/vector-insights/internal/config"
	"github.com/radiusdt/vector-insights/internal/metrics"
	"github.com/radiusdt/vector-insights/internal/models"
	"github.com/radiusdt/vector-insights/internal/warehouse"
	"go.uber.org/zap"
)

// Taxonomy maps theme names to the lowercase keywords that signal them.
// A creative may match any number of themes; matching is substring-based
// over the concatenated title and body.
type Taxonomy map[string][]string

// DefaultTaxonomy covers the messaging angles most ad copy falls into.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		"urgency":      {"now", "today", "limited", "hurry", "last chance", "ends"},
		"discount":     {"% off", "sale", "discount", "save", "deal", "free shipping"},
		"social_proof": {"reviews", "customers", "loved by", "trusted", "rated", "bestseller"},
		"question":     {"?"},
		"benefit":      {"you", "your"},
	}
}

// Classify returns every theme whose keywords appear in the creative text.
func (t Taxonomy) Classify(text string) []string {
	lowered := strings.ToLower(text)
	var themes []string
	for theme, keywords := range t {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				themes = append(themes, theme)
				break
			}
		}
	}
	sort.Strings(themes)
	return themes
}

// PatternQuery parameterizes a pattern classification run.
type PatternQuery struct {
	AccountID    string `json:"account_id"`
	CampaignID   string `json:"campaign_id,omitempty"`
	LookbackDays int    `json:"lookback_days,omitempty"`
}

// PatternService aggregates creative performance by messaging theme,
// presentation format and call-to-action.
type PatternService struct {
	reader   warehouse.Reader
	cache    Cache
	taxonomy Taxonomy
	cfg      config.AnalyticsConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewPatternService creates a PatternService. A nil taxonomy falls back to
// DefaultTaxonomy.
func NewPatternService(reader warehouse.Reader, cache Cache, taxonomy Taxonomy, cfg config.AnalyticsConfig, logger *zap.Logger, m *metrics.Metrics) *PatternService {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	return &PatternService{
		reader:   reader,
		cache:    cache,
		taxonomy: taxonomy,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// topPerformerLimit caps the ranked creative list in the result.
const topPerformerLimit = 10

// Analyze runs the pattern classification for the query's lookback window.
func (s *PatternService) Analyze(ctx context.Context, q PatternQuery) (*models.PatternResult, error) {
	lookback, err := resolveLookback(q.LookbackDays, s.cfg)
	if err != nil {
		return nil, err
	}
	q.LookbackDays = lookback

	key := CacheKey("patterns", q.AccountID, q)
	started := s.now()
	result, hit, err := cached(ctx, s.cache, key, s.cfg.CacheTTL, func() (*models.PatternResult, error) {
		return s.compute(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCache("patterns", hit)
	if !hit {
		s.metrics.RecordQuery("patterns", s.now().Sub(started))
	}
	return result, nil
}

func (s *PatternService) compute(ctx context.Context, q PatternQuery) (*models.PatternResult, error) {
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

	rollups := aggregateCreatives(rows, s.taxonomy)

	result := &models.PatternResult{
		TotalCreatives:   len(rollups),
		ThemePerformance: themePerformance(rollups),
		TopPerformers:    topPerformers(rollups),
	}
	result.FormatPerformance = groupStats(rollups, func(r creativeRollup) string { return r.perf.Format })
	result.CTAPerformance = groupStats(rollups, func(r creativeRollup) string { return r.cta })

	s.logger.Debug("pattern classification computed",
		zap.String("account_id", q.AccountID),
		zap.Int("creatives", len(rollups)),
		zap.Int("themes", len(result.ThemePerformance)),
	)
	return result, nil
}

// creativeRollup carries one creative's lifetime sums plus the grouping
// fields that do not appear on the public performance shape.
type creativeRollup struct {
	perf  models.CreativePerformance
	cta   string
	value float64
}

// aggregateCreatives sums each creative's days and classifies its copy.
// Ratios are derived once from the final sums.
func aggregateCreatives(rows []models.CreativeDailyStat, taxonomy Taxonomy) []creativeRollup {
	byID := make(map[string]*creativeRollup)
	var order []string

	for _, r := range rows {
		a, ok := byID[r.CreativeID]
		if !ok {
			cta := r.CallToAction
			if cta == "" {
				cta = "unknown"
			}
			a = &creativeRollup{
				perf: models.CreativePerformance{
					CreativeID: r.CreativeID,
					Title:      r.Title,
					Format:     r.Format(),
					Themes:     taxonomy.Classify(r.Title + " " + r.Body),
				},
				cta: cta,
			}
			byID[r.CreativeID] = a
			order = append(order, r.CreativeID)
		}
		a.perf.Spend += r.Spend
		a.perf.Impressions += r.Impressions
		a.perf.Clicks += r.Clicks
		a.perf.Conversions += r.Conversions
		a.value += r.ConversionValue
	}

	out := make([]creativeRollup, 0, len(order))
	for _, id := range order {
		a := byID[id]
		a.perf.CTR = ctr(a.perf.Clicks, a.perf.Impressions)
		a.perf.ROAS = ratio(a.value, a.perf.Spend, 1)
		out = append(out, *a)
	}
	return out
}

// themePerformance rolls creatives up by matched theme. Attribution is
// non-exclusive: a creative matching two themes counts fully in both.
func themePerformance(rollups []creativeRollup) map[string]models.ThemeStats {
	themes := make(map[string]models.ThemeStats)
	for _, r := range rollups {
		for _, theme := range r.perf.Themes {
			t := themes[theme]
			t.Creatives++
			t.Spend += r.perf.Spend
			t.Impressions += r.perf.Impressions
			t.Clicks += r.perf.Clicks
			t.Conversions += r.perf.Conversions
			t.ConversionValue += r.value
			themes[theme] = t
		}
	}
	for name, t := range themes {
		t.CTR = ctr(t.Clicks, t.Impressions)
		t.ROAS = ratio(t.ConversionValue, t.Spend, 1)
		themes[name] = t
	}
	return themes
}

// groupStats rolls creatives up by an arbitrary label, sorted by spend.
func groupStats(rollups []creativeRollup, label func(creativeRollup) string) []models.FormatStats {
	byName := make(map[string]*models.FormatStats)
	valueByName := make(map[string]float64)
	var order []string

	for _, r := range rollups {
		name := label(r)
		fs, ok := byName[name]
		if !ok {
			fs = &models.FormatStats{Name: name}
			byName[name] = fs
			order = append(order, name)
		}
		fs.Creatives++
		fs.Spend += r.perf.Spend
		fs.Impressions += r.perf.Impressions
		fs.Clicks += r.perf.Clicks
		fs.Conversions += r.perf.Conversions
		valueByName[name] += r.value
	}

	out := make([]models.FormatStats, 0, len(order))
	for _, name := range order {
		fs := byName[name]
		fs.CTR = ctr(fs.Clicks, fs.Impressions)
		fs.ROAS = ratio(valueByName[name], fs.Spend, 1)
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spend > out[j].Spend })
	return out
}

// topPerformers ranks creatives by CTR, conversions breaking ties, and
// returns the first topPerformerLimit entries.
func topPerformers(rollups []creativeRollup) []models.CreativePerformance {
	ranked := make([]models.CreativePerformance, 0, len(rollups))
	for _, r := range rollups {
		ranked = append(ranked, r.perf)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		av, bv := 0.0, 0.0
		if a.CTR != nil {
			av = *a.CTR
		}
		if b.CTR != nil {
			bv = *b.CTR
		}
		if av != bv {
			return av > bv
		}
		return a.Conversions > b.Conversions
	})

	if len(ranked) > topPerformerLimit {
		ranked = ranked[:topPerformerLimit]
	}
	return ranked
}
