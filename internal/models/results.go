package models

// Result shapes consumed by the reporting layer. Percentages are already
// multiplied by 100; nil ratio pointers encode "not applicable" and must not
// be rendered as zero.

// WeeklyTrend is one ISO week of aggregated performance.
type WeeklyTrend struct {
	Week            string   `json:"week"`
	Spend           float64  `json:"spend"`
	Impressions     int64    `json:"impressions"`
	Clicks          int64    `json:"clicks"`
	Conversions     float64  `json:"conversions"`
	ConversionValue float64  `json:"conversion_value"`
	CTR             *float64 `json:"ctr"`
	CPC             *float64 `json:"cpc"`
	ROAS            *float64 `json:"roas"`
	WowChangePct    *float64 `json:"wow_change_pct"`
}

// SeasonalityDay is the average performance profile of one weekday.
type SeasonalityDay struct {
	Weekday     string   `json:"weekday"`
	Spend       float64  `json:"spend"`
	Impressions int64    `json:"impressions"`
	Clicks      int64    `json:"clicks"`
	AvgCTR      *float64 `json:"avg_ctr"`
	AvgROAS     *float64 `json:"avg_roas"`
}

// TrendMetrics summarizes direction, strength and volatility of the weekly
// conversion series.
type TrendMetrics struct {
	Direction  string   `json:"direction"` // up, down, flat
	Strength   float64  `json:"strength"`
	Volatility *float64 `json:"volatility"`
	BestDay    string   `json:"best_day"`
	WorstDay   string   `json:"worst_day"`
}

// TrendResult is the trend analyzer's full output.
type TrendResult struct {
	WeeklyTrends     []WeeklyTrend    `json:"weekly_trends"`
	DailySeasonality []SeasonalityDay `json:"daily_seasonality"`
	TrendMetrics     TrendMetrics     `json:"trend_metrics"`
}

// FatigueSeverity classifies how badly a creative's CTR has declined.
type FatigueSeverity string

const (
	SeverityCritical FatigueSeverity = "critical"
	SeverityWarning  FatigueSeverity = "warning"
	SeverityMonitor  FatigueSeverity = "monitor"
	SeverityNone     FatigueSeverity = "none"
)

// CreativeFatigue is one creative's fatigue classification.
type CreativeFatigue struct {
	CreativeID  string          `json:"creative_id"`
	AdID        string          `json:"ad_id"`
	Title       string          `json:"title,omitempty"`
	InitialCTR  float64         `json:"initial_ctr"`
	RecentCTR   float64         `json:"recent_ctr"`
	FatiguePct  float64         `json:"fatigue_pct"`
	Severity    FatigueSeverity `json:"severity"`
	Impressions int64           `json:"impressions"`
	ActiveDays  int             `json:"active_days"`
}

// FatigueSummary counts classified creatives per bucket.
type FatigueSummary struct {
	TotalAnalyzed int `json:"total_analyzed"`
	Critical      int `json:"critical"`
	Warning       int `json:"warning"`
	Monitor       int `json:"monitor"`
	Healthy       int `json:"healthy"`
	Excluded      int `json:"excluded"`
}

// FatigueResult is the fatigue detector's full output.
type FatigueResult struct {
	Summary           FatigueSummary    `json:"summary"`
	CriticalRefreshes []CreativeFatigue `json:"critical_refreshes"`
	WarningRefreshes  []CreativeFatigue `json:"warning_refreshes"`
	MonitorClosely    []CreativeFatigue `json:"monitor_closely"`
	Recommendations   []string          `json:"recommendations"`
}

// ThemeStats aggregates performance across every creative matching a theme.
type ThemeStats struct {
	Creatives       int      `json:"creatives"`
	Spend           float64  `json:"spend"`
	Impressions     int64    `json:"impressions"`
	Clicks          int64    `json:"clicks"`
	Conversions     float64  `json:"conversions"`
	ConversionValue float64  `json:"conversion_value"`
	CTR             *float64 `json:"ctr"`
	ROAS            *float64 `json:"roas"`
}

// FormatStats aggregates performance by creative format or CTA type.
type FormatStats struct {
	Name        string   `json:"name"`
	Creatives   int      `json:"creatives"`
	Spend       float64  `json:"spend"`
	Impressions int64    `json:"impressions"`
	Clicks      int64    `json:"clicks"`
	Conversions float64  `json:"conversions"`
	CTR         *float64 `json:"ctr"`
	ROAS        *float64 `json:"roas"`
}

// CreativePerformance is one creative's aggregate with its matched themes.
type CreativePerformance struct {
	CreativeID  string   `json:"creative_id"`
	Title       string   `json:"title,omitempty"`
	Format      string   `json:"format"`
	Themes      []string `json:"themes"`
	Spend       float64  `json:"spend"`
	Impressions int64    `json:"impressions"`
	Clicks      int64    `json:"clicks"`
	Conversions float64  `json:"conversions"`
	CTR         *float64 `json:"ctr"`
	ROAS        *float64 `json:"roas"`
}

// PatternResult is the pattern classifier's full output.
type PatternResult struct {
	TotalCreatives    int                   `json:"total_creatives"`
	ThemePerformance  map[string]ThemeStats `json:"theme_performance"`
	FormatPerformance []FormatStats         `json:"format_performance"`
	CTAPerformance    []FormatStats         `json:"cta_performance"`
	TopPerformers     []CreativePerformance `json:"top_performers"`
}
