package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/radiusdt/vector-insights/internal/models"
	"github.com/radiusdt/vector-insights/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPatternService(reader warehouse.Reader) *PatternService {
	svc := NewPatternService(reader, NewMemoryCache(), nil, testAnalyticsConfig(), zap.NewNop(), testMetrics)
	svc.now = fixedNow
	return svc
}

func TestTaxonomyClassify(t *testing.T) {
	taxonomy := DefaultTaxonomy()

	assert.Equal(t, []string{"benefit", "question"}, taxonomy.Classify("Is this for you?"))
	assert.Equal(t, []string{"discount", "urgency"}, taxonomy.Classify("50% off TODAY only"))
	assert.Empty(t, taxonomy.Classify("Introducing the new model"))
}

func TestTaxonomyClassifyIsCaseInsensitive(t *testing.T) {
	taxonomy := Taxonomy{"urgency": {"limited"}}
	assert.Equal(t, []string{"urgency"}, taxonomy.Classify("LIMITED edition"))
}

func patternDay(creativeID, title, body, cta string, video bool, spend float64, impressions, clicks int64, conversions, value float64) models.CreativeDailyStat {
	return models.CreativeDailyStat{
		CreativeID:      creativeID,
		AdID:            "ad_" + creativeID,
		Title:           title,
		Body:            body,
		CallToAction:    cta,
		IsVideo:         video,
		Date:            fixedNow().UTC().Truncate(24 * time.Hour),
		Spend:           spend,
		Impressions:     impressions,
		Clicks:          clicks,
		Conversions:     conversions,
		ConversionValue: value,
	}
}

func TestPatternsAggregateByThemeFormatAndCTA(t *testing.T) {
	reader := &stubReader{creative: []models.CreativeDailyStat{
		patternDay("cr_1", "Buy now and save", "Limited time offer", "SHOP_NOW", true, 100, 1000, 50, 5, 200),
		patternDay("cr_1", "Buy now and save", "Limited time offer", "SHOP_NOW", true, 100, 1000, 50, 5, 200),
		patternDay("cr_2", "Our new collection", "", "", false, 50, 1000, 10, 1, 30),
	}}

	result, err := newTestPatternService(reader).Analyze(context.Background(), PatternQuery{AccountID: "act_1"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalCreatives)

	urgency, ok := result.ThemePerformance["urgency"]
	require.True(t, ok)
	assert.Equal(t, 1, urgency.Creatives)
	assert.Equal(t, 200.0, urgency.Spend)
	assert.Equal(t, int64(2000), urgency.Impressions)
	require.NotNil(t, urgency.CTR)
	assert.InDelta(t, 5.0, *urgency.CTR, 0.0001)
	require.NotNil(t, urgency.ROAS)
	assert.InDelta(t, 2.0, *urgency.ROAS, 0.0001)

	require.Len(t, result.FormatPerformance, 2)
	assert.Equal(t, "video", result.FormatPerformance[0].Name, "sorted by spend")
	assert.Equal(t, "image", result.FormatPerformance[1].Name)

	ctas := make(map[string]int)
	for _, c := range result.CTAPerformance {
		ctas[c.Name] = c.Creatives
	}
	assert.Equal(t, map[string]int{"SHOP_NOW": 1, "unknown": 1}, ctas)
}

func TestPatternsThemeAttributionIsNonExclusive(t *testing.T) {
	// One creative matching two themes counts fully in both.
	reader := &stubReader{creative: []models.CreativeDailyStat{
		patternDay("cr_1", "Save big, ends today", "", "SHOP_NOW", false, 80, 1000, 40, 4, 160),
	}}

	result, err := newTestPatternService(reader).Analyze(context.Background(), PatternQuery{AccountID: "act_1"})
	require.NoError(t, err)

	discount := result.ThemePerformance["discount"]
	urgency := result.ThemePerformance["urgency"]
	assert.Equal(t, 80.0, discount.Spend)
	assert.Equal(t, 80.0, urgency.Spend)
}

func TestPatternsRatiosDerivedFromSums(t *testing.T) {
	// Two creatives with the same theme but very different volume: pooled
	// CTR must be 1.1%, not the 5.05% a per-creative average would give.
	reader := &stubReader{creative: []models.CreativeDailyStat{
		patternDay("cr_1", "Sale ends", "", "", false, 10, 100, 10, 0, 0),
		patternDay("cr_2", "Sale forever", "", "", false, 10, 900, 1, 0, 0),
	}}

	result, err := newTestPatternService(reader).Analyze(context.Background(), PatternQuery{AccountID: "act_1"})
	require.NoError(t, err)

	discount := result.ThemePerformance["discount"]
	require.NotNil(t, discount.CTR)
	assert.InDelta(t, 1.1, *discount.CTR, 0.0001)
	require.NotNil(t, discount.ROAS)
	assert.Zero(t, *discount.ROAS)
}

func TestPatternsTopPerformersRankedByCTR(t *testing.T) {
	days := []models.CreativeDailyStat{
		patternDay("cr_low", "A", "", "", false, 10, 1000, 10, 1, 10),
		patternDay("cr_high", "B", "", "", false, 10, 1000, 80, 2, 20),
		patternDay("cr_mid", "C", "", "", false, 10, 1000, 40, 3, 30),
	}
	reader := &stubReader{creative: days}

	result, err := newTestPatternService(reader).Analyze(context.Background(), PatternQuery{AccountID: "act_1"})
	require.NoError(t, err)

	require.Len(t, result.TopPerformers, 3)
	assert.Equal(t, "cr_high", result.TopPerformers[0].CreativeID)
	assert.Equal(t, "cr_mid", result.TopPerformers[1].CreativeID)
	assert.Equal(t, "cr_low", result.TopPerformers[2].CreativeID)
}

func TestPatternsTopPerformersCapped(t *testing.T) {
	var days []models.CreativeDailyStat
	for i := 0; i < 15; i++ {
		days = append(days, patternDay(
			"cr_"+string(rune('a'+i)), "Title", "", "", false, 10, 1000, int64(i+1), 0, 0))
	}
	reader := &stubReader{creative: days}

	result, err := newTestPatternService(reader).Analyze(context.Background(), PatternQuery{AccountID: "act_1"})
	require.NoError(t, err)

	assert.Equal(t, 15, result.TotalCreatives)
	assert.Len(t, result.TopPerformers, topPerformerLimit)
}
