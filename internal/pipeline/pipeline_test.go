package pipeline

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
var testMetrics = metrics.NewMetrics("pipeline_test")

func testLoadConfig() config.LoadConfig {
	return config.LoadConfig{
		ChunkSize:             100,
		ChunkRetries:          1,
		ConversionActionTypes: []string{"purchase", "lead", "add_to_cart"},
	}
}

func newTestLoader(mem *warehouse.MemoryWarehouse) *Loader {
	return NewLoader(mem, mem, testLoadConfig(), zap.NewNop(), testMetrics)
}

func f(v float64) *float64 { return &v }

func coreRecord(date, adID, creativeID string, spend float64, impressions, clicks int64) models.PlatformRecord {
	return models.PlatformRecord{
		Date:        date,
		AccountID:   "act_1",
		CampaignID:  "c_1",
		AdSetID:     "s_1",
		AdID:        adID,
		Creative:    models.CreativeFields{ID: creativeID, Title: "Shop the sale"},
		Spend:       spend,
		Impressions: impressions,
		Clicks:      clicks,
		Actions: []models.ActionEntry{
			{ActionType: "purchase", Click7Day: f(2)},
		},
		ActionValues: []models.ActionEntry{
			{ActionType: "purchase", Click7Day: f(120)},
		},
	}
}

func TestLoaderBackfillIsIdempotent(t *testing.T) {
	mem := warehouse.NewMemoryWarehouse()
	loader := newTestLoader(mem)
	ctx := context.Background()

	records := []models.PlatformRecord{
		coreRecord("2026-06-01", "a_1", "cr_1", 10, 1000, 50),
		coreRecord("2026-06-02", "a_1", "cr_1", 12, 1100, 40),
	}

	first, err := loader.Run(ctx, ModeBackfill, records)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.CoreAttempted)
	assert.Equal(t, int64(2), first.CoreInserted)
	assert.Zero(t, first.FailedChunks)

	second, err := loader.Run(ctx, ModeBackfill, records)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.CoreAttempted)
	assert.Zero(t, second.CoreInserted)

	core, _, action := mem.FactCounts()
	assert.Equal(t, 2, core)
	assert.Equal(t, 2, action)
}

func TestLoaderSkipsMalformedRecords(t *testing.T) {
	mem := warehouse.NewMemoryWarehouse()
	loader := newTestLoader(mem)

	records := []models.PlatformRecord{
		coreRecord("2026-06-01", "a_1", "cr_1", 10, 1000, 50),
		{Date: "not-a-date", AccountID: "act_1", CampaignID: "c_1", AdSetID: "s_1", AdID: "a_2"},
		{Date: "2026-06-01", AccountID: "act_1", CampaignID: "c_1", AdSetID: "s_1"}, // no ad_id
	}

	report, err := loader.Run(context.Background(), ModeBackfill, records)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 2, report.Malformed)
	assert.Equal(t, int64(1), report.CoreInserted)
}

func TestLoaderIncrementalReplacesTargetedDays(t *testing.T) {
	mem := warehouse.NewMemoryWarehouse()
	loader := newTestLoader(mem)
	ctx := context.Background()

	_, err := loader.Run(ctx, ModeBackfill, []models.PlatformRecord{
		coreRecord("2026-06-01", "a_1", "cr_1", 10, 1000, 50),
		coreRecord("2026-06-02", "a_1", "cr_1", 12, 1100, 40),
	})
	require.NoError(t, err)

	// Re-pull day 2 with late attribution: higher spend, more conversions.
	updated := coreRecord("2026-06-02", "a_1", "cr_1", 20, 1100, 40)
	report, err := loader.Run(ctx, ModeIncremental, []models.PlatformRecord{updated})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.CoreInserted)

	core, _, _ := mem.FactCounts()
	assert.Equal(t, 2, core)

	stats, err := mem.DailyStats(ctx, warehouse.StatsQuery{
		AccountID: "act_1",
		Since:     time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		Until:     time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 20.0, stats[0].Spend)
}

func TestLoaderIncrementalLeavesOtherAccountsUntouched(t *testing.T) {
	mem := warehouse.NewMemoryWarehouse()
	loader := newTestLoader(mem)
	ctx := context.Background()

	other := coreRecord("2026-06-02", "a_9", "cr_9", 7, 700, 30)
	other.AccountID = "act_2"
	other.CampaignID = "c_2"

	_, err := loader.Run(ctx, ModeBackfill, []models.PlatformRecord{
		coreRecord("2026-06-02", "a_1", "cr_1", 10, 1000, 50),
		other,
	})
	require.NoError(t, err)

	// Re-pull the same day for act_1 only.
	_, err = loader.Run(ctx, ModeIncremental, []models.PlatformRecord{
		coreRecord("2026-06-02", "a_1", "cr_1", 15, 1000, 50),
	})
	require.NoError(t, err)

	day := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	stats, err := mem.DailyStats(ctx, warehouse.StatsQuery{AccountID: "act_2", Since: day, Until: day})
	require.NoError(t, err)
	require.Len(t, stats, 1, "act_2's same-day row must survive act_1's re-pull")
	assert.Equal(t, 7.0, stats[0].Spend)

	stats, err = mem.DailyStats(ctx, warehouse.StatsQuery{AccountID: "act_1", Since: day, Until: day})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 15.0, stats[0].Spend)
}

func TestLoaderRoutesBreakdownRecords(t *testing.T) {
	mem := warehouse.NewMemoryWarehouse()
	loader := newTestLoader(mem)

	placement := "facebook"
	country := "DE"
	age := "25-34"
	gender := "female"

	records := []models.PlatformRecord{
		coreRecord("2026-06-01", "a_1", "cr_1", 10, 1000, 50),
	}
	p := coreRecord("2026-06-01", "a_1", "", 4, 400, 20)
	p.Placement = &placement
	c := coreRecord("2026-06-01", "a_1", "", 3, 300, 15)
	c.Country = &country
	d := coreRecord("2026-06-01", "a_1", "", 3, 300, 15)
	d.Age = &age
	d.Gender = &gender
	records = append(records, p, c, d)

	report, err := loader.Run(context.Background(), ModeBackfill, records)
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.CoreInserted)
	assert.Equal(t, int64(3), report.BreakdownInserted)
	assert.Zero(t, report.Malformed)

	_, breakdown, _ := mem.FactCounts()
	assert.Equal(t, 3, breakdown)
}

func TestLoaderAgeGenderDefaultsMissingHalf(t *testing.T) {
	mem := warehouse.NewMemoryWarehouse()
	loader := newTestLoader(mem)

	age := "35-44"
	rec := coreRecord("2026-06-01", "a_1", "", 5, 500, 10)
	rec.Age = &age // no gender reported

	report, err := loader.Run(context.Background(), ModeBackfill, []models.PlatformRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.BreakdownInserted)
	assert.Equal(t, 1, mem.DimensionCount("gender"))
}

func TestLoaderFlagsConfiguredConversionTypes(t *testing.T) {
	mem := warehouse.NewMemoryWarehouse()
	loader := newTestLoader(mem)

	rec := coreRecord("2026-06-01", "a_1", "cr_1", 10, 1000, 50)
	rec.Actions = append(rec.Actions, models.ActionEntry{ActionType: "video_view", Click7Day: f(500)})

	_, err := loader.Run(context.Background(), ModeBackfill, []models.PlatformRecord{rec})
	require.NoError(t, err)

	assert.True(t, mem.IsConversion("purchase"))
	assert.False(t, mem.IsConversion("video_view"))
}

func TestValidateRequiresCreativeOnCoreRecordsOnly(t *testing.T) {
	placement := "instagram"

	core := coreRecord("2026-06-01", "a_1", "", 1, 1, 1)
	_, err := validate(&core)
	assert.Error(t, err)

	breakdown := coreRecord("2026-06-01", "a_1", "", 1, 1, 1)
	breakdown.Placement = &placement
	_, err = validate(&breakdown)
	assert.NoError(t, err)
}

func TestChunkSplitsRows(t *testing.T) {
	rows := make([]int, 7)
	chunks := chunk(rows, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[2], 1)
	assert.Nil(t, chunk([]int{}, 3))
}
