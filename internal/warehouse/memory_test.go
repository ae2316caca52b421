package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/radiusdt/vector-insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWarehouseResolveIsIdempotent(t *testing.T) {
	m := NewMemoryWarehouse()
	ctx := context.Background()

	batch := NewDimensionBatch()
	batch.Accounts["act_1"] = models.AccountAttrs{AccountID: "act_1"}
	batch.Campaigns["c_1"] = models.CampaignAttrs{CampaignID: "c_1", Name: "Summer"}

	first, err := m.ResolveDimensions(ctx, batch)
	require.NoError(t, err)
	second, err := m.ResolveDimensions(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, first.Accounts["act_1"], second.Accounts["act_1"])
	assert.Equal(t, first.Campaigns["c_1"], second.Campaigns["c_1"])
	assert.Equal(t, 1, m.DimensionCount("account"))
	assert.Equal(t, 1, m.DimensionCount("campaign"))
}

func TestMemoryWarehouseConversionFlagSurvivesReload(t *testing.T) {
	m := NewMemoryWarehouse()
	ctx := context.Background()

	batch := NewDimensionBatch()
	batch.ActionTypes["custom_event"] = models.ActionTypeAttrs{Name: "custom_event", IsConversion: false}
	_, err := m.ResolveDimensions(ctx, batch)
	require.NoError(t, err)

	require.NoError(t, m.SetConversionFlag(ctx, "custom_event", true))
	assert.True(t, m.IsConversion("custom_event"))

	// A later load re-reports the type; the toggled flag must not be reset.
	_, err = m.ResolveDimensions(ctx, batch)
	require.NoError(t, err)
	assert.True(t, m.IsConversion("custom_event"))
}

func TestMemoryWarehouseSetConversionFlagUnknownType(t *testing.T) {
	m := NewMemoryWarehouse()
	err := m.SetConversionFlag(context.Background(), "never_seen", true)
	assert.Error(t, err)
}

func TestMemoryWarehouseInsertSkipsDuplicates(t *testing.T) {
	m := NewMemoryWarehouse()
	ctx := context.Background()

	rows := []models.CoreFact{
		{DateKey: 20260601, AccountKey: 1, CampaignKey: 2, AdSetKey: 3, AdKey: 4, CreativeKey: 5, Spend: 10},
	}

	attempted, inserted, err := m.InsertCoreFacts(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), attempted)
	assert.Equal(t, int64(1), inserted)

	attempted, inserted, err = m.InsertCoreFacts(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), attempted)
	assert.Zero(t, inserted)
}

func TestMemoryWarehouseInsertActionFactsDropsZeroRows(t *testing.T) {
	m := NewMemoryWarehouse()

	attempted, inserted, err := m.InsertActionFacts(context.Background(), []models.ActionFactRow{
		{DateKey: 20260601, AdKey: 1, ActionTypeKey: 1, Window: models.Window7DayClick, Count: 0, Value: 0},
		{DateKey: 20260601, AdKey: 1, ActionTypeKey: 2, Window: models.Window7DayClick, Count: 3, Value: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), attempted)
	assert.Equal(t, int64(1), inserted)
}

func TestMemoryWarehouseReplaceDays(t *testing.T) {
	m := NewMemoryWarehouse()
	ctx := context.Background()

	_, _, err := m.InsertCoreFacts(ctx, []models.CoreFact{
		{DateKey: 20260601, AccountKey: 1, AdKey: 1, CreativeKey: 1},
		{DateKey: 20260602, AccountKey: 1, AdKey: 1, CreativeKey: 1},
	})
	require.NoError(t, err)

	require.NoError(t, m.ReplaceDays(ctx, []models.DateKey{20260601}, []int64{1}))

	core, _, _ := m.FactCounts()
	assert.Equal(t, 1, core)
}

func TestMemoryWarehouseReplaceDaysIsAccountScoped(t *testing.T) {
	m := NewMemoryWarehouse()
	ctx := context.Background()

	_, _, err := m.InsertCoreFacts(ctx, []models.CoreFact{
		{DateKey: 20260601, AccountKey: 1, AdKey: 1, CreativeKey: 1},
		{DateKey: 20260601, AccountKey: 2, AdKey: 2, CreativeKey: 2},
	})
	require.NoError(t, err)

	require.NoError(t, m.ReplaceDays(ctx, []models.DateKey{20260601}, []int64{1}))

	core, _, _ := m.FactCounts()
	assert.Equal(t, 1, core, "account 2's row for the day must survive")
}

func TestMemoryWarehouseDailyStatsAggregatesAcrossAds(t *testing.T) {
	m := NewMemoryWarehouse()
	ctx := context.Background()

	batch := NewDimensionBatch()
	batch.Accounts["act_1"] = models.AccountAttrs{AccountID: "act_1"}
	batch.Campaigns["c_1"] = models.CampaignAttrs{CampaignID: "c_1"}
	keys, err := m.ResolveDimensions(ctx, batch)
	require.NoError(t, err)

	day := models.NewDateKey(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	_, _, err = m.InsertCoreFacts(ctx, []models.CoreFact{
		{DateKey: day, AccountKey: keys.Accounts["act_1"], CampaignKey: keys.Campaigns["c_1"], AdKey: 10, CreativeKey: 20, Spend: 10, Impressions: 100, Clicks: 5, Purchases: 1},
		{DateKey: day, AccountKey: keys.Accounts["act_1"], CampaignKey: keys.Campaigns["c_1"], AdKey: 11, CreativeKey: 21, Spend: 30, Impressions: 900, Clicks: 1, Leads: 2},
	})
	require.NoError(t, err)

	stats, err := m.DailyStats(ctx, StatsQuery{
		AccountID: "act_1",
		Since:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Until:     time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, stats, 1)

	assert.Equal(t, 40.0, stats[0].Spend)
	assert.Equal(t, int64(1000), stats[0].Impressions)
	assert.Equal(t, int64(6), stats[0].Clicks)
	assert.Equal(t, 3.0, stats[0].Conversions)
}
