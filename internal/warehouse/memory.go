package warehouse

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/radiusdt/vector-insights/internal/models"
)

// MemoryWarehouse is an in-memory implementation of DimensionStore,
// FactStore and Reader with the same conflict semantics as the PostgreSQL
// stores. It backs unit tests and database-less development runs.
type MemoryWarehouse struct {
	mu sync.RWMutex

	nextKey    int64
	dimensions map[string]map[string]int64 // dimension -> natural key -> surrogate key

	creativeAttrs map[int64]models.CreativeAttrs
	adIDs         map[int64]string
	conversions   map[string]bool // action type -> is_conversion

	coreFacts      map[string]models.CoreFact
	breakdownFacts map[string]models.BreakdownFact
	actionFacts    map[string]models.ActionFactRow
}

// NewMemoryWarehouse creates an empty in-memory warehouse.
func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{
		dimensions:     make(map[string]map[string]int64),
		creativeAttrs:  make(map[int64]models.CreativeAttrs),
		adIDs:          make(map[int64]string),
		conversions:    make(map[string]bool),
		coreFacts:      make(map[string]models.CoreFact),
		breakdownFacts: make(map[string]models.BreakdownFact),
		actionFacts:    make(map[string]models.ActionFactRow),
	}
}

func (m *MemoryWarehouse) resolve(dim, natural string) int64 {
	known, ok := m.dimensions[dim]
	if !ok {
		known = make(map[string]int64)
		m.dimensions[dim] = known
	}
	if key, ok := known[natural]; ok {
		return key
	}
	m.nextKey++
	known[natural] = m.nextKey
	return m.nextKey
}

// ResolveDimensions implements DimensionStore.
func (m *MemoryWarehouse) ResolveDimensions(ctx context.Context, batch *DimensionBatch) (*DimensionKeys, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := &DimensionKeys{
		Accounts:    make(map[string]int64),
		Campaigns:   make(map[string]int64),
		AdSets:      make(map[string]int64),
		Ads:         make(map[string]int64),
		Creatives:   make(map[string]int64),
		ActionTypes: make(map[string]int64),
		Placements:  make(map[string]int64),
		Countries:   make(map[string]int64),
		Ages:        make(map[string]int64),
		Genders:     make(map[string]int64),
	}

	for id := range batch.Accounts {
		keys.Accounts[id] = m.resolve("account", id)
	}
	for id := range batch.Campaigns {
		keys.Campaigns[id] = m.resolve("campaign", id)
	}
	for id := range batch.AdSets {
		keys.AdSets[id] = m.resolve("adset", id)
	}
	for id, attrs := range batch.Ads {
		key := m.resolve("ad", id)
		keys.Ads[id] = key
		m.adIDs[key] = attrs.AdID
	}
	for id, attrs := range batch.Creatives {
		key := m.resolve("creative", id)
		keys.Creatives[id] = key
		m.creativeAttrs[key] = attrs
	}
	for name, attrs := range batch.ActionTypes {
		key := m.resolve("action_type", name)
		keys.ActionTypes[name] = key
		if _, seen := m.conversions[name]; !seen {
			m.conversions[name] = attrs.IsConversion
		}
	}
	for v := range batch.Placements {
		keys.Placements[v] = m.resolve("placement", v)
	}
	for v := range batch.Countries {
		keys.Countries[v] = m.resolve("country", v)
	}
	for v := range batch.Ages {
		keys.Ages[v] = m.resolve("age", v)
	}
	for v := range batch.Genders {
		keys.Genders[v] = m.resolve("gender", v)
	}

	return keys, nil
}

// SetConversionFlag implements DimensionStore.
func (m *MemoryWarehouse) SetConversionFlag(ctx context.Context, actionType string, isConversion bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversions[actionType]; !ok {
		return fmt.Errorf("unknown action type %q", actionType)
	}
	m.conversions[actionType] = isConversion
	return nil
}

// IsConversion reports an action type's conversion flag.
func (m *MemoryWarehouse) IsConversion(actionType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversions[actionType]
}

// DimensionCount returns the number of rows in one dimension.
func (m *MemoryWarehouse) DimensionCount(dim string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dimensions[dim])
}

// ReplaceDays implements FactStore.
func (m *MemoryWarehouse) ReplaceDays(ctx context.Context, days []models.DateKey, accountKeys []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := make(map[models.DateKey]bool, len(days))
	for _, d := range days {
		target[d] = true
	}
	accounts := make(map[int64]bool, len(accountKeys))
	for _, k := range accountKeys {
		accounts[k] = true
	}
	for k, f := range m.coreFacts {
		if target[f.DateKey] && accounts[f.AccountKey] {
			delete(m.coreFacts, k)
		}
	}
	for k, f := range m.breakdownFacts {
		if target[f.DateKey] && accounts[f.AccountKey] {
			delete(m.breakdownFacts, k)
		}
	}
	for k, f := range m.actionFacts {
		if target[f.DateKey] && accounts[f.AccountKey] {
			delete(m.actionFacts, k)
		}
	}
	return nil
}

// InsertCoreFacts implements FactStore.
func (m *MemoryWarehouse) InsertCoreFacts(ctx context.Context, rows []models.CoreFact) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted int64
	for _, r := range rows {
		k := fmt.Sprintf("%d/%d/%d/%d/%d/%d",
			r.DateKey, r.AccountKey, r.CampaignKey, r.AdSetKey, r.AdKey, r.CreativeKey)
		if _, exists := m.coreFacts[k]; exists {
			continue
		}
		m.coreFacts[k] = r
		inserted++
	}
	return int64(len(rows)), inserted, nil
}

// InsertBreakdownFacts implements FactStore.
func (m *MemoryWarehouse) InsertBreakdownFacts(ctx context.Context, rows []models.BreakdownFact) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted int64
	for _, r := range rows {
		k := fmt.Sprintf("%s/%d/%d/%d/%d/%d/%d/%d/%d/%d",
			r.Kind, r.DateKey, r.AccountKey, r.CampaignKey, r.AdSetKey, r.AdKey,
			r.PlacementKey, r.CountryKey, r.AgeKey, r.GenderKey)
		if _, exists := m.breakdownFacts[k]; exists {
			continue
		}
		m.breakdownFacts[k] = r
		inserted++
	}
	return int64(len(rows)), inserted, nil
}

// InsertActionFacts implements FactStore.
func (m *MemoryWarehouse) InsertActionFacts(ctx context.Context, rows []models.ActionFactRow) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var attempted, inserted int64
	for _, r := range rows {
		if r.Count == 0 && r.Value == 0 {
			continue
		}
		attempted++
		k := fmt.Sprintf("%d/%d/%d/%d/%s",
			r.DateKey, r.AccountKey, r.AdKey, r.ActionTypeKey, r.Window)
		if _, exists := m.actionFacts[k]; exists {
			continue
		}
		m.actionFacts[k] = r
		inserted++
	}
	return attempted, inserted, nil
}

// FactCounts returns the row counts of the three fact groups.
func (m *MemoryWarehouse) FactCounts() (core, breakdown, action int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.coreFacts), len(m.breakdownFacts), len(m.actionFacts)
}

// DailyStats implements Reader.
func (m *MemoryWarehouse) DailyStats(ctx context.Context, q StatsQuery) ([]models.DailyStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accountKey, ok := m.dimensions["account"][q.AccountID]
	if !ok {
		return nil, nil
	}
	var campaignKey int64 = -1
	if q.CampaignID != "" {
		campaignKey, ok = m.dimensions["campaign"][q.CampaignID]
		if !ok {
			return nil, nil
		}
	}

	byDay := make(map[models.DateKey]*models.DailyStat)
	for _, f := range m.coreFacts {
		if f.AccountKey != accountKey {
			continue
		}
		if campaignKey >= 0 && f.CampaignKey != campaignKey {
			continue
		}
		day := f.DateKey.Time()
		if day.Before(q.Since) || day.After(q.Until) {
			continue
		}
		s, ok := byDay[f.DateKey]
		if !ok {
			s = &models.DailyStat{Date: day}
			byDay[f.DateKey] = s
		}
		s.Spend += f.Spend
		s.Impressions += f.Impressions
		s.Clicks += f.Clicks
		s.Conversions += f.Purchases + f.Leads + f.AddToCart
		s.ConversionValue += f.ConversionValue
	}

	stats := make([]models.DailyStat, 0, len(byDay))
	for _, s := range byDay {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date.Before(stats[j].Date) })
	return stats, nil
}

// CreativeDailyStats implements Reader.
func (m *MemoryWarehouse) CreativeDailyStats(ctx context.Context, q StatsQuery) ([]models.CreativeDailyStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accountKey, ok := m.dimensions["account"][q.AccountID]
	if !ok {
		return nil, nil
	}
	var campaignKey int64 = -1
	if q.CampaignID != "" {
		campaignKey, ok = m.dimensions["campaign"][q.CampaignID]
		if !ok {
			return nil, nil
		}
	}

	type cdKey struct {
		creative int64
		date     models.DateKey
	}
	byKey := make(map[cdKey]*models.CreativeDailyStat)
	for _, f := range m.coreFacts {
		if f.AccountKey != accountKey {
			continue
		}
		if campaignKey >= 0 && f.CampaignKey != campaignKey {
			continue
		}
		day := f.DateKey.Time()
		if day.Before(q.Since) || day.After(q.Until) {
			continue
		}
		k := cdKey{creative: f.CreativeKey, date: f.DateKey}
		s, ok := byKey[k]
		if !ok {
			attrs := m.creativeAttrs[f.CreativeKey]
			s = &models.CreativeDailyStat{
				CreativeID:   attrs.CreativeID,
				AdID:         m.adIDs[f.AdKey],
				Title:        attrs.Title,
				Body:         attrs.Body,
				CallToAction: attrs.CallToAction,
				IsVideo:      attrs.IsVideo,
				IsCarousel:   attrs.IsCarousel,
				Date:         day,
			}
			byKey[k] = s
		}
		s.Spend += f.Spend
		s.Impressions += f.Impressions
		s.Clicks += f.Clicks
		s.Conversions += f.Purchases + f.Leads + f.AddToCart
		s.ConversionValue += f.ConversionValue
	}

	stats := make([]models.CreativeDailyStat, 0, len(byKey))
	for _, s := range byKey {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].CreativeID != stats[j].CreativeID {
			return stats[i].CreativeID < stats[j].CreativeID
		}
		return stats[i].Date.Before(stats[j].Date)
	})
	return stats, nil
}

var _ DimensionStore = (*MemoryWarehouse)(nil)
var _ FactStore = (*MemoryWarehouse)(nil)
var _ Reader = (*MemoryWarehouse)(nil)
