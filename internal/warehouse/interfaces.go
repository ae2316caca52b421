package warehouse

import (
	"context"
	"time"

	"github.com/radiusdt/vector-insights/internal/models"
)

// DimensionBatch collects the dimension attributes extracted from one batch
// of records, deduplicated by natural key.
type DimensionBatch struct {
	Accounts    map[string]models.AccountAttrs
	Campaigns   map[string]models.CampaignAttrs
	AdSets      map[string]models.AdSetAttrs
	Ads         map[string]models.AdAttrs
	Creatives   map[string]models.CreativeAttrs
	ActionTypes map[string]models.ActionTypeAttrs
	Placements  map[string]models.PlacementAttrs
	Countries   map[string]models.CountryAttrs
	Ages        map[string]models.AgeAttrs
	Genders     map[string]models.GenderAttrs
}

// NewDimensionBatch creates an empty batch.
func NewDimensionBatch() *DimensionBatch {
	return &DimensionBatch{
		Accounts:    make(map[string]models.AccountAttrs),
		Campaigns:   make(map[string]models.CampaignAttrs),
		AdSets:      make(map[string]models.AdSetAttrs),
		Ads:         make(map[string]models.AdAttrs),
		Creatives:   make(map[string]models.CreativeAttrs),
		ActionTypes: make(map[string]models.ActionTypeAttrs),
		Placements:  make(map[string]models.PlacementAttrs),
		Countries:   make(map[string]models.CountryAttrs),
		Ages:        make(map[string]models.AgeAttrs),
		Genders:     make(map[string]models.GenderAttrs),
	}
}

// DimensionKeys maps natural keys to surrogate keys for every dimension
// touched by a batch.
type DimensionKeys struct {
	Accounts    map[string]int64
	Campaigns   map[string]int64
	AdSets      map[string]int64
	Ads         map[string]int64
	Creatives   map[string]int64
	ActionTypes map[string]int64
	Placements  map[string]int64
	Countries   map[string]int64
	Ages        map[string]int64
	Genders     map[string]int64
}

// DimensionStore resolves natural keys to surrogate keys, creating or
// updating dimension rows as needed. Resolution is idempotent: the same
// natural key always yields the same surrogate key.
type DimensionStore interface {
	ResolveDimensions(ctx context.Context, batch *DimensionBatch) (*DimensionKeys, error)
	// SetConversionFlag toggles whether an action type counts as a
	// conversion in downstream reporting.
	SetConversionFlag(ctx context.Context, actionType string, isConversion bool) error
}

// FactStore persists fact rows. Inserts are idempotent at the composite-key
// grain: conflicting rows are silently skipped, and the attempted/inserted
// delta is the caller's conflict signal.
type FactStore interface {
	// ReplaceDays deletes the given accounts' fact rows for the given days
	// ahead of a re-pull. Other accounts' rows for those days are untouched.
	// Facts are never updated in place.
	ReplaceDays(ctx context.Context, days []models.DateKey, accountKeys []int64) error
	InsertCoreFacts(ctx context.Context, rows []models.CoreFact) (attempted, inserted int64, err error)
	InsertBreakdownFacts(ctx context.Context, rows []models.BreakdownFact) (attempted, inserted int64, err error)
	InsertActionFacts(ctx context.Context, rows []models.ActionFactRow) (attempted, inserted int64, err error)
}

// StatsQuery bounds a read-side aggregate query.
type StatsQuery struct {
	AccountID  string
	CampaignID string
	Since      time.Time
	Until      time.Time
}

// Reader exposes the daily aggregates the analytics services consume.
type Reader interface {
	DailyStats(ctx context.Context, q StatsQuery) ([]models.DailyStat, error)
	CreativeDailyStats(ctx context.Context, q StatsQuery) ([]models.CreativeDailyStat, error)
}
