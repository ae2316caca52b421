package models

import "time"

// DateKey encodes a calendar day as YYYYMMDD, the key of the date dimension.
type DateKey int

// NewDateKey builds a DateKey from a time.
func NewDateKey(t time.Time) DateKey {
	return DateKey(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// Time converts the key back to a UTC midnight time.
func (k DateKey) Time() time.Time {
	return time.Date(int(k)/10000, time.Month(int(k)/100%100), int(k)%100, 0, 0, 0, 0, time.UTC)
}

// CoreFact is one row of the core metrics fact table: one (day, ad) grain
// row with the denormalized top conversions inlined for fast aggregation.
type CoreFact struct {
	DateKey     DateKey
	AccountKey  int64
	CampaignKey int64
	AdSetKey    int64
	AdKey       int64
	CreativeKey int64

	Spend       float64
	Impressions int64
	Clicks      int64

	// Inline fast-path for the most common conversions; the complete
	// per-window ledger lives in the action fact table.
	Purchases       float64
	Leads           float64
	AddToCart       float64
	ConversionValue float64
}

// BreakdownFact is one row of a breakdown fact table (placement, age/gender
// or country). Only the key columns of the carried breakdown are set.
type BreakdownFact struct {
	Kind BreakdownKind

	DateKey     DateKey
	AccountKey  int64
	CampaignKey int64
	AdSetKey    int64
	AdKey       int64

	PlacementKey int64
	CountryKey   int64
	AgeKey       int64
	GenderKey    int64

	Spend       float64
	Impressions int64
	Clicks      int64
}

// ActionFactRow is one row of the generalized action ledger: one
// (day, ad, action type, attribution window) tuple. Zero-count zero-value
// rows are never persisted.
type ActionFactRow struct {
	DateKey       DateKey
	AccountKey    int64
	AdKey         int64
	ActionTypeKey int64
	Window        AttributionWindow

	Count float64
	Value float64
}

// DailyStat is a read-side daily aggregate used by the trend analyzer.
type DailyStat struct {
	Date            time.Time
	Spend           float64
	Impressions     int64
	Clicks          int64
	Conversions     float64
	ConversionValue float64
}

// CreativeDailyStat is a read-side per-creative daily aggregate used by the
// fatigue detector and pattern classifier.
type CreativeDailyStat struct {
	CreativeID   string
	AdID         string
	Title        string
	Body         string
	CallToAction string
	IsVideo      bool
	IsCarousel   bool

	Date            time.Time
	Spend           float64
	Impressions     int64
	Clicks          int64
	Conversions     float64
	ConversionValue float64
}

// Format returns the creative's presentation format.
func (s *CreativeDailyStat) Format() string {
	switch {
	case s.IsVideo:
		return "video"
	case s.IsCarousel:
		return "carousel"
	}
	return "image"
}
