// Package warehouse implements the star-schema store for ad performance
// facts: normalization of raw platform records, natural-key dimension
// resolution, idempotent fact loading and the read-side aggregate queries
// that feed the analytics services.
package warehouse

import (
	"github.com/radiusdt/vector-insights/internal/models"
	"go.uber.org/zap"
)

// actionKey identifies one (action type, attribution window) pair.
type actionKey struct {
	actionType string
	window     models.AttributionWindow
}

// Normalizer flattens a record's nested actions and action_values arrays
// into one tuple per (action type, attribution window) pair.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeActions emits one ActionFact per (action type, window) pair
// present in either input array. The platform sometimes reports a value with
// no matching count, or a count with no matching value; the missing side
// defaults to zero so the pair is never dropped. Entries without an
// action_type are skipped and logged, never fatal.
func (n *Normalizer) NormalizeActions(rec *models.PlatformRecord) []models.ActionFact {
	if len(rec.Actions) == 0 && len(rec.ActionValues) == 0 {
		return nil
	}

	counts := make(map[actionKey]float64)
	values := make(map[actionKey]float64)
	var order []actionKey

	collect := func(entries []models.ActionEntry, into map[actionKey]float64, field string) {
		for i := range entries {
			e := &entries[i]
			if e.ActionType == "" {
				n.logger.Warn("skipping malformed action entry",
					zap.String("field", field),
					zap.String("ad_id", rec.AdID),
					zap.String("date", rec.Date),
				)
				continue
			}
			for _, w := range models.AllWindows {
				v := e.Window(w)
				if v == nil {
					continue
				}
				k := actionKey{actionType: e.ActionType, window: w}
				if _, seenCount := counts[k]; !seenCount {
					if _, seenValue := values[k]; !seenValue {
						order = append(order, k)
					}
				}
				into[k] = *v
			}
		}
	}

	collect(rec.Actions, counts, "actions")
	collect(rec.ActionValues, values, "action_values")

	facts := make([]models.ActionFact, 0, len(order))
	for _, k := range order {
		facts = append(facts, models.ActionFact{
			ActionType: k.actionType,
			Window:     k.window,
			Count:      counts[k],
			Value:      values[k],
		})
	}
	return facts
}

// ConversionTotals sums a record's normalized actions into the inline
// fast-path columns of the core fact. The 7-day-click window is the
// platform's default attribution for reporting, so only that window feeds
// the inline totals; the full ledger keeps every window.
type ConversionTotals struct {
	Purchases       float64
	Leads           float64
	AddToCart       float64
	ConversionValue float64
}

// SumConversions extracts inline conversion totals from normalized actions.
func SumConversions(facts []models.ActionFact) ConversionTotals {
	var t ConversionTotals
	for _, f := range facts {
		if f.Window != models.Window7DayClick {
			continue
		}
		switch f.ActionType {
		case "purchase", "omni_purchase", "offsite_conversion.fb_pixel_purchase":
			t.Purchases += f.Count
			t.ConversionValue += f.Value
		case "lead", "offsite_conversion.fb_pixel_lead":
			t.Leads += f.Count
			t.ConversionValue += f.Value
		case "add_to_cart", "offsite_conversion.fb_pixel_add_to_cart":
			t.AddToCart += f.Count
		}
	}
	return t
}
