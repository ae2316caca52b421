package models

// AttributionWindow identifies the platform attribution window a conversion
// is credited under.
type AttributionWindow string

const (
	Window1DayClick  AttributionWindow = "1d_click"
	Window7DayClick  AttributionWindow = "7d_click"
	Window28DayClick AttributionWindow = "28d_click"
	Window1DayView   AttributionWindow = "1d_view"
	Window7DayView   AttributionWindow = "7d_view"
)

// AllWindows lists every attribution window in a stable order.
var AllWindows = []AttributionWindow{
	Window1DayClick,
	Window7DayClick,
	Window28DayClick,
	Window1DayView,
	Window7DayView,
}

// ActionEntry is one element of a platform record's actions or action_values
// array: an action type plus a value per attribution window. Absent windows
// stay nil; the platform omits windows it did not attribute.
type ActionEntry struct {
	ActionType string   `json:"action_type"`
	Click1Day  *float64 `json:"1d_click,omitempty"`
	Click7Day  *float64 `json:"7d_click,omitempty"`
	Click28Day *float64 `json:"28d_click,omitempty"`
	View1Day   *float64 `json:"1d_view,omitempty"`
	View7Day   *float64 `json:"7d_view,omitempty"`
}

// Window returns the entry's value for the given attribution window, or nil
// when the platform did not report that window.
func (e *ActionEntry) Window(w AttributionWindow) *float64 {
	switch w {
	case Window1DayClick:
		return e.Click1Day
	case Window7DayClick:
		return e.Click7Day
	case Window28DayClick:
		return e.Click28Day
	case Window1DayView:
		return e.View1Day
	case Window7DayView:
		return e.View7Day
	}
	return nil
}

// CreativeFields carries the creative attributes embedded in a platform record.
type CreativeFields struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	CallToAction string `json:"call_to_action_type"`
	IsVideo      bool   `json:"is_video"`
	IsCarousel   bool   `json:"is_carousel"`
	VideoLength  int    `json:"video_length_seconds"`
}

// PlatformRecord is the collaborator-provided intermediate representation of
// one fetched insights row: a flat metric block, dimension identifiers, the
// nested action arrays, and optional breakdown keys. Exactly one of the
// breakdown groups is set on breakdown rows; core rows carry none.
type PlatformRecord struct {
	Date string `json:"date_start"`

	AccountID      string `json:"account_id"`
	CampaignID     string `json:"campaign_id"`
	CampaignName   string `json:"campaign_name"`
	CampaignStatus string `json:"campaign_status"`
	AdSetID        string `json:"adset_id"`
	AdSetName      string `json:"adset_name"`
	AdSetStatus    string `json:"adset_status"`
	AdID           string `json:"ad_id"`
	AdName         string `json:"ad_name"`
	AdStatus       string `json:"ad_status"`

	Creative CreativeFields `json:"creative"`

	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`

	Actions      []ActionEntry `json:"actions,omitempty"`
	ActionValues []ActionEntry `json:"action_values,omitempty"`

	// Breakdown keys. Set only on breakdown-mode rows.
	Placement *string `json:"publisher_platform,omitempty"`
	Country   *string `json:"country,omitempty"`
	Age       *string `json:"age,omitempty"`
	Gender    *string `json:"gender,omitempty"`
}

// BreakdownKind classifies which breakdown group a record carries.
type BreakdownKind string

const (
	BreakdownNone      BreakdownKind = ""
	BreakdownPlacement BreakdownKind = "placement"
	BreakdownAgeGender BreakdownKind = "age_gender"
	BreakdownCountry   BreakdownKind = "country"
)

// Breakdown reports which breakdown group, if any, the record carries.
func (r *PlatformRecord) Breakdown() BreakdownKind {
	switch {
	case r.Placement != nil:
		return BreakdownPlacement
	case r.Age != nil || r.Gender != nil:
		return BreakdownAgeGender
	case r.Country != nil:
		return BreakdownCountry
	}
	return BreakdownNone
}

// ActionFact is one flattened (action type, attribution window) tuple
// produced by the normalizer from a record's nested action arrays.
type ActionFact struct {
	ActionType string            `json:"action_type"`
	Window     AttributionWindow `json:"attribution_window"`
	Count      float64           `json:"count"`
	Value      float64           `json:"value"`
}
