package models

// Dimension attribute structs carry the natural key plus the mutable display
// attributes a re-pull may update. Surrogate keys are assigned by the
// warehouse and never change once a natural key has been seen.

type AccountAttrs struct {
	AccountID string
	Name      string
}

type CampaignAttrs struct {
	CampaignID string
	Name       string
	Status     string
}

type AdSetAttrs struct {
	AdSetID string
	Name    string
	Status  string
}

type AdAttrs struct {
	AdID   string
	Name   string
	Status string
}

type CreativeAttrs struct {
	CreativeID   string
	Title        string
	Body         string
	CallToAction string
	IsVideo      bool
	IsCarousel   bool
	VideoLength  int
}

type ActionTypeAttrs struct {
	Name         string
	IsConversion bool
}

// Simple enumerated dimensions keyed by their display value.

type PlacementAttrs struct {
	Name string
}

type CountryAttrs struct {
	Code string
}

type AgeAttrs struct {
	Bucket string
}

type GenderAttrs struct {
	Value string
}
