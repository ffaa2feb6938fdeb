package models

import "encoding/json"

// Source tags identify the provider that produced a record
const (
	SourceFoursquare   = "foursquare"
	SourceGooglePlaces = "google_places"
	SourceYelp         = "yelp"
	SourceMock         = "mock"
)

// Business is the canonical, provider-agnostic business record.
// Rating stays on the provider's native scale (Foursquare 0-10, Google and Yelp 1-5).
type Business struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Address     string          `json:"address,omitempty"`
	City        string          `json:"city,omitempty"`
	State       string          `json:"state,omitempty"`
	Country     string          `json:"country,omitempty"`
	PostalCode  string          `json:"postal_code,omitempty"`
	Latitude    *float64        `json:"latitude,omitempty"`
	Longitude   *float64        `json:"longitude,omitempty"`
	Categories  []Category      `json:"categories"`
	Rating      *float64        `json:"rating,omitempty"`
	PriceTier   *int            `json:"price_tier,omitempty"`
	Stats       Stats           `json:"stats"`
	Hours       []Hours         `json:"hours,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Website     string          `json:"website,omitempty"`
	URL         string          `json:"url,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Description string          `json:"description,omitempty"`
	Source      string          `json:"source"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
}

// Category is a provider category reference
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Stats holds aggregate engagement counters. Absent counters stay nil.
type Stats struct {
	TipCount     *int `json:"tip_count,omitempty"`
	ReviewCount  *int `json:"review_count,omitempty"`
	CheckinCount *int `json:"checkin_count,omitempty"`
	UserCount    *int `json:"user_count,omitempty"`
}

// Engagement returns the tip count, falling back to the review count.
func (s Stats) Engagement() int {
	if s.TipCount != nil {
		return *s.TipCount
	}
	if s.ReviewCount != nil {
		return *s.ReviewCount
	}
	return 0
}

// Hours describes opening hours for one day.
// Open and Close use 24h "HHMM" when the provider reports them.
type Hours struct {
	Day     string `json:"day"`
	Open    string `json:"open,omitempty"`
	Close   string `json:"close,omitempty"`
	Display string `json:"display,omitempty"`
}

// Weekdays maps a Monday-based index to a day name
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// WeekdayName returns the day name for a Monday-based index, or "" when out of range
func WeekdayName(i int) string {
	if i < 0 || i >= len(Weekdays) {
		return ""
	}
	return Weekdays[i]
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }
