package googleplaces

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services"
)

type place struct {
	PlaceID           string `json:"place_id"`
	Name              string `json:"name"`
	FormattedAddress  string `json:"formatted_address"`
	Vicinity          string `json:"vicinity"`
	AddressComponents []struct {
		LongName  string   `json:"long_name"`
		ShortName string   `json:"short_name"`
		Types     []string `json:"types"`
	} `json:"address_components"`
	Geometry *struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Types            []string `json:"types"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	PriceLevel       *int     `json:"price_level"`
	OpeningHours     *struct {
		WeekdayText []string `json:"weekday_text"`
		Periods     []struct {
			Open *struct {
				Day  int    `json:"day"`
				Time string `json:"time"`
			} `json:"open"`
			Close *struct {
				Day  int    `json:"day"`
				Time string `json:"time"`
			} `json:"close"`
		} `json:"periods"`
	} `json:"opening_hours"`
	FormattedPhoneNumber string `json:"formatted_phone_number"`
	Website              string `json:"website"`
	URL                  string `json:"url"`
	EditorialSummary     *struct {
		Overview string `json:"overview"`
	} `json:"editorial_summary"`
}

type review struct {
	AuthorName      string   `json:"author_name"`
	ProfilePhotoURL string   `json:"profile_photo_url"`
	Rating          *float64 `json:"rating"`
	Text            string   `json:"text"`
	Time            int64    `json:"time"`
}

// NormalizePlaces maps a batch, dropping records that fail normalization
func NormalizePlaces(raws []json.RawMessage) ([]models.Business, []error) {
	out := make([]models.Business, 0, len(raws))
	var dropped []error
	for _, raw := range raws {
		b, err := NormalizePlace(raw)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		out = append(out, b)
	}
	return out, dropped
}

// NormalizePlace maps one search result or details result. place_id and name are required.
func NormalizePlace(raw json.RawMessage) (models.Business, error) {
	var p place
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Business{}, services.NewNormalizationError(models.SourceGooglePlaces, "malformed place", err)
	}
	if p.PlaceID == "" || p.Name == "" {
		return models.Business{}, services.NewNormalizationError(models.SourceGooglePlaces, "place missing place_id or name", nil)
	}

	b := models.Business{
		ID:         p.PlaceID,
		Name:       p.Name,
		Address:    p.FormattedAddress,
		Categories: make([]models.Category, 0, len(p.Types)),
		Rating:     p.Rating,
		PriceTier:  p.PriceLevel,
		Phone:      p.FormattedPhoneNumber,
		Website:    p.Website,
		URL:        p.URL,
		Source:     models.SourceGooglePlaces,
		RawPayload: append(json.RawMessage(nil), raw...),
	}
	if b.Address == "" {
		b.Address = p.Vicinity
	}
	for _, c := range p.AddressComponents {
		switch {
		case hasType(c.Types, "locality"):
			b.City = c.LongName
		case hasType(c.Types, "administrative_area_level_1"):
			b.State = c.ShortName
		case hasType(c.Types, "country"):
			b.Country = c.ShortName
		case hasType(c.Types, "postal_code"):
			b.PostalCode = c.LongName
		}
	}
	if p.Geometry != nil {
		b.Latitude = models.Float64(p.Geometry.Location.Lat)
		b.Longitude = models.Float64(p.Geometry.Location.Lng)
	}
	for _, t := range p.Types {
		b.Categories = append(b.Categories, models.Category{ID: t, Name: typeName(t)})
	}
	b.Stats.ReviewCount = p.UserRatingsTotal
	if p.EditorialSummary != nil {
		b.Description = p.EditorialSummary.Overview
	}
	if p.OpeningHours != nil {
		b.Hours = normalizeHours(p.OpeningHours.WeekdayText)
	}
	return b, nil
}

// normalizeHours parses "Monday: 9:00 AM – 5:00 PM" lines into display-only entries
func normalizeHours(lines []string) []models.Hours {
	var hours []models.Hours
	for _, line := range lines {
		day, display, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		hours = append(hours, models.Hours{
			Day:     strings.ToLower(strings.TrimSpace(day)),
			Display: strings.TrimSpace(display),
		})
	}
	return hours
}

// NormalizeReview maps one embedded review. Google reviews have no id, so one
// is derived from the place id and the review time.
func NormalizeReview(placeID string, raw json.RawMessage) (models.Review, error) {
	var r review
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Review{}, services.NewNormalizationError(models.SourceGooglePlaces, "malformed review", err)
	}
	if r.Time == 0 && r.AuthorName == "" {
		return models.Review{}, services.NewNormalizationError(models.SourceGooglePlaces, "review missing author and time", nil)
	}

	out := models.Review{
		ID:     fmt.Sprintf("%s_%d", placeID, r.Time),
		Text:   r.Text,
		Rating: r.Rating,
		Author: r.AuthorName,
		Source: models.SourceGooglePlaces,
	}
	if r.ProfilePhotoURL != "" {
		out.AuthorPhoto = models.String(r.ProfilePhotoURL)
	}
	if r.Time > 0 {
		out.CreatedAt = time.Unix(r.Time, 0).UTC().Format(time.RFC3339)
	}
	return out, nil
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
