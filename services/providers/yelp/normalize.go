package yelp

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services"
)

const yelpTimeLayout = "2006-01-02 15:04:05"

type business struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location struct {
		Address1       string   `json:"address1"`
		City           string   `json:"city"`
		State          string   `json:"state"`
		Country        string   `json:"country"`
		ZipCode        string   `json:"zip_code"`
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
	Coordinates *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
	Categories []struct {
		Alias string `json:"alias"`
		Title string `json:"title"`
	} `json:"categories"`
	Rating       *float64 `json:"rating"`
	ReviewCount  *int     `json:"review_count"`
	Price        string   `json:"price"`
	DisplayPhone string   `json:"display_phone"`
	Phone        string   `json:"phone"`
	URL          string   `json:"url"`
	ImageURL     string   `json:"image_url"`
	Hours        []struct {
		Open []struct {
			Day   int    `json:"day"`
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"open"`
	} `json:"hours"`
}

type review struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Rating      *float64 `json:"rating"`
	TimeCreated string   `json:"time_created"`
	User        struct {
		Name     string `json:"name"`
		ImageURL string `json:"image_url"`
	} `json:"user"`
}

// NormalizeBusinesses maps a batch, dropping records that fail normalization
func NormalizeBusinesses(raws []json.RawMessage) ([]models.Business, []error) {
	out := make([]models.Business, 0, len(raws))
	var dropped []error
	for _, raw := range raws {
		b, err := NormalizeBusiness(raw)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		out = append(out, b)
	}
	return out, dropped
}

// NormalizeBusiness maps one Yelp business. id and name are required.
func NormalizeBusiness(raw json.RawMessage) (models.Business, error) {
	var y business
	if err := json.Unmarshal(raw, &y); err != nil {
		return models.Business{}, services.NewNormalizationError(models.SourceYelp, "malformed business", err)
	}
	if y.ID == "" || y.Name == "" {
		return models.Business{}, services.NewNormalizationError(models.SourceYelp, "business missing id or name", nil)
	}

	b := models.Business{
		ID:         y.ID,
		Name:       y.Name,
		Address:    y.Location.Address1,
		City:       y.Location.City,
		State:      y.Location.State,
		Country:    y.Location.Country,
		PostalCode: y.Location.ZipCode,
		Categories: make([]models.Category, 0, len(y.Categories)),
		Rating:     y.Rating,
		PriceTier:  PriceTier(y.Price),
		Phone:      y.DisplayPhone,
		URL:        y.URL,
		ImageURL:   y.ImageURL,
		Source:     models.SourceYelp,
		RawPayload: append(json.RawMessage(nil), raw...),
	}
	if b.Address == "" && len(y.Location.DisplayAddress) > 0 {
		b.Address = strings.Join(y.Location.DisplayAddress, ", ")
	}
	if b.Phone == "" {
		b.Phone = y.Phone
	}
	if y.Coordinates != nil {
		b.Latitude = y.Coordinates.Latitude
		b.Longitude = y.Coordinates.Longitude
	}
	for _, c := range y.Categories {
		b.Categories = append(b.Categories, models.Category{ID: c.Alias, Name: c.Title})
	}
	b.Stats.ReviewCount = y.ReviewCount
	for _, h := range y.Hours {
		for _, o := range h.Open {
			// Yelp days run 0 (Monday) to 6 (Sunday)
			day := models.WeekdayName(o.Day)
			if day == "" {
				continue
			}
			b.Hours = append(b.Hours, models.Hours{Day: day, Open: o.Start, Close: o.End})
		}
	}
	return b, nil
}

// PriceTier converts "$".."$$$$" to 1..4. Anything else is absent.
func PriceTier(price string) *int {
	price = strings.TrimSpace(price)
	if price == "" || len(price) > 4 || strings.Trim(price, "$") != "" {
		return nil
	}
	return models.Int(len(price))
}

// NormalizeReview maps one Yelp review
func NormalizeReview(raw json.RawMessage) (models.Review, error) {
	var r review
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Review{}, services.NewNormalizationError(models.SourceYelp, "malformed review", err)
	}
	if r.ID == "" {
		return models.Review{}, services.NewNormalizationError(models.SourceYelp, "review missing id", nil)
	}

	out := models.Review{
		ID:     r.ID,
		Text:   r.Text,
		Rating: r.Rating,
		Author: r.User.Name,
		Source: models.SourceYelp,
	}
	if r.User.ImageURL != "" {
		out.AuthorPhoto = models.String(r.User.ImageURL)
	}
	if t, err := time.Parse(yelpTimeLayout, r.TimeCreated); err == nil {
		out.CreatedAt = t.Format(time.RFC3339)
	} else {
		out.CreatedAt = r.TimeCreated
	}
	return out, nil
}
