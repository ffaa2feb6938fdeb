package foursquare

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services"
)

type place struct {
	FsqID    string `json:"fsq_id"`
	Name     string `json:"name"`
	Location struct {
		Address          string `json:"address"`
		Locality         string `json:"locality"`
		Region           string `json:"region"`
		Country          string `json:"country"`
		Postcode         string `json:"postcode"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"location"`
	Geocodes struct {
		Main *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"main"`
	} `json:"geocodes"`
	Categories []struct {
		ID   flexID `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
	Rating *float64 `json:"rating"`
	Price  *int     `json:"price"`
	Stats  *struct {
		TotalTips    *int `json:"total_tips"`
		TotalRatings *int `json:"total_ratings"`
		TotalPhotos  *int `json:"total_photos"`
	} `json:"stats"`
	Hours *struct {
		Display string `json:"display"`
		Regular []struct {
			Day   int    `json:"day"`
			Open  string `json:"open"`
			Close string `json:"close"`
		} `json:"regular"`
	} `json:"hours"`
	Tel         string `json:"tel"`
	Website     string `json:"website"`
	Description string `json:"description"`
}

type tip struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// flexID accepts both numeric and string category ids
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	*f = flexID(b)
	return nil
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

// NormalizePlace maps one Foursquare place. fsq_id and name are required.
func NormalizePlace(raw json.RawMessage) (models.Business, error) {
	var p place
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Business{}, services.NewNormalizationError(models.SourceFoursquare, "malformed place", err)
	}
	if p.FsqID == "" || p.Name == "" {
		return models.Business{}, services.NewNormalizationError(models.SourceFoursquare, "place missing fsq_id or name", nil)
	}

	b := models.Business{
		ID:          p.FsqID,
		Name:        p.Name,
		Address:     p.Location.Address,
		City:        p.Location.Locality,
		State:       p.Location.Region,
		Country:     p.Location.Country,
		PostalCode:  p.Location.Postcode,
		Categories:  make([]models.Category, 0, len(p.Categories)),
		Rating:      p.Rating,
		PriceTier:   p.Price,
		Phone:       p.Tel,
		Website:     p.Website,
		URL:         "https://foursquare.com/v/" + p.FsqID,
		Description: p.Description,
		Source:      models.SourceFoursquare,
		RawPayload:  append(json.RawMessage(nil), raw...),
	}
	if b.Address == "" {
		b.Address = p.Location.FormattedAddress
	}
	if p.Geocodes.Main != nil {
		b.Latitude = models.Float64(p.Geocodes.Main.Latitude)
		b.Longitude = models.Float64(p.Geocodes.Main.Longitude)
	}
	for _, c := range p.Categories {
		b.Categories = append(b.Categories, models.Category{ID: string(c.ID), Name: c.Name})
	}
	if p.Stats != nil {
		b.Stats.TipCount = p.Stats.TotalTips
		b.Stats.ReviewCount = p.Stats.TotalRatings
	}
	if p.Hours != nil {
		for _, h := range p.Hours.Regular {
			// Foursquare days run 1 (Monday) to 7 (Sunday)
			day := models.WeekdayName(h.Day - 1)
			if day == "" {
				continue
			}
			b.Hours = append(b.Hours, models.Hours{
				Day:   day,
				Open:  h.Open,
				Close: h.Close,
			})
		}
		if len(b.Hours) == 0 && strings.TrimSpace(p.Hours.Display) != "" {
			b.Hours = []models.Hours{{Day: "all", Display: p.Hours.Display}}
		}
	}
	return b, nil
}

// NormalizeTip maps one tip into a review without rating or author
func NormalizeTip(raw json.RawMessage) (models.Review, error) {
	var t tip
	if err := json.Unmarshal(raw, &t); err != nil {
		return models.Review{}, services.NewNormalizationError(models.SourceFoursquare, "malformed tip", err)
	}
	if t.ID == "" {
		return models.Review{}, services.NewNormalizationError(models.SourceFoursquare, "tip missing id", nil)
	}
	return models.Review{
		ID:        t.ID,
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
		Source:    models.SourceFoursquare,
	}, nil
}
