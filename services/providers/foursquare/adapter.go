package foursquare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/upb/market-intel/config"
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services"
	"github.com/upb/market-intel/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.foursquare.com/v3"
	maxRadius      = 100000
	maxLimit       = 50

	placeFields = "fsq_id,name,location,geocodes,categories,rating,price,stats,hours,tel,website,description,link"
)

// Adapter implements the Provider interface for the Foursquare Places v3 API
type Adapter struct {
	client *providers.HTTPClient
	logger *zap.Logger
}

// NewAdapter creates a Foursquare adapter. A missing or placeholder key is a configuration error.
func NewAdapter(cfg providers.ProviderConfig, logger *zap.Logger) (*Adapter, error) {
	if config.IsPlaceholderKey(cfg.APIKey) {
		return nil, services.NewConfigurationError(models.SourceFoursquare, "FOURSQUARE_API_KEY is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	// v3 takes the raw key, no Bearer prefix
	header := make(http.Header)
	header.Set("Authorization", cfg.APIKey)

	return &Adapter{
		client: providers.NewHTTPClient(models.SourceFoursquare, cfg, header, logger),
		logger: logger,
	}, nil
}

// Name returns the provider name
func (a *Adapter) Name() string { return models.SourceFoursquare }

// Metered reports that calls are governed
func (a *Adapter) Metered() bool { return true }

// Limits returns the Foursquare ceilings
func (a *Adapter) Limits() providers.Limits {
	return providers.Limits{MaxRadius: maxRadius, MaxLimit: maxLimit}
}

// Search queries /places/search
func (a *Adapter) Search(ctx context.Context, params providers.SearchParams) ([]models.Business, error) {
	params = params.Clamp(a.Limits())

	q := url.Values{}
	if lat, lng, ok := providers.ParseLatLng(params.Location); ok {
		q.Set("ll", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
	} else {
		q.Set("near", params.Location)
	}
	if params.Query != "" {
		q.Set("query", params.Query)
	}
	if params.Category != "" {
		q.Set("categories", params.Category)
	}
	q.Set("radius", strconv.Itoa(params.Radius))
	q.Set("limit", strconv.Itoa(params.Limit))
	q.Set("fields", placeFields)

	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := a.client.GetJSON(ctx, config.OperationSearch, "/places/search", q, &resp); err != nil {
		return nil, err
	}

	businesses, dropped := NormalizePlaces(resp.Results)
	for _, err := range dropped {
		a.logger.Warn("dropped foursquare record", zap.Error(err))
	}
	return businesses, nil
}

// GetDetails fetches /places/{id}
func (a *Adapter) GetDetails(ctx context.Context, id string) (*models.Business, error) {
	q := url.Values{}
	q.Set("fields", placeFields)

	var raw json.RawMessage
	if err := a.client.GetJSON(ctx, config.OperationDetails, "/places/"+url.PathEscape(id), q, &raw); err != nil {
		if providers.StatusCode(err) == http.StatusNotFound {
			return nil, services.NewNotFoundError(a.Name(), id)
		}
		return nil, err
	}

	b, err := NormalizePlace(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetReviews returns tips from /places/{id}/tips. Tips carry no rating or author.
func (a *Adapter) GetReviews(ctx context.Context, id string, limit int) ([]models.Review, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(providers.ClampLimit(limit)))

	var tips []json.RawMessage
	if err := a.client.GetJSON(ctx, config.OperationReviews, "/places/"+url.PathEscape(id)+"/tips", q, &tips); err != nil {
		if providers.StatusCode(err) == http.StatusNotFound {
			return nil, services.NewNotFoundError(a.Name(), id)
		}
		return nil, err
	}

	reviews := make([]models.Review, 0, len(tips))
	for _, raw := range tips {
		r, err := NormalizeTip(raw)
		if err != nil {
			a.logger.Warn("dropped foursquare tip", zap.Error(err))
			continue
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// GetCategories returns the top-level Foursquare taxonomy
func (a *Adapter) GetCategories(ctx context.Context) ([]models.Category, error) {
	out := make([]models.Category, len(topLevelCategories))
	copy(out, topLevelCategories)
	return out, nil
}

var topLevelCategories = []models.Category{
	{ID: "10000", Name: "Arts and Entertainment"},
	{ID: "11000", Name: "Business and Professional Services"},
	{ID: "12000", Name: "Community and Government"},
	{ID: "13000", Name: "Dining and Drinking"},
	{ID: "14000", Name: "Event"},
	{ID: "15000", Name: "Health and Medicine"},
	{ID: "16000", Name: "Landmarks and Outdoors"},
	{ID: "17000", Name: "Retail"},
	{ID: "18000", Name: "Sports and Recreation"},
	{ID: "19000", Name: "Travel and Transportation"},
}
