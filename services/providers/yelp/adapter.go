package yelp

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
	defaultBaseURL = "https://api.yelp.com/v3"
	maxRadius      = 40000
	maxLimit       = 50
)

// Adapter implements the Provider interface for the Yelp Fusion API
type Adapter struct {
	client *providers.HTTPClient
	logger *zap.Logger
}

// NewAdapter creates a Yelp adapter. A missing or placeholder key is a configuration error.
func NewAdapter(cfg providers.ProviderConfig, logger *zap.Logger) (*Adapter, error) {
	if config.IsPlaceholderKey(cfg.APIKey) {
		return nil, services.NewConfigurationError(models.SourceYelp, "YELP_API_KEY is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	return &Adapter{
		client: providers.NewHTTPClient(models.SourceYelp, cfg, header, logger),
		logger: logger,
	}, nil
}

// Name returns the provider name
func (a *Adapter) Name() string { return models.SourceYelp }

// Metered reports that calls are governed
func (a *Adapter) Metered() bool { return true }

// Limits returns the Yelp ceilings
func (a *Adapter) Limits() providers.Limits {
	return providers.Limits{MaxRadius: maxRadius, MaxLimit: maxLimit}
}

// Search queries /businesses/search
func (a *Adapter) Search(ctx context.Context, params providers.SearchParams) ([]models.Business, error) {
	params = params.Clamp(a.Limits())

	q := url.Values{}
	if lat, lng, ok := providers.ParseLatLng(params.Location); ok {
		q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	} else {
		q.Set("location", params.Location)
	}
	if params.Query != "" {
		q.Set("term", params.Query)
	}
	if params.Category != "" {
		q.Set("categories", params.Category)
	}
	q.Set("radius", strconv.Itoa(params.Radius))
	q.Set("limit", strconv.Itoa(params.Limit))

	var resp struct {
		Businesses []json.RawMessage `json:"businesses"`
	}
	if err := a.client.GetJSON(ctx, config.OperationSearch, "/businesses/search", q, &resp); err != nil {
		return nil, err
	}

	businesses, dropped := NormalizeBusinesses(resp.Businesses)
	for _, err := range dropped {
		a.logger.Warn("dropped yelp record", zap.Error(err))
	}
	return businesses, nil
}

// GetDetails fetches /businesses/{id}
func (a *Adapter) GetDetails(ctx context.Context, id string) (*models.Business, error) {
	var raw json.RawMessage
	if err := a.client.GetJSON(ctx, config.OperationDetails, "/businesses/"+url.PathEscape(id), nil, &raw); err != nil {
		if providers.StatusCode(err) == http.StatusNotFound {
			return nil, services.NewNotFoundError(a.Name(), id)
		}
		return nil, err
	}

	b, err := NormalizeBusiness(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetReviews fetches /businesses/{id}/reviews
func (a *Adapter) GetReviews(ctx context.Context, id string, limit int) ([]models.Review, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(providers.ClampLimit(limit)))
	q.Set("sort_by", "newest")

	var resp struct {
		Reviews []json.RawMessage `json:"reviews"`
	}
	if err := a.client.GetJSON(ctx, config.OperationReviews, "/businesses/"+url.PathEscape(id)+"/reviews", q, &resp); err != nil {
		if providers.StatusCode(err) == http.StatusNotFound {
			return nil, services.NewNotFoundError(a.Name(), id)
		}
		return nil, err
	}

	reviews := make([]models.Review, 0, len(resp.Reviews))
	for _, raw := range resp.Reviews {
		r, err := NormalizeReview(raw)
		if err != nil {
			a.logger.Warn("dropped yelp review", zap.Error(err))
			continue
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// GetCategories fetches /categories
func (a *Adapter) GetCategories(ctx context.Context) ([]models.Category, error) {
	var resp struct {
		Categories []struct {
			Alias string `json:"alias"`
			Title string `json:"title"`
		} `json:"categories"`
	}
	if err := a.client.GetJSON(ctx, config.OperationCategories, "/categories", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Category, 0, len(resp.Categories))
	for _, c := range resp.Categories {
		if c.Alias == "" {
			continue
		}
		out = append(out, models.Category{ID: c.Alias, Name: c.Title})
	}
	return out, nil
}
