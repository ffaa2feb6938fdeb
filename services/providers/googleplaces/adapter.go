package googleplaces

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/upb/market-intel/config"
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services"
	"github.com/upb/market-intel/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/place"
	maxRadius      = 50000
	// one result page
	maxLimit = 20

	detailsFields = "place_id,name,formatted_address,address_components,geometry,types,rating,user_ratings_total,price_level,opening_hours,formatted_phone_number,website,url,editorial_summary"
)

// Adapter implements the Provider interface for the Google Places web service
type Adapter struct {
	apiKey string
	client *providers.HTTPClient
	logger *zap.Logger
}

// NewAdapter creates a Google Places adapter. A missing or placeholder key is a configuration error.
func NewAdapter(cfg providers.ProviderConfig, logger *zap.Logger) (*Adapter, error) {
	if config.IsPlaceholderKey(cfg.APIKey) {
		return nil, services.NewConfigurationError(models.SourceGooglePlaces, "GOOGLE_PLACES_API_KEY is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	return &Adapter{
		apiKey: cfg.APIKey,
		client: providers.NewHTTPClient(models.SourceGooglePlaces, cfg, nil, logger),
		logger: logger,
	}, nil
}

// Name returns the provider name
func (a *Adapter) Name() string { return models.SourceGooglePlaces }

// Metered reports that calls are governed
func (a *Adapter) Metered() bool { return true }

// Limits returns the Google Places ceilings
func (a *Adapter) Limits() providers.Limits {
	return providers.Limits{MaxRadius: maxRadius, MaxLimit: maxLimit}
}

type searchResponse struct {
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message"`
	Results      []json.RawMessage `json:"results"`
}

type detailsResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

// Search uses Nearby Search for "lat,lng" locations and Text Search otherwise
func (a *Adapter) Search(ctx context.Context, params providers.SearchParams) ([]models.Business, error) {
	params = params.Clamp(a.Limits())

	q := url.Values{}
	q.Set("key", a.apiKey)
	q.Set("radius", strconv.Itoa(params.Radius))
	if params.Category != "" {
		q.Set("type", params.Category)
	}

	path := "/textsearch/json"
	if lat, lng, ok := providers.ParseLatLng(params.Location); ok {
		path = "/nearbysearch/json"
		q.Set("location", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64))
		if params.Query != "" {
			q.Set("keyword", params.Query)
		}
	} else {
		text := strings.TrimSpace(params.Query + " in " + params.Location)
		if params.Query == "" {
			text = params.Location
		}
		q.Set("query", text)
	}

	var resp searchResponse
	if err := a.client.GetJSON(ctx, config.OperationSearch, path, q, &resp); err != nil {
		return nil, err
	}
	if err := a.checkStatus(config.OperationSearch, resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}

	results := resp.Results
	if len(results) > params.Limit {
		results = results[:params.Limit]
	}
	businesses, dropped := NormalizePlaces(results)
	for _, err := range dropped {
		a.logger.Warn("dropped google places record", zap.Error(err))
	}
	return businesses, nil
}

// GetDetails fetches Place Details
func (a *Adapter) GetDetails(ctx context.Context, id string) (*models.Business, error) {
	raw, err := a.details(ctx, config.OperationDetails, id, detailsFields)
	if err != nil {
		return nil, err
	}
	b, err := NormalizePlace(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetReviews fetches the reviews embedded in Place Details (at most five upstream)
func (a *Adapter) GetReviews(ctx context.Context, id string, limit int) ([]models.Review, error) {
	raw, err := a.details(ctx, config.OperationReviews, id, "reviews")
	if err != nil {
		return nil, err
	}

	var body struct {
		Reviews []json.RawMessage `json:"reviews"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, services.NewNormalizationError(a.Name(), "malformed reviews", err)
	}

	limit = providers.ClampLimit(limit)
	reviews := make([]models.Review, 0, len(body.Reviews))
	for _, r := range body.Reviews {
		if len(reviews) >= limit {
			break
		}
		review, err := NormalizeReview(id, r)
		if err != nil {
			a.logger.Warn("dropped google places review", zap.Error(err))
			continue
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// GetCategories returns the supported place types
func (a *Adapter) GetCategories(ctx context.Context) ([]models.Category, error) {
	out := make([]models.Category, 0, len(placeTypes))
	for _, t := range placeTypes {
		out = append(out, models.Category{ID: t, Name: typeName(t)})
	}
	return out, nil
}

func (a *Adapter) details(ctx context.Context, operation, id, fields string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("key", a.apiKey)
	q.Set("place_id", id)
	q.Set("fields", fields)

	var resp detailsResponse
	if err := a.client.GetJSON(ctx, operation, "/details/json", q, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "NOT_FOUND", "INVALID_REQUEST", "ZERO_RESULTS":
		return nil, services.NewNotFoundError(a.Name(), id)
	}
	if err := a.checkStatus(operation, resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// checkStatus maps the body-level status Google reports with HTTP 200
func (a *Adapter) checkStatus(operation, status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	}
	retryable := status == "OVER_QUERY_LIMIT" || status == "UNKNOWN_ERROR"
	if message == "" {
		message = "request returned " + status
	}
	provErr := providers.NewProviderError(a.Name(), status, message, 200, retryable, nil)
	return services.NewUpstreamError(a.Name(), operation, provErr).WithDetail("code", status)
}

var placeTypes = []string{
	"restaurant", "cafe", "bar", "bakery", "meal_takeaway", "meal_delivery",
	"night_club", "store", "clothing_store", "supermarket", "pharmacy",
	"gym", "beauty_salon", "hair_care", "spa", "lodging", "book_store",
	"convenience_store", "liquor_store", "florist",
}

func typeName(t string) string {
	words := strings.Split(t, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
