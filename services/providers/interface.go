package providers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/upb/market-intel/models"
)

// Limit bounds applied to every search before it reaches an adapter
const (
	MinLimit      = 1
	MaxLimit      = 50
	DefaultRadius = 5000
)

// Provider is the capability contract every business-data source implements
type Provider interface {
	// Name returns the source tag (e.g., "foursquare", "yelp", "mock")
	Name() string

	// Metered reports whether calls go through the budget and rate governors
	Metered() bool

	// Limits returns the provider's radius and page-size ceilings
	Limits() Limits

	// Search returns businesses matching the parameters
	Search(ctx context.Context, params SearchParams) ([]models.Business, error)

	// GetDetails returns one business or a not_found error
	GetDetails(ctx context.Context, id string) (*models.Business, error)

	// GetReviews returns up to limit reviews (tips for Foursquare)
	GetReviews(ctx context.Context, id string, limit int) ([]models.Review, error)

	// GetCategories returns the provider's category list
	GetCategories(ctx context.Context) ([]models.Category, error)
}

// Limits are the per-provider ceilings for a search
type Limits struct {
	MaxRadius int `json:"max_radius"`
	MaxLimit  int `json:"max_limit"`
}

// SearchParams holds the normalized inputs of a search.
// Location is a free-text place name or "lat,lng".
type SearchParams struct {
	Location string `json:"location"`
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
	Radius   int    `json:"radius"`
	Limit    int    `json:"limit"`
}

// Clamp bounds the limit to [1,50] and then to the provider ceilings.
// A non-positive radius becomes DefaultRadius.
func (p SearchParams) Clamp(l Limits) SearchParams {
	p.Limit = ClampLimit(p.Limit)
	if l.MaxLimit > 0 && p.Limit > l.MaxLimit {
		p.Limit = l.MaxLimit
	}
	p.Radius = ClampRadius(p.Radius, l.MaxRadius)
	return p
}

// ClampLimit bounds n to [MinLimit, MaxLimit]
func ClampLimit(n int) int {
	if n < MinLimit {
		return MinLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// ClampRadius bounds meters to (0, max]. A max of zero means no ceiling.
func ClampRadius(meters, max int) int {
	if meters <= 0 {
		meters = DefaultRadius
	}
	if max > 0 && meters > max {
		return max
	}
	return meters
}

// ProviderConfig holds connection settings shared by the HTTP adapters
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Timeout for each request
	Timeout time.Duration
}

// ProviderError represents a failed upstream HTTP exchange
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request could succeed later
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error chain carries a retryable ProviderError
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// StatusCode returns the HTTP status carried by a ProviderError in the chain, or 0
func StatusCode(err error) int {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode
	}
	return 0
}

// ParseLatLng parses a "lat,lng" location
func ParseLatLng(location string) (lat, lng float64, ok bool) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
