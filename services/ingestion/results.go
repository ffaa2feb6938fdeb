package ingestion

import (
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services/budget"
	"github.com/upb/market-intel/services/cache"
	"github.com/upb/market-intel/services/providers"
)

// CacheInfo reports how the governed path served a call
type CacheInfo struct {
	CacheHit bool    `json:"cache_hit"`
	Cost     float64 `json:"cost"`
	TTL      int     `json:"ttl_seconds"`
}

// Envelope is shared by every aggregated result
type Envelope struct {
	Success         bool      `json:"success"`
	RequestID       string    `json:"request_id"`
	Source          string    `json:"source"`
	RequestedSource string    `json:"requested_source"`
	Fallback        bool      `json:"fallback"`
	FallbackReason  string    `json:"fallback_reason,omitempty"`
	Count           int       `json:"count"`
	Timestamp       string    `json:"timestamp"`
	CacheInfo       CacheInfo `json:"cache_info"`
}

// SearchResult is returned by CollectBusinesses
type SearchResult struct {
	Envelope
	Location   string            `json:"location"`
	Query      string            `json:"query,omitempty"`
	Category   string            `json:"category,omitempty"`
	Radius     int               `json:"radius"`
	Limit      int               `json:"limit"`
	Businesses []models.Business `json:"businesses"`
}

// DetailsResult is returned by GetBusinessDetails
type DetailsResult struct {
	Envelope
	BusinessID string           `json:"business_id"`
	Details    *models.Business `json:"details"`
}

// ReviewsResult is returned by GetBusinessReviews
type ReviewsResult struct {
	Envelope
	BusinessID string          `json:"business_id"`
	Limit      int             `json:"limit"`
	Reviews    []models.Review `json:"reviews"`
}

// CategoriesResult is returned by GetCategories
type CategoriesResult struct {
	Envelope
	Categories []models.Category `json:"categories"`
}

// CompetitorAnalysis summarizes the competitor set
type CompetitorAnalysis struct {
	TotalCompetitors  int     `json:"total_competitors"`
	AverageRating     float64 `json:"average_rating"`
	AverageEngagement float64 `json:"average_engagement"`
	RatedCompetitors  int     `json:"rated_competitors"`
}

// CompetitorResult is returned by CollectCompetitors
type CompetitorResult struct {
	Envelope
	TargetBusiness string             `json:"target_business"`
	Location       string             `json:"location"`
	Category       string             `json:"category,omitempty"`
	Competitors    []models.Business  `json:"competitors"`
	Analysis       CompetitorAnalysis `json:"analysis"`
}

// SourceDescriptor describes one registered source
type SourceDescriptor struct {
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	Primary bool             `json:"primary"`
	Limits  providers.Limits `json:"limits"`
}

// SourcesInfo lists the sources in resolution order
type SourcesInfo struct {
	Sources []SourceDescriptor `json:"sources"`
	Primary string             `json:"primary"`
	Count   int                `json:"count"`
}

// SourceStatus is one entry of a connection test
type SourceStatus struct {
	Source    string `json:"source"`
	Status    string `json:"status"`
	Count     int    `json:"count"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// BudgetReport combines the ledger view and cache statistics
type BudgetReport struct {
	Budget budget.Usage `json:"budget"`
	Cache  cache.Stats  `json:"cache"`
}
