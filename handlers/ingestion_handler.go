package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/upb/market-intel/services/ingestion"
	"github.com/upb/market-intel/services/providers"
	"github.com/upb/market-intel/utils"
	"go.uber.org/zap"
)

// IngestionService defines the aggregator operations exposed over HTTP
type IngestionService interface {
	CollectBusinesses(ctx context.Context, source string, params providers.SearchParams) (*ingestion.SearchResult, error)
	GetBusinessDetails(ctx context.Context, source, id string) (*ingestion.DetailsResult, error)
	GetBusinessReviews(ctx context.Context, source, id string, limit int) (*ingestion.ReviewsResult, error)
	GetCategories(ctx context.Context, source string) (*ingestion.CategoriesResult, error)
	CollectCompetitors(ctx context.Context, source string, params ingestion.CompetitorParams) (*ingestion.CompetitorResult, error)
	SourceInfo() ingestion.SourcesInfo
	TestSources(ctx context.Context) []ingestion.SourceStatus
	Budget() ingestion.BudgetReport
}

// SearchQuery holds the query parameters of GET /search
type SearchQuery struct {
	Source   string `validate:"omitempty,max=32"`
	Location string `validate:"max=200"`
	Query    string `validate:"max=200"`
	Category string `validate:"max=100"`
	Radius   int
	Limit    int
}

// ReviewsQuery holds the query parameters of GET /business/{id}/reviews
type ReviewsQuery struct {
	Source string `validate:"omitempty,max=32"`
	ID     string `validate:"required,max=300"`
	Limit  int
}

// CompetitorsQuery holds the query parameters of GET /competitors
type CompetitorsQuery struct {
	Source       string `validate:"omitempty,max=32"`
	BusinessName string `validate:"required,max=200"`
	Location     string `validate:"required,max=200"`
	Category     string `validate:"max=100"`
	Limit        int
}

// IngestionHandler handles business-data HTTP requests
type IngestionHandler struct {
	service IngestionService
	logger  *zap.Logger
}

// NewIngestionHandler creates a new IngestionHandler
func NewIngestionHandler(service IngestionService, logger *zap.Logger) *IngestionHandler {
	return &IngestionHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSearch handles GET /api/v1/ingestion/search
func (h *IngestionHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := SearchQuery{
		Source:   q.Get("source"),
		Location: q.Get("location"),
		Query:    q.Get("query"),
		Category: q.Get("category"),
	}

	var err error
	if query.Radius, err = utils.QueryInt(r, "radius", 0); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if query.Limit, err = utils.QueryInt(r, "limit", 20); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&query); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.CollectBusinesses(r.Context(), query.Source, providers.SearchParams{
		Location: query.Location,
		Query:    query.Query,
		Category: query.Category,
		Radius:   query.Radius,
		Limit:    query.Limit,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeOK(w, result)
}

// HandleDetails handles GET /api/v1/ingestion/business/{id}
func (h *IngestionHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		HandleValidationError(w, &utils.ValidationError{
			Message: "Validation failed",
			Fields:  map[string]string{"id": "id is required"},
		}, h.logger)
		return
	}

	result, err := h.service.GetBusinessDetails(r.Context(), r.URL.Query().Get("source"), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeOK(w, result)
}

// HandleReviews handles GET /api/v1/ingestion/business/{id}/reviews
func (h *IngestionHandler) HandleReviews(w http.ResponseWriter, r *http.Request) {
	query := ReviewsQuery{
		Source: r.URL.Query().Get("source"),
		ID:     strings.TrimSpace(chi.URLParam(r, "id")),
	}

	var err error
	if query.Limit, err = utils.QueryInt(r, "limit", 20); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&query); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.GetBusinessReviews(r.Context(), query.Source, query.ID, query.Limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeOK(w, result)
}

// HandleCompetitors handles GET /api/v1/ingestion/competitors
func (h *IngestionHandler) HandleCompetitors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := CompetitorsQuery{
		Source:       q.Get("source"),
		BusinessName: strings.TrimSpace(q.Get("business_name")),
		Location:     strings.TrimSpace(q.Get("location")),
		Category:     q.Get("category"),
	}

	var err error
	if query.Limit, err = utils.QueryInt(r, "limit", 10); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&query); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.CollectCompetitors(r.Context(), query.Source, ingestion.CompetitorParams{
		BusinessName: query.BusinessName,
		Location:     query.Location,
		Category:     query.Category,
		Limit:        query.Limit,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeOK(w, result)
}

// HandleCategories handles GET /api/v1/ingestion/categories
func (h *IngestionHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetCategories(r.Context(), r.URL.Query().Get("source"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeOK(w, result)
}

// HandleSources handles GET /api/v1/ingestion/sources
func (h *IngestionHandler) HandleSources(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, h.service.SourceInfo())
}

// HandleTestSources handles GET /api/v1/ingestion/test
func (h *IngestionHandler) HandleTestSources(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, map[string]interface{}{
		"results": h.service.TestSources(r.Context()),
	})
}

// HandleBudget handles GET /api/v1/ingestion/budget
func (h *IngestionHandler) HandleBudget(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, h.service.Budget())
}

func (h *IngestionHandler) writeOK(w http.ResponseWriter, data interface{}) {
	if err := utils.WriteOK(w, data); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
