package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avisio/hub/internal/api/response"
	"github.com/avisio/hub/internal/api/validation"
	"github.com/avisio/hub/internal/models"
	"github.com/avisio/hub/internal/service"
)

// SearchService defines the interface for semantic search and theme aggregation.
type SearchService interface {
	Search(ctx context.Context, restaurantID uuid.UUID, query string, opts models.SearchOptions) (
		[]models.FeedbackWithSimilarity, error)
	Themes(ctx context.Context, restaurantID uuid.UUID, dateFrom, dateTo time.Time, sentiment models.SentimentFilter) (
		[]models.ThemeCount, error)
}

// SearchHandler handles HTTP requests for semantic search and theme counts.
type SearchHandler struct {
	service SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// searchRequestBody is the body for POST /v1/feedbacks/search.
// API contract uses camelCase; limit is capped at 100 by validation.
type searchRequestBody struct {
	RestaurantID uuid.UUID  `json:"restaurantId"          validate:"required"`
	Query        string     `json:"query"                 validate:"required,no_null_bytes"`
	Limit        int        `json:"limit,omitempty"       validate:"gte=0,lte=100"`
	Sentiment    string     `json:"sentiment,omitempty"   validate:"sentiment_filter"`
	DateFrom     *time.Time `json:"dateFrom,omitempty"`
	DateTo       *time.Time `json:"dateTo,omitempty"`
	ServiceType  string     `json:"serviceType,omitempty" validate:"no_null_bytes"`
}

// searchResponse is the response for POST /v1/feedbacks/search.
type searchResponse struct {
	Results []models.FeedbackWithSimilarity `json:"results"`
}

// Search handles POST /v1/feedbacks/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&body); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&body); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	results, err := h.service.Search(r.Context(), body.RestaurantID, body.Query, models.SearchOptions{
		Limit:       body.Limit,
		Sentiment:   models.SentimentFilter(body.Sentiment),
		DateFrom:    body.DateFrom,
		DateTo:      body.DateTo,
		ServiceType: body.ServiceType,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuery),
			errors.Is(err, service.ErrInvalidSentiment),
			errors.Is(err, service.ErrInvalidDateRange):
			response.RespondBadRequest(w, err.Error())
		default:
			response.RespondInternalServerError(w, "An unexpected error occurred")
		}

		return
	}

	response.RespondJSON(w, http.StatusOK, searchResponse{Results: results})
}

// themesQueryParams are the query parameters for GET /v1/restaurants/{id}/themes.
type themesQueryParams struct {
	From      *time.Time             `form:"dateFrom" validate:"required"`
	To        *time.Time             `form:"dateTo"   validate:"required"`
	Sentiment models.SentimentFilter `form:"sentiment"`
}

// themesResponse is the response for GET /v1/restaurants/{id}/themes.
type themesResponse struct {
	Themes []models.ThemeCount `json:"themes"`
}

// Themes handles GET /v1/restaurants/{id}/themes.
func (h *SearchHandler) Themes(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")

	restaurantID, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")

		return
	}

	var params themesQueryParams

	if err := validation.ValidateAndDecodeQueryParams(r, &params); err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	counts, err := h.service.Themes(r.Context(), restaurantID, *params.From, *params.To, params.Sentiment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSentiment),
			errors.Is(err, service.ErrInvalidDateRange):
			response.RespondBadRequest(w, err.Error())
		default:
			response.RespondInternalServerError(w, "An unexpected error occurred")
		}

		return
	}

	response.RespondJSON(w, http.StatusOK, themesResponse{Themes: counts})
}
