// Package handlers contains the HTTP handlers for the feedback API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/avisio/hub/internal/api/response"
	"github.com/avisio/hub/internal/api/validation"
	"github.com/avisio/hub/internal/apperrors"
	"github.com/avisio/hub/internal/models"
)

// FeedbacksService defines the interface for feedback intake business logic.
type FeedbacksService interface {
	CreateFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error)
	GetFeedback(ctx context.Context, id uuid.UUID) (*models.Feedback, error)
	TriggerPipeline(ctx context.Context, id uuid.UUID) error
}

// FeedbacksHandler handles HTTP requests for feedback records.
type FeedbacksHandler struct {
	service FeedbacksService
}

// NewFeedbacksHandler creates a new feedbacks handler.
func NewFeedbacksHandler(service FeedbacksService) *FeedbacksHandler {
	return &FeedbacksHandler{service: service}
}

// createFeedbackBody is the body for POST /v1/feedbacks.
// API contract uses camelCase.
type createFeedbackBody struct {
	RestaurantID uuid.UUID `json:"restaurantId"       validate:"required"`
	ServiceType  string    `json:"serviceType"        validate:"required,no_null_bytes"`
	PositiveText string    `json:"positiveText"       validate:"required,no_null_bytes"`
	NegativeText *string   `json:"negativeText,omitempty" validate:"omitempty,no_null_bytes"`
}

// Create handles POST /v1/feedbacks.
func (h *FeedbacksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createFeedbackBody

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

	record, err := h.service.CreateFeedback(r.Context(), &models.CreateFeedbackRequest{
		RestaurantID: body.RestaurantID,
		ServiceType:  body.ServiceType,
		PositiveText: body.PositiveText,
		NegativeText: body.NegativeText,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondBadRequest(w, err.Error())

			return
		}

		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusCreated, record)
}

// Get handles GET /v1/feedbacks/{id}.
func (h *FeedbacksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	record, err := h.service.GetFeedback(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Feedback not found")

			return
		}

		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	response.RespondJSON(w, http.StatusOK, record)
}

// Process handles POST /v1/feedbacks/{id}/process. It re-enqueues the
// enrichment pipeline for an existing record and returns 202.
func (h *FeedbacksHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.TriggerPipeline(r.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, "Feedback not found")

			return
		}

		response.RespondInternalServerError(w, "An unexpected error occurred")

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// parseIDParam extracts and parses the {id} path value, responding on failure.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		response.RespondBadRequest(w, "Feedback ID is required")

		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")

		return uuid.Nil, false
	}

	return id, true
}
