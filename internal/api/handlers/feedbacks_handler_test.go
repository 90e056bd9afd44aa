package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avisio/hub/internal/apperrors"
	"github.com/avisio/hub/internal/models"
)

type mockFeedbacksService struct {
	createFunc  func(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error)
	getFunc     func(ctx context.Context, id uuid.UUID) (*models.Feedback, error)
	triggerFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *mockFeedbacksService) CreateFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
	return m.createFunc(ctx, req)
}

func (m *mockFeedbacksService) GetFeedback(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	return m.getFunc(ctx, id)
}

func (m *mockFeedbacksService) TriggerPipeline(ctx context.Context, id uuid.UUID) error {
	return m.triggerFunc(ctx, id)
}

func doRequest(t *testing.T, handler http.HandlerFunc, method, target string, body any, pathID string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}

	rec := httptest.NewRecorder()
	handler(rec, req)

	return rec
}

func TestFeedbacksHandlerCreate(t *testing.T) {
	restaurantID := uuid.New()

	validBody := map[string]any{
		"restaurantId": restaurantID,
		"serviceType":  "dinner",
		"positiveText": "Très bon accueil",
		"negativeText": "attente trop longue",
	}

	t.Run("returns 201 with the created record", func(t *testing.T) {
		created := &models.Feedback{ID: uuid.New(), RestaurantID: restaurantID}
		svc := &mockFeedbacksService{
			createFunc: func(_ context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
				assert.Equal(t, restaurantID, req.RestaurantID)
				assert.Equal(t, "Très bon accueil", req.PositiveText)
				require.NotNil(t, req.NegativeText)
				assert.Equal(t, "attente trop longue", *req.NegativeText)

				return created, nil
			},
		}
		handler := NewFeedbacksHandler(svc)

		rec := doRequest(t, handler.Create, http.MethodPost, "/v1/feedbacks", validBody, "")

		require.Equal(t, http.StatusCreated, rec.Code)

		var got models.Feedback

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("returns 400 on malformed JSON", func(t *testing.T) {
		handler := NewFeedbacksHandler(&mockFeedbacksService{})

		req := httptest.NewRequest(http.MethodPost, "/v1/feedbacks", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 400 on unknown fields", func(t *testing.T) {
		handler := NewFeedbacksHandler(&mockFeedbacksService{})

		body := map[string]any{"restaurantId": restaurantID, "positiveText": "ok", "serviceType": "dinner", "bogus": 1}
		rec := doRequest(t, handler.Create, http.MethodPost, "/v1/feedbacks", body, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 400 when required fields are missing", func(t *testing.T) {
		handler := NewFeedbacksHandler(&mockFeedbacksService{})

		body := map[string]any{"restaurantId": restaurantID}
		rec := doRequest(t, handler.Create, http.MethodPost, "/v1/feedbacks", body, "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "PositiveText is required")
	})

	t.Run("maps service validation errors to 400", func(t *testing.T) {
		svc := &mockFeedbacksService{
			createFunc: func(context.Context, *models.CreateFeedbackRequest) (*models.Feedback, error) {
				return nil, apperrors.NewValidationError("service_type", "service_type is required")
			},
		}
		handler := NewFeedbacksHandler(svc)

		rec := doRequest(t, handler.Create, http.MethodPost, "/v1/feedbacks", validBody, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps unexpected errors to 500", func(t *testing.T) {
		svc := &mockFeedbacksService{
			createFunc: func(context.Context, *models.CreateFeedbackRequest) (*models.Feedback, error) {
				return nil, errors.New("db down")
			},
		}
		handler := NewFeedbacksHandler(svc)

		rec := doRequest(t, handler.Create, http.MethodPost, "/v1/feedbacks", validBody, "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestFeedbacksHandlerGet(t *testing.T) {
	t.Run("returns the record", func(t *testing.T) {
		id := uuid.New()
		svc := &mockFeedbacksService{
			getFunc: func(_ context.Context, gotID uuid.UUID) (*models.Feedback, error) {
				assert.Equal(t, id, gotID)

				return &models.Feedback{ID: id}, nil
			},
		}
		handler := NewFeedbacksHandler(svc)

		rec := doRequest(t, handler.Get, http.MethodGet, fmt.Sprintf("/v1/feedbacks/%s", id), nil, id.String())

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("returns 400 on invalid UUID", func(t *testing.T) {
		handler := NewFeedbacksHandler(&mockFeedbacksService{})

		rec := doRequest(t, handler.Get, http.MethodGet, "/v1/feedbacks/nope", nil, "nope")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		svc := &mockFeedbacksService{
			getFunc: func(context.Context, uuid.UUID) (*models.Feedback, error) {
				return nil, apperrors.NewNotFoundError("feedback", "feedback not found")
			},
		}
		handler := NewFeedbacksHandler(svc)

		id := uuid.New()
		rec := doRequest(t, handler.Get, http.MethodGet, fmt.Sprintf("/v1/feedbacks/%s", id), nil, id.String())

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestFeedbacksHandlerProcess(t *testing.T) {
	t.Run("returns 202 on trigger", func(t *testing.T) {
		id := uuid.New()
		svc := &mockFeedbacksService{
			triggerFunc: func(_ context.Context, gotID uuid.UUID) error {
				assert.Equal(t, id, gotID)

				return nil
			},
		}
		handler := NewFeedbacksHandler(svc)

		rec := doRequest(t, handler.Process, http.MethodPost, fmt.Sprintf("/v1/feedbacks/%s/process", id), nil, id.String())

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("returns 404 for unknown record", func(t *testing.T) {
		svc := &mockFeedbacksService{
			triggerFunc: func(context.Context, uuid.UUID) error {
				return fmt.Errorf("get feedback: %w", apperrors.NewNotFoundError("feedback", "feedback not found"))
			},
		}
		handler := NewFeedbacksHandler(svc)

		id := uuid.New()
		rec := doRequest(t, handler.Process, http.MethodPost, fmt.Sprintf("/v1/feedbacks/%s/process", id), nil, id.String())

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
