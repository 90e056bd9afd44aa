package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// ExclusionChecker notifies an external service that a feedback record has a
// fresh embedding so it can be checked against exclusion rules.
type ExclusionChecker interface {
	CheckFeedback(ctx context.Context, req *ExclusionCheckRequest) error
	Enabled() bool
}

// ExclusionCheckRequest is the payload sent to the exclusion service.
type ExclusionCheckRequest struct {
	FeedbackID   uuid.UUID `json:"feedbackId"`
	RestaurantID uuid.UUID `json:"restaurantId"`
	Embedding    []float32 `json:"embedding"`
	PositiveText string    `json:"positiveText"`
	NegativeText string    `json:"negativeText"`
}

// HTTPExclusionChecker implements ExclusionChecker over HTTP. An empty URL
// disables the checker entirely.
type HTTPExclusionChecker struct {
	url        string
	httpClient *retryablehttp.Client
	logger     *slog.Logger
}

// NewHTTPExclusionChecker creates a checker that POSTs to url.
// Uses 15s timeout with up to 3 retries on transient failures.
func NewHTTPExclusionChecker(url string, logger *slog.Logger) *HTTPExclusionChecker {
	if logger == nil {
		logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = 15 * time.Second
	retryClient.RetryMax = 3
	retryClient.Logger = nil // disable retryablehttp's default logger; we log at caller level

	return &HTTPExclusionChecker{
		url:        url,
		httpClient: retryClient,
		logger:     logger,
	}
}

// Enabled reports whether an exclusion service URL is configured.
func (c *HTTPExclusionChecker) Enabled() bool { return c.url != "" }

// CheckFeedback POSTs the embedding and texts to the exclusion service.
// No-op when disabled.
func (c *HTTPExclusionChecker) CheckFeedback(ctx context.Context, req *ExclusionCheckRequest) error {
	if !c.Enabled() {
		return nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal exclusion check payload: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create exclusion check request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send exclusion check: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)

		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close exclusion check response body",
				"feedback_id", req.FeedbackID, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("exclusion service returned non-2xx status: %d", resp.StatusCode)
	}

	return nil
}
