package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/avisio/hub/internal/models"
	"github.com/avisio/hub/internal/observability"
)

const searchQueryEmbeddingCacheName = "search_query_embedding"

// Sentinel errors for search (used by handlers for status mapping).
var (
	ErrEmptyQuery       = errors.New("query is required and must be non-empty")
	ErrInvalidSentiment = errors.New("sentiment must be one of: all, positive, negative")
	ErrInvalidDateRange = errors.New("date_from must be before date_to")
)

// FeedbackRepositoryForSearch provides the read operations needed for
// semantic search and theme aggregation.
type FeedbackRepositoryForSearch interface {
	SearchByEmbedding(
		ctx context.Context, restaurantID uuid.UUID, queryEmbedding []float32, opts models.SearchOptions,
	) ([]models.FeedbackWithSimilarity, error)
	ThemeCounts(
		ctx context.Context, restaurantID uuid.UUID, dateFrom, dateTo time.Time, sentiment models.SentimentFilter,
	) ([]models.ThemeCount, error)
}

// SearchService performs semantic feedback search and theme aggregation.
type SearchService struct {
	embeddingClient EmbeddingClient
	repo            FeedbackRepositoryForSearch
	model           string
	queryCache      *lru.Cache[string, []float32]
	queryLoadGroup  singleflight.Group
	cacheMetrics    observability.CacheMetrics
	logger          *slog.Logger
}

// SearchServiceParams configures SearchService. QueryCache and CacheMetrics may be nil (no caching).
type SearchServiceParams struct {
	EmbeddingClient EmbeddingClient
	Repo            FeedbackRepositoryForSearch
	Model           string
	QueryCache      *lru.Cache[string, []float32]
	CacheMetrics    observability.CacheMetrics
	Logger          *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(p SearchServiceParams) *SearchService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SearchService{
		embeddingClient: p.EmbeddingClient,
		repo:            p.Repo,
		model:           p.Model,
		queryCache:      p.QueryCache,
		cacheMetrics:    p.CacheMetrics,
		logger:          logger,
	}
}

// Search embeds the query text and returns the restaurant's nearest feedback
// records, best match first. Requires a non-empty (after trim) query.
func (s *SearchService) Search(
	ctx context.Context, restaurantID uuid.UUID, query string, opts models.SearchOptions,
) ([]models.FeedbackWithSimilarity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if opts.Sentiment == "" {
		opts.Sentiment = models.SentimentAll
	}

	if !models.ValidSentimentFilter(opts.Sentiment) {
		return nil, ErrInvalidSentiment
	}

	if opts.DateFrom != nil && opts.DateTo != nil && !opts.DateFrom.Before(*opts.DateTo) {
		return nil, ErrInvalidDateRange
	}

	var (
		embedding []float32
		err       error
	)

	if s.queryCache != nil {
		embedding, err = s.getQueryEmbeddingCached(ctx, query)
	} else {
		embedding, err = s.embeddingClient.CreateEmbedding(ctx, query)
	}

	if err != nil {
		s.logger.Error("search: create embedding failed", "error", err, "model", s.model)

		return nil, fmt.Errorf("create embedding: %w", err)
	}

	results, err := s.repo.SearchByEmbedding(ctx, restaurantID, embedding, opts)
	if err != nil {
		s.logger.Error("search: nearest failed", "error", err, "restaurant_id", restaurantID)

		return nil, fmt.Errorf("search feedbacks: %w", err)
	}

	return results, nil
}

// Themes aggregates theme occurrences for the restaurant over [dateFrom, dateTo),
// most frequent first.
func (s *SearchService) Themes(
	ctx context.Context, restaurantID uuid.UUID, dateFrom, dateTo time.Time, sentiment models.SentimentFilter,
) ([]models.ThemeCount, error) {
	if sentiment == "" {
		sentiment = models.SentimentAll
	}

	if !models.ValidSentimentFilter(sentiment) {
		return nil, ErrInvalidSentiment
	}

	if !dateFrom.Before(dateTo) {
		return nil, ErrInvalidDateRange
	}

	counts, err := s.repo.ThemeCounts(ctx, restaurantID, dateFrom, dateTo, sentiment)
	if err != nil {
		s.logger.Error("themes: aggregate failed", "error", err, "restaurant_id", restaurantID)

		return nil, fmt.Errorf("aggregate themes: %w", err)
	}

	return counts, nil
}

func (s *SearchService) getQueryEmbeddingCached(ctx context.Context, query string) ([]float32, error) {
	if vec, ok := s.queryCache.Get(query); ok {
		if s.cacheMetrics != nil {
			s.cacheMetrics.RecordHit(ctx, searchQueryEmbeddingCacheName)
		}

		return vec, nil
	}

	val, err, _ := s.queryLoadGroup.Do(query, func() (any, error) {
		// One miss per provider call, not per waiter joining the flight.
		if s.cacheMetrics != nil {
			s.cacheMetrics.RecordMiss(ctx, searchQueryEmbeddingCacheName)
		}

		// The load is shared by every waiter; detach it from the first
		// caller's cancellation so one aborted request cannot fail the rest.
		vec, loadErr := s.embeddingClient.CreateEmbedding(context.WithoutCancel(ctx), query)
		if loadErr != nil {
			return nil, fmt.Errorf("create embedding: %w", loadErr)
		}

		s.queryCache.Add(query, vec)

		return vec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	return val.([]float32), nil
}
