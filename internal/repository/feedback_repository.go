// Package repository provides data access for feedback records and their
// embeddings (pgvector).
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/avisio/hub/internal/apperrors"
	"github.com/avisio/hub/internal/models"
)

// ErrVectorDimensionMismatch is returned when a vector of the wrong length is
// stored or queried. This indicates misconfiguration (model dimensionality vs
// column), not a transient failure, and is never silently padded or truncated.
var ErrVectorDimensionMismatch = errors.New("repository: vector dimension mismatch")

// errEmbeddingScanInvalidType is returned when Scan receives a type other than []byte.
var errEmbeddingScanInvalidType = errors.New("embedding: expected []byte")

// nullableEmbedding scans a vector column that may be NULL without panicking
// (pgvector.Vector.Scan panics on empty/NULL).
type nullableEmbedding []float32

func (n *nullableEmbedding) Scan(src any) error {
	if src == nil {
		*n = nil

		return nil
	}

	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T", errEmbeddingScanInvalidType, src)
	}

	if len(buf) == 0 {
		*n = nil

		return nil
	}

	var vec pgvector.Vector

	if err := vec.DecodeBinary(buf); err != nil {
		return fmt.Errorf("embedding decode: %w", err)
	}

	*n = vec.Slice()

	return nil
}

// FeedbackRepository handles data access for the feedbacks table.
type FeedbackRepository struct {
	db         *pgxpool.Pool
	dimensions int
}

// NewFeedbackRepository creates a feedback repository. dimensions is the
// vector column length used to validate every stored or queried vector.
func NewFeedbackRepository(db *pgxpool.Pool, dimensions int) *FeedbackRepository {
	return &FeedbackRepository{db: db, dimensions: dimensions}
}

const feedbackColumns = `id, restaurant_id, service_type, positive_text, negative_text,
		created_at, normalized_text, sentiment_score, themes, severity`

// Create inserts a new feedback record with all AI fields null.
func (r *FeedbackRepository) Create(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
	createdAt := time.Now()
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	query := `
		INSERT INTO feedbacks (restaurant_id, service_type, positive_text, negative_text, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + feedbackColumns

	var (
		record     models.Feedback
		themesJSON []byte
		severity   *string
	)

	err := r.db.QueryRow(ctx, query,
		req.RestaurantID, req.ServiceType, req.PositiveText, req.NegativeText, createdAt,
	).Scan(
		&record.ID, &record.RestaurantID, &record.ServiceType,
		&record.PositiveText, &record.NegativeText, &record.CreatedAt,
		&record.NormalizedText, &record.SentimentScore, &themesJSON, &severity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}

	if err := applyScannedFields(&record, themesJSON, severity); err != nil {
		return nil, err
	}

	return &record, nil
}

// GetByID retrieves a single feedback record by ID, including its embedding.
func (r *FeedbackRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	query := `
		SELECT ` + feedbackColumns + `, embedding
		FROM feedbacks
		WHERE id = $1
	`

	var (
		record     models.Feedback
		themesJSON []byte
		severity   *string
		emb        nullableEmbedding
	)

	err := r.db.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.RestaurantID, &record.ServiceType,
		&record.PositiveText, &record.NegativeText, &record.CreatedAt,
		&record.NormalizedText, &record.SentimentScore, &themesJSON, &severity,
		&emb,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("feedback", "feedback not found")
		}

		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}

	if err := applyScannedFields(&record, themesJSON, severity); err != nil {
		return nil, err
	}

	record.Embedding = emb

	return &record, nil
}

// UpdateAIFields writes the normalization quadruple (normalized_text,
// sentiment_score, themes, severity) in a single statement so partial writes
// are never observable.
func (r *FeedbackRepository) UpdateAIFields(
	ctx context.Context, id uuid.UUID,
	normalizedText string, sentimentScore float64, themes []string, severity models.Severity,
) error {
	if themes == nil {
		themes = []string{}
	}

	themesJSON, err := json.Marshal(themes)
	if err != nil {
		return fmt.Errorf("failed to marshal themes: %w", err)
	}

	result, err := r.db.Exec(ctx, `
		UPDATE feedbacks
		SET normalized_text = $1, sentiment_score = $2, themes = $3, severity = $4
		WHERE id = $5`,
		normalizedText, sentimentScore, themesJSON, string(severity), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update feedback AI fields: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("feedback", "feedback not found")
	}

	return nil
}

// UpdateEmbedding sets the embedding vector for a feedback record. Safe to
// re-run with the same vector. A vector whose length does not match the
// configured dimensions fails with ErrVectorDimensionMismatch.
func (r *FeedbackRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if len(embedding) != r.dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrVectorDimensionMismatch, len(embedding), r.dimensions)
	}

	vec := pgvector.NewVector(embedding)

	result, err := r.db.Exec(ctx,
		`UPDATE feedbacks SET embedding = $1 WHERE id = $2`,
		vec, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update feedback embedding: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("feedback", "feedback not found")
	}

	return nil
}

// ListUnprocessed returns up to limit records with normalized_text IS NULL,
// most recent first, optionally scoped to one restaurant. The backfill loop
// re-fetches with the same filter each round: processed records drop out of
// the result instead of being paged past by offset. excludeIDs removes
// records that already failed this run, so the window advances past them to
// the rest of the backlog.
func (r *FeedbackRepository) ListUnprocessed(
	ctx context.Context, restaurantID *uuid.UUID, excludeIDs []uuid.UUID, limit int,
) ([]models.Feedback, error) {
	query := `
		SELECT ` + feedbackColumns + `
		FROM feedbacks
		WHERE normalized_text IS NULL`
	args := []any{}
	argCount := 1

	if restaurantID != nil {
		query += fmt.Sprintf(" AND restaurant_id = $%d", argCount)
		args = append(args, *restaurantID)
		argCount++
	}

	if len(excludeIDs) > 0 {
		query += fmt.Sprintf(" AND id != ALL($%d)", argCount)
		args = append(args, excludeIDs)
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed feedbacks: %w", err)
	}
	defer rows.Close()

	var records []models.Feedback

	for rows.Next() {
		record, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}

		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedbacks: %w", err)
	}

	return records, nil
}

// buildSearchConditions builds the WHERE conditions and arguments for
// SearchByEmbedding and ThemeCounts. The filter set is fixed; caller values
// are always bound as parameters, never interpolated into the query text.
// Returns the conditions joined with AND and the next parameter index.
func buildSearchConditions(
	restaurantID uuid.UUID, sentiment models.SentimentFilter,
	dateFrom, dateTo *time.Time, serviceType string,
) (whereClause string, args []any, nextArg int) {
	conditions := []string{"restaurant_id = $1"}
	args = []any{restaurantID}
	nextArg = 2

	switch sentiment {
	case models.SentimentNegative:
		conditions = append(conditions, "negative_text IS NOT NULL AND negative_text != ''")
	case models.SentimentPositive:
		conditions = append(conditions, "(negative_text IS NULL OR negative_text = '')")
	case models.SentimentAll:
	}

	if dateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", nextArg))
		args = append(args, *dateFrom)
		nextArg++
	}

	if dateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", nextArg))
		args = append(args, *dateTo)
		nextArg++
	}

	if serviceType != "" {
		conditions = append(conditions, fmt.Sprintf("service_type = $%d", nextArg))
		args = append(args, serviceType)
		nextArg++
	}

	return strings.Join(conditions, " AND "), args, nextArg
}

// SearchByEmbedding returns the nearest matches to queryEmbedding among the
// restaurant's embedded records, best match first. Similarity is 1 - cosine
// distance (<=>). Records without an embedding never match.
func (r *FeedbackRepository) SearchByEmbedding(
	ctx context.Context, restaurantID uuid.UUID, queryEmbedding []float32, opts models.SearchOptions,
) ([]models.FeedbackWithSimilarity, error) {
	if len(queryEmbedding) != r.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVectorDimensionMismatch, len(queryEmbedding), r.dimensions)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}

	whereClause, args, nextArg := buildSearchConditions(
		restaurantID, opts.Sentiment, opts.DateFrom, opts.DateTo, opts.ServiceType)

	queryVec := pgvector.NewVector(queryEmbedding)
	vecArg := nextArg
	limitArg := nextArg + 1
	args = append(args, queryVec, limit)

	query := fmt.Sprintf(`
		SELECT `+feedbackColumns+`,
			1 - (embedding <=> $%d) AS similarity
		FROM feedbacks
		WHERE %s AND embedding IS NOT NULL
		ORDER BY embedding <=> $%d
		LIMIT $%d`, vecArg, whereClause, vecArg, limitArg)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search feedbacks: %w", err)
	}
	defer rows.Close()

	results := []models.FeedbackWithSimilarity{}

	for rows.Next() {
		var (
			row        models.FeedbackWithSimilarity
			themesJSON []byte
			severity   *string
		)

		err := rows.Scan(
			&row.ID, &row.RestaurantID, &row.ServiceType,
			&row.PositiveText, &row.NegativeText, &row.CreatedAt,
			&row.NormalizedText, &row.SentimentScore, &themesJSON, &severity,
			&row.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		if err := applyScannedFields(&row.Feedback, themesJSON, severity); err != nil {
			return nil, err
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	return results, nil
}

// ThemeCounts aggregates theme occurrences over the restaurant's records in
// [dateFrom, dateTo), most frequent first. A record with three themes
// contributes three counts.
func (r *FeedbackRepository) ThemeCounts(
	ctx context.Context, restaurantID uuid.UUID, dateFrom, dateTo time.Time, sentiment models.SentimentFilter,
) ([]models.ThemeCount, error) {
	whereClause, args, _ := buildSearchConditions(restaurantID, sentiment, &dateFrom, &dateTo, "")

	query := fmt.Sprintf(`
		SELECT theme, COUNT(*)::int AS count
		FROM feedbacks, jsonb_array_elements_text(themes) AS theme
		WHERE %s
		GROUP BY theme
		ORDER BY count DESC`, whereClause)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate themes: %w", err)
	}
	defer rows.Close()

	counts := []models.ThemeCount{}

	for rows.Next() {
		var tc models.ThemeCount
		if err := rows.Scan(&tc.Theme, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan theme count: %w", err)
		}

		counts = append(counts, tc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating theme counts: %w", err)
	}

	return counts, nil
}

// scanFeedback scans one row of feedbackColumns into a Feedback.
func scanFeedback(rows pgx.Rows) (*models.Feedback, error) {
	var (
		record     models.Feedback
		themesJSON []byte
		severity   *string
	)

	err := rows.Scan(
		&record.ID, &record.RestaurantID, &record.ServiceType,
		&record.PositiveText, &record.NegativeText, &record.CreatedAt,
		&record.NormalizedText, &record.SentimentScore, &themesJSON, &severity,
	)
	if err != nil {
		return nil, err
	}

	if err := applyScannedFields(&record, themesJSON, severity); err != nil {
		return nil, err
	}

	return &record, nil
}

// applyScannedFields decodes the themes jsonb payload and converts the
// severity text onto the record.
func applyScannedFields(record *models.Feedback, themesJSON []byte, severity *string) error {
	if len(themesJSON) > 0 {
		if err := json.Unmarshal(themesJSON, &record.Themes); err != nil {
			return fmt.Errorf("decode themes: %w", err)
		}
	}

	if severity != nil {
		s := models.Severity(*severity)
		record.Severity = &s
	}

	return nil
}
